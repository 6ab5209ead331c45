package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency     = metric.NewHistogram("1m1s")
	FrameSize           = metric.NewHistogram("10s1s")
	SentPacketPerSecond = metric.NewCounter("10s1s")
	RecvPacketPerSecond = metric.NewCounter("10s1s")
	SentBytesPerSecond  = metric.NewCounter("10s1s")
	RecvBytesPerSecond  = metric.NewCounter("10s1s")
	DropsPerSecond      = metric.NewCounter("10s1s")
	ForwardsPerSecond   = metric.NewCounter("10s1s")
	DeliveredPerSecond  = metric.NewCounter("10s1s")
	BeaconsPerSecond    = metric.NewCounter("10s1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("geonet:FrameSize", FrameSize)

	expvar.Publish("geonet:SentPacket/s", SentPacketPerSecond)
	expvar.Publish("geonet:RecvPacket/s", RecvPacketPerSecond)
	expvar.Publish("geonet:SentBytes/s", SentBytesPerSecond)
	expvar.Publish("geonet:RecvBytes/s", RecvBytesPerSecond)
	expvar.Publish("geonet:Drops/s", DropsPerSecond)
	expvar.Publish("geonet:Forwards/s", ForwardsPerSecond)
	expvar.Publish("geonet:Delivered/s", DeliveredPerSecond)
	expvar.Publish("geonet:Beacons/s", BeaconsPerSecond)
	expvar.Publish("geonet:DispatchLatency (µs)", DispatchLatency)
}
