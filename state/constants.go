package state

import "time"

const (
	// EtherTypeGeoNet is the ethertype of GeoNetworking frames.
	EtherTypeGeoNet = 0x8947
	// DefaultGroup is the multicast group used as the broadcast medium when none is configured
	DefaultGroup = "239.192.41.47:47000"
)

var (
	PositionUpdateDelay  = time.Millisecond * 500
	LocationTableGcDelay = time.Second * 5
	DispatchBufferSize   = 128
	// SlowDispatchThreshold is the dispatch duration above which the main loop warns.
	SlowDispatchThreshold = time.Millisecond * 4
	TraceBufferSize       = 1024
	MaxFrameSize          = 2048
	// the secured envelope must not be older than this
	SecurityFreshness = time.Second * 10
	ReplayCacheTTL    = time.Second * 30
)

var (
	NodeConfigPath  = "node.yaml"
	DebugListenAddr = "127.0.0.1:6060"
	// DBG_debug serves expvar and pprof on DebugListenAddr
	DBG_debug     = false
	DBG_log_trace = false
)
