package core

import (
	"time"

	"github.com/encodeous/geonet/perf"
	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/security"
)

// StartBeaconing sends the first beacon after a random jitter and keeps beaconing
// until Stop. Any SHB we send postpones the next beacon.
func (r *Router) StartBeaconing() {
	r.beaconing = true
	r.resetBeacon(r.jitter())
}

func (r *Router) jitter() time.Duration {
	if r.mib.BeaconServiceMaxJitter <= 0 {
		return 0
	}
	return time.Duration(r.rng.Int64N(int64(r.mib.BeaconServiceMaxJitter)))
}

func (r *Router) beaconInterval() time.Duration {
	return r.mib.BeaconServiceRetransmitTimer + r.jitter()
}

func (r *Router) resetBeacon(delay time.Duration) {
	r.beacon.Cancel()
	r.beacon = r.rt.Schedule(delay, r.onBeacon)
}

func (r *Router) onBeacon() {
	if !r.beaconing {
		return
	}
	if err := r.sendBeacon(); err != nil {
		r.log.Warn("failed to send beacon", "error", err)
	}
	r.resetBeacon(r.beaconInterval())
}

func (r *Router) sendBeacon() error {
	ext := &protocol.BeaconHeader{Source: r.lpv}
	pdu := protocol.NewPdu(protocol.HeaderTypeBeacon, ext)
	pdu.Basic.Lifetime = protocol.NewLifetime(r.mib.DefaultPacketLifetime)
	pdu.Basic.HopLimit = 1
	pdu.Common.NextHeader = protocol.UpperProtocolAny
	pdu.Common.MaxHopLimit = 1
	pdu.Common.SetMobile(r.mib.IsMobile)
	if err := r.secure(pdu, nil, security.AidGnMgmt); err != nil {
		return err
	}
	perf.BeaconsPerSecond.Add(1)
	r.broadcast(&pendingPacket{pdu: pdu})
	return nil
}
