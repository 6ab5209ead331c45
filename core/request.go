package core

import (
	"bytes"
	"fmt"

	"github.com/encodeous/geonet/geo"
	"github.com/encodeous/geonet/protocol"
)

// Request originates a packet. Rejections are reported in the confirm; an error means
// the router or the request is misconfigured.
func (r *Router) Request(req DataRequest, payload []byte) (DataConfirm, error) {
	var conf DataConfirm
	b := req.Base()
	if b.Lifetime > r.mib.MaxPacketLifetime {
		conf.reject(RejectedMaxLifetime)
	}
	if b.Repetition != nil && b.Repetition.Interval < r.mib.MinPacketRepetitionInterval {
		conf.reject(RejectedMinRepetitionInterval)
	}
	if len(payload) > r.mib.MaxSduSize {
		conf.reject(RejectedMaxSduSize)
	}

	switch req := req.(type) {
	case *ShbDataRequest:
		if !conf.Accepted() {
			return conf, nil
		}
		return r.requestShb(req, bytes.Clone(payload))
	case *GbcDataRequest:
		if err := req.Destination.Validate(); err != nil {
			return DataConfirm{Result: RejectedUnspecified}, fmt.Errorf("gbc destination: %w", err)
		}
		r.checkAreaSize(&conf, req.Destination)
		if !conf.Accepted() {
			return conf, nil
		}
		return r.requestGbc(req, bytes.Clone(payload))
	case *GacDataRequest:
		r.checkAreaSize(&conf, req.Destination)
		conf.reject(RejectedUnspecified)
		return conf, nil
	case *GucDataRequest, *TsbDataRequest:
		conf.reject(RejectedUnspecified)
		return conf, nil
	}
	return DataConfirm{Result: RejectedUnspecified}, fmt.Errorf("unknown request type %T", req)
}

func (r *Router) checkAreaSize(conf *DataConfirm, area geo.Area) {
	// MaxGeoAreaSize is in km²
	if geo.AreaSize(area) > r.mib.MaxGeoAreaSize*1e6 {
		conf.reject(RejectedMaxGeoAreaSize)
	}
}

func (r *Router) requestShb(req *ShbDataRequest, payload []byte) (DataConfirm, error) {
	ext := &protocol.ShbHeader{Source: r.lpv}
	pdu := r.newPdu(&req.RequestBase, protocol.HeaderTypeTsbSingleHop, ext, payload)
	pdu.Basic.HopLimit = 1
	pdu.Common.MaxHopLimit = 1
	p := &pendingPacket{pdu: pdu, payload: payload, flush: r.broadcast}

	scf := req.TrafficClass.StoreCarryForward() && !r.locT.HasNeighbours()
	if !scf {
		r.repeater.Add(req, payload)
	}
	if err := r.secure(pdu, payload, req.Aid); err != nil {
		return DataConfirm{Result: RejectedUnspecified}, err
	}
	if scf {
		r.bcBuffer.Push(p, r.rt.Now())
		return DataConfirm{}, nil
	}
	r.broadcast(p)
	if r.beaconing {
		r.resetBeacon(r.beaconInterval())
	}
	return DataConfirm{}, nil
}

func (r *Router) requestGbc(req *GbcDataRequest, payload []byte) (DataConfirm, error) {
	ext := &protocol.GbcHeader{SequenceNumber: r.sequence, Source: r.lpv}
	r.sequence.Next()
	ht := ext.SetDestination(req.Destination)
	pdu := r.newPdu(&req.RequestBase, ht, ext, payload)

	r.repeater.Add(req, payload)
	if err := r.secure(pdu, payload, req.Aid); err != nil {
		return DataConfirm{Result: RejectedUnspecified}, err
	}
	p := &pendingPacket{pdu: pdu, payload: payload}
	hop, err := r.selectForwarding(p, req.Destination, nil)
	if err != nil {
		return DataConfirm{Result: RejectedUnspecified}, err
	}
	// a buffered packet stays queued for later but is not handed off now
	if hop.state != hopValid {
		return DataConfirm{Result: RejectedUnspecified}, nil
	}
	r.passDown(hop.mac, p)
	return DataConfirm{}, nil
}

// repeat re-issues a request for the repeater.
func (r *Router) repeat(req DataRequest, payload []byte) {
	conf, err := r.Request(req, payload)
	if err != nil {
		r.log.Error("repeated request failed", "error", err)
		return
	}
	if !conf.Accepted() {
		r.log.Debug("repeated request rejected", "result", conf.Result)
	}
}
