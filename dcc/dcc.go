// Package dcc is the boundary between the GeoNetworking router and the access layer.
package dcc

import (
	"fmt"
	"time"

	"github.com/encodeous/geonet/protocol"
)

// Profile selects the decentralized congestion control queue of a frame.
type Profile uint8

const (
	DP0 Profile = iota
	DP1
	DP2
	DP3
)

func (p Profile) String() string {
	return fmt.Sprintf("DP%d", uint8(p))
}

// ProfileFor maps the traffic class ID of a packet onto a DCC profile.
func ProfileFor(tc protocol.TrafficClass) Profile {
	switch tc.ID() {
	case 0:
		return DP0
	case 1:
		return DP1
	case 2:
		return DP2
	}
	return DP3
}

type DataRequest struct {
	Profile     Profile
	Destination protocol.MacAddress
	Source      protocol.MacAddress
	EtherType   uint16
	Lifetime    time.Duration
}

// RequestInterface hands serialized GeoNetworking packets to the link layer.
type RequestInterface interface {
	Request(req DataRequest, packet []byte) error
}

// RequestFunc adapts a function to RequestInterface.
type RequestFunc func(req DataRequest, packet []byte) error

func (f RequestFunc) Request(req DataRequest, packet []byte) error {
	return f(req, packet)
}
