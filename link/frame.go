// Package link emulates an ITS-G5 broadcast medium with Ethernet-shaped frames carried
// over UDP multicast.
package link

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/encodeous/geonet/protocol"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

const FrameHeaderLength = 14

var ErrNotGeoNet = errors.New("frame does not carry geonetworking")

// Frame is an Ethernet II frame without padding or FCS, so the payload is exactly the
// GN packet.
type Frame struct {
	Destination protocol.MacAddress
	Source      protocol.MacAddress
	EtherType   layers.EthernetType
	Payload     []byte
}

func (f *Frame) SerializeTo(b gopacket.SerializeBuffer) error {
	bytes, err := b.AppendBytes(FrameHeaderLength + len(f.Payload))
	if err != nil {
		return err
	}
	copy(bytes[0:6], f.Destination[:])
	copy(bytes[6:12], f.Source[:])
	binary.BigEndian.PutUint16(bytes[12:], uint16(f.EtherType))
	copy(bytes[FrameHeaderLength:], f.Payload)
	return nil
}

func (f *Frame) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(data, df); err != nil {
		return err
	}
	if eth.Length != 0 {
		return fmt.Errorf("802.3 length frame: %w", ErrNotGeoNet)
	}
	copy(f.Destination[:], eth.DstMAC)
	copy(f.Source[:], eth.SrcMAC)
	f.EtherType = eth.EthernetType
	f.Payload = eth.Payload
	return nil
}

func (f *Frame) Bytes() ([]byte, error) {
	b := gopacket.NewSerializeBuffer()
	if err := f.SerializeTo(b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
