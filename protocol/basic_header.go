package protocol

import (
	"errors"
	"fmt"

	"github.com/gopacket/gopacket"
)

var (
	ErrTruncated         = errors.New("truncated GeoNetworking header")
	ErrProtocolVersion   = errors.New("unsupported GeoNetworking protocol version")
	ErrUnknownHeaderType = errors.New("unknown extended header type")
	ErrUnknownNextHeader = errors.New("unknown next header")
	ErrPayloadLength     = errors.New("payload length mismatch")
	ErrMissingExtHeader  = errors.New("PDU has no extended header")
)

const (
	BasicHeaderLength = 4
	ProtocolVersion   = 1
)

// NextHeaderBasic tells what follows the basic header.
type NextHeaderBasic uint8

const (
	NextHeaderBasicAny     NextHeaderBasic = 0
	NextHeaderBasicCommon  NextHeaderBasic = 1
	NextHeaderBasicSecured NextHeaderBasic = 2
)

func (n NextHeaderBasic) String() string {
	switch n {
	case NextHeaderBasicAny:
		return "any"
	case NextHeaderBasicCommon:
		return "common"
	case NextHeaderBasicSecured:
		return "secured"
	}
	return fmt.Sprintf("next(%d)", uint8(n))
}

type BasicHeader struct {
	Version    uint8
	NextHeader NextHeaderBasic
	Reserved   uint8
	Lifetime   Lifetime
	HopLimit   uint8
}

func NewBasicHeader() BasicHeader {
	return BasicHeader{Version: ProtocolVersion, NextHeader: NextHeaderBasicCommon}
}

func (h *BasicHeader) SerializeTo(b gopacket.SerializeBuffer) error {
	buf, err := b.AppendBytes(BasicHeaderLength)
	if err != nil {
		return err
	}
	buf[0] = h.Version<<4 | uint8(h.NextHeader)&0x0f
	buf[1] = h.Reserved
	buf[2] = uint8(h.Lifetime)
	buf[3] = h.HopLimit
	return nil
}

// DecodeFromBytes parses the basic header. A version other than ProtocolVersion
// yields ErrProtocolVersion with the header fields still filled in.
func (h *BasicHeader) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < BasicHeaderLength {
		df.SetTruncated()
		return fmt.Errorf("basic header needs %d bytes, got %d: %w", BasicHeaderLength, len(data), ErrTruncated)
	}
	h.Version = data[0] >> 4
	h.NextHeader = NextHeaderBasic(data[0] & 0x0f)
	h.Reserved = data[1]
	h.Lifetime = Lifetime(data[2])
	h.HopLimit = data[3]
	if h.Version != ProtocolVersion {
		return fmt.Errorf("version %d: %w", h.Version, ErrProtocolVersion)
	}
	return nil
}
