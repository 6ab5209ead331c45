package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/gopacket/gopacket"
)

const CommonHeaderLength = 8

// UpperProtocol is the next header field of the common header.
type UpperProtocol uint8

const (
	UpperProtocolAny  UpperProtocol = 0
	UpperProtocolBtpA UpperProtocol = 1
	UpperProtocolBtpB UpperProtocol = 2
	UpperProtocolIPv6 UpperProtocol = 3
)

func (u UpperProtocol) String() string {
	switch u {
	case UpperProtocolAny:
		return "any"
	case UpperProtocolBtpA:
		return "btp-a"
	case UpperProtocolBtpB:
		return "btp-b"
	case UpperProtocolIPv6:
		return "ipv6"
	}
	return fmt.Sprintf("upper(%d)", uint8(u))
}

// HeaderType packs the header type in the high nibble and the subtype in the low nibble.
type HeaderType uint8

const (
	HeaderTypeAny              HeaderType = 0x00
	HeaderTypeBeacon           HeaderType = 0x10
	HeaderTypeGeoUnicast       HeaderType = 0x20
	HeaderTypeGeoAnycastCircle HeaderType = 0x30
	HeaderTypeGeoAnycastRect   HeaderType = 0x31
	HeaderTypeGeoAnycastElip   HeaderType = 0x32
	HeaderTypeGeoBcastCircle   HeaderType = 0x40
	HeaderTypeGeoBcastRect     HeaderType = 0x41
	HeaderTypeGeoBcastElip     HeaderType = 0x42
	HeaderTypeTsbSingleHop     HeaderType = 0x50
	HeaderTypeTsbMultiHop      HeaderType = 0x51
	HeaderTypeLsRequest        HeaderType = 0x60
	HeaderTypeLsReply          HeaderType = 0x61
)

var headerTypeNames = map[HeaderType]string{
	HeaderTypeAny:              "any",
	HeaderTypeBeacon:           "beacon",
	HeaderTypeGeoUnicast:       "guc",
	HeaderTypeGeoAnycastCircle: "gac-circle",
	HeaderTypeGeoAnycastRect:   "gac-rect",
	HeaderTypeGeoAnycastElip:   "gac-elip",
	HeaderTypeGeoBcastCircle:   "gbc-circle",
	HeaderTypeGeoBcastRect:     "gbc-rect",
	HeaderTypeGeoBcastElip:     "gbc-elip",
	HeaderTypeTsbSingleHop:     "shb",
	HeaderTypeTsbMultiHop:      "tsb",
	HeaderTypeLsRequest:        "ls-request",
	HeaderTypeLsReply:          "ls-reply",
}

func (h HeaderType) String() string {
	if n, ok := headerTypeNames[h]; ok {
		return n
	}
	return fmt.Sprintf("ht(%#02x)", uint8(h))
}

func (h HeaderType) IsGeoBroadcast() bool {
	return h >= HeaderTypeGeoBcastCircle && h <= HeaderTypeGeoBcastElip
}

func (h HeaderType) IsGeoAnycast() bool {
	return h >= HeaderTypeGeoAnycastCircle && h <= HeaderTypeGeoAnycastElip
}

const FlagMobile = 0x80

type CommonHeader struct {
	NextHeader    UpperProtocol
	Reserved1     uint8
	HeaderType    HeaderType
	TrafficClass  TrafficClass
	Flags         uint8
	PayloadLength uint16
	MaxHopLimit   uint8
	Reserved2     uint8
}

func (c *CommonHeader) Mobile() bool {
	return c.Flags&FlagMobile != 0
}

func (c *CommonHeader) SetMobile(mobile bool) {
	if mobile {
		c.Flags |= FlagMobile
	} else {
		c.Flags &^= FlagMobile
	}
}

func (c *CommonHeader) SerializeTo(b gopacket.SerializeBuffer) error {
	buf, err := b.AppendBytes(CommonHeaderLength)
	if err != nil {
		return err
	}
	buf[0] = uint8(c.NextHeader)<<4 | c.Reserved1&0x0f
	buf[1] = uint8(c.HeaderType)
	buf[2] = uint8(c.TrafficClass)
	buf[3] = c.Flags
	binary.BigEndian.PutUint16(buf[4:6], c.PayloadLength)
	buf[6] = c.MaxHopLimit
	buf[7] = c.Reserved2
	return nil
}

func (c *CommonHeader) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < CommonHeaderLength {
		df.SetTruncated()
		return fmt.Errorf("common header needs %d bytes, got %d: %w", CommonHeaderLength, len(data), ErrTruncated)
	}
	c.NextHeader = UpperProtocol(data[0] >> 4)
	c.Reserved1 = data[0] & 0x0f
	c.HeaderType = HeaderType(data[1])
	c.TrafficClass = TrafficClass(data[2])
	c.Flags = data[3]
	c.PayloadLength = binary.BigEndian.Uint16(data[4:6])
	c.MaxHopLimit = data[6]
	c.Reserved2 = data[7]
	return nil
}
