package protocol

import (
	"bytes"
	"fmt"

	"github.com/gopacket/gopacket"
)

// Pdu is a GN packet without its payload. A secured PDU keeps the plaintext common and
// extended headers for local processing while Secured holds the envelope sent on the wire.
type Pdu struct {
	Basic    BasicHeader
	Common   CommonHeader
	Extended ExtendedHeader
	Secured  []byte
}

func NewPdu(ht HeaderType, ext ExtendedHeader) *Pdu {
	return &Pdu{
		Basic:    NewBasicHeader(),
		Common:   CommonHeader{HeaderType: ht},
		Extended: ext,
	}
}

func (p *Pdu) IsSecured() bool {
	return p.Basic.NextHeader == NextHeaderBasicSecured
}

// Secure replaces the plaintext headers on the wire by envelope.
func (p *Pdu) Secure(envelope []byte) {
	p.Basic.NextHeader = NextHeaderBasicSecured
	p.Secured = envelope
}

// Clone returns a deep copy that shares no memory with p.
func (p *Pdu) Clone() *Pdu {
	c := &Pdu{Basic: p.Basic, Common: p.Common}
	if p.Extended != nil {
		c.Extended = p.Extended.Clone()
	}
	if p.Secured != nil {
		c.Secured = bytes.Clone(p.Secured)
	}
	return c
}

// Length is the number of header bytes SerializeTo writes ahead of a plaintext payload.
func (p *Pdu) Length() int {
	if p.IsSecured() {
		return BasicHeaderLength + len(p.Secured)
	}
	n := BasicHeaderLength + CommonHeaderLength
	if p.Extended != nil {
		n += p.Extended.Length()
	}
	return n
}

// SerializePlaintext writes common header, extended header and payload. This is the
// input to the security entity.
func (p *Pdu) SerializePlaintext(b gopacket.SerializeBuffer, payload []byte) error {
	if p.Extended == nil {
		return ErrMissingExtHeader
	}
	if err := p.Common.SerializeTo(b); err != nil {
		return err
	}
	if err := p.Extended.SerializeTo(b); err != nil {
		return err
	}
	buf, err := b.AppendBytes(len(payload))
	if err != nil {
		return err
	}
	copy(buf, payload)
	return nil
}

// SerializeTo writes the full packet. For a secured PDU payload is ignored since the
// envelope already carries it.
func (p *Pdu) SerializeTo(b gopacket.SerializeBuffer, payload []byte) error {
	if err := p.Basic.SerializeTo(b); err != nil {
		return err
	}
	if p.IsSecured() {
		buf, err := b.AppendBytes(len(p.Secured))
		if err != nil {
			return err
		}
		copy(buf, p.Secured)
		return nil
	}
	return p.SerializePlaintext(b, payload)
}

// Bytes serializes the packet into a fresh slice.
func (p *Pdu) Bytes(payload []byte) ([]byte, error) {
	b := gopacket.NewSerializeBuffer()
	if err := p.SerializeTo(b, payload); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// DecodePlaintext parses common header, extended header and payload and checks the
// payload length announced by the common header.
func DecodePlaintext(data []byte, df gopacket.DecodeFeedback) (CommonHeader, ExtendedHeader, []byte, error) {
	var common CommonHeader
	if err := common.DecodeFromBytes(data, df); err != nil {
		return common, nil, nil, err
	}
	data = data[CommonHeaderLength:]
	ext, err := DecodeExtended(common.HeaderType, data, df)
	if err != nil {
		return common, nil, nil, err
	}
	payload := data[ext.Length():]
	if int(common.PayloadLength) != len(payload) {
		return common, ext, nil, fmt.Errorf("announced %d, carried %d: %w", common.PayloadLength, len(payload), ErrPayloadLength)
	}
	return common, ext, payload, nil
}

// DecodePacket parses a whole GN packet. A secured packet is returned with only its
// basic header and envelope set.
func DecodePacket(data []byte, df gopacket.DecodeFeedback) (*Pdu, []byte, error) {
	p := &Pdu{}
	if err := p.Basic.DecodeFromBytes(data, df); err != nil {
		return nil, nil, err
	}
	data = data[BasicHeaderLength:]
	switch p.Basic.NextHeader {
	case NextHeaderBasicSecured:
		p.Secured = bytes.Clone(data)
		return p, nil, nil
	case NextHeaderBasicCommon:
		common, ext, payload, err := DecodePlaintext(data, df)
		if err != nil {
			return nil, nil, err
		}
		p.Common = common
		p.Extended = ext
		return p, payload, nil
	}
	return nil, nil, fmt.Errorf("basic header next %v: %w", p.Basic.NextHeader, ErrUnknownNextHeader)
}
