package security

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/encodeous/geonet/protocol"
	"github.com/gopacket/gopacket"
)

const (
	// MessageVersion is the envelope version produced by this package.
	MessageVersion = 3

	flagSigned = 0x01

	// version, flags, aid, generation time, payload length
	messageHeaderLength = 1 + 1 + 4 + 8 + 2
	signerLength        = ed25519.PublicKeySize + ed25519.SignatureSize
)

var (
	ErrTruncated      = errors.New("secured message is truncated")
	ErrTrailingData   = errors.New("secured message has trailing data")
	ErrPayloadTooLong = errors.New("secured payload is too long")
)

// SecuredMessage is the envelope around a secured GeoNetworking plaintext.
//
//	version(1) flags(1) aid(4) generation(8, µs since 2004) length(2) payload [signer(32) signature(64)]
type SecuredMessage struct {
	Version   uint8
	Aid       ItsAid
	Generated time.Time
	Payload   []byte
	Signer    ed25519.PublicKey
	Signature []byte
}

func (m *SecuredMessage) Signed() bool {
	return len(m.Signer) != 0 || len(m.Signature) != 0
}

func (m *SecuredMessage) Length() int {
	n := messageHeaderLength + len(m.Payload)
	if m.Signed() {
		n += signerLength
	}
	return n
}

func (m *SecuredMessage) putHeader(b []byte) {
	b[0] = m.Version
	b[1] = 0
	if m.Signed() {
		b[1] |= flagSigned
	}
	binary.BigEndian.PutUint32(b[2:], uint32(m.Aid))
	binary.BigEndian.PutUint64(b[6:], uint64(m.Generated.Sub(protocol.ItsEpoch).Microseconds()))
	binary.BigEndian.PutUint16(b[14:], uint16(len(m.Payload)))
}

// tbs returns the signed portion of m, which is everything before the signer.
func (m *SecuredMessage) tbs() []byte {
	b := make([]byte, messageHeaderLength+len(m.Payload))
	m.putHeader(b)
	b[1] |= flagSigned
	copy(b[messageHeaderLength:], m.Payload)
	return b
}

func (m *SecuredMessage) SerializeTo(b gopacket.SerializeBuffer) error {
	if len(m.Payload) > 0xffff {
		return ErrPayloadTooLong
	}
	if m.Signed() && (len(m.Signer) != ed25519.PublicKeySize || len(m.Signature) != ed25519.SignatureSize) {
		return fmt.Errorf("malformed signer of %d bytes and signature of %d bytes", len(m.Signer), len(m.Signature))
	}
	bytes, err := b.AppendBytes(m.Length())
	if err != nil {
		return err
	}
	m.putHeader(bytes)
	copy(bytes[messageHeaderLength:], m.Payload)
	if m.Signed() {
		off := messageHeaderLength + len(m.Payload)
		copy(bytes[off:], m.Signer)
		copy(bytes[off+ed25519.PublicKeySize:], m.Signature)
	}
	return nil
}

func (m *SecuredMessage) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < messageHeaderLength {
		df.SetTruncated()
		return ErrTruncated
	}
	m.Version = data[0]
	signed := data[1]&flagSigned != 0
	m.Aid = ItsAid(binary.BigEndian.Uint32(data[2:]))
	m.Generated = protocol.ItsEpoch.Add(time.Duration(binary.BigEndian.Uint64(data[6:])) * time.Microsecond)
	n := int(binary.BigEndian.Uint16(data[14:]))

	want := messageHeaderLength + n
	if signed {
		want += signerLength
	}
	if len(data) < want {
		df.SetTruncated()
		return ErrTruncated
	}
	if len(data) > want {
		return ErrTrailingData
	}
	m.Payload = append([]byte(nil), data[messageHeaderLength:messageHeaderLength+n]...)
	m.Signer, m.Signature = nil, nil
	if signed {
		off := messageHeaderLength + n
		m.Signer = append(ed25519.PublicKey(nil), data[off:off+ed25519.PublicKeySize]...)
		m.Signature = append([]byte(nil), data[off+ed25519.PublicKeySize:want]...)
	}
	return nil
}

func (m *SecuredMessage) Bytes() ([]byte, error) {
	b := gopacket.NewSerializeBuffer()
	if err := m.SerializeTo(b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// ParseSecuredMessage decodes an envelope. The result does not alias data.
func ParseSecuredMessage(data []byte) (*SecuredMessage, error) {
	m := &SecuredMessage{}
	if err := m.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, err
	}
	return m, nil
}
