package security

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// NullEntity wraps plaintext into an unsigned envelope and accepts everything.
type NullEntity struct {
	Now func() time.Time
}

func (e NullEntity) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e NullEntity) EncapsulatePacket(req EncapRequest) (EncapConfirm, error) {
	return EncapConfirm{Message: &SecuredMessage{
		Version:   MessageVersion,
		Aid:       req.Aid,
		Generated: e.now(),
		Payload:   append([]byte(nil), req.Plaintext...),
	}}, nil
}

func (e NullEntity) DecapsulatePacket(req DecapRequest) DecapConfirm {
	return DecapConfirm{
		Report:    Success,
		Aid:       req.Message.Aid,
		Plaintext: req.Message.Payload,
		Generated: req.Message.Generated,
	}
}

// NaiveEntity signs every message with a single ed25519 key. It verifies signatures
// against an optional set of trusted signers, rejects stale messages and remembers
// signatures it has seen to detect replays.
type NaiveEntity struct {
	key       ed25519.PrivateKey
	trusted   map[string]struct{}
	seen      *ttlcache.Cache[string, struct{}]
	now       func() time.Time
	freshness time.Duration
}

var ErrNoSigningKey = errors.New("naive security entity requires a signing key")

// NewNaiveEntity creates an entity signing with key. An empty trusted set accepts any
// signer. Messages generated more than freshness away from now are reported as
// InvalidTimestamp, and signatures are remembered for replayTTL.
func NewNaiveEntity(key ed25519.PrivateKey, trusted []ed25519.PublicKey, now func() time.Time, freshness, replayTTL time.Duration) (*NaiveEntity, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, ErrNoSigningKey
	}
	if now == nil {
		now = time.Now
	}
	e := &NaiveEntity{
		key:     key,
		trusted: make(map[string]struct{}, len(trusted)),
		seen: ttlcache.New[string, struct{}](
			ttlcache.WithTTL[string, struct{}](replayTTL),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
		now:       now,
		freshness: freshness,
	}
	for _, pk := range trusted {
		e.trusted[string(pk)] = struct{}{}
	}
	return e, nil
}

func (e *NaiveEntity) PublicKey() ed25519.PublicKey {
	return e.key.Public().(ed25519.PublicKey)
}

func (e *NaiveEntity) EncapsulatePacket(req EncapRequest) (EncapConfirm, error) {
	m := &SecuredMessage{
		Version:   MessageVersion,
		Aid:       req.Aid,
		Generated: e.now(),
		Payload:   append([]byte(nil), req.Plaintext...),
		Signer:    e.PublicKey(),
	}
	m.Signature = ed25519.Sign(e.key, m.tbs())
	return EncapConfirm{Message: m}, nil
}

func (e *NaiveEntity) verify(m *SecuredMessage) DecapReport {
	if m.Version != MessageVersion {
		return IncompatibleProtocol
	}
	if !m.Signed() {
		return UnsignedMessage
	}
	if len(m.Signer) != ed25519.PublicKeySize {
		return UnsupportedSignerIdentifierType
	}
	if len(e.trusted) > 0 {
		if _, ok := e.trusted[string(m.Signer)]; !ok {
			return SignerCertificateNotFound
		}
	}
	if !ed25519.Verify(m.Signer, m.tbs(), m.Signature) {
		return FalseSignature
	}
	age := e.now().Sub(m.Generated)
	if age > e.freshness || age < -e.freshness {
		return InvalidTimestamp
	}
	e.seen.DeleteExpired()
	sig := string(m.Signature)
	if e.seen.Has(sig) {
		return DuplicateMessage
	}
	e.seen.Set(sig, struct{}{}, ttlcache.DefaultTTL)
	return Success
}

func (e *NaiveEntity) DecapsulatePacket(req DecapRequest) DecapConfirm {
	m := req.Message
	return DecapConfirm{
		Report:    e.verify(m),
		Aid:       m.Aid,
		Plaintext: m.Payload,
		Generated: m.Generated,
	}
}
