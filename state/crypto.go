package state

import (
	"crypto/ed25519"
	"crypto/rand"
)

// PrivateKey is an ed25519 seed used by the signing security entity.
type PrivateKey [ed25519.SeedSize]byte
type PublicKey [ed25519.PublicKeySize]byte

func GenerateKey() PrivateKey {
	var k PrivateKey
	if _, err := rand.Read(k[:]); err != nil {
		panic(err)
	}
	return k
}

func (k PrivateKey) IsZero() bool {
	return k == PrivateKey{}
}

func (k PrivateKey) Signer() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(k[:])
}

func (k PrivateKey) Pubkey() PublicKey {
	return PublicKey(k.Signer().Public().(ed25519.PublicKey))
}
