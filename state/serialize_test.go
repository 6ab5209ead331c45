package state

import (
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialize(t *testing.T) {
	key := GenerateKey()
	cfg := SecurityCfg{
		Entity:  SecurityNaive,
		Key:     key,
		Trusted: []PublicKey{key.Pubkey(), GenerateKey().Pubkey()},
	}
	x, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(x), "entity: naive")

	var y SecurityCfg
	require.NoError(t, yaml.Unmarshal(x, &y))
	assert.Equal(t, cfg, y)
}

func TestDeserializeInvalid(t *testing.T) {
	var k PrivateKey
	assert.Error(t, k.UnmarshalText([]byte("not base64!")))
	assert.ErrorContains(t, k.UnmarshalText([]byte("AAAA")), "private key must be 32 bytes")

	var p PublicKey
	assert.ErrorContains(t, p.UnmarshalText([]byte("AAAA")), "public key must be 32 bytes")

	var cfg SecurityCfg
	err := yaml.Unmarshal([]byte("entity: quantum\n"), &cfg)
	assert.Error(t, err)
}
