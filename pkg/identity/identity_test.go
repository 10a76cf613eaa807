package identity

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
)

func TestFromRelaySecretIsDeterministic(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	a, err := FromRelaySecret(seed)
	require.NoError(t, err)
	b, err := FromRelaySecret(seed)
	require.NoError(t, err)
	require.Equal(t, a.PublicKeyHex(), b.PublicKeyHex())
}

func TestFromRelaySecretRejectsWrongLength(t *testing.T) {
	_, err := FromRelaySecret(make([]byte, 16))
	require.Error(t, err)
}

func TestGenerateProducesDistinctKeys(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)
	require.NotEqual(t, a.PublicKeyHex(), b.PublicKeyHex())
}

func TestSignVerifyRoundTrip(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)
	msg := []byte("attest this")
	sig := id.Sign(msg)

	ok, err := Verify(id.PublicKeyHex(), msg, sig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)
	sig := id.Sign([]byte("original"))

	ok, err := Verify(id.PublicKeyHex(), []byte("tampered"), sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAttestationBindsRelayPubKeyAndSwarmPubKey(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)
	ev := id.Attestation("relaypubkeyhex")

	require.Equal(t, "relaypubkeyhex", ev.PubKey)
	require.Equal(t, id.PublicKeyHex(), ev.Content)
	require.Equal(t, nostr.AppSpecificData, ev.Kind)
	require.Equal(t, IdentityDTag, ev.Tags.GetFirst("d").Value())
}
