package eventcodec

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/Hubmakerlabs/relaybridge/pkg/hex"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
)

func signedEvent(t *testing.T) *nostr.Event {
	sk, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	ev := &nostr.Event{
		CreatedAt: nostr.Now(),
		Kind:      nostr.TextNote,
		Tags:      nostr.Tags{{"p", "deadbeef"}},
		Content:   "hello",
	}
	require.NoError(t, ev.Sign(hex.Enc(sk.Serialize())))
	return ev
}

func TestRoundTrip(t *testing.T) {
	ev := signedEvent(t)
	encoded, err := Encode(ev)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.True(t, ev.Equal(decoded))
}

func TestDecodeToleratesMissingSignature(t *testing.T) {
	unsigned := &nostr.Event{ID: "ffaa", Content: "no sig, no pubkey"}
	encoded, err := Encode(unsigned)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, "ffaa", decoded.ID)
}

func TestValidateRejectsMissingID(t *testing.T) {
	ev := &nostr.Event{Content: "x"}
	require.Error(t, Validate(ev))
}

func TestValidateRejectsPubkeyWithoutSig(t *testing.T) {
	ev := &nostr.Event{ID: "x", PubKey: "y"}
	require.Error(t, Validate(ev))
}

func TestValidateRejectsMalformedTag(t *testing.T) {
	ev := &nostr.Event{ID: "x", Tags: nostr.Tags{{}}}
	require.Error(t, Validate(ev))
}

func TestDecodeAcceptsTamperedSignatureButLogsMismatch(t *testing.T) {
	ev := signedEvent(t)
	ev.Content = "tampered after signing"
	encoded, err := Encode(ev)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, "tampered after signing", decoded.Content)
}

func TestFilename(t *testing.T) {
	ev := &nostr.Event{ID: "abc"}
	require.Equal(t, "abc.json", Filename(ev))
}
