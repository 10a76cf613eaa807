package nostr

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/Hubmakerlabs/relaybridge/pkg/hex"
)

func newTestKey(t *testing.T) string {
	sk, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return hex.Enc(sk.Serialize())
}

func TestEventSignAndVerify(t *testing.T) {
	skHex := newTestKey(t)
	ev := &Event{
		CreatedAt: Now(),
		Kind:      TextNote,
		Tags:      Tags{{"p", "deadbeef"}},
		Content:   "hello",
	}
	require.NoError(t, ev.Sign(skHex))
	require.NotEmpty(t, ev.ID)
	require.NotEmpty(t, ev.PubKey)
	require.NotEmpty(t, ev.Sig)

	ok, err := ev.CheckSignature()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEventSignatureMismatchOnTamper(t *testing.T) {
	skHex := newTestKey(t)
	ev := &Event{CreatedAt: Now(), Kind: TextNote, Content: "hello"}
	require.NoError(t, ev.Sign(skHex))

	ev.Content = "tampered"
	ok, err := ev.CheckSignature()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEventEqual(t *testing.T) {
	a := &Event{ID: "1", PubKey: "2", Tags: Tags{{"e", "x"}}, Content: "c"}
	b := &Event{ID: "1", PubKey: "2", Tags: Tags{{"e", "x"}}, Content: "c"}
	require.True(t, a.Equal(b))

	c := &Event{ID: "1", PubKey: "2", Tags: Tags{{"e", "y"}}, Content: "c"}
	require.False(t, a.Equal(c))
}

func TestFilename(t *testing.T) {
	ev := &Event{ID: "abc123"}
	require.Equal(t, "abc123.json", ev.Filename())
}
