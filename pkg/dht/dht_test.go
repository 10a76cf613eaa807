package dht

import (
	"context"
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTargetIsSHA1OfPubkey(t *testing.T) {
	pk := []byte("a 32 byte pubkey placeholder!!!!")
	target := Target(pk)
	require.Len(t, target, 20)
	require.Equal(t, sha1.Sum(pk), target)
}

func TestPutGetRoundTrip(t *testing.T) {
	c := NewMemoryClient(nil)
	pk := []byte("pubkeybytes")
	sign := func(msg []byte) []byte { return []byte("sig") }
	rec := NewRecord(pk, 1, Value{InfoHash: [20]byte{1, 2, 3}, TS: 100}, sign)

	require.NoError(t, c.Put(context.Background(), rec))

	got, ok, err := c.Get(context.Background(), Target(pk))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec.V.InfoHash, got.V.InfoHash)
}

func TestPutRejectsStaleSeq(t *testing.T) {
	c := NewMemoryClient(nil)
	pk := []byte("pubkeybytes")
	sign := func(msg []byte) []byte { return []byte("sig") }

	require.NoError(t, c.Put(context.Background(), NewRecord(pk, 5, Value{TS: 1}, sign)))
	err := c.Put(context.Background(), NewRecord(pk, 3, Value{TS: 2}, sign))
	require.Error(t, err)
}

func TestPutRejectsEqualSeq(t *testing.T) {
	c := NewMemoryClient(nil)
	pk := []byte("pubkeybytes")
	sign := func(msg []byte) []byte { return []byte("sig") }

	require.NoError(t, c.Put(context.Background(), NewRecord(pk, 5, Value{TS: 1}, sign)))
	err := c.Put(context.Background(), NewRecord(pk, 5, Value{TS: 2}, sign))
	require.Error(t, err)
}

func TestPutRejectsBadSignatureWhenVerifierSet(t *testing.T) {
	verify := func(pubKey, msg, sig []byte) bool { return false }
	c := NewMemoryClient(verify)
	pk := []byte("pubkeybytes")
	rec := NewRecord(pk, 1, Value{TS: 1}, func(msg []byte) []byte { return []byte("sig") })

	err := c.Put(context.Background(), rec)
	require.Error(t, err)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	c := NewMemoryClient(nil)
	_, ok, err := c.Get(context.Background(), Target([]byte("nothing here")))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSignedPayloadIncludesSeqAndBencodedValue(t *testing.T) {
	rec := &Record{K: []byte("k"), Seq: 7, V: Value{InfoHash: [20]byte{9}, TS: 42}}
	payload := rec.SignedPayload()
	require.Contains(t, string(payload), "3:seqi7e1:v")
}
