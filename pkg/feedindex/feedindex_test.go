package feedindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
)

func TestAddIsIdempotent(t *testing.T) {
	idx := New(0)
	ev := &nostr.Event{ID: "a", CreatedAt: nostr.Timestamp(100)}
	idx.Add(ev, "magnet:a")
	idx.Add(ev, "magnet:a-again")
	require.Len(t, idx.Items, 1)
	require.Equal(t, "magnet:a", idx.Items[0].Magnet)
}

func TestAddOrdersNewestFirst(t *testing.T) {
	idx := New(0)
	idx.Add(&nostr.Event{ID: "old", CreatedAt: nostr.Timestamp(10)}, "m1")
	idx.Add(&nostr.Event{ID: "new", CreatedAt: nostr.Timestamp(20)}, "m2")
	require.Equal(t, "new", idx.Items[0].ID)
	require.Equal(t, "old", idx.Items[1].ID)
}

func TestAddTruncatesToLimit(t *testing.T) {
	idx := New(2)
	idx.Add(&nostr.Event{ID: "1", CreatedAt: nostr.Timestamp(1)}, "m1")
	idx.Add(&nostr.Event{ID: "2", CreatedAt: nostr.Timestamp(2)}, "m2")
	idx.Add(&nostr.Event{ID: "3", CreatedAt: nostr.Timestamp(3)}, "m3")
	require.Len(t, idx.Items, 2)
	require.Equal(t, "3", idx.Items[0].ID)
	require.Equal(t, "2", idx.Items[1].ID)
}

func TestToBytesFromBytesRoundTrip(t *testing.T) {
	idx := New(10)
	idx.Add(&nostr.Event{ID: "a", CreatedAt: nostr.Timestamp(1)}, "magnet:a")

	b, err := idx.ToBytes()
	require.NoError(t, err)

	parsed := FromBytes(b, 10)
	require.Len(t, parsed.Items, 1)
	require.Equal(t, "a", parsed.Items[0].ID)
}

func TestFromBytesRecoversFromCorruptData(t *testing.T) {
	parsed := FromBytes([]byte("not json"), 5)
	require.NotNil(t, parsed)
	require.Empty(t, parsed.Items)
	require.Equal(t, 5, parsed.Limit)
}
