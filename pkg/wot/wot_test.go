package wot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
)

func TestAddKeepsShortestPath(t *testing.T) {
	g := New(0)
	g.Add("pk1", 2)
	require.Equal(t, 2, g.Snapshot()["pk1"].Degree)

	g.Add("pk1", 1)
	require.Equal(t, 1, g.Snapshot()["pk1"].Degree)

	g.Add("pk1", 3)
	require.Equal(t, 1, g.Snapshot()["pk1"].Degree, "a longer path must not override a shorter one already recorded")
}

func TestParseContactListWalksPTags(t *testing.T) {
	g := New(2)
	ev := &nostr.Event{
		Kind: nostr.ContactList,
		Tags: nostr.Tags{{"p", "a"}, {"p", "b"}, {"e", "ignored"}},
	}
	g.ParseContactList(ev, 1)

	require.ElementsMatch(t, []string{"a", "b"}, g.PubKeysAt(1))
	require.True(t, g.IsFollowing("a"))
	require.False(t, g.IsFollowing("ignored"))
}

func TestParseContactListNoopsBeyondMaxDegree(t *testing.T) {
	g := New(1)
	ev := &nostr.Event{Tags: nostr.Tags{{"p", "a"}}}
	g.ParseContactList(ev, 2)
	require.False(t, g.IsFollowing("a"))
}

func TestDefaultMaxDegreeApplied(t *testing.T) {
	g := New(0)
	require.Equal(t, DefaultMaxDegree, g.MaxDegree)
}
