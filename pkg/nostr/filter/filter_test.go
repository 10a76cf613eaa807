package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
)

func TestMatchesAllDimensionsAreAnded(t *testing.T) {
	since := nostr.Timestamp(100)
	f := &T{
		Authors: []string{"pk1"},
		Kinds:   []nostr.Kind{nostr.TextNote},
		Since:   &since,
		Tags:    TagMap{"t": {"go"}},
	}
	ev := &nostr.Event{PubKey: "pk1", Kind: nostr.TextNote, CreatedAt: 200, Tags: nostr.Tags{{"t", "go"}}}
	require.True(t, f.Matches(ev))

	wrongAuthor := &nostr.Event{PubKey: "other", Kind: nostr.TextNote, CreatedAt: 200, Tags: nostr.Tags{{"t", "go"}}}
	require.False(t, f.Matches(wrongAuthor))

	tooOld := &nostr.Event{PubKey: "pk1", Kind: nostr.TextNote, CreatedAt: 50, Tags: nostr.Tags{{"t", "go"}}}
	require.False(t, f.Matches(tooOld))

	missingTag := &nostr.Event{PubKey: "pk1", Kind: nostr.TextNote, CreatedAt: 200}
	require.False(t, f.Matches(missingTag))
}

func TestMatchesNilFilterMatchesEverything(t *testing.T) {
	var f *T
	require.True(t, f.Matches(&nostr.Event{ID: "anything"}))
}

func TestMarshalUnmarshalRoundTripsTags(t *testing.T) {
	since := nostr.Timestamp(42)
	f := &T{
		IDs:     []string{"id1"},
		Authors: []string{"pk1"},
		Kinds:   []nostr.Kind{nostr.TextNote, nostr.ContactList},
		Since:   &since,
		Limit:   10,
		Search:  "hello",
		Tags:    TagMap{"e": {"ev1"}, "p": {"pk2", "pk3"}},
	}

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var decoded T
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Equal(t, f.IDs, decoded.IDs)
	require.Equal(t, f.Authors, decoded.Authors)
	require.Equal(t, f.Kinds, decoded.Kinds)
	require.Equal(t, f.Limit, decoded.Limit)
	require.Equal(t, f.Search, decoded.Search)
	require.Equal(t, *f.Since, *decoded.Since)
	require.ElementsMatch(t, f.Tags["e"], decoded.Tags["e"])
	require.ElementsMatch(t, f.Tags["p"], decoded.Tags["p"])
}

func TestMarshalOmitsEmptyTagsKey(t *testing.T) {
	f := &T{Authors: []string{"pk1"}}
	data, err := json.Marshal(f)
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	for key := range m {
		require.NotEqual(t, "#", string(key[0]), "no tag keys should appear when Tags is empty")
	}
}
