package magnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var hash [20]byte
	for i := range hash {
		hash[i] = byte(i)
	}
	m := New(hash, "index.json", []string{"udp://tracker.one:80", "udp://tracker.two:80"})

	decoded, err := Decode(m.String())
	require.NoError(t, err)
	require.Equal(t, m.InfoHash, decoded.InfoHash)
	require.Equal(t, m.DisplayName, decoded.DisplayName)
	require.Equal(t, m.Trackers, decoded.Trackers)
}

func TestInfoHashBytesRoundTrip(t *testing.T) {
	var hash [20]byte
	for i := range hash {
		hash[i] = byte(255 - i)
	}
	m := New(hash, "", nil)
	got, err := m.InfoHashBytes()
	require.NoError(t, err)
	require.Equal(t, hash, got)
}

func TestAddTrackerDedupsPreservingOrder(t *testing.T) {
	var hash [20]byte
	m := New(hash, "", nil)
	m.AddTracker("a")
	m.AddTracker("b")
	m.AddTracker("a")
	require.Equal(t, []string{"a", "b"}, m.Trackers)
}

func TestUnionTrackersMergesWithoutMutatingOriginal(t *testing.T) {
	var hash [20]byte
	m := New(hash, "", []string{"a"})
	merged := m.UnionTrackers([]string{"b", "a"})
	require.Equal(t, []string{"a"}, m.Trackers)
	require.Equal(t, []string{"a", "b"}, merged.Trackers)
}

func TestDecodeRejectsNonMagnetURI(t *testing.T) {
	_, err := Decode("http://example.com")
	require.Error(t, err)
}

func TestDecodeRejectsMissingInfoHash(t *testing.T) {
	_, err := Decode("magnet:?dn=foo")
	require.Error(t, err)
}
