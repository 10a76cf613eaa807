package swarm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Hubmakerlabs/relaybridge/pkg/magnet"
)

func TestSeedIsIdempotent(t *testing.T) {
	c := NewMemoryClient(true)
	obj := Object{Buffer: []byte("hello"), Filename: "a.json"}

	m1, err := c.Seed(context.Background(), obj)
	require.NoError(t, err)
	m2, err := c.Seed(context.Background(), obj)
	require.NoError(t, err)
	require.Equal(t, m1.InfoHash, m2.InfoHash)
}

func TestSeedFetchRoundTrip(t *testing.T) {
	c := NewMemoryClient(true)
	obj := Object{Buffer: []byte("payload"), Filename: "a.json"}

	m, err := c.Seed(context.Background(), obj)
	require.NoError(t, err)

	got, err := c.Fetch(context.Background(), m, time.Second)
	require.NoError(t, err)
	require.Equal(t, obj.Buffer, got)
}

func TestFetchTimesOutWhenUnseeded(t *testing.T) {
	c := NewMemoryClient(true)
	var hash [20]byte
	m := magnet.New(hash, "missing.json", nil)

	_, err := c.Fetch(context.Background(), m, 20*time.Millisecond)
	require.Error(t, err)
}

func TestWaitForDHTReadyReturnsImmediately(t *testing.T) {
	c := NewMemoryClient(false)
	c.SetDHTReady()
	require.NoError(t, c.WaitForDHT(context.Background(), 10*time.Millisecond))
}

func TestWaitForDHTTimesOutWhenNotReady(t *testing.T) {
	c := NewMemoryClient(false)
	err := c.WaitForDHT(context.Background(), 10*time.Millisecond)
	require.Error(t, err)
}

func TestAnnounceTrackerDedups(t *testing.T) {
	c := NewMemoryClient(true)
	c.AnnounceTracker("udp://tracker")
	c.AnnounceTracker("udp://tracker")
	require.Len(t, c.trackers, 1)
}
