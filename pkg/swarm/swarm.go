// Package swarm implements the SwarmClient contract of spec.md §4.5: a
// content-addressed seed/fetch abstraction over a real swarm library.
// spec.md marks this component "Contract only", and no BitTorrent swarm
// library exists anywhere in the retrieval pack (see DESIGN.md), so
// this package defines the Client interface plus a reference
// in-memory implementation that FeedManager/TransportCoordinator can
// run against in tests and in a single-process deployment.
package swarm

import (
	"context"
	"crypto/sha1"
	"sync"
	"time"

	"github.com/Hubmakerlabs/relaybridge/pkg/errs"
	"github.com/Hubmakerlabs/relaybridge/pkg/magnet"
)

// Object is a named byte buffer to seed (spec.md §4.5: "seed({buffer,
// filename})").
type Object struct {
	Buffer   []byte
	Filename string
}

// Client is the SwarmClient contract. Seed must be idempotent: seeding
// identical buffer+filename pairs repeatedly must yield identical
// magnets (spec.md §4.5).
type Client interface {
	Seed(ctx context.Context, obj Object) (*magnet.T, error)
	Fetch(ctx context.Context, m *magnet.T, deadline time.Duration) ([]byte, error)
	DHTHandle() any
	WaitForDHT(ctx context.Context, deadline time.Duration) error
	AnnounceTracker(url string)
}

// MemoryClient is a reference Client backed by an in-process map, keyed
// by the infohash so repeated seeds of identical content are naturally
// idempotent.
type MemoryClient struct {
	mu       sync.RWMutex
	objects  map[[20]byte]Object
	trackers []string
	dhtReady bool
}

// NewMemoryClient returns a reference Client. dhtReady controls whether
// WaitForDHT resolves immediately or blocks until SetDHTReady is called
// — useful for exercising the bootstrap-wait path in tests.
func NewMemoryClient(dhtReady bool) *MemoryClient {
	return &MemoryClient{objects: make(map[[20]byte]Object), dhtReady: dhtReady}
}

// infoHash derives a deterministic 20-byte content address from
// filename+buffer. Real BitTorrent infohashes are SHA-1 over a bencoded
// info dictionary; this reference client uses a SHA-1 over the
// filename, a zero byte, then the buffer, which is sufficient to satisfy the idempotence and
// content-addressing properties spec.md §8 requires without pulling in
// a torrent-file encoder this bridge never reads from disk.
func infoHash(obj Object) [20]byte {
	h := sha1.New()
	h.Write([]byte(obj.Filename))
	h.Write([]byte{0})
	h.Write(obj.Buffer)
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (c *MemoryClient) Seed(_ context.Context, obj Object) (*magnet.T, error) {
	ih := infoHash(obj)
	c.mu.Lock()
	c.objects[ih] = obj
	trackers := append([]string(nil), c.trackers...)
	c.mu.Unlock()
	return magnet.New(ih, obj.Filename, trackers), nil
}

func (c *MemoryClient) Fetch(ctx context.Context, m *magnet.T, deadline time.Duration) ([]byte, error) {
	ih, err := m.InfoHashBytes()
	if err != nil {
		return nil, errs.NewTransportError(errs.BT, "fetch", err)
	}
	done := make(chan Object, 1)
	go func() {
		c.mu.RLock()
		obj, ok := c.objects[ih]
		c.mu.RUnlock()
		if ok {
			done <- obj
		}
	}()
	select {
	case obj := <-done:
		return obj.Buffer, nil
	case <-time.After(deadline):
		return nil, errs.NewTimeout("fetch", deadline)
	case <-ctx.Done():
		return nil, errs.AsTransport(errs.BT, "fetch", ctx.Err())
	}
}

// DHTHandle returns an opaque reference FeedManager can pass through to
// a DHT client constructed against the same swarm session (spec.md
// §4.5). The reference client has no separate DHT session, so it
// returns itself.
func (c *MemoryClient) DHTHandle() any { return c }

func (c *MemoryClient) WaitForDHT(ctx context.Context, deadline time.Duration) error {
	timeout := time.After(deadline)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		c.mu.RLock()
		ready := c.dhtReady
		c.mu.RUnlock()
		if ready {
			return nil
		}
		select {
		case <-timeout:
			return errs.NewTimeout("wait_for_dht", deadline)
		case <-ctx.Done():
			return errs.AsTransport(errs.BT, "wait_for_dht", ctx.Err())
		case <-tick.C:
		}
	}
}

// SetDHTReady marks the reference DHT session as having at least one
// known node, unblocking WaitForDHT.
func (c *MemoryClient) SetDHTReady() {
	c.mu.Lock()
	c.dhtReady = true
	c.mu.Unlock()
}

func (c *MemoryClient) AnnounceTracker(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.trackers {
		if existing == url {
			return
		}
	}
	c.trackers = append(c.trackers, url)
}
