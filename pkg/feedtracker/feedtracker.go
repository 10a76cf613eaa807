// Package feedtracker implements spec.md §4.7: resolving a transport
// pubkey (plus an optional relay pubkey fallback) to a tracker-augmented
// magnet, with caching so repeat discovery is a cache hit.
package feedtracker

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Hubmakerlabs/relaybridge/pkg/feedmanager"
	"github.com/Hubmakerlabs/relaybridge/pkg/magnet"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr/filter"
	"github.com/Hubmakerlabs/relaybridge/pkg/relayclient"
)

// BridgeDTag re-exports feedmanager.BridgeDTag, the d-tag this package's
// discovery filter matches on.
const BridgeDTag = feedmanager.BridgeDTag

// T resolves transport pubkeys to magnets, DHT-first with a relay
// fallback (spec.md §4.7).
type T struct {
	FeedManager  *feedmanager.T
	RelayClient  *relayclient.Client
	Trackers     []string
	cache        *lru.Cache[string, *magnet.T]
}

// DefaultCacheSize bounds the magnet cache (spec.md §4.7's "cached...
// keyed by transport_pubkey").
const DefaultCacheSize = 1024

// New builds a FeedTracker around a FeedManager (for DHT resolution)
// and a RelayClient (for the relay-bridge fallback).
func New(fm *feedmanager.T, rc *relayclient.Client, trackers []string) *T {
	cache, _ := lru.New[string, *magnet.T](DefaultCacheSize)
	return &T{FeedManager: fm, RelayClient: rc, Trackers: trackers, cache: cache}
}

// Discover resolves transportPubKeyHex to a magnet, following spec.md
// §4.7's four-step strategy. relayPubKeyHex may be empty to skip the
// relay fallback.
func (t *T) Discover(ctx context.Context, transportPubKeyHex, relayPubKeyHex string) (*magnet.T, bool) {
	if m, ok := t.cache.Get(transportPubKeyHex); ok {
		return m, true
	}

	var found *magnet.T
	if t.FeedManager != nil {
		if ptr, ok, err := t.FeedManager.ResolveFeedPointer(ctx, transportPubKeyHex); err == nil && ok {
			found = magnet.New(ptr.InfoHash, "index.json", nil)
		}
	}

	if found == nil && relayPubKeyHex != "" && t.RelayClient != nil {
		f := &filter.T{
			Authors: []string{relayPubKeyHex},
			Kinds:   []nostr.Kind{nostr.AppSpecificData},
			Tags:    filter.TagMap{"d": {BridgeDTag}},
			Limit:   1,
		}
		ev, ok := t.RelayClient.AwaitEvent(ctx, f, 5*time.Second, func(ev *nostr.Event) bool {
			return strings.HasPrefix(ev.Content, "magnet:")
		})
		if ok {
			if m, err := magnet.Decode(ev.Content); err == nil {
				found = m
			}
		}
	}

	if found == nil {
		return nil, false
	}
	withTrackers := found.UnionTrackers(t.Trackers)
	t.cache.Add(transportPubKeyHex, withTrackers)
	return withTrackers, true
}
