// Package wot implements spec.md §4.9: a degree-annotated reachable set
// over the follow graph, built by repeatedly parsing contact-list
// events fetched through the feed pipeline.
package wot

import (
	"sync"

	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
)

// DefaultMaxDegree bounds how far parse_contact_list will extend the
// graph (spec.md §4.9).
const DefaultMaxDegree = 2

// Node is one graph entry (spec.md §4.9: "{degree, last_synced}").
type Node struct {
	Degree     int
	LastSynced nostr.Timestamp
}

// T is a concurrency-safe pubkey -> Node map with shortest-path merge
// semantics. The zero value is not usable; use New.
type T struct {
	mu        sync.RWMutex
	nodes     map[string]Node
	MaxDegree int
}

// New returns an empty graph bounded to maxDegree (DefaultMaxDegree if
// maxDegree <= 0).
func New(maxDegree int) *T {
	if maxDegree <= 0 {
		maxDegree = DefaultMaxDegree
	}
	return &T{nodes: make(map[string]Node), MaxDegree: maxDegree}
}

// Add inserts pubkey at degree if absent, or overwrites it if degree is
// strictly smaller than the existing entry's (spec.md §4.9's
// shortest-path semantics).
func (t *T) Add(pubKeyHex string, degree int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.nodes[pubKeyHex]
	if !ok || degree < existing.Degree {
		t.nodes[pubKeyHex] = Node{Degree: degree, LastSynced: nostr.Now()}
	}
}

// ParseContactList walks ev's "p" tags, adding each target pubkey at
// degree (spec.md §4.9). A no-op if degree exceeds MaxDegree.
func (t *T) ParseContactList(ev *nostr.Event, degree int) {
	if degree > t.MaxDegree {
		return
	}
	for _, tag := range ev.Tags {
		if tag.Name() != "p" || len(tag) < 2 {
			continue
		}
		t.Add(tag[1], degree)
	}
}

// PubKeysAt returns a snapshot of every pubkey currently at degree.
func (t *T) PubKeysAt(degree int) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for pk, n := range t.nodes {
		if n.Degree == degree {
			out = append(out, pk)
		}
	}
	return out
}

// IsFollowing reports whether pubKeyHex is in the graph at any degree.
func (t *T) IsFollowing(pubKeyHex string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.nodes[pubKeyHex]
	return ok
}

// Snapshot returns every known pubkey, used by subscribe_follows_p2p
// (spec.md §4.8) to enumerate nodes to resolve.
func (t *T) Snapshot() map[string]Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Node, len(t.nodes))
	for k, v := range t.nodes {
		out[k] = v
	}
	return out
}
