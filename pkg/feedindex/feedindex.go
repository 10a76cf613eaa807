// Package feedindex implements spec.md §4.3: a bounded, time-descending,
// id-unique set of event descriptors, serialized as a single swarm
// object ("index.json").
package feedindex

import (
	"encoding/json"
	"sort"

	"github.com/Hubmakerlabs/relaybridge/pkg/log"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
)

var lg = log.GetLogger()

// DefaultLimit bounds the number of entries kept, oldest dropped first.
const DefaultLimit = 100

// Entry is one feed index record (spec.md §4.3).
type Entry struct {
	ID     string         `json:"id"`
	Magnet string         `json:"magnet"`
	TS     nostr.Timestamp `json:"ts"`
	Kind   nostr.Kind     `json:"kind"`
}

// T is a feed index. The zero value is an empty index with DefaultLimit.
type T struct {
	Limit     int             `json:"-"`
	Items     []Entry         `json:"items"`
	UpdatedAt nostr.Timestamp `json:"updated_at"`
}

// New returns an empty index bounded to limit entries (DefaultLimit if
// limit <= 0).
func New(limit int) *T {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &T{Limit: limit}
}

// Add inserts ev/magnet into the index (spec.md §4.3): a no-op if the
// event id is already present, otherwise prepended, re-sorted
// newest-first, and truncated to Limit.
func (t *T) Add(ev *nostr.Event, magnet string) {
	for _, e := range t.Items {
		if e.ID == ev.ID {
			return
		}
	}
	t.Items = append([]Entry{{ID: ev.ID, Magnet: magnet, TS: ev.CreatedAt, Kind: ev.Kind}}, t.Items...)
	sort.SliceStable(t.Items, func(i, j int) bool { return t.Items[i].TS > t.Items[j].TS })
	limit := t.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(t.Items) > limit {
		t.Items = t.Items[:limit]
	}
	t.UpdatedAt = nostr.Now()
}

// ToBytes serializes the index to JSON, the form seeded as "index.json"
// (spec.md §4.4 step 2).
func (t *T) ToBytes() ([]byte, error) {
	return json.Marshal(t)
}

// FromBytes parses a serialized index. Invalid input yields an empty
// index rather than an error or panic (spec.md §4.3); the caller may log
// a warning, which this function does on the caller's behalf.
func FromBytes(data []byte, limit int) *T {
	t := New(limit)
	if err := json.Unmarshal(data, t); err != nil {
		lg.W.F("feedindex: invalid index bytes, returning empty index: %v", err)
		return New(limit)
	}
	t.Limit = limit
	return t
}
