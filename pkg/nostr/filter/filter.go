// Package filter implements the query predicate of spec.md §4.11/§4.12:
// a set of optional match criteria (ids, authors, kinds, a time window, a
// result limit, a full-text search string and #<letter> tag predicates)
// ANDed together, with multi-valued fields ORed internally.
//
// The teacher's pkg/nostr/filter.T gets there with a ~50-field struct and
// a hand-written ordered-object JSON encoder so the wire form keeps a
// stable field order. spec.md doesn't require a stable wire order for
// filters (only for the event id hash), so T here uses a plain TagMap
// and a small MarshalJSON/UnmarshalJSON pair that unfolds it into
// "#<letter>" keys, dropping that machinery (see DESIGN.md).
package filter

import (
	"encoding/json"

	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
)

// TagMap holds "#<letter>" predicates, keyed by the bare letter.
type TagMap map[string][]string

// T is a single filter. A zero-value field means "no constraint on this
// dimension"; a present field matches if the event satisfies ANY of the
// listed values.
type T struct {
	IDs     []string     `json:"ids,omitempty"`
	Authors []string     `json:"authors,omitempty"`
	Kinds   []nostr.Kind `json:"kinds,omitempty"`
	Since   *nostr.Timestamp `json:"since,omitempty"`
	Until   *nostr.Timestamp `json:"until,omitempty"`
	Limit   int          `json:"limit,omitempty"`
	Search  string       `json:"search,omitempty"`
	Tags    TagMap       `json:"-"`
}

// Matches reports whether ev satisfies every constraint present in f.
// search is not evaluated here — full-text matching is the store's job
// (spec.md §4.11); Matches only covers the structural fields a
// RelayClient-side subscription can check without an index.
func (f *T) Matches(ev *nostr.Event) bool {
	if f == nil {
		return true
	}
	if len(f.IDs) > 0 && !containsStr(f.IDs, ev.ID) {
		return false
	}
	if len(f.Authors) > 0 && !containsStr(f.Authors, ev.PubKey) {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, ev.Kind) {
		return false
	}
	if f.Since != nil && ev.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && ev.CreatedAt > *f.Until {
		return false
	}
	for letter, values := range f.Tags {
		if !ev.Tags.ContainsAny(letter, values) {
			return false
		}
	}
	return true
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsKind(haystack []nostr.Kind, needle nostr.Kind) bool {
	for _, k := range haystack {
		if k == needle {
			return true
		}
	}
	return false
}

// filterWire is T's JSON shape, with Tags unfolded into "#<letter>" keys
// alongside the fixed fields — the wire form used in REQ messages
// (spec.md §6) and by RelayStore's query path.
type filterWire struct {
	IDs     []string         `json:"ids,omitempty"`
	Authors []string         `json:"authors,omitempty"`
	Kinds   []nostr.Kind     `json:"kinds,omitempty"`
	Since   *nostr.Timestamp `json:"since,omitempty"`
	Until   *nostr.Timestamp `json:"until,omitempty"`
	Limit   int              `json:"limit,omitempty"`
	Search  string           `json:"search,omitempty"`
}

func (f *T) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(filterWire{
		IDs: f.IDs, Authors: f.Authors, Kinds: f.Kinds,
		Since: f.Since, Until: f.Until, Limit: f.Limit, Search: f.Search,
	})
	if err != nil {
		return nil, err
	}
	if len(f.Tags) == 0 {
		return base, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for letter, values := range f.Tags {
		b, err := json.Marshal(values)
		if err != nil {
			return nil, err
		}
		m["#"+letter] = b
	}
	return json.Marshal(m)
}

func (f *T) UnmarshalJSON(data []byte) error {
	var w filterWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	f.IDs, f.Authors, f.Kinds = w.IDs, w.Authors, w.Kinds
	f.Since, f.Until, f.Limit, f.Search = w.Since, w.Until, w.Limit, w.Search

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for key, raw := range m {
		if len(key) != 2 || key[0] != '#' {
			continue
		}
		var values []string
		if err := json.Unmarshal(raw, &values); err != nil {
			return err
		}
		if f.Tags == nil {
			f.Tags = TagMap{}
		}
		f.Tags[key[1:]] = values
	}
	return nil
}
