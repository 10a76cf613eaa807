// Package store implements the RelayStore contract of spec.md §4.11: a
// durable event store with replaceable-kind insert semantics and a
// filter-based query path, backed by dgraph-io/badger/v4.
//
// The teacher's pkg/relay/eventstore/badger package gets a byte-exact
// key layout and a binary event encoding by hand-rolling per-field
// prefix bytes, a priority-queue merge across parallel index scans, and
// a garbage collector. That machinery is sized for a general-purpose
// relay serving arbitrary client queries at scale; this bridge's store
// only ever serves RelayStore's fixed filter shape (spec.md §4.11), so
// this package keeps the teacher's core ideas — badger transactions,
// prefix-scanned secondary indexes, reassembling full events from an id
// index — but stores full JSON blobs rather than a custom binary codec,
// and intersects index scans in memory rather than merging with a heap
// (see DESIGN.md).
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/Hubmakerlabs/relaybridge/pkg/errs"
	"github.com/Hubmakerlabs/relaybridge/pkg/log"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr/filter"
)

var lg = log.GetLogger()

// Key prefixes. "e:" holds the canonical JSON blob; the rest are
// secondary indexes over inverted timestamps, so a forward scan of a
// prefix visits events newest-first without needing badger's reverse
// iterator.
const (
	prefixEvent  = "e:"  // e:<id> -> JSON blob
	prefixByKind = "ik:" // ik:<kind4>:<invts8>:<id> -> nil
	prefixByAuth = "ia:" // ia:<pubkey>:<invts8>:<id> -> nil
	prefixByTag  = "it:" // it:<letter>:<value>:<invts8>:<id> -> nil
	prefixByFTS  = "if:" // if:<token>:<invts8>:<id> -> nil
	prefixRepl   = "ir:" // ir:<pubkey>:<kind4>[:<dtag>] -> "<invts decimal>:<id>", most-recent pointer for replace checks
)

// T is a badger-backed RelayStore.
type T struct {
	db *badger.DB
}

// Open opens (creating if absent) a badger database at path.
func Open(path string) (*T, error) {
	opts := badger.DefaultOptions(path)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &T{db: db}, nil
}

// Close releases the underlying badger database.
func (t *T) Close() error { return t.db.Close() }

func invTS(ts nostr.Timestamp) uint64 { return ^uint64(ts) }

func kindBytes(k nostr.Kind) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(k))
	return b
}

func tsBytes(inv uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, inv)
	return b
}

func replKey(pubkey string, kind nostr.Kind, dTag string) []byte {
	if dTag != "" {
		return []byte(prefixRepl + pubkey + ":" + string(kindBytes(kind)) + ":" + dTag)
	}
	return []byte(prefixRepl + pubkey + ":" + string(kindBytes(kind)))
}

// SaveResult mirrors spec.md §4.11's "{changes: inserted_row_count}".
type SaveResult struct {
	Changes int
}

// SaveEvent implements spec.md §4.11's save_event: replaceable/
// parameterized-replaceable supersession, kind-5 deletion cascade, then
// insert-or-ignore with tag indexing.
func (t *T) SaveEvent(ev *nostr.Event) (SaveResult, error) {
	var changes int
	err := t.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(prefixEvent + ev.ID)); err == nil {
			return nil // already stored, insert-or-ignore
		}

		switch {
		case ev.Kind.IsParameterizedReplaceable():
			dTag := ev.Tags.GetFirst("d").Value()
			newer, err := supersede(txn, replKey(ev.PubKey, ev.Kind, dTag), ev)
			if err != nil || !newer {
				return err
			}
		case ev.Kind.IsReplaceable():
			newer, err := supersede(txn, replKey(ev.PubKey, ev.Kind, ""), ev)
			if err != nil || !newer {
				return err
			}
		case ev.Kind == nostr.Deletion:
			if err := deleteTargets(txn, ev); err != nil {
				return err
			}
		}

		if err := writeEvent(txn, ev); err != nil {
			return err
		}
		changes = 1
		return nil
	})
	if err != nil {
		return SaveResult{}, errs.NewTransportError(errs.Core, "save_event", err)
	}
	return SaveResult{Changes: changes}, nil
}

// supersede deletes the event currently pointed to by key (if any, and
// older than ev) before the new event is written, and advances the
// pointer to ev. It implements the "delete rows where pubkey==new.pubkey
// AND kind==new.kind [AND d-tag matches] AND created_at < new.created_at"
// rule (spec.md §4.11). It reports false, leaving the store untouched,
// when the stored event for key is not older than ev, so the caller
// skips writing ev.
func supersede(txn *badger.Txn, key []byte, ev *nostr.Event) (bool, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return true, txn.Set(key, []byte(fmt.Sprintf("%d:%s", invTS(ev.CreatedAt), ev.ID)))
	}
	if err != nil {
		return false, err
	}
	var prevInv uint64
	var prevID string
	val, err := item.ValueCopy(nil)
	if err != nil {
		return false, err
	}
	if _, err := fmt.Sscanf(string(val), "%d:%s", &prevInv, &prevID); err != nil {
		return false, err
	}
	prevTS := nostr.Timestamp(^prevInv)
	if prevTS >= ev.CreatedAt {
		return false, nil // existing row is not older, ev is ignored
	}
	if err := removeEvent(txn, prevID); err != nil {
		return false, err
	}
	return true, txn.Set(key, []byte(fmt.Sprintf("%d:%s", invTS(ev.CreatedAt), ev.ID)))
}

// deleteTargets implements kind-5's cascade: delete every event id named
// by an "e" tag, scoped to the deletion event's own author (spec.md
// §4.11).
func deleteTargets(txn *badger.Txn, ev *nostr.Event) error {
	for _, id := range ev.Tags.GetAll("e") {
		targetID := id.Value()
		if targetID == "" {
			continue
		}
		item, err := txn.Get([]byte(prefixEvent + targetID))
		if err == badger.ErrKeyNotFound {
			continue
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		target, err := decodeEvent(raw)
		if err != nil {
			continue
		}
		if target.PubKey != ev.PubKey {
			continue
		}
		if err := removeEvent(txn, targetID); err != nil {
			return err
		}
	}
	return nil
}

func removeEvent(txn *badger.Txn, id string) error {
	item, err := txn.Get([]byte(prefixEvent + id))
	if err == badger.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	ev, err := decodeEvent(raw)
	if err != nil {
		return txn.Delete([]byte(prefixEvent + id))
	}
	for _, key := range indexKeysForEvent(ev) {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return txn.Delete([]byte(prefixEvent + id))
}

func writeEvent(txn *badger.Txn, ev *nostr.Event) error {
	raw, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := txn.Set([]byte(prefixEvent+ev.ID), raw); err != nil {
		return err
	}
	for _, key := range indexKeysForEvent(ev) {
		if err := txn.Set(key, nil); err != nil {
			return err
		}
	}
	return nil
}

// indexKeysForEvent returns every secondary index key ev should appear
// under: by-kind, by-author, by-tag (single-char names and "d"), and a
// full-text token index over content.
func indexKeysForEvent(ev *nostr.Event) [][]byte {
	inv := tsBytes(invTS(ev.CreatedAt))
	var keys [][]byte
	keys = append(keys, []byte(prefixByKind+string(kindBytes(ev.Kind))+":"+string(inv)+":"+ev.ID))
	keys = append(keys, []byte(prefixByAuth+ev.PubKey+":"+string(inv)+":"+ev.ID))
	for _, tag := range ev.Tags {
		name := tag.Name()
		if name == "d" || len(name) == 1 {
			keys = append(keys, []byte(prefixByTag+name+":"+tag.Value()+":"+string(inv)+":"+ev.ID))
		}
	}
	for _, token := range tokenize(ev.Content) {
		keys = append(keys, []byte(prefixByFTS+token+":"+string(inv)+":"+ev.ID))
	}
	return keys
}

func tokenize(content string) []string {
	fields := strings.Fields(strings.ToLower(content))
	seen := make(map[string]struct{}, len(fields))
	var out []string
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func encodeEvent(ev *nostr.Event) ([]byte, error) {
	return json.Marshal(ev)
}

func decodeEvent(raw []byte) (*nostr.Event, error) {
	var ev nostr.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// QueryEvents implements spec.md §4.11's query_events: ids, authors,
// kinds, since, until, limit, search and #X tag predicates, returned
// created_at descending.
func (t *T) QueryEvents(f *filter.T) ([]*nostr.Event, error) {
	var ids []string
	err := t.db.View(func(txn *badger.Txn) error {
		switch {
		case len(f.IDs) > 0:
			ids = f.IDs
		case f.Search != "" && len(tokenize(f.Search)) > 0:
			ids = scanPrefix(txn, prefixByFTS+tokenize(f.Search)[0]+":")
		case len(f.Tags) > 0:
			for letter, values := range f.Tags {
				for _, v := range values {
					ids = append(ids, scanPrefix(txn, prefixByTag+letter+":"+v+":")...)
				}
			}
		case len(f.Authors) > 0:
			for _, a := range f.Authors {
				ids = append(ids, scanPrefix(txn, prefixByAuth+a+":")...)
			}
		case len(f.Kinds) > 0:
			for _, k := range f.Kinds {
				ids = append(ids, scanPrefix(txn, prefixByKind+string(kindBytes(k))+":")...)
			}
		default:
			ids = scanPrefix(txn, prefixEvent)
		}
		return nil
	})
	if err != nil {
		return nil, errs.NewTransportError(errs.Core, "query_events", err)
	}

	var out []*nostr.Event
	seen := make(map[string]struct{}, len(ids))
	err = t.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			item, err := txn.Get([]byte(prefixEvent + id))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			ev, err := decodeEvent(raw)
			if err != nil {
				lg.W.F("store: dropping unparseable event %s: %v", id, err)
				continue
			}
			if !f.Matches(ev) {
				continue
			}
			if f.Search != "" && !strings.Contains(strings.ToLower(ev.Content), strings.ToLower(f.Search)) {
				continue
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, errs.NewTransportError(errs.Core, "query_events", err)
	}

	sortDescending(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// scanPrefix collects the trailing "<id>" component of every key under
// prefix, in key order — which, thanks to the inverted-timestamp
// encoding, is already created_at descending.
func scanPrefix(txn *badger.Txn, prefix string) []string {
	var out []string
	it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
	defer it.Close()
	for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
		key := string(it.Item().Key())
		if prefix == prefixEvent {
			out = append(out, strings.TrimPrefix(key, prefixEvent))
			continue
		}
		idx := strings.LastIndex(key, ":")
		if idx >= 0 && idx+1 < len(key) {
			out = append(out, key[idx+1:])
		}
	}
	return out
}

func sortDescending(evs []*nostr.Event) {
	for i := 1; i < len(evs); i++ {
		for j := i; j > 0 && evs[j-1].CreatedAt < evs[j].CreatedAt; j-- {
			evs[j-1], evs[j] = evs[j], evs[j-1]
		}
	}
}
