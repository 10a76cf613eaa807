// Package nostr implements the relay-network event type of spec.md §3: a
// signed JSON object with a content-addressed id and a Schnorr signature.
// It follows the shape of the teacher's pkg/nostr/event package (a plain
// struct, canonical-form hashing, Sign/CheckSignature) but drops the
// teacher's hand-rolled wire/object ordered-map JSON encoder: struct
// field order already gives encoding/json deterministic output here, so
// the generic ordered-object machinery the teacher built for dynamically
// shaped types (like its filter.T tag map) has nothing to do (see
// DESIGN.md).
package nostr

import (
	"encoding/json"
	"fmt"

	"github.com/Hubmakerlabs/relaybridge/pkg/hex"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/minio/sha256-simd"
)

// Event is the primary datatype of the relay network (spec.md §3).
type Event struct {
	ID        string    `json:"id"`
	PubKey    string    `json:"pubkey"`
	CreatedAt Timestamp `json:"created_at"`
	Kind      Kind      `json:"kind"`
	Tags      Tags      `json:"tags"`
	Content   string    `json:"content"`
	Sig       string    `json:"sig"`
}

// canonicalForm returns the JSON array the id hash is computed over:
// [0, pubkey, created_at, kind, tags, content] (spec.md §3's
// canonical_serialization). encoding/json marshals a slice element by
// element in order, and Event's own struct tags already fix its field
// order, so no ordered-map type is needed to get determinism here —
// unlike the teacher's generic object.T, which exists to support
// dynamically-shaped objects (e.g. filter.T's unfolded tag map).
func (e *Event) canonicalForm() []byte {
	arr := []any{0, e.PubKey, e.CreatedAt, e.Kind, e.Tags, e.Content}
	b, _ := json.Marshal(arr)
	return b
}

// IDHash returns the raw SHA-256 hash of the canonical form.
func (e *Event) IDHash() []byte {
	h := sha256.Sum256(e.canonicalForm())
	return h[:]
}

// Filename returns "{id}.json", the swarm object display name for this
// event (spec.md §4.1).
func (e *Event) Filename() string { return e.ID + ".json" }

// CheckSignature verifies Sig against PubKey and the id hash. It returns
// an error only for a structurally invalid pubkey/signature; a
// well-formed but non-matching signature returns (false, nil).
func (e *Event) CheckSignature() (valid bool, err error) {
	pkBytes, err := hex.Dec(e.PubKey)
	if err != nil {
		return false, fmt.Errorf("invalid pubkey hex: %w", err)
	}
	pk, err := schnorr.ParsePubKey(pkBytes)
	if err != nil {
		return false, fmt.Errorf("invalid pubkey: %w", err)
	}
	sigBytes, err := hex.Dec(e.Sig)
	if err != nil {
		return false, fmt.Errorf("invalid signature hex: %w", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false, fmt.Errorf("invalid signature: %w", err)
	}
	return sig.Verify(e.IDHash(), pk), nil
}

// Sign computes ID and Sig from skHex, a 32-byte hex secret key, and
// derives PubKey from it.
func (e *Event) Sign(skHex string) error {
	skBytes, err := hex.Dec(skHex)
	if err != nil || len(skBytes) != 32 {
		return fmt.Errorf("sign: secret key must be 32 bytes hex")
	}
	sk, pk := btcec.PrivKeyFromBytes(skBytes)
	e.PubKey = hex.Enc(schnorr.SerializePubKey(pk))
	id := e.IDHash()
	sig, err := schnorr.Sign(sk, id)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	e.ID = hex.Enc(id)
	e.Sig = hex.Enc(sig.Serialize())
	return nil
}

// Ascending sorts events oldest-first.
type Ascending []*Event

func (a Ascending) Len() int           { return len(a) }
func (a Ascending) Less(i, j int) bool { return a[i].CreatedAt < a[j].CreatedAt }
func (a Ascending) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }

// Descending sorts events newest-first, matching the ordering RelayStore
// query results are required to have (spec.md §4.11).
type Descending []*Event

func (d Descending) Len() int           { return len(d) }
func (d Descending) Less(i, j int) bool { return d[i].CreatedAt > d[j].CreatedAt }
func (d Descending) Swap(i, j int)      { d[i], d[j] = d[j], d[i] }

// Equal does a deep field comparison, used by the codec round-trip
// property test (spec.md §8).
func (e *Event) Equal(o *Event) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.ID != o.ID || e.PubKey != o.PubKey || e.CreatedAt != o.CreatedAt ||
		e.Kind != o.Kind || e.Content != o.Content || e.Sig != o.Sig {
		return false
	}
	if len(e.Tags) != len(o.Tags) {
		return false
	}
	for i := range e.Tags {
		if len(e.Tags[i]) != len(o.Tags[i]) {
			return false
		}
		for j := range e.Tags[i] {
			if e.Tags[i][j] != o.Tags[i][j] {
				return false
			}
		}
	}
	return true
}
