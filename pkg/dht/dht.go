// Package dht implements the BEP-44-style mutable pointer record of
// spec.md §4.4/§6: a signed, monotonically-versioned value stored at
// target = SHA-1(pubkey). No BitTorrent/mainline-DHT library exists
// anywhere in the retrieval pack (see DESIGN.md), so this package
// defines the record format and a Client contract — mirroring the
// context-based PutValue/GetValue shape the dep2p DHT interface uses —
// plus a reference in-memory implementation for tests and for a
// single-process bridge deployment.
package dht

import (
	"context"
	"crypto/sha1"
	"fmt"
	"sync"

	"github.com/Hubmakerlabs/relaybridge/pkg/bencode"
	"github.com/Hubmakerlabs/relaybridge/pkg/errs"
	"github.com/Hubmakerlabs/relaybridge/pkg/hex"
)

// Value is the bencoded payload of a pointer record: an infohash, a
// timestamp, and an optional "new public key" rotation hint (spec.md
// §6: "v as a bencoded dictionary {ih: 20 bytes, ts: integer,
// [npk: 32 bytes]}").
type Value struct {
	InfoHash [20]byte
	TS       int64
	NPK      []byte // 32 bytes if present, else nil
}

func (v Value) bencode() ([]byte, error) {
	d := bencode.Dict{"ih": v.InfoHash[:], "ts": v.TS}
	if len(v.NPK) > 0 {
		d["npk"] = v.NPK
	}
	return bencode.EncodeDict(d)
}

// Record is a signed pointer record, keyed by the 32-byte signing
// public key (spec.md §6: "32-byte k, 64-byte sig, seq as non-negative
// integer, v as a bencoded dictionary").
type Record struct {
	K   []byte // 32-byte public key
	Seq int64
	V   Value
	Sig []byte // 64-byte signature over SignedPayload()
}

// Target returns SHA-1(K), the DHT key this record is stored under.
// spec.md §9 flags an unhashed-copy variant seen in one code path as a
// bug; this package follows canonical BEP-44 and always hashes.
func Target(pubKey []byte) [20]byte {
	return sha1.Sum(pubKey)
}

// SignedPayload returns the bytes a pointer record's signature covers:
// the bencoded concatenation "3:seqi{seq}e1:v{v_bencoded}" (spec.md §6).
func (r *Record) SignedPayload() []byte {
	vEncoded, err := r.V.bencode()
	if err != nil {
		// Value only ever holds fixed-shape byte/int fields, so encoding
		// cannot fail in practice; treat it as a programmer error.
		panic(fmt.Sprintf("dht: value encoding failed: %v", err))
	}
	return bencode.EncodeSeqV(uint64(r.Seq), vEncoded)
}

// Signer produces a signature over arbitrary bytes, satisfied by
// identity.T.Sign (spec.md §4.2: "signing must be synchronous and
// side-effect-free").
type Signer func(msg []byte) []byte

// NewRecord builds and signs a pointer record for seq/value under the
// given public key.
func NewRecord(pubKey []byte, seq int64, v Value, sign Signer) *Record {
	r := &Record{K: pubKey, Seq: seq, V: v}
	r.Sig = sign(r.SignedPayload())
	return r
}

// Verifier checks a signature against a raw public key, satisfied by
// identity.Verify (adapted to take raw bytes rather than hex).
type Verifier func(pubKey, msg, sig []byte) bool

// Client is the DHT pointer store contract FeedManager depends on
// (spec.md §4.4). A Get immediately following a successful Put from
// the same process must observe it. A Put is not idempotent: repeating
// one with the same seq is rejected as stale.
type Client interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, target [20]byte) (*Record, bool, error)
}

// memoryClient is a single-process reference Client, used by tests and
// by deployments that don't need real mainline-DHT reach. It validates
// records server-side the way a real BEP-44 node would: a Put is
// rejected if it regresses seq for an already-stored target.
type memoryClient struct {
	mu       sync.Mutex
	records  map[[20]byte]*Record
	verify   Verifier
}

// NewMemoryClient returns a reference Client backed by an in-process
// map. verify may be nil to skip signature checking (tests only).
func NewMemoryClient(verify Verifier) Client {
	return &memoryClient{records: make(map[[20]byte]*Record), verify: verify}
}

func (c *memoryClient) Put(_ context.Context, rec *Record) error {
	if c.verify != nil && !c.verify(rec.K, rec.SignedPayload(), rec.Sig) {
		return errs.NewValidationError("dht: record signature does not verify")
	}
	target := Target(rec.K)
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.records[target]; ok && rec.Seq <= existing.Seq {
		return fmt.Errorf("dht: stale seq %d, current seq %d", rec.Seq, existing.Seq)
	}
	c.records[target] = rec
	return nil
}

func (c *memoryClient) Get(_ context.Context, target [20]byte) (*Record, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[target]
	return rec, ok, nil
}

// FormatTarget renders a target as lowercase hex, used in logging.
func FormatTarget(target [20]byte) string { return hex.Enc(target[:]) }
