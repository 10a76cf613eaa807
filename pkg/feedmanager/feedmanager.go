// Package feedmanager implements spec.md §4.4: the component owning one
// IdentityStore reference and one FeedIndex, responsible for keeping
// the DHT pointer record and the feed index in sync.
package feedmanager

import (
	"context"
	"time"

	"github.com/Hubmakerlabs/relaybridge/pkg/dht"
	"github.com/Hubmakerlabs/relaybridge/pkg/errs"
	"github.com/Hubmakerlabs/relaybridge/pkg/feedindex"
	"github.com/Hubmakerlabs/relaybridge/pkg/hex"
	"github.com/Hubmakerlabs/relaybridge/pkg/identity"
	"github.com/Hubmakerlabs/relaybridge/pkg/log"
	"github.com/Hubmakerlabs/relaybridge/pkg/magnet"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
)

var lg = log.GetLogger()

// SignBridge signs an unsigned bridge-discovery event with the relay
// key, returning the signed event.
type SignBridge func(*nostr.Event) (*nostr.Event, error)

// BridgeDTag is the d-tag value used on bridge discovery events
// (spec.md §3).
const BridgeDTag = "nostr-over-bt-feed"

// UpdateResult is update_feed's return value (spec.md §4.4 step 5).
type UpdateResult struct {
	Magnet      *magnet.T
	BridgeEvent *nostr.Event // nil unless sign_bridge was supplied and a tracker is configured
}

// T owns one identity and one feed index, plus the DHT client and
// swarm seeder it needs to publish pointer updates.
type T struct {
	Identity *identity.T
	Index    *feedindex.T
	DHT      dht.Client
	Seed     func(ctx context.Context, buf []byte, filename string) (*magnet.T, error)
	Trackers []string

	seq int64
}

// New builds a FeedManager around an identity, a bounded feed index,
// a DHT client, and a seed function (normally swarm.Client.Seed).
func New(id *identity.T, indexLimit int, dhtClient dht.Client, seed func(ctx context.Context, buf []byte, filename string) (*magnet.T, error)) *T {
	return &T{Identity: id, Index: feedindex.New(indexLimit), DHT: dhtClient, Seed: seed, seq: 1}
}

// SyncSequence resolves the manager's own pointer record and, if one
// exists, sets seq to one past the remote's (spec.md §4.4). Absence or
// error leaves seq unchanged.
func (t *T) SyncSequence(ctx context.Context) int64 {
	rec, ok, err := t.ResolveFeedPointer(ctx, t.Identity.PublicKeyHex())
	if err != nil {
		lg.W.F("feedmanager: sync_sequence: resolve failed: %v", err)
		return t.seq
	}
	if ok {
		t.seq = rec.Seq + 1
	}
	return t.seq
}

// UpdateFeed runs spec.md §4.4's five-step update_feed flow: add the
// event to the index, seed the serialized index, publish its infohash
// as the new pointer value, and (optionally) build a signed bridge
// discovery event.
func (t *T) UpdateFeed(ctx context.Context, ev *nostr.Event, eventMagnet *magnet.T, signBridge SignBridge) (*UpdateResult, error) {
	t.Index.Add(ev, eventMagnet.String())

	indexBytes, err := t.Index.ToBytes()
	if err != nil {
		return nil, errs.NewInvalidEvent("feedmanager: failed to serialize index", err)
	}
	indexMagnet, err := t.Seed(ctx, indexBytes, "index.json")
	if err != nil {
		return nil, errs.AsTransport(errs.BT, "update_feed: seed index", err)
	}

	infoHash, err := indexMagnet.InfoHashBytes()
	if err != nil {
		return nil, errs.NewInvalidEvent("feedmanager: malformed index magnet", err)
	}
	if _, err := t.PublishFeedPointer(ctx, infoHash, 3); err != nil {
		return nil, err
	}

	result := &UpdateResult{Magnet: indexMagnet}
	if signBridge != nil && len(t.Trackers) > 0 {
		unsigned := &nostr.Event{
			CreatedAt: nostr.Now(),
			Kind:      nostr.AppSpecificData,
			Tags:      nostr.Tags{{"d", BridgeDTag}},
			Content:   indexMagnet.String(),
		}
		signed, err := signBridge(unsigned)
		if err != nil {
			return nil, errs.NewInvalidEvent("feedmanager: bridge event signing failed", err)
		}
		result.BridgeEvent = signed
	}
	return result, nil
}

// PublishFeedPointer builds and PUTs a signed pointer record for
// infoHash (spec.md §4.4): on failure it waits 2s and retries, bumping
// seq each attempt so the DHT never sees a stale write twice.
func (t *T) PublishFeedPointer(ctx context.Context, infoHash [20]byte, retries int) (string, error) {
	pubKeyHex := t.Identity.PublicKeyHex()
	pubKeyBytes, err := hex.Dec(pubKeyHex)
	if err != nil {
		return "", errs.NewInvalidEvent("feedmanager: invalid own pubkey", err)
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		seq := t.seq
		t.seq++
		rec := dht.NewRecord(pubKeyBytes, seq, dht.Value{InfoHash: infoHash, TS: time.Now().Unix()}, t.Identity.Sign)
		if err := t.DHT.Put(ctx, rec); err != nil {
			lastErr = err
			lg.W.F("feedmanager: publish_feed_pointer attempt %d failed: %v", attempt, err)
			if attempt < retries {
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return "", errs.AsTransport(errs.BT, "publish_feed_pointer", ctx.Err())
				}
			}
			continue
		}
		return pubKeyHex, nil
	}
	return "", errs.AsTransport(errs.BT, "publish_feed_pointer", lastErr)
}

// ResolvedPointer is resolve_feed_pointer's decoded result (spec.md
// §4.4).
type ResolvedPointer struct {
	InfoHash [20]byte
	TS       int64
	Seq      int64
	NPK      []byte
}

// ResolveFeedPointer GETs the pointer record at SHA-1(pubkey) (spec.md
// §4.4). ok is false when no record exists.
func (t *T) ResolveFeedPointer(ctx context.Context, pubKeyHex string) (ResolvedPointer, bool, error) {
	pubKeyBytes, err := hex.Dec(pubKeyHex)
	if err != nil {
		return ResolvedPointer{}, false, errs.NewInvalidEvent("feedmanager: invalid pubkey", err)
	}
	rec, ok, err := t.DHT.Get(ctx, dht.Target(pubKeyBytes))
	if err != nil {
		return ResolvedPointer{}, false, errs.AsTransport(errs.BT, "resolve_feed_pointer", err)
	}
	if !ok {
		return ResolvedPointer{}, false, nil
	}
	return ResolvedPointer{InfoHash: rec.V.InfoHash, TS: rec.V.TS, Seq: rec.Seq, NPK: rec.V.NPK}, true, nil
}
