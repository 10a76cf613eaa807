// Package coordinator implements spec.md §4.8, the TransportCoordinator:
// top-level orchestration of publish, reseed, media fetch, key
// resolution and web-of-trust sync across RelayClient, SwarmClient,
// FeedManager and WoTGraph.
package coordinator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Hubmakerlabs/relaybridge/pkg/errs"
	"github.com/Hubmakerlabs/relaybridge/pkg/eventcodec"
	"github.com/Hubmakerlabs/relaybridge/pkg/feedindex"
	"github.com/Hubmakerlabs/relaybridge/pkg/feedmanager"
	"github.com/Hubmakerlabs/relaybridge/pkg/feedtracker"
	"github.com/Hubmakerlabs/relaybridge/pkg/identity"
	"github.com/Hubmakerlabs/relaybridge/pkg/log"
	"github.com/Hubmakerlabs/relaybridge/pkg/magnet"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr/filter"
	"github.com/Hubmakerlabs/relaybridge/pkg/relayclient"
	"github.com/Hubmakerlabs/relaybridge/pkg/swarm"
	"github.com/Hubmakerlabs/relaybridge/pkg/wot"
)

var lg = log.GetLogger()

// PublishResult is publish's return value (spec.md §4.8 step 4).
type PublishResult struct {
	Magnet       *magnet.T
	MediaMagnets []*magnet.T
	RelayStatus  relayclient.Status
}

// T is the TransportCoordinator. FeedManager and WoTGraph are optional;
// operations that need them fail or no-op when absent, per spec.md §4.8.
type T struct {
	RelayClient *relayclient.Client
	SwarmClient swarm.Client
	FeedManager *feedmanager.T
	WoTGraph    *wot.T
	FeedTracker *feedtracker.T
	Identity    *identity.T
	RelayPubKey string

	keyCache    *lru.Cache[string, string]
	magnetCache *lru.Cache[string, *magnet.T]
	mu          sync.Mutex
}

// New builds a TransportCoordinator around its required collaborators.
// feedManager, wotGraph and feedTracker may be nil.
func New(rc *relayclient.Client, sc swarm.Client, fm *feedmanager.T, wg *wot.T, ft *feedtracker.T, id *identity.T, relayPubKey string) *T {
	keyCache, _ := lru.New[string, string](1024)
	magnetCache, _ := lru.New[string, *magnet.T](1024)
	return &T{
		RelayClient: rc, SwarmClient: sc, FeedManager: fm, WoTGraph: wg,
		FeedTracker: ft, Identity: id, RelayPubKey: relayPubKey,
		keyCache: keyCache, magnetCache: magnetCache,
	}
}

// Publish implements spec.md §4.8's deferred-seeding publish: relay ACK
// gates all swarm writes. Media is seeded in parallel after the event
// itself.
func (t *T) Publish(ctx context.Context, ev *nostr.Event, media []swarm.Object) (*PublishResult, error) {
	status, err := t.RelayClient.Publish(ctx, ev)
	if err != nil {
		return nil, errs.AsTransport(errs.Nostr, "publish", err)
	}

	encoded, err := eventcodec.Encode(ev)
	if err != nil {
		return nil, err
	}
	eventMagnet, err := t.SwarmClient.Seed(ctx, swarm.Object{Buffer: encoded, Filename: eventcodec.Filename(ev)})
	if err != nil {
		return nil, errs.AsTransport(errs.BT, "publish: seed event", err)
	}

	mediaMagnets := make([]*magnet.T, len(media))
	if len(media) > 0 {
		var wg sync.WaitGroup
		var mu sync.Mutex
		var firstErr error
		for i, m := range media {
			wg.Add(1)
			go func(i int, m swarm.Object) {
				defer wg.Done()
				mm, err := t.SwarmClient.Seed(ctx, m)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					return
				}
				mediaMagnets[i] = mm
			}(i, m)
		}
		wg.Wait()
		if firstErr != nil {
			return nil, errs.AsTransport(errs.BT, "publish: seed media", firstErr)
		}
	}

	return &PublishResult{Magnet: eventMagnet, MediaMagnets: mediaMagnets, RelayStatus: status}, nil
}

// PublishP2P seeds ev's buffer and folds it into the feed index (spec.md
// §4.8). Fails if FeedManager is absent.
func (t *T) PublishP2P(ctx context.Context, ev *nostr.Event) (*magnet.T, error) {
	if t.FeedManager == nil {
		return nil, errs.NewValidationError("publish_p2p: no FeedManager configured")
	}
	encoded, err := eventcodec.Encode(ev)
	if err != nil {
		return nil, err
	}
	eventMagnet, err := t.SwarmClient.Seed(ctx, swarm.Object{Buffer: encoded, Filename: eventcodec.Filename(ev)})
	if err != nil {
		return nil, errs.AsTransport(errs.BT, "publish_p2p: seed event", err)
	}
	result, err := t.FeedManager.UpdateFeed(ctx, ev, eventMagnet, nil)
	if err != nil {
		return nil, err
	}
	return result.Magnet, nil
}

// SubscribeP2P implements spec.md §4.8: discover transportPubKeyHex's
// feed, fetch its index, and return the decoded entries.
func (t *T) SubscribeP2P(ctx context.Context, transportPubKeyHex, relayPubKeyHex string) ([]feedindex.Entry, error) {
	if t.FeedTracker == nil {
		return nil, nil
	}
	m, ok := t.FeedTracker.Discover(ctx, transportPubKeyHex, relayPubKeyHex)
	if !ok {
		return nil, nil
	}
	buf, err := t.SwarmClient.Fetch(ctx, m, 5*time.Second)
	if err != nil {
		return nil, errs.AsTransport(errs.BT, "subscribe_p2p: fetch index", err)
	}
	idx := feedindex.FromBytes(buf, feedindex.DefaultLimit)
	return idx.Items, nil
}

// ReseedEvent implements spec.md §4.8: cache hit, bt-tag shortcut, or
// a full seed+update_feed, optionally run in the background.
func (t *T) ReseedEvent(ctx context.Context, ev *nostr.Event, background bool) (string, error) {
	if m, ok := t.magnetCache.Get(ev.ID); ok {
		return m.String(), nil
	}
	if btTag := ev.Tags.GetFirst("bt"); btTag != nil && btTag.Value() != "" {
		if m, err := magnet.Decode(btTag.Value()); err == nil {
			t.magnetCache.Add(ev.ID, m)
			return m.String(), nil
		}
	}

	doReseed := func() (*magnet.T, error) {
		encoded, err := eventcodec.Encode(ev)
		if err != nil {
			return nil, err
		}
		m, err := t.SwarmClient.Seed(ctx, swarm.Object{Buffer: encoded, Filename: eventcodec.Filename(ev)})
		if err != nil {
			return nil, errs.AsTransport(errs.BT, "reseed_event", err)
		}
		if t.FeedManager != nil {
			if _, err := t.FeedManager.UpdateFeed(ctx, ev, m, nil); err != nil {
				lg.W.F("coordinator: reseed_event update_feed failed for %s: %v", ev.ID, err)
			}
		}
		t.magnetCache.Add(ev.ID, m)
		return m, nil
	}

	if background {
		go func() {
			if _, err := doReseed(); err != nil {
				lg.W.F("coordinator: background reseed failed for %s: %v", ev.ID, err)
			}
		}()
		return "queued:" + ev.ID, nil
	}
	m, err := doReseed()
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

// FetchMedia implements spec.md §4.8's BT-then-HTTP fallback order.
func (t *T) FetchMedia(ctx context.Context, ev *nostr.Event) ([]byte, error) {
	if btTag := ev.Tags.GetFirst("bt"); btTag != nil && btTag.Value() != "" {
		if m, err := magnet.Decode(btTag.Value()); err == nil {
			if buf, err := t.SwarmClient.Fetch(ctx, m, 5*time.Second); err == nil {
				return buf, nil
			}
		}
	}
	for _, name := range []string{"url", "image", "video"} {
		if tag := ev.Tags.GetFirst(name); tag != nil && tag.Value() != "" {
			if buf, err := fetchHTTP(ctx, tag.Value()); err == nil {
				return buf, nil
			}
		}
	}
	return nil, errs.NewTransportError(errs.Core, "fetch_media", fmt.Errorf("no usable media reference on event %s", ev.ID))
}

// ResolveTransportKey implements spec.md §4.8's identity resolution:
// key cache, then a one-shot relay subscription for the attestation
// event.
func (t *T) ResolveTransportKey(ctx context.Context, relayPubKeyHex string) (string, bool) {
	if pk, ok := t.keyCache.Get(relayPubKeyHex); ok {
		return pk, true
	}
	f := &filter.T{
		Authors: []string{relayPubKeyHex},
		Kinds:   []nostr.Kind{nostr.AppSpecificData},
		Tags:    filter.TagMap{"d": {identity.IdentityDTag}},
		Limit:   1,
	}
	ev, ok := t.RelayClient.AwaitEvent(ctx, f, 5*time.Second, func(ev *nostr.Event) bool {
		return len(ev.Content) == 64
	})
	if !ok {
		return "", false
	}
	t.keyCache.Add(relayPubKeyHex, ev.Content)
	return ev.Content, true
}

// BootstrapWoT implements spec.md §4.8: subscribe to the peer's feed,
// find its newest contact list, and feed it into the WoT graph at
// degree 1.
func (t *T) BootstrapWoT(ctx context.Context, transportPubKeyHex, relayPubKeyHex string) error {
	return t.bootstrapWoTAt(ctx, transportPubKeyHex, relayPubKeyHex, 1)
}

// bootstrapWoTAt is BootstrapWoT with the follows of relayPubKeyHex
// added to the WoT graph at the given degree.
func (t *T) bootstrapWoTAt(ctx context.Context, transportPubKeyHex, relayPubKeyHex string, degree int) error {
	if t.WoTGraph == nil {
		return errs.NewValidationError("bootstrap_wot: no WoTGraph configured")
	}
	entries, err := t.SubscribeP2P(ctx, transportPubKeyHex, relayPubKeyHex)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Kind != nostr.ContactList {
			continue
		}
		m, err := magnet.Decode(entry.Magnet)
		if err != nil {
			continue
		}
		buf, err := t.SwarmClient.Fetch(ctx, m, 5*time.Second)
		if err != nil {
			continue
		}
		ev, err := eventcodec.Decode(buf)
		if err != nil {
			continue
		}
		t.WoTGraph.ParseContactList(ev, degree)
		return nil
	}
	return nil
}

// SyncWoTRecursive implements spec.md §4.8: for each degree up to
// MaxDegree-1, concurrently bootstrap every node at that degree to
// populate the next one.
func (t *T) SyncWoTRecursive(ctx context.Context) {
	if t.WoTGraph == nil {
		return
	}
	for d := 1; d < t.WoTGraph.MaxDegree; d++ {
		pubkeys := t.WoTGraph.PubKeysAt(d)
		var wg sync.WaitGroup
		for _, pk := range pubkeys {
			wg.Add(1)
			go func(pk string) {
				defer wg.Done()
				transportPK, _ := t.ResolveTransportKey(ctx, pk)
				if err := t.bootstrapWoTAt(ctx, transportPK, pk, d+1); err != nil {
					lg.D.F("coordinator: sync_wot_recursive degree %d node %s: %v", d, pk, err)
				}
			}(pk)
		}
		wg.Wait()
	}
}

// SubscribeFollowsP2P implements spec.md §4.8: resolve every WoT member
// to a magnet, union their index entries, sorted newest-first.
func (t *T) SubscribeFollowsP2P(ctx context.Context) []feedindex.Entry {
	if t.WoTGraph == nil {
		return nil
	}
	var all []feedindex.Entry
	for pk := range t.WoTGraph.Snapshot() {
		transportPK, _ := t.ResolveTransportKey(ctx, pk)
		entries, err := t.SubscribeP2P(ctx, transportPK, pk)
		if err != nil {
			continue
		}
		all = append(all, entries...)
	}
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j-1].TS < all[j].TS; j-- {
			all[j-1], all[j] = all[j], all[j-1]
		}
	}
	return all
}

// HandleIncomingEvent implements spec.md §4.8: reseed in the background
// only if the author is a known WoT member.
func (t *T) HandleIncomingEvent(ctx context.Context, ev *nostr.Event) {
	if t.WoTGraph == nil || !t.WoTGraph.IsFollowing(ev.PubKey) {
		return
	}
	if _, err := t.ReseedEvent(ctx, ev, true); err != nil {
		lg.D.F("coordinator: handle_incoming_event reseed failed for %s: %v", ev.ID, err)
	}
}

func fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("not an http url: %s", url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
