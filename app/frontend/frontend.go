// Package frontend implements spec.md §4.12, the Relay Frontend: the
// websocket ingest/query loop that accepts EVENT/REQ/CLOSE frames,
// pushes accepted events through SeedingQueue, and streams query
// results back to subscribers. It also carries the NIP-11 info
// document and the pubkey allow-list ACL (SPEC_FULL.md §4), following
// the teacher's app/listener.go (per-connection subscription map),
// app/handlenip11.go (info document handler) and app/acl.go (allow-list
// checking), simplified from the teacher's full role-based ACL to the
// flat allow-list spec.md's ALLOWED_PUBKEYS env var describes.
package frontend

import (
	"context"
	"encoding/json"
	"hash/maphash"
	"net/http"
	"unsafe"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/puzpuzpuz/xsync/v2"

	"github.com/Hubmakerlabs/relaybridge/pkg/log"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr/filter"
	"github.com/Hubmakerlabs/relaybridge/pkg/seedqueue"
	"github.com/Hubmakerlabs/relaybridge/pkg/store"
)

// hashConnState hashes a *connState by its pointer value for use as an
// xsync.MapOf key (connState identity is pointer identity).
func hashConnState(_ maphash.Seed, cs *connState) uint64 {
	return uint64(uintptr(unsafe.Pointer(cs)))
}

var lg = log.GetLogger()

// Info is the NIP-11 relay information document (spec.md §6).
type Info struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	Pubkey             string `json:"pubkey"`
	Contact            string `json:"contact"`
	SupportedNIPs      []int  `json:"supported_nips"`
	Software           string `json:"software"`
	Version            string `json:"version"`
	Limitation         Limitation `json:"limitation"`
}

// Limitation is the subset of NIP-11's limitation object spec.md §6
// names explicitly.
type Limitation struct {
	SearchConfig    string `json:"search_config,omitempty"`
	PaymentRequired bool   `json:"payment_required"`
}

// AllowList is a pubkey allow-list ACL (SPEC_FULL.md §4): when non-nil
// and non-empty, only listed hex pubkeys may submit events.
type AllowList struct {
	allowed map[string]struct{}
}

// NewAllowList builds an AllowList from a set of hex pubkeys. An empty
// list disables the check (every pubkey is allowed).
func NewAllowList(pubkeys []string) *AllowList {
	if len(pubkeys) == 0 {
		return &AllowList{}
	}
	m := make(map[string]struct{}, len(pubkeys))
	for _, pk := range pubkeys {
		m[pk] = struct{}{}
	}
	return &AllowList{allowed: m}
}

// Check reports whether pubkeyHex may publish. An empty/nil allow-list
// permits everyone.
func (a *AllowList) Check(pubkeyHex string) bool {
	if a == nil || len(a.allowed) == 0 {
		return true
	}
	_, ok := a.allowed[pubkeyHex]
	return ok
}

type subscription struct {
	filters []*filter.T
	cancel  context.CancelFunc
}

type connState struct {
	subs *xsync.MapOf[string, *subscription]
	send chan []byte
}

// T is the relay frontend: a websocket server plus its HTTP NIP-11
// endpoint, backed by a RelayStore and a SeedingQueue.
type T struct {
	Store     *store.T
	SeedQueue *seedqueue.T
	AllowList *AllowList
	Info      Info

	// OnEvent, when set, is invoked after every newly-stored event is
	// broadcast to subscribers (spec.md §4.8's WoT-gated reseed hook).
	// Left nil, no coordinator is wired and this is a no-op.
	OnEvent func(ctx context.Context, ev *nostr.Event)

	conns *xsync.MapOf[*connState, struct{}]
}

// New builds a frontend around st/sq, serving info as the NIP-11 doc.
func New(st *store.T, sq *seedqueue.T, allow *AllowList, info Info) *T {
	return &T{
		Store: st, SeedQueue: sq, AllowList: allow, Info: info,
		conns: xsync.NewTypedMapOf[*connState, struct{}](hashConnState),
	}
}

// ServeNIP11 answers a relay-info HTTP request (spec.md §6).
func (t *T) ServeNIP11(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/nostr+json")
	if err := json.NewEncoder(w).Encode(t.Info); err != nil {
		lg.E.F("frontend: failed to encode NIP-11 doc: %v", err)
	}
}

// ServeWebSocket upgrades r to a websocket and runs the connection's
// read loop until it disconnects (spec.md §4.12).
func (t *T) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		lg.E.F("frontend: upgrade failed: %v", err)
		return
	}
	cs := &connState{subs: xsync.NewMapOf[*subscription](), send: make(chan []byte, 64)}
	t.conns.Store(cs, struct{}{})
	defer func() {
		cs.subs.Range(func(_ string, sub *subscription) bool {
			sub.cancel()
			return true
		})
		t.conns.Delete(cs)
		conn.Close()
	}()

	go func() {
		for msg := range cs.send {
			if err := wsutil.WriteServerText(conn, msg); err != nil {
				return
			}
		}
	}()
	defer close(cs.send)

	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}
		t.handleFrame(cs, data)
	}
}

func (t *T) handleFrame(cs *connState, data []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) == 0 {
		return
	}
	var label string
	if err := json.Unmarshal(frame[0], &label); err != nil {
		return
	}
	switch label {
	case "EVENT":
		t.handleEvent(cs, frame)
	case "REQ":
		t.handleReq(cs, frame)
	case "CLOSE":
		t.handleClose(cs, frame)
	}
}

func (t *T) handleEvent(cs *connState, frame []json.RawMessage) {
	if len(frame) < 2 {
		return
	}
	var ev nostr.Event
	if err := json.Unmarshal(frame[1], &ev); err != nil {
		t.ack(cs, "", false, "invalid: malformed event")
		return
	}
	if !t.AllowList.Check(ev.PubKey) {
		t.ack(cs, ev.ID, false, "blocked: pubkey not allowed")
		return
	}
	result, err := t.Store.SaveEvent(&ev)
	if err != nil {
		t.ack(cs, ev.ID, false, "error: "+err.Error())
		return
	}
	t.ack(cs, ev.ID, true, "")
	if result.Changes > 0 {
		if t.SeedQueue != nil {
			t.SeedQueue.Submit(&ev)
		}
		t.broadcast(&ev)
		if t.OnEvent != nil {
			t.OnEvent(context.Background(), &ev)
		}
	}
}

func (t *T) ack(cs *connState, id string, ok bool, reason string) {
	payload, _ := json.Marshal([]any{"OK", id, ok, reason})
	select {
	case cs.send <- payload:
	default:
	}
}

func (t *T) handleReq(cs *connState, frame []json.RawMessage) {
	if len(frame) < 3 {
		return
	}
	var subID string
	if err := json.Unmarshal(frame[1], &subID); err != nil {
		return
	}
	var filters []*filter.T
	for _, raw := range frame[2:] {
		var f filter.T
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		filters = append(filters, &f)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cs.subs.Store(subID, &subscription{filters: filters, cancel: cancel})

	go func() {
		defer func() {
			select {
			case <-ctx.Done():
			default:
			}
		}()
		for _, f := range filters {
			events, err := t.Store.QueryEvents(f)
			if err != nil {
				lg.E.F("frontend: query failed for sub %s: %v", subID, err)
				continue
			}
			for _, ev := range events {
				select {
				case <-ctx.Done():
					return
				default:
				}
				payload, _ := json.Marshal([]any{"EVENT", subID, ev})
				select {
				case cs.send <- payload:
				case <-ctx.Done():
					return
				}
			}
		}
		eosePayload, _ := json.Marshal([]any{"EOSE", subID})
		select {
		case cs.send <- eosePayload:
		case <-ctx.Done():
		}
	}()
}

func (t *T) handleClose(cs *connState, frame []json.RawMessage) {
	if len(frame) < 2 {
		return
	}
	var subID string
	if err := json.Unmarshal(frame[1], &subID); err != nil {
		return
	}
	if sub, ok := cs.subs.LoadAndDelete(subID); ok {
		sub.cancel()
	}
}

// broadcast delivers ev to every live subscription across every
// connection whose filters match it (spec.md §4.12's "broadcast to
// matching subscribers").
func (t *T) broadcast(ev *nostr.Event) {
	t.conns.Range(func(cs *connState, _ struct{}) bool {
		cs.subs.Range(func(subID string, sub *subscription) bool {
			for _, f := range sub.filters {
				if f.Matches(ev) {
					payload, _ := json.Marshal([]any{"EVENT", subID, ev})
					select {
					case cs.send <- payload:
					default:
					}
					break
				}
			}
			return true
		})
		return true
	})
}

