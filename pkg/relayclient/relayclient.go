// Package relayclient implements the RelayClient contract of spec.md
// §4.6: publish an event to every connected relay, subscribe with a
// filter and a callback, and an await_event helper shared by several
// higher-level components.
//
// It follows the shape of the teacher's pkg/nostr/relay.Relay — a
// websocket connection with a write queue goroutine and a read-loop
// goroutine dispatching frames to live subscriptions — but trades the
// teacher's full wsflate-compression connection wrapper for gobwas/ws's
// plain wsutil.Read/WriteClientText helpers, since this bridge's relay
// traffic is JSON text frames only (see DESIGN.md).
package relayclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Hubmakerlabs/relaybridge/pkg/errs"
	"github.com/Hubmakerlabs/relaybridge/pkg/log"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr/filter"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v2"
)

var lg = log.GetLogger()

// Status is the outcome of a single relay's publish attempt, matching
// the teacher's relay.Status enum.
type Status int

const (
	StatusSent      Status = 0
	StatusFailed    Status = -1
	StatusSucceeded Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusSucceeded:
		return "succeeded"
	default:
		return "failed"
	}
}

// Subscription is a live filter-scoped stream of events from one or
// more relays.
type Subscription struct {
	ID     string
	Filter *filter.T
	events chan *nostr.Event
	eose   chan struct{}
	once   sync.Once
	closed chan struct{}
}

// Events returns the channel matching events are delivered on.
func (s *Subscription) Events() <-chan *nostr.Event { return s.events }

// EOSE returns a channel closed when the first relay reports
// end-of-stored-events for this subscription; it does not wait for the
// other relays.
func (s *Subscription) EOSE() <-chan struct{} { return s.eose }

// Close cancels the subscription and releases its per-subscription
// resources (spec.md §4.6).
func (s *Subscription) Close() {
	s.once.Do(func() { close(s.closed) })
}

type relayConn struct {
	url    string
	conn   net.Conn
	writeQ chan []byte
}

// Client connects to a fixed set of relay URLs and implements the
// RelayClient contract against all of them at once.
type Client struct {
	ctx           context.Context
	cancel        context.CancelFunc
	conns         []*relayConn
	subscriptions *xsync.MapOf[string, *Subscription]
	okCallbacks   *xsync.MapOf[string, chan okResult]
}

type okResult struct {
	ok     bool
	reason string
}

// New dials every url and starts its read/write loops. A relay that
// fails to dial is logged and skipped; Publish/Subscribe operate over
// whichever relays connected successfully.
func New(ctx context.Context, urls []string) *Client {
	ctx, cancel := context.WithCancel(ctx)
	c := &Client{
		ctx:           ctx,
		cancel:        cancel,
		subscriptions: xsync.NewMapOf[*Subscription](),
		okCallbacks:   xsync.NewMapOf[chan okResult](),
	}
	for _, u := range urls {
		rc, err := c.dial(u)
		if err != nil {
			lg.W.F("relayclient: failed to connect to %s: %v", u, err)
			continue
		}
		c.conns = append(c.conns, rc)
	}
	return c
}

func (c *Client) dial(url string) (*relayConn, error) {
	conn, _, _, err := ws.Dial(c.ctx, url)
	if err != nil {
		return nil, err
	}
	rc := &relayConn{url: url, conn: conn, writeQ: make(chan []byte, 16)}
	go c.writeLoop(rc)
	go c.readLoop(rc)
	return rc, nil
}

func (c *Client) writeLoop(rc *relayConn) {
	ticker := time.NewTicker(29 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			rc.conn.Close()
			return
		case <-ticker.C:
			if err := wsutil.WriteClientMessage(rc.conn, ws.OpPing, nil); err != nil {
				lg.E.F("relayclient: ping to %s failed: %v", rc.url, err)
				return
			}
		case msg := <-rc.writeQ:
			if err := wsutil.WriteClientText(rc.conn, msg); err != nil {
				lg.E.F("relayclient: write to %s failed: %v", rc.url, err)
				return
			}
		}
	}
}

func (c *Client) readLoop(rc *relayConn) {
	for {
		data, err := wsutil.ReadServerText(rc.conn)
		if err != nil {
			lg.D.F("relayclient: %s disconnected: %v", rc.url, err)
			return
		}
		c.dispatch(data)
	}
}

// dispatch decodes a relay frame and routes it to the matching
// subscription or OK callback (spec.md §6's relay frame grammar).
func (c *Client) dispatch(data []byte) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) < 2 {
		return
	}
	var label string
	if err := json.Unmarshal(frame[0], &label); err != nil {
		return
	}
	switch label {
	case "EVENT":
		if len(frame) < 3 {
			return
		}
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			return
		}
		var ev nostr.Event
		if err := json.Unmarshal(frame[2], &ev); err != nil {
			return
		}
		if sub, ok := c.subscriptions.Load(subID); ok {
			if sub.Filter == nil || sub.Filter.Matches(&ev) {
				select {
				case sub.events <- &ev:
				case <-sub.closed:
				}
			}
		}
	case "EOSE":
		var subID string
		if err := json.Unmarshal(frame[1], &subID); err != nil {
			return
		}
		if sub, ok := c.subscriptions.Load(subID); ok {
			select {
			case <-sub.eose:
			default:
				close(sub.eose)
			}
		}
	case "OK":
		if len(frame) < 3 {
			return
		}
		var id string
		var ok bool
		var reason string
		_ = json.Unmarshal(frame[1], &id)
		_ = json.Unmarshal(frame[2], &ok)
		if len(frame) > 3 {
			_ = json.Unmarshal(frame[3], &reason)
		}
		if ch, exists := c.okCallbacks.Load(id); exists {
			ch <- okResult{ok: ok, reason: reason}
		}
	}
}

// Publish sends ev to every connected relay (spec.md §4.6). Success
// means at least one relay acknowledges with OK=true within timeout;
// otherwise it fails with a TransportError tagged "nostr".
func (c *Client) Publish(ctx context.Context, ev *nostr.Event) (Status, error) {
	if len(c.conns) == 0 {
		return StatusFailed, errs.NewTransportError(errs.Nostr, "publish", fmt.Errorf("no connected relays"))
	}
	payload, err := json.Marshal([]any{"EVENT", ev})
	if err != nil {
		return StatusFailed, errs.NewTransportError(errs.Nostr, "publish", err)
	}
	result := make(chan okResult, len(c.conns))
	c.okCallbacks.Store(ev.ID, result)
	defer c.okCallbacks.Delete(ev.ID)

	for _, rc := range c.conns {
		select {
		case rc.writeQ <- payload:
		case <-ctx.Done():
		}
	}

	var lastReason string
	for i := 0; i < len(c.conns); i++ {
		select {
		case r := <-result:
			if r.ok {
				return StatusSucceeded, nil
			}
			lastReason = r.reason
		case <-ctx.Done():
			return StatusFailed, errs.AsTransport(errs.Nostr, "publish", ctx.Err())
		}
	}
	return StatusFailed, errs.NewTransportError(errs.Nostr, "publish", fmt.Errorf("rejected: %s", lastReason))
}

// Subscribe registers a filter-scoped subscription against every
// connected relay and returns a handle delivering matching events
// (spec.md §4.6).
func (c *Client) Subscribe(ctx context.Context, f *filter.T) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		Filter: f,
		events: make(chan *nostr.Event, 64),
		eose:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	c.subscriptions.Store(sub.ID, sub)

	payload, _ := json.Marshal([]any{"REQ", sub.ID, f})
	for _, rc := range c.conns {
		select {
		case rc.writeQ <- payload:
		case <-ctx.Done():
		}
	}
	go func() {
		<-sub.closed
		c.subscriptions.Delete(sub.ID)
		closePayload, _ := json.Marshal([]any{"CLOSE", sub.ID})
		for _, rc := range c.conns {
			select {
			case rc.writeQ <- closePayload:
			default:
			}
		}
	}()
	return sub
}

// AwaitEvent subscribes with f, resolves with the first event
// satisfying predicate, and closes the subscription on success or
// timeout (spec.md §4.6).
func (c *Client) AwaitEvent(ctx context.Context, f *filter.T, timeout time.Duration, predicate func(*nostr.Event) bool) (*nostr.Event, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sub := c.Subscribe(ctx, f)
	defer sub.Close()
	for {
		select {
		case ev := <-sub.Events():
			if predicate == nil || predicate(ev) {
				return ev, true
			}
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Close tears down every connection and cancels all live subscriptions.
func (c *Client) Close() {
	c.cancel()
}
