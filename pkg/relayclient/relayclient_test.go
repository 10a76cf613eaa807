package relayclient

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"github.com/Hubmakerlabs/relaybridge/app/frontend"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
	"github.com/Hubmakerlabs/relaybridge/pkg/store"
)

func newSecKeyHex() string { return hex.EncodeToString(frand.Bytes(32)) }

func signedEvent(t *testing.T, skHex string, kind nostr.Kind, content string) *nostr.Event {
	ev := &nostr.Event{CreatedAt: nostr.Now(), Kind: kind, Content: content}
	require.NoError(t, ev.Sign(skHex))
	return ev
}

func startFrontend(t *testing.T, allow *frontend.AllowList) string {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fe := frontend.New(st, nil, allow, frontend.Info{Name: "test"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fe.ServeWebSocket(w, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// TestPublishSucceedsIfAnyRelayAccepts pins spec.md §4.6's "success = at
// least one relay returns fulfilled": the first relay in the list rejects
// the event outright, but Publish must not give up on that first OK and
// has to keep listening until the second relay's acceptance arrives.
func TestPublishSucceedsIfAnyRelayAccepts(t *testing.T) {
	skHex := newSecKeyHex()

	rejectingURL := startFrontend(t, frontend.NewAllowList([]string{"someone-else"}))
	acceptingURL := startFrontend(t, frontend.NewAllowList(nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(ctx, []string{rejectingURL, acceptingURL})
	defer c.Close()
	time.Sleep(20 * time.Millisecond)
	require.Len(t, c.conns, 2)

	ev := signedEvent(t, skHex, nostr.TextNote, "hello")

	status, err := c.Publish(ctx, ev)
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, status)
}

func TestPublishFailsWhenEveryRelayRejects(t *testing.T) {
	skHex := newSecKeyHex()

	urlA := startFrontend(t, frontend.NewAllowList([]string{"someone-else"}))
	urlB := startFrontend(t, frontend.NewAllowList([]string{"someone-else-entirely"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(ctx, []string{urlA, urlB})
	defer c.Close()
	time.Sleep(20 * time.Millisecond)
	require.Len(t, c.conns, 2)

	ev := signedEvent(t, skHex, nostr.TextNote, "blocked everywhere")
	status, err := c.Publish(ctx, ev)
	require.Error(t, err)
	require.Equal(t, StatusFailed, status)
}
