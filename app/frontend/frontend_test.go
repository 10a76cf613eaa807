package frontend

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

	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr/filter"
	"github.com/Hubmakerlabs/relaybridge/pkg/relayclient"
	"github.com/Hubmakerlabs/relaybridge/pkg/seedqueue"
	"github.com/Hubmakerlabs/relaybridge/pkg/store"
)

func newSecKeyHex() string { return hex.EncodeToString(frand.Bytes(32)) }

func TestAllowListEmptyPermitsEveryone(t *testing.T) {
	a := NewAllowList(nil)
	require.True(t, a.Check("anyone"))
}

func TestAllowListRestrictsToListedPubkeys(t *testing.T) {
	a := NewAllowList([]string{"good"})
	require.True(t, a.Check("good"))
	require.False(t, a.Check("bad"))
}

func startServer(t *testing.T, fe *T) string {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fe.ServeWebSocket(w, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func signedEvent(t *testing.T, skHex string, kind nostr.Kind, content string) *nostr.Event {
	ev := &nostr.Event{CreatedAt: nostr.Now(), Kind: kind, Content: content}
	require.NoError(t, ev.Sign(skHex))
	return ev
}

func pubKeyFromSecret(t *testing.T, skHex string) string {
	return signedEvent(t, skHex, nostr.TextNote, "").PubKey
}

func TestPublishAndSubscribeRoundTrip(t *testing.T) {
	skHex := newSecKeyHex()

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fe := New(st, nil, NewAllowList(nil), Info{Name: "test"})
	url := startServer(t, fe)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rc := relayclient.New(ctx, []string{url})
	defer rc.Close()
	time.Sleep(20 * time.Millisecond)

	ev := signedEvent(t, skHex, nostr.TextNote, "hello")
	status, err := rc.Publish(ctx, ev)
	require.NoError(t, err)
	require.Equal(t, relayclient.StatusSucceeded, status)

	got, ok := rc.AwaitEvent(ctx, &filter.T{Authors: []string{ev.PubKey}}, 2*time.Second, nil)
	require.True(t, ok)
	require.Equal(t, ev.ID, got.ID)
}

func TestPublishRejectedForDisallowedPubkey(t *testing.T) {
	skHex := newSecKeyHex()
	otherPubKey := pubKeyFromSecret(t, newSecKeyHex())

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fe := New(st, nil, NewAllowList([]string{otherPubKey}), Info{Name: "test"})
	url := startServer(t, fe)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rc := relayclient.New(ctx, []string{url})
	defer rc.Close()
	time.Sleep(20 * time.Millisecond)

	ev := signedEvent(t, skHex, nostr.TextNote, "blocked")
	status, err := rc.Publish(ctx, ev)
	require.Error(t, err)
	require.Equal(t, relayclient.StatusFailed, status)
}

func TestPublishEnqueuesOnSeedQueue(t *testing.T) {
	skHex := newSecKeyHex()

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	seeded := make(chan string, 1)
	sq := seedqueue.New(1, func(_ context.Context, ev *nostr.Event) error {
		seeded <- ev.ID
		return nil
	})
	t.Cleanup(sq.Close)

	fe := New(st, sq, NewAllowList(nil), Info{Name: "test"})
	url := startServer(t, fe)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rc := relayclient.New(ctx, []string{url})
	defer rc.Close()
	time.Sleep(20 * time.Millisecond)

	ev := signedEvent(t, skHex, nostr.TextNote, "seed me")
	_, err = rc.Publish(ctx, ev)
	require.NoError(t, err)

	select {
	case id := <-seeded:
		require.Equal(t, ev.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the seeding queue")
	}
}

func TestPublishInvokesOnEventHook(t *testing.T) {
	skHex := newSecKeyHex()

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	notified := make(chan string, 1)
	fe := New(st, nil, NewAllowList(nil), Info{Name: "test"})
	fe.OnEvent = func(_ context.Context, ev *nostr.Event) {
		notified <- ev.ID
	}
	url := startServer(t, fe)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rc := relayclient.New(ctx, []string{url})
	defer rc.Close()
	time.Sleep(20 * time.Millisecond)

	ev := signedEvent(t, skHex, nostr.TextNote, "notify me")
	_, err = rc.Publish(ctx, ev)
	require.NoError(t, err)

	select {
	case id := <-notified:
		require.Equal(t, ev.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("OnEvent hook was never invoked")
	}
}
