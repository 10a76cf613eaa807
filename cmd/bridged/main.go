package main

import (
	"context"
	"net/http"
	"os"

	"strconv"

	"github.com/rs/cors"

	"github.com/Hubmakerlabs/relaybridge/app/coordinator"
	"github.com/Hubmakerlabs/relaybridge/app/frontend"
	"github.com/Hubmakerlabs/relaybridge/pkg/config"
	"github.com/Hubmakerlabs/relaybridge/pkg/dht"
	"github.com/Hubmakerlabs/relaybridge/pkg/feedindex"
	"github.com/Hubmakerlabs/relaybridge/pkg/feedmanager"
	"github.com/Hubmakerlabs/relaybridge/pkg/feedtracker"
	"github.com/Hubmakerlabs/relaybridge/pkg/hex"
	"github.com/Hubmakerlabs/relaybridge/pkg/identity"
	"github.com/Hubmakerlabs/relaybridge/pkg/log"
	"github.com/Hubmakerlabs/relaybridge/pkg/magnet"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
	"github.com/Hubmakerlabs/relaybridge/pkg/relayclient"
	"github.com/Hubmakerlabs/relaybridge/pkg/seedqueue"
	"github.com/Hubmakerlabs/relaybridge/pkg/store"
	"github.com/Hubmakerlabs/relaybridge/pkg/swarm"
	"github.com/Hubmakerlabs/relaybridge/pkg/wot"
)

var (
	AppName = "bridged"
	Version = "v0.0.1"
)

var lg = log.GetLogger()

func main() {
	cfg, err := config.Load()
	if err != nil {
		lg.F.F("config: %v", err)
		os.Exit(1)
	}

	id, err := loadIdentity(cfg)
	if err != nil {
		lg.F.F("identity: %v", err)
		os.Exit(1)
	}
	lg.I.F("swarm identity: %s", id.PublicKeyHex())

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		lg.F.F("store: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	dhtClient := dht.NewMemoryClient(func(pubKey, msg, sig []byte) bool {
		ok, err := identity.Verify(hex.Enc(pubKey), msg, sig)
		return err == nil && ok
	})
	seedClient := swarm.NewMemoryClient(cfg.EnableBT)
	for _, tr := range cfg.DHTBootstrap {
		seedClient.AnnounceTracker(tr)
	}

	fm := feedmanager.New(id, feedindex.DefaultLimit, dhtClient, func(ctx context.Context, buf []byte, filename string) (*magnet.T, error) {
		return seedClient.Seed(ctx, swarm.Object{Buffer: buf, Filename: filename})
	})

	wg := wot.New(wot.DefaultMaxDegree)

	// co is assigned once the coordinator is built below; the seed-queue
	// handler only runs after ServeWebSocket starts accepting connections,
	// well after that assignment happens.
	var co *coordinator.T
	sq := seedqueue.New(0, func(ctx context.Context, ev *nostr.Event) error {
		_, err := co.ReseedEvent(ctx, ev, false)
		return err
	})
	defer sq.Close()

	allow := frontend.NewAllowList(cfg.AllowedPubkeys)
	info := frontend.Info{
		Name:          cfg.RelayName,
		Description:   cfg.RelayDesc,
		Pubkey:        cfg.RelayPubkey,
		Contact:       cfg.RelayContact,
		Software:      AppName,
		Version:       Version,
		SupportedNIPs: []int{1, 2, 9, 11, 33, 40},
	}
	fe := frontend.New(st, sq, allow, info)

	selfURL := "ws://127.0.0.1:" + strconv.Itoa(cfg.Port)
	rc := relayclient.New(context.Background(), []string{selfURL})
	ft := feedtracker.New(fm, rc, cfg.DHTBootstrap)

	co = coordinator.New(rc, seedClient, fm, wg, ft, id, cfg.RelayPubkey)
	fe.OnEvent = co.HandleIncomingEvent

	nip11 := cors.AllowAll().Handler(http.HandlerFunc(fe.ServeNIP11))

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "application/nostr+json" {
			nip11.ServeHTTP(w, r)
			return
		}
		fe.ServeWebSocket(w, r)
	})

	addr := ":" + strconv.Itoa(cfg.Port)
	lg.I.F("listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		lg.F.F("listen: %v", err)
		os.Exit(1)
	}
}

func loadIdentity(cfg *config.T) (*identity.T, error) {
	if seed := os.Getenv("RELAY_SECKEY"); seed != "" {
		return identity.FromRelaySecret([]byte(seed))
	}
	return identity.Generate()
}

