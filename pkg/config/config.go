// Package config implements spec.md §6's environment-driven
// configuration, following the teacher's pkg/config/base.Config field
// layout and default-construction pattern (GetDefaultConfig + struct
// tags), but sourced from os.Getenv rather than go-arg's CLI/env
// parser: CLI flag parsing is an explicit non-goal, so only the
// struct shape and defaulting convention is kept, not the parser.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Hubmakerlabs/relaybridge/pkg/bech32"
)

// T is the bridge's full runtime configuration (spec.md §6).
type T struct {
	Port           int
	TrackerPort    int
	DBPath         string
	EnableBT       bool
	AllowedPubkeys []string // hex, npub1... entries decoded
	RelayName      string
	RelayDesc      string
	RelayPubkey    string
	RelayContact   string
	DHTBootstrap   []string
	DHTHost        string
}

// Default mirrors the teacher's GetDefaultConfig: every field pre-filled
// with the value spec.md §6 calls out as the default.
func Default() *T {
	return &T{
		Port:        3334,
		TrackerPort: 3335,
		DBPath:      "./data/bridge.db",
		EnableBT:    true,
		RelayName:   "nostr-over-bt bridge",
		DHTHost:     "0.0.0.0:0",
	}
}

// Load builds T from the process environment (spec.md §6): PORT,
// TRACKER_PORT, DB_PATH, ENABLE_BT, ALLOWED_PUBKEYS, RELAY_NAME,
// RELAY_DESCRIPTION, RELAY_PUBKEY, RELAY_CONTACT, DHT_BOOTSTRAP,
// DHT_HOST. Unset vars keep Default's value.
func Load() (*T, error) {
	c := Default()

	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: PORT: %w", err)
		}
		c.Port = n
	}
	if v := os.Getenv("TRACKER_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: TRACKER_PORT: %w", err)
		}
		c.TrackerPort = n
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("ENABLE_BT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: ENABLE_BT: %w", err)
		}
		c.EnableBT = b
	}
	if v := os.Getenv("RELAY_NAME"); v != "" {
		c.RelayName = v
	}
	c.RelayDesc = os.Getenv("RELAY_DESCRIPTION")
	c.RelayPubkey = os.Getenv("RELAY_PUBKEY")
	c.RelayContact = os.Getenv("RELAY_CONTACT")
	if v := os.Getenv("DHT_HOST"); v != "" {
		c.DHTHost = v
	}
	c.DHTBootstrap = splitList(os.Getenv("DHT_BOOTSTRAP"))

	for _, raw := range splitList(os.Getenv("ALLOWED_PUBKEYS")) {
		hex, err := decodePubkey(raw)
		if err != nil {
			return nil, fmt.Errorf("config: ALLOWED_PUBKEYS entry %q: %w", raw, err)
		}
		c.AllowedPubkeys = append(c.AllowedPubkeys, hex)
	}
	return c, nil
}

// decodePubkey accepts either a 64-char hex pubkey or an npub1... bech32
// string (SPEC_FULL.md §4 supplemented feature: spec.md's
// ALLOWED_PUBKEYS says "hex or npub1... bech32").
func decodePubkey(raw string) (string, error) {
	if !strings.HasPrefix(raw, "npub1") {
		return raw, nil
	}
	_, data, err := bech32.Decode(raw)
	if err != nil {
		return "", err
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", decoded), nil
}

// splitList splits a comma/whitespace separated env var value into its
// entries, dropping empties.
func splitList(v string) []string {
	var out []string
	for _, field := range strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	}) {
		if field != "" {
			out = append(out, field)
		}
	}
	return out
}
