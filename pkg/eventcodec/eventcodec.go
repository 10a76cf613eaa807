// Package eventcodec implements spec.md §4.1: structural validation of
// events separate from signature verification, so a relay that strips
// sig on reseed doesn't block re-ingest of an event that was valid when
// first seen.
package eventcodec

import (
	"encoding/json"
	"fmt"

	"github.com/Hubmakerlabs/relaybridge/pkg/errs"
	"github.com/Hubmakerlabs/relaybridge/pkg/hex"
	"github.com/Hubmakerlabs/relaybridge/pkg/log"
	"github.com/Hubmakerlabs/relaybridge/pkg/nostr"
)

var lg = log.GetLogger()

// Validate checks event structure (spec.md §4.1): id non-empty, sig
// non-empty when pubkey is also present, and every tag well-formed
// (non-empty, first element non-empty).
func Validate(ev *nostr.Event) error {
	if ev.ID == "" {
		return errs.NewInvalidEvent("event id is empty", nil)
	}
	if ev.PubKey != "" && ev.Sig == "" {
		return errs.NewInvalidEvent("event has pubkey but no signature", nil)
	}
	for i, t := range ev.Tags {
		if len(t) == 0 || t.Name() == "" {
			return errs.NewInvalidEvent(fmt.Sprintf("tag %d is malformed", i), nil)
		}
	}
	return nil
}

// Encode validates ev and marshals it to JSON (spec.md §4.1).
func Encode(ev *nostr.Event) ([]byte, error) {
	if err := Validate(ev); err != nil {
		return nil, err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, errs.NewInvalidEvent("marshal failed", err)
	}
	return b, nil
}

// Decode parses JSON bytes into an event, validates its structure, and
// — when pubkey, sig, content and a 32-byte-hex id are all present —
// verifies the Schnorr signature. A signature mismatch is logged but
// does not fail decoding (spec.md §4.1's partial-trust-chain rationale).
func Decode(data []byte) (*nostr.Event, error) {
	var ev nostr.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, errs.NewInvalidEvent("parse failed", err)
	}
	if err := Validate(&ev); err != nil {
		return nil, err
	}
	if ev.PubKey != "" && ev.Sig != "" {
		if idBytes, err := hex.Dec(ev.ID); err == nil && len(idBytes) == 32 {
			valid, err := ev.CheckSignature()
			if err != nil {
				lg.W.F("eventcodec: signature check error for %s: %v", ev.ID, err)
			} else if !valid {
				lg.W.F("eventcodec: signature mismatch for event %s, accepting anyway", ev.ID)
			}
		}
	}
	return &ev, nil
}

// Filename returns "{id}.json", the swarm object display name for ev
// (spec.md §4.1).
func Filename(ev *nostr.Event) string { return ev.Filename() }
