// Package magnet implements the magnet URI grammar of spec.md §3/§6:
// "magnet:?xt=urn:btih:<40-hex>&dn=<name>&tr=<tracker>*". Decode/Encode
// round-trip preserves the info hash and the tracker set (as an ordered
// set — insertion order kept, duplicates dropped).
package magnet

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// T is a decoded magnet URI.
type T struct {
	InfoHash    string // 40 lowercase hex chars
	DisplayName string
	Trackers    []string
}

// New builds a magnet from a 20-byte infohash.
func New(infoHash [20]byte, displayName string, trackers []string) *T {
	m := &T{InfoHash: strings.ToLower(hex.EncodeToString(infoHash[:])), DisplayName: displayName}
	for _, tr := range trackers {
		m.AddTracker(tr)
	}
	return m
}

// NewFromHex builds a magnet from an already-hex-encoded infohash,
// validating its length per spec.md §3.
func NewFromHex(infoHashHex, displayName string, trackers []string) (*T, error) {
	infoHashHex = strings.ToLower(infoHashHex)
	if len(infoHashHex) != 40 {
		return nil, fmt.Errorf("magnet: infohash must be 40 hex chars, got %d", len(infoHashHex))
	}
	if _, err := hex.DecodeString(infoHashHex); err != nil {
		return nil, fmt.Errorf("magnet: infohash is not valid hex: %w", err)
	}
	m := &T{InfoHash: infoHashHex, DisplayName: displayName}
	for _, tr := range trackers {
		m.AddTracker(tr)
	}
	return m, nil
}

// AddTracker inserts a tracker URL if not already present, preserving
// insertion order (spec.md §3: "tracker list is a set with insertion
// order preserved").
func (m *T) AddTracker(tr string) {
	for _, existing := range m.Trackers {
		if existing == tr {
			return
		}
	}
	m.Trackers = append(m.Trackers, tr)
}

// UnionTrackers returns a copy of m with every tracker in extra added,
// used by FeedTracker to merge a discovered magnet's trackers with the
// locally configured set (spec.md §4.7 step 4).
func (m *T) UnionTrackers(extra []string) *T {
	out := &T{InfoHash: m.InfoHash, DisplayName: m.DisplayName, Trackers: append([]string(nil), m.Trackers...)}
	for _, tr := range extra {
		out.AddTracker(tr)
	}
	return out
}

// InfoHashBytes decodes the 40-hex InfoHash back to its 20 raw bytes.
func (m *T) InfoHashBytes() ([20]byte, error) {
	var out [20]byte
	b, err := hex.DecodeString(m.InfoHash)
	if err != nil || len(b) != 20 {
		return out, fmt.Errorf("magnet: invalid infohash %q", m.InfoHash)
	}
	copy(out[:], b)
	return out, nil
}

// String encodes m back into "magnet:?xt=urn:btih:...&dn=...&tr=...*".
func (m *T) String() string {
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(m.InfoHash)
	if m.DisplayName != "" {
		b.WriteString("&dn=")
		b.WriteString(url.QueryEscape(m.DisplayName))
	}
	for _, tr := range m.Trackers {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tr))
	}
	return b.String()
}

// Decode parses a magnet URI string, matching spec.md §3's grammar. The
// first "xt=urn:btih:" parameter found supplies the info hash; all "tr="
// parameters are collected in order.
func Decode(raw string) (*T, error) {
	if !strings.HasPrefix(raw, "magnet:?") {
		return nil, fmt.Errorf("magnet: not a magnet URI: %q", raw)
	}
	values, err := url.ParseQuery(raw[len("magnet:?"):])
	if err != nil {
		return nil, fmt.Errorf("magnet: invalid query: %w", err)
	}
	var infoHash string
	for _, xt := range values["xt"] {
		const prefix = "urn:btih:"
		if strings.HasPrefix(xt, prefix) {
			infoHash = strings.ToLower(xt[len(prefix):])
			break
		}
	}
	if len(infoHash) != 40 {
		return nil, fmt.Errorf("magnet: missing or malformed xt=urn:btih: parameter")
	}
	if _, err := hex.DecodeString(infoHash); err != nil {
		return nil, fmt.Errorf("magnet: infohash is not valid hex: %w", err)
	}
	m := &T{InfoHash: infoHash, DisplayName: values.Get("dn")}
	for _, tr := range values["tr"] {
		m.AddTracker(tr)
	}
	return m, nil
}
