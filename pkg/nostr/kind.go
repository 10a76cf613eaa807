package nostr

// Kind is the event-type code of the relay network, kept as its own
// named type (rather than a bare int) so call sites read as kind
// comparisons rather than magic numbers, matching the teacher's
// pkg/nostr/kind convention.
type Kind uint32

const (
	ProfileMetadata Kind = 0
	TextNote        Kind = 1
	ContactList     Kind = 3
	Deletion        Kind = 5

	// AppSpecificData is the "application-defined bridge record" kind
	// used for both attestation (d=identity.IdentityDTag) and bridge
	// discovery (d=feedmanager.BridgeDTag) events, spec.md §3.
	AppSpecificData Kind = 30078
)

// IsReplaceable reports whether k follows the pubkey+kind replacement
// rule. spec.md §3 states this as the union of kinds 0, 3, and
// 10000-19999 (resolving the doc-vs-storage conflict spec.md §9 flags).
func (k Kind) IsReplaceable() bool {
	switch {
	case k == ProfileMetadata, k == ContactList:
		return true
	case k >= 10000 && k < 20000:
		return true
	default:
		return false
	}
}

// IsParameterizedReplaceable reports whether k follows the
// (pubkey,kind,d-tag) replacement rule.
func (k Kind) IsParameterizedReplaceable() bool {
	return k >= 30000 && k < 40000
}
