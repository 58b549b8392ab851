// Package remoteurl parses the remote URL git passes to the helper and
// decides which storage backend it names.
package remoteurl

import "strings"

// Kind identifies which storage backend a remote URL names.
type Kind int

const (
	// Filesystem is a local content-addressed directory.
	Filesystem Kind = iota
	// Distributed is a blob store plus on-chain ledger, identified by the
	// ledger object-id holding its ref/object table.
	Distributed
)

// schemePrefix is stripped if present; git may already have stripped it
// itself before invoking the helper, so both forms must be accepted.
const schemePrefix = "walrus::"

// Target is a parsed remote URL: which backend it names and the
// backend-specific address (a filesystem path, or a ledger object-id).
type Target struct {
	Kind    Kind
	Address string
}

// Parse strips an optional "walrus::" scheme prefix and classifies the
// remaining tail: a "0x"-prefixed hex string names the distributed
// backend's remote-state object-id, anything else is a filesystem path.
func Parse(rawURL string) Target {
	tail := strings.TrimPrefix(rawURL, schemePrefix)

	if isHexObjectID(tail) {
		return Target{Kind: Distributed, Address: tail}
	}
	return Target{Kind: Filesystem, Address: tail}
}

// isHexObjectID reports whether tail looks like a "0x"-prefixed hex
// ledger object-id rather than a filesystem path.
func isHexObjectID(tail string) bool {
	hex, ok := strings.CutPrefix(tail, "0x")
	if !ok || hex == "" {
		return false
	}
	for _, r := range hex {
		isDigit := r >= '0' && r <= '9'
		isLower := r >= 'a' && r <= 'f'
		isUpper := r >= 'A' && r <= 'F'
		if !isDigit && !isLower && !isUpper {
			return false
		}
	}
	return true
}
