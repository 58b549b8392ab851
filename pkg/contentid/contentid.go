// Package contentid parses and encodes the opaque content identifiers
// returned by a storage backend.
//
// A ContentId has two recognized encodings:
//
//   - Legacy: a single token naming one stored blob in its entirety.
//   - Batched: "<blob-id>:<offset>:<length>", where offset and length are
//     unsigned 64-bit decimal integers identifying a contiguous slice
//     inside a stored blob.
package contentid

import (
	"fmt"
	"strconv"
	"strings"
)

// ContentId is the parsed form of a storage backend's opaque identifier.
type ContentId struct {
	BlobID string
	// Batched is true when Offset/Length name a slice within BlobID rather
	// than the whole blob.
	Batched bool
	Offset  uint64
	Length  uint64
}

// Legacy constructs a ContentId naming an entire blob.
func Legacy(blobID string) ContentId {
	return ContentId{BlobID: blobID}
}

// Batch constructs a ContentId naming a slice within a blob.
func Batch(blobID string, offset, length uint64) ContentId {
	return ContentId{BlobID: blobID, Batched: true, Offset: offset, Length: length}
}

// Parse splits a content-id string into its legacy or batched form.
func Parse(s string) (ContentId, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		return Legacy(parts[0]), nil
	case 3:
		offset, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return ContentId{}, fmt.Errorf("invalid offset in content-id %q: %w", s, err)
		}
		length, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return ContentId{}, fmt.Errorf("invalid length in content-id %q: %w", s, err)
		}
		return Batch(parts[0], offset, length), nil
	default:
		return ContentId{}, fmt.Errorf("invalid content-id format: %q", s)
	}
}

// Encode renders a ContentId back to its string form. Encode(Parse(s)) == s
// for every valid s.
func (c ContentId) Encode() string {
	if !c.Batched {
		return c.BlobID
	}
	return fmt.Sprintf("%s:%d:%d", c.BlobID, c.Offset, c.Length)
}

func (c ContentId) String() string {
	return c.Encode()
}

// MarshalYAML renders the content-id as a plain scalar so it appears in
// state.yaml and the cache sidecar files as a bare string.
func (c ContentId) MarshalYAML() (interface{}, error) {
	return c.Encode(), nil
}

// UnmarshalYAML parses a plain scalar back into a ContentId.
func (c *ContentId) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
