// Package walrusblob implements the pieces of the distributed backend that
// talk to the local disk cache and the external walrus CLI binary: a
// bidirectional content-hash/blob-id index, a tracker for blob lifetimes,
// queried network parameters, and a thin subprocess wrapper around the
// walrus binary itself.
package walrusblob

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wbbradley/git-remote-walrus/pkg/contentid"
)

// CacheIndex is a bidirectional map between a Walrus blob id and the
// SHA-256 hash of the object stored in it, plus a hash-to-content-id map
// that additionally carries a batched upload's offset and length. It lets
// the distributed backend skip a re-upload when it already knows an
// object's content-id, and skip a network read when it already has the
// bytes cached locally under their hash.
type CacheIndex struct {
	ObjectToSHA256    map[string]string `yaml:"object_to_sha256"`
	SHA256ToObject    map[string]string `yaml:"sha256_to_object"`
	SHA256ToContentID map[string]string `yaml:"sha256_to_content_id"`
}

// NewCacheIndex returns an empty index.
func NewCacheIndex() *CacheIndex {
	return &CacheIndex{
		ObjectToSHA256:    make(map[string]string),
		SHA256ToObject:    make(map[string]string),
		SHA256ToContentID: make(map[string]string),
	}
}

// LoadCacheIndex reads the index from path, returning an empty index if
// the file does not exist.
func LoadCacheIndex(path string) (*CacheIndex, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewCacheIndex(), nil
		}
		return nil, fmt.Errorf("failed to read cache index from %s: %w", path, err)
	}

	idx := NewCacheIndex()
	if err := yaml.Unmarshal(content, idx); err != nil {
		return nil, fmt.Errorf("failed to parse cache index from %s: %w", path, err)
	}
	if idx.ObjectToSHA256 == nil {
		idx.ObjectToSHA256 = make(map[string]string)
	}
	if idx.SHA256ToObject == nil {
		idx.SHA256ToObject = make(map[string]string)
	}
	if idx.SHA256ToContentID == nil {
		idx.SHA256ToContentID = make(map[string]string)
	}
	return idx, nil
}

// Save writes the index to path, creating parent directories as needed.
func (c *CacheIndex) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize cache index: %w", err)
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write cache index to %s: %w", path, err)
	}
	return nil
}

// Insert records a mapping between a blob id and a content hash.
func (c *CacheIndex) Insert(objectID, sha256 string) {
	c.ObjectToSHA256[objectID] = sha256
	c.SHA256ToObject[sha256] = objectID
}

// SHA256 returns the hash stored for a blob id, if any.
func (c *CacheIndex) SHA256(objectID string) (string, bool) {
	v, ok := c.ObjectToSHA256[objectID]
	return v, ok
}

// ObjectID returns the blob id stored for a content hash, if any.
func (c *CacheIndex) ObjectID(sha256 string) (string, bool) {
	v, ok := c.SHA256ToObject[sha256]
	return v, ok
}

// InsertContentID records the exact content-id (legacy or batched) that a
// write produced for sha256, in addition to the plain blob-id mapping
// Insert tracks. A later dedup hit against sha256 reconstructs this same
// content-id rather than always assuming the legacy, whole-blob form.
func (c *CacheIndex) InsertContentID(sha256 string, id contentid.ContentId) {
	c.Insert(id.BlobID, sha256)
	c.SHA256ToContentID[sha256] = id.Encode()
}

// ContentID returns the exact content-id recorded for sha256 by
// InsertContentID, if any.
func (c *CacheIndex) ContentID(sha256 string) (contentid.ContentId, bool) {
	encoded, ok := c.SHA256ToContentID[sha256]
	if !ok {
		return contentid.ContentId{}, false
	}
	id, err := contentid.Parse(encoded)
	if err != nil {
		return contentid.ContentId{}, false
	}
	return id, true
}

// ContainsObject reports whether objectID is indexed.
func (c *CacheIndex) ContainsObject(objectID string) bool {
	_, ok := c.ObjectToSHA256[objectID]
	return ok
}

// ContainsSHA256 reports whether sha256 is indexed.
func (c *CacheIndex) ContainsSHA256(sha256 string) bool {
	_, ok := c.SHA256ToObject[sha256]
	return ok
}

// RemoveByObjectID removes a mapping by blob id, returning the hash it was
// associated with, if any.
func (c *CacheIndex) RemoveByObjectID(objectID string) (string, bool) {
	sha256, ok := c.ObjectToSHA256[objectID]
	if !ok {
		return "", false
	}
	delete(c.ObjectToSHA256, objectID)
	delete(c.SHA256ToObject, sha256)
	delete(c.SHA256ToContentID, sha256)
	return sha256, true
}

// RemoveBySHA256 removes a mapping by content hash, returning the blob id
// it was associated with, if any.
func (c *CacheIndex) RemoveBySHA256(sha256 string) (string, bool) {
	objectID, ok := c.SHA256ToObject[sha256]
	if !ok {
		return "", false
	}
	delete(c.SHA256ToObject, sha256)
	delete(c.ObjectToSHA256, objectID)
	delete(c.SHA256ToContentID, sha256)
	return objectID, true
}

// Len returns the number of indexed items.
func (c *CacheIndex) Len() int {
	return len(c.ObjectToSHA256)
}
