// Package fsstore implements the local, single-writer, content-addressed
// filesystem backend:
//
//	<base>/objects/<sha256-hex>   each object's canonical bytes, immutable
//	<base>/state.yaml             serialized state, sorted
//	<base>/.state.yaml.tmp        write-then-rename staging file
//
// There is no locking: concurrent writers may lose updates. This is a
// documented limitation, not a bug — the filesystem backend targets
// single-writer use.
package fsstore

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wbbradley/git-remote-walrus/pkg/contentid"
	"github.com/wbbradley/git-remote-walrus/pkg/state"
)

// Store is the filesystem storage backend.
type Store struct {
	basePath string
}

// New constructs a filesystem backend rooted at basePath. Initialize must
// be called before use.
func New(basePath string) *Store {
	return &Store{basePath: basePath}
}

func (s *Store) objectsDir() string {
	return filepath.Join(s.basePath, "objects")
}

func (s *Store) statePath() string {
	return filepath.Join(s.basePath, "state.yaml")
}

func (s *Store) tempStatePath() string {
	return filepath.Join(s.basePath, ".state.yaml.tmp")
}

func computeHash(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%x", sum)
}

func (s *Store) Initialize() error {
	return os.MkdirAll(s.objectsDir(), 0o755)
}

func (s *Store) WriteObject(content []byte) (contentid.ContentId, error) {
	hash := computeHash(content)
	path := filepath.Join(s.objectsDir(), hash)

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return contentid.ContentId{}, fmt.Errorf("failed to stat object %s: %w", hash, err)
		}
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return contentid.ContentId{}, fmt.Errorf("failed to write object %s: %w", hash, err)
		}
	}

	return contentid.Legacy(hash), nil
}

func (s *Store) WriteObjects(contents [][]byte) ([]contentid.ContentId, error) {
	ids := make([]contentid.ContentId, len(contents))
	for i, content := range contents {
		id, err := s.WriteObject(content)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (s *Store) ReadObject(id contentid.ContentId) ([]byte, error) {
	path := filepath.Join(s.objectsDir(), id.BlobID)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", id, err)
	}
	if id.Batched {
		end := id.Offset + id.Length
		if end > uint64(len(content)) {
			return nil, fmt.Errorf("batched content-id %s exceeds object size %d", id, len(content))
		}
		return content[id.Offset:end], nil
	}
	return content, nil
}

func (s *Store) ReadObjects(ids []contentid.ContentId) ([][]byte, error) {
	out := make([][]byte, len(ids))
	for i, id := range ids {
		content, err := s.ReadObject(id)
		if err != nil {
			return nil, err
		}
		out[i] = content
	}
	return out, nil
}

func (s *Store) DeleteObject(id contentid.ContentId) error {
	path := filepath.Join(s.objectsDir(), id.BlobID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object %s: %w", id, err)
	}
	return nil
}

func (s *Store) ObjectExists(id contentid.ContentId) (bool, error) {
	path := filepath.Join(s.objectsDir(), id.BlobID)
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat object %s: %w", id, err)
}

func (s *Store) ReadState() (state.State, error) {
	path := s.statePath()
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return state.New(), nil
		}
		return state.State{}, fmt.Errorf("failed to read state: %w", err)
	}

	var st state.State
	if err := yaml.Unmarshal(content, &st); err != nil {
		return state.State{}, fmt.Errorf("failed to parse state: %w", err)
	}
	return st, nil
}

func (s *Store) WriteState(st state.State) error {
	out, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	tempPath := s.tempStatePath()
	if err := os.WriteFile(tempPath, out, 0o644); err != nil {
		return fmt.Errorf("failed to write staged state: %w", err)
	}
	if err := os.Rename(tempPath, s.statePath()); err != nil {
		return fmt.Errorf("failed to rename staged state into place: %w", err)
	}
	return nil
}

func (s *Store) UpdateState(fn func(*state.State) error) error {
	st, err := s.ReadState()
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	return s.WriteState(st)
}
