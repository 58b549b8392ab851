// Package storage defines the capability interfaces any concrete remote
// backend must satisfy: content-addressed byte storage, atomic ref/object
// state management, and one-time initialization.
package storage

import (
	"github.com/wbbradley/git-remote-walrus/pkg/contentid"
	"github.com/wbbradley/git-remote-walrus/pkg/state"
)

// ImmutableStore writes and reads content-addressed byte blobs. Writing
// the same bytes twice must return the same content-id without creating a
// second physical copy.
type ImmutableStore interface {
	// WriteObject writes content and returns its content-id. If content
	// already exists, returns the existing id without writing again.
	WriteObject(content []byte) (contentid.ContentId, error)

	// WriteObjects writes a batch of objects, returning content-ids in the
	// same order as the inputs. Backends that can batch uploads (see
	// walrusstore) do so here; fsstore simply iterates.
	WriteObjects(contents [][]byte) ([]contentid.ContentId, error)

	// ReadObject reads a single object by content-id.
	ReadObject(id contentid.ContentId) ([]byte, error)

	// ReadObjects reads a batch of objects, in the order requested.
	ReadObjects(ids []contentid.ContentId) ([][]byte, error)

	// DeleteObject removes the backend's local copy of an object. Never
	// errors for an id that is already absent. walrusstore removes only its
	// local cache file and leaves the uploaded blob in place; fsstore
	// removes the object file from its objects directory, which for that
	// backend is the only copy.
	DeleteObject(id contentid.ContentId) error

	// ObjectExists reports whether id resolves to a known object.
	ObjectExists(id contentid.ContentId) (bool, error)
}

// MutableStateStore provides atomic read-modify-write access to the ref
// table and object map.
type MutableStateStore interface {
	// ReadState returns the current state, or the empty state if none
	// exists yet.
	ReadState() (state.State, error)

	// WriteState atomically replaces the stored state.
	WriteState(s state.State) error

	// UpdateState reads the current state, applies fn, and writes the
	// result back atomically. fn returning an error aborts the write.
	UpdateState(fn func(*state.State) error) error
}

// Initializer prepares a backend for use (creating directories, verifying
// network access, and the like).
type Initializer interface {
	Initialize() error
}

// Backend is the combined capability set both concrete backends implement.
type Backend interface {
	ImmutableStore
	MutableStateStore
	Initializer
}
