// Package state models the mutable metadata a storage backend manages:
// the ref table and the object-id-to-content-id map.
package state

import (
	"sort"

	"github.com/wbbradley/git-remote-walrus/pkg/contentid"
)

// State is the pair (refs, objects). Zero value is the empty state.
type State struct {
	// Refs maps a ref name (e.g. "refs/heads/main") to a 40-hex object-id.
	Refs map[string]string `yaml:"refs"`
	// Objects maps a 40-hex object-id to the backend's content-id for it.
	Objects map[string]contentid.ContentId `yaml:"objects"`
}

// New returns an empty State with initialized maps.
func New() State {
	return State{
		Refs:    make(map[string]string),
		Objects: make(map[string]contentid.ContentId),
	}
}

// SortedRefNames returns ref names in sorted order, for deterministic
// output in the list handler and in serialized form.
func (s State) SortedRefNames() []string {
	names := make([]string, 0, len(s.Refs))
	for name := range s.Refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedObjectIDs returns object-ids in sorted order.
func (s State) SortedObjectIDs() []string {
	ids := make([]string, 0, len(s.Objects))
	for id := range s.Objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UnmarshalYAML defaults both maps to empty (not nil) when a key is absent
// from the document, mirroring the `#[serde(default)]` behavior the
// original state.rs relied on.
func (s *State) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw struct {
		Refs    map[string]string              `yaml:"refs"`
		Objects map[string]contentid.ContentId `yaml:"objects"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if raw.Refs == nil {
		raw.Refs = make(map[string]string)
	}
	if raw.Objects == nil {
		raw.Objects = make(map[string]contentid.ContentId)
	}
	s.Refs = raw.Refs
	s.Objects = raw.Objects
	return nil
}

// Clone returns a deep copy, used by update_state callers that want to
// mutate freely without touching a cached copy on error.
func (s State) Clone() State {
	out := New()
	for k, v := range s.Refs {
		out.Refs[k] = v
	}
	for k, v := range s.Objects {
		out.Objects[k] = v
	}
	return out
}
