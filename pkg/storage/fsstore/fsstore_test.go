package fsstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbbradley/git-remote-walrus/pkg/contentid"
	"github.com/wbbradley/git-remote-walrus/pkg/state"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir())
	require.NoError(t, s.Initialize())
	return s
}

func TestWriteAndReadObject(t *testing.T) {
	s := newTestStore(t)

	content := []byte("Hello, World!")
	id, err := s.WriteObject(content)
	require.NoError(t, err)

	read, err := s.ReadObject(id)
	require.NoError(t, err)
	assert.Equal(t, content, read)
}

func TestObjectDeduplication(t *testing.T) {
	s := newTestStore(t)

	content := []byte("Test content")
	id1, err := s.WriteObject(content)
	require.NoError(t, err)
	id2, err := s.WriteObject(content)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
}

func TestStatePersistence(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateState(func(st *state.State) error {
		st.Refs["refs/heads/main"] = "abc123"
		return nil
	})
	require.NoError(t, err)

	read, err := s.ReadState()
	require.NoError(t, err)
	assert.Equal(t, "abc123", read.Refs["refs/heads/main"])
}

func TestReadMissingObject(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReadObject(contentid.Legacy("doesnotexist"))
	assert.Error(t, err)
}

func TestObjectExists(t *testing.T) {
	s := newTestStore(t)
	id, err := s.WriteObject([]byte("present"))
	require.NoError(t, err)

	exists, err := s.ObjectExists(id)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.ObjectExists(contentid.Legacy("absent"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBatchedReadSlice(t *testing.T) {
	s := newTestStore(t)
	id, err := s.WriteObject([]byte("0123456789"))
	require.NoError(t, err)

	sliced := contentid.Batch(id.BlobID, 2, 4)
	read, err := s.ReadObject(sliced)
	require.NoError(t, err)
	assert.Equal(t, []byte("2345"), read)
}
