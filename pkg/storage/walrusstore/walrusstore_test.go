package walrusstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbbradley/git-remote-walrus/pkg/config"
	"github.com/wbbradley/git-remote-walrus/pkg/contentid"
	"github.com/wbbradley/git-remote-walrus/pkg/state"
)

func newTestStore(t *testing.T) (*Store, *fakeBlobStore, *fakeLedger) {
	t.Helper()

	blobs := newFakeBlobStore()
	ledg := newFakeLedger(blobs)

	cfg := config.Config{
		CacheDir:                   filepath.Join(t.TempDir(), "cache"),
		DefaultEpochs:              5,
		ExpirationWarningThreshold: 10,
	}

	s, err := newWithDeps(cfg, blobs, ledg)
	require.NoError(t, err)
	require.NoError(t, s.Initialize())
	return s, blobs, ledg
}

func TestWriteAndReadSingleObject(t *testing.T) {
	s, _, _ := newTestStore(t)

	content := []byte("Hello, World!")
	id, err := s.WriteObject(content)
	require.NoError(t, err)

	read, err := s.ReadObject(id)
	require.NoError(t, err)
	assert.Equal(t, content, read)
}

func TestWriteObjectsBatchesIntoOneBlob(t *testing.T) {
	s, blobs, _ := newTestStore(t)

	contents := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}
	ids, err := s.WriteObjects(contents)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	for i, id := range ids {
		assert.True(t, id.Batched)
		assert.Equal(t, ids[0].BlobID, id.BlobID)

		read, err := s.ReadObject(id)
		require.NoError(t, err)
		assert.Equal(t, contents[i], read)
	}

	assert.Len(t, blobs.blobs, 1)
}

func TestWriteObjectsDeduplicatesAcrossCalls(t *testing.T) {
	s, blobs, _ := newTestStore(t)

	content := []byte("repeated content")
	_, err := s.WriteObjects([][]byte{content})
	require.NoError(t, err)
	initialBlobCount := len(blobs.blobs)

	_, err = s.WriteObjects([][]byte{content})
	require.NoError(t, err)
	assert.Equal(t, initialBlobCount, len(blobs.blobs))
}

// TestWriteObjectsDeduplicatesBatchedMember covers a dedup hit against an
// object that was originally uploaded as part of a multi-object batch: the
// cache index must reconstruct the exact batched content-id the first call
// produced, not a legacy whole-blob id.
func TestWriteObjectsDeduplicatesBatchedMember(t *testing.T) {
	s, blobs, _ := newTestStore(t)

	contents := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}
	first, err := s.WriteObjects(contents)
	require.NoError(t, err)
	require.True(t, first[1].Batched)
	initialBlobCount := len(blobs.blobs)

	second, err := s.WriteObjects([][]byte{[]byte("beta")})
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.Equal(t, first[1], second[0])
	assert.Equal(t, initialBlobCount, len(blobs.blobs), "a dedup hit must not upload again")
}

// TestWriteObjectsPartitionsAcrossMaxBatchSize covers spec.md §4.7.2's
// grouping requirement: objects whose concatenated size would exceed the
// network's reported max blob size must land in separate uploaded blobs,
// not one unbounded concatenation.
func TestWriteObjectsPartitionsAcrossMaxBatchSize(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.maxBlobSize = 10
	ledg := newFakeLedger(blobs)

	cfg := config.Config{
		CacheDir:                   filepath.Join(t.TempDir(), "cache"),
		DefaultEpochs:              5,
		ExpirationWarningThreshold: 10,
	}
	s, err := newWithDeps(cfg, blobs, ledg)
	require.NoError(t, err)
	require.NoError(t, s.Initialize())

	contents := [][]byte{
		[]byte("0123456789"), // exactly fills one group alone
		[]byte("abcde"),
		[]byte("fghij"), // abcde+fghij together exactly fill a second group
		[]byte("k"),
	}
	ids, err := s.WriteObjects(contents)
	require.NoError(t, err)
	require.Len(t, ids, 4)

	assert.False(t, ids[0].Batched)
	assert.Equal(t, ids[1].BlobID, ids[2].BlobID)
	assert.NotEqual(t, ids[0].BlobID, ids[1].BlobID)
	assert.NotEqual(t, ids[1].BlobID, ids[3].BlobID)
	assert.Len(t, blobs.blobs, 3)

	for i, content := range contents {
		read, err := s.ReadObject(ids[i])
		require.NoError(t, err)
		assert.Equal(t, content, read)
	}
}

// TestWriteObjectsRejectsOversizedSingleton covers the oversized-singleton
// error case: an object larger than the maximum batchable size cannot be
// split and must be reported as an error.
func TestWriteObjectsRejectsOversizedSingleton(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.maxBlobSize = 4
	ledg := newFakeLedger(blobs)

	cfg := config.Config{
		CacheDir:                   filepath.Join(t.TempDir(), "cache"),
		DefaultEpochs:              5,
		ExpirationWarningThreshold: 10,
	}
	s, err := newWithDeps(cfg, blobs, ledg)
	require.NoError(t, err)
	require.NoError(t, s.Initialize())

	_, err = s.WriteObjects([][]byte{[]byte("too big for the cap")})
	assert.Error(t, err)
}

func TestReadObjectsDedupesAndParallelizes(t *testing.T) {
	s, _, _ := newTestStore(t)

	contentA := []byte("object A")
	contentB := []byte("object B")
	idA, err := s.WriteObject(contentA)
	require.NoError(t, err)
	idB, err := s.WriteObject(contentB)
	require.NoError(t, err)

	results, err := s.ReadObjects([]contentid.ContentId{idA, idA, idB})
	require.NoError(t, err)
	assert.Equal(t, contentA, results[0])
	assert.Equal(t, contentA, results[1])
	assert.Equal(t, contentB, results[2])
}

func TestStateRoundtrip(t *testing.T) {
	s, _, _ := newTestStore(t)

	err := s.UpdateState(func(st *state.State) error {
		st.Refs["refs/heads/main"] = "abc123"
		return nil
	})
	require.NoError(t, err)

	read, err := s.ReadState()
	require.NoError(t, err)
	assert.Equal(t, "abc123", read.Refs["refs/heads/main"])
}

func TestObjectExistsChecksCacheIndexOnly(t *testing.T) {
	s, _, _ := newTestStore(t)

	id, err := s.WriteObject([]byte("present"))
	require.NoError(t, err)

	exists, err := s.ObjectExists(id)
	require.NoError(t, err)
	assert.True(t, exists)
}
