package walrusblob

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbbradley/git-remote-walrus/pkg/contentid"
)

func TestCacheIndexInsertAndLookup(t *testing.T) {
	idx := NewCacheIndex()
	idx.Insert("0x1", "sha256_1")
	idx.Insert("0x2", "sha256_2")

	sha, ok := idx.SHA256("0x1")
	assert.True(t, ok)
	assert.Equal(t, "sha256_1", sha)

	obj, ok := idx.ObjectID("sha256_2")
	assert.True(t, ok)
	assert.Equal(t, "0x2", obj)

	assert.Equal(t, 2, idx.Len())
}

func TestCacheIndexBidirectional(t *testing.T) {
	idx := NewCacheIndex()
	idx.Insert("0xabc", "sha_xyz")

	assert.True(t, idx.ContainsObject("0xabc"))
	assert.True(t, idx.ContainsSHA256("sha_xyz"))
}

func TestCacheIndexRemove(t *testing.T) {
	idx := NewCacheIndex()
	idx.Insert("0x1", "sha1")
	idx.Insert("0x2", "sha2")

	sha, ok := idx.RemoveByObjectID("0x1")
	assert.True(t, ok)
	assert.Equal(t, "sha1", sha)
	assert.False(t, idx.ContainsObject("0x1"))
	assert.False(t, idx.ContainsSHA256("sha1"))
	assert.Equal(t, 1, idx.Len())

	obj, ok := idx.RemoveBySHA256("sha2")
	assert.True(t, ok)
	assert.Equal(t, "0x2", obj)
	assert.Equal(t, 0, idx.Len())
}

func TestCacheIndexSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache_index.yaml")

	idx := NewCacheIndex()
	idx.Insert("0x1", "sha1")
	idx.Insert("0x2", "sha2")
	require.NoError(t, idx.Save(path))

	loaded, err := LoadCacheIndex(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	sha, ok := loaded.SHA256("0x1")
	assert.True(t, ok)
	assert.Equal(t, "sha1", sha)
}

func TestCacheIndexLoadMissing(t *testing.T) {
	dir := t.TempDir()
	idx, err := LoadCacheIndex(filepath.Join(dir, "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestCacheIndexContentIDReconstructsBatchedForm(t *testing.T) {
	idx := NewCacheIndex()
	id := contentid.Batch("0xblob", 10, 5)
	idx.InsertContentID("sha_batched", id)

	got, ok := idx.ContentID("sha_batched")
	require.True(t, ok)
	assert.Equal(t, id, got)

	// InsertContentID still populates the plain blob-id map Insert does.
	sha, ok := idx.SHA256("0xblob")
	assert.True(t, ok)
	assert.Equal(t, "sha_batched", sha)
}

func TestCacheIndexContentIDSurvivesSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache_index.yaml")

	idx := NewCacheIndex()
	idx.InsertContentID("sha_batched", contentid.Batch("0xblob", 10, 5))
	idx.InsertContentID("sha_legacy", contentid.Legacy("0xother"))
	require.NoError(t, idx.Save(path))

	loaded, err := LoadCacheIndex(path)
	require.NoError(t, err)

	got, ok := loaded.ContentID("sha_batched")
	require.True(t, ok)
	assert.Equal(t, contentid.Batch("0xblob", 10, 5), got)

	got, ok = loaded.ContentID("sha_legacy")
	require.True(t, ok)
	assert.Equal(t, contentid.Legacy("0xother"), got)
}
