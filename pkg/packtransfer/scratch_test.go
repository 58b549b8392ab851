package packtransfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitBareRepo(t *testing.T) {
	gitDir := filepath.Join(t.TempDir(), "test.git")
	require.NoError(t, initBareRepo(gitDir))

	assert.DirExists(t, filepath.Join(gitDir, "objects"))
	assert.DirExists(t, filepath.Join(gitDir, "refs"))
	assert.FileExists(t, filepath.Join(gitDir, "HEAD"))
}

func TestNewScratchRepoCreatesUniqueDirs(t *testing.T) {
	a, err := newScratchRepo()
	require.NoError(t, err)
	defer a.Close()

	b, err := newScratchRepo()
	require.NoError(t, err)
	defer b.Close()

	assert.NotEqual(t, a.root, b.root)
	assert.DirExists(t, a.objectsDir())
}

func TestCollectLooseObjectPaths(t *testing.T) {
	objectsDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(objectsDir, "ab"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(objectsDir, "ab", "cdef"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(objectsDir, "pack"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(objectsDir, "pack", "pack-123.pack"), []byte("y"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(objectsDir, "info"), 0o755))

	paths, err := collectLooseObjectPaths(objectsDir)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(objectsDir, "ab", "cdef"), paths[0])
}
