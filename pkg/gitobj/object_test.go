package gitobj

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeObjectID(t *testing.T) {
	// Known blob: "test\n" -> SHA-1: 9daeafb9864cf43055ae93beb0afd6c7d144bfa4
	obj := FromRaw(KindBlob, []byte("test\n"))
	assert.Equal(t, "9daeafb9864cf43055ae93beb0afd6c7d144bfa4", obj.ID)
}

func TestLooseFormatRoundtrip(t *testing.T) {
	obj := FromRaw(KindBlob, []byte("hello world\n"))
	loose := obj.ToLooseFormat()

	parsed, err := FromLooseFormat(loose)
	require.NoError(t, err)
	assert.Equal(t, obj.ID, parsed.ID)
	assert.Equal(t, obj.Data, parsed.Data)
}

func TestWriteReadLooseFile(t *testing.T) {
	dir := t.TempDir()
	obj := FromRaw(KindBlob, []byte("Hello, World!"))

	path, err := WriteLoose(obj, dir)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path) || filepath.IsAbs(dir))

	_, err = os.Stat(path)
	require.NoError(t, err)

	read, err := ReadLoose(path)
	require.NoError(t, err)
	assert.Equal(t, obj.ID, read.ID)
	assert.Equal(t, obj.Data, read.Data)
}

func TestFromLooseFormatRejectsMissingNull(t *testing.T) {
	_, err := FromLooseFormat([]byte("blob 5 nodata"))
	assert.Error(t, err)
}

func TestFromLooseFormatRejectsUnknownKind(t *testing.T) {
	_, err := FromLooseFormat([]byte("widget 5\x00hello"))
	assert.Error(t, err)
}
