package walrusblob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlobInfoNewlyCreated(t *testing.T) {
	output := []byte(`{"newlyCreated": {"blobObject": {"blobId": "test-blob-id-123"}, "sharedBlobObject": "0x123"}}`)
	info, err := parseBlobInfo(output)
	require.NoError(t, err)
	assert.Equal(t, "test-blob-id-123", info.BlobID)
	assert.Equal(t, "0x123", info.SharedObjectID)
}

func TestParseBlobInfoAlreadyCertified(t *testing.T) {
	output := []byte(`{"alreadyCertified": {"blobId": "existing-blob-id", "sharedBlobObject": "0x456"}}`)
	info, err := parseBlobInfo(output)
	require.NoError(t, err)
	assert.Equal(t, "existing-blob-id", info.BlobID)
	assert.Equal(t, "0x456", info.SharedObjectID)
}

func TestParseBlobInfoNewFormatAlreadyCertified(t *testing.T) {
	output := []byte(`[{"blobStoreResult": {"alreadyCertified": {"blobId": "new-format-blob-id", "sharedBlobObject": "0x789"}}, "path": "/tmp/file"}]`)
	info, err := parseBlobInfo(output)
	require.NoError(t, err)
	assert.Equal(t, "new-format-blob-id", info.BlobID)
	assert.Equal(t, "0x789", info.SharedObjectID)
}

func TestParseBlobInfoNewFormatNewlyCreated(t *testing.T) {
	output := []byte(`[{"blobStoreResult": {"newlyCreated": {"blobObject": {"blobId": "newly-created-id"}, "sharedBlobObject": "0xabc"}}, "path": "/tmp/file"}]`)
	info, err := parseBlobInfo(output)
	require.NoError(t, err)
	assert.Equal(t, "newly-created-id", info.BlobID)
	assert.Equal(t, "0xabc", info.SharedObjectID)
}

func TestParseBlobInfoUnrecognized(t *testing.T) {
	_, err := parseBlobInfo([]byte(`{"somethingElse": true}`))
	assert.Error(t, err)
}
