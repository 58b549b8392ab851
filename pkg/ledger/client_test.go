package ledger

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPackageID(t *testing.T) {
	pkg, err := extractPackageID("0xabc123::remote_state::RemoteState")
	require.NoError(t, err)
	assert.Equal(t, "0xabc123", pkg)
}

func TestExtractPackageIDMalformed(t *testing.T) {
	_, err := extractPackageID("not-a-type-string")
	assert.Error(t, err)
}

func TestParseNumericBlobID(t *testing.T) {
	encoded, err := parseNumericBlobID("12345")
	require.NoError(t, err)

	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Len(t, decoded, 32)
}

func TestParseNumericBlobIDInvalid(t *testing.T) {
	_, err := parseNumericBlobID("not-a-number")
	assert.Error(t, err)
}

func TestParseSharedBlobContent(t *testing.T) {
	raw := []byte(`{
		"fields": {
			"blob": {
				"fields": {
					"blob_id": "12345",
					"storage": {
						"fields": { "end_epoch": "42" }
					}
				}
			}
		}
	}`)

	status, err := parseSharedBlobContent("0xdead", raw)
	require.NoError(t, err)
	assert.Equal(t, "0xdead", status.ObjectID)
	assert.Equal(t, uint64(42), status.EndEpoch)
	assert.NotEmpty(t, status.BlobID)
}
