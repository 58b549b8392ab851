package contentid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseLegacy(t *testing.T) {
	parsed, err := Parse("0xabc123")
	require.NoError(t, err)
	assert.Equal(t, Legacy("0xabc123"), parsed)
	assert.False(t, parsed.Batched)
	assert.Equal(t, "0xabc123", parsed.Encode())
}

func TestParseBatched(t *testing.T) {
	parsed, err := Parse("0xabc123:100:200")
	require.NoError(t, err)
	assert.Equal(t, Batch("0xabc123", 100, 200), parsed)
	assert.True(t, parsed.Batched)
	assert.Equal(t, "0xabc123:100:200", parsed.Encode())
}

func TestCreateBatched(t *testing.T) {
	parsed := Batch("0xdef456", 50, 150)
	assert.Equal(t, "0xdef456:50:150", parsed.Encode())
}

func TestParseInvalidFormat(t *testing.T) {
	_, err := Parse("0xabc:100")
	assert.Error(t, err)

	_, err = Parse("0xabc:100:200:extra")
	assert.Error(t, err)
}

func TestParseInvalidNumbers(t *testing.T) {
	_, err := Parse("0xabc:invalid:200")
	assert.Error(t, err)

	_, err = Parse("0xabc:100:invalid")
	assert.Error(t, err)
}

func TestRoundtrip(t *testing.T) {
	for _, s := range []string{
		"0x1234567890abcdef",
		"0xfedcba0987654321:12345:67890",
	} {
		parsed, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, parsed.Encode())
	}
}

func TestYAMLRoundtrip(t *testing.T) {
	original := Batch("0xabc", 1, 2)
	out, err := yaml.Marshal(original)
	require.NoError(t, err)

	var back ContentId
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, original, back)
}
