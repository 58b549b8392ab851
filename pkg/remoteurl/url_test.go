package remoteurl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFilesystemPathWithScheme(t *testing.T) {
	target := Parse("walrus::/tmp/my-repo")
	require.Equal(t, Filesystem, target.Kind)
	require.Equal(t, "/tmp/my-repo", target.Address)
}

func TestParseFilesystemPathWithoutScheme(t *testing.T) {
	target := Parse("/tmp/my-repo")
	require.Equal(t, Filesystem, target.Kind)
	require.Equal(t, "/tmp/my-repo", target.Address)
}

func TestParseRelativeFilesystemPath(t *testing.T) {
	target := Parse("walrus::../sibling-repo")
	require.Equal(t, Filesystem, target.Kind)
	require.Equal(t, "../sibling-repo", target.Address)
}

func TestParseDistributedObjectID(t *testing.T) {
	target := Parse("walrus::0xabc123def456")
	require.Equal(t, Distributed, target.Kind)
	require.Equal(t, "0xabc123def456", target.Address)
}

func TestParseDistributedObjectIDWithoutScheme(t *testing.T) {
	target := Parse("0xABCDEF0123456789")
	require.Equal(t, Distributed, target.Kind)
	require.Equal(t, "0xABCDEF0123456789", target.Address)
}

func TestParseBarePrefixIsNotAnObjectID(t *testing.T) {
	target := Parse("walrus::0x")
	require.Equal(t, Filesystem, target.Kind)
	require.Equal(t, "0x", target.Address)
}

func TestParseNonHexAfterPrefixIsFilesystem(t *testing.T) {
	target := Parse("walrus::0xnothex/path")
	require.Equal(t, Filesystem, target.Kind)
	require.Equal(t, "0xnothex/path", target.Address)
}
