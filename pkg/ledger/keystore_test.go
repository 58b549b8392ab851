package ledger

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func writeTestKeystore(t *testing.T, dir string) (string, *secp256k1.PrivateKey) {
	t.Helper()

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	entry := append([]byte{schemeFlagSecp256k1}, priv.Serialize()...)
	encoded := base64.StdEncoding.EncodeToString(entry)

	content, err := json.Marshal([]string{encoded})
	require.NoError(t, err)

	path := filepath.Join(dir, "sui.keystore")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path, priv
}

func TestLoadSigner(t *testing.T) {
	dir := t.TempDir()
	path, priv := writeTestKeystore(t, dir)

	signer, err := LoadSigner(path)
	require.NoError(t, err)
	assert.NotEmpty(t, signer.Address())
	assert.Equal(t, priv.PubKey().SerializeCompressed(), signer.publicKey)
}

func TestSignTransactionVerifiable(t *testing.T) {
	dir := t.TempDir()
	path, priv := writeTestKeystore(t, dir)

	signer, err := LoadSigner(path)
	require.NoError(t, err)

	txBytes := []byte("fake transaction bytes")
	txBytesB64 := base64.StdEncoding.EncodeToString(txBytes)

	sigB64, err := signer.SignTransaction(txBytesB64)
	require.NoError(t, err)

	wire, err := base64.StdEncoding.DecodeString(sigB64)
	require.NoError(t, err)
	require.Len(t, wire, 1+64+33)
	assert.Equal(t, schemeFlagSecp256k1, wire[0])

	sig := wire[1:65]
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])

	intentMessage := append(append([]byte{}, intentScope[:]...), txBytes...)
	digest := blake2b.Sum256(intentMessage)

	ecdsaPub := priv.PubKey().ToECDSA()
	assert.True(t, ecdsa.Verify(ecdsaPub, digest[:], r, s))
}

func TestLoadSignerMissingKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sui.keystore")
	content, err := json.Marshal([]string{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	_, err = LoadSigner(path)
	assert.Error(t, err)
}
