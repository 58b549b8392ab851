package ledger

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/blake2b"
)

// secp256k1 scheme flag byte used in the ledger's signature wire format.
const schemeFlagSecp256k1 = byte(0x01)

// intentScope is the 3-byte intent prefix ([scope, version, app_id]) the
// ledger prepends to transaction bytes before hashing, so a signature over
// a transaction can never be replayed as a signature over an unrelated
// message type.
var intentScope = [3]byte{0, 0, 0}

// Signer signs ledger transactions with a secp256k1 keypair loaded from a
// wallet keystore file.
type Signer struct {
	privateKey *secp256k1.PrivateKey
	publicKey  []byte // 33-byte compressed form
	address    string
}

// keystoreFile is a wallet keystore: a JSON array of base64-encoded
// "flag || private key" entries, one per managed address.
type keystoreFile []string

// LoadSigner reads walletPath and returns a signer for its first
// secp256k1 entry along with the derived address.
func LoadSigner(walletPath string) (*Signer, error) {
	content, err := os.ReadFile(walletPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet keystore %s: %w", walletPath, err)
	}

	var entries keystoreFile
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse wallet keystore %s: %w", walletPath, err)
	}

	for _, entry := range entries {
		raw, err := base64.StdEncoding.DecodeString(entry)
		if err != nil {
			continue
		}
		if len(raw) < 2 || raw[0] != schemeFlagSecp256k1 {
			continue
		}

		privKey := secp256k1.PrivKeyFromBytes(raw[1:])
		pub := privKey.PubKey().SerializeCompressed()

		return &Signer{
			privateKey: privKey,
			publicKey:  pub,
			address:    deriveAddress(pub),
		}, nil
	}

	return nil, fmt.Errorf("no secp256k1 key found in wallet keystore %s", walletPath)
}

// Address returns the signer's on-chain address.
func (s *Signer) Address() string {
	return s.address
}

// deriveAddress hashes a [scheme flag || compressed pubkey] blake2b-256
// digest into a hex address, matching the ledger's address derivation.
func deriveAddress(compressedPubKey []byte) string {
	data := append([]byte{schemeFlagSecp256k1}, compressedPubKey...)
	sum := blake2b.Sum256(data)
	return fmt.Sprintf("0x%x", sum)
}

// SignTransaction signs base64-encoded transaction bytes as returned by an
// unsafe_* transaction-builder RPC call, and returns the base64-encoded
// serialized signature the ledger's execute RPC expects: a one-byte
// scheme flag, the 64-byte signature, and the compressed public key.
func (s *Signer) SignTransaction(txBytesB64 string) (string, error) {
	txBytes, err := base64.StdEncoding.DecodeString(txBytesB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode transaction bytes: %w", err)
	}

	intentMessage := make([]byte, 0, len(intentScope)+len(txBytes))
	intentMessage = append(intentMessage, intentScope[:]...)
	intentMessage = append(intentMessage, txBytes...)

	digest := blake2b.Sum256(intentMessage)

	sig, err := signRaw(s.privateKey, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction digest: %w", err)
	}

	wire := make([]byte, 0, 1+len(sig)+len(s.publicKey))
	wire = append(wire, schemeFlagSecp256k1)
	wire = append(wire, sig...)
	wire = append(wire, s.publicKey...)

	return base64.StdEncoding.EncodeToString(wire), nil
}

// signRaw produces a fixed 64-byte r||s signature over digest, in
// canonical low-S form.
func signRaw(priv *secp256k1.PrivateKey, digest []byte) ([]byte, error) {
	ecdsaKey := priv.ToECDSA()
	r, s, err := ecdsa.Sign(rand.Reader, ecdsaKey, digest)
	if err != nil {
		return nil, err
	}

	order := ecdsaKey.Curve.Params().N
	halfOrder := new(big.Int).Rsh(order, 1)
	if s.Cmp(halfOrder) > 0 {
		s = new(big.Int).Sub(order, s)
	}

	out := make([]byte, 64)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out, nil
}
