package sui

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// SchemeEd25519 is the signature scheme flag byte for Ed25519.
const SchemeEd25519 byte = 0x00

// intentTransaction is the intent prefix (scope TransactionData, version V0,
// app id Sui) prepended to transaction bytes before hashing.
var intentTransaction = [3]byte{0, 0, 0}

// Signer signs transaction bytes on behalf of an address.
type Signer interface {
	Address() Address
	// SignTransaction returns the serialized signature, base64 of
	// flag || signature || public key.
	SignTransaction(txBytes []byte) (string, error)
}

// Keypair is an Ed25519 signing key.
type Keypair struct {
	priv ed25519.PrivateKey
}

var _ Signer = (*Keypair)(nil)

// NewKeypair generates a random key pair.
func NewKeypair() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Keypair{priv: priv}, nil
}

// KeypairFromSeed derives the key pair for a 32-byte seed.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("sui: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// ParsePrivateKey accepts a 64-character hex seed, or base64 of either the
// 32-byte seed or flag||seed as exported by the Sui keystore.
func ParsePrivateKey(s string) (*Keypair, error) {
	s = strings.TrimSpace(s)
	if h := strings.TrimPrefix(s, "0x"); len(h) == 2*ed25519.SeedSize {
		if seed, err := hex.DecodeString(h); err == nil {
			return KeypairFromSeed(seed)
		}
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("sui: private key is neither hex nor base64")
	}
	switch {
	case len(b) == ed25519.SeedSize:
		return KeypairFromSeed(b)
	case len(b) == ed25519.SeedSize+1 && b[0] == SchemeEd25519:
		return KeypairFromSeed(b[1:])
	case len(b) == ed25519.SeedSize+1:
		return nil, fmt.Errorf("sui: unsupported key scheme flag 0x%02x", b[0])
	default:
		return nil, fmt.Errorf("sui: private key has %d bytes", len(b))
	}
}

func (k *Keypair) PublicKey() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

// Seed returns a copy of the 32-byte seed.
func (k *Keypair) Seed() []byte { return append([]byte(nil), k.priv.Seed()...) }

// Address is blake2b-256(flag || public key).
func (k *Keypair) Address() Address {
	return AddressFromPublicKey(k.PublicKey())
}

// AddressFromPublicKey derives the address of an Ed25519 public key.
func AddressFromPublicKey(pub ed25519.PublicKey) Address {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, SchemeEd25519)
	buf = append(buf, pub...)
	return Address(blake2b.Sum256(buf))
}

// TransactionDigest is the message that is actually signed:
// blake2b-256(intent || txBytes).
func TransactionDigest(txBytes []byte) [32]byte {
	buf := make([]byte, 0, len(intentTransaction)+len(txBytes))
	buf = append(buf, intentTransaction[:]...)
	buf = append(buf, txBytes...)
	return blake2b.Sum256(buf)
}

func (k *Keypair) SignTransaction(txBytes []byte) (string, error) {
	digest := TransactionDigest(txBytes)
	sig := ed25519.Sign(k.priv, digest[:])
	pub := k.PublicKey()

	out := make([]byte, 0, 1+len(sig)+len(pub))
	out = append(out, SchemeEd25519)
	out = append(out, sig...)
	out = append(out, pub...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// PublicKeyBase64 returns base64(flag || public key).
func (k *Keypair) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(append([]byte{SchemeEd25519}, k.PublicKey()...))
}

// ExtendedPublicKey returns flag || public key as a big-endian decimal
// integer, the form the zkLogin prover expects for the ephemeral key.
func (k *Keypair) ExtendedPublicKey() string {
	return new(big.Int).SetBytes(append([]byte{SchemeEd25519}, k.PublicKey()...)).String()
}

// VerifyTransaction checks a serialized Ed25519 signature over txBytes and
// returns the signer's address.
func VerifyTransaction(txBytes []byte, serialized string) (Address, error) {
	b, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil {
		return Address{}, fmt.Errorf("sui: signature is not base64: %w", err)
	}
	if len(b) != 1+ed25519.SignatureSize+ed25519.PublicKeySize || b[0] != SchemeEd25519 {
		return Address{}, fmt.Errorf("sui: not an Ed25519 signature")
	}
	sig := b[1 : 1+ed25519.SignatureSize]
	pub := ed25519.PublicKey(b[1+ed25519.SignatureSize:])
	digest := TransactionDigest(txBytes)
	if !ed25519.Verify(pub, digest[:], sig) {
		return Address{}, fmt.Errorf("sui: signature verification failed")
	}
	return AddressFromPublicKey(pub), nil
}
