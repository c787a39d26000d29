package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"suiml.io/suiml/sui"
)

const kdfDomain = "suiml-keys-v1"

// DeriveRoleSeed deterministically derives a role-specific seed from a root seed.
func DeriveRoleSeed(rootSeed []byte, role string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}

	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(kdfDomain))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("role:"))
	_, _ = h.Write([]byte(role))
	return h.Sum(nil)[:ed25519.SeedSize], nil
}

// AddressFromSeed returns the Sui address controlled by seed.
func AddressFromSeed(seed []byte) (sui.Address, error) {
	kp, err := sui.KeypairFromSeed(seed)
	if err != nil {
		return sui.Address{}, err
	}
	return kp.Address(), nil
}

// ExportPrivateKey encodes seed as base64(flag || seed), the form accepted by
// sui.ParsePrivateKey and the Sui keystore file.
func ExportPrivateKey(seed []byte) (string, error) {
	if len(seed) != ed25519.SeedSize {
		return "", fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return base64.StdEncoding.EncodeToString(append([]byte{sui.SchemeEd25519}, seed...)), nil
}
