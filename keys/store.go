package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"suiml.io/suiml/sui"
)

// KeyStore keeps seeds on the local filesystem. Files are written 0600 and
// never overwritten unless asked.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Name  string
	Roles []string
}

func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".suiml", "keys"), nil
}

// Open returns a store rooted at directory, or at DefaultDirectory when empty.
func Open(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootPath(name string) string {
	return filepath.Join(ks.Directory, name, "root.key")
}

func (ks *KeyStore) rolePath(name, role string) string {
	return filepath.Join(ks.Directory, name, "roles", role+".key")
}

func checkIdent(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	for _, char := range s {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", char, kind)
	}
	return nil
}

func CheckKeyName(name string) error { return checkIdent("key name", name) }

func CheckRole(role string) error { return checkIdent("role", role) }

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimPrefix(strings.TrimSpace(seedHex), "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

func writeSeed(path string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

func readSeed(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// InitializeRootKey stores seed as the root key of name and returns its address.
func (ks *KeyStore) InitializeRootKey(name string, seed []byte, overwrite bool) (sui.Address, string, error) {
	if err := CheckKeyName(name); err != nil {
		return sui.Address{}, "", err
	}
	path := ks.rootPath(name)
	if err := writeSeed(path, seed, overwrite); err != nil {
		return sui.Address{}, "", err
	}
	addr, err := AddressFromSeed(seed)
	return addr, path, err
}

// ImportPrivateKey stores a Sui private key (hex seed or base64 flag||seed)
// as the root key of name.
func (ks *KeyStore) ImportPrivateKey(name, privateKey string, overwrite bool) (sui.Address, string, error) {
	kp, err := sui.ParsePrivateKey(privateKey)
	if err != nil {
		return sui.Address{}, "", err
	}
	return ks.InitializeRootKey(name, kp.Seed(), overwrite)
}

// DeriveKeyFromRole derives and stores the role key of name.
func (ks *KeyStore) DeriveKeyFromRole(name, role string, overwrite bool) (sui.Address, string, error) {
	if err := CheckKeyName(name); err != nil {
		return sui.Address{}, "", err
	}
	if err := CheckRole(role); err != nil {
		return sui.Address{}, "", err
	}
	rootSeed, err := readSeed(ks.rootPath(name))
	if err != nil {
		return sui.Address{}, "", err
	}
	roleSeed, err := DeriveRoleSeed(rootSeed, role)
	if err != nil {
		return sui.Address{}, "", err
	}
	path := ks.rolePath(name, role)
	if err := writeSeed(path, roleSeed, overwrite); err != nil {
		return sui.Address{}, "", err
	}
	addr, err := AddressFromSeed(roleSeed)
	return addr, path, err
}

// LoadSeed returns the root seed of name, or its role seed when role is set.
func (ks *KeyStore) LoadSeed(name, role string) ([]byte, error) {
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}
	if role == "" {
		return readSeed(ks.rootPath(name))
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}
	return readSeed(ks.rolePath(name, role))
}

// Keypair loads the signing key pair of name (and role, if set).
func (ks *KeyStore) Keypair(name, role string) (*sui.Keypair, error) {
	seed, err := ks.LoadSeed(name, role)
	if err != nil {
		return nil, err
	}
	return sui.KeypairFromSeed(seed)
}

// ResolveSigner picks the signing key from, in order: an explicit private
// key, a stored key name (and role), or nothing. A nil keypair with a nil
// error means no key was configured.
func (ks *KeyStore) ResolveSigner(privateKey, name, role string) (*sui.Keypair, error) {
	if privateKey != "" {
		return sui.ParsePrivateKey(privateKey)
	}
	if name != "" {
		return ks.Keypair(name, role)
	}
	if role != "" {
		return nil, errors.New("role given without a key name")
	}
	return nil, nil
}

// ListKeys returns every stored key name with its derived roles, sorted.
func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var result []KeyEntry
	for _, name := range names {
		var roles []string
		roleEntries, rerr := os.ReadDir(filepath.Join(ks.Directory, name, "roles"))
		if rerr == nil {
			for _, roleEntry := range roleEntries {
				if !roleEntry.IsDir() && strings.HasSuffix(roleEntry.Name(), ".key") {
					roles = append(roles, strings.TrimSuffix(roleEntry.Name(), ".key"))
				}
			}
			sort.Strings(roles)
		}
		result = append(result, KeyEntry{Name: name, Roles: roles})
	}
	return result, nil
}
