package keys

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestKeyStoreRootAndRole(t *testing.T) {
	ks, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	seed := testSeed(1)

	addr, path, err := ks.InitializeRootKey("alice", seed, false)
	if err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	if want, _ := AddressFromSeed(seed); addr != want {
		t.Fatalf("unexpected root address %s", addr)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("root key mode %v", info.Mode().Perm())
	}

	if _, _, err := ks.InitializeRootKey("alice", seed, false); err == nil {
		t.Fatalf("expected existing root key to be kept")
	}
	if _, _, err := ks.InitializeRootKey("alice", testSeed(2), true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	roleAddr, rolePath, err := ks.DeriveKeyFromRole("alice", "predictor", false)
	if err != nil {
		t.Fatalf("DeriveKeyFromRole: %v", err)
	}
	if filepath.Base(rolePath) != "predictor.key" {
		t.Fatalf("unexpected role path %s", rolePath)
	}
	kp, err := ks.Keypair("alice", "predictor")
	if err != nil {
		t.Fatalf("Keypair: %v", err)
	}
	if kp.Address() != roleAddr {
		t.Fatalf("role key address mismatch")
	}

	entries, err := ks.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "alice" || len(entries[0].Roles) != 1 || entries[0].Roles[0] != "predictor" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestKeyStoreImportAndResolve(t *testing.T) {
	ks := &KeyStore{Directory: t.TempDir()}
	seed := testSeed(9)

	addr, _, err := ks.ImportPrivateKey("bob", hex.EncodeToString(seed), false)
	if err != nil {
		t.Fatalf("ImportPrivateKey: %v", err)
	}

	kp, err := ks.ResolveSigner("", "bob", "")
	if err != nil || kp == nil {
		t.Fatalf("ResolveSigner by name: %v", err)
	}
	if kp.Address() != addr {
		t.Fatalf("resolved wrong key")
	}

	exported, _ := ExportPrivateKey(seed)
	kp, err = ks.ResolveSigner(exported, "ignored", "")
	if err != nil || kp.Address() != addr {
		t.Fatalf("ResolveSigner by private key: %v", err)
	}

	kp, err = ks.ResolveSigner("", "", "")
	if err != nil || kp != nil {
		t.Fatalf("expected no signer, got %v %v", kp, err)
	}
	if _, err := ks.ResolveSigner("", "", "predictor"); err == nil {
		t.Fatalf("expected role without name to fail")
	}
	if _, err := ks.ResolveSigner("", "nobody", ""); err == nil {
		t.Fatalf("expected missing key to fail")
	}
}

func TestCheckNames(t *testing.T) {
	for _, ok := range []string{"a", "A-1", "key_name"} {
		if err := CheckKeyName(ok); err != nil {
			t.Fatalf("CheckKeyName(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "a/b", "../x", "sp ace"} {
		if err := CheckKeyName(bad); err == nil {
			t.Fatalf("CheckKeyName(%q) accepted", bad)
		}
		if err := CheckRole(bad); err == nil {
			t.Fatalf("CheckRole(%q) accepted", bad)
		}
	}
}

func TestParseSeedHex(t *testing.T) {
	seed := testSeed(3)
	got, err := ParseSeedHex(" 0x" + hex.EncodeToString(seed) + "\n")
	if err != nil {
		t.Fatalf("ParseSeedHex: %v", err)
	}
	if string(got) != string(seed) {
		t.Fatalf("seed mismatch")
	}
	if _, err := ParseSeedHex("abcd"); err == nil {
		t.Fatalf("expected short seed to fail")
	}
}

func TestListKeysMissingDirectory(t *testing.T) {
	ks := &KeyStore{Directory: filepath.Join(t.TempDir(), "missing")}
	entries, err := ks.ListKeys()
	if err != nil || entries != nil {
		t.Fatalf("expected empty list, got %v %v", entries, err)
	}
}
