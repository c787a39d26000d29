package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"io"

	"suiml.io/suiml/keys"
)

func cmdKey(e *env, args []string) int {
	if len(args) == 0 {
		printKeyUsage(e.errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(e, args[1:])
	case "import":
		return cmdKeyImport(e, args[1:])
	case "derive":
		return cmdKeyDerive(e, args[1:])
	case "list":
		return cmdKeyList(e, args[1:])
	case "address":
		return cmdKeyAddress(e, args[1:])
	case "export":
		return cmdKeyExport(e, args[1:])
	case "help", "-h", "--help":
		printKeyUsage(e.out)
		return 0
	default:
		fmt.Fprintf(e.errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(e.errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "suiml key: local Ed25519 signing keys")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  suiml key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  suiml key import --name <name> --private-key <key> [--force]")
	fmt.Fprintln(w, "  suiml key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  suiml key list")
	fmt.Fprintln(w, "  suiml key address --name <name> [--role <role>]")
	fmt.Fprintln(w, "  suiml key export --name <name> [--role <role>]")
}

func cmdKeyInit(e *env, args []string) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(e.errOut)

	var name string
	var seedHex string
	var force bool

	fs.StringVar(&name, "name", "", "Key name (directory under key.dir)")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional ed25519 seed as 64 hex chars")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(e.errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(e.errOut, "invalid --name: %v\n", err)
		return 2
	}

	var seed []byte
	if seedHex != "" {
		var derr error
		seed, derr = keys.ParseSeedHex(seedHex)
		if derr != nil {
			fmt.Fprintf(e.errOut, "invalid --seed-hex: %v\n", derr)
			return 2
		}
	} else {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return e.fail("rand", err)
		}
	}

	ks, err := e.keyStore()
	if err != nil {
		return e.fail("keys", err)
	}
	addr, path, err := ks.InitializeRootKey(name, seed, force)
	if err != nil {
		return e.fail("write key", err)
	}
	fmt.Fprintf(e.out, "Created key: %s\n", addr)
	fmt.Fprintf(e.out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyImport(e *env, args []string) int {
	fs := flag.NewFlagSet("key import", flag.ContinueOnError)
	fs.SetOutput(e.errOut)

	var name string
	var privateKey string
	var force bool

	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&privateKey, "private-key", "", "Private key (hex seed, or base64 seed / flag||seed)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" || privateKey == "" {
		fmt.Fprintln(e.errOut, "usage: suiml key import --name <name> --private-key <key> [--force]")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(e.errOut, "invalid --name: %v\n", err)
		return 2
	}
	ks, err := e.keyStore()
	if err != nil {
		return e.fail("keys", err)
	}
	addr, path, err := ks.ImportPrivateKey(name, privateKey, force)
	if err != nil {
		return e.fail("import key", err)
	}
	fmt.Fprintf(e.out, "Imported key: %s\n", addr)
	fmt.Fprintf(e.out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyDerive(e *env, args []string) int {
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(e.errOut)

	var from string
	var role string
	var force bool

	fs.StringVar(&from, "from", "", "Root key name")
	fs.StringVar(&role, "role", "", "Role identifier (e.g. uploader, predictor)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if from == "" {
		fmt.Fprintln(e.errOut, "missing --from")
		return 2
	}
	if role == "" {
		fmt.Fprintln(e.errOut, "missing --role")
		return 2
	}
	if err := keys.CheckKeyName(from); err != nil {
		fmt.Fprintf(e.errOut, "invalid --from: %v\n", err)
		return 2
	}
	if err := keys.CheckRole(role); err != nil {
		fmt.Fprintf(e.errOut, "invalid --role: %v\n", err)
		return 2
	}
	ks, err := e.keyStore()
	if err != nil {
		return e.fail("keys", err)
	}
	addr, path, err := ks.DeriveKeyFromRole(from, role, force)
	if err != nil {
		return e.fail("derive role key", err)
	}
	fmt.Fprintf(e.out, "Created role key: %s\n", addr)
	fmt.Fprintf(e.out, "Stored at: %s\n", path)
	return 0
}

// nameRole parses --name and an optional --role.
func nameRole(e *env, cmd string, args []string) (string, string, bool) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(e.errOut)

	var name string
	var role string

	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&role, "role", "", "Optional role (selects the derived role key)")

	if err := fs.Parse(args); err != nil {
		return "", "", false
	}
	if name == "" {
		fmt.Fprintln(e.errOut, "missing --name")
		return "", "", false
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(e.errOut, "invalid --name: %v\n", err)
		return "", "", false
	}
	if role != "" {
		if err := keys.CheckRole(role); err != nil {
			fmt.Fprintf(e.errOut, "invalid --role: %v\n", err)
			return "", "", false
		}
	}
	return name, role, true
}

func cmdKeyAddress(e *env, args []string) int {
	name, role, ok := nameRole(e, "key address", args)
	if !ok {
		return 2
	}
	ks, err := e.keyStore()
	if err != nil {
		return e.fail("keys", err)
	}
	kp, err := ks.Keypair(name, role)
	if err != nil {
		return e.fail("load key", err)
	}
	_, _ = fmt.Fprintln(e.out, kp.Address())
	return 0
}

func cmdKeyExport(e *env, args []string) int {
	name, role, ok := nameRole(e, "key export", args)
	if !ok {
		return 2
	}
	ks, err := e.keyStore()
	if err != nil {
		return e.fail("keys", err)
	}
	seed, err := ks.LoadSeed(name, role)
	if err != nil {
		return e.fail("load key", err)
	}
	priv, err := keys.ExportPrivateKey(seed)
	if err != nil {
		return e.fail("export key", err)
	}
	_, _ = fmt.Fprintln(e.out, priv)
	return 0
}

func cmdKeyList(e *env, args []string) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, err := e.keyStore()
	if err != nil {
		return e.fail("keys", err)
	}
	entries, err := ks.ListKeys()
	if err != nil {
		return e.fail("list keys", err)
	}
	for _, entry := range entries {
		fmt.Fprintf(e.out, "%s\n", entry.Name)
		for _, r := range entry.Roles {
			fmt.Fprintf(e.out, "  - %s\n", r)
		}
	}
	return 0
}
