package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	global := flag.NewFlagSet("suiml", flag.ContinueOnError)
	global.SetOutput(errOut)
	configPath := global.String("config", os.Getenv("SUIML_CONFIG"), "Config file (YAML, JSON or TOML)")
	if err := global.Parse(args); err != nil {
		return 2
	}
	args = global.Args()
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	var cmd func(e *env, args []string) int
	switch args[0] {
	case "encode":
		cmd = cmdEncode
	case "decode":
		cmd = cmdDecode
	case "model":
		cmd = cmdModel
	case "key":
		cmd = cmdKey
	case "predict":
		cmd = cmdPredict
	case "upload":
		cmd = cmdUpload
	case "serve":
		cmd = cmdServe
	case "auth":
		cmd = cmdAuth
	case "data":
		cmd = cmdData
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}

	e, err := newEnv(*configPath, out, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 1
	}
	defer e.close()
	return cmd(e, args[1:])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "suiml: quantized neural network inference on Sui")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  suiml [--config <file>] <command> ...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  suiml encode [--scale <n>] <value> [<value> ...]")
	fmt.Fprintln(w, "  suiml decode --scale <n> --magnitude <m1,m2,...> --sign <s1,s2,...>")
	fmt.Fprintln(w, "  suiml model convert [--scale <n>] [--out <file>] [--put] <float-model.json>")
	fmt.Fprintln(w, "  suiml model validate <model.json>")
	fmt.Fprintln(w, "  suiml model stats <model.json>")
	fmt.Fprintln(w, "  suiml model cid <model.json>")
	fmt.Fprintln(w, "  suiml model put <model.json>")
	fmt.Fprintln(w, "  suiml model get [--out <file>] <cid>")
	fmt.Fprintln(w, "  suiml model list")
	fmt.Fprintln(w, "  suiml model export --out <bundle.tar> <cid> [<cid> ...]")
	fmt.Fprintln(w, "  suiml model import <bundle.tar>")
	fmt.Fprintln(w, "  suiml key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  suiml key import --name <name> --private-key <key> [--force]")
	fmt.Fprintln(w, "  suiml key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  suiml key list")
	fmt.Fprintln(w, "  suiml key address --name <name> [--role <role>]")
	fmt.Fprintln(w, "  suiml key export --name <name> [--role <role>]")
	fmt.Fprintln(w, "  suiml predict --model-id <id> --layers <n> --dims <w1,w2,...> --magnitude <...> --sign <...>")
	fmt.Fprintln(w, "  suiml predict --model-id <id> (--model <file> | --cid <cid>) --input <x1,x2,...>")
	fmt.Fprintln(w, "  suiml upload (--model <file> | --cid <cid>) --name <name> [--description <text>] [--task <task>]")
	fmt.Fprintln(w, "  suiml serve [--addr <host:port>]")
	fmt.Fprintln(w, "  suiml auth login --token <jwt>")
	fmt.Fprintln(w, "  suiml auth me")
	fmt.Fprintln(w, "  suiml auth init --nonce <nonce> [--max-epoch <n>] [--randomness <r>]")
	fmt.Fprintln(w, "  suiml auth prove --jwt <id-token>")
	fmt.Fprintln(w, "  suiml auth address [--address <0x...>]")
	fmt.Fprintln(w, "  suiml auth logout")
	fmt.Fprintln(w, "  suiml data datasets|categories|annotations|leaderboard [--page <n>] [--limit <n>] ...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - every config key can be set from the environment, e.g. SUIML_CONTRACT_PACKAGE_ID")
	fmt.Fprintln(w, "  - predict and upload sign with key.private_key or key.name/key.role; without one an ephemeral key is used")
	fmt.Fprintln(w, "  - model put/get use storage.config, else storage.localfs_dir, else ~/.suiml/blobs")
	fmt.Fprintln(w, "  - exit status is 0 on success, 1 on failure, 2 on usage errors")
}
