package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"

	"suiml.io/suiml/cidutil"
	"suiml.io/suiml/model"
	"suiml.io/suiml/storage"
	"suiml.io/suiml/storage/bundle"
	"suiml.io/suiml/storage/casregistry"
)

func cmdModel(e *env, args []string) int {
	if len(args) == 0 {
		printModelUsage(e.errOut)
		return 2
	}
	switch args[0] {
	case "convert":
		return cmdModelConvert(e, args[1:])
	case "validate":
		return cmdModelValidate(e, args[1:])
	case "stats":
		return cmdModelStats(e, args[1:])
	case "cid":
		return cmdModelCID(e, args[1:])
	case "put":
		return cmdModelPut(e, args[1:])
	case "get":
		return cmdModelGet(e, args[1:])
	case "list":
		return cmdModelList(e, args[1:])
	case "export":
		return cmdModelExport(e, args[1:])
	case "import":
		return cmdModelImport(e, args[1:])
	case "help", "-h", "--help":
		printModelUsage(e.out)
		return 0
	default:
		fmt.Fprintf(e.errOut, "unknown model subcommand: %s\n\n", args[0])
		printModelUsage(e.errOut)
		return 2
	}
}

func printModelUsage(w io.Writer) {
	fmt.Fprintln(w, "suiml model: convert, inspect and store quantized models")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  suiml model convert [--scale <n>] [--out <file>] [--put] <float-model.json>")
	fmt.Fprintln(w, "  suiml model validate <model.json>")
	fmt.Fprintln(w, "  suiml model stats <model.json>")
	fmt.Fprintln(w, "  suiml model cid <model.json>")
	fmt.Fprintln(w, "  suiml model put <model.json>")
	fmt.Fprintln(w, "  suiml model get [--out <file>] <cid>")
	fmt.Fprintln(w, "  suiml model list")
	fmt.Fprintln(w, "  suiml model export --out <bundle.tar> <cid> [<cid> ...]")
	fmt.Fprintln(w, "  suiml model import <bundle.tar>")
}

// oneFile parses args and expects a single positional argument.
func oneFile(e *env, name string, args []string) (string, bool) {
	fs := flag.NewFlagSet("model "+name, flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	if err := fs.Parse(args); err != nil {
		return "", false
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(e.errOut, "usage: suiml model %s <model.json>\n", name)
		return "", false
	}
	return fs.Arg(0), true
}

func writeModel(path string, m model.QuantizedModel) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func cmdModelConvert(e *env, args []string) int {
	fs := flag.NewFlagSet("model convert", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	scale := fs.Int("scale", model.DefaultScale, "Power-of-ten scale")
	outPath := fs.String("out", "", "Write the quantized model to this file")
	put := fs.Bool("put", false, "Also store the quantized model in the blob store")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(e.errOut, "usage: suiml model convert [--scale <n>] [--out <file>] [--put] <float-model.json>")
		return 2
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return e.fail("read float model", err)
	}
	defer f.Close()
	fm, err := model.LoadFloatModel(f)
	if err != nil {
		return e.fail("load float model", err)
	}
	m, err := model.Convert(fm, *scale)
	if err != nil {
		return e.fail("convert", err)
	}

	var id cid.Cid
	if *put {
		s, err := e.openStore(casregistry.UsageCLI, true)
		if err != nil {
			return e.fail("open store", err)
		}
		if id, err = model.PutModel(context.Background(), s, m); err != nil {
			return e.fail("store model", err)
		}
	} else if id, err = m.CID(); err != nil {
		return e.fail("cid", err)
	}

	summary := model.ModelSummary{CID: id.String(), Stats: model.ComputeStats(m)}
	if *outPath != "" {
		if err := writeModel(*outPath, m); err != nil {
			return e.fail("write model", err)
		}
		return e.printJSON(summary)
	}
	return e.printJSON(model.ConvertResponse{ModelSummary: summary, Model: m})
}

func cmdModelValidate(e *env, args []string) int {
	path, ok := oneFile(e, "validate", args)
	if !ok {
		return 2
	}
	if _, err := model.LoadFile(path); err != nil {
		fmt.Fprintf(e.errOut, "invalid: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(e.out, "OK")
	return 0
}

func cmdModelStats(e *env, args []string) int {
	path, ok := oneFile(e, "stats", args)
	if !ok {
		return 2
	}
	m, err := model.LoadFile(path)
	if err != nil {
		return e.fail("load model", err)
	}
	return e.printJSON(model.ComputeStats(m))
}

func cmdModelCID(e *env, args []string) int {
	path, ok := oneFile(e, "cid", args)
	if !ok {
		return 2
	}
	m, err := model.LoadFile(path)
	if err != nil {
		return e.fail("load model", err)
	}
	id, err := m.CID()
	if err != nil {
		return e.fail("cid", err)
	}
	_, _ = fmt.Fprintln(e.out, id)
	return 0
}

func cmdModelPut(e *env, args []string) int {
	path, ok := oneFile(e, "put", args)
	if !ok {
		return 2
	}
	m, err := model.LoadFile(path)
	if err != nil {
		return e.fail("load model", err)
	}
	s, err := e.openStore(casregistry.UsageCLI, true)
	if err != nil {
		return e.fail("open store", err)
	}
	id, err := model.PutModel(context.Background(), s, m)
	if err != nil {
		return e.fail("store model", err)
	}
	_, _ = fmt.Fprintln(e.out, id)
	return 0
}

func cmdModelGet(e *env, args []string) int {
	fs := flag.NewFlagSet("model get", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	outPath := fs.String("out", "", "Write the model to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(e.errOut, "usage: suiml model get [--out <file>] <cid>")
		return 2
	}
	id, err := cidutil.Parse(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid cid: %v\n", err)
		return 2
	}
	s, err := e.openStore(casregistry.UsageCLI, true)
	if err != nil {
		return e.fail("open store", err)
	}
	m, err := model.GetModel(context.Background(), s, id)
	if err != nil {
		return e.fail("get model", err)
	}
	if *outPath != "" {
		if err := writeModel(*outPath, m); err != nil {
			return e.fail("write model", err)
		}
		return 0
	}
	return e.printJSON(m)
}

func cmdModelList(e *env, args []string) int {
	fs := flag.NewFlagSet("model list", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	s, err := e.openStore(casregistry.UsageCLI, true)
	if err != nil {
		return e.fail("open store", err)
	}
	l, ok := s.(storage.Lister)
	if !ok {
		fmt.Fprintln(e.errOut, "blob store cannot list its contents")
		return 1
	}
	ids, err := l.List(context.Background())
	if err != nil {
		return e.fail("list", err)
	}
	for _, id := range ids {
		_, _ = fmt.Fprintln(e.out, id)
	}
	return 0
}

func cmdModelExport(e *env, args []string) int {
	fs := flag.NewFlagSet("model export", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	outPath := fs.String("out", "", "Bundle file to write")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *outPath == "" || fs.NArg() == 0 {
		fmt.Fprintln(e.errOut, "usage: suiml model export --out <bundle.tar> <cid> [<cid> ...]")
		return 2
	}
	ids := make([]cid.Cid, 0, fs.NArg())
	for _, a := range fs.Args() {
		id, err := cidutil.Parse(a)
		if err != nil {
			fmt.Fprintf(e.errOut, "invalid cid: %v\n", err)
			return 2
		}
		ids = append(ids, id)
	}
	s, err := e.openStore(casregistry.UsageCLI, true)
	if err != nil {
		return e.fail("open store", err)
	}
	f, err := os.Create(*outPath)
	if err != nil {
		return e.fail("create bundle", err)
	}
	if err := bundle.Export(context.Background(), f, s, ids, bundle.ExportOptions{IncludeIndex: true}); err != nil {
		_ = f.Close()
		return e.fail("export", err)
	}
	if err := f.Close(); err != nil {
		return e.fail("write bundle", err)
	}
	return 0
}

func cmdModelImport(e *env, args []string) int {
	fs := flag.NewFlagSet("model import", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(e.errOut, "usage: suiml model import <bundle.tar>")
		return 2
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return e.fail("open bundle", err)
	}
	defer f.Close()
	s, err := e.openStore(casregistry.UsageCLI, true)
	if err != nil {
		return e.fail("open store", err)
	}
	ids, err := bundle.Import(context.Background(), f, s, bundle.ImportOptions{})
	if err != nil {
		return e.fail("import", err)
	}
	for _, id := range ids {
		_, _ = fmt.Fprintln(e.out, id)
	}
	return 0
}
