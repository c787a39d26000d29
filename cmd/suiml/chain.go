package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"suiml.io/suiml/cidutil"
	"suiml.io/suiml/inference"
	"suiml.io/suiml/model"
	"suiml.io/suiml/quant"
	"suiml.io/suiml/server"
	"suiml.io/suiml/storage/casregistry"
	"suiml.io/suiml/sui"
)

// loadModelArg reads a quantized model from a file or, by CID, from the blob store.
func (e *env) loadModelArg(path, rawCID string) (model.QuantizedModel, error) {
	if path != "" {
		return model.LoadFile(path)
	}
	id, err := cidutil.Parse(rawCID)
	if err != nil {
		return model.QuantizedModel{}, err
	}
	s, err := e.openStore(casregistry.UsageCLI, true)
	if err != nil {
		return model.QuantizedModel{}, err
	}
	return model.GetModel(context.Background(), s, id)
}

func cmdPredict(e *env, args []string) int {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(e.errOut)

	var (
		modelID   string
		layers    int
		dims      string
		magnitude string
		sign      string
		modelPath string
		rawCID    string
		input     string
	)
	fs.StringVar(&modelID, "model-id", "", "On-chain model object id")
	fs.IntVar(&layers, "layers", 0, "Layer count (raw form)")
	fs.StringVar(&dims, "dims", "", "Comma-separated output width per layer (raw form)")
	fs.StringVar(&magnitude, "magnitude", "", "Comma-separated input magnitudes (raw form)")
	fs.StringVar(&sign, "sign", "", "Comma-separated input sign flags (raw form)")
	fs.StringVar(&modelPath, "model", "", "Quantized model file")
	fs.StringVar(&rawCID, "cid", "", "CID of a stored quantized model")
	fs.StringVar(&input, "input", "", "Comma-separated float input (with --model or --cid)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if modelID == "" {
		fmt.Fprintln(e.errOut, "missing --model-id")
		return 2
	}
	id, err := sui.ParseAddress(modelID)
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid --model-id: %v\n", err)
		return 2
	}

	var (
		req   inference.Request
		scale = -1
	)
	if modelPath != "" || rawCID != "" {
		if modelPath != "" && rawCID != "" {
			fmt.Fprintln(e.errOut, "--model and --cid are mutually exclusive")
			return 2
		}
		values, err := parseFloats([]string{input})
		if err != nil {
			fmt.Fprintf(e.errOut, "invalid --input: %v\n", err)
			return 2
		}
		m, err := e.loadModelArg(modelPath, rawCID)
		if err != nil {
			return e.fail("load model", err)
		}
		scale = int(m.Scale)
		vec, err := quant.Encode(values, scale)
		if err != nil {
			return e.fail("encode input", err)
		}
		if req, err = inference.RequestForModel(id, m, vec); err != nil {
			return e.fail("predict", err)
		}
	} else {
		widths, err := parseUints(dims)
		if err != nil {
			fmt.Fprintf(e.errOut, "invalid --dims: %v\n", err)
			return 2
		}
		mags, err := parseUints(magnitude)
		if err != nil {
			fmt.Fprintf(e.errOut, "invalid --magnitude: %v\n", err)
			return 2
		}
		signs, err := parseSigns(sign)
		if err != nil {
			fmt.Fprintf(e.errOut, "invalid --sign: %v\n", err)
			return 2
		}
		req = inference.Request{
			ModelID:         id,
			LayerCount:      layers,
			LayerDimensions: widths,
			Input:           quant.Vector{Magnitude: mags, Sign: signs},
		}
	}

	client, err := e.inferenceClient()
	if err != nil {
		return e.fail("chain client", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	res, err := client.Predict(ctx, req)
	if err != nil {
		return e.fail("predict", err)
	}
	out := model.PredictResponse{
		Digest:      res.Digest,
		Magnitudes:  res.Magnitudes,
		Signs:       res.Signs,
		ArgmaxIndex: res.ArgmaxIndex,
		Calls:       res.Calls,
	}
	if scale >= 0 {
		if out.Values, err = res.Decode(scale); err != nil {
			return e.fail("decode output", err)
		}
	}
	return e.printJSON(out)
}

func cmdUpload(e *env, args []string) int {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	fs.SetOutput(e.errOut)

	var (
		modelPath string
		rawCID    string
		info      model.Info
	)
	fs.StringVar(&modelPath, "model", "", "Quantized model file")
	fs.StringVar(&rawCID, "cid", "", "CID of a stored quantized model")
	fs.StringVar(&info.Name, "name", "", "Model name")
	fs.StringVar(&info.Description, "description", "", "Model description")
	fs.StringVar(&info.Task, "task", "classification", "Task type")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if (modelPath == "") == (rawCID == "") || info.Name == "" {
		fmt.Fprintln(e.errOut, "usage: suiml upload (--model <file> | --cid <cid>) --name <name> [--description <text>] [--task <task>]")
		return 2
	}
	m, err := e.loadModelArg(modelPath, rawCID)
	if err != nil {
		return e.fail("load model", err)
	}
	client, err := e.inferenceClient()
	if err != nil {
		return e.fail("chain client", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	res, err := client.UploadModel(ctx, m, info)
	if err != nil {
		return e.fail("upload", err)
	}
	id, err := m.CID()
	if err != nil {
		return e.fail("cid", err)
	}
	out := model.UploadResponse{
		Digest:  res.Digest,
		Created: make([]string, 0, len(res.Created)),
		CID:     id.String(),
	}
	if !res.ModelID.IsZero() {
		out.ModelID = res.ModelID.String()
	}
	for _, o := range res.Created {
		out.Created = append(out.Created, o.String())
	}
	return e.printJSON(out)
}

func cmdServe(e *env, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	addr := fs.String("addr", e.cfg.Server.Addr, "Listen address")
	release := fs.Bool("release", false, "Run gin in release mode")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	store, err := e.openStore(casregistry.UsageServer, false)
	if err != nil {
		return e.fail("open store", err)
	}
	var chain server.Chain
	if e.cfg.Contract.PackageID != "" {
		client, err := e.inferenceClient()
		if err != nil {
			return e.fail("chain client", err)
		}
		chain = client
	} else {
		fmt.Fprintln(e.errOut, "contract.package_id not set: upload and predict are disabled")
	}

	srv := server.New(server.Options{
		JWTSecret:   e.cfg.Server.JWTSecret,
		CORSOrigins: e.cfg.Server.CORSOrigins,
		Release:     *release,
	}, store, chain)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx, *addr); err != nil {
		return e.fail("serve", err)
	}
	return 0
}
