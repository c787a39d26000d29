package main

import (
	"flag"
	"fmt"

	"suiml.io/suiml/model"
	"suiml.io/suiml/quant"
)

func cmdEncode(e *env, args []string) int {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	scale := fs.Int("scale", model.DefaultScale, "Power-of-ten scale")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(e.errOut, "usage: suiml encode [--scale <n>] <value> [<value> ...]  (use -- before negative values)")
		return 2
	}
	values, err := parseFloats(fs.Args())
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid value: %v\n", err)
		return 2
	}
	v, err := quant.Encode(values, *scale)
	if err != nil {
		return e.fail("encode", err)
	}
	return e.printJSON(v)
}

func cmdDecode(e *env, args []string) int {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	scale := fs.Int("scale", model.DefaultScale, "Power-of-ten scale")
	magnitude := fs.String("magnitude", "", "Comma-separated magnitudes")
	sign := fs.String("sign", "", "Comma-separated sign flags (0 or 1)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *magnitude == "" {
		fmt.Fprintln(e.errOut, "usage: suiml decode --scale <n> --magnitude <m1,m2,...> --sign <s1,s2,...>")
		return 2
	}
	mags, err := parseUints(*magnitude)
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid --magnitude: %v\n", err)
		return 2
	}
	signs, err := parseSigns(*sign)
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid --sign: %v\n", err)
		return 2
	}
	values, err := quant.Decode(quant.Vector{Magnitude: mags, Sign: signs}, *scale)
	if err != nil {
		return e.fail("decode", err)
	}
	return e.printJSON(model.DecodeResponse{Values: values})
}
