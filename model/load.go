package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"

	"suiml.io/suiml/cidutil"
	"suiml.io/suiml/errs"
)

// Load decodes a quantized model from JSON and validates it.
// Unknown fields (name, description, task_type, ...) are ignored.
func Load(r io.Reader) (QuantizedModel, error) {
	var m QuantizedModel
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return QuantizedModel{}, errs.Wrap(errs.KindValidation, errs.CodeInvalidModel, "decode model", err)
	}
	if err := m.Validate(); err != nil {
		return QuantizedModel{}, err
	}
	return m, nil
}

// LoadFile is Load for a file path.
func LoadFile(path string) (QuantizedModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return QuantizedModel{}, err
	}
	defer f.Close()
	m, err := Load(f)
	if err != nil {
		return QuantizedModel{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Canonical returns the deterministic byte form of a valid model: compact JSON
// with fields in declaration order and no trailing newline.
func (m QuantizedModel) Canonical() ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// CID returns the content identifier of the canonical bytes.
func (m QuantizedModel) CID() (cid.Cid, error) {
	b, err := m.Canonical()
	if err != nil {
		return cid.Undef, err
	}
	return cidutil.CIDv1RawSHA256CID(b)
}
