package model

import "suiml.io/suiml/quant"

// JSON bodies of the HTTP API. Field names are part of the public contract.

type EncodeRequest struct {
	Values []float64 `json:"values"`
	Scale  *int      `json:"scale,omitempty"`
}

type DecodeRequest struct {
	Magnitude []uint64    `json:"magnitude"`
	Sign      quant.Signs `json:"sign"`
	Scale     int         `json:"scale"`
}

func (r DecodeRequest) Vector() quant.Vector {
	return quant.Vector{Magnitude: r.Magnitude, Sign: r.Sign}
}

type DecodeResponse struct {
	Values []float64 `json:"values"`
}

type ModelSummary struct {
	CID   string `json:"cid,omitempty"`
	Stats Stats  `json:"stats"`
}

type ConvertResponse struct {
	ModelSummary
	Model QuantizedModel `json:"model"`
}

type ModelList struct {
	CIDs []string `json:"cids"`
}

// UploadRequest carries either an inline model or the CID of a stored one.
type UploadRequest struct {
	Info
	Model *QuantizedModel `json:"model,omitempty"`
	CID   string          `json:"cid,omitempty"`
}

type UploadResponse struct {
	Digest  string   `json:"digest"`
	ModelID string   `json:"model_id,omitempty"`
	Created []string `json:"created"`
	CID     string   `json:"cid,omitempty"`
}

// PredictRequest is either the raw form (layer count, output widths and an
// encoded input) or the stored-model form (cid plus float input, encoded at
// the model's scale).
type PredictRequest struct {
	ModelID         string      `json:"model_id"`
	LayerCount      int         `json:"layer_count,omitempty"`
	LayerDimensions []uint64    `json:"layer_dimensions,omitempty"`
	InputMagnitude  []uint64    `json:"input_magnitude,omitempty"`
	InputSign       quant.Signs `json:"input_sign,omitempty"`

	CID   string    `json:"cid,omitempty"`
	Input []float64 `json:"input,omitempty"`
}

type PredictResponse struct {
	Digest      string      `json:"digest"`
	Magnitudes  []uint64    `json:"output_magnitude"`
	Signs       quant.Signs `json:"output_sign"`
	ArgmaxIndex uint64      `json:"argmax_idx"`
	Values      []float64   `json:"values,omitempty"`
	Calls       int         `json:"calls"`
}
