package model

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/x448/float16"

	"suiml.io/suiml/errs"
	"suiml.io/suiml/quant"
)

// DefaultScale is the scale used by the converter when none is given.
const DefaultScale = 2

// FloatModel is an exported float network, one entry per Keras-style layer.
type FloatModel struct {
	Layers []FloatLayer `json:"layers"`
}

// FloatLayer is one layer of a FloatModel.
//
// Kernel is shaped [in][out]. With DType "float16" the kernel and bias hold
// IEEE 754 half-precision bit patterns instead of numbers.
type FloatLayer struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Activation string          `json:"activation,omitempty"`
	DType      string          `json:"dtype,omitempty"`
	Kernel     json.RawMessage `json:"kernel,omitempty"`
	Bias       json.RawMessage `json:"bias,omitempty"`
}

// LoadFloatModel decodes a FloatModel from JSON.
func LoadFloatModel(r io.Reader) (FloatModel, error) {
	var f FloatModel
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return FloatModel{}, errs.Wrap(errs.KindValidation, errs.CodeInvalidModel, "decode float model", err)
	}
	return f, nil
}

// layers that carry no weights and are skipped by the converter
var passthroughLayers = map[string]bool{
	"inputlayer": true,
	"input":      true,
	"flatten":    true,
	"dropout":    true,
	"reshape":    true,
}

// Convert quantizes the dense layers of f at the given scale. Weightless
// layers are skipped; any other layer type is rejected.
func Convert(f FloatModel, scale int) (QuantizedModel, error) {
	out := QuantizedModel{Scale: uint64(scale)}
	if scale < 0 || scale > quant.MaxScale {
		return QuantizedModel{}, invalid("scale %d out of range [0, %d]", scale, quant.MaxScale)
	}
	for i, l := range f.Layers {
		typ := strings.ToLower(l.Type)
		if passthroughLayers[typ] {
			continue
		}
		if typ != "dense" {
			return QuantizedModel{}, invalid("layer %d (%s): unsupported layer type %q", i, l.Name, l.Type)
		}
		kernel, bias, err := l.decode()
		if err != nil {
			return QuantizedModel{}, errs.Wrap(errs.KindValidation, errs.CodeInvalidModel,
				fmt.Sprintf("layer %d (%s)", i, l.Name), err)
		}
		if len(kernel) == 0 || len(kernel[0]) == 0 {
			return QuantizedModel{}, invalid("layer %d (%s): empty kernel", i, l.Name)
		}
		in, width := len(kernel), len(kernel[0])
		flat := make([]float64, 0, in*width)
		for r, row := range kernel {
			if len(row) != width {
				return QuantizedModel{}, invalid("layer %d (%s): kernel row %d has %d columns, want %d", i, l.Name, r, len(row), width)
			}
			flat = append(flat, row...)
		}
		if bias == nil {
			bias = make([]float64, width)
		}
		if len(bias) != width {
			return QuantizedModel{}, invalid("layer %d (%s): bias has %d entries, want %d", i, l.Name, len(bias), width)
		}

		w, err := quant.Encode(flat, scale)
		if err != nil {
			return QuantizedModel{}, fmt.Errorf("layer %d (%s) weights: %w", i, l.Name, err)
		}
		b, err := quant.Encode(bias, scale)
		if err != nil {
			return QuantizedModel{}, fmt.Errorf("layer %d (%s) biases: %w", i, l.Name, err)
		}
		out.LayerDimensions = append(out.LayerDimensions, LayerDim{In: uint64(in), Out: uint64(width)})
		out.WeightsMagnitude = append(out.WeightsMagnitude, w.Magnitude)
		out.WeightsSign = append(out.WeightsSign, w.SignsU64())
		out.BiasesMagnitude = append(out.BiasesMagnitude, b.Magnitude)
		out.BiasesSign = append(out.BiasesSign, b.SignsU64())
	}
	if err := out.Validate(); err != nil {
		return QuantizedModel{}, err
	}
	return out, nil
}

func (l FloatLayer) decode() ([][]float64, []float64, error) {
	switch strings.ToLower(l.DType) {
	case "", "float32", "float64":
		var kernel [][]float64
		if err := json.Unmarshal(l.Kernel, &kernel); err != nil {
			return nil, nil, fmt.Errorf("kernel: %w", err)
		}
		var bias []float64
		if len(l.Bias) > 0 {
			if err := json.Unmarshal(l.Bias, &bias); err != nil {
				return nil, nil, fmt.Errorf("bias: %w", err)
			}
		}
		return kernel, bias, nil
	case "float16":
		var kbits [][]uint16
		if err := json.Unmarshal(l.Kernel, &kbits); err != nil {
			return nil, nil, fmt.Errorf("kernel: %w", err)
		}
		kernel := make([][]float64, len(kbits))
		for r, row := range kbits {
			kernel[r] = halfToFloat(row)
		}
		var bias []float64
		if len(l.Bias) > 0 {
			var bbits []uint16
			if err := json.Unmarshal(l.Bias, &bbits); err != nil {
				return nil, nil, fmt.Errorf("bias: %w", err)
			}
			bias = halfToFloat(bbits)
		}
		return kernel, bias, nil
	default:
		return nil, nil, fmt.Errorf("unsupported dtype %q", l.DType)
	}
}

func halfToFloat(bits []uint16) []float64 {
	out := make([]float64, len(bits))
	for i, b := range bits {
		out[i] = float64(float16.Frombits(b).Float32())
	}
	return out
}

// HalfBits returns the float16 bit patterns of values, for producing
// float16 FloatLayer payloads.
func HalfBits(values []float32) []uint16 {
	out := make([]uint16, len(values))
	for i, v := range values {
		out[i] = float16.Fromfloat32(v).Bits()
	}
	return out
}
