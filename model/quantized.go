package model

import (
	"encoding/json"
	"fmt"

	"suiml.io/suiml/errs"
	"suiml.io/suiml/quant"
)

// LayerDim is the (input width, output width) pair of a dense layer.
// It marshals as a two-element JSON array.
type LayerDim struct {
	In  uint64
	Out uint64
}

func (d LayerDim) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]uint64{d.In, d.Out})
}

func (d *LayerDim) UnmarshalJSON(b []byte) error {
	var pair []uint64
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("layer dimension must be [in, out], got %d elements", len(pair))
	}
	d.In, d.Out = pair[0], pair[1]
	return nil
}

// QuantizedModel is a feed-forward network encoded as sign-magnitude integers.
//
// Per layer i, WeightsMagnitude[i] and WeightsSign[i] hold In*Out entries in
// row-major [in][out] order; BiasesMagnitude[i] and BiasesSign[i] hold Out
// entries. Every value is sign * magnitude / 10^Scale.
type QuantizedModel struct {
	LayerDimensions  []LayerDim `json:"layerDimensions"`
	WeightsMagnitude [][]uint64 `json:"weightsMagnitudes"`
	WeightsSign      [][]uint64 `json:"weightsSigns"`
	BiasesMagnitude  [][]uint64 `json:"biasesMagnitudes"`
	BiasesSign       [][]uint64 `json:"biasesSigns"`
	Scale            uint64     `json:"scale"`
}

// Info is the descriptive metadata attached to a model upload.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Task        string `json:"task"`
}

func invalid(format string, args ...any) error {
	return errs.New(errs.KindValidation, errs.CodeInvalidModel, fmt.Sprintf(format, args...))
}

// Validate checks the structural invariants of the model. It never touches
// the network and is run before every upload or prediction.
func (m QuantizedModel) Validate() error {
	n := len(m.LayerDimensions)
	if n == 0 {
		return invalid("model has no layers")
	}
	if m.Scale > quant.MaxScale {
		return invalid("scale %d exceeds %d", m.Scale, quant.MaxScale)
	}
	arrays := []struct {
		name string
		v    [][]uint64
	}{
		{"weightsMagnitudes", m.WeightsMagnitude},
		{"weightsSigns", m.WeightsSign},
		{"biasesMagnitudes", m.BiasesMagnitude},
		{"biasesSigns", m.BiasesSign},
	}
	for _, a := range arrays {
		if len(a.v) != n {
			return invalid("%s has %d layers, layerDimensions has %d", a.name, len(a.v), n)
		}
	}
	for i, d := range m.LayerDimensions {
		if d.In == 0 || d.Out == 0 {
			return invalid("layer %d has zero dimension [%d, %d]", i, d.In, d.Out)
		}
		if i > 0 && m.LayerDimensions[i-1].Out != d.In {
			return invalid("layer %d input width %d does not match layer %d output width %d",
				i, d.In, i-1, m.LayerDimensions[i-1].Out)
		}
		weights := d.In * d.Out
		if weights/d.In != d.Out {
			return invalid("layer %d weight count overflows", i)
		}
		for _, a := range arrays {
			want := weights
			if a.name == "biasesMagnitudes" || a.name == "biasesSigns" {
				want = d.Out
			}
			if uint64(len(a.v[i])) != want {
				return invalid("layer %d %s has %d entries, want %d", i, a.name, len(a.v[i]), want)
			}
		}
		if j := badSign(m.WeightsSign[i]); j >= 0 {
			return invalid("layer %d weightsSigns[%d] = %d, want 0 or 1", i, j, m.WeightsSign[i][j])
		}
		if j := badSign(m.BiasesSign[i]); j >= 0 {
			return invalid("layer %d biasesSigns[%d] = %d, want 0 or 1", i, j, m.BiasesSign[i][j])
		}
	}
	return nil
}

func badSign(signs []uint64) int {
	for j, s := range signs {
		if s > 1 {
			return j
		}
	}
	return -1
}

// LayerCount returns the number of layers.
func (m QuantizedModel) LayerCount() int { return len(m.LayerDimensions) }

// InputWidth returns the input width of the first layer, or 0 for an empty model.
func (m QuantizedModel) InputWidth() uint64 {
	if len(m.LayerDimensions) == 0 {
		return 0
	}
	return m.LayerDimensions[0].In
}

// OutputWidths returns the per-layer output widths, the representation used
// when requesting an inference.
func (m QuantizedModel) OutputWidths() []uint64 {
	return WidthsFromPairs(m.LayerDimensions)
}

// WidthsFromPairs drops the input half of each pair.
func WidthsFromPairs(dims []LayerDim) []uint64 {
	out := make([]uint64, len(dims))
	for i, d := range dims {
		out[i] = d.Out
	}
	return out
}

// PairsFromWidths rebuilds [in, out] pairs from output widths. Layer 0 takes
// input as its input width; layer i takes the output width of layer i-1.
func PairsFromWidths(input uint64, widths []uint64) []LayerDim {
	out := make([]LayerDim, len(widths))
	in := input
	for i, w := range widths {
		out[i] = LayerDim{In: in, Out: w}
		in = w
	}
	return out
}

// Clone returns a deep copy.
func (m QuantizedModel) Clone() QuantizedModel {
	return QuantizedModel{
		LayerDimensions:  append([]LayerDim(nil), m.LayerDimensions...),
		WeightsMagnitude: cloneMatrix(m.WeightsMagnitude),
		WeightsSign:      cloneMatrix(m.WeightsSign),
		BiasesMagnitude:  cloneMatrix(m.BiasesMagnitude),
		BiasesSign:       cloneMatrix(m.BiasesSign),
		Scale:            m.Scale,
	}
}

func cloneMatrix(v [][]uint64) [][]uint64 {
	if v == nil {
		return nil
	}
	out := make([][]uint64, len(v))
	for i := range v {
		out[i] = append([]uint64(nil), v[i]...)
	}
	return out
}

// DimsMatrix returns the layer dimensions as [][in, out], the on-chain form.
func (m QuantizedModel) DimsMatrix() [][]uint64 {
	out := make([][]uint64, len(m.LayerDimensions))
	for i, d := range m.LayerDimensions {
		out[i] = []uint64{d.In, d.Out}
	}
	return out
}
