package quant

import (
	"fmt"
	"math"

	"suiml.io/suiml/errs"
)

const (
	// MaxScale is the largest supported power-of-ten exponent. 10^19 no
	// longer fits a u64 magnitude of 1.
	MaxScale = 18

	// MaxMagnitude is the largest magnitude representable by the on-chain u64.
	MaxMagnitude = math.MaxUint64

	// SignPositive and SignNegative are the only valid sign flags.
	SignPositive uint8 = 0
	SignNegative uint8 = 1
)

// twoTo64 is the first float64 that does not fit a uint64.
const twoTo64 = 18446744073709551616.0

// Vector is a sign-magnitude encoded vector.
//
// Element i represents (Sign[i] == 1 ? -1 : 1) * Magnitude[i] / 10^scale, where
// scale is carried by the owner of the vector (a model or a request).
type Vector struct {
	Magnitude []uint64 `json:"magnitude"`
	Sign      []uint8  `json:"sign"`
}

// Len returns the number of elements. It assumes Validate has passed.
func (v Vector) Len() int { return len(v.Magnitude) }

// Validate checks that magnitude and sign have equal length and that every
// sign flag is 0 or 1.
func (v Vector) Validate() error {
	if len(v.Magnitude) != len(v.Sign) {
		return errs.New(errs.KindValidation, errs.CodeInvalidInput,
			fmt.Sprintf("magnitude length %d does not match sign length %d", len(v.Magnitude), len(v.Sign)))
	}
	for i, s := range v.Sign {
		if s != SignPositive && s != SignNegative {
			return errs.New(errs.KindValidation, errs.CodeInvalidInput,
				fmt.Sprintf("sign[%d] = %d, want 0 or 1", i, s))
		}
	}
	return nil
}

// Clone returns a deep copy.
func (v Vector) Clone() Vector {
	return Vector{
		Magnitude: append([]uint64(nil), v.Magnitude...),
		Sign:      append([]uint8(nil), v.Sign...),
	}
}

// SignsU64 returns the sign flags widened to u64, the on-chain element type.
func (v Vector) SignsU64() []uint64 {
	out := make([]uint64, len(v.Sign))
	for i, s := range v.Sign {
		out[i] = uint64(s)
	}
	return out
}

// FromU64 builds a Vector from u64 magnitude and sign slices as returned by the chain.
func FromU64(magnitude, sign []uint64) (Vector, error) {
	v := Vector{Magnitude: append([]uint64(nil), magnitude...), Sign: make([]uint8, len(sign))}
	for i, s := range sign {
		if s > 1 {
			return Vector{}, errs.New(errs.KindValidation, errs.CodeInvalidInput,
				fmt.Sprintf("sign[%d] = %d, want 0 or 1", i, s))
		}
		v.Sign[i] = uint8(s)
	}
	return v, v.Validate()
}

func checkScale(scale int) error {
	if scale < 0 || scale > MaxScale {
		return errs.New(errs.KindValidation, errs.CodeInvalidInput,
			fmt.Sprintf("scale %d out of range [0, %d]", scale, MaxScale))
	}
	return nil
}

// Encode converts values into a sign-magnitude vector at the given scale.
//
// Magnitudes are round(|v| * 10^scale) with round-half-to-even, the rounding
// used by the reference converter. A value whose magnitude rounds to zero is
// encoded as positive zero. NaN, infinities, and magnitudes above MaxMagnitude
// fail with EncodingOverflow.
func Encode(values []float64, scale int) (Vector, error) {
	if err := checkScale(scale); err != nil {
		return Vector{}, err
	}
	factor := math.Pow10(scale)
	out := Vector{
		Magnitude: make([]uint64, len(values)),
		Sign:      make([]uint8, len(values)),
	}
	for i, v := range values {
		m, s, err := encodeOne(v, factor)
		if err != nil {
			return Vector{}, errs.Wrap(errs.KindEncoding, errs.CodeEncodingOverflow,
				fmt.Sprintf("value[%d] = %v at scale %d", i, v, scale), err)
		}
		out.Magnitude[i] = m
		out.Sign[i] = s
	}
	return out, nil
}

// EncodeFloat32 is Encode for float32 inputs.
func EncodeFloat32(values []float32, scale int) (Vector, error) {
	wide := make([]float64, len(values))
	for i, v := range values {
		wide[i] = float64(v)
	}
	return Encode(wide, scale)
}

func encodeOne(v, factor float64) (uint64, uint8, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, 0, fmt.Errorf("not a finite number")
	}
	scaled := math.RoundToEven(math.Abs(v) * factor)
	if scaled >= twoTo64 {
		return 0, 0, fmt.Errorf("magnitude exceeds %d", uint64(MaxMagnitude))
	}
	m := uint64(scaled)
	if m == 0 || v > 0 {
		return m, SignPositive, nil
	}
	return m, SignNegative, nil
}

// Value reconstructs a single element.
func Value(magnitude uint64, sign uint8, scale int) float64 {
	f := float64(magnitude) / math.Pow10(scale)
	if sign == SignNegative {
		return -f
	}
	return f
}

// Decode reconstructs the real values of v at the given scale.
func Decode(v Vector, scale int) ([]float64, error) {
	if err := checkScale(scale); err != nil {
		return nil, err
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	out := make([]float64, len(v.Magnitude))
	for i := range v.Magnitude {
		out[i] = Value(v.Magnitude[i], v.Sign[i], scale)
	}
	return out, nil
}

// Argmax returns the index of the largest decoded element, or -1 for an empty vector.
// Ties resolve to the lowest index.
func Argmax(v Vector) int {
	best := -1
	var bestMag uint64
	var bestNeg bool
	for i := range v.Magnitude {
		neg := v.Sign[i] == SignNegative && v.Magnitude[i] != 0
		if best < 0 || greater(v.Magnitude[i], neg, bestMag, bestNeg) {
			best, bestMag, bestNeg = i, v.Magnitude[i], neg
		}
	}
	return best
}

func greater(m uint64, neg bool, om uint64, oneg bool) bool {
	switch {
	case !neg && oneg:
		return true
	case neg && !oneg:
		return false
	case !neg:
		return m > om
	default:
		return m < om
	}
}
