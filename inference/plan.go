package inference

import (
	"fmt"

	"suiml.io/suiml/errs"
	"suiml.io/suiml/ptb"
	"suiml.io/suiml/quant"
	"suiml.io/suiml/sui"
)

// PredictFunction is the per-neuron entry point of the model module.
const PredictFunction = "predict_layer_partial"

// Request is one prediction. LayerDimensions holds the output width of each
// layer.
type Request struct {
	ModelID         sui.ObjectID
	LayerCount      int
	LayerDimensions []uint64
	Input           quant.Vector
}

type SourceKind uint8

const (
	SourceEmpty SourceKind = iota
	SourceInput
	SourceCall
)

// Source says where a call reads a vector argument from.
type Source struct {
	Kind SourceKind
	Call int // index into the plan; SourceCall only
}

var (
	Empty       = Source{Kind: SourceEmpty}
	InputVector = Source{Kind: SourceInput}
)

func CallResult(k int) Source { return Source{Kind: SourceCall, Call: k} }

func (s Source) String() string {
	switch s.Kind {
	case SourceEmpty:
		return "empty"
	case SourceInput:
		return "input"
	default:
		return fmt.Sprintf("call#%d", s.Call)
	}
}

// NeuronCall is one predict_layer_partial invocation.
type NeuronCall struct {
	Layer       uint64
	Neuron      uint64
	Input       Source
	Accumulator Source
}

// Plan validates req and folds it into the ordered call sequence.
func Plan(req Request) ([]NeuronCall, error) {
	if len(req.LayerDimensions) != req.LayerCount {
		return nil, errs.New(errs.KindValidation, errs.CodeDimensionMismatch,
			fmt.Sprintf("layer count %d does not match %d layer dimensions", req.LayerCount, len(req.LayerDimensions)))
	}
	if req.LayerCount == 0 {
		return nil, errs.New(errs.KindValidation, errs.CodeInvalidInput, "model has no layers")
	}
	if req.Input.Len() == 0 && len(req.Input.Sign) == 0 {
		return nil, errs.New(errs.KindValidation, errs.CodeInvalidInput, "input vector is empty")
	}
	if err := req.Input.Validate(); err != nil {
		return nil, err
	}
	var total uint64
	for i, w := range req.LayerDimensions {
		if w == 0 {
			return nil, errs.New(errs.KindValidation, errs.CodeInvalidInput,
				fmt.Sprintf("layer %d has zero width", i))
		}
		if w > ptb.MaxCommands-total {
			return nil, errs.New(errs.KindValidation, errs.CodeInvalidInput,
				fmt.Sprintf("model needs more than %d calls in one transaction", ptb.MaxCommands))
		}
		total += w
	}

	calls := make([]NeuronCall, 0, total)
	layerInput := InputVector
	for layer, width := range req.LayerDimensions {
		acc := Empty
		for neuron := uint64(0); neuron < width; neuron++ {
			calls = append(calls, NeuronCall{
				Layer:       uint64(layer),
				Neuron:      neuron,
				Input:       layerInput,
				Accumulator: acc,
			})
			acc = CallResult(len(calls) - 1)
		}
		layerInput = CallResult(len(calls) - 1)
	}
	return calls, nil
}

// Build emits one Move call per planned call into b and returns the result
// of the last one. model is the model object input.
func Build(b *ptb.Builder, target ptb.MoveTarget, model ptb.Argument, plan []NeuronCall, input quant.Vector) (ptb.Argument, error) {
	if len(plan) == 0 {
		return ptb.Argument{}, errs.New(errs.KindValidation, errs.CodeInvalidInput, "empty plan")
	}
	inMag := b.PureU64Vector(input.Magnitude)
	inSign := b.PureU64Vector(input.SignsU64())
	empty := b.PureU64Vector(nil)
	if err := b.Err(); err != nil {
		return ptb.Argument{}, err
	}

	results := make([]ptb.Argument, len(plan))
	resolve := func(k int, s Source) (ptb.Argument, ptb.Argument, error) {
		switch s.Kind {
		case SourceEmpty:
			return empty, empty, nil
		case SourceInput:
			return inMag, inSign, nil
		case SourceCall:
			if s.Call < 0 || s.Call >= k {
				return ptb.Argument{}, ptb.Argument{}, fmt.Errorf("inference: call %d reads %s", k, s)
			}
			return results[s.Call].Nested(0), results[s.Call].Nested(1), nil
		default:
			return ptb.Argument{}, ptb.Argument{}, fmt.Errorf("inference: unknown source kind %d", s.Kind)
		}
	}

	for k, c := range plan {
		xMag, xSign, err := resolve(k, c.Input)
		if err != nil {
			return ptb.Argument{}, err
		}
		accMag, accSign, err := resolve(k, c.Accumulator)
		if err != nil {
			return ptb.Argument{}, err
		}
		results[k] = b.MoveCall(target, model,
			b.PureU64(c.Layer), b.PureU64(c.Neuron),
			xMag, xSign, accMag, accSign)
		if err := b.Err(); err != nil {
			return ptb.Argument{}, err
		}
	}
	return results[len(plan)-1], nil
}
