package inference

import (
	"encoding/json"
	"fmt"
	"strings"

	"suiml.io/suiml/errs"
	"suiml.io/suiml/quant"
	"suiml.io/suiml/sui"
)

// Event is one decoded contract event: *LayerPartialComputed,
// *LayerComputed or *PredictionCompleted.
type Event interface {
	EventName() string
}

// LayerPartialComputed reports one output neuron of a layer.
type LayerPartialComputed struct {
	ModelID         sui.ObjectID
	Layer           uint64
	OutputDim       uint64
	Magnitude       uint64
	Sign            uint8
	IsLastDimension bool
}

// LayerComputed reports a completed layer after activation.
type LayerComputed struct {
	ModelID    sui.ObjectID
	Layer      uint64
	Output     quant.Vector
	Activation uint64
}

// PredictionCompleted is the terminal event of a prediction.
type PredictionCompleted struct {
	ModelID   sui.ObjectID
	Output    quant.Vector
	ArgmaxIdx uint64
}

func (*LayerPartialComputed) EventName() string { return "LayerPartialComputed" }
func (*LayerComputed) EventName() string        { return "LayerComputed" }
func (*PredictionCompleted) EventName() string  { return "PredictionCompleted" }

// ParseEventType extracts Name from a struct tag "<pkg>::<module>::<Name>[<T>]".
func ParseEventType(structTag string) (string, error) {
	parts := strings.SplitN(structTag, "::", 3)
	if len(parts) != 3 {
		return "", errs.New(errs.KindEvent, errs.CodeUnknownEvent, fmt.Sprintf("malformed event type %q", structTag))
	}
	name := parts[2]
	if i := strings.IndexByte(name, '<'); i >= 0 {
		name = name[:i]
	}
	if name == "" || strings.Contains(name, "::") {
		return "", errs.New(errs.KindEvent, errs.CodeUnknownEvent, fmt.Sprintf("malformed event type %q", structTag))
	}
	return name, nil
}

type partialJSON struct {
	ModelID         sui.ObjectID `json:"model_id"`
	LayerIdx        sui.BigUint  `json:"layer_idx"`
	OutputDimIdx    sui.BigUint  `json:"output_dim_idx"`
	OutputMagnitude sui.BigUint  `json:"output_magnitude"`
	OutputSign      sui.BigUint  `json:"output_sign"`
	IsLastDimension bool         `json:"is_last_dimension"`
}

type layerJSON struct {
	ModelID         sui.ObjectID  `json:"model_id"`
	LayerIdx        sui.BigUint   `json:"layer_idx"`
	OutputMagnitude []sui.BigUint `json:"output_magnitude"`
	OutputSign      []sui.BigUint `json:"output_sign"`
	ActivationType  sui.BigUint   `json:"activation_type"`
}

type predictionJSON struct {
	ModelID         sui.ObjectID  `json:"model_id"`
	OutputMagnitude []sui.BigUint `json:"output_magnitude"`
	OutputSign      []sui.BigUint `json:"output_sign"`
	ArgmaxIdx       sui.BigUint   `json:"argmax_idx"`
}

func malformed(name string, err error) error {
	return errs.Wrap(errs.KindEvent, errs.CodeMalformedEvent, "decode "+name, err)
}

func toVector(name string, mag, sign []sui.BigUint) (quant.Vector, error) {
	m := make([]uint64, len(mag))
	for i, v := range mag {
		m[i] = uint64(v)
	}
	s := make([]uint64, len(sign))
	for i, v := range sign {
		s[i] = uint64(v)
	}
	v, err := quant.FromU64(m, s)
	if err != nil {
		return quant.Vector{}, malformed(name, err)
	}
	return v, nil
}

// DecodeEvent decodes e by the name in its struct tag. Names other than the
// three contract events fail with EUnknownEvent.
func DecodeEvent(e sui.Event) (Event, error) {
	name, err := ParseEventType(e.Type)
	if err != nil {
		return nil, err
	}
	switch name {
	case "LayerPartialComputed":
		var raw partialJSON
		if err := json.Unmarshal(e.ParsedJSON, &raw); err != nil {
			return nil, malformed(name, err)
		}
		if raw.OutputSign > 1 {
			return nil, malformed(name, fmt.Errorf("output_sign %d", raw.OutputSign))
		}
		return &LayerPartialComputed{
			ModelID:         raw.ModelID,
			Layer:           uint64(raw.LayerIdx),
			OutputDim:       uint64(raw.OutputDimIdx),
			Magnitude:       uint64(raw.OutputMagnitude),
			Sign:            uint8(raw.OutputSign),
			IsLastDimension: raw.IsLastDimension,
		}, nil
	case "LayerComputed":
		var raw layerJSON
		if err := json.Unmarshal(e.ParsedJSON, &raw); err != nil {
			return nil, malformed(name, err)
		}
		out, err := toVector(name, raw.OutputMagnitude, raw.OutputSign)
		if err != nil {
			return nil, err
		}
		return &LayerComputed{
			ModelID:    raw.ModelID,
			Layer:      uint64(raw.LayerIdx),
			Output:     out,
			Activation: uint64(raw.ActivationType),
		}, nil
	case "PredictionCompleted":
		var raw predictionJSON
		if err := json.Unmarshal(e.ParsedJSON, &raw); err != nil {
			return nil, malformed(name, err)
		}
		out, err := toVector(name, raw.OutputMagnitude, raw.OutputSign)
		if err != nil {
			return nil, err
		}
		if out.Len() > 0 && raw.ArgmaxIdx >= sui.BigUint(out.Len()) {
			return nil, malformed(name, fmt.Errorf("argmax_idx %d out of range for %d outputs", raw.ArgmaxIdx, out.Len()))
		}
		return &PredictionCompleted{ModelID: raw.ModelID, Output: out, ArgmaxIdx: uint64(raw.ArgmaxIdx)}, nil
	default:
		return nil, errs.New(errs.KindEvent, errs.CodeUnknownEvent, fmt.Sprintf("unknown event %s", e.Type))
	}
}

// Events groups the decoded events of one transaction in emission order.
type Events struct {
	Partials   []LayerPartialComputed
	Layers     []LayerComputed
	prediction *PredictionCompleted
}

// ParseEvents decodes every event. More than one PredictionCompleted is an
// error.
func ParseEvents(events []sui.Event) (Events, error) {
	var out Events
	for i, e := range events {
		ev, err := DecodeEvent(e)
		if err != nil {
			return Events{}, fmt.Errorf("event %d: %w", i, err)
		}
		switch v := ev.(type) {
		case *LayerPartialComputed:
			out.Partials = append(out.Partials, *v)
		case *LayerComputed:
			out.Layers = append(out.Layers, *v)
		case *PredictionCompleted:
			if out.prediction != nil {
				return Events{}, errs.New(errs.KindEvent, errs.CodeDuplicatePredictionEvent,
					fmt.Sprintf("event %d: second PredictionCompleted", i))
			}
			out.prediction = v
		}
	}
	return out, nil
}

// eventPackage is the package that emitted e: PackageID as reported by the
// node, or the address in the struct tag when the node left it empty.
func eventPackage(e sui.Event) (sui.ObjectID, error) {
	if !e.PackageID.IsZero() {
		return e.PackageID, nil
	}
	tagPkg, _, ok := strings.Cut(e.Type, "::")
	if !ok {
		return sui.ObjectID{}, errs.New(errs.KindEvent, errs.CodeUnknownEvent, fmt.Sprintf("malformed event type %q", e.Type))
	}
	id, err := sui.ParseAddress(tagPkg)
	if err != nil {
		return sui.ObjectID{}, errs.Wrap(errs.KindEvent, errs.CodeUnknownEvent, "event package", err)
	}
	return id, nil
}

// ParseEventsFrom is ParseEvents for a transaction that only calls pkg. An
// event emitted by any other package fails with EUnknownEvent.
func ParseEventsFrom(pkg sui.ObjectID, events []sui.Event) (Events, error) {
	for i, e := range events {
		src, err := eventPackage(e)
		if err != nil {
			return Events{}, fmt.Errorf("event %d: %w", i, err)
		}
		if src != pkg {
			return Events{}, errs.New(errs.KindEvent, errs.CodeUnknownEvent,
				fmt.Sprintf("event %d: %s emitted by package %s, want %s", i, e.Type, src, pkg))
		}
	}
	return ParseEvents(events)
}

// Prediction returns the terminal event, wherever it appeared.
func (e Events) Prediction() (PredictionCompleted, bool) {
	if e.prediction == nil {
		return PredictionCompleted{}, false
	}
	return *e.prediction, true
}
