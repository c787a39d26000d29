package inference

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suiml.io/suiml/errs"
	"suiml.io/suiml/sui"
)

const eventPrefix = "0x77::model::"

func event(name, parsed string) sui.Event {
	return sui.Event{Type: eventPrefix + name, ParsedJSON: json.RawMessage(parsed)}
}

func TestDecodeEventAcceptsStringAndNumberU64(t *testing.T) {
	ev, err := DecodeEvent(event("LayerPartialComputed",
		`{"model_id":"0x99","layer_idx":"1","output_dim_idx":0,"output_magnitude":"18446744073709551615","output_sign":1,"is_last_dimension":true}`))
	require.NoError(t, err)
	p, ok := ev.(*LayerPartialComputed)
	require.True(t, ok)
	assert.Equal(t, sui.MustParseAddress("0x99"), p.ModelID)
	assert.Equal(t, uint64(1), p.Layer)
	assert.Equal(t, uint64(18446744073709551615), p.Magnitude)
	assert.Equal(t, uint8(1), p.Sign)
	assert.True(t, p.IsLastDimension)

	ev, err = DecodeEvent(event("LayerComputed",
		`{"model_id":"0x99","layer_idx":0,"output_magnitude":["3",4],"output_sign":[0,"1"],"activation_type":1}`))
	require.NoError(t, err)
	l := ev.(*LayerComputed)
	assert.Equal(t, []uint64{3, 4}, l.Output.Magnitude)
	assert.Equal(t, []uint8{0, 1}, l.Output.Sign)
	assert.Equal(t, uint64(1), l.Activation)

	ev, err = DecodeEvent(event("PredictionCompleted",
		`{"model_id":"0x99","output_magnitude":["10","70","5"],"output_sign":[0,0,1],"argmax_idx":"1"}`))
	require.NoError(t, err)
	d := ev.(*PredictionCompleted)
	assert.Equal(t, uint64(1), d.ArgmaxIdx)
	assert.Equal(t, "PredictionCompleted", d.EventName())
}

func TestDecodeEventGenericTag(t *testing.T) {
	ev, err := DecodeEvent(sui.Event{Type: eventPrefix + "PredictionCompleted<0x2::sui::SUI>",
		ParsedJSON: json.RawMessage(`{"model_id":"0x1","output_magnitude":[],"output_sign":[],"argmax_idx":0}`)})
	require.NoError(t, err)
	assert.IsType(t, &PredictionCompleted{}, ev)
}

func TestDecodeEventRejections(t *testing.T) {
	_, err := DecodeEvent(event("ModelCreated", `{}`))
	assert.Equal(t, errs.CodeUnknownEvent, errs.CodeOf(err))

	_, err = DecodeEvent(sui.Event{Type: "PredictionCompleted"})
	assert.Equal(t, errs.CodeUnknownEvent, errs.CodeOf(err))

	// Names are matched exactly, not by substring.
	_, err = DecodeEvent(event("MyPredictionCompletedV2", `{}`))
	assert.Equal(t, errs.CodeUnknownEvent, errs.CodeOf(err))

	_, err = DecodeEvent(event("PredictionCompleted", `{"output_magnitude":[1],"output_sign":[0,1],"argmax_idx":0}`))
	assert.Equal(t, errs.CodeMalformedEvent, errs.CodeOf(err))

	_, err = DecodeEvent(event("PredictionCompleted", `{"output_magnitude":[1],"output_sign":[0],"argmax_idx":3}`))
	assert.Equal(t, errs.CodeMalformedEvent, errs.CodeOf(err))

	_, err = DecodeEvent(event("LayerPartialComputed", `{"output_sign":2}`))
	assert.Equal(t, errs.CodeMalformedEvent, errs.CodeOf(err))

	_, err = DecodeEvent(event("LayerPartialComputed", `{"layer_idx":"x"}`))
	assert.True(t, errs.IsKind(err, errs.KindEvent))
}

func TestParseEventsFindsPredictionAnywhere(t *testing.T) {
	done := event("PredictionCompleted", `{"model_id":"0x99","output_magnitude":[1,2],"output_sign":[0,0],"argmax_idx":1}`)
	partial := event("LayerPartialComputed", `{"model_id":"0x99","layer_idx":0,"output_dim_idx":0,"output_magnitude":5,"output_sign":0,"is_last_dimension":false}`)

	evs, err := ParseEvents([]sui.Event{done, partial, partial})
	require.NoError(t, err)
	p, ok := evs.Prediction()
	require.True(t, ok)
	assert.Equal(t, uint64(1), p.ArgmaxIdx)
	assert.Len(t, evs.Partials, 2)

	evs, err = ParseEvents([]sui.Event{partial})
	require.NoError(t, err)
	_, ok = evs.Prediction()
	assert.False(t, ok)

	_, err = ParseEvents([]sui.Event{done, partial, done})
	assert.Equal(t, errs.CodeDuplicatePredictionEvent, errs.CodeOf(err))

	_, err = ParseEvents([]sui.Event{partial, event("Unknown", `{}`)})
	assert.Equal(t, errs.CodeUnknownEvent, errs.CodeOf(err))
}

func TestParseEventsFromChecksEmittingPackage(t *testing.T) {
	pkg := sui.MustParseAddress("0x77")
	done := event("PredictionCompleted", `{"model_id":"0x99","output_magnitude":[1],"output_sign":[0],"argmax_idx":0}`)

	evs, err := ParseEventsFrom(pkg, []sui.Event{done})
	require.NoError(t, err)
	_, ok := evs.Prediction()
	assert.True(t, ok)

	foreign := sui.Event{Type: "0x88::model::PredictionCompleted", ParsedJSON: done.ParsedJSON}
	_, err = ParseEventsFrom(pkg, []sui.Event{foreign})
	assert.Equal(t, errs.CodeUnknownEvent, errs.CodeOf(err))

	// PackageID reported by the node wins over the struct tag.
	relayed := done
	relayed.PackageID = sui.MustParseAddress("0x88")
	_, err = ParseEventsFrom(pkg, []sui.Event{relayed})
	assert.Equal(t, errs.CodeUnknownEvent, errs.CodeOf(err))

	_, err = ParseEventsFrom(pkg, []sui.Event{{Type: "PredictionCompleted"}})
	assert.Equal(t, errs.CodeUnknownEvent, errs.CodeOf(err))
}

func TestParseEventType(t *testing.T) {
	name, err := ParseEventType("0x2::m::Foo<0x2::sui::SUI>")
	require.NoError(t, err)
	assert.Equal(t, "Foo", name)
	_, err = ParseEventType("0x2::m::")
	assert.Error(t, err)
}
