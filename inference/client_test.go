package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suiml.io/suiml/errs"
	"suiml.io/suiml/model"
	"suiml.io/suiml/predlog"
	"suiml.io/suiml/ptb"
	"suiml.io/suiml/quant"
	"suiml.io/suiml/sui"
)

var (
	testPackage = sui.MustParseAddress("0x77")
	testModelID = sui.MustParseAddress("0x99")
)

// fakeChain serves reads from fixed data and answers executions with respond.
type fakeChain struct {
	owner    sui.Address
	reads    int
	executed int
	lastTx   []byte
	lastSigs []string
	respond  func(tx []byte) (sui.TransactionResponse, error)
}

func (f *fakeChain) Object(_ context.Context, id sui.ObjectID) (sui.ObjectData, error) {
	f.reads++
	if id != testModelID {
		return sui.ObjectData{}, errs.New(errs.KindChain, errs.CodeRPC, "object not found")
	}
	return sui.ObjectData{ObjectID: id, Version: 12, Owner: &sui.Owner{Shared: &sui.SharedOwner{InitialSharedVersion: 5}}}, nil
}

func (f *fakeChain) NormalizedMoveFunction(context.Context, sui.ObjectID, string, string) (sui.MoveFunction, error) {
	f.reads++
	params := []json.RawMessage{json.RawMessage(`{"Reference":{"Struct":{}}}`)}
	for i := 0; i < 6; i++ {
		params = append(params, json.RawMessage(`"U64"`))
	}
	return sui.MoveFunction{Parameters: params}, nil
}

func (f *fakeChain) Coins(context.Context, sui.Address, string, *string, int) (sui.CoinPage, error) {
	f.reads++
	return sui.CoinPage{Data: []sui.Coin{{
		CoinType:     sui.SuiCoinType,
		CoinObjectID: sui.MustParseAddress("0xc0"),
		Version:      3,
		Balance:      10_000_000_000,
	}}}, nil
}

func (f *fakeChain) ReferenceGasPrice(context.Context) (uint64, error) {
	f.reads++
	return 1000, nil
}

func (f *fakeChain) ExecuteTransactionBlock(_ context.Context, tx []byte, sigs []string, _ sui.ExecuteOptions, _ sui.RequestType) (sui.TransactionResponse, error) {
	f.executed++
	f.lastTx, f.lastSigs = tx, sigs
	return f.respond(tx)
}

func success(events ...sui.Event) func([]byte) (sui.TransactionResponse, error) {
	return func([]byte) (sui.TransactionResponse, error) {
		return sui.TransactionResponse{
			Digest: "D1g3st",
			Effects: &sui.Effects{
				Status:  sui.ExecutionStatus{Status: "success"},
				GasUsed: sui.GasCostSummary{ComputationCost: 1000, StorageCost: 200},
			},
			Events: events,
		}, nil
	}
}

type capturePublisher struct{ records []predlog.Record }

func (c *capturePublisher) Publish(_ context.Context, r predlog.Record) error {
	c.records = append(c.records, r)
	return nil
}
func (c *capturePublisher) Close() error { return nil }

func newTestClient(t *testing.T, chain Chain, opts ...Option) (*Client, *sui.Keypair) {
	kp, err := sui.NewKeypair()
	require.NoError(t, err)
	c, err := NewClient(chain, testPackage, append([]Option{WithSigner(kp)}, opts...)...)
	require.NoError(t, err)
	return c, kp
}

var twoByTwo = Request{ModelID: testModelID, LayerCount: 2, LayerDimensions: []uint64{2, 2}, Input: testInput}

func TestPredictSuccess(t *testing.T) {
	chain := &fakeChain{respond: success(
		event("LayerPartialComputed", `{"model_id":"0x99","layer_idx":0,"output_dim_idx":0,"output_magnitude":"7","output_sign":0,"is_last_dimension":false}`),
		event("PredictionCompleted", `{"model_id":"0x99","output_magnitude":["120","340"],"output_sign":[1,0],"argmax_idx":"1"}`),
	)}
	pub := &capturePublisher{}
	c, kp := newTestClient(t, chain, WithPublisher(pub))

	res, err := c.Predict(context.Background(), twoByTwo)
	require.NoError(t, err)
	assert.Equal(t, "D1g3st", res.Digest)
	assert.Equal(t, []uint64{120, 340}, res.Magnitudes)
	assert.Equal(t, []uint8{1, 0}, res.Signs)
	assert.Equal(t, uint64(1), res.ArgmaxIndex)
	assert.Equal(t, 4, res.Calls)
	assert.Equal(t, uint64(1200), res.GasUsed)
	assert.Len(t, res.Partials, 1)

	vals, err := res.Decode(2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-1.2, 3.4}, vals, 1e-9)

	assert.Equal(t, 1, chain.executed)
	require.Len(t, chain.lastSigs, 1)
	signer, err := sui.VerifyTransaction(chain.lastTx, chain.lastSigs[0])
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), signer)

	require.Len(t, pub.records, 1)
	assert.Equal(t, testModelID.String(), pub.records[0].ModelID)
	assert.Equal(t, kp.Address().String(), pub.records[0].Sender)
}

func TestPredictMismatchMakesNoCalls(t *testing.T) {
	chain := &fakeChain{respond: success()}
	c, _ := newTestClient(t, chain)
	req := twoByTwo
	req.LayerCount = 3
	res, err := c.Predict(context.Background(), req)
	assert.Equal(t, errs.CodeDimensionMismatch, errs.CodeOf(err))
	assert.Equal(t, PredictionResult{}, res)
	assert.Zero(t, chain.reads)
	assert.Zero(t, chain.executed)
}

func TestPredictMismatchMakesNoRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, sui.NewClient(srv.URL))
	req := twoByTwo
	req.LayerDimensions = []uint64{2}
	_, err := c.Predict(context.Background(), req)
	assert.Equal(t, errs.CodeDimensionMismatch, errs.CodeOf(err))
	assert.Zero(t, hits.Load())
}

func TestPredictMissingPredictionEvent(t *testing.T) {
	chain := &fakeChain{respond: success(
		event("LayerPartialComputed", `{"model_id":"0x99","layer_idx":0,"output_dim_idx":0,"output_magnitude":"7","output_sign":0,"is_last_dimension":false}`),
	)}
	pub := &capturePublisher{}
	c, _ := newTestClient(t, chain, WithPublisher(pub))
	res, err := c.Predict(context.Background(), twoByTwo)
	assert.Equal(t, errs.CodeMissingPredictionEvent, errs.CodeOf(err))
	assert.Equal(t, PredictionResult{}, res)
	assert.Empty(t, pub.records)
}

func TestPredictFailedStatus(t *testing.T) {
	chain := &fakeChain{respond: func([]byte) (sui.TransactionResponse, error) {
		return sui.TransactionResponse{
			Digest:  "F41l",
			Effects: &sui.Effects{Status: sui.ExecutionStatus{Status: "failure", Error: "MoveAbort(3)"}},
		}, nil
	}}
	c, _ := newTestClient(t, chain)
	_, err := c.Predict(context.Background(), twoByTwo)
	assert.Equal(t, errs.CodeTransactionFailed, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "MoveAbort(3)")
}

func TestPredictExecuteErrorIsNotRetried(t *testing.T) {
	chain := &fakeChain{respond: func([]byte) (sui.TransactionResponse, error) {
		return sui.TransactionResponse{}, errs.Wrap(errs.KindTransport, errs.CodeRPC, "execute", errors.New("connection reset"))
	}}
	c, _ := newTestClient(t, chain)
	_, err := c.Predict(context.Background(), twoByTwo)
	assert.True(t, errs.IsKind(err, errs.KindTransport))
	assert.Equal(t, 1, chain.executed)
}

func TestPredictDuplicateTerminalEvent(t *testing.T) {
	done := event("PredictionCompleted", `{"model_id":"0x99","output_magnitude":[1],"output_sign":[0],"argmax_idx":0}`)
	chain := &fakeChain{respond: success(done, done)}
	c, _ := newTestClient(t, chain)
	_, err := c.Predict(context.Background(), twoByTwo)
	assert.Equal(t, errs.CodeDuplicatePredictionEvent, errs.CodeOf(err))
}

func TestPredictRejectsEventsFromOtherPackages(t *testing.T) {
	forged := sui.Event{
		Type:       "0x88::model::PredictionCompleted",
		ParsedJSON: json.RawMessage(`{"model_id":"0x99","output_magnitude":[9],"output_sign":[0],"argmax_idx":0}`),
	}
	pub := &capturePublisher{}
	c, _ := newTestClient(t, &fakeChain{respond: success(forged)}, WithPublisher(pub))
	res, err := c.Predict(context.Background(), twoByTwo)
	assert.Equal(t, errs.CodeUnknownEvent, errs.CodeOf(err))
	assert.Equal(t, PredictionResult{}, res)
	assert.Empty(t, pub.records)
}

func TestPredictUnknownModelObject(t *testing.T) {
	chain := &fakeChain{respond: success()}
	c, _ := newTestClient(t, chain)
	req := twoByTwo
	req.ModelID = sui.MustParseAddress("0x1234")
	_, err := c.Predict(context.Background(), req)
	assert.True(t, errs.IsKind(err, errs.KindChain))
	assert.Zero(t, chain.executed)
}

func smallModel() model.QuantizedModel {
	return model.QuantizedModel{
		LayerDimensions:  []model.LayerDim{{In: 2, Out: 2}, {In: 2, Out: 2}},
		WeightsMagnitude: [][]uint64{{1, 2, 3, 4}, {5, 6, 7, 8}},
		WeightsSign:      [][]uint64{{0, 1, 0, 1}, {0, 0, 0, 0}},
		BiasesMagnitude:  [][]uint64{{1, 1}, {2, 2}},
		BiasesSign:       [][]uint64{{0, 0}, {1, 0}},
		Scale:            2,
	}
}

func TestRequestForModel(t *testing.T) {
	req, err := RequestForModel(testModelID, smallModel(), testInput)
	require.NoError(t, err)
	assert.Equal(t, 2, req.LayerCount)
	assert.Equal(t, []uint64{2, 2}, req.LayerDimensions)

	_, err = RequestForModel(testModelID, smallModel(), quant.Vector{Magnitude: []uint64{1}, Sign: []uint8{0}})
	assert.Equal(t, errs.CodeDimensionMismatch, errs.CodeOf(err))

	bad := smallModel()
	bad.LayerDimensions[1].In = 3
	_, err = RequestForModel(testModelID, bad, testInput)
	assert.Equal(t, errs.CodeInvalidModel, errs.CodeOf(err))
}

func TestUploadModel(t *testing.T) {
	other := sui.MustParseAddress("0xaa")
	chain := &fakeChain{respond: func([]byte) (sui.TransactionResponse, error) {
		return sui.TransactionResponse{
			Digest: "Up1",
			Effects: &sui.Effects{
				Status: sui.ExecutionStatus{Status: "success"},
				Created: []sui.OwnedObjectRef{
					{Owner: sui.Owner{AddressOwner: &other}, Reference: sui.ObjectRef{ObjectID: other}},
					{Owner: sui.Owner{Shared: &sui.SharedOwner{InitialSharedVersion: 9}}, Reference: sui.ObjectRef{ObjectID: testModelID}},
				},
			},
		}, nil
	}}
	c, _ := newTestClient(t, chain)
	res, err := c.UploadModel(context.Background(), smallModel(), model.Info{Name: "tiny", Task: "classification"})
	require.NoError(t, err)
	assert.Equal(t, "Up1", res.Digest)
	assert.Equal(t, testModelID, res.ModelID)
	assert.Equal(t, []sui.ObjectID{other, testModelID}, res.Created)
	assert.Equal(t, 1, chain.executed)

	_, err = c.UploadModel(context.Background(), smallModel(), model.Info{})
	assert.Equal(t, errs.CodeInvalidInput, errs.CodeOf(err))

	bad := smallModel()
	bad.WeightsSign[0][0] = 2
	_, err = c.UploadModel(context.Background(), bad, model.Info{Name: "x"})
	assert.Equal(t, errs.CodeInvalidModel, errs.CodeOf(err))
	assert.Equal(t, 1, chain.executed)
}

func TestNewClientGeneratesEphemeralSigner(t *testing.T) {
	c, err := NewClient(&fakeChain{}, testPackage)
	require.NoError(t, err)
	assert.False(t, c.Sender().IsZero())
	assert.Equal(t, ptb.MoveTarget{Package: testPackage, Module: DefaultModule, Function: PredictFunction}, c.target(PredictFunction))
}
