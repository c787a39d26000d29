package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"suiml.io/suiml/errs"
	"suiml.io/suiml/metrics"
	"suiml.io/suiml/model"
	"suiml.io/suiml/predlog"
	"suiml.io/suiml/ptb"
	"suiml.io/suiml/quant"
	"suiml.io/suiml/sui"
)

const (
	DefaultModule    = "model"
	DefaultGasBudget = 3_000_000_000
)

// Chain is the node API used by Client. *sui.Client satisfies it.
type Chain interface {
	ptb.ObjectSource
	sui.CoinSource
	ReferenceGasPrice(ctx context.Context) (uint64, error)
	ExecuteTransactionBlock(ctx context.Context, txBytes []byte, signatures []string, opts sui.ExecuteOptions, mode sui.RequestType) (sui.TransactionResponse, error)
}

// Client submits predictions and uploads against one deployed package.
type Client struct {
	chain     Chain
	signer    sui.Signer
	resolver  *ptb.ObjectResolver
	pkg       sui.ObjectID
	module    string
	gasBudget uint64
	gasPrice  uint64
	publisher predlog.Publisher
}

type Option func(*Client)

// WithSigner sets the signing key. Without it an ephemeral key pair is
// generated, which can only pay for gas once funded.
func WithSigner(s sui.Signer) Option { return func(c *Client) { c.signer = s } }

func WithModule(name string) Option { return func(c *Client) { c.module = name } }

func WithGasBudget(mist uint64) Option { return func(c *Client) { c.gasBudget = mist } }

// WithGasPrice fixes the gas price instead of querying the reference price.
func WithGasPrice(mist uint64) Option { return func(c *Client) { c.gasPrice = mist } }

func WithPublisher(p predlog.Publisher) Option { return func(c *Client) { c.publisher = p } }

func WithResolver(r *ptb.ObjectResolver) Option { return func(c *Client) { c.resolver = r } }

func NewClient(chain Chain, pkg sui.ObjectID, opts ...Option) (*Client, error) {
	c := &Client{
		chain:     chain,
		pkg:       pkg,
		module:    DefaultModule,
		gasBudget: DefaultGasBudget,
		publisher: predlog.Nop{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.signer == nil {
		kp, err := sui.NewKeypair()
		if err != nil {
			return nil, err
		}
		log.Warn().Str("address", kp.Address().String()).Msg("no signing key configured, using an ephemeral key pair")
		c.signer = kp
	}
	if c.resolver == nil {
		r, err := ptb.NewObjectResolver(chain, 1024)
		if err != nil {
			return nil, err
		}
		c.resolver = r
	}
	return c, nil
}

// Sender returns the address that signs and pays for transactions.
func (c *Client) Sender() sui.Address { return c.signer.Address() }

func (c *Client) target(function string) ptb.MoveTarget {
	return ptb.MoveTarget{Package: c.pkg, Module: c.module, Function: function}
}

// PredictionResult is the decoded PredictionCompleted event plus the
// per-neuron trace.
type PredictionResult struct {
	Digest      string
	ModelID     sui.ObjectID
	Magnitudes  []uint64
	Signs       []uint8
	ArgmaxIndex uint64
	Partials    []LayerPartialComputed
	Layers      []LayerComputed
	Calls       int
	GasUsed     uint64
}

// Output returns the result as a sign-magnitude vector.
func (r PredictionResult) Output() quant.Vector {
	return quant.Vector{Magnitude: r.Magnitudes, Sign: r.Signs}
}

// Decode converts the output to floats at the model's scale.
func (r PredictionResult) Decode(scale int) ([]float64, error) {
	return quant.Decode(r.Output(), scale)
}

// Predict runs req as a single transaction. Request validation happens
// before any network call. The transaction is submitted once; a transport
// failure during submission is returned, never retried.
func (c *Client) Predict(ctx context.Context, req Request) (PredictionResult, error) {
	start := time.Now()
	res, err := c.predict(ctx, req)
	tags := []string{metrics.Tag(metrics.TagResult, "ok")}
	if err != nil {
		tags = []string{metrics.Tag(metrics.TagResult, "error"), metrics.Tag(metrics.TagErrorCode, errs.CodeOf(err))}
	}
	metrics.Incr(metrics.PredictionCount, tags)
	metrics.Since(metrics.PredictionLatency, start, tags)
	return res, err
}

func (c *Client) predict(ctx context.Context, req Request) (PredictionResult, error) {
	plan, err := Plan(req)
	if err != nil {
		return PredictionResult{}, err
	}
	log.Debug().
		Str("model_id", req.ModelID.String()).
		Int("layer_count", req.LayerCount).
		Interface("layer_dimensions", req.LayerDimensions).
		Int("input_len", req.Input.Len()).
		Int("calls", len(plan)).
		Msg("prediction parameters")

	target := c.target(PredictFunction)
	modelArg, err := c.resolver.Resolve(ctx, req.ModelID, target, 0)
	if err != nil {
		log.Error().Err(err).Str("model_id", req.ModelID.String()).Msg("resolve model object")
		return PredictionResult{}, err
	}

	b := ptb.NewBuilder()
	if _, err := Build(b, target, b.Object(modelArg), plan, req.Input); err != nil {
		return PredictionResult{}, err
	}
	pt, err := b.Finish()
	if err != nil {
		return PredictionResult{}, err
	}

	resp, err := c.execute(ctx, pt)
	if err != nil {
		return PredictionResult{}, err
	}

	events, err := ParseEventsFrom(c.pkg, resp.Events)
	if err != nil {
		log.Error().Err(err).Str("digest", resp.Digest).Msg("decode prediction events")
		return PredictionResult{}, err
	}
	done, ok := events.Prediction()
	if !ok {
		err := errs.New(errs.KindEvent, errs.CodeMissingPredictionEvent,
			fmt.Sprintf("transaction %s emitted no PredictionCompleted event", resp.Digest))
		log.Error().Err(err).Str("digest", resp.Digest).Int("partials", len(events.Partials)).Msg("prediction incomplete")
		return PredictionResult{}, err
	}

	res := PredictionResult{
		Digest:      resp.Digest,
		ModelID:     req.ModelID,
		Magnitudes:  done.Output.Magnitude,
		Signs:       done.Output.Sign,
		ArgmaxIndex: done.ArgmaxIdx,
		Partials:    events.Partials,
		Layers:      events.Layers,
		Calls:       len(plan),
	}
	if resp.Effects != nil {
		res.GasUsed = resp.Effects.GasUsed.Total()
	}
	metrics.Gauge(metrics.PredictionCalls, float64(res.Calls), nil)
	metrics.Gauge(metrics.PredictionGasUsed, float64(res.GasUsed), nil)
	log.Info().
		Str("digest", res.Digest).
		Str("model_id", req.ModelID.String()).
		Uint64("argmax_idx", res.ArgmaxIndex).
		Int("partials", len(res.Partials)).
		Msg("prediction completed")

	c.record(ctx, res)
	return res, nil
}

// record publishes the audit record. Failures never fail the prediction.
func (c *Client) record(ctx context.Context, res PredictionResult) {
	r := predlog.NewRecord(res.ModelID.String(), res.Digest)
	r.Sender = c.Sender().String()
	r.ArgmaxIndex = res.ArgmaxIndex
	r.Magnitudes = res.Magnitudes
	r.Signs = res.Signs
	r.Calls = res.Calls
	r.GasUsed = res.GasUsed
	if err := c.publisher.Publish(ctx, r); err != nil {
		log.Warn().Err(err).Str("digest", res.Digest).Msg("publish prediction record")
	}
}

// PredictModel runs a prediction for a model whose quantized form is known
// locally, deriving the layer count and output widths from it.
func (c *Client) PredictModel(ctx context.Context, id sui.ObjectID, m model.QuantizedModel, input quant.Vector) (PredictionResult, error) {
	req, err := RequestForModel(id, m, input)
	if err != nil {
		return PredictionResult{}, err
	}
	return c.Predict(ctx, req)
}

// RequestForModel validates m and input and builds the matching Request.
func RequestForModel(id sui.ObjectID, m model.QuantizedModel, input quant.Vector) (Request, error) {
	if err := m.Validate(); err != nil {
		return Request{}, err
	}
	if uint64(input.Len()) != m.InputWidth() {
		return Request{}, errs.New(errs.KindValidation, errs.CodeDimensionMismatch,
			fmt.Sprintf("input has %d elements, model expects %d", input.Len(), m.InputWidth()))
	}
	return Request{
		ModelID:         id,
		LayerCount:      m.LayerCount(),
		LayerDimensions: m.OutputWidths(),
		Input:           input,
	}, nil
}

// execute pays for, signs and submits pt once, and checks the effects status.
func (c *Client) execute(ctx context.Context, pt ptb.ProgrammableTransaction) (sui.TransactionResponse, error) {
	sender := c.Sender()
	price := c.gasPrice
	if price == 0 {
		p, err := c.chain.ReferenceGasPrice(ctx)
		if err != nil {
			log.Error().Err(err).Msg("fetch reference gas price")
			return sui.TransactionResponse{}, err
		}
		price = p
	}

	exclude := map[sui.ObjectID]bool{}
	for _, in := range pt.Inputs {
		if in.Object != nil {
			exclude[in.Object.ID()] = true
		}
	}
	payment, err := sui.SelectGas(ctx, c.chain, sender, c.gasBudget, exclude)
	if err != nil {
		log.Error().Err(err).Str("sender", sender.String()).Msg("select gas")
		return sui.TransactionResponse{}, err
	}

	data := ptb.TransactionData{
		Kind:   pt,
		Sender: sender,
		Gas:    ptb.GasData{Payment: payment, Owner: sender, Price: price, Budget: c.gasBudget},
	}
	txBytes, err := data.Bytes()
	if err != nil {
		return sui.TransactionResponse{}, err
	}
	sig, err := c.signer.SignTransaction(txBytes)
	if err != nil {
		return sui.TransactionResponse{}, errs.Wrap(errs.KindInternal, errs.CodeTransactionFailed, "sign transaction", err)
	}

	log.Debug().Int("commands", len(pt.Commands)).Int("inputs", len(pt.Inputs)).Int("tx_bytes", len(txBytes)).Msg("submitting transaction")
	resp, err := c.chain.ExecuteTransactionBlock(ctx, txBytes, []string{sig},
		sui.ExecuteOptions{ShowEffects: true, ShowEvents: true}, sui.WaitForLocalExecution)
	metrics.Incr(metrics.RPCCallCount, []string{metrics.Tag(metrics.TagMethod, "sui_executeTransactionBlock")})
	if err != nil {
		log.Error().Err(err).Msg("execute transaction")
		return sui.TransactionResponse{}, err
	}
	if resp.Effects == nil {
		return resp, errs.New(errs.KindChain, errs.CodeTransactionFailed,
			fmt.Sprintf("transaction %s returned no effects", resp.Digest))
	}
	if !resp.Effects.Status.Succeeded() {
		err := errs.New(errs.KindChain, errs.CodeTransactionFailed,
			fmt.Sprintf("transaction %s failed: %s", resp.Digest, resp.Effects.Status.Error))
		log.Error().Err(err).Str("digest", resp.Digest).Msg("transaction failed")
		return resp, err
	}
	log.Info().Str("digest", resp.Digest).Uint64("gas_used", resp.Effects.GasUsed.Total()).Msg("transaction executed")
	return resp, nil
}
