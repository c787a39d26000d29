package inference

import (
	"context"

	"github.com/rs/zerolog/log"

	"suiml.io/suiml/errs"
	"suiml.io/suiml/metrics"
	"suiml.io/suiml/model"
	"suiml.io/suiml/ptb"
	"suiml.io/suiml/sui"
)

// CreateFunction publishes a model object.
const CreateFunction = "create_model"

// UploadResult reports the objects created by create_model. ModelID is the
// first created shared object, or the first created object when none is
// shared.
type UploadResult struct {
	Digest  string
	ModelID sui.ObjectID
	Created []sui.ObjectID
	GasUsed uint64
}

// UploadModel validates m and publishes it with one create_model call.
func (c *Client) UploadModel(ctx context.Context, m model.QuantizedModel, info model.Info) (UploadResult, error) {
	res, err := c.upload(ctx, m, info)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.Incr(metrics.UploadCount, []string{metrics.Tag(metrics.TagResult, result)})
	return res, err
}

func (c *Client) upload(ctx context.Context, m model.QuantizedModel, info model.Info) (UploadResult, error) {
	if err := m.Validate(); err != nil {
		return UploadResult{}, err
	}
	if info.Name == "" {
		return UploadResult{}, errs.New(errs.KindValidation, errs.CodeInvalidInput, "model name is required")
	}

	b := ptb.NewBuilder()
	b.MoveCall(c.target(CreateFunction),
		b.PureString(info.Name),
		b.PureString(info.Description),
		b.PureString(info.Task),
		b.PureU64Matrix(m.DimsMatrix()),
		b.PureU64Matrix(m.WeightsMagnitude),
		b.PureU64Matrix(m.WeightsSign),
		b.PureU64Matrix(m.BiasesMagnitude),
		b.PureU64Matrix(m.BiasesSign),
		b.PureU64(m.Scale),
	)
	pt, err := b.Finish()
	if err != nil {
		return UploadResult{}, err
	}

	log.Debug().Str("name", info.Name).Int("layers", m.LayerCount()).Uint64("scale", m.Scale).Msg("uploading model")
	resp, err := c.execute(ctx, pt)
	if err != nil {
		return UploadResult{}, err
	}

	out := UploadResult{Digest: resp.Digest, GasUsed: resp.Effects.GasUsed.Total()}
	var shared *sui.ObjectID
	for _, o := range resp.Effects.Created {
		id := o.Reference.ObjectID
		out.Created = append(out.Created, id)
		if shared == nil && o.Owner.Shared != nil {
			shared = &id
		}
	}
	switch {
	case shared != nil:
		out.ModelID = *shared
	case len(out.Created) > 0:
		out.ModelID = out.Created[0]
	}
	log.Info().Str("digest", out.Digest).Str("model_id", out.ModelID.String()).Msg("model uploaded")
	return out, nil
}
