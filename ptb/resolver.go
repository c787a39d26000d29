package ptb

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog/log"

	"suiml.io/suiml/errs"
	"suiml.io/suiml/sui"
)

// ObjectSource is the read side of the chain needed to resolve inputs.
// *sui.Client satisfies it.
type ObjectSource interface {
	Object(ctx context.Context, id sui.ObjectID) (sui.ObjectData, error)
	NormalizedMoveFunction(ctx context.Context, pkg sui.ObjectID, module, function string) (sui.MoveFunction, error)
}

// ObjectResolver turns object ids into transaction inputs. The initial
// shared version of a shared object and the signature of a Move function
// never change, so both are cached. Owned objects are looked up every time
// because their version moves with each transaction.
type ObjectResolver struct {
	src   ObjectSource
	cache *ristretto.Cache
}

// NewObjectResolver returns a resolver caching up to maxEntries results.
func NewObjectResolver(src ObjectSource, maxEntries int64) (*ObjectResolver, error) {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &ObjectResolver{src: src, cache: cache}, nil
}

func (r *ObjectResolver) Close() { r.cache.Close() }

// Wait blocks until pending cache writes are visible.
func (r *ObjectResolver) Wait() { r.cache.Wait() }

func sharedKey(id sui.ObjectID) string { return "shared:" + id.String() }
func functionKey(t MoveTarget) string  { return "fn:" + t.String() }

// Function returns the normalized signature of target.
func (r *ObjectResolver) Function(ctx context.Context, target MoveTarget) (sui.MoveFunction, error) {
	key := functionKey(target)
	if v, ok := r.cache.Get(key); ok {
		return v.(sui.MoveFunction), nil
	}
	fn, err := r.src.NormalizedMoveFunction(ctx, target.Package, target.Module, target.Function)
	if err != nil {
		return sui.MoveFunction{}, err
	}
	r.cache.Set(key, fn, 1)
	return fn, nil
}

// Resolve returns the input for object id passed as parameter param of
// target. Shared objects are mutable when the parameter is a mutable
// reference or taken by value.
func (r *ObjectResolver) Resolve(ctx context.Context, id sui.ObjectID, target MoveTarget, param int) (ObjectArg, error) {
	fn, err := r.Function(ctx, target)
	if err != nil {
		return ObjectArg{}, err
	}
	if param < 0 || param >= len(fn.Parameters) {
		return ObjectArg{}, errs.New(errs.KindValidation, errs.CodeInvalidInput,
			fmt.Sprintf("%s has no parameter %d", target, param))
	}
	mutable := fn.ParamMutable(param) || fn.ParamByValue(param)

	if v, ok := r.cache.Get(sharedKey(id)); ok {
		return SharedObjectArg(id, v.(uint64), mutable), nil
	}

	obj, err := r.src.Object(ctx, id)
	if err != nil {
		return ObjectArg{}, err
	}
	if obj.Owner == nil {
		return ImmOrOwnedObject(obj.Ref()), nil
	}
	switch {
	case obj.Owner.Shared != nil:
		initial := uint64(obj.Owner.Shared.InitialSharedVersion)
		r.cache.Set(sharedKey(id), initial, 1)
		log.Debug().Str("object_id", id.String()).Uint64("initial_shared_version", initial).Msg("resolved shared object")
		return SharedObjectArg(id, initial, mutable), nil
	case obj.Owner.ObjectOwner != nil:
		return ObjectArg{}, errs.New(errs.KindValidation, errs.CodeInvalidInput,
			fmt.Sprintf("object %s is owned by object %s and cannot be a transaction input", id, obj.Owner.ObjectOwner))
	default:
		return ImmOrOwnedObject(obj.Ref()), nil
	}
}
