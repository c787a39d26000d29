package grpccas

import (
	"context"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"suiml.io/suiml/cidutil"
	"suiml.io/suiml/storage"
)

// Server serves a storage.BlobStore over gRPC.
type Server struct {
	UnimplementedBlobStoreServer
	Store storage.BlobStore
}

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "no store configured")
	}
	b := in.GetValue()
	want, err := cidutil.CIDv1RawSHA256CID(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	id, err := s.Store.Put(ctx, b)
	if err != nil {
		return nil, toStatus(err)
	}
	if !id.Equals(want) {
		return nil, status.Error(codes.DataLoss, storage.ErrCIDMismatch.Error())
	}
	log.Debug().Str("cid", id.String()).Int("bytes", len(b)).Msg("blobstore put")
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "no store configured")
	}
	id, err := cidutil.Parse(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	b, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := cidutil.Verify(id, b); err != nil {
		return nil, status.Error(codes.DataLoss, storage.ErrCIDMismatch.Error())
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "no store configured")
	}
	id, err := cidutil.Parse(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	ok, err := s.Store.Has(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *Server) List(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	l, ok := s.Store.(storage.Lister)
	if !ok {
		return nil, status.Error(codes.Unimplemented, "store cannot list")
	}
	ids, err := l.List(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(ids))}
	for _, id := range ids {
		out.Values = append(out.Values, structpb.NewStringValue(id.String()))
	}
	return out, nil
}
