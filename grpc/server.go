package stfgrpc

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc"

	"github.com/blockberries/stf/server"
	"github.com/blockberries/stf/types"
)

// Compile-time interface check.
var _ RuntimeServiceServer = (*GRPCServer)(nil)

// GRPCServer exposes a runtime server over gRPC. No type conversion
// is needed; domain types are serialized directly via cramberry.
type GRPCServer struct {
	srv *server.Server
}

// NewGRPCServer creates a gRPC service around srv.
func NewGRPCServer(srv *server.Server) *GRPCServer {
	return &GRPCServer{srv: srv}
}

// Register adds the runtime service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterRuntimeServiceServer(gs, s)
}

// Serve starts a gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

// Server returns the underlying server for advanced use.
func (s *GRPCServer) Server() *server.Server {
	return s.srv
}

func (s *GRPCServer) Handshake(ctx context.Context, req *types.HandshakeRequest) (*types.HandshakeResponse, error) {
	resp, err := s.srv.Handshake(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GRPCServer) ExecuteBlock(ctx context.Context, block *types.Block) (*Empty, error) {
	if err := s.srv.ExecuteBlock(ctx, *block); err != nil {
		return nil, haltStatus(err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) InitializeBlock(ctx context.Context, header *types.Header) (*Empty, error) {
	if err := s.srv.InitializeBlock(ctx, *header); err != nil {
		return nil, haltStatus(err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) ApplyExtrinsic(ctx context.Context, req *ExtrinsicRequest) (*ApplyResponse, error) {
	outcome, err := s.srv.ApplyExtrinsic(ctx, req.Extrinsic)
	var applyErr types.ApplyError
	switch {
	case errors.As(err, &applyErr):
		return &ApplyResponse{Rejected: true, Error: applyErr}, nil
	case err != nil:
		return nil, haltStatus(err)
	}
	return &ApplyResponse{Outcome: outcome}, nil
}

func (s *GRPCServer) FinalizeBlock(ctx context.Context, _ *Empty) (*types.Header, error) {
	h, err := s.srv.FinalizeBlock(ctx)
	if err != nil {
		return nil, haltStatus(err)
	}
	return &h, nil
}

func (s *GRPCServer) Commit(ctx context.Context, _ *Empty) (*types.Header, error) {
	h, err := s.srv.Commit(ctx)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *GRPCServer) ValidateTransaction(ctx context.Context, req *ExtrinsicRequest) (*types.TransactionValidity, error) {
	v, err := s.srv.ValidateTransaction(ctx, req.Extrinsic)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *GRPCServer) Query(ctx context.Context, req *types.StateQuery) (*types.StateQueryResult, error) {
	result, err := s.srv.Query(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *GRPCServer) OffchainWorker(ctx context.Context, req *OffchainRequest) (*Empty, error) {
	if err := s.srv.OffchainWorker(ctx, req.Number); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}
