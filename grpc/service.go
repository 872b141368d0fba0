package stfgrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/blockberries/stf/types"
)

const serviceName = "stf.v1.Runtime"

// RuntimeServiceServer is the server-side interface for the runtime
// gRPC service.
type RuntimeServiceServer interface {
	Handshake(context.Context, *types.HandshakeRequest) (*types.HandshakeResponse, error)
	ExecuteBlock(context.Context, *types.Block) (*Empty, error)
	InitializeBlock(context.Context, *types.Header) (*Empty, error)
	ApplyExtrinsic(context.Context, *ExtrinsicRequest) (*ApplyResponse, error)
	FinalizeBlock(context.Context, *Empty) (*types.Header, error)
	Commit(context.Context, *Empty) (*types.Header, error)
	ValidateTransaction(context.Context, *ExtrinsicRequest) (*types.TransactionValidity, error)
	Query(context.Context, *types.StateQuery) (*types.StateQueryResult, error)
	OffchainWorker(context.Context, *OffchainRequest) (*Empty, error)
}

// RegisterRuntimeServiceServer registers the service on a gRPC server.
func RegisterRuntimeServiceServer(s *grpc.Server, srv RuntimeServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// unary adapts a typed handler to a grpc.MethodDesc handler.
func unary[Req any, Resp any](call func(RuntimeServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		return call(srv.(RuntimeServiceServer), ctx, req)
	}
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RuntimeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Handshake", Handler: unary(RuntimeServiceServer.Handshake)},
		{MethodName: "ExecuteBlock", Handler: unary(RuntimeServiceServer.ExecuteBlock)},
		{MethodName: "InitializeBlock", Handler: unary(RuntimeServiceServer.InitializeBlock)},
		{MethodName: "ApplyExtrinsic", Handler: unary(RuntimeServiceServer.ApplyExtrinsic)},
		{MethodName: "FinalizeBlock", Handler: unary(RuntimeServiceServer.FinalizeBlock)},
		{MethodName: "Commit", Handler: unary(RuntimeServiceServer.Commit)},
		{MethodName: "ValidateTransaction", Handler: unary(RuntimeServiceServer.ValidateTransaction)},
		{MethodName: "Query", Handler: unary(RuntimeServiceServer.Query)},
		{MethodName: "OffchainWorker", Handler: unary(RuntimeServiceServer.OffchainWorker)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "github.com/blockberries/stf/v1/runtime.cram",
}
