package stfgrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/server"
	"github.com/blockberries/stf/types"
)

// Compile-time interface check.
var _ stf.Runtime = (*Client)(nil)

// Client implements stf.Runtime for a remote runtime over gRPC
// using cramberry serialization. Halts are rebuilt as
// *stf.HaltError and admission rejections as types.ApplyError.
type Client struct {
	cc    *grpc.ClientConn
	caps  types.Capabilities
	guard *server.LifecycleGuard
}

// Dial connects to a remote runtime.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("stf client: dial %s: %w", addr, err)
	}
	return &Client{
		cc:    cc,
		guard: server.NewLifecycleGuard(),
	}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

func (c *Client) Handshake(ctx context.Context, req types.HandshakeRequest) (types.HandshakeResponse, error) {
	c.guard.AcquireHandshake()

	resp := new(types.HandshakeResponse)
	err := c.cc.Invoke(ctx, fullMethod("Handshake"), &req, resp)
	if err != nil {
		c.guard.FailHandshake()
		return types.HandshakeResponse{}, err
	}

	c.caps = resp.Capabilities
	c.guard.CompleteHandshake()
	return *resp, nil
}

func (c *Client) ExecuteBlock(ctx context.Context, block types.Block) error {
	c.guard.AcquireExecute()

	err := c.cc.Invoke(ctx, fullMethod("ExecuteBlock"), &block, new(Empty))
	if err != nil {
		c.guard.FailExecute()
		return fromStatus(err)
	}

	c.guard.CompleteExecute()
	return nil
}

func (c *Client) InitializeBlock(ctx context.Context, header types.Header) error {
	c.guard.AcquireInitialize()

	err := c.cc.Invoke(ctx, fullMethod("InitializeBlock"), &header, new(Empty))
	if err != nil {
		c.guard.FailExecute()
		return fromStatus(err)
	}

	c.guard.CompleteInitialize()
	return nil
}

func (c *Client) ApplyExtrinsic(ctx context.Context, xt types.Extrinsic) (types.ApplyOutcome, error) {
	c.guard.AcquireApply()

	resp := new(ApplyResponse)
	err := c.cc.Invoke(ctx, fullMethod("ApplyExtrinsic"), &ExtrinsicRequest{Extrinsic: xt}, resp)
	if err != nil {
		c.guard.FailExecute()
		return types.ApplyOutcome{}, fromStatus(err)
	}

	c.guard.CompleteApply()
	if resp.Rejected {
		return types.ApplyOutcome{}, resp.Error
	}
	return resp.Outcome, nil
}

func (c *Client) FinalizeBlock(ctx context.Context) (types.Header, error) {
	c.guard.AcquireFinalize()

	resp := new(types.Header)
	err := c.cc.Invoke(ctx, fullMethod("FinalizeBlock"), &Empty{}, resp)
	if err != nil {
		c.guard.FailExecute()
		return types.Header{}, fromStatus(err)
	}

	c.guard.CompleteExecute()
	return *resp, nil
}

func (c *Client) Commit(ctx context.Context) (types.Header, error) {
	c.guard.AcquireCommit()
	defer c.guard.CompleteCommit()

	resp := new(types.Header)
	if err := c.cc.Invoke(ctx, fullMethod("Commit"), &Empty{}, resp); err != nil {
		return types.Header{}, err
	}
	return *resp, nil
}

func (c *Client) ValidateTransaction(ctx context.Context, xt types.Extrinsic) (types.TransactionValidity, error) {
	c.guard.CheckConcurrent()

	resp := new(types.TransactionValidity)
	err := c.cc.Invoke(ctx, fullMethod("ValidateTransaction"), &ExtrinsicRequest{Extrinsic: xt}, resp)
	if err != nil {
		return types.TransactionValidity{}, err
	}
	return *resp, nil
}

func (c *Client) Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error) {
	c.guard.CheckConcurrent()

	resp := new(types.StateQueryResult)
	if err := c.cc.Invoke(ctx, fullMethod("Query"), &req, resp); err != nil {
		return types.StateQueryResult{}, err
	}
	return *resp, nil
}

func (c *Client) OffchainWorker(ctx context.Context, number uint64) error {
	c.guard.CheckConcurrent()
	return c.cc.Invoke(ctx, fullMethod("OffchainWorker"), &OffchainRequest{Number: number}, new(Empty))
}

func (c *Client) Capabilities() types.Capabilities { return c.caps }
