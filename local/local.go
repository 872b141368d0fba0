// Package local provides a zero-copy, in-process runtime connection.
//
// For nodes compiled into the same binary as the runtime, this
// adapter hosts the runtime over a ledger store with lifecycle
// enforcement and no serialization overhead.
package local

import (
	"context"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/ledger"
	"github.com/blockberries/stf/runtime"
	"github.com/blockberries/stf/server"
	"github.com/blockberries/stf/types"
)

// Compile-time interface check.
var _ stf.Runtime = (*Connection)(nil)

// Connection is an in-process stf.Runtime. It owns the store it was
// created with.
type Connection struct {
	srv   *server.Server
	store ledger.Store
}

// NewConnection creates an in-process connection hosting rt over
// store. metrics may be nil.
func NewConnection(rt *runtime.Runtime, store ledger.Store, metrics *server.Metrics) *Connection {
	return &Connection{srv: server.New(rt, store, metrics), store: store}
}

func (c *Connection) Handshake(ctx context.Context, req types.HandshakeRequest) (types.HandshakeResponse, error) {
	return c.srv.Handshake(ctx, req)
}

func (c *Connection) ExecuteBlock(ctx context.Context, block types.Block) error {
	return c.srv.ExecuteBlock(ctx, block)
}

func (c *Connection) InitializeBlock(ctx context.Context, header types.Header) error {
	return c.srv.InitializeBlock(ctx, header)
}

func (c *Connection) ApplyExtrinsic(ctx context.Context, xt types.Extrinsic) (types.ApplyOutcome, error) {
	return c.srv.ApplyExtrinsic(ctx, xt)
}

func (c *Connection) FinalizeBlock(ctx context.Context) (types.Header, error) {
	return c.srv.FinalizeBlock(ctx)
}

func (c *Connection) Commit(ctx context.Context) (types.Header, error) {
	return c.srv.Commit(ctx)
}

func (c *Connection) ValidateTransaction(ctx context.Context, xt types.Extrinsic) (types.TransactionValidity, error) {
	return c.srv.ValidateTransaction(ctx, xt)
}

func (c *Connection) Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error) {
	return c.srv.Query(ctx, req)
}

func (c *Connection) OffchainWorker(ctx context.Context, number uint64) error {
	return c.srv.OffchainWorker(ctx, number)
}

func (c *Connection) Capabilities() types.Capabilities {
	return c.srv.Capabilities()
}

// Close closes the underlying store.
func (c *Connection) Close() error { return c.store.Close() }

// Server returns the underlying server for advanced use cases.
func (c *Connection) Server() *server.Server {
	return c.srv
}
