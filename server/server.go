package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/btcsuite/btclog/v2"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/ledger"
	"github.com/blockberries/stf/runtime"
	"github.com/blockberries/stf/types"
)

// Server hosts a runtime over a committed ledger store. Each block's
// writes are staged in a working overlay and reach the store only on
// Commit. The node interacts with the runtime exclusively through
// this server.
type Server struct {
	rt      *runtime.Runtime
	store   ledger.Store
	guard   *LifecycleGuard
	metrics *Metrics
	caps    types.Capabilities
	genesis *types.GenesisConfig

	// Sequential-call state, owned by the guard's lock.
	view    ledger.View
	working *ledger.Overlay
	number  uint64
	source  string
	pending fn.Option[types.Header]

	// Last committed header, read by concurrent calls.
	mu   sync.RWMutex
	head types.Header
}

var _ stf.Runtime = (*Server)(nil)

// New creates a server for rt over store. metrics may be nil.
func New(rt *runtime.Runtime, store ledger.Store, metrics *Metrics) *Server {
	return &Server{
		rt:      rt,
		store:   store,
		guard:   NewLifecycleGuard(),
		metrics: metrics,
		pending: fn.None[types.Header](),
	}
}

// UseGenesis sets the genesis built on an empty store when the
// handshake request carries none. Call before Handshake.
func (s *Server) UseGenesis(g types.GenesisConfig) {
	s.genesis = &g
}

// Handshake resumes from the store's last committed header, or
// builds and commits genesis when the store is empty.
func (s *Server) Handshake(ctx context.Context, req types.HandshakeRequest) (types.HandshakeResponse, error) {
	s.guard.AcquireHandshake()

	head, err := s.resume(ctx, req)
	if err != nil {
		s.guard.FailHandshake()
		return types.HandshakeResponse{}, err
	}

	s.caps = discoverCapabilities(s.rt)
	s.setHead(head)
	s.guard.CompleteHandshake()

	log.InfoS(ctx, "Handshake complete",
		"number", head.Number,
		btclog.Hex6("hash", head.Hash().Bytes()),
		"caps", s.caps)
	return types.HandshakeResponse{LastHeader: &head, Capabilities: s.caps}, nil
}

func (s *Server) resume(ctx context.Context, req types.HandshakeRequest) (types.Header, error) {
	last, ok, err := s.store.LastHeader()
	if err != nil {
		return types.Header{}, fmt.Errorf("read last header: %w", err)
	}

	if !ok {
		genesis := req.Genesis
		if genesis == nil {
			genesis = s.genesis
		}
		if genesis == nil {
			return types.Header{}, errors.New("github.com/blockberries/stf: empty store and no genesis supplied")
		}
		v, err := s.store.View()
		if err != nil {
			return types.Header{}, err
		}
		defer v.Release()

		st := ledger.NewOverlay(v)
		h, err := s.rt.BuildGenesis(ctx, st, *genesis)
		if err != nil {
			return types.Header{}, err
		}
		if err := s.store.Commit(st.ChangeSet(), h); err != nil {
			return types.Header{}, fmt.Errorf("commit genesis: %w", err)
		}
		s.metrics.committed(h, "genesis")
		return h, nil
	}

	if lc := req.LastCommitted; lc != nil {
		switch {
		case lc.Number > last.Number:
			return types.Header{}, fmt.Errorf("github.com/blockberries/stf: node committed block %d but runtime is at %d",
				lc.Number, last.Number)
		case lc.Number == last.Number && lc.Hash != last.Hash():
			return types.Header{}, fmt.Errorf("github.com/blockberries/stf: node block %d is %s, runtime has %s",
				lc.Number, lc.Hash, last.Hash())
		}
	}
	return last, nil
}

// ExecuteBlock imports a block. On a halt the staged writes are
// discarded and the server is ready for another block.
func (s *Server) ExecuteBlock(ctx context.Context, block types.Block) error {
	s.guard.AcquireExecute()

	if err := s.stage(); err != nil {
		s.guard.FailExecute()
		return err
	}
	h, err := s.rt.ExecuteBlock(ctx, s.working, block)
	if err != nil {
		s.abort(ctx, block.Header.Number, err)
		return err
	}
	s.metrics.imported(block)

	s.number = h.Number
	s.source = "import"
	s.pending = fn.Some(h)
	s.guard.CompleteExecute()
	return nil
}

// InitializeBlock starts authoring a block on top of the last
// committed header.
func (s *Server) InitializeBlock(ctx context.Context, header types.Header) error {
	s.guard.AcquireInitialize()

	if err := s.stage(); err != nil {
		s.guard.FailExecute()
		return err
	}
	if err := s.rt.InitializeBlock(ctx, s.working, header); err != nil {
		s.abort(ctx, header.Number, err)
		return err
	}

	s.number = header.Number
	s.source = "author"
	s.guard.CompleteInitialize()
	return nil
}

// ApplyExtrinsic applies one extrinsic to the block being authored.
// A types.ApplyError leaves the block open. Any other error abandons
// it.
func (s *Server) ApplyExtrinsic(ctx context.Context, xt types.Extrinsic) (types.ApplyOutcome, error) {
	s.guard.AcquireApply()

	outcome, err := s.rt.ApplyExtrinsic(ctx, s.working, xt)
	s.metrics.applied(outcome, err)

	var applyErr types.ApplyError
	if err != nil && !errors.As(err, &applyErr) {
		err = s.asHalt(s.number, err)
		s.abort(ctx, s.number, err)
		return outcome, err
	}
	s.guard.CompleteApply()
	return outcome, err
}

// FinalizeBlock seals the block being authored and returns its
// header. Commit must follow.
func (s *Server) FinalizeBlock(ctx context.Context) (types.Header, error) {
	s.guard.AcquireFinalize()

	h, err := s.rt.FinalizeBlock(ctx, s.working)
	if err != nil {
		s.abort(ctx, s.number, err)
		return types.Header{}, err
	}
	s.pending = fn.Some(h)
	s.guard.CompleteExecute()
	return h, nil
}

// Commit persists the staged writes of the last executed or
// finalized block.
func (s *Server) Commit(ctx context.Context) (types.Header, error) {
	s.guard.AcquireCommit()
	defer s.guard.CompleteCommit()

	h := s.pending.UnsafeFromSome()
	cs := s.working.ChangeSet()
	s.discard()

	if err := s.store.Commit(cs, h); err != nil {
		return types.Header{}, fmt.Errorf("commit block %d: %w", h.Number, err)
	}
	s.setHead(h)
	s.metrics.committed(h, s.source)

	log.InfoS(ctx, "Committed block",
		"number", h.Number,
		btclog.Hex6("hash", h.Hash().Bytes()),
		"writes", len(cs))
	return h, nil
}

// ValidateTransaction runs the admission oracle against a snapshot of
// committed state. Safe for concurrent use.
func (s *Server) ValidateTransaction(ctx context.Context, xt types.Extrinsic) (types.TransactionValidity, error) {
	s.guard.CheckConcurrent()

	v, err := s.store.View()
	if err != nil {
		return types.TransactionValidity{}, err
	}
	defer v.Release()

	verdict := s.rt.ValidateTransaction(ctx, v, xt)
	s.metrics.validated(verdict)
	return verdict, nil
}

// Query reads committed state. Safe for concurrent use.
func (s *Server) Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error) {
	s.guard.CheckConcurrent()
	head := s.LastHeader()

	if req.Path == types.QueryBestHeader {
		data, err := cramberry.Marshal(head)
		if err != nil {
			return types.StateQueryResult{}, err
		}
		return types.StateQueryResult{Code: runtime.QueryOK, Value: data, Number: head.Number}, nil
	}

	v, err := s.store.View()
	if err != nil {
		return types.StateQueryResult{}, err
	}
	defer v.Release()

	res, err := s.rt.Query(v, req)
	if err != nil {
		return types.StateQueryResult{}, err
	}
	res.Number = head.Number
	return res, nil
}

// OffchainWorker runs the modules' offchain hooks for block number.
// Safe for concurrent use.
func (s *Server) OffchainWorker(ctx context.Context, number uint64) error {
	s.guard.CheckConcurrent()
	s.rt.OffchainWorker(ctx, number)
	return nil
}

// Capabilities returns the capabilities discovered at handshake.
func (s *Server) Capabilities() types.Capabilities {
	return s.caps
}

// LastHeader returns the last committed header.
func (s *Server) LastHeader() types.Header {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.head
}

// Pending returns the header awaiting Commit, if any.
func (s *Server) Pending() fn.Option[types.Header] {
	return s.pending
}

// State returns the lifecycle state name.
func (s *Server) State() string { return s.guard.State() }

// Close is a no-op; the caller owns the store.
func (s *Server) Close() error { return nil }

func (s *Server) setHead(h types.Header) {
	s.mu.Lock()
	s.head = h
	s.mu.Unlock()
}

// stage opens a working overlay over the latest committed view.
func (s *Server) stage() error {
	v, err := s.store.View()
	if err != nil {
		return fmt.Errorf("open view: %w", err)
	}
	s.view = v
	s.working = ledger.NewOverlay(v)
	s.pending = fn.None[types.Header]()
	return nil
}

// discard drops the working overlay and releases its view.
func (s *Server) discard() {
	if s.view != nil {
		s.view.Release()
	}
	s.view = nil
	s.working = nil
	s.pending = fn.None[types.Header]()
}

// abort abandons the block in flight and returns the guard to Ready.
func (s *Server) abort(ctx context.Context, number uint64, err error) {
	s.discard()
	s.metrics.halted(err)
	if h, ok := stf.IsHalt(err); ok {
		log.Criticalf("Block %d halted (%s): %s", number, h.Kind, h.Reason)
	} else {
		log.ErrorS(ctx, "Block abandoned", err, "number", number)
	}
	s.guard.FailExecute()
}

// asHalt reports a storage error from a sequential call as a halt.
func (s *Server) asHalt(number uint64, err error) error {
	if _, ok := stf.IsHalt(err); ok {
		return err
	}
	return stf.WrapHalt(number, stf.FaultStorage, "storage failure", err)
}

// discoverCapabilities reports block authoring always, and offchain
// work when some module generates extrinsics.
func discoverCapabilities(rt *runtime.Runtime) types.Capabilities {
	caps := types.CapBlockAuthoring
	for _, m := range rt.Modules() {
		if _, ok := m.(stf.OffchainWorker); ok {
			caps |= types.CapOffchainWorker
			break
		}
	}
	return caps
}
