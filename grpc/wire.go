package stfgrpc

import "github.com/blockberries/stf/types"

// Transport-specific wrapper types for RPC methods whose interface
// signatures don't map to a single request/response struct.
// These are used only for gRPC serialization boundaries.

// Empty is the request of RPCs without parameters.
type Empty struct{}

// ExtrinsicRequest carries one encoded extrinsic.
type ExtrinsicRequest struct {
	Extrinsic types.Extrinsic `cramberry:"1"`
}

// ApplyResponse wraps the result of ApplyExtrinsic. Rejected is set
// when the extrinsic was not admitted, with Error naming why.
type ApplyResponse struct {
	Outcome  types.ApplyOutcome `cramberry:"1"`
	Rejected bool               `cramberry:"2"`
	Error    types.ApplyError   `cramberry:"3"`
}

// OffchainRequest wraps the parameter for OffchainWorker.
type OffchainRequest struct {
	Number uint64 `cramberry:"1"`
}
