package types

// Query paths served by the runtime.
const (
	QueryAccountNonce QueryPath = "/system/nonce"
	QueryFreeBalance  QueryPath = "/balances/free"
	QueryIndexLookup  QueryPath = "/indices/lookup"
	QueryBestHeader   QueryPath = "/system/header"
)

// StateQuery is a request to read committed runtime state.
type StateQuery struct {
	Path QueryPath `cramberry:"1"`
	Data []byte    `cramberry:"2"`
}

// StateQueryResult is the runtime's response to a state query.
// Code 0 means found.
type StateQueryResult struct {
	Code   uint32 `cramberry:"1"`
	Key    []byte `cramberry:"2"`
	Value  []byte `cramberry:"3"`
	Number uint64 `cramberry:"4"`
	Info   string `cramberry:"5"`
}
