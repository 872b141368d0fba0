package types

// HandshakeRequest is sent by the node on every startup.
type HandshakeRequest struct {
	// The last block the NODE committed. Nil = genesis (fresh chain).
	LastCommitted *BlockID `cramberry:"1"`
	// Genesis document. Only set when LastCommitted is nil.
	Genesis *GenesisConfig `cramberry:"2"`
}

// HandshakeResponse is the runtime's reply, reporting its last
// committed header and capabilities.
type HandshakeResponse struct {
	// The last header the RUNTIME committed (the genesis header on
	// a fresh chain).
	LastHeader *Header `cramberry:"1"`
	// Capabilities this runtime supports.
	Capabilities Capabilities `cramberry:"2"`
}
