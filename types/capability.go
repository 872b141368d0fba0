package types

import "strings"

// Capabilities is a bitfield declaring which optional runtime
// entry points are available.
type Capabilities uint8

const (
	CapBlockAuthoring  Capabilities = 1 << iota // 0b0001
	CapOffchainWorker                           // 0b0010
)

// Has returns true if all bits in cap are set.
func (c Capabilities) Has(cap Capabilities) bool {
	return c&cap == cap
}

// String returns a human-readable representation.
func (c Capabilities) String() string {
	var caps []string
	if c.Has(CapBlockAuthoring) {
		caps = append(caps, "BlockAuthoring")
	}
	if c.Has(CapOffchainWorker) {
		caps = append(caps, "OffchainWorker")
	}
	if len(caps) == 0 {
		return "none"
	}
	return strings.Join(caps, "|")
}
