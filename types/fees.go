package types

// Switch is the fee-eligibility switch set by governance. While
// Global is set no signed call is chargeable; Paused lists modules
// whose calls are temporarily not chargeable.
type Switch struct {
	Global bool     `cramberry:"1" json:"global"`
	Paused []string `cramberry:"2" json:"paused,omitempty"`
}

// IsPaused reports whether calls into module are disabled.
func (s Switch) IsPaused(module string) bool {
	if s.Global {
		return true
	}
	for _, m := range s.Paused {
		if m == module {
			return true
		}
	}
	return false
}

// MethodWeight assigns a charge weight to a call identifier
// ("module.method").
type MethodWeight struct {
	Method string `cramberry:"1" json:"method"`
	Weight uint64 `cramberry:"2" json:"weight"`
}

// FeeParams contains the fee configuration applied at genesis.
type FeeParams struct {
	// Fee charged per unit of call weight.
	BaseFee uint64 `cramberry:"1" json:"base_fee"`
	// Fee charged per encoded byte.
	ByteFee uint64         `cramberry:"2" json:"byte_fee"`
	Switch  Switch         `cramberry:"3" json:"switch"`
	Weights []MethodWeight `cramberry:"4" json:"weights"`
}
