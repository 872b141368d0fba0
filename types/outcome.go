package types

import "fmt"

// ApplyOutcome is the result of a committed dispatch: the extrinsic
// was admitted and executed, and its operation either succeeded or
// reported a business-logic failure. State changes made before a
// failure are not rolled back.
type ApplyOutcome struct {
	Success bool `cramberry:"1"`
	// Failure reason reported by the dispatched operation.
	Reason string `cramberry:"2"`
}

// OutcomeSuccess is the outcome of a successful dispatch.
var OutcomeSuccess = ApplyOutcome{Success: true}

// OutcomeFail builds a failed outcome.
func OutcomeFail(reason string) ApplyOutcome {
	return ApplyOutcome{Reason: reason}
}

// OK returns true if the dispatch succeeded.
func (o ApplyOutcome) OK() bool { return o.Success }

func (o ApplyOutcome) String() string {
	if o.Success {
		return "Success"
	}
	return fmt.Sprintf("Fail(%s)", o.Reason)
}

// ApplyError is an admission failure. No dispatch occurs and no
// state mutation happens for the rejected extrinsic.
//
// The numeric values are part of the validity-code contract with
// the transaction pool.
type ApplyError int8

const (
	ApplyBadSignature ApplyError = 0
	ApplyStale        ApplyError = 1
	ApplyFuture       ApplyError = 2
	ApplyCantPay      ApplyError = 3
	ApplyFullBlock    ApplyError = 4
	ApplyNotAllow     ApplyError = 5
)

func (e ApplyError) String() string {
	switch e {
	case ApplyBadSignature:
		return "BadSignature"
	case ApplyStale:
		return "Stale"
	case ApplyFuture:
		return "Future"
	case ApplyCantPay:
		return "CantPay"
	case ApplyFullBlock:
		return "FullBlock"
	case ApplyNotAllow:
		return "NotAllow"
	default:
		return fmt.Sprintf("unknown(%d)", int8(e))
	}
}

// Error implements error.
func (e ApplyError) Error() string {
	return "apply extrinsic: " + e.String()
}
