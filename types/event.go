package types

// EventAttribute is a single key-value tag within an event.
type EventAttribute struct {
	Key   string `cramberry:"1"`
	Value string `cramberry:"2"`
}

// Event is a state-change log entry deposited during execution.
type Event struct {
	// Index of the extrinsic that emitted the event, or -1 for
	// events emitted by block hooks.
	Phase      int32            `cramberry:"1"`
	Kind       string           `cramberry:"2"`
	Attributes []EventAttribute `cramberry:"3"`
}

// Attr returns the value of the named attribute.
func (e Event) Attr(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
