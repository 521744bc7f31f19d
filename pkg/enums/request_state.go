package enums

// RequestState tracks a remote-backed mutation from issue to settlement.
type RequestState string

const (
	RequestStateIdle      RequestState = "idle"
	RequestStatePending   RequestState = "pending"
	RequestStateFulfilled RequestState = "fulfilled"
	RequestStateFailed    RequestState = "failed"
)

// String implements fmt.Stringer.
func (s RequestState) String() string {
	return string(s)
}

// Settled reports whether the request finished either way.
func (s RequestState) Settled() bool {
	return s == RequestStateFulfilled || s == RequestStateFailed
}
