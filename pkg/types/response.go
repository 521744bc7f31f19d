package types

// SuccessEnvelope is the {"data": ...} body every successful API response
// carries. The server writes SuccessEnvelope[any]; clients decode into the
// concrete type they expect.
type SuccessEnvelope[T any] struct {
	Data T `json:"data"`
}

// APIError is the public shape of a failed request. Code is one of the wire
// codes in pkg/errors.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
