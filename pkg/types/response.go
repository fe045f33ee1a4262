// Package types holds the JSON envelopes shared by the HTTP layer and its
// clients.
package types

// Success wraps every 2xx body as {"data": ...}.
type Success struct {
	Data any `json:"data"`
}

// Failure wraps every error body as {"error": {...}}.
type Failure struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries a stable machine code, a message safe to show users and,
// for client errors only, structured details such as per-field validation
// messages.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
