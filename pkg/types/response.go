// Package types holds the wire shapes shared by every HTTP response.
package types

// SuccessEnvelope wraps every 2xx payload under a data key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
