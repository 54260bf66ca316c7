package core

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies the few failures that surface as real errors.
// Provider-level failures (upstream, transport, parse, missing credential)
// are converted to data and never reach this type.
type ErrorKind string

const (
	// ErrorKindConfiguration indicates an unresolvable provider name even
	// after defaulting. Fatal for the call, no retry.
	ErrorKindConfiguration ErrorKind = "configuration_error"

	// ErrorKindCollaborationInput indicates mismatched provider/model lists
	// after resolution. Fatal for the call, no partial execution.
	ErrorKindCollaborationInput ErrorKind = "collaboration_input_error"

	// ErrorKindInvalidRequest indicates a malformed caller request
	ErrorKindInvalidRequest ErrorKind = "invalid_request_error"
)

// GatewayError is the error type for gateway-level failures
type GatewayError struct {
	Kind    ErrorKind `json:"type"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode maps the error kind to an HTTP status for the transport layer
func (e *GatewayError) HTTPStatusCode() int {
	switch e.Kind {
	case ErrorKindConfiguration:
		return http.StatusInternalServerError
	case ErrorKindCollaborationInput, ErrorKindInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to the wire shape used by the HTTP surface
func (e *GatewayError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    e.Kind,
			"message": e.Message,
		},
	}
}

// NewConfigurationError creates an error for an unresolvable provider name
func NewConfigurationError(message string) *GatewayError {
	return &GatewayError{Kind: ErrorKindConfiguration, Message: message}
}

// NewCollaborationInputError creates an error for invalid collaboration input
func NewCollaborationInputError(message string) *GatewayError {
	return &GatewayError{Kind: ErrorKindCollaborationInput, Message: message}
}

// NewInvalidRequestError creates an error for a malformed caller request
func NewInvalidRequestError(message string, err error) *GatewayError {
	return &GatewayError{Kind: ErrorKindInvalidRequest, Message: message, Err: err}
}
