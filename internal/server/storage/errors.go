package storage

import (
	"fmt"
	"net/http"
)

// Kind classifies provider failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidRequest
	KindAuthFailure
	KindForbidden
	KindNotFound
	KindPayloadTooLarge
	KindProviderUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindAuthFailure:
		return "auth_failure"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindProviderUnavailable:
		return "provider_unavailable"
	default:
		return "unknown"
	}
}

// KindFromStatus maps a provider HTTP status to a Kind. Every code not
// listed, including 0 for transport failures, is KindUnknown.
func KindFromStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest:
		return KindInvalidRequest
	case status == http.StatusUnauthorized:
		return KindAuthFailure
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusRequestEntityTooLarge:
		return KindPayloadTooLarge
	case status >= 500 && status <= 599:
		return KindProviderUnavailable
	default:
		return KindUnknown
	}
}

var kindMessages = map[Kind]string{
	KindInvalidRequest:      "Invalid file or parameters",
	KindAuthFailure:         "Storage authentication failed",
	KindForbidden:           "Storage access forbidden",
	KindNotFound:            "Resource not found in cloud storage",
	KindPayloadTooLarge:     "File too large for cloud storage",
	KindProviderUnavailable: "Cloud storage service temporarily unavailable",
	KindUnknown:             "Cloud storage error occurred",
}

// StorageError is a classified provider failure. Message is safe to show to
// clients; Err keeps the provider detail for logs.
type StorageError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

// NewStorageError classifies err by the provider status code.
func NewStorageError(status int, err error) *StorageError {
	kind := KindFromStatus(status)
	return &StorageError{Kind: kind, StatusCode: status, Message: kindMessages[kind], Err: err}
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("storage %s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// HTTPStatus is the status to answer clients with. Unknown provider
// failures become 500.
func (e *StorageError) HTTPStatus() int {
	if e.Kind == KindUnknown {
		return http.StatusInternalServerError
	}
	return e.StatusCode
}
