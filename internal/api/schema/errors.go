package schema

import "net/http"

var (
	ErrInternal = &Error{
		Type:    "generic.internal",
		Message: "An internal error occurred.",
	}
	ErrNotFound = &Error{
		Type:    "generic.notFound",
		Message: "Resource not found.",
	}
	ErrMethodNotAllowed = &Error{
		Type:    "generic.methodNotAllowed",
		Message: "Method not allowed.",
	}
	ErrUnauthorized = &Error{
		Type:    "access.unauthorized",
		Message: "Unauthorized",
	}
)

var (
	ErrIdentifierMissing = &Error{
		Type:    "search.identifier.missing",
		Message: "Aadhaar number is required",
	}
	ErrIdentifierInvalid = &Error{
		Type:    "search.identifier.invalid",
		Message: "Invalid Aadhaar. Must be 12 digits.",
	}
	ErrSearchTypeInvalid = &Error{
		Type:    "search.type.invalid",
		Message: "Invalid search type. Must be a single letter.",
	}
	ErrNoDataFound = &Error{
		Type:    "search.noDataFound",
		Message: "No data found",
	}
	ErrSessionExpired = &Error{
		Type:    "search.sessionExpired",
		Message: "Session expired. Please try again.",
	}
	ErrSessionUnavailable = &Error{
		Type:    "search.sessionUnavailable",
		Message: "Could not establish a portal session. Please try again.",
	}
	ErrUnexpectedPortalResponse = &Error{
		Type:    "search.unexpectedResponse",
		Message: "The portal returned an unexpected response.",
	}
	ErrPortalUnavailable = &Error{
		Type:    "search.portalUnavailable",
		Message: "The portal is currently unavailable. Please try again later.",
	}
	ErrTextMissing = &Error{
		Type:    "codec.text.missing",
		Message: "Text is required",
	}
	ErrCiphertextInvalid = &Error{
		Type:    "codec.ciphertext.invalid",
		Message: "Invalid encrypted text",
	}
)

// ErrorResponse represents the response structure sent whenever errors occurred.
// Error and Type describe the first error; Errors lists all of them if there is more than one.
type ErrorResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Type    string         `json:"type"`
	Details map[string]any `json:"details,omitempty"`
	Errors  []*Error       `json:"errors,omitempty"`
}

// Error represents a single error present in the ErrorResponse
type Error struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// WithDetails returns a copy of the error carrying the given details
func (err *Error) WithDetails(details map[string]any) *Error {
	return &Error{
		Type:    err.Type,
		Message: err.Message,
		Details: details,
	}
}

// StatusText is a fallback error for status codes without a dedicated error
func StatusText(code int) *Error {
	return &Error{
		Type:    "generic.status",
		Message: http.StatusText(code),
	}
}
