package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrUnauthenticated     = fmt.Errorf("unauthenticated")
	ErrCredentialExpired   = fmt.Errorf("credential expired")
	ErrInvalidSignature    = fmt.Errorf("credential signature is invalid")
	ErrMalformedCredential = fmt.Errorf("credential is malformed")
	ErrTokenGeneration     = fmt.Errorf("credential generation failed")

	ErrIdentityNotFound   = fmt.Errorf("identity not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not match the complexity rules")
	ErrInvalidRequest     = fmt.Errorf("invalid request")
	ErrInvalidImage       = fmt.Errorf("image must be an image data URL or an http(s) URL")
	ErrEmptyMessage       = fmt.Errorf("message needs a text or an image")

	ErrConnectionRejected = fmt.Errorf("connection rejected")
	ErrIdentityMismatch   = fmt.Errorf("handshake identity does not match credential")
	ErrRegistryFull       = fmt.Errorf("connection registry is at capacity")
	ErrAlreadyRegistered  = fmt.Errorf("connection already registered")
	ErrSessionClosed      = fmt.Errorf("session is closed")
	ErrInvalidTransition  = fmt.Errorf("invalid connection state transition")
	ErrDeliveryFailed     = fmt.Errorf("delivery failed")
)

// Reason tells the client why authentication failed, so it can choose between
// "please log in", "session expired" and "try again".
type Reason string

const (
	ReasonMissing          Reason = "missing"
	ReasonExpired          Reason = "expired"
	ReasonInvalid          Reason = "invalid"
	ReasonIdentityNotFound Reason = "identity-not-found"
)

// UnauthenticatedError is returned by the session gate.
// It matches ErrUnauthenticated and the underlying cause with errors.Is.
type UnauthenticatedError struct {
	Reason Reason
	Cause  error
}

func Unauthenticated(reason Reason, cause error) error {
	return &UnauthenticatedError{Reason: reason, Cause: cause}
}

func (e *UnauthenticatedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("unauthenticated: %s", e.Reason)
	}
	return fmt.Sprintf("unauthenticated: %s: %v", e.Reason, e.Cause)
}

func (e *UnauthenticatedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrUnauthenticated}
	}
	return []error{ErrUnauthenticated, e.Cause}
}

// ReasonOf extracts the authentication failure reason, if any.
func ReasonOf(err error) (Reason, bool) {
	var target *UnauthenticatedError
	if stderrors.As(err, &target) {
		return target.Reason, true
	}
	return "", false
}

// HTTPError is the JSON body written for a failed request.
type HTTPError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Code    string `json:"error,omitempty"`
}

// MapToHTTPError translates domain errors into the status and body returned to clients.
func MapToHTTPError(err error) HTTPError {
	if reason, ok := ReasonOf(err); ok {
		switch reason {
		case ReasonMissing:
			return HTTPError{http.StatusUnauthorized, "Unauthorized - No Token Provided", "NO_TOKEN"}
		case ReasonExpired:
			return HTTPError{http.StatusUnauthorized, "Unauthorized - Token Expired", "TOKEN_EXPIRED"}
		case ReasonIdentityNotFound:
			return HTTPError{http.StatusUnauthorized, "User Not Found", "USER_NOT_FOUND"}
		default:
			return HTTPError{http.StatusUnauthorized, "Unauthorized - Invalid Token", "INVALID_TOKEN"}
		}
	}

	switch {
	case stderrors.Is(err, ErrInvalidCredentials):
		return HTTPError{Status: http.StatusBadRequest, Message: "Invalid credentials"}
	case stderrors.Is(err, ErrUserAlreadyExists):
		return HTTPError{Status: http.StatusConflict, Message: "Email already exists"}
	case stderrors.Is(err, ErrInvalidPassword), stderrors.Is(err, ErrInvalidRequest),
		stderrors.Is(err, ErrInvalidImage), stderrors.Is(err, ErrEmptyMessage):
		return HTTPError{Status: http.StatusBadRequest, Message: err.Error()}
	case stderrors.Is(err, ErrIdentityNotFound):
		return HTTPError{Status: http.StatusNotFound, Message: "User not found"}
	case stderrors.Is(err, ErrConnectionRejected):
		return HTTPError{Status: http.StatusForbidden, Message: "Connection rejected", Code: "CONNECTION_REJECTED"}
	default:
		return HTTPError{Status: http.StatusInternalServerError, Message: "Internal server error"}
	}
}
