package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates API key verification failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInsufficientQuantity indicates a stock movement would drive an
	// inventory record below zero.
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	// ErrSessionClosed indicates an operation against a closed POS session.
	ErrSessionClosed = errors.New("session already closed")
	// ErrProcessorNotFound indicates no payment processor is bound.
	ErrProcessorNotFound = errors.New("no payment processor configured")
	// ErrProcessorInactive indicates the bound processor is disabled.
	ErrProcessorInactive = errors.New("payment processor is inactive")
)

// UserSafeMessage maps internal errors to strings safe to show an operator.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "Record not found"
	case errors.Is(err, ErrInsufficientQuantity):
		return "Insufficient quantity"
	case errors.Is(err, ErrSessionClosed):
		return "Session already closed"
	case errors.Is(err, ErrProcessorNotFound):
		return "No payment processor configured"
	case errors.Is(err, ErrProcessorInactive):
		return "Payment processor is inactive"
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid credentials"
	case errors.Is(err, ErrIdempotencyConflict):
		return "Request already processed"
	default:
		return "Something went wrong, please try again"
	}
}
