package payments

import "errors"

// Error is a tagged processor failure. The three flags are set by the
// gateway that observed the failure and are each independently inspectable;
// a timeout on an unreachable terminal can carry both Timeout and Terminal.
type Error struct {
	Code     string
	Message  string
	Declined bool
	Terminal bool
	Timeout  bool
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// DeclinedError builds a host-decline error from the gateway response code.
func DeclinedError(code, message string) *Error {
	if message == "" {
		message = "payment declined"
	}
	return &Error{Code: code, Message: message, Declined: true}
}

// TerminalError wraps a transport or device fault reaching the terminal.
func TerminalError(err error) *Error {
	return &Error{Message: "terminal communication failure", Terminal: true, Err: err}
}

// TimeoutError wraps an elapsed deadline. The charge outcome is unknown.
func TimeoutError(err error) *Error {
	return &Error{Message: "terminal request timed out", Timeout: true, Err: err}
}

// AsError unwraps err to a *payments.Error, if one is in the chain.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
