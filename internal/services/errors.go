package services

import "errors"

// ErrorKind classifies a failed operation.
type ErrorKind int

const (
	// ServerError is an unexpected store or infrastructure failure.
	ServerError ErrorKind = iota
	// InvalidInput covers malformed or constraint-violating request data.
	InvalidInput
	// NotFound means no sweet exists for the given id.
	NotFound
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	default:
		return "server_error"
	}
}

// Error is the only error type the service returns. Message is safe to show
// to clients; Err keeps the underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err. Errors not produced by the service count
// as ServerError.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ServerError
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return "Internal server error."
}

func invalidInput(msg string) *Error {
	return &Error{Kind: InvalidInput, Message: msg}
}

// InvalidQuantity reports a purchase or restock amount that is not a
// positive integer. action is "Purchase" or "Restock".
func InvalidQuantity(action string) *Error {
	return invalidInput(action + " quantity must be a positive integer.")
}

// NonNumeric reports a price or quantity that could not be read as a number.
func NonNumeric() *Error {
	return invalidInput(msgNonNumeric)
}
