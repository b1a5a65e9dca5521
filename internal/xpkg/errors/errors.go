package errors

import "errors"

var (
	ErrParseCmd       = errors.New("cannot parse arguments")
	ErrHelp           = errors.New("")
	ErrModeFlag       = errors.New("mode flag is required")
	ErrUnknownService = errors.New("unknown service, write --help command to see valid services")

	ErrDBConn  = errors.New("db connection failure")
	ErrRMQConn = errors.New("rabbitmq connection failure")

	ErrFieldIsEmpty = errors.New("field is empty")
)

// Failure kinds surfaced by storefront operations. Callers match them with errors.Is.
var (
	ErrValidation             = errors.New("validation failed")
	ErrNetwork                = errors.New("network failure")
	ErrAuthRequired           = errors.New("login required")
	ErrCancellationNotAllowed = errors.New("cancellation not allowed")
	ErrNotFound               = errors.New("not found")
)

// UserMessage turns an error into the short notice shown to the shopper.
// Raw error text never reaches the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthRequired):
		return "Please log in to continue."
	case errors.Is(err, ErrCancellationNotAllowed):
		return "This order can no longer be cancelled."
	case errors.Is(err, ErrNotFound):
		return "We couldn't find that. Try again."
	case errors.Is(err, ErrValidation):
		return "Please check your selection and try again."
	case errors.Is(err, ErrNetwork):
		return "Connection problem. Try again."
	default:
		return "Something went wrong. Try again."
	}
}
