package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAlreadyPurchased = errors.New("already purchased")
	ErrBanned           = errors.New("banned")
	ErrUpstream         = errors.New("upstream failure")
)

// AppError carries one of the sentinel kinds above plus a human-readable message.
type AppError struct {
	Err     error  // kind
	Message string // shown to the user
	Cause   error  // optional underlying error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func PermissionDenied() *AppError {
	return &AppError{Err: ErrPermissionDenied, Message: "you are not allowed to use this command"}
}

func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, id),
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{Err: ErrInvalidInput, Message: message}
}

func AlreadyPurchased(contentID int64) *AppError {
	return &AppError{
		Err:     ErrAlreadyPurchased,
		Message: fmt.Sprintf("content %d already purchased", contentID),
	}
}

func Banned() *AppError {
	return &AppError{Err: ErrBanned, Message: "user is banned"}
}

// Upstream wraps a failure of an external collaborator (Telegram, payment provider).
func Upstream(message string, cause error) *AppError {
	return &AppError{Err: ErrUpstream, Message: message, Cause: cause}
}

// Kind returns the sentinel kind of err, or nil for uncategorized errors.
func Kind(err error) error {
	for _, kind := range []error{
		ErrPermissionDenied, ErrNotFound, ErrInvalidInput,
		ErrAlreadyPurchased, ErrBanned, ErrUpstream,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Message returns the user facing message of an AppError in the chain, or
// the error text itself.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
