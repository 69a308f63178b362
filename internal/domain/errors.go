package domain

import "errors"

// Domain errors
var (
	// Caller errors (invalid argument)
	ErrEmptyDisplayName  = errors.New("display name must not be empty")
	ErrMissingID         = errors.New("missing identifier")
	ErrSelfRequest       = errors.New("cannot send a friend request to yourself")
	ErrEmptyFieldName    = errors.New("field name must not be empty")
	ErrInvalidFieldValue = errors.New("field value must be a number, string, or boolean")
	ErrInvalidRequest    = errors.New("invalid request")

	// Missing referents
	ErrIdentityNotFound = errors.New("identity not found")
	ErrRecordNotFound   = errors.New("progress record not found")
	ErrFieldNotFound    = errors.New("progress field not found")

	// Infrastructure
	ErrStoreUnavailable = errors.New("document store unavailable")
	ErrInternalError    = errors.New("internal server error")
)

// IsInvalidArgument reports whether an error is a caller error that should
// never be retried.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrEmptyDisplayName) ||
		errors.Is(err, ErrMissingID) ||
		errors.Is(err, ErrSelfRequest) ||
		errors.Is(err, ErrEmptyFieldName) ||
		errors.Is(err, ErrInvalidFieldValue) ||
		errors.Is(err, ErrInvalidRequest)
}

// IsNotFound reports whether an error is a not-found type error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrIdentityNotFound) ||
		errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrFieldNotFound)
}
