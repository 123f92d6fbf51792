package domain

import (
	"github.com/allisson/maildispatch/internal/errors"
)

// Email dispatch error definitions.
var (
	// ErrEmailNotFound indicates the email record does not exist.
	ErrEmailNotFound = errors.Wrap(errors.ErrNotFound, "email not found")

	// ErrStoreUnavailable indicates the notification store could not be read or written.
	ErrStoreUnavailable = errors.Wrap(errors.ErrUnavailable, "notification store unavailable")

	// ErrClaimLost indicates the record was no longer in the state the caller expected.
	ErrClaimLost = errors.Wrap(errors.ErrConflict, "email claim lost")

	// ErrInvalidStatus indicates an unknown status filter.
	ErrInvalidStatus = errors.Wrap(errors.ErrInvalidInput, "invalid email status")
)
