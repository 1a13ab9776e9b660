package portfolio

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/brandworks/portfolio-engine/pkg/authz"
)

// Error taxonomy returned by Service operations. Callers classify with
// errors.Is.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyReviewed = errors.New("already reviewed")
	ErrInvalidRating   = errors.New("rating must be an integer between 1 and 5")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrStorageFailure  = errors.New("storage failure")

	// ErrDuplicateReview is the storage-layer uniqueness signal. The service
	// reports it as ErrAlreadyReviewed.
	ErrDuplicateReview = errors.New("duplicate review")
)

// Machine-readable error codes.
const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyReviewed = "ALREADY_REVIEWED"
	CodeInvalidRating   = "INVALID_RATING"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeStorageFailure  = "STORAGE_FAILURE"
)

// AuthorizationError carries the gate decision behind an ErrUnauthorized.
type AuthorizationError struct {
	Operation authz.Operation
	Decision  authz.Decision
}

func (e *AuthorizationError) Error() string {
	if e.Decision.Reason != authz.ReasonNone {
		return fmt.Sprintf("%s: %s denied (%s)", ErrUnauthorized, e.Operation, e.Decision.Reason)
	}
	return fmt.Sprintf("%s: %s denied", ErrUnauthorized, e.Operation)
}

func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

func unauthorized(op authz.Operation, d authz.Decision) error {
	return &AuthorizationError{Operation: op, Decision: d}
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// storageFailure wraps a driver or asset store error so that it matches
// both ErrStorageFailure and the cause.
func storageFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

// Code maps err to its taxonomy code. Unclassified errors are storage
// failures.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyReviewed), errors.Is(err, ErrDuplicateReview):
		return CodeAlreadyReviewed
	case errors.Is(err, ErrInvalidRating):
		return CodeInvalidRating
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	default:
		return CodeStorageFailure
	}
}

// HTTPStatus maps err to a response status. Unauthenticated callers get 401,
// authenticated callers lacking permission get 403.
func HTTPStatus(err error) int {
	var authErr *AuthorizationError
	switch {
	case errors.As(err, &authErr):
		return authz.StatusForDecision(authErr.Decision)
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyReviewed), errors.Is(err, ErrDuplicateReview):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidRating), errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// denyReason returns the gate reason behind err, if any.
func denyReason(err error) string {
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return string(authErr.Decision.Reason)
	}
	return ""
}
