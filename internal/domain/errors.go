package domain

import (
	"errors"
	"fmt"

	"github.com/adiselav/CabanApp/internal/models"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidDateRange    = errors.New("check-in must be before check-out")
	ErrInvalidStayInterval = errors.New("stay must last at least one night")
	ErrRoomNotFound        = errors.New("room not found")
	ErrCrossCabinBooking   = errors.New("all rooms must belong to the same cabin")
	ErrBookingConflict     = errors.New("rooms already reserved for the requested interval")
	ErrCapacityExceeded    = errors.New("selected rooms cannot host the requested guests")
	ErrDuplicateReview     = errors.New("user already reviewed this cabin")
	ErrRoomNumberTaken     = errors.New("room number already used in this cabin")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrRateLimited         = errors.New("too many requests")
)

// ConflictError lists the reservations that block a requested stay.
type ConflictError struct {
	Conflicts []models.ConflictSummary
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %d conflicting reservation(s)", ErrBookingConflict.Error(), len(e.Conflicts))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrBookingConflict
}

// ValidationError wraps ErrInvalidInput with a caller-facing message.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func Invalid(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
