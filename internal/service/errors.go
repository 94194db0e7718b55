package service

import (
	"errors"

	"github.com/iliyamo/event-ticketing/internal/payu"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// Validation errors.
var (
	ErrInvalidAmount        = errors.New("amount must be a positive integer")
	ErrInvalidDates         = errors.New("end must be after start and neither may be in the past")
	ErrDuplicateTicketType  = errors.New("ticket type listed more than once")
	ErrUnknownTicketType    = errors.New("unknown ticket type")
	ErrCapacityExceedsEvent = errors.New("sum of ticket type capacities exceeds event max capacity")
	ErrLocationRequired     = errors.New("location is required")
	ErrDuplicateEvent       = errors.New("an event with the same name, place and schedule already exists")
	ErrInvalidCategory      = errors.New("invalid category")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrWeakPassword         = errors.New("password must have at least 8 characters including upper, lower, digit and special characters")
	ErrMissingCode          = errors.New("unique_code is required")
	ErrInvalidRole          = errors.New("unknown role")
)

// Business-rule violations.
var (
	ErrEventNotActive         = errors.New("event is not active")
	ErrUnderage               = errors.New("buyer does not meet the minimum age")
	ErrInsufficientCapacity   = errors.New("not enough capacity left")
	ErrTicketUsed             = errors.New("ticket already used")
	ErrTicketCancelled        = errors.New("ticket is cancelled")
	ErrTicketPending          = errors.New("ticket payment is pending")
	ErrTicketAlreadyPaid      = errors.New("ticket already paid")
	ErrTicketNotPayable       = errors.New("ticket cannot be paid in its current status")
	ErrPaymentAlreadyApproved = errors.New("payment already approved")
	ErrInvalidTransition      = errors.New("ticket status transition not allowed")
	ErrEventAlreadyCancelled  = errors.New("event already cancelled")
	ErrOfferingMismatch       = errors.New("ticket type does not belong to this event")
	ErrCapacityBelowSold      = errors.New("capacity cannot be lower than tickets already sold")
)

// Integration errors.
var (
	ErrInvalidSignature         = payu.ErrInvalidSignature
	ErrMissingNotificationField = payu.ErrMissingField
	ErrGatewayNotConfigured     = errors.New("payment gateway not configured")
)

// Lookup errors.  They all wrap repository.ErrNotFound so callers may test
// for either the specific or the generic value.
var (
	ErrNotFound         = repository.ErrNotFound
	ErrEventNotFound    = notFoundError("event not found")
	ErrTicketNotFound   = notFoundError("ticket not found")
	ErrOfferingNotFound = notFoundError("ticket type configuration not found")
	ErrUserNotFound     = notFoundError("user not found")
)

type lookupError struct{ msg string }

func (e *lookupError) Error() string { return e.msg }
func (e *lookupError) Unwrap() error { return repository.ErrNotFound }

func notFoundError(msg string) error { return &lookupError{msg: msg} }

// orNotFound replaces a repository.ErrNotFound with the specific lookup error.
func orNotFound(err, specific error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return specific
	}
	return err
}

var expected = []error{
	ErrInvalidAmount, ErrInvalidDates, ErrDuplicateTicketType, ErrUnknownTicketType,
	ErrCapacityExceedsEvent, ErrLocationRequired, ErrDuplicateEvent, ErrInvalidCategory,
	ErrInvalidStatus, ErrWeakPassword, ErrMissingCode, ErrInvalidRole,
	ErrEventNotActive, ErrUnderage, ErrInsufficientCapacity, ErrTicketUsed, ErrTicketCancelled,
	ErrTicketPending, ErrTicketAlreadyPaid, ErrTicketNotPayable, ErrPaymentAlreadyApproved,
	ErrInvalidTransition, ErrEventAlreadyCancelled, ErrOfferingMismatch, ErrCapacityBelowSold,
	ErrInvalidSignature, ErrMissingNotificationField, ErrGatewayNotConfigured,
	repository.ErrNotFound, repository.ErrForbidden, repository.ErrConflict, repository.ErrEmailExists,
}

// isBusinessError reports whether err is one of the known rejections as
// opposed to an infrastructure failure.
func isBusinessError(err error) bool {
	for _, e := range expected {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
