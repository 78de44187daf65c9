package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity does not resolve under the caller's ownership.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAmount is returned for non-positive amounts where a positive one is required.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAlreadyPaid is returned when a payment claims a statement that is no longer closed.
	ErrAlreadyPaid = errors.New("statement already paid")

	// ErrSameAccount is returned when a card is paid from its own linked account.
	ErrSameAccount = errors.New("cannot pay a statement from the card's own account")

	ErrInvalidClosingDay = errors.New("closing day must be between 1 and 28")
	ErrInvalidDueDay     = errors.New("due day must be between 1 and 28")
	ErrEmptyOwner        = errors.New("empty owner")
)

// PersistenceError wraps a backend failure with the entity it concerned.
type PersistenceError struct {
	Entity string
	ID     int64
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s %s %d: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence builds a PersistenceError, passing nil and ErrNotFound through unchanged.
func Persistence(op, entity string, id int64, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyPaid) {
		return err
	}
	return &PersistenceError{Entity: entity, ID: id, Op: op, Err: err}
}

// IsPersistence reports whether err carries a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
