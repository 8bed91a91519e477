package services

import (
	"errors"

	"shopfront/internal/docstore"
	"shopfront/internal/identity"
)

var (
	ErrNotAuthenticated = errors.New("not signed in")
	ErrEmptyCart        = errors.New("your cart is empty")
	ErrProductNotFound  = errors.New("product not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrForbidden        = errors.New("access denied")
)

// StorageError is any failure of the document store, including giving up
// after repeated transaction conflicts.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError carries a message meant for the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

type Kind int

const (
	KindNone Kind = iota
	KindNotAuthenticated
	KindEmptyCart
	KindValidation
	KindNotFound
	KindForbidden
	KindCredentials
	KindStorage
)

// KindOf classifies err for the HTTP layer.
func KindOf(err error) Kind {
	var ve *ValidationError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotAuthenticated):
		return KindNotAuthenticated
	case errors.Is(err, ErrEmptyCart):
		return KindEmptyCart
	case errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrOrderNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, identity.ErrInvalidCredentials), errors.Is(err, identity.ErrEmailInUse):
		return KindCredentials
	}
	return KindStorage
}

// wrap leaves the errors a caller can act on alone and turns everything else
// into a StorageError.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if k := KindOf(err); k != KindStorage {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func notFound(err error) bool { return errors.Is(err, docstore.ErrNotFound) }
