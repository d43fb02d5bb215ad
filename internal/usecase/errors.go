package usecase

import (
	"errors"
	"fmt"
)

type ErrNotFound string

func (e ErrNotFound) Error() string { return string(e) + " not found" }

type ErrValidation string

func (e ErrValidation) Error() string { return string(e) }

type ErrConflict string

func (e ErrConflict) Error() string { return string(e) }

type ErrForbidden string

func (e ErrForbidden) Error() string { return string(e) }

// ErrSignatureInvalid is a security failure. Handlers return a
// generic rejection for it; the offending payload is logged without
// the secret.
type ErrSignatureInvalid string

func (e ErrSignatureInvalid) Error() string { return string(e) }

type ErrGatewayUnavailable string

func (e ErrGatewayUnavailable) Error() string { return string(e) }

// ErrInsufficientStock is a business-rule failure, not a system
// error. The operation it rejects is never partially applied.
type ErrInsufficientStock struct {
	Name      string
	Needed    float64
	Available float64
	Unit      string
}

func (e ErrInsufficientStock) Error() string {
	return fmt.Sprintf("insufficient stock of %s (need %g %s, have %g)", e.Name, e.Needed, e.Unit, e.Available)
}

func IsNotFound(err error) bool {
	var e ErrNotFound
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e ErrValidation
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e ErrConflict
	return errors.As(err, &e)
}

func IsForbidden(err error) bool {
	var e ErrForbidden
	return errors.As(err, &e)
}

func IsSignatureInvalid(err error) bool {
	var e ErrSignatureInvalid
	return errors.As(err, &e)
}

func IsInsufficientStock(err error) bool {
	var e ErrInsufficientStock
	return errors.As(err, &e)
}

func IsGatewayUnavailable(err error) bool {
	var e ErrGatewayUnavailable
	return errors.As(err, &e)
}
