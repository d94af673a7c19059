package exception

import (
	"errors"
	"fmt"
)

var (
	ErrMissingFunds       = errors.New("order: missing funds")
	ErrOrderNotFound      = errors.New("order: not found")
	ErrOrderCreation      = errors.New("order: creation failed")
	ErrInvalidTransition  = errors.New("order: invalid state transition")
	ErrInvalidFill        = errors.New("order: invalid fill quantity")
	ErrOrderUnsupported   = errors.New("order: unsupported type")
	ErrOrderAlreadyGroup  = errors.New("order: already belongs to a group")
	ErrGroupNotFound      = errors.New("order: group not found")
	ErrOrderNotOpen       = errors.New("order: not open")
	ErrRiskRejected       = errors.New("order: rejected by risk engine")
	ErrReduceOnlyRejected = errors.New("order: reduce only order would increase position")
	ErrNoPrice            = errors.New("order: no price available")
)

// OrderCreationError is returned when an exchange (or the local checks standing
// in for it) rejects an order. Both ErrOrderCreation and Cause match errors.Is.
type OrderCreationError struct {
	Symbol string
	Cause  error
}

func (e *OrderCreationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s, symbol: %s", ErrOrderCreation.Error(), e.Symbol)
	}
	return fmt.Sprintf("%s, symbol: %s, err: %s", ErrOrderCreation.Error(), e.Symbol, e.Cause.Error())
}

func (e *OrderCreationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrOrderCreation}
	}
	return []error{ErrOrderCreation, e.Cause}
}
