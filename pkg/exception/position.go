package exception

import "errors"

var (
	ErrInvalidPosition   = errors.New("position: contract type mismatches position")
	ErrContractNotLoaded = errors.New("position: contract metadata not loaded yet")
	ErrPositionNotFound  = errors.New("position: not found")
	ErrInvalidLeverage   = errors.New("position: invalid leverage")
)
