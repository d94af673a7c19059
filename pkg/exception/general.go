package exception

import "errors"

// General errors
var (
	ErrNilInstance      = errors.New("nil instance")
	ErrTypeUnsupported  = errors.New("type unsupported")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNotSupported     = errors.New("operation not supported")
	ErrTimeout          = errors.New("timeout")
	ErrSnapshotMismatch = errors.New("snapshot mismatch")
)
