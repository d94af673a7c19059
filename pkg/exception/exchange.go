package exception

import "errors"

// Exchange adapter errors
var (
	ErrAuthentication                  = errors.New("exchange: authentication error")
	ErrFailedRequest                   = errors.New("exchange: failed request")
	ErrRateLimit                       = errors.New("exchange: rate limit exceeded")
	ErrNetwork                         = errors.New("exchange: network error")
	ErrMarketClosed                    = errors.New("exchange: market closed")
	ErrMarketRulesViolation            = errors.New("exchange: market rules violation")
	ErrExchangeClosedPosition          = errors.New("exchange: position closed")
	ErrExchangeOrderInstantTrigger     = errors.New("exchange: order would trigger immediately")
	ErrExchangeAccountSymbolPermission = errors.New("exchange: account lacks permission for symbol")
	ErrNoAdapter                       = errors.New("exchange: no adapter configured")
)

// IsRetriable reports whether err belongs to the transient network family that
// order creation retries once.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrFailedRequest)
}
