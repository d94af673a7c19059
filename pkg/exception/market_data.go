package exception

import "errors"

var (
	ErrInvalidSymbol      = errors.New("market data: invalid symbol")
	ErrUnknownSymbol      = errors.New("market data: unknown symbol")
	ErrUnknownPriceSource = errors.New("market data: unknown mark price source")
	ErrNilSubscriber      = errors.New("market data: nil subscriber")
	ErrUnknownChannel     = errors.New("market data: unknown channel")
)
