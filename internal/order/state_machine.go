package order

import (
	"github.com/yanun0323/errors"

	"github.com/yanun0323/trading-core/internal/model/enum"
	"github.com/yanun0323/trading-core/pkg/exception"
)

type transitionKey struct {
	from  enum.OrderState
	event enum.OrderEvent
}

var transitions = map[transitionKey]enum.OrderState{
	{enum.OrderStateNew, enum.OrderEventOpen}:          enum.OrderStateOpen,
	{enum.OrderStateNew, enum.OrderEventAwaitCreation}: enum.OrderStatePendingCreation,
	{enum.OrderStateNew, enum.OrderEventPartialFill}:   enum.OrderStatePartiallyFilled,
	{enum.OrderStateNew, enum.OrderEventStartFill}:     enum.OrderStateFilling,
	{enum.OrderStateNew, enum.OrderEventStartCancel}:   enum.OrderStateCanceling,

	{enum.OrderStatePendingCreation, enum.OrderEventOpen}:        enum.OrderStateOpen,
	{enum.OrderStatePendingCreation, enum.OrderEventPartialFill}: enum.OrderStatePartiallyFilled,
	{enum.OrderStatePendingCreation, enum.OrderEventStartFill}:   enum.OrderStateFilling,
	{enum.OrderStatePendingCreation, enum.OrderEventStartCancel}: enum.OrderStateCanceling,
	{enum.OrderStatePendingCreation, enum.OrderEventRefresh}:     enum.OrderStateRefreshing,

	{enum.OrderStateOpen, enum.OrderEventStartFill}:     enum.OrderStateFilling,
	{enum.OrderStateOpen, enum.OrderEventPartialFill}:   enum.OrderStatePartiallyFilled,
	{enum.OrderStateOpen, enum.OrderEventRequestCancel}: enum.OrderStatePendingCancel,
	{enum.OrderStateOpen, enum.OrderEventStartCancel}:   enum.OrderStateCanceling,
	{enum.OrderStateOpen, enum.OrderEventRefresh}:       enum.OrderStateRefreshing,

	{enum.OrderStatePartiallyFilled, enum.OrderEventPartialFill}:   enum.OrderStatePartiallyFilled,
	{enum.OrderStatePartiallyFilled, enum.OrderEventStartFill}:     enum.OrderStateFilling,
	{enum.OrderStatePartiallyFilled, enum.OrderEventRequestCancel}: enum.OrderStatePendingCancel,
	{enum.OrderStatePartiallyFilled, enum.OrderEventStartCancel}:   enum.OrderStateCanceling,
	{enum.OrderStatePartiallyFilled, enum.OrderEventRefresh}:       enum.OrderStateRefreshing,

	{enum.OrderStateRefreshing, enum.OrderEventRefreshDone}: enum.OrderStateOpen,
	{enum.OrderStateRefreshing, enum.OrderEventPartialFill}: enum.OrderStatePartiallyFilled,
	{enum.OrderStateRefreshing, enum.OrderEventStartFill}:   enum.OrderStateFilling,
	{enum.OrderStateRefreshing, enum.OrderEventStartCancel}: enum.OrderStateCanceling,

	{enum.OrderStatePendingCancel, enum.OrderEventStartCancel}: enum.OrderStateCanceling,
	{enum.OrderStatePendingCancel, enum.OrderEventStartFill}:   enum.OrderStateFilling,
	{enum.OrderStatePendingCancel, enum.OrderEventPartialFill}: enum.OrderStatePartiallyFilled,
	{enum.OrderStatePendingCancel, enum.OrderEventRefresh}:     enum.OrderStateRefreshing,

	{enum.OrderStateFilling, enum.OrderEventCompleteFill}: enum.OrderStateFilled,
	{enum.OrderStateFilling, enum.OrderEventPartialFill}:  enum.OrderStatePartiallyFilled,

	{enum.OrderStateCanceling, enum.OrderEventCompleteCancel}: enum.OrderStateCanceled,

	{enum.OrderStateFilled, enum.OrderEventStartClose}: enum.OrderStateClosing,
	{enum.OrderStateFilled, enum.OrderEventClose}:      enum.OrderStateClosed,

	{enum.OrderStateCanceled, enum.OrderEventStartClose}: enum.OrderStateClosing,
	{enum.OrderStateCanceled, enum.OrderEventClose}:      enum.OrderStateClosed,

	{enum.OrderStateClosing, enum.OrderEventClose}: enum.OrderStateClosed,
}

// Transition returns the state reached by applying event to state. Pairs that
// are not part of the order lifecycle fail with exception.ErrInvalidTransition.
func Transition(state enum.OrderState, event enum.OrderEvent) (enum.OrderState, error) {
	next, ok := transitions[transitionKey{from: state, event: event}]
	if !ok {
		return state, errors.Wrapf(exception.ErrInvalidTransition, "state: %s, event: %s", state, event)
	}
	return next, nil
}

// IsTerminalState reports whether no fill or cancel can follow state.
func IsTerminalState(state enum.OrderState) bool {
	switch state {
	case enum.OrderStateFilled, enum.OrderStateCanceled, enum.OrderStateClosing, enum.OrderStateClosed:
		return true
	default:
		return false
	}
}

// isFillable reports whether an order in state may still receive fills.
func isFillable(state enum.OrderState) bool {
	switch state {
	case enum.OrderStateOpen, enum.OrderStatePartiallyFilled, enum.OrderStatePendingCreation,
		enum.OrderStatePendingCancel, enum.OrderStateRefreshing:
		return true
	default:
		return false
	}
}

// statusFor returns the status an order must expose after entering state.
// States without a status of their own keep the previous one.
func statusFor(state enum.OrderState, prev enum.OrderStatus) enum.OrderStatus {
	switch state {
	case enum.OrderStateOpen:
		return enum.OrderStatusOpen
	case enum.OrderStatePartiallyFilled:
		return enum.OrderStatusPartiallyFilled
	case enum.OrderStateFilled:
		return enum.OrderStatusFilled
	case enum.OrderStateCanceled:
		if prev.IsCanceledFamily() {
			return prev
		}
		return enum.OrderStatusCanceled
	case enum.OrderStatePendingCreation:
		return enum.OrderStatusPendingCreation
	case enum.OrderStatePendingCancel:
		return enum.OrderStatusPendingCancel
	default:
		return prev
	}
}
