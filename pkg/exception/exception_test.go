package exception

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yanun0323/errors"
)

func TestWrappedSentinelMatches(t *testing.T) {
	testCases := []struct {
		desc   string
		err    error
		target error
	}{
		{"wrapf", errors.Wrapf(ErrMissingFunds, "need %s", "100"), ErrMissingFunds},
		{"wrap twice", errors.Wrap(errors.Wrap(ErrOrderNotFound, "id: o1"), "cancel"), ErrOrderNotFound},
		{"creation error", errors.Wrap(&OrderCreationError{Symbol: "BTC/USDT", Cause: errors.Wrap(ErrMarketClosed, "closed")}, "submit"), ErrMarketClosed},
		{"transition", errors.Wrapf(ErrInvalidTransition, "%s -> %s", "filled", "open"), ErrInvalidTransition},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.True(t, stderrors.Is(tc.err, tc.target))
			assert.True(t, errors.Is(tc.err, tc.target))
			assert.False(t, stderrors.Is(tc.err, ErrTimeout))
		})
	}
}

func TestOrderCreationErrorMatchesCause(t *testing.T) {
	err := error(&OrderCreationError{Symbol: "BTC/USDT", Cause: ErrMarketClosed})
	assert.ErrorIs(t, err, ErrOrderCreation)
	assert.ErrorIs(t, err, ErrMarketClosed)
	assert.NotErrorIs(t, err, ErrMissingFunds)
	assert.Contains(t, err.Error(), "BTC/USDT")
}

func TestIsRetriable(t *testing.T) {
	testCases := []struct {
		desc     string
		err      error
		expected bool
	}{
		{"network", errors.Wrap(ErrNetwork, "dial"), true},
		{"rate limit", ErrRateLimit, true},
		{"timeout", ErrTimeout, true},
		{"auth", ErrAuthentication, false},
		{"failed request", ErrFailedRequest, true},
		{"rules", ErrMarketRulesViolation, false},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsRetriable(tc.err))
		})
	}
}
