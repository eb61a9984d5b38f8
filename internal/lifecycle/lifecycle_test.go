package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHappyPath(t *testing.T) {
	s := StatusPendingPayment
	for _, next := range []Status{StatusPaid, StatusConfirmed, StatusCompleted} {
		var err error
		s, err = Transition(s, next)
		require.NoError(t, err)
		assert.Equal(t, next, s)
	}
	assert.True(t, s.Terminal())
}

func TestCancellableFromEveryNonTerminalState(t *testing.T) {
	for _, from := range NonTerminal {
		got, err := Transition(from, StatusCancelled)
		require.NoError(t, err, "cancel from %s", from)
		assert.Equal(t, StatusCancelled, got)
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		for _, to := range []Status{StatusPendingPayment, StatusPaid, StatusConfirmed, StatusCompleted, StatusCancelled} {
			_, err := Transition(from, to)
			assert.Error(t, err, "%s -> %s must be rejected", from, to)
		}
	}
}

func TestIllegalShortcuts(t *testing.T) {
	cases := []struct{ from, to Status }{
		{StatusPendingPayment, StatusConfirmed}, // must pass through paid
		{StatusPendingPayment, StatusCompleted},
		{StatusPaid, StatusCompleted}, // must pass through confirmed
		{StatusPaid, StatusPendingPayment},
		{StatusConfirmed, StatusPaid},
	}
	for _, tc := range cases {
		got, err := Transition(tc.from, tc.to)
		require.Error(t, err, "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.from, got, "status unchanged on rejection")

		var ite *InvalidTransitionError
		require.True(t, errors.As(err, &ite))
		assert.Equal(t, tc.from, ite.From)
		assert.Equal(t, tc.to, ite.To)
	}
}

func TestUnknownStatusRejected(t *testing.T) {
	_, err := Transition(Status("weird"), StatusPaid)
	assert.Error(t, err)
	_, err = Transition(StatusPaid, Status(""))
	assert.Error(t, err)
}

func TestNonTerminalStrings(t *testing.T) {
	assert.Equal(t, []string{"pending_payment", "paid", "confirmed"}, NonTerminalStrings())
}
