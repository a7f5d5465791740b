package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected Status
		wantErr  bool
	}{
		{name: "pending", input: "pending", expected: StatusPending},
		{name: "uppercase is normalized", input: "DELIVERED", expected: StatusDelivered},
		{name: "surrounding whitespace is trimmed", input: "  arrived ", expected: StatusArrived},
		{name: "unknown status", input: "en_route", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, err := ParseStatus(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidStatus)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, status)
		})
	}
}

func TestStatus_CanTransitionTo(t *testing.T) {
	testCases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusArrived, true},
		{StatusPending, StatusDelivered, true},
		{StatusPending, StatusFailed, true},
		{StatusArrived, StatusDelivered, true},
		{StatusArrived, StatusFailed, true},
		// No backwards moves.
		{StatusArrived, StatusPending, false},
		{StatusDelivered, StatusArrived, false},
		// No self loops.
		{StatusArrived, StatusArrived, false},
		// Terminal states accept nothing.
		{StatusDelivered, StatusFailed, false},
		{StatusFailed, StatusDelivered, false},
		{StatusFailed, StatusArrived, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusArrived.Terminal())
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestParseIssueType(t *testing.T) {
	issue, err := ParseIssueType("wrong_address")
	assert.NoError(t, err)
	assert.Equal(t, IssueWrongAddress, issue)

	_, err = ParseIssueType("ran_out_of_gas")
	assert.ErrorIs(t, err, ErrInvalidIssueType)
}
