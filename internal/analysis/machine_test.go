package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttemptMachine(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name        string
		limit       int
		errs        []error
		wantState   attemptState
		wantAttempt int
	}{
		{name: "first attempt succeeds", limit: 3, errs: []error{nil}, wantState: stateSucceeded, wantAttempt: 1},
		{name: "succeeds on last attempt", limit: 3, errs: []error{boom, boom, nil}, wantState: stateSucceeded, wantAttempt: 3},
		{name: "exhausts the bound", limit: 3, errs: []error{boom, boom, boom}, wantState: stateExhausted, wantAttempt: 3},
		{name: "terminal state absorbs extra results", limit: 1, errs: []error{boom, nil, nil}, wantState: stateExhausted, wantAttempt: 1},
		{name: "zero limit starts exhausted", limit: 0, errs: []error{nil}, wantState: stateExhausted, wantAttempt: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newAttemptMachine(tt.limit)
			for _, err := range tt.errs {
				m.record("model", "raw", err)
			}
			assert.Equal(t, tt.wantState, m.state, m.state.String())
			assert.Equal(t, tt.wantAttempt, m.attempt)
		})
	}
}

func TestAttemptMachine_Abandon(t *testing.T) {
	m := newAttemptMachine(3)
	m.record("a", "", errors.New("boom"))
	m.abandon()

	assert.Equal(t, stateExhausted, m.state)
	assert.Equal(t, 1, m.attempt)

	done := newAttemptMachine(3)
	done.record("a", "[]", nil)
	done.abandon()
	assert.Equal(t, stateSucceeded, done.state)
	assert.Equal(t, "a", done.model)
}
