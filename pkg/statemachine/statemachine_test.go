package statemachine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/skillhub/pkg/statemachine"
)

type state string

type event string

func newDoorMachine() *statemachine.Machine[state, event] {
	return statemachine.New(
		statemachine.Transition[state, event]{From: "closed", Event: "open", To: "opened"},
		statemachine.Transition[state, event]{From: "opened", Event: "close", To: "closed"},
		statemachine.Transition[state, event]{From: "closed", Event: "lock", To: "locked"},
	)
}

func TestMachine_Fire(t *testing.T) {
	t.Parallel()

	m := newDoorMachine()

	tests := []struct {
		name    string
		from    state
		event   event
		want    state
		wantErr bool
	}{
		{name: "open closed door", from: "closed", event: "open", want: "opened"},
		{name: "close opened door", from: "opened", event: "close", want: "closed"},
		{name: "lock closed door", from: "closed", event: "lock", want: "locked"},
		{name: "cannot lock opened door", from: "opened", event: "lock", wantErr: true},
		{name: "locked is terminal", from: "locked", event: "open", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Fire(tt.from, tt.event)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, statemachine.IsNoTransitionError(err))
				assert.Contains(t, err.Error(), string(tt.from))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMachine_CanAndTerminal(t *testing.T) {
	t.Parallel()

	m := newDoorMachine()

	assert.True(t, m.Can("closed", "open"))
	assert.False(t, m.Can("opened", "open"))
	assert.True(t, m.IsTerminal("locked"))
	assert.False(t, m.IsTerminal("closed"))
}
