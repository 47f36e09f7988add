package reroll

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRestarterStateTransitions(t *testing.T) {
	state := restarterStateInit
	for _, next := range []restarterState{
		restarterStateCheckingRunning,
		restarterStateScalingUp,
		restarterStateAwaitingReady,
		restarterStatePreRetire,
		restarterStateRetiringOld,
		restarterStateDone,
	} {
		require.NoError(t, state.transitionTo(next))
		require.Equal(t, next, state)
	}
	require.True(t, state.terminal())
	require.Error(t, state.transitionTo(restarterStateFailed))
}

func TestRestarterStateInvalidTransitions(t *testing.T) {
	for from, to := range map[restarterState]restarterState{
		restarterStateInit:            restarterStateScalingUp,
		restarterStateCheckingRunning: restarterStateAwaitingReady,
		restarterStateStartingFresh:   restarterStateScalingUp,
		restarterStateAwaitingReady:   restarterStateRetiringOld,
		restarterStateRolledBack:      restarterStatePreRetire,
		restarterStateFailed:          restarterStateDone,
	} {
		state := from
		require.Error(t, state.transitionTo(to), "%s -> %s", from, to)
		require.Equal(t, from, state)
	}
}

func TestEveryStateIsKnown(t *testing.T) {
	for from, targets := range validTransitions {
		for _, to := range targets {
			_, ok := validTransitions[to]
			require.True(t, ok, "%s -> %s leads to an unknown state", from, to)
		}
	}
}
