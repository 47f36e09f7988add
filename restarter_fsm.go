package reroll

import "fmt"

// restarterState represents the finite state machine of a single restart. It
// has the following transitions:
// ∅                → Init
// Init             → CheckingRunning
// CheckingRunning  → StartingFresh
// CheckingRunning  → ScalingUp
// StartingFresh    → Done
// ScalingUp        → AwaitingReady
// AwaitingReady    → PreRetire
// AwaitingReady    → RolledBack
// PreRetire        → RetiringOld
// RetiringOld      → Done
//
// Every non-terminal state may additionally transition to Failed.
// The meaning of each state is described above the state's definition below.
type restarterState string

const (
	// Init is the initial state; nothing has been queried yet.
	restarterStateInit restarterState = "init"
	// CheckingRunning queries whether the service has any running instances.
	restarterStateCheckingRunning restarterState = "checking-running"
	// StartingFresh starts a service that had no running instances. There is
	// nothing to roll over, so it leads straight to Done.
	restarterStateStartingFresh restarterState = "starting-fresh"
	// ScalingUp has captured the old instances and is doubling the service.
	restarterStateScalingUp restarterState = "scaling-up"
	// AwaitingReady waits for the new instances, either by polling their
	// health or by sleeping a fixed duration.
	restarterStateAwaitingReady restarterState = "awaiting-ready"
	// RolledBack is terminal: the new instances never became healthy and have
	// been removed again.
	restarterStateRolledBack restarterState = "rolled-back"
	// PreRetire runs pre-stop commands against the old instances.
	restarterStatePreRetire restarterState = "pre-retire"
	// RetiringOld stops and removes the old instances.
	restarterStateRetiringOld restarterState = "retiring-old"
	// Done is terminal and successful.
	restarterStateDone restarterState = "done"
	// Failed is terminal: a fatal error aborted the restart.
	restarterStateFailed restarterState = "failed"
)

var validTransitions = map[restarterState][]restarterState{
	restarterStateInit: {
		restarterStateCheckingRunning,
	},
	restarterStateCheckingRunning: {
		restarterStateStartingFresh,
		restarterStateScalingUp,
		restarterStateFailed,
	},
	restarterStateStartingFresh: {
		restarterStateDone,
		restarterStateFailed,
	},
	restarterStateScalingUp: {
		restarterStateAwaitingReady,
		restarterStateFailed,
	},
	restarterStateAwaitingReady: {
		restarterStatePreRetire,
		restarterStateRolledBack,
		restarterStateFailed,
	},
	restarterStatePreRetire: {
		restarterStateRetiringOld,
		restarterStateFailed,
	},
	restarterStateRetiringOld: {
		restarterStateDone,
		restarterStateFailed,
	},
	restarterStateRolledBack: {},
	restarterStateDone:       {},
	restarterStateFailed:     {},
}

func (s *restarterState) canTransitionTo(state restarterState) error {
	validTargets := validTransitions[*s]

	for _, target := range validTargets {
		if target == state {
			return nil
		}
	}
	return fmt.Errorf("unable to transition from %s to %s", *s, state)
}

func (s *restarterState) transitionTo(state restarterState) error {
	if err := s.canTransitionTo(state); err != nil {
		return err
	}
	*s = state
	return nil
}

func (s restarterState) terminal() bool {
	return len(validTransitions[s]) == 0
}
