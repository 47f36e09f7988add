package reroll

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrEnvironmentUnavailable indicates that neither 'docker compose' nor
	// 'docker-compose' could be run. It is returned before anything is changed.
	ErrEnvironmentUnavailable = errors.New("docker compose command not found")
	// ErrReadinessTimeout indicates the instances being waited on did not reach
	// the requested healthy count before the deadline.
	ErrReadinessTimeout = errors.New("timed out")
	// ErrNotHealthy indicates that the new instances did not become healthy in
	// time. By the time it is returned they have been stopped and removed again,
	// and the old instances are still serving.
	ErrNotHealthy = errors.New("new containers weren't healthy after timeout")
	// ErrRestartInProgress indicates another process holds the lock for the
	// service being restarted.
	ErrRestartInProgress = errors.New("a restart of this service is already in progress")
)

// CommandError is returned by a Gateway when a runtime command could not be
// run or exited with a non-zero status.
type CommandError struct {
	Args []string
	// ExitStatus is the exit status of the command, or -1 if it never ran to
	// completion.
	ExitStatus int
	Err        error
}

func (e *CommandError) Error() string {
	cmd := strings.Join(e.Args, " ")
	if e.ExitStatus >= 0 {
		return fmt.Sprintf("command %q failed (exit status %d)", cmd, e.ExitStatus)
	}
	return fmt.Sprintf("command %q failed: %v", cmd, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// QueryError means the running instances of a service could not be listed.
type QueryError struct {
	Service string
	Err     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("failed to get container ids of %q: %v", e.Service, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// StartError means a service with no running instances could not be started.
type StartError struct {
	Service string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start service %q: %v", e.Service, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// ScaleError means the scale-up command failed. No new instances are assumed
// to exist and the old instances are untouched.
type ScaleError struct {
	Service  string
	Replicas int
	Err      error
}

func (e *ScaleError) Error() string {
	return fmt.Sprintf("failed to scale %q to %d instances: %v", e.Service, e.Replicas, e.Err)
}

func (e *ScaleError) Unwrap() error {
	return e.Err
}

const (
	// PhaseRetire is the retirement of old instances after a successful rollout.
	PhaseRetire = "retire"
	// PhaseRollback is the removal of new instances that never became healthy.
	PhaseRollback = "rollback"
)

// RetirementError means stopping or removing a set of instances failed.
// During PhaseRetire the new instances remain live, but cleanup of the old
// ones is incomplete and needs an operator's attention.
type RetirementError struct {
	Phase string
	// Op is either "stop" or "remove".
	Op  string
	IDs InstanceSet
	Err error
}

func (e *RetirementError) Error() string {
	return fmt.Sprintf("%s: failed to %s instances %v: %v", e.Phase, e.Op, e.IDs.Strings(), e.Err)
}

func (e *RetirementError) Unwrap() error {
	return e.Err
}
