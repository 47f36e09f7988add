package reroll

import (
	"fmt"
	"strings"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"
)

const (
	// DefaultHealthcheckTimeout is how long new instances are given to report
	// healthy before the restart is rolled back.
	DefaultHealthcheckTimeout time.Duration = 60 * time.Second
	// DefaultFallbackWait is how long the Restarter waits before retiring old
	// instances when the service has no health check.
	DefaultFallbackWait time.Duration = 10 * time.Second
)

// IDPlaceholder is replaced with the id of the retiring instance in pre-stop
// commands.
const IDPlaceholder = "{id}"

// Restarter performs a rolling restart of one service.
type Restarter struct {
	service string
	gw      Gateway
	hooks   HookRunner
	prober  *prober

	healthcheckTimeout time.Duration
	fallbackWait       time.Duration
	settleWait         time.Duration
	preStopCmd         string
	waitUntilUnhealthy bool
	lockDir            string

	state restarterState

	clock clock.Clock
	l     log15.Logger
}

// Option is an option function for Restarter.
type Option func(r *Restarter)

// WithHealthcheckTimeout configures how long to wait for new instances to
// become healthy, and for old instances to become unhealthy. A negative
// value selects DefaultHealthcheckTimeout.
func WithHealthcheckTimeout(t time.Duration) Option {
	return func(r *Restarter) {
		r.healthcheckTimeout = t
		if r.healthcheckTimeout < 0 {
			r.healthcheckTimeout = DefaultHealthcheckTimeout
		}
	}
}

// WithFallbackWait configures how long to wait for new instances of a
// service without a health check. A negative value selects
// DefaultFallbackWait.
func WithFallbackWait(t time.Duration) Option {
	return func(r *Restarter) {
		r.fallbackWait = t
		if r.fallbackWait < 0 {
			r.fallbackWait = DefaultFallbackWait
		}
	}
}

// WithSettleWait configures an additional wait after the new instances have
// reported healthy, before the old ones are retired. By default there is none.
func WithSettleWait(t time.Duration) Option {
	return func(r *Restarter) {
		if t > 0 {
			r.settleWait = t
		}
	}
}

// WithPreStopCommand configures a shell command to run once for every old
// instance before it is stopped. Each occurrence of IDPlaceholder in tmpl is
// replaced with the instance's id.
func WithPreStopCommand(tmpl string) Option {
	return func(r *Restarter) {
		r.preStopCmd = tmpl
	}
}

// WithWaitUntilUnhealthy makes the Restarter wait, after running the pre-stop
// command, until none of the old instances report healthy anymore. Timing
// out is not an error; the old instances are retired regardless.
func WithWaitUntilUnhealthy(wait bool) Option {
	return func(r *Restarter) {
		r.waitUntilUnhealthy = wait
	}
}

// WithHookRunner configures what runs pre-stop commands. If the Gateway
// passed to New is also a HookRunner, it is used by default.
func WithHookRunner(h HookRunner) Option {
	return func(r *Restarter) {
		r.hooks = h
	}
}

// WithLockDir makes the Restarter hold an exclusive lock on a file in dir for
// the service while it runs. Restarts of the same service sharing dir fail
// with ErrRestartInProgress instead of running concurrently.
func WithLockDir(dir string) Option {
	return func(r *Restarter) {
		r.lockDir = dir
	}
}

// WithLogger configures the logger to use for restart operations.
// By default, nothing will be logged.
func WithLogger(l log15.Logger) Option {
	return func(r *Restarter) {
		r.l = l
	}
}

// WithClock configures the clock used for all waits.
func WithClock(c clock.Clock) Option {
	return func(r *Restarter) {
		r.clock = c
	}
}

// New constructs a Restarter for service. Commands are issued through gw.
// A Restarter performs a single restart; construct a new one for each Run.
func New(gw Gateway, service string, opts ...Option) (*Restarter, error) {
	if gw == nil {
		return nil, errors.New("a gateway is required")
	}
	if service == "" {
		return nil, errors.New("a service name is required")
	}

	noopLogger := log15.New()
	noopLogger.SetHandler(log15.DiscardHandler())
	r := &Restarter{
		service:            service,
		gw:                 gw,
		healthcheckTimeout: DefaultHealthcheckTimeout,
		fallbackWait:       DefaultFallbackWait,
		state:              restarterStateInit,
		clock:              clock.RealClock{},
		l:                  noopLogger,
	}
	if h, ok := gw.(HookRunner); ok {
		r.hooks = h
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.preStopCmd != "" && r.hooks == nil {
		return nil, errors.New("a pre-stop command was configured, but there is nothing to run it")
	}

	r.l = r.l.New("service", service)
	r.prober = &prober{gw: gw, l: r.l}
	return r, nil
}

func (r *Restarter) transitionTo(state restarterState) error {
	from := r.state
	if err := r.state.transitionTo(state); err != nil {
		return err
	}
	r.l.Info("phase transition", "from", from, "to", state)
	return nil
}

func (r *Restarter) mustTransitionTo(state restarterState) {
	if err := r.transitionTo(state); err != nil {
		panic(fmt.Sprintf("BUG: error transitioning to %q: %v", state, err))
	}
}

// Run performs the restart. If the service has no running instances, it is
// started and Run returns. Otherwise the service is doubled, the new
// instances are awaited, and the old instances are retired.
//
// Run returns ErrNotHealthy if the new instances had to be rolled back. Any
// other error leaves the runtime in whatever state the failed command left
// it in; the runtime itself is the source of truth about what is running.
func (r *Restarter) Run() (err error) {
	if err := r.transitionTo(restarterStateCheckingRunning); err != nil {
		return errors.Wrap(err, "restarter has already run")
	}

	defer func() {
		if err == nil {
			return
		}
		if !r.state.terminal() {
			r.mustTransitionTo(restarterStateFailed)
		}
		r.l.Error("restart failed", "state", r.state, "err", err)
	}()

	if r.lockDir != "" {
		lk, err := lockService(r.l, r.lockDir, r.service)
		if err != nil {
			return err
		}
		defer func() {
			if err := lk.Unlock(); err != nil {
				r.l.Warn("error unlocking service", "err", err)
			}
		}()
	}

	oldIDs, err := r.listInstances()
	if err != nil {
		return err
	}
	if len(oldIDs) == 0 {
		return r.startFresh()
	}
	return r.rollOver(oldIDs)
}

func (r *Restarter) listInstances() (InstanceSet, error) {
	ids, err := r.gw.ListInstances(r.service)
	if err != nil {
		return nil, &QueryError{Service: r.service, Err: err}
	}
	return ids, nil
}

func (r *Restarter) startFresh() error {
	r.mustTransitionTo(restarterStateStartingFresh)
	r.l.Info("service is not running, starting it")
	if err := r.gw.StartIfAbsent(r.service); err != nil {
		return &StartError{Service: r.service, Err: err}
	}
	r.mustTransitionTo(restarterStateDone)
	return nil
}

func (r *Restarter) rollOver(oldIDs InstanceSet) error {
	r.mustTransitionTo(restarterStateScalingUp)
	r.l.Debug("captured old instances", "old", oldIDs.Strings())

	scale := len(oldIDs) * 2
	r.l.Debug("scaling up", "from", len(oldIDs), "to", scale)
	if err := r.gw.Scale(r.service, scale); err != nil {
		return &ScaleError{Service: r.service, Replicas: scale, Err: err}
	}

	allIDs, err := r.listInstances()
	if err != nil {
		return err
	}
	newIDs := allIDs.Difference(oldIDs)
	r.l.Debug("found new instances", "all", allIDs.Strings(), "new", newIDs.Strings())
	switch {
	case len(newIDs) == 0:
		r.l.Warn("scaling created no new instances, retiring the old ones will leave the service with none", "old_count", len(oldIDs))
	case len(newIDs) < len(oldIDs):
		r.l.Warn("scaling created fewer new instances than there are old ones", "old_count", len(oldIDs), "new_count", len(newIDs))
	}

	r.mustTransitionTo(restarterStateAwaitingReady)
	// Instances of one service are assumed to be alike, so one of them decides
	// for all.
	if err := r.awaitReady(oldIDs[0], newIDs); err != nil {
		return err
	}

	r.mustTransitionTo(restarterStatePreRetire)
	r.preStop(oldIDs)

	r.mustTransitionTo(restarterStateRetiringOld)
	if err := r.stop(PhaseRetire, oldIDs); err != nil {
		return err
	}
	if err := r.remove(PhaseRetire, oldIDs); err != nil {
		return err
	}

	r.mustTransitionTo(restarterStateDone)
	r.l.Info("restart complete", "retired", oldIDs.Strings(), "serving", newIDs.Strings())
	return nil
}

// awaitReady returns once the new instances can take over, or rolls them back
// and returns ErrNotHealthy.
func (r *Restarter) awaitReady(representative InstanceID, newIDs InstanceSet) error {
	if !r.prober.hasHealthCheck(representative) {
		r.l.Info("no health check, waiting for new instances to be ready", "wait", r.fallbackWait)
		r.clock.Sleep(r.fallbackWait)
		return nil
	}

	r.l.Info("waiting for new instances to be healthy", "timeout", r.healthcheckTimeout)
	if err := r.waitForCount(len(newIDs), newIDs, r.healthcheckTimeout); err == nil {
		if r.settleWait > 0 {
			r.l.Info("waiting for healthy instances to settle down", "wait", r.settleWait)
			r.clock.Sleep(r.settleWait)
		}
		return nil
	}

	r.l.Warn("new instances aren't healthy after timeout, rolling back", "new", newIDs.Strings())
	if err := r.stop(PhaseRollback, newIDs); err != nil {
		return err
	}
	if err := r.remove(PhaseRollback, newIDs); err != nil {
		return err
	}
	r.mustTransitionTo(restarterStateRolledBack)
	return ErrNotHealthy
}

// preStop runs the pre-stop command against every old instance. Nothing here
// can fail the restart.
func (r *Restarter) preStop(oldIDs InstanceSet) {
	if r.preStopCmd == "" {
		return
	}

	for _, id := range oldIDs {
		cmd := strings.ReplaceAll(r.preStopCmd, IDPlaceholder, string(id))
		r.l.Debug("running pre-stop command", "id", id, "cmd", cmd)
		if err := r.hooks.RunShell(cmd); err != nil {
			r.l.Warn("pre-stop command failed", "id", id, "err", err)
		}
	}

	if !r.waitUntilUnhealthy {
		return
	}

	r.l.Info("waiting for old instances to become unhealthy", "timeout", r.healthcheckTimeout)
	if err := r.waitForCount(0, oldIDs, r.healthcheckTimeout); err != nil {
		r.l.Warn("timed out while waiting for old instances to become unhealthy")
	}
}

func (r *Restarter) stop(phase string, ids InstanceSet) error {
	if len(ids) == 0 {
		return nil
	}
	r.l.Debug("stopping instances", "phase", phase, "ids", ids.Strings())
	if err := r.gw.Stop(ids); err != nil {
		return &RetirementError{Phase: phase, Op: "stop", IDs: ids, Err: err}
	}
	return nil
}

func (r *Restarter) remove(phase string, ids InstanceSet) error {
	if len(ids) == 0 {
		return nil
	}
	r.l.Debug("removing instances", "phase", phase, "ids", ids.Strings())
	if err := r.gw.Remove(ids); err != nil {
		return &RetirementError{Phase: phase, Op: "remove", IDs: ids, Err: err}
	}
	return nil
}
