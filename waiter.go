package reroll

import "time"

// pollInterval is how long the waiter sleeps between two passes over the
// instances it is waiting on.
const pollInterval = time.Second

// waitForCount polls ids until exactly target of them are healthy, or until
// timeout has passed. The first pass happens immediately. It returns
// ErrReadinessTimeout if the deadline passes first. A target of zero waits
// for every instance to stop reporting healthy.
func (r *Restarter) waitForCount(target int, ids InstanceSet, timeout time.Duration) error {
	deadline := r.clock.Now().Add(timeout)

	for {
		healthy := 0
		for _, id := range ids {
			if r.prober.isHealthy(id) {
				healthy++
			}
		}

		r.l.Debug("polled instance health", "healthy_count", healthy, "target_count", target)

		if healthy == target {
			return nil
		}
		if !r.clock.Now().Before(deadline) {
			return ErrReadinessTimeout
		}
		r.clock.Sleep(pollInterval)
	}
}
