package reroll

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	fakeclock "k8s.io/utils/clock/testing"
)

// mockRuntime is an in-memory compose runtime running a single service.
// Instances are named c1, c2, ... in creation order.
type mockRuntime struct {
	clock *fakeclock.FakeClock

	nextID  int
	running InstanceSet
	stopped InstanceSet
	created map[InstanceID]time.Time
	// draining instances report unhealthy regardless of their age.
	draining map[InstanceID]bool

	// healthCheck controls whether instances define a health check at all.
	healthCheck bool
	// healthyAfter is how long after creation an instance reports healthy. A
	// negative value means never.
	healthyAfter time.Duration
	// maxReplicas caps what Scale actually creates. Zero means no cap.
	maxReplicas int

	listErr, scaleErr, startErr, stopErr, removeErr error
	// inspectErr fails inspection of specific instances.
	inspectErr map[InstanceID]error

	calls []string
}

func newMockRuntime(clock *fakeclock.FakeClock, initial int) *mockRuntime {
	m := &mockRuntime{
		clock:      clock,
		created:    map[InstanceID]time.Time{},
		draining:   map[InstanceID]bool{},
		inspectErr: map[InstanceID]error{},
	}
	for i := 0; i < initial; i++ {
		m.create()
	}
	return m
}

func (m *mockRuntime) create() {
	m.nextID++
	id := InstanceID(fmt.Sprintf("c%d", m.nextID))
	m.running = append(m.running, id)
	m.created[id] = m.clock.Now()
}

func (m *mockRuntime) record(format string, args ...interface{}) {
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

func (m *mockRuntime) called(prefix string) bool {
	for _, c := range m.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (m *mockRuntime) ListInstances(service string) (InstanceSet, error) {
	m.record("list %s", service)
	if m.listErr != nil {
		return nil, m.listErr
	}
	ids := make(InstanceSet, len(m.running))
	copy(ids, m.running)
	return ids, nil
}

func (m *mockRuntime) Scale(service string, replicas int) error {
	m.record("scale %s=%d", service, replicas)
	if m.scaleErr != nil {
		return m.scaleErr
	}
	if m.maxReplicas > 0 && replicas > m.maxReplicas {
		replicas = m.maxReplicas
	}
	for len(m.running) < replicas {
		m.create()
	}
	return nil
}

func (m *mockRuntime) StartIfAbsent(service string) error {
	m.record("start %s", service)
	if m.startErr != nil {
		return m.startErr
	}
	if len(m.running) == 0 {
		m.create()
	}
	return nil
}

func (m *mockRuntime) InspectHealth(id InstanceID) (string, error) {
	m.record("inspect %s", id)
	if err := m.inspectErr[id]; err != nil {
		return "", err
	}
	created, ok := m.created[id]
	if !ok {
		return "", &CommandError{Args: []string{"docker", "inspect", string(id)}, ExitStatus: 1}
	}
	if !m.healthCheck {
		return "null", nil
	}
	status := "starting"
	switch {
	case m.draining[id]:
		status = "unhealthy"
	case m.healthyAfter >= 0 && !m.clock.Now().Before(created.Add(m.healthyAfter)):
		status = "healthy"
	}
	return fmt.Sprintf(`{"Status":%q,"FailingStreak":0,"Log":[]}`, status), nil
}

func (m *mockRuntime) Stop(ids InstanceSet) error {
	m.record("stop %s", strings.Join(ids.Strings(), " "))
	if m.stopErr != nil {
		return m.stopErr
	}
	m.running = m.running.Difference(ids)
	m.stopped = append(m.stopped, ids...)
	return nil
}

func (m *mockRuntime) Remove(ids InstanceSet) error {
	m.record("remove %s", strings.Join(ids.Strings(), " "))
	if m.removeErr != nil {
		return m.removeErr
	}
	for _, id := range ids {
		if m.running.Contains(id) {
			return errors.Errorf("cannot remove running instance %s", id)
		}
		delete(m.created, id)
	}
	m.stopped = m.stopped.Difference(ids)
	return nil
}

// mockHooks records pre-stop commands. Commands listed in fail return an
// error; commands listed in drain mark that instance as draining.
type mockHooks struct {
	runtime  *mockRuntime
	commands []string
	fail     map[string]bool
	drain    map[string]InstanceID
}

func (h *mockHooks) RunShell(command string) error {
	h.commands = append(h.commands, command)
	if h.fail[command] {
		return errors.New("exit status 1")
	}
	if id, ok := h.drain[command]; ok {
		h.runtime.draining[id] = true
	}
	return nil
}
