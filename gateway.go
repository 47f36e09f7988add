package reroll

// Gateway executes commands against the container runtime on behalf of a
// Restarter. All methods block until the underlying command has finished.
// Failures should be reported as *CommandError.
type Gateway interface {
	// ListInstances returns the ids of the running instances of service.
	ListInstances(service string) (InstanceSet, error)
	// Scale requests exactly replicas instances of service without recreating
	// the instances that already exist.
	Scale(service string, replicas int) error
	// StartIfAbsent starts service, creating it if needed, without recreating
	// anything that already exists.
	StartIfAbsent(service string) error
	// InspectHealth returns the runtime's health object for an instance
	// rendered as JSON, or "null" if the instance has no health check.
	InspectHealth(id InstanceID) (string, error)
	// Stop stops all given instances.
	Stop(ids InstanceSet) error
	// Remove removes all given (stopped) instances.
	Remove(ids InstanceSet) error
}

// HookRunner runs pre-stop commands.
type HookRunner interface {
	// RunShell runs command through a shell. A non-nil error means the command
	// could not be run or exited unsuccessfully.
	RunShell(command string) error
}
