// Package reroll implements zero downtime restarts of a single compose service.
//
// A restart is performed by doubling the number of running instances of the
// service, waiting for the new instances to become ready, and then retiring
// the instances that were running before the restart began. At no point does
// the service drop below its original instance count.
//
// Readiness is determined through the runtime's own health checks when the
// service defines one. A service without a health check gets a fixed grace
// period instead, and the new instances are trusted once it elapses.
//
// If the new instances do not become healthy in time, they are stopped and
// removed again and the restart fails, leaving the old instances untouched
// and serving.
//
// Before the old instances are stopped, an optional pre-stop command may be
// run once per old instance, e.g. to ask it to start draining connections.
// Optionally, reroll can then wait for the old instances to report themselves
// unhealthy before stopping them.
//
// How commands reach the container runtime is out of scope of this package;
// callers provide a Gateway. The internal/compose package provides one backed
// by the docker and docker compose command line tools.
package reroll
