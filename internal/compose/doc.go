// Package compose implements reroll.Gateway on top of the docker and docker
// compose command line tools.
//
// Compose commands (listing, scaling, starting) go through either the
// 'docker compose' plugin or the standalone 'docker-compose' binary,
// whichever Detect finds first. Per-instance commands (inspect, stop, rm) go
// through plain 'docker', carrying any docker global arguments the caller
// was invoked with.
package compose
