package compose

import (
	"io"

	"github.com/ngrok/reroll"
	"k8s.io/utils/exec"
)

// candidates are the compose commands to try, in order of preference.
var candidates = [][]string{
	{"docker", "compose"},
	{"docker-compose"},
}

// Detect finds a working compose command and returns a Gateway using it. The
// 'docker compose' plugin is preferred over the standalone 'docker-compose'.
// If neither can be run, it returns reroll.ErrEnvironmentUnavailable.
func Detect(e exec.Interface, opts Options) (*Gateway, error) {
	for _, candidate := range candidates {
		g := newGateway(e, candidate, opts)
		argv := append(g.composePrefix(), "version")
		cmd := e.Command(argv[0], argv[1:]...)
		cmd.SetStdout(io.Discard)
		cmd.SetStderr(io.Discard)
		if err := cmd.Run(); err != nil {
			g.l.Debug("compose command unavailable", "compose", candidate, "err", err)
			continue
		}
		g.l.Debug("found compose command", "compose", candidate)
		return g, nil
	}
	return nil, reroll.ErrEnvironmentUnavailable
}
