package compose

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/inconshreveable/log15"
	"github.com/ngrok/reroll"
	"github.com/pkg/errors"
	"k8s.io/utils/exec"
)

// healthFormat renders an instance's health object, or null without a health
// check.
const healthFormat = "{{json .State.Health}}"

// Options configures how commands are built.
type Options struct {
	// Files are compose files, passed as '-f' to every compose command.
	Files []string
	// EnvFile is passed as '--env-file' to every compose command.
	EnvFile string
	// DockerArgs are docker global arguments (e.g. '--context', 'prod'). They
	// are placed before the subcommand of every 'docker' invocation.
	DockerArgs []string
	// Output receives the output of commands that change state. Nil discards
	// it.
	Output io.Writer
	Logger log15.Logger
}

// Gateway runs runtime commands as child processes. It implements both
// reroll.Gateway and reroll.HookRunner.
type Gateway struct {
	exec exec.Interface
	// compose is the command prefix for compose commands, e.g.
	// ["docker", "compose"] or ["docker-compose"].
	compose []string
	opts    Options
	l       log15.Logger
}

var (
	_ reroll.Gateway    = &Gateway{}
	_ reroll.HookRunner = &Gateway{}
)

func newGateway(e exec.Interface, compose []string, opts Options) *Gateway {
	l := opts.Logger
	if l == nil {
		l = log15.New()
		l.SetHandler(log15.DiscardHandler())
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	return &Gateway{
		exec:    e,
		compose: compose,
		opts:    opts,
		l:       l,
	}
}

// Compose returns the command prefix used for compose commands.
func (g *Gateway) Compose() []string {
	return append([]string{}, g.compose...)
}

// composePrefix returns the compose command as run, with docker global
// arguments in place when compose runs as a docker plugin.
func (g *Gateway) composePrefix() []string {
	argv := []string{g.compose[0]}
	if g.compose[0] == "docker" {
		argv = append(argv, g.opts.DockerArgs...)
	}
	return append(argv, g.compose[1:]...)
}

func (g *Gateway) composeArgv(args ...string) []string {
	argv := g.composePrefix()
	for _, f := range g.opts.Files {
		argv = append(argv, "-f", f)
	}
	if g.opts.EnvFile != "" {
		argv = append(argv, "--env-file", g.opts.EnvFile)
	}
	return append(argv, args...)
}

func (g *Gateway) dockerArgv(args ...string) []string {
	argv := append([]string{"docker"}, g.opts.DockerArgs...)
	return append(argv, args...)
}

// run runs argv to completion, sending its output to the configured writer.
func (g *Gateway) run(argv []string) error {
	g.l.Debug("running command", "argv", argv)
	cmd := g.exec.Command(argv[0], argv[1:]...)
	cmd.SetStdout(g.opts.Output)
	cmd.SetStderr(g.opts.Output)
	if err := cmd.Run(); err != nil {
		return commandError(argv, err)
	}
	return nil
}

// output runs argv and returns what it printed to stdout.
func (g *Gateway) output(argv []string) (string, error) {
	g.l.Debug("running command", "argv", argv)
	cmd := g.exec.Command(argv[0], argv[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return "", commandError(argv, err)
	}
	return string(out), nil
}

func commandError(argv []string, err error) *reroll.CommandError {
	cerr := &reroll.CommandError{Args: argv, ExitStatus: -1, Err: err}
	var exitErr exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitStatus = exitErr.ExitStatus()
	}
	return cerr
}

// ListInstances lists the ids of the running containers of service.
func (g *Gateway) ListInstances(service string) (reroll.InstanceSet, error) {
	out, err := g.output(g.composeArgv("ps", "--quiet", service))
	if err != nil {
		return nil, err
	}
	return parseIDs(out), nil
}

func parseIDs(out string) reroll.InstanceSet {
	ids := reroll.InstanceSet{}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			ids = append(ids, reroll.InstanceID(line))
		}
	}
	return ids
}

// Scale runs 'up' with an explicit scale for service, leaving existing
// containers alone.
func (g *Gateway) Scale(service string, replicas int) error {
	return g.run(g.composeArgv(
		"up", "--detach",
		"--scale", service+"="+strconv.Itoa(replicas),
		"--no-recreate",
		service,
	))
}

// StartIfAbsent runs 'up' for service, leaving existing containers alone.
func (g *Gateway) StartIfAbsent(service string) error {
	return g.run(g.composeArgv("up", "--detach", "--no-recreate", service))
}

// InspectHealth returns the JSON health object of a container.
func (g *Gateway) InspectHealth(id reroll.InstanceID) (string, error) {
	return g.output(g.dockerArgv("inspect", "--format", healthFormat, string(id)))
}

// Stop stops the given containers with a single 'docker stop'.
func (g *Gateway) Stop(ids reroll.InstanceSet) error {
	return g.run(g.dockerArgv(append([]string{"stop"}, ids.Strings()...)...))
}

// Remove removes the given containers with a single 'docker rm'.
func (g *Gateway) Remove(ids reroll.InstanceSet) error {
	return g.run(g.dockerArgv(append([]string{"rm"}, ids.Strings()...)...))
}

// RunShell runs command with 'sh -c'.
func (g *Gateway) RunShell(command string) error {
	var stderr bytes.Buffer
	argv := []string{"sh", "-c", command}
	g.l.Debug("running command", "argv", argv)
	cmd := g.exec.Command(argv[0], argv[1:]...)
	cmd.SetStdout(g.opts.Output)
	cmd.SetStderr(io.MultiWriter(g.opts.Output, &stderr))
	if err := cmd.Run(); err != nil {
		cerr := commandError(argv, err)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return errors.Wrap(cerr, msg)
		}
		return cerr
	}
	return nil
}
