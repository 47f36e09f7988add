// Package engine answers health inspections through the Docker Engine API
// instead of the docker command line.
package engine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/ngrok/reroll"
	"github.com/pkg/errors"
)

// DefaultInspectTimeout bounds a single inspection.
const DefaultInspectTimeout = 10 * time.Second

type inspector interface {
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	Close() error
}

// Gateway wraps another reroll.Gateway, inspecting instance health over the
// Engine API and leaving every other operation to the wrapped gateway.
type Gateway struct {
	reroll.Gateway
	cli     inspector
	timeout time.Duration
}

// ClientOpts translates docker global arguments into client options so the
// Engine API reaches the same daemon as the docker command line would.
// '-H'/'--host' is honoured. Arguments that select a daemon in a way the
// client cannot follow, such as '--context' or TLS settings, are an error.
// Logging arguments are ignored.
func ClientOpts(dockerArgs []string) ([]client.Opt, error) {
	opts := []client.Opt{client.FromEnv}
	for i := 0; i < len(dockerArgs); i++ {
		name, value, hasValue := strings.Cut(dockerArgs[i], "=")
		takeValue := func() (string, error) {
			if hasValue {
				return value, nil
			}
			if i+1 >= len(dockerArgs) {
				return "", errors.Errorf("docker argument %s requires a value", name)
			}
			i++
			return dockerArgs[i], nil
		}

		switch name {
		case "-H", "--host":
			host, err := takeValue()
			if err != nil {
				return nil, err
			}
			opts = append(opts, client.WithHost(host))
		case "-l", "--log-level":
			if _, err := takeValue(); err != nil {
				return nil, err
			}
		case "-D", "--debug":
		default:
			return nil, errors.Errorf("docker argument %s is not supported with the Engine API; use -H/--host or drop --engine-api", name)
		}
	}
	return opts, nil
}

// New connects to the daemon selected by opts (see ClientOpts) and wraps gw.
// The caller must Close the returned Gateway.
func New(gw reroll.Gateway, opts ...client.Opt) (*Gateway, error) {
	if len(opts) == 0 {
		opts = []client.Opt{client.FromEnv}
	}
	opts = append(opts, client.WithAPIVersionNegotiation())
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "could not create docker client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultInspectTimeout)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, errors.Wrap(err, "docker daemon is not reachable")
	}
	return &Gateway{Gateway: gw, cli: cli, timeout: DefaultInspectTimeout}, nil
}

// Close releases the Engine API client.
func (g *Gateway) Close() error {
	return g.cli.Close()
}

// InspectHealth renders the container's health the same way
// 'docker inspect --format {{json .State.Health}}' does.
func (g *Gateway) InspectHealth(id reroll.InstanceID) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	resp, err := g.cli.ContainerInspect(ctx, string(id))
	if err != nil {
		return "", errors.Wrapf(err, "could not inspect %s", id)
	}
	var health *container.Health
	if resp.ContainerJSONBase != nil && resp.State != nil {
		health = resp.State.Health
	}
	return healthJSON(health)
}

func healthJSON(health *container.Health) (string, error) {
	data, err := json.Marshal(health)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
