package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"github.com/ngrok/reroll"
	"github.com/ngrok/reroll/internal/compose"
	"github.com/ngrok/reroll/internal/config"
	"github.com/ngrok/reroll/internal/engine"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/utils/exec"
)

// Execute runs docker-reroll with the given arguments (without the program
// name) and returns the process exit status.
func Execute(args []string) int {
	return execute(args, os.Stdout, os.Stderr)
}

// reportedError is an error whose diagnostic has already been printed.
type reportedError struct {
	err error
}

func (e reportedError) Error() string {
	return e.err.Error()
}

func execute(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == metadataCommand {
		if err := writeMetadata(stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	dockerArgs, pluginArgs := splitPluginArgs(args)
	cmd := newCommand(dockerArgs, stderr)
	cmd.SetArgs(pluginArgs)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		if _, ok := err.(reportedError); !ok {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			fmt.Fprintf(stderr, "Run 'docker %s --help' for usage.\n", pluginName)
		}
		return 1
	}
	return 0
}

func newCommand(dockerArgs []string, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reroll [OPTIONS] SERVICE",
		Short: "Restart compose service with no downtime",
		Long: `Restart a compose service with no downtime.

The service is scaled to twice its instance count. Once the new instances are
healthy (or, without a health check, once --wait seconds have passed) the old
instances are stopped and removed. If the new instances do not become healthy
within --healthcheck-timeout seconds they are removed again and the old ones
keep serving.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), args[0])
			if err != nil {
				return err
			}
			if err := run(cfg, dockerArgs); err != nil {
				printStatus(stderr, cfg.Service, err)
				return reportedError{err}
			}
			printStatus(stderr, cfg.Service, nil)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringArrayP("file", "f", nil, "Compose configuration file")
	flags.String("env-file", "", "Specify an alternate environment file")
	flags.String("pre-stop-cmd", "", "Command to run before stopping old container. "+reroll.IDPlaceholder+" will be replaced with container id")
	flags.Bool("pre-stop-wait-until-unhealthy", false, "Assuming there is a health check, after running the pre-stop command, wait until the old container is unhealthy before stopping it")
	flags.Int("healthcheck-timeout", 60, "Health check timeout (in seconds)")
	flags.Int("wait", 10, "Wait X seconds before stopping old container when there is no health check")
	flags.Int("wait-after-healthy", 0, "When there is a health check and it succeeds, wait additional X seconds before stopping old container")
	flags.String("config", "", "Config file (default: first of "+fmt.Sprint(config.DefaultPaths())+" that exists)")
	flags.String("lock-dir", "", "Hold a lock on SERVICE in this directory while restarting")
	flags.Bool("engine-api", false, "Inspect container health through the Docker Engine API instead of the docker command")
	flags.Bool("debug", false, "Log every step of the restart")
	return cmd
}

// resolveConfig layers explicitly set flags over the config file and
// environment.
func resolveConfig(flags *pflag.FlagSet, service string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path, _ := flags.GetString("config"); path != "" {
		cfg, err = config.Load(path, service)
	} else {
		cfg, err = config.LoadDefault(service)
	}
	if err != nil {
		return nil, err
	}

	if flags.Changed("file") {
		cfg.Files, _ = flags.GetStringArray("file")
	}
	if flags.Changed("env-file") {
		cfg.EnvFile, _ = flags.GetString("env-file")
	}
	if flags.Changed("pre-stop-cmd") {
		cfg.PreStopCmd, _ = flags.GetString("pre-stop-cmd")
	}
	if flags.Changed("pre-stop-wait-until-unhealthy") {
		cfg.PreStopWaitUntilUnhealthy, _ = flags.GetBool("pre-stop-wait-until-unhealthy")
	}
	if flags.Changed("lock-dir") {
		cfg.LockDir, _ = flags.GetString("lock-dir")
	}
	if flags.Changed("engine-api") {
		cfg.EngineAPI, _ = flags.GetBool("engine-api")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	for name, target := range map[string]*time.Duration{
		"healthcheck-timeout": &cfg.HealthcheckTimeout,
		"wait":                &cfg.Wait,
		"wait-after-healthy":  &cfg.WaitAfterHealthy,
	} {
		if flags.Changed(name) {
			secs, _ := flags.GetInt(name)
			*target = time.Duration(secs) * time.Second
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config, dockerArgs []string) error {
	l := newLogger(os.Stderr, cfg.Debug).New("run", uuid.NewString())
	l.Debug("starting", "config", fmt.Sprintf("%+v", *cfg), "docker_args", dockerArgs)

	var engineOpts []client.Opt
	if cfg.EngineAPI {
		var err error
		if engineOpts, err = engine.ClientOpts(dockerArgs); err != nil {
			return err
		}
	}

	cli, err := compose.Detect(exec.New(), compose.Options{
		Files:      cfg.Files,
		EnvFile:    cfg.EnvFile,
		DockerArgs: dockerArgs,
		Output:     os.Stderr,
		Logger:     l,
	})
	if err != nil {
		return err
	}

	var gw reroll.Gateway = cli
	if cfg.EngineAPI {
		eng, err := engine.New(cli, engineOpts...)
		if err != nil {
			return err
		}
		defer eng.Close()
		gw = eng
	}

	r, err := reroll.New(gw, cfg.Service,
		reroll.WithLogger(l),
		reroll.WithHookRunner(cli),
		reroll.WithHealthcheckTimeout(cfg.HealthcheckTimeout),
		reroll.WithFallbackWait(cfg.Wait),
		reroll.WithSettleWait(cfg.WaitAfterHealthy),
		reroll.WithPreStopCommand(cfg.PreStopCmd),
		reroll.WithWaitUntilUnhealthy(cfg.PreStopWaitUntilUnhealthy),
		reroll.WithLockDir(cfg.LockDir),
	)
	if err != nil {
		return err
	}
	return r.Run()
}
