package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	cmd := newCommand(nil, &bytes.Buffer{})
	require.NoError(t, cmd.ParseFlags(args))
	return cmd.Flags()
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reroll.ini")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestResolveConfigDefaults(t *testing.T) {
	path := writeConfig(t, "")
	fs := parseFlags(t, "--config", path)

	cfg, err := resolveConfig(fs, "web")
	require.NoError(t, err)
	require.Equal(t, "web", cfg.Service)
	require.Equal(t, 60*time.Second, cfg.HealthcheckTimeout)
	require.Equal(t, 10*time.Second, cfg.Wait)
	require.Zero(t, cfg.WaitAfterHealthy)
	require.Empty(t, cfg.Files)
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
healthcheck_timeout = 90
wait = 5
pre_stop_cmd = echo {id}
file = compose.yml
`)
	fs := parseFlags(t,
		"--config", path,
		"--healthcheck-timeout", "30",
		"-f", "a.yml", "-f", "b.yml",
		"--wait-after-healthy", "3",
		"--pre-stop-wait-until-unhealthy",
	)

	cfg, err := resolveConfig(fs, "web")
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.HealthcheckTimeout)
	require.Equal(t, 5*time.Second, cfg.Wait, "unset flag keeps the file value")
	require.Equal(t, 3*time.Second, cfg.WaitAfterHealthy)
	require.Equal(t, []string{"a.yml", "b.yml"}, cfg.Files)
	require.Equal(t, "echo {id}", cfg.PreStopCmd)
	require.True(t, cfg.PreStopWaitUntilUnhealthy)
}

func TestResolveConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("REROLL_WAIT", "7")
	t.Setenv("REROLL_LOCK_DIR", "/from/env")
	fs := parseFlags(t, "--config", writeConfig(t, ""), "--lock-dir", "/from/flag")

	cfg, err := resolveConfig(fs, "web")
	require.NoError(t, err)
	require.Equal(t, 7*time.Second, cfg.Wait)
	require.Equal(t, "/from/flag", cfg.LockDir)
}

func TestResolveConfigRejectsNegative(t *testing.T) {
	fs := parseFlags(t, "--config", writeConfig(t, ""), "--wait", "-1")

	_, err := resolveConfig(fs, "web")
	require.Error(t, err)
}

func TestResolveConfigMissingFile(t *testing.T) {
	fs := parseFlags(t, "--config", filepath.Join(t.TempDir(), "missing.ini"))

	_, err := resolveConfig(fs, "web")
	require.Error(t, err)
}

func TestCommandRequiresService(t *testing.T) {
	cmd := newCommand(nil, &bytes.Buffer{})
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.Error(t, cmd.Execute())
}

func TestPrintStatus(t *testing.T) {
	defer func(v bool) { color.NoColor = v }(color.NoColor)
	color.NoColor = true

	var buf bytes.Buffer
	printStatus(&buf, "web", nil)
	require.Equal(t, "rerolled web\n", buf.String())

	buf.Reset()
	printStatus(&buf, "web", errors.New("boom"))
	require.Equal(t, "reroll of web failed: boom\n", buf.String())
}

func runExecute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	defer func(v bool) { color.NoColor = v }(color.NoColor)
	color.NoColor = true

	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestExecuteMetadata(t *testing.T) {
	code, stdout, stderr := runExecute(t, metadataCommand)
	require.Equal(t, 0, code)
	require.Empty(t, stderr)
	require.Contains(t, stdout, `"SchemaVersion": "0.1.0"`)
	require.Contains(t, stdout, `"Vendor": "ngrok"`)
}

func TestExecuteUsageErrors(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		message string
	}{
		{name: "no service", args: []string{"reroll"}, message: "accepts 1 arg(s), received 0"},
		{name: "unknown flag", args: []string{"reroll", "--bogus", "web"}, message: "unknown flag: --bogus"},
		{name: "bad flag value", args: []string{"reroll", "--wait", "soon", "web"}, message: `invalid argument "soon"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, stderr := runExecute(t, tc.args...)
			require.Equal(t, 1, code)
			require.Contains(t, stderr, "Error: ")
			require.Contains(t, stderr, tc.message)
			require.Contains(t, stderr, "docker reroll --help")
		})
	}
}

func TestExecuteConfigError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.ini")
	code, _, stderr := runExecute(t, "reroll", "--config", missing, "web")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "failed to load config file "+missing)
}

func TestExecuteEngineAPIWithDockerContext(t *testing.T) {
	code, _, stderr := runExecute(t,
		"--context", "prod", "reroll",
		"--config", writeConfig(t, ""),
		"--engine-api", "web",
	)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "reroll of web failed: docker argument --context is not supported with the Engine API")
	require.NotContains(t, stderr, "Error: ")
}
