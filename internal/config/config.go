// Package config loads reroll settings. Settings are layered: built-in
// defaults, then an ini file, then REROLL_* environment variables. Command
// line flags are applied on top by the caller.
//
// In the ini file, keys in the unnamed default section apply to every
// service; a section named after a service overrides them for that service:
//
//	healthcheck_timeout = 90
//	lock_dir = /run/docker-reroll
//
//	[web]
//	pre_stop_cmd = curl -fsS -X POST http://{id}:8080/drain
//	pre_stop_wait_until_unhealthy = true
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// Config holds everything needed to restart one service.
type Config struct {
	Service string

	Files   []string
	EnvFile string

	PreStopCmd                string
	PreStopWaitUntilUnhealthy bool

	HealthcheckTimeout time.Duration
	Wait               time.Duration
	WaitAfterHealthy   time.Duration

	LockDir   string
	EngineAPI bool
	Debug     bool
}

// Defaults returns a Config with the built-in defaults.
func Defaults() *Config {
	return &Config{
		HealthcheckTimeout: 60 * time.Second,
		Wait:               10 * time.Second,
	}
}

// DefaultPaths are the locations LoadDefault looks for a config file at, in
// order.
func DefaultPaths() []string {
	paths := []string{"reroll.ini"}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "docker-reroll", "config.ini"))
	}
	return append(paths, "/etc/docker-reroll/config.ini")
}

// Load builds the configuration of service from the file at path and the
// environment. An empty path skips the file; a path that does not exist is
// an error.
func Load(path, service string) (*Config, error) {
	cfg := Defaults()
	cfg.Service = service

	if path != "" {
		f, err := ini.Load(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", path)
		}
		if err := cfg.applySection(f.Section(ini.DefaultSection)); err != nil {
			return nil, errors.Wrapf(err, "%s", path)
		}
		if sec, err := f.GetSection(service); err == nil {
			if err := cfg.applySection(sec); err != nil {
				return nil, errors.Wrapf(err, "%s: [%s]", path, service)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault is Load with the first of DefaultPaths that exists, or no file
// at all if none do. REROLL_CONFIG, if set, names the file instead.
func LoadDefault(service string) (*Config, error) {
	if path := os.Getenv("REROLL_CONFIG"); path != "" {
		return Load(path, service)
	}
	for _, path := range DefaultPaths() {
		if _, err := os.Stat(path); err == nil {
			return Load(path, service)
		}
	}
	return Load("", service)
}

func (c *Config) applySection(sec *ini.Section) error {
	var err error
	if sec.HasKey("file") {
		c.Files = sec.Key("file").Strings(",")
	}
	if sec.HasKey("env_file") {
		c.EnvFile = sec.Key("env_file").String()
	}
	if sec.HasKey("pre_stop_cmd") {
		c.PreStopCmd = sec.Key("pre_stop_cmd").String()
	}
	if sec.HasKey("lock_dir") {
		c.LockDir = sec.Key("lock_dir").String()
	}
	for key, target := range map[string]*bool{
		"pre_stop_wait_until_unhealthy": &c.PreStopWaitUntilUnhealthy,
		"engine_api":                    &c.EngineAPI,
		"debug":                         &c.Debug,
	} {
		if !sec.HasKey(key) {
			continue
		}
		if *target, err = sec.Key(key).Bool(); err != nil {
			return errors.Wrap(err, key)
		}
	}
	for key, target := range map[string]*time.Duration{
		"healthcheck_timeout": &c.HealthcheckTimeout,
		"wait":                &c.Wait,
		"wait_after_healthy":  &c.WaitAfterHealthy,
	} {
		if !sec.HasKey(key) {
			continue
		}
		secs, err := sec.Key(key).Int()
		if err != nil {
			return errors.Wrap(err, key)
		}
		*target = time.Duration(secs) * time.Second
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("REROLL_PRE_STOP_CMD"); ok {
		c.PreStopCmd = v
	}
	if v, ok := lookup("REROLL_LOCK_DIR"); ok {
		c.LockDir = v
	}
	for key, target := range map[string]*bool{
		"REROLL_PRE_STOP_WAIT_UNTIL_UNHEALTHY": &c.PreStopWaitUntilUnhealthy,
		"REROLL_ENGINE_API":                    &c.EngineAPI,
		"REROLL_DEBUG":                         &c.Debug,
	} {
		if v, ok := lookup(key); ok && v != "" {
			b, err := parseBool(v)
			if err != nil {
				return errors.Wrap(err, key)
			}
			*target = b
		}
	}
	for key, target := range map[string]*time.Duration{
		"REROLL_HEALTHCHECK_TIMEOUT": &c.HealthcheckTimeout,
		"REROLL_WAIT":                &c.Wait,
		"REROLL_WAIT_AFTER_HEALTHY":  &c.WaitAfterHealthy,
	} {
		if v, ok := lookup(key); ok && v != "" {
			secs, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrapf(err, "%s: expected whole seconds", key)
			}
			*target = time.Duration(secs) * time.Second
		}
	}
	return nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, errors.Errorf("invalid boolean %q", v)
}

// Validate checks that the configuration can be used for a restart.
func (c *Config) Validate() error {
	if c.Service == "" {
		return errors.New("a service is required")
	}
	for name, d := range map[string]time.Duration{
		"healthcheck timeout": c.HealthcheckTimeout,
		"wait":                c.Wait,
		"wait after healthy":  c.WaitAfterHealthy,
	} {
		if d < 0 {
			return errors.Errorf("%s must not be negative, got %v", name, d)
		}
	}
	return nil
}
