package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/CZERTAINLY/treasure-hub/internal/model"
)

// Config describes the helper executables the supervisor launches.
type Config struct {
	Monitor CommandConfig
	Score   CommandConfig
}

type CommandConfig struct {
	Path string
	Args []string
	Env  map[string]string
}

// DefaultConfig runs both roles from the hidden subcommands of exe. The
// env entries are passed to both helpers.
func DefaultConfig(exe string, env map[string]string) Config {
	return Config{
		Monitor: CommandConfig{Path: exe, Args: []string{"_monitor"}, Env: env},
		Score:   CommandConfig{Path: exe, Args: []string{"_score"}, Env: env},
	}
}

// Cmd builds the command; env keys are upper-cased, values passed as is.
func (c CommandConfig) Cmd() Command {
	env := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		env = append(env, strings.ToUpper(k)+"="+v)
	}
	return Command{
		Path: c.Path,
		Args: c.Args,
		Env:  env,
	}
}

// EnvOverrides applies HUB_VERBOSE, HUB_DIR and HUB_DRAIN_DELAY on top of
// cfg.
func EnvOverrides(v *viper.Viper, cfg model.Config) (model.Config, error) {
	v.SetEnvPrefix("hub")
	for _, key := range []string{"verbose", "dir", "drain_delay"} {
		if err := v.BindEnv(key); err != nil {
			return cfg, err
		}
	}

	if v.IsSet("verbose") {
		verbose := v.GetBool("verbose")
		cfg.Service.Verbose = &verbose
	}
	if v.IsSet("dir") {
		dir := v.GetString("dir")
		cfg.Service.Dir = &dir
	}
	if v.IsSet("drain_delay") {
		delay := v.GetString("drain_delay")
		if _, err := time.ParseDuration(delay); err != nil {
			return cfg, fmt.Errorf("parsing HUB_DRAIN_DELAY: %w", err)
		}
		mon := model.Monitor{}
		if cfg.Monitor != nil {
			mon = *cfg.Monitor
		}
		mon.DrainDelay = &delay
		cfg.Monitor = &mon
	}
	return cfg, nil
}
