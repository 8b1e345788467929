package model

import (
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"

	DefaultCommandFile = "command.tmp"
	DefaultArgsFile    = "args.tmp"
	DefaultDrainDelay  = 2 * time.Second
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
}

type Config struct {
	Version int      `json:"version" yaml:"version"` // fixed 0 for now
	Service Service  `json:"service" yaml:"service"`
	Monitor *Monitor `json:"monitor,omitempty" yaml:"monitor,omitempty"`
}

type Service struct {
	Verbose *bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Log     *string `json:"log,omitempty" yaml:"log,omitempty"` // "stderr"|"stdout"|"discard"|path
	Dir     *string `json:"dir,omitempty" yaml:"dir,omitempty"` // hunts and mailbox live here
}

// Monitor tunes the long-lived worker process.
type Monitor struct {
	DrainDelay  *string `json:"drain_delay,omitempty" yaml:"drain_delay,omitempty"`
	CommandFile *string `json:"command_file,omitempty" yaml:"command_file,omitempty"`
	ArgsFile    *string `json:"args_file,omitempty" yaml:"args_file,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version: 0,
		Service: Service{
			Verbose: ptr(false),
			Log:     ptr(LogStderr),
			Dir:     ptr("."),
		},
		Monitor: &Monitor{
			DrainDelay:  ptr(DefaultDrainDelay.String()),
			CommandFile: ptr(DefaultCommandFile),
			ArgsFile:    ptr(DefaultArgsFile),
		},
	}
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("hub.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),
		cue.Concrete(true),
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}
	return out, nil
}

func (s Service) IsVerbose() bool {
	return get(s.Verbose)
}

func (s Service) LogDest() string {
	if s.Log == nil {
		return LogStderr
	}
	return *s.Log
}

func (s Service) WorkDir() string {
	if s.Dir == nil {
		return "."
	}
	return *s.Dir
}

// DrainDelay is how long the monitor lingers between the stop notice and
// its exit.
func (c Config) DrainDelay() time.Duration {
	if c.Monitor == nil || c.Monitor.DrainDelay == nil {
		return DefaultDrainDelay
	}
	d, err := time.ParseDuration(*c.Monitor.DrainDelay)
	if err != nil {
		return DefaultDrainDelay
	}
	return d
}

func (c Config) CommandFile() string {
	if c.Monitor == nil || c.Monitor.CommandFile == nil {
		return DefaultCommandFile
	}
	return *c.Monitor.CommandFile
}

func (c Config) ArgsFile() string {
	if c.Monitor == nil || c.Monitor.ArgsFile == nil {
		return DefaultArgsFile
	}
	return *c.Monitor.ArgsFile
}

func ptr[T any](v T) *T {
	return &v
}

func get[T any](pt *T) T {
	var zero T
	if pt == nil {
		return zero
	}
	return *pt
}
