package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/CZERTAINLY/treasure-hub/internal/log"
	"github.com/CZERTAINLY/treasure-hub/internal/model"
	"github.com/CZERTAINLY/treasure-hub/internal/monitor"
	"github.com/CZERTAINLY/treasure-hub/internal/score"
	"github.com/CZERTAINLY/treasure-hub/internal/service"
	"github.com/CZERTAINLY/treasure-hub/internal/treasure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

const configEnv = "HUBCONFIG"

var (
	userConfigPath string // /default/config/path/hub on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config
	closeLog       = func() error { return nil }

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "hub")
}

func main() {
	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is hub.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initHub
	rootCmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		return closeLog()
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(treasureCmd)
	rootCmd.AddCommand(huntCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("hub failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "hub",
	Short:        "Treasure hub - interactive supervisor of the treasure monitor",
	SilenceUsage: true,
	RunE:         doRun,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run starts the interactive hub",
	Args:  cobra.NoArgs,
	RunE:  doRun,
}

var monitorCmd = &cobra.Command{
	Use:    "_monitor <fd>",
	Short:  "internal command",
	Args:   cobra.ExactArgs(1),
	RunE:   doMonitor,
	Hidden: true,
}

var scoreCmd = &cobra.Command{
	Use:    "_score <hunt>",
	Short:  "internal command",
	Args:   cobra.ExactArgs(1),
	RunE:   doScore,
	Hidden: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a hub",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("hub: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config: %s\n", configPath)
		}
		fmt.Printf("hub:    %s\n", info.Main.Version)
		fmt.Printf("go:     %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit: %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:   %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:  %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func doRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.ContextAttrs(ctx, roleAttrs("run"))

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating hub executable: %w", err)
	}
	// helpers must see the same configuration
	env := map[string]string{"hubconfig": configPath}
	if flagVerbose {
		env["hub_verbose"] = "true"
	}
	helpers := service.DefaultConfig(exe, env)

	slog.DebugContext(ctx, "hub started", "dir", config.Service.WorkDir())
	return service.Run(ctx, config, helpers, os.Stdin, os.Stdout, isTerminal(os.Stdin))
}

func doMonitor(cmd *cobra.Command, args []string) error {
	ctx := log.ContextAttrs(cmd.Context(), roleAttrs("_monitor"))
	return monitor.Serve(ctx, config, args[0])
}

func doScore(cmd *cobra.Command, args []string) error {
	store := treasure.Open(config.Service.WorkDir())
	if code := score.Main(os.Stdout, store, args[0]); code != 0 {
		_ = closeLog()
		os.Exit(code)
	}
	return nil
}

func roleAttrs(role string) slog.Attr {
	return slog.Group("hub",
		slog.String("cmd", role),
		slog.Int("pid", os.Getpid()),
	)
}

func initHub(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv(configEnv); ok && envConfig != "" {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{".", userConfigPath} {
			path := filepath.Join(d, "hub.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		config = model.DefaultConfig()
		configPath = filepath.Join(userConfigPath, "hub.yaml")
		if err := storeConfig(configPath, config); err != nil {
			return err
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.CueErrDetails(err) {
				slog.Error("invalid configuration", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	var err error
	config, err = service.EnvOverrides(viper.New(), config)
	if err != nil {
		return err
	}

	// --verbose has a precedence over config file
	if flagVerbose {
		verbose := true
		config.Service.Verbose = &verbose
	}

	closeLog, err = log.Setup(config.Service)
	if err != nil {
		return err
	}

	slog.Debug("hub run", "configPath", configPath)
	slog.Debug("hub run", "config", config)
	return nil
}

func storeConfig(path string, cfg model.Config) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return enc.Close()
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
