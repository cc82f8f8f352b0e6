// Tigerscale is the command-line client for TigerScale filament scales.
//
// It discovers scales over mDNS, shows their live state, and sends the
// device commands: tare, calibration, API key management, cloud push and
// the two resets. Running without arguments launches the interactive
// dashboard.
//
// Usage:
//
//	tigerscale [command] [flags]
//
// See 'tigerscale --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/config"
	"github.com/muurk/tigerscale/internal/logging"
	"github.com/muurk/tigerscale/internal/version"
	"github.com/muurk/tigerscale/internal/wizard/tui"
)

const (
	envDevice = "TIGERSCALE_DEVICE"
	envAPIKey = "TIGERSCALE_API_KEY"
	logFile   = "tigerscale.log"
)

// Global flags and state shared by every command
var (
	deviceAddr   string
	devicePort   int
	outputFormat string
	logLevel     string
	configPath   string

	registry *config.Registry
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tigerscale",
	Short: "TigerScale Client",
	Long: `A client for TigerScale filament scales.

Shows the live weight, tag, calibration and cloud state of a scale and
sends it commands. Scales are found over mDNS unless --device is given.

If no command is specified, the interactive dashboard will launch automatically.`,
	Version:           version.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(false)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&deviceAddr, "device", "", "Scale address or nickname (skips discovery, env "+envDevice+")")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", 80, "Scale HTTP port when --device has none")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, compact, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error; env "+logging.LogLevelEnvVar+")")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is the OS config directory)")

	rootCmd.AddCommand(versionCmd)
}

// setup loads .env, starts logging and reads the registry before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if err := initLogging(cmd); err != nil {
		return err
	}

	var err error
	if configPath != "" {
		registry, err = config.LoadRegistryFrom(configPath)
	} else {
		registry, err = config.LoadRegistry()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if deviceAddr == "" {
		deviceAddr = os.Getenv(envDevice)
	}
	if deviceAddr == "" {
		deviceAddr = registry.Preferences.DefaultDevice
	}
	return nil
}

// initLogging sends logs to stdout, except under the full-screen UI where
// they would corrupt the display and go to a file in the config directory.
func initLogging(cmd *cobra.Command) error {
	if !interactive(cmd) {
		return logging.Initialize(logLevel)
	}

	dir, err := config.GetConfigDir()
	if err != nil {
		return logging.Initialize("", os.DevNull)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	path := filepath.Join(dir, logFile)
	if err := logging.Initialize(logLevel, path); err != nil {
		return err
	}
	logging.Debug("TUI logging to file", zap.String("path", path))
	return nil
}

func interactive(cmd *cobra.Command) bool {
	return !cmd.HasParent() || cmd.Name() == "calibrate"
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Banner("tigerscale"))
	},
}

// runInteractive launches the full-screen UI, connected straight to the
// scale when one was named.
func runInteractive(calibrate bool) error {
	catalog, err := registry.Catalog()
	if err != nil {
		return err
	}
	prefs := registry.Preferences

	opts := tui.Options{
		Catalog:      catalog,
		PollInterval: prefs.PollInterval(),
		HoldDuration: prefs.HoldDuration(),
		ScanTimeout:  prefs.DiscoverTimeoutDuration(),
		Calibrate:    calibrate,
	}
	if deviceAddr != "" || calibrate {
		dev, err := resolveDevice(prefs.DiscoverTimeoutDuration())
		if err != nil {
			return err
		}
		opts.Device = dev
	}
	return tui.Run(opts)
}
