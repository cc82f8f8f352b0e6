// Tigerscale-sim emulates a TigerScale on the local network.
//
// It serves the same HTTP and WebSocket API as the scale firmware, keeps
// its preferences in a bbolt file, and can announce itself over mDNS so
// that 'tigerscale scan' finds it. Extra endpoints under /sim/ place a
// load or present a tag, standing in for the hardware.
//
// Usage:
//
//	tigerscale-sim serve [flags]
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/muurk/tigerscale/internal/logging"
	"github.com/muurk/tigerscale/internal/simulator"
	"github.com/muurk/tigerscale/internal/version"
)

// Serve flags
var (
	host       string
	port       int
	storePath  string
	advertise  bool
	keys       []string
	trueFactor float64
	autoPush   int
	scaleIP    string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "tigerscale-sim",
	Short:   "TigerScale device simulator",
	Long:    `An emulated TigerScale for developing and testing clients without the hardware.`,
	Version: version.Version,

	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the emulated scale",
	Long: `Serve the scale's HTTP API (/api/...) and push channel (/ws) until
interrupted.

The emulated load cell starts with the firmware's default calibration
factor and reads a few percent heavy until calibrated. Use the /sim/
endpoints to drive it:

  POST   /sim/load   {"grams": 250}
  POST   /sim/tag    {"uid": "04AABBCCDD"}
  DELETE /sim/tag`,
	Example: `  # Serve on port 8080 with persisted prefs
  tigerscale-sim serve --port 8080 --store sim.db

  # Announce over mDNS and accept one API key
  tigerscale-sim serve --advertise --key 0123abcd=Alice`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	serveCmd.Flags().StringVar(&host, "host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().IntVar(&port, "port", 80, "HTTP port")
	serveCmd.Flags().StringVar(&storePath, "store", "", "bbolt file for persisted preferences (default in memory)")
	serveCmd.Flags().BoolVar(&advertise, "advertise", false, "Announce the simulator over mDNS")
	serveCmd.Flags().StringArrayVar(&keys, "key", nil, "Accepted API key as key=Display Name (repeatable; default accepts any key)")
	serveCmd.Flags().Float64Var(&trueFactor, "true-factor", simulator.DefaultTrueFactor, "Calibration factor that reads true grams")
	serveCmd.Flags().IntVar(&autoPush, "auto-push", simulator.DefaultAutoPushDelay, "Seconds before a tag's weight is pushed to the cloud (negative disables)")
	serveCmd.Flags().StringVar(&scaleIP, "ip", "", "IP address the scale reports in its status")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logging.Sync()

	validKeys, err := parseKeys(keys)
	if err != nil {
		return err
	}

	srv, err := simulator.New(&simulator.Config{
		Host:      host,
		Port:      port,
		StorePath: storePath,
		Advertise: advertise,
		Scale: simulator.ScaleConfig{
			TrueFactor:    trueFactor,
			ValidKeys:     validKeys,
			AutoPushDelay: autoPush,
			IP:            scaleIP,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create simulator: %w", err)
	}

	fmt.Printf("%s listening on %s:%d\n", version.Banner("tigerscale-sim"), host, port)
	return srv.Start()
}

// parseKeys turns "key=Name" flags into the accepted key set.
func parseKeys(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	keys := make(map[string]string, len(values))
	for _, v := range values {
		key, name, _ := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid --key %q: key is empty", v)
		}
		keys[key] = strings.TrimSpace(name)
	}
	return keys, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Banner("tigerscale-sim"))
	},
}
