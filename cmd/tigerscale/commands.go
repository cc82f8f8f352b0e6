package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/command"
	"github.com/muurk/tigerscale/internal/device"
	"github.com/muurk/tigerscale/internal/discovery"
	"github.com/muurk/tigerscale/internal/logging"
	"github.com/muurk/tigerscale/internal/publish"
	"github.com/muurk/tigerscale/internal/session"
	"github.com/muurk/tigerscale/internal/ui"
)

// commandTimeout bounds one request to the scale.
const commandTimeout = 15 * time.Second

// Command flags
var (
	scanTimeout int
	assumeYes   bool
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(tareCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(setFactorCmd)
	rootCmd.AddCommand(setAPIKeyCmd)
	rootCmd.AddCommand(deleteAPIKeyCmd)
	rootCmd.AddCommand(pushWeightCmd)
	rootCmd.AddCommand(resetWiFiCmd)
	rootCmd.AddCommand(factoryResetCmd)
}

// scanCmd discovers scales on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for TigerScale devices on the network",
	Long: `Scan for TigerScale devices using mDNS/DNS-SD discovery.

Scales announce themselves as tigerscale.local. Every scale found is listed
with its address and, when you gave it one, its nickname.`,
	Example: `  # Scan for the configured time (5 seconds by default)
  tigerscale scan

  # Longer scan for busy networks
  tigerscale scan --timeout 15`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (default from config)")
}

func runScan(cmd *cobra.Command, args []string) error {
	timeout := registry.Preferences.DiscoverTimeoutDuration()
	if scanTimeout > 0 {
		timeout = time.Duration(scanTimeout) * time.Second
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.Println(fmt.Sprintf("Scanning for TigerScale devices (timeout: %s)...", timeout))
	p.Newline()

	devices, err := discovery.ScanForDevices(cmd.Context(), timeout)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		p.PrintResult(ui.NewWarningResult("No scales found"))
		p.Println("Troubleshooting:")
		p.Println("  - Ensure the scale is powered on and joined to your WiFi")
		p.Println("  - Check that this computer is on the same network")
		p.Println("  - Try increasing --timeout for slower networks")
		p.Println("  - Use --device to give the address directly if discovery fails")
		return nil
	}

	p.Println(fmt.Sprintf("Found %d scale(s):", len(devices)))
	p.Newline()
	for i, dev := range devices {
		name := dev.Hostname
		if d := registry.GetDevice(dev.Addr()); d != nil && d.Nickname != "" {
			name = fmt.Sprintf("%s (%s)", d.Nickname, dev.Hostname)
		}
		if dev.Simulated() {
			name += " [simulator]"
		}
		p.Println(fmt.Sprintf("%d. %s", i+1, name))
		p.Println(fmt.Sprintf("   Address: %s", dev.Addr()))
		if d := registry.GetDevice(dev.Addr()); d != nil && !d.LastSeen.IsZero() {
			p.Println(fmt.Sprintf("   Last seen: %s", humanize.Time(d.LastSeen)))
		}
		p.Newline()
	}

	p.Println("Use 'tigerscale show --device <address>' to view a scale")
	p.Println("Use 'tigerscale' for the interactive dashboard")
	return nil
}

// showCmd displays the current state of a scale
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the state of a scale",
	Long: `Read the scale's status once and display it: weight, tag, calibration
factor, API key, cloud connection, cloud push and uptime.`,
	Example: `  # Show with auto-discovery
  tigerscale show

  # Show a specific scale
  tigerscale show --device 192.168.1.40

  # One line, for scripts
  tigerscale show --format compact

  # JSON output
  tigerscale show --format json`,
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	sess, dev, err := openSession()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	if err := sess.PollOnce(ctx); err != nil {
		p := ui.NewPrinter(cmd.OutOrStdout())
		p.PrintResult(ui.NewFailureResult("Cannot read the scale at "+dev.Addr(), err, ui.TroubleshootingTips(err)))
		return fmt.Errorf("failed to read status: %s", device.GetShortErrorMessage(err))
	}

	view := ui.StatusView{
		Addr:   dev.Addr(),
		State:  sess.State.State(),
		Health: sess.Health(),
		Now:    time.Now(),
	}
	return printStatus(cmd, view)
}

func printStatus(cmd *cobra.Command, view ui.StatusView) error {
	out := cmd.OutOrStdout()
	switch outputFormat {
	case "compact":
		fmt.Fprintln(out, view.RenderCompact())
	case "json":
		data, err := json.MarshalIndent(publish.NewStatePayload(view.State), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case "detailed":
		fallthrough
	default:
		p := ui.NewPrinter(out)
		p.Println(view.RenderDetailed(p.Width()))
	}
	return nil
}

// tareCmd zeroes the scale
var tareCmd = &cobra.Command{
	Use:   "tare",
	Short: "Zero the scale",
	Long: `Tare the scale: the current load becomes the new zero.

The interactive dashboard asks you to hold the tare key for a second;
this command tares immediately.`,
	Example: `  tigerscale tare --device tigerscale.local`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDeviceCommand(cmd, "Tare", nil, func(ctx context.Context, d *command.Dispatcher) command.Outcome {
			return d.Tare(ctx)
		})
	},
}

// calibrateCmd opens the calibration wizard
var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Calibrate the scale against a reference weight",
	Long: `Launch the calibration wizard.

The wizard tares the empty scale, asks you to put a reference of known
weight on it (an empty spool from the list or any weight of at least
200 g), and sends the corrected calibration factor.

Extra reference weights can be added under "references" in the config file.`,
	Example: `  tigerscale calibrate
  tigerscale calibrate --device 192.168.1.40`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(true)
	},
}

// setFactorCmd writes a calibration factor directly
var setFactorCmd = &cobra.Command{
	Use:   "set-factor <factor>",
	Short: "Set the calibration factor",
	Long: `Send a calibration factor to the scale.

Use this to restore a known factor. To find a new one, use 'tigerscale calibrate'.`,
	Example: `  tigerscale set-factor 421.37`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		factor, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid factor %q: %w", args[0], err)
		}
		params := []ui.Param{{Key: "Factor", Value: args[0]}}
		return runDeviceCommand(cmd, "Set Calibration Factor", params, func(ctx context.Context, d *command.Dispatcher) command.Outcome {
			return d.SetCalibrationFactor(ctx, factor)
		})
	},
}

// setAPIKeyCmd stores a TigerTag API key on the scale
var setAPIKeyCmd = &cobra.Command{
	Use:   "set-apikey [key]",
	Short: "Set the TigerTag API key",
	Long: `Send a TigerTag API key to the scale, which checks it with the cloud.

The key can also come from the ` + envAPIKey + ` environment variable or a .env file,
which keeps it out of your shell history.`,
	Example: `  tigerscale set-apikey 0123abcd
  ` + envAPIKey + `=0123abcd tigerscale set-apikey`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := os.Getenv(envAPIKey)
		if len(args) == 1 {
			key = args[0]
		}
		params := []ui.Param{{Key: "Key", Value: maskKey(key)}}
		return runDeviceCommand(cmd, "Set API Key", params, func(ctx context.Context, d *command.Dispatcher) command.Outcome {
			return d.SetAPIKey(ctx, key)
		})
	},
}

// deleteAPIKeyCmd removes the API key from the scale
var deleteAPIKeyCmd = &cobra.Command{
	Use:   "delete-apikey",
	Short: "Delete the TigerTag API key",
	Long: `Make the scale forget its TigerTag API key. Weights are no longer sent
to the cloud until a new key is set.`,
	Example: `  tigerscale delete-apikey
  tigerscale delete-apikey --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm := ui.DeleteAPIKeyConfirmation(cmd.InOrStdin(), cmd.OutOrStdout())
		if assumeYes {
			confirm = ui.AssumeYes()
		}
		return runDeviceCommand(cmd, "Delete API Key", nil, func(ctx context.Context, d *command.Dispatcher) command.Outcome {
			return d.DeleteAPIKey(ctx, confirm)
		})
	},
}

// pushWeightCmd sends a weight to the cloud for the tag on the scale
var pushWeightCmd = &cobra.Command{
	Use:   "push-weight <grams>",
	Short: "Send a weight to the TigerTag cloud",
	Long: `Ask the scale to send a weight for the tag currently on it to the
TigerTag cloud. The weight is rounded to whole grams.`,
	Example: `  tigerscale push-weight 812`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		grams, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid weight %q: %w", args[0], err)
		}
		params := []ui.Param{{Key: "Weight", Value: args[0] + " g"}}
		return runDeviceCommand(cmd, "Push Weight", params, func(ctx context.Context, d *command.Dispatcher) command.Outcome {
			return d.PushWeight(ctx, grams)
		})
	},
}

// resetWiFiCmd makes the scale forget its network
var resetWiFiCmd = &cobra.Command{
	Use:   "reset-wifi",
	Short: "Erase the scale's WiFi credentials",
	Long: `Make the scale forget its WiFi network. It restarts in setup mode and
must be configured again through its access point.`,
	Example: `  tigerscale reset-wifi
  tigerscale reset-wifi --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm := ui.ResetWiFiConfirmation(cmd.InOrStdin(), cmd.OutOrStdout())
		if assumeYes {
			confirm = ui.AssumeYes()
		}
		return runDeviceCommand(cmd, "Reset WiFi", nil, func(ctx context.Context, d *command.Dispatcher) command.Outcome {
			return d.ResetWiFi(ctx, confirm)
		})
	},
}

// factoryResetCmd erases every setting on the scale
var factoryResetCmd = &cobra.Command{
	Use:   "factory-reset",
	Short: "Restore the scale's factory settings",
	Long: `Erase the calibration factor, the API key and the WiFi credentials.
The scale restarts in setup mode.`,
	Example: `  tigerscale factory-reset
  tigerscale factory-reset --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm := ui.FactoryResetConfirmation(cmd.InOrStdin(), cmd.OutOrStdout())
		if assumeYes {
			confirm = ui.AssumeYes()
		}
		return runDeviceCommand(cmd, "Factory Reset", nil, func(ctx context.Context, d *command.Dispatcher) command.Outcome {
			return d.FactoryReset(ctx, confirm)
		})
	},
}

func init() {
	resetWiFiCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	factoryResetCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	deleteAPIKeyCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
}

// outcomeJSON is the --format json form of a command result.
type outcomeJSON struct {
	ID         string  `json:"id,omitempty"`
	Command    string  `json:"command"`
	Kind       string  `json:"kind"`
	Validation string  `json:"validation,omitempty"`
	Message    string  `json:"message"`
	Error      string  `json:"error,omitempty"`
	Factor     float64 `json:"factor,omitempty"`
	Account    string  `json:"displayName,omitempty"`
}

// runDeviceCommand resolves the scale, prints the header, runs one
// dispatcher command and prints its outcome. A failed outcome is returned
// as an error so the process exits non-zero.
func runDeviceCommand(cmd *cobra.Command, title string, params []ui.Param, run func(context.Context, *command.Dispatcher) command.Outcome) error {
	sess, dev, err := openSession()
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if outputFormat != "json" {
		params = append([]ui.Param{{Key: "Scale", Value: dev.Addr()}}, params...)
		p.PrintHeader(ui.NewHeader(title, cmd.CommandPath()+" "+strings.Join(redactArgs(cmd), " "), params...))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()
	o := run(ctx, sess.Commands)

	logging.Info("Command finished",
		zap.String("command", string(o.Command)),
		zap.String("id", o.ID),
		zap.Stringer("kind", o.Kind),
		zap.String("device", dev.Addr()),
	)

	if outputFormat == "json" {
		res := outcomeJSON{
			ID:      o.ID,
			Command: string(o.Command),
			Kind:    o.Kind.String(),
			Message: o.Message(),
			Factor:  o.Factor,
			Account: o.DisplayName,
		}
		if o.Kind == command.KindValidation {
			res.Validation = o.Validation.String()
		}
		if o.Err != nil {
			res.Error = o.Err.Error()
		}
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		p.Println(string(data))
	} else {
		p.PrintResult(ui.ResultFromOutcome(o))
	}

	if !o.OK() {
		return fmt.Errorf("%s", o.Message())
	}
	return nil
}

// openSession builds a session for the selected scale. Nothing runs in the
// background; callers poll or dispatch explicitly.
func openSession() (*session.Session, *discovery.Device, error) {
	dev, err := resolveDevice(registry.Preferences.DiscoverTimeoutDuration())
	if err != nil {
		return nil, nil, err
	}
	sess := session.New(newClient(dev), session.Options{
		PollInterval: registry.Preferences.PollInterval(),
	})
	return sess, dev, nil
}

func newClient(dev *discovery.Device) *device.Client {
	return device.NewClient(dev.IP, dev.Port)
}

// resolveDevice picks the scale to talk to: --device (address or
// nickname), otherwise the only scale found by discovery.
func resolveDevice(timeout time.Duration) (*discovery.Device, error) {
	var dev *discovery.Device

	if deviceAddr != "" {
		addr := registry.ResolveDevice(deviceAddr)
		parsed, err := discovery.ParseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid --device %q: %w", deviceAddr, err)
		}
		if _, _, err := net.SplitHostPort(strings.TrimSpace(addr)); err != nil {
			parsed.Port = devicePort
		}
		dev = parsed
	} else {
		fmt.Fprintf(os.Stderr, "No --device given, scanning for scales (timeout: %s)...\n", timeout)

		devices, err := discovery.ScanForDevices(context.Background(), timeout)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		switch len(devices) {
		case 0:
			return nil, fmt.Errorf("no scales found; use --device to give the address")
		case 1:
			dev = devices[0]
			fmt.Fprintf(os.Stderr, "Found scale at %s\n\n", dev.Addr())
		default:
			fmt.Fprintf(os.Stderr, "Found %d scales:\n", len(devices))
			for _, d := range devices {
				fmt.Fprintf(os.Stderr, "  - %s\n", d)
			}
			return nil, fmt.Errorf("multiple scales found; use --device to pick one")
		}
	}

	registry.UpdateDeviceLastSeen(dev.Addr(), time.Now())
	if err := saveRegistry(); err != nil {
		logging.Warn("Failed to save config", zap.Error(err))
	}
	return dev, nil
}

func saveRegistry() error {
	if configPath != "" {
		return registry.SaveTo(configPath)
	}
	return registry.Save()
}

// redactArgs returns the command line arguments with API keys masked.
func redactArgs(cmd *cobra.Command) []string {
	args := cmd.Flags().Args()
	if cmd.Name() != "set-apikey" {
		return args
	}
	masked := make([]string, len(args))
	for i, a := range args {
		masked[i] = maskKey(a)
	}
	return masked
}

// maskKey keeps the last four characters of an API key.
func maskKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
