package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/muurk/tigerscale/internal/config"
	"github.com/muurk/tigerscale/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
	Long: `Manage the TigerScale configuration file: scale nicknames, preferences
and extra calibration reference weights.

The scale itself keeps its calibration factor and API key; neither is
stored here.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example configuration file",
	Long:  `Write an example configuration file. An existing file is left alone.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := config.CreateDefaultConfig(path); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintResult(ui.NewSuccessResult("Configuration written", ui.Param{Key: "Path", Value: path}))
		return nil
	},
}

var configNicknameCmd = &cobra.Command{
	Use:   "nickname <address> <name>",
	Short: "Give a scale a nickname",
	Long: `Give a scale a nickname that --device accepts in place of its address.
An empty name removes the nickname.`,
	Example: `  tigerscale config nickname 192.168.1.40 workshop
  tigerscale --device workshop show`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry.SetDeviceNickname(args[0], args[1])
		return saveRegistry()
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known scales",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := ui.NewPrinter(cmd.OutOrStdout())
		if len(registry.Devices) == 0 {
			p.Println("No scales recorded yet.")
			return nil
		}

		addrs := make([]string, 0, len(registry.Devices))
		for addr := range registry.Devices {
			addrs = append(addrs, addr)
		}
		sort.Strings(addrs)

		for _, addr := range addrs {
			d := registry.Devices[addr]
			line := addr
			if d.Nickname != "" {
				line += " (" + d.Nickname + ")"
			}
			if !d.LastSeen.IsZero() {
				line += ", last seen " + humanize.Time(d.LastSeen)
			}
			p.Println(line)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd, configInitCmd, configNicknameCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}

func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}
