package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/rejectly/rejectly/internal/daemon"
)

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the rejectly config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config to $REJECTLY_HOME/config.toml",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := daemon.ConfigPath()
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := daemon.SaveConfig(daemon.DefaultConfig()); err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := daemon.LoadConfig()
		if err != nil {
			return err
		}
		cfg.Generator.APIKey = redact(cfg.Generator.APIKey)
		cfg.Push.ExpoAccessToken = redact(cfg.Push.ExpoAccessToken)
		cfg.Push.TelegramToken = redact(cfg.Push.TelegramToken)
		return toml.NewEncoder(os.Stdout).Encode(cfg)
	},
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
