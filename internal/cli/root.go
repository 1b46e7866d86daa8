// Package cli implements the kami command line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KeaPin/kami/internal/daemon"
	"github.com/KeaPin/kami/internal/infra/sqlite"
)

const version = "0.1.0"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "kami",
	Short: "Card-key redemption service",
	Long: `kami issues and redeems card keys that unlock resources.
Run 'kami serve' to start the HTTP API, or use the issue and resource
commands to manage cards directly against the local database.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file (default ~/.kami/config.toml)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the kami version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("kami " + version)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the config path and loads it with defaults and
// environment overrides applied.
func loadConfig() (daemon.Config, error) {
	path := cfgPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".kami", "config.toml")
		}
	}
	return daemon.Load(path)
}

// openStore opens the SQLite database, creating the data directory if
// needed.
func openStore(cfg daemon.Config) (*sqlite.DB, error) {
	if err := os.MkdirAll(cfg.Database.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return sqlite.Open(cfg.Database.Dir)
}
