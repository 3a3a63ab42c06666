// Package commands implements netmountd's cobra command tree.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version, Commit, and Date are set from main via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "netmountd",
	Short: "netmountd is the stateless RPC server backing a netmount export",
	Long: `netmountd materializes an exported namespace against a local backing
directory and serves it over the netmount wire protocol: path-addressed
GETATTR/READDIR/OPEN/READ/WRITE_ASYNC/COMMIT/RELEASE and friends, with
no per-client handle state kept across calls.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/netmount/config.yaml)")
}

// GetConfigFile returns the --config flag value, empty if unset.
func GetConfigFile() string {
	return configFile
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printVersion() {
	fmt.Printf("netmountd %s (commit: %s, built: %s)\n", Version, Commit, Date)
}
