// Package commands implements netmount's cobra command tree.
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
	Use:   "netmount",
	Short: "netmount mounts a netmountd export over FUSE",
	Long: `netmount gateways kernel FUSE upcalls to a netmountd server: every
operation is marshaled to the wire protocol, sent through a retrying RPC
adapter, and demarshaled back into the upcall's return convention. No
attribute cache or handle pool is kept on the client.`,
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
	fmt.Printf("netmount %s (commit: %s, built: %s)\n", Version, Commit, Date)
}
