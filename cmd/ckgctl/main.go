// Package main implements ckgctl, a command-line tool for inspecting
// and administering a ckg storage root directly -- collection
// management, stats, and a manual tick -- without standing up any
// server process.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ckgctl",
	Short: "Administer a ckg storage root",
	Long: `ckgctl operates directly on a ckg storage root: creating and listing
collections, reporting stats, and running a manual tiering/pattern
tick. It opens the same embedded engine a host process would.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a ckg YAML config file (env CKG_* overrides always apply)")
	rootCmd.AddCommand(collectionCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(tickCmd)
}
