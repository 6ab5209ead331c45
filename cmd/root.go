package cmd

import (
	"os"

	"github.com/encodeous/geonet/state"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "geonet",
	Short: "GeoNetworking router",
	Long: `geonet runs an ETSI EN 302 636-4-1 GeoNetworking station.
Stations on the same host or LAN share a multicast group that stands in for the ITS-G5 radio.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Initialize a station",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "gn",
		Title: "GeoNetworking Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&state.NodeConfigPath, "node-config", "n", state.NodeConfigPath, "node config")
}
