package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/geonet/core"
	"github.com/encodeous/geonet/state"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a GeoNetworking station",
	Long:  `This will run the station described by the node config until it receives SIGINT or SIGTERM.`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logPath, _ := cmd.Flags().GetString("log")
		err := core.Bootstrap(state.NodeConfigPath, logPath, verbose)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
			os.Exit(1)
		}
	},
	GroupID: "gn",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().String("log", "", "Also write logs to this file")
	runCmd.Flags().BoolVar(&state.DBG_log_trace, "trace", false, "Log drops, forwarding stops and deliveries")
	runCmd.Flags().BoolVarP(&state.DBG_debug, "debug", "d", false, "Serve expvar and pprof on "+state.DebugListenAddr)
}
