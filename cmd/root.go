package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stromnet/strom/cmd/perf"
	"github.com/stromnet/strom/cmd/serve"
	"github.com/stromnet/strom/cmd/util"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "strom",
		Short: "sharded RPC connection layer for strom cluster nodes",
		Long: fmt.Sprintf(`strom (v%s)

The internal RPC layer of a strom streaming cluster node: per-shard caches
of outbound peer connections, reconnecting transports and the serving side
that accepts shard-addressed requests.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of strom",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("strom v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
