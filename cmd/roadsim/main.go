// Command roadsim runs road-network scenarios and serves their perceptions
// over gRPC.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/roadsim/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(logging.NewFromEnv()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(log logging.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "roadsim",
		Short:        "1.5D road-network simulation kernel",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd(log))
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(serveCmd(log))
	return rootCmd
}
