package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/roadsim/internal/sim/scenario"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [scenario-path]",
		Short: "Check a scenario file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			n, err := sc.BuildNetwork()
			if err != nil {
				return err
			}
			tick, _ := sc.TickDuration()
			fmt.Fprintf(cmd.OutOrStdout(), "Result: VALID (%s: %d connections, %d segments, %d landmarks, %d vehicles, tick %s)\n",
				sc.Name, len(sc.Connections), n.SegmentCount(), len(sc.Landmarks), len(sc.Vehicles), tick)
			return nil
		},
	}
}
