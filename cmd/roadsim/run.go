package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/roadsim/internal/logging"
	"github.com/signalsfoundry/roadsim/internal/observability"
	"github.com/signalsfoundry/roadsim/internal/sim/scenario"
	"github.com/signalsfoundry/roadsim/internal/sim/state"
	"github.com/signalsfoundry/roadsim/timectrl"
)

// placeFlags are shared by the commands that build a place.
type placeFlags struct {
	scenario    string
	tick        time.Duration
	accelerated bool
}

func (f *placeFlags) register(cmd *cobra.Command, accelerated bool) {
	cmd.Flags().StringVar(&f.scenario, "scenario", "", "path to a YAML or JSON scenario file")
	cmd.Flags().DurationVar(&f.tick, "tick", 0, "tick interval; overrides the scenario tick when set")
	cmd.Flags().BoolVar(&f.accelerated, "accelerated", accelerated, "run ticks back to back instead of in real time")
	_ = cmd.MarkFlagRequired("scenario")
}

// buildPlace loads the scenario and builds it into a place registered in reg.
func (f *placeFlags) buildPlace(reg *state.Registry, opts ...state.PlaceOption) (*state.Place, error) {
	sc, err := scenario.Load(f.scenario)
	if err != nil {
		return nil, err
	}
	mode := timectrl.ParseMode(f.accelerated)
	if f.tick > 0 {
		start, err := sc.StartTime()
		if err != nil {
			return nil, err
		}
		opts = append(opts, state.WithClock(timectrl.NewTimeController(start, f.tick, mode)))
	}
	return scenario.Build(sc, reg, mode, opts...)
}

func runCmd(log logging.Logger) *cobra.Command {
	var (
		flags placeFlags
		ticks int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario for a number of ticks and print the final state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScenario(cmd.Context(), flags, ticks, log, cmd.OutOrStdout())
		},
	}
	flags.register(cmd, true)
	cmd.Flags().IntVar(&ticks, "ticks", 100, "number of ticks to run")
	return cmd
}

func runScenario(ctx context.Context, flags placeFlags, ticks int, log logging.Logger, out io.Writer) error {
	if ticks <= 0 {
		return fmt.Errorf("--ticks must be positive, got %d", ticks)
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		return err
	}

	p, err := flags.buildPlace(state.NewRegistry(), state.WithLogger(log), state.WithMetricsRecorder(collector))
	if err != nil {
		return err
	}
	defer p.Close()

	start := time.Now()
	log.Info(ctx, "running scenario",
		logging.String("place", string(p.ID())),
		logging.Int("ticks", ticks),
		logging.Duration("tick", p.Clock().Tick),
	)
	if err := p.Run(ctx, ticks); err != nil {
		return err
	}
	log.Info(ctx, "scenario finished", logging.Duration("elapsed", time.Since(start)))

	printSnapshot(out, p.Snapshot())
	return nil
}

func printSnapshot(out io.Writer, snap state.PlaceSnapshot) {
	fmt.Fprintf(out, "place %s: tick %d at %s\n", snap.ID, snap.Tick, snap.Time.Format(time.RFC3339Nano))
	fmt.Fprintf(out, "MOBILES (%d):\n", len(snap.Mobiles))
	for _, m := range snap.Mobiles {
		fmt.Fprintf(out, "  %s %-8s %s from %s at %.2f (jutting %.2f) speed %.2f m/s\n",
			m.ID, m.Type, m.Segment, m.Entry, m.Curviline, m.Jutting, m.Speed)
	}
	fmt.Fprintf(out, "STATICS (%d):\n", len(snap.Statics))
	for _, s := range snap.Statics {
		fmt.Fprintf(out, "  %s %-8s %s at %.2f (jutting %.2f)\n", s.ID, s.Type, s.Segment, s.Curviline, s.Jutting)
	}
}
