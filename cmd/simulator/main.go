package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the simulator command. Every flag can also be set
// through a LEOSIM_ environment variable, e.g. LEOSIM_METRICS_ADDR.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "simulator",
		Short: "Simulate live video transcoding on a LEO satellite grid",
		Long: `Runs the slot-by-slot transcoding simulation: nodes move, each region
activates a node on its route to the source and schedules its bitrates
inside that node's cluster, and the resulting delay and energy are
written to an append-only ledger.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), optionsFrom(v), stdout, stderr)
		},
	}

	f := cmd.Flags()
	f.String("config", "", "YAML configuration file; built-in defaults when empty")
	f.Int("slots", 0, "number of slots to simulate, overrides simulation.slots")
	f.String("real", "", "CSV with the real demand (t, region, k1..kN)")
	f.String("pred", "", "CSV with the predicted demand; a copy of the real demand when empty")
	f.String("output", "", "write the ledger to this file, '-' for stdout")
	f.String("format", "json", "ledger format: json or pb")
	f.String("metrics-addr", "", "serve Prometheus /metrics on this address while running")
	f.Bool("learning", false, "enable epsilon-greedy activation and TD updates")
	f.Bool("abort-on-capacity", false, "stop after the first slot that leaves a region unserved")
	f.Uint64("seed", 0, "demand generator seed, overrides demand.seed")
	f.Duration("pace", 0, "wall time between slots; 0 runs slots back to back")
	f.String("log-level", "info", "debug, info, warn or error")
	f.String("log-format", "text", "text or json")

	_ = v.BindPFlags(f)
	v.SetEnvPrefix("LEOSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd
}
