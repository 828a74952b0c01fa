package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runTicks    int
	runDuration time.Duration
	stepCount   int
)

// runCmd runs the loop headless
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tick loop headless and save on exit",
	Long: `Starts the kernel and lets it tick until --ticks ticks have elapsed, --for has
passed, or the process is interrupted. The colony is saved on exit.`,
	RunE: runHeadless,
}

// stepCmd advances a stopped colony
var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Advance the saved colony by a number of ticks",
	RunE:  runStep,
}

func init() {
	runCmd.Flags().IntVar(&runTicks, "ticks", 0, "Stop after this many ticks (0 = unbounded)")
	runCmd.Flags().DurationVar(&runDuration, "for", 0, "Stop after this long (0 = unbounded)")
	stepCmd.Flags().IntVarP(&stepCount, "count", "n", 1, "Number of ticks to execute")
}

func runHeadless(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDuration)
		defer cancel()
	}

	col, err := openColony(ctx, cfg)
	if err != nil {
		return err
	}

	snapshots, unsubscribe := col.kernel.Subscribe()
	defer unsubscribe()

	start := col.kernel.Snapshot().Counters.Tick
	col.kernel.Init()
	logger.Info("Kernel running", zap.Int64("tick", start), zap.Int("ticks", runTicks), zap.Duration("for", runDuration))

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case snap, ok := <-snapshots:
			if !ok {
				break loop
			}
			if runTicks > 0 && snap.Counters.Tick-start >= int64(runTicks) {
				break loop
			}
		}
	}

	if err := col.close(context.Background(), true); err != nil {
		return err
	}
	final := col.kernel.Snapshot()
	fmt.Fprintln(cmd.OutOrStdout(), final.State.Summary())
	return nil
}

func runStep(cmd *cobra.Command, args []string) error {
	if stepCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	col, err := openColony(ctx, cfg)
	if err != nil {
		return err
	}
	for i := 0; i < stepCount; i++ {
		if err := col.kernel.Step(); err != nil {
			_ = col.close(ctx, false)
			return err
		}
	}
	if err := col.close(ctx, true); err != nil {
		return err
	}

	snap := col.kernel.Snapshot()
	fmt.Fprintf(cmd.OutOrStdout(), "Tick %d. %s\n", snap.Counters.Tick, snap.State.Summary())
	return nil
}
