package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	recorder "github.com/ordo-one/swift-profile-recorder"
)

type recordOptions struct {
	out      string
	rounds   int
	interval time.Duration
	maxDepth int
}

func newRecordCommand() *cobra.Command {
	o := &recordOptions{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "sample the running sprconvert process itself into a spool file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecord(cmd, o)
		},
	}
	cmd.Flags().StringVarP(&o.out, "out", "o", "samples.spr", "spool file to write")
	cmd.Flags().IntVarP(&o.rounds, "rounds", "n", 100, "number of sampling rounds")
	cmd.Flags().DurationVar(&o.interval, "interval", 10*time.Millisecond, "pacing between rounds")
	cmd.Flags().IntVar(&o.maxDepth, "max-depth", 1024, "maximum stack depth per sample")
	return cmd
}

func runRecord(cmd *cobra.Command, o *recordOptions) error {
	sess, err := recorder.New(
		recorder.WithSpoolPath(o.out),
		recorder.WithRounds(o.rounds),
		recorder.WithInterval(o.interval),
		recorder.WithMaxDepth(o.maxDepth),
	)
	if err != nil {
		return err
	}
	if err := sess.Run(cmd.Context()); err != nil {
		return err
	}
	stats := sess.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rounds (%d falling behind) to %s\n",
		stats.RoundsCompleted, stats.FallingBehind, o.out)
	return nil
}
