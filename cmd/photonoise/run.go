package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/coalaura/photonoise"
	"github.com/coalaura/photonoise/metrics"
)

func (a *app) runCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Harvest entropy continuously and reseed the generator while the source is healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("metrics-addr") {
				a.cfg.Metrics.Enabled = metricsAddr != ""
				a.cfg.Metrics.Addr = metricsAddr
			}

			return a.run(cmd)
		},
	}

	a.addSourceFlags(cmd, 0, "stop after this many captures (0 runs until interrupted)")

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics, /health and /ready on this address")

	return cmd
}

func (a *app) run(cmd *cobra.Command) error {
	runID := uuid.New().String()
	log := a.log.With("run_id", runID)

	gen, err := photonoise.NewGenerator(a.cfg.GeneratorOptions(log)...)
	if err != nil {
		return err
	}

	opts, err := a.cfg.PipelineOptions(log)
	if err != nil {
		return err
	}

	pipeline := photonoise.NewPipeline(gen, opts...)

	cam, err := a.openCamera()
	if err != nil {
		return err
	}

	defer cam.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the metrics server must stop once the pipeline is done
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	var stats photonoise.RunStats

	g.Go(func() error {
		defer cancel()

		log.Info("pipeline started", "source", a.cfg.Capture.Source, "frames", a.cfg.Output.Frames)

		var err error

		stats, err = pipeline.Run(gctx, cam, a.cfg.Output.Frames)

		return err
	})

	if a.cfg.Metrics.Enabled {
		exporter := metrics.NewExporter(pipeline, metrics.WithRunID(runID), metrics.WithProcessMetrics())
		server := metrics.NewServer(a.cfg.Metrics.Addr, exporter, log)

		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	err = g.Wait()
	if err != nil {
		return err
	}

	snap := pipeline.Snapshot()

	log.Info("pipeline stopped",
		"frames", stats.Frames,
		"capture_errors", stats.CaptureErrors,
		"violations", stats.Violations,
		"reseeds", stats.Reseeds,
	)

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: frames=%d reseeds=%d healthy=%t entropy_per_bit=%.4f estimate_settled=%t\n",
		runID, stats.Frames, snap.ReseedCount, snap.Healthy, snap.EntropyPerBit, snap.EstimateSettled)

	return nil
}
