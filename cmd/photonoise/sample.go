package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coalaura/photonoise"
)

const defaultSampleFrames = 8

func (a *app) sampleCmd() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Process a batch of frames, reseed once healthy and print generator output as hex",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("bytes") {
				a.cfg.Output.SampleBytes = size
			}

			if a.cfg.Output.Frames == 0 {
				a.cfg.Output.Frames = defaultSampleFrames
			}

			err = a.cfg.Validate()
			if err != nil {
				return err
			}

			return a.sample(cmd)
		},
	}

	a.addSourceFlags(cmd, defaultSampleFrames, "number of captures to process")

	cmd.Flags().IntVar(&size, "bytes", 32, "number of generator bytes to print")

	return cmd
}

func (a *app) sample(cmd *cobra.Command) error {
	gen, err := photonoise.NewGenerator(a.cfg.GeneratorOptions(a.log)...)
	if err != nil {
		return err
	}

	opts, err := a.cfg.PipelineOptions(a.log)
	if err != nil {
		return err
	}

	pipeline := photonoise.NewPipeline(gen, opts...)

	cam, err := a.openCamera()
	if err != nil {
		return err
	}

	defer cam.Close()

	stats, err := pipeline.Run(cmd.Context(), cam, a.cfg.Output.Frames)
	if err != nil {
		return err
	}

	if gen.ReseedCount() == 0 {
		a.log.Warn("no reseed happened, output is seeded by the operating system only",
			"frames", stats.Frames,
			"violations", stats.Violations,
		)
	}

	out := make([]byte, a.cfg.Output.SampleBytes)

	_, err = gen.Read(out)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(out))

	return nil
}
