package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/coalaura/photonoise"
	"github.com/coalaura/photonoise/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type app struct {
	configPath string
	logLevel   string

	source string
	input  string
	frames int

	log *slog.Logger
	cfg *config.Config
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:               "photonoise",
		Short:             "Reseed a CSPRNG with entropy harvested from camera sensor noise",
		SilenceUsage:      true,
		PersistentPreRunE: a.setupLogging,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()

	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(a.runCmd(), a.sampleCmd(), versionCmd())

	return root
}

func (a *app) setupLogging(cmd *cobra.Command, _ []string) error {
	var level slog.Level

	err := level.UnmarshalText([]byte(a.logLevel))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", a.logLevel, err)
	}

	out := cmd.ErrOrStderr()

	a.log = slog.New(tint.NewHandler(out, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    out != io.Writer(os.Stderr),
	}))

	return nil
}

// addSourceFlags registers the sample source flags shared by run and sample.
func (a *app) addSourceFlags(cmd *cobra.Command, frames int, framesUsage string) {
	flags := cmd.Flags()

	flags.StringVar(&a.source, "source", config.SourceMock, "sample source (mock, file, device)")
	flags.StringVar(&a.input, "input", "", "raw 8-bit grayscale frame file for --source file")
	flags.IntVar(&a.frames, "frames", frames, framesUsage)
}

// loadConfig loads the configuration and applies flags that were set explicitly.
func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()

	if flags.Changed("source") {
		cfg.Capture.Source = a.source
	}

	if flags.Changed("input") {
		cfg.Capture.Input = a.input

		if !flags.Changed("source") {
			cfg.Capture.Source = config.SourceFile
		}
	}

	if flags.Changed("frames") {
		cfg.Output.Frames = a.frames
	}

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg

	return nil
}

// openCamera creates and opens the configured sample source.
func (a *app) openCamera() (photonoise.Camera, error) {
	var cam photonoise.Camera

	switch a.cfg.Capture.Source {
	case config.SourceFile:
		cam = photonoise.NewFileCamera(a.cfg.Capture.Input)
	case config.SourceDevice:
		cam = photonoise.NewDeviceCamera()
	default:
		cam = photonoise.NewMockCamera(a.cfg.Capture.MockSeed)

		a.log.Warn("using the mock camera, its output carries no entropy")
	}

	err := cam.Open(a.cfg.CaptureConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s source: %w", a.cfg.Capture.Source, err)
	}

	return cam, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "photonoise %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
