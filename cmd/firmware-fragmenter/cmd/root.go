package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/firmware-fragmenter/internal/config"
	"github.com/oshokin/firmware-fragmenter/internal/logger"
	"github.com/oshokin/firmware-fragmenter/internal/service/fragmenter"
	"github.com/oshokin/firmware-fragmenter/internal/version"
)

// flags holds the raw command line values.
type flags struct {
	configPath  string
	size        string
	sourceDir   string
	outputDir   string
	compression string
	logLevel    string
}

// newRootCommand builds the firmware-fragmenter command.
func newRootCommand() *cobra.Command {
	f := new(flags)

	root := &cobra.Command{
		Use:           "firmware-fragmenter [flags] <update_package_path>",
		Short:         "Split a firmware update package into ZIP fragments with a manifest",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}

			ctx := cmd.Context()

			cfg, err := f.resolve(ctx, cmd)
			if err != nil {
				return err
			}

			_, err = fragmenter.Run(ctx, &fragmenter.Options{
				SourcePath: args[0],
				Config:     cfg,
			})

			return err
		},
	}

	root.Flags().StringVarP(&f.configPath, "config", "c", "", "path to an optional YAML settings file")
	root.Flags().StringVarP(&f.size, "size", "s", "", "max fragment size in decimal MB (default 40)")
	root.Flags().StringVarP(&f.sourceDir, "source-dir", "d", config.DefaultSourceDir, "directory on the device where the fragments will be located")
	root.Flags().StringVarP(&f.outputDir, "output", "o", config.DefaultOutputDir, "directory for fragment archives and the manifest")
	root.Flags().StringVarP(&f.compression, "compression", "m", config.CompressionDeflate, "zip method of fragment entries: deflate or store")
	root.Flags().StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")

	version.AttachCobraVersionCommand(root)

	return root
}

// resolve merges the settings file with the flags that were set explicitly.
// A bad fragment size only produces a warning.
func (f *flags) resolve(ctx context.Context, cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()

	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	changed := cmd.Flags().Changed

	if changed("size") {
		mb, err := config.ParseFragmentSize(f.size)
		if err != nil {
			logger.WarnKV(ctx, "Falling back to the default fragment size", "reason", err)
		}

		cfg.FragmentSizeMB = mb
	}

	if changed("source-dir") {
		cfg.SourceDir = f.sourceDir
	}

	if changed("output") {
		cfg.OutputDir = f.outputDir
	}

	if changed("compression") {
		cfg.Compression = f.compression
	}

	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	return cfg, nil
}

// Execute runs the firmware-fragmenter CLI and exits with non-zero status on error.
func Execute() {
	ctx := context.Background()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		reportFailure(ctx, err)
		os.Exit(1)
	}
}

// reportFailure logs err to the diagnostic stream with the stage that failed.
func reportFailure(ctx context.Context, err error) {
	if fragmentErr, ok := fragmenter.IsFragmentError(err); ok {
		logger.ErrorKV(ctx, "Error while writing fragments",
			"fragment", fragmentErr.Index,
			"archive", fragmentErr.Archive,
			"stage", fragmentErr.Stage,
			"error", fragmentErr.Err)

		return
	}

	switch {
	case errors.Is(err, fragmenter.ErrSourceNotFound):
		logger.ErrorKV(ctx, "Error during fragmentation process", "stage", "open source", "error", err)
	case errors.Is(err, fragmenter.ErrManifestIO):
		logger.ErrorKV(ctx, "Fragments were written but the manifest was not", "stage", "write manifest", "error", err)
	default:
		logger.ErrorKV(ctx, "Error during fragmentation process", "error", err)
	}
}
