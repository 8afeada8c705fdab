package fragmenter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"

	"github.com/oshokin/firmware-fragmenter/internal/config"
	"github.com/oshokin/firmware-fragmenter/internal/logger"
)

// Options contains inputs for the fragmenter entry point.
type Options struct {
	// SourcePath is the update package to split.
	SourcePath string
	// Config carries fragment size, device directory, output directory and compression.
	Config *config.Config
}

var errNoSource = errors.New("update package path must be provided")

// Run executes a complete fragmentation run.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	ctx = logger.WithName(ctx, "fragmenter")
	ctx = logger.WithKV(ctx, "run_id", uuid.NewString())

	if strings.TrimSpace(opts.SourcePath) == "" {
		return nil, errNoSource
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	method, err := ZipMethod(cfg.Compression)
	if err != nil {
		return nil, err
	}

	f, err := New(Params{
		SourcePath:      opts.SourcePath,
		SourceDir:       cfg.SourceDir,
		MaxFragmentSize: cfg.FragmentSizeBytes(),
		OutputDir:       cfg.OutputDir,
		Method:          method,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize fragmenter: %w", err)
	}

	res, err := f.Run(ctx)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Update package is now fragmented",
		"fragments", res.Manifest.Fragments,
		"output", cfg.OutputDir)

	return res, nil
}

// ZipMethod maps a configured compression name to its zip method.
func ZipMethod(name string) (uint16, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", config.CompressionDeflate:
		return zip.Deflate, nil
	case config.CompressionStore:
		return zip.Store, nil
	default:
		return 0, fmt.Errorf("unknown compression method %q", name)
	}
}
