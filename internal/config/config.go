package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/firmware-fragmenter/internal/logger"
)

// Config holds the settings of a fragmentation run.
type Config struct {
	// FragmentSizeMB is the maximum fragment size in decimal megabytes.
	FragmentSizeMB int64 `yaml:"fragment_size_mb"`
	// SourceDir is the directory on the receiving device where fragments will reside.
	SourceDir string `yaml:"source_dir"`
	// OutputDir receives the fragment archives and the manifest.
	OutputDir string `yaml:"output_dir"`
	// Compression is the zip entry method: deflate or store.
	Compression string `yaml:"compression"`
	// LogLevel is the minimum zap level.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultFragmentSizeMB is used when no valid fragment size is given.
	DefaultFragmentSizeMB = 40

	// BytesPerMegabyte converts megabytes to bytes. Megabytes are decimal.
	BytesPerMegabyte = 1000 * 1000

	// DefaultSourceDir is the storage location fragments are copied to on the device.
	DefaultSourceDir = "/storage/emulated/legacy"

	// DefaultOutputDir is relative to the working directory.
	DefaultOutputDir = "out"

	// CompressionDeflate stores fragment entries deflated.
	CompressionDeflate = "deflate"

	// CompressionStore stores fragment entries without compression.
	CompressionStore = "store"

	// DefaultLogLevel is the level used when none is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the permission for settings files.
	DefaultFilePermissions = 0o600
)

var (
	// ErrInvalidFragmentSize reports a malformed or non-positive fragment size.
	// It is never fatal: callers warn and continue with the default size.
	ErrInvalidFragmentSize = errors.New("invalid max fragment size")

	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownCompression is returned for compression methods other than deflate and store.
	errUnknownCompression = errors.New("unknown compression method")
	// errUnknownLogLevel is returned for levels the logger cannot parse.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Default returns the settings used when neither a file nor flags override them.
func Default() *Config {
	return &Config{
		FragmentSizeMB: DefaultFragmentSizeMB,
		SourceDir:      DefaultSourceDir,
		OutputDir:      DefaultOutputDir,
		Compression:    CompressionDeflate,
		LogLevel:       DefaultLogLevel,
	}
}

// FragmentSizeBytes returns the maximum fragment size in bytes.
func (c *Config) FragmentSizeBytes() int64 {
	return c.FragmentSizeMB * BytesPerMegabyte
}

// ParseFragmentSize parses a megabyte count given on the command line.
// On failure it returns DefaultFragmentSizeMB together with an error wrapping
// ErrInvalidFragmentSize, so the caller can warn and go on.
func ParseFragmentSize(s string) (int64, error) {
	mb, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return DefaultFragmentSizeMB, fmt.Errorf("%w %q, using %d MB", ErrInvalidFragmentSize, s, DefaultFragmentSizeMB)
	}

	if mb < 1 || mb > math.MaxInt64/BytesPerMegabyte {
		return DefaultFragmentSizeMB, fmt.Errorf("%w %d, using %d MB", ErrInvalidFragmentSize, mb, DefaultFragmentSizeMB)
	}

	return mb, nil
}

// Load reads settings from path on top of the defaults and validates them.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills empty fields with defaults and rejects values that cannot be used.
// A non-positive fragment size is replaced by the default, matching the command line.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.FragmentSizeMB < 1 || cfg.FragmentSizeMB > math.MaxInt64/BytesPerMegabyte {
		cfg.FragmentSizeMB = DefaultFragmentSizeMB
	}

	if cfg.SourceDir == "" {
		cfg.SourceDir = DefaultSourceDir
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	cfg.Compression = strings.ToLower(strings.TrimSpace(cfg.Compression))
	switch cfg.Compression {
	case "":
		cfg.Compression = CompressionDeflate
	case CompressionDeflate, CompressionStore:
	default:
		return fmt.Errorf("%w: %q", errUnknownCompression, cfg.Compression)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.LogLevel)
	}

	return nil
}
