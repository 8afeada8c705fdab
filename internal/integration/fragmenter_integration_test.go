package integration

import (
	"bytes"
	"context"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/firmware-fragmenter/internal/config"
	"github.com/oshokin/firmware-fragmenter/internal/domain/fragment"
	"github.com/oshokin/firmware-fragmenter/internal/repository/manifest"
	"github.com/oshokin/firmware-fragmenter/internal/service/fragmenter"
)

// TestFragmenter_DeviceCanRebuildPackage fragments into the default relative
// output directory and rebuilds the package the way the device would, guided
// only by the manifest.
func TestFragmenter_DeviceCanRebuildPackage(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	// 2.5 MB of non-repeating content split into 1 MB fragments.
	source := make([]byte, 2_500_000)
	for i := range source {
		source[i] = byte(i*7 + i/251)
	}

	require.NoError(t, os.WriteFile("update.bin", source, 0o600))

	cfg := config.Default()
	cfg.FragmentSizeMB = 1

	ctx := context.Background()

	_, err := fragmenter.Run(ctx, &fragmenter.Options{
		SourcePath: "update.bin",
		Config:     cfg,
	})
	require.NoError(t, err)

	m, err := manifest.NewFileRepository(filepath.Join(config.DefaultOutputDir, fragment.ManifestFilename)).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, m.Fragments)
	require.Equal(t, "update", m.Name)
	require.EqualValues(t, len(source), m.Size)
	require.Equal(t, config.DefaultSourceDir, m.SourceDir)

	var rebuilt bytes.Buffer

	for i := 0; i < m.Fragments; i++ {
		r, err := zip.OpenReader(filepath.Join(config.DefaultOutputDir, fragment.ArchiveName(m.Name, i)))
		require.NoError(t, err)
		require.Len(t, r.File, 1)
		require.Equal(t, "update.bin", r.File[0].Name)

		rc, err := r.File[0].Open()
		require.NoError(t, err)

		_, err = io.Copy(&rebuilt, rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		require.NoError(t, r.Close())
	}

	require.EqualValues(t, m.Size, rebuilt.Len())
	require.Equal(t, m.Checksum, crc32.ChecksumIEEE(rebuilt.Bytes()))
	require.Equal(t, source, rebuilt.Bytes())
}

// TestFragmenter_RerunOverwritesOutput runs twice into the same directory with different sizes.
func TestFragmenter_RerunOverwritesOutput(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	require.NoError(t, os.WriteFile("fw.img", bytes.Repeat([]byte("fw"), 1_000_000), 0o600))

	ctx := context.Background()
	checksums := make([]uint32, 0, 2)

	for _, mb := range []int64{1, 2} {
		cfg := config.Default()
		cfg.FragmentSizeMB = mb
		cfg.Compression = config.CompressionStore

		res, err := fragmenter.Run(ctx, &fragmenter.Options{SourcePath: "fw.img", Config: cfg})
		require.NoError(t, err)

		stored, err := manifest.NewFileRepository(res.ManifestPath).Load(ctx)
		require.NoError(t, err)
		require.Equal(t, res.Manifest, *stored)

		checksums = append(checksums, stored.Checksum)
	}

	require.Equal(t, checksums[0], checksums[1])
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()

	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
