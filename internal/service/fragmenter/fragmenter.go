package fragmenter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
	"go.uber.org/multierr"

	"github.com/oshokin/firmware-fragmenter/internal/domain/fragment"
	"github.com/oshokin/firmware-fragmenter/internal/logger"
	"github.com/oshokin/firmware-fragmenter/internal/repository/manifest"
)

// outputDirPermissions is the mode of a created output directory.
const outputDirPermissions = 0o755

// Params are the construction inputs of a Fragmenter.
type Params struct {
	// SourcePath is the update package to split.
	SourcePath string
	// SourceDir is recorded in the manifest as the fragments' location on the device.
	SourceDir string
	// MaxFragmentSize is the maximum fragment length in bytes.
	MaxFragmentSize int64
	// OutputDir receives fragment archives and the manifest. It is created if absent.
	OutputDir string
	// Method is the zip method of fragment entries, zip.Deflate or zip.Store.
	Method uint16
}

// Result summarises a completed run.
type Result struct {
	// Manifest is the record that was written.
	Manifest fragment.Manifest
	// Archives lists the fragment archive paths in index order.
	Archives []string
	// ManifestPath is the location of the manifest file.
	ManifestPath string
}

// Fragmenter owns the state of one fragmentation run: the source handle,
// the shared read cursor with its checksum, and the output locations.
// It is not safe for concurrent use and runs at most once.
type Fragmenter struct {
	source    fragment.SourceFile
	plan      fragment.Plan
	sourceDir string
	outputDir string
	method    uint16

	file      *os.File
	stream    *chunkStream
	manifests manifest.Repository
	closed    bool
}

// New validates the source, computes the plan, creates the output directory
// and opens the read cursor. No fragment is written yet.
func New(p Params) (*Fragmenter, error) {
	if p.Method != zip.Deflate && p.Method != zip.Store {
		return nil, fmt.Errorf("unsupported zip method %d", p.Method)
	}

	info, err := os.Stat(p.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceNotFound, p.SourcePath, err)
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrSourceNotFound, p.SourcePath)
	}

	file, err := os.Open(filepath.Clean(p.SourcePath))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceNotFound, p.SourcePath, err)
	}

	f, err := newFragmenter(file, p)
	if err != nil {
		_ = file.Close()

		return nil, err
	}

	return f, nil
}

func newFragmenter(file *os.File, p Params) (*Fragmenter, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceNotFound, p.SourcePath, err)
	}

	plan, err := fragment.NewPlan(info.Size(), p.MaxFragmentSize)
	if err != nil {
		return nil, err
	}

	if err = os.MkdirAll(p.OutputDir, outputDirPermissions); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &Fragmenter{
		source: fragment.SourceFile{
			Path:     p.SourcePath,
			Name:     info.Name(),
			BaseName: fragment.BaseName(info.Name()),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		},
		plan:      plan,
		sourceDir: p.SourceDir,
		outputDir: p.OutputDir,
		method:    p.Method,
		file:      file,
		stream:    newChunkStream(file, defaultChunkSize),
		manifests: manifest.NewFileRepository(filepath.Join(p.OutputDir, fragment.ManifestFilename)),
	}, nil
}

// Source returns the update package being split.
func (f *Fragmenter) Source() fragment.SourceFile {
	return f.source
}

// Plan returns the fragment plan computed at construction.
func (f *Fragmenter) Plan() fragment.Plan {
	return f.plan
}

// Run writes every fragment in ascending order and then the manifest.
// The source is closed when Run returns, whatever the outcome.
func (f *Fragmenter) Run(ctx context.Context) (res *Result, err error) {
	if f.closed {
		return nil, errAlreadyRun
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Unable to close the update package", "error", closeErr)
		}
	}()

	logger.InfoKV(ctx, "Fragmenting update package",
		"source", f.source.Path,
		"size", humanize.Bytes(uint64(f.source.Size)),
		"max_fragment_size", humanize.Bytes(uint64(f.plan.MaxSize)),
		"fragments", f.plan.Count)

	archives := make([]string, 0, f.plan.Count)

	for index := 0; index < f.plan.Count; index++ {
		var archive string

		archive, err = f.writeFragment(index)
		if err != nil {
			return nil, err
		}

		logger.InfoKV(ctx, "Fragment written",
			"index", index,
			"archive", archive,
			"size", humanize.Bytes(uint64(f.plan.Length(index))))

		archives = append(archives, archive)
	}

	m := fragment.Manifest{
		Fragments: f.plan.Count,
		Name:      f.source.BaseName,
		Checksum:  f.stream.Sum(),
		Size:      f.stream.Consumed(),
		SourceDir: f.sourceDir,
	}

	if err = f.manifests.Save(ctx, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestIO, err)
	}

	res = &Result{
		Manifest: m,
		Archives: archives,
	}

	if repo, ok := f.manifests.(*manifest.FileRepository); ok {
		res.ManifestPath = repo.Path()
	}

	logger.InfoKV(ctx, "Manifest written",
		"path", res.ManifestPath,
		"checksum", m.Checksum)

	return res, nil
}

// Close releases the source. It is safe to call more than once.
func (f *Fragmenter) Close() error {
	if f.closed {
		return nil
	}

	f.closed = true

	return f.file.Close()
}

// writeFragment produces the archive for one fragment. Handles are always
// released; an aborted archive stays on disk as it is.
func (f *Fragmenter) writeFragment(index int) (string, error) {
	archive := filepath.Join(f.outputDir, fragment.ArchiveName(f.source.BaseName, index))

	out, err := os.Create(archive)
	if err != nil {
		return archive, &FragmentError{Index: index, Archive: archive, Stage: StageCreate, Err: err}
	}

	zw := zip.NewWriter(out)

	stage, err := f.fillArchive(zw, index)
	closeErr := multierr.Combine(zw.Close(), out.Close())

	switch {
	case err != nil:
		return archive, &FragmentError{Index: index, Archive: archive, Stage: stage, Err: multierr.Append(err, closeErr)}
	case closeErr != nil:
		return archive, &FragmentError{Index: index, Archive: archive, Stage: StageClose, Err: closeErr}
	}

	return archive, nil
}

// fillArchive adds the single entry of fragment index and copies its byte range into it.
func (f *Fragmenter) fillArchive(zw *zip.Writer, index int) (Stage, error) {
	//nolint:exhaustruct // Remaining header fields are filled by the zip writer.
	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     f.source.Name,
		Method:   f.method,
		Modified: f.source.ModTime,
	})
	if err != nil {
		return StageEntry, err
	}

	limit := f.plan.Length(index)

	for written := int64(0); written < limit; {
		chunk, err := f.stream.Next(limit - written)
		if err != nil {
			if exhausted(err) {
				err = fmt.Errorf("source ended after %d of %d bytes: %w", f.stream.Consumed(), f.source.Size, io.ErrUnexpectedEOF)
			}

			return StageRead, err
		}

		if _, err = entry.Write(chunk); err != nil {
			return StageWrite, err
		}

		written += int64(len(chunk))
	}

	return "", nil
}

// IsFragmentError reports whether err carries fragment context and returns it.
func IsFragmentError(err error) (*FragmentError, bool) {
	var fragmentErr *FragmentError
	if errors.As(err, &fragmentErr) {
		return fragmentErr, true
	}

	return nil, false
}
