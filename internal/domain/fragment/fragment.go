package fragment

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// ArchiveExt is the extension of every fragment archive.
	ArchiveExt = "zip"

	// ManifestFilename is the name of the manifest inside the output directory.
	ManifestFilename = "manifest.txt"
)

var (
	errNonPositiveMaxSize = errors.New("max fragment size must be positive")
	errNegativeSourceSize = errors.New("source size must not be negative")
)

// SourceFile describes the update package being fragmented.
type SourceFile struct {
	// Path is the location the file was opened from.
	Path string
	// Name is the file name including its extension. Every fragment entry uses it.
	Name string
	// BaseName is Name without its final extension. Fragment archives are named after it.
	BaseName string
	// Size is the byte length of the file.
	Size int64
	// ModTime is stamped on fragment entries.
	ModTime time.Time
}

// BaseName strips the final extension from a file name.
// Names that would become empty (".img") are returned unchanged.
func BaseName(fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	if base == "" {
		return fileName
	}

	return base
}

// ArchiveName returns the file name of the fragment archive with the given index.
func ArchiveName(baseName string, index int) string {
	return baseName + strconv.Itoa(index) + "." + ArchiveExt
}

// Plan splits a source of SourceSize bytes into fragments of at most MaxSize bytes.
type Plan struct {
	// SourceSize is the byte length of the source.
	SourceSize int64
	// MaxSize is the maximum fragment length in bytes.
	MaxSize int64
	// Count is ceil(SourceSize / MaxSize).
	Count int
}

// NewPlan computes the fragment count. An empty source yields zero fragments.
func NewPlan(sourceSize, maxSize int64) (Plan, error) {
	if maxSize <= 0 {
		return Plan{}, fmt.Errorf("%w: %d", errNonPositiveMaxSize, maxSize)
	}

	if sourceSize < 0 {
		return Plan{}, fmt.Errorf("%w: %d", errNegativeSourceSize, sourceSize)
	}

	count := sourceSize / maxSize
	if sourceSize%maxSize != 0 {
		count++
	}

	return Plan{
		SourceSize: sourceSize,
		MaxSize:    maxSize,
		Count:      int(count),
	}, nil
}

// Range returns the half-open byte range [start, end) covered by fragment index.
func (p Plan) Range(index int) (start, end int64) {
	start = int64(index) * p.MaxSize
	end = min(start+p.MaxSize, p.SourceSize)

	return start, end
}

// Length returns the byte length of fragment index.
func (p Plan) Length(index int) int64 {
	start, end := p.Range(index)

	return end - start
}

// Manifest is the record written next to the fragments.
type Manifest struct {
	// Fragments is the number of fragment archives.
	Fragments int
	// Name is the base name of the source file.
	Name string
	// Checksum is the CRC-32 (IEEE) of the complete source file.
	Checksum uint32
	// Size is the byte length of the source file.
	Size int64
	// SourceDir is where the fragments will reside on the device. It is not validated.
	SourceDir string
}
