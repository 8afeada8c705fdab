package fragmenter

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceNotFound is returned when the source is missing, not a regular file or unreadable.
	ErrSourceNotFound = errors.New("source not found")
	// ErrFragmentIO matches every *FragmentError.
	ErrFragmentIO = errors.New("fragment i/o failed")
	// ErrManifestIO is returned when all fragments were written but the manifest was not.
	ErrManifestIO = errors.New("manifest i/o failed")

	errAlreadyRun = errors.New("fragmenter has already run")
)

// Stage names the step of fragment production that failed.
type Stage string

// Stages of fragment production.
const (
	StageCreate Stage = "create archive"
	StageEntry  Stage = "add entry"
	StageRead   Stage = "read source"
	StageWrite  Stage = "write entry"
	StageClose  Stage = "close archive"
)

// FragmentError reports a read or write failure while producing one fragment.
type FragmentError struct {
	// Index is the fragment being produced.
	Index int
	// Archive is the path of the fragment archive.
	Archive string
	// Stage is the step that failed.
	Stage Stage
	// Err is the underlying failure.
	Err error
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("fragment %d (%s): %s: %v", e.Index, e.Archive, e.Stage, e.Err)
}

// Unwrap exposes both ErrFragmentIO and the underlying failure to errors.Is and errors.As.
func (e *FragmentError) Unwrap() []error {
	return []error{ErrFragmentIO, e.Err}
}
