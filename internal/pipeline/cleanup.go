package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	apperrors "github.com/arkilian/metergen/internal/errors"
)

// FileError ties a failure to the local file it concerns.
type FileError struct {
	File string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Cleanup removes each named file from dir. Files that are already gone are
// skipped. A failure on one file never stops the rest; failures are returned
// together as a *multierror.Error of *FileError.
func Cleanup(dir string, names []string) (removed int, err error) {
	var errs *multierror.Error
	for _, name := range names {
		rmErr := os.Remove(filepath.Join(dir, name))
		switch {
		case rmErr == nil:
			removed++
		case os.IsNotExist(rmErr):
		default:
			errs = multierror.Append(errs, &FileError{
				File: name,
				Err:  apperrors.NewCleanupError(name, rmErr),
			})
		}
	}
	return removed, errs.ErrorOrNil()
}
