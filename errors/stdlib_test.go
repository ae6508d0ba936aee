package errors

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"go.akshayshah.org/attest"
)

// prepFile attempts to open a file that does not exist and wraps the
// resulting *fs.PathError in a *stackError, giving tests something that
// exercises As/Is/Unwrap against a real standard-library error chain.
func prepFile() error {
	_, err := os.Open(filepath.Join(os.TempDir(), "occlusion-errors-stdlib-test-does-not-exist"))
	return Wrap(err)
}

func TestStdLib(t *testing.T) {
	t.Parallel()

	t.Run("stdlib pass throughs", func(t *testing.T) {
		t.Parallel()

		err := prepFile()
		var targetErr *fs.PathError

		_, ok := err.(*stackError)
		attest.True(t, ok)
		attest.True(t, As(err, &targetErr))
		attest.True(t, Is(err, os.ErrNotExist))
		attest.NotZero(t, Unwrap(err))
	})
}
