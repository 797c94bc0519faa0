// Package build holds the handful of build/test-environment helpers
// shared across the module's test suites.
package build

import (
	"os"
	"path/filepath"
)

// TestingDir is the directory that contains all of the files and
// folders created during testing.
var TestingDir = filepath.Join(os.TempDir(), "sh-core-testing")

// TempDir joins the provided directories and prefixes them with the
// module's testing directory, removing any stale data left at that
// path by a previous run.
func TempDir(dirs ...string) string {
	path := filepath.Join(TestingDir, filepath.Join(dirs...))
	os.RemoveAll(path) // remove old test data
	return path
}
