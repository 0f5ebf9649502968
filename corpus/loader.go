// Package corpus resolves command-line arguments into the ordered list of
// image files a benchmark run operates on.
package corpus

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvr-ai/ocr-bench/log"
)

// imageExtensions is the set of recognized image file extensions,
// matched case-insensitively.
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".bmp":  {},
	".tiff": {},
}

// IsImageFile reports whether path has a recognized image extension.
func IsImageFile(path string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// BaseName returns the file name of path with its directory and
// extension stripped. Used to correlate an image with its persisted
// output artifacts and its ground-truth entry.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Collect expands a list of input arguments (files and/or directories)
// into a flat, ordered list of image paths.
//
// Directories are walked recursively, depth-first, collecting every
// regular file with a recognized image extension. A plain file argument
// is included directly when it matches the extension set. Anything else
// is skipped with a warning; an invalid path never aborts collection.
//
// Arguments:
//   - args: Input paths in the order supplied on the command line.
//
// Returns:
//   - []string: Resolved image paths, in argument order.
func Collect(args []string) []string {
	var paths []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		switch {
		case err != nil:
			log.Warnf("skipping invalid path: %s", arg)
		case info.IsDir():
			paths = append(paths, collectDirectory(arg)...)
		case info.Mode().IsRegular() && IsImageFile(arg):
			paths = append(paths, arg)
		default:
			log.Warnf("skipping invalid path: %s", arg)
		}
	}

	return paths
}

// collectDirectory gathers every image file under dir. Unreadable
// entries are warned about and skipped; they never fail the walk.
func collectDirectory(dir string) []string {
	var paths []string

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("skipping unreadable entry %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type().IsRegular() && IsImageFile(path) {
			paths = append(paths, path)
		}
		return nil
	})

	return paths
}
