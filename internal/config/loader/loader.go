// Package loader reads configuration sources into generic maps.
//
// Maps from several sources are combined with DeepMerge and then decoded
// into typed configuration by the config package.
package loader

import (
	"io/fs"
	"os"
)

// Loader reads configuration from one source.
type Loader interface {
	// Load returns nil, nil if the source does not exist.
	Load() (map[string]any, error)
}

// FileSystem is the file access used by file loaders.
// testing/fstest.MapFS satisfies it.
type FileSystem interface {
	fs.FS
	ReadFile(path string) ([]byte, error)
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// Open implements fs.FS.
func (OSFS) Open(name string) (fs.File, error) {
	return os.Open(name)
}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// DefaultFS returns the OS file system.
func DefaultFS() FileSystem {
	return OSFS{}
}
