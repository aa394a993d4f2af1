package chunkstore

import (
	"fmt"
	"path/filepath"

	"github.com/bitrise-io/go-chunkstore/internal"
)

const (
	filesDirName  = "files"
	chunksDirName = "chunks"
	tempDirName   = ".temp"
)

// Layout is the on-disk arrangement under the storage root.
type Layout struct {
	Root      string
	FilesDir  string
	ChunksDir string
	TempDir   string
}

// NewLayout ...
func NewLayout(root string) Layout {
	return Layout{
		Root:      root,
		FilesDir:  filepath.Join(root, filesDirName),
		ChunksDir: filepath.Join(root, chunksDirName),
		TempDir:   filepath.Join(root, tempDirName),
	}
}

// Ensure creates the layout directories. Safe to call repeatedly.
func (l Layout) Ensure(osProxy internal.OsProxy) error {
	for _, dir := range []string{l.FilesDir, l.ChunksDir, l.TempDir} {
		if err := osProxy.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
