package testing

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileChecker allows chaining multiple checks on a path of the store layout.
type FileChecker struct {
	Path   string
	Checks []func(string) error
}

// NewFileChecker creates a FileChecker for the given path.
func NewFileChecker(path string) *FileChecker {
	return &FileChecker{Path: path, Checks: []func(string) error{}}
}

// Check runs all checks on the path, returning every failure.
func (fc *FileChecker) Check() error {
	errs := MultiError{}
	for _, check := range fc.Checks {
		AppendErr(&errs, check(fc.Path))
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// IsDir adds a check that the path is a directory.
func (fc *FileChecker) IsDir() *FileChecker {
	fc.Checks = append(fc.Checks, func(path string) error {
		info, err := getInfo(path)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("expected directory but not a directory: %s", path)
		}
		return nil
	})
	return fc
}

// IsFile adds a check that the path is a regular file.
func (fc *FileChecker) IsFile() *FileChecker {
	fc.Checks = append(fc.Checks, func(path string) error {
		info, err := getInfo(path)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("expected regular file: %s", path)
		}
		return nil
	})
	return fc
}

// Missing adds a check that nothing exists at the path.
func (fc *FileChecker) Missing() *FileChecker {
	fc.Checks = append(fc.Checks, func(path string) error {
		_, err := os.Lstat(path)
		if err == nil {
			return fmt.Errorf("expected %s to be missing", path)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("lstat %s: %w", path, err)
		}
		return nil
	})
	return fc
}

// Content adds a check that the file at the path has the specified content.
func (fc *FileChecker) Content(want string) *FileChecker {
	fc.Checks = append(fc.Checks, func(path string) error {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if got := string(b); got != want {
			return fmt.Errorf("file %s content mismatch\nwant:\n%q\n\ngot:\n%q", path, want, got)
		}
		return nil
	})
	return fc
}

// Entries adds a check that the directory holds exactly the given names, in any order.
func (fc *FileChecker) Entries(names ...string) *FileChecker {
	fc.Checks = append(fc.Checks, func(path string) error {
		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		want := map[string]bool{}
		for _, n := range names {
			want[n] = true
		}
		var got []string
		for _, e := range entries {
			got = append(got, e.Name())
			delete(want, e.Name())
		}
		if len(want) > 0 || len(got) != len(names) {
			return fmt.Errorf("entries of %s: want %v got %v", path, names, got)
		}
		return nil
	})
	return fc
}

// NoneMatch adds a check that no entry of the directory matches the glob pattern.
func (fc *FileChecker) NoneMatch(pattern string) *FileChecker {
	fc.Checks = append(fc.Checks, func(path string) error {
		matches, err := filepath.Glob(filepath.Join(path, pattern))
		if err != nil {
			return err
		}
		if len(matches) > 0 {
			return fmt.Errorf("unexpected entries in %s: %s", path, strings.Join(matches, ", "))
		}
		return nil
	})
	return fc
}

func getInfo(path string) (os.FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("path does not exist: %s", path)
		}
		return nil, fmt.Errorf("lstat %s: %w", path, err)
	}
	return info, nil
}
