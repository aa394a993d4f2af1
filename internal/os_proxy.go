package internal

import (
	"io/fs"
	"os"
)

// OsProxy defines the subset of os package functions the disk store uses.
// Add more methods as you need them.
type OsProxy interface {
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	Open(name string) (*os.File, error)
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	ReadDir(name string) ([]os.DirEntry, error)
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
	Link(oldname, newname string) error
	DirFS(dir string) fs.FS
}

// RealOS is the default implementation that delegates to the real os package.
type RealOS struct{}

func (RealOS) Stat(name string) (os.FileInfo, error)        { return os.Stat(name) }               //nolint:revive
func (RealOS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }     //nolint:revive
func (RealOS) Open(name string) (*os.File, error)           { return os.Open(name) }               //nolint:revive
func (RealOS) ReadDir(name string) ([]os.DirEntry, error)   { return os.ReadDir(name) }            //nolint:revive
func (RealOS) Remove(name string) error                     { return os.Remove(name) }             //nolint:revive
func (RealOS) RemoveAll(path string) error                  { return os.RemoveAll(path) }          //nolint:revive
func (RealOS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) } //nolint:revive
func (RealOS) Link(oldname, newname string) error           { return os.Link(oldname, newname) }   //nolint:revive
func (RealOS) DirFS(dir string) fs.FS                       { return os.DirFS(dir) }               //nolint:revive

//nolint:revive
func (RealOS) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}
