package fs

import (
	"io"
	"os"
)

// File is the subset of *os.File a row log needs: appends, positional
// reads, a rewind for recovery scans and tail truncation.
type File interface {
	io.ReadWriteCloser
	io.ReaderAt
	io.Seeker
	Sync() error
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
}

// FileSystem opens log files and swaps compacted logs into place.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	MkdirAll(path string, perm os.FileMode) error
	Rename(oldpath, newpath string) error
	Remove(name string) error
	// SyncDir flushes directory entries so a completed Rename survives a
	// crash.
	SyncDir(dir string) error
}

// OS is the FileSystem of the host.
type OS struct{}

func (OS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(name, flag, perm)
}

func (OS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

func (OS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

// Remove ignores names that do not exist.
func (OS) Remove(name string) error {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (OS) SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	err = d.Sync()
	if cerr := d.Close(); err == nil {
		err = cerr
	}
	return err
}

// Default is the host file system.
var Default FileSystem = OS{}
