// Package imagelock keeps two tools from modifying the same image file at
// the same time.
package imagelock

import "errors"

// ErrLocked is returned if another process holds the lock.
var ErrLocked = errors.New("image is locked by another process")

// Descriptor is implemented by *os.File and by the files of afero.OsFs.
type Descriptor interface {
	Fd() uintptr
}

// Lock takes an exclusive lock on the file. Files which do not expose a
// descriptor, like in-memory files, are not locked at all.
// The returned function releases the lock.
func Lock(file interface{}) (func() error, error) {
	fd, ok := file.(Descriptor)
	if !ok {
		return func() error { return nil }, nil
	}
	return lock(fd.Fd())
}
