package flashfat

import (
	"os"
	"time"
)

// FileInfo returns the descriptor as os.FileInfo. Sys returns a copy of the
// Descriptor.
func (d *Descriptor) FileInfo() os.FileInfo {
	return descriptorFileInfo{*d}
}

type descriptorFileInfo struct {
	entry Descriptor
}

func (e descriptorFileInfo) Name() string {
	return e.entry.Name
}

func (e descriptorFileInfo) Size() int64 {
	return int64(e.entry.Size)
}

func (e descriptorFileInfo) Mode() os.FileMode {
	if e.entry.IsReadOnly() {
		return 0444
	}
	return 0666
}

func (e descriptorFileInfo) ModTime() time.Time {
	return e.entry.Modified.Time()
}

func (e descriptorFileInfo) IsDir() bool {
	return false
}

func (e descriptorFileInfo) Sys() interface{} {
	return e.entry
}

// rootFileInfo describes the root directory, which has no descriptor.
type rootFileInfo struct{}

func (rootFileInfo) Name() string       { return "." }
func (rootFileInfo) Size() int64        { return 0 }
func (rootFileInfo) Mode() os.FileMode  { return os.ModeDir | 0755 }
func (rootFileInfo) ModTime() time.Time { return time.Time{} }
func (rootFileInfo) IsDir() bool        { return true }
func (rootFileInfo) Sys() interface{}   { return nil }
