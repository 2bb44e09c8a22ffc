package flashfat

import (
	"errors"
	"io/fs"
	"strings"
)

// GoDirEntry is a listed file of the root directory as fs.DirEntry.
type GoDirEntry struct {
	fs.FileInfo
}

func (e GoDirEntry) Type() fs.FileMode {
	return e.Mode().Type()
}

func (e GoDirEntry) Info() (fs.FileInfo, error) {
	return e.FileInfo, nil
}

// GoFile is an open file or the root directory as fs.File. Regular files
// also provide io.ReaderAt and io.Seeker through the embedded File.
type GoFile struct {
	*File
}

func (g GoFile) Stat() (fs.FileInfo, error) {
	return g.File.Stat()
}

// ReadDir lists the root directory, see File.Readdir for the paging rules.
func (g GoFile) ReadDir(n int) ([]fs.DirEntry, error) {
	infos, err := g.Readdir(n)

	entries := make([]fs.DirEntry, len(infos))
	for i, info := range infos {
		entries[i] = GoDirEntry{info}
	}
	return entries, err
}

// GoFs just wraps the afero implementation to be compatible with fs.FS.
type GoFs struct {
	*Fs
}

// NewGoFS provides a formatted or mounted volume as fs.FS.
func NewGoFS(volume *Volume) *GoFs {
	return &GoFs{New(volume)}
}

func (g GoFs) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	// The only directory is the root, so a path with a separator can not exist.
	if strings.Contains(name, "/") {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	file, err := g.Fs.Open(name)
	if err != nil {
		return nil, err
	}

	f, ok := file.(*File)
	if !ok {
		return nil, errors.New("invalid File implementation")
	}

	return GoFile{f}, nil
}
