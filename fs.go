package flashfat

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/aligator/flashfat/checkpoint"
	"github.com/spf13/afero"
)

// Fs provides the files of a mounted Volume as afero.Fs.
//
// The namespace is flat. The only directory is the root, which can be opened
// as "", "/" or ".". Every change of the file table is written to flash
// before a method returns.
type Fs struct {
	volume *Volume
}

var _ afero.Fs = (*Fs)(nil)

// New wraps a formatted or mounted volume.
func New(volume *Volume) *Fs {
	return &Fs{volume: volume}
}

// Volume returns the underlying volume.
func (fs *Fs) Volume() *Volume {
	return fs.volume
}

// isRoot reports whether name addresses the root directory.
func isRoot(name string) bool {
	return name == "" || name == "/" || name == "."
}

// osError translates volume errors into the errors of the os package, while
// keeping the original error in the chain.
func osError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%w: %w", os.ErrNotExist, err)
	case errors.Is(err, ErrAlreadyExists):
		return fmt.Errorf("%w: %w", os.ErrExist, err)
	case errors.Is(err, ErrReadOnly):
		return fmt.Errorf("%w: %w", os.ErrPermission, err)
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrNotDir), errors.Is(err, ErrIsDirectory):
		return fmt.Errorf("%w: %w", os.ErrInvalid, err)
	}
	return err
}

func pathError(op, name string, err error) error {
	return &os.PathError{Op: op, Path: name, Err: osError(err)}
}

// sync saves the table and combines a failure with err.
func (fs *Fs) sync(err error) error {
	if syncErr := fs.volume.Sync(); syncErr != nil && err == nil {
		return syncErr
	}
	return err
}

func (fs *Fs) Create(name string) (afero.File, error) {
	return fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

func (fs *Fs) Mkdir(name string, perm os.FileMode) error {
	return pathError("mkdir", name, checkpoint.From(ErrUnsupported))
}

// MkdirAll succeeds only for the root directory, which always exists.
func (fs *Fs) MkdirAll(path string, perm os.FileMode) error {
	if isRoot(path) {
		return nil
	}
	return pathError("mkdir", path, checkpoint.From(ErrUnsupported))
}

func (fs *Fs) Open(name string) (afero.File, error) {
	return fs.OpenFile(name, os.O_RDONLY, 0)
}

// OpenFile opens a file with the flags of os.OpenFile.
// O_SYNC and O_EXCL without O_CREATE are ignored. A perm without any write
// bit creates a read-only file.
func (fs *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	writable := flag&(os.O_WRONLY|os.O_RDWR) != 0

	if isRoot(name) {
		if writable {
			return nil, pathError("open", name, checkpoint.From(ErrIsDirectory))
		}
		if err := fs.volume.mounted(); err != nil {
			return nil, pathError("open", name, err)
		}
		return &File{fs: fs, name: name, isDirectory: true}, nil
	}

	d, err := fs.volume.Lookup(name)
	created := false
	switch {
	case errors.Is(err, ErrNotFound) && flag&os.O_CREATE != 0:
		d, err = fs.volume.Create(name)
		if err != nil {
			return nil, pathError("open", name, err)
		}
		if perm&0222 == 0 {
			d.Attributes |= AttrReadOnly
		}
		created = true
	case err != nil:
		return nil, pathError("open", name, err)
	case flag&(os.O_CREATE|os.O_EXCL) == os.O_CREATE|os.O_EXCL:
		return nil, pathError("open", name, checkpoint.From(ErrAlreadyExists))
	}

	// A file created read-only may still be written through this handle.
	if writable && d.IsReadOnly() && !created {
		return nil, pathError("open", name, checkpoint.From(ErrReadOnly))
	}

	if !created {
		d, err = fs.volume.Open(name)
		if err != nil {
			return nil, pathError("open", name, err)
		}
	}

	f := &File{
		fs:     fs,
		desc:   d,
		name:   name,
		flag:   flag,
		stored: d.Name,
	}

	if writable && flag&os.O_TRUNC != 0 {
		f.dirty = true
	} else {
		f.content, err = fs.volume.Read(d)
		if err != nil {
			return nil, pathError("open", name, fs.sync(err))
		}
	}

	if err := fs.sync(nil); err != nil {
		return nil, pathError("open", name, err)
	}
	return f, nil
}

func (fs *Fs) Remove(name string) error {
	if isRoot(name) {
		return pathError("remove", name, checkpoint.From(ErrIsDirectory))
	}

	d, err := fs.volume.Lookup(name)
	if err != nil {
		return pathError("remove", name, err)
	}

	if err := fs.sync(fs.volume.Delete(d)); err != nil {
		return pathError("remove", name, err)
	}
	return nil
}

// RemoveAll removes a single file. Called on the root it removes every file.
func (fs *Fs) RemoveAll(path string) error {
	if !isRoot(path) {
		err := fs.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	files, err := fs.volume.Files()
	if err != nil {
		return pathError("removeall", path, err)
	}

	for _, file := range files {
		d, err := fs.volume.Lookup(file.Name)
		if err == nil {
			err = fs.volume.Delete(d)
		}
		if err != nil {
			return pathError("removeall", file.Name, fs.sync(err))
		}
	}

	if err := fs.sync(nil); err != nil {
		return pathError("removeall", path, err)
	}
	return nil
}

// Rename replaces newname, if it exists, like os.Rename does.
func (fs *Fs) Rename(oldname, newname string) error {
	if isRoot(oldname) || isRoot(newname) {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: osError(checkpoint.From(ErrIsDirectory))}
	}

	d, err := fs.volume.Lookup(oldname)
	if err != nil {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: osError(err)}
	}

	if target, err := fs.volume.Lookup(newname); err == nil && target != d {
		if err := fs.volume.Delete(target); err != nil {
			return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: osError(fs.sync(err))}
		}
	}

	if err := fs.sync(fs.volume.Rename(d, newname)); err != nil {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: osError(err)}
	}
	return nil
}

func (fs *Fs) Stat(name string) (os.FileInfo, error) {
	if isRoot(name) {
		if err := fs.volume.mounted(); err != nil {
			return nil, pathError("stat", name, err)
		}
		return rootFileInfo{}, nil
	}

	d, err := fs.volume.Lookup(name)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return d.FileInfo(), nil
}

func (fs *Fs) Name() string {
	return "flashfat"
}

// Chmod maps the missing write permission to the read-only attribute.
// All other mode bits are ignored.
func (fs *Fs) Chmod(name string, mode os.FileMode) error {
	if isRoot(name) {
		return pathError("chmod", name, checkpoint.From(ErrUnsupported))
	}

	d, err := fs.volume.Lookup(name)
	if err != nil {
		return pathError("chmod", name, err)
	}

	attributes := d.Attributes &^ AttrReadOnly
	if mode&0222 == 0 {
		attributes |= AttrReadOnly
	}

	if err := fs.sync(fs.volume.SetAttributes(d, attributes)); err != nil {
		return pathError("chmod", name, err)
	}
	return nil
}

func (fs *Fs) Chown(name string, uid, gid int) error {
	return pathError("chown", name, checkpoint.From(ErrUnsupported))
}

func (fs *Fs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	if isRoot(name) {
		return pathError("chtimes", name, checkpoint.From(ErrUnsupported))
	}

	d, err := fs.volume.Lookup(name)
	if err != nil {
		return pathError("chtimes", name, err)
	}

	if err := fs.sync(fs.volume.SetTimes(d, NewDatetime(atime.UTC()), NewDatetime(mtime.UTC()))); err != nil {
		return pathError("chtimes", name, err)
	}
	return nil
}

// readRoot lists all files sorted by name.
func (fs *Fs) readRoot() ([]os.FileInfo, error) {
	files, err := fs.volume.Files()
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	infos := make([]os.FileInfo, len(files))
	for i := range files {
		infos[i] = files[i].FileInfo()
	}
	return infos, nil
}
