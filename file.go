package flashfat

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/aligator/flashfat/checkpoint"
	"github.com/spf13/afero"
)

// These errors may occur while processing a file.
var (
	ErrReadFile  = errors.New("could not read file completely")
	ErrWriteFile = errors.New("could not write file")
	ErrSeekFile  = errors.New("could not seek inside of the file")
	ErrReadDir   = errors.New("could not read the directory")
)

// File is an open file of an Fs, or the root directory.
//
// The volume can only write a file as a whole, so the content is held in
// memory while the file is open. Changes reach the flash on Sync and Close.
type File struct {
	fs   *Fs
	desc *Descriptor
	name string
	flag int

	// stored is the name in the table, which may differ from name.
	stored string

	content []byte
	offset  int64
	dirty   bool
	closed  bool

	isDirectory bool
	entries     []os.FileInfo
}

var _ afero.File = (*File)(nil)

func (f *File) readable() error {
	if f.closed {
		return afero.ErrFileClosed
	}
	if f.isDirectory {
		return checkpoint.From(ErrIsDirectory)
	}
	if f.flag&os.O_WRONLY != 0 {
		return checkpoint.Wrap(syscall.EBADF, ErrReadFile)
	}
	return nil
}

func (f *File) writable() error {
	if f.closed {
		return afero.ErrFileClosed
	}
	if f.isDirectory {
		return checkpoint.From(ErrIsDirectory)
	}
	if f.flag&(os.O_WRONLY|os.O_RDWR) == 0 {
		return checkpoint.Wrap(syscall.EBADF, ErrWriteFile)
	}
	return nil
}

// current returns the descriptor if it still describes this file. Another
// handle may have removed or renamed it meanwhile.
func (f *File) current() (*Descriptor, error) {
	if err := f.fs.volume.owns(f.desc); err != nil {
		return nil, err
	}
	if !f.desc.occupied() || f.desc.Name != f.stored {
		return nil, checkpoint.Errorf("%w: %q was removed or renamed", ErrNotFound, f.name)
	}
	return f.desc, nil
}

func (f *File) Close() error {
	if f.closed {
		return afero.ErrFileClosed
	}

	var err error
	if !f.isDirectory {
		err = f.Sync()
		if d, currentErr := f.current(); currentErr == nil {
			err = f.fs.sync(errors.Join(err, f.fs.volume.Close(d)))
		}
	}

	f.closed = true
	f.content = nil
	f.entries = nil
	return err
}

func (f *File) Read(p []byte) (n int, err error) {
	if err := f.readable(); err != nil {
		return 0, &os.PathError{Op: "read", Path: f.name, Err: err}
	}
	if len(p) == 0 {
		return 0, nil
	}

	// Reading a file if the size has been already reached, makes no sense.
	if int64(len(f.content)) <= f.offset {
		return 0, io.EOF
	}

	n = copy(p, f.content[f.offset:])
	f.offset += int64(n)
	return n, nil
}

func (f *File) ReadAt(p []byte, off int64) (n int, err error) {
	if err := f.readable(); err != nil {
		return 0, &os.PathError{Op: "readat", Path: f.name, Err: err}
	}
	if off < 0 {
		return 0, &os.PathError{Op: "readat", Path: f.name, Err: checkpoint.Wrap(syscall.EINVAL, ErrReadFile)}
	}

	// Reading over the end makes no sense.
	if int64(len(f.content)) <= off {
		return 0, io.EOF
	}

	n = copy(p, f.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek jumps to a specific offset in the file. This affects all Read and
// Write operations except ReadAt and WriteAt.
// May return a syscall.EINVAL error if the whence value or the resulting
// offset is invalid. Seeking behind the end is allowed, a following Write
// fills the gap with zeros.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, afero.ErrFileClosed
	}

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = f.offset + offset
	case io.SeekEnd:
		offset = int64(len(f.content)) + offset
	default:
		return 0, checkpoint.Wrap(ErrSeekFile, fmt.Errorf("%w, offset: %v, whence: %v", syscall.EINVAL, offset, whence))
	}

	if offset < 0 {
		return 0, checkpoint.Wrap(ErrSeekFile, fmt.Errorf("%w, offset: %v, whence: %v", syscall.EINVAL, offset, whence))
	}

	f.offset = offset
	return offset, nil
}

func (f *File) Write(p []byte) (n int, err error) {
	if f.flag&os.O_APPEND != 0 {
		f.offset = int64(len(f.content))
	}

	n, err = f.WriteAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

func (f *File) WriteAt(p []byte, off int64) (n int, err error) {
	if err := f.writable(); err != nil {
		return 0, &os.PathError{Op: "write", Path: f.name, Err: err}
	}
	if off < 0 {
		return 0, &os.PathError{Op: "write", Path: f.name, Err: checkpoint.Wrap(syscall.EINVAL, ErrWriteFile)}
	}

	end := off + int64(len(p))
	if capacity := f.fs.volume.geo.Capacity(); end > capacity {
		return 0, &os.PathError{Op: "write", Path: f.name, Err: checkpoint.Errorf("%w: %d bytes exceed the capacity of %d bytes", ErrNoFreeSpace, end, capacity)}
	}

	if end > int64(len(f.content)) {
		f.resize(end)
	}

	n = copy(f.content[off:], p)
	f.dirty = true
	return n, nil
}

func (f *File) WriteString(s string) (ret int, err error) {
	return f.Write([]byte(s))
}

// resize cuts or zero extends the buffered content.
func (f *File) resize(size int64) {
	if size <= int64(cap(f.content)) {
		old := len(f.content)
		f.content = f.content[:size]
		if int(size) > old {
			clear(f.content[old:])
		}
		return
	}

	grown := make([]byte, size)
	copy(grown, f.content)
	f.content = grown
}

func (f *File) Name() string {
	return f.name
}

// Readdir reads the contents of the root directory.
// May return ErrNotDir if the current File is no directory.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if f.closed {
		return nil, afero.ErrFileClosed
	}
	if !f.isDirectory {
		return nil, &os.PathError{Op: "readdir", Path: f.name, Err: checkpoint.Wrap(ErrNotDir, ErrReadDir)}
	}

	// The listing is taken once per handle, so that consecutive calls
	// continue where the last one stopped.
	if f.entries == nil {
		content, err := f.fs.readRoot()
		if err != nil {
			return nil, checkpoint.Wrap(err, ErrReadDir)
		}
		f.entries = content
	}

	rest := f.entries[min(f.offset, int64(len(f.entries))):]
	if count <= 0 {
		f.offset += int64(len(rest))
		return rest, nil
	}

	if len(rest) == 0 {
		return nil, io.EOF
	}

	count = min(count, len(rest))
	f.offset += int64(count)
	return rest[:count], nil
}

func (f *File) Readdirnames(count int) ([]string, error) {
	content, err := f.Readdir(count)
	names := make([]string, len(content))
	for i, entry := range content {
		names[i] = entry.Name()
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return names, checkpoint.Wrap(err, ErrReadDir)
	}
	return names, err
}

// Stat describes the file including changes not synced yet.
func (f *File) Stat() (os.FileInfo, error) {
	if f.closed {
		return nil, afero.ErrFileClosed
	}
	if f.isDirectory {
		return rootFileInfo{}, nil
	}

	d, err := f.current()
	if err != nil {
		return nil, &os.PathError{Op: "stat", Path: f.name, Err: osError(err)}
	}

	entry := *d
	entry.Size = uint32(len(f.content))
	return descriptorFileInfo{entry}, nil
}

// Sync writes the buffered content to the volume: the old clusters are
// released, the new content is written and the table is saved.
//
// Content which cannot fit into the free clusters plus the clusters of the
// file fails with ErrNoFreeSpace before the stored content is touched. If the
// volume still runs out of clusters while writing, the old content is gone
// and the file fails to read with ErrCorruptChain until it is opened with
// O_TRUNC or removed.
func (f *File) Sync() error {
	if f.closed {
		return afero.ErrFileClosed
	}
	if f.isDirectory || !f.dirty {
		return nil
	}

	d, err := f.current()
	if err != nil {
		return &os.PathError{Op: "sync", Path: f.name, Err: osError(err)}
	}

	volume := f.fs.volume
	if !volume.fits(d, int64(len(f.content))) {
		return &os.PathError{Op: "sync", Path: f.name, Err: checkpoint.Wrap(checkpoint.Errorf("%w: %d bytes do not fit", ErrNoFreeSpace, len(f.content)), ErrWriteFile)}
	}

	err = volume.Truncate(d)
	if err == nil {
		_, err = volume.Write(d, f.content)
	}

	if err := f.fs.sync(err); err != nil {
		return &os.PathError{Op: "sync", Path: f.name, Err: checkpoint.Wrap(err, ErrWriteFile)}
	}

	f.dirty = false
	return nil
}

func (f *File) Truncate(size int64) error {
	if err := f.writable(); err != nil {
		return &os.PathError{Op: "truncate", Path: f.name, Err: err}
	}
	if size < 0 {
		return &os.PathError{Op: "truncate", Path: f.name, Err: checkpoint.Wrap(syscall.EINVAL, ErrWriteFile)}
	}
	if capacity := f.fs.volume.geo.Capacity(); size > capacity {
		return &os.PathError{Op: "truncate", Path: f.name, Err: checkpoint.Errorf("%w: %d bytes exceed the capacity of %d bytes", ErrNoFreeSpace, size, capacity)}
	}

	f.resize(size)
	f.dirty = true
	return nil
}
