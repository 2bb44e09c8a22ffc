package flashfat

import "errors"

// These errors may occur while working with a volume.
// They are usually wrapped by a checkpoint, use errors.Is to check for them.
var (
	ErrOutOfRange      = errors.New("sector or cluster out of range")
	ErrNotFound        = errors.New("file not found")
	ErrAlreadyExists   = errors.New("file already exists")
	ErrNoFreeSlot      = errors.New("file table is full")
	ErrNoFreeSpace     = errors.New("no free cluster left")
	ErrClusterConflict = errors.New("cluster is already in use")
	ErrCorruptChain    = errors.New("cluster chain ends before the file size is reached")
	ErrCorruptTable    = errors.New("file table is corrupt or not formatted")
	ErrInvalidName     = errors.New("invalid file name")
	ErrNotMounted      = errors.New("volume is not mounted")
)

// These errors are returned by the afero and io/fs layers.
var (
	ErrUnsupported = errors.New("operation not supported by a flat volume")
	ErrReadOnly    = errors.New("file is read-only")
	ErrIsDirectory = errors.New("is the root directory")
	ErrNotDir      = errors.New("not a directory")
)
