package flashfat

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/aligator/flashfat/checkpoint"
	"github.com/spf13/afero"
)

// erasedByte is the value of every byte of an erased flash sector.
const erasedByte = 0xFF

// ImageFlash emulates a flash medium inside of a file. Any afero filesystem
// can hold the image, so it works on a real disk as well as in memory.
type ImageFlash struct {
	file    afero.File
	sectors uint32
}

// NewImageFlash uses an already opened image file with the given number of sectors.
// The file must be at least sectors*SectorSize bytes big.
func NewImageFlash(file afero.File, sectors uint32) *ImageFlash {
	return &ImageFlash{
		file:    file,
		sectors: sectors,
	}
}

// CreateImage creates (or replaces) the image at path with the given number
// of erased sectors.
func CreateImage(fs afero.Fs, path string, sectors uint32) (*ImageFlash, error) {
	file, err := fs.Create(path)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	flash := NewImageFlash(file, sectors)
	for i := uint32(0); i < sectors; i++ {
		if err := flash.EraseSector(i); err != nil {
			file.Close()
			return nil, err
		}
	}

	return flash, nil
}

// OpenImage opens an existing image read-write. The number of sectors is
// derived from the file size, a trailing partial sector is ignored.
func OpenImage(fs afero.Fs, path string) (*ImageFlash, error) {
	file, err := fs.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, checkpoint.From(err)
	}

	return NewImageFlash(file, uint32(stat.Size()/SectorSize)), nil
}

// NewMemFlash creates an erased in-memory flash with the given number of sectors.
func NewMemFlash(sectors uint32) *ImageFlash {
	flash, err := CreateImage(afero.NewMemMapFs(), "flash.img", sectors)
	if err != nil {
		// Creating a file in a fresh MemMapFs cannot fail.
		panic(err)
	}
	return flash
}

// SectorCount returns the number of sectors of the image.
func (f *ImageFlash) SectorCount() uint32 {
	return f.sectors
}

// File returns the underlying image file.
func (f *ImageFlash) File() afero.File {
	return f.file
}

func (f *ImageFlash) check(index uint32, buf []byte) error {
	if index >= f.sectors {
		return checkpoint.Errorf("%w: sector %d of %d", ErrOutOfRange, index, f.sectors)
	}
	if buf != nil && len(buf) != SectorSize {
		return checkpoint.Errorf("sector buffer has %d bytes, want %d", len(buf), SectorSize)
	}
	return nil
}

func (f *ImageFlash) ReadSector(index uint32, dst []byte) error {
	if err := f.check(index, dst); err != nil {
		return err
	}

	n, err := f.file.ReadAt(dst, int64(index)*SectorSize)
	if err == io.EOF && n == len(dst) {
		err = nil
	}
	if err != nil {
		return checkpoint.Wrap(err, fmt.Errorf("read sector %d", index))
	}
	return nil
}

func (f *ImageFlash) WriteSector(index uint32, src []byte) error {
	if err := f.check(index, src); err != nil {
		return err
	}

	if _, err := f.file.WriteAt(src, int64(index)*SectorSize); err != nil {
		return checkpoint.Wrap(err, fmt.Errorf("write sector %d", index))
	}
	return nil
}

func (f *ImageFlash) EraseSector(index uint32) error {
	if err := f.check(index, nil); err != nil {
		return err
	}

	erased := bytes.Repeat([]byte{erasedByte}, SectorSize)
	if _, err := f.file.WriteAt(erased, int64(index)*SectorSize); err != nil {
		return checkpoint.Wrap(err, fmt.Errorf("erase sector %d", index))
	}
	return nil
}

// Sync flushes the image file.
func (f *ImageFlash) Sync() error {
	return checkpoint.From(f.file.Sync())
}

// Close closes the image file.
func (f *ImageFlash) Close() error {
	return checkpoint.From(f.file.Close())
}
