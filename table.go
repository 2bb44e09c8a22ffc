package flashfat

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"unicode/utf8"

	"github.com/aligator/flashfat/checkpoint"
	"github.com/go-restruct/restruct"
)

const (
	// descriptorSize is the size of one serialized descriptor.
	descriptorSize = 260

	// freeCountSize is the size of the free cluster counter behind the descriptors.
	freeCountSize = 4
)

// File attributes stored in Descriptor.Attributes.
const (
	AttrReadOnly uint8 = 0x01
	AttrHidden   uint8 = 0x02
	AttrSystem   uint8 = 0x04
	AttrArchive  uint8 = 0x20
)

// rawDescriptor is the on-flash record of a Descriptor, packed little-endian
// with the alignment padding of the on-flash layout spelled out.
type rawDescriptor struct {
	Filename     [MaxFilenameLength]byte
	Extension    [MaxExtensionLength]byte
	Attributes   uint8
	Align0       uint8
	Created      Datetime
	Accessed     Datetime
	Modified     Datetime
	FirstCluster uint16
	Size         uint32
	InUse        bool
	Align1       [3]byte
}

// Descriptor describes one file of the volume. Descriptors are owned by the
// Table and only change through the directory and file operations.
type Descriptor struct {
	Name       string
	Extension  string
	Attributes uint8

	Created  Datetime
	Accessed Datetime
	Modified Datetime

	FirstCluster uint16
	Size         uint32

	// InUse is set while the file is open.
	InUse bool
}

// occupied reports whether the slot holds a file, open or closed.
func (d *Descriptor) occupied() bool {
	return d.Name != ""
}

// IsReadOnly reports the read-only attribute.
func (d *Descriptor) IsReadOnly() bool {
	return d.Attributes&AttrReadOnly != 0
}

func (d *Descriptor) raw() rawDescriptor {
	r := rawDescriptor{
		Attributes:   d.Attributes,
		Created:      d.Created,
		Accessed:     d.Accessed,
		Modified:     d.Modified,
		FirstCluster: d.FirstCluster,
		Size:         d.Size,
		InUse:        d.InUse,
	}
	copy(r.Filename[:], d.Name)
	copy(r.Extension[:], d.Extension)
	return r
}

func (d *Descriptor) fromRaw(r rawDescriptor) error {
	name, err := cString(r.Filename[:])
	if err != nil {
		return err
	}
	ext, err := cString(r.Extension[:])
	if err != nil {
		return err
	}

	*d = Descriptor{
		Name:         name,
		Extension:    ext,
		Attributes:   r.Attributes,
		Created:      r.Created,
		Accessed:     r.Accessed,
		Modified:     r.Modified,
		FirstCluster: r.FirstCluster,
		Size:         r.Size,
		InUse:        r.InUse,
	}
	return nil
}

// cString reads a NUL terminated string from a fixed size field.
func cString(field []byte) (string, error) {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	if !utf8.Valid(field) {
		return "", checkpoint.Errorf("%w: name is no valid utf-8", ErrCorruptTable)
	}
	return string(field), nil
}

// Table is the file allocation table: a fixed number of descriptor slots and
// the number of free clusters. It lives in memory while a volume is mounted
// and is always written to flash as a whole.
type Table struct {
	Entries   []Descriptor
	FreeCount uint32
}

func newTable(geo Geometry) *Table {
	return &Table{
		Entries:   make([]Descriptor, geo.MaxFiles),
		FreeCount: uint32(geo.MaxClusters),
	}
}

// MarshalBinary serializes the descriptors in slot order followed by the
// free cluster counter.
func (t *Table) MarshalBinary() ([]byte, error) {
	blob := make([]byte, 0, len(t.Entries)*descriptorSize+freeCountSize)
	for i := range t.Entries {
		raw := t.Entries[i].raw()
		rec, err := restruct.Pack(binary.LittleEndian, &raw)
		if err != nil {
			return nil, checkpoint.From(err)
		}
		blob = append(blob, rec...)
	}

	return binary.LittleEndian.AppendUint32(blob, t.FreeCount), nil
}

// UnmarshalBinary reads a table serialized by MarshalBinary. The number of
// slots is derived from the length of data.
func (t *Table) UnmarshalBinary(data []byte) error {
	if len(data) < freeCountSize || (len(data)-freeCountSize)%descriptorSize != 0 {
		return checkpoint.Errorf("%w: table blob of %d bytes", ErrCorruptTable, len(data))
	}

	count := (len(data) - freeCountSize) / descriptorSize
	entries := make([]Descriptor, count)
	for i := range entries {
		var r rawDescriptor
		if err := restruct.Unpack(data[i*descriptorSize:(i+1)*descriptorSize], binary.LittleEndian, &r); err != nil {
			return checkpoint.Wrap(err, ErrCorruptTable)
		}
		if err := entries[i].fromRaw(r); err != nil {
			return err
		}
	}

	t.Entries = entries
	t.FreeCount = binary.LittleEndian.Uint32(data[count*descriptorSize:])
	return nil
}

// validate checks a loaded table against the geometry it was mounted with.
func (t *Table) validate(geo Geometry) error {
	if len(t.Entries) != geo.MaxFiles {
		return checkpoint.Errorf("%w: %d slots, want %d", ErrCorruptTable, len(t.Entries), geo.MaxFiles)
	}
	if t.FreeCount > uint32(geo.MaxClusters) {
		return checkpoint.Errorf("%w: %d free clusters of %d", ErrCorruptTable, t.FreeCount, geo.MaxClusters)
	}

	names := make(map[string]struct{})
	for i := range t.Entries {
		d := &t.Entries[i]
		if !d.occupied() {
			if d.InUse {
				return checkpoint.Errorf("%w: slot %d is in use but has no name", ErrCorruptTable, i)
			}
			continue
		}
		if _, ok := names[d.Name]; ok {
			return checkpoint.Errorf("%w: duplicate name %q", ErrCorruptTable, d.Name)
		}
		names[d.Name] = struct{}{}

		if int(d.FirstCluster) >= geo.MaxClusters {
			return checkpoint.Errorf("%w: %q starts at cluster %d", ErrCorruptTable, d.Name, d.FirstCluster)
		}
		if int64(d.Size) > geo.Capacity() {
			return checkpoint.Errorf("%w: %q has %d bytes", ErrCorruptTable, d.Name, d.Size)
		}
	}
	return nil
}

// tableStore copies the table between memory and the metadata region,
// which starts at sector 0.
type tableStore struct {
	cache  *sectorCache
	geo    Geometry
	logger *slog.Logger
}

// format erases the metadata region and writes an empty table.
func (s *tableStore) format() (*Table, error) {
	for sector := uint32(0); sector < s.geo.MetadataSectors(); sector++ {
		if err := s.cache.erase(sector); err != nil {
			return nil, err
		}
	}

	t := newTable(s.geo)
	if err := s.save(t); err != nil {
		return nil, err
	}
	return t, nil
}

// save writes the whole table into consecutive sectors. The tail of the
// last sector is zero filled.
func (s *tableStore) save(t *Table) error {
	if len(t.Entries) != s.geo.MaxFiles {
		return checkpoint.Errorf("%w: table has %d slots, want %d", ErrOutOfRange, len(t.Entries), s.geo.MaxFiles)
	}

	blob, err := t.MarshalBinary()
	if err != nil {
		return err
	}

	sector := uint32(0)
	for written := 0; written < len(blob); sector++ {
		n := min(SectorSize, len(blob)-written)
		if err := s.cache.store(sector, blob[written:written+n]); err != nil {
			return err
		}
		written += n
	}

	if err := s.cache.sync(); err != nil {
		return err
	}

	debug(s.logger, "saved table", slog.Int("sectors", int(sector)), slog.Uint64("free", uint64(t.FreeCount)))
	return nil
}

// load reads the whole table from the metadata region.
func (s *tableStore) load() (*Table, error) {
	blob := make([]byte, s.geo.TableSize())

	sector := uint32(0)
	for read := 0; read < len(blob); sector++ {
		buffer, err := s.cache.fetch(sector)
		if err != nil {
			return nil, err
		}
		read += copy(blob[read:], buffer)
	}

	t := &Table{}
	if err := t.UnmarshalBinary(blob); err != nil {
		return nil, err
	}
	if err := t.validate(s.geo); err != nil {
		return nil, err
	}

	debug(s.logger, "loaded table", slog.Int("sectors", int(sector)), slog.Uint64("free", uint64(t.FreeCount)))
	return t, nil
}
