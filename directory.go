package flashfat

import (
	"log/slog"

	"github.com/aligator/flashfat/checkpoint"
)

// lookup returns the slot holding name, open or closed.
// Names are unique among occupied slots, so there is at most one.
func (v *Volume) lookup(name string) *Descriptor {
	for i := range v.table.Entries {
		d := &v.table.Entries[i]
		if d.occupied() && d.Name == name {
			return d
		}
	}
	return nil
}

// Lookup finds a file without opening it. The returned descriptor belongs to
// the volume and must only be changed through its methods.
func (v *Volume) Lookup(name string) (*Descriptor, error) {
	if err := v.mounted(); err != nil {
		return nil, err
	}

	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	d := v.lookup(clean)
	if d == nil {
		return nil, checkpoint.Errorf("%w: %q", ErrNotFound, clean)
	}
	return d, nil
}

// Open marks the file with the given name as in use and stamps its access
// time. A closed file is opened again, its content is still there.
func (v *Volume) Open(name string) (*Descriptor, error) {
	d, err := v.Lookup(name)
	if err != nil {
		return nil, err
	}

	d.InUse = true
	d.Accessed = v.now()
	debug(v.logger, "opened file", slog.String("name", d.Name), clusterAttr(d.FirstCluster))
	return d, nil
}

// Create adds a new, empty and open file.
//
// It fails with ErrAlreadyExists if a file with that name is open. A closed
// file with the same name is replaced. Otherwise an empty slot is used and,
// if there is none, the first closed file gets replaced. Replacing releases
// the clusters of the old file.
func (v *Volume) Create(name string) (*Descriptor, error) {
	if err := v.mounted(); err != nil {
		return nil, err
	}

	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	slot := v.lookup(name)
	if slot != nil && slot.InUse {
		return nil, checkpoint.Errorf("%w: %q", ErrAlreadyExists, name)
	}
	if slot == nil {
		slot = v.freeSlot()
	}
	if slot == nil {
		return nil, checkpoint.Errorf("%w: all %d slots hold open files", ErrNoFreeSlot, len(v.table.Entries))
	}

	var first uint16
	if slot.occupied() {
		// The released chain starts at the old first cluster, so it is free
		// afterwards and can be taken over.
		warn(v.logger, "replacing closed file", slog.String("old", slot.Name), slog.String("new", name))
		first = slot.FirstCluster
		if err := v.releaseChain(slot); err != nil {
			return nil, err
		}
	} else {
		first, err = v.clusters.allocateFrom(0)
		if err != nil {
			return nil, err
		}
	}

	now := v.now()
	*slot = Descriptor{
		Name:         name,
		Extension:    extensionOf(name),
		Attributes:   AttrArchive,
		Created:      now,
		Accessed:     now,
		Modified:     now,
		FirstCluster: first,
		InUse:        true,
	}

	debug(v.logger, "created file", slog.String("name", name), clusterAttr(first))
	return slot, nil
}

// freeSlot returns the first empty slot, or the first closed one.
func (v *Volume) freeSlot() *Descriptor {
	var closed *Descriptor
	for i := range v.table.Entries {
		d := &v.table.Entries[i]
		if !d.occupied() {
			return d
		}
		if closed == nil && !d.InUse {
			closed = d
		}
	}
	return closed
}

// Close stamps the access time and marks the file as not in use. The file
// keeps its name and clusters, but its slot may be taken by Create.
func (v *Volume) Close(d *Descriptor) error {
	if err := v.owns(d); err != nil {
		return err
	}
	if !d.occupied() {
		return checkpoint.Errorf("%w: closing an empty slot", ErrNotFound)
	}

	d.Accessed = v.now()
	d.InUse = false
	return nil
}

// Delete returns all clusters of the file to the allocator and clears its slot.
func (v *Volume) Delete(d *Descriptor) error {
	if err := v.owns(d); err != nil {
		return err
	}
	if !d.occupied() {
		return checkpoint.Errorf("%w: deleting an empty slot", ErrNotFound)
	}

	name := d.Name
	if err := v.releaseChain(d); err != nil {
		return err
	}

	*d = Descriptor{}
	debug(v.logger, "deleted file", slog.String("name", name))
	return nil
}

// Rename changes the name of a file. The new name must not be taken by
// another file, open or closed.
func (v *Volume) Rename(d *Descriptor, name string) error {
	if err := v.owns(d); err != nil {
		return err
	}
	if !d.occupied() {
		return checkpoint.Errorf("%w: renaming an empty slot", ErrNotFound)
	}

	name, err := cleanName(name)
	if err != nil {
		return err
	}

	if other := v.lookup(name); other != nil && other != d {
		return checkpoint.Errorf("%w: %q", ErrAlreadyExists, name)
	}

	d.Name = name
	d.Extension = extensionOf(name)
	d.Modified = v.now()
	return nil
}

// Files returns copies of all occupied slots in table order.
func (v *Volume) Files() ([]Descriptor, error) {
	if err := v.mounted(); err != nil {
		return nil, err
	}

	var files []Descriptor
	for _, d := range v.table.Entries {
		if d.occupied() {
			files = append(files, d)
		}
	}
	return files, nil
}

// releaseChain frees the clusters covered by the size of d and credits them to
// the free counter. Clusters freed before a corrupt link was hit are credited
// as well.
func (v *Volume) releaseChain(d *Descriptor) error {
	n, err := v.clusters.release(d.FirstCluster, clustersFor(int64(d.Size)))
	v.reclaim(n)
	return err
}

func (v *Volume) reclaim(clusters int) {
	free := int64(v.table.FreeCount) + int64(clusters)
	v.table.FreeCount = uint32(min(free, int64(v.geo.MaxClusters)))
}

func (v *Volume) consume(clusters int) {
	free := int64(v.table.FreeCount) - int64(clusters)
	v.table.FreeCount = uint32(max(free, 0))
}

// SetAttributes replaces the attribute byte of a file.
func (v *Volume) SetAttributes(d *Descriptor, attributes uint8) error {
	if err := v.owns(d); err != nil {
		return err
	}
	if !d.occupied() {
		return checkpoint.Errorf("%w: empty slot has no attributes", ErrNotFound)
	}

	d.Attributes = attributes
	return nil
}

// SetTimes replaces the access and modification stamps of a file.
func (v *Volume) SetTimes(d *Descriptor, accessed, modified Datetime) error {
	if err := v.owns(d); err != nil {
		return err
	}
	if !d.occupied() {
		return checkpoint.Errorf("%w: empty slot has no times", ErrNotFound)
	}

	d.Accessed = accessed
	d.Modified = modified
	return nil
}
