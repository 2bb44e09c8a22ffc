package flashfat

import (
	"log/slog"

	"github.com/aligator/flashfat/checkpoint"
)

// clustersFor returns how many clusters hold size bytes.
func clustersFor(size int64) int {
	return int((size + ClusterDataSize - 1) / ClusterDataSize)
}

// Write stores data as the content of the file, starting at its first
// cluster. Every cluster it writes to must be free, so an existing file has to
// be truncated before it can be written again.
//
// The size of the file only grows. On success len(data) is returned.
//
// If the data region runs out of clusters, ErrNoFreeSpace is returned along
// with the number of bytes in clusters which got linked, and the size becomes
// that number. The last cluster written stays free, so the chain of the file
// has no end marker and reading it fails with ErrCorruptChain until it is
// truncated or deleted. Nothing is rolled back.
func (v *Volume) Write(d *Descriptor, data []byte) (int, error) {
	if err := v.owns(d); err != nil {
		return 0, err
	}
	if !d.occupied() {
		return 0, checkpoint.Errorf("%w: writing to an empty slot", ErrNotFound)
	}
	if int64(len(data)) > v.geo.Capacity() {
		return 0, checkpoint.Errorf("%w: %d bytes exceed the capacity of %d bytes", ErrNoFreeSpace, len(data), v.geo.Capacity())
	}

	if len(data) == 0 {
		d.Modified = v.now()
		return 0, nil
	}

	var (
		current   = d.FirstCluster
		offset    int
		committed int
		consumed  int
	)

	// abort flushes what was written so far, the caller sees a link
	// consistent chain up to the last committed cluster.
	abort := func(err error) (int, error) {
		if syncErr := v.cache.sync(); syncErr != nil {
			return committed, syncErr
		}
		v.consume(consumed)

		// Releasing the file must stop at the last linked cluster.
		if size := uint32(committed); size > d.Size {
			d.Size = size
			d.Modified = v.now()
		}
		warn(v.logger, "write aborted", slog.String("name", d.Name), slog.Int("committed", committed), slog.Any("err", err))
		return committed, err
	}

	for {
		l, payload, err := v.clusters.read(current)
		if err != nil {
			return abort(err)
		}
		if !l.IsFree() {
			return abort(checkpoint.Errorf("%w: cluster %d of %q", ErrClusterConflict, current, d.Name))
		}

		offset += copy(payload, data[offset:])
		v.cache.markDirty()

		if offset == len(data) {
			if err := v.clusters.setLink(current, linkEOF); err != nil {
				return abort(err)
			}
			consumed++
			committed = offset
			break
		}

		next, err := v.clusters.allocateAfter(current)
		if err != nil {
			return abort(err)
		}
		if err := v.clusters.setLink(current, link(next)); err != nil {
			return abort(err)
		}
		consumed++
		committed = offset
		current = next
	}

	if err := v.cache.sync(); err != nil {
		return committed, err
	}
	v.consume(consumed)

	if size := uint32(len(data)); size > d.Size {
		d.Size = size
	}
	d.Modified = v.now()

	debug(v.logger, "wrote file", slog.String("name", d.Name), slog.Int("bytes", len(data)), slog.Int("clusters", consumed))
	return len(data), nil
}

// Read returns the whole content of the file.
//
// It follows the chain for exactly as many clusters as the size requires.
// A chain which ends early, points to a free cluster, leaves the data region
// or has no end marker behind the last cluster results in ErrCorruptChain.
func (v *Volume) Read(d *Descriptor) ([]byte, error) {
	if err := v.owns(d); err != nil {
		return nil, err
	}
	if !d.occupied() {
		return nil, checkpoint.Errorf("%w: reading an empty slot", ErrNotFound)
	}

	buffer := make([]byte, d.Size)
	clusters := clustersFor(int64(d.Size))

	current := d.FirstCluster
	offset := 0
	for i := 0; i < clusters; i++ {
		if int(current) >= v.geo.MaxClusters {
			return nil, checkpoint.Errorf("%w: %q links to cluster %d", ErrCorruptChain, d.Name, current)
		}

		l, payload, err := v.clusters.read(current)
		if err != nil {
			return nil, err
		}
		if l.IsFree() {
			return nil, checkpoint.Errorf("%w: %q reaches free cluster %d after %d bytes", ErrCorruptChain, d.Name, current, offset)
		}

		offset += copy(buffer[offset:], payload)

		if i == clusters-1 {
			if !l.IsEOF() {
				return nil, checkpoint.Errorf("%w: %q has no end marker after %d bytes", ErrCorruptChain, d.Name, offset)
			}
			break
		}
		if l.IsEOF() {
			return nil, checkpoint.Errorf("%w: %q ends after %d of %d bytes", ErrCorruptChain, d.Name, offset, d.Size)
		}
		current = uint16(l)
	}

	return buffer, nil
}

// Truncate releases all clusters of the file and sets its size to 0.
// The first cluster stays assigned to the file, so it can be written again.
func (v *Volume) Truncate(d *Descriptor) error {
	if err := v.owns(d); err != nil {
		return err
	}
	if !d.occupied() {
		return checkpoint.Errorf("%w: truncating an empty slot", ErrNotFound)
	}

	if err := v.releaseChain(d); err != nil {
		return err
	}

	d.Size = 0
	d.Modified = v.now()
	return nil
}

// Chain returns the ids of the clusters linked into the file, in order, as
// far as its size reaches. A file which was never written has an empty chain.
func (v *Volume) Chain(d *Descriptor) ([]uint16, error) {
	if err := v.owns(d); err != nil {
		return nil, err
	}
	if !d.occupied() {
		return nil, checkpoint.Errorf("%w: empty slot has no chain", ErrNotFound)
	}

	return v.clusters.chain(d.FirstCluster, clustersFor(int64(d.Size)))
}

// fits reports whether size bytes may replace the content of d, counting the
// free clusters and the clusters d owns. The scan for free clusters only moves
// forward and skips the first clusters of other files, so Write can still run
// out of clusters when fits is true.
func (v *Volume) fits(d *Descriptor, size int64) bool {
	return clustersFor(size) <= int(v.table.FreeCount)+clustersFor(int64(d.Size))
}
