package flashfat

import (
	"encoding/binary"
	"log/slog"

	"github.com/aligator/flashfat/checkpoint"
)

// linkSize is the size of the link field in front of every cluster payload.
const linkSize = 2

// link is the value of the link field of a cluster.
// It is either one of the sentinels or the id of the next cluster of a chain.
type link uint16

const (
	// linkFree marks a cluster which holds no data. It equals the erased
	// state of flash, so an erased data region consists of free clusters only.
	linkFree link = 0xFFFF

	// linkEOF marks the last cluster of a chain.
	linkEOF link = 0xFFFE
)

// IsFree reports whether the cluster may be allocated.
func (l link) IsFree() bool {
	return l == linkFree
}

// IsEOF reports whether the cluster ends its chain.
func (l link) IsEOF() bool {
	return l == linkEOF
}

// IsNext reports whether the link points to another cluster.
func (l link) IsNext() bool {
	return !l.IsFree() && !l.IsEOF()
}

// clusterLayer interprets the sectors of the data region as arrays of
// cluster records. Whether a cluster is free is derived from its link field
// only, there is no separate free list.
type clusterLayer struct {
	cache  *sectorCache
	geo    Geometry
	logger *slog.Logger

	// reserved reports clusters which are free on flash but already promised
	// to a file as its first cluster. The allocator skips them.
	reserved func(id uint16) bool
}

// record returns the bytes of a cluster record inside of the sector cache.
// The slice is only valid until the cache switches to another sector.
func (c *clusterLayer) record(id uint16) ([]byte, error) {
	if int(id) >= c.geo.MaxClusters {
		return nil, checkpoint.Errorf("%w: cluster %d of %d", ErrOutOfRange, id, c.geo.MaxClusters)
	}

	sector, index := c.geo.ClusterSector(id)
	buffer, err := c.cache.fetch(sector)
	if err != nil {
		return nil, err
	}

	offset := index * ClusterSize
	return buffer[offset : offset+ClusterSize], nil
}

// read returns the link and the payload of a cluster.
// The payload is only valid until the cache switches to another sector.
func (c *clusterLayer) read(id uint16) (link, []byte, error) {
	rec, err := c.record(id)
	if err != nil {
		return 0, nil, err
	}
	return link(binary.LittleEndian.Uint16(rec)), rec[linkSize:], nil
}

// linkOf returns the link field of a cluster.
func (c *clusterLayer) linkOf(id uint16) (link, error) {
	l, _, err := c.read(id)
	return l, err
}

// setLink changes the link field of a cluster and marks the sector dirty.
func (c *clusterLayer) setLink(id uint16, next link) error {
	rec, err := c.record(id)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint16(rec, uint16(next))
	c.cache.markDirty()
	return nil
}

// isFree reports whether the link field of the cluster is free.
func (c *clusterLayer) isFree(id uint16) (bool, error) {
	l, err := c.linkOf(id)
	if err != nil {
		return false, err
	}
	return l.IsFree(), nil
}

// allocateFrom returns the first free, unreserved cluster at or after id.
// The cluster stays free until its link field gets set.
func (c *clusterLayer) allocateFrom(id int) (uint16, error) {
	for ; id < c.geo.MaxClusters; id++ {
		candidate := uint16(id)
		if c.reserved != nil && c.reserved(candidate) {
			continue
		}

		free, err := c.isFree(candidate)
		if err != nil {
			return 0, err
		}
		if free {
			debug(c.logger, "allocated cluster", clusterAttr(candidate))
			return candidate, nil
		}
	}

	return 0, checkpoint.From(ErrNoFreeSpace)
}

// allocateAfter scans forward, starting right behind id, for a free cluster.
func (c *clusterLayer) allocateAfter(id uint16) (uint16, error) {
	return c.allocateFrom(int(id) + 1)
}

// format writes every sector of the data region with free clusters and
// zeroed payload.
func (c *clusterLayer) format() error {
	empty := make([]byte, SectorSize)
	for i := 0; i < ClustersPerSector; i++ {
		binary.LittleEndian.PutUint16(empty[i*ClusterSize:], uint16(linkFree))
	}

	first := c.geo.MetadataSectors()
	for sector := first; sector < first+c.geo.DataSectors(); sector++ {
		if err := c.cache.erase(sector); err != nil {
			return err
		}
		if err := c.cache.store(sector, empty); err != nil {
			return err
		}
	}

	return c.cache.sync()
}

// walk calls fn for each cluster of the chain starting at first, until a
// cluster ends the chain or fn returns false. The link passed to fn is the
// link of the visited cluster. A chain which leaves the data region or loops
// results in ErrCorruptChain.
func (c *clusterLayer) walk(first uint16, fn func(id uint16, l link) bool) error {
	id := first
	for steps := 0; steps < c.geo.MaxClusters; steps++ {
		if int(id) >= c.geo.MaxClusters {
			return checkpoint.Errorf("%w: link to cluster %d outside of the data region", ErrCorruptChain, id)
		}

		l, err := c.linkOf(id)
		if err != nil {
			return err
		}
		if !fn(id, l) || !l.IsNext() {
			return nil
		}
		id = uint16(l)
	}

	return checkpoint.Errorf("%w: chain starting at %d has a loop", ErrCorruptChain, first)
}

// chain collects the used clusters of the chain starting at first, at most
// limit of them. The link of the last collected cluster is not followed, it
// may point to a cluster which belongs to another file by now.
func (c *clusterLayer) chain(first uint16, limit int) ([]uint16, error) {
	var chain []uint16
	if limit <= 0 {
		return chain, nil
	}

	err := c.walk(first, func(id uint16, l link) bool {
		if l.IsFree() {
			return false
		}
		chain = append(chain, id)
		return len(chain) < limit
	})
	return chain, err
}

// release sets at most limit clusters of the chain starting at first back to
// free. It returns the number of clusters which were in use before.
func (c *clusterLayer) release(first uint16, limit int) (int, error) {
	chain, err := c.chain(first, limit)

	// Free what was found even if the chain turned out to be corrupt.
	for _, id := range chain {
		if setErr := c.setLink(id, linkFree); setErr != nil {
			return 0, setErr
		}
	}
	if syncErr := c.cache.sync(); syncErr != nil {
		return 0, syncErr
	}

	debug(c.logger, "released chain", clusterAttr(first), slog.Int("clusters", len(chain)))
	return len(chain), err
}
