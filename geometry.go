package flashfat

import (
	"fmt"

	"github.com/aligator/flashfat/checkpoint"
)

const (
	// SectorSize is the size of one flash sector, the only unit of flash I/O.
	SectorSize = 4096

	// ClusterSize is the size of a cluster record: a link field plus payload.
	ClusterSize = 1024

	// ClusterDataSize is the payload of a single cluster.
	ClusterDataSize = ClusterSize - linkSize

	// ClustersPerSector is the number of cluster records packed into a sector.
	ClustersPerSector = SectorSize / ClusterSize

	// MaxFilenameLength is the maximum length of a file name in bytes.
	MaxFilenameLength = 214

	// MaxExtensionLength is the maximum length of the stored extension in bytes.
	MaxExtensionLength = 10

	// DefaultMaxClusters is the default number of clusters of the data region.
	DefaultMaxClusters = 1024

	// DefaultMaxFiles is the default capacity of the file table.
	DefaultMaxFiles = 100

	// maxClusterLimit keeps the highest cluster id below the link sentinels.
	maxClusterLimit = int(linkEOF)
)

// Geometry describes the partitioning of a medium into the metadata region
// and the data region. Both are fixed when the volume gets formatted and must
// be the same on every mount.
type Geometry struct {
	// MaxClusters is the number of clusters in the data region.
	MaxClusters int

	// MaxFiles is the number of descriptor slots in the file table.
	MaxFiles int
}

// DefaultGeometry returns the geometry of a 1024 cluster, 100 file volume.
func DefaultGeometry() Geometry {
	return Geometry{
		MaxClusters: DefaultMaxClusters,
		MaxFiles:    DefaultMaxFiles,
	}
}

// Validate checks that the geometry can be addressed by the on-flash format.
func (g Geometry) Validate() error {
	if g.MaxClusters < 1 || g.MaxClusters > maxClusterLimit {
		return checkpoint.Errorf("%w: max clusters %d not in [1, %d]", ErrOutOfRange, g.MaxClusters, maxClusterLimit)
	}
	if g.MaxFiles < 1 {
		return checkpoint.Errorf("%w: max files %d must be positive", ErrOutOfRange, g.MaxFiles)
	}
	return nil
}

// TableSize is the size of the serialized file table in bytes.
func (g Geometry) TableSize() int {
	return g.MaxFiles*descriptorSize + freeCountSize
}

// MetadataSectors is the number of sectors at the start of the medium which
// hold the file table.
func (g Geometry) MetadataSectors() uint32 {
	return uint32((g.TableSize() + SectorSize - 1) / SectorSize)
}

// DataSectors is the number of sectors holding cluster records.
func (g Geometry) DataSectors() uint32 {
	return uint32((g.MaxClusters + ClustersPerSector - 1) / ClustersPerSector)
}

// TotalSectors is the minimum number of sectors a medium needs for this geometry.
func (g Geometry) TotalSectors() uint32 {
	return g.MetadataSectors() + g.DataSectors()
}

// Capacity is the number of payload bytes the data region can hold.
func (g Geometry) Capacity() int64 {
	return int64(g.MaxClusters) * ClusterDataSize
}

// ClusterSector returns the absolute sector holding the cluster and the index
// of the cluster inside of it. The data region starts right after the
// metadata region, so no cluster ever maps into the file table.
func (g Geometry) ClusterSector(id uint16) (sector uint32, index int) {
	return g.MetadataSectors() + uint32(id)/ClustersPerSector, int(id) % ClustersPerSector
}

func (g Geometry) String() string {
	return fmt.Sprintf("%d clusters, %d files, %d+%d sectors", g.MaxClusters, g.MaxFiles, g.MetadataSectors(), g.DataSectors())
}
