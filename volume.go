package flashfat

import (
	"fmt"
	"log/slog"

	"github.com/aligator/flashfat/checkpoint"
)

// Config configures a Volume.
type Config struct {
	Geometry

	// Clock stamps the descriptors. Defaults to SystemClock.
	Clock Clock

	// Logger receives debug output about sector and cluster operations.
	// Defaults to a logger which discards everything.
	Logger *slog.Logger
}

// DefaultConfig returns the default geometry with the system clock.
func DefaultConfig() Config {
	return Config{
		Geometry: DefaultGeometry(),
		Clock:    SystemClock(),
	}
}

// Volume is a FAT style filesystem on a raw flash medium.
//
// The flash is split into the metadata region, holding the Table, and the
// data region, holding linked clusters of file data. A Volume is not safe for
// concurrent use: every method runs to completion before the next may start.
type Volume struct {
	flash  Flash
	geo    Geometry
	clock  Clock
	logger *slog.Logger

	cache    *sectorCache
	clusters *clusterLayer
	store    *tableStore

	// table is nil until the volume is formatted or mounted.
	table *Table
}

// VolumeStat summarizes the usage of a mounted volume.
type VolumeStat struct {
	Geometry
	Files        int
	OpenFiles    int
	FreeClusters uint32
}

// FreeBytes is the payload capacity of the free clusters.
func (s VolumeStat) FreeBytes() int64 {
	return int64(s.FreeClusters) * ClusterDataSize
}

// NewVolume prepares a volume on flash. It does not touch the flash yet,
// call Format or Mount before using it.
func NewVolume(flash Flash, cfg Config) (*Volume, error) {
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	if counter, ok := flash.(sectorCounter); ok && counter.SectorCount() < cfg.TotalSectors() {
		return nil, checkpoint.Errorf("%w: geometry needs %d sectors, flash has %d", ErrOutOfRange, cfg.TotalSectors(), counter.SectorCount())
	}

	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}

	v := &Volume{
		flash:  flash,
		geo:    cfg.Geometry,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}

	v.cache = newSectorCache(flash, v.logger)
	v.clusters = &clusterLayer{
		cache:    v.cache,
		geo:      v.geo,
		logger:   v.logger,
		reserved: v.isReserved,
	}
	v.store = &tableStore{
		cache:  v.cache,
		geo:    v.geo,
		logger: v.logger,
	}

	return v, nil
}

// Geometry returns the layout of the volume.
func (v *Volume) Geometry() Geometry {
	return v.geo
}

// Format initializes the data region with free clusters and writes an empty
// table. All previous content is lost. The volume is mounted afterwards.
func (v *Volume) Format() error {
	v.table = nil
	v.cache.invalidate()

	if err := v.clusters.format(); err != nil {
		return err
	}

	table, err := v.store.format()
	if err != nil {
		return err
	}

	v.table = table
	info(v.logger, "formatted volume", slog.String("geometry", v.geo.String()))
	return nil
}

// Mount loads the table from flash.
func (v *Volume) Mount() error {
	v.table = nil
	v.cache.invalidate()

	table, err := v.store.load()
	if err != nil {
		return err
	}

	v.table = table
	info(v.logger, "mounted volume", slog.String("geometry", v.geo.String()), slog.Uint64("free", uint64(table.FreeCount)))
	return nil
}

// Sync writes the in-memory table to flash.
// Directory and file operations only change the table in memory, so Sync has
// to be called to make them persistent.
func (v *Volume) Sync() error {
	if err := v.mounted(); err != nil {
		return err
	}
	return v.store.save(v.table)
}

// Unmount syncs the table and detaches it. The volume may be mounted again.
func (v *Volume) Unmount() error {
	if err := v.Sync(); err != nil {
		return err
	}
	v.table = nil
	v.cache.invalidate()
	return nil
}

// Stat returns usage information of the mounted volume.
func (v *Volume) Stat() (VolumeStat, error) {
	if err := v.mounted(); err != nil {
		return VolumeStat{}, err
	}

	stat := VolumeStat{
		Geometry:     v.geo,
		FreeClusters: v.table.FreeCount,
	}
	for i := range v.table.Entries {
		d := &v.table.Entries[i]
		if !d.occupied() {
			continue
		}
		stat.Files++
		if d.InUse {
			stat.OpenFiles++
		}
	}
	return stat, nil
}

// IsFree reports whether a cluster is free, judged by its link field only.
func (v *Volume) IsFree(id uint16) (bool, error) {
	return v.clusters.isFree(id)
}

// CountFree counts the free clusters by scanning the whole data region.
// On a consistent volume it matches VolumeStat.FreeClusters.
func (v *Volume) CountFree() (int, error) {
	free := 0
	for id := 0; id < v.geo.MaxClusters; id++ {
		ok, err := v.clusters.isFree(uint16(id))
		if err != nil {
			return 0, err
		}
		if ok {
			free++
		}
	}
	return free, nil
}

func (v *Volume) mounted() error {
	if v.table == nil {
		return checkpoint.From(ErrNotMounted)
	}
	return nil
}

// isReserved reports whether id is the first cluster of a file. Such a
// cluster may still be free on flash as long as nothing was written.
func (v *Volume) isReserved(id uint16) bool {
	if v.table == nil {
		return false
	}
	for i := range v.table.Entries {
		d := &v.table.Entries[i]
		if d.occupied() && d.FirstCluster == id {
			return true
		}
	}
	return false
}

// owns reports whether d is a slot of the mounted table.
func (v *Volume) owns(d *Descriptor) error {
	if err := v.mounted(); err != nil {
		return err
	}
	for i := range v.table.Entries {
		if &v.table.Entries[i] == d {
			return nil
		}
	}
	return checkpoint.Errorf("%w: descriptor does not belong to this volume", ErrNotFound)
}

func (v *Volume) now() Datetime {
	return v.clock.Now()
}

func (v *Volume) String() string {
	return fmt.Sprintf("flashfat volume (%s)", v.geo)
}
