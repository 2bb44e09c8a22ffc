package flashfat

import (
	"log/slog"

	"github.com/aligator/flashfat/checkpoint"
)

// noSector marks an empty cache. It is never a valid sector index because
// a geometry cannot address that many sectors.
const noSector = ^uint32(0)

// sectorCache buffers exactly one sector of the flash. It is the only code
// which accesses the Flash, every other layer asks it for sectors.
//
// Modifications only happen in the buffer. They reach the flash when another
// sector is fetched or on sync, and only if the buffer was marked dirty.
type sectorCache struct {
	flash  Flash
	logger *slog.Logger

	current uint32
	dirty   bool
	buffer  []byte
}

func newSectorCache(flash Flash, logger *slog.Logger) *sectorCache {
	return &sectorCache{
		flash:   flash,
		logger:  logger,
		current: noSector,
		buffer:  make([]byte, SectorSize),
	}
}

// fetch loads a specific sector into the buffer and returns the buffer.
// The returned slice stays valid until the next fetch or store.
func (c *sectorCache) fetch(sector uint32) ([]byte, error) {
	// Only load it once.
	if sector == c.current {
		return c.buffer, nil
	}

	// If the cached sector is dirty, write it first.
	if err := c.sync(); err != nil {
		return nil, err
	}

	if err := c.flash.ReadSector(sector, c.buffer); err != nil {
		// The buffer content is undefined now.
		c.current = noSector
		logerror(c.logger, "read sector", sectorAttr(sector), slog.Any("err", err))
		return nil, checkpoint.From(err)
	}

	c.current = sector
	return c.buffer, nil
}

// store replaces the whole content of a sector without reading it first.
// data shorter than a sector gets zero padded. The buffer is left dirty.
func (c *sectorCache) store(sector uint32, data []byte) error {
	if sector != c.current {
		if err := c.sync(); err != nil {
			return err
		}
	}

	clear(c.buffer)
	copy(c.buffer, data)
	c.current = sector
	c.dirty = true
	return nil
}

// markDirty records that the buffer was modified by the caller.
func (c *sectorCache) markDirty() {
	c.dirty = true
}

// sync writes the buffer back if it is dirty.
func (c *sectorCache) sync() error {
	if !c.dirty {
		return nil
	}

	if err := c.flash.WriteSector(c.current, c.buffer); err != nil {
		// Keep it dirty, so a later sync can try again.
		logerror(c.logger, "write sector", sectorAttr(c.current), slog.Any("err", err))
		return checkpoint.From(err)
	}

	debug(c.logger, "wrote sector", sectorAttr(c.current))
	c.dirty = false
	return nil
}

// erase resets a sector on the flash. A cached copy of it is dropped.
func (c *sectorCache) erase(sector uint32) error {
	if sector == c.current {
		c.invalidate()
	}

	if err := c.flash.EraseSector(sector); err != nil {
		logerror(c.logger, "erase sector", sectorAttr(sector), slog.Any("err", err))
		return checkpoint.From(err)
	}
	return nil
}

// invalidate drops the buffer without writing it.
func (c *sectorCache) invalidate() {
	c.current = noSector
	c.dirty = false
}
