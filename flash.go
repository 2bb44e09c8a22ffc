package flashfat

// Flash is the raw, sector addressable medium a volume lives on.
// All methods work on whole sectors of SectorSize bytes. Retrying failed
// accesses is the responsibility of the implementation, a volume passes
// every error up unchanged.
//
// Generated mock using mockgen:
//
//	mockgen -source=flash.go -destination=flash_mock.go -package flashfat
type Flash interface {
	// ReadSector fills dst with the content of the sector at index.
	ReadSector(index uint32, dst []byte) error

	// WriteSector replaces the full content of the sector at index.
	// A nil error means the data is durably stored.
	WriteSector(index uint32, src []byte) error

	// EraseSector resets the sector at index to the erased state.
	// It is only used while formatting.
	EraseSector(index uint32) error
}

// sectorCounter is implemented by flash devices which know their size.
// It is used to reject a geometry which does not fit the medium.
type sectorCounter interface {
	SectorCount() uint32
}
