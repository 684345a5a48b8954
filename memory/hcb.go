package memory

// HCB layout.
//
// The Hardware Configuration Block is a 256-byte structure the firmware
// keeps at guest address 0x0100 in ROM bank 0, and mirrors into RAM bank
// 0x80.  Both the memory layer (lazy RAM bank initialization) and the
// HBIOS dispatcher (drive tables) need these offsets, so they live here.

const (
	// HCBBase is the guest address of the HCB.
	HCBBase = 0x0100

	// HCBDevCnt is the offset of the device-count byte.
	HCBDevCnt = 0x0C

	// HCBAPIType is the offset of the API-type byte.  0x00 marks the
	// system as HBIOS; the ROM images ship with 0xFF (UNA) there.
	HCBAPIType = 0x12

	// HCBDrvMap is the offset of the 16-byte drive map.
	HCBDrvMap = 0x20

	// HCBDiskUT is the offset of the disk unit table, up to sixteen
	// four-byte entries.
	HCBDiskUT = 0x60

	// HCBRAMDBanks is the offset of the RAM-disk bank count.
	HCBRAMDBanks = 0xDD

	// HCBROMDBanks is the offset of the ROM-disk bank count.
	HCBROMDBanks = 0xDF
)

const (
	// DrvMapBase is the absolute guest address of the drive map.
	DrvMapBase = HCBBase + HCBDrvMap

	// DiskUTBase is the absolute guest address of the disk unit table.
	DiskUTBase = HCBBase + HCBDiskUT
)
