// HCB setup: API-type patching, the RAM mirror, the ident blocks, and
// the drive tables the boot loader and CBIOS read.

package hbios

import (
	"log/slog"

	"github.com/z80wbw/wbwemu/memory"
)

// Ident block contents: 'W', ~'W', and the combined version nibbles.
const (
	identSig1 = 'W'
	identSig2 = 0xA8
	identVer  = 0x35

	// identAddr and identAddrAlt are where guest utilities probe.
	identAddr    = 0xFF00
	identAddrAlt = 0xFE00

	// identPtrAddr holds a little-endian pointer to the ident block.
	identPtrAddr = 0xFFFC
)

// CompleteInit performs the whole firmware initialization sequence,
// after the ROM and all disks have been loaded:
//
//  1. patch the API-type byte in ROM bank 0
//  2. mirror page zero and the HCB into RAM bank 0x80
//  3. plant the ident blocks in common RAM
//  4. build the memory-disk units from the HCB bank counts
//  5. populate the disk unit table and drive map, in ROM and RAM
//
// The sequence is idempotent: running it twice leaves the HCB
// byte-for-byte identical to running it once.
func (h *Dispatcher) CompleteInit() {

	rom := h.Memory.ROM()

	// 1. API-type: HBIOS (0x00), not the UNA default.
	rom[memory.HCBBase+memory.HCBAPIType] = 0x00

	// 4. Memory disks first, so the unit table sees them.  This reads
	// the HCB before the drive tables are stamped into it.
	h.initMemoryDisks()

	// 5. Drive tables, into ROM (for the boot loader) and RAM bank
	// 0x80 (for the live system).
	h.populateDiskUnitTable()
	count := h.populateDriveMap()

	rom[memory.HCBBase+memory.HCBDevCnt] = uint8(count)

	// 2. Mirror page zero and the finished HCB into RAM bank 0x80.
	for addr := uint16(0); addr < 0x0200; addr++ {
		h.Memory.WriteBank(0x80, addr, rom[addr])
	}

	// 3. Ident blocks in the common area.
	h.setupIdent()

	h.Logger.Info("firmware init complete",
		slog.Int("drives", count))
}

// setupIdent plants the signature blocks guest utilities probe for.
func (h *Dispatcher) setupIdent() {

	for _, base := range []uint16{identAddr, identAddrAlt} {
		h.Memory.Store(base, identSig1)
		h.Memory.Store(base+1, identSig2)
		h.Memory.Store(base+2, identVer)
	}

	h.Memory.StoreU16(identPtrAddr, identAddr)
}

// populateDiskUnitTable writes the sixteen four-byte entries at
// HCB+0x60: type, unit, slice count, reserved.  Empty slots carry the
// empty device type.
func (h *Dispatcher) populateDiskUnitTable() {

	rom := h.Memory.ROM()

	for i := 0; i < MaxUnits; i++ {
		base := memory.DiskUTBase + i*4

		entry := [4]uint8{DeviceEmpty, 0xFF, 0x00, 0x00}
		if u := h.units[i]; u != nil {
			entry = [4]uint8{u.Type, uint8(i), uint8(u.slices), 0x00}
		}

		copy(rom[base:base+4], entry[:])
	}
}

// populateDriveMap assigns drive letters: the RAM disk, the ROM disk,
// then every hard-disk slice in unit order.  Entries encode
// (slice << 4) | unit; unused letters are 0xFF.  Returns the number of
// letters assigned.
func (h *Dispatcher) populateDriveMap() int {

	rom := h.Memory.ROM()

	for i := 0; i < 16; i++ {
		rom[memory.DrvMapBase+i] = 0xFF
	}

	letter := 0

	// A: the RAM disk, B: the ROM disk, when present.
	for unit := 0; unit < 2 && letter < 16; unit++ {
		if h.units[unit] != nil {
			rom[memory.DrvMapBase+letter] = uint8(unit)
			letter++
		}
	}

	// Hard disks, each expanded to its slice count.
	for unit := 2; unit < MaxUnits && letter < 16; unit++ {
		u := h.units[unit]
		if u == nil {
			continue
		}
		for slice := 0; slice < u.slices && letter < 16; slice++ {
			rom[memory.DrvMapBase+letter] = uint8(slice<<4) | uint8(unit&0x0F)
			letter++
		}
	}

	return letter
}
