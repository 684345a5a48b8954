// The disk store: per-unit byte-addressable images with slice geometry.

package hbios

import (
	"fmt"

	"github.com/z80wbw/wbwemu/hostio"
)

// Device types for the disk unit table.
const (
	// DeviceMemory is a memory disk (RAM disk or ROM disk).
	DeviceMemory = 0x00

	// DeviceHard is a hard-disk image.
	DeviceHard = 0x09

	// DeviceEmpty marks an unpopulated unit slot.
	DeviceEmpty = 0xFF
)

// MaxUnits is the size of the unit table: two memory disks plus
// fourteen hard-disk slots.
const MaxUnits = 16

// SectorSize is the logical block size of every unit.
const SectorSize = 512

// Partition types recognised by the MBR heuristic.
const (
	partTypeRomWBW = 0x2E
	partTypeFAT16  = 0x06
	partTypeFAT32  = 0x0B
)

// DiskUnit is one logical storage device.
type DiskUnit struct {

	// Type is the device type byte exposed in the unit table.
	Type uint8

	// data is the image, always held in memory.
	data []uint8

	// file optionally persists writes back to a host image file.
	file hostio.DiskFile

	// prefix is the byte offset of slice 0: one megabyte for combo
	// images, zero otherwise.
	prefix int64

	// slices is how many 8 MB slices this unit exposes as drive
	// letters (1-8).
	slices int

	// readonly suppresses writes (the ROM disk).
	readonly bool
}

// Slices returns the unit's slice count.
func (u *DiskUnit) Slices() int {
	return u.slices
}

// Size returns the image size in bytes.
func (u *DiskUnit) Size() int64 {
	return int64(len(u.data))
}

// Blocks returns the addressable block count, past the combo prefix.
func (u *DiskUnit) Blocks() uint32 {
	usable := int64(len(u.data)) - u.prefix
	if usable < 0 {
		usable = 0
	}
	return uint32(usable / SectorSize)
}

// ReadBlock copies the 512-byte block at the given LBA into buf.
func (u *DiskUnit) ReadBlock(lba uint32, buf []uint8) error {
	if lba >= u.Blocks() {
		return fmt.Errorf("LBA %d beyond capacity %d", lba, u.Blocks())
	}
	off := u.prefix + int64(lba)*SectorSize
	copy(buf, u.data[off:off+SectorSize])
	return nil
}

// WriteBlock stores buf as the 512-byte block at the given LBA, and
// mirrors the write to the backing file when one is attached.
func (u *DiskUnit) WriteBlock(lba uint32, buf []uint8) error {
	if u.readonly {
		return fmt.Errorf("unit is read-only")
	}
	if lba >= u.Blocks() {
		return fmt.Errorf("LBA %d beyond capacity %d", lba, u.Blocks())
	}
	off := u.prefix + int64(lba)*SectorSize
	copy(u.data[off:off+SectorSize], buf[:SectorSize])

	if u.file != nil {
		if _, err := u.file.WriteAt(off, buf[:SectorSize]); err != nil {
			return err
		}
	}
	return nil
}

// Flush commits the backing file, when one is attached.
func (u *DiskUnit) Flush() error {
	if u.file == nil {
		return nil
	}
	return u.file.Flush()
}

// Close releases the backing store.
func (u *DiskUnit) Close() error {
	if u.file == nil {
		return nil
	}
	err := u.file.Close()
	u.file = nil
	return err
}

// Geometry synthesizes cylinder/head/sector figures from the image
// size, so a guest CBIOS can size its drive tables.  We fix 16 heads
// and 16 sectors per track and derive the cylinder count.
func (u *DiskUnit) Geometry() (cylinders uint16, heads uint8, sectors uint8) {
	heads = 16
	sectors = 16
	blocks := u.Blocks()
	cyl := blocks / (uint32(heads) * uint32(sectors))
	if cyl > 0xFFFF {
		cyl = 0xFFFF
	}
	return uint16(cyl), heads, sectors
}

// classifyImage derives the slice-0 offset from the image size.
//
// An exact 8 MB image is a single hd1k slice.  A 1 MB prefix followed
// by a whole number of 8 MB slices is a combo image.  hd512 sizes are
// accepted with no prefix.
func classifyImage(size int64) (prefix int64, ok bool) {
	switch {
	case size == hostio.HD1KSingleSize:
		return 0, true
	case size > hostio.HD1KPrefixSize &&
		(size-hostio.HD1KPrefixSize)%hostio.HD1KSingleSize == 0:
		return hostio.HD1KPrefixSize, true
	case size == hostio.HD512SingleSize:
		return 0, true
	case size > 0 && size%hostio.HD512SingleSize == 0:
		return 0, true
	}
	return 0, false
}

// CheckMBR inspects the first sector of an 8 MB single-slice image and
// returns a warning when it looks like an accidentally-formatted FAT
// disk rather than a RomWBW one.  An empty string means the image looks
// fine.
func CheckMBR(data []uint8) string {

	// Only single-slice hd1k images are the problematic case.
	if int64(len(data)) != hostio.HD1KSingleSize {
		return ""
	}

	// No MBR signature: probably a raw hd1k slice.
	if data[510] != 0x55 || data[511] != 0xAA {
		return ""
	}

	hasRomWBW := false
	hasFAT := false
	for p := 0; p < 4; p++ {
		ptype := data[0x1BE+p*16+4]
		if ptype == partTypeRomWBW {
			hasRomWBW = true
		}
		if ptype == partTypeFAT16 || ptype == partTypeFAT32 {
			hasFAT = true
		}
	}

	if hasRomWBW {
		return ""
	}
	if hasFAT {
		return "disk has a FAT16/FAT32 MBR but no RomWBW partition - it may not work"
	}

	// A proper hd1k slice starts with Z80 boot code, a JR or JP.
	if data[0] == 0x18 || data[0] == 0xC3 {
		return ""
	}

	return "disk has an MBR but no RomWBW partition (0x2E) - format may be invalid"
}
