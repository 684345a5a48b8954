// Disk I/O services and unit management.

package hbios

import (
	"fmt"
	"log/slog"

	"github.com/z80wbw/wbwemu/hostio"
	"github.com/z80wbw/wbwemu/memory"
)

// HardDiskSlots is how many hard-disk images can be attached; they
// occupy guest units 2 and up, after the two memory disks.
const HardDiskSlots = MaxUnits - 2

// AttachDisk installs a hard-disk image in the given slot (0-based;
// the guest sees it as unit slot+2).  The image size must match one of
// the known geometries.  A backing file may be supplied so writes
// persist.
func (h *Dispatcher) AttachDisk(slot int, data []uint8, file hostio.DiskFile) error {

	if slot < 0 || slot >= HardDiskSlots {
		return fmt.Errorf("disk slot %d out of range", slot)
	}

	prefix, ok := classifyImage(int64(len(data)))
	if !ok {
		return fmt.Errorf("invalid disk size %d (must be 8MB hd1k, combo, or 8.32MB hd512)", len(data))
	}

	if warn := CheckMBR(data); warn != "" {
		h.Logger.Warn("suspicious disk image",
			slog.Int("slot", slot),
			slog.String("warning", warn))
	}

	h.units[slot+2] = &DiskUnit{
		Type:   DeviceHard,
		data:   data,
		file:   file,
		prefix: prefix,
		slices: 1,
	}
	return nil
}

// SetDiskSliceCount sets how many slices of the slot's image are
// exposed as drive letters.  The embedder computes the policy; we only
// clamp to 1-8.
func (h *Dispatcher) SetDiskSliceCount(slot int, slices int) {
	if slot < 0 || slot >= HardDiskSlots {
		return
	}
	u := h.units[slot+2]
	if u == nil {
		return
	}
	if slices < 1 {
		slices = 1
	}
	if slices > 8 {
		slices = 8
	}
	u.slices = slices
}

// IsDiskLoaded reports whether the slot holds an image.
func (h *Dispatcher) IsDiskLoaded(slot int) bool {
	if slot < 0 || slot >= HardDiskSlots {
		return false
	}
	return h.units[slot+2] != nil
}

// DiskData returns the slot's image bytes, or nil.
func (h *Dispatcher) DiskData(slot int) []uint8 {
	if slot < 0 || slot >= HardDiskSlots {
		return nil
	}
	u := h.units[slot+2]
	if u == nil {
		return nil
	}
	return u.data
}

// CloseDisk detaches the slot's image, releasing any backing file.
// Disks otherwise persist across reset.
func (h *Dispatcher) CloseDisk(slot int) error {
	if slot < 0 || slot >= HardDiskSlots {
		return fmt.Errorf("disk slot %d out of range", slot)
	}
	u := h.units[slot+2]
	if u == nil {
		return nil
	}
	h.units[slot+2] = nil
	return u.Close()
}

// Unit returns the disk unit with the given guest unit number, or nil.
func (h *Dispatcher) Unit(n uint8) *DiskUnit {
	if int(n) >= MaxUnits {
		return nil
	}
	return h.units[n]
}

// FlushDisks commits every attached unit's backing file.
func (h *Dispatcher) FlushDisks() error {
	var first error
	for _, u := range h.units {
		if u == nil {
			continue
		}
		if err := u.Flush(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SvcDisk is the DIO service; the subfunction travels in C.
func SvcDisk(h *Dispatcher) Status {

	c := h.CPU

	switch c.BC.Lo {

	case DIOStatus:
		return StatusOK

	case DIOSetUnit:
		unit := c.DE.Lo
		if int(unit) >= MaxUnits || h.units[unit] == nil {
			return StatusBadUnit
		}
		h.curUnit = unit
		h.curLBA = 0
		return StatusOK

	case DIOSetLBA:
		h.curLBA = (uint32(c.DE.U16()) << 16) | uint32(c.HL.U16())
		return StatusOK

	case DIORead:
		u := h.units[h.curUnit]
		if u == nil {
			return StatusBadUnit
		}
		if h.curLBA >= u.Blocks() {
			return StatusOutOfRange
		}

		var buf [SectorSize]uint8
		if err := u.ReadBlock(h.curLBA, buf[:]); err != nil {
			return StatusIOError
		}

		// The transfer goes through the live mapping: the lower
		// window honours the selected bank, the common window passes
		// unchanged, and the address wraps like the real bus.
		addr := c.HL.U16()
		for i := 0; i < SectorSize; i++ {
			h.Memory.Store(addr+uint16(i), buf[i])
		}

		h.curLBA++
		return StatusOK

	case DIOWrite:
		u := h.units[h.curUnit]
		if u == nil {
			return StatusBadUnit
		}
		if h.curLBA >= u.Blocks() {
			return StatusOutOfRange
		}

		var buf [SectorSize]uint8
		addr := c.HL.U16()
		for i := 0; i < SectorSize; i++ {
			buf[i] = h.Memory.Fetch(addr+uint16(i), false)
		}

		if err := u.WriteBlock(h.curLBA, buf[:]); err != nil {
			return StatusIOError
		}

		h.curLBA++
		return StatusOK

	case DIODevice:
		u := h.units[h.curUnit]
		if u == nil {
			return StatusBadUnit
		}
		c.DE.Hi = u.Type
		c.DE.Lo = h.curUnit
		return StatusOK

	case DIOCapacity:
		u := h.units[h.curUnit]
		if u == nil {
			return StatusBadUnit
		}
		blocks := u.Blocks()
		c.DE.SetU16(uint16(blocks >> 16))
		c.HL.SetU16(uint16(blocks))
		c.BC.SetU16(SectorSize)
		return StatusOK

	case DIOGeometry:
		u := h.units[h.curUnit]
		if u == nil {
			return StatusBadUnit
		}
		cyl, heads, sectors := u.Geometry()
		c.HL.SetU16(cyl)
		c.DE.Hi = heads
		c.DE.Lo = sectors
		return StatusOK
	}

	return StatusUnknown
}

// initMemoryDisks builds units 0 and 1 from the HCB's memory-disk bank
// counts.  The RAM disk starts zeroed; the ROM disk is seeded from the
// tail banks of the ROM image and is read-only.
func (h *Dispatcher) initMemoryDisks() {

	rom := h.Memory.ROM()

	ramdBanks := int(rom[memory.HCBBase+memory.HCBRAMDBanks])
	romdBanks := int(rom[memory.HCBBase+memory.HCBROMDBanks])

	if ramdBanks > memory.BankCount {
		ramdBanks = memory.BankCount
	}
	if romdBanks > memory.BankCount {
		romdBanks = memory.BankCount
	}

	if ramdBanks > 0 {
		if h.units[0] == nil {
			h.units[0] = &DiskUnit{
				Type:   DeviceMemory,
				data:   make([]uint8, ramdBanks*memory.BankSize),
				slices: 1,
			}
		}
	} else {
		h.units[0] = nil
	}

	if romdBanks > 0 {
		start := memory.ROMSize - romdBanks*memory.BankSize
		data := make([]uint8, romdBanks*memory.BankSize)
		copy(data, rom[start:])
		h.units[1] = &DiskUnit{
			Type:     DeviceMemory,
			data:     data,
			slices:   1,
			readonly: true,
		}
	} else {
		h.units[1] = nil
	}
}
