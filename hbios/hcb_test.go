package hbios

import (
	"bytes"
	"testing"

	"github.com/z80wbw/wbwemu/hostio"
	"github.com/z80wbw/wbwemu/memory"
)

// TestCompleteInit covers HCB patching, the RAM mirror, the ident
// blocks, the drive tables, and idempotence.
func TestCompleteInit(t *testing.T) {

	h, _, mem, _, _ := testRig()

	rom := mem.ROM()
	rom[memory.HCBBase+memory.HCBAPIType] = 0xFF // UNA, as shipped
	rom[memory.HCBBase+memory.HCBRAMDBanks] = 2
	rom[memory.HCBBase+memory.HCBROMDBanks] = 1

	// Two hard disks: one with four slices, one with one.
	if err := h.AttachDisk(0, make([]uint8, hostio.HD1KSingleSize), nil); err != nil {
		t.Fatalf("attach failed: %s", err)
	}
	if err := h.AttachDisk(1, make([]uint8, hostio.HD1KSingleSize), nil); err != nil {
		t.Fatalf("attach failed: %s", err)
	}
	h.SetDiskSliceCount(0, 4)

	h.CompleteInit()

	// API-type patched in ROM and in the RAM mirror.
	if rom[memory.HCBBase+memory.HCBAPIType] != 0x00 {
		t.Fatalf("API-type not patched in ROM")
	}
	if mem.ReadBank(0x80, memory.HCBBase+memory.HCBAPIType) != 0x00 {
		t.Fatalf("API-type not patched in the RAM mirror")
	}

	// Memory disks were created from the bank counts.
	if h.Unit(0) == nil || h.Unit(0).Size() != 2*memory.BankSize {
		t.Fatalf("RAM disk wrong")
	}
	if h.Unit(1) == nil || h.Unit(1).Size() != memory.BankSize {
		t.Fatalf("ROM disk wrong")
	}

	// Drive map: A:=unit0, B:=unit1, then unit 2's four slices, then
	// unit 3.  Encoding is (slice << 4) | unit.
	want := []uint8{
		0x00, 0x01,
		0x02, 0x12, 0x22, 0x32,
		0x03,
	}
	for i, w := range want {
		if got := rom[memory.DrvMapBase+i]; got != w {
			t.Fatalf("drive map entry %d wrong: got %02X want %02X", i, got, w)
		}
		if got := mem.ReadBank(0x80, uint16(memory.DrvMapBase+i)); got != w {
			t.Fatalf("RAM drive map entry %d wrong", i)
		}
	}
	for i := len(want); i < 16; i++ {
		if rom[memory.DrvMapBase+i] != 0xFF {
			t.Fatalf("unused drive map entry %d not 0xFF", i)
		}
	}

	// Device count covers every assigned letter.
	if rom[memory.HCBBase+memory.HCBDevCnt] != uint8(len(want)) {
		t.Fatalf("device count wrong: %d", rom[memory.HCBBase+memory.HCBDevCnt])
	}

	// Unit table entries: type, unit, slices.
	entry := rom[memory.DiskUTBase : memory.DiskUTBase+4]
	if entry[0] != DeviceMemory || entry[1] != 0 || entry[2] != 1 {
		t.Fatalf("unit 0 table entry wrong: %v", entry)
	}
	entry = rom[memory.DiskUTBase+2*4 : memory.DiskUTBase+2*4+4]
	if entry[0] != DeviceHard || entry[1] != 2 || entry[2] != 4 {
		t.Fatalf("unit 2 table entry wrong: %v", entry)
	}
	entry = rom[memory.DiskUTBase+5*4 : memory.DiskUTBase+5*4+4]
	if entry[0] != DeviceEmpty {
		t.Fatalf("empty unit table entry wrong: %v", entry)
	}

	// The ident probe guest utilities perform.
	if mem.Fetch(0xFF00, false) != 'W' ||
		mem.Fetch(0xFF01, false) != 0xA8 ||
		mem.Fetch(0xFF02, false) != 0x35 {
		t.Fatalf("ident block wrong")
	}
	if mem.Fetch(0xFE00, false) != 'W' {
		t.Fatalf("alternate ident block missing")
	}
	if mem.FetchU16(0xFFFC) != 0xFF00 {
		t.Fatalf("ident pointer wrong: %04X", mem.FetchU16(0xFFFC))
	}

	// Idempotence: a second run leaves the HCB byte-for-byte alone.
	var before [0x200]uint8
	copy(before[:], rom[:0x200])

	h.CompleteInit()

	if !bytes.Equal(before[:], rom[:0x200]) {
		t.Fatalf("complete-init is not idempotent")
	}
}

// TestCompleteInitNoDisks: with nothing attached and no memory disks,
// the map is empty and the count zero.
func TestCompleteInitNoDisks(t *testing.T) {

	h, _, mem, _, _ := testRig()

	h.CompleteInit()

	rom := mem.ROM()
	for i := 0; i < 16; i++ {
		if rom[memory.DrvMapBase+i] != 0xFF {
			t.Fatalf("drive map should be empty")
		}
	}
	if rom[memory.HCBBase+memory.HCBDevCnt] != 0 {
		t.Fatalf("device count should be zero")
	}
}

// TestROMDiskContents ensures the ROM disk is seeded from the tail of
// the ROM image and rejects writes.
func TestROMDiskContents(t *testing.T) {

	h, _, mem, _, _ := testRig()

	rom := mem.ROM()
	rom[memory.HCBBase+memory.HCBROMDBanks] = 2
	tail := memory.ROMSize - 2*memory.BankSize
	rom[tail] = 0xD7

	h.CompleteInit()

	u := h.Unit(1)
	if u == nil {
		t.Fatalf("ROM disk missing")
	}

	var buf [SectorSize]uint8
	if err := u.ReadBlock(0, buf[:]); err != nil {
		t.Fatalf("read failed: %s", err)
	}
	if buf[0] != 0xD7 {
		t.Fatalf("ROM disk not seeded from the ROM tail")
	}

	if err := u.WriteBlock(0, buf[:]); err == nil {
		t.Fatalf("expected error, got none")
	}
}
