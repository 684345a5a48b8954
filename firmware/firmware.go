// Package firmware builds the synthetic bank-0 ROM image: page zero
// with the RST vectors, an HCB with sane defaults, and a small boot
// monitor that talks through the HBIOS services.
//
// A real RomWBW image can be layered into banks 1-15 on top of this
// (the romldr path); bank 0 always stays ours, because the HCB layout
// and the RST 08 plumbing are what the service layer relies on.
package firmware

import (
	"github.com/z80wbw/wbwemu/memory"
)

// Options selects the HCB configuration baked into the image.
type Options struct {

	// RAMDiskBanks is the number of 32k RAM banks given to the RAM
	// disk (drive A:).  Zero disables it.
	RAMDiskBanks uint8

	// ROMDiskBanks is the number of 32k ROM banks exposed as the ROM
	// disk (drive B:).  Zero disables it.
	ROMDiskBanks uint8

	// Banner is printed by the boot monitor; a trailing CR/LF is
	// appended.
	Banner string
}

// DefaultOptions is what main uses when nothing is configured.
var DefaultOptions = Options{
	RAMDiskBanks: 4,
	ROMDiskBanks: 0,
	Banner:       "wbwemu boot monitor",
}

// HBIOS function numbers the boot monitor uses; kept in sync with the
// hbios package by the tests.
const (
	fnCIOIn  = 0x00
	fnCIOOut = 0x01
)

// Build assembles a 32k bank-0 image.
func Build(opts Options) []uint8 {

	rom := make([]uint8, memory.BankSize)

	// asm is a tiny emitter; pos tracks the output cursor.
	pos := 0
	emit := func(bytes ...uint8) {
		copy(rom[pos:], bytes)
		pos += len(bytes)
	}
	at := func(addr int) {
		pos = addr
	}

	var (
		bootAddr = 0x0200
		stubAddr = 0xFFF0
		stackTop = 0xFFF0
	)

	// Page zero.
	at(0x0000)
	emit(0xC3, uint8(bootAddr), uint8(bootAddr>>8)) // JP boot

	at(0x0008)
	emit(0xC3, uint8(stubAddr), uint8(stubAddr>>8)) // JP hbios stub

	at(0x0038)
	emit(0xC9) // RET - stray IM 1 interrupts are ignored

	at(0x0066)
	emit(0xED, 0x45) // RETN

	// HCB.  The API-type ships as UNA (0xFF) exactly like the real ROM
	// images; complete-init patches it to HBIOS.
	at(memory.HCBBase + memory.HCBAPIType)
	emit(0xFF)
	at(memory.HCBBase + memory.HCBRAMDBanks)
	emit(opts.RAMDiskBanks)
	at(memory.HCBBase + memory.HCBROMDBanks)
	emit(opts.ROMDiskBanks)

	// Boot monitor.
	at(bootAddr)

	emit(0x31, uint8(stackTop), uint8(stackTop>>8)) // LD SP,stackTop

	// Print the banner: HL walks a NUL-terminated string.
	banner := opts.Banner + "\r\n"
	msgAddr := bootAddr + 0x80

	emit(0x21, uint8(msgAddr), uint8(msgAddr>>8)) // LD HL,msg
	printLoop := pos
	emit(0x7E)       // LD A,(HL)
	emit(0xB7)       // OR A
	jrOut := pos
	emit(0x28, 0x00) // JR Z,echo (patched below)
	emit(0x5F)       // LD E,A
	emit(0x06, fnCIOOut) // LD B,CIOOUT
	emit(0x0E, 0x00)     // LD C,0
	emit(0xCF)           // RST 08
	emit(0x23)           // INC HL
	emit(0x18, uint8(printLoop-(pos+2))) // JR printLoop

	// Echo monitor: read a key, write it back, forever.
	echo := pos
	rom[jrOut+1] = uint8(echo - (jrOut + 2))

	emit(0x06, fnCIOIn) // LD B,CIOIN
	emit(0x0E, 0x00)    // LD C,0
	emit(0xCF)          // RST 08
	emit(0x06, fnCIOOut) // LD B,CIOOUT
	emit(0x0E, 0x00)     // LD C,0
	emit(0xCF)           // RST 08
	emit(0x18, uint8(echo-(pos+2))) // JR echo

	// The banner text.
	at(msgAddr)
	emit([]uint8(banner)...)
	emit(0x00)

	return rom
}
