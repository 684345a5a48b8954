// System services: reset, version, banking, timer and clock.

package hbios

import (
	"log/slog"

	"github.com/z80wbw/wbwemu/memory"
	"github.com/z80wbw/wbwemu/version"
)

// SvcSysReset re-enters the boot sequence: the input queue is drained,
// bank 0 selected, PC and SP zeroed, the interrupt flip-flops dropped,
// and the RAM-bank bookkeeping cleared.  The call does not return to
// the stub; execution resumes at address zero.
func SvcSysReset(h *Dispatcher) Status {

	resetType := h.CPU.DE.Lo
	h.Logger.Info("system reset", slog.Int("type", int(resetType)))

	h.Host.Console.ClearQueue()

	h.Memory.SelectBank(0x00)
	h.Memory.ClearInitialized()
	h.Memory.ClearShadow()

	h.CPU.PC = 0
	h.CPU.SP = 0
	h.CPU.IFF1 = false
	h.CPU.IFF2 = false
	h.CPU.Halted = false

	h.Reset()

	if h.ResetHook != nil {
		h.ResetHook(resetType)
	}

	h.noReturn = true
	return StatusOK
}

// SvcSysVersion returns the firmware version word in HL.
func SvcSysVersion(h *Dispatcher) Status {
	h.CPU.HL.SetU16(version.HBIOSVersion)
	return StatusOK
}

// SvcSysSetBank selects the bank in E for the lower window, lazily
// initializing RAM banks on first touch.
func SvcSysSetBank(h *Dispatcher) Status {

	bank := h.CPU.DE.Lo
	if bank&memory.RAMBankFlag != 0 {
		h.Memory.InitRAMBank(bank)
	}
	h.Memory.SelectBank(bank)
	return StatusOK
}

// SvcSysGetBank returns the current bank in E.
func SvcSysGetBank(h *Dispatcher) Status {
	h.CPU.DE.Lo = h.Memory.CurrentBank()
	return StatusOK
}

// SvcSysTimer returns the 50 Hz tick count in HL:DE (HL high).
func SvcSysTimer(h *Dispatcher) Status {
	ticks := h.Ticks()
	h.CPU.HL.SetU16(uint16(ticks >> 16))
	h.CPU.DE.SetU16(uint16(ticks))
	return StatusOK
}

// toBCD packs a value 0-99 as two BCD nibbles.
func toBCD(v int) uint8 {
	return uint8((v/10)<<4 | v%10)
}

// SvcSysRTC reads or sets the wall clock as a six-byte BCD record
// (yy mm dd hh mm ss) at (HL).  Setting is accepted but the host clock
// is not changed.
func SvcSysRTC(h *Dispatcher) Status {

	addr := h.CPU.HL.U16()

	switch h.CPU.BC.Lo {

	case 0: // GET
		now := h.Host.Clock.Now()
		rec := [6]uint8{
			toBCD(now.Year % 100),
			toBCD(now.Month),
			toBCD(now.Day),
			toBCD(now.Hour),
			toBCD(now.Minute),
			toBCD(now.Second),
		}
		for i, b := range rec {
			h.Memory.Store(addr+uint16(i), b)
		}
		return StatusOK

	case 1: // SET
		var rec [6]uint8
		for i := range rec {
			rec[i] = h.Memory.Fetch(addr+uint16(i), false)
		}
		h.Logger.Info("guest set time-of-day (ignored)",
			slog.Any("bcd", rec[:]))
		return StatusOK
	}

	return StatusUnknown
}
