// Character I/O services.
//
// Unit 0 is the console; unit 1 is the auxiliary/printer device.  The
// RomWBW convention of setting bit 7 for "current console" is honoured
// by masking it off.

package hbios

import (
	"time"
)

// cioUnit resolves the C register to a device class.
func cioUnit(c uint8) uint8 {
	return c & 0x7F
}

// SvcConsoleIn reads one character into E.
//
// With blocking allowed the call polls the queue; otherwise an empty
// queue parks the call and raises the waiting-for-input flag for the
// embedder to clear.
func SvcConsoleIn(h *Dispatcher) Status {

	switch cioUnit(h.CPU.BC.Lo) {
	case 0:
		ch := h.Host.Console.ReadChar()
		if ch < 0 {
			if !h.blockingAllowed {
				h.park()
				return StatusNotReady
			}

			// Poll; input is queued from another goroutine.
			for ch < 0 {
				time.Sleep(time.Millisecond)
				ch = h.Host.Console.ReadChar()
			}
		}
		h.CPU.DE.Lo = uint8(ch)
		return StatusOK

	case 1:
		b, err := h.Aux.ReadByte()
		if err != nil {
			return StatusIOError
		}
		h.CPU.DE.Lo = b
		return StatusOK
	}

	return StatusBadUnit
}

// SvcConsoleOut writes the character in E.
func SvcConsoleOut(h *Dispatcher) Status {

	switch cioUnit(h.CPU.BC.Lo) {
	case 0:
		h.Host.Console.WriteChar(h.CPU.DE.Lo)
		return StatusOK
	case 1:
		if err := h.Aux.WriteByte(h.CPU.DE.Lo); err != nil {
			return StatusIOError
		}
		return StatusOK
	}

	return StatusBadUnit
}

// SvcConsoleInStatus returns the pending-input flag in E; A carries the
// status.
func SvcConsoleInStatus(h *Dispatcher) Status {

	switch cioUnit(h.CPU.BC.Lo) {
	case 0:
		if h.Host.Console.HasInput() {
			h.CPU.DE.Lo = 1
			return StatusOK
		}
		h.CPU.DE.Lo = 0
		return StatusOK
	case 1:
		if h.Aux.Ready() {
			h.CPU.DE.Lo = 1
		} else {
			h.CPU.DE.Lo = 0
		}
		return StatusOK
	}

	return StatusBadUnit
}

// SvcConsoleOutStatus reports output readiness, which is always true
// for the console.
func SvcConsoleOutStatus(h *Dispatcher) Status {

	switch cioUnit(h.CPU.BC.Lo) {
	case 0:
		h.CPU.DE.Lo = 1
		return StatusOK
	case 1:
		if h.Aux.Ready() {
			h.CPU.DE.Lo = 1
		} else {
			h.CPU.DE.Lo = 0
		}
		return StatusOK
	}

	return StatusBadUnit
}
