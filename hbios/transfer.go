// Host file-transfer services, used by the guest R8/W8 utilities.

package hbios

import (
	"errors"
	"io"
	"log/slog"
)

// StatusEOF is returned by the read-byte service at end of file.
const StatusEOF Status = 0xFE

// transferName reads the NUL-terminated filename at (HL), capped at a
// sane length.
func transferName(h *Dispatcher) string {
	addr := h.CPU.HL.U16()
	name := ""
	for i := 0; i < 128; i++ {
		b := h.Memory.Fetch(addr+uint16(i), false)
		if b == 0x00 {
			break
		}
		name += string(rune(b))
	}
	return name
}

// SvcFileOpenRead starts a host-to-guest transfer of the file named at
// (HL).
func SvcFileOpenRead(h *Dispatcher) Status {
	name := transferName(h)
	if err := h.Host.Transfer.OpenRead(name); err != nil {
		h.Logger.Warn("transfer open-read failed",
			slog.String("name", name),
			slog.String("error", err.Error()))
		return StatusIOError
	}
	return StatusOK
}

// SvcFileReadByte returns the next transfer byte in E, or EOF status.
func SvcFileReadByte(h *Dispatcher) Status {
	b, err := h.Host.Transfer.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return StatusEOF
		}
		return StatusIOError
	}
	h.CPU.DE.Lo = b
	return StatusOK
}

// SvcFileCloseRead finishes a host-to-guest transfer.
func SvcFileCloseRead(h *Dispatcher) Status {
	if err := h.Host.Transfer.CloseRead(); err != nil {
		return StatusIOError
	}
	return StatusOK
}

// SvcFileOpenWrite starts a guest-to-host transfer into the file named
// at (HL).
func SvcFileOpenWrite(h *Dispatcher) Status {
	name := transferName(h)
	if err := h.Host.Transfer.OpenWrite(name); err != nil {
		h.Logger.Warn("transfer open-write failed",
			slog.String("name", name),
			slog.String("error", err.Error()))
		return StatusIOError
	}
	return StatusOK
}

// SvcFileWriteByte appends the byte in E to the open transfer.
func SvcFileWriteByte(h *Dispatcher) Status {
	if err := h.Host.Transfer.WriteByte(h.CPU.DE.Lo); err != nil {
		return StatusIOError
	}
	return StatusOK
}

// SvcFileCloseWrite finishes a guest-to-host transfer.
func SvcFileCloseWrite(h *Dispatcher) Status {
	if err := h.Host.Transfer.CloseWrite(); err != nil {
		return StatusIOError
	}
	return StatusOK
}
