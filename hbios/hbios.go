// Package hbios implements the synthetic firmware service layer the
// guest ROM invokes.
//
// The guest performs OUT (0xEF),A - wrapped in an RST 08 stub the
// engine plants in common RAM - and the engine routes that port write
// here.  The dispatcher reads the CPU registers, performs the requested
// service against host resources, writes the result registers back, and
// sets or clears carry for failure or success.  Function numbers travel
// in B, with C carrying a unit or subfunction.
//
// The package mostly contains the implementation of the services that
// RomWBW guests expect - along with a little machinery for the drive
// tables the boot loader and CBIOS read out of the HCB.
package hbios

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/z80wbw/wbwemu/cpu"
	"github.com/z80wbw/wbwemu/hostio"
	"github.com/z80wbw/wbwemu/memory"
)

// Status is the byte a service returns in A.  Anything non-zero also
// sets carry.
type Status uint8

// Guest-visible status codes.
const (
	StatusOK         Status = 0x00
	StatusBadUnit    Status = 0xF0
	StatusIOError    Status = 0xF1
	StatusOutOfRange Status = 0xF2
	StatusNotReady   Status = 0xF3
	StatusUnknown    Status = 0xFF
)

// HBIOS function numbers.
const (
	FnCIOIn  = 0x00
	FnCIOOut = 0x01
	FnCIOIst = 0x02
	FnCIOOst = 0x03
	FnDIO    = 0x04

	FnFileOpenRead  = 0xE0
	FnFileReadByte  = 0xE1
	FnFileCloseRead = 0xE2
	FnFileOpenWrite = 0xE3
	FnFileWriteByte = 0xE4
	FnFileCloseWrite = 0xE5

	FnSysReset  = 0xF0
	FnSysVer    = 0xF1
	FnSysSetBnk = 0xF2
	FnSysGetBnk = 0xF3
	FnSysTimer  = 0xF4
	FnSysRTC    = 0xF5
)

// DIO subfunctions, carried in C.
const (
	DIOStatus   = 0x00
	DIOSetUnit  = 0x01
	DIOSetLBA   = 0x02
	DIORead     = 0x03
	DIOWrite    = 0x04
	DIODevice   = 0x05
	DIOCapacity = 0x06
	DIOGeometry = 0x07
)

// HandlerType contains the signature of an HBIOS service routine.
type HandlerType func(h *Dispatcher) Status

// Handler contains details of a specific service we implement.
//
// While we mostly need a "number to handler" mapping, having a name is
// useful for the logs we produce.
type Handler struct {
	// Desc contains the human-readable name of the service.
	Desc string

	// Handler contains the function to invoke for this service.
	Handler HandlerType
}

// Dispatcher is the HBIOS service layer.
type Dispatcher struct {

	// Functions maps the B register to service routines.
	Functions map[uint8]Handler

	// CPU is manipulated directly: inputs are read from its registers
	// and results written back.
	CPU *cpu.CPU

	// Memory is the banked guest memory.
	Memory *memory.Memory

	// Host is the capability record for console, clock, files and
	// transfer.
	Host *hostio.HostIO

	// Aux is the auxiliary/printer device.
	Aux *hostio.AuxDevice

	// Logger is used for debugging and diagnostics.
	Logger *slog.Logger

	// units is the disk unit table; indexes are guest unit numbers.
	units [MaxUnits]*DiskUnit

	// curUnit and curLBA are the DIO selection state.
	curUnit uint8
	curLBA  uint32

	// skipRet makes the dispatcher pop the stub's return frame itself
	// so the RET after the OUT is never executed.
	skipRet bool

	// blockingAllowed permits CIOIN to poll for input; GUI embedders
	// leave it off and use the waiting flag instead.
	blockingAllowed bool

	// waiting is raised when a console read found no data; the
	// embedder clears it when input arrives.
	waiting bool

	// noReturn is set by services (reset) that rewrite the whole CPU
	// state; the dispatcher then skips result handling.
	noReturn bool

	// epoch anchors the 50 Hz tick counter.
	epoch time.Time

	// ResetHook, when set, is invoked by the system-reset service
	// after the dispatcher's own reset work.
	ResetHook func(resetType uint8)
}

// New builds a dispatcher bound to the given CPU, memory and host I/O.
func New(c *cpu.CPU, mem *memory.Memory, host *hostio.HostIO, logger *slog.Logger) *Dispatcher {

	h := &Dispatcher{
		CPU:    c,
		Memory: mem,
		Host:   host,
		Aux:    hostio.NewAuxDevice(""),
		Logger: logger,
		epoch:  time.Now(),
	}

	fns := make(map[uint8]Handler)
	fns[FnCIOIn] = Handler{Desc: "CIOIN", Handler: SvcConsoleIn}
	fns[FnCIOOut] = Handler{Desc: "CIOOUT", Handler: SvcConsoleOut}
	fns[FnCIOIst] = Handler{Desc: "CIOIST", Handler: SvcConsoleInStatus}
	fns[FnCIOOst] = Handler{Desc: "CIOOST", Handler: SvcConsoleOutStatus}
	fns[FnDIO] = Handler{Desc: "DIO", Handler: SvcDisk}
	fns[FnFileOpenRead] = Handler{Desc: "FILEOPENRD", Handler: SvcFileOpenRead}
	fns[FnFileReadByte] = Handler{Desc: "FILERDBYTE", Handler: SvcFileReadByte}
	fns[FnFileCloseRead] = Handler{Desc: "FILECLOSERD", Handler: SvcFileCloseRead}
	fns[FnFileOpenWrite] = Handler{Desc: "FILEOPENWR", Handler: SvcFileOpenWrite}
	fns[FnFileWriteByte] = Handler{Desc: "FILEWRBYTE", Handler: SvcFileWriteByte}
	fns[FnFileCloseWrite] = Handler{Desc: "FILECLOSEWR", Handler: SvcFileCloseWrite}
	fns[FnSysReset] = Handler{Desc: "SYSRESET", Handler: SvcSysReset}
	fns[FnSysVer] = Handler{Desc: "SYSVER", Handler: SvcSysVersion}
	fns[FnSysSetBnk] = Handler{Desc: "SYSSETBNK", Handler: SvcSysSetBank}
	fns[FnSysGetBnk] = Handler{Desc: "SYSGETBNK", Handler: SvcSysGetBank}
	fns[FnSysTimer] = Handler{Desc: "SYSTIMER", Handler: SvcSysTimer}
	fns[FnSysRTC] = Handler{Desc: "SYSRTC", Handler: SvcSysRTC}
	h.Functions = fns

	return h
}

// SetSkipRet controls whether the dispatcher consumes the stub's
// return frame itself.
func (h *Dispatcher) SetSkipRet(enabled bool) {
	h.skipRet = enabled
}

// SetBlockingAllowed controls whether CIOIN may poll for input.
func (h *Dispatcher) SetBlockingAllowed(enabled bool) {
	h.blockingAllowed = enabled
}

// IsWaitingForInput reports whether a console read is parked.
func (h *Dispatcher) IsWaitingForInput() bool {
	return h.waiting
}

// ClearWaitingForInput releases a parked console read; the embedder
// calls this once input has been queued.
func (h *Dispatcher) ClearWaitingForInput() {
	h.waiting = false
}

// Dispatch services one HBIOS call.  The engine invokes this when the
// CPU writes to the sentinel port.
func (h *Dispatcher) Dispatch() {

	fn := h.CPU.BC.Hi

	handler, exists := h.Functions[fn]
	if !exists {
		h.Logger.Error("unimplemented HBIOS function",
			slog.Int("function", int(fn)),
			slog.String("functionHex", fmt.Sprintf("0x%02X", fn)))
		h.finish(StatusUnknown)
		return
	}

	h.Logger.Debug("HBIOS call",
		slog.String("name", handler.Desc),
		slog.Int("function", int(fn)),
		slog.Int("unit", int(h.CPU.BC.Lo)))

	h.noReturn = false
	st := handler.Handler(h)
	h.finish(st)
}

// finish writes the result registers and unwinds the stub frame.
func (h *Dispatcher) finish(st Status) {

	// A parked console read rewound PC itself; the call will be
	// re-issued, so leave everything untouched.
	if h.waiting {
		return
	}

	// A reset rebuilt the CPU state wholesale.
	if h.noReturn {
		return
	}

	h.CPU.A = uint8(st)
	h.CPU.F.SetCarry(st != StatusOK)

	if h.skipRet {
		// Consume the RET frame the stub would have used.
		h.CPU.PC = h.Memory.FetchU16(h.CPU.SP)
		h.CPU.SP += 2
	}
}

// Reset discards any in-flight dispatcher state: the DIO selection, a
// parked console read, and the tick epoch survive nothing.
func (h *Dispatcher) Reset() {
	h.curUnit = 0
	h.curLBA = 0
	h.waiting = false
	h.epoch = time.Now()
}

// park rewinds PC onto the OUT instruction and raises the waiting
// flag; the next batch will re-issue the call once input arrives.
func (h *Dispatcher) park() {
	h.waiting = true
	h.CPU.PC -= 2
}

// Ticks returns the 50 Hz tick count since the epoch.
func (h *Dispatcher) Ticks() uint32 {
	return uint32(time.Since(h.epoch) / (20 * time.Millisecond))
}
