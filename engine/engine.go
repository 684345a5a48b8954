// Package engine wraps the CPU, the banked memory and the HBIOS
// dispatcher behind the interface an embedder drives: load a ROM and
// some disks, then call RunBatch from a timer and feed keystrokes in.
//
// The engine owns every core component and is the single place where
// they point at each other; it is also the CPU's port handler, which is
// where the sentinel ports are interpreted.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/z80wbw/wbwemu/cpu"
	"github.com/z80wbw/wbwemu/hbios"
	"github.com/z80wbw/wbwemu/hostio"
	"github.com/z80wbw/wbwemu/memory"
)

// BatchSize is the conventional instruction count per RunBatch call.
const BatchSize = 100000

// Sentinel ports interpreted by the engine rather than forwarded.
const (
	// PortBankSelect and PortBankSelectAlt switch the lower window.
	PortBankSelect    = 0x78
	PortBankSelectAlt = 0x7C

	// PortHBIOS triggers the HBIOS dispatcher.
	PortHBIOS = 0xEF

	// PortSerialData and PortSerialStatus are the fallback serial
	// console the synthetic firmware can drive directly.
	PortSerialData   = 0x68
	PortSerialStatus = 0x69
)

// hbiosStubAddr is where the RST 08 stub lives in common RAM.
const hbiosStubAddr = 0xFFF0

// OutputCharCallback receives console output characters.
type OutputCharCallback func(ch uint8)

// StatusCallback receives coarse state-change notifications.
type StatusCallback func(status string)

// PortInHandler and PortOutHandler let the embedder claim ports the
// engine does not reserve.
type PortInHandler func(port uint8) uint8
type PortOutHandler func(port uint8, value uint8)

// Engine is the emulator core as the embedder sees it.
type Engine struct {
	Memory *memory.Memory
	CPU    *cpu.CPU
	HBIOS  *hbios.Dispatcher
	Host   *hostio.HostIO

	logger *slog.Logger

	running       atomic.Bool
	stopRequested atomic.Bool

	instructionCount uint64

	bootString string

	// outMu guards the buffered console output drained by FlushOutput.
	outMu  sync.Mutex
	outBuf []uint8

	outputCallback OutputCharCallback
	statusCallback StatusCallback

	portIn  PortInHandler
	portOut PortOutHandler
}

// New constructs an engine over the given host I/O record.  Banking is
// enabled immediately; the caller loads a ROM before starting.
func New(host *hostio.HostIO, logger *slog.Logger) *Engine {

	e := &Engine{
		Host:   host,
		logger: logger,
	}

	e.Memory = memory.New()
	e.Memory.EnableBanking()

	e.CPU = cpu.New(e.Memory, e)
	e.CPU.OnUnimplemented = func(opcode uint8, pc uint16) {
		e.logger.Error("unimplemented opcode",
			slog.String("opcode", fmt.Sprintf("0x%02X", opcode)),
			slog.String("pc", fmt.Sprintf("0x%04X", pc)))
		e.sendStatus("Halted: bad opcode")
	}

	e.HBIOS = hbios.New(e.CPU, e.Memory, host, logger)
	e.HBIOS.SetSkipRet(true)
	e.HBIOS.SetBlockingAllowed(false)
	e.HBIOS.ResetHook = func(resetType uint8) {
		e.sendStatus("Reset")
	}

	// Console output is buffered here and drained by FlushOutput.
	if q, ok := host.Console.(*hostio.QueueConsole); ok {
		q.SetSink(e.bufferOutput)
	}

	return e
}

// bufferOutput collects a console output character.
func (e *Engine) bufferOutput(ch uint8) {
	e.outMu.Lock()
	e.outBuf = append(e.outBuf, ch)
	e.outMu.Unlock()
}

// FlushOutput drains buffered console output into the output callback.
func (e *Engine) FlushOutput() {
	e.outMu.Lock()
	buf := e.outBuf
	e.outBuf = nil
	cb := e.outputCallback
	e.outMu.Unlock()

	if cb == nil {
		return
	}
	for _, ch := range buf {
		cb(ch)
	}
}

// SetOutputCallback installs the console output sink.
func (e *Engine) SetOutputCallback(cb OutputCharCallback) {
	e.outputCallback = cb
}

// SetStatusCallback installs the status sink.
func (e *Engine) SetStatusCallback(cb StatusCallback) {
	e.statusCallback = cb
}

// AddMemoryWriteCallback subscribes to every guest memory store; the
// framebuffer collaborator uses this.
func (e *Engine) AddMemoryWriteCallback(cb memory.WriteCallback) {
	e.Memory.AddWriteCallback(cb)
}

// SetPortHandlers installs fall-through handlers for unreserved ports.
func (e *Engine) SetPortHandlers(in PortInHandler, out PortOutHandler) {
	e.portIn = in
	e.portOut = out
}

// sendStatus notifies the embedder of a state change.
func (e *Engine) sendStatus(status string) {
	if e.statusCallback != nil {
		e.statusCallback(status)
	}
}

// LoadROM loads a ROM image (up to 512k) from a file.
func (e *Engine) LoadROM(path string) bool {
	data, err := e.Host.Files.Load(path)
	if err != nil {
		e.logger.Error("cannot load ROM",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return false
	}
	return e.LoadROMFromData(data)
}

// LoadROMFromData loads a ROM image from a buffer.
func (e *Engine) LoadROMFromData(data []uint8) bool {
	e.Memory.ClearInitialized()
	if !e.Memory.LoadROM(data) {
		e.logger.Error("invalid ROM image", slog.Int("size", len(data)))
		return false
	}
	e.logger.Info("ROM loaded", slog.Int("size", len(data)))
	return true
}

// LoadROMLoader loads a full RomWBW image into banks 1-15, preserving
// the synthetic firmware in bank 0.
func (e *Engine) LoadROMLoader(path string) bool {
	data, err := e.Host.Files.Load(path)
	if err != nil {
		e.logger.Error("cannot load romldr image",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return false
	}
	if !e.Memory.LoadROMLoader(data) {
		return false
	}
	e.logger.Info("romldr image loaded, bank 0 preserved")
	return true
}

// LoadDisk attaches the disk image at the given path to a hard-disk
// slot, with write-through persistence to the file.
func (e *Engine) LoadDisk(slot int, path string) bool {

	data, err := e.Host.Files.Load(path)
	if err != nil {
		e.logger.Error("cannot load disk",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return false
	}

	// Best-effort persistence: a read-only file still works, the image
	// just lives in memory only.
	file, err := e.Host.Disks.Open(path, hostio.ModeReadWrite)
	if err != nil {
		e.logger.Warn("disk image not writable, running in-memory",
			slog.String("path", path))
		file = nil
	}

	if err := e.HBIOS.AttachDisk(slot, data, file); err != nil {
		e.logger.Error("cannot attach disk",
			slog.Int("slot", slot),
			slog.String("error", err.Error()))
		if file != nil {
			file.Close()
		}
		return false
	}
	return true
}

// LoadDiskFromData attaches an in-memory disk image.
func (e *Engine) LoadDiskFromData(slot int, data []uint8) bool {
	if err := e.HBIOS.AttachDisk(slot, data, nil); err != nil {
		e.logger.Error("cannot attach disk",
			slog.Int("slot", slot),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

// SetDiskSliceCount sets how many drive letters a slot's image gets.
func (e *Engine) SetDiskSliceCount(slot int, slices int) {
	e.HBIOS.SetDiskSliceCount(slot, slices)
}

// SetBootString sets characters to auto-type when the engine starts.
func (e *Engine) SetBootString(s string) {
	e.bootString = s
}

// SendChar queues one character of console input.
func (e *Engine) SendChar(ch uint8) {
	e.Host.Console.QueueChar(ch)
}

// SendString queues a string of console input.
func (e *Engine) SendString(s string) {
	for _, ch := range []uint8(s) {
		e.Host.Console.QueueChar(ch)
	}
}

// Start completes initialization and begins execution from address
// zero.  All disks must be loaded first so the drive tables include
// them.
func (e *Engine) Start() {
	if e.running.Load() {
		return
	}
	e.stopRequested.Store(false)

	e.CPU.Reset()
	e.Memory.SelectBank(0x00)
	e.Memory.ClearInitialized()

	e.HBIOS.CompleteInit()
	e.plantHBIOSStub()

	if e.bootString != "" {
		e.SendString(e.bootString)
		e.SendChar('\r')
	}

	e.running.Store(true)
	e.sendStatus("Running")
}

// plantHBIOSStub writes the RST 08 target in common RAM:
// OUT (0xEF),A / RET.
func (e *Engine) plantHBIOSStub() {
	e.Memory.Store(hbiosStubAddr, 0xD3)
	e.Memory.Store(hbiosStubAddr+1, PortHBIOS)
	e.Memory.Store(hbiosStubAddr+2, 0xC9)
}

// Stop halts execution after the current batch.
func (e *Engine) Stop() {
	if !e.running.Load() {
		return
	}
	e.stopRequested.Store(true)
	e.running.Store(false)
	e.sendStatus("Stopped")
}

// Reset returns the machine to its power-on state.  Disks persist.
func (e *Engine) Reset() {
	wasRunning := e.running.Load()
	e.Stop()

	e.CPU.Reset()
	e.Memory.SelectBank(0x00)
	e.Memory.ClearInitialized()
	e.Memory.ClearShadow()
	e.Host.Console.ClearQueue()
	e.HBIOS.Reset()
	e.instructionCount = 0

	if wasRunning {
		e.Start()
	}
	e.sendStatus("Reset")
}

// IsRunning reports whether the engine is between Start and Stop.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// RunBatch executes up to n instructions (BatchSize when n <= 0).
//
// The batch ends early when execution stops, the CPU halts, or a
// console read parks waiting for input.
func (e *Engine) RunBatch(n int) {
	if !e.running.Load() {
		return
	}
	if n <= 0 {
		n = BatchSize
	}

	for i := 0; i < n; i++ {
		if e.stopRequested.Load() {
			break
		}
		if e.HBIOS.IsWaitingForInput() {
			break
		}
		e.CPU.Execute()
		e.instructionCount++
		if e.CPU.Halted {
			break
		}
	}

	// Release a parked console read once input has arrived.
	if e.HBIOS.IsWaitingForInput() && e.Host.Console.HasInput() {
		e.HBIOS.ClearWaitingForInput()
	}
}

// PC returns the guest program counter.
func (e *Engine) PC() uint16 {
	return e.CPU.PC
}

// InstructionCount returns the number of instructions executed since
// the last reset.
func (e *Engine) InstructionCount() uint64 {
	return e.instructionCount
}

// IsWaitingForInput reports whether the guest is parked on console
// input.
func (e *Engine) IsWaitingForInput() bool {
	return e.HBIOS.IsWaitingForInput()
}

// In implements the CPU port-input hook.
func (e *Engine) In(port uint8) uint8 {
	switch port {
	case PortSerialData:
		ch := e.Host.Console.ReadChar()
		if ch < 0 {
			return 0x00
		}
		return uint8(ch)
	case PortSerialStatus:
		// Bit 1: transmitter ready.  Bit 0: receiver has data.
		status := uint8(0x02)
		if e.Host.Console.HasInput() {
			status |= 0x01
		}
		return status
	}

	if e.portIn != nil {
		return e.portIn(port)
	}
	return 0xFF
}

// Out implements the CPU port-output hook; the sentinel ports are
// interpreted here.
func (e *Engine) Out(port uint8, value uint8) {
	switch port {

	case PortBankSelect, PortBankSelectAlt:
		if value&memory.RAMBankFlag != 0 {
			e.Memory.InitRAMBank(value)
		}
		e.Memory.SelectBank(value)
		return

	case PortHBIOS:
		e.HBIOS.Dispatch()
		return

	case PortSerialData:
		e.Host.Console.WriteChar(value)
		return
	}

	if e.portOut != nil {
		e.portOut(port, value)
	}
}
