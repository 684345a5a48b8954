package engine

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/z80wbw/wbwemu/firmware"
	"github.com/z80wbw/wbwemu/hostio"
	"github.com/z80wbw/wbwemu/memory"
)

// newTestEngine builds an engine with output captured into a string
// builder.
func newTestEngine() (*Engine, *strings.Builder) {

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	host := hostio.NewDefault(logger)

	e := New(host, logger)

	var out strings.Builder
	e.SetOutputCallback(func(ch uint8) {
		out.WriteByte(ch)
	})
	return e, &out
}

// TestColdBootToOutput: a five-byte program prints
// one character on the serial port and halts.
func TestColdBootToOutput(t *testing.T) {

	e, out := newTestEngine()

	rom := []uint8{0x3E, 0x2A, 0xD3, 0x68, 0x76} // LD A,'*'; OUT (0x68),A; HALT
	if !e.LoadROMFromData(rom) {
		t.Fatalf("ROM load failed")
	}

	e.Start()
	e.RunBatch(100)
	e.FlushOutput()

	if e.PC() != 0x0005 {
		t.Fatalf("PC wrong after halt: %04X", e.PC())
	}
	if out.String() != "*" {
		t.Fatalf("output wrong: %q", out.String())
	}
	if e.InstructionCount() == 0 {
		t.Fatalf("instruction count not advancing")
	}
}

// TestBankSelectPort: a bank-select OUT changes the lower
// window and lazily initializes the RAM bank.
func TestBankSelectPort(t *testing.T) {

	e, _ := newTestEngine()

	// Program in bank 0: write 0x55 to 0x0100 (the ROM shadow), then
	// switch to RAM bank 0x81 and halt.
	rom := make([]uint8, memory.BankSize)
	prog := []uint8{
		0x3E, 0x55, // LD A,0x55
		0x32, 0x00, 0x01, // LD (0x0100),A
		0x3E, 0x81, // LD A,0x81
		0xD3, 0x78, // OUT (0x78),A
		0x76, // HALT
	}
	// Keep the program clear of the HCB area it writes to.
	copy(rom[0x4000:], prog)
	rom[0] = 0xC3 // JP 0x4000
	rom[1] = 0x00
	rom[2] = 0x40
	rom[memory.HCBBase+memory.HCBAPIType] = 0xFF

	if !e.LoadROMFromData(rom) {
		t.Fatalf("ROM load failed")
	}

	e.Start()
	e.RunBatch(100)

	if e.Memory.CurrentBank() != 0x81 {
		t.Fatalf("bank select did not happen: %02X", e.Memory.CurrentBank())
	}

	// The shadow write is not visible through the fresh RAM bank;
	// the lazy init copied the ROM image, not the overlay.
	if got := e.Memory.Fetch(0x0100, false); got != rom[0x0100] {
		t.Fatalf("RAM bank read wrong: %02X", got)
	}

	// The bank was lazily initialized from ROM bank 0 with the
	// API-type byte patched.
	if !e.Memory.IsRAMBankInitialized(0x81) {
		t.Fatalf("lazy init did not run")
	}
	if got := e.Memory.Fetch(memory.HCBBase+memory.HCBAPIType, false); got != 0x00 {
		t.Fatalf("API-type not patched in RAM bank: %02X", got)
	}
}

// TestSetBankService drives HBIOS function 0xF2 through the planted
// RST 08 stub.
func TestSetBankService(t *testing.T) {

	e, _ := newTestEngine()

	rom := firmware.Build(firmware.Options{Banner: "x"})
	// Replace the boot monitor with: LD B,0xF2; LD E,0x82; RST 08; HALT.
	prog := []uint8{
		0x06, 0xF2, // LD B,0xF2
		0x1E, 0x82, // LD E,0x82
		0xCF, // RST 08
		0x76, // HALT
	}
	copy(rom[0x0200:], prog)

	if !e.LoadROMFromData(rom) {
		t.Fatalf("ROM load failed")
	}

	e.Start()
	e.RunBatch(100)

	if e.Memory.CurrentBank() != 0x82 {
		t.Fatalf("service bank select failed: %02X", e.Memory.CurrentBank())
	}
	if !e.Memory.IsRAMBankInitialized(0x82) {
		t.Fatalf("lazy init did not run")
	}

	// The lazy init copied page zero: the RST 08 vector is present in
	// the new bank too.
	if e.Memory.Fetch(0x0008, false) != 0xC3 {
		t.Fatalf("page zero not copied into the new bank")
	}
}

// TestFirmwareBootMonitor boots the synthetic firmware: the banner is
// printed through the HBIOS console path, then the monitor parks
// waiting for input and echoes what we type.
func TestFirmwareBootMonitor(t *testing.T) {

	e, out := newTestEngine()

	rom := firmware.Build(firmware.Options{Banner: "hello guest"})
	if !e.LoadROMFromData(rom) {
		t.Fatalf("ROM load failed")
	}

	e.Start()
	e.RunBatch(10000)
	e.FlushOutput()

	if !strings.Contains(out.String(), "hello guest\r\n") {
		t.Fatalf("banner missing: %q", out.String())
	}
	if !e.IsWaitingForInput() {
		t.Fatalf("monitor should be parked on console input")
	}

	// Type a character: the next batches clear the parked read and the
	// monitor echoes it.
	e.SendChar('k')
	e.RunBatch(10000)
	e.RunBatch(10000)
	e.FlushOutput()

	if !strings.HasSuffix(out.String(), "k") {
		t.Fatalf("echo missing: %q", out.String())
	}
}

// TestBootString is queued, with a trailing CR, when the engine
// starts.
func TestBootString(t *testing.T) {

	e, _ := newTestEngine()

	if !e.LoadROMFromData([]uint8{0x76}) {
		t.Fatalf("ROM load failed")
	}

	e.SetBootString("c2")
	e.Start()

	want := []int{'c', '2', '\r', -1}
	for i, w := range want {
		if got := e.Host.Console.ReadChar(); got != w {
			t.Fatalf("boot string char %d wrong: %d want %d", i, got, w)
		}
	}
}

// TestStopRequest ends a batch early.
func TestStopRequest(t *testing.T) {

	e, _ := newTestEngine()

	// An endless loop: JR -2.
	if !e.LoadROMFromData([]uint8{0x18, 0xFE}) {
		t.Fatalf("ROM load failed")
	}

	e.Start()
	e.RunBatch(1000)
	if e.InstructionCount() != 1000 {
		t.Fatalf("batch length wrong: %d", e.InstructionCount())
	}

	e.Stop()
	e.RunBatch(1000)
	if e.InstructionCount() != 1000 {
		t.Fatalf("stopped engine still executing")
	}
}

// TestResetPersistsDisks: reset clears machine state but leaves disks
// attached.
func TestResetPersistsDisks(t *testing.T) {

	e, _ := newTestEngine()

	if !e.LoadROMFromData([]uint8{0x76}) {
		t.Fatalf("ROM load failed")
	}
	if !e.LoadDiskFromData(0, make([]uint8, hostio.HD1KSingleSize)) {
		t.Fatalf("disk load failed")
	}

	e.Start()
	e.RunBatch(10)
	e.Reset()

	if e.PC() != 0 {
		t.Fatalf("PC not reset")
	}
	if e.InstructionCount() != 0 {
		t.Fatalf("instruction count not reset")
	}
	if !e.HBIOS.IsDiskLoaded(0) {
		t.Fatalf("disk lost across reset")
	}
}

// TestMemoryWriteCallback reaches the subscriber for CPU stores.
func TestMemoryWriteCallback(t *testing.T) {

	e, _ := newTestEngine()

	var lastAddr uint16
	var lastVal uint8
	e.AddMemoryWriteCallback(func(addr uint16, value uint8) {
		lastAddr = addr
		lastVal = value
	})

	// LD A,0x42; LD (0x9234),A; HALT
	if !e.LoadROMFromData([]uint8{0x3E, 0x42, 0x32, 0x34, 0x92, 0x76}) {
		t.Fatalf("ROM load failed")
	}

	e.Start()
	e.RunBatch(10)

	if lastAddr != 0x9234 || lastVal != 0x42 {
		t.Fatalf("write callback wrong: %04X=%02X", lastAddr, lastVal)
	}
}

// TestEmbedderPorts routes unreserved ports to the installed handlers.
func TestEmbedderPorts(t *testing.T) {

	e, _ := newTestEngine()

	var outPort, outVal uint8
	e.SetPortHandlers(
		func(port uint8) uint8 {
			return port + 1
		},
		func(port uint8, value uint8) {
			outPort = port
			outVal = value
		})

	// IN A,(0x21); OUT (0x33),A; HALT
	if !e.LoadROMFromData([]uint8{0xDB, 0x21, 0xD3, 0x33, 0x76}) {
		t.Fatalf("ROM load failed")
	}

	e.Start()
	e.RunBatch(10)

	if outPort != 0x33 || outVal != 0x22 {
		t.Fatalf("port pass-through wrong: %02X=%02X", outPort, outVal)
	}
}
