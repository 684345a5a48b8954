// Package memory provides the banked 64k address space within which the
// emulator executes its programs.
//
// The Z80 sees a flat 16-bit address space, but the hardware we emulate
// maps the lower 32k window onto one of sixteen ROM banks or sixteen RAM
// banks, selected at runtime.  The upper 32k is the "common" window and
// always maps to the last RAM bank.
//
// Before banking is enabled the memory behaves as 64k of flat RAM, which
// keeps bring-up and unit-tests simple.
package memory

import (
	"os"
)

const (
	// BankSize is the size of a single ROM or RAM bank.
	BankSize = 0x8000

	// BankCount is the number of ROM banks, and also the number of RAM banks.
	BankCount = 16

	// ROMSize is the total size of the ROM area (512k).
	ROMSize = BankSize * BankCount

	// RAMSize is the total size of the RAM area (512k).
	RAMSize = BankSize * BankCount

	// CommonBase is the start of the common window, which is always
	// mapped to RAM bank 0x8F regardless of the selected bank.
	CommonBase = 0x8000

	// CommonBank is the RAM bank backing the common window.
	CommonBank = 0x8F

	// RAMBankFlag is set in a bank ID to select RAM rather than ROM.
	RAMBankFlag = 0x80
)

// WriteCallback is invoked for every store, whether it originates in the
// CPU or in the HBIOS layer.  A framebuffer collaborator uses this to
// detect display updates.
//
// Callbacks must not re-enter the memory system.
type WriteCallback func(addr uint16, value uint8)

// Memory provides the banked guest address space.
type Memory struct {

	// rom holds the 512k ROM image, sixteen banks of 32k.
	rom [ROMSize]uint8

	// ram holds the 512k RAM area, sixteen banks of 32k.
	ram [RAMSize]uint8

	// shadow holds bytes written to ROM addresses.  The ROM image itself
	// is never mutated by the guest; instead writes land here and reads
	// consult the valid bitmap to decide which copy wins.
	shadow [ROMSize]uint8

	// shadowValid marks which shadow bytes hold an overlay, one bit
	// per ROM byte.
	shadowValid [ROMSize / 64]uint64

	// bank is the currently selected bank ID for the lower window.
	bank uint8

	// banking records whether banking has been enabled.  Until it is
	// the address space is 64k of flat RAM.
	banking bool

	// initialized tracks which RAM banks have been lazily populated
	// with page zero and the HCB, one bit per bank.
	initialized uint16

	// subscribers receive a notification for every store.
	subscribers []WriteCallback

	// notifying guards against a callback re-entering the store path.
	notifying bool
}

// New creates a memory system with ROM and RAM zeroed and banking disabled.
func New() *Memory {
	return &Memory{}
}

// EnableBanking switches from the flat 64k model to the banked model.
func (m *Memory) EnableBanking() {
	m.banking = true
	m.bank = 0x00
}

// IsBankingEnabled reports whether banking is active.
func (m *Memory) IsBankingEnabled() bool {
	return m.banking
}

// AddWriteCallback registers a subscriber which will see every store.
func (m *Memory) AddWriteCallback(cb WriteCallback) {
	m.subscribers = append(m.subscribers, cb)
}

// SelectBank changes the mapping of the lower 32k window.
//
// Bank IDs with bit 7 set select RAM banks, others select ROM banks.
// The common window is unaffected.
func (m *Memory) SelectBank(id uint8) {
	m.bank = id
}

// CurrentBank returns the bank ID mapped into the lower window.
func (m *Memory) CurrentBank() uint8 {
	return m.bank
}

// shadowBit returns the word index and mask for a ROM offset.
func shadowBit(off int) (int, uint64) {
	return off >> 6, uint64(1) << (off & 63)
}

// Fetch reads a byte from the guest address space.
//
// The instruction flag distinguishes opcode fetches from data reads; we
// only carry it for tracers, the mapping is identical.
func (m *Memory) Fetch(addr uint16, instruction bool) uint8 {
	_ = instruction

	if !m.banking {
		return m.ram[addr]
	}

	if addr >= CommonBase {
		return m.ram[(CommonBank&0x0F)*BankSize+int(addr-CommonBase)]
	}

	idx := int(m.bank&0x0F)*BankSize + int(addr)
	if m.bank&RAMBankFlag != 0 {
		return m.ram[idx]
	}

	// ROM read: a shadow overlay takes precedence over the image.
	w, bit := shadowBit(idx)
	if m.shadowValid[w]&bit != 0 {
		return m.shadow[idx]
	}
	return m.rom[idx]
}

// Store writes a byte to the guest address space.
//
// Writes to the common window land in RAM bank 0x8F.  Writes through a
// ROM bank are absorbed into the shadow overlay so that subsequent reads
// observe them without the ROM image being mutated.
func (m *Memory) Store(addr uint16, value uint8) {

	if !m.banking {
		m.ram[addr] = value
		m.notify(addr, value)
		return
	}

	if addr >= CommonBase {
		m.ram[(CommonBank&0x0F)*BankSize+int(addr-CommonBase)] = value
		m.notify(addr, value)
		return
	}

	idx := int(m.bank&0x0F)*BankSize + int(addr)
	if m.bank&RAMBankFlag != 0 {
		m.ram[idx] = value
	} else {
		w, bit := shadowBit(idx)
		m.shadow[idx] = value
		m.shadowValid[w] |= bit
	}
	m.notify(addr, value)
}

// notify fans a store out to all subscribers.
func (m *Memory) notify(addr uint16, value uint8) {
	if m.notifying || len(m.subscribers) == 0 {
		return
	}
	m.notifying = true
	for _, cb := range m.subscribers {
		cb(addr, value)
	}
	m.notifying = false
}

// FetchU16 reads a little-endian word.
func (m *Memory) FetchU16(addr uint16) uint16 {
	l := m.Fetch(addr, false)
	h := m.Fetch(addr+1, false)
	return (uint16(h) << 8) | uint16(l)
}

// StoreU16 writes a little-endian word.
func (m *Memory) StoreU16(addr uint16, value uint16) {
	m.Store(addr, uint8(value))
	m.Store(addr+1, uint8(value>>8))
}

// ReadBank reads a byte from a specific bank, bypassing the current
// selection and the ROM shadow.  Used during HCB setup, where the
// pristine image is wanted.
func (m *Memory) ReadBank(bank uint8, addr uint16) uint8 {
	idx := int(bank&0x0F)*BankSize + int(addr)%BankSize
	if bank&RAMBankFlag != 0 {
		return m.ram[idx]
	}
	return m.rom[idx]
}

// WriteBank writes a byte to a specific bank, bypassing the current
// selection.  ROM banks are written directly - this is an initialization
// path, not a guest path.
func (m *Memory) WriteBank(bank uint8, addr uint16, value uint8) {
	idx := int(bank&0x0F)*BankSize + int(addr)%BankSize
	if bank&RAMBankFlag != 0 {
		m.ram[idx] = value
	} else {
		m.rom[idx] = value
	}
}

// ROM returns the raw ROM area, used by initialization and by the HBIOS
// dispatcher for bulk edits.
func (m *Memory) ROM() []uint8 {
	return m.rom[:]
}

// RAM returns the raw RAM area.
func (m *Memory) RAM() []uint8 {
	return m.ram[:]
}

// ClearShadow discards the ROM overlay; called on reset since overlays do
// not persist across one.
func (m *Memory) ClearShadow() {
	for i := range m.shadowValid {
		m.shadowValid[i] = 0
	}
}

// ClearInitialized forgets which RAM banks have been lazily initialized.
func (m *Memory) ClearInitialized() {
	m.initialized = 0
}

// IsRAMBankInitialized reports whether the given RAM bank has been
// populated with page zero and the HCB.
func (m *Memory) IsRAMBankInitialized(bank uint8) bool {
	if bank&RAMBankFlag == 0 {
		return false
	}
	return m.initialized&(1<<(bank&0x0F)) != 0
}

// InitRAMBank lazily populates a RAM bank on first access: page zero
// (the RST vectors) and the HCB are copied from ROM bank 0, and the
// API-type byte is patched to mark the system as HBIOS.
//
// Each bank is initialized at most once per run; the second and later
// calls return false.
func (m *Memory) InitRAMBank(bank uint8) bool {

	// Only RAM banks 0x80-0x8F qualify.
	if bank&RAMBankFlag == 0 || bank&0x70 != 0 {
		return false
	}

	idx := bank & 0x0F
	if m.initialized&(1<<idx) != 0 {
		return false
	}

	// Page zero and the HCB live in the first 512 bytes of ROM bank 0.
	for addr := uint16(0); addr < 0x0200; addr++ {
		m.WriteBank(bank, addr, m.ReadBank(0x00, addr))
	}

	// The guest expects API-type "HBIOS" (0x00), not the UNA default.
	m.WriteBank(bank, HCBBase+HCBAPIType, 0x00)

	m.initialized |= 1 << idx
	return true
}

// LoadROM loads a ROM image into the ROM area, starting at bank 0.
//
// Returns false if banking is disabled or the image is over-size.
func (m *Memory) LoadROM(data []uint8) bool {
	if !m.banking {
		return false
	}
	if len(data) == 0 || len(data) > ROMSize {
		return false
	}
	copy(m.rom[:], data)
	return true
}

// LoadROMFile loads a ROM image from the named file.
func (m *Memory) LoadROMFile(name string) error {
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	if !m.LoadROM(data) {
		return os.ErrInvalid
	}
	return nil
}

// LoadROMLoader loads a full RomWBW image into banks 1-15 while
// preserving bank 0, which holds our synthetic firmware.  This lets the
// real romldr boot menu run on top of our bootstrap.
func (m *Memory) LoadROMLoader(data []uint8) bool {
	if !m.banking {
		return false
	}

	var bank0 [BankSize]uint8
	copy(bank0[:], m.rom[:BankSize])

	n := len(data)
	if n > ROMSize {
		n = ROMSize
	}
	copy(m.rom[:], data[:n])

	copy(m.rom[:BankSize], bank0[:])
	return true
}
