package cpu

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/koron-go/z80"
)

// refMemory is a 64k memory implementing the reference emulator's
// interface alongside our own Bus.
type refMemory struct {
	buf [65536]uint8
}

func (m *refMemory) Get(addr uint16) uint8 {
	return m.buf[addr]
}

func (m *refMemory) Set(addr uint16, value uint8) {
	m.buf[addr] = value
}

func (m *refMemory) Fetch(addr uint16, instruction bool) uint8 {
	return m.buf[addr]
}

func (m *refMemory) Store(addr uint16, value uint8) {
	m.buf[addr] = value
}

// refPorts answers a constant for IN and swallows OUT, for both
// emulators.
type refPorts struct{}

func (refPorts) In(port uint8) uint8 {
	return 0xA5
}

func (refPorts) Out(port uint8, value uint8) {
}

// template is one well-formed instruction; the byte positions listed in
// fill are replaced with fuzzed values.
type template struct {
	bytes []uint8
	fill  []int
}

// buildTemplates enumerates the instruction pool for the property test:
// the flag-setting ALU core of the instruction set.
//
// BIT n,(HL) is excluded: its undoc bits are specified from the operand
// here, while bus-accurate emulators derive them from an internal
// address latch.  SCF/CCF are excluded for the same class of reason.
func buildTemplates() []template {
	var out []template

	add := func(fill []int, bytes ...uint8) {
		out = append(out, template{bytes: bytes, fill: fill})
	}

	// ALU A,r and ALU A,n.
	for op := uint8(0); op < 8; op++ {
		for r := uint8(0); r < 8; r++ {
			add(nil, 0x80|op<<3|r)
		}
		add([]int{1}, 0xC6|op<<3, 0x00)
	}

	// INC r / DEC r.
	for r := uint8(0); r < 8; r++ {
		add(nil, 0x04|r<<3)
		add(nil, 0x05|r<<3)
	}

	// LD r,n and LD r,r'.
	for r := uint8(0); r < 8; r++ {
		add([]int{1}, 0x06|r<<3, 0x00)
		for s := uint8(0); s < 8; s++ {
			op := 0x40 | r<<3 | s
			if op != 0x76 {
				add(nil, op)
			}
		}
	}

	// Accumulator rotates, CPL, DAA.
	add(nil, 0x07)
	add(nil, 0x0F)
	add(nil, 0x17)
	add(nil, 0x1F)
	add(nil, 0x2F)
	add(nil, 0x27)

	// CB rotates/shifts (including SLL), SET and RES; BIT only on
	// plain registers.
	for op := 0; op < 256; op++ {
		if op >= 0x40 && op < 0x80 && op&7 == 6 {
			continue
		}
		add(nil, 0xCB, uint8(op))
	}

	// 16-bit arithmetic.
	add(nil, 0x09)
	add(nil, 0x19)
	add(nil, 0x29)
	add(nil, 0x39)
	for _, op := range []uint8{0x42, 0x52, 0x62, 0x72, 0x4A, 0x5A, 0x6A, 0x7A, 0x44} {
		add(nil, 0xED, op)
	}

	return out
}

// TestFlagsAgainstReference executes a large fuzzed instruction sample
// on our interpreter and on the reference Z80 core the project depends
// on, and requires every flag bit - including Y and X - to agree.
func TestFlagsAgainstReference(t *testing.T) {

	templates := buildTemplates()
	rng := rand.New(rand.NewSource(0x5EED))

	const start = uint16(0x0100)
	var scratch = uint16(0x6000)

	for i := 0; i < 10000; i++ {

		tpl := templates[rng.Intn(len(templates))]

		// Fuzzed register file; HL points at scratch memory so (HL)
		// operands are well-defined.
		a := uint8(rng.Intn(256))
		f := uint8(rng.Intn(256))
		bc := uint16(rng.Intn(65536))
		de := uint16(rng.Intn(65536))
		memByte := uint8(rng.Intn(256))

		code := make([]uint8, len(tpl.bytes))
		copy(code, tpl.bytes)
		for _, idx := range tpl.fill {
			code[idx] = uint8(rng.Intn(256))
		}

		// Ours.
		mine := &refMemory{}
		copy(mine.buf[start:], code)
		mine.buf[scratch] = memByte

		c := New(mine, refPorts{})
		c.PC = start
		c.SP = 0xF000
		c.A = a
		c.F = Flags(f)
		c.BC.SetU16(bc)
		c.DE.SetU16(de)
		c.HL.SetU16(scratch)
		c.Execute()

		// Reference.
		theirs := &refMemory{}
		copy(theirs.buf[start:], code)
		theirs.buf[scratch] = memByte

		ref := z80.CPU{
			States: z80.States{
				SPR: z80.SPR{PC: start, SP: 0xF000},
			},
			Memory: theirs,
			IO:     refPorts{},
		}
		ref.States.AF.Hi = a
		ref.States.AF.Lo = f
		ref.States.BC.Hi = uint8(bc >> 8)
		ref.States.BC.Lo = uint8(bc)
		ref.States.DE.Hi = uint8(de >> 8)
		ref.States.DE.Lo = uint8(de)
		ref.States.HL.Hi = uint8(scratch >> 8)
		ref.States.HL.Lo = uint8(scratch)
		ref.BreakPoints = map[uint16]struct{}{
			start + uint16(len(code)): {},
		}

		err := ref.Run(context.Background())
		if err != nil && !errors.Is(err, z80.ErrBreakPoint) {
			t.Fatalf("reference CPU failed on % X: %s", code, err)
		}

		if c.A != ref.States.AF.Hi || uint8(c.F) != ref.States.AF.Lo {
			t.Fatalf("AF mismatch on % X (A=%02X F=%02X): got %02X/%08b want %02X/%08b",
				code, a, f, c.A, c.F, ref.States.AF.Hi, ref.States.AF.Lo)
		}
		if c.BC.Hi != ref.States.BC.Hi || c.BC.Lo != ref.States.BC.Lo {
			t.Fatalf("BC mismatch on % X", code)
		}
		if c.DE.Hi != ref.States.DE.Hi || c.DE.Lo != ref.States.DE.Lo {
			t.Fatalf("DE mismatch on % X", code)
		}
		if c.HL.Hi != ref.States.HL.Hi || c.HL.Lo != ref.States.HL.Lo {
			t.Fatalf("HL mismatch on % X", code)
		}
		if mine.buf[scratch] != theirs.buf[scratch] {
			t.Fatalf("memory mismatch on % X", code)
		}
	}
}
