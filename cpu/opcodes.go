// Base-table instruction decode and the shared ALU building blocks.

package cpu

// alu performs one of the eight accumulator operations
// (ADD ADC SUB SBC AND XOR OR CP, in opcode order) with full flag
// updates.
func (c *CPU) alu(op uint8, val uint8) {
	switch op {
	case 0: // ADD
		r := c.A + val
		c.F.updateFromAddByte(c.A, val, r)
		c.A = r
	case 1: // ADC
		carry := uint8(0)
		if c.F.c() {
			carry = 1
		}
		r := c.A + val + carry
		c.F.updateFromAddByte(c.A, val, r)
		c.A = r
	case 2: // SUB
		r := c.A - val
		c.F.updateFromSubByte(c.A, val, r)
		c.A = r
	case 3: // SBC
		carry := uint8(0)
		if c.F.c() {
			carry = 1
		}
		r := c.A - val - carry
		c.F.updateFromSubByte(c.A, val, r)
		c.A = r
	case 4: // AND
		c.A &= val
		c.F.updateFromLogicByte(c.A, true)
	case 5: // XOR
		c.A ^= val
		c.F.updateFromLogicByte(c.A, false)
	case 6: // OR
		c.A |= val
		c.F.updateFromLogicByte(c.A, false)
	case 7: // CP
		r := c.A - val
		c.F.updateFromCpByte(c.A, val, r)
	}
}

// incByte is the 8-bit INC building block.
func (c *CPU) incByte(v uint8) uint8 {
	r := v + 1
	c.F.updateFromIncByte(r)
	return r
}

// decByte is the 8-bit DEC building block.
func (c *CPU) decByte(v uint8) uint8 {
	r := v - 1
	c.F.updateFromDecByte(r)
	return r
}

// daa applies the BCD adjustment, honouring H and N so both the
// ADD-family and SUB-family produce correct results.
func (c *CPU) daa() {
	a := c.A
	lo := a & 0x0F

	var diff uint8
	if c.F.c() || a > 0x99 {
		diff |= 0x60
	}
	if c.F.h() || lo > 9 {
		diff |= 0x06
	}

	newC := c.F.c() || a > 0x99
	newH := (!c.F.n() && lo > 9) || (c.F.n() && c.F.h() && lo < 6)

	if c.F.n() {
		c.A = a - diff
	} else {
		c.A = a + diff
	}

	c.F.updateFromByte(c.A)
	c.F.setH(newH)
	c.F.setC(newC)
}

// executeMain decodes and runs a non-prefixed opcode (also reached with
// an index prefix active, in which case HL-relative operands resolve to
// IX/IY).
func (c *CPU) executeMain(opcode uint8) {

	// LD r,r' block (0x40-0x7F except HALT).
	if opcode >= 0x40 && opcode < 0x80 {
		if opcode == 0x76 {
			c.Halted = true
			return
		}
		dst := (opcode >> 3) & 7
		src := opcode & 7

		// When one side is (HL) under an index prefix, H and L on the
		// other side stay plain.
		plain := dst == 6 || src == 6
		c.setR(dst, c.getR(src, plain), plain)
		return
	}

	// ALU block (0x80-0xBF).
	if opcode >= 0x80 && opcode < 0xC0 {
		c.alu((opcode>>3)&7, c.getR(opcode&7, false))
		return
	}

	switch opcode {

	case 0x00: // NOP

	case 0x01, 0x11, 0x21, 0x31: // LD rr,nn
		c.setRR((opcode>>4)&3, c.fetchPCWord())

	case 0x02: // LD (BC),A
		c.Mem.Store(c.BC.U16(), c.A)
	case 0x12: // LD (DE),A
		c.Mem.Store(c.DE.U16(), c.A)
	case 0x0A: // LD A,(BC)
		c.A = c.Mem.Fetch(c.BC.U16(), false)
	case 0x1A: // LD A,(DE)
		c.A = c.Mem.Fetch(c.DE.U16(), false)

	case 0x22: // LD (nn),HL
		c.writeWord(c.fetchPCWord(), c.indexReg())
	case 0x2A: // LD HL,(nn)
		c.setIndexReg(c.readWord(c.fetchPCWord()))
	case 0x32: // LD (nn),A
		c.Mem.Store(c.fetchPCWord(), c.A)
	case 0x3A: // LD A,(nn)
		c.A = c.Mem.Fetch(c.fetchPCWord(), false)

	case 0x03, 0x13, 0x23, 0x33: // INC rr
		i := (opcode >> 4) & 3
		c.setRR(i, c.getRR(i)+1)
	case 0x0B, 0x1B, 0x2B, 0x3B: // DEC rr
		i := (opcode >> 4) & 3
		c.setRR(i, c.getRR(i)-1)

	case 0x04, 0x0C, 0x14, 0x1C, 0x24, 0x2C, 0x34, 0x3C: // INC r
		i := (opcode >> 3) & 7
		c.setR(i, c.incByte(c.getR(i, false)), false)
	case 0x05, 0x0D, 0x15, 0x1D, 0x25, 0x2D, 0x35, 0x3D: // DEC r
		i := (opcode >> 3) & 7
		c.setR(i, c.decByte(c.getR(i, false)), false)

	case 0x06, 0x0E, 0x16, 0x1E, 0x26, 0x2E, 0x36, 0x3E: // LD r,n
		i := (opcode >> 3) & 7
		if i == 6 {
			// LD (IX+d),n fetches the displacement before the
			// immediate, so resolve the address first.
			addr := c.memAddr()
			c.Mem.Store(addr, c.fetchPC())
			return
		}
		c.setR(i, c.fetchPC(), false)

	case 0x07: // RLCA
		carry := c.A >> 7
		c.A = (c.A << 1) | carry
		c.F.setC(carry != 0)
		c.F.setH(false)
		c.F.setN(false)
		c.F.setUndoc(c.A)
	case 0x0F: // RRCA
		carry := c.A & 1
		c.A = (c.A >> 1) | (carry << 7)
		c.F.setC(carry != 0)
		c.F.setH(false)
		c.F.setN(false)
		c.F.setUndoc(c.A)
	case 0x17: // RLA
		carry := c.A >> 7
		c.A <<= 1
		if c.F.c() {
			c.A |= 1
		}
		c.F.setC(carry != 0)
		c.F.setH(false)
		c.F.setN(false)
		c.F.setUndoc(c.A)
	case 0x1F: // RRA
		carry := c.A & 1
		c.A >>= 1
		if c.F.c() {
			c.A |= 0x80
		}
		c.F.setC(carry != 0)
		c.F.setH(false)
		c.F.setN(false)
		c.F.setUndoc(c.A)

	case 0x08: // EX AF,AF'
		c.A, c.A2 = c.A2, c.A
		c.F, c.F2 = c.F2, c.F

	case 0x09, 0x19, 0x29, 0x39: // ADD HL,rr
		v1 := c.indexReg()
		v2 := c.getRR((opcode >> 4) & 3)
		r := v1 + v2
		c.F.updateFromAddWord(v1, v2, r)
		c.setIndexReg(r)

	case 0x10: // DJNZ d
		d := int8(c.fetchPC())
		c.BC.Hi--
		if c.BC.Hi != 0 {
			c.PC += uint16(int16(d))
		}

	case 0x18: // JR d
		d := int8(c.fetchPC())
		c.PC += uint16(int16(d))
	case 0x20, 0x28, 0x30, 0x38: // JR cc,d
		d := int8(c.fetchPC())
		if c.condition((opcode >> 3) & 3) {
			c.PC += uint16(int16(d))
		}

	case 0x27: // DAA
		c.daa()
	case 0x2F: // CPL
		c.A = ^c.A
		c.F.setH(true)
		c.F.setN(true)
		c.F.setUndoc(c.A)
	case 0x37: // SCF
		c.F.setC(true)
		c.F.setH(false)
		c.F.setN(false)
		c.F.setUndoc(c.A)
	case 0x3F: // CCF
		c.F.setH(c.F.c())
		c.F.setC(!c.F.c())
		c.F.setN(false)
		c.F.setUndoc(c.A)

	case 0xC9: // RET
		c.PC = c.pop()
	case 0xC0, 0xC8, 0xD0, 0xD8, 0xE0, 0xE8, 0xF0, 0xF8: // RET cc
		if c.condition((opcode >> 3) & 7) {
			c.PC = c.pop()
		}

	case 0xC1, 0xD1, 0xE1: // POP rr
		c.setRR((opcode>>4)&3, c.pop())
	case 0xF1: // POP AF
		v := c.pop()
		c.A = uint8(v >> 8)
		c.F = Flags(v)

	case 0xC5, 0xD5, 0xE5: // PUSH rr
		c.push(c.getRR((opcode >> 4) & 3))
	case 0xF5: // PUSH AF
		c.push((uint16(c.A) << 8) | uint16(c.F))

	case 0xC3: // JP nn
		c.PC = c.fetchPCWord()
	case 0xC2, 0xCA, 0xD2, 0xDA, 0xE2, 0xEA, 0xF2, 0xFA: // JP cc,nn
		addr := c.fetchPCWord()
		if c.condition((opcode >> 3) & 7) {
			c.PC = addr
		}

	case 0xCD: // CALL nn
		addr := c.fetchPCWord()
		c.push(c.PC)
		c.PC = addr
	case 0xC4, 0xCC, 0xD4, 0xDC, 0xE4, 0xEC, 0xF4, 0xFC: // CALL cc,nn
		addr := c.fetchPCWord()
		if c.condition((opcode >> 3) & 7) {
			c.push(c.PC)
			c.PC = addr
		}

	case 0xC6, 0xCE, 0xD6, 0xDE, 0xE6, 0xEE, 0xF6, 0xFE: // ALU A,n
		c.alu((opcode>>3)&7, c.fetchPC())

	case 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF: // RST
		c.push(c.PC)
		c.PC = uint16(opcode & 0x38)

	case 0xD3: // OUT (n),A
		c.Ports.Out(c.fetchPC(), c.A)
	case 0xDB: // IN A,(n)
		c.A = c.Ports.In(c.fetchPC())

	case 0xD9: // EXX
		c.BC, c.BC2 = c.BC2, c.BC
		c.DE, c.DE2 = c.DE2, c.DE
		c.HL, c.HL2 = c.HL2, c.HL

	case 0xE3: // EX (SP),HL
		v := c.readWord(c.SP)
		c.writeWord(c.SP, c.indexReg())
		c.setIndexReg(v)

	case 0xE9: // JP (HL)
		c.PC = c.indexReg()

	case 0xEB: // EX DE,HL - the index prefix is ignored here.
		c.DE, c.HL = c.HL, c.DE

	case 0xF3: // DI
		c.IFF1 = false
		c.IFF2 = false
	case 0xFB: // EI
		c.IFF1 = true
		c.IFF2 = true

	case 0xF9: // LD SP,HL
		c.SP = c.indexReg()

	default:
		c.unimplemented(opcode, c.PC-1)
	}
}
