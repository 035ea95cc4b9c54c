package cpu

import "github.com/mknezic/go-dotboy/dotboy/bit"

// Register operand encoding shared by the LD/ALU blocks and the CB prefix:
// 0=B 1=C 2=D 3=E 4=H 5=L 6=(HL) 7=A.
const indHL = 6

func (c *CPU) getReg(i uint8) uint8 {
	switch i {
	case 0:
		return c.b
	case 1:
		return c.c
	case 2:
		return c.d
	case 3:
		return c.e
	case 4:
		return c.h
	case 5:
		return c.l
	case indHL:
		return c.bus.Read(c.getHL())
	default:
		return c.a
	}
}

func (c *CPU) setReg(i uint8, value uint8) {
	switch i {
	case 0:
		c.b = value
	case 1:
		c.c = value
	case 2:
		c.d = value
	case 3:
		c.e = value
	case 4:
		c.h = value
	case 5:
		c.l = value
	case indHL:
		c.bus.Write(c.getHL(), value)
	default:
		c.a = value
	}
}

// execute runs one decoded instruction and returns its cycle cost. The cost
// is the documented per-opcode value; conditional branches cost more when
// taken.
func (c *CPU) execute(op uint8) (int, error) {
	// LD r,r' block (0x40-0x7F), with HALT at 0x76.
	if op >= 0x40 && op <= 0x7F {
		if op == 0x76 {
			c.halt()
			return 4, nil
		}
		dst := (op >> 3) & 7
		src := op & 7
		c.setReg(dst, c.getReg(src))
		if src == indHL || dst == indHL {
			return 8, nil
		}
		return 4, nil
	}

	// ALU A,r block (0x80-0xBF).
	if op >= 0x80 && op <= 0xBF {
		src := op & 7
		value := c.getReg(src)
		switch (op >> 3) & 7 {
		case 0:
			c.add(value, false)
		case 1:
			c.add(value, true)
		case 2:
			c.sub(value, false, true)
		case 3:
			c.sub(value, true, true)
		case 4:
			c.and(value)
		case 5:
			c.xor(value)
		case 6:
			c.or(value)
		case 7:
			c.sub(value, false, false) // CP
		}
		if src == indHL {
			return 8, nil
		}
		return 4, nil
	}

	switch op {
	case 0x00: // NOP
		return 4, nil
	case 0x10: // STOP
		c.readImmediate() // padding byte
		return 4, nil

	// 16-bit loads
	case 0x01:
		c.setBC(c.readImmediateWord())
		return 12, nil
	case 0x11:
		c.setDE(c.readImmediateWord())
		return 12, nil
	case 0x21:
		c.setHL(c.readImmediateWord())
		return 12, nil
	case 0x31:
		c.sp = c.readImmediateWord()
		return 12, nil
	case 0x08: // LD (nn),SP
		nn := c.readImmediateWord()
		c.bus.Write(nn, bit.Low(c.sp))
		c.bus.Write(nn+1, bit.High(c.sp))
		return 20, nil
	case 0xF9: // LD SP,HL
		c.sp = c.getHL()
		return 8, nil
	case 0xF8: // LD HL,SP+e
		c.setHL(c.addSigned(c.sp, c.readImmediate()))
		return 12, nil
	case 0xE8: // ADD SP,e
		c.sp = c.addSigned(c.sp, c.readImmediate())
		return 16, nil

	// indirect A loads/stores
	case 0x02:
		c.bus.Write(c.getBC(), c.a)
		return 8, nil
	case 0x12:
		c.bus.Write(c.getDE(), c.a)
		return 8, nil
	case 0x22:
		hl := c.getHL()
		c.bus.Write(hl, c.a)
		c.setHL(hl + 1)
		return 8, nil
	case 0x32:
		hl := c.getHL()
		c.bus.Write(hl, c.a)
		c.setHL(hl - 1)
		return 8, nil
	case 0x0A:
		c.a = c.bus.Read(c.getBC())
		return 8, nil
	case 0x1A:
		c.a = c.bus.Read(c.getDE())
		return 8, nil
	case 0x2A:
		hl := c.getHL()
		c.a = c.bus.Read(hl)
		c.setHL(hl + 1)
		return 8, nil
	case 0x3A:
		hl := c.getHL()
		c.a = c.bus.Read(hl)
		c.setHL(hl - 1)
		return 8, nil
	case 0xE0: // LDH (n),A
		c.bus.Write(0xFF00+uint16(c.readImmediate()), c.a)
		return 12, nil
	case 0xF0: // LDH A,(n)
		c.a = c.bus.Read(0xFF00 + uint16(c.readImmediate()))
		return 12, nil
	case 0xE2: // LD (0xFF00+C),A
		c.bus.Write(0xFF00+uint16(c.c), c.a)
		return 8, nil
	case 0xF2: // LD A,(0xFF00+C)
		c.a = c.bus.Read(0xFF00 + uint16(c.c))
		return 8, nil
	case 0xEA: // LD (nn),A
		c.bus.Write(c.readImmediateWord(), c.a)
		return 16, nil
	case 0xFA: // LD A,(nn)
		c.a = c.bus.Read(c.readImmediateWord())
		return 16, nil

	// 8-bit immediate loads
	case 0x06, 0x0E, 0x16, 0x1E, 0x26, 0x2E, 0x3E:
		c.setReg((op>>3)&7, c.readImmediate())
		return 8, nil
	case 0x36: // LD (HL),n
		c.bus.Write(c.getHL(), c.readImmediate())
		return 12, nil

	// 16-bit inc/dec
	case 0x03:
		c.setBC(c.getBC() + 1)
		return 8, nil
	case 0x13:
		c.setDE(c.getDE() + 1)
		return 8, nil
	case 0x23:
		c.setHL(c.getHL() + 1)
		return 8, nil
	case 0x33:
		c.sp++
		return 8, nil
	case 0x0B:
		c.setBC(c.getBC() - 1)
		return 8, nil
	case 0x1B:
		c.setDE(c.getDE() - 1)
		return 8, nil
	case 0x2B:
		c.setHL(c.getHL() - 1)
		return 8, nil
	case 0x3B:
		c.sp--
		return 8, nil

	// 8-bit inc/dec
	case 0x04, 0x0C, 0x14, 0x1C, 0x24, 0x2C, 0x3C:
		i := (op >> 3) & 7
		c.setReg(i, c.inc(c.getReg(i)))
		return 4, nil
	case 0x34:
		c.bus.Write(c.getHL(), c.inc(c.bus.Read(c.getHL())))
		return 12, nil
	case 0x05, 0x0D, 0x15, 0x1D, 0x25, 0x2D, 0x3D:
		i := (op >> 3) & 7
		c.setReg(i, c.dec(c.getReg(i)))
		return 4, nil
	case 0x35:
		c.bus.Write(c.getHL(), c.dec(c.bus.Read(c.getHL())))
		return 12, nil

	// ADD HL,rr
	case 0x09:
		c.addHL(c.getBC())
		return 8, nil
	case 0x19:
		c.addHL(c.getDE())
		return 8, nil
	case 0x29:
		c.addHL(c.getHL())
		return 8, nil
	case 0x39:
		c.addHL(c.sp)
		return 8, nil

	// accumulator rotates (Z always cleared, unlike the CB forms)
	case 0x07: // RLCA
		c.a = c.rlc(c.a)
		c.setFlag(zeroFlag, false)
		return 4, nil
	case 0x0F: // RRCA
		c.a = c.rrc(c.a)
		c.setFlag(zeroFlag, false)
		return 4, nil
	case 0x17: // RLA
		c.a = c.rl(c.a)
		c.setFlag(zeroFlag, false)
		return 4, nil
	case 0x1F: // RRA
		c.a = c.rr(c.a)
		c.setFlag(zeroFlag, false)
		return 4, nil

	case 0x27: // DAA
		c.daa()
		return 4, nil
	case 0x2F: // CPL
		c.a = ^c.a
		c.setFlag(subFlag, true)
		c.setFlag(halfCarryFlag, true)
		return 4, nil
	case 0x37: // SCF
		c.setFlag(subFlag, false)
		c.setFlag(halfCarryFlag, false)
		c.setFlag(carryFlag, true)
		return 4, nil
	case 0x3F: // CCF
		c.setFlag(subFlag, false)
		c.setFlag(halfCarryFlag, false)
		c.setFlag(carryFlag, !c.isSet(carryFlag))
		return 4, nil

	// relative jumps
	case 0x18:
		return c.jr(true), nil
	case 0x20:
		return c.jr(!c.isSet(zeroFlag)), nil
	case 0x28:
		return c.jr(c.isSet(zeroFlag)), nil
	case 0x30:
		return c.jr(!c.isSet(carryFlag)), nil
	case 0x38:
		return c.jr(c.isSet(carryFlag)), nil

	// absolute jumps
	case 0xC3:
		c.pc = c.readImmediateWord()
		return 16, nil
	case 0xC2:
		return c.jp(!c.isSet(zeroFlag)), nil
	case 0xCA:
		return c.jp(c.isSet(zeroFlag)), nil
	case 0xD2:
		return c.jp(!c.isSet(carryFlag)), nil
	case 0xDA:
		return c.jp(c.isSet(carryFlag)), nil
	case 0xE9: // JP (HL)
		c.pc = c.getHL()
		return 4, nil

	// calls
	case 0xCD:
		nn := c.readImmediateWord()
		c.pushWord(c.pc)
		c.pc = nn
		return 24, nil
	case 0xC4:
		return c.call(!c.isSet(zeroFlag)), nil
	case 0xCC:
		return c.call(c.isSet(zeroFlag)), nil
	case 0xD4:
		return c.call(!c.isSet(carryFlag)), nil
	case 0xDC:
		return c.call(c.isSet(carryFlag)), nil

	// returns
	case 0xC9:
		c.pc = c.popWord()
		return 16, nil
	case 0xD9: // RETI
		c.pc = c.popWord()
		c.ime = true
		return 16, nil
	case 0xC0:
		return c.ret(!c.isSet(zeroFlag)), nil
	case 0xC8:
		return c.ret(c.isSet(zeroFlag)), nil
	case 0xD0:
		return c.ret(!c.isSet(carryFlag)), nil
	case 0xD8:
		return c.ret(c.isSet(carryFlag)), nil

	// restarts
	case 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF:
		c.pushWord(c.pc)
		c.pc = uint16(op & 0x38)
		return 16, nil

	// stack
	case 0xC5:
		c.pushWord(c.getBC())
		return 16, nil
	case 0xD5:
		c.pushWord(c.getDE())
		return 16, nil
	case 0xE5:
		c.pushWord(c.getHL())
		return 16, nil
	case 0xF5:
		c.pushWord(c.getAF())
		return 16, nil
	case 0xC1:
		c.setBC(c.popWord())
		return 12, nil
	case 0xD1:
		c.setDE(c.popWord())
		return 12, nil
	case 0xE1:
		c.setHL(c.popWord())
		return 12, nil
	case 0xF1:
		c.setAF(c.popWord())
		return 12, nil

	// immediate ALU
	case 0xC6:
		c.add(c.readImmediate(), false)
		return 8, nil
	case 0xCE:
		c.add(c.readImmediate(), true)
		return 8, nil
	case 0xD6:
		c.sub(c.readImmediate(), false, true)
		return 8, nil
	case 0xDE:
		c.sub(c.readImmediate(), true, true)
		return 8, nil
	case 0xE6:
		c.and(c.readImmediate())
		return 8, nil
	case 0xEE:
		c.xor(c.readImmediate())
		return 8, nil
	case 0xF6:
		c.or(c.readImmediate())
		return 8, nil
	case 0xFE:
		c.sub(c.readImmediate(), false, false)
		return 8, nil

	// interrupt control
	case 0xF3: // DI
		c.ime = false
		c.eiDelay = 0
		return 4, nil
	case 0xFB: // EI
		if !c.ime && c.eiDelay == 0 {
			c.eiDelay = 2
		}
		return 4, nil

	case 0xCB:
		return c.executeCB(c.readImmediate()), nil

	default:
		// 0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD
		c.pc--
		c.locked = true
		c.lockedOp = op
		return 0, &LockedOpcodeError{Opcode: op, Addr: c.pc}
	}
}

// executeCB runs a CB-prefixed instruction. The encoding is regular:
// bits 7-6 select the group, bits 5-3 the sub-operation or bit index,
// bits 2-0 the register operand.
func (c *CPU) executeCB(op uint8) int {
	reg := op & 7
	n := (op >> 3) & 7
	value := c.getReg(reg)

	switch op >> 6 {
	case 0: // rotates and shifts
		var result uint8
		switch n {
		case 0:
			result = c.rlc(value)
		case 1:
			result = c.rrc(value)
		case 2:
			result = c.rl(value)
		case 3:
			result = c.rr(value)
		case 4:
			result = c.sla(value)
		case 5:
			result = c.sra(value)
		case 6:
			result = c.swap(value)
		case 7:
			result = c.srl(value)
		}
		c.setReg(reg, result)
	case 1: // BIT n,r
		c.setFlag(zeroFlag, !bit.IsSet(n, value))
		c.setFlag(subFlag, false)
		c.setFlag(halfCarryFlag, true)
		if reg == indHL {
			return 12
		}
		return 8
	case 2: // RES n,r
		c.setReg(reg, bit.Clear(n, value))
	case 3: // SET n,r
		c.setReg(reg, bit.Set(n, value))
	}

	if reg == indHL {
		return 16
	}
	return 8
}

func (c *CPU) halt() {
	enabled := c.bus.Read(0xFFFF)
	fired := c.bus.Read(0xFF0F)
	if !c.ime && enabled&fired&0x1F != 0 {
		// HALT with IME off and an interrupt already pending does not halt:
		// the next opcode byte is fetched twice instead.
		c.haltBug = true
		return
	}
	c.halted = true
}

// control-flow helpers; each returns the cycle cost for its outcome

func (c *CPU) jr(taken bool) int {
	offset := int8(c.readImmediate())
	if !taken {
		return 8
	}
	c.pc = uint16(int32(c.pc) + int32(offset))
	return 12
}

func (c *CPU) jp(taken bool) int {
	nn := c.readImmediateWord()
	if !taken {
		return 12
	}
	c.pc = nn
	return 16
}

func (c *CPU) call(taken bool) int {
	nn := c.readImmediateWord()
	if !taken {
		return 12
	}
	c.pushWord(c.pc)
	c.pc = nn
	return 24
}

func (c *CPU) ret(taken bool) int {
	if !taken {
		return 8
	}
	c.pc = c.popWord()
	return 20
}

// ALU helpers

func (c *CPU) add(value uint8, withCarry bool) {
	carry := uint8(0)
	if withCarry && c.isSet(carryFlag) {
		carry = 1
	}
	result := uint16(c.a) + uint16(value) + uint16(carry)
	halfCarry := (c.a&0xF)+(value&0xF)+carry > 0xF

	c.setFlag(zeroFlag, uint8(result) == 0)
	c.setFlag(subFlag, false)
	c.setFlag(halfCarryFlag, halfCarry)
	c.setFlag(carryFlag, result > 0xFF)
	c.a = uint8(result)
}

// sub implements SUB/SBC/CP: store=false leaves A untouched (CP).
func (c *CPU) sub(value uint8, withCarry, store bool) {
	carry := uint8(0)
	if withCarry && c.isSet(carryFlag) {
		carry = 1
	}
	result := int16(c.a) - int16(value) - int16(carry)
	halfBorrow := int16(c.a&0xF)-int16(value&0xF)-int16(carry) < 0

	c.setFlag(zeroFlag, uint8(result) == 0)
	c.setFlag(subFlag, true)
	c.setFlag(halfCarryFlag, halfBorrow)
	c.setFlag(carryFlag, result < 0)
	if store {
		c.a = uint8(result)
	}
}

func (c *CPU) and(value uint8) {
	c.a &= value
	c.setFlag(zeroFlag, c.a == 0)
	c.setFlag(subFlag, false)
	c.setFlag(halfCarryFlag, true)
	c.setFlag(carryFlag, false)
}

func (c *CPU) or(value uint8) {
	c.a |= value
	c.setFlag(zeroFlag, c.a == 0)
	c.setFlag(subFlag, false)
	c.setFlag(halfCarryFlag, false)
	c.setFlag(carryFlag, false)
}

func (c *CPU) xor(value uint8) {
	c.a ^= value
	c.setFlag(zeroFlag, c.a == 0)
	c.setFlag(subFlag, false)
	c.setFlag(halfCarryFlag, false)
	c.setFlag(carryFlag, false)
}

func (c *CPU) inc(value uint8) uint8 {
	result := value + 1
	c.setFlag(zeroFlag, result == 0)
	c.setFlag(subFlag, false)
	c.setFlag(halfCarryFlag, value&0xF == 0xF)
	return result
}

func (c *CPU) dec(value uint8) uint8 {
	result := value - 1
	c.setFlag(zeroFlag, result == 0)
	c.setFlag(subFlag, true)
	c.setFlag(halfCarryFlag, value&0xF == 0)
	return result
}

func (c *CPU) addHL(value uint16) {
	hl := c.getHL()
	result := uint32(hl) + uint32(value)
	c.setFlag(subFlag, false)
	c.setFlag(halfCarryFlag, (hl&0xFFF)+(value&0xFFF) > 0xFFF)
	c.setFlag(carryFlag, result > 0xFFFF)
	c.setHL(uint16(result))
}

// addSigned adds a signed immediate to a 16-bit value with the 8-bit
// carry/half-carry semantics shared by ADD SP,e and LD HL,SP+e.
func (c *CPU) addSigned(base uint16, raw uint8) uint16 {
	offset := int8(raw)
	c.setFlag(zeroFlag, false)
	c.setFlag(subFlag, false)
	c.setFlag(halfCarryFlag, (base&0xF)+(uint16(raw)&0xF) > 0xF)
	c.setFlag(carryFlag, (base&0xFF)+uint16(raw) > 0xFF)
	return uint16(int32(base) + int32(offset))
}

func (c *CPU) daa() {
	a := c.a
	adjust := uint8(0)
	carry := c.isSet(carryFlag)

	if c.isSet(halfCarryFlag) || (!c.isSet(subFlag) && a&0xF > 0x09) {
		adjust |= 0x06
	}
	if carry || (!c.isSet(subFlag) && a > 0x99) {
		adjust |= 0x60
		carry = true
	}
	if c.isSet(subFlag) {
		a -= adjust
	} else {
		a += adjust
	}

	c.a = a
	c.setFlag(zeroFlag, a == 0)
	c.setFlag(halfCarryFlag, false)
	c.setFlag(carryFlag, carry)
}

// rotate/shift helpers; all set Z from the result (the accumulator forms
// clear it afterwards)

func (c *CPU) rlc(value uint8) uint8 {
	result := value<<1 | value>>7
	c.rotateFlags(result, value&0x80 != 0)
	return result
}

func (c *CPU) rrc(value uint8) uint8 {
	result := value>>1 | value<<7
	c.rotateFlags(result, value&1 != 0)
	return result
}

func (c *CPU) rl(value uint8) uint8 {
	result := value<<1 | c.carryBit()
	c.rotateFlags(result, value&0x80 != 0)
	return result
}

func (c *CPU) rr(value uint8) uint8 {
	result := value>>1 | c.carryBit()<<7
	c.rotateFlags(result, value&1 != 0)
	return result
}

func (c *CPU) sla(value uint8) uint8 {
	result := value << 1
	c.rotateFlags(result, value&0x80 != 0)
	return result
}

func (c *CPU) sra(value uint8) uint8 {
	result := value>>1 | value&0x80
	c.rotateFlags(result, value&1 != 0)
	return result
}

func (c *CPU) srl(value uint8) uint8 {
	result := value >> 1
	c.rotateFlags(result, value&1 != 0)
	return result
}

func (c *CPU) swap(value uint8) uint8 {
	result := value<<4 | value>>4
	c.rotateFlags(result, false)
	return result
}

func (c *CPU) rotateFlags(result uint8, carry bool) {
	c.setFlag(zeroFlag, result == 0)
	c.setFlag(subFlag, false)
	c.setFlag(halfCarryFlag, false)
	c.setFlag(carryFlag, carry)
}
