package x86

const (
	opPushEAX = 0x50
	opPopEAX  = 0x58
	opPopEDX  = 0x5a
	opMovEAX  = 0xb8
	opPushImm = 0x68
)

func (a *Assembler) prior8(back int) byte {
	return a.buf.Byte(a.buf.Cursor() - back)
}

func (a *Assembler) prior32(back int) int32 {
	return int32(a.buf.Uint32At(a.buf.Cursor() - back))
}

// peephole runs after every encoded instruction. It repeatedly rewrites
// the trailing bytes of the emitted stream until no rule fires. Bytes
// below the fence have had their offsets observed (label bindings,
// displacement fields) and are never inspected or moved.
//
// Replacements are re-emitted through the regular encoder entry points,
// so a rewrite can cascade into another; every rule strictly shrinks the
// trailing window or produces a non-trigger, which bounds the loop.
func (a *Assembler) peephole() {
	for {
		space := a.buf.Cursor() - a.fence

		// [ push eax | pop eax ] => []
		if space >= 2 {
			if a.prior8(2) == opPushEAX && a.prior8(1) == opPopEAX {
				a.buf.Truncate(a.buf.Cursor() - 2)
				continue
			}
		}

		// [ mov eax, imm32 | push eax ] => [ push imm32 ]
		if space >= 6 {
			if a.prior8(6) == opMovEAX && a.prior8(1) == opPushEAX {
				imm := a.prior32(5)
				a.buf.Truncate(a.buf.Cursor() - 6)
				a.CompileConstToNone(PUSHL, imm)
				continue
			}
		}

		// [ push imm32 | pop eax ] => [ mov eax, imm32 ]
		if space >= 6 {
			if a.prior8(6) == opPushImm && a.prior8(1) == opPopEAX {
				imm := a.prior32(5)
				a.buf.Truncate(a.buf.Cursor() - 6)
				a.CompileConstToRegister(MOVL, imm, RegAX)
				continue
			}
		}

		// [ mov eax, imm32 | pop edx | cmp edx, eax ] => [ pop edx | cmp edx, imm32 ]
		if space >= 8 {
			if a.prior8(8) == opMovEAX && a.prior8(3) == opPopEDX &&
				a.prior8(2) == 0x39 && a.prior8(1) == 0xc2 {
				imm := a.prior32(7)
				a.buf.Truncate(a.buf.Cursor() - 8)
				a.CompileRegisterToNone(POPL, RegDX)
				a.CompileConstToRegister(CMPL, imm, RegDX)
				continue
			}
		}

		// [ push eax | pop edx ] => [ mov edx, eax ]
		if space >= 2 {
			if a.prior8(2) == opPushEAX && a.prior8(1) == opPopEDX {
				a.buf.Truncate(a.buf.Cursor() - 2)
				a.CompileRegisterToRegister(MOVL, RegAX, RegDX)
				continue
			}
		}

		// [ mov edx, eax | cmp edx, imm32 ] => [ cmp eax, imm32 ]
		if space >= 8 {
			if a.prior8(8) == 0x89 && a.prior8(7) == 0xc2 &&
				a.prior8(6) == 0x81 && a.prior8(5) == 0xfa {
				imm := a.prior32(4)
				a.buf.Truncate(a.buf.Cursor() - 8)
				a.CompileConstToRegister(CMPL, imm, RegAX)
				continue
			}
		}

		// [ mov eax, imm32 | sub [esp], eax ] => [ sub [esp], imm32 ]
		if space >= 9 {
			if a.prior8(9) == opMovEAX && a.prior8(4) == 0x29 &&
				a.prior8(3) == 0x44 && a.prior8(2) == 0x24 && a.prior8(1) == 0x00 {
				imm := a.prior32(8)
				a.buf.Truncate(a.buf.Cursor() - 9)
				// sub dword [esp], imm32
				a.buf.Write([]byte{0x81, 0x2c, 0x24})
				a.buf.WriteUint32(uint32(imm))
				continue
			}
		}

		break
	}
}
