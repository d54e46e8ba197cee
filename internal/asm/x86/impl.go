package x86

import (
	"fmt"

	"github.com/stackjit/stackjit/internal/asm"
)

// Calling conventions targeted by this encoder:
//
//	Name                  cdecl
//	Arg order             right to left, on the stack
//	Caller saved          eax ecx edx
//	Callee saved          ebx esp ebp esi edi
//	Cleanup               caller
//	Return value          eax

const (
	// modRMSIBCode is the r/m value selecting SIB-form addressing.
	modRMSIBCode = 4
	// modRMDisp32Code is the r/m value selecting absolute disp32
	// addressing when mod is 0.
	modRMDisp32Code = 5
)

// Label is a bound byte offset into the code buffer, or NoLabel when the
// destination is not yet known.
type Label int

// NoLabel marks a branch whose destination will be set later via
// SetTarget8 or SetTarget32.
const NoLabel Label = -1

// Rel8 references the 8-bit displacement field of an emitted branch.
type Rel8 int

// Rel32 references the 32-bit displacement field of an emitted branch or
// call.
type Rel32 int

// Assembler encodes 32-bit x86 instructions directly into a bounded
// buffer. Each emit is final (modulo the trailing peephole window): there
// is no deferred node list, and branch displacements to not-yet-emitted
// code are completed by the caller through the returned Rel8/Rel32
// references.
type Assembler struct {
	buf *asm.Buffer
	// fence is the floor offset for the peephole rewriter. Bytes below it
	// have had their offsets observed (label bindings, displacement
	// fields) and must not move.
	fence int
}

// NewAssembler constructs an Assembler emitting into buf.
func NewAssembler(buf *asm.Buffer) *Assembler {
	return &Assembler{buf: buf}
}

// Buffer returns the underlying byte sink.
func (a *Assembler) Buffer() *asm.Buffer {
	return a.buf
}

// Cursor returns the current emit offset.
func (a *Assembler) Cursor() int {
	return a.buf.Cursor()
}

// CaptureLabel returns the current emit offset as a bound Label.
func (a *Assembler) CaptureLabel() Label {
	return Label(a.buf.Cursor())
}

// PeepFence advances the peephole fence to the current cursor. Branch
// targets must not be rewritten across, so the code generator calls this
// whenever it binds a label; branch and call emits advance the fence
// themselves.
func (a *Assembler) PeepFence() {
	a.fence = a.buf.Cursor()
}

// modRM writes a single ModR/M byte.
func (a *Assembler) modRM(mod, reg, rm byte) {
	a.buf.WriteByte(mod<<6 | reg<<3 | rm)
}

func scaleField(scale byte) byte {
	switch scale {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		panic(fmt.Sprintf("BUG: invalid SIB scale %d", scale))
	}
}

func fitsInt8(v int32) bool {
	return v >= -128 && v <= 127
}

// memOperand writes the ModR/M byte, optional SIB byte and optional
// displacement for a memory operand, with reg in the ModR/M reg field.
//
//	base==RegNone, index==RegNone  ->  absolute [disp32]
//	base==RegSP or index present   ->  SIB form
//	otherwise                      ->  [base] or [base+disp32]
//
// index==RegNone (encoded as ESP, which can never be a real index) means
// no index register.
func (a *Assembler) memOperand(reg byte, base Register, disp int32, index Register, scale byte) {
	if index == RegNone && base == RegNone {
		// mod=00 rm=101: absolute 32-bit displacement.
		a.modRM(0, reg, modRMDisp32Code)
		a.buf.WriteUint32(uint32(disp))
		return
	}

	if index != RegNone || base == RegSP {
		// SIB form. ESP as base requires it even without an index.
		if index == RegSP {
			panic("BUG: ESP cannot be a SIB index")
		}
		if base == RegNone {
			panic("BUG: SIB index without a base register")
		}
		var mod byte
		switch {
		case disp == 0 && base != RegBP:
			mod = 0
		case fitsInt8(disp):
			mod = 1
		default:
			mod = 2
		}
		if base == RegSP && mod == 0 {
			// Keep the disp8 form for [esp]: the peephole rewriter
			// recognizes the 4-byte "op r, [esp+0]" shape.
			mod = 1
		}
		idx := byte(modRMSIBCode) // no index
		if index != RegNone {
			idx = byte(index)
		}
		a.modRM(mod, reg, modRMSIBCode)
		a.buf.WriteByte(scaleField(scale)<<6 | idx<<3 | byte(base))
		switch mod {
		case 1:
			a.buf.WriteByte(byte(disp))
		case 2:
			a.buf.WriteUint32(uint32(disp))
		}
		return
	}

	if disp == 0 && base != RegBP {
		a.modRM(0, reg, byte(base))
	} else {
		a.modRM(2, reg, byte(base))
		a.buf.WriteUint32(uint32(disp))
	}
}

func errorEncodingUnsupported(inst Instruction, form string) string {
	return fmt.Sprintf("BUG: %s is unsupported for %s operands", InstructionName(inst), form)
}

// CompileStandAlone encodes an instruction taking no operands.
func (a *Assembler) CompileStandAlone(inst Instruction) {
	switch inst {
	case RET:
		// https://www.felixcloutier.com/x86/ret
		a.buf.WriteByte(0xc3)
	case NOP:
		a.buf.WriteByte(0x90)
	case INT3:
		a.buf.WriteByte(0xcc)
	case PUSHA:
		a.buf.WriteByte(0x60)
	case POPA:
		a.buf.WriteByte(0x61)
	case CBW:
		// https://www.felixcloutier.com/x86/cbw:cwde:cdqe
		a.buf.WriteUint16(0x9866)
	case CWD:
		// https://www.felixcloutier.com/x86/cwd:cdq:cqo
		a.buf.WriteUint16(0x9966)
	case CDQ:
		a.buf.WriteByte(0x99)
	default:
		panic(errorEncodingUnsupported(inst, "no"))
	}
	a.peephole()
}

// aluOpcodes holds the opcode bytes of the classic ALU group, whose
// encodings differ only in the base opcode and the /digit extension.
//
//	regToRM: op r/m32, r32     rmToReg: op r32, r/m32
//	eaxImm:  short form op eax, imm32
//	ext:     /digit for the 0x81 op r/m32, imm32 group
type aluOpcode struct {
	regToRM byte
	rmToReg byte
	eaxImm  byte
	ext     byte
}

var aluOpcodes = map[Instruction]aluOpcode{
	// https://www.felixcloutier.com/x86/add
	ADDL: {regToRM: 0x01, rmToReg: 0x03, eaxImm: 0x05, ext: 0},
	// https://www.felixcloutier.com/x86/or
	ORL: {regToRM: 0x09, rmToReg: 0x0b, eaxImm: 0x0d, ext: 1},
	// https://www.felixcloutier.com/x86/adc
	ADCL: {regToRM: 0x11, rmToReg: 0x13, eaxImm: 0x15, ext: 2},
	// https://www.felixcloutier.com/x86/sbb
	SBBL: {regToRM: 0x19, rmToReg: 0x1b, eaxImm: 0x1d, ext: 3},
	// https://www.felixcloutier.com/x86/and
	ANDL: {regToRM: 0x21, rmToReg: 0x23, eaxImm: 0x25, ext: 4},
	// https://www.felixcloutier.com/x86/sub
	SUBL: {regToRM: 0x29, rmToReg: 0x2b, eaxImm: 0x2d, ext: 5},
	// https://www.felixcloutier.com/x86/xor
	XORL: {regToRM: 0x31, rmToReg: 0x33, eaxImm: 0x35, ext: 6},
	// https://www.felixcloutier.com/x86/cmp
	CMPL: {regToRM: 0x39, rmToReg: 0x3b, eaxImm: 0x3d, ext: 7},
}

// shiftExtensions maps the shift and rotate group to the /digit of the
// 0xC1 (imm8), 0xD1 (by one) and 0xD3 (by CL) opcodes.
// https://www.felixcloutier.com/x86/sal:sar:shl:shr
// https://www.felixcloutier.com/x86/rcl:rcr:rol:ror
var shiftExtensions = map[Instruction]byte{
	ROLL: 0,
	RORL: 1,
	RCRL: 3,
	SHLL: 4,
	SHRL: 5,
	SARL: 7,
}

// CompileRegisterToRegister encodes an instruction whose source and
// destination operands are both registers. For the shift and rotate
// group the source must be CX, selecting the shift-by-CL form.
func (a *Assembler) CompileRegisterToRegister(inst Instruction, src, dst Register) {
	switch inst {
	case MOVL:
		// https://www.felixcloutier.com/x86/mov
		a.buf.WriteByte(0x89)
		a.modRM(3, byte(src), byte(dst))
	case ADDL, ORL, ADCL, SBBL, ANDL, SUBL, XORL, CMPL:
		a.buf.WriteByte(aluOpcodes[inst].regToRM)
		a.modRM(3, byte(src), byte(dst))
	case TESTL:
		// https://www.felixcloutier.com/x86/test
		a.buf.WriteByte(0x85)
		a.modRM(3, byte(src), byte(dst))
	case IMULL:
		// https://www.felixcloutier.com/x86/imul
		a.buf.WriteUint16(0xaf0f)
		a.modRM(3, byte(dst), byte(src))
	case MOVBLSX:
		// https://www.felixcloutier.com/x86/movsx:movsxd
		a.buf.WriteUint16(0xbe0f)
		a.modRM(3, byte(dst), byte(src))
	case MOVWLSX:
		a.buf.WriteUint16(0xbf0f)
		a.modRM(3, byte(dst), byte(src))
	case MOVBLZX:
		// https://www.felixcloutier.com/x86/movzx
		a.buf.WriteUint16(0xb60f)
		a.modRM(3, byte(dst), byte(src))
	case MOVWLZX:
		a.buf.WriteUint16(0xb70f)
		a.modRM(3, byte(dst), byte(src))
	case SHLL, SHRL, SARL, ROLL, RORL, RCRL:
		// Shift by CL. https://www.felixcloutier.com/x86/sal:sar:shl:shr
		if src != RegCX {
			panic("BUG: shift count register must be CL")
		}
		a.buf.WriteByte(0xd3)
		a.modRM(3, shiftExtensions[inst], byte(dst))
	default:
		panic(errorEncodingUnsupported(inst, "register to register"))
	}
	a.peephole()
}

// CompileConstToRegister encodes an instruction with an immediate source
// and a register destination. Shifts and rotates take the count as the
// immediate; BTL takes the bit index.
func (a *Assembler) CompileConstToRegister(inst Instruction, value int32, dst Register) {
	switch inst {
	case MOVL:
		// https://www.felixcloutier.com/x86/mov
		a.buf.WriteByte(0xb8 | byte(dst))
		a.buf.WriteUint32(uint32(value))
	case ADDL, ORL, ADCL, SBBL, ANDL, SUBL, XORL, CMPL:
		op := aluOpcodes[inst]
		if dst == RegAX {
			a.buf.WriteByte(op.eaxImm)
		} else {
			a.buf.WriteByte(0x81)
			a.modRM(3, op.ext, byte(dst))
		}
		a.buf.WriteUint32(uint32(value))
	case TESTL:
		// https://www.felixcloutier.com/x86/test
		if dst == RegAX {
			a.buf.WriteByte(0xa9)
		} else {
			a.buf.WriteByte(0xf7)
			a.modRM(3, 0, byte(dst))
		}
		a.buf.WriteUint32(uint32(value))
	case SHLL, SHRL, SARL, ROLL, RORL, RCRL:
		ext := shiftExtensions[inst]
		if value == 1 {
			a.buf.WriteByte(0xd1)
			a.modRM(3, ext, byte(dst))
		} else {
			a.buf.WriteByte(0xc1)
			a.modRM(3, ext, byte(dst))
			a.buf.WriteByte(byte(value))
		}
	case BTL:
		// https://www.felixcloutier.com/x86/bt
		a.buf.WriteUint16(0xba0f)
		a.modRM(3, 4, byte(dst))
		a.buf.WriteByte(byte(value))
	default:
		panic(errorEncodingUnsupported(inst, "const to register"))
	}
	a.peephole()
}

// CompileConstToNone encodes an instruction taking only an immediate.
func (a *Assembler) CompileConstToNone(inst Instruction, value int32) {
	switch inst {
	case PUSHL:
		// https://www.felixcloutier.com/x86/push
		a.buf.WriteByte(0x68)
		a.buf.WriteUint32(uint32(value))
	default:
		panic(errorEncodingUnsupported(inst, "const to none"))
	}
	a.peephole()
}

// CompileRegisterToNone encodes an instruction with a single register
// operand.
func (a *Assembler) CompileRegisterToNone(inst Instruction, reg Register) {
	switch inst {
	case MULL:
		// https://www.felixcloutier.com/x86/mul
		a.buf.WriteByte(0xf7)
		a.modRM(3, 4, byte(reg))
	case IMULL:
		// https://www.felixcloutier.com/x86/imul
		a.buf.WriteByte(0xf7)
		a.modRM(3, 5, byte(reg))
	case DIVL:
		// https://www.felixcloutier.com/x86/div
		a.buf.WriteByte(0xf7)
		a.modRM(3, 6, byte(reg))
	case IDIVL:
		// https://www.felixcloutier.com/x86/idiv
		a.buf.WriteByte(0xf7)
		a.modRM(3, 7, byte(reg))
	case NOTL:
		// https://www.felixcloutier.com/x86/not
		a.buf.WriteByte(0xf7)
		a.modRM(3, 2, byte(reg))
	case NEGL:
		// https://www.felixcloutier.com/x86/neg
		a.buf.WriteByte(0xf7)
		a.modRM(3, 3, byte(reg))
	case INCL:
		// https://www.felixcloutier.com/x86/inc
		a.buf.WriteByte(0x40 | byte(reg))
	case DECL:
		// https://www.felixcloutier.com/x86/dec
		a.buf.WriteByte(0x48 | byte(reg))
	case PUSHL:
		// https://www.felixcloutier.com/x86/push
		a.buf.WriteByte(0x50 | byte(reg))
	case POPL:
		// https://www.felixcloutier.com/x86/pop
		a.buf.WriteByte(0x58 | byte(reg))
	default:
		panic(errorEncodingUnsupported(inst, "register to none"))
	}
	a.peephole()
}

// CompileMemoryToRegister encodes an instruction loading from
// [base+offset] into dst. base==RegNone selects absolute [offset]
// addressing. MOVB and MOVW load into the corresponding narrow register.
func (a *Assembler) CompileMemoryToRegister(inst Instruction, base Register, offset int32, dst Register) {
	switch inst {
	case MOVL:
		a.buf.WriteByte(0x8b)
	case ADDL, ORL, ADCL, SBBL, ANDL, SUBL, XORL, CMPL:
		a.buf.WriteByte(aluOpcodes[inst].rmToReg)
	case MOVB:
		// https://www.felixcloutier.com/x86/mov
		a.buf.WriteByte(0x8a)
	case MOVW:
		a.buf.WriteByte(0x66)
		a.buf.WriteByte(0x8b)
	case MOVBLSX:
		a.buf.WriteUint16(0xbe0f)
	case MOVWLSX:
		a.buf.WriteUint16(0xbf0f)
	case MOVBLZX:
		a.buf.WriteUint16(0xb60f)
	case MOVWLZX:
		a.buf.WriteUint16(0xb70f)
	default:
		panic(errorEncodingUnsupported(inst, "memory to register"))
	}
	a.memOperand(byte(dst), base, offset, RegNone, 1)
	a.peephole()
}

// CompileRegisterToMemory encodes an instruction storing src into
// [base+offset]. base==RegNone selects absolute [offset] addressing.
func (a *Assembler) CompileRegisterToMemory(inst Instruction, src Register, base Register, offset int32) {
	switch inst {
	case MOVL:
		a.buf.WriteByte(0x89)
	case ADDL, ORL, ADCL, SBBL, ANDL, SUBL, XORL, CMPL:
		a.buf.WriteByte(aluOpcodes[inst].regToRM)
	case MOVB:
		a.buf.WriteByte(0x88)
	case MOVW:
		a.buf.WriteByte(0x66)
		a.buf.WriteByte(0x89)
	default:
		panic(errorEncodingUnsupported(inst, "register to memory"))
	}
	a.memOperand(byte(src), base, offset, RegNone, 1)
	a.peephole()
}

// CompileConstToMemory encodes an instruction with an immediate source
// and a [base+offset] destination.
func (a *Assembler) CompileConstToMemory(inst Instruction, value int32, base Register, offset int32) {
	switch inst {
	case MOVL:
		a.buf.WriteByte(0xc7)
		a.memOperand(0, base, offset, RegNone, 1)
		a.buf.WriteUint32(uint32(value))
	case ADDL, ORL, ADCL, SBBL, ANDL, SUBL, XORL, CMPL:
		a.buf.WriteByte(0x81)
		a.memOperand(aluOpcodes[inst].ext, base, offset, RegNone, 1)
		a.buf.WriteUint32(uint32(value))
	case MOVB:
		a.buf.WriteByte(0xc6)
		a.memOperand(0, base, offset, RegNone, 1)
		a.buf.WriteByte(byte(value))
	case MOVW:
		a.buf.WriteByte(0x66)
		a.buf.WriteByte(0xc7)
		a.memOperand(0, base, offset, RegNone, 1)
		a.buf.WriteUint16(uint16(value))
	default:
		panic(errorEncodingUnsupported(inst, "const to memory"))
	}
	a.peephole()
}

// CompileMemoryToNone encodes an instruction with a single
// [base+offset] operand.
func (a *Assembler) CompileMemoryToNone(inst Instruction, base Register, offset int32) {
	switch inst {
	case MULL:
		a.buf.WriteByte(0xf7)
		a.memOperand(4, base, offset, RegNone, 1)
	case IMULL:
		a.buf.WriteByte(0xf7)
		a.memOperand(5, base, offset, RegNone, 1)
	case DIVL:
		a.buf.WriteByte(0xf7)
		a.memOperand(6, base, offset, RegNone, 1)
	case IDIVL:
		a.buf.WriteByte(0xf7)
		a.memOperand(7, base, offset, RegNone, 1)
	case INCL:
		a.buf.WriteByte(0xff)
		a.memOperand(0, base, offset, RegNone, 1)
	case DECL:
		a.buf.WriteByte(0xff)
		a.memOperand(1, base, offset, RegNone, 1)
	case PUSHL:
		a.buf.WriteByte(0xff)
		a.memOperand(6, base, offset, RegNone, 1)
	case POPL:
		// https://www.felixcloutier.com/x86/pop
		a.buf.WriteByte(0x8f)
		a.memOperand(0, base, offset, RegNone, 1)
	default:
		panic(errorEncodingUnsupported(inst, "memory to none"))
	}
	a.peephole()
}

// CompileMemoryWithIndexToRegister encodes a load from
// [base+index*scale+offset] into dst.
func (a *Assembler) CompileMemoryWithIndexToRegister(inst Instruction, base Register, offset int32, index Register, scale byte, dst Register) {
	switch inst {
	case MOVL:
		a.buf.WriteByte(0x8b)
	default:
		panic(errorEncodingUnsupported(inst, "memory with index to register"))
	}
	a.memOperand(byte(dst), base, offset, index, scale)
	a.peephole()
}

// CompileRegisterToMemoryWithIndex encodes a store of src into
// [base+index*scale+offset].
func (a *Assembler) CompileRegisterToMemoryWithIndex(inst Instruction, src Register, base Register, offset int32, index Register, scale byte) {
	switch inst {
	case MOVL:
		a.buf.WriteByte(0x89)
	default:
		panic(errorEncodingUnsupported(inst, "register to memory with index"))
	}
	a.memOperand(byte(src), base, offset, index, scale)
	a.peephole()
}

// CompileMemoryWithIndexToNone encodes PUSHL or POPL with a
// [base+index*scale+offset] operand.
func (a *Assembler) CompileMemoryWithIndexToNone(inst Instruction, base Register, offset int32, index Register, scale byte) {
	switch inst {
	case PUSHL:
		a.buf.WriteByte(0xff)
		a.memOperand(6, base, offset, index, scale)
	case POPL:
		a.buf.WriteByte(0x8f)
		a.memOperand(0, base, offset, index, scale)
	default:
		panic(errorEncodingUnsupported(inst, "memory with index to none"))
	}
	a.peephole()
}

// CompileConditionalSet encodes SETcc on the low byte register of dst.
// https://www.felixcloutier.com/x86/setcc
func (a *Assembler) CompileConditionalSet(cc ConditionCode, dst Register) {
	a.buf.WriteByte(0x0f)
	a.buf.WriteByte(0x90 | byte(cc))
	a.modRM(3, 0, byte(dst))
	a.peephole()
}

// CompileConditionalMove encodes CMOVcc src, dst with register operands.
// https://www.felixcloutier.com/x86/cmovcc
func (a *Assembler) CompileConditionalMove(cc ConditionCode, src, dst Register) {
	a.buf.WriteByte(0x0f)
	a.buf.WriteByte(0x40 | byte(cc))
	a.modRM(3, byte(dst), byte(src))
	a.peephole()
}

// CompileConditionalMoveFromMemory encodes CMOVcc [base+offset], dst.
func (a *Assembler) CompileConditionalMoveFromMemory(cc ConditionCode, base Register, offset int32, dst Register) {
	a.buf.WriteByte(0x0f)
	a.buf.WriteByte(0x40 | byte(cc))
	a.memOperand(byte(dst), base, offset, RegNone, 1)
	a.peephole()
}

// CompileJumpToRegister encodes JMP or CALL through a register.
func (a *Assembler) CompileJumpToRegister(inst Instruction, reg Register) {
	switch inst {
	case JMP:
		// JMP r/m32 is FF /4. https://www.felixcloutier.com/x86/jmp
		a.buf.WriteByte(0xff)
		a.modRM(3, 4, byte(reg))
	case CALL:
		// CALL r/m32 is FF /2. https://www.felixcloutier.com/x86/call
		a.buf.WriteByte(0xff)
		a.modRM(3, 2, byte(reg))
	default:
		panic(errorEncodingUnsupported(inst, "jump to register"))
	}
	a.fence = a.buf.Cursor()
	a.peephole()
}

// CompileJumpToMemory encodes JMP or CALL through [base+offset].
func (a *Assembler) CompileJumpToMemory(inst Instruction, base Register, offset int32) {
	switch inst {
	case JMP:
		a.buf.WriteByte(0xff)
		a.memOperand(4, base, offset, RegNone, 1)
	case CALL:
		a.buf.WriteByte(0xff)
		a.memOperand(2, base, offset, RegNone, 1)
	default:
		panic(errorEncodingUnsupported(inst, "jump to memory"))
	}
	a.fence = a.buf.Cursor()
	a.peephole()
}

// Jcc8 encodes a conditional jump with an 8-bit displacement. If target
// is bound the displacement is written now, otherwise the returned Rel8
// must be completed with SetTarget8.
func (a *Assembler) Jcc8(cc ConditionCode, target Label) Rel8 {
	// https://www.felixcloutier.com/x86/jcc
	a.buf.WriteByte(0x70 | byte(cc))
	a.buf.WriteByte(0)
	rel := Rel8(a.buf.Cursor() - 1)
	if target != NoLabel {
		a.SetTarget8(rel, target)
	}
	a.fence = a.buf.Cursor()
	a.peephole()
	return rel
}

// Jcc32 encodes a conditional jump with a 32-bit displacement.
func (a *Assembler) Jcc32(cc ConditionCode, target Label) Rel32 {
	a.buf.WriteByte(0x0f)
	a.buf.WriteByte(0x80 | byte(cc))
	a.buf.WriteUint32(0)
	rel := Rel32(a.buf.Cursor() - 4)
	if target != NoLabel {
		a.SetTarget32(rel, target)
	}
	a.fence = a.buf.Cursor()
	a.peephole()
	return rel
}

// Jmp8 encodes an unconditional jump with an 8-bit displacement.
func (a *Assembler) Jmp8(target Label) Rel8 {
	// https://www.felixcloutier.com/x86/jmp
	a.buf.WriteByte(0xeb)
	a.buf.WriteByte(0)
	rel := Rel8(a.buf.Cursor() - 1)
	if target != NoLabel {
		a.SetTarget8(rel, target)
	}
	a.fence = a.buf.Cursor()
	a.peephole()
	return rel
}

// Jmp32 encodes an unconditional jump with a 32-bit displacement.
func (a *Assembler) Jmp32(target Label) Rel32 {
	a.buf.WriteByte(0xe9)
	a.buf.WriteUint32(0)
	rel := Rel32(a.buf.Cursor() - 4)
	if target != NoLabel {
		a.SetTarget32(rel, target)
	}
	a.fence = a.buf.Cursor()
	a.peephole()
	return rel
}

// Call32 encodes a near relative call.
func (a *Assembler) Call32(target Label) Rel32 {
	// https://www.felixcloutier.com/x86/call
	a.buf.WriteByte(0xe8)
	a.buf.WriteUint32(0)
	rel := Rel32(a.buf.Cursor() - 4)
	if target != NoLabel {
		a.SetTarget32(rel, target)
	}
	a.fence = a.buf.Cursor()
	a.peephole()
	return rel
}

// SetTarget8 completes the displacement of an 8-bit branch. The
// displacement is measured from the end of the displacement field and
// must fit in a signed 8-bit integer.
func (a *Assembler) SetTarget8(rel Rel8, target Label) {
	disp := int(target) - (int(rel) + 1)
	if disp < -128 || disp > 127 {
		panic(fmt.Sprintf("BUG: displacement %d overflows 8-bit branch", disp))
	}
	a.buf.PutByte(int(rel), byte(int8(disp)))
}

// SetTarget32 completes the displacement of a 32-bit branch or call.
func (a *Assembler) SetTarget32(rel Rel32, target Label) {
	disp := int32(int(target) - (int(rel) + 4))
	a.buf.PutUint32(int(rel), uint32(disp))
}
