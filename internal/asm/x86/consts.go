package x86

// Register is one of the eight 32-bit x86 general purpose registers.
// The constant values are the 3-bit register numbers used by ModR/M and
// SIB encoding.
type Register byte

const (
	RegAX Register = 0
	RegCX Register = 1
	RegDX Register = 2
	RegBX Register = 3
	RegSP Register = 4
	RegBP Register = 5
	RegSI Register = 6
	RegDI Register = 7

	// RegNone indicates the absence of a base or index register in a
	// memory operand. An absent index is encoded as ESP in the SIB byte,
	// the hole the hardware reserves for exactly this purpose.
	RegNone Register = 0xff
)

var registerNames = [8]string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}

// RegisterName returns the conventional name of reg for diagnostics.
func RegisterName(reg Register) string {
	if int(reg) < len(registerNames) {
		return registerNames[reg]
	}
	return "invalid"
}

// ConditionCode is the 4-bit x86 condition code, ORed into the opcode of
// Jcc, SETcc and CMOVcc.
// https://www.felixcloutier.com/x86/jcc
type ConditionCode byte

const (
	CCO  ConditionCode = 0x0 // overflow         (OF=1)
	CCNO ConditionCode = 0x1 // not overflow     (OF=0)
	CCC  ConditionCode = 0x2 // carry            (CF=1)
	CCAE ConditionCode = 0x3 // above or equal   (CF=0)
	CCEQ ConditionCode = 0x4 // equal            (ZF=1)
	CCNE ConditionCode = 0x5 // not equal        (ZF=0)
	CCBE ConditionCode = 0x6 // below or equal   (CF=1 or ZF=1)
	CCAB ConditionCode = 0x7 // above            (CF=0 and ZF=0)
	CCS  ConditionCode = 0x8 // sign             (SF=1)
	CCNS ConditionCode = 0x9 // not sign         (SF=0)
	CCP  ConditionCode = 0xa // parity even      (PF=1)
	CCNP ConditionCode = 0xb // parity odd       (PF=0)
	CCLT ConditionCode = 0xc // less             (SF!=OF)
	CCGE ConditionCode = 0xd // greater or equal (SF=OF)
	CCLE ConditionCode = 0xe // less or equal    (ZF=1 or SF!=OF)
	CCGT ConditionCode = 0xf // greater          (ZF=0 and SF=OF)
)

var conditionCodeNames = [16]string{
	"o", "no", "c", "ae", "eq", "ne", "be", "ab",
	"s", "ns", "p", "np", "lt", "ge", "le", "gt",
}

// ConditionCodeName returns the mnemonic suffix of cc.
func ConditionCodeName(cc ConditionCode) string {
	if int(cc) < len(conditionCodeNames) {
		return conditionCodeNames[cc]
	}
	return "invalid"
}

// Negate returns the condition code testing the opposite predicate.
func (cc ConditionCode) Negate() ConditionCode {
	// Condition codes come in complementary pairs differing only in the
	// lowest bit (e.g. EQ=0x4, NE=0x5; LT=0xc, GE=0xd).
	return cc ^ 1
}

// Instruction identifies an x86 operation to encode. Following the Go
// assembler convention, 32-bit operations carry an L suffix, byte and
// word operations B and W, and the sign/zero extending moves spell out
// source and destination widths.
// https://www.felixcloutier.com/x86/index.html
type Instruction byte

const (
	NONE Instruction = iota
	ADCL
	ADDL
	ANDL
	BTL
	CALL
	CBW
	CDQ
	CMPL
	CWD
	DECL
	DIVL
	IDIVL
	IMULL
	INCL
	INT3
	JMP
	MOVB
	MOVBLSX
	MOVBLZX
	MOVL
	MOVW
	MOVWLSX
	MOVWLZX
	MULL
	NEGL
	NOP
	NOTL
	ORL
	POPA
	POPL
	PUSHA
	PUSHL
	RCRL
	RET
	ROLL
	RORL
	SARL
	SBBL
	SHLL
	SHRL
	SUBL
	TESTL
	XORL
)

var instructionNames = map[Instruction]string{
	ADCL:    "adc",
	ADDL:    "add",
	ANDL:    "and",
	BTL:     "bt",
	CALL:    "call",
	CBW:     "cbw",
	CDQ:     "cdq",
	CMPL:    "cmp",
	CWD:     "cwd",
	DECL:    "dec",
	DIVL:    "div",
	IDIVL:   "idiv",
	IMULL:   "imul",
	INCL:    "inc",
	INT3:    "int3",
	JMP:     "jmp",
	MOVB:    "movb",
	MOVBLSX: "movsxb",
	MOVBLZX: "movzxb",
	MOVL:    "mov",
	MOVW:    "movw",
	MOVWLSX: "movsxw",
	MOVWLZX: "movzxw",
	MULL:    "mul",
	NEGL:    "neg",
	NOP:     "nop",
	NOTL:    "not",
	ORL:     "or",
	POPA:    "popa",
	POPL:    "pop",
	PUSHA:   "pusha",
	PUSHL:   "push",
	RCRL:    "rcr",
	RET:     "ret",
	ROLL:    "rol",
	RORL:    "ror",
	SARL:    "sar",
	SBBL:    "sbb",
	SHLL:    "shl",
	SHRL:    "shr",
	SUBL:    "sub",
	TESTL:   "test",
	XORL:    "xor",
}

// InstructionName returns the mnemonic of inst for diagnostics.
func InstructionName(inst Instruction) string {
	if name, ok := instructionNames[inst]; ok {
		return name
	}
	return "invalid"
}
