// Package x86debug cross-checks the hand-rolled encoder against Go's
// own assembler (via golang-asm). It exists for debugging encoder
// regressions: the covered instruction forms encode identically on 386
// and amd64 (no REX prefix is involved for the low eight registers), so
// the amd64 backend of golang-asm is a valid oracle for them.
package x86debug

import (
	"fmt"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	gox86 "github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/stackjit/stackjit/internal/asm/x86"
)

// goRegisters maps our register numbers to golang-asm's.
var goRegisters = map[x86.Register]int16{
	x86.RegAX: gox86.REG_AX,
	x86.RegCX: gox86.REG_CX,
	x86.RegDX: gox86.REG_DX,
	x86.RegBX: gox86.REG_BX,
	x86.RegSP: gox86.REG_SP,
	x86.RegBP: gox86.REG_BP,
	x86.RegSI: gox86.REG_SI,
	x86.RegDI: gox86.REG_DI,
}

// goInstructions maps the cross-checkable subset of our instruction set
// to golang-asm opcodes. Only forms whose 386 and amd64 encodings
// coincide are listed.
var goInstructions = map[x86.Instruction]obj.As{
	x86.MOVL:  gox86.AMOVL,
	x86.ADDL:  gox86.AADDL,
	x86.SUBL:  gox86.ASUBL,
	x86.ANDL:  gox86.AANDL,
	x86.ORL:   gox86.AORL,
	x86.XORL:  gox86.AXORL,
	x86.PUSHL: gox86.APUSHL,
	x86.POPL:  gox86.APOPL,
	x86.RET:   obj.ARET,
}

// Oracle encodes single instructions through golang-asm for comparison
// with the hand-rolled encoder.
type Oracle struct {
	inst x86.Instruction
	as   obj.As
}

// Lookup resolves inst to its golang-asm counterpart, or reports that
// the form is outside the cross-checkable subset.
func Lookup(inst x86.Instruction) (Oracle, bool) {
	as, ok := goInstructions[inst]
	return Oracle{inst: inst, as: as}, ok
}

func assemble(build func(b *goasm.Builder, p *obj.Prog)) ([]byte, error) {
	b, err := goasm.NewBuilder("amd64", 64)
	if err != nil {
		return nil, err
	}
	p := b.NewProg()
	build(b, p)
	b.AddInstruction(p)
	code := b.Assemble()
	if len(code) == 0 {
		return nil, fmt.Errorf("golang-asm produced no code")
	}
	return code, nil
}

// EncodeRegisterToRegister encodes inst with register source and
// destination through golang-asm.
func (o Oracle) EncodeRegisterToRegister(src, dst x86.Register) ([]byte, error) {
	return assemble(func(b *goasm.Builder, p *obj.Prog) {
		p.As = o.as
		p.From.Type = obj.TYPE_REG
		p.From.Reg = goRegisters[src]
		p.To.Type = obj.TYPE_REG
		p.To.Reg = goRegisters[dst]
	})
}

// EncodeConstToRegister encodes inst with an immediate source and a
// register destination through golang-asm.
func (o Oracle) EncodeConstToRegister(value int32, dst x86.Register) ([]byte, error) {
	return assemble(func(b *goasm.Builder, p *obj.Prog) {
		p.As = o.as
		p.From.Type = obj.TYPE_CONST
		p.From.Offset = int64(value)
		p.To.Type = obj.TYPE_REG
		p.To.Reg = goRegisters[dst]
	})
}

// EncodeRegisterToNone encodes inst with a single register operand
// through golang-asm. Push-kind instructions read their operand, so it
// goes in From; pop-kind instructions write it, so it goes in To.
func (o Oracle) EncodeRegisterToNone(reg x86.Register) ([]byte, error) {
	return assemble(func(b *goasm.Builder, p *obj.Prog) {
		p.As = o.as
		if o.inst == x86.PUSHL {
			p.From.Type = obj.TYPE_REG
			p.From.Reg = goRegisters[reg]
		} else {
			p.To.Type = obj.TYPE_REG
			p.To.Reg = goRegisters[reg]
		}
	})
}

// EncodeStandAlone encodes an operand-less inst through golang-asm.
func (o Oracle) EncodeStandAlone() ([]byte, error) {
	return assemble(func(b *goasm.Builder, p *obj.Prog) {
		p.As = o.as
	})
}
