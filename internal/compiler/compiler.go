// Package compiler lowers the IR sequence into 32-bit x86 machine code.
//
// The walk is a single pass in node order with one node of look-ahead:
// a comparison immediately followed by a conditional branch is fused
// into one compare-and-branch emission. Branch displacements are
// recorded as relocations keyed by the originating node and patched
// after the walk, when every label offset is known.
package compiler

import (
	"fmt"

	"github.com/stackjit/stackjit/internal/asm"
	"github.com/stackjit/stackjit/internal/asm/x86"
	"github.com/stackjit/stackjit/internal/ir"
)

// RelocationKind selects how a relocation patch is written.
type RelocationKind byte

const (
	// RelocationAbs writes the 32-bit absolute address of the target
	// (buffer base plus bound offset).
	RelocationAbs RelocationKind = iota
	// RelocationRel writes the signed 32-bit displacement from the end
	// of the patch field to the target.
	RelocationRel
)

// relocation is a deferred displacement patch. origin is the branch or
// call node whose target label decides where the patch points.
type relocation struct {
	kind        RelocationKind
	patchOffset int
	origin      *ir.Node
}

type compiler struct {
	asm *x86.Assembler
	// labels binds emitted label nodes to their byte offsets.
	labels map[*ir.Node]x86.Label
	relocs []relocation
}

// Generate lowers nodes into code and returns the emitted length. The
// code slice is the full capacity window; a program that does not fit
// panics in the byte sink. All failure modes are programmer errors and
// panic.
func Generate(code []byte, nodes []*ir.Node) int {
	buf := asm.NewBuffer(code)
	c := &compiler{
		asm:    x86.NewAssembler(buf),
		labels: map[*ir.Node]x86.Label{},
	}
	c.lower(nodes)
	c.relocate()
	return buf.Cursor()
}

// comparisonConditions maps comparison kinds to the condition code of
// the fused or booleanized emission.
var comparisonConditions = map[ir.Kind]x86.ConditionCode{
	ir.KindLt: x86.CCLT,
	ir.KindLe: x86.CCLE,
	ir.KindGt: x86.CCGT,
	ir.KindGe: x86.CCGE,
	ir.KindEq: x86.CCEQ,
	ir.KindNe: x86.CCNE,
}

func (c *compiler) lower(nodes []*ir.Node) {
	for i := 0; i < len(nodes); i++ {
		n := nodes[i]

		if _, isComparison := comparisonConditions[n.Kind()]; isComparison {
			if i+1 < len(nodes) {
				if next := nodes[i+1]; next.Kind() == ir.KindJz || next.Kind() == ir.KindJnz {
					c.lowerFusedComparison(n, next)
					i++
					continue
				}
			}
			c.lowerComparison(n)
			continue
		}

		c.lowerNode(n)
	}
}

func (c *compiler) lowerNode(n *ir.Node) {
	a := c.asm
	switch n.Kind() {
	case ir.KindLabel:
		// Offsets recorded here must survive later peephole passes.
		a.PeepFence()
		c.labels[n] = a.CaptureLabel()

	case ir.KindConst:
		if n.Imm() == 0 {
			a.CompileRegisterToRegister(x86.XORL, x86.RegAX, x86.RegAX)
		} else {
			a.CompileConstToRegister(x86.MOVL, int32(n.Imm()), x86.RegAX)
		}
		a.CompileRegisterToNone(x86.PUSHL, x86.RegAX)

	case ir.KindDrop:
		if n.Imm() > 0 {
			a.CompileConstToRegister(x86.ADDL, int32(n.Imm()), x86.RegSP)
		}

	case ir.KindDup:
		a.CompileMemoryToRegister(x86.MOVL, x86.RegSP, 0, x86.RegAX)
		a.CompileRegisterToNone(x86.PUSHL, x86.RegAX)

	case ir.KindSink:
		if n.Imm() > 0 {
			a.CompileRegisterToNone(x86.POPL, x86.RegAX)
			a.CompileConstToRegister(x86.ADDL, int32(n.Imm()), x86.RegSP)
			a.CompileRegisterToNone(x86.PUSHL, x86.RegAX)
		}

	case ir.KindGetLocal:
		a.CompileMemoryToRegister(x86.MOVL, x86.RegBP, int32(n.Imm()), x86.RegAX)
		a.CompileRegisterToNone(x86.PUSHL, x86.RegAX)

	case ir.KindSetLocal:
		a.CompileRegisterToNone(x86.POPL, x86.RegAX)
		a.CompileRegisterToMemory(x86.MOVL, x86.RegAX, x86.RegBP, int32(n.Imm()))

	case ir.KindFrame:
		a.CompileRegisterToNone(x86.PUSHL, x86.RegBP)
		a.CompileRegisterToRegister(x86.MOVL, x86.RegSP, x86.RegBP)
		if n.Imm() > 0 {
			a.CompileConstToRegister(x86.SUBL, int32(n.Imm()), x86.RegSP)
		}

	case ir.KindReturn:
		a.CompileRegisterToNone(x86.POPL, x86.RegAX)
		if n.Imm() > 0 {
			a.CompileConstToRegister(x86.ADDL, int32(n.Imm()), x86.RegSP)
		}
		a.CompileRegisterToNone(x86.POPL, x86.RegBP)
		a.CompileStandAlone(x86.RET)

	case ir.KindAdd:
		a.CompileRegisterToNone(x86.POPL, x86.RegAX)
		a.CompileRegisterToMemory(x86.ADDL, x86.RegAX, x86.RegSP, 0)

	case ir.KindSub:
		a.CompileRegisterToNone(x86.POPL, x86.RegAX)
		a.CompileRegisterToMemory(x86.SUBL, x86.RegAX, x86.RegSP, 0)

	case ir.KindMul:
		a.CompileRegisterToNone(x86.POPL, x86.RegAX)
		a.CompileMemoryToRegister(x86.MOVL, x86.RegSP, 0, x86.RegDX)
		a.CompileRegisterToNone(x86.IMULL, x86.RegDX)
		a.CompileRegisterToMemory(x86.MOVL, x86.RegAX, x86.RegSP, 0)

	case ir.KindDiv:
		// The IR carries div but no lowering exists; see DESIGN.md.
		panic("BUG: div is not implemented")

	case ir.KindAnd:
		a.CompileRegisterToNone(x86.POPL, x86.RegAX)
		a.CompileRegisterToNone(x86.POPL, x86.RegDX)
		a.CompileRegisterToRegister(x86.ANDL, x86.RegDX, x86.RegAX)
		a.CompileRegisterToNone(x86.PUSHL, x86.RegAX)

	case ir.KindOr:
		a.CompileRegisterToNone(x86.POPL, x86.RegAX)
		a.CompileRegisterToNone(x86.POPL, x86.RegDX)
		a.CompileRegisterToRegister(x86.ORL, x86.RegDX, x86.RegAX)
		a.CompileRegisterToNone(x86.PUSHL, x86.RegAX)

	case ir.KindNot:
		a.CompileRegisterToNone(x86.POPL, x86.RegAX)
		a.CompileRegisterToRegister(x86.TESTL, x86.RegAX, x86.RegAX)
		a.CompileConditionalSet(x86.CCEQ, x86.RegAX)
		a.CompileConstToRegister(x86.ANDL, 1, x86.RegAX)
		a.CompileRegisterToNone(x86.PUSHL, x86.RegAX)

	case ir.KindJz:
		a.CompileRegisterToNone(x86.POPL, x86.RegAX)
		a.CompileConstToRegister(x86.CMPL, 0, x86.RegAX)
		rel := a.Jcc32(x86.CCEQ, x86.NoLabel)
		c.record(RelocationRel, int(rel), n)

	case ir.KindJnz:
		a.CompileRegisterToNone(x86.POPL, x86.RegAX)
		a.CompileConstToRegister(x86.CMPL, 0, x86.RegAX)
		rel := a.Jcc32(x86.CCNE, x86.NoLabel)
		c.record(RelocationRel, int(rel), n)

	case ir.KindJmp:
		rel := a.Jmp32(x86.NoLabel)
		c.record(RelocationRel, int(rel), n)

	case ir.KindCall:
		rel := a.Call32(x86.NoLabel)
		c.record(RelocationRel, int(rel), n)
		// The callee leaves its result in EAX; push it onto the
		// evaluation stack.
		a.CompileRegisterToNone(x86.PUSHL, x86.RegAX)

	default:
		panic(fmt.Sprintf("BUG: no lowering for %s node", n.Kind()))
	}
}

// lowerComparison emits the booleanizing form: the comparison result is
// materialized as 0 or 1 on the evaluation stack.
func (c *compiler) lowerComparison(n *ir.Node) {
	a := c.asm
	a.CompileRegisterToNone(x86.POPL, x86.RegAX)
	a.CompileRegisterToNone(x86.POPL, x86.RegDX)
	a.CompileRegisterToRegister(x86.CMPL, x86.RegAX, x86.RegDX)
	a.CompileConditionalSet(comparisonConditions[n.Kind()], x86.RegAX)
	a.CompileConstToRegister(x86.ANDL, 1, x86.RegAX)
	a.CompileRegisterToNone(x86.PUSHL, x86.RegAX)
}

// lowerFusedComparison emits a comparison and the conditional branch
// consuming it as one compare-and-branch sequence. A jz branches when
// the comparison is false, so its condition is the negation of the
// comparison's.
func (c *compiler) lowerFusedComparison(cmp, branch *ir.Node) {
	a := c.asm
	a.CompileRegisterToNone(x86.POPL, x86.RegAX)
	a.CompileRegisterToNone(x86.POPL, x86.RegDX)
	a.CompileRegisterToRegister(x86.CMPL, x86.RegAX, x86.RegDX)

	cc := comparisonConditions[cmp.Kind()]
	if branch.Kind() == ir.KindJz {
		cc = cc.Negate()
	}
	rel := a.Jcc32(cc, x86.NoLabel)
	c.record(RelocationRel, int(rel), branch)
}

func (c *compiler) record(kind RelocationKind, patchOffset int, origin *ir.Node) {
	c.relocs = append(c.relocs, relocation{kind: kind, patchOffset: patchOffset, origin: origin})
}

// relocate patches every recorded displacement now that all label
// offsets are bound. Running after the walk means forward branches need
// no special casing.
func (c *compiler) relocate() {
	for _, rel := range c.relocs {
		target := rel.origin.Target()
		if target == nil {
			panic(fmt.Sprintf("BUG: %s node has no branch target", rel.origin.Kind()))
		}
		if target.Kind() != ir.KindLabel {
			panic(fmt.Sprintf("BUG: %s node targets a %s node, not a label", rel.origin.Kind(), target.Kind()))
		}
		offset, bound := c.labels[target]
		if !bound {
			panic(fmt.Sprintf("BUG: target label of %s node was never emitted", rel.origin.Kind()))
		}

		switch rel.kind {
		case RelocationRel:
			c.asm.SetTarget32(x86.Rel32(rel.patchOffset), offset)
		case RelocationAbs:
			base := c.asm.Buffer().Addr()
			c.asm.Buffer().PutUint32(rel.patchOffset, uint32(base)+uint32(offset))
		default:
			panic("BUG: invalid relocation kind")
		}
	}
}
