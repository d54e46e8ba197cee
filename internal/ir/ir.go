// Package ir holds the intermediate representation consumed by the code
// generator: a flat, append-only sequence of typed nodes. Control flow
// is expressed by branch nodes pointing at label nodes in the same
// sequence, which keeps the graph acyclic at the data level while still
// expressing arbitrary jumps.
package ir

import "fmt"

// Kind is the opcode tag of a Node.
type Kind byte

const (
	// KindConst pushes a 32-bit immediate.
	KindConst Kind = iota
	// KindDrop discards stack slots.
	KindDrop
	// KindDup duplicates the top of stack.
	KindDup
	// KindSink saves the top of stack, discards slots below it, and
	// restores the saved value.
	KindSink
	// KindGetLocal pushes a frame-relative slot.
	KindGetLocal
	// KindSetLocal pops into a frame-relative slot.
	KindSetLocal
	// KindFrame establishes a stack frame and reserves local slots.
	KindFrame
	// KindReturn pops the result, unwinds the frame and returns.
	KindReturn
	// KindCall calls a label and pushes the result.
	KindCall
	// KindJz branches to a label when the popped value is zero.
	KindJz
	// KindJnz branches to a label when the popped value is nonzero.
	KindJnz
	// KindJmp branches to a label unconditionally.
	KindJmp
	// KindLabel marks a branch destination.
	KindLabel
	KindAdd
	KindSub
	KindMul
	KindDiv
	KindAnd
	KindOr
	// KindNot is logical not: 0 becomes 1, anything else becomes 0.
	KindNot
	KindLt
	KindLe
	KindGt
	KindGe
	KindEq
	KindNe
)

var kindNames = [...]string{
	KindConst:    "const",
	KindDrop:     "drop",
	KindDup:      "dup",
	KindSink:     "sink",
	KindGetLocal: "getl",
	KindSetLocal: "setl",
	KindFrame:    "frame",
	KindReturn:   "return",
	KindCall:     "call",
	KindJz:       "jz",
	KindJnz:      "jnz",
	KindJmp:      "jmp",
	KindLabel:    "label",
	KindAdd:      "add",
	KindSub:      "sub",
	KindMul:      "mul",
	KindDiv:      "div",
	KindAnd:      "and",
	KindOr:       "or",
	KindNot:      "not",
	KindLt:       "lt",
	KindLe:       "leq",
	KindGt:       "gt",
	KindGe:       "geq",
	KindEq:       "eq",
	KindNe:       "neq",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Node is one element of the IR sequence. Nodes are owned by the Builder
// and have stable identity: a branch node references its destination by
// the label node's pointer. At most one of the payload fields is
// meaningful, selected by the kind; label and ALU/comparison nodes carry
// no payload.
type Node struct {
	kind Kind
	// imm is the immediate payload: a signed 32-bit value for
	// const/getl/setl, a pre-scaled byte count for drop/sink/frame/return.
	imm uint32
	// target is the destination label for call/jz/jnz/jmp.
	target *Node
}

// Kind returns the opcode tag.
func (n *Node) Kind() Kind {
	return n.kind
}

// Imm returns the immediate payload.
func (n *Node) Imm() uint32 {
	return n.imm
}

// Target returns the destination node of a branch or call, or nil if it
// was never assigned.
func (n *Node) Target() *Node {
	return n.target
}

// SetTarget assigns the destination of a branch or call node. The
// destination must resolve to a label node by generation time.
func (n *Node) SetTarget(target *Node) {
	switch n.kind {
	case KindCall, KindJz, KindJnz, KindJmp:
	default:
		panic(fmt.Sprintf("BUG: %s node cannot take a branch target", n.kind))
	}
	n.target = target
}

// String implements fmt.Stringer. The format is one instruction per
// node: const immediates in hex, slot counts and frame slot indices in
// decimal, and labels and branch destinations by the label node's
// address.
func (n *Node) String() string {
	switch n.kind {
	case KindConst:
		return fmt.Sprintf("%s 0x%x", n.kind, n.imm)
	case KindGetLocal, KindSetLocal:
		return fmt.Sprintf("%s %d", n.kind, int32(n.imm)/slotSize)
	case KindDrop, KindSink, KindFrame, KindReturn:
		return fmt.Sprintf("%s %d", n.kind, n.imm/slotSize)
	case KindCall, KindJz, KindJnz, KindJmp:
		if n.target == nil {
			return fmt.Sprintf("%s <unbound>", n.kind)
		}
		return fmt.Sprintf("%s %p", n.kind, n.target)
	case KindLabel:
		return fmt.Sprintf("%p:", n)
	default:
		return n.kind.String()
	}
}

// slotSize is the size in bytes of one evaluation stack slot. All
// slot-oriented operands scale by it when emitted.
const slotSize = 4

// Builder accumulates the IR sequence. Nodes remain valid until Clear.
type Builder struct {
	nodes []*Node
}

// NewBuilder constructs an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Nodes returns the sequence in emission order.
func (b *Builder) Nodes() []*Node {
	return b.nodes
}

// Len returns the number of emitted nodes.
func (b *Builder) Len() int {
	return len(b.nodes)
}

// Clear drops the whole sequence. Node pointers obtained before Clear
// must not be used afterwards.
func (b *Builder) Clear() {
	b.nodes = nil
}

func (b *Builder) push(n *Node) *Node {
	b.nodes = append(b.nodes, n)
	return n
}

// EmitConst appends a push of the immediate value.
func (b *Builder) EmitConst(value int32) {
	b.push(&Node{kind: KindConst, imm: uint32(value)})
}

// EmitDrop appends a discard of count stack slots.
func (b *Builder) EmitDrop(count uint32) {
	b.push(&Node{kind: KindDrop, imm: count * slotSize})
}

// EmitDup appends a duplication of the top of stack.
func (b *Builder) EmitDup() {
	b.push(&Node{kind: KindDup})
}

// EmitSink appends a discard of count slots below the top of stack.
func (b *Builder) EmitSink(count uint32) {
	b.push(&Node{kind: KindSink, imm: count * slotSize})
}

// EmitGetLocal appends a push of the frame slot at the given index.
// Positive indices address arguments (index 2 is the first argument,
// past the saved frame pointer and return address), negative indices
// address locals reserved by EmitFrame.
func (b *Builder) EmitGetLocal(slot int32) {
	b.push(&Node{kind: KindGetLocal, imm: uint32(slot * slotSize)})
}

// EmitSetLocal appends a pop into the frame slot at the given index.
func (b *Builder) EmitSetLocal(slot int32) {
	b.push(&Node{kind: KindSetLocal, imm: uint32(slot * slotSize)})
}

// EmitFrame appends a frame prologue reserving count local slots.
func (b *Builder) EmitFrame(count uint32) {
	b.push(&Node{kind: KindFrame, imm: count * slotSize})
}

// EmitReturn appends a frame epilogue releasing count local slots.
func (b *Builder) EmitReturn(count uint32) {
	b.push(&Node{kind: KindReturn, imm: count * slotSize})
}

// EmitCall appends a call. The returned node's target must be set to a
// label node before generation.
func (b *Builder) EmitCall() *Node {
	return b.push(&Node{kind: KindCall})
}

// EmitJz appends a branch taken when the popped value is zero.
func (b *Builder) EmitJz() *Node {
	return b.push(&Node{kind: KindJz})
}

// EmitJnz appends a branch taken when the popped value is nonzero.
func (b *Builder) EmitJnz() *Node {
	return b.push(&Node{kind: KindJnz})
}

// EmitJmp appends an unconditional branch.
func (b *Builder) EmitJmp() *Node {
	return b.push(&Node{kind: KindJmp})
}

// EmitLabel appends a label node and returns it for use as a branch
// target.
func (b *Builder) EmitLabel() *Node {
	return b.push(&Node{kind: KindLabel})
}

// EmitAdd appends a pop-pop-push addition.
func (b *Builder) EmitAdd() { b.push(&Node{kind: KindAdd}) }

// EmitSub appends a pop-pop-push subtraction (second minus top).
func (b *Builder) EmitSub() { b.push(&Node{kind: KindSub}) }

// EmitMul appends a pop-pop-push multiplication.
func (b *Builder) EmitMul() { b.push(&Node{kind: KindMul}) }

// EmitDiv appends a division node. The code generator does not lower it;
// see the compiler package.
func (b *Builder) EmitDiv() { b.push(&Node{kind: KindDiv}) }

// EmitAnd appends a pop-pop-push bitwise and.
func (b *Builder) EmitAnd() { b.push(&Node{kind: KindAnd}) }

// EmitOr appends a pop-pop-push bitwise or.
func (b *Builder) EmitOr() { b.push(&Node{kind: KindOr}) }

// EmitNot appends a logical not of the top of stack.
func (b *Builder) EmitNot() { b.push(&Node{kind: KindNot}) }

// EmitLt appends a signed less-than comparison.
func (b *Builder) EmitLt() { b.push(&Node{kind: KindLt}) }

// EmitLe appends a signed less-or-equal comparison.
func (b *Builder) EmitLe() { b.push(&Node{kind: KindLe}) }

// EmitGt appends a signed greater-than comparison.
func (b *Builder) EmitGt() { b.push(&Node{kind: KindGt}) }

// EmitGe appends a signed greater-or-equal comparison.
func (b *Builder) EmitGe() { b.push(&Node{kind: KindGe}) }

// EmitEq appends an equality comparison.
func (b *Builder) EmitEq() { b.push(&Node{kind: KindEq}) }

// EmitNe appends an inequality comparison.
func (b *Builder) EmitNe() { b.push(&Node{kind: KindNe}) }
