//go:build 386
// +build 386

package stackjit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stackjit/stackjit/internal/platform"
)

// hash produces a deterministic spray of test inputs.
func hash(input uint32) uint32 {
	state := input*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

func requireExecBuilder(t *testing.T) *Builder {
	t.Helper()
	if !platform.CompilerSupported() {
		t.Skip("compiled code cannot be executed on this platform")
	}
	b, err := New(64 * 1024)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })
	return b
}

func TestExec_ReturnConstant(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	b.EmitConst(int32(-889275714)) // 0xcafebabe
	b.EmitReturn(0)
	require.Equal(t, uint32(0xcafebabe), Call0(b.Finish()))
}

func TestExec_Add(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	b.EmitConst(11)
	b.EmitConst(1234)
	b.EmitAdd()
	b.EmitReturn(0)
	require.Equal(t, uint32(1245), Call0(b.Finish()))
}

func TestExec_Sub(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	b.EmitConst(1234)
	b.EmitConst(11)
	b.EmitSub()
	b.EmitReturn(0)
	require.Equal(t, uint32(1223), Call0(b.Finish()))
}

func TestExec_Mul(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	b.EmitConst(12)
	b.EmitConst(5)
	b.EmitMul()
	b.EmitReturn(0)
	require.Equal(t, uint32(60), Call0(b.Finish()))
}

func TestExec_AndOr(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	b.EmitConst(0x00ff00ff)
	b.EmitConst(0x003f0080)
	b.EmitAnd()
	b.EmitReturn(0)
	require.Equal(t, uint32(0x003f0080), Call0(b.Finish()))

	b.Clear()
	b.EmitFrame(0)
	b.EmitConst(0x00f0007f)
	b.EmitConst(0x00f03480)
	b.EmitOr()
	b.EmitReturn(0)
	require.Equal(t, uint32(0x00f034ff), Call0(b.Finish()))
}

func TestExec_WrapAround(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	b.EmitConst(int32(-1)) // 0xffffffff
	b.EmitConst(2)
	b.EmitAdd()
	b.EmitReturn(0)
	require.Equal(t, uint32(1), Call0(b.Finish()))
}

func TestExec_Not(t *testing.T) {
	inputs := []int32{0, 1, 2}
	expected := []uint32{1, 0, 0}
	for i, in := range inputs {
		b := requireExecBuilder(t)
		b.EmitFrame(0)
		b.EmitConst(in)
		b.EmitNot()
		b.EmitReturn(0)
		require.Equal(t, expected[i], Call0(b.Finish()), "notl %d", in)
	}
}

func TestExec_ComparisonTruthTables(t *testing.T) {
	type pair struct{ lhs, rhs int32 }
	pairs := []pair{{0, 1}, {1, 0}, {1, 1}}
	tests := []struct {
		name string
		emit func(*Builder)
		exp  [3]uint32
	}{
		{name: "lt", emit: (*Builder).EmitLt, exp: [3]uint32{1, 0, 0}},
		{name: "leq", emit: (*Builder).EmitLe, exp: [3]uint32{1, 0, 1}},
		{name: "gt", emit: (*Builder).EmitGt, exp: [3]uint32{0, 1, 0}},
		{name: "geq", emit: (*Builder).EmitGe, exp: [3]uint32{0, 1, 1}},
		{name: "eq", emit: (*Builder).EmitEq, exp: [3]uint32{0, 0, 1}},
		{name: "neq", emit: (*Builder).EmitNe, exp: [3]uint32{1, 1, 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for i, p := range pairs {
				b := requireExecBuilder(t)
				b.EmitFrame(0)
				b.EmitConst(p.lhs)
				b.EmitConst(p.rhs)
				tc.emit(b)
				b.EmitReturn(0)
				require.Equal(t, tc.exp[i], Call0(b.Finish()), "%s(%d, %d)", tc.name, p.lhs, p.rhs)
			}
		})
	}
}

func TestExec_FusedComparisonBranches(t *testing.T) {
	// Comparison directly followed by jz exercises the fused
	// compare-and-branch path in both the taken and not-taken
	// directions.
	build := func(b *Builder, lhs, rhs int32, emit func(*Builder)) {
		b.EmitFrame(0)
		b.EmitConst(lhs)
		b.EmitConst(rhs)
		emit(b)
		jz := b.EmitJz()
		b.EmitConst(1)
		b.EmitReturn(0)
		jz.Target(b.EmitLabel())
		b.EmitConst(0)
		b.EmitReturn(0)
	}
	type pair struct{ lhs, rhs int32 }
	pairs := []pair{{0, 1}, {1, 0}, {1, 1}, {-1, 1}}
	tests := []struct {
		name string
		emit func(*Builder)
		ref  func(l, r int32) bool
	}{
		{name: "lt", emit: (*Builder).EmitLt, ref: func(l, r int32) bool { return l < r }},
		{name: "leq", emit: (*Builder).EmitLe, ref: func(l, r int32) bool { return l <= r }},
		{name: "gt", emit: (*Builder).EmitGt, ref: func(l, r int32) bool { return l > r }},
		{name: "geq", emit: (*Builder).EmitGe, ref: func(l, r int32) bool { return l >= r }},
		{name: "eq", emit: (*Builder).EmitEq, ref: func(l, r int32) bool { return l == r }},
		{name: "neq", emit: (*Builder).EmitNe, ref: func(l, r int32) bool { return l != r }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, p := range pairs {
				b := requireExecBuilder(t)
				build(b, p.lhs, p.rhs, tc.emit)
				exp := uint32(0)
				if tc.ref(p.lhs, p.rhs) {
					exp = 1
				}
				require.Equal(t, exp, Call0(b.Finish()), "%s(%d, %d)", tc.name, p.lhs, p.rhs)
			}
		})
	}
}

func TestExec_Jmp(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	jmp := b.EmitJmp()
	b.EmitConst(int32(0xdead))
	b.EmitReturn(0)
	jmp.Target(b.EmitLabel())
	b.EmitConst(int32(0xbeef))
	b.EmitReturn(0)
	require.Equal(t, uint32(0xbeef), Call0(b.Finish()))
}

func TestExec_JzTakenAndNotTaken(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	b.EmitConst(0)
	l := b.EmitJz() // taken
	tgt := b.EmitLabel()
	b.EmitConst(int32(0xdead))
	b.EmitReturn(0)
	l.Target(b.EmitLabel())
	b.EmitConst(1)
	m := b.EmitJz() // not taken
	b.EmitConst(int32(0xbeef))
	b.EmitReturn(0)
	m.Target(tgt)
	require.Equal(t, uint32(0xbeef), Call0(b.Finish()))
}

func TestExec_JnzTakenAndNotTaken(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	b.EmitConst(1)
	l := b.EmitJnz() // taken
	tgt := b.EmitLabel()
	b.EmitConst(int32(0xdead))
	b.EmitReturn(0)
	l.Target(b.EmitLabel())
	b.EmitConst(0)
	m := b.EmitJnz() // not taken
	b.EmitConst(int32(0xbeef))
	b.EmitReturn(0)
	m.Target(tgt)
	require.Equal(t, uint32(0xbeef), Call0(b.Finish()))
}

func TestExec_CountdownLoop(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	b.EmitConst(10)
	j0 := b.EmitJmp()
	l0 := b.EmitLabel()
	b.EmitConst(1)
	b.EmitSub()
	l1 := b.EmitLabel()
	b.EmitDup()
	j1 := b.EmitJnz()
	b.EmitReturn(0)
	j0.Target(l1)
	j1.Target(l0)
	require.Equal(t, uint32(0), Call0(b.Finish()))
}

func TestExec_OneArgument(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	b.EmitGetLocal(2)
	b.EmitReturn(0)
	code := b.Finish()
	require.Equal(t, uint32(0xbeef), Call1(code, 0xbeef))
}

func TestExec_TwoArgumentSubtract(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	b.EmitGetLocal(2)
	b.EmitGetLocal(3)
	b.EmitSub()
	b.EmitReturn(0)
	code := b.Finish()
	for i := uint32(0); i < 100; i++ {
		lhs := hash(i)
		rhs := hash(i ^ 0xbeef)
		require.Equal(t, lhs-rhs, Call2(code, lhs, rhs))
	}
}

func TestExec_FrameAndLocals(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(1)
	b.EmitConst(0xc0ffee)
	b.EmitReturn(1)
	require.Equal(t, uint32(0xc0ffee), Call0(b.Finish()))

	b.Clear()
	b.EmitFrame(1)
	b.EmitConst(0xc0ffee)
	b.EmitSetLocal(-1)
	b.EmitGetLocal(-1)
	b.EmitReturn(1)
	require.Equal(t, uint32(0xc0ffee), Call0(b.Finish()))
}

func TestExec_DropAndDup(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	b.EmitConst(0xc0ffee)
	b.EmitConst(int32(-1160660271)) // 0xbad1bad1
	b.EmitDrop(1)
	b.EmitReturn(0)
	require.Equal(t, uint32(0xc0ffee), Call0(b.Finish()))

	b.Clear()
	b.EmitFrame(0)
	b.EmitConst(13)
	b.EmitDup()
	b.EmitAdd()
	b.EmitReturn(0)
	require.Equal(t, uint32(26), Call0(b.Finish()))
}

func TestExec_CallForward(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	call := b.EmitCall()
	b.EmitConst(1)
	b.EmitAdd()
	b.EmitReturn(0)

	call.Target(b.EmitLabel())
	b.EmitFrame(0)
	b.EmitConst(int32(-889262068)) // 0xcafef00c
	b.EmitReturn(0)

	require.Equal(t, uint32(0xcafef00d), Call0(b.Finish()))
}

func TestExec_CallBackward(t *testing.T) {
	b := requireExecBuilder(t)
	entry := b.EmitJmp()

	callee := b.EmitLabel()
	b.EmitFrame(0)
	b.EmitConst(int32(-889262068)) // 0xcafef00c
	b.EmitReturn(0)

	entry.Target(b.EmitLabel())
	b.EmitFrame(0)
	call := b.EmitCall()
	call.Target(callee)
	b.EmitConst(1)
	b.EmitAdd()
	b.EmitReturn(0)

	require.Equal(t, uint32(0xcafef00d), Call0(b.Finish()))
}

func TestExec_RecursiveFactorial(t *testing.T) {
	b := requireExecBuilder(t)

	fn := b.EmitLabel()
	b.EmitFrame(0)
	b.EmitGetLocal(2)
	b.EmitConst(1)
	b.EmitLe()
	jz := b.EmitJz()
	b.EmitConst(1)
	b.EmitReturn(0)
	jz.Target(b.EmitLabel())
	b.EmitGetLocal(2)
	b.EmitGetLocal(2)
	b.EmitConst(1)
	b.EmitSub()
	call := b.EmitCall()
	call.Target(fn)
	b.EmitSink(1)
	b.EmitMul()
	b.EmitReturn(0)

	code := b.Finish()
	expected := []uint32{1, 1, 2, 6, 24, 120, 720, 5040, 40320, 362880}
	for n := uint32(0); n < 10; n++ {
		require.Equal(t, expected[n], Call1(code, n), "factorial(%d)", n)
	}
}

func TestExec_SinkKeepsTopOfStack(t *testing.T) {
	b := requireExecBuilder(t)
	b.EmitFrame(0)
	b.EmitConst(111)
	b.EmitConst(222)
	b.EmitConst(333)
	b.EmitSink(2)
	b.EmitReturn(0)
	require.Equal(t, uint32(333), Call0(b.Finish()))
}

// TestExec_BinaryOpRoundTrip compares the compiled two-argument
// operations against reference implementations over a spray of inputs,
// with 32-bit wrap-around semantics.
func TestExec_BinaryOpRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		emit func(*Builder)
		ref  func(l, r uint32) uint32
	}{
		{name: "add", emit: (*Builder).EmitAdd, ref: func(l, r uint32) uint32 { return l + r }},
		{name: "sub", emit: (*Builder).EmitSub, ref: func(l, r uint32) uint32 { return l - r }},
		{name: "mul", emit: (*Builder).EmitMul, ref: func(l, r uint32) uint32 { return l * r }},
		{name: "and", emit: (*Builder).EmitAnd, ref: func(l, r uint32) uint32 { return l & r }},
		{name: "or", emit: (*Builder).EmitOr, ref: func(l, r uint32) uint32 { return l | r }},
		{name: "lt", emit: (*Builder).EmitLt, ref: func(l, r uint32) uint32 {
			if int32(l) < int32(r) {
				return 1
			}
			return 0
		}},
		{name: "eq", emit: (*Builder).EmitEq, ref: func(l, r uint32) uint32 {
			if l == r {
				return 1
			}
			return 0
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := requireExecBuilder(t)
			b.EmitFrame(0)
			b.EmitGetLocal(2)
			b.EmitGetLocal(3)
			tc.emit(b)
			b.EmitReturn(0)
			code := b.Finish()

			for i := uint32(0); i < 200; i++ {
				lhs := hash(i)
				rhs := hash(i ^ 0x5bd1e995)
				require.Equal(t, tc.ref(lhs, rhs), Call2(code, lhs, rhs),
					"%s(%#x, %#x)", tc.name, lhs, rhs)
			}
		})
	}
}

// TestExec_PeepholeEquivalence compiles programs whose shapes trigger
// each rewrite rule and checks that the optimized code still computes
// the unoptimized result.
func TestExec_PeepholeEquivalence(t *testing.T) {
	t.Run("push imm through pop", func(t *testing.T) {
		// const; setl exercises push-imm/pop folding.
		b := requireExecBuilder(t)
		b.EmitFrame(1)
		b.EmitConst(0x1234)
		b.EmitSetLocal(-1)
		b.EmitGetLocal(-1)
		b.EmitReturn(1)
		require.Equal(t, uint32(0x1234), Call0(b.Finish()))
	})
	t.Run("cmp immediate folding", func(t *testing.T) {
		// getl; const; eq booleanized triggers the pop/cmp rewrites.
		b := requireExecBuilder(t)
		b.EmitFrame(0)
		b.EmitGetLocal(2)
		b.EmitConst(42)
		b.EmitEq()
		b.EmitReturn(0)
		code := b.Finish()
		require.Equal(t, uint32(1), Call1(code, 42))
		require.Equal(t, uint32(0), Call1(code, 41))
	})
	t.Run("sub esp immediate folding", func(t *testing.T) {
		// getl; const; sub triggers the sub-[esp] immediate rule.
		b := requireExecBuilder(t)
		b.EmitFrame(0)
		b.EmitGetLocal(2)
		b.EmitConst(5)
		b.EmitSub()
		b.EmitReturn(0)
		require.Equal(t, uint32(95), Call1(b.Finish(), 100))
	})
}
