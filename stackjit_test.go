package stackjit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestBuilder() *Builder {
	return NewWithBuffer(make([]byte, 4096))
}

func TestBuilder_FinishReturnsCodeAddress(t *testing.T) {
	b := newTestBuilder()
	b.EmitFrame(0)
	b.EmitConst(1)
	b.EmitReturn(0)

	addr := b.Finish()
	require.NotEqual(t, uintptr(0), addr)
	require.NotEqual(t, 0, len(b.Code()))
	// The address is the first byte of the emitted image.
	require.Equal(t, byte(0x55), b.Code()[0])
}

func TestBuilder_ReturnConstantImage(t *testing.T) {
	b := newTestBuilder()
	b.EmitFrame(0)
	b.EmitConst(int32(-889275714)) // 0xcafebabe
	b.EmitReturn(0)
	b.Finish()

	require.Equal(t, []byte{
		0x55,       // push ebp
		0x89, 0xe5, // mov ebp, esp
		0xb8, 0xbe, 0xba, 0xfe, 0xca, // mov eax, 0xcafebabe
		0x5d, // pop ebp
		0xc3, // ret
	}, b.Code())
}

func TestBuilder_BranchHandleBinding(t *testing.T) {
	b := newTestBuilder()
	b.EmitFrame(0)
	b.EmitConst(0)
	jz := b.EmitJz()
	b.EmitConst(int32(0xdead))
	b.EmitReturn(0)
	jz.Target(b.EmitLabel())
	b.EmitConst(int32(0xbeef))
	b.EmitReturn(0)
	b.Finish()

	require.Equal(t, []byte{
		0x55,
		0x89, 0xe5,
		0x31, 0xc0,
		0x3d, 0x00, 0x00, 0x00, 0x00,
		0x0f, 0x84, 0x07, 0x00, 0x00, 0x00,
		0xb8, 0xad, 0xde, 0x00, 0x00,
		0x5d,
		0xc3,
		0xb8, 0xef, 0xbe, 0x00, 0x00,
		0x5d,
		0xc3,
	}, b.Code())
}

func TestBuilder_EmitAfterFinishPanics(t *testing.T) {
	b := newTestBuilder()
	b.EmitFrame(0)
	b.EmitConst(0)
	b.EmitReturn(0)
	b.Finish()

	require.Panics(t, func() { b.EmitConst(1) })
	require.Panics(t, func() { b.EmitAdd() })
	require.Panics(t, func() { b.EmitLabel() })
	require.Panics(t, func() { b.Finish() })
}

func TestBuilder_ClearReopens(t *testing.T) {
	b := newTestBuilder()
	b.EmitFrame(0)
	b.EmitConst(1)
	b.EmitReturn(0)
	b.Finish()
	first := append([]byte(nil), b.Code()...)

	b.Clear()
	require.Equal(t, 0, len(b.Code()))

	// Rebuilding the same program after Clear produces a byte-identical
	// image.
	b.EmitFrame(0)
	b.EmitConst(1)
	b.EmitReturn(0)
	b.Finish()
	require.Equal(t, first, b.Code())
}

func TestBuilder_ClearThenDifferentProgram(t *testing.T) {
	b := newTestBuilder()
	b.EmitFrame(0)
	b.EmitConst(1)
	b.EmitConst(2)
	b.EmitAdd()
	b.EmitReturn(0)
	b.Finish()

	b.Clear()
	b.EmitFrame(0)
	b.EmitConst(7)
	b.EmitReturn(0)
	b.Finish()

	require.Equal(t, []byte{
		0x55,
		0x89, 0xe5,
		0xb8, 0x07, 0x00, 0x00, 0x00,
		0x5d,
		0xc3,
	}, b.Code())
}

func TestBuilder_UnboundTargetPanics(t *testing.T) {
	b := newTestBuilder()
	b.EmitFrame(0)
	b.EmitJmp()
	require.Panics(t, func() { b.Finish() })
}

func TestBuilder_DivPanics(t *testing.T) {
	b := newTestBuilder()
	b.EmitFrame(0)
	b.EmitConst(100)
	b.EmitConst(5)
	b.EmitDiv()
	b.EmitReturn(0)
	require.PanicsWithValue(t, "BUG: div is not implemented", func() { b.Finish() })
}

func TestBuilder_CapacityExceededPanics(t *testing.T) {
	b := NewWithBuffer(make([]byte, 8))
	b.EmitFrame(0)
	b.EmitConst(1)
	b.EmitConst(2)
	b.EmitAdd()
	b.EmitReturn(0)
	require.Panics(t, func() { b.Finish() })
}

func TestBuilder_CloseExternalBufferIsNoOp(t *testing.T) {
	b := newTestBuilder()
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestBuilder_ComparisonImages(t *testing.T) {
	// Unfused comparisons booleanize through setcc; each kind selects
	// its own condition code.
	tests := []struct {
		name   string
		emit   func(*Builder)
		setccO byte
	}{
		{name: "lt", emit: (*Builder).EmitLt, setccO: 0x9c},
		{name: "leq", emit: (*Builder).EmitLe, setccO: 0x9e},
		{name: "gt", emit: (*Builder).EmitGt, setccO: 0x9f},
		{name: "geq", emit: (*Builder).EmitGe, setccO: 0x9d},
		{name: "eq", emit: (*Builder).EmitEq, setccO: 0x94},
		{name: "neq", emit: (*Builder).EmitNe, setccO: 0x95},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBuilder()
			b.EmitFrame(0)
			b.EmitConst(1)
			b.EmitConst(2)
			tc.emit(b)
			b.EmitReturn(0)
			b.Finish()
			require.Contains(t, string(b.Code()), string([]byte{0x0f, tc.setccO, 0xc0}))
		})
	}
}

func TestBuilder_DumpIR(t *testing.T) {
	b := newTestBuilder()
	b.EmitFrame(0)
	b.EmitConst(0xff)
	b.EmitReturn(0)
	dump := b.DumpIR()
	require.Contains(t, dump, "frame 0")
	require.Contains(t, dump, "const 0xff")
	require.Contains(t, dump, "return 0")
}
