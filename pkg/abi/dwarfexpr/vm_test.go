package dwarfexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S4 from spec.md §8: {plus_uconst, 16} => bit offset 128.
func TestEvalMemberOffsetBits_PlusUconstFastPath(t *testing.T) {
	bits, ok := EvalMemberOffsetBits([]byte{byte(OpPlusUconst), 16})
	require.True(t, ok)
	assert.Equal(t, int64(128), bits)
}

// S4 from spec.md §8: {lit4, plus_uconst, 3, plus} => 56.
//
// lit4 pushes 4; plus_uconst 3 pops it and pushes 4+3=7; the final "plus"
// then finds only one operand on the stack (the expression deliberately
// underflows), so it is evaluated against the VM's implicit zero for the
// missing operand, leaving 7 as the last known constant. Converted to bits
// by EvalMemberOffsetBits (general path, byte units) that is 7*8 = 56.
func TestEvalMemberOffsetBits_GeneralExpression(t *testing.T) {
	expr := []byte{
		byte(OpLit0) + 4, // lit4 -> push 4
		byte(OpPlusUconst), 3,
		byte(OpPlus),
	}
	bits, ok := EvalMemberOffsetBits(expr)
	require.True(t, ok)
	assert.Equal(t, int64(56), bits)
}

func TestEval_UnsupportedOpcode(t *testing.T) {
	res := Eval([]byte{0xff})
	assert.True(t, res.UnsupportedOpcode)
	assert.False(t, res.HasConstant)
}

func TestEval_RegisterIsUnknown(t *testing.T) {
	res := Eval([]byte{byte(OpReg0) + 3})
	assert.False(t, res.HasConstant)
}

func TestEval_StackOps(t *testing.T) {
	// dup, plus -> doubles the top of stack
	expr := []byte{
		byte(OpConst1u), 5,
		byte(OpDup),
		byte(OpPlus),
	}
	res := Eval(expr)
	require.True(t, res.HasConstant)
	assert.Equal(t, int64(10), res.Constant)
}

func TestEval_FbregIsUnknown(t *testing.T) {
	res := Eval([]byte{byte(OpFbreg), 0x10})
	assert.False(t, res.HasConstant)
}
