package op

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo(NewArray)
	require.Equal(t, "newarray", info.Name)
	require.Equal(t, 3, info.OperandCount)
	require.Equal(t, NewArray, info.Code)
}

func TestGetInfoOperandCounts(t *testing.T) {
	tests := []struct {
		code     Code
		name     string
		operands int
	}{
		{Add, "addi", 2},
		{Sub, "subi", 2},
		{RegToReg, "mov", 2},
		{Ret, "ret", 0},
		{LitToReg, "movl", 2},
		{MemRead, "memread4", 1},
		{Call, "call", 1},
		{Jz, "jz", 1},
		{Jnz, "jnz", 1},
		{Jmp, "jmp", 1},
		{PushReg, "push", 1},
		{PopReg, "pop", 1},
		{LineNum, "sourceline", 1},
		{CheckBounds, "checkbounds", 2},
		{MemZeroPtr, "memwrite.ptr.0", 0},
		{LoadSPOffs, "load.sp.offs", 1},
		{CheckNull, "checknull.ptr", 0},
		{ZeroMemory, "zeromem", 1},
		{LoopCheckOff, "loopcheckoff", 0},
		{DynamicBounds, "dynamicbounds", 1},
		{NewUserObject, "newuserobject", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := GetInfo(tt.code)
			require.Equal(t, tt.name, info.Name)
			require.Equal(t, tt.operands, info.OperandCount)
			require.Len(t, info.Operands, tt.operands)
		})
	}
}

func TestEveryOpcodeDefined(t *testing.T) {
	for c := Code(1); c < NumCodes; c++ {
		require.True(t, Valid(c), "opcode %d has no info", c)
	}
	require.False(t, Valid(Invalid))
	require.False(t, Valid(NumCodes))
	require.False(t, Valid(-3))
}

func TestRegisterString(t *testing.T) {
	require.Equal(t, "ax", AX.String())
	require.Equal(t, "mar", MAR.String())
	require.Equal(t, "?", Register(42).String())
}

func TestPredicates(t *testing.T) {
	require.True(t, IsJump(Jz))
	require.False(t, IsJump(Call))
	require.True(t, IsBoolean(StringsEqual))
	require.False(t, IsBoolean(AddReg))
}
