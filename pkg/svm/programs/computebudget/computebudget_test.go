package computebudget

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/druti2k/ai-nFt/pkg/svm/syscall"
	"github.com/druti2k/ai-nFt/pkg/types"
)

var payer = types.Pubkey(types.SHA256([]byte("payer")))

func message(ixs ...types.Instruction) *types.Message {
	msg := types.NewMessage(payer, types.Hash{}, ixs...)
	return &msg
}

func TestDecode(t *testing.T) {
	inst, err := Decode(SetComputeUnitLimit(300_000).Data)
	require.NoError(t, err)
	assert.Equal(t, InstructionSetComputeUnitLimit, inst.Kind)
	assert.EqualValues(t, 300_000, inst.ComputeUnitLimit)

	inst, err = Decode(SetComputeUnitPrice(1 << 40).Data)
	require.NoError(t, err)
	assert.EqualValues(t, uint64(1)<<40, inst.ComputeUnitPrice)

	_, err = Decode(nil)
	assert.ErrorIs(t, err, ErrInvalidInstructionData)
	_, err = Decode([]byte{9, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrUnknownInstruction)
	_, err = Decode([]byte{InstructionSetComputeUnitPrice, 1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrInvalidInstructionData)
}

func TestParse(t *testing.T) {
	transfer := types.Instruction{ProgramID: types.SystemProgramID, Accounts: []types.AccountMeta{{Pubkey: payer, IsSigner: true, IsWritable: true}}}

	budget, err := Parse(message(transfer), 1_400_000)
	require.NoError(t, err)
	assert.Equal(t, DefaultBudget(1_400_000), budget)

	budget, err = Parse(message(
		SetComputeUnitLimit(50_000),
		SetComputeUnitPrice(2_000_000),
		SetLoadedAccountsDataSizeLimit(1024),
		RequestHeapFrame(64*1024),
		transfer,
	), 1_400_000)
	require.NoError(t, err)
	assert.EqualValues(t, 50_000, budget.ComputeUnitLimit)
	assert.EqualValues(t, 2_000_000, budget.ComputeUnitPrice)
	assert.EqualValues(t, 1024, budget.LoadedAccountsDataSizeLimit)
	assert.EqualValues(t, 64*1024, budget.HeapFrameSize)
	assert.EqualValues(t, 100_000, budget.PriorityFee())

	budget, err = Parse(message(SetComputeUnitLimit(5_000_000)), 200_000)
	require.NoError(t, err)
	assert.EqualValues(t, 200_000, budget.ComputeUnitLimit)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(message(SetComputeUnitLimit(1), SetComputeUnitLimit(2)), 1_400_000)
	assert.ErrorIs(t, err, ErrDuplicateInstruction)

	_, err = Parse(message(RequestHeapFrame(33*1024+1)), 1_400_000)
	assert.ErrorIs(t, err, ErrInvalidHeapFrameSize)

	_, err = Parse(message(SetLoadedAccountsDataSizeLimit(0)), 1_400_000)
	assert.ErrorIs(t, err, ErrInvalidLoadedAccountsDataSize)
}

func TestPriorityFee(t *testing.T) {
	cases := []struct {
		price uint64
		limit types.ComputeUnits
		want  types.Lamports
	}{
		{0, 200_000, 0},
		{1, 200_000, 1},
		{1_000_000, 200_000, 200_000},
		{1_500_000, 3, 5},
		{math.MaxUint64, 1_400_000, math.MaxUint64},
	}
	for _, tc := range cases {
		b := Budget{ComputeUnitPrice: tc.price, ComputeUnitLimit: tc.limit}
		assert.Equal(t, tc.want, b.PriorityFee(), "price %d limit %d", tc.price, tc.limit)
	}
}

func TestExecute_ChargesInstructionCost(t *testing.T) {
	ix := SetComputeUnitPrice(10)
	ctx := syscall.NewExecutionContext(types.ComputeBudgetProgramID, nil, ix.Data, 1_000)
	require.NoError(t, New().Execute(ctx, &ix))
	assert.EqualValues(t, 1_000-InstructionCost, ctx.GetComputeUnitsRemaining())

	bad := types.Instruction{ProgramID: types.ComputeBudgetProgramID, Data: []byte{7}}
	assert.ErrorIs(t, New().Execute(ctx, &bad), ErrUnknownInstruction)
}
