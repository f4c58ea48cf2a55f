package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(seed string) Pubkey {
	return Pubkey(SHA256([]byte(seed)))
}

func TestNewMessage_AccountOrder(t *testing.T) {
	payer, signer, writable, readonly, program := key("payer"), key("signer"), key("writable"), key("readonly"), key("program")

	msg := NewMessage(payer, Hash{}, Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			{Pubkey: readonly},
			{Pubkey: writable, IsWritable: true},
			{Pubkey: signer, IsSigner: true},
			{Pubkey: payer, IsWritable: true},
		},
		Data: []byte{1, 2},
	})

	require.Len(t, msg.AccountKeys, 5)
	assert.Equal(t, payer, msg.AccountKeys[0])
	assert.Equal(t, signer, msg.AccountKeys[1])
	assert.Equal(t, writable, msg.AccountKeys[2])
	assert.Equal(t, program, msg.AccountKeys[4])
	assert.Equal(t, MessageHeader{NumRequiredSignatures: 2, NumReadonlySignedAccounts: 1, NumReadonlyUnsignedAccounts: 2}, msg.Header)

	assert.True(t, msg.IsWritable(0))
	assert.False(t, msg.IsWritable(1))
	assert.True(t, msg.IsWritable(2))
	assert.False(t, msg.IsWritable(3))

	ix, err := msg.Decompile(msg.Instructions[0])
	require.NoError(t, err)
	assert.Equal(t, program, ix.ProgramID)
	assert.Equal(t, AccountMeta{Pubkey: signer, IsSigner: true}, ix.Accounts[2])
}

func TestDeserializeTransaction(t *testing.T) {
	tx := NewTransaction(key("payer"), SHA256([]byte("blockhash")), Instruction{
		ProgramID: SystemProgramID,
		Accounts:  []AccountMeta{{Pubkey: key("to"), IsWritable: true}},
		Data:      []byte{2, 0, 0, 0},
	})
	wire, err := tx.Serialize()
	require.NoError(t, err)

	got, err := DeserializeTransaction(wire)
	require.NoError(t, err)
	assert.Equal(t, tx.Message.AccountKeys, got.Message.AccountKeys)
	assert.Equal(t, tx.Message.RecentBlockhash, got.Message.RecentBlockhash)
	assert.Equal(t, tx.Message.Instructions[0].Data, got.Message.Instructions[0].Data)

	_, err = DeserializeTransaction(wire[:len(wire)-3])
	assert.Error(t, err)

	// a v0 message starts with the version prefix 0x80
	versioned := append([]byte{}, wire...)
	versioned[1+64] = 0x80
	_, err = DeserializeTransaction(versioned)
	assert.ErrorContains(t, err, "versioned message")
}

func TestCompactU16(t *testing.T) {
	for _, v := range []uint16{0, 0x7f, 0x80, 0x3fff, 0x4000, 0xffff} {
		enc := SerializeCompactU16(v)
		got, n, err := ParseCompactU16(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(enc), n)
	}
}

func TestWellKnownIDs(t *testing.T) {
	assert.Equal(t, "ComputeBudget111111111111111111111111111111", ComputeBudgetProgramID.String())
	assert.Equal(t, "11111111111111111111111111111111", SystemProgramID.String())
	assert.NotEqual(t, AINFTProgramID, TokenProgramID)
}
