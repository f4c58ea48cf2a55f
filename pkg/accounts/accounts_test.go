package accounts

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/druti2k/ai-nFt/pkg/types"
)

func testPubkey(seed string) types.Pubkey {
	return sha256.Sum256([]byte(seed))
}

func testAccount(lamports types.Lamports, data []byte, owner types.Pubkey) *types.Account {
	return &types.Account{
		Lamports: lamports,
		Data:     data,
		Owner:    owner,
	}
}

// backends returns a fresh instance of every AccountsDB implementation.
func backends(t *testing.T) map[string]AccountsDB {
	t.Helper()

	bdb, err := NewInMemoryBadgerDB()
	require.NoError(t, err)
	t.Cleanup(func() { bdb.Close() })

	return map[string]AccountsDB{
		"memory": NewMemoryDB(),
		"badger": bdb,
	}
}

func TestAccountsDB_SetAndGet(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			pubkey := testPubkey("holder")
			account := testAccount(1_000_000_000, []byte("token state"), types.TokenProgramID)

			require.NoError(t, db.SetAccount(pubkey, account))

			got, err := db.GetAccount(pubkey)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, account.Lamports, got.Lamports)
			assert.Equal(t, account.Data, got.Data)
			assert.Equal(t, account.Owner, got.Owner)
			assert.True(t, db.HasAccount(pubkey))
			assert.EqualValues(t, 1, db.GetAccountsCount())
		})
	}
}

func TestAccountsDB_GetMissing(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := db.GetAccount(testPubkey("missing"))
			require.NoError(t, err)
			assert.Nil(t, got)
			assert.False(t, db.HasAccount(testPubkey("missing")))
		})
	}
}

func TestAccountsDB_Delete(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			pubkey := testPubkey("doomed")
			require.NoError(t, db.SetAccount(pubkey, testAccount(10, nil, types.SystemProgramID)))
			require.NoError(t, db.DeleteAccount(pubkey))
			require.NoError(t, db.DeleteAccount(pubkey))

			assert.False(t, db.HasAccount(pubkey))
			assert.EqualValues(t, 0, db.GetAccountsCount())
		})
	}
}

func TestAccountsDB_Commit(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			kept := testPubkey("kept")
			created := testPubkey("created")
			drained := testPubkey("drained")
			require.NoError(t, db.SetAccount(kept, testAccount(5, nil, types.SystemProgramID)))
			require.NoError(t, db.SetAccount(drained, testAccount(7, nil, types.SystemProgramID)))

			err := db.Commit([]types.AccountDelta{
				{Pubkey: kept, NewAccount: testAccount(50, []byte{1}, types.SystemProgramID)},
				{Pubkey: created, NewAccount: testAccount(1, nil, types.SystemProgramID)},
				{Pubkey: drained, NewAccount: testAccount(0, nil, types.SystemProgramID)},
			})
			require.NoError(t, err)

			got, err := db.GetAccount(kept)
			require.NoError(t, err)
			assert.EqualValues(t, 50, got.Lamports)
			assert.Equal(t, []byte{1}, got.Data)

			assert.True(t, db.HasAccount(created))
			assert.False(t, db.HasAccount(drained))
			assert.EqualValues(t, 2, db.GetAccountsCount())
		})
	}
}

func TestAccountsDB_ForEach(t *testing.T) {
	for name, db := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := map[types.Pubkey]types.Lamports{}
			for i := 0; i < 20; i++ {
				pk := testPubkey(fmt.Sprintf("acct-%d", i))
				want[pk] = types.Lamports(i + 1)
				require.NoError(t, db.SetAccount(pk, testAccount(types.Lamports(i+1), nil, types.SystemProgramID)))
			}

			got := map[types.Pubkey]types.Lamports{}
			err := db.ForEach(func(pubkey types.Pubkey, account *types.Account) error {
				got[pubkey] = account.Lamports
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestMemoryDB_DataIsolation(t *testing.T) {
	db := NewMemoryDB()
	pubkey := testPubkey("isolated")
	account := testAccount(1, []byte{1, 2, 3}, types.SystemProgramID)
	require.NoError(t, db.SetAccount(pubkey, account))

	account.Data[0] = 9
	got, err := db.GetAccount(pubkey)
	require.NoError(t, err)
	assert.Equal(t, byte(1), got.Data[0])

	got.Data[1] = 9
	again, err := db.GetAccount(pubkey)
	require.NoError(t, err)
	assert.Equal(t, byte(2), again.Data[1])
}

func TestMemoryDB_Concurrent(t *testing.T) {
	db := NewMemoryDB()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pk := testPubkey(fmt.Sprintf("concurrent-%d", i))
			assert.NoError(t, db.SetAccount(pk, testAccount(types.Lamports(i), []byte{byte(i)}, types.SystemProgramID)))
			_, err := db.GetAccount(pk)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 50, db.GetAccountsCount())
}

func TestAccountRecord_RoundTrip(t *testing.T) {
	account := &types.Account{
		Lamports:   42,
		Data:       []byte("mint"),
		Owner:      types.TokenProgramID,
		Executable: true,
		RentEpoch:  7,
	}

	data, err := EncodeAccount(account)
	require.NoError(t, err)

	got, err := DecodeAccount(data)
	require.NoError(t, err)
	assert.Equal(t, account, got)
}

func TestDecodeAccount_Corrupt(t *testing.T) {
	data, err := EncodeAccount(testAccount(1, []byte("abcdef"), types.SystemProgramID))
	require.NoError(t, err)

	badFlag := append([]byte{}, data...)
	badFlag[48] = 2

	for name, rec := range map[string][]byte{
		"empty":     nil,
		"truncated": data[:len(data)-3],
		"trailing":  append(append([]byte{}, data...), 0),
		"bad flag":  badFlag,
	} {
		_, err := DecodeAccount(rec)
		assert.ErrorIs(t, err, ErrCorruptRecord, name)
	}

	empty, err := EncodeAccount(&types.Account{Owner: types.SystemProgramID})
	require.NoError(t, err)
	got, err := DecodeAccount(empty)
	require.NoError(t, err)
	assert.Nil(t, got.Data)
}

func TestComputeAccountsDeltaHash(t *testing.T) {
	assert.Equal(t, types.ZeroHash, ComputeAccountsDeltaHash(nil))

	a := types.AccountDelta{Pubkey: testPubkey("a"), NewAccount: testAccount(1, nil, types.SystemProgramID)}
	b := types.AccountDelta{Pubkey: testPubkey("b"), NewAccount: testAccount(2, nil, types.SystemProgramID)}

	single := ComputeAccountsDeltaHash([]types.AccountDelta{a})
	assert.Equal(t, a.NewAccount.Hash(a.Pubkey), single)

	// order independent
	assert.Equal(t,
		ComputeAccountsDeltaHash([]types.AccountDelta{a, b}),
		ComputeAccountsDeltaHash([]types.AccountDelta{b, a}),
	)

	changed := b
	changed.NewAccount = testAccount(3, nil, types.SystemProgramID)
	assert.NotEqual(t,
		ComputeAccountsDeltaHash([]types.AccountDelta{a, b}),
		ComputeAccountsDeltaHash([]types.AccountDelta{a, changed}),
	)
}

func TestComputeMerkleRoot_17Leaves(t *testing.T) {
	leaves := make([]types.Hash, 17)
	for i := range leaves {
		leaves[i] = types.SHA256([]byte{byte(i)})
	}

	first := hashChildren(leaves[:16])
	want := hashChildren([]types.Hash{first, leaves[16]})
	assert.Equal(t, want, computeMerkleRoot(leaves))
}

func TestComputeAccountsHash_MatchesBackends(t *testing.T) {
	dbs := backends(t)
	for _, db := range dbs {
		for i := 0; i < 5; i++ {
			require.NoError(t, db.SetAccount(testPubkey(fmt.Sprintf("h-%d", i)), testAccount(types.Lamports(i+1), nil, types.SystemProgramID)))
		}
	}

	memHash, err := ComputeAccountsHash(dbs["memory"])
	require.NoError(t, err)
	badgerHash, err := ComputeAccountsHash(dbs["badger"])
	require.NoError(t, err)
	assert.Equal(t, memHash, badgerHash)
	assert.False(t, memHash.IsZero())
}

func BenchmarkMemoryDB_SetAccount(b *testing.B) {
	db := NewMemoryDB()
	account := testAccount(1, make([]byte, 165), types.TokenProgramID)
	pubkey := testPubkey("bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		db.SetAccount(pubkey, account)
	}
}
