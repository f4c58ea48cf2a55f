package snapshot

import (
	"archive/tar"
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/druti2k/ai-nFt/pkg/accounts"
	"github.com/druti2k/ai-nFt/pkg/types"
)

func seeded(t *testing.T, n int) *accounts.MemoryDB {
	t.Helper()
	db := accounts.NewMemoryDB()
	for i := 0; i < n; i++ {
		pubkey := types.Pubkey(types.SHA256([]byte{byte(i), byte(i >> 8)}))
		acc := types.NewDataAccount(types.Lamports(1_000+i), []byte{byte(i), 1, 2}, types.TokenProgramID)
		acc.Executable = i%7 == 0
		require.NoError(t, db.SetAccount(pubkey, acc))
	}
	return db
}

func TestRoundTrip(t *testing.T) {
	src := seeded(t, 2_500)
	bankHash := types.SHA256([]byte("bank"))

	var buf bytes.Buffer
	written, err := Write(&buf, src, 42, bankHash)
	require.NoError(t, err)
	assert.EqualValues(t, 2_500, written.AccountsCount)

	dst := accounts.NewMemoryDB()
	read, err := Read(&buf, dst)
	require.NoError(t, err)
	assert.EqualValues(t, 42, read.Slot)
	assert.Equal(t, bankHash, read.BankHash)
	assert.Equal(t, written.AccountsHash, read.AccountsHash)
	assert.Equal(t, written.LamportsTotal, read.LamportsTotal)

	want, err := accounts.ComputeAccountsHash(src)
	require.NoError(t, err)
	got, err := accounts.ComputeAccountsHash(dst)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCreateAndLoad_Badger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "ledger.tar.zst")
	_, err := Create(path, seeded(t, 10), 3, types.ZeroHash)
	require.NoError(t, err)

	db, err := accounts.NewInMemoryBadgerDB()
	require.NoError(t, err)
	defer db.Close()

	manifest, err := Load(path, db)
	require.NoError(t, err)
	assert.EqualValues(t, 10, manifest.AccountsCount)
	assert.EqualValues(t, 10, db.GetAccountsCount())
}

func TestRead_Rejections(t *testing.T) {
	var buf bytes.Buffer
	_, err := Write(&buf, seeded(t, 3), 1, types.ZeroHash)
	require.NoError(t, err)
	archive := buf.Bytes()

	_, err = Read(bytes.NewReader(archive), seeded(t, 1))
	assert.ErrorIs(t, err, ErrTargetNotEmpty)

	// an archive that is valid zstd but not a tar stream
	var junk bytes.Buffer
	enc, err := zstd.NewWriter(&junk)
	require.NoError(t, err)
	_, err = enc.Write([]byte("not a tar archive"))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	_, err = Read(&junk, accounts.NewMemoryDB())
	assert.ErrorIs(t, err, ErrInvalidArchive)
}

func TestRead_DetectsTampering(t *testing.T) {
	var buf bytes.Buffer
	manifest, err := Write(&buf, seeded(t, 4), 1, types.ZeroHash)
	require.NoError(t, err)

	var body bytes.Buffer
	_, err = Write(&body, seeded(t, 5), 1, types.ZeroHash)
	require.NoError(t, err)
	dec, err := zstd.NewReader(&body)
	require.NoError(t, err)
	defer dec.Close()
	tr := tar.NewReader(dec)
	_, err = tr.Next()
	require.NoError(t, err)
	_, err = tr.Next()
	require.NoError(t, err)
	accountsBin, err := io.ReadAll(tr)
	require.NoError(t, err)

	// the five-account body no longer matches the four-account manifest
	var tampered bytes.Buffer
	require.NoError(t, writeArchive(&tampered, manifest, accountsBin))
	_, err = Read(&tampered, accounts.NewMemoryDB())
	assert.ErrorIs(t, err, ErrHashMismatch)

	manifest.AccountsCount = 5
	manifest.LamportsTotal += 1_004
	tampered.Reset()
	require.NoError(t, writeArchive(&tampered, manifest, accountsBin))
	_, err = Read(&tampered, accounts.NewMemoryDB())
	assert.ErrorIs(t, err, ErrHashMismatch)
	assert.Contains(t, err.Error(), "accounts hash")
}
