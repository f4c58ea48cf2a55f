// Package snapshot exports and imports the accounts database as a
// zstd-compressed tar archive.
//
// An archive holds two entries: manifest.json, describing the ledger at
// export time, followed by accounts.bin, a sequence of
// pubkey(32) || len(u32 LE) || serialized account records. Loading
// verifies the accounts hash recorded in the manifest.
package snapshot

import (
	"archive/tar"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"github.com/druti2k/ai-nFt/pkg/accounts"
	"github.com/druti2k/ai-nFt/pkg/types"
)

const (
	// Version is the archive format version.
	Version = 1

	manifestEntry = "manifest.json"
	accountsEntry = "accounts.bin"

	// commitBatch bounds the number of accounts per Commit while loading.
	commitBatch = 1024
)

var (
	ErrInvalidManifest = errors.New("invalid manifest")
	ErrInvalidArchive  = errors.New("invalid archive")
	ErrHashMismatch    = errors.New("hash mismatch")
	ErrTargetNotEmpty  = errors.New("target accounts database is not empty")
)

// Manifest describes the ledger an archive was taken from.
type Manifest struct {
	Version       uint32     `json:"version"`
	Slot          types.Slot `json:"slot"`
	BankHash      types.Hash `json:"-"`
	AccountsHash  types.Hash `json:"-"`
	AccountsCount uint64     `json:"accounts_count"`
	LamportsTotal uint64     `json:"lamports_total"`
	CreatedAt     time.Time  `json:"created_at"`
}

// MarshalJSON writes hashes as base58.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	type Alias Manifest
	return json.Marshal(&struct {
		BankHash     string `json:"bank_hash"`
		AccountsHash string `json:"accounts_hash"`
		*Alias
	}{
		BankHash:     m.BankHash.String(),
		AccountsHash: m.AccountsHash.String(),
		Alias:        (*Alias)(m),
	})
}

// UnmarshalJSON reads hashes as base58.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	type Alias Manifest
	aux := &struct {
		BankHash     string `json:"bank_hash"`
		AccountsHash string `json:"accounts_hash"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	var err error
	if m.BankHash, err = types.HashFromBase58(aux.BankHash); err != nil {
		return fmt.Errorf("invalid bank hash: %w", err)
	}
	if m.AccountsHash, err = types.HashFromBase58(aux.AccountsHash); err != nil {
		return fmt.Errorf("invalid accounts hash: %w", err)
	}
	return nil
}

// Write exports every account in db to w.
func Write(w io.Writer, db accounts.AccountsDB, slot types.Slot, bankHash types.Hash) (*Manifest, error) {
	manifest := &Manifest{
		Version:   Version,
		Slot:      slot,
		BankHash:  bankHash,
		CreatedAt: time.Now().UTC(),
	}

	var body bytes.Buffer
	var deltas []types.AccountDelta
	err := db.ForEach(func(pubkey types.Pubkey, account *types.Account) error {
		data, err := accounts.EncodeAccount(account)
		if err != nil {
			return fmt.Errorf("encode %s: %w", pubkey, err)
		}
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(len(data)))
		body.Write(pubkey[:])
		body.Write(size[:])
		body.Write(data)

		manifest.AccountsCount++
		manifest.LamportsTotal += uint64(account.Lamports)
		deltas = append(deltas, types.AccountDelta{Pubkey: pubkey, NewAccount: account})
		return nil
	})
	if err != nil {
		return nil, err
	}
	manifest.AccountsHash = accounts.ComputeAccountsDeltaHash(deltas)

	if err := writeArchive(w, manifest, body.Bytes()); err != nil {
		return nil, err
	}
	return manifest, nil
}

func writeArchive(w io.Writer, manifest *Manifest, body []byte) error {
	header, err := json.Marshal(manifest)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	tw := tar.NewWriter(enc)
	for _, entry := range []struct {
		name string
		data []byte
	}{
		{manifestEntry, header},
		{accountsEntry, body},
	} {
		hdr := &tar.Header{Name: entry.name, Mode: 0o644, Size: int64(len(entry.data)), ModTime: manifest.CreatedAt}
		if err := tw.WriteHeader(hdr); err != nil {
			enc.Close()
			return err
		}
		if _, err := tw.Write(entry.data); err != nil {
			enc.Close()
			return err
		}
	}
	if err := tw.Close(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Create writes a snapshot of db to path. The file appears only once it
// is complete.
func Create(path string, db accounts.AccountsDB, slot types.Slot, bankHash types.Hash) (*Manifest, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	manifest, err := Write(tmp, db, slot, bankHash)
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"path":     path,
		"slot":     slot,
		"accounts": manifest.AccountsCount,
	}).Info("snapshot written")
	return manifest, nil
}

// Read imports the archive in r into db, which must be empty. The
// imported accounts must hash to the manifest's accounts hash.
func Read(r io.Reader, db accounts.AccountsDB) (*Manifest, error) {
	if db.GetAccountsCount() != 0 {
		return nil, ErrTargetNotEmpty
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()
	tr := tar.NewReader(dec)

	hdr, err := tr.Next()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	if hdr.Name != manifestEntry {
		return nil, fmt.Errorf("%w: first entry is %q", ErrInvalidArchive, hdr.Name)
	}
	var manifest Manifest
	if err := json.NewDecoder(tr).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if manifest.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidManifest, manifest.Version)
	}

	hdr, err = tr.Next()
	if err != nil || hdr.Name != accountsEntry {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidArchive, accountsEntry)
	}

	var (
		batch    []types.AccountDelta
		all      []types.AccountDelta
		lamports uint64
		prefix   [36]byte
	)
	for {
		if _, err := io.ReadFull(tr, prefix[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("%w: truncated record: %v", ErrInvalidArchive, err)
		}
		var pubkey types.Pubkey
		copy(pubkey[:], prefix[:32])
		data := make([]byte, binary.LittleEndian.Uint32(prefix[32:]))
		if _, err := io.ReadFull(tr, data); err != nil {
			return nil, fmt.Errorf("%w: truncated account %s: %v", ErrInvalidArchive, pubkey, err)
		}
		account, err := accounts.DecodeAccount(data)
		if err != nil {
			return nil, fmt.Errorf("%w: account %s: %v", ErrInvalidArchive, pubkey, err)
		}

		delta := types.AccountDelta{Pubkey: pubkey, NewAccount: account}
		batch = append(batch, delta)
		all = append(all, delta)
		lamports += uint64(account.Lamports)
		if len(batch) == commitBatch {
			if err := db.Commit(batch); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}
	if err := db.Commit(batch); err != nil {
		return nil, err
	}

	if uint64(len(all)) != manifest.AccountsCount || lamports != manifest.LamportsTotal {
		return nil, fmt.Errorf("%w: archive holds %d accounts and %d lamports, manifest says %d and %d",
			ErrHashMismatch, len(all), lamports, manifest.AccountsCount, manifest.LamportsTotal)
	}
	if got := accounts.ComputeAccountsDeltaHash(all); got != manifest.AccountsHash {
		return nil, fmt.Errorf("%w: accounts hash %s, manifest says %s", ErrHashMismatch, got, manifest.AccountsHash)
	}
	return &manifest, nil
}

// Load imports the snapshot at path into db.
func Load(path string, db accounts.AccountsDB) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	manifest, err := Read(f, db)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"path":     path,
		"slot":     manifest.Slot,
		"accounts": manifest.AccountsCount,
	}).Info("snapshot loaded")
	return manifest, nil
}
