package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/druti2k/ai-nFt/pkg/accounts"
	"github.com/druti2k/ai-nFt/pkg/crypto"
	"github.com/druti2k/ai-nFt/pkg/ledger"
	"github.com/druti2k/ai-nFt/pkg/rpc"
)

func newNode(t *testing.T) string {
	t.Helper()
	faucet, err := crypto.NewKeypair()
	require.NoError(t, err)
	bank, err := ledger.NewBank(accounts.NewMemoryDB(), ledger.DefaultConfig(), ledger.WithFaucet(faucet))
	require.NoError(t, err)
	ts := httptest.NewServer(rpc.NewServer(nil, bank).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func exec(t *testing.T, url, keypair string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	full := append([]string{"-url", url, "-keypair", keypair}, args...)
	require.NoError(t, run(context.Background(), full, &out), "ainft %v: %s", args, out.String())
	return out.String()
}

var fieldRE = regexp.MustCompile(`(?m)^(\w+): (\S+)$`)

func field(t *testing.T, out, name string) string {
	t.Helper()
	for _, m := range fieldRE.FindAllStringSubmatch(out, -1) {
		if m[1] == name {
			return m[2]
		}
	}
	t.Fatalf("no %s in output %q", name, out)
	return ""
}

func TestCLI_NFTFlow(t *testing.T) {
	url := newNode(t)
	dir := t.TempDir()
	alice := filepath.Join(dir, "alice.json")
	bob := filepath.Join(dir, "bob.json")

	exec(t, url, alice, "keygen")
	bobKey := field(t, exec(t, url, alice, "keygen", bob), "pubkey")

	exec(t, url, alice, "airdrop", "5000000000")
	assert.Contains(t, exec(t, url, alice, "balance"), "5000000000 lamports")

	mint := field(t, exec(t, url, alice, "init", "Dream", "AIN", "ipfs://dream"), "mint")
	exec(t, url, alice, "mint", mint, "99", "https://img/99.png", "a lighthouse at dusk")
	exec(t, url, alice, "transfer", mint, bobKey, "99")

	var asset rpc.AssetResult
	require.NoError(t, json.Unmarshal([]byte(exec(t, url, alice, "asset", "99")), &asset))
	assert.Equal(t, bobKey, asset.Owner)
	assert.Equal(t, mint, asset.Mint)
	assert.Equal(t, "a lighthouse at dusk", asset.Metadata)
}

func TestCLI_Errors(t *testing.T) {
	url := newNode(t)
	dir := t.TempDir()
	key := filepath.Join(dir, "id.json")
	var out bytes.Buffer

	assert.Error(t, run(context.Background(), []string{"-url", url}, &out))
	assert.Contains(t, out.String(), "usage")
	assert.Error(t, run(context.Background(), []string{"-url", url, "frobnicate"}, &out))
	assert.Error(t, run(context.Background(), []string{"-url", url, "-keypair", key, "balance"}, &out))

	exec(t, url, key, "keygen")
	assert.Error(t, run(context.Background(), []string{"-url", url, "-keypair", key, "keygen"}, &out))
	assert.Error(t, run(context.Background(), []string{"-url", url, "-keypair", key, "airdrop", "lots"}, &out))
	assert.Error(t, run(context.Background(), []string{"-url", url, "-keypair", key, "asset", "missing"}, &out))
	assert.Error(t, run(context.Background(), []string{"-url", url, "-keypair", key, "-program-id", "bad!", "mint", key}, &out))
}
