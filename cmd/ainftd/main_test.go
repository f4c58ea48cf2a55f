package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/druti2k/ai-nFt/pkg/client"
	"github.com/druti2k/ai-nFt/pkg/crypto"
)

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"general": {"data_dir": "/srv/ainft", "log_level": "debug"},
		"rpc": {"addr": ":7000"},
		"metrics": {"collect_interval": 5000000000}
	}`), 0o600))
	t.Setenv("AINFT_RPC_ADDR", ":7100")
	t.Setenv("AINFT_RPC_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/ainft", cfg.General.DataDir)
	assert.Equal(t, "debug", cfg.General.LogLevel)
	assert.Equal(t, ":7100", cfg.RPC.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.RPC.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Metrics.CollectInterval)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)

	f := newFlags("test")
	require.NoError(t, f.fs.Parse([]string{"-rpc-addr", ":7200", "-data-dir", memoryDataDir}))
	f.apply(&cfg)
	assert.Equal(t, ":7200", cfg.RPC.Addr)
	assert.True(t, cfg.inMemory())
	assert.Equal(t, "debug", cfg.General.LogLevel)
	assert.Empty(t, cfg.faucetPath())
}

func TestLoadConfig_Errors(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err = loadConfig(path)
	assert.Error(t, err)

	assert.Error(t, configureLogging(GeneralConfig{LogLevel: "loud"}))
	assert.Error(t, configureLogging(GeneralConfig{LogLevel: "info", LogFormat: "xml"}))
	require.NoError(t, configureLogging(GeneralConfig{LogLevel: "warn", LogFormat: "json"}))
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.TextFormatter{})
}

func TestLoadFaucet_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "faucet.json")
	first, err := loadFaucet(path)
	require.NoError(t, err)
	second, err := loadFaucet(path)
	require.NoError(t, err)
	assert.Equal(t, first.Pubkey, second.Pubkey)
}

func testConfig(t *testing.T) Config {
	cfg := defaultConfig()
	cfg.General.DataDir = memoryDataDir
	cfg.RPC.Addr = "127.0.0.1:0"
	cfg.Metrics.Enabled = false
	return cfg
}

func TestNode_ServesAndSnapshots(t *testing.T) {
	ctx := context.Background()
	snap := filepath.Join(t.TempDir(), "ledger.tar.zst")

	cfg := testConfig(t)
	cfg.Snapshot.Out = snap
	n, err := openNode(cfg)
	require.NoError(t, err)
	require.NoError(t, n.start(ctx))
	assert.True(t, n.health.IsReady())

	alice, err := crypto.NewKeypair()
	require.NoError(t, err)
	c := client.New("http://" + n.rpcSrv.Addr())
	_, err = c.RequestAirdrop(ctx, alice.Pubkey, 3_000_000)
	require.NoError(t, err)
	require.NoError(t, n.close(ctx))

	cfg = testConfig(t)
	cfg.Snapshot.In = snap
	restored, err := openNode(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { restored.close(context.Background()) })

	balance, err := restored.bank.GetBalance(alice.Pubkey)
	require.NoError(t, err)
	assert.EqualValues(t, 3_000_000, balance)

	status := restored.health.Check(ctx)
	assert.True(t, status.Healthy)
}
