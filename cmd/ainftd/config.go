package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"

	"github.com/druti2k/ai-nFt/pkg/ledger"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// memoryDataDir selects in-memory storage.
const memoryDataDir = ":memory:"

// Config represents the JSON configuration file structure. Environment
// variables override the file and explicit flags override both.
type Config struct {
	General  GeneralConfig  `json:"general"`
	RPC      RPCConfig      `json:"rpc"`
	Metrics  MetricsConfig  `json:"metrics"`
	Ledger   LedgerConfig   `json:"ledger"`
	Snapshot SnapshotConfig `json:"snapshot"`
}

type GeneralConfig struct {
	DataDir   string `json:"data_dir"   env:"AINFT_DATA_DIR"`
	LogLevel  string `json:"log_level"  env:"AINFT_LOG_LEVEL"`
	LogFormat string `json:"log_format" env:"AINFT_LOG_FORMAT"`
}

type RPCConfig struct {
	Addr           string   `json:"addr"             env:"AINFT_RPC_ADDR"`
	AllowedOrigins []string `json:"allowed_origins"  env:"AINFT_RPC_ALLOWED_ORIGINS" envSeparator:","`
	RateLimitRPS   float64  `json:"rate_limit_rps"   env:"AINFT_RPC_RATE_LIMIT_RPS"`
	MaxRequestSize int64    `json:"max_request_size" env:"AINFT_RPC_MAX_REQUEST_SIZE"`
}

type MetricsConfig struct {
	Enabled         bool          `json:"enabled"          env:"AINFT_METRICS_ENABLED"`
	Addr            string        `json:"addr"             env:"AINFT_METRICS_ADDR"`
	CollectInterval time.Duration `json:"collect_interval" env:"AINFT_METRICS_COLLECT_INTERVAL"`
	MaxMemoryBytes  uint64        `json:"max_memory_bytes" env:"AINFT_METRICS_MAX_MEMORY_BYTES"`
}

type LedgerConfig struct {
	LamportsPerSignature uint64 `json:"lamports_per_signature" env:"AINFT_LAMPORTS_PER_SIGNATURE"`
	ComputeUnitLimit     uint64 `json:"compute_unit_limit"     env:"AINFT_COMPUTE_UNIT_LIMIT"`
	FaucetLamports       uint64 `json:"faucet_lamports"        env:"AINFT_FAUCET_LAMPORTS"`
	// FaucetKeypair defaults to faucet.json in the data directory.
	FaucetKeypair string `json:"faucet_keypair" env:"AINFT_FAUCET_KEYPAIR"`
}

type SnapshotConfig struct {
	// In is loaded into an empty ledger at startup.
	In string `json:"in" env:"AINFT_SNAPSHOT_IN"`
	// Out is written at shutdown.
	Out string `json:"out" env:"AINFT_SNAPSHOT_OUT"`
}

func defaultConfig() Config {
	bank := ledger.DefaultConfig()
	return Config{
		General: GeneralConfig{
			DataDir:   "/var/lib/ainft",
			LogLevel:  "info",
			LogFormat: "text",
		},
		RPC: RPCConfig{
			Addr:           ":8899",
			AllowedOrigins: []string{"*"},
			MaxRequestSize: 64 * 1024,
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			Addr:            ":9090",
			CollectInterval: 10 * time.Second,
		},
		Ledger: LedgerConfig{
			LamportsPerSignature: uint64(bank.LamportsPerSignature),
			ComputeUnitLimit:     uint64(bank.ComputeUnitLimit),
			FaucetLamports:       uint64(bank.FaucetLamports),
		},
	}
}

// loadConfig reads path over the defaults, then applies the environment.
// A missing file is not an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logrus.WithField("path", path).Debug("config file not found, using defaults")
	case err != nil:
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// flags are the command line overrides.
type flags struct {
	fs *flag.FlagSet

	configFile  *string
	dataDir     *string
	logLevel    *string
	logFormat   *string
	rpcAddr     *string
	rateLimit   *float64
	metrics     *bool
	metricsAddr *string
	faucet      *string
	snapshotIn  *string
	snapshotOut *string
	version     *bool
}

func newFlags(name string) *flags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &flags{
		fs:          fs,
		configFile:  fs.String("config", "/etc/ainft/config.json", "Path to JSON configuration file"),
		dataDir:     fs.String("data-dir", "", "Data directory, or :memory: for an in-memory ledger"),
		logLevel:    fs.String("log-level", "", "Log level: debug, info, warn, error"),
		logFormat:   fs.String("log-format", "", "Log format: text or json"),
		rpcAddr:     fs.String("rpc-addr", "", "JSON-RPC listen address"),
		rateLimit:   fs.Float64("rate-limit", 0, "Per-client RPC requests per second (0 disables)"),
		metrics:     fs.Bool("enable-metrics", false, "Enable the metrics server"),
		metricsAddr: fs.String("metrics-addr", "", "Metrics server listen address"),
		faucet:      fs.String("faucet-keypair", "", "Faucet keypair file"),
		snapshotIn:  fs.String("snapshot-in", "", "Snapshot to load into an empty ledger"),
		snapshotOut: fs.String("snapshot-out", "", "Snapshot to write at shutdown"),
		version:     fs.Bool("version", false, "Print version and exit"),
	}
}

// apply copies every explicitly set flag into cfg.
func (f *flags) apply(cfg *Config) {
	set := make(map[string]bool)
	f.fs.Visit(func(fl *flag.Flag) {
		set[fl.Name] = true
	})

	if set["data-dir"] {
		cfg.General.DataDir = *f.dataDir
	}
	if set["log-level"] {
		cfg.General.LogLevel = *f.logLevel
	}
	if set["log-format"] {
		cfg.General.LogFormat = *f.logFormat
	}
	if set["rpc-addr"] {
		cfg.RPC.Addr = *f.rpcAddr
	}
	if set["rate-limit"] {
		cfg.RPC.RateLimitRPS = *f.rateLimit
	}
	if set["enable-metrics"] {
		cfg.Metrics.Enabled = *f.metrics
	}
	if set["metrics-addr"] {
		cfg.Metrics.Addr = *f.metricsAddr
	}
	if set["faucet-keypair"] {
		cfg.Ledger.FaucetKeypair = *f.faucet
	}
	if set["snapshot-in"] {
		cfg.Snapshot.In = *f.snapshotIn
	}
	if set["snapshot-out"] {
		cfg.Snapshot.Out = *f.snapshotOut
	}
}

func (c Config) inMemory() bool {
	return c.General.DataDir == memoryDataDir
}

func (c Config) accountsPath() string {
	return filepath.Join(c.General.DataDir, "accounts")
}

func (c Config) faucetPath() string {
	if c.Ledger.FaucetKeypair != "" || c.inMemory() {
		return c.Ledger.FaucetKeypair
	}
	return filepath.Join(c.General.DataDir, "faucet.json")
}

func (c Config) bankConfig() ledger.Config {
	return ledger.Config{
		LamportsPerSignature: types.Lamports(c.Ledger.LamportsPerSignature),
		ComputeUnitLimit:     types.ComputeUnits(c.Ledger.ComputeUnitLimit),
		FaucetLamports:       types.Lamports(c.Ledger.FaucetLamports),
	}
}

// configureLogging applies the level and format to the standard logger.
func configureLogging(cfg GeneralConfig) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	switch cfg.LogFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	return nil
}
