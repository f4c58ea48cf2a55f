// ainftd runs a local AI-NFT ledger and serves it over JSON-RPC.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/druti2k/ai-nFt/pkg/accounts"
	"github.com/druti2k/ai-nFt/pkg/crypto"
	"github.com/druti2k/ai-nFt/pkg/ledger"
	"github.com/druti2k/ai-nFt/pkg/metrics"
	"github.com/druti2k/ai-nFt/pkg/rpc"
	"github.com/druti2k/ai-nFt/pkg/snapshot"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

// node is a running ledger with its servers.
type node struct {
	cfg  Config
	log  *logrus.Entry
	db   accounts.AccountsDB
	bank *ledger.Bank

	metrics    *metrics.Metrics
	health     *metrics.HealthChecker
	collectors *metrics.CollectorManager
	metricsSrv *metrics.Server
	rpcSrv     *rpc.Server
}

func openDB(cfg Config) (accounts.AccountsDB, error) {
	if cfg.inMemory() {
		return accounts.NewMemoryDB(), nil
	}
	if err := os.MkdirAll(cfg.accountsPath(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return accounts.NewBadgerDB(cfg.accountsPath())
}

// loadFaucet reads the faucet keypair, creating it on first start. An
// empty path gives a keypair that lives as long as the process.
func loadFaucet(path string) (*crypto.Keypair, error) {
	if path == "" {
		return crypto.NewKeypair()
	}
	kp, err := crypto.LoadKeypair(path)
	if err == nil {
		return kp, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if kp, err = crypto.NewKeypair(); err != nil {
		return nil, err
	}
	if err := kp.Save(path); err != nil {
		return nil, fmt.Errorf("save faucet keypair: %w", err)
	}
	return kp, nil
}

// openNode opens storage and the bank. Nothing listens yet.
func openNode(cfg Config) (*node, error) {
	n := &node{
		cfg:     cfg,
		log:     logrus.StandardLogger().WithField("type", "ainftd"),
		metrics: metrics.NewMetrics(),
		health:  metrics.NewHealthChecker(cfg.Metrics.MaxMemoryBytes),
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	n.db = db

	if cfg.Snapshot.In != "" {
		if err := n.loadSnapshot(cfg.Snapshot.In); err != nil {
			db.Close()
			return nil, err
		}
	}

	faucet, err := loadFaucet(cfg.faucetPath())
	if err != nil {
		db.Close()
		return nil, err
	}
	n.bank, err = ledger.NewBank(db, cfg.bankConfig(), ledger.WithFaucet(faucet), ledger.WithMetrics(n.metrics))
	if err != nil {
		db.Close()
		return nil, err
	}

	n.health.RegisterCheck("accounts", metrics.ProbeCheck(func(context.Context) error {
		if !db.HasAccount(types.SystemProgramID) {
			return errors.New("genesis accounts missing")
		}
		return nil
	}))
	n.collectors = metrics.NewCollectorManager(cfg.Metrics.CollectInterval)
	n.collectors.Add(metrics.RuntimeCollector(n.metrics))
	n.collectors.Add(metrics.AccountsCollector(n.metrics, db))

	n.log.WithFields(logrus.Fields{
		"data_dir": cfg.General.DataDir,
		"faucet":   faucet.Pubkey.String(),
		"accounts": db.GetAccountsCount(),
	}).Info("ledger opened")
	return n, nil
}

func (n *node) loadSnapshot(path string) error {
	if n.db.GetAccountsCount() > 0 {
		n.log.WithField("path", path).Warn("ledger is not empty, skipping snapshot")
		return nil
	}
	manifest, err := snapshot.Load(path, n.db)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	n.log.WithFields(logrus.Fields{
		"path":     path,
		"accounts": manifest.AccountsCount,
	}).Info("snapshot loaded")
	return nil
}

// start brings up the collectors and servers.
func (n *node) start(ctx context.Context) error {
	n.collectors.Start(ctx)

	if n.cfg.Metrics.Enabled {
		n.metricsSrv = metrics.NewServer(
			metrics.WithAddr(n.cfg.Metrics.Addr),
			metrics.WithMetrics(n.metrics),
			metrics.WithHealthChecker(n.health),
		)
		if err := n.metricsSrv.Start(); err != nil {
			return err
		}
	}

	rpcCfg := rpc.DefaultServerConfig()
	rpcCfg.Address = n.cfg.RPC.Addr
	if len(n.cfg.RPC.AllowedOrigins) > 0 {
		rpcCfg.AllowedOrigins = n.cfg.RPC.AllowedOrigins
	}
	if n.cfg.RPC.MaxRequestSize > 0 {
		rpcCfg.MaxRequestSize = n.cfg.RPC.MaxRequestSize
	}
	if n.cfg.RPC.RateLimitRPS > 0 {
		rpcCfg.EnableRateLimit = true
		rpcCfg.RateLimitRPS = n.cfg.RPC.RateLimitRPS
		rpcCfg.RateLimitBurst = 2 * n.cfg.RPC.RateLimitRPS
	}
	n.rpcSrv = rpc.NewServer(rpcCfg, n.bank)
	if err := n.rpcSrv.Start(); err != nil {
		return err
	}

	n.health.SetReady(true)
	return nil
}

// close stops the servers, writes the shutdown snapshot and closes
// storage.
func (n *node) close(ctx context.Context) error {
	n.health.SetReady(false)

	var errs []error
	if n.rpcSrv != nil {
		errs = append(errs, n.rpcSrv.Stop(ctx))
	}
	if n.metricsSrv != nil {
		errs = append(errs, n.metricsSrv.Stop(ctx))
	}
	if n.collectors != nil {
		n.collectors.Stop()
	}

	if n.cfg.Snapshot.Out != "" {
		if _, err := snapshot.Create(n.cfg.Snapshot.Out, n.db, n.bank.Slot(), n.bank.BankHash()); err != nil {
			errs = append(errs, fmt.Errorf("write snapshot: %w", err))
		}
	}

	n.log.WithFields(logrus.Fields{
		"slot":      n.bank.Slot(),
		"bank_hash": n.bank.BankHash().String(),
		"accounts":  n.db.GetAccountsCount(),
	}).Info("ledger closed")
	errs = append(errs, n.db.Close())
	return errors.Join(errs...)
}

func main() {
	f := newFlags("ainftd")
	if err := f.fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if *f.version {
		fmt.Printf("ainftd %s (%s)\n", Version, GitCommit)
		return
	}

	cfg, err := loadConfig(*f.configFile)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	f.apply(&cfg)
	if err := configureLogging(cfg.General); err != nil {
		logrus.WithError(err).Fatal("invalid logging configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	n, err := openNode(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open ledger")
	}
	if err := n.start(ctx); err != nil {
		n.close(context.Background())
		logrus.WithError(err).Fatal("failed to start")
	}
	logrus.WithFields(logrus.Fields{
		"version": Version,
		"rpc":     n.rpcSrv.Addr(),
		"metrics": cfg.Metrics.Enabled,
	}).Info("ainftd started")

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := n.close(shutdownCtx); err != nil {
		logrus.WithError(err).Error("shutdown")
		os.Exit(1)
	}
}
