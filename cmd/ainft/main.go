// ainft is the command line client of an ainftd node.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"

	"github.com/druti2k/ai-nFt/pkg/client"
	"github.com/druti2k/ai-nFt/pkg/crypto"
	"github.com/druti2k/ai-nFt/pkg/svm/programs/ainft"
	"github.com/druti2k/ai-nFt/pkg/types"
)

// Settings are the defaults of the global flags.
type Settings struct {
	URL         string `env:"AINFT_URL"          envDefault:"http://127.0.0.1:8899"`
	Keypair     string `env:"AINFT_KEYPAIR"`
	ProgramID   string `env:"AINFT_PROGRAM_ID"`
	Cluster     string `env:"AINFT_CLUSTER"`
	PriorityFee uint64 `env:"AINFT_PRIORITY_FEE"`
}

const usage = `usage: ainft [flags] <command> [args]

commands:
  keygen [path]                          write a new keypair
  airdrop <lamports> [pubkey]            request lamports from the faucet
  balance [pubkey]                       print a lamport balance
  init <name> <symbol> <uri>             create and initialize a mint
  mint <mint> [token-id image-url text]  mint the unit of a mint
  transfer <mint> <recipient> [token-id] transfer the unit to recipient
  asset <token-id>                       print a registered asset
`

type cli struct {
	settings Settings
	out      io.Writer
	rpc      *client.Client
}

func defaultKeypairPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "id.json"
	}
	return filepath.Join(home, ".config", "ainft", "id.json")
}

func run(ctx context.Context, args []string, out io.Writer) error {
	var settings Settings
	if err := env.Parse(&settings); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if settings.Keypair == "" {
		settings.Keypair = defaultKeypairPath()
	}

	fs := flag.NewFlagSet("ainft", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }
	fs.StringVar(&settings.URL, "url", settings.URL, "ainftd JSON-RPC endpoint")
	fs.StringVar(&settings.Keypair, "keypair", settings.Keypair, "signer keypair file")
	fs.StringVar(&settings.ProgramID, "program-id", settings.ProgramID, "AI-NFT program id")
	fs.StringVar(&settings.Cluster, "cluster", settings.Cluster, "submit transactions to this Solana cluster instead")
	fs.Uint64Var(&settings.PriorityFee, "priority-fee", settings.PriorityFee, "compute unit price in micro-lamports")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	c := &cli{settings: settings, out: out, rpc: client.New(settings.URL)}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "keygen":
		return c.keygen(rest)
	case "airdrop":
		return c.airdrop(ctx, rest)
	case "balance":
		return c.balance(ctx, rest)
	case "init":
		return c.initialize(ctx, rest)
	case "mint":
		return c.mint(ctx, rest)
	case "transfer":
		return c.transfer(ctx, rest)
	case "asset":
		return c.asset(ctx, rest)
	}
	fs.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

func main() {
	logrus.SetLevel(logrus.WarnLevel)
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (c *cli) signer() (*crypto.Keypair, error) {
	kp, err := crypto.LoadKeypair(c.settings.Keypair)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", c.settings.Keypair, err)
	}
	return kp, nil
}

func (c *cli) nfts() (*client.NFTs, error) {
	programID := types.AINFTProgramID
	if c.settings.ProgramID != "" {
		var err error
		if programID, err = types.PubkeyFromBase58(c.settings.ProgramID); err != nil {
			return nil, fmt.Errorf("program id: %w", err)
		}
	}
	var submitter client.Submitter = c.rpc
	if c.settings.Cluster != "" {
		submitter = client.NewClusterSubmitter(c.settings.Cluster)
	}
	return client.NewNFTs(submitter, programID).WithPriorityFee(c.settings.PriorityFee), nil
}

// pubkeyArg parses args[i], defaulting to the signer's address.
func (c *cli) pubkeyArg(args []string, i int) (types.Pubkey, error) {
	if len(args) > i {
		return types.PubkeyFromBase58(args[i])
	}
	kp, err := c.signer()
	if err != nil {
		return types.ZeroPubkey, err
	}
	return kp.Pubkey, nil
}

func (c *cli) keygen(args []string) error {
	path := c.settings.Keypair
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	kp, err := crypto.NewKeypair()
	if err != nil {
		return err
	}
	if err := kp.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "pubkey: %s\n", kp.Pubkey)
	return nil
}

func (c *cli) airdrop(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("airdrop: missing lamports")
	}
	lamports, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("airdrop: lamports: %w", err)
	}
	to, err := c.pubkeyArg(args, 1)
	if err != nil {
		return err
	}
	sig, err := c.rpc.RequestAirdrop(ctx, to, lamports)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "signature: %s\n", sig)
	return nil
}

func (c *cli) balance(ctx context.Context, args []string) error {
	pubkey, err := c.pubkeyArg(args, 0)
	if err != nil {
		return err
	}
	lamports, err := c.rpc.GetBalance(ctx, pubkey)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d lamports (%.9f SOL)\n", lamports, types.Lamports(lamports).SOL())
	return nil
}

func (c *cli) initialize(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errors.New("init: need <name> <symbol> <uri>")
	}
	payer, err := c.signer()
	if err != nil {
		return err
	}
	nfts, err := c.nfts()
	if err != nil {
		return err
	}
	mint, err := crypto.NewKeypair()
	if err != nil {
		return err
	}
	col, err := nfts.InitializeNFT(ctx, payer, mint, ainft.InitializeInstruction{Name: args[0], Symbol: args[1], URI: args[2]})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "mint: %s\nholding: %s\nmetadata: %s\nsignature: %s\n", col.Mint, col.Holding, col.Metadata, col.Signature)
	return nil
}

func (c *cli) mint(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("mint: missing mint address")
	}
	mint, err := types.PubkeyFromBase58(args[0])
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	var rec ainft.MintInstruction
	for i, dst := range []*string{&rec.TokenID, &rec.ImageURL, &rec.Metadata} {
		if len(args) > i+1 {
			*dst = args[i+1]
		}
	}
	minter, err := c.signer()
	if err != nil {
		return err
	}
	nfts, err := c.nfts()
	if err != nil {
		return err
	}
	sig, err := nfts.MintNFT(ctx, minter, mint, rec)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "signature: %s\n", sig)
	return nil
}

func (c *cli) transfer(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("transfer: need <mint> <recipient>")
	}
	mint, err := types.PubkeyFromBase58(args[0])
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	recipient, err := types.PubkeyFromBase58(args[1])
	if err != nil {
		return fmt.Errorf("recipient: %w", err)
	}
	var tokenID string
	if len(args) > 2 {
		tokenID = args[2]
	}
	owner, err := c.signer()
	if err != nil {
		return err
	}
	nfts, err := c.nfts()
	if err != nil {
		return err
	}
	sig, err := nfts.TransferNFT(ctx, owner, mint, recipient, tokenID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "signature: %s\n", sig)
	return nil
}

func (c *cli) asset(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("asset: missing token id")
	}
	asset, err := c.rpc.GetAsset(ctx, args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(asset)
}
