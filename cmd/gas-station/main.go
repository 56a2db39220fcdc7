// gas-station is an operator tool for the gas sponsorship service: it
// inspects the sponsor's on-chain coin set the way the coin pool partitions
// it, and the epoch state the price cache tracks. The sponsorship surface
// itself is a library (package sponsor); embedding services wire their own
// transaction codec and signer.
package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mantlenetworkio/gas-station/chain"
	"github.com/mantlenetworkio/gas-station/chainrpc"
	"github.com/mantlenetworkio/gas-station/signer"
)

var (
	rpcFlag = &cli.StringFlag{
		Name:  "rpc",
		Usage: "Full node JSON-RPC endpoint",
		Value: "http://localhost:9000",
	}
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	sponsorFlag = &cli.StringFlag{
		Name:  "sponsor",
		Usage: "Sponsor address (0x-prefixed hex)",
	}
	seedFlag = &cli.StringFlag{
		Name:  "seed",
		Usage: "Hex-encoded 32 byte key seed, derives the sponsor address",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log.file",
		Usage: "Write logs to a rotated file instead of stderr",
	}
)

func main() {
	app := &cli.App{
		Name:  "gas-station",
		Usage: "inspect the sponsor's fee coin holdings and epoch state",
		Flags: []cli.Flag{rpcFlag, configFlag, sponsorFlag, seedFlag, verbosityFlag, logFileFlag},
		Before: func(ctx *cli.Context) error {
			setupLogging(ctx)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "coins",
				Usage:  "list the sponsor's coins partitioned as the pool would admit them",
				Action: listCoins,
			},
			{
				Name:   "state",
				Usage:  "show the current epoch and reference gas price",
				Action: showState,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(ctx *cli.Context) {
	level := log.FromLegacyLevel(ctx.Int(verbosityFlag.Name))
	var handler slog.Handler
	if file := ctx.String(logFileFlag.Name); file != "" {
		handler = log.JSONHandlerWithLevel(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // MB
			MaxBackups: 5,
		}, level)
	} else {
		handler = log.NewTerminalHandlerWithLevel(os.Stderr, level, true)
	}
	log.SetDefault(log.NewLogger(handler))
}

// sponsorAddress resolves the sponsor address from --sponsor, --seed or the
// config file, in that order.
func sponsorAddress(ctx *cli.Context, cfg *fileConfig) (chain.Address, error) {
	if raw := ctx.String(sponsorFlag.Name); raw != "" {
		return chain.NormalizeAddress(raw)
	}
	if raw := ctx.String(seedFlag.Name); raw != "" {
		seed, err := hex.DecodeString(raw)
		if err != nil {
			return "", fmt.Errorf("invalid key seed: %w", err)
		}
		s, err := signer.NewInMemory(seed)
		if err != nil {
			return "", err
		}
		return s.Address(), nil
	}
	if cfg.Sponsor != "" {
		return chain.NormalizeAddress(cfg.Sponsor)
	}
	return "", fmt.Errorf("no sponsor address: pass --sponsor, --seed or set it in the config file")
}

func dial(ctx *cli.Context, cfg *fileConfig) (*chainrpc.Client, error) {
	url := cfg.RPC
	if ctx.IsSet(rpcFlag.Name) || url == "" {
		url = ctx.String(rpcFlag.Name)
	}
	return chainrpc.Dial(ctx.Context, url)
}

func listCoins(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return err
	}
	owner, err := sponsorAddress(ctx, cfg)
	if err != nil {
		return err
	}
	client, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	var (
		coins  []*chain.Coin
		cursor *string
	)
	for {
		page, err := client.GetCoins(ctx.Context, owner, cursor)
		if err != nil {
			return fmt.Errorf("failed to list coins: %w", err)
		}
		coins = append(coins, page.Data...)
		if !page.HasNextPage || page.NextCursor == nil {
			break
		}
		cursor = page.NextCursor
	}

	pool := cfg.Pool
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Object", "Version", "Balance", "Class"})
	var total uint64
	for _, coin := range coins {
		class := "usable"
		switch {
		case coin.Balance < pool.MinCoinBalance:
			class = "dust"
		case coin.Balance > 2*pool.TargetCoinBalance:
			class = "source"
		}
		total += coin.Balance
		table.Append([]string{
			string(coin.ObjectID),
			strconv.FormatUint(coin.Version, 10),
			strconv.FormatUint(coin.Balance, 10),
			class,
		})
	}
	table.Render()
	log.Info("Sponsor holdings", "owner", owner, "coins", len(coins), "balance", total)
	return nil
}

func showState(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return err
	}
	client, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	state, err := client.LatestSystemState(ctx.Context)
	if err != nil {
		return fmt.Errorf("failed to fetch system state: %w", err)
	}
	fmt.Printf("epoch:              %d\n", state.Epoch)
	fmt.Printf("reference gas price: %d\n", state.ReferenceGasPrice)
	fmt.Printf("epoch start (ms):   %d\n", state.EpochStartMs)
	fmt.Printf("epoch duration (ms): %d\n", state.EpochDurationMs)
	return nil
}
