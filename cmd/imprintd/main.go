// imprintd is the marketplace ledger daemon. It hosts the engine behind a
// local JSON-RPC API.
//
// Usage:
//
//	imprintd init --owner <addr> --treasury <addr>   Write genesis + config
//	imprintd                                         Run the daemon
package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/imprintworks/imprintd/config"
	"github.com/imprintworks/imprintd/internal/currency"
	"github.com/imprintworks/imprintd/internal/engine"
	klog "github.com/imprintworks/imprintd/internal/log"
	"github.com/imprintworks/imprintd/internal/metrics"
	"github.com/imprintworks/imprintd/internal/rpc"
	"github.com/imprintworks/imprintd/internal/storage"
	"github.com/imprintworks/imprintd/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	flagDataDir string
	flagNetwork string
	flagRPCAddr string
	flagLogLvl  string
)

func main() {
	root := &cobra.Command{
		Use:           "imprintd",
		Short:         "Marketplace ledger daemon",
		RunE:          runDaemon,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagDataDir, "datadir", "", "data directory (default ~/.imprintd)")
	root.PersistentFlags().StringVar(&flagNetwork, "network", "", "mainnet or testnet")
	root.Flags().StringVar(&flagRPCAddr, "rpc-addr", "", "RPC listen address host:port")
	root.Flags().StringVar(&flagLogLvl, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(initCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig builds the runtime config: defaults, then the TOML file, then
// command-line overrides.
func loadConfig() (*config.Config, error) {
	network := config.Mainnet
	if flagNetwork == "testnet" {
		network = config.Testnet
	} else if flagNetwork != "" && flagNetwork != "mainnet" {
		return nil, fmt.Errorf("unknown network %q", flagNetwork)
	}

	cfg := config.Default(network)
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if err := config.LoadFile(cfg.ConfigFile(), cfg); err != nil {
		return nil, err
	}
	// Flags win over the file.
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagNetwork != "" {
		cfg.Network = network
	}
	if flagLogLvl != "" {
		cfg.Log.Level = flagLogLvl
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	types.SetAddressHRP(cfg.AddressHRP())

	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	gen, err := config.LoadGenesis(cfg.GenesisFile())
	if err != nil {
		return fmt.Errorf("%w (run \"imprintd init\" first)", err)
	}
	if gen.Network != string(cfg.Network) {
		return fmt.Errorf("genesis network %q does not match configured network %q", gen.Network, cfg.Network)
	}

	stateDB, err := storage.NewBadger(cfg.StateDir())
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer stateDB.Close()

	curDB, err := storage.NewBadger(cfg.CurrencyDir())
	if err != nil {
		return fmt.Errorf("open currency db: %w", err)
	}
	defer curDB.Close()
	asset := currency.NewStoreAsset(curDB, engine.MarketAddress())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	eng, err := engine.New(stateDB, asset, engine.Params{
		Owner:           gen.Owner,
		Treasury:        gen.Treasury,
		PlatformFeeBps:  gen.PlatformFeeBps,
		SecondaryFeeBps: gen.SecondaryFeeBps,
		Network:         gen.Network,
		Seed:            gen.SelectorSeed,
	}, m)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	var srv *rpc.Server
	if cfg.RPC.Enabled {
		addr := cfg.RPC.ListenAddr()
		if flagRPCAddr != "" {
			addr = flagRPCAddr
		}
		srv = rpc.New(addr, eng, asset, reg, cfg.RPC.CORSOrigins)
		if err := srv.Start(); err != nil {
			return err
		}
	}

	klog.Engine.Info().
		Str("network", string(cfg.Network)).
		Str("owner", gen.Owner.String()).
		Msg("imprintd running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if srv != nil {
		if err := srv.Stop(); err != nil {
			klog.RPC.Error().Err(err).Msg("RPC shutdown error")
		}
	}
	return nil
}

func initCmd() *cobra.Command {
	var (
		owner        string
		treasury     string
		platformBps  uint32
		secondaryBps uint32
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the genesis file and a default config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			types.SetAddressHRP(cfg.AddressHRP())

			ownerAddr, err := types.ParseAddress(owner)
			if err != nil {
				return fmt.Errorf("invalid --owner: %w", err)
			}
			treasuryAddr := ownerAddr
			if treasury != "" {
				treasuryAddr, err = types.ParseAddress(treasury)
				if err != nil {
					return fmt.Errorf("invalid --treasury: %w", err)
				}
			}

			var seed types.Hash
			if _, err := rand.Read(seed[:]); err != nil {
				return fmt.Errorf("generate selector seed: %w", err)
			}

			gen := &config.Genesis{
				Network:         string(cfg.Network),
				Owner:           ownerAddr,
				Treasury:        treasuryAddr,
				PlatformFeeBps:  platformBps,
				SecondaryFeeBps: secondaryBps,
				SelectorSeed:    seed,
			}
			if err := config.WriteGenesis(cfg.GenesisFile(), gen); err != nil {
				return err
			}
			// Write the config file only if the operator has none yet.
			if _, err := os.Stat(cfg.ConfigFile()); os.IsNotExist(err) {
				if err := config.WriteFile(cfg.ConfigFile(), cfg); err != nil {
					return err
				}
			}

			fmt.Printf("Genesis written to %s\n", cfg.GenesisFile())
			fmt.Printf("Owner:    %s\n", gen.Owner)
			fmt.Printf("Treasury: %s\n", gen.Treasury)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "deployment owner address (required)")
	cmd.Flags().StringVar(&treasury, "treasury", "", "treasury address (defaults to owner)")
	cmd.Flags().Uint32Var(&platformBps, "platform-fee-bps", 250, "primary-sale platform fee in basis points")
	cmd.Flags().Uint32Var(&secondaryBps, "secondary-fee-bps", 250, "secondary-sale platform fee in basis points")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
