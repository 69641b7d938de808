package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"zchain/blockchain"
	"zchain/config"
	"zchain/currency"
	"zchain/exception"
	"zchain/jsonx"
	"zchain/logx"
	"zchain/miner"
	"zchain/monitoring"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	planPath    string
	threads     int
	difficulty  int
	strategy    string
	jsonOutput  bool
	metricsAddr string
	timeout     time.Duration
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine a chain of transfers and verify every block",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("threads") {
			cfg.Miner.Threads = threads
		}
		if cmd.Flags().Changed("difficulty") {
			cfg.Chain.Difficulty = difficulty
		}
		if cmd.Flags().Changed("strategy") {
			cfg.Miner.Strategy = strategy
		}
		if cmd.Flags().Changed("metrics-addr") {
			cfg.Monitoring.MetricsAddr = metricsAddr
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		plan := config.DefaultPlan()
		if planPath != "" {
			loaded, err := config.LoadPlan(planPath)
			if err != nil {
				return err
			}
			plan = *loaded
		}
		if plan.Difficulty > 0 && !cmd.Flags().Changed("difficulty") {
			cfg.Chain.Difficulty = plan.Difficulty
		}

		ctx := cmd.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		startMetricsServer(cfg.Monitoring.MetricsAddr)
		_, err := mineChain(ctx, &cfg, plan, cmd.OutOrStdout(), jsonOutput)
		return err
	},
}

func init() {
	rootCmd.AddCommand(mineCmd)
	mineCmd.Flags().StringVarP(&planPath, "plan", "p", "", "YAML chain plan; the built-in demo transfers are used when empty")
	mineCmd.Flags().IntVarP(&threads, "threads", "t", 4, "Number of concurrent search workers per block")
	mineCmd.Flags().IntVarP(&difficulty, "difficulty", "d", 4, "Number of leading buffer characters required in a block hash")
	mineCmd.Flags().StringVar(&strategy, "strategy", "random", "Nonce strategy: random|ranged")
	mineCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print blocks as JSON")
	mineCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose prometheus metrics on this address")
	mineCmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort mining after this long (0 = no limit)")
}

func startMetricsServer(addr string) {
	if addr == "" {
		return
	}
	monitoring.InitMetrics()
	mux := http.NewServeMux()
	monitoring.RegisterMetrics(mux)
	exception.SafeGo("metrics-server", func() {
		logx.Info("MONITORING", fmt.Sprintf("Serving metrics on %s", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logx.Error("MONITORING", "Metrics server stopped: ", err)
		}
	})
}

func mineChain(ctx context.Context, cfg *config.Config, plan config.Plan, out io.Writer, asJSON bool) (*currency.Chain, error) {
	hasher, err := cfg.Hasher()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.BlockOptions()
	if err != nil {
		return nil, err
	}
	mc, err := cfg.MinerConfig()
	if err != nil {
		return nil, err
	}
	m, err := miner.NewCpuMiner[currency.Transaction](mc)
	if err != nil {
		return nil, err
	}

	genesisTxn, err := currency.FromTransfer(plan.Genesis)
	if err != nil {
		return nil, err
	}
	genesis, err := blockchain.NewGenesisBlock(genesisTxn, cfg.Chain.Difficulty, hasher, opts...)
	if err != nil {
		return nil, err
	}
	chain, err := blockchain.NewChain(genesis)
	if err != nil {
		return nil, err
	}
	if err := printBlock(out, genesis, asJSON); err != nil {
		return nil, err
	}

	start := time.Now()
	for i, transfer := range plan.Transfers {
		txn, err := currency.FromTransfer(transfer)
		if err != nil {
			return nil, errors.WithMessagef(err, "transfer %d", i)
		}
		b, err := m.Extend(ctx, chain, txn, cfg.Chain.Difficulty)
		if err != nil {
			return nil, errors.WithMessagef(err, "mine transfer %d", i)
		}
		if err := printBlock(out, b, asJSON); err != nil {
			return nil, err
		}
	}

	if !asJSON {
		book := currency.NewAddressBookFromChain(chain)
		fmt.Fprintf(out, "Addresses:\n%s", book)
		fmt.Fprintf(out, "Time taken for execution: %.3f seconds\n", time.Since(start).Seconds())
	}
	return chain, nil
}

func printBlock(out io.Writer, b *blockchain.Block[currency.Transaction], asJSON bool) error {
	verr := b.Validate()
	if asJSON {
		return jsonx.NewEncoder(out).Encode(b)
	}
	fmt.Fprintln(out, b)
	fmt.Fprintf(out, "Verified: %t\n", verr == nil)
	if verr != nil {
		fmt.Fprintf(out, "Verification error: %v\n", verr)
	}
	return nil
}
