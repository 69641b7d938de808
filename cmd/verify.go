package cmd

import (
	"context"
	"fmt"
	"io"

	"zchain/blockchain"
	"zchain/config"
	"zchain/currency"
	"zchain/miner"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var verifyDemoCmd = &cobra.Command{
	Use:   "verify-demo",
	Short: "Mine the demo chain, verify it and show the state machine rejecting misuse",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		return verifyDemo(cmd.Context(), &cfg, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(verifyDemoCmd)
}

func verifyDemo(ctx context.Context, cfg *config.Config, out io.Writer) error {
	chain, err := mineChain(ctx, cfg, config.DefaultPlan(), io.Discard, false)
	if err != nil {
		return err
	}
	if err := chain.Validate(); err != nil {
		return errors.WithMessage(err, "freshly mined chain failed verification")
	}
	fmt.Fprintf(out, "Chain of %d blocks verified\n", chain.Len())

	tip := chain.Tip()
	mc, err := cfg.MinerConfig()
	if err != nil {
		return err
	}
	m, err := miner.NewCpuMiner[currency.Transaction](mc)
	if err != nil {
		return err
	}
	if _, err := m.Mine(ctx, tip); errors.Is(err, blockchain.ErrInvalidOperation) {
		fmt.Fprintf(out, "Re-mining block at height %d rejected: %v\n", tip.Height(), err)
	} else {
		return errors.Errorf("re-mining block at height %d was not rejected: %v", tip.Height(), err)
	}

	pending, err := chain.NextBlock(currency.NewTransaction("Mallory", "Mallory", 1_000_000), cfg.Chain.Difficulty)
	if err != nil {
		return err
	}
	var stateErr *blockchain.BlockStateError
	if err := chain.Append(pending); errors.As(err, &stateErr) {
		fmt.Fprintf(out, "Unmined block rejected: %s violation at height %d\n", stateErr.Violation, stateErr.Height)
	} else {
		return errors.Errorf("unmined block was not rejected: %v", err)
	}
	return nil
}
