package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/Mohsinsiddi/w3tx/internal/config"
	"github.com/Mohsinsiddi/w3tx/internal/token"
	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/Mohsinsiddi/w3tx/internal/ui"
	"github.com/spf13/cobra"
)

var (
	tokenOwner string
	tokenWait  bool
	tokenYes   bool
)

// ── root token command ────────────────────────────────────────────────────────

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Read and write ERC-20 tokens through the queue",
	Long: `Read ERC-20 metadata and send mint, transfer and approve transactions.
Writes take a nonce from the queue's allocator and are tracked in the queue.

A token may be given as an address or as an alias saved with 'w3tx token add'.

Sub-commands:
  w3tx token info      — name, symbol, decimals, balance and self-allowance
  w3tx token mint      — mint tokens to your wallet
  w3tx token transfer  — transfer tokens
  w3tx token approve   — approve a spender
  w3tx token add       — save a token alias
  w3tx token remove    — delete a token alias
  w3tx token list      — list token aliases`,
}

// ── token info ────────────────────────────────────────────────────────────────

var tokenInfoCmd = &cobra.Command{
	Use:   "info <token>",
	Short: "Show token metadata and a wallet's balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := cfg.ResolveToken(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), config.RPCTimeout)
		defer cancel()

		a, err := newApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		owner := tokenOwner
		if owner == "" {
			owner = a.account()
		}

		spin := ui.NewSpinner("Reading token...")
		spin.Start()
		info, err := a.tokens.Info(ctx, addr, owner)
		spin.Stop()
		if err != nil {
			return err
		}

		pairs := [][2]string{
			{"Address", ui.Addr(info.Address)},
			{"Name", info.Name},
			{"Symbol", info.Symbol},
			{"Decimals", fmt.Sprintf("%d", info.Decimals)},
		}
		if owner != "" {
			pairs = append(pairs,
				[2]string{"Owner", ui.Addr(owner)},
				[2]string{"Balance", info.Format(info.Balance) + " " + info.Symbol},
				[2]string{"Self-allowance", info.Format(info.Allowance) + " " + info.Symbol},
			)
		}
		fmt.Println(ui.KeyValueBlock("Token", pairs))
		return nil
	},
}

// ── token writes ──────────────────────────────────────────────────────────────

var tokenMintCmd = &cobra.Command{
	Use:   "mint <token> <amount>",
	Short: "Mint tokens to your wallet",
	Example: `  w3tx token mint 0x5FbD...0aa3 100
  w3tx token mint tt 2.5 --wait`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTokenWrite(cmd, args[0], args[1], func(ctx context.Context, a *app, addr string, amt token.Amount) (txqueue.QueuedTransaction, error) {
			return a.actions.Mint(ctx, addr, amt)
		})
	},
}

var tokenTransferCmd = &cobra.Command{
	Use:     "transfer <token> <to> <amount>",
	Short:   "Transfer tokens",
	Example: `  w3tx token transfer tt 0x7099...79C8 1.5`,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		to := args[1]
		return runTokenWrite(cmd, args[0], args[2], func(ctx context.Context, a *app, addr string, amt token.Amount) (txqueue.QueuedTransaction, error) {
			return a.actions.Transfer(ctx, addr, to, amt)
		})
	},
}

var tokenApproveCmd = &cobra.Command{
	Use:     "approve <token> <spender> <amount>",
	Short:   "Approve a spender",
	Example: `  w3tx token approve tt 0x7099...79C8 1000`,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		spender := args[1]
		return runTokenWrite(cmd, args[0], args[2], func(ctx context.Context, a *app, addr string, amt token.Amount) (txqueue.QueuedTransaction, error) {
			return a.actions.Approve(ctx, addr, spender, amt)
		})
	},
}

type tokenWrite func(ctx context.Context, a *app, addr string, amount token.Amount) (txqueue.QueuedTransaction, error)

// runTokenWrite resolves the token, parses amount with its decimals and
// sends the write through the queue.
func runTokenWrite(cmd *cobra.Command, tokenArg, amountArg string, write tokenWrite) (err error) {
	addr, err := cfg.ResolveToken(tokenArg)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, appOptions{needSigner: true})
	if err != nil {
		return err
	}
	defer a.saveOnExit(&err)

	readCtx, readCancel := context.WithTimeout(ctx, config.RPCTimeout)
	defer readCancel()
	info, err := a.tokens.Info(readCtx, addr, "")
	if err != nil {
		return err
	}
	raw, err := info.Parse(amountArg)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amountArg, err)
	}
	amount := token.Amount{Raw: raw, Decimals: info.Decimals, Symbol: info.Symbol}

	if !tokenYes && !ui.Confirm(fmt.Sprintf("%s %s on %s?", cmd.Name(), amount, info.Name)) {
		fmt.Println(ui.Meta("Cancelled."))
		return nil
	}

	writeCtx, writeCancel := context.WithTimeout(ctx, config.RPCTimeout)
	defer writeCancel()
	spin := ui.NewSpinner("Broadcasting transaction...")
	spin.Start()
	tx, err := write(writeCtx, a, addr, amount)
	spin.Stop()
	if err != nil {
		return err
	}
	printQueued(a, "Transaction Sent", tx)

	if tokenWait {
		reportSettled(waitForSettle(ctx, a, tx.Hash, config.TxConfirmTimeout))
	}
	return nil
}

// ── aliases ───────────────────────────────────────────────────────────────────

var tokenAddCmd = &cobra.Command{
	Use:   "add <alias> <address>",
	Short: "Save a token alias",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.AddToken(args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Token %q saved.", args[0])))
		return nil
	},
}

var tokenRemoveCmd = &cobra.Command{
	Use:   "remove <alias>",
	Short: "Delete a token alias",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RemoveToken(args[0]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Println(ui.Success(fmt.Sprintf("Token %q removed.", args[0])))
		return nil
	},
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List token aliases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Tokens) == 0 {
			fmt.Println(ui.Info("No token aliases saved."))
			fmt.Println(ui.Hint("Add one with: w3tx token add tt 0xTokenAddress"))
			return nil
		}
		aliases := make([]string, 0, len(cfg.Tokens))
		for alias := range cfg.Tokens {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)

		t := ui.NewTable([]ui.Column{
			{Title: "Alias", Width: 12},
			{Title: "Address", Width: 44},
		})
		for _, alias := range aliases {
			t.AddRow(ui.Row{ui.Val(alias), ui.Addr(cfg.Tokens[alias])})
		}
		fmt.Println(t.Render())
		return nil
	},
}

func init() {
	tokenInfoCmd.Flags().StringVar(&tokenOwner, "owner", "", "address whose balance to show (default: wallet)")
	for _, c := range []*cobra.Command{tokenMintCmd, tokenTransferCmd, tokenApproveCmd} {
		c.Flags().BoolVar(&tokenWait, "wait", false, "wait until the transaction settles")
		c.Flags().BoolVarP(&tokenYes, "yes", "y", false, "skip the confirmation prompt")
	}
	tokenCmd.AddCommand(tokenInfoCmd, tokenMintCmd, tokenTransferCmd, tokenApproveCmd,
		tokenAddCmd, tokenRemoveCmd, tokenListCmd)
}
