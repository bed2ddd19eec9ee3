package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/chain"
	"github.com/Mohsinsiddi/w3tx/internal/config"
	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/Mohsinsiddi/w3tx/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	queueStatus  string
	queuePercent int
	queueYes     bool
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage queued transactions",
	Long: `Every transaction sent through w3tx lands in a local queue
(~/.w3tx/queue.json) and stays pending until a receipt arrives.

Sub-commands:
  w3tx queue list      — show queued transactions, newest first
  w3tx queue stats     — counts per status
  w3tx queue refresh   — check receipts of pending transactions once
  w3tx queue speedup   — resend a pending tx at the same nonce with more gas
  w3tx queue cancel    — replace a pending tx with a 0 ETH self-transfer
  w3tx queue remove    — drop an entry from the local queue
  w3tx queue watch     — live board with status polling`,
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued transactions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}

		var filter txqueue.Status
		if queueStatus != "" {
			filter = txqueue.Status(strings.ToLower(queueStatus))
			if !filter.Valid() {
				return fmt.Errorf("unknown status %q (pending, confirmed, failed, cancelled)", queueStatus)
			}
		}

		var txs []txqueue.QueuedTransaction
		for _, tx := range a.registry.List() {
			if filter == "" || tx.Status == filter {
				txs = append(txs, tx)
			}
		}
		if len(txs) == 0 {
			fmt.Println(ui.Info("Queue is empty."))
			fmt.Println(ui.Hint("Send something with: w3tx send --to 0x... --value 0.01"))
			return nil
		}

		fmt.Println(ui.QueueTable(txs, time.Now()).Render())
		fmt.Println(ui.StatsLine(a.registry.Stats()))
		return nil
	},
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue counts per status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		s := a.registry.Stats()
		fmt.Println(ui.KeyValueBlock("Queue", [][2]string{
			{"Pending", fmt.Sprintf("%d", s.Pending)},
			{"Confirmed", fmt.Sprintf("%d", s.Confirmed)},
			{"Failed", fmt.Sprintf("%d", s.Failed)},
			{"Cancelled", fmt.Sprintf("%d", s.Cancelled)},
			{"Total", fmt.Sprintf("%d", s.Total)},
		}))
		return nil
	},
}

var queueRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Check receipts of pending transactions once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.saveOnExit(&err)

		spin := ui.NewSpinner("Checking receipts...")
		spin.Start()
		report := a.monitor.Tick(cmd.Context())
		spin.Stop()

		for _, h := range report.Confirmed {
			fmt.Println(ui.Success("confirmed " + h))
		}
		for _, h := range report.Failed {
			fmt.Println(ui.Err("failed    " + h))
		}
		if report.Errors > 0 {
			fmt.Println(ui.Warn(fmt.Sprintf("%d lookup(s) failed, they stay pending", report.Errors)))
		}
		fmt.Println(ui.Meta(fmt.Sprintf("checked %d pending", report.Checked)))
		fmt.Println(ui.StatsLine(a.registry.Stats()))
		return nil
	},
}

var queueSpeedUpCmd = &cobra.Command{
	Use:   "speedup <hash>",
	Short: "Resend a pending transaction with a higher gas price",
	Long: `Resend a pending transaction at the same nonce with the network gas
price raised by --percent (default from config, 10). The original entry
becomes cancelled and points at the replacement.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, cancel := context.WithTimeout(cmd.Context(), config.RPCTimeout)
		defer cancel()

		a, err := newApp(ctx, appOptions{needSigner: true})
		if err != nil {
			return err
		}
		defer a.saveOnExit(&err)

		percent := cfg.SpeedUpPercent
		if cmd.Flags().Changed("percent") {
			percent = queuePercent
		}

		spin := ui.NewSpinner("Broadcasting replacement...")
		spin.Start()
		added, err := a.replacer.SpeedUp(ctx, args[0], percent)
		spin.Stop()
		if err != nil {
			return err
		}
		printQueued(a, fmt.Sprintf("Sped up (+%d%%)", percent), added)
		return nil
	},
}

var queueCancelCmd = &cobra.Command{
	Use:   "cancel <hash>",
	Short: "Cancel a pending transaction with a 0 ETH self-transfer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if !queueYes && !ui.Confirm(fmt.Sprintf("Cancel %s?", chain.ShortAddr(args[0]))) {
			fmt.Println(ui.Meta("Cancelled."))
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), config.RPCTimeout)
		defer cancel()

		a, err := newApp(ctx, appOptions{needSigner: true})
		if err != nil {
			return err
		}
		defer a.saveOnExit(&err)

		spin := ui.NewSpinner("Broadcasting cancellation...")
		spin.Start()
		added, err := a.replacer.Cancel(ctx, args[0])
		spin.Stop()
		if err != nil {
			return err
		}
		printQueued(a, "Cancellation sent", added)
		return nil
	},
}

var queueRemoveCmd = &cobra.Command{
	Use:   "remove <hash>",
	Short: "Remove an entry from the local queue",
	Long: `Remove an entry from the local queue. The transaction itself is not
affected on chain; a removed pending transaction is simply no longer tracked.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		tx, ok := a.registry.Get(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", txqueue.ErrNotFound, args[0])
		}
		if tx.Status == txqueue.StatusPending && !queueYes &&
			!ui.ConfirmDanger(fmt.Sprintf("%s is still pending. Stop tracking it?", chain.ShortAddr(tx.Hash))) {
			fmt.Println(ui.Meta("Cancelled."))
			return nil
		}
		if err := a.registry.Remove(tx.Hash); err != nil {
			return err
		}
		if err := a.save(); err != nil {
			return err
		}
		fmt.Println(ui.Success("Removed " + tx.Hash))
		return nil
	},
}

var queueWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live queue board with status polling",
	Long: `Open a live board of the queue. Pending transactions are checked every
monitor_interval seconds (config, default 5).

Keys: ↑↓ select · s speed up · x cancel (press twice) · d remove ·
      o open in explorer · c copy hash · r refresh · q quit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		ticks := make(chan ui.MonitorTickMsg, 1)
		var a *app
		onTick := func(r txqueue.TickReport) {
			if r.Changed() {
				if err := a.save(); err != nil {
					log.Warn("saving queue", zap.Error(err))
				}
			}
			select {
			case ticks <- ui.MonitorTickMsg{Report: r, At: time.Now()}:
			default:
			}
		}

		var err error
		a, err = newApp(ctx, appOptions{onTick: onTick})
		if err != nil {
			return err
		}
		if a.chainID == nil {
			// Best effort: explorer links only.
			if id, err := resolveChainID(ctx, a.client, true); err == nil {
				a.network = chain.DescribeNetwork(id.Int64())
			}
		}

		title := "w3tx queue"
		if acct := a.account(); acct != "" {
			title += "  ·  " + chain.ShortAddr(acct)
		}
		board := ui.NewQueueBoard(title, a.network, queueActions{a}, func() ui.QueueSnapshot {
			return ui.QueueSnapshot{Txs: a.registry.List(), Stats: a.registry.Stats()}
		})

		go func() {
			// Check once right away, then on the interval.
			onTick(a.monitor.Tick(ctx))
			a.monitor.Run(ctx) //nolint:errcheck
			close(ticks)
		}()

		err = ui.RunQueueBoard(board, ticks)
		cancel()
		if saveErr := a.save(); err == nil {
			err = saveErr
		}
		return err
	},
}

func init() {
	queueListCmd.Flags().StringVar(&queueStatus, "status", "", "only show entries with this status")
	queueSpeedUpCmd.Flags().IntVar(&queuePercent, "percent", txqueue.DefaultSpeedUpPercent, "gas price increase in percent")
	queueCancelCmd.Flags().BoolVarP(&queueYes, "yes", "y", false, "skip the confirmation prompt")
	queueRemoveCmd.Flags().BoolVarP(&queueYes, "yes", "y", false, "skip the confirmation prompt")

	queueCmd.AddCommand(queueListCmd, queueStatsCmd, queueRefreshCmd, queueSpeedUpCmd,
		queueCancelCmd, queueRemoveCmd, queueWatchCmd)
}
