package cmd

import (
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/chain"
	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/Mohsinsiddi/w3tx/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var (
	batchTo     string
	batchAmount string
	batchCount  int
	batchDelay  time.Duration
	batchYes    bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Fire a rapid batch of transfers with consecutive nonces",
	Long: `Send --count transfers of --amount ETH to one recipient. The nonces
are reserved up front as one contiguous range and every transfer uses the
same gas price snapshot. Press Ctrl-C to stop after the current transfer.

Examples:
  w3tx batch --to 0x7099...79C8 --count 5
  w3tx batch --to 0x7099...79C8 --amount 0.01 --count 20 --delay 500ms`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if !common.IsHexAddress(batchTo) {
			return fmt.Errorf("--to must be a valid address, got %q", batchTo)
		}
		amount, err := chain.ParseEther(batchAmount)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", batchAmount, err)
		}
		to := common.HexToAddress(batchTo).Hex()

		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{needSigner: true})
		if err != nil {
			return err
		}
		defer a.saveOnExit(&err)

		total := new(big.Int).Mul(amount, big.NewInt(int64(batchCount)))
		fmt.Println(ui.KeyValueBlock("Rapid Batch", [][2]string{
			{"From", ui.Addr(a.account())},
			{"To", ui.Addr(to)},
			{"Transfers", fmt.Sprintf("%d × %s %s", batchCount, batchAmount, a.network.Currency)},
			{"Total", chain.WeiToETH(total) + " " + a.network.Currency},
			{"Delay", batchDelay.String()},
			{"Network", a.network.Display},
		}))
		if !batchYes && !ui.Confirm(fmt.Sprintf("Send %d transactions?", batchCount)) {
			fmt.Println(ui.Meta("Cancelled."))
			return nil
		}

		// First Ctrl-C stops the batch cooperatively.
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)

		done := make(chan struct{})
		var result txqueue.RapidBatch
		var runErr error
		go func() {
			defer close(done)
			result, runErr = a.batch.Start(ctx, txqueue.BatchConfig{
				Recipient:   to,
				Amount:      amount,
				Count:       batchCount,
				Delay:       batchDelay,
				AmountLabel: batchAmount,
			})
		}()

		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()
		frame := 0
	loop:
		for {
			select {
			case <-done:
				break loop
			case <-sigs:
				if a.batch.Stop() {
					fmt.Fprintln(os.Stderr, "\n"+ui.Warn("Stopping after the current transfer..."))
				}
			case <-ticker.C:
				if snap, ok := a.batch.Current(); ok {
					fmt.Fprint(os.Stderr, "\r"+ui.BatchProgress(snap, time.Now(), frame))
				}
				frame++
			}
		}
		fmt.Fprintln(os.Stderr, "\r"+ui.BatchProgress(result, time.Now(), frame))

		if result.Completed > 0 {
			fmt.Println(ui.QueueTable(submitted(a, result.Hashes), time.Now()).Render())
		}
		switch {
		case runErr != nil:
			if result.Completed > 0 {
				fmt.Println(ui.Warn(fmt.Sprintf("%d transfer(s) were sent before the failure and stay queued.", result.Completed)))
			}
			return runErr
		case result.State == txqueue.BatchStopped:
			fmt.Println(ui.Warn(fmt.Sprintf("Stopped after %d of %d transfers.", result.Completed, result.Total)))
		default:
			fmt.Println(ui.Success(fmt.Sprintf("%d transfers queued, nonces %d…%d.",
				result.Completed, result.BaseNonce, result.BaseNonce+uint64(result.Completed)-1)))
		}
		fmt.Println(ui.Hint("Track them with: w3tx queue watch"))
		return nil
	},
}

// submitted looks up the queue entries of a batch's hashes.
func submitted(a *app, hashes []string) []txqueue.QueuedTransaction {
	out := make([]txqueue.QueuedTransaction, 0, len(hashes))
	for _, h := range hashes {
		if tx, ok := a.registry.Get(h); ok {
			out = append(out, tx)
		}
	}
	return out
}

func init() {
	batchCmd.Flags().StringVar(&batchTo, "to", "", "recipient address (required)")
	batchCmd.Flags().StringVar(&batchAmount, "amount", "0.001", "ETH per transfer")
	batchCmd.Flags().IntVar(&batchCount, "count", 5, "number of transfers")
	batchCmd.Flags().DurationVar(&batchDelay, "delay", time.Second, "pause between transfers")
	batchCmd.Flags().BoolVarP(&batchYes, "yes", "y", false, "skip the confirmation prompt")
	batchCmd.MarkFlagRequired("to") //nolint:errcheck
}
