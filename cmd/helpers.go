package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/chain"
	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/Mohsinsiddi/w3tx/internal/ui"
	"github.com/Mohsinsiddi/w3tx/internal/wallet"
)

// signalContext is cancelled on Ctrl-C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// errLine renders a command error with a hint for the common cases.
func errLine(err error) string {
	msg := ui.Err(err.Error())
	switch {
	case errors.Is(err, txqueue.ErrNotFound):
		msg += "\n" + ui.Hint("List the queue with: w3tx queue list")
	case errors.Is(err, txqueue.ErrNotPending):
		msg += "\n" + ui.Hint("Only pending transactions can be sped up or cancelled.")
	case errors.Is(err, txqueue.ErrForeignAccount):
		msg += "\n" + ui.Hint("Select the sending wallet with: w3tx --wallet <name>")
	case errors.Is(err, txqueue.ErrTransientQuery):
		msg += "\n" + ui.Hint("Check the node: " + cfg.RPC())
	case errors.Is(err, wallet.ErrWatchOnly):
		msg += "\n" + ui.Hint("Switch wallets with: w3tx wallet use <name>")
	}
	return msg
}

// walletTypeLabel converts an internal wallet type to a user-friendly label.
func walletTypeLabel(t string) string {
	switch t {
	case wallet.TypeSigning:
		return "read-write"
	default:
		return t // "watch-only" is already user-friendly
	}
}

// printQueued reports a freshly queued transaction.
func printQueued(a *app, title string, tx txqueue.QueuedTransaction) {
	pairs := [][2]string{
		{"Hash", tx.Hash},
		{"Nonce", fmt.Sprintf("%d", tx.Nonce)},
		{"Gas Price", chain.WeiToGwei(tx.GasPrice) + " Gwei"},
		{"Description", tx.Description},
	}
	if a.network.Display != "" {
		pairs = append(pairs, [2]string{"Network", ui.ChainName(a.network.Display)})
	}
	if url := a.network.TxURL(tx.Hash); url != "" {
		pairs = append(pairs, [2]string{"Explorer", url})
	}
	fmt.Println(ui.KeyValueBlock(title, pairs))
}

// waitForSettle runs the monitor until hash leaves pending or timeout passes.
func waitForSettle(ctx context.Context, a *app, hash string, timeout time.Duration) (txqueue.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	spin := ui.NewSpinner("Waiting for confirmation...")
	spin.Start()
	defer spin.Stop()

	ticker := time.NewTicker(a.monitor.Interval())
	defer ticker.Stop()
	for {
		a.monitor.Tick(ctx)
		if tx, ok := a.registry.Get(hash); ok && tx.Status.Terminal() {
			return tx.Status, nil
		}
		select {
		case <-ctx.Done():
			return txqueue.StatusPending, ctx.Err()
		case <-ticker.C:
		}
	}
}

// reportSettled prints the outcome of waitForSettle.
func reportSettled(status txqueue.Status, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Println(ui.Warn("Still pending. Follow it with: w3tx queue watch"))
	case err != nil:
		fmt.Println(ui.Warn("Stopped waiting: " + err.Error()))
	case status == txqueue.StatusConfirmed:
		fmt.Println(ui.Success("Confirmed."))
	default:
		fmt.Println(ui.Err("Transaction " + string(status) + "."))
	}
}
