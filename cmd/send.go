package cmd

import (
	"context"
	"fmt"

	"github.com/Mohsinsiddi/w3tx/internal/chain"
	"github.com/Mohsinsiddi/w3tx/internal/config"
	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/Mohsinsiddi/w3tx/internal/ui"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var (
	sendTo       string
	sendValue    string
	sendData     string
	sendGasLimit uint64
	sendWait     bool
	sendYes      bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send ETH through the queue",
	Long: `Send a native transfer (optionally with calldata). The nonce comes
from the queue's allocator, so sends never collide with a running batch,
and the transaction is tracked in the queue until it settles.

Examples:
  w3tx send --to 0x7099...79C8 --value 0.01
  w3tx send --to 0x7099...79C8 --value 0 --data 0xd09de08a --gas-limit 50000 --wait`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if sendTo == "" {
			return fmt.Errorf("--to is required")
		}
		if !common.IsHexAddress(sendTo) {
			return fmt.Errorf("invalid recipient %q", sendTo)
		}
		if sendValue == "" {
			return fmt.Errorf("--value is required")
		}
		valueWei, err := chain.ParseEther(sendValue)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", sendValue, err)
		}
		var data []byte
		if sendData != "" {
			if data, err = hexutil.Decode(sendData); err != nil {
				return fmt.Errorf("invalid --data: %w", err)
			}
		}
		kind := txqueue.KindTransfer
		if len(data) > 0 {
			kind = txqueue.KindContract
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, appOptions{needSigner: true})
		if err != nil {
			return err
		}
		defer a.saveOnExit(&err)

		to := common.HexToAddress(sendTo).Hex()
		fmt.Println(ui.KeyValueBlock("Transaction Preview", [][2]string{
			{"From", ui.Addr(a.account())},
			{"To", ui.Addr(to)},
			{"Value", sendValue + " " + a.network.Currency},
			{"Gas Limit", fmt.Sprintf("%d", sendGasLimit)},
			{"Network", a.network.Display},
		}))
		if !sendYes && !ui.Confirm("Broadcast this transaction?") {
			fmt.Println(ui.Meta("Cancelled."))
			return nil
		}

		sendCtx, sendCancel := context.WithTimeout(ctx, config.RPCTimeout)
		defer sendCancel()
		spin := ui.NewSpinner("Broadcasting transaction...")
		spin.Start()
		tx, err := a.dispatch.Send(sendCtx, txqueue.Draft{
			To:          to,
			Value:       valueWei,
			GasLimit:    sendGasLimit,
			Data:        data,
			Kind:        kind,
			Description: fmt.Sprintf("Send %s %s to %s", sendValue, a.network.Currency, chain.ShortAddr(to)),
		})
		spin.Stop()
		if err != nil {
			return err
		}
		printQueued(a, "Transaction Sent", tx)

		if sendWait {
			reportSettled(waitForSettle(ctx, a, tx.Hash, config.TxConfirmTimeout))
		} else {
			fmt.Println(ui.Hint("Track it with: w3tx queue watch"))
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendTo, "to", "", "recipient address (required)")
	sendCmd.Flags().StringVar(&sendValue, "value", "", "amount in ETH, e.g. 0.01 (required)")
	sendCmd.Flags().StringVar(&sendData, "data", "", "hex calldata")
	sendCmd.Flags().Uint64Var(&sendGasLimit, "gas-limit", config.GasLimitETHTransfer, "gas limit")
	sendCmd.Flags().BoolVar(&sendWait, "wait", false, "wait until the transaction settles")
	sendCmd.Flags().BoolVarP(&sendYes, "yes", "y", false, "skip the confirmation prompt")
}
