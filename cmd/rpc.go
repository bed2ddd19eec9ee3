package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/rpc"
	"github.com/Mohsinsiddi/w3tx/internal/ui"
	"github.com/spf13/cobra"
)

var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "Probe the configured RPC endpoints",
	Long: `Ask every configured endpoint (rpc_url, then rpc_fallbacks) for its
latest block and show which one commands will use under rpc_strategy.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, err := rpc.ParseStrategy(cfg.RPCStrategy)
		if err != nil {
			return err
		}
		urls := cfg.RPCEndpoints()

		spin := ui.NewSpinner(fmt.Sprintf("Probing %d endpoint(s)...", len(urls)))
		spin.Start()
		results := rpc.Probe(cmd.Context(), urls, rpc.DefaultProbeTimeout)
		spin.StopWithMsg(ui.Meta(fmt.Sprintf("Probed %d endpoint(s).", len(urls))))

		winner, pickErr := rpc.Pick(results, strategy)
		best := rpc.BestBlock(results)

		t := ui.NewTable([]ui.Column{
			{Title: "", Width: 2},
			{Title: "Endpoint", Width: 44},
			{Title: "Latency", Width: 10},
			{Title: "Block", Width: 12},
			{Title: "Status", Width: 24},
		})
		for _, e := range results {
			mark := ""
			if pickErr == nil && e.URL == winner.URL {
				mark = ui.StyleSuccess.Render("→")
			}
			status := ui.StyleSuccess.Render("ok")
			switch {
			case !e.Healthy():
				status = ui.StyleError.Render("down")
			case e.Behind(best) > 0:
				status = ui.StyleWarning.Render(fmt.Sprintf("%d blocks behind", e.Behind(best)))
			}
			block := "-"
			if e.Healthy() {
				block = fmt.Sprintf("%d", e.BlockNumber)
			}
			t.AddRow(ui.Row{mark, ui.Val(e.URL), ui.Meta(e.Latency.Round(time.Millisecond).String()), block, status})
		}
		fmt.Println(t.Render())
		fmt.Println(ui.Meta("Strategy: " + string(strategy)))

		if errors.Is(pickErr, rpc.ErrNoHealthyRPC) {
			return pickErr
		}
		return nil
	},
}
