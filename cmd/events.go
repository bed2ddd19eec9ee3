package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/config"
	"github.com/Mohsinsiddi/w3tx/internal/token"
	"github.com/Mohsinsiddi/w3tx/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	eventsLookback uint64
	eventsCount    int
	eventsOnce     bool
	eventsInterval time.Duration
)

var eventsCmd = &cobra.Command{
	Use:   "events <token>",
	Short: "Follow a token's Transfer and Approval events",
	Long: `Poll eth_getLogs for the token's Transfer and Approval events and print
them as they arrive. The first poll scans the last --lookback blocks.

Examples:
  w3tx events tt
  w3tx events 0x5FbD...0aa3 --once --count 50`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := cfg.ResolveToken(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		a, err := newApp(ctx, appOptions{})
		if err != nil {
			return err
		}

		readCtx, readCancel := context.WithTimeout(ctx, config.RPCTimeout)
		info, err := a.tokens.Info(readCtx, addr, "")
		readCancel()
		if err != nil {
			return err
		}

		feed := token.NewFeed(a.client, addr,
			token.WithFeedSize(eventsCount),
			token.WithLookback(eventsLookback))

		fmt.Println(ui.Info(fmt.Sprintf("%s (%s) events on %s", info.Name, info.Symbol, ui.Addr(info.Address))))

		poll := func() error {
			pollCtx, pollCancel := context.WithTimeout(ctx, config.RPCTimeout)
			defer pollCancel()
			fresh, err := feed.Poll(pollCtx)
			if err != nil {
				return err
			}
			// Print oldest first so the terminal reads top to bottom.
			for i := len(fresh) - 1; i >= 0; i-- {
				fmt.Println(ui.EventLine(fresh[i], info))
			}
			return nil
		}

		if err := poll(); err != nil {
			return err
		}
		if eventsOnce {
			if len(feed.Events()) == 0 {
				fmt.Println(ui.Meta(fmt.Sprintf("No events in the last %d blocks.", eventsLookback)))
			}
			return nil
		}

		fmt.Println(ui.Meta("Watching for new events. Ctrl-C to stop."))
		ticker := time.NewTicker(eventsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				fmt.Println()
				return nil
			case <-ticker.C:
				if err := poll(); err != nil && ctx.Err() == nil {
					log.Warn("polling events", zap.Error(err))
				}
			}
		}
	},
}

func init() {
	eventsCmd.Flags().Uint64Var(&eventsLookback, "lookback", config.EventLookback, "blocks scanned on the first poll")
	eventsCmd.Flags().IntVar(&eventsCount, "count", config.EventFeedSize, "newest events kept per poll")
	eventsCmd.Flags().BoolVar(&eventsOnce, "once", false, "print recent events and exit")
	eventsCmd.Flags().DurationVar(&eventsInterval, "interval", config.EventPollInterval, "poll interval")
}
