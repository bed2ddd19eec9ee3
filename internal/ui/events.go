package ui

import (
	"fmt"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/chain"
	"github.com/Mohsinsiddi/w3tx/internal/token"
)

// EventLine renders one decoded token event.
//
//	12:04:31  Transfer  0xf39F…2266 → 0x7099…79C8  1.5 TT  #1042
func EventLine(ev token.Event, info token.Info) string {
	var kind string
	switch ev.Type {
	case token.EventTransfer:
		kind = StyleSuccess.Render(padR("Transfer", 9))
	case token.EventApproval:
		kind = StyleWarning.Render(padR("Approval", 9))
	default:
		kind = StyleMeta.Render(padR(string(ev.Type), 9))
	}
	seen := ev.SeenAt
	if seen.IsZero() {
		seen = time.Now()
	}
	return fmt.Sprintf("%s  %s %s → %s  %s  %s",
		StyleMeta.Render(seen.Format("15:04:05")),
		kind,
		StyleAddress.Render(chain.ShortAddr(ev.From)),
		StyleAddress.Render(chain.ShortAddr(ev.To)),
		StyleValue.Render(info.Format(ev.Value)+" "+info.Symbol),
		StyleMeta.Render(fmt.Sprintf("#%d", ev.BlockNumber)),
	)
}
