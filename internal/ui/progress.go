package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
)

const progressWidth = 20

// BatchProgress renders a rapid batch as a one-line progress bar.
//
//	⠹ [██████░░░░░░░░░░░░░░] 3/10  nonce 42…51  ~14s left
func BatchProgress(b txqueue.RapidBatch, now time.Time, frame int) string {
	filled := 0
	if b.Total > 0 {
		filled = b.Completed * progressWidth / b.Total
	}
	bar := StyleSuccess.Render(strings.Repeat("█", filled)) +
		StyleMeta.Render(strings.Repeat("░", progressWidth-filled))

	var lead, tail string
	switch b.State {
	case txqueue.BatchRunning:
		lead = StyleChain.Render(spinFrames[frame%len(spinFrames)])
		if b.Completed > 0 {
			tail = StyleMeta.Render(fmt.Sprintf("~%s left", b.EstimateRemaining(now).Round(time.Second)))
		} else {
			tail = StyleMeta.Render("reserving nonces…")
		}
	case txqueue.BatchCompleted:
		lead = StyleSuccess.Render("✓")
		tail = StyleSuccess.Render("completed")
	case txqueue.BatchStopped:
		lead = StyleWarning.Render("■")
		tail = StyleWarning.Render("stopped")
	case txqueue.BatchFailed:
		lead = StyleError.Render("✗")
		tail = StyleError.Render("failed")
		if b.Err != nil {
			tail += " " + StyleMeta.Render(trimErr(b.Err.Error(), 40))
		}
	default:
		lead = " "
	}

	nonces := ""
	if b.Total > 0 && (b.Completed > 0 || b.State != txqueue.BatchRunning) {
		nonces = StyleMeta.Render(fmt.Sprintf("nonce %d…%d", b.BaseNonce, b.BaseNonce+uint64(b.Total)-1))
	}

	return fmt.Sprintf("%s [%s] %s  %s  %s",
		lead, bar,
		StyleValue.Render(fmt.Sprintf("%d/%d", b.Completed, b.Total)),
		nonces, tail)
}
