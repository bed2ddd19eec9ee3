package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/chain"
	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	tea "github.com/charmbracelet/bubbletea"
)

// actionTimeout bounds one speed-up or cancel started from the board.
const actionTimeout = 30 * time.Second

// QueueActions are the operations the board can run on the selected entry.
type QueueActions interface {
	SpeedUp(ctx context.Context, hash string) (txqueue.QueuedTransaction, error)
	Cancel(ctx context.Context, hash string) (txqueue.QueuedTransaction, error)
	Remove(hash string) error
}

// QueueSnapshot is the state the board draws.
type QueueSnapshot struct {
	Txs   []txqueue.QueuedTransaction
	Stats txqueue.Stats
	Batch *txqueue.RapidBatch // nil when no batch is visible
}

// MonitorTickMsg reports a finished status poll.
type MonitorTickMsg struct {
	Report txqueue.TickReport
	At     time.Time
}

type boardTickMsg struct{}

type actionDoneMsg struct {
	verb  string
	hash  string
	added txqueue.QueuedTransaction
	err   error
}

// QueueBoard is the Bubble Tea model for the live queue.
type QueueBoard struct {
	title    string
	network  chain.Network
	actions  QueueActions
	snapshot func() QueueSnapshot
	now      func() time.Time

	snap      QueueSnapshot
	selHash   string
	cursor    int
	frame     int
	lastCheck MonitorTickMsg
	busy      bool
	armCancel string // hash armed by the first x press
	flash     string
	flashErr  bool
	Quitting  bool
}

// NewQueueBoard creates the board. snapshot is called on every frame.
func NewQueueBoard(title string, network chain.Network, actions QueueActions, snapshot func() QueueSnapshot) QueueBoard {
	m := QueueBoard{
		title:    title,
		network:  network,
		actions:  actions,
		snapshot: snapshot,
		now:      time.Now,
	}
	m.refresh()
	return m
}

func boardTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg {
		return boardTickMsg{}
	})
}

func (m QueueBoard) Init() tea.Cmd { return boardTick() }

func (m *QueueBoard) refresh() {
	m.snap = m.snapshot()
	m.cursor = 0
	for i, tx := range m.snap.Txs {
		if tx.Hash == m.selHash {
			m.cursor = i
			break
		}
	}
	if m.cursor >= len(m.snap.Txs) {
		m.cursor = max(len(m.snap.Txs)-1, 0)
	}
	if len(m.snap.Txs) > 0 {
		m.selHash = m.snap.Txs[m.cursor].Hash
	}
}

func (m QueueBoard) selected() (txqueue.QueuedTransaction, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Txs) {
		return txqueue.QueuedTransaction{}, false
	}
	return m.snap.Txs[m.cursor], true
}

func (m QueueBoard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case boardTickMsg:
		m.frame = (m.frame + 1) % len(spinFrames)
		m.refresh()
		return m, boardTick()

	case MonitorTickMsg:
		m.lastCheck = msg
		if n := len(msg.Report.Confirmed); n > 0 {
			m.setFlash(fmt.Sprintf("%d transaction(s) confirmed", n), false)
		}
		if n := len(msg.Report.Failed); n > 0 {
			m.setFlash(fmt.Sprintf("%d transaction(s) failed", n), true)
		}
		m.refresh()

	case actionDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.setFlash(fmt.Sprintf("%s %s failed: %s", msg.verb, chain.ShortAddr(msg.hash), trimErr(msg.err.Error(), 48)), true)
		} else if msg.added.Hash != "" {
			m.selHash = msg.added.Hash
			m.setFlash(fmt.Sprintf("%s sent: %s", msg.verb, chain.ShortAddr(msg.added.Hash)), false)
		} else {
			m.setFlash(fmt.Sprintf("%s %s", msg.verb, chain.ShortAddr(msg.hash)), false)
		}
		m.refresh()
	}
	return m, nil
}

func (m *QueueBoard) setFlash(s string, isErr bool) {
	m.flash = s
	m.flashErr = isErr
}

func (m QueueBoard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key != "x" {
		m.armCancel = ""
	}

	switch key {
	case "q", "ctrl+c", "esc":
		m.Quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.selHash = m.snap.Txs[m.cursor].Hash
		}

	case "down", "j":
		if m.cursor < len(m.snap.Txs)-1 {
			m.cursor++
			m.selHash = m.snap.Txs[m.cursor].Hash
		}

	case "r":
		m.refresh()

	case "s":
		tx, ok := m.pendingSelection()
		if !ok {
			return m, nil
		}
		m.busy = true
		m.setFlash("Speeding up "+chain.ShortAddr(tx.Hash)+"…", false)
		return m, m.run("Speed-up", tx.Hash, m.actions.SpeedUp)

	case "x":
		tx, ok := m.pendingSelection()
		if !ok {
			return m, nil
		}
		if m.armCancel != tx.Hash {
			m.armCancel = tx.Hash
			m.setFlash("Press x again to cancel "+chain.ShortAddr(tx.Hash), true)
			return m, nil
		}
		m.armCancel = ""
		m.busy = true
		m.setFlash("Cancelling "+chain.ShortAddr(tx.Hash)+"…", false)
		return m, m.run("Cancel", tx.Hash, m.actions.Cancel)

	case "d":
		tx, ok := m.selected()
		if !ok || m.busy {
			return m, nil
		}
		if err := m.actions.Remove(tx.Hash); err != nil {
			m.setFlash("Remove failed: "+err.Error(), true)
		} else {
			m.setFlash("Removed "+chain.ShortAddr(tx.Hash), false)
		}
		m.refresh()

	case "o":
		tx, ok := m.selected()
		if !ok {
			return m, nil
		}
		url := m.network.TxURL(tx.Hash)
		if url == "" {
			m.setFlash("No explorer for "+m.network.Display, true)
		} else if err := openBrowser(url); err != nil {
			m.setFlash("Could not open browser", true)
		} else {
			m.setFlash("Opening in browser…", false)
		}

	case "c":
		tx, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := copyToClipboard(tx.Hash); err != nil {
			m.setFlash("Copy failed", true)
		} else {
			m.setFlash("Copied: "+chain.ShortAddr(tx.Hash), false)
		}
	}
	return m, nil
}

// pendingSelection returns the selected entry when a replacement may start.
func (m *QueueBoard) pendingSelection() (txqueue.QueuedTransaction, bool) {
	if m.busy {
		m.setFlash("Another action is still running", true)
		return txqueue.QueuedTransaction{}, false
	}
	tx, ok := m.selected()
	if !ok {
		return tx, false
	}
	if tx.Status != txqueue.StatusPending {
		m.setFlash("Only pending transactions can be replaced", true)
		return tx, false
	}
	return tx, true
}

func (m QueueBoard) run(verb, hash string, fn func(context.Context, string) (txqueue.QueuedTransaction, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		added, err := fn(ctx, hash)
		return actionDoneMsg{verb: verb, hash: hash, added: added, err: err}
	}
}

func (m QueueBoard) View() string {
	if m.Quitting {
		return ""
	}
	now := m.now()
	var sb strings.Builder

	// ── Title ─────────────────────────────────────────────────────────────
	sb.WriteString(StyleTitle.Render("⛓  Transaction Queue  ·  "+m.title) + "\n")
	sb.WriteString(StatsLine(m.snap.Stats) + "\n")

	// ── Status bar ────────────────────────────────────────────────────────
	spin := StyleChain.Render(spinFrames[m.frame])
	switch {
	case m.lastCheck.At.IsZero():
		sb.WriteString(StyleMeta.Render("  waiting for first status check…") + "\n")
	case m.lastCheck.Report.Errors > 0:
		sb.WriteString(StyleWarning.Render(fmt.Sprintf("%s %d lookup(s) failed %s ago, retrying", spin,
			m.lastCheck.Report.Errors, Age(m.lastCheck.At, now))) + "\n")
	default:
		sb.WriteString(StyleMeta.Render(fmt.Sprintf("%s checked %d pending %s ago", spin,
			m.lastCheck.Report.Checked, Age(m.lastCheck.At, now))) + "\n")
	}

	if m.snap.Batch != nil {
		sb.WriteString(BatchProgress(*m.snap.Batch, now, m.frame) + "\n")
	}
	sb.WriteString("\n")

	// ── Table ─────────────────────────────────────────────────────────────
	if len(m.snap.Txs) == 0 {
		sb.WriteString(StyleMeta.Render("  Queue is empty. Send something with: w3tx send or w3tx batch") + "\n")
	} else {
		t := QueueTable(m.snap.Txs, now)
		t.SelIdx = m.cursor
		sb.WriteString(t.Render())
	}

	// ── Controls ─────────────────────────────────────────────────────────
	sb.WriteString("\n")
	switch {
	case m.flash != "" && m.flashErr:
		sb.WriteString(StyleError.Render("  ✗ " + m.flash))
	case m.flash != "":
		sb.WriteString(StyleSuccess.Render("  ✓ " + m.flash))
	default:
		sb.WriteString(boardControls())
	}
	sb.WriteString("\n")
	return sb.String()
}

func boardControls() string {
	sep := StyleMeta.Render("   ")
	var sb strings.Builder
	sb.WriteString(StyleMeta.Render("[ ↑↓ ]") + StyleMeta.Render(" navigate") + sep)
	sb.WriteString(StyleWarning.Render("[ s ]") + StyleMeta.Render(" speed up") + sep)
	sb.WriteString(StyleError.Render("[ x ]") + StyleMeta.Render(" cancel") + sep)
	sb.WriteString(StyleMeta.Render("[ d ]") + StyleMeta.Render(" remove") + sep)
	sb.WriteString(StyleInfo.Render("[ o ]") + StyleMeta.Render(" explorer") + sep)
	sb.WriteString(StyleMeta.Render("[ c ]") + StyleMeta.Render(" copy") + sep)
	sb.WriteString(StyleMeta.Render("[ q ]") + StyleMeta.Render(" quit"))
	return sb.String()
}

// RunQueueBoard runs the board until the user quits. ticks delivers monitor
// results; it is drained until closed.
func RunQueueBoard(m QueueBoard, ticks <-chan MonitorTickMsg) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		for t := range ticks {
			p.Send(t)
		}
	}()
	_, err := p.Run()
	return err
}
