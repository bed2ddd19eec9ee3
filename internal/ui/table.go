package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Mohsinsiddi/w3tx/internal/chain"
	"github.com/Mohsinsiddi/w3tx/internal/txqueue"
	"github.com/charmbracelet/lipgloss"
)

// Column defines a table column.
type Column struct {
	Title string
	Width int
}

// Row is a slice of cell values.
type Row []string

// Table renders a lipgloss-styled table.
type Table struct {
	Columns []Column
	Rows    []Row
	SelIdx  int // selected row index (-1 = none)
}

// NewTable creates a new table.
func NewTable(cols []Column) *Table {
	return &Table{Columns: cols, SelIdx: -1}
}

// AddRow appends a row.
func (t *Table) AddRow(r Row) {
	t.Rows = append(t.Rows, r)
}

// pad returns s left-aligned within exactly width runes, truncating if needed.
// Cells are padded by hand because lipgloss Width+Padding wraps long content.
func pad(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}

// Render returns the full table as a string.
func (t *Table) Render() string {
	var sb strings.Builder

	headerStyle := lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true)
	cellStyle := lipgloss.NewStyle().Foreground(ColorValue)
	dimStyle := lipgloss.NewStyle().Foreground(ColorMeta)

	var headers []string
	for _, col := range t.Columns {
		headers = append(headers, headerStyle.Render(pad(col.Title, col.Width)))
	}
	sb.WriteString(strings.Join(headers, " "))
	sb.WriteString("\n")

	var divParts []string
	for _, col := range t.Columns {
		divParts = append(divParts, dimStyle.Render(strings.Repeat("-", col.Width)))
	}
	sb.WriteString(strings.Join(divParts, " "))
	sb.WriteString("\n")

	for i, row := range t.Rows {
		var cells []string
		for j, col := range t.Columns {
			val := ""
			if j < len(row) {
				val = row[j]
			}
			if i == t.SelIdx {
				cells = append(cells, StyleSelected.Render(pad(val, col.Width)))
			} else {
				cells = append(cells, cellStyle.Render(pad(val, col.Width)))
			}
		}
		sb.WriteString(strings.Join(cells, " "))
		sb.WriteString("\n")
	}

	return sb.String()
}

// KeyValueBlock renders a set of key-value pairs in a bordered box.
func KeyValueBlock(title string, pairs [][2]string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(StyleTitle.Render(title))
		sb.WriteString("\n")
	}
	for _, p := range pairs {
		key := StyleMeta.Render(fmt.Sprintf("%-20s", p[0]+":"))
		val := StyleValue.Render(p[1])
		sb.WriteString("  " + key + " " + val + "\n")
	}
	return StyleBorder.Render(sb.String())
}

// QueueColumns are the columns of the queue listing.
var QueueColumns = []Column{
	{Title: "HASH", Width: 13},
	{Title: "NONCE", Width: 6},
	{Title: "STATUS", Width: 10},
	{Title: "KIND", Width: 9},
	{Title: "GAS (gwei)", Width: 10},
	{Title: "AGE", Width: 5},
	{Title: "DESCRIPTION", Width: 44},
}

// QueueTable builds the queue listing, newest first as given.
func QueueTable(txs []txqueue.QueuedTransaction, now time.Time) *Table {
	t := NewTable(QueueColumns)
	for _, tx := range txs {
		t.AddRow(QueueRow(tx, now))
	}
	return t
}

// QueueRow renders one queue entry as plain cells.
func QueueRow(tx txqueue.QueuedTransaction, now time.Time) Row {
	desc := tx.Description
	if tx.ReplacedBy != "" {
		desc += " → " + chain.ShortAddr(tx.ReplacedBy)
	}
	return Row{
		chain.ShortAddr(tx.Hash),
		fmt.Sprintf("%d", tx.Nonce),
		string(tx.Status),
		string(tx.Kind),
		chain.WeiToGwei(tx.GasPrice),
		Age(tx.CreatedAt, now),
		desc,
	}
}

// StatsLine renders queue counters on one line.
func StatsLine(s txqueue.Stats) string {
	return fmt.Sprintf("%s  %s  %s  %s  %s",
		StyleWarning.Render(fmt.Sprintf("%d pending", s.Pending)),
		StyleSuccess.Render(fmt.Sprintf("%d confirmed", s.Confirmed)),
		StyleError.Render(fmt.Sprintf("%d failed", s.Failed)),
		StyleMeta.Render(fmt.Sprintf("%d cancelled", s.Cancelled)),
		StyleValue.Render(fmt.Sprintf("%d total", s.Total)),
	)
}
