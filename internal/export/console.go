package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"tft-analyzer/internal/db"
)

// NewTable returns a rounded table writer mirrored to w.
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// KV is one line of a summary table.
type KV struct {
	Key   string
	Value interface{}
}

// RenderSummary prints a titled two-column table.
func RenderSummary(w io.Writer, title string, rows []KV) {
	t := NewTable(w)
	t.SetTitle(title)
	for _, r := range rows {
		t.AppendRow(table.Row{r.Key, r.Value})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()
}

// RenderCounts prints the row count of every table.
func RenderCounts(w io.Writer, c db.TableCounts) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"Table", "Rows"})
	t.AppendRows([]table.Row{
		{"matches", c.Matches},
		{"player_match", c.Participants},
		{"unit_item", c.UnitItems},
		{"unit_loadout", c.Loadouts},
	})
	for k := 1; k <= db.MaxK; k++ {
		name, _, _ := db.StatsTable(k)
		t.AppendRow(table.Row{name, c.Stats[k-1]})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()
}

// RenderStats prints combination stats, one row per combination.
func RenderStats(w io.Writer, stats []db.CombinationStat) {
	t := NewTable(w)
	t.AppendHeader(table.Row{"Patch", "Champion", "Items", "Games", "Avg", "Top4", "Baseline", "Delta"})
	for _, st := range stats {
		t.AppendRow(table.Row{
			st.PatchBucket,
			st.ChampionID,
			strings.Join(st.Items, " + "),
			st.Games,
			fmt.Sprintf("%.2f", st.AvgPlace),
			fmt.Sprintf("%.1f%%", st.Top4Rate*100),
			fmt.Sprintf("%.2f", st.BaselineAvgPlace),
			fmt.Sprintf("%+.2f", st.Delta),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	if len(stats) == 0 {
		t.AppendFooter(table.Row{"", "", "no rows"})
	}
	t.Render()
}
