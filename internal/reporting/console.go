package reporting

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/tradesafe/risk-core/internal/risk"
	"github.com/tradesafe/risk-core/internal/safety"
	"github.com/tradesafe/risk-core/internal/stops"
)

// PrintRiskReport renders the current risk state to stdout.
func PrintRiskReport(report risk.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("RISK STATE")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"State", report.State},
		{"Drawdown", fmt.Sprintf("%.2f%%", report.DrawdownPct)},
		{"Size Multiplier", fmt.Sprintf("%.2f", report.SizeMultiplier)},
		{"Can Trade", report.CanTrade},
		{"Equity", fmt.Sprintf("%.2f", report.Equity)},
		{"Daily Start", fmt.Sprintf("%.2f", report.DailyStartEquity)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 16, Align: text.AlignRight},
	})

	t.Render()
	fmt.Println()
}

// PrintStops renders the active trailing stops to stdout.
func PrintStops(stopList []stops.TrailingStop) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("TRAILING STOPS")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Position", "Symbol", "Type", "Entry", "Current", "Stop", "Activated"})
	for _, ts := range stopList {
		t.AppendRow(table.Row{
			ts.PositionID, ts.Symbol, string(ts.StopType),
			fmt.Sprintf("%.4f", ts.EntryPrice),
			fmt.Sprintf("%.4f", ts.CurrentPrice),
			fmt.Sprintf("%.4f", ts.StopPrice),
			ts.Activated,
		})
	}

	t.Render()
	fmt.Println()
}

// PrintBreakers renders breaker statistics to stdout.
func PrintBreakers(breakerStats []safety.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("RESILIENCE BREAKERS")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Breaker", "State", "Failures", "Total", "Rejected"})
	for _, s := range breakerStats {
		t.AppendRow(table.Row{s.Name, s.State, s.Failures, s.TotalCalls, s.RejectedCalls})
	}

	t.Render()
	fmt.Println()
}
