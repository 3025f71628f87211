package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/tradesafe/risk-core/internal/risk"
	"github.com/tradesafe/risk-core/internal/safety"
	"github.com/tradesafe/risk-core/internal/stops"
	"github.com/tradesafe/risk-core/internal/validation"
)

// ExcelReporter writes risk-state workbooks for offline review.
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// WriteRiskReportXLSX writes the current risk state, validation
// verdict, trailing stops and breaker statistics to an Excel workbook.
func (r *ExcelReporter) WriteRiskReportXLSX(report risk.Report, result *validation.ValidationResult, stopList []stops.TrailingStop, breakerStats []safety.Stats, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const riskSheet = "Risk"
	const validationSheet = "Validation"
	const stopsSheet = "Stops"
	const breakersSheet = "Breakers"

	fx.SetSheetName(fx.GetSheetName(0), riskSheet)
	fx.NewSheet(validationSheet)
	fx.NewSheet(stopsSheet)
	fx.NewSheet(breakersSheet)

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	if err := r.writeRiskSheet(fx, riskSheet, report, headerStyle); err != nil {
		return err
	}
	if err := r.writeValidationSheet(fx, validationSheet, result, headerStyle); err != nil {
		return err
	}
	if err := r.writeStopsSheet(fx, stopsSheet, stopList, headerStyle); err != nil {
		return err
	}
	if err := r.writeBreakersSheet(fx, breakersSheet, breakerStats, headerStyle); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) writeRiskSheet(fx *excelize.File, sheet string, report risk.Report, headerStyle int) error {
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"State", report.State},
		{"Drawdown %", report.DrawdownPct},
		{"Size Multiplier", report.SizeMultiplier},
		{"Can Trade", report.CanTrade},
		{"Equity", report.Equity},
		{"Daily Start Equity", report.DailyStartEquity},
		{"As Of", report.Timestamp.Format("2006-01-02 15:04:05")},
	}
	if err := writeRows(fx, sheet, rows); err != nil {
		return err
	}
	return fx.SetCellStyle(sheet, "A1", "B1", headerStyle)
}

func (r *ExcelReporter) writeValidationSheet(fx *excelize.File, sheet string, result *validation.ValidationResult, headerStyle int) error {
	rows := [][]interface{}{
		{"Field", "Value"},
	}
	if result != nil {
		rows = append(rows,
			[]interface{}{"Valid", result.IsValid},
			[]interface{}{"Quality Score", result.QualityScore},
			[]interface{}{"Checks Passed", result.ChecksPassed},
			[]interface{}{"Checks Total", result.ChecksTotal},
		)
		for i, e := range result.Errors {
			rows = append(rows, []interface{}{fmt.Sprintf("Error %d", i+1), e})
		}
		for i, w := range result.Warnings {
			rows = append(rows, []interface{}{fmt.Sprintf("Warning %d", i+1), w})
		}
	}
	if err := writeRows(fx, sheet, rows); err != nil {
		return err
	}
	return fx.SetCellStyle(sheet, "A1", "B1", headerStyle)
}

func (r *ExcelReporter) writeStopsSheet(fx *excelize.File, sheet string, stopList []stops.TrailingStop, headerStyle int) error {
	rows := [][]interface{}{
		{"Position", "Symbol", "Type", "Entry", "Current", "Highest", "Stop", "Activated"},
	}
	for _, ts := range stopList {
		rows = append(rows, []interface{}{
			ts.PositionID, ts.Symbol, string(ts.StopType),
			ts.EntryPrice, ts.CurrentPrice, ts.HighestPrice, ts.StopPrice, ts.Activated,
		})
	}
	if err := writeRows(fx, sheet, rows); err != nil {
		return err
	}
	return fx.SetCellStyle(sheet, "A1", "H1", headerStyle)
}

func (r *ExcelReporter) writeBreakersSheet(fx *excelize.File, sheet string, breakerStats []safety.Stats, headerStyle int) error {
	rows := [][]interface{}{
		{"Breaker", "State", "Failures", "Successes", "Total Calls", "Rejected Calls"},
	}
	for _, s := range breakerStats {
		rows = append(rows, []interface{}{
			s.Name, s.State, s.Failures, s.Successes, s.TotalCalls, s.RejectedCalls,
		})
	}
	if err := writeRows(fx, sheet, rows); err != nil {
		return err
	}
	return fx.SetCellStyle(sheet, "A1", "F1", headerStyle)
}

func writeRows(fx *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
