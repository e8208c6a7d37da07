package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/staffing-timesheets/internal/model"
)

const (
	summarySheet = "Summary"
	hoursSheet   = "Hours"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(export model.TimesheetExport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	file.SetSheetName("Sheet1", summarySheet)
	if err := g.writeSummary(file, summarySheet, export); err != nil {
		return nil, err
	}

	if _, err := file.NewSheet(hoursSheet); err != nil {
		return nil, err
	}
	if err := g.writeHours(file, hoursSheet, export); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, export model.TimesheetExport) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Timesheet")
	set("B1", export.TimesheetID)
	set("A2", "Week")
	set("B2", export.WeekToken)
	set("A3", "Week starting")
	set("B3", formatDate(export.Monday))
	set("A4", "Week ending")
	set("B4", formatDate(export.Friday))
	set("A5", "Contractors")
	set("B5", len(export.Rows))
	set("A6", "Total hours")
	set("B6", formatHours(sumTotals(export.Rows)))
	set("A7", "Generated")
	set("B7", formatDateTime(export.GeneratedAt))

	tableRow := 9
	set(fmt.Sprintf("A%d", tableRow), "Rate")
	set(fmt.Sprintf("B%d", tableRow), "Frequency")
	set(fmt.Sprintf("C%d", tableRow), "Hours")
	for i, col := range export.Columns {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), col.RateTypeName)
		set(fmt.Sprintf("B%d", row), col.RateFrequencyName)
		set(fmt.Sprintf("C%d", row), formatHours(sumColumn(export.Rows, col.Key)))
	}

	_ = file.SetColWidth(sheet, "A", "A", 24)
	_ = file.SetColWidth(sheet, "B", "B", 20)
	_ = file.SetColWidth(sheet, "C", "C", 12)
	return nil
}

// writeHours renders the matrix. Cells of columns the contractor holds no
// rate for are left blank.
func (g *Generator) writeHours(file *excelize.File, sheet string, export model.TimesheetExport) error {
	set := func(col, row int, value interface{}) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = file.SetCellValue(sheet, cell, value)
	}

	headerRow := 1
	set(1, headerRow, "Contractor ID")
	set(2, headerRow, "Contractor")
	for i, col := range export.Columns {
		set(3+i, headerRow, columnLabel(col))
	}
	totalCol := 3 + len(export.Columns)
	set(totalCol, headerRow, "Total")

	for i, r := range export.Rows {
		row := headerRow + 1 + i
		if r.ContractorID != 0 {
			set(1, row, r.ContractorID)
		}
		set(2, row, r.Name)
		for j, col := range export.Columns {
			if v, ok := r.Values[col.Key]; ok {
				set(3+j, row, v)
			}
		}
		set(totalCol, row, r.Total)
	}

	_ = file.SetColWidth(sheet, "A", "A", 14)
	_ = file.SetColWidth(sheet, "B", "B", 32)
	if len(export.Columns) > 0 {
		first, _ := excelize.ColumnNumberToName(3)
		last, _ := excelize.ColumnNumberToName(totalCol)
		_ = file.SetColWidth(sheet, first, last, 16)
	}
	return file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      2,
		YSplit:      1,
		TopLeftCell: "C2",
		ActivePane:  "bottomRight",
	})
}

func columnLabel(col model.RateColumn) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", col.RateTypeName, col.RateFrequencyName))
}

func sumTotals(rows []model.TimesheetExportRow) float64 {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(decimal.NewFromFloat(r.Total))
	}
	return total.InexactFloat64()
}

func sumColumn(rows []model.TimesheetExportRow, key string) float64 {
	total := decimal.Zero
	for _, r := range rows {
		if v, ok := r.Values[key]; ok {
			total = total.Add(decimal.NewFromFloat(v))
		}
	}
	return total.InexactFloat64()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatHours(value float64) string {
	return fmt.Sprintf("%.2f", value)
}
