// Package interfaces renders calculated loss breakdowns for consumers:
// JSON over HTTP plus downloadable PDF and XLSX reports.
package interfaces

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	loss "oee-platform/internal/loss/domain"
	"oee-platform/internal/plant"
)

// reportCategories is the fixed row order of loss reports.
var reportCategories = []plant.TimeLoss{
	plant.LossNotScheduled,
	plant.LossUnscheduled,
	plant.LossPlannedDowntime,
	plant.LossSetup,
	plant.LossUnplannedDowntime,
	plant.LossMinorStoppages,
	plant.LossReducedSpeed,
	plant.LossRejectRework,
	plant.LossStartupYield,
}

// BuildLossPDF renders a loss breakdown report.
func BuildLossPDF(l *loss.EquipmentLoss) ([]byte, error) {
	start, end, _ := l.Window()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Equipment Loss Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Equipment: %s", l.Equipment.Name))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Material: %s", l.Material.Name))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Window: %s to %s", start.Format(time.RFC3339), end.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Design speed: %s/hr", l.DesignSpeed()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Good: %s  Reject: %s  Startup: %s",
		l.GoodQuantity(), l.RejectQuantity(), l.StartupQuantity()))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Availability: %.1f%%  Performance: %.1f%%  Quality: %.1f%%  OEE: %.1f%%",
		l.Availability()*100, l.Performance()*100, l.Quality()*100, l.OEE()*100))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(80, 6, "Loss Category", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Lost Time", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, category := range reportCategories {
		pdf.CellFormat(80, 6, string(category), "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, l.Loss(category).String(), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Downtime Pareto")
	pdf.Ln(7)
	pdf.CellFormat(40, 6, "Category", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Reason", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Lost Time", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, category := range plant.AvailabilityLosses() {
		for _, item := range sortedPareto(l, category) {
			pdf.CellFormat(40, 6, string(category), "1", 0, "L", false, 0, "")
			pdf.CellFormat(60, 6, item.Label, "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, item.Lost.String(), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildLossXLSX renders a loss breakdown workbook.
func BuildLossXLSX(l *loss.EquipmentLoss) ([]byte, error) {
	start, end, _ := l.Window()

	f := excelize.NewFile()
	summarySheet := "summary"
	lossSheet := "losses"
	paretoSheet := "pareto"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(lossSheet)
	f.NewSheet(paretoSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Equipment Loss Report")
	_ = f.SetCellValue(summarySheet, "A3", "Equipment")
	_ = f.SetCellValue(summarySheet, "B3", l.Equipment.Name)
	_ = f.SetCellValue(summarySheet, "A4", "Material")
	_ = f.SetCellValue(summarySheet, "B4", l.Material.Name)
	_ = f.SetCellValue(summarySheet, "A5", "Window Start")
	_ = f.SetCellValue(summarySheet, "B5", start.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A6", "Window End")
	_ = f.SetCellValue(summarySheet, "B6", end.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A7", "Design Speed (per hour)")
	_ = f.SetCellValue(summarySheet, "B7", l.DesignSpeed().String())
	_ = f.SetCellValue(summarySheet, "A8", "Good")
	_ = f.SetCellValue(summarySheet, "B8", l.GoodQuantity().String())
	_ = f.SetCellValue(summarySheet, "A9", "Reject")
	_ = f.SetCellValue(summarySheet, "B9", l.RejectQuantity().String())
	_ = f.SetCellValue(summarySheet, "A10", "Startup")
	_ = f.SetCellValue(summarySheet, "B10", l.StartupQuantity().String())
	_ = f.SetCellValue(summarySheet, "A11", "Availability")
	_ = f.SetCellValue(summarySheet, "B11", l.Availability())
	_ = f.SetCellValue(summarySheet, "A12", "Performance")
	_ = f.SetCellValue(summarySheet, "B12", l.Performance())
	_ = f.SetCellValue(summarySheet, "A13", "Quality")
	_ = f.SetCellValue(summarySheet, "B13", l.Quality())
	_ = f.SetCellValue(summarySheet, "A14", "OEE")
	_ = f.SetCellValue(summarySheet, "B14", l.OEE())

	_ = f.SetCellValue(lossSheet, "A1", "Loss Category")
	_ = f.SetCellValue(lossSheet, "B1", "Lost Seconds")
	for i, category := range reportCategories {
		row := i + 2
		_ = f.SetCellValue(lossSheet, fmt.Sprintf("A%d", row), string(category))
		_ = f.SetCellValue(lossSheet, fmt.Sprintf("B%d", row), l.Loss(category).Seconds())
	}

	_ = f.SetCellValue(paretoSheet, "A1", "Category")
	_ = f.SetCellValue(paretoSheet, "B1", "Reason")
	_ = f.SetCellValue(paretoSheet, "C1", "Lost Seconds")
	row := 2
	for _, category := range plant.AvailabilityLosses() {
		for _, item := range sortedPareto(l, category) {
			_ = f.SetCellValue(paretoSheet, fmt.Sprintf("A%d", row), string(category))
			_ = f.SetCellValue(paretoSheet, fmt.Sprintf("B%d", row), item.Label)
			_ = f.SetCellValue(paretoSheet, fmt.Sprintf("C%d", row), item.Lost.Seconds())
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sortedPareto ranks a category's reasons by descending lost time.
func sortedPareto(l *loss.EquipmentLoss, category plant.TimeLoss) []loss.ParetoItem {
	items := loss.ParetoData(l, category)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Lost == items[j].Lost {
			return items[i].Label < items[j].Label
		}
		return items[i].Lost > items[j].Lost
	})
	return items
}
