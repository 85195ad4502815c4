package sheet

import (
	"bytes"
	"fmt"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"

	"github.com/xuri/excelize/v2"
)

// ExportSheet is the name of the exported worksheet.
const ExportSheet = "Deals"

// ExportHeader lists the exported columns in order.
var ExportHeader = []string{
	"id",
	"title",
	"company_name",
	"contact_person",
	"contact_email",
	"contact_phone",
	"value",
	"stage",
	"health_score",
	"last_contact_at",
	"expected_close_date",
	"notes",
	"created_at",
	"updated_at",
}

var exportWidths = []float64{38, 30, 28, 22, 28, 18, 14, 14, 12, 20, 20, 40, 20, 20}

const timeLayout = "2006-01-02 15:04:05"

// ExportXLSX renders deals as a workbook with a styled, frozen header row.
// The result re-imports through ParseXLSX.
func ExportXLSX(deals []domain.Deal) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(ExportSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	moneyFmt := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create money style: %w", err)
	}

	for col, name := range ExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetCellValue(ExportSheet, cell, name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		colName, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetColWidth(ExportSheet, colName, colName, exportWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(ExportHeader), 1)
	if err := f.SetCellStyle(ExportSheet, "A1", lastHeader, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i := range deals {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(ExportSheet, cell, exportRow(&deals[i])); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}
	if len(deals) > 0 {
		first, _ := excelize.CoordinatesToCellName(7, 2)
		last, _ := excelize.CoordinatesToCellName(7, len(deals)+1)
		if err := f.SetCellStyle(ExportSheet, first, last, moneyStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set money style: %w", err)
		}
	}

	if err := f.SetPanes(ExportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func exportRow(d *domain.Deal) []any {
	return []any{
		d.ID,
		d.Title,
		d.CompanyName,
		d.ContactPerson,
		d.ContactEmail,
		d.ContactPhone,
		d.Value.InexactFloat64(),
		string(d.Stage),
		d.HealthScore,
		formatTime(d.LastContactAt),
		formatTime(d.ExpectedCloseDate),
		d.Notes,
		d.CreatedAt.UTC().Format(timeLayout),
		d.UpdatedAt.UTC().Format(timeLayout),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
