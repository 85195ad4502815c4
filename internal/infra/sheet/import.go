// Package sheet converts deals to and from spreadsheets: xlsx through
// excelize and plain CSV.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AnsKM/dealflow-crm/internal/domain"

	"github.com/xuri/excelize/v2"
)

// Supported formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// ImportHeader lists the columns read on import. Matching is by header name,
// case-insensitive, in any order. Unknown columns are ignored.
var ImportHeader = []string{
	"title",
	"company_name",
	"contact_person",
	"contact_email",
	"contact_phone",
	"value",
	"stage",
	"expected_close_date",
	"notes",
}

var requiredColumns = []string{"title", "company_name", "value"}

// MaxImportBytes caps the accepted upload size.
const MaxImportBytes = 10 << 20

// Row is one data row keyed by normalised header. Line is the 1-based
// spreadsheet row (the header is line 1).
type Row struct {
	Line   int
	Fields map[string]string
}

// ErrUnsupportedFormat is returned for formats other than xlsx and csv.
var ErrUnsupportedFormat = errors.New("unsupported import format")

// FormatFromFilename maps a file extension to a format.
func FormatFromFilename(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		return FormatXLSX
	case strings.HasSuffix(lower, ".csv"):
		return FormatCSV
	}
	return ""
}

// Parse reads rows in the given format.
func Parse(format string, r io.Reader) ([]Row, error) {
	switch format {
	case FormatXLSX:
		return ParseXLSX(r)
	case FormatCSV:
		return ParseCSV(r)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// ParseXLSX reads the first sheet of a workbook.
func ParseXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, errors.New("excel file has no sheets")
	}

	records, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return toRows(records)
}

// ParseCSV reads comma-separated records with a header line.
func ParseCSV(r io.Reader) ([]Row, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV file: %w", err)
	}
	return toRows(records)
}

func toRows(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, &domain.ErrValidation{Field: "file", Message: "file is empty"}
	}

	header := make(map[int]string, len(records[0]))
	present := make(map[string]bool, len(records[0]))
	for i, name := range records[0] {
		key := normaliseHeader(name)
		if key == "" {
			continue
		}
		header[i] = key
		present[key] = true
	}
	for _, col := range requiredColumns {
		if !present[col] {
			return nil, &domain.ErrValidation{Field: "file", Message: fmt.Sprintf("missing required column %q", col)}
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		fields := make(map[string]string, len(header))
		empty := true
		for col, key := range header {
			if col >= len(rec) {
				continue
			}
			v := strings.TrimSpace(rec[col])
			if v != "" {
				empty = false
			}
			fields[key] = v
		}
		if empty {
			continue
		}
		rows = append(rows, Row{Line: i + 2, Fields: fields})
	}
	return rows, nil
}

func normaliseHeader(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return s
}

// ToCreateRequest converts a row into a validated create request.
func ToCreateRequest(row Row) (domain.CreateDealRequest, error) {
	f := row.Fields
	req := domain.CreateDealRequest{
		Title:         f["title"],
		CompanyName:   f["company_name"],
		ContactPerson: f["contact_person"],
		ContactEmail:  f["contact_email"],
		ContactPhone:  f["contact_phone"],
		Notes:         f["notes"],
	}

	if raw := f["value"]; raw != "" {
		m, err := domain.ParseMoney(strings.ReplaceAll(raw, ",", ""))
		if err != nil {
			return req, &domain.ErrValidation{Field: "value", Message: fmt.Sprintf("invalid amount %q", raw)}
		}
		req.Value = m
	}
	if raw := f["stage"]; raw != "" {
		stage, err := domain.ParseStage(raw)
		if err != nil {
			return req, err
		}
		req.Stage = stage
	}
	if raw := f["expected_close_date"]; raw != "" {
		t, err := domain.ParseTimestamp(raw)
		if err != nil {
			return req, &domain.ErrValidation{Field: "expected_close_date", Message: fmt.Sprintf("invalid date %q", raw)}
		}
		req.ExpectedCloseDate = domain.SomeTime(t)
	}

	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}
