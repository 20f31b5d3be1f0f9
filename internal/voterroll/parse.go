package voterroll

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/meowecho-tech/vote/internal/apperr"
	"github.com/meowecho-tech/vote/internal/models"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

var (
	ErrUnknownFormat = apperr.New(apperr.KindValidation, "invalid_format", "format must be either 'csv' or 'json'")
	ErrInvalidJSON   = apperr.New(apperr.KindValidation, "invalid_json", "invalid json, expected string array")
)

// RowError reports a payload row that could not be read.
type RowError struct {
	Row    int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("invalid row %d: %s", e.Row, e.Reason)
}

func (e *RowError) Kind() apperr.Kind { return apperr.KindValidation }

// Row is one identifier with the row number it had in the payload.
type Row struct {
	Line       int
	Identifier string
}

func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", ErrUnknownFormat
	}
}

// Parse reads identifiers from a payload. For csv and xlsx only the first
// column counts, blank rows are skipped and a first-row header of user_id,
// email or identifier is ignored. JSON must be an array of strings; blank
// entries are skipped and rows are numbered from 1.
func Parse(format Format, data []byte) ([]Row, error) {
	if format != FormatXLSX {
		data = bytes.TrimPrefix(data, utf8BOM)
	}
	switch format {
	case FormatCSV:
		return parseCSV(data)
	case FormatJSON:
		return parseJSON(data)
	case FormatXLSX:
		return parseXLSX(data)
	default:
		return nil, ErrUnknownFormat
	}
}

func isHeader(value string) bool {
	switch strings.ToLower(value) {
	case "user_id", "email", "identifier":
		return true
	}
	return false
}

func parseCSV(data []byte) ([]Row, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)

		first := strings.TrimSpace(record[0])
		if len(record) == 1 && first == "" {
			continue
		}
		if line == 1 && isHeader(first) {
			continue
		}
		if first == "" {
			return nil, &RowError{Row: line, Reason: "missing identifier"}
		}
		rows = append(rows, Row{Line: line, Identifier: first})
	}
	return rows, nil
}

func parseJSON(data []byte) ([]Row, error) {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, ErrInvalidJSON
	}
	rows := make([]Row, 0, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		rows = append(rows, Row{Line: i + 1, Identifier: v})
	}
	return rows, nil
}

func parseXLSX(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}

	var rows []Row
	for i, cols := range cells {
		line := i + 1
		if blankRow(cols) {
			continue
		}
		first := strings.TrimSpace(cols[0])
		if line == 1 && isHeader(first) {
			continue
		}
		if first == "" {
			return nil, &RowError{Row: line, Reason: "missing identifier"}
		}
		rows = append(rows, Row{Line: line, Identifier: first})
	}
	return rows, nil
}

func blankRow(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// EncodeJSON renders rows as the JSON string-array payload the API accepts.
func EncodeJSON(rows []Row) (string, error) {
	values := make([]string, len(rows))
	for i, r := range rows {
		values[i] = r.Identifier
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// RemapRows rewrites issue rows of a report produced from EncodeJSON(rows)
// back to the original payload row numbers.
func RemapRows(issues []models.ImportIssue, rows []Row) {
	for i := range issues {
		idx := issues[i].Row - 1
		if idx >= 0 && idx < len(rows) {
			issues[i].Row = rows[idx].Line
		}
	}
}
