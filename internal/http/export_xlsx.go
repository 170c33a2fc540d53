package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"retail-backoffice/internal/repository"

	"github.com/xuri/excelize/v2"
)

// GenerateRecordsExport writes a page of records to a single-sheet xlsx
// workbook. Nested relations become dotted columns ("branch.name"); the
// header row comes from the first record.
func GenerateRecordsExport(sheetName string, records []repository.Record) ([]byte, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	var headers []string
	flat := make([]map[string]any, len(records))
	for i, rec := range records {
		flat[i] = flatten(rec, "", map[string]any{})
	}
	if len(flat) > 0 {
		for k := range flat[0] {
			headers = append(headers, k)
		}
		sort.Strings(headers)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range headers {
		if err := setCellValue(f, sheetName, col+1, 1, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell: %w", err)
		}
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(sheetName, name, name, 18); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for rowIdx, item := range flat {
		for colIdx, header := range headers {
			value := cellValue(item[header])
			if value == nil {
				continue
			}
			if err := setCellValue(f, sheetName, colIdx+1, rowIdx+2, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", rowIdx+2, colIdx+1, err)
			}
		}
	}

	if len(headers) > 0 {
		if err := f.SetPanes(sheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to freeze panes: %w", err)
		}
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

func flatten(rec map[string]any, prefix string, out map[string]any) map[string]any {
	for k, v := range rec {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch sub := v.(type) {
		case repository.Record:
			flatten(sub, key, out)
		case map[string]any:
			flatten(sub, key, out)
		default:
			out[key] = v
		}
	}
	return out
}

func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case json.RawMessage:
		return string(x)
	case []byte:
		return string(x)
	}
	return v
}

func setCellValue(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
