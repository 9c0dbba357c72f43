package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kris-hansen/analyst/utils/profile"
	"github.com/kris-hansen/analyst/utils/session"
)

// maxSheetName is Excel's limit on worksheet name length
const maxSheetName = 31

// ResultsSheet names the worksheet holding analysis results in the combined workbook
const ResultsSheet = "Analysis Results"

// TableCSV writes a table with its header row
func TableCSV(t *profile.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("failed to write %s as CSV: %w", t.Name, err)
	}
	return buf.Bytes(), nil
}

// TableXLSX writes a table into a single-sheet workbook
func TableXLSX(t *profile.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(t.Name, nil)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := writeSheet(f, sheet, t); err != nil {
		return nil, err
	}
	return workbookBytes(f)
}

// Workbook writes every table to its own sheet plus an Analysis Results sheet
func Workbook(tables []*profile.Table, results []session.AnalysisResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	used := map[string]bool{}
	first := true
	for _, t := range tables {
		sheet := SheetName(t.Name, used)
		used[strings.ToLower(sheet)] = true
		if first {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, err
			}
			first = false
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		if err := writeSheet(f, sheet, t); err != nil {
			return nil, err
		}
	}

	if first {
		if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
			return nil, err
		}
	} else if _, err := f.NewSheet(ResultsSheet); err != nil {
		return nil, err
	}
	header := []interface{}{"Task", "Files", "Approach", "Code", "Results", "Insights"}
	if err := f.SetSheetRow(ResultsSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{r.Task, strings.Join(r.Files, ", "), r.Approach, r.Code, r.ResultsText, r.Insights}
		if err := f.SetSheetRow(ResultsSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	return workbookBytes(f)
}

func writeSheet(f *excelize.File, sheet string, t *profile.Table) error {
	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	dtypes := t.DTypes()
	for r, row := range t.Rows {
		values := make([]interface{}, len(row))
		for c, cell := range row {
			values[c] = profile.Value(cell, dtypes[c])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func workbookBytes(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// SheetName derives a valid, unique worksheet name from a file name
func SheetName(name string, used map[string]bool) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Sheet"
	}
	base := truncateRunes(name, maxSheetName)
	if !used[strings.ToLower(base)] && !strings.EqualFold(base, ResultsSheet) {
		return base
	}
	for n := 2; ; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate := truncateRunes(name, maxSheetName-len(suffix)) + suffix
		if !used[strings.ToLower(candidate)] {
			return candidate
		}
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
