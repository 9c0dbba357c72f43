package input

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/kris-hansen/analyst/utils/profile"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV parses CSV bytes into a table. The first record is the header;
// ragged rows are padded to the header width.
func ReadCSV(name string, data []byte) (*profile.Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error processing CSV file '%s': %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("error processing CSV file '%s': no header row", name)
	}
	return profile.NewTable(name, normalizeHeader(records[0]), records[1:]), nil
}

// ReadExcel reads the first sheet of a workbook into a table
func ReadExcel(name string, data []byte) (*profile.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error processing Excel file '%s': %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("error processing Excel file '%s': workbook has no sheets", name)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("error processing Excel file '%s': %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("error processing Excel file '%s': sheet %s is empty", name, sheets[0])
	}

	header := rows[0]
	width := len(header)
	for _, row := range rows[1:] {
		if len(row) > width {
			width = len(row)
		}
	}
	for len(header) < width {
		header = append(header, "")
	}
	return profile.NewTable(name, normalizeHeader(header), rows[1:]), nil
}

// normalizeHeader trims names and replaces blank or repeated ones with column_<n>
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			h = fmt.Sprintf("column_%d", i+1)
			for n := 1; seen[h]; n++ {
				h = fmt.Sprintf("column_%d_%d", i+1, n)
			}
		}
		seen[h] = true
		out[i] = h
	}
	return out
}

// ReadDocx extracts paragraph text from a .docx, one paragraph per line
func ReadDocx(name string, data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("error extracting text from DOCX '%s': %w", name, err)
	}

	var paragraphs []string
	for _, item := range doc.Document.Body.Items {
		if p, ok := item.(*docx.Paragraph); ok {
			paragraphs = append(paragraphs, p.String())
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}

// ReadPDF extracts the plain text of every page, each followed by a newline
func ReadPDF(name string, data []byte) (text string, err error) {
	// the pdf reader panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("error extracting text from PDF '%s': %v", name, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("error extracting text from PDF '%s': %w", name, err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("error extracting text from PDF '%s' page %d: %w", name, i, err)
		}
		if pageText != "" {
			b.WriteString(pageText)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}
