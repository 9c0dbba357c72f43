// Package profile holds uploaded tables and the shallow statistical profiles
// the personas read.
package profile

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DType is the inferred type of a column
type DType string

const (
	Int64   DType = "Int64"
	Float64 DType = "Float64"
	Boolean DType = "Boolean"
	String  DType = "String"
)

// Table is a rectangular frame of raw cell text. Every row has len(Columns) cells.
type Table struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`

	dtypes []DType
}

// NewTable builds a table, padding short rows and truncating long ones to the header width
func NewTable(name string, columns []string, rows [][]string) *Table {
	width := len(columns)
	fixed := make([][]string, 0, len(rows))
	for _, row := range rows {
		switch {
		case len(row) == width:
			fixed = append(fixed, row)
		case len(row) > width:
			fixed = append(fixed, row[:width])
		default:
			padded := make([]string, width)
			copy(padded, row)
			fixed = append(fixed, padded)
		}
	}
	return &Table{Name: name, Columns: columns, Rows: fixed}
}

// Shape returns (rows, columns)
func (t *Table) Shape() (int, int) {
	return len(t.Rows), len(t.Columns)
}

// Column returns the cells of column i
func (t *Table) Column(i int) []string {
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		if i < len(row) {
			out[r] = row[i]
		}
	}
	return out
}

// IsNull reports whether a cell counts as missing. Empty cells and NaN
// markers are missing.
func IsNull(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "NaN", "nan":
		return true
	}
	return false
}

// IsFinite reports whether f is neither NaN nor an infinity
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// InferDType picks the narrowest type every non-null value parses as
func InferDType(values []string) DType {
	seen := 0
	isInt, isFloat, isBool := true, true, true
	for _, v := range values {
		if IsNull(v) {
			continue
		}
		seen++
		v = strings.TrimSpace(v)
		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(v); !ok {
				isBool = false
			}
		}
		if !isInt && !isFloat && !isBool {
			return String
		}
	}

	switch {
	case seen == 0:
		return String
	case isInt:
		return Int64
	case isFloat:
		return Float64
	case isBool:
		return Boolean
	}
	return String
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// DTypes returns the inferred type of every column, in column order
func (t *Table) DTypes() []DType {
	if t.dtypes == nil {
		t.dtypes = make([]DType, len(t.Columns))
		for i := range t.Columns {
			t.dtypes[i] = InferDType(t.Column(i))
		}
	}
	return t.dtypes
}

// Value converts a cell to its typed Go value, nil when null
func Value(cell string, dtype DType) interface{} {
	if IsNull(cell) {
		return nil
	}
	cell = strings.TrimSpace(cell)
	switch dtype {
	case Int64:
		if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return n
		}
	case Float64:
		if f, err := strconv.ParseFloat(cell, 64); err == nil {
			if !IsFinite(f) {
				return nil
			}
			return f
		}
	case Boolean:
		if b, ok := parseBool(cell); ok {
			return b
		}
	}
	return cell
}

// HeadJSON renders the first n rows as a JSON array of objects. Keys keep column
// order and the separators match the compact style the prompts were written for:
// [{"a": 1, "b": "x"}].
func (t *Table) HeadJSON(n int) (string, error) {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	dtypes := t.DTypes()

	var buf bytes.Buffer
	buf.WriteByte('[')
	for r := 0; r < n; r++ {
		if r > 0 {
			buf.WriteString(", ")
		}
		buf.WriteByte('{')
		for c, col := range t.Columns {
			if c > 0 {
				buf.WriteString(", ")
			}
			key, err := json.Marshal(col)
			if err != nil {
				return "", err
			}
			buf.Write(key)
			buf.WriteString(": ")
			if err := writeJSONValue(&buf, Value(t.Rows[r][c], dtypes[c])); err != nil {
				return "", err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.String(), nil
}

func writeJSONValue(buf *bytes.Buffer, v interface{}) error {
	if f, ok := v.(float64); ok {
		buf.WriteString(formatJSONFloat(f))
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// floats keep a decimal point so 3.0 does not read as an integer
func formatJSONFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
