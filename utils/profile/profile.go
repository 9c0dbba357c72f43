package profile

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// File types recorded on a profile
const (
	FileTypeTabular = "tabular"
	FileTypeDocx    = "docx"
	FileTypePDF     = "pdf"
	FileTypeWeb     = "web"
)

// SnippetLength is how much of a text document a profile keeps
const SnippetLength = 200

// Profile is the automated summary of one uploaded file
type Profile struct {
	FileType string `json:"file_type"`

	// tabular
	Columns    []string         `json:"columns,omitempty"`
	Shape      []int            `json:"shape,omitempty"`
	DTypes     map[string]DType `json:"dtypes,omitempty"`
	NullCounts map[string]int   `json:"missing_summary,omitempty"`
	Describe   []ColumnStats    `json:"numeric_summary,omitempty"`

	// text documents
	TextLength  int    `json:"text_length,omitempty"`
	TextSnippet string `json:"text_snippet,omitempty"`
}

// ColumnStats is one column of a describe table. Numeric columns fill the
// moments and quantiles; string and boolean columns fill Unique instead.
type ColumnStats struct {
	Column    string   `json:"column"`
	DType     DType    `json:"dtype"`
	Count     int      `json:"count"`
	NullCount int      `json:"null_count"`
	Unique    *int     `json:"unique,omitempty"`
	Mean      *float64 `json:"mean,omitempty"`
	Std       *float64 `json:"std,omitempty"`
	Min       string   `json:"min,omitempty"`
	Q25       *float64 `json:"25%,omitempty"`
	Median    *float64 `json:"50%,omitempty"`
	Q75       *float64 `json:"75%,omitempty"`
	Max       string   `json:"max,omitempty"`
}

// IsNumeric reports whether the column carries numeric statistics
func (c ColumnStats) IsNumeric() bool {
	return c.DType == Int64 || c.DType == Float64
}

// Tabular profiles a table
func Tabular(t *Table) *Profile {
	rows, cols := t.Shape()
	dtypes := t.DTypes()

	p := &Profile{
		FileType:   FileTypeTabular,
		Columns:    append([]string(nil), t.Columns...),
		Shape:      []int{rows, cols},
		DTypes:     make(map[string]DType, cols),
		NullCounts: make(map[string]int, cols),
		Describe:   make([]ColumnStats, 0, cols),
	}

	for i, name := range t.Columns {
		stats := describeColumn(name, dtypes[i], t.Column(i))
		p.DTypes[name] = dtypes[i]
		p.NullCounts[name] = stats.NullCount
		p.Describe = append(p.Describe, stats)
	}
	return p
}

// Text profiles an extracted text document
func Text(fileType, text string) *Profile {
	return &Profile{
		FileType:    fileType,
		TextLength:  len([]rune(text)),
		TextSnippet: Snippet(text, SnippetLength),
	}
}

// Snippet returns the first n characters of text, with "..." when it was cut
func Snippet(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

func describeColumn(name string, dtype DType, cells []string) ColumnStats {
	stats := ColumnStats{Column: name, DType: dtype}

	var present []string
	for _, c := range cells {
		if IsNull(c) {
			stats.NullCount++
			continue
		}
		present = append(present, strings.TrimSpace(c))
	}
	stats.Count = len(present)

	if dtype == Int64 || dtype == Float64 {
		nums := make([]float64, 0, len(present))
		for _, v := range present {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			// other NaN spellings and infinities are profiled as missing values
			if !IsFinite(f) {
				stats.NullCount++
				continue
			}
			nums = append(nums, f)
		}
		stats.Count = len(nums)
		describeNumeric(&stats, nums)
		return stats
	}

	unique := make(map[string]struct{}, len(present))
	for _, v := range present {
		unique[v] = struct{}{}
	}
	n := len(unique)
	stats.Unique = &n
	if len(present) > 0 {
		sorted := append([]string(nil), present...)
		sort.Strings(sorted)
		stats.Min = sorted[0]
		stats.Max = sorted[len(sorted)-1]
	}
	return stats
}

func describeNumeric(stats *ColumnStats, nums []float64) {
	if len(nums) == 0 {
		return
	}
	sort.Float64s(nums)

	// running mean so large values do not overflow a plain sum
	var mean float64
	for i, v := range nums {
		n := float64(i + 1)
		mean += v/n - mean/n
	}
	stats.Mean = finite(mean)

	if len(nums) > 1 {
		var ss float64
		for _, v := range nums {
			ss += (v - mean) * (v - mean)
		}
		stats.Std = finite(math.Sqrt(ss / float64(len(nums)-1)))
	}

	stats.Q25 = finite(Quantile(nums, 0.25))
	stats.Median = finite(Quantile(nums, 0.5))
	stats.Q75 = finite(Quantile(nums, 0.75))
	stats.Min = FormatNumber(nums[0])
	stats.Max = FormatNumber(nums[len(nums)-1])
}

// finite returns nil for values JSON cannot carry
func finite(f float64) *float64 {
	if !IsFinite(f) {
		return nil
	}
	return &f
}

// Quantile returns the linearly interpolated q-quantile of sorted values
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// FormatNumber renders a statistic compactly
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', 6, 64)
}
