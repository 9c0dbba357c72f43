package profile

import (
	"fmt"
	"strings"
)

// Source pairs an uploaded file name with what was extracted from it
type Source struct {
	Name    string
	Profile *Profile
	Text    string // text documents only
}

// IsText reports whether the source is a text document rather than a table
func (s Source) IsText() bool {
	return s.Profile == nil || s.Profile.FileType != FileTypeTabular
}

// NoFiles is the file info used when nothing was loaded
const NoFiles = "No data files loaded."

// NoProfiles is the Analyst summary used when nothing could be profiled
const NoProfiles = "No detailed data profiles or text snippets available."

// FileInfo renders the short per-file listing the Manager plans from
func FileInfo(sources []Source) string {
	var b strings.Builder
	for _, s := range sources {
		if s.IsText() {
			continue
		}
		fmt.Fprintf(&b, "\nFile: %s\n", s.Name)
		fmt.Fprintf(&b, "- Columns: %s\n", pyList(s.Profile.Columns))
		fmt.Fprintf(&b, "- Shape: %s\n", shapeString(s.Profile.Shape))
	}
	for _, s := range sources {
		if !s.IsText() {
			continue
		}
		fmt.Fprintf(&b, "\nFile: %s\n- Type: Text Document\n- Snippet: %s\n", s.Name, Snippet(s.Text, 100))
	}
	if b.Len() == 0 {
		return NoFiles
	}
	return b.String()
}

// Summary renders the Markdown data profile the Analyst assesses
func Summary(sources []Source) string {
	var b strings.Builder
	for _, s := range sources {
		if s.IsText() {
			continue
		}
		fmt.Fprintf(&b, "\n## Profile: %s\n", s.Name)
		writeTabular(&b, s.Profile)
	}
	for _, s := range sources {
		if !s.IsText() {
			continue
		}
		fmt.Fprintf(&b, "\n## Text Document: %s\nSnippet: %s\n", s.Name, Snippet(s.Text, SnippetLength))
	}
	if strings.TrimSpace(b.String()) == "" {
		return NoProfiles
	}
	return b.String()
}

func writeTabular(b *strings.Builder, p *Profile) {
	fmt.Fprintf(b, "- File Type: %s\n", p.FileType)
	fmt.Fprintf(b, "- Shape: %s\n", shapeString(p.Shape))
	fmt.Fprintf(b, "- Columns: %s\n\n", strings.Join(p.Columns, ", "))

	b.WriteString("| Column | DType | Nulls |\n|---|---|---|\n")
	for _, col := range p.Columns {
		fmt.Fprintf(b, "| %s | %s | %d |\n", cell(col), p.DTypes[col], p.NullCounts[col])
	}

	if len(p.Describe) == 0 {
		return
	}
	b.WriteString("\n| statistic |")
	for _, s := range p.Describe {
		fmt.Fprintf(b, " %s |", cell(s.Column))
	}
	b.WriteString("\n|---|")
	for range p.Describe {
		b.WriteString("---|")
	}
	b.WriteString("\n")

	rows := []struct {
		name string
		get  func(ColumnStats) string
	}{
		{"count", func(s ColumnStats) string { return fmt.Sprint(s.Count) }},
		{"null_count", func(s ColumnStats) string { return fmt.Sprint(s.NullCount) }},
		{"unique", func(s ColumnStats) string { return intPtr(s.Unique) }},
		{"mean", func(s ColumnStats) string { return floatPtr(s.Mean) }},
		{"std", func(s ColumnStats) string { return floatPtr(s.Std) }},
		{"min", func(s ColumnStats) string { return orNull(s.Min) }},
		{"25%", func(s ColumnStats) string { return floatPtr(s.Q25) }},
		{"50%", func(s ColumnStats) string { return floatPtr(s.Median) }},
		{"75%", func(s ColumnStats) string { return floatPtr(s.Q75) }},
		{"max", func(s ColumnStats) string { return orNull(s.Max) }},
	}
	for _, row := range rows {
		fmt.Fprintf(b, "| %s |", row.name)
		for _, s := range p.Describe {
			fmt.Fprintf(b, " %s |", cell(row.get(s)))
		}
		b.WriteString("\n")
	}
}

func shapeString(shape []int) string {
	if len(shape) != 2 {
		return "N/A"
	}
	return fmt.Sprintf("(%d, %d)", shape[0], shape[1])
}

// pyList renders names the way the Manager prompt has always shown them: ['a', 'b']
func pyList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

func intPtr(v *int) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(*v)
}

func floatPtr(v *float64) string {
	if v == nil {
		return "null"
	}
	return FormatNumber(*v)
}

func orNull(s string) string {
	if s == "" {
		return "null"
	}
	return s
}
