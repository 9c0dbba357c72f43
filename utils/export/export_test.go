package export

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kris-hansen/analyst/utils/input"
	"github.com/kris-hansen/analyst/utils/profile"
	"github.com/kris-hansen/analyst/utils/session"
)

func sampleResult() session.AnalysisResult {
	return session.AnalysisResult{
		Task:        "Total units by region",
		Files:       []string{"sales.csv"},
		Approach:    "Group and sum",
		Code:        "df.group_by('region').sum()",
		ResultsText: "West leads",
		Insights:    "Focus on West",
	}
}

func sampleSession() *session.Session {
	s := session.New("s1", session.Settings{}, time.Unix(0, 0))
	s.Project.Name = "Sales"
	tbl := profile.NewTable("sales.csv", []string{"region", "units"}, [][]string{{"West", "10"}, {"East", "4"}})
	s.AddFile(&input.File{Name: "sales.csv", Kind: input.KindTabular, FileType: profile.FileTypeTabular, Table: tbl, Profile: profile.Tabular(tbl)})
	s.AddFile(&input.File{Name: "brief.docx", Kind: input.KindText, FileType: profile.FileTypeDocx, Text: "Brief", Profile: profile.Text(profile.FileTypeDocx, "Brief")})
	return s
}

func TestResultsMarkdown(t *testing.T) {
	assert.Equal(t, "No analysis results available.", ResultsMarkdown(nil))

	want := "## Analysis Results Summary\n\n" +
		"### Task 1: Total units by region\n\n" +
		"**Approach:**\nGroup and sum\n\n" +
		"**Code:**\n```python\ndf.group_by('region').sum()\n```\n\n" +
		"**Results:**\nWest leads\n\n" +
		"**Insights:**\nFocus on West\n\n---\n\n"
	assert.Equal(t, want, ResultsMarkdown([]session.AnalysisResult{sampleResult()}))
}

func TestResultsHTMLEscapes(t *testing.T) {
	assert.Equal(t, "<p>No analysis results available.</p>", ResultsHTML(nil))

	r := sampleResult()
	r.Code = "if a < b: print('<x>')"
	out := ResultsHTML([]session.AnalysisResult{r})
	assert.Contains(t, out, "<h3>Task 1: Total units by region</h3>")
	assert.Contains(t, out, "if a &lt; b: print(&#39;&lt;x&gt;&#39;)")
	assert.NotContains(t, out, "<x>")
}

func TestReportHTML(t *testing.T) {
	page, err := ReportHTML("Q3 <Review>", "# Findings\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, page, "<title>Q3 &lt;Review&gt;</title>")
	assert.Contains(t, page, "<h1>Findings</h1>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<td>1</td>")
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "sales", SheetName("sales.csv", used))

	used["sales"] = true
	assert.Equal(t, "sales (2)", SheetName("sales.xlsx", used))

	assert.Equal(t, "a_b_c", SheetName("a/b?c.csv", nil))
	assert.Equal(t, "Analysis Results (2)", SheetName("Analysis Results.csv", nil))

	long := SheetName(strings.Repeat("x", 40)+".csv", nil)
	assert.Equal(t, 31, len(long))
}

func TestTableCSV(t *testing.T) {
	tbl := profile.NewTable("t.csv", []string{"a", "b"}, [][]string{{"1", "x,y"}})
	data, err := TableCSV(tbl)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\"x,y\"\n", string(data))
}

func TestWorkbook(t *testing.T) {
	tables := []*profile.Table{
		profile.NewTable("sales.csv", []string{"region", "units"}, [][]string{{"West", "10"}}),
		profile.NewTable("sales.xlsx", []string{"k"}, [][]string{{"v"}}),
	}
	data, err := Workbook(tables, []session.AnalysisResult{sampleResult()})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"sales", "sales (2)", ResultsSheet}, f.GetSheetList())

	rows, err := f.GetRows("sales")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"region", "units"}, {"West", "10"}}, rows)

	results, err := f.GetRows(ResultsSheet)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"Task", "Files", "Approach", "Code", "Results", "Insights"}, results[0])
	assert.Equal(t, "Total units by region", results[1][0])
}

func TestArtifactsNamesFollowStep(t *testing.T) {
	s := sampleSession()
	s.Outputs.ManagerPlan = "Plan"
	s.AddMessage(session.RoleUser, "hi")

	arts, err := Artifacts(s, session.StepPlanning)
	require.NoError(t, err)

	var names []string
	for _, a := range arts {
		names = append(names, a.FileName)
		assert.Equal(t, len(a.Data), a.Size)
	}
	assert.Equal(t, []string{
		"ManagerPlanning_sales.csv.csv",
		"ManagerPlanning_sales.csv.xlsx",
		"ManagerPlanning_workbook.xlsx",
		"ManagerPlanning_data_profiles.json",
		"ManagerPlanning_data_texts.json",
		"ManagerPlanning_manager_plan.txt",
		"ManagerPlanning_conversation_history.json",
	}, names)

	plan, ok := Find(arts, "ManagerPlanning_manager_plan.txt")
	require.True(t, ok)
	assert.Equal(t, "Plan", string(plan.Data))
	assert.Equal(t, MIMEText, plan.MIME)

	_, ok = Find(arts, "ManagerPlanning_final_report.txt")
	assert.False(t, ok)
}

func TestReportFiles(t *testing.T) {
	s := sampleSession()
	reports, err := ReportFiles(s)
	require.NoError(t, err)
	assert.Nil(t, reports)

	s.Outputs.FinalReport = "# Report"
	reports, err = ReportFiles(s)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "Sales_Final_Report.md", reports[0].FileName)
	assert.Equal(t, "Sales_Final_Report.html", reports[1].FileName)
	assert.Contains(t, string(reports[1].Data), "<h1>Report</h1>")
}

func TestBundle(t *testing.T) {
	arts := []Artifact{
		{FileName: "a.txt", Data: []byte("alpha")},
		{FileName: "b.json", Data: []byte("{}")},
	}
	data, err := Bundle(arts)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "a.txt", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(content))
}

func TestRevisionsText(t *testing.T) {
	assert.Empty(t, RevisionsText(nil))
	out := RevisionsText([]session.PlanRevision{{Feedback: "more detail", Patch: "@@ -1 +1 @@", CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}})
	assert.Equal(t, "## Revision 1 (2024-01-02T03:04:05Z)\n\nFeedback:\nmore detail\n\nPatch:\n@@ -1 +1 @@\n", out)
}
