package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/models"
	"github.com/kris-hansen/analyst/utils/workflow"
)

const testGuidance = `**Next Analysis Tasks:**
1. Total units by region
2. Units trend by month

5. Develop Narrative: wrap up`

const testAnalystReply = `1. **Approach:**
Sum units per region.

2. **Python Code:**
` + "```python\nprint(df.groupby('region')['units'].sum())\n```" + `

3. **Results:**
West sold 17 units.

4. **Key Insights:**
West leads.`

func newMockEngine(t *testing.T, replies ...string) (*workflow.Engine, *models.MockProvider) {
	t.Helper()
	mock := models.NewMockProvider(replies...)
	reg := models.NewRegistry()
	require.NoError(t, reg.RegisterProvider("mock", models.NewProviderFactory(
		func() models.Provider { return mock },
		models.ProviderMetadata{Name: "mock", ModelPrefixes: []string{"mock"}, Priority: 1},
	)))
	cfg := config.DefaultEnvConfig()
	cfg.Workflow.Sandbox.Enabled = false
	cfg.Workflow.DefaultModel = "mock-model"
	engine := workflow.NewEngine(cfg, false)
	engine.SetRegistry(reg)
	return engine, mock
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunAnalysis(t *testing.T) {
	dir := t.TempDir()
	csv := writeFile(t, dir, "sales.csv", "region,units\nWest,10\nEast,4\nWest,7\n")
	out := filepath.Join(dir, "out", "bundle.zip")
	engine, mock := newMockEngine(t, "plan", "summary", testGuidance, testAnalystReply, "final report")

	var buf bytes.Buffer
	err := runAnalysis(context.Background(), &buf, engine, []string{csv}, runOptions{
		Name:    "Sales Review",
		Problem: "Which region sells most?",
		Tasks:   1,
		Out:     out,
	})
	require.NoError(t, err, buf.String())
	assert.Len(t, mock.Prompts(), 5)
	assert.Contains(t, buf.String(), "Task 1 done: Total units by region")

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "FinalReport_final_report.txt")
	assert.Contains(t, names, "FinalReport_sales.csv.csv")
}

func TestRunAnalysisSkipsExecutionWhenSandboxDisabled(t *testing.T) {
	dir := t.TempDir()
	csv := writeFile(t, dir, "sales.csv", "region,units\nWest,10\n")
	engine, _ := newMockEngine(t, "plan", "summary", testGuidance, testAnalystReply, "final report")

	var buf bytes.Buffer
	err := runAnalysis(context.Background(), &buf, engine, []string{csv}, runOptions{
		Name:    "Sales",
		Problem: "p",
		Tasks:   1,
		Execute: true,
		Out:     filepath.Join(dir, "b.zip"),
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Skipping execution: code execution is disabled")
}

func TestRunAnalysisRequiresTable(t *testing.T) {
	dir := t.TempDir()
	engine, _ := newMockEngine(t, "plan", "summary", testGuidance)

	err := runAnalysis(context.Background(), &bytes.Buffer{}, engine, []string{writeFile(t, dir, "notes.txt", "x")}, runOptions{
		Name: "n", Problem: "p", Tasks: 1,
	})
	require.Error(t, err)
}

func TestRunAnalysisMissingFile(t *testing.T) {
	engine, _ := newMockEngine(t)
	err := runAnalysis(context.Background(), &bytes.Buffer{}, engine, []string{"/nonexistent/data.csv"}, runOptions{Name: "n", Problem: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent/data.csv")
}
