package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kris-hansen/analyst/utils/session"
)

// MIME types of downloadable artifacts
const (
	MIMEText     = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMEHTML     = "text/html"
	MIMEJSON     = "application/json"
	MIMECSV      = "text/csv"
	MIMEXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEZip      = "application/zip"
)

// Artifact is one downloadable file
type Artifact struct {
	Name     string `json:"name"`
	FileName string `json:"file_name"`
	MIME     string `json:"mime"`
	Data     []byte `json:"-"`
	Size     int    `json:"size"`
}

type builder struct {
	prefix string
	out    []Artifact
}

func (b *builder) add(name, suffix, mime string, data []byte) {
	b.out = append(b.out, Artifact{
		Name:     name,
		FileName: b.prefix + "_" + suffix,
		MIME:     mime,
		Data:     data,
		Size:     len(data),
	})
}

func (b *builder) text(name, suffix, content string) {
	if content != "" {
		b.add(name, suffix, MIMEText, []byte(content))
	}
}

func (b *builder) json(name, suffix string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	b.add(name, suffix, MIMEJSON, data)
	return nil
}

// Artifacts lists everything the session can currently export. File names are
// prefixed with the step slug, e.g. "ManagerPlanning_manager_plan.txt".
func Artifacts(s *session.Session, step session.Step) ([]Artifact, error) {
	b := &builder{prefix: step.Slug()}

	tabular := s.TabularFiles()
	for _, f := range tabular {
		data, err := TableCSV(f.Table)
		if err != nil {
			return nil, err
		}
		b.add(f.Name+" (CSV)", f.Name+".csv", MIMECSV, data)
	}
	for _, f := range tabular {
		data, err := TableXLSX(f.Table)
		if err != nil {
			return nil, err
		}
		b.add(f.Name+" (XLSX)", f.Name+".xlsx", MIMEXLSX, data)
	}
	if len(tabular) > 0 {
		data, err := Workbook(s.Tables(), s.AnalysisResults)
		if err != nil {
			return nil, err
		}
		b.add("Combined Workbook (XLSX)", "workbook.xlsx", MIMEXLSX, data)
		if err := b.json("Data Profiles (JSON)", "data_profiles.json", s.Profiles()); err != nil {
			return nil, err
		}
	}
	if texts := s.Texts(); len(texts) > 0 {
		if err := b.json("Text Data (JSON)", "data_texts.json", texts); err != nil {
			return nil, err
		}
	}
	if len(s.AnalysisResults) > 0 {
		if err := b.json("Analysis Results (JSON)", "analysis_results.json", s.AnalysisResults); err != nil {
			return nil, err
		}
		b.add("Analysis Results (Markdown)", "analysis_results.md", MIMEMarkdown, []byte(ResultsMarkdown(s.AnalysisResults)))
		b.add("Analysis Results (HTML)", "analysis_results.html", MIMEHTML, []byte(ResultsHTML(s.AnalysisResults)))
	}

	b.text("Manager Plan (TXT)", "manager_plan.txt", s.Outputs.ManagerPlan)
	b.text("Plan Revisions (TXT)", "plan_revisions.txt", RevisionsText(s.PlanRevisions))
	b.text("Analyst Summary (TXT)", "analyst_summary.txt", s.Outputs.AnalystSummary)
	b.text("Associate Guidance (TXT)", "associate_guidance.txt", s.Outputs.AssociateGuidance)
	b.text("Associate Review (TXT)", "associate_review.txt", s.AssociateReview)
	b.text("Final Report (TXT)", "final_report.txt", s.Outputs.FinalReport)

	if len(s.Conversation) > 0 {
		if err := b.json("Conversation History (JSON)", "conversation_history.json", s.Conversation); err != nil {
			return nil, err
		}
	}
	if s.Consultation != nil {
		b.text("Consultation Response (TXT)", "consultation_response.txt", s.Consultation.Response)
	}
	b.text("Reviewer Response (TXT)", "reviewer_response.txt", s.ReviewerResponse)
	b.text("Output Insights (TXT)", "output_insights.txt", s.OutputInsights)
	b.text("Plot Insights (TXT)", "plot_insights.txt", s.PlotInsights)
	if s.LastExecution != nil {
		b.text("Execution Output (TXT)", "execution_output.txt", s.LastExecution.Output)
	}

	return b.out, nil
}

// RevisionsText lists plan revisions with their patches
func RevisionsText(revs []session.PlanRevision) string {
	if len(revs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range revs {
		fmt.Fprintf(&b, "## Revision %d (%s)\n\n", i+1, r.CreatedAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "Feedback:\n%s\n\n", r.Feedback)
		fmt.Fprintf(&b, "Patch:\n%s\n", r.Patch)
	}
	return b.String()
}

// ReportFiles returns the final report as Markdown and HTML downloads named
// after the project, or nil when no report exists yet.
func ReportFiles(s *session.Session) ([]Artifact, error) {
	if s.Outputs.FinalReport == "" {
		return nil, nil
	}
	page, err := ReportHTML(s.Project.Name+" Final Report", s.Outputs.FinalReport)
	if err != nil {
		return nil, err
	}
	base := s.Project.Name + "_Final_Report"
	md := []byte(s.Outputs.FinalReport)
	return []Artifact{
		{Name: "Report (Markdown)", FileName: base + ".md", MIME: MIMEMarkdown, Data: md, Size: len(md)},
		{Name: "Report (HTML)", FileName: base + ".html", MIME: MIMEHTML, Data: []byte(page), Size: len(page)},
	}, nil
}

// All returns the step artifacts followed by the report downloads
func All(s *session.Session, step session.Step) ([]Artifact, error) {
	arts, err := Artifacts(s, step)
	if err != nil {
		return nil, err
	}
	reports, err := ReportFiles(s)
	if err != nil {
		return nil, err
	}
	return append(arts, reports...), nil
}

// Find returns the artifact with the given file name
func Find(arts []Artifact, fileName string) (Artifact, bool) {
	for _, a := range arts {
		if a.FileName == fileName {
			return a, true
		}
	}
	return Artifact{}, false
}

// Bundle zips artifacts into one archive
func Bundle(arts []Artifact) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, a := range arts {
		w, err := zw.Create(a.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to bundle: %w", a.FileName, err)
		}
		if _, err := w.Write(a.Data); err != nil {
			return nil, fmt.Errorf("failed to add %s to bundle: %w", a.FileName, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish bundle: %w", err)
	}
	return buf.Bytes(), nil
}
