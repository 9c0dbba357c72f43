package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kris-hansen/analyst/utils/executor"
	"github.com/kris-hansen/analyst/utils/export"
	"github.com/kris-hansen/analyst/utils/input"
	"github.com/kris-hansen/analyst/utils/models"
	"github.com/kris-hansen/analyst/utils/parser"
	"github.com/kris-hansen/analyst/utils/prompts"
	"github.com/kris-hansen/analyst/utils/session"
)

// AutomatedInstallNotice is attached to execution results when the session
// asks for automated library management
const AutomatedInstallNotice = "Automated library installation is not implemented. Install missing packages in the interpreter environment manually."

const taskPreviewLength = 60

func previousResultsSummary(results []session.AnalysisResult) string {
	if len(results) == 0 {
		return "No previous analysis tasks completed in this session."
	}
	lines := make([]string, len(results))
	for i, r := range results {
		task := r.Task
		if runes := []rune(task); len(runes) > taskPreviewLength {
			task = string(runes[:taskPreviewLength])
		}
		lines[i] = fmt.Sprintf("- Task %d: %s...", i+1, task)
	}
	return "Summary of Previous Tasks:\n" + strings.Join(lines, "\n")
}

// RunAnalysisTask has the Analyst perform task on the selected files. The
// first file supplies the columns and the data sample.
func (e *Engine) RunAnalysisTask(ctx context.Context, s *session.Session, task string, files []string) (*session.AnalysisResult, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	if s.Outputs.AssociateGuidance == "" {
		return nil, prerequisite("Associate guidance not available")
	}
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, invalid("please define the task for the Analyst")
	}
	if len(files) == 0 {
		return nil, invalid("please select at least one data file for the task")
	}
	for _, name := range files {
		if f := s.File(name); f == nil || f.Table == nil {
			return nil, invalid(fmt.Sprintf("selected file '%s' not found in loaded data", name))
		}
	}
	target := s.File(files[0]).Table

	sample, err := target.HeadJSON(5)
	if err != nil {
		e.log.Warn().Err(err).Str("file", files[0]).Msg("could not generate JSON sample")
		fallback, _ := json.Marshal(map[string]string{"error": fmt.Sprintf("Could not generate sample: %v", err)})
		sample = string(fallback)
	}

	prompt, err := e.templates(s).Render(prompts.AnalystTask, map[string]string{
		"project_name":             s.Project.Name,
		"problem_statement":        s.Project.ProblemStatement,
		"previous_results_summary": previousResultsSummary(s.AnalysisResults),
		"task_to_execute":          task,
		"file_names":               strings.Join(files, ", "),
		"available_columns":        strings.Join(target.Columns, ", "),
		"data_sample":              sample,
	})
	if err != nil {
		if key, ok := missingKey(err); ok {
			s.AddMessage(session.RoleSystem, "Error formatting Analyst Task prompt: Missing key "+key)
			e.touch(s)
		}
		return nil, err
	}

	resp, err := e.ask(ctx, s, session.RoleAnalyst, prompt, nil)
	if err != nil {
		s.AddMessage(session.RoleSystem, fmt.Sprintf("Error executing task '%s': %v", task, err))
		e.touch(s)
		return nil, err
	}

	s.AddMessage(session.RoleUser, fmt.Sprintf("Requested Analyst Task: %s on files: %s", task, strings.Join(files, ", ")))
	s.AddMessage(session.RoleAnalyst, "Generated Analysis for Task:\n"+resp)

	sections := parser.ParseAnalystTaskResponse(resp)
	result := session.AnalysisResult{
		Task:        task,
		Files:       append([]string(nil), files...),
		Approach:    sections.Approach,
		Code:        sections.Code,
		ResultsText: sections.ResultsText,
		Insights:    sections.Insights,
	}
	s.AnalysisResults = append(s.AnalysisResults, result)
	e.touch(s)
	return &result, nil
}

// RegenerateLastTask re-runs the most recent task in place. The previous
// result is restored if the new attempt fails.
func (e *Engine) RegenerateLastTask(ctx context.Context, s *session.Session) (*session.AnalysisResult, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	last := s.LastResult()
	if last == nil {
		return nil, prerequisite("no analysis task to regenerate")
	}
	previous := *last
	s.AnalysisResults = s.AnalysisResults[:len(s.AnalysisResults)-1]

	result, err := e.RunAnalysisTask(ctx, s, previous.Task, previous.Files)
	if err != nil {
		s.AnalysisResults = append(s.AnalysisResults, previous)
		return nil, err
	}
	return result, nil
}

// ExecuteCode runs code in the sandbox with every table bound as a dataframe.
// Empty code runs the latest result's code. A code section the parser could not
// find counts as no code.
func (e *Engine) ExecuteCode(ctx context.Context, s *session.Session, code string) (*executor.Result, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		if last := s.LastResult(); last != nil {
			code = last.Code
		}
	}
	code = strings.TrimSpace(code)
	if code == "" || code == parser.Placeholder(parser.SectionCode) {
		return nil, executor.ErrEmptyCode
	}
	if e.runner == nil {
		return nil, executor.ErrSandboxDisabled
	}

	e.emit(ProgressUpdate{Type: ProgressStep, Message: "Executing code", Stage: s.CurrentStep.String()})
	res, err := e.runner.Run(ctx, parser.ExtractCode(code), s.Tables())
	if err != nil {
		e.emit(ProgressUpdate{Type: ProgressError, Message: err.Error(), Error: err, Stage: s.CurrentStep.String()})
		return nil, err
	}
	e.emit(ProgressUpdate{Type: ProgressComplete, Message: "Execution finished", Stage: s.CurrentStep.String(), Duration: res.Duration})

	if s.Settings.LibraryManagement == session.LibraryAutomated {
		res.Notice = AutomatedInstallNotice
	}
	s.LastExecution = res
	e.touch(s)
	return res, nil
}

// InsightsFromOutput asks the Analyst to interpret output of the latest task's
// code. Empty code means the latest result's code.
func (e *Engine) InsightsFromOutput(ctx context.Context, s *session.Session, code, output string) (string, error) {
	if err := requireInitialized(s); err != nil {
		return "", err
	}
	last := s.LastResult()
	if last == nil {
		return "", prerequisite("run an analysis task first")
	}
	if strings.TrimSpace(output) == "" {
		return "", invalid("please paste the code output first")
	}
	if strings.TrimSpace(code) == "" {
		code = last.Code
	}

	prompt, err := e.templates(s).Render(prompts.AnalystTask, map[string]string{
		"project_name":             s.Project.Name,
		"problem_statement":        s.Project.ProblemStatement,
		"previous_results_summary": prompts.OutputInsightsContext,
		"task_to_execute":          prompts.OutputInsightsTask(last.Task),
		"file_names":               strings.Join(last.Files, ", "),
		"available_columns":        prompts.OutputInsightsColumns,
		"data_sample":              prompts.OutputInsightsSample(code, output),
	})
	if err != nil {
		return "", err
	}
	prompt += prompts.OutputInsightsSuffix

	resp, err := e.ask(ctx, s, session.RoleAnalyst, prompt, nil)
	if err != nil {
		s.AddMessage(session.RoleSystem, fmt.Sprintf("Error getting insights from output: %v", err))
		e.touch(s)
		return "", err
	}

	s.OutputInsights = resp
	s.AddMessage(session.RoleAnalyst, "Insights from Pasted Output:\n"+resp)
	e.touch(s)
	return resp, nil
}

// InsightsFromPlot asks the Analyst to interpret the latest task's plot from
// its described results. An uploaded image, when given, is stored and sent to
// providers that accept attachments.
func (e *Engine) InsightsFromPlot(ctx context.Context, s *session.Session, up *input.Upload, code string) (string, error) {
	if err := requireInitialized(s); err != nil {
		return "", err
	}
	last := s.LastResult()
	if last == nil {
		return "", prerequisite("run an analysis task first")
	}
	if strings.TrimSpace(code) == "" {
		code = last.Code
	}

	var att *models.Attachment
	if up != nil {
		plot, err := e.handler.ProcessPlot(*up)
		if err != nil {
			return "", invalid(err.Error())
		}
		s.Plots = append(s.Plots, plot)
		if strings.HasPrefix(plot.MIME, "image/") {
			att = &models.Attachment{MIME: plot.MIME, Data: plot.Data}
		}
	}

	prompt, err := e.templates(s).Render(prompts.AnalystTask, map[string]string{
		"project_name":             s.Project.Name,
		"problem_statement":        s.Project.ProblemStatement,
		"previous_results_summary": prompts.PlotInsightsContext,
		"task_to_execute":          prompts.PlotInsightsTask(last.Task),
		"file_names":               strings.Join(last.Files, ", "),
		"available_columns":        prompts.PlotInsightsColumns,
		"data_sample":              prompts.PlotInsightsSample(code, last.ResultsText),
	})
	if err != nil {
		return "", err
	}
	prompt += prompts.PlotInsightsSuffix

	resp, err := e.ask(ctx, s, session.RoleAnalyst, prompt, att)
	if err != nil {
		s.AddMessage(session.RoleSystem, fmt.Sprintf("Error getting insights from plot description: %v", err))
		e.touch(s)
		return "", err
	}

	s.PlotInsights = resp
	s.AddMessage(session.RoleAnalyst, "Insights from Uploaded Plot Description:\n"+resp)
	e.touch(s)
	return resp, nil
}

// ReviewAnalysis has the Associate check the results against its guidance
func (e *Engine) ReviewAnalysis(ctx context.Context, s *session.Session) (string, error) {
	if err := requireInitialized(s); err != nil {
		return "", err
	}
	if s.Outputs.AssociateGuidance == "" {
		return "", prerequisite("Associate guidance not available")
	}
	if len(s.AnalysisResults) == 0 {
		return "", prerequisite("no analysis results to review")
	}

	prompt, err := e.templates(s).Render(prompts.AssociateReview, map[string]string{
		"problem_statement":        s.Project.ProblemStatement,
		"associate_guidance":       s.Outputs.AssociateGuidance,
		"analysis_results_summary": export.ResultsMarkdown(s.AnalysisResults),
	})
	if err != nil {
		return "", err
	}

	resp, err := e.ask(ctx, s, session.RoleAssociate, prompt, nil)
	if err != nil {
		s.AddMessage(session.RoleSystem, fmt.Sprintf("Error getting Associate review: %v", err))
		e.touch(s)
		return "", err
	}

	s.AssociateReview = resp
	s.AddMessage(session.RoleAssociate, "Associate Review of Analysis Results:\n"+resp)
	e.touch(s)
	return resp, nil
}
