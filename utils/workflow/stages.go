package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/kris-hansen/analyst/utils/input"
	"github.com/kris-hansen/analyst/utils/parser"
	"github.com/kris-hansen/analyst/utils/profile"
	"github.com/kris-hansen/analyst/utils/prompts"
	"github.com/kris-hansen/analyst/utils/session"
)

// ProjectInput is what the user enters at setup
type ProjectInput struct {
	Name             string `json:"project_name"`
	ProblemStatement string `json:"problem_statement"`
	DataContext      string `json:"data_context"`
}

// Setup validates the project, ingests the files and moves to Manager
// Planning. Previous outputs and files are discarded even when ingestion
// fails, leaving the session uninitialized.
func (e *Engine) Setup(ctx context.Context, s *session.Session, in ProjectInput, uploads []input.Upload, urls []string) (*input.Batch, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.ProblemStatement = strings.TrimSpace(in.ProblemStatement)
	if in.Name == "" || in.ProblemStatement == "" {
		return nil, invalid("project name and problem statement are required")
	}
	var cleanURLs []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			cleanURLs = append(cleanURLs, u)
		}
	}
	if len(uploads) == 0 && len(cleanURLs) == 0 {
		return nil, invalid("at least one data file or URL is required")
	}

	s.Reset(e.now())

	e.emit(ProgressUpdate{Type: ProgressStep, Message: "Processing files", Stage: session.StepSetup.String()})
	batch := e.handler.ProcessAll(ctx, uploads, cleanURLs)
	if len(batch.Files) == 0 {
		err := invalid("no files could be processed")
		e.emit(ProgressUpdate{Type: ProgressError, Message: err.Error(), Error: err, Stage: session.StepSetup.String()})
		return batch, err
	}
	e.emit(ProgressUpdate{Type: ProgressComplete, Message: fmt.Sprintf("Processed %d files", len(batch.Files)), Stage: session.StepSetup.String()})

	s.Project = session.Project{Name: in.Name, ProblemStatement: in.ProblemStatement, DataContext: in.DataContext}
	for _, f := range batch.Files {
		s.AddFile(f)
	}
	s.Initialized = true
	s.CurrentStep = session.StepPlanning
	s.AddMessage(session.RoleUser, s.InitMessage())
	e.touch(s)

	e.log.Info().Str("session", s.ID).Str("project", in.Name).Int("files", len(batch.Files)).
		Int("skipped", len(batch.Errors)).Msg("project initialized")
	return batch, nil
}

// GenerateManagerPlan asks the Manager for an analysis plan
func (e *Engine) GenerateManagerPlan(ctx context.Context, s *session.Session) (string, error) {
	if err := requireInitialized(s); err != nil {
		return "", err
	}

	prompt, err := e.templates(s).Render(prompts.Manager, map[string]string{
		"project_name":      s.Project.Name,
		"problem_statement": s.Project.ProblemStatement,
		"data_context":      s.Project.DataContext,
		"file_info":         profile.FileInfo(s.ProfileSources()),
	})
	if err != nil {
		return "", err
	}

	resp, err := e.ask(ctx, s, session.RoleManager, prompt, nil)
	if err != nil {
		s.AddMessage(session.RoleSystem, fmt.Sprintf("Error getting Manager plan: %v", err))
		e.touch(s)
		return "", err
	}

	s.Outputs.ManagerPlan = resp
	s.AddMessage(session.RoleManager, "Generated Analysis Plan:\n"+resp)
	e.touch(s)
	return resp, nil
}

// RevisePlan asks the Manager to revise its plan from user feedback. The
// revision is kept with a patch against the previous plan.
func (e *Engine) RevisePlan(ctx context.Context, s *session.Session, feedback string) (*session.PlanRevision, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	if s.Outputs.ManagerPlan == "" {
		return nil, prerequisite("generate the Manager plan first")
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, invalid("feedback is required")
	}

	s.AddMessage(session.RoleUser, "Feedback on Manager Plan: "+feedback)
	prompt := prompts.RevisionPrompt(prompts.RevisionInput{
		ProjectName:      s.Project.Name,
		ProblemStatement: s.Project.ProblemStatement,
		DataContext:      s.Project.DataContext,
		Plan:             s.Outputs.ManagerPlan,
		Feedback:         feedback,
	})

	resp, err := e.ask(ctx, s, session.RoleManager, prompt, nil)
	if err != nil {
		s.AddMessage(session.RoleSystem, fmt.Sprintf("Error revising Manager plan: %v", err))
		e.touch(s)
		return nil, err
	}

	rev := session.PlanRevision{
		Feedback:  feedback,
		Previous:  s.Outputs.ManagerPlan,
		Revised:   resp,
		Patch:     planPatch(s.Outputs.ManagerPlan, resp),
		CreatedAt: e.now(),
	}
	s.PlanRevisions = append(s.PlanRevisions, rev)
	s.Outputs.ManagerPlan = resp
	s.AddMessage(session.RoleManager, "Revised Plan based on feedback:\n"+resp)
	e.touch(s)
	return &rev, nil
}

func planPatch(previous, revised string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(previous, revised, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(previous, diffs))
}

// GenerateAnalystSummary asks the Analyst to assess the data against the plan
func (e *Engine) GenerateAnalystSummary(ctx context.Context, s *session.Session) (string, error) {
	if err := requireInitialized(s); err != nil {
		return "", err
	}
	if s.Outputs.ManagerPlan == "" {
		return "", prerequisite("Manager plan not generated yet")
	}

	sources := s.ProfileSources()
	if len(sources) == 0 {
		e.log.Warn().Str("session", s.ID).Msg("no data profiles or text content for the Analyst")
	}
	prompt, err := e.templates(s).Render(prompts.Analyst, map[string]string{
		"problem_statement":     s.Project.ProblemStatement,
		"manager_plan":          s.Outputs.ManagerPlan,
		"data_profiles_summary": profile.Summary(sources),
	})
	if err != nil {
		return "", err
	}

	resp, err := e.ask(ctx, s, session.RoleAnalyst, prompt, nil)
	if err != nil {
		s.AddMessage(session.RoleSystem, fmt.Sprintf("Error getting Analyst summary: %v", err))
		e.touch(s)
		return "", err
	}

	s.Outputs.AnalystSummary = resp
	s.AddMessage(session.RoleAnalyst, "Generated Data Summary:\n"+resp)
	e.touch(s)
	return resp, nil
}

// GenerateGuidance asks the Associate for analysis guidance and next tasks
func (e *Engine) GenerateGuidance(ctx context.Context, s *session.Session) (string, error) {
	if err := requireInitialized(s); err != nil {
		return "", err
	}
	if s.Outputs.ManagerPlan == "" || s.Outputs.AnalystSummary == "" {
		return "", prerequisite("Manager plan and Analyst summary are required")
	}

	prompt, err := e.templates(s).Render(prompts.Associate, map[string]string{
		"problem_statement": s.Project.ProblemStatement,
		"manager_plan":      s.Outputs.ManagerPlan,
		"analyst_summary":   s.Outputs.AnalystSummary,
	})
	if err != nil {
		return "", err
	}

	resp, err := e.ask(ctx, s, session.RoleAssociate, prompt, nil)
	if err != nil {
		s.AddMessage(session.RoleSystem, fmt.Sprintf("Error getting Associate guidance: %v", err))
		e.touch(s)
		return "", err
	}

	s.Outputs.AssociateGuidance = resp
	s.AddMessage(session.RoleAssociate, "Generated Analysis Guidance:\n"+resp)
	e.touch(s)
	return resp, nil
}

// SuggestedTasks lists the tasks proposed in the Associate's guidance
func (e *Engine) SuggestedTasks(s *session.Session) ([]string, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	if s.Outputs.AssociateGuidance == "" {
		return nil, prerequisite("Associate guidance not available")
	}
	return parser.ParseAssociateTasks(s.Outputs.AssociateGuidance), nil
}

// Navigate moves the session to step. Only Project Setup is reachable before
// initialization.
func (e *Engine) Navigate(s *session.Session, step session.Step) error {
	if !step.Valid() {
		return invalid(fmt.Sprintf("unknown step %d", step))
	}
	if step != session.StepSetup && !s.Initialized {
		return ErrNotInitialized
	}
	s.CurrentStep = step
	e.touch(s)
	return nil
}

// Reset clears the project and its outputs. Settings, including the API key,
// model and template overrides, are kept.
func (e *Engine) Reset(s *session.Session) {
	s.Reset(e.now())
	e.log.Info().Str("session", s.ID).Msg("session reset")
}
