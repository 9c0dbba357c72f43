package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/kris-hansen/analyst/utils/export"
	"github.com/kris-hansen/analyst/utils/prompts"
	"github.com/kris-hansen/analyst/utils/session"
)

// topic returns the artifact a consultation is about at the session's current step
func topic(s *session.Session) (prompts.Topic, error) {
	switch s.CurrentStep {
	case session.StepPlanning:
		if s.Outputs.ManagerPlan == "" {
			return prompts.Topic{}, prerequisite("Manager plan not generated yet")
		}
		return prompts.Topic{Stage: s.CurrentStep.String(), Subject: "analysis plan", Label: "Current Analysis Plan", Artifact: s.Outputs.ManagerPlan}, nil
	case session.StepUnderstanding:
		if s.Outputs.AnalystSummary == "" {
			return prompts.Topic{}, prerequisite("Analyst summary not generated yet")
		}
		return prompts.Topic{Stage: s.CurrentStep.String(), Subject: "data understanding", Label: "Analyst's Data Summary", Artifact: s.Outputs.AnalystSummary}, nil
	case session.StepGuidance:
		if s.Outputs.AssociateGuidance == "" {
			return prompts.Topic{}, prerequisite("Associate guidance not available")
		}
		return prompts.Topic{Stage: s.CurrentStep.String(), Subject: "analysis guidance", Label: "Associate's Guidance", Artifact: s.Outputs.AssociateGuidance}, nil
	case session.StepExecution:
		if len(s.AnalysisResults) == 0 {
			return prompts.Topic{}, prerequisite("no analysis results yet")
		}
		return prompts.Topic{Stage: s.CurrentStep.String(), Subject: "analysis results", Label: "Analysis Results", Artifact: export.ResultsMarkdown(s.AnalysisResults)}, nil
	case session.StepReport:
		if s.Outputs.FinalReport == "" {
			return prompts.Topic{}, prerequisite("final report not generated yet")
		}
		return prompts.Topic{Stage: s.CurrentStep.String(), Subject: "final report", Label: "Final Report Draft", Artifact: s.Outputs.FinalReport}, nil
	}
	return prompts.Topic{}, prerequisite("nothing to consult on before the project is set up")
}

// Consult sends a free-form request to persona about the current step's
// artifact. The Reviewer answers from the reviewer template; the other
// personas get the generic consultation wrapper.
func (e *Engine) Consult(ctx context.Context, s *session.Session, persona, message string) (*session.Consultation, error) {
	if err := requireInitialized(s); err != nil {
		return nil, err
	}
	persona = strings.ToLower(strings.TrimSpace(persona))
	if !session.IsPersona(persona) {
		return nil, invalid(fmt.Sprintf("unknown persona '%s'", persona))
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, invalid("please enter a message for the consultation")
	}
	t, err := topic(s)
	if err != nil {
		return nil, err
	}
	title := prompts.PersonaTitle(persona)

	var prompt string
	if persona == session.RoleReviewer {
		prompt, err = e.templates(s).Render(prompts.Reviewer,
			prompts.ReviewerValues(s.Project.Name, s.Project.ProblemStatement, t, message))
		if err != nil {
			if key, ok := missingKey(err); ok {
				s.AddMessage(session.RoleSystem, fmt.Sprintf("Error preparing consultation prompt for %s: Missing key %s", title, key))
				e.touch(s)
			}
			return nil, err
		}
	} else {
		prompt = prompts.ConsultPrompt(persona, t, message)
	}

	resp, err := e.ask(ctx, s, persona, prompt, nil)
	if err != nil {
		s.AddMessage(session.RoleSystem, fmt.Sprintf("Error getting consultation response from %s: %v", title, err))
		e.touch(s)
		return nil, err
	}

	c := &session.Consultation{Persona: persona, Stage: t.Stage, Request: message, Response: resp}
	s.Consultation = c
	if persona == session.RoleReviewer {
		s.ReviewerResponse = resp
	}
	s.AddMessage(persona, fmt.Sprintf("Consultation Request (%s): %s\n\nResponse:\n%s", title, message, resp))
	e.touch(s)
	return c, nil
}

// GenerateFinalReport has the Manager synthesize the plan, summary and results
// into a report. Every missing input is named in the error.
func (e *Engine) GenerateFinalReport(ctx context.Context, s *session.Session) (string, error) {
	if err := requireInitialized(s); err != nil {
		return "", err
	}
	var missing []string
	if s.Outputs.ManagerPlan == "" {
		missing = append(missing, "Manager Plan (Step 2)")
	}
	if s.Outputs.AnalystSummary == "" {
		missing = append(missing, "Analyst Summary (Step 3)")
	}
	if len(s.AnalysisResults) == 0 {
		missing = append(missing, "Analysis Results (Step 5)")
	}
	if len(missing) > 0 {
		return "", prerequisite("requires " + strings.Join(missing, ", ") + " to generate the report")
	}

	prompt, err := e.templates(s).Render(prompts.ManagerReport, map[string]string{
		"project_name":             s.Project.Name,
		"problem_statement":        s.Project.ProblemStatement,
		"manager_plan":             s.Outputs.ManagerPlan,
		"analyst_summary":          s.Outputs.AnalystSummary,
		"analysis_results_summary": export.ResultsMarkdown(s.AnalysisResults),
	})
	if err != nil {
		if key, ok := missingKey(err); ok {
			s.AddMessage(session.RoleSystem, "Error formatting Manager Report prompt: Missing key "+key)
			e.touch(s)
		}
		return "", err
	}

	resp, err := e.ask(ctx, s, session.RoleManager, prompt, nil)
	if err != nil {
		s.AddMessage(session.RoleSystem, fmt.Sprintf("Error generating final report: %v", err))
		e.touch(s)
		return "", err
	}

	s.Outputs.FinalReport = resp
	s.AddMessage(session.RoleManager, "Generated Final Report:\n"+resp)
	e.touch(s)
	return resp, nil
}
