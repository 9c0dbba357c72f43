package prompts

import (
	"fmt"
	"strings"
)

// Topic is the artifact a consultation is about, e.g. the plan during Manager Planning
type Topic struct {
	Stage    string // "Manager Planning"
	Subject  string // "analysis plan"
	Label    string // "Current Analysis Plan"
	Artifact string
}

// ProjectArtifacts renders the topic the way the reviewer template expects it
func (t Topic) ProjectArtifacts() string {
	return fmt.Sprintf("%s:\n%s", t.Label, t.Artifact)
}

// PersonaTitle turns a persona key ("manager") into its display name ("Manager")
func PersonaTitle(persona string) string {
	if persona == "" {
		return ""
	}
	return strings.ToUpper(persona[:1]) + strings.ToLower(persona[1:])
}

// ConsultPrompt wraps a free-form user request to a persona around the current artifact
func ConsultPrompt(persona string, topic Topic, request string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the AI %s. A user is consulting with you about the current %s.\n\n", PersonaTitle(persona), topic.Subject)
	fmt.Fprintf(&b, "**%s:**\n%s\n\n", topic.Label, topic.Artifact)
	fmt.Fprintf(&b, "**User's Question/Request:**\n%s\n\n", request)
	fmt.Fprintf(&b, "**Your Task:** Respond to the user's request based on your persona's expertise regarding the %s.", topic.Subject)
	return b.String()
}

// ReviewerValues returns the placeholder values for the reviewer template
func ReviewerValues(projectName, problem string, topic Topic, request string) map[string]string {
	return map[string]string{
		"project_name":      projectName,
		"problem_statement": problem,
		"current_stage":     topic.Stage,
		"project_artifacts": topic.ProjectArtifacts(),
		"specific_request":  request,
	}
}

// RevisionInput carries what the Manager needs to revise a plan
type RevisionInput struct {
	ProjectName      string
	ProblemStatement string
	DataContext      string
	Plan             string
	Feedback         string
}

// RevisionPrompt asks the Manager to revise its plan from user feedback only
func RevisionPrompt(in RevisionInput) string {
	var b strings.Builder
	b.WriteString("**Original Context:**\n")
	fmt.Fprintf(&b, "Project Name: %s\n", in.ProjectName)
	fmt.Fprintf(&b, "Problem Statement: %s\n", in.ProblemStatement)
	fmt.Fprintf(&b, "Data Context: %s\n", in.DataContext)
	b.WriteString("Available Data Files: [Details omitted for brevity, assume original context available]\n\n")
	fmt.Fprintf(&b, "**Original Plan:**\n%s\n\n", in.Plan)
	fmt.Fprintf(&b, "**User Feedback:**\n%s\n\n", in.Feedback)
	b.WriteString("**Your Task (as AI Manager):**\n")
	b.WriteString("Revise the original analysis plan based ONLY on the user feedback provided. Maintain the structured, step-by-step format. Output only the revised plan.")
	return b.String()
}

// Interpretation context for the analyst_task template when the Analyst reads
// back its own output instead of raw data.
const (
	OutputInsightsContext = "Context: Analyzing output from a previous task."
	OutputInsightsColumns = "N/A (Analyzing output, not raw data)"
	OutputInsightsSuffix  = "\n\nBased on the 'Pasted Output' provided, interpret the results and provide key insights related to the original task. Focus on explaining what the output means in the context of the analysis."

	PlotInsightsContext = "Context: Analyzing a generated plot based on its description."
	PlotInsightsColumns = "N/A (Analyzing plot description)"
	PlotInsightsSuffix  = "\n\nBased on the 'AI's Description of Plot' provided, interpret the visualization and provide key insights related to the original task. Focus on explaining what the described plot suggests about the data."
)

// OutputInsightsTask is the task line used when interpreting pasted output
func OutputInsightsTask(task string) string {
	return "Analyze the following output based on the original task: " + task
}

// OutputInsightsSample places the code and its pasted output where the data sample normally goes
func OutputInsightsSample(code, output string) string {
	return fmt.Sprintf("Original Code:\n```python\n%s\n```\n\nPasted Output:\n```\n%s\n```", code, output)
}

// PlotInsightsTask is the task line used when interpreting a generated plot
func PlotInsightsTask(task string) string {
	return "Analyze the plot described below based on the original task: " + task
}

// PlotInsightsSample places the code and the plot description where the data sample normally goes
func PlotInsightsSample(code, description string) string {
	return fmt.Sprintf("Original Code:\n```python\n%s\n```\n\nAI's Description of Plot:\n```\n%s\n```", code, description)
}
