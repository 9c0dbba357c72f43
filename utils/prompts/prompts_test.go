package prompts

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreEmbedded(t *testing.T) {
	want := []string{Analyst, AnalystTask, Associate, AssociateReview, Manager, ManagerReport, Reviewer}
	assert.Equal(t, want, Names())

	d := Defaults()
	for _, name := range want {
		assert.NotEmpty(t, d[name], name)
	}

	// mutating the copy leaves the built-ins alone
	d[Manager] = "changed"
	assert.NotEqual(t, "changed", Defaults()[Manager])
}

func TestDefaultPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{Manager, []string{"project_name", "problem_statement", "data_context", "file_info"}},
		{Analyst, []string{"problem_statement", "manager_plan", "data_profiles_summary"}},
		{Associate, []string{"problem_statement", "manager_plan", "analyst_summary"}},
		{AnalystTask, []string{"project_name", "problem_statement", "previous_results_summary", "task_to_execute", "file_names", "available_columns", "data_sample"}},
		{AssociateReview, []string{"problem_statement", "associate_guidance", "analysis_results_summary"}},
		{ManagerReport, []string{"project_name", "problem_statement", "manager_plan", "analyst_summary", "analysis_results_summary"}},
		{Reviewer, []string{"project_name", "problem_statement", "current_stage", "project_artifacts", "specific_request"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Placeholders(Defaults()[tt.name]))
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		tpl     string
		values  map[string]string
		want    string
		missing string
	}{
		{"plain text", "no placeholders", nil, "no placeholders", ""},
		{"substitution", "Hello {name}!", map[string]string{"name": "Ada"}, "Hello Ada!", ""},
		{"repeated key", "{a}-{a}", map[string]string{"a": "x"}, "x-x", ""},
		{"escaped braces", "{{literal}} {v}", map[string]string{"v": "1"}, "{literal} 1", ""},
		{"extra values ignored", "{a}", map[string]string{"a": "1", "b": "2"}, "1", ""},
		{"value containing braces is not re-expanded", "{a}", map[string]string{"a": "{b}"}, "{b}", ""},
		{"missing key", "File: {file-name}", map[string]string{"file_names": "x"}, "", "file-name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Format(tt.tpl, tt.values)
			if tt.missing != "" {
				var mk *MissingKeyError
				require.True(t, errors.As(err, &mk))
				assert.Equal(t, tt.missing, mk.Key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatUnterminated(t *testing.T) {
	_, err := Format("broken {placeholder", nil)
	assert.Error(t, err)
}

func TestSetOverridesAndRender(t *testing.T) {
	set := NewSet(map[string]string{
		Manager: "Plan for {project_name}",
		Analyst: "   ",
	})

	tpl, err := set.Get(Manager)
	require.NoError(t, err)
	assert.Equal(t, "Plan for {project_name}", tpl)

	// blank overrides fall back to the built-in
	tpl, err = set.Get(Analyst)
	require.NoError(t, err)
	assert.Equal(t, Defaults()[Analyst], tpl)

	_, err = set.Get("unknown")
	assert.Error(t, err)

	out, err := set.Render(Manager, map[string]string{"project_name": "Churn"})
	require.NoError(t, err)
	assert.Equal(t, "Plan for Churn", out)

	_, err = set.Render(Manager, nil)
	var mk *MissingKeyError
	require.True(t, errors.As(err, &mk))
	assert.Equal(t, Manager, mk.Template)
	assert.Equal(t, "Prompt Formatting Error: Missing key project_name in manager template", err.Error())

	var nilSet *Set
	tpl, err = nilSet.Get(Reviewer)
	require.NoError(t, err)
	assert.Equal(t, Defaults()[Reviewer], tpl)
}

func TestConsultPrompt(t *testing.T) {
	topic := Topic{
		Stage:    "Manager Planning",
		Subject:  "analysis plan",
		Label:    "Current Analysis Plan",
		Artifact: "1. Load data",
	}

	got := ConsultPrompt("analyst", topic, "Is step 1 enough?")
	assert.True(t, strings.HasPrefix(got, "You are the AI Analyst. A user is consulting with you about the current analysis plan."))
	assert.Contains(t, got, "**Current Analysis Plan:**\n1. Load data")
	assert.Contains(t, got, "**User's Question/Request:**\nIs step 1 enough?")
	assert.True(t, strings.HasSuffix(got, "regarding the analysis plan."))
}

func TestReviewerValuesRenderDefault(t *testing.T) {
	topic := Topic{Stage: "Data Understanding", Label: "Analyst's Data Summary", Artifact: "Looks clean."}
	out, err := NewSet(nil).Render(Reviewer, ReviewerValues("Churn", "Why do users leave?", topic, "Any risks?"))
	require.NoError(t, err)

	assert.Contains(t, out, "Current Project Stage: Data Understanding")
	assert.Contains(t, out, "Relevant Project Artifacts:\nAnalyst's Data Summary:\nLooks clean.")
	assert.Contains(t, out, "User's Specific Review Request: Any risks?")
}

func TestRevisionPrompt(t *testing.T) {
	got := RevisionPrompt(RevisionInput{
		ProjectName:      "Churn",
		ProblemStatement: "Why?",
		DataContext:      "CRM export",
		Plan:             "1. Old step",
		Feedback:         "Add a cohort view",
	})

	assert.True(t, strings.HasPrefix(got, "**Original Context:**\nProject Name: Churn\n"))
	assert.Contains(t, got, "**Original Plan:**\n1. Old step\n\n**User Feedback:**\nAdd a cohort view")
	assert.True(t, strings.HasSuffix(got, "Output only the revised plan."))
}

func TestInsightSamples(t *testing.T) {
	assert.Equal(t,
		"Original Code:\n```python\nprint(1)\n```\n\nPasted Output:\n```\n1\n```",
		OutputInsightsSample("print(1)", "1"))
	assert.Contains(t, PlotInsightsSample("fig = px.bar(df)", "A bar chart"), "AI's Description of Plot:\n```\nA bar chart\n```")
	assert.Equal(t, "Analyze the following output based on the original task: count rows", OutputInsightsTask("count rows"))
	assert.Equal(t, "Analyze the plot described below based on the original task: plot it", PlotInsightsTask("plot it"))
	assert.Equal(t, "Reviewer", PersonaTitle("reviewer"))
	assert.Equal(t, "", PersonaTitle(""))
}
