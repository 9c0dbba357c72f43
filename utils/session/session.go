// Package session holds the state of one analysis engagement.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/kris-hansen/analyst/utils/executor"
	"github.com/kris-hansen/analyst/utils/input"
	"github.com/kris-hansen/analyst/utils/profile"
)

// DefaultProjectName is used until setup names the project
const DefaultProjectName = "Default Project"

// LibraryManagement controls how missing Python packages are handled
type LibraryManagement string

const (
	LibraryManual    LibraryManagement = "Manual"
	LibraryAutomated LibraryManagement = "Automated"
)

// Conversation roles
const (
	RoleUser      = "user"
	RoleSystem    = "system"
	RoleManager   = "manager"
	RoleAnalyst   = "analyst"
	RoleAssociate = "associate"
	RoleReviewer  = "reviewer"
)

// Personas lists the personas that can be consulted
var Personas = []string{RoleManager, RoleAnalyst, RoleAssociate, RoleReviewer}

// IsPersona reports whether name is a consultable persona
func IsPersona(name string) bool {
	name = strings.ToLower(name)
	for _, p := range Personas {
		if p == name {
			return true
		}
	}
	return false
}

// Settings survive a project reset
type Settings struct {
	Model             string            `json:"model"`
	APIKey            string            `json:"api_key,omitempty"`
	LibraryManagement LibraryManagement `json:"library_management"`
	Templates         map[string]string `json:"templates,omitempty"`
}

// Project is what the user describes at setup
type Project struct {
	Name             string `json:"project_name"`
	ProblemStatement string `json:"problem_statement"`
	DataContext      string `json:"data_context"`
}

// PersonaOutput holds the artifact produced at each stage
type PersonaOutput struct {
	ManagerPlan       string `json:"manager_plan,omitempty"`
	AnalystSummary    string `json:"analyst_summary,omitempty"`
	AssociateGuidance string `json:"associate_guidance,omitempty"`
	FinalReport       string `json:"final_report,omitempty"`
}

// PlanRevision records one feedback round on the Manager's plan
type PlanRevision struct {
	Feedback  string    `json:"feedback"`
	Previous  string    `json:"previous"`
	Revised   string    `json:"revised"`
	Patch     string    `json:"patch"`
	CreatedAt time.Time `json:"created_at"`
}

// AnalysisResult is one executed Analyst task
type AnalysisResult struct {
	Task        string   `json:"task"`
	Files       []string `json:"files"`
	Approach    string   `json:"approach"`
	Code        string   `json:"code"`
	ResultsText string   `json:"results_text"`
	Insights    string   `json:"insights"`
}

// ConversationEntry is one message of the engagement log
type ConversationEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Consultation is the latest free-form exchange with a persona
type Consultation struct {
	Persona  string `json:"persona"`
	Stage    string `json:"stage"`
	Request  string `json:"request"`
	Response string `json:"response"`
}

// Session is the complete state of one engagement
type Session struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Initialized bool      `json:"initialized"`
	CurrentStep Step      `json:"current_step"`
	Settings    Settings  `json:"settings"`
	Project     Project   `json:"project"`

	Files     map[string]*input.File `json:"files"`
	FileOrder []string               `json:"file_order"`

	Outputs          PersonaOutput       `json:"outputs"`
	PlanRevisions    []PlanRevision      `json:"plan_revisions,omitempty"`
	AnalysisResults  []AnalysisResult    `json:"analysis_results"`
	Conversation     []ConversationEntry `json:"conversation_history"`
	Consultation     *Consultation       `json:"consultation,omitempty"`
	ReviewerResponse string              `json:"reviewer_response,omitempty"`
	AssociateReview  string              `json:"associate_review,omitempty"`
	OutputInsights   string              `json:"output_insights,omitempty"`
	PlotInsights     string              `json:"plot_insights,omitempty"`
	Plots            []*input.Plot       `json:"plots,omitempty"`
	LastExecution    *executor.Result    `json:"last_execution,omitempty"`
}

// New creates an empty session
func New(id string, settings Settings, now time.Time) *Session {
	if settings.LibraryManagement == "" {
		settings.LibraryManagement = LibraryManual
	}
	s := &Session{ID: id, CreatedAt: now, Settings: settings}
	s.clear()
	s.UpdatedAt = now
	return s
}

func (s *Session) clear() {
	s.Initialized = false
	s.CurrentStep = StepSetup
	s.Project = Project{Name: DefaultProjectName}
	s.Files = make(map[string]*input.File)
	s.FileOrder = nil
	s.ClearOutputs()
}

// ClearOutputs drops everything the personas produced
func (s *Session) ClearOutputs() {
	s.Outputs = PersonaOutput{}
	s.PlanRevisions = nil
	s.AnalysisResults = []AnalysisResult{}
	s.Conversation = []ConversationEntry{}
	s.Consultation = nil
	s.ReviewerResponse = ""
	s.AssociateReview = ""
	s.OutputInsights = ""
	s.PlotInsights = ""
	s.Plots = nil
	s.LastExecution = nil
}

// Reset clears the project and every output but keeps Settings
func (s *Session) Reset(now time.Time) {
	s.clear()
	s.UpdatedAt = now
}

// Touch marks the session as modified
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
}

// AddMessage appends to the conversation history
func (s *Session) AddMessage(role, content string) {
	s.Conversation = append(s.Conversation, ConversationEntry{Role: role, Content: content})
}

// AddFile stores an ingested file, replacing one of the same name
func (s *Session) AddFile(f *input.File) {
	if _, exists := s.Files[f.Name]; !exists {
		s.FileOrder = append(s.FileOrder, f.Name)
	}
	s.Files[f.Name] = f
}

// File returns the named file or nil
func (s *Session) File(name string) *input.File {
	return s.Files[name]
}

// OrderedFiles returns files in upload order
func (s *Session) OrderedFiles() []*input.File {
	out := make([]*input.File, 0, len(s.FileOrder))
	for _, name := range s.FileOrder {
		if f, ok := s.Files[name]; ok {
			out = append(out, f)
		}
	}
	return out
}

// TabularFiles returns the files that carry a table, in upload order
func (s *Session) TabularFiles() []*input.File {
	var out []*input.File
	for _, f := range s.OrderedFiles() {
		if f.Table != nil {
			out = append(out, f)
		}
	}
	return out
}

// TextFiles returns documents and web pages, in upload order
func (s *Session) TextFiles() []*input.File {
	var out []*input.File
	for _, f := range s.OrderedFiles() {
		if f.Table == nil {
			out = append(out, f)
		}
	}
	return out
}

// Tables returns every table in upload order
func (s *Session) Tables() []*profile.Table {
	var out []*profile.Table
	for _, f := range s.TabularFiles() {
		out = append(out, f.Table)
	}
	return out
}

// ProfileSources adapts the files for profile rendering
func (s *Session) ProfileSources() []profile.Source {
	var out []profile.Source
	for _, f := range s.OrderedFiles() {
		out = append(out, f.ProfileSource())
	}
	return out
}

// Profiles maps tabular file names to their profiles
func (s *Session) Profiles() map[string]*profile.Profile {
	out := make(map[string]*profile.Profile)
	for _, f := range s.TabularFiles() {
		out[f.Name] = f.Profile
	}
	return out
}

// Texts maps document names to their extracted text
func (s *Session) Texts() map[string]string {
	out := make(map[string]string)
	for _, f := range s.TextFiles() {
		out[f.Name] = f.Text
	}
	return out
}

// LastResult returns the most recent analysis result or nil
func (s *Session) LastResult() *AnalysisResult {
	if len(s.AnalysisResults) == 0 {
		return nil
	}
	return &s.AnalysisResults[len(s.AnalysisResults)-1]
}

// InitMessage is the user entry written when a project is set up
func (s *Session) InitMessage() string {
	var b strings.Builder
	b.WriteString("Uploaded Files:\n")
	for _, f := range s.TabularFiles() {
		rows, cols := f.Table.Shape()
		fmt.Fprintf(&b, "- Tabular: %s (%d rows, %d cols)\n", f.Name, rows, cols)
	}
	for _, f := range s.TextFiles() {
		fmt.Fprintf(&b, "- Text: %s\n", f.Name)
	}
	return fmt.Sprintf("Project: %s\nProblem: %s\nContext: %s\n\n%s",
		s.Project.Name, s.Project.ProblemStatement, s.Project.DataContext, b.String())
}

// Summary is the listing view of a session
type Summary struct {
	ID          string    `json:"id"`
	ProjectName string    `json:"project_name"`
	Initialized bool      `json:"initialized"`
	CurrentStep Step      `json:"current_step"`
	StepName    string    `json:"step_name"`
	Files       int       `json:"files"`
	Results     int       `json:"results"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summarize returns the listing view
func (s *Session) Summarize() Summary {
	return Summary{
		ID:          s.ID,
		ProjectName: s.Project.Name,
		Initialized: s.Initialized,
		CurrentStep: s.CurrentStep,
		StepName:    s.CurrentStep.String(),
		Files:       len(s.Files),
		Results:     len(s.AnalysisResults),
		UpdatedAt:   s.UpdatedAt,
	}
}
