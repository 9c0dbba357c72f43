package session

import "strings"

// Step is a stage of the engagement
type Step int

const (
	StepSetup Step = iota
	StepPlanning
	StepUnderstanding
	StepGuidance
	StepExecution
	StepReport
)

var stepNames = []string{
	"Project Setup",
	"Manager Planning",
	"Data Understanding",
	"Analysis Guidance",
	"Analysis Execution",
	"Final Report",
}

// Valid reports whether s is one of the six stages
func (s Step) Valid() bool {
	return s >= StepSetup && s <= StepReport
}

// String returns the display name, e.g. "Manager Planning"
func (s Step) String() string {
	if !s.Valid() {
		return "Unknown"
	}
	return stepNames[s]
}

// Slug returns the name used as a download prefix, e.g. "ManagerPlanning"
func (s Step) Slug() string {
	return strings.ReplaceAll(s.String(), " ", "")
}

// Steps returns every stage in order
func Steps() []Step {
	return []Step{StepSetup, StepPlanning, StepUnderstanding, StepGuidance, StepExecution, StepReport}
}
