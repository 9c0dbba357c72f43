package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAssociateTasks(t *testing.T) {
	tests := []struct {
		name     string
		guidance string
		expected []string
	}{
		{
			name:     "empty guidance",
			guidance: "",
			expected: []string{},
		},
		{
			name:     "whitespace only",
			guidance: "   \n\t\n",
			expected: []string{},
		},
		{
			name: "numbered tasks section",
			guidance: `**1. Refine Initial Analysis Steps:**
Look at the sales file first.

**4. Next Analysis Tasks:**
1. Calculate correlation for numeric columns in sales.csv using Polars.
2. Generate frequency counts for column region
   and plot a bar chart.
- Check missing values in customers.csv

5. Develop Narrative: Revenue is concentrated in a few regions.`,
			expected: []string{
				"Calculate correlation for numeric columns in sales.csv using Polars.",
				"Generate frequency counts for column region and plot a bar chart.",
				"Check missing values in customers.csv",
				ManualTask,
			},
		},
		{
			name: "bold task labels inside bullets",
			guidance: `Next Analysis Tasks:
*   **Task 1:** Compute summary statistics.
*   **Task 2:** Build a histogram of price.
5. Develop Narrative: tbd`,
			expected: []string{
				"Compute summary statistics.",
				"Build a histogram of price.",
				ManualTask,
			},
		},
		{
			name: "bare bold task labels",
			guidance: `Next Analysis Tasks:
**Task 1:** Compute stats.
**Task 2:** Plot.
5. Develop Narrative: tbd`,
			expected: []string{"Compute stats.", "Plot.", ManualTask},
		},
		{
			name: "heading without narrative falls back to task blocks",
			guidance: `Next Analysis Tasks
Task 1: Clean the data
Remove duplicates.
Task 2 - Explore distributions`,
			expected: []string{
				"Task 1: Clean the data\nRemove duplicates.",
				"Task 2 - Explore distributions",
				ManualTask,
			},
		},
		{
			name: "task blocks stop at develop narrative",
			guidance: `Here is my guidance.
- **Task 1.** Segment customers
  by spend.
5. Develop Narrative
Task 3: never reached`,
			expected: []string{
				"- **Task 1.** Segment customers\n  by spend.",
				ManualTask,
			},
		},
		{
			name:     "nothing recognisable",
			guidance: "The data looks fine. Proceed as you see fit.",
			expected: []string{FallbackTask, ManualTask},
		},
		{
			name: "duplicates and sentinel are normalised",
			guidance: `Next Analysis Tasks:
1. Do A
2. Do A
3. Manually define task below
4. Do B

6. Develop Narrative: x`,
			expected: []string{"Do A", "Do B", ManualTask},
		},
		{
			name:     "windows line endings",
			guidance: "Next Analysis Tasks:\r\n1. First\r\n2. Second\r\n5. Develop Narrative: x",
			expected: []string{"First", "Second", ManualTask},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseAssociateTasks(tt.guidance))
		})
	}
}

func TestParseAssociateTasksSentinelAlwaysLast(t *testing.T) {
	inputs := []string{
		"Next Analysis Tasks:\n1. Manually define task below\n2. Real task\n5. Develop Narrative: x",
		"Task 1: something",
		"no tasks here",
	}

	for _, in := range inputs {
		tasks := ParseAssociateTasks(in)
		if assert.NotEmpty(t, tasks) {
			assert.Equal(t, ManualTask, tasks[len(tasks)-1])
		}
		seen := map[string]bool{}
		for _, task := range tasks {
			assert.False(t, seen[task], "duplicate task %q", task)
			assert.NotEmpty(t, task)
			seen[task] = true
		}
	}
}

func TestTasksSection(t *testing.T) {
	section, ok := tasksSection("intro\nNEXT ANALYSIS TASKS: a\nb\n  12. develop narrative: z")
	assert.True(t, ok)
	assert.Equal(t, " a\nb", section)

	_, ok = tasksSection("next analysis tasks: a\nb")
	assert.False(t, ok)

	_, ok = tasksSection("5. Develop Narrative: z")
	assert.False(t, ok)
}
