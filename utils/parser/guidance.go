// Package parser turns free-text persona replies into structured values.
//
// Both parsers are heuristics over Markdown the model produces. They never fail:
// anything they cannot recognise degrades to a placeholder the user can edit.
package parser

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// ManualTask is always the last suggestion so the user can type their own task
	ManualTask = "Manually define task below"
	// FallbackTask is offered when no task could be recognised in the guidance
	FallbackTask = "Manually define task based on guidance above."
)

var (
	sectionHeadingRe = regexp.MustCompile(`(?i)next analysis tasks:?`)
	sectionEndRe     = regexp.MustCompile(`(?i)\n\s*\d+\.\s*develop narrative:`)

	bulletRe     = regexp.MustCompile(`^[-*]`)
	enumeratorRe = regexp.MustCompile(`^\d+[.)]\s*`)
	// a leading "*" may survive bullet stripping of "**Task 1:**"
	taskLabelRe = regexp.MustCompile(`(?i)^\**\s*Task\s*\d+\s*\**\s*[:\-]?\s*(.*)$`)

	blockHeaderRe = regexp.MustCompile(`(?i)^\s*(?:[-*]|\d+\.)?\s*\**\s*Task\s*\d+[.\-]?\s*\**`)
	narrativeRe   = regexp.MustCompile(`(?i)5\.\s*Develop Narrative`)
)

// ParseAssociateTasks extracts the ordered list of suggested analysis tasks from
// Associate guidance. Input with any non-space text always yields ManualTask as
// the last element.
func ParseAssociateTasks(guidance string) []string {
	if strings.TrimSpace(guidance) == "" {
		return []string{}
	}
	guidance = strings.ReplaceAll(guidance, "\r\n", "\n")

	var tasks []string
	if section, ok := tasksSection(guidance); ok {
		tasks = parseTaskLines(section)
	}

	if len(tasks) == 0 {
		tasks = parseTaskBlocks(guidance)
	}

	if len(tasks) == 0 {
		log.Warn().Msg("could not parse specific tasks from associate guidance")
		tasks = []string{FallbackTask}
	}

	return finalizeTasks(tasks)
}

// tasksSection returns the text between the "Next Analysis Tasks" heading and
// the numbered "Develop Narrative" heading that follows it.
func tasksSection(guidance string) (string, bool) {
	loc := sectionHeadingRe.FindStringIndex(guidance)
	if loc == nil {
		return "", false
	}
	rest := guidance[loc[1]:]
	end := sectionEndRe.FindStringIndex(rest)
	if end == nil {
		return "", false
	}
	return rest[:end[0]], true
}

// parseTaskLines splits a tasks section into tasks. A bullet, an enumerator or a
// "Task N" label starts a new task; other lines continue the current one.
func parseTaskLines(section string) []string {
	var (
		tasks   []string
		current []string
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		if task := strings.TrimSpace(strings.Join(current, " ")); task != "" {
			tasks = append(tasks, task)
		}
		current = nil
	}

	for _, raw := range strings.Split(strings.TrimSpace(section), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if bulletRe.MatchString(line) {
			flush()
			line = strings.TrimSpace(line[1:])
		}

		if enumeratorRe.MatchString(line) {
			flush()
			line = enumeratorRe.ReplaceAllString(line, "")
		}

		if m := taskLabelRe.FindStringSubmatch(line); m != nil {
			flush()
			line = strings.TrimSpace(m[1])
		}

		line = strings.TrimSpace(strings.Trim(line, "*"))
		if line == "" {
			continue
		}
		current = append(current, line)
	}
	flush()

	return tasks
}

// parseTaskBlocks is the fallback: every line that looks like a "Task N" header
// opens a block, and the block keeps the raw lines until the next header.
func parseTaskBlocks(guidance string) []string {
	var (
		tasks []string
		block strings.Builder
		open  bool
	)
	flush := func() {
		if open {
			if task := strings.TrimSpace(block.String()); task != "" {
				tasks = append(tasks, task)
			}
		}
		block.Reset()
		open = false
	}

	for _, line := range strings.SplitAfter(strings.TrimSpace(guidance), "\n") {
		if narrativeRe.MatchString(line) {
			break
		}

		if blockHeaderRe.MatchString(strings.TrimSpace(line)) {
			flush()
			open = true
			block.WriteString(line)
			continue
		}
		if open {
			block.WriteString(line)
		}
	}
	flush()

	return tasks
}

// finalizeTasks appends ManualTask, drops duplicates keeping the first
// occurrence and makes sure ManualTask is last.
func finalizeTasks(tasks []string) []string {
	seen := make(map[string]bool, len(tasks)+1)
	out := make([]string, 0, len(tasks)+1)
	for _, task := range tasks {
		if task == ManualTask || seen[task] {
			continue
		}
		seen[task] = true
		out = append(out, task)
	}
	return append(out, ManualTask)
}
