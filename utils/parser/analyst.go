package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Section keys of an Analyst task reply
const (
	SectionApproach = "approach"
	SectionCode     = "code"
	SectionResults  = "results_text"
	SectionInsights = "insights"
)

// NoResponseApproach is stored as the approach when the Analyst returned nothing
const NoResponseApproach = "Error: No response from Analyst."

// AnalystSections is the structured form of an Analyst task reply
type AnalystSections struct {
	Approach    string `json:"approach" yaml:"approach"`
	Code        string `json:"code" yaml:"code"`
	ResultsText string `json:"results_text" yaml:"results_text"`
	Insights    string `json:"insights" yaml:"insights"`
}

type sectionHeader struct {
	key string
	re  *regexp.Regexp
}

// Headers tolerate an enumerator, bold markers and the truncated spellings the
// model sometimes emits ("Pytho Code", "Ke Insights").
var sectionHeaders = []sectionHeader{
	{SectionApproach, regexp.MustCompile(`(?im)^\s*\d*\.?\s*\**approach\**:`)},
	{SectionCode, regexp.MustCompile(`(?im)^\s*\d*\.?\s*\**python?\s*code\**:`)},
	{SectionResults, regexp.MustCompile(`(?im)^\s*\d*\.?\s*\**results\**:`)},
	{SectionInsights, regexp.MustCompile(`(?im)^\s*\d*\.?\s*\**key?\s*insights\**:`)},
}

var (
	leadingBoldRe  = regexp.MustCompile(`^\s*\*\*`)
	trailingBoldRe = regexp.MustCompile(`\*\*\s*$`)
	codeFenceRe    = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*[ \t]*\n(.*?)\n?```")
)

// Placeholder is the value a section keeps when its header is missing
func Placeholder(key string) string {
	return fmt.Sprintf("Could not parse '%s' section.", key)
}

type headerMatch struct {
	key        string
	start, end int
}

// ParseAnalystTaskResponse splits an Analyst reply into approach, code, results
// and insights. Each section runs from its header to the next recognised header;
// when a header repeats, the later section wins.
func ParseAnalystTaskResponse(response string) AnalystSections {
	if response == "" {
		return AnalystSections{Approach: NoResponseApproach}
	}

	parts := map[string]string{
		SectionApproach: Placeholder(SectionApproach),
		SectionCode:     Placeholder(SectionCode),
		SectionResults:  Placeholder(SectionResults),
		SectionInsights: Placeholder(SectionInsights),
	}

	var matches []headerMatch
	for _, h := range sectionHeaders {
		for _, loc := range h.re.FindAllStringIndex(response, -1) {
			matches = append(matches, headerMatch{key: h.key, start: loc[0], end: loc[1]})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].start < matches[j].start
	})

	for i, m := range matches {
		end := len(response)
		if i+1 < len(matches) {
			end = matches[i+1].start
		}
		if end < m.end {
			// overlapping header matches
			end = m.end
		}
		parts[m.key] = cleanSection(response[m.end:end])
	}

	code := parts[SectionCode]
	if code != Placeholder(SectionCode) {
		code = ExtractCode(code)
	}

	return AnalystSections{
		Approach:    parts[SectionApproach],
		Code:        code,
		ResultsText: parts[SectionResults],
		Insights:    parts[SectionInsights],
	}
}

func cleanSection(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimSpace(leadingBoldRe.ReplaceAllString(content, ""))
	content = strings.TrimSpace(trailingBoldRe.ReplaceAllString(content, ""))
	return content
}

// ExtractCode returns the body of the first fenced code block in section, or
// the trimmed section when it has no fence.
func ExtractCode(section string) string {
	trimmed := strings.TrimSpace(section)
	if m := codeFenceRe.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// Get returns the section stored under key
func (s AnalystSections) Get(key string) string {
	switch key {
	case SectionApproach:
		return s.Approach
	case SectionCode:
		return s.Code
	case SectionResults:
		return s.ResultsText
	case SectionInsights:
		return s.Insights
	}
	return ""
}
