// Package prompts holds the persona prompt templates and the formatter that
// fills them.
package prompts

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
)

// Template names
const (
	Manager         = "manager"
	Analyst         = "analyst"
	Associate       = "associate"
	AnalystTask     = "analyst_task"
	AssociateReview = "associate_review"
	ManagerReport   = "manager_report"
	Reviewer        = "reviewer"
)

//go:embed templates/*.md
var templateFS embed.FS

var defaults = loadDefaults()

func loadDefaults() map[string]string {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		panic(fmt.Sprintf("prompts: reading embedded templates: %v", err))
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		data, err := templateFS.ReadFile(path.Join("templates", e.Name()))
		if err != nil {
			panic(fmt.Sprintf("prompts: reading %s: %v", e.Name(), err))
		}
		out[strings.TrimSuffix(e.Name(), ".md")] = strings.TrimSpace(string(data))
	}
	return out
}

// Defaults returns a copy of the built-in templates keyed by name
func Defaults() map[string]string {
	out := make(map[string]string, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	return out
}

// Names returns the built-in template names in sorted order
func Names() []string {
	names := make([]string, 0, len(defaults))
	for k := range defaults {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Set is a template lookup with per-session overrides on top of the defaults
type Set struct {
	overrides map[string]string
}

// NewSet returns a Set that prefers overrides and falls back to the defaults.
// Empty override values are ignored.
func NewSet(overrides map[string]string) *Set {
	return &Set{overrides: overrides}
}

// Get returns the template registered under name
func (s *Set) Get(name string) (string, error) {
	if s != nil {
		if tpl, ok := s.overrides[name]; ok && strings.TrimSpace(tpl) != "" {
			return tpl, nil
		}
	}
	if tpl, ok := defaults[name]; ok {
		return tpl, nil
	}
	return "", fmt.Errorf("unknown prompt template '%s'", name)
}

// Render looks up name and formats it with values. A missing placeholder value
// yields a *MissingKeyError carrying the template name.
func (s *Set) Render(name string, values map[string]string) (string, error) {
	tpl, err := s.Get(name)
	if err != nil {
		return "", err
	}
	out, err := Format(tpl, values)
	if err != nil {
		if mk, ok := err.(*MissingKeyError); ok {
			mk.Template = name
		}
		return "", err
	}
	return out, nil
}

// MissingKeyError reports a placeholder with no value
type MissingKeyError struct {
	Key      string
	Template string
}

func (e *MissingKeyError) Error() string {
	if e.Template == "" {
		return fmt.Sprintf("Prompt Formatting Error: Missing key %s", e.Key)
	}
	return fmt.Sprintf("Prompt Formatting Error: Missing key %s in %s template", e.Key, e.Template)
}

// Format substitutes {name} placeholders in tpl. "{{" and "}}" produce literal
// braces; extra values are ignored.
func Format(tpl string, values map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tpl))

	for i := 0; i < len(tpl); i++ {
		c := tpl[i]
		switch c {
		case '{':
			if i+1 < len(tpl) && tpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated placeholder at offset %d", i)
			}
			key := tpl[i+1 : i+1+end]
			val, ok := values[key]
			if !ok {
				return "", &MissingKeyError{Key: key}
			}
			b.WriteString(val)
			i += end + 1
		case '}':
			if i+1 < len(tpl) && tpl[i+1] == '}' {
				i++
			}
			b.WriteByte('}')
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// Placeholders lists the distinct placeholder names in tpl in order of first use
func Placeholders(tpl string) []string {
	var (
		keys []string
		seen = map[string]bool{}
	)
	for i := 0; i < len(tpl); i++ {
		if tpl[i] != '{' {
			continue
		}
		if i+1 < len(tpl) && tpl[i+1] == '{' {
			i++
			continue
		}
		end := strings.IndexByte(tpl[i+1:], '}')
		if end < 0 {
			break
		}
		key := tpl[i+1 : i+1+end]
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
		i += end + 1
	}
	return keys
}
