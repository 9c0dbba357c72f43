// Package executor runs generated analysis code against the session's tables
// in a local Python interpreter.
package executor

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/profile"
)

//go:embed sandbox.py
var sandboxScript []byte

// DefaultTimeout bounds a single run when none is configured
const DefaultTimeout = 60 * time.Second

var (
	// ErrSandboxDisabled is returned when code execution is switched off
	ErrSandboxDisabled = errors.New("code execution is disabled")
	// ErrEmptyCode is returned when there is nothing to run
	ErrEmptyCode = errors.New("no code to execute")
)

// Result is the captured outcome of one run
type Result struct {
	Code     string          `json:"code"`
	Output   string          `json:"output"`
	Figure   json.RawMessage `json:"figure,omitempty"`
	Notice   string          `json:"notice,omitempty"`
	TimedOut bool            `json:"timed_out,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// Executor runs Python snippets with every tabular file bound as a dataframe
type Executor struct {
	enabled     bool
	interpreter string
	timeout     time.Duration
	workDir     string
}

// New creates an executor from the sandbox configuration. workDir holds the
// per-run scratch directories; empty means the system temp dir.
func New(cfg config.SandboxConfig, workDir string) *Executor {
	e := &Executor{
		enabled:     cfg.Enabled,
		interpreter: cfg.Interpreter,
		timeout:     cfg.Timeout,
		workDir:     workDir,
	}
	if e.interpreter == "" {
		e.interpreter = "python3"
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	return e
}

// Enabled reports whether Run will execute code
func (e *Executor) Enabled() bool {
	return e.enabled
}

// SanitizeVarName converts a filename into the dataframe variable bound for it,
// e.g. "2024 sales.csv" becomes "df__2024_sales".
func SanitizeVarName(filename string) string {
	name := filename
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[:i]
	}
	var b strings.Builder
	for i, r := range name {
		if i == 0 && unicode.IsDigit(r) {
			b.WriteRune('_')
		}
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return "df_" + b.String()
}

type manifestTable struct {
	Var  string `json:"var"`
	Path string `json:"path"`
}

type manifest struct {
	Tables []manifestTable `json:"tables"`
	Code   string          `json:"code"`
	Figure string          `json:"figure"`
}

// Run executes code with tables bound as df_<name>; the first table is also df.
// Exceptions raised by the code are reported in Result.Output, not as errors.
func (e *Executor) Run(ctx context.Context, code string, tables []*profile.Table) (*Result, error) {
	if !e.enabled {
		return nil, ErrSandboxDisabled
	}
	if strings.TrimSpace(code) == "" {
		return nil, ErrEmptyCode
	}

	dir, err := os.MkdirTemp(e.workDir, "sandbox-")
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox directory: %w", err)
	}
	defer os.RemoveAll(dir)

	m := manifest{
		Code:   filepath.Join(dir, "snippet.py"),
		Figure: filepath.Join(dir, "figure.json"),
	}
	for i, t := range tables {
		path := filepath.Join(dir, fmt.Sprintf("table_%d.csv", i))
		if err := writeCSV(path, t); err != nil {
			return nil, err
		}
		m.Tables = append(m.Tables, manifestTable{Var: SanitizeVarName(t.Name), Path: path})
	}

	if err := os.WriteFile(m.Code, []byte(code), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write snippet: %w", err)
	}
	script := filepath.Join(dir, "sandbox.py")
	if err := os.WriteFile(script, sandboxScript, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write sandbox runner: %w", err)
	}
	manifestPath := filepath.Join(dir, "manifest.json")
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(manifestPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, e.interpreter, script, manifestPath)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	result := &Result{Code: code, Output: stdout.String(), Duration: time.Since(start)}

	log.Debug().
		Str("interpreter", e.interpreter).
		Int("tables", len(tables)).
		Dur("duration", result.Duration).
		Msg("sandbox run finished")

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.Output += fmt.Sprintf("\nError during execution: timed out after %s\n", e.timeout)
		return result, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(runErr, exec.ErrNotFound):
		return nil, fmt.Errorf("python interpreter %q not found: %w", e.interpreter, runErr)
	case runErr != nil:
		msg := lastLine(stderr.String())
		if msg == "" {
			msg = runErr.Error()
		}
		result.Output += fmt.Sprintf("\nError during execution: %s\n", msg)
		return result, nil
	}

	if fig, err := os.ReadFile(m.Figure); err == nil && json.Valid(fig) {
		result.Figure = fig
	}
	return result, nil
}

func writeCSV(path string, t *profile.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write table %s: %w", t.Name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write table %s: %w", t.Name, err)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
