// Package workflow drives an analysis session through its six stages. Every
// stage renders a persona template, asks the configured model and records the
// exchange on the session.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/executor"
	"github.com/kris-hansen/analyst/utils/fileutil"
	"github.com/kris-hansen/analyst/utils/input"
	"github.com/kris-hansen/analyst/utils/models"
	"github.com/kris-hansen/analyst/utils/profile"
	"github.com/kris-hansen/analyst/utils/prompts"
	"github.com/kris-hansen/analyst/utils/session"
)

var (
	// ErrPrerequisite is returned when an earlier stage has not produced its output yet
	ErrPrerequisite = errors.New("prerequisite not met")
	// ErrNotInitialized is returned when the project has not been set up
	ErrNotInitialized = errors.New("project not initialized")
	// ErrInvalidInput is returned for missing or malformed user input
	ErrInvalidInput = errors.New("invalid input")
)

// CodeRunner executes analysis code against the session's tables
type CodeRunner interface {
	Run(ctx context.Context, code string, tables []*profile.Table) (*executor.Result, error)
}

// Engine runs stage operations against sessions. It holds no session state,
// so one engine serves any number of sessions; callers serialize access to a
// single session.
type Engine struct {
	envConfig *config.EnvConfig
	registry  *models.ProviderRegistry
	handler   *input.Handler
	runner    CodeRunner
	progress  ProgressWriter
	verbose   bool
	now       func() time.Time
	log       zerolog.Logger
}

// NewEngine creates an engine with the built-in providers, an upload handler
// sized from the server config and the configured sandbox.
func NewEngine(envConfig *config.EnvConfig, verbose bool) *Engine {
	if envConfig == nil {
		envConfig = config.DefaultEnvConfig()
	}
	limit := fileutil.LimitFromMB(envConfig.GetServerConfig().MaxUploadMB)

	e := &Engine{
		envConfig: envConfig,
		registry:  models.DefaultRegistry(),
		handler:   input.NewHandler(limit),
		verbose:   verbose,
		now:       time.Now,
		log:       config.Logger("workflow"),
	}
	if envConfig.Workflow.Sandbox.Enabled {
		e.runner = executor.New(envConfig.Workflow.Sandbox, "")
	}
	return e
}

// SetRegistry replaces the provider registry
func (e *Engine) SetRegistry(r *models.ProviderRegistry) {
	e.registry = r
}

// Registry returns the provider registry
func (e *Engine) Registry() *models.ProviderRegistry {
	return e.registry
}

// SetHandler replaces the upload handler
func (e *Engine) SetHandler(h *input.Handler) {
	e.handler = h
}

// Handler returns the upload handler
func (e *Engine) Handler() *input.Handler {
	return e.handler
}

// SetRunner replaces the code runner; nil disables execution
func (e *Engine) SetRunner(r CodeRunner) {
	e.runner = r
}

// SetProgressWriter sets the progress writer for streaming updates
func (e *Engine) SetProgressWriter(w ProgressWriter) {
	e.progress = w
}

// WithProgress returns a copy of the engine that reports to w. The copy shares
// the registry, handler and runner, so a server can stream one request's
// progress without affecting concurrent requests.
func (e *Engine) WithProgress(w ProgressWriter) *Engine {
	c := *e
	c.progress = w
	return &c
}

// SetClock overrides the time source
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// debugf prints debug information if verbose mode is enabled
func (e *Engine) debugf(format string, args ...interface{}) {
	if e.verbose {
		e.log.Debug().Msgf(format, args...)
	}
}

func (e *Engine) emit(update ProgressUpdate) {
	if e.progress == nil {
		return
	}
	if err := e.progress.WriteProgress(update); err != nil {
		e.log.Warn().Err(err).Msg("progress writer failed")
	}
}

// NewSession creates an empty session with a fresh ID. An empty model falls
// back to the configured default.
func (e *Engine) NewSession(settings session.Settings) *session.Session {
	if settings.Model == "" {
		settings.Model = e.defaultModel()
	}
	return session.New(uuid.NewString(), settings, e.now())
}

func (e *Engine) defaultModel() string {
	if e.envConfig.Workflow.DefaultModel != "" {
		return e.envConfig.Workflow.DefaultModel
	}
	return config.DefaultModel
}

// Model returns the model a session's persona calls use
func (e *Engine) Model(s *session.Session) string {
	if m := strings.TrimSpace(s.Settings.Model); m != "" {
		return m
	}
	return e.defaultModel()
}

func (e *Engine) modelConfig() models.ModelConfig {
	cfg := models.DefaultModelConfig()
	if t := e.envConfig.Workflow.Temperature; t > 0 {
		cfg.Temperature = t
	}
	return cfg
}

// provider resolves and configures the provider for the session's model. A key
// entered on the session applies to that model's provider only; every other
// provider uses the configured key.
func (e *Engine) provider(s *session.Session) (models.Provider, string, error) {
	model := e.Model(s)
	owner := e.registry.ProviderNameForModel(model)
	cfg := e.modelConfig()

	p, err := e.registry.Resolve(model, models.ResolveOptions{
		APIKey: func(name string) string {
			if name == owner && s.Settings.APIKey != "" {
				return s.Settings.APIKey
			}
			return e.envConfig.APIKey(name)
		},
		BaseURL: func(name string) string {
			if pc, err := e.envConfig.GetProviderConfig(name); err == nil {
				return pc.BaseURL
			}
			return ""
		},
		Config:  &cfg,
		Verbose: e.verbose,
	})
	if err != nil {
		return nil, model, err
	}
	return p, model, nil
}

// ask sends one prompt as persona. att, when set and supported by the
// provider, is sent alongside the prompt.
func (e *Engine) ask(ctx context.Context, s *session.Session, persona, prompt string, att *models.Attachment) (string, error) {
	p, model, err := e.provider(s)
	if err != nil {
		return "", err
	}

	title := prompts.PersonaTitle(persona)
	e.emit(ProgressUpdate{Type: ProgressStep, Message: fmt.Sprintf("AI %s is working", title), Persona: persona, Stage: s.CurrentStep.String()})
	e.debugf("sending %d byte prompt to %s as %s", len(prompt), model, persona)
	start := e.now()

	var resp string
	if sender, ok := p.(models.AttachmentSender); ok && att != nil {
		resp, err = sender.SendPromptWithAttachment(ctx, model, prompt, *att)
	} else {
		resp, err = p.SendPrompt(ctx, model, prompt)
	}
	elapsed := e.now().Sub(start)

	if err == nil && strings.TrimSpace(resp) == "" {
		err = models.ErrEmptyResponse
	}
	if err != nil {
		e.emit(ProgressUpdate{Type: ProgressError, Message: err.Error(), Error: err, Persona: persona, Stage: s.CurrentStep.String(), Duration: elapsed})
		e.log.Error().Err(err).Str("session", s.ID).Str("persona", persona).Str("model", model).Msg("persona call failed")
		return "", err
	}

	e.emit(ProgressUpdate{Type: ProgressComplete, Message: fmt.Sprintf("AI %s finished", title), Persona: persona, Stage: s.CurrentStep.String(), Duration: elapsed})
	e.log.Info().Str("session", s.ID).Str("persona", persona).Str("model", model).Dur("elapsed", elapsed).Msg("persona call completed")
	return resp, nil
}

func (e *Engine) templates(s *session.Session) *prompts.Set {
	return prompts.NewSet(s.Settings.Templates)
}

func (e *Engine) touch(s *session.Session) {
	s.Touch(e.now())
}

func requireInitialized(s *session.Session) error {
	if !s.Initialized {
		return ErrNotInitialized
	}
	return nil
}

func prerequisite(msg string) error {
	return fmt.Errorf("%w: %s", ErrPrerequisite, msg)
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// missingKey returns the placeholder name when err is a template formatting error
func missingKey(err error) (string, bool) {
	var mk *prompts.MissingKeyError
	if errors.As(err, &mk) {
		return mk.Key, true
	}
	return "", false
}
