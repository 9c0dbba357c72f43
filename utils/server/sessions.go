package server

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/fileutil"
	"github.com/kris-hansen/analyst/utils/input"
	"github.com/kris-hansen/analyst/utils/prompts"
	"github.com/kris-hansen/analyst/utils/session"
	"github.com/kris-hansen/analyst/utils/workflow"
)

// redact returns a copy of s safe to send to clients
func redact(s *session.Session) *session.Session {
	c := *s
	c.Settings.APIKey = ""
	return &c
}

func sessionResponse(s *session.Session) SessionResponse {
	return SessionResponse{Success: true, Session: redact(s)}
}

// decodeJSON reads an optional JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var settings session.Settings
	if err := applySettings(&settings, req); err != nil {
		badRequest(w, err.Error())
		return
	}

	sess := s.engine.NewSession(settings)
	if err := s.store.Save(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}
	config.VerboseLog("Created session %s", sess.ID)
	writeJSON(w, http.StatusCreated, sessionResponse(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []session.Summary{}
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Success: true, Sessions: summaries})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.readSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	unlock := s.locks.lock(id)
	defer unlock()

	if err := s.store.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: fmt.Sprintf("Session %s deleted", id)})
}

// applySettings copies the fields set in req onto settings
func applySettings(settings *session.Settings, req SettingsRequest) error {
	if req.Model != nil {
		model := strings.TrimSpace(*req.Model)
		if model == "Custom" {
			return fmt.Errorf("a custom model requires a model name")
		}
		settings.Model = model
	}
	if req.APIKey != nil {
		settings.APIKey = strings.TrimSpace(*req.APIKey)
	}
	if req.LibraryManagement != nil {
		switch lm := session.LibraryManagement(*req.LibraryManagement); lm {
		case session.LibraryManual, session.LibraryAutomated:
			settings.LibraryManagement = lm
		default:
			return fmt.Errorf("library management must be %q or %q", session.LibraryManual, session.LibraryAutomated)
		}
	}
	for name, text := range req.Templates {
		if !knownTemplate(name) {
			return fmt.Errorf("unknown template '%s'", name)
		}
		if text == nil || strings.TrimSpace(*text) == "" {
			delete(settings.Templates, name)
			continue
		}
		if settings.Templates == nil {
			settings.Templates = make(map[string]string)
		}
		settings.Templates[name] = *text
	}
	return nil
}

func knownTemplate(name string) bool {
	for _, n := range prompts.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.withSession(w, r, func(ctx context.Context, e *workflow.Engine, sess *session.Session) (interface{}, error) {
		settings := sess.Settings
		if settings.Templates != nil {
			settings.Templates = make(map[string]string, len(sess.Settings.Templates))
			for k, v := range sess.Settings.Templates {
				settings.Templates[k] = v
			}
		}
		if err := applySettings(&settings, req); err != nil {
			return nil, fmt.Errorf("%w: %v", workflow.ErrInvalidInput, err)
		}
		sess.Settings = settings
		return sessionResponse(sess), nil
	})
}

// readUploads reads the named multipart file fields. Files over the size
// limit are reported instead of failing the request.
func readUploads(headers []*multipart.FileHeader, limit int64) ([]input.Upload, []FileErrorInfo) {
	var uploads []input.Upload
	var rejected []FileErrorInfo
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			rejected = append(rejected, FileErrorInfo{Name: fh.Filename, Error: err.Error()})
			continue
		}
		data, err := fileutil.ReadAll(fh.Filename, f, limit)
		f.Close()
		if err != nil {
			rejected = append(rejected, FileErrorInfo{Name: fh.Filename, Error: err.Error()})
			continue
		}
		uploads = append(uploads, input.Upload{Name: fh.Filename, Data: data})
	}
	return uploads, rejected
}

func splitURLs(values []string) []string {
	var urls []string
	for _, v := range values {
		for _, line := range strings.Split(v, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				urls = append(urls, line)
			}
		}
	}
	return urls
}

func (s *Server) maxBody() int64 {
	return fileutil.LimitFromMB(s.config.MaxUploadMB) * 4
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(w, fmt.Sprintf("Error parsing form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := workflow.ProjectInput{
		Name:             r.FormValue("project_name"),
		ProblemStatement: r.FormValue("problem_statement"),
		DataContext:      r.FormValue("data_context"),
	}
	uploads, rejected := readUploads(r.MultipartForm.File["files"], s.engine.Handler().MaxSize())
	urls := splitURLs(r.MultipartForm.Value["urls"])

	s.withSession(w, r, func(ctx context.Context, e *workflow.Engine, sess *session.Session) (interface{}, error) {
		batch, err := e.Setup(ctx, sess, in, uploads, urls)
		if batch != nil {
			for _, fe := range batch.Errors {
				rejected = append(rejected, FileErrorInfo{Name: fe.Name, Error: fe.Err.Error(), Unsupported: fe.Unsupported()})
			}
		}
		if err != nil {
			if len(rejected) > 0 {
				names := make([]string, len(rejected))
				for i, fe := range rejected {
					names[i] = fe.Name + ": " + fe.Error
				}
				return nil, fmt.Errorf("%w (%s)", err, strings.Join(names, "; "))
			}
			return nil, err
		}
		return SetupResponse{Success: true, Session: redact(sess), FileErrors: rejected}, nil
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, e *workflow.Engine, sess *session.Session) (interface{}, error) {
		e.Reset(sess)
		return sessionResponse(sess), nil
	})
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req StepRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.withSession(w, r, func(ctx context.Context, e *workflow.Engine, sess *session.Session) (interface{}, error) {
		if err := e.Navigate(sess, req.Step); err != nil {
			return nil, err
		}
		return sessionResponse(sess), nil
	})
}
