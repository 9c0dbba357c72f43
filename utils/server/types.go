package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/executor"
	"github.com/kris-hansen/analyst/utils/export"
	"github.com/kris-hansen/analyst/utils/input"
	"github.com/kris-hansen/analyst/utils/parser"
	"github.com/kris-hansen/analyst/utils/session"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// SuccessResponse represents a generic successful API response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse represents a generic error API response
type ErrorResponse struct {
	Success bool   `json:"success"` // Should always be false
	Error   string `json:"error"`
}

// SessionResponse carries a session with its API key removed
type SessionResponse struct {
	Success bool             `json:"success"`
	Session *session.Session `json:"session"`
}

// SessionListResponse represents the response for session listing
type SessionListResponse struct {
	Success  bool              `json:"success"`
	Sessions []session.Summary `json:"sessions"`
}

// SettingsRequest updates the fields that are set
type SettingsRequest struct {
	Model             *string            `json:"model"`
	APIKey            *string            `json:"api_key"`
	LibraryManagement *string            `json:"library_management"`
	Templates         map[string]*string `json:"templates"`
}

// SetupResponse reports the ingested files and the ones that failed
type SetupResponse struct {
	Success    bool             `json:"success"`
	Session    *session.Session `json:"session"`
	FileErrors []FileErrorInfo  `json:"file_errors,omitempty"`
}

// FileErrorInfo is one rejected upload
type FileErrorInfo struct {
	Name        string `json:"name"`
	Error       string `json:"error"`
	Unsupported bool   `json:"unsupported"`
}

// StepRequest moves the session to another step
type StepRequest struct {
	Step session.Step `json:"step"`
}

// FeedbackRequest carries feedback on the Manager's plan
type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

// TaskRequest runs one analysis task over the named files
type TaskRequest struct {
	Task  string   `json:"task"`
	Files []string `json:"files"`
}

// CodeRequest carries code to execute
type CodeRequest struct {
	Code string `json:"code"`
}

// OutputInsightsRequest carries code and the output it produced
type OutputInsightsRequest struct {
	Code   string `json:"code"`
	Output string `json:"output"`
}

// ConsultRequest asks a persona a free-form question
type ConsultRequest struct {
	Persona string `json:"persona"`
	Message string `json:"message"`
}

// TextRequest carries raw model output for parsing
type TextRequest struct {
	Text string `json:"text"`
}

// TextResponse carries one generated persona artifact
type TextResponse struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
}

// TasksResponse lists suggested or parsed tasks
type TasksResponse struct {
	Success bool     `json:"success"`
	Tasks   []string `json:"tasks"`
}

// AnalystResponse carries the parsed sections of an Analyst reply
type AnalystResponse struct {
	Success  bool                   `json:"success"`
	Sections parser.AnalystSections `json:"sections"`
}

// ResultResponse carries one analysis result
type ResultResponse struct {
	Success bool                    `json:"success"`
	Result  *session.AnalysisResult `json:"result"`
}

// RevisionResponse carries one revision of the plan
type RevisionResponse struct {
	Success  bool                  `json:"success"`
	Revision *session.PlanRevision `json:"revision"`
}

// ExecutionResponse carries the outcome of running code
type ExecutionResponse struct {
	Success   bool             `json:"success"`
	Execution *executor.Result `json:"execution"`
}

// ConsultResponse carries a persona's answer
type ConsultResponse struct {
	Success      bool                  `json:"success"`
	Consultation *session.Consultation `json:"consultation"`
}

// PlotResponse carries insights on an uploaded plot
type PlotResponse struct {
	Success  bool        `json:"success"`
	Plot     *input.Plot `json:"plot"`
	Insights string      `json:"insights"`
}

// ArtifactListResponse lists the downloads available at the current step
type ArtifactListResponse struct {
	Success   bool              `json:"success"`
	Step      session.Step      `json:"step"`
	Artifacts []export.Artifact `json:"artifacts"`
}

// ModelInfo lists the models one provider serves
type ModelInfo struct {
	Provider    string   `json:"provider"`
	Description string   `json:"description"`
	Configured  bool     `json:"configured"`
	Models      []string `json:"models"`
	Error       string   `json:"error,omitempty"`
}

// ModelListResponse is the response for GET /models
type ModelListResponse struct {
	Success      bool        `json:"success"`
	DefaultModel string      `json:"default_model"`
	Options      []string    `json:"options"`
	Providers    []ModelInfo `json:"providers"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		config.DebugLog("Error encoding response: %v", err)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code and implement http.Flusher
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int64
	headersSent bool
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.headersSent {
		return
	}
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
	rw.headersSent = true
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headersSent {
		// If no status has been set before first write, use 200 OK
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// sseWriter formats output as Server-Sent Events
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &sseWriter{w: w, f: f}, true
}

func (sw *sseWriter) send(event string, data interface{}) error {
	var payload string
	switch v := data.(type) {
	case string:
		payload = v
	default:
		b, err := json.Marshal(data)
		if err != nil {
			config.DebugLog("[SSE] Error marshaling %s data: %v", event, err)
			return err
		}
		payload = string(b)
	}
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		config.DebugLog("[SSE] Error writing %s event: %v", event, err)
		return err
	}
	sw.f.Flush()
	return nil
}

// progressEvent is the data of an SSE progress event
type progressEvent struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Persona    string `json:"persona,omitempty"`
	Stage      string `json:"stage,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

func (sw *sseWriter) SendProgress(data interface{}) error {
	return sw.send("progress", data)
}

// SendComplete sends the final payload of a streamed operation
func (sw *sseWriter) SendComplete(data interface{}) error {
	return sw.send("complete", data)
}

func (sw *sseWriter) SendError(err error) error {
	return sw.send("error", ErrorResponse{Success: false, Error: err.Error()})
}

func (sw *sseWriter) SendHeartbeat() error {
	if _, err := fmt.Fprint(sw.w, ": heartbeat\n\n"); err != nil {
		return err
	}
	sw.f.Flush()
	return nil
}
