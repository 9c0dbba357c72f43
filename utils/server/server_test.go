package server

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/executor"
	"github.com/kris-hansen/analyst/utils/models"
	"github.com/kris-hansen/analyst/utils/profile"
	"github.com/kris-hansen/analyst/utils/session"
	"github.com/kris-hansen/analyst/utils/storage"
	"github.com/kris-hansen/analyst/utils/workflow"
)

const guidanceReply = `**Next Analysis Tasks:**
1. Compute units by region
2. Compare regions over time

5. Develop Narrative: tie it together`

const analystReply = `1. **Approach:**
Group by region.

2. **Python Code:**
` + "```python\nprint(df.groupby('region').sum())\n```" + `

3. **Results:**
West leads.

4. **Key Insights:**
Focus on West.`

type fakeRunner struct{}

func (fakeRunner) Run(_ context.Context, code string, tables []*profile.Table) (*executor.Result, error) {
	return &executor.Result{Code: code, Output: "ran against " + tables[0].Name}, nil
}

func newTestServer(t *testing.T, replies ...string) (*Server, *models.MockProvider) {
	t.Helper()
	mock := models.NewMockProvider(replies...)
	reg := models.NewRegistry()
	require.NoError(t, reg.RegisterProvider("mock", models.NewProviderFactory(
		func() models.Provider { return mock },
		models.ProviderMetadata{Name: "mock", Description: "Test double", ModelPrefixes: []string{"mock"}, Priority: 1},
	)))

	cfg := config.DefaultEnvConfig()
	cfg.Workflow.Sandbox.Enabled = false
	cfg.Workflow.DefaultModel = "mock-model"
	engine := workflow.NewEngine(cfg, false)
	engine.SetRegistry(reg)

	store := storage.NewMemoryStore(time.Hour)
	t.Cleanup(func() { store.Close() })
	return NewServer(cfg, engine, store), mock
}

func do(t *testing.T, srv http.Handler, method, path string, body interface{}, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		r = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
		contentType = "application/json"
	}
	req := httptest.NewRequest(method, path, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v), w.Body.String())
}

func createSession(t *testing.T, srv http.Handler) string {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/sessions", map[string]string{"api_key": "secret-key"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp SessionResponse
	decode(t, w, &resp)
	require.NotEmpty(t, resp.Session.ID)
	return resp.Session.ID
}

func setupForm(t *testing.T, fields map[string]string, files map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func setupSession(t *testing.T, srv http.Handler, id string) {
	t.Helper()
	body, ct := setupForm(t, map[string]string{
		"project_name":      "Sales",
		"problem_statement": "Which region sells most?",
		"data_context":      "Q1 export",
	}, map[string]string{"sales.csv": "region,units\nWest,10\nEast,4\n"})
	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/setup", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp.Status)
	_, err := time.Parse(time.RFC3339, resp.Timestamp)
	assert.NoError(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv)

	w := do(t, srv, http.MethodGet, "/sessions/"+id, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-key")
	var got SessionResponse
	decode(t, w, &got)
	assert.Equal(t, "mock-model", got.Session.Settings.Model)
	assert.Equal(t, session.LibraryManual, got.Session.Settings.LibraryManagement)

	w = do(t, srv, http.MethodGet, "/sessions", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list SessionListResponse
	decode(t, w, &list)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, id, list.Sessions[0].ID)

	w = do(t, srv, http.MethodDelete, "/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodGet, "/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/sessions/missing/plan", "/sessions/missing/reset"} {
		w := do(t, srv, http.MethodPost, path, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestUpdateSettings(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv)

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
	}{
		{"library automated", map[string]interface{}{"library_management": "Automated"}, http.StatusOK},
		{"bad library", map[string]interface{}{"library_management": "Sometimes"}, http.StatusBadRequest},
		{"unknown template", map[string]interface{}{"templates": map[string]string{"nope": "x"}}, http.StatusBadRequest},
		{"custom without name", map[string]interface{}{"model": "Custom"}, http.StatusBadRequest},
		{"model", map[string]interface{}{"model": "mock-large"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPut, "/sessions/"+id+"/settings", tt.body, "")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w := do(t, srv, http.MethodGet, "/sessions/"+id, nil, "")
	var got SessionResponse
	decode(t, w, &got)
	assert.Equal(t, "mock-large", got.Session.Settings.Model)
	assert.Equal(t, session.LibraryAutomated, got.Session.Settings.LibraryManagement)
}

func TestSetupValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv)

	body, ct := setupForm(t, map[string]string{"project_name": "Sales"}, map[string]string{"sales.csv": "a,b\n1,2\n"})
	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/setup", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = setupForm(t, map[string]string{"project_name": "Sales", "problem_statement": "p"}, map[string]string{"notes.txt": "x"})
	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/setup", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "notes.txt")
}

func TestSetupReportsRejectedFiles(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv)

	body, ct := setupForm(t, map[string]string{"project_name": "Sales", "problem_statement": "p"},
		map[string]string{"sales.csv": "a,b\n1,2\n", "notes.txt": "x"})
	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/setup", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SetupResponse
	decode(t, w, &resp)
	assert.True(t, resp.Session.Initialized)
	assert.Equal(t, session.StepPlanning, resp.Session.CurrentStep)
	require.Len(t, resp.FileErrors, 1)
	assert.Equal(t, "notes.txt", resp.FileErrors[0].Name)
	assert.True(t, resp.FileErrors[0].Unsupported)
}

func TestPrerequisites(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv)

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/plan", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	setupSession(t, srv, id)
	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/guidance", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/report", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Manager Plan (Step 2)")

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/tasks/execute", CodeRequest{Code: "print(1)"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestFullWorkflow(t *testing.T) {
	srv, mock := newTestServer(t, "the plan", "the summary", guidanceReply, analystReply, "consulted", "the report")
	srv.engine.SetRunner(fakeRunner{})
	id := createSession(t, srv)
	setupSession(t, srv, id)

	var text TextResponse
	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/plan", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &text)
	assert.Equal(t, "the plan", text.Content)

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/summary", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/guidance", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, srv, http.MethodGet, "/sessions/"+id+"/tasks", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var tasks TasksResponse
	decode(t, w, &tasks)
	require.NotEmpty(t, tasks.Tasks)
	assert.Equal(t, "Compute units by region", tasks.Tasks[0])

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/tasks/run", TaskRequest{Task: tasks.Tasks[0], Files: []string{"sales.csv"}}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result ResultResponse
	decode(t, w, &result)
	assert.Equal(t, "Group by region.", result.Result.Approach)
	assert.Contains(t, result.Result.Code, "groupby")

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/tasks/execute", CodeRequest{Code: "print(1)"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var exec ExecutionResponse
	decode(t, w, &exec)
	assert.Equal(t, "ran against sales.csv", exec.Execution.Output)

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/consult", ConsultRequest{Persona: "Manager", Message: "Is this enough?"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var consult ConsultResponse
	decode(t, w, &consult)
	assert.Equal(t, "consulted", consult.Consultation.Response)

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/report", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &text)
	assert.Equal(t, "the report", text.Content)
	assert.Contains(t, mock.LastPrompt(), "the plan")

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/step", StepRequest{Step: session.StepReport}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodGet, "/sessions/"+id+"/artifacts", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var arts ArtifactListResponse
	decode(t, w, &arts)
	assert.Equal(t, session.StepReport, arts.Step)
	var names []string
	for _, a := range arts.Artifacts {
		names = append(names, a.FileName)
	}
	assert.Contains(t, names, "FinalReport_final_report.txt")

	w = do(t, srv, http.MethodGet, "/sessions/"+id+"/artifacts/FinalReport_final_report.txt", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "the report", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "FinalReport_final_report.txt")

	w = do(t, srv, http.MethodGet, "/sessions/"+id+"/artifacts/nothing.txt", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/sessions/"+id+"/bundle", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	assert.Len(t, zr.File, len(arts.Artifacts))
}

func TestProviderFailureIsRecorded(t *testing.T) {
	srv, mock := newTestServer(t)
	id := createSession(t, srv)
	setupSession(t, srv, id)
	mock.FailWith(&models.ProviderError{Provider: "mock", Err: errors.New("quota exceeded")})

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/plan", nil, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = do(t, srv, http.MethodGet, "/sessions/"+id, nil, "")
	var got SessionResponse
	decode(t, w, &got)
	last := got.Session.Conversation[len(got.Session.Conversation)-1]
	assert.Equal(t, session.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "quota exceeded")
}

func TestMissingTemplateKey(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv)
	setupSession(t, srv, id)

	w := do(t, srv, http.MethodPut, "/sessions/"+id+"/settings",
		map[string]interface{}{"templates": map[string]string{"manager": "Plan for {unknown_key}"}}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/plan", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "unknown_key")
}

func TestNavigate(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv)

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/step", StepRequest{Step: session.StepGuidance}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	setupSession(t, srv, id)
	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/step", StepRequest{Step: session.StepGuidance}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got SessionResponse
	decode(t, w, &got)
	assert.Equal(t, session.StepGuidance, got.Session.CurrentStep)

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/step", StepRequest{Step: 42}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetKeepsSettings(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv)
	setupSession(t, srv, id)

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/reset", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got SessionResponse
	decode(t, w, &got)
	assert.False(t, got.Session.Initialized)
	assert.Empty(t, got.Session.Files)
	assert.Equal(t, "mock-model", got.Session.Settings.Model)
}

func TestStreamingPlan(t *testing.T) {
	srv, _ := newTestServer(t, "streamed plan")
	id := createSession(t, srv)
	setupSession(t, srv, id)

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/plan?streaming=true", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	var events []string
	var complete string
	scanner := bufio.NewScanner(w.Body)
	var current string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current = strings.TrimPrefix(line, "event: ")
			events = append(events, current)
		case strings.HasPrefix(line, "data: ") && current == "complete":
			complete = strings.TrimPrefix(line, "data: ")
		}
	}
	require.NotEmpty(t, events)
	assert.Equal(t, "progress", events[0])
	assert.Equal(t, "complete", events[len(events)-1])

	var text TextResponse
	require.NoError(t, json.Unmarshal([]byte(complete), &text))
	assert.Equal(t, "streamed plan", text.Content)

	w = do(t, srv, http.MethodGet, "/sessions/"+id, nil, "")
	var got SessionResponse
	decode(t, w, &got)
	assert.Equal(t, "streamed plan", got.Session.Outputs.ManagerPlan)
}

func TestStreamingError(t *testing.T) {
	srv, _ := newTestServer(t)
	id := createSession(t, srv)

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/plan?streaming=true", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "event: error")
	assert.Contains(t, w.Body.String(), "project not initialized")
}

func TestParseEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/parse/tasks", TextRequest{Text: guidanceReply}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var tasks TasksResponse
	decode(t, w, &tasks)
	assert.Equal(t, "Compute units by region", tasks.Tasks[0])

	w = do(t, srv, http.MethodPost, "/parse/analyst", TextRequest{Text: analystReply}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var analyst AnalystResponse
	decode(t, w, &analyst)
	assert.Equal(t, "West leads.", analyst.Sections.ResultsText)

	w = do(t, srv, http.MethodPost, "/parse/analyst", []byte("{bad"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListModels(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/models", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp ModelListResponse
	decode(t, w, &resp)
	assert.Equal(t, "mock-model", resp.DefaultModel)
	assert.Contains(t, resp.Options, "Custom")
	require.Len(t, resp.Providers, 1)
	assert.Equal(t, "mock", resp.Providers[0].Provider)
	assert.True(t, resp.Providers[0].Configured)
	assert.Contains(t, resp.Providers[0].Error, "unknown provider")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrNotFound, http.StatusNotFound},
		{workflow.ErrInvalidInput, http.StatusBadRequest},
		{workflow.ErrPrerequisite, http.StatusConflict},
		{executor.ErrSandboxDisabled, http.StatusConflict},
		{models.ErrEmptyResponse, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestSessionLocks(t *testing.T) {
	l := newSessionLocks()
	unlock := l.lock("a")

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		u := l.lock("a")
		close(acquired)
		u()
		close(released)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired
	<-released

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.locks)
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.config.CORS.Enabled = true
	srv.config.CORS.AllowedOrigins = []string{"https://app.example.com"}

	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
}
