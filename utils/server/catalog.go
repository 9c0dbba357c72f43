package server

import (
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/parser"
)

// handleListModels reports the selectable models and, per provider, the
// models its API offers with the configured key
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	metas := s.engine.Registry().GetAvailableProviders()
	infos := make([]ModelInfo, len(metas))

	g, ctx := errgroup.WithContext(r.Context())
	for i, meta := range metas {
		i, meta := i, meta
		apiKey := s.envConfig.APIKey(meta.Name)
		infos[i] = ModelInfo{
			Provider:    meta.Name,
			Description: meta.Description,
			Configured:  !meta.NeedsAPIKey || apiKey != "",
			Models:      []string{},
		}
		if !infos[i].Configured {
			continue
		}
		g.Go(func() error {
			names, err := s.discoverer.AvailableModels(ctx, meta.Name, apiKey)
			if err != nil {
				config.VerboseLog("Model discovery for %s failed: %v", meta.Name, err)
				infos[i].Error = err.Error()
				return nil
			}
			infos[i].Models = names
			return nil
		})
	}
	g.Wait()

	defaultModel := s.envConfig.Workflow.DefaultModel
	if defaultModel == "" {
		defaultModel = config.DefaultModel
	}
	writeJSON(w, http.StatusOK, ModelListResponse{
		Success:      true,
		DefaultModel: defaultModel,
		Options:      config.ModelOptions,
		Providers:    infos,
	})
}

func (s *Server) handleParseTasks(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tasks := parser.ParseAssociateTasks(req.Text)
	if tasks == nil {
		tasks = []string{}
	}
	writeJSON(w, http.StatusOK, TasksResponse{Success: true, Tasks: tasks})
}

func (s *Server) handleParseAnalyst(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "text is required")
		return
	}
	writeJSON(w, http.StatusOK, AnalystResponse{Success: true, Sections: parser.ParseAnalystTaskResponse(req.Text)})
}
