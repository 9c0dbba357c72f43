package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kris-hansen/analyst/utils/fileutil"
	"github.com/kris-hansen/analyst/utils/input"
	"github.com/kris-hansen/analyst/utils/session"
	"github.com/kris-hansen/analyst/utils/workflow"
)

// textOp adapts a stage that produces one text artifact
func textOp(stage func(*workflow.Engine) func(context.Context, *session.Session) (string, error)) operation {
	return func(ctx context.Context, e *workflow.Engine, sess *session.Session) (interface{}, error) {
		content, err := stage(e)(ctx, sess)
		if err != nil {
			return nil, err
		}
		return TextResponse{Success: true, Content: content}, nil
	}
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, textOp(func(e *workflow.Engine) func(context.Context, *session.Session) (string, error) {
		return e.GenerateManagerPlan
	}))
}

func (s *Server) handlePlanFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.withSession(w, r, func(ctx context.Context, e *workflow.Engine, sess *session.Session) (interface{}, error) {
		rev, err := e.RevisePlan(ctx, sess, req.Feedback)
		if err != nil {
			return nil, err
		}
		return RevisionResponse{Success: true, Revision: rev}, nil
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, textOp(func(e *workflow.Engine) func(context.Context, *session.Session) (string, error) {
		return e.GenerateAnalystSummary
	}))
}

func (s *Server) handleGuidance(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, textOp(func(e *workflow.Engine) func(context.Context, *session.Session) (string, error) {
		return e.GenerateGuidance
	}))
}

func (s *Server) handleSuggestedTasks(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.readSession(w, r)
	if !ok {
		return
	}
	tasks, err := s.engine.SuggestedTasks(sess)
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []string{}
	}
	writeJSON(w, http.StatusOK, TasksResponse{Success: true, Tasks: tasks})
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.withSession(w, r, func(ctx context.Context, e *workflow.Engine, sess *session.Session) (interface{}, error) {
		result, err := e.RunAnalysisTask(ctx, sess, req.Task, req.Files)
		if err != nil {
			return nil, err
		}
		return ResultResponse{Success: true, Result: result}, nil
	})
}

func (s *Server) handleRegenerateTask(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, e *workflow.Engine, sess *session.Session) (interface{}, error) {
		result, err := e.RegenerateLastTask(ctx, sess)
		if err != nil {
			return nil, err
		}
		return ResultResponse{Success: true, Result: result}, nil
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.withSession(w, r, func(ctx context.Context, e *workflow.Engine, sess *session.Session) (interface{}, error) {
		res, err := e.ExecuteCode(ctx, sess, req.Code)
		if err != nil {
			return nil, err
		}
		return ExecutionResponse{Success: true, Execution: res}, nil
	})
}

func (s *Server) handleOutputInsights(w http.ResponseWriter, r *http.Request) {
	var req OutputInsightsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.withSession(w, r, func(ctx context.Context, e *workflow.Engine, sess *session.Session) (interface{}, error) {
		content, err := e.InsightsFromOutput(ctx, sess, req.Code, req.Output)
		if err != nil {
			return nil, err
		}
		return TextResponse{Success: true, Content: content}, nil
	})
}

func (s *Server) handlePlotInsights(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(w, fmt.Sprintf("Error parsing form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var up *input.Upload
	if f, fh, err := r.FormFile("plot"); err == nil {
		data, err := fileutil.ReadAll(fh.Filename, f, s.engine.Handler().MaxSize())
		f.Close()
		if err != nil {
			writeError(w, err)
			return
		}
		up = &input.Upload{Name: fh.Filename, Data: data}
	} else if err != http.ErrMissingFile {
		badRequest(w, fmt.Sprintf("Error reading plot: %v", err))
		return
	}
	code := r.FormValue("code")

	s.withSession(w, r, func(ctx context.Context, e *workflow.Engine, sess *session.Session) (interface{}, error) {
		insights, err := e.InsightsFromPlot(ctx, sess, up, code)
		if err != nil {
			return nil, err
		}
		resp := PlotResponse{Success: true, Insights: insights}
		if up != nil && len(sess.Plots) > 0 {
			resp.Plot = sess.Plots[len(sess.Plots)-1]
		}
		return resp, nil
	})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, textOp(func(e *workflow.Engine) func(context.Context, *session.Session) (string, error) {
		return e.ReviewAnalysis
	}))
}

func (s *Server) handleConsult(w http.ResponseWriter, r *http.Request) {
	var req ConsultRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Persona = strings.ToLower(strings.TrimSpace(req.Persona))
	s.withSession(w, r, func(ctx context.Context, e *workflow.Engine, sess *session.Session) (interface{}, error) {
		c, err := e.Consult(ctx, sess, req.Persona, req.Message)
		if err != nil {
			return nil, err
		}
		return ConsultResponse{Success: true, Consultation: c}, nil
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, textOp(func(e *workflow.Engine) func(context.Context, *session.Session) (string, error) {
		return e.GenerateFinalReport
	}))
}
