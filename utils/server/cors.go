package server

import (
	"net/http"
	"strconv"
	"strings"
)

// applyCORS sets the CORS headers for allowed origins and answers preflight
// requests. It reports whether the request has been handled.
func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) bool {
	cors := s.config.CORS
	origin := r.Header.Get("Origin")
	if !cors.Enabled || origin == "" {
		return false
	}

	allowed := ""
	for _, o := range cors.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = o
			break
		}
	}
	if allowed == "" {
		return false
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", allowed)
	if allowed != "*" {
		h.Add("Vary", "Origin")
	}
	h.Set("Access-Control-Allow-Methods", strings.Join(cors.AllowedMethods, ", "))
	h.Set("Access-Control-Allow-Headers", strings.Join(cors.AllowedHeaders, ", "))
	if cors.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(cors.MaxAge))
	}

	if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}
