package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kris-hansen/analyst/utils/config"
)

func logRequest(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		// Build auth info string, masking the token
		var authInfo string
		if auth := r.Header.Get("Authorization"); auth != "" {
			authInfo = maskToken(auth)
		}

		config.DebugLog("Request details: remote=%s tls=%v content_length=%d host=%s",
			r.RemoteAddr, r.TLS != nil, r.ContentLength, r.Host)
		config.VerboseLog("Incoming request: %s %s", r.Method, r.URL.String())

		handler(wrapped, r)

		duration := time.Since(start)
		event := log.Info()
		if wrapped.statusCode >= 500 {
			event = log.Error()
		} else if wrapped.statusCode >= 400 {
			event = log.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", truncateString(r.URL.RawQuery, 200)).
			Str("auth", authInfo).
			Int("status", wrapped.statusCode).
			Int64("bytes", wrapped.written).
			Dur("duration", duration).
			Msg("request")
	}
}
