package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/kris-hansen/analyst/utils/config"
)

func checkAuth(serverConfig *config.ServerConfig, w http.ResponseWriter, r *http.Request) bool {
	if !serverConfig.Enabled {
		config.DebugLog("Auth check skipped: server auth is disabled")
		return true
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		config.VerboseLog("Missing Authorization header")
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Authorization header required"})
		return false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		config.VerboseLog("Invalid authorization header format")
		config.DebugLog("Auth failed: malformed Authorization header: %s", maskToken(authHeader))
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid authorization header format"})
		return false
	}

	if serverConfig.BearerToken == "" || subtle.ConstantTimeCompare([]byte(parts[1]), []byte(serverConfig.BearerToken)) != 1 {
		config.VerboseLog("Invalid bearer token")
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid bearer token"})
		return false
	}

	config.DebugLog("Auth successful: valid bearer token")
	return true
}
