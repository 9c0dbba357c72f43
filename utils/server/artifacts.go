package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/kris-hansen/analyst/utils/export"
	"github.com/kris-hansen/analyst/utils/fileutil"
)

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.readSession(w, r)
	if !ok {
		return
	}
	arts, err := export.All(sess, sess.CurrentStep)
	if err != nil {
		writeError(w, err)
		return
	}
	if arts == nil {
		arts = []export.Artifact{}
	}
	writeJSON(w, http.StatusOK, ArtifactListResponse{Success: true, Step: sess.CurrentStep, Artifacts: arts})
}

func (s *Server) handleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.readSession(w, r)
	if !ok {
		return
	}
	arts, err := export.All(sess, sess.CurrentStep)
	if err != nil {
		writeError(w, err)
		return
	}
	name := r.PathValue("name")
	art, found := export.Find(arts, name)
	if !found {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Success: false, Error: fmt.Sprintf("Artifact not found: %s", name)})
		return
	}
	sendFile(w, art.FileName, art.MIME, art.Data)
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.readSession(w, r)
	if !ok {
		return
	}
	arts, err := export.All(sess, sess.CurrentStep)
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := export.Bundle(arts)
	if err != nil {
		writeError(w, err)
		return
	}
	sendFile(w, fileutil.SafeName(sess.Project.Name)+"_artifacts.zip", export.MIMEZip, data)
}

func sendFile(w http.ResponseWriter, fileName, mime string, data []byte) {
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
