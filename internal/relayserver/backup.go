package relayserver

import (
	"encoding/json"
	"net/http"

	"ciphera/internal/domain"
)

// handleBackupUpload stores the caller's sealed contact-secrets blob (PUT
// /backup). The in-memory reference server keeps a single blob since the
// client, like the relay's other endpoints, is single-account per process.
func (s *Server) handleBackupUpload(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var blob domain.BackupBlob
	if err := json.NewDecoder(r.Body).Decode(&blob); err != nil {
		writeErr(w, http.StatusBadRequest, "bad request")
		return
	}

	s.mu.Lock()
	s.backup = &blob
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// handleBackupDownload returns the stored blob, or 404 if none has been
// uploaded yet (GET /backup).
func (s *Server) handleBackupDownload(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	blob := s.backup
	s.mu.RUnlock()

	if blob == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, *blob)
}
