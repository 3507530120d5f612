package relayserver

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mr-tron/base58"

	"ciphera/internal/domain"
)

const inviteCodeLength = 16

// pairingCodeBytes is the entropy behind a human-typed pairing code, base58
// encoded so it avoids visually ambiguous characters (0/O, l/I).
const pairingCodeBytes = 5

// inviteState tracks one published invite end to end: the owner's bundle,
// whatever the guest has sealed for it, and whether it has been consumed.
type inviteState struct {
	record    domain.InviteRecord
	envelope  *domain.SealedEnvelope
	consumed  bool
	confirmed bool
}

func randomPairingCode() (string, error) {
	b := make([]byte, pairingCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base58.Encode(b), nil
}

// handleInvitesCreate publishes a new invite (POST /invites/create).
func (s *Server) handleInvitesCreate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var in struct {
		OwnerBundle domain.PreKeyBundle `json:"owner_bundle"`
		TTL         int64               `json:"ttl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad request")
		return
	}

	inviteID, err := randomHex(inviteCodeLength)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}
	pairingCode, err := randomPairingCode()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}

	record := domain.InviteRecord{
		InviteID:    inviteID,
		PairingCode: pairingCode,
		OwnerBundle: in.OwnerBundle,
		ExpiresAt:   time.Now().Unix() + in.TTL,
	}

	s.mu.Lock()
	s.invites[inviteID] = &inviteState{record: record}
	s.inviteCodes[pairingCode] = inviteID
	s.mu.Unlock()

	writeJSON(w, record)
}

// handleInvitesDeliver stores the guest's sealed contact-init envelope
// (POST /invites/{id}/deliver).
func (s *Server) handleInvitesDeliver(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	inviteID := r.PathValue("id")

	var envelope domain.SealedEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		writeErr(w, http.StatusBadRequest, "bad request")
		return
	}

	s.mu.Lock()
	st, ok := s.invites[inviteID]
	if ok {
		st.envelope = &envelope
	}
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleInvitesConsume returns the sealed envelope exactly once (POST
// /invites/{id}/consume). A second call returns 409 so the client maps it
// to domain.ErrAlreadyConsumed.
func (s *Server) handleInvitesConsume(w http.ResponseWriter, r *http.Request) {
	inviteID := r.PathValue("id")

	s.mu.Lock()
	st, ok := s.invites[inviteID]
	if !ok {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	if st.consumed || st.envelope == nil {
		s.mu.Unlock()
		writeErr(w, http.StatusConflict, "invite already consumed or not yet delivered")
		return
	}
	st.consumed = true
	envelope := *st.envelope
	s.mu.Unlock()

	writeJSON(w, envelope)
}

// handleInvitesConfirm marks an invite's handshake as complete (POST
// /invites/{id}/confirm).
func (s *Server) handleInvitesConfirm(w http.ResponseWriter, r *http.Request) {
	inviteID := r.PathValue("id")

	s.mu.Lock()
	st, ok := s.invites[inviteID]
	if ok {
		st.confirmed = true
	}
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleInvitesStatus reports an invite's lifecycle stage (GET
// /invites/{id}/status).
func (s *Server) handleInvitesStatus(w http.ResponseWriter, r *http.Request) {
	inviteID := r.PathValue("id")

	s.mu.RLock()
	st, ok := s.invites[inviteID]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	status := "pending"
	switch {
	case st.confirmed:
		status = "confirmed"
	case st.consumed:
		status = "consumed"
	case st.envelope != nil:
		status = "delivered"
	}
	writeJSON(w, map[string]string{"status": status})
}

// handleInvitesLookupCode resolves a short pairing code to an invite ID
// (GET /invites/by-code/{code}).
func (s *Server) handleInvitesLookupCode(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	s.mu.RLock()
	inviteID, ok := s.inviteCodes[code]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, map[string]string{"invite_id": inviteID})
}
