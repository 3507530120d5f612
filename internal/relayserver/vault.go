package relayserver

import (
	"encoding/json"
	"net/http"

	"ciphera/internal/domain"
)

func vaultKey(conversationID domain.ConversationID, senderDeviceID, messageID string) string {
	return string(conversationID) + "::" + senderDeviceID + "::" + messageID
}

// handleVaultPut stores a wrapped message key (POST /vault/put).
func (s *Server) handleVaultPut(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var entry domain.VaultEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeErr(w, http.StatusBadRequest, "bad request")
		return
	}

	s.mu.Lock()
	key := vaultKey(entry.ConversationID, entry.SenderDeviceID, entry.MessageID)
	s.vaultEntries[key] = entry
	latest := s.vaultLatest[vaultLatestKey(entry.ConversationID, entry.SenderDeviceID)]
	if entry.Direction == domain.DirectionOutgoing && entry.HeaderCounter > latest.HighestOutgoing {
		latest.HighestOutgoing = entry.HeaderCounter
	}
	if entry.Direction == domain.DirectionIncoming && entry.HeaderCounter > latest.HighestIncoming {
		latest.HighestIncoming = entry.HeaderCounter
	}
	latest.ConversationID = entry.ConversationID
	latest.SenderDeviceID = entry.SenderDeviceID
	s.vaultLatest[vaultLatestKey(entry.ConversationID, entry.SenderDeviceID)] = latest
	s.vaultFetchCounts[vaultFetchKey(entry.ConversationID, entry.MessageID)] = 0
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func vaultLatestKey(conversationID domain.ConversationID, senderDeviceID string) string {
	return string(conversationID) + "::" + senderDeviceID
}

func vaultFetchKey(conversationID domain.ConversationID, messageID string) string {
	return string(conversationID) + "::" + messageID
}

// handleVaultGet retrieves a single entry (GET /vault/get) and counts the
// fetch toward that message's fetch count.
func (s *Server) handleVaultGet(w http.ResponseWriter, r *http.Request) {
	conversationID := domain.ConversationID(r.URL.Query().Get("conversation_id"))
	senderDeviceID := r.URL.Query().Get("sender_device_id")
	messageID := r.URL.Query().Get("message_id")

	s.mu.Lock()
	entry, ok := s.vaultEntries[vaultKey(conversationID, senderDeviceID, messageID)]
	if ok {
		s.vaultFetchCounts[vaultFetchKey(conversationID, messageID)]++
	}
	s.mu.Unlock()

	writeJSON(w, struct {
		Found bool              `json:"found"`
		Entry domain.VaultEntry `json:"entry"`
	}{Found: ok, Entry: entry})
}

// handleVaultCount reports how many times a message's entry has been
// fetched since it was last put (GET /vault/count).
func (s *Server) handleVaultCount(w http.ResponseWriter, r *http.Request) {
	conversationID := domain.ConversationID(r.URL.Query().Get("conversation_id"))
	messageID := r.URL.Query().Get("message_id")

	s.mu.RLock()
	count := s.vaultFetchCounts[vaultFetchKey(conversationID, messageID)]
	s.mu.RUnlock()

	writeJSON(w, struct {
		Count int `json:"count"`
	}{Count: count})
}

// handleVaultLatestState returns the high-water marks for gap detection
// (GET /vault/latest-state).
func (s *Server) handleVaultLatestState(w http.ResponseWriter, r *http.Request) {
	conversationID := domain.ConversationID(r.URL.Query().Get("conversation_id"))
	senderDeviceID := r.URL.Query().Get("sender_device_id")

	s.mu.RLock()
	latest := s.vaultLatest[vaultLatestKey(conversationID, senderDeviceID)]
	s.mu.RUnlock()
	latest.ConversationID = conversationID
	latest.SenderDeviceID = senderDeviceID

	writeJSON(w, latest)
}

// handleVaultDelete removes an entry (POST /vault/delete).
func (s *Server) handleVaultDelete(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var in struct {
		ConversationID domain.ConversationID `json:"conversation_id"`
		MessageID      string                `json:"message_id"`
		SenderDeviceID string                `json:"sender_device_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad request")
		return
	}

	s.mu.Lock()
	delete(s.vaultEntries, vaultKey(in.ConversationID, in.SenderDeviceID, in.MessageID))
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}
