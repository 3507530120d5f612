package relayserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"ciphera/internal/domain"
)

// Relay policy limits.
const (
	maxPerUserQueue = 1000             // cap messages kept per user
	maxCipherBytes  = 64 << 10         // 64 KiB max cipher payload
	maxOneTimeKeys  = 500              // max one-time prekeys in a bundle
	maxFutureSkew   = 10 * time.Minute // reject timestamps too far in the future
)

// canaryFor returns the existing canary for username, minting one on first
// registration. The canary changes only when the account is reset, letting
// clients detect a rolled-back or swapped account before trusting its keys.
func (s *Server) canaryFor(username domain.Username) (string, error) {
	if c, ok := s.canaries[username]; ok {
		return c, nil
	}
	c, err := randomHex(16)
	if err != nil {
		return "", err
	}
	s.canaries[username] = c
	return c, nil
}

// handleRegister stores an incoming PreKeyBundle (POST /register).
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var bundle domain.PreKeyBundle
	if err := dec.Decode(&bundle); err != nil {
		writeErr(w, http.StatusBadRequest, "bad request")
		return
	}
	if bundle.Username == "" {
		writeErr(w, http.StatusBadRequest, "username required")
		return
	}
	if len(bundle.OneTimePreKeys) > maxOneTimeKeys {
		writeErr(w, http.StatusRequestEntityTooLarge, "too many one-time keys")
		return
	}

	s.mu.Lock()
	s.bundles[bundle.Username] = bundle
	_, canaryErr := s.canaryFor(bundle.Username)
	s.mu.Unlock()
	if canaryErr != nil {
		writeErr(w, http.StatusInternalServerError, "internal error")
		return
	}

	if s.enableLogging {
		slog.Info("register",
			"user", bundle.Username.String(),
			"identity_key_set", !isZero32(bundle.IdentityKey[:]),
			"signing_key_set", !isZero32(bundle.SigningKey[:]),
			"spk_id", bundle.SignedPreKeyID,
			"one_time_count", len(bundle.OneTimePreKeys),
			"reqid", requestIDFromCtx(r.Context()),
		)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGet returns a stored PreKeyBundle (GET /prekey/{username}).
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	usernameValue := domain.Username(r.PathValue("username"))
	if usernameValue == "" {
		writeErr(w, http.StatusBadRequest, "username required")
		return
	}

	s.mu.RLock()
	bundle, ok := s.bundles[usernameValue]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, bundle)
}

// handleAccountCanary returns the stored canary (GET /account/{user}/canary).
func (s *Server) handleAccountCanary(w http.ResponseWriter, r *http.Request) {
	usernameValue := domain.Username(r.PathValue("user"))
	if usernameValue == "" {
		writeErr(w, http.StatusBadRequest, "username required")
		return
	}

	s.mu.RLock()
	canary, ok := s.canaries[usernameValue]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, map[string]string{"canary": canary})
}

// handleEnqueue enqueues a new Envelope (POST /msg/{user}).
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	usernameValue := domain.Username(r.PathValue("user"))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var env domain.Envelope
	if err := dec.Decode(&env); err != nil {
		writeErr(w, http.StatusBadRequest, "bad request")
		return
	}
	if env.To == "" {
		writeErr(w, http.StatusBadRequest, "recipient required")
		return
	}
	if usernameValue == "" || usernameValue != env.To {
		writeErr(w, http.StatusBadRequest, "recipient mismatch")
		return
	}
	if len(env.Cipher) > maxCipherBytes {
		writeErr(w, http.StatusRequestEntityTooLarge, "cipher too large")
		return
	}
	if env.Timestamp == 0 {
		env.Timestamp = time.Now().Unix()
	} else {
		now := time.Now()
		ts := time.Unix(env.Timestamp, 0)
		if ts.After(now.Add(maxFutureSkew)) {
			writeErr(w, http.StatusBadRequest, "timestamp in future")
			return
		}
	}

	s.mu.Lock()
	if env.Meta.Counter != 0 && env.Meta.SenderDeviceID != "" {
		key := sendCounterKey(env.From, env.To, env.Meta.SenderDeviceID)
		last := s.sendCounters[key]
		if env.Meta.Counter <= last {
			s.mu.Unlock()
			writeErr(w, http.StatusConflict, "counter_too_low")
			return
		}
		s.sendCounters[key] = env.Meta.Counter
	}

	queue := append(s.queues[usernameValue], env)
	if len(queue) > maxPerUserQueue {
		queue = queue[len(queue)-maxPerUserQueue:]
	}
	s.queues[usernameValue] = queue
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func sendCounterKey(from, to domain.Username, senderDeviceID string) string {
	return from.String() + "::" + to.String() + "::" + senderDeviceID
}

// handleSendState reports the counter the relay expects next from
// (from, to, senderDeviceID): GET /send-state?from=&to=&sender_device_id=,
// the repair lookup a CounterTooLow-rejected send falls back to.
func (s *Server) handleSendState(w http.ResponseWriter, r *http.Request) {
	from := domain.Username(r.URL.Query().Get("from"))
	to := domain.Username(r.URL.Query().Get("to"))
	senderDeviceID := r.URL.Query().Get("sender_device_id")

	s.mu.RLock()
	last := s.sendCounters[sendCounterKey(from, to, senderDeviceID)]
	s.mu.RUnlock()

	writeJSON(w, struct {
		ExpectedCounter uint64 `json:"expected_counter"`
	}{ExpectedCounter: last + 1})
}

// handleFetch fetches queued Envelopes (GET /msg/{user}?limit=N).
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	usernameValue := domain.Username(r.PathValue("user"))

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "bad limit")
		return
	}

	s.mu.RLock()
	queue := s.queues[usernameValue]
	if limit == 0 || limit > len(queue) {
		limit = len(queue)
	}
	out := make([]domain.Envelope, limit)
	copy(out, queue[:limit])
	s.mu.RUnlock()

	writeJSON(w, out)
}

// handleAck acknowledges and drops N messages (POST /msg/{user}/ack).
func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	usernameValue := domain.Username(r.PathValue("user"))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var ack struct {
		Count int `json:"count"`
	}
	if err := dec.Decode(&ack); err != nil || ack.Count < 0 {
		writeErr(w, http.StatusBadRequest, "bad request")
		return
	}

	s.mu.Lock()
	if ack.Count > len(s.queues[usernameValue]) {
		ack.Count = len(s.queues[usernameValue])
	}
	s.queues[usernameValue] = s.queues[usernameValue][ack.Count:]
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}
