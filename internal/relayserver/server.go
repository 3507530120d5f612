package relayserver

import (
	"net/http"
	"sync"

	"ciphera/internal/domain"
)

// Server is the in-memory reference implementation of the full server side:
// relay (prekey bundles + per-user message queues), key vault, invite
// dropbox, and contact-secrets backup, all guarded by a single mutex. It is
// meant for development and tests, not production durability.
type Server struct {
	mu sync.RWMutex

	enableLogging bool

	// relay state
	bundles       map[domain.Username]domain.PreKeyBundle
	queues        map[domain.Username][]domain.Envelope
	canaries      map[domain.Username]string
	sendCounters  map[string]uint64 // sendCounterKey(from,to,senderDeviceID) -> last accepted Envelope.Meta.Counter

	// vault state
	vaultEntries     map[string]domain.VaultEntry
	vaultLatest      map[string]domain.LatestState
	vaultFetchCounts map[string]int

	// dropbox state
	invites     map[string]*inviteState
	inviteCodes map[string]string

	// backup state
	backup *domain.BackupBlob
}

// NewServer returns a Server with all internal state initialized.
func NewServer(enableLogging bool) *Server {
	return &Server{
		enableLogging:    enableLogging,
		bundles:          make(map[domain.Username]domain.PreKeyBundle),
		queues:           make(map[domain.Username][]domain.Envelope),
		canaries:         make(map[domain.Username]string),
		sendCounters:     make(map[string]uint64),
		vaultEntries:     make(map[string]domain.VaultEntry),
		vaultLatest:      make(map[string]domain.LatestState),
		vaultFetchCounts: make(map[string]int),
		invites:          make(map[string]*inviteState),
		inviteCodes:      make(map[string]string),
	}
}

// Handler builds the *http.ServeMux wiring every relay, vault, dropbox, and
// backup route through the server's middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// relay
	mux.HandleFunc("POST /register", s.chain(s.handleRegister))
	mux.HandleFunc("GET /prekey/{username}", s.chain(s.handleGet))
	mux.HandleFunc("GET /account/{user}/canary", s.chain(s.handleAccountCanary))
	mux.HandleFunc("POST /msg/{user}", s.chain(s.handleEnqueue))
	mux.HandleFunc("GET /msg/{user}", s.chain(s.handleFetch))
	mux.HandleFunc("POST /msg/{user}/ack", s.chain(s.handleAck))
	mux.HandleFunc("GET /send-state", s.chain(s.handleSendState))

	// vault
	mux.HandleFunc("POST /vault/put", s.chain(s.handleVaultPut))
	mux.HandleFunc("GET /vault/get", s.chain(s.handleVaultGet))
	mux.HandleFunc("GET /vault/count", s.chain(s.handleVaultCount))
	mux.HandleFunc("GET /vault/latest-state", s.chain(s.handleVaultLatestState))
	mux.HandleFunc("POST /vault/delete", s.chain(s.handleVaultDelete))

	// invite dropbox
	mux.HandleFunc("POST /invites/create", s.chain(s.handleInvitesCreate))
	mux.HandleFunc("POST /invites/{id}/deliver", s.chain(s.handleInvitesDeliver))
	mux.HandleFunc("POST /invites/{id}/consume", s.chain(s.handleInvitesConsume))
	mux.HandleFunc("POST /invites/{id}/confirm", s.chain(s.handleInvitesConfirm))
	mux.HandleFunc("GET /invites/{id}/status", s.chain(s.handleInvitesStatus))
	mux.HandleFunc("GET /invites/by-code/{code}", s.chain(s.handleInvitesLookupCode))

	// backup
	mux.HandleFunc("PUT /backup", s.chain(s.handleBackupUpload))
	mux.HandleFunc("GET /backup", s.chain(s.handleBackupDownload))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}
