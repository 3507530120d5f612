package app

import (
	"net/http"

	"ciphera/internal/backup"
	"ciphera/internal/domain"
	"ciphera/internal/dropbox"
	"ciphera/internal/outbox"
	"ciphera/internal/receive"
	"ciphera/internal/relay"
	identitysvc "ciphera/internal/services/identity"
	messagesvc "ciphera/internal/services/message"
	prekeysvc "ciphera/internal/services/prekey"
	sessionsvc "ciphera/internal/services/session"
	"ciphera/internal/session"
	"ciphera/internal/store"
	"ciphera/internal/vault"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	IdentityService domain.IdentityService
	PreKeyService   domain.PreKeyService
	SessionService  domain.SessionService
	MessageService  domain.MessageService
	RelayClient     domain.RelayClient
	AccountStore    domain.AccountStore
	RelayURL        string
	HTTPClient      *http.Client

	VaultClient    domain.VaultClient
	SnapshotStore  domain.SnapshotStore
	OutboxStore    domain.OutboxStore
	OutboxService  domain.OutboxService
	VaultRetrier   *outbox.VaultRetrier
	ReceivePipeline domain.ReceivePipeline
	InviteService  domain.InviteService
	BackupService  domain.BackupService
	ContactStore   *backup.ContactStore
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	// File-based stores
	idStore := store.NewIdentityFileStore(cfg.Home)
	prekeyStore := store.NewPreKeyFileStore(cfg.Home)
	bundleStore := store.NewBundleFileStore(cfg.Home)
	sessionStore := store.NewSessionFileStore(cfg.Home)
	ratchetStore := store.NewRatchetFileStore(cfg.Home)
	accountStore := store.NewAccountFileStore(cfg.Home)

	// Ensure an HTTP client is available for outbound calls
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	// Relay client (uses provided HTTP client)
	relayClient := relay.NewHTTP(cfg.RelayURL, httpClient)
	vaultClient := vault.NewHTTP(cfg.RelayURL, httpClient)
	dropboxClient := dropbox.NewHTTP(cfg.RelayURL, httpClient)
	backupClient := backup.NewHTTP(cfg.RelayURL, httpClient)

	// High-level services
	idSvc := identitysvc.New(idStore)
	prekeySvc := prekeysvc.New(idStore, prekeyStore)
	sessionSvc := sessionsvc.New(idStore, bundleStore, sessionStore, relayClient)
	messageSvc := messagesvc.New(
		idStore,
		prekeyStore,
		ratchetStore,
		sessionSvc,
		relayClient,
		accountStore,
		cfg.RelayURL,
	)

	// C5: the session store doubles as the snapshot store backing the
	// outbox, the receive pipeline, and the invite dropbox.
	snapshots := session.NewStore(cfg.Home)

	deviceID := cfg.Username

	// C7: outbox
	outboxStore := outbox.NewStore(cfg.Home)
	outboxSvc := outbox.New(outboxStore, snapshots, relayClient, vaultClient)
	vaultRetrier := outbox.NewVaultRetrier(outboxStore, vaultClient)

	// C9: receive pipeline
	receivePipeline := receive.New(snapshots, relayClient, vaultClient, deviceID)

	// C6: invite dropbox
	intents := dropbox.NewIntentJournal(cfg.Home)
	inviteSvc := dropbox.New(
		idSvc,
		prekeySvc,
		dropboxClient,
		snapshots,
		intents,
		domain.Username(cfg.Username),
		cfg.RelayURL,
		deviceID,
	)

	// C10: contact-secrets backup
	contactStore := backup.NewContactStore(cfg.Home)
	backupSvc := backup.New(contactStore, backupClient)

	return &Wire{
		IdentityService: idSvc,
		PreKeyService:   prekeySvc,
		SessionService:  sessionSvc,
		MessageService:  messageSvc,
		RelayClient:     relayClient,
		AccountStore:    accountStore,
		RelayURL:        cfg.RelayURL,
		HTTPClient:      httpClient,

		VaultClient:     vaultClient,
		SnapshotStore:   snapshots,
		OutboxStore:     outboxStore,
		OutboxService:   outboxSvc,
		VaultRetrier:    vaultRetrier,
		ReceivePipeline: receivePipeline,
		InviteService:   inviteSvc,
		BackupService:   backupSvc,
		ContactStore:    contactStore,
	}, nil
}
