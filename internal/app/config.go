package app

import "net/http"

// Config holds runtime wiring options for building the app.
type Config struct {
	Home     string       // config directory, e.g. $HOME/.ciphera
	RelayURL string       // relay base URL, e.g. http://127.0.0.1:8080
	HTTP     *http.Client // optional; defaults to http.DefaultClient

	// Username identifies the local account this process acts as. The CLI
	// is single-account and single-device, so Username doubles as the
	// device ID threaded through the ratchet and vault.
	Username string
}
