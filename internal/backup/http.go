package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ciphera/internal/domain"
)

// HTTP is the context-aware domain.BackupClient implementation over the
// relay's /backup endpoint.
type HTTP struct {
	Base   string
	client *http.Client
}

// NewHTTP returns an HTTP client rooted at base. A nil client falls back to
// http.DefaultClient.
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{Base: base, client: client}
}

func (c *HTTP) Upload(ctx context.Context, blob domain.BackupBlob) error {
	b, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.Base+"/backup", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

func (c *HTTP) Download(ctx context.Context) (domain.BackupBlob, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+"/backup", nil)
	if err != nil {
		return domain.BackupBlob{}, false, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.BackupBlob{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.BackupBlob{}, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.BackupBlob{}, false, &statusError{code: resp.StatusCode}
	}
	var blob domain.BackupBlob
	if err := json.NewDecoder(resp.Body).Decode(&blob); err != nil {
		return domain.BackupBlob{}, false, err
	}
	return blob, true, nil
}

type statusError struct{ code int }

func (e *statusError) Error() string {
	return fmt.Sprintf("backup: unexpected status %d", e.code)
}

var _ domain.BackupClient = (*HTTP)(nil)
