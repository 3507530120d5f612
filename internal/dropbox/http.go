package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"ciphera/internal/domain"
)

// HTTP is the context-aware domain.DropboxClient implementation over the
// relay's /invites/* surface.
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

func (c *HTTP) InvitesCreate(ctx context.Context, ownerBundle domain.PreKeyBundle, ttl int64) (domain.InviteRecord, error) {
	in := struct {
		OwnerBundle domain.PreKeyBundle `json:"owner_bundle"`
		TTL         int64               `json:"ttl"`
	}{OwnerBundle: ownerBundle, TTL: ttl}

	var out domain.InviteRecord
	if err := c.post(ctx, "/invites/create", in, &out); err != nil {
		return domain.InviteRecord{}, err
	}
	return out, nil
}

func (c *HTTP) InvitesDeliver(ctx context.Context, inviteID string, envelope domain.SealedEnvelope) error {
	return c.post(ctx, "/invites/"+url.PathEscape(inviteID)+"/deliver", envelope, nil)
}

func (c *HTTP) InvitesConsume(ctx context.Context, inviteID string) (domain.SealedEnvelope, error) {
	var out domain.SealedEnvelope
	err := c.request(ctx, http.MethodPost, "/invites/"+url.PathEscape(inviteID)+"/consume", nil, &out)
	if err != nil {
		if isStatus(err, http.StatusConflict) {
			return domain.SealedEnvelope{}, domain.ErrAlreadyConsumed
		}
		return domain.SealedEnvelope{}, err
	}
	return out, nil
}

func (c *HTTP) InvitesConfirm(ctx context.Context, inviteID string) error {
	return c.post(ctx, "/invites/"+url.PathEscape(inviteID)+"/confirm", nil, nil)
}

func (c *HTTP) InvitesStatus(ctx context.Context, inviteID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/invites/"+url.PathEscape(inviteID)+"/status", &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *HTTP) InvitesLookupCode(ctx context.Context, pairingCode string) (string, error) {
	var out struct {
		InviteID string `json:"invite_id"`
	}
	if err := c.getJSON(ctx, "/invites/by-code/"+url.PathEscape(pairingCode), &out); err != nil {
		return "", err
	}
	return out.InviteID, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("dropbox: unexpected status %d: %s", e.code, e.body)
}

func isStatus(err error, code int) bool {
	se, ok := err.(*statusError)
	return ok && se.code == code
}

func (c *HTTP) post(ctx context.Context, path string, in any, out any) error {
	return c.request(ctx, http.MethodPost, path, in, out)
}

func (c *HTTP) request(ctx context.Context, method string, path string, in any, out any) error {
	var body bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = *bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, &body)
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
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return &statusError{code: resp.StatusCode, body: buf.String()}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	return c.request(ctx, http.MethodGet, path, nil, out)
}

var _ domain.DropboxClient = (*HTTP)(nil)
