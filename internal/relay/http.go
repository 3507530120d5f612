package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"ciphera/internal/domain"
)

// HTTP is a RelayClient over HTTP.
type HTTP struct {
	Base   string
	client *http.Client
}

// NewHTTP constructs a new HTTP relay client.
// If client is nil, http.DefaultClient will be used.
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{Base: base, client: client}
}

// RegisterPreKeyBundle publishes a PreKeyBundle to POST /register.
func (c *HTTP) RegisterPreKeyBundle(ctx context.Context, bundle domain.PreKeyBundle) error {
	return c.post(ctx, "/register", bundle, nil)
}

// FetchPreKeyBundle retrieves the bundle for username via GET /prekey/{username}.
func (c *HTTP) FetchPreKeyBundle(ctx context.Context, username domain.Username) (domain.PreKeyBundle, error) {
	var out domain.PreKeyBundle
	if err := c.getJSON(ctx, "/prekey/"+url.PathEscape(username.String()), &out); err != nil {
		return domain.PreKeyBundle{}, err
	}
	return out, nil
}

// SendMessage posts an Envelope to POST /msg/{to}. A 409 response carrying
// {"error":"counter_too_low"} is surfaced as domain.ErrCounterTooLow so the
// outbox can run its repair flow (SendState, then a corrected retry).
func (c *HTTP) SendMessage(ctx context.Context, envelope domain.Envelope) error {
	err := c.post(ctx, "/msg/"+url.PathEscape(envelope.To.String()), envelope, nil)
	if isCounterTooLow(err) {
		return fmt.Errorf("relay: %w", domain.ErrCounterTooLow)
	}
	return err
}

// SendState fetches the relay's idea of the next counter it expects from
// (from, to, senderDeviceID) via GET /send-state.
func (c *HTTP) SendState(ctx context.Context, from, to domain.Username, senderDeviceID string) (uint64, error) {
	path := "/send-state?from=" + url.QueryEscape(from.String()) +
		"&to=" + url.QueryEscape(to.String()) +
		"&sender_device_id=" + url.QueryEscape(senderDeviceID)
	var out struct {
		ExpectedCounter uint64 `json:"expected_counter"`
	}
	if err := c.getJSON(ctx, path, &out); err != nil {
		return 0, err
	}
	return out.ExpectedCounter, nil
}

// statusError carries the HTTP status and decoded error body from a
// non-2xx relay response, so callers like SendMessage can distinguish
// CounterTooLow from an ordinary failure.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string { return fmt.Sprintf("relay: unexpected status %d: %s", e.code, e.body) }

func isCounterTooLow(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusConflict && se.body == "counter_too_low"
}

// FetchMessages GETs up to limit Envelopes from /msg/{user}?limit=N.
func (c *HTTP) FetchMessages(
	ctx context.Context,
	username domain.Username,
	limit int,
) ([]domain.Envelope, error) {
	path := "/msg/" + url.PathEscape(username.String())
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var envs []domain.Envelope
	if err := c.getJSON(ctx, path, &envs); err != nil {
		return nil, err
	}
	return envs, nil
}

// AckMessages sends an acknowledgment to POST /msg/{user}/ack with {count}.
func (c *HTTP) AckMessages(ctx context.Context, username domain.Username, count int) error {
	payload := struct {
		Count int `json:"count"`
	}{Count: count}
	return c.post(ctx, "/msg/"+url.PathEscape(username.String())+"/ack", payload, nil)
}

// FetchAccountCanary retrieves the relay's current account canary for
// username via GET /account/{username}/canary. The canary changes whenever
// the relay's record of the account is reset or tampered with, so the caller
// can detect a swapped or rolled-back account before trusting its keys.
func (c *HTTP) FetchAccountCanary(ctx context.Context, username domain.Username) (string, error) {
	var out struct {
		Canary string `json:"canary"`
	}
	if err := c.getJSON(ctx, "/account/"+url.PathEscape(username.String())+"/canary", &out); err != nil {
		return "", err
	}
	return out.Canary, nil
}

// post is a helper for JSON-encoding a POST to path.
func (c *HTTP) post(ctx context.Context, path string, in any, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return &statusError{code: resp.StatusCode, body: decodeErrBody(resp.Body)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// decodeErrBody extracts the "error" field relayserver's writeErr encodes,
// falling back to the raw body text if it isn't the expected shape.
func decodeErrBody(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(r)
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return string(raw)
}

// getJSON performs a GET and JSON-decodes the response into out.
func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Compile-time assertion that HTTP implements domain.RelayClient.
var _ domain.RelayClient = (*HTTP)(nil)
