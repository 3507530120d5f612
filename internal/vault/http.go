package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"ciphera/internal/domain"
)

// HTTP is a domain.VaultClient over HTTP.
type HTTP struct {
	Base   string
	client *http.Client
}

// NewHTTP constructs a vault client against base. If client is nil,
// http.DefaultClient is used.
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{Base: base, client: client}
}

// Put stores entry via POST /vault/put.
func (c *HTTP) Put(ctx context.Context, entry domain.VaultEntry) error {
	return c.post(ctx, "/vault/put", entry, nil)
}

// Get retrieves a single vault entry via GET
// /vault/get?conversation_id=...&sender_device_id=...&message_id=...
func (c *HTTP) Get(
	ctx context.Context,
	conversationID domain.ConversationID,
	senderDeviceID, messageID string,
) (domain.VaultEntry, bool, error) {
	q := url.Values{}
	q.Set("conversation_id", conversationID.String())
	q.Set("sender_device_id", senderDeviceID)
	q.Set("message_id", messageID)

	var out struct {
		Found bool              `json:"found"`
		Entry domain.VaultEntry `json:"entry"`
	}
	if err := c.getJSON(ctx, "/vault/get?"+q.Encode(), &out); err != nil {
		return domain.VaultEntry{}, false, err
	}
	return out.Entry, out.Found, nil
}

// Count reports how many times message's entry has been fetched since it
// was last put (repeat fetches by one device each count) via GET
// /vault/count?conversation_id=...&message_id=....
func (c *HTTP) Count(ctx context.Context, conversationID domain.ConversationID, messageID string) (int, error) {
	q := url.Values{}
	q.Set("conversation_id", conversationID.String())
	q.Set("message_id", messageID)

	var out struct {
		Count int `json:"count"`
	}
	if err := c.getJSON(ctx, "/vault/count?"+q.Encode(), &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// LatestState fetches the high-water marks used for gap detection via GET
// /vault/latest-state?conversation_id=...&sender_device_id=....
func (c *HTTP) LatestState(
	ctx context.Context,
	conversationID domain.ConversationID,
	senderDeviceID string,
) (domain.LatestState, error) {
	q := url.Values{}
	q.Set("conversation_id", conversationID.String())
	q.Set("sender_device_id", senderDeviceID)

	var out domain.LatestState
	if err := c.getJSON(ctx, "/vault/latest-state?"+q.Encode(), &out); err != nil {
		return domain.LatestState{}, err
	}
	return out, nil
}

// Delete removes an entry via POST /vault/delete.
func (c *HTTP) Delete(ctx context.Context, conversationID domain.ConversationID, messageID, senderDeviceID string) error {
	payload := struct {
		ConversationID domain.ConversationID `json:"conversation_id"`
		MessageID      string                `json:"message_id"`
		SenderDeviceID string                `json:"sender_device_id"`
	}{ConversationID: conversationID, MessageID: messageID, SenderDeviceID: senderDeviceID}
	return c.post(ctx, "/vault/delete", payload, nil)
}

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
		return fmt.Errorf("vault post %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

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
		return fmt.Errorf("vault get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ domain.VaultClient = (*HTTP)(nil)
