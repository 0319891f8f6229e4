package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lead_engine_backend/platform/clock"
	"lead_engine_backend/platform/config"

	"github.com/google/uuid"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Lead-Engine-Signature"

// Webhook relays messages as signed JSON POSTs to an external automation surface.
type Webhook struct {
	url    string
	secret []byte
	http   *http.Client
	clock  clock.Clock
}

type webhookPayload struct {
	LeadID   string    `json:"leadId"`
	Template string    `json:"template"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
}

// NewWebhook creates a webhook channel, or nil when no URL is configured.
func NewWebhook(cfg config.WebhookConfig, clk clock.Clock) *Webhook {
	if cfg.GetWebhookURL() == "" {
		return nil
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Webhook{
		url:    strings.TrimSpace(cfg.GetWebhookURL()),
		secret: []byte(cfg.GetWebhookSecret()),
		http:   &http.Client{Timeout: 10 * time.Second},
		clock:  clk,
	}
}

func (w *Webhook) Send(ctx context.Context, leadID uuid.UUID, templateName, text string) error {
	body, err := json.Marshal(webhookPayload{
		LeadID:   leadID.String(),
		Template: templateName,
		Text:     text,
		SentAt:   w.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if len(w.secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(w.secret, body))
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return Unavailable(fmt.Errorf("webhook request failed: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Unavailable(fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
