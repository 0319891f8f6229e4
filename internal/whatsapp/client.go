// Package whatsapp relays messages through a GOWA (go-whatsapp-web-multidevice) gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lead_engine_backend/internal/channel"
	"lead_engine_backend/platform/config"
	"lead_engine_backend/platform/logger"
	"lead_engine_backend/platform/phone"

	"github.com/google/uuid"
)

// Client talks to the GOWA REST API.
type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	http     *http.Client
	log      *logger.Logger
}

type gowaRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// NewClient returns nil when the gateway is not configured.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if cfg.GetWhatsAppURL() == "" {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		apiKey:   cfg.GetWhatsAppKey(),
		deviceID: cfg.GetWhatsAppDeviceID(),
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// SendMessage posts text to the given phone number.
func (c *Client) SendMessage(ctx context.Context, phoneNumber string, message string) error {
	jid := phone.WhatsAppJID(phoneNumber)
	if jid == "" {
		return channel.ErrNoRecipient
	}

	body, err := json.Marshal(gowaRequest{Phone: jid, Message: message})
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send/message", bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return channel.Unavailable(fmt.Errorf("whatsapp request failed: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return channel.Unavailable(fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))))
	}

	c.log.Debug("whatsapp sent via gowa", "phone", jid)
	return nil
}

// Channel adapts Client to channel.Channel by resolving the lead's phone number.
type Channel struct {
	client *Client
	leads  channel.LeadLookup
}

var _ channel.Channel = (*Channel)(nil)

// NewChannel builds the WhatsApp message channel.
func NewChannel(client *Client, leads channel.LeadLookup) *Channel {
	return &Channel{client: client, leads: leads}
}

func (c *Channel) Send(ctx context.Context, leadID uuid.UUID, _ string, text string) error {
	lead, err := c.leads.GetLead(ctx, leadID)
	if err != nil {
		return channel.Unavailable(fmt.Errorf("resolve lead %s: %w", leadID, err))
	}
	if strings.TrimSpace(lead.Phone) == "" {
		return channel.ErrNoRecipient
	}
	return c.client.SendMessage(ctx, lead.Phone, text)
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
