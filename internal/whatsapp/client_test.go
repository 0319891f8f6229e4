package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"lead_engine_backend/internal/channel"
	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/platform/apperr"
	"lead_engine_backend/platform/config"
	"lead_engine_backend/platform/logger"

	"github.com/google/uuid"
)

type leadLookupFunc func(ctx context.Context, id uuid.UUID) (domain.Lead, error)

func (f leadLookupFunc) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	return f(ctx, id)
}

func TestChannelSendsToLeadPhone(t *testing.T) {
	var got gowaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send/message" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Device-Id") != "dev-1" {
			t.Errorf("missing device header")
		}
		if r.Header.Get("Authorization") != "Basic dXNlcjpwYXNz" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(&config.Config{WhatsAppURL: srv.URL + "/", WhatsAppKey: "user:pass", WhatsAppDeviceID: "dev-1"}, logger.Discard())
	leads := leadLookupFunc(func(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
		return domain.Lead{ID: id, Phone: "(11) 98765-4321"}, nil
	})

	if err := NewChannel(client, leads).Send(context.Background(), uuid.New(), "boas_vindas", "Oi Ana"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Phone != "5511987654321@s.whatsapp.net" || got.Message != "Oi Ana" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestChannelWithoutPhone(t *testing.T) {
	client := NewClient(&config.Config{WhatsAppURL: "http://unused"}, logger.Discard())
	leads := leadLookupFunc(func(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
		return domain.Lead{ID: id}, nil
	})

	err := NewChannel(client, leads).Send(context.Background(), uuid.New(), "t", "x")
	if !errors.Is(err, channel.ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestGatewayErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "device offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(&config.Config{WhatsAppURL: srv.URL}, logger.Discard())
	err := client.SendMessage(context.Background(), "+5511987654321", "x")
	if !apperr.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestNewClientWithoutURL(t *testing.T) {
	if NewClient(&config.Config{}, logger.Discard()) != nil {
		t.Fatalf("expected nil client")
	}
}
