package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/orchidcart/api/internal/domain"
	pfirestore "github.com/orchidcart/api/internal/platform/firestore"
	"github.com/orchidcart/api/internal/repositories"
)

const webhookEventCollection = "webhookEvents"

// WebhookEventRepository appends audit records for received gateway webhooks.
type WebhookEventRepository struct {
	base *pfirestore.BaseRepository[webhookEventDocument]
}

// NewWebhookEventRepository constructs a Firestore-backed webhook audit repository.
func NewWebhookEventRepository(provider *pfirestore.Provider) (*WebhookEventRepository, error) {
	if provider == nil {
		return nil, errors.New("webhook event repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[webhookEventDocument](provider, webhookEventCollection, nil, nil)
	return &WebhookEventRepository{base: base}, nil
}

var _ repositories.WebhookEventRepository = (*WebhookEventRepository)(nil)

// Append stores a webhook audit record.
func (r *WebhookEventRepository) Append(ctx context.Context, event domain.WebhookEvent) error {
	if r == nil || r.base == nil {
		return errors.New("webhook event repository not initialised")
	}
	if strings.TrimSpace(event.ID) == "" {
		return errors.New("webhook event id is required")
	}
	doc := webhookEventDocument{
		Gateway:    string(event.Gateway),
		EventType:  strings.TrimSpace(event.EventType),
		GatewayRef: strings.TrimSpace(event.GatewayRef),
		Verified:   event.Verified,
		Applied:    event.Applied,
		ReceivedAt: event.ReceivedAt,
	}
	_, err := r.base.Set(ctx, event.ID, doc)
	return err
}

type webhookEventDocument struct {
	Gateway    string    `firestore:"gateway"`
	EventType  string    `firestore:"eventType"`
	GatewayRef string    `firestore:"gatewayRef,omitempty"`
	Verified   bool      `firestore:"verified"`
	Applied    bool      `firestore:"applied"`
	ReceivedAt time.Time `firestore:"receivedAt"`
}
