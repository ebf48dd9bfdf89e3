package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orchidcart/api/internal/platform/auth"
	"github.com/orchidcart/api/internal/services"
)

const maxMediaBodySize = 8 * 1024

type issueUploadURLRequest struct {
	Purpose     string `json:"purpose"`
	TargetID    string `json:"targetId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	ContentMD5  string `json:"contentMd5,omitempty"`
	MaxSize     int64  `json:"maxSize,omitempty"`
}

type mediaTicketPayload struct {
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	ObjectPath string            `json:"objectPath"`
	ExpiresAt  string            `json:"expiresAt,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// MediaHandlers exposes signed URL issuance. Upload URLs are admin-only;
// invoice download URLs enforce order ownership in the service.
type MediaHandlers struct {
	authn *auth.Authenticator
	media services.MediaService
}

// NewMediaHandlers constructs a new MediaHandlers instance.
func NewMediaHandlers(authn *auth.Authenticator, media services.MediaService) *MediaHandlers {
	return &MediaHandlers{authn: authn, media: media}
}

// AdminRoutes registers the /admin/media endpoints.
func (h *MediaHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Post("/upload-url", h.issueUploadURL)
}

// Routes registers the customer-facing /media endpoints.
func (h *MediaHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/invoices/{orderID}", h.issueInvoiceURL)
}

func (h *MediaHandlers) issueUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req issueUploadURLRequest
	body, err := readLimitedBody(r, maxMediaBodySize)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ticket, err := h.media.IssueUploadURL(ctx, services.IssueUploadURLCommand{
		Purpose:     strings.TrimSpace(req.Purpose),
		TargetID:    strings.TrimSpace(req.TargetID),
		FileName:    strings.TrimSpace(req.FileName),
		ContentType: strings.TrimSpace(req.ContentType),
		ContentMD5:  strings.TrimSpace(req.ContentMD5),
		MaxSize:     req.MaxSize,
		ActorID:     identity.UID,
	})
	if err != nil {
		writeMediaError(w, err)
		return
	}
	writeEnvelope(w, http.StatusCreated, "upload url issued", buildMediaTicketPayload(ticket))
}

func (h *MediaHandlers) issueInvoiceURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	ticket, err := h.media.IssueInvoiceURL(ctx, services.InvoiceURLQuery{
		OrderID:     strings.TrimSpace(chi.URLParam(r, "orderID")),
		RequesterID: identity.UID,
		AdminAccess: identity.HasAnyRole(auth.RoleAdmin, auth.RoleStaff),
	})
	if err != nil {
		writeMediaError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, "invoice url issued", buildMediaTicketPayload(ticket))
}

func buildMediaTicketPayload(ticket services.MediaTicket) mediaTicketPayload {
	payload := mediaTicketPayload{
		URL:        ticket.URL,
		Method:     ticket.Method,
		ObjectPath: ticket.ObjectPath,
		Headers:    ticket.Headers,
	}
	if !ticket.ExpiresAt.IsZero() {
		payload.ExpiresAt = formatTime(ticket.ExpiresAt)
	}
	return payload
}

func writeMediaError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrMediaInvalidInput):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrMediaForbidden):
		writeFailure(w, http.StatusForbidden, "you do not have access to this invoice")
	case errors.Is(err, services.ErrMediaNotFound):
		writeFailure(w, http.StatusNotFound, "order not found")
	default:
		writeFailure(w, http.StatusInternalServerError, "failed to issue signed url")
	}
}
