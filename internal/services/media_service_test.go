package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	domain "github.com/orchidcart/api/internal/domain"
	"github.com/orchidcart/api/internal/platform/storage"
)

type stubURLSigner struct {
	signFn func(context.Context, string, string, storage.SignedURLOptions) (storage.SignedURLResult, error)
	calls  []string
}

func (s *stubURLSigner) SignedURL(ctx context.Context, bucket, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error) {
	s.calls = append(s.calls, object)
	if s.signFn != nil {
		return s.signFn(ctx, bucket, object, opts)
	}
	return storage.SignedURLResult{}, errors.New("not implemented")
}

var _ URLSigner = (*stubURLSigner)(nil)

func TestIssueUploadURLForProductImage(t *testing.T) {
	expires := time.Date(2025, 6, 12, 8, 15, 0, 0, time.UTC)
	signer := &stubURLSigner{
		signFn: func(_ context.Context, bucket, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error) {
			if bucket != "oc-media" {
				t.Fatalf("unexpected bucket %s", bucket)
			}
			if opts.Upload == nil {
				t.Fatal("expected upload options")
			}
			if opts.Upload.ContentType != "image/png" {
				t.Fatalf("unexpected content type %s", opts.Upload.ContentType)
			}
			if opts.Upload.MaxSize != 10<<20 {
				t.Fatalf("unexpected max size %d", opts.Upload.MaxSize)
			}
			return storage.SignedURLResult{
				URL:       "https://storage.example.com/" + object,
				Method:    "PUT",
				ExpiresAt: expires,
				Headers:   map[string]string{"Content-Type": opts.Upload.ContentType},
			}, nil
		},
	}

	service, err := NewMediaService(MediaServiceDeps{Signer: signer, Bucket: "oc-media"})
	if err != nil {
		t.Fatalf("NewMediaService returned error: %v", err)
	}

	ticket, err := service.IssueUploadURL(context.Background(), IssueUploadURLCommand{
		Purpose:     "product-image",
		TargetID:    "prod_1",
		FileName:    "hero.png",
		ContentType: "image/png",
		ActorID:     "admin-1",
	})
	if err != nil {
		t.Fatalf("IssueUploadURL returned error: %v", err)
	}
	if ticket.ObjectPath != "media/products/prod_1/images/hero.png" {
		t.Fatalf("unexpected object path %s", ticket.ObjectPath)
	}
	if ticket.Method != "PUT" {
		t.Fatalf("unexpected method %s", ticket.Method)
	}
	if !ticket.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected expiry %v", ticket.ExpiresAt)
	}
}

func TestIssueUploadURLRejectsUnknownPurpose(t *testing.T) {
	signer := &stubURLSigner{}
	service, err := NewMediaService(MediaServiceDeps{Signer: signer, Bucket: "oc-media"})
	if err != nil {
		t.Fatalf("NewMediaService returned error: %v", err)
	}

	_, err = service.IssueUploadURL(context.Background(), IssueUploadURLCommand{
		Purpose:     "design-master",
		TargetID:    "prod_1",
		FileName:    "hero.png",
		ContentType: "image/png",
	})
	if !errors.Is(err, ErrMediaInvalidInput) {
		t.Fatalf("expected ErrMediaInvalidInput, got %v", err)
	}
	if len(signer.calls) != 0 {
		t.Fatalf("expected no signer calls, got %v", signer.calls)
	}
}

func TestIssueUploadURLRejectsMissingFileName(t *testing.T) {
	service, err := NewMediaService(MediaServiceDeps{Signer: &stubURLSigner{}, Bucket: "oc-media"})
	if err != nil {
		t.Fatalf("NewMediaService returned error: %v", err)
	}

	_, err = service.IssueUploadURL(context.Background(), IssueUploadURLCommand{
		Purpose:     "announcement-image",
		TargetID:    "ann_1",
		ContentType: "image/png",
	})
	if !errors.Is(err, ErrMediaInvalidInput) {
		t.Fatalf("expected ErrMediaInvalidInput, got %v", err)
	}
}

func TestIssueInvoiceURLForOwner(t *testing.T) {
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			if orderID != "ord_1" {
				t.Fatalf("unexpected order id %s", orderID)
			}
			return domain.Order{ID: "ord_1", OrderNumber: "ORD-2025-0001", UserID: "user-1"}, nil
		},
	}
	signer := &stubURLSigner{
		signFn: func(_ context.Context, _, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error) {
			if opts.Download == nil {
				t.Fatal("expected download options")
			}
			if !strings.Contains(opts.Download.Disposition, "ORD-2025-0001.pdf") {
				t.Fatalf("unexpected disposition %s", opts.Download.Disposition)
			}
			return storage.SignedURLResult{URL: "https://storage.example.com/" + object, Method: "GET"}, nil
		},
	}

	service, err := NewMediaService(MediaServiceDeps{Signer: signer, Orders: orders, Bucket: "oc-media"})
	if err != nil {
		t.Fatalf("NewMediaService returned error: %v", err)
	}

	ticket, err := service.IssueInvoiceURL(context.Background(), InvoiceURLQuery{
		OrderID:     "ord_1",
		RequesterID: "user-1",
	})
	if err != nil {
		t.Fatalf("IssueInvoiceURL returned error: %v", err)
	}
	if ticket.ObjectPath != "media/orders/ord_1/invoices/ORD-2025-0001.pdf" {
		t.Fatalf("unexpected object path %s", ticket.ObjectPath)
	}
}

func TestIssueInvoiceURLForbiddenForOtherUser(t *testing.T) {
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) {
			return domain.Order{ID: "ord_1", OrderNumber: "ORD-2025-0001", UserID: "user-1"}, nil
		},
	}
	signer := &stubURLSigner{}

	service, err := NewMediaService(MediaServiceDeps{Signer: signer, Orders: orders, Bucket: "oc-media"})
	if err != nil {
		t.Fatalf("NewMediaService returned error: %v", err)
	}

	_, err = service.IssueInvoiceURL(context.Background(), InvoiceURLQuery{
		OrderID:     "ord_1",
		RequesterID: "user-2",
	})
	if !errors.Is(err, ErrMediaForbidden) {
		t.Fatalf("expected ErrMediaForbidden, got %v", err)
	}
	if len(signer.calls) != 0 {
		t.Fatalf("expected no signer calls, got %v", signer.calls)
	}
}

func TestIssueInvoiceURLAdminBypassesOwnership(t *testing.T) {
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) {
			return domain.Order{ID: "ord_1", OrderNumber: "ORD-2025-0001", UserID: "user-1"}, nil
		},
	}
	signer := &stubURLSigner{
		signFn: func(_ context.Context, _, object string, _ storage.SignedURLOptions) (storage.SignedURLResult, error) {
			return storage.SignedURLResult{URL: "https://storage.example.com/" + object, Method: "GET"}, nil
		},
	}

	service, err := NewMediaService(MediaServiceDeps{Signer: signer, Orders: orders, Bucket: "oc-media"})
	if err != nil {
		t.Fatalf("NewMediaService returned error: %v", err)
	}

	if _, err := service.IssueInvoiceURL(context.Background(), InvoiceURLQuery{
		OrderID:     "ord_1",
		RequesterID: "admin-1",
		AdminAccess: true,
	}); err != nil {
		t.Fatalf("IssueInvoiceURL returned error: %v", err)
	}
}

func TestIssueInvoiceURLOrderNotFound(t *testing.T) {
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, orderID string) (domain.Order, error) {
			return domain.Order{}, fmt.Errorf("orders.get %s: %w", orderID, notFoundRepoErr{})
		},
	}

	service, err := NewMediaService(MediaServiceDeps{Signer: &stubURLSigner{}, Orders: orders, Bucket: "oc-media"})
	if err != nil {
		t.Fatalf("NewMediaService returned error: %v", err)
	}

	_, err = service.IssueInvoiceURL(context.Background(), InvoiceURLQuery{OrderID: "ord_missing", RequesterID: "user-1"})
	if !errors.Is(err, ErrMediaNotFound) {
		t.Fatalf("expected ErrMediaNotFound, got %v", err)
	}
}
