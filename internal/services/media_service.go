package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orchidcart/api/internal/platform/storage"
	"github.com/orchidcart/api/internal/repositories"
)

var (
	// ErrMediaInvalidInput indicates a malformed signed URL request.
	ErrMediaInvalidInput = errors.New("media: invalid input")
	// ErrMediaForbidden indicates the requester may not access the object.
	ErrMediaForbidden = errors.New("media: forbidden")
	// ErrMediaNotFound indicates the referenced order does not exist.
	ErrMediaNotFound = errors.New("media: not found")
)

const (
	mediaUploadExpiry   = 15 * time.Minute
	mediaDownloadExpiry = 5 * time.Minute
	maxMediaUploadSize  = 10 << 20
)

// URLSigner is the subset of the storage client the media service needs.
type URLSigner interface {
	SignedURL(ctx context.Context, bucket, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error)
}

// MediaServiceDeps bundles collaborators for the media service.
type MediaServiceDeps struct {
	Signer URLSigner
	Orders repositories.OrderRepository
	Bucket string
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type mediaService struct {
	signer URLSigner
	orders repositories.OrderRepository
	bucket string
	logger func(context.Context, string, map[string]any)
}

var _ MediaService = (*mediaService)(nil)

// NewMediaService constructs the signed URL issuer for media objects.
func NewMediaService(deps MediaServiceDeps) (MediaService, error) {
	if deps.Signer == nil {
		return nil, errors.New("media service: signer is required")
	}
	if strings.TrimSpace(deps.Bucket) == "" {
		return nil, errors.New("media service: bucket is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &mediaService{
		signer: deps.Signer,
		orders: deps.Orders,
		bucket: strings.TrimSpace(deps.Bucket),
		logger: logger,
	}, nil
}

func (s *mediaService) IssueUploadURL(ctx context.Context, cmd IssueUploadURLCommand) (MediaTicket, error) {
	purpose, params, err := uploadTarget(cmd)
	if err != nil {
		return MediaTicket{}, err
	}

	objectPath, err := storage.BuildObjectPath(purpose, params)
	if err != nil {
		return MediaTicket{}, fmt.Errorf("%w: %v", ErrMediaInvalidInput, err)
	}

	maxSize := cmd.MaxSize
	if maxSize <= 0 || maxSize > maxMediaUploadSize {
		maxSize = maxMediaUploadSize
	}

	result, err := s.signer.SignedURL(ctx, s.bucket, objectPath, storage.SignedURLOptions{
		Upload: &storage.UploadOptions{
			Method:              "PUT",
			ContentType:         cmd.ContentType,
			ContentMD5:          cmd.ContentMD5,
			AllowedContentTypes: []string{"image/*"},
			MaxSize:             maxSize,
			ExpiresIn:           mediaUploadExpiry,
		},
	})
	if err != nil {
		return MediaTicket{}, fmt.Errorf("%w: %v", ErrMediaInvalidInput, err)
	}

	s.logger(ctx, "media.upload_url_issued", map[string]any{
		"purpose": cmd.Purpose,
		"object":  objectPath,
		"actor":   cmd.ActorID,
	})

	return MediaTicket{
		URL:        result.URL,
		Method:     result.Method,
		ObjectPath: objectPath,
		ExpiresAt:  result.ExpiresAt,
		Headers:    result.Headers,
	}, nil
}

func (s *mediaService) IssueInvoiceURL(ctx context.Context, query InvoiceURLQuery) (MediaTicket, error) {
	orderID := strings.TrimSpace(query.OrderID)
	if orderID == "" {
		return MediaTicket{}, fmt.Errorf("%w: order id is required", ErrMediaInvalidInput)
	}
	if s.orders == nil {
		return MediaTicket{}, errors.New("media service: order repository is not configured")
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if isRepositoryNotFound(err) {
			return MediaTicket{}, fmt.Errorf("%w: order %s", ErrMediaNotFound, orderID)
		}
		return MediaTicket{}, err
	}
	if !query.AdminAccess && order.UserID != strings.TrimSpace(query.RequesterID) {
		return MediaTicket{}, fmt.Errorf("%w: order %s", ErrMediaForbidden, orderID)
	}

	objectPath, err := storage.BuildObjectPath(storage.PurposeOrderInvoice, storage.PathParams{
		OrderID:       order.ID,
		InvoiceNumber: order.OrderNumber,
	})
	if err != nil {
		return MediaTicket{}, fmt.Errorf("%w: %v", ErrMediaInvalidInput, err)
	}

	result, err := s.signer.SignedURL(ctx, s.bucket, objectPath, storage.SignedURLOptions{
		Download: &storage.DownloadOptions{
			ExpiresIn:      mediaDownloadExpiry,
			Disposition:    fmt.Sprintf("attachment; filename=%q", order.OrderNumber+".pdf"),
			ResponseType:   "application/pdf",
			AllowAnonymous: true,
		},
	})
	if err != nil {
		return MediaTicket{}, err
	}

	return MediaTicket{
		URL:        result.URL,
		Method:     result.Method,
		ObjectPath: objectPath,
		ExpiresAt:  result.ExpiresAt,
		Headers:    result.Headers,
	}, nil
}

func uploadTarget(cmd IssueUploadURLCommand) (storage.AssetPurpose, storage.PathParams, error) {
	fileName := strings.TrimSpace(cmd.FileName)
	targetID := strings.TrimSpace(cmd.TargetID)
	if fileName == "" {
		return "", storage.PathParams{}, fmt.Errorf("%w: file name is required", ErrMediaInvalidInput)
	}
	if targetID == "" {
		return "", storage.PathParams{}, fmt.Errorf("%w: target id is required", ErrMediaInvalidInput)
	}
	switch storage.AssetPurpose(strings.TrimSpace(cmd.Purpose)) {
	case storage.PurposeProductImage:
		return storage.PurposeProductImage, storage.PathParams{ProductID: targetID, FileName: fileName}, nil
	case storage.PurposeAnnouncementImage:
		return storage.PurposeAnnouncementImage, storage.PathParams{AnnouncementID: targetID, FileName: fileName}, nil
	default:
		return "", storage.PathParams{}, fmt.Errorf("%w: unsupported purpose %q", ErrMediaInvalidInput, cmd.Purpose)
	}
}
