package storage

import "testing"

func TestBuildProductImagePath(t *testing.T) {
	path, err := BuildObjectPath(PurposeProductImage, PathParams{
		ProductID: "prod123",
		FileName:  "hero.png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "media/products/prod123/images/hero.png"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildAnnouncementImagePath(t *testing.T) {
	path, err := BuildObjectPath(PurposeAnnouncementImage, PathParams{
		AnnouncementID: "ann456",
		FileName:       "banner.webp",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "media/announcements/ann456/images/banner.webp"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildOrderInvoicePathUsesInvoiceNumber(t *testing.T) {
	path, err := BuildObjectPath(PurposeOrderInvoice, PathParams{
		OrderID:       "order123",
		InvoiceNumber: "INV-2025-001",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "media/orders/order123/invoices/INV-2025-001.pdf"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildObjectPathRejectsInvalidSegment(t *testing.T) {
	_, err := BuildObjectPath(PurposeProductImage, PathParams{
		ProductID: "../bad",
		FileName:  "file.png",
	})
	if err == nil {
		t.Fatalf("expected error for invalid segment")
	}
}
