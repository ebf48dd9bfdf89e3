package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// signCallback computes the hex-encoded HMAC-SHA256 over "orderId|paymentId"
// with the gateway key secret. Both supported gateways sign client callbacks
// this way.
func signCallback(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// signBody computes the hex-encoded HMAC-SHA256 over the exact raw bytes.
func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// verifyCallbackSignature fails closed: missing or mismatched signatures are
// rejected with ErrSignatureMismatch. Comparison is constant time.
func verifyCallbackSignature(secret, gatewayOrderID, paymentID, signature string) error {
	supplied := strings.TrimSpace(signature)
	if supplied == "" {
		return fmt.Errorf("%w: signature is required", ErrSignatureMismatch)
	}
	expected := signCallback(secret, gatewayOrderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(supplied)) {
		return ErrSignatureMismatch
	}
	return nil
}

// verifyBodySignature checks the raw-body webhook HMAC in constant time.
func verifyBodySignature(secret string, body []byte, signature string) error {
	supplied := strings.TrimSpace(signature)
	if supplied == "" {
		return fmt.Errorf("%w: signature header is required", ErrSignatureMismatch)
	}
	expected := signBody(secret, body)
	if !hmac.Equal([]byte(expected), []byte(supplied)) {
		return ErrSignatureMismatch
	}
	return nil
}
