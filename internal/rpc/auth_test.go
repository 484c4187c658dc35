package rpc

import (
	"encoding/base64"
	"net/http"
	"testing"
)

func TestNewHMACSignerDecodesURLEncodedSecret(t *testing.T) {
	t.Parallel()
	secret := base64.URLEncoding.EncodeToString([]byte("super-secret"))
	if _, err := NewHMACSigner(secret); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewHMACSignerDecodesStdEncodedSecret(t *testing.T) {
	t.Parallel()
	secret := base64.StdEncoding.EncodeToString([]byte("super-secret"))
	if _, err := NewHMACSigner(secret); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewHMACSignerRejectsInvalidSecret(t *testing.T) {
	t.Parallel()
	if _, err := NewHMACSigner("not valid base64!!!"); err == nil {
		t.Fatal("expected an error for an undecodable secret")
	}
}

func TestHeadersIncludesTimestampAndSignature(t *testing.T) {
	t.Parallel()
	signer, err := NewHMACSigner(base64.URLEncoding.EncodeToString([]byte("shared-secret")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	headers := signer.Headers(http.MethodPost, "/simulate", "")
	if headers["X-RPC-Timestamp"] == "" {
		t.Error("expected a non-empty timestamp header")
	}
	if headers["X-RPC-Signature"] == "" {
		t.Error("expected a non-empty signature header")
	}
}

func TestHeadersDifferByMethodAndPath(t *testing.T) {
	t.Parallel()
	signer, err := NewHMACSigner(base64.URLEncoding.EncodeToString([]byte("shared-secret")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := signer.Headers(http.MethodPost, "/simulate", "")
	b := signer.Headers(http.MethodGet, "/price", "")
	if a["X-RPC-Signature"] == b["X-RPC-Signature"] {
		t.Error("expected different signatures for different method/path combinations")
	}
}
