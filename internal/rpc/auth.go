package rpc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// HMACSigner signs outbound RPC requests with a shared secret, for fullnode
// RPC endpoints that require request authentication (spec.md §12.7). Ported
// from internal/exchange/auth.go (teacher)'s L2 HMAC half — the L1 EIP-712
// wallet-signing half has no analog here, since this is a single shared
// per-deployment secret rather than a derived trading API key (see
// DESIGN.md).
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner builds a signer from a base64-encoded secret, trying the
// same decoder fallbacks as the teacher's buildHMAC (different providers
// issue secrets in different base64 flavors).
func NewHMACSigner(secret string) (*HMACSigner, error) {
	decoders := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}
	var raw []byte
	var err error
	for _, dec := range decoders {
		raw, err = dec.DecodeString(secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decode hmac secret: %w", err)
	}
	return &HMACSigner{secret: raw}, nil
}

// Headers returns the signed-request headers for method+path+body, using
// the teacher's message layout: timestamp + method + path [+ body].
func (s *HMACSigner) Headers(method, path, body string) map[string]string {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	message := timestamp + method + path
	if body != "" {
		message += body
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(message))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"X-RPC-Timestamp": timestamp,
		"X-RPC-Signature": sig,
	}
}
