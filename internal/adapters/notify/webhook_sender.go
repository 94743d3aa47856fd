package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/autoyard/garageapi/internal/core/domain"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookSender POSTs queued notifications to a configured HTTP endpoint,
// typically an email gateway or an internal relay. Each request is signed
// with HMAC-SHA256 so the receiver can verify authenticity. Non-2xx responses
// are treated as errors, letting the delivery dispatcher apply its built-in
// retry/dead-letter policy.
type WebhookSender struct {
	url    string
	secret []byte
	client *http.Client
}

// NewWebhookSender returns a WebhookSender that POSTs deliveries to url and
// signs them with secret using HMAC-SHA256. A zero or negative timeout falls
// back to defaultWebhookTimeout (10 s).
func NewWebhookSender(url, secret string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookSender{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
	}
}

// Send marshals the delivery to JSON, signs the body, and POSTs it to the
// configured webhook URL. The following headers are set on every request:
//
//	Content-Type:        application/json
//	X-Garage-Resource:   <d.Resource>
//	X-Garage-Event:      <d.Event>
//	X-Garage-Recipient:  <d.Recipient>
//	X-Hub-Signature-256: sha256=<hex-encoded HMAC-SHA256>
func (s *WebhookSender) Send(ctx context.Context, d domain.Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}

	sig := s.sign(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Garage-Resource", d.Resource)
	req.Header.Set("X-Garage-Event", d.Event)
	req.Header.Set("X-Garage-Recipient", d.Recipient)
	req.Header.Set("X-Hub-Signature-256", "sha256="+sig)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// sign returns the lowercase hex-encoded HMAC-SHA256 of payload using s.secret.
func (s *WebhookSender) sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
