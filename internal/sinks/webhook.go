// Package sinks holds the lead.Sink implementations: automation webhooks, a
// queue, a receipt archive and receipt email.
package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sales-assistant/internal/domain"
)

const (
	webhookAccept       = "text/plain, application/json, */*"
	webhookTimestampFmt = "2006-01-02T15:04:05.000Z07:00"
)

// HTTPStatusError is a non-2xx webhook response.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("sinks: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Webhook delivers a lead as query parameters of a GET request, the shape
// the n8n lead workflow expects. The response body is the sink's reply.
type Webhook struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

type WebhookOption func(*Webhook)

func WithWebhookHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) {
		if c != nil {
			w.httpClient = c
		}
	}
}

func NewWebhook(name, endpoint string, opts ...WebhookOption) (*Webhook, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("sinks: webhook url must not be empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("sinks: invalid webhook url %q", endpoint)
	}
	if name == "" {
		name = "webhook"
	}
	w := &Webhook{
		name:       name,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Webhook) Name() string { return w.name }

func (w *Webhook) Deliver(ctx context.Context, lead domain.LeadData) (string, error) {
	target, err := webhookURL(w.endpoint, lead)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("sinks: create webhook request: %w", err)
	}
	req.Header.Set("Accept", webhookAccept)

	res, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sinks: webhook request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &HTTPStatusError{StatusCode: res.StatusCode, URL: w.endpoint, Body: string(body)}
	}
	return strings.TrimSpace(string(body)), nil
}

// webhookURL appends the lead fields to endpoint, keeping any query it
// already carries. Empty optional fields are omitted.
func webhookURL(endpoint string, lead domain.LeadData) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("sinks: parse webhook url: %w", err)
	}
	q := u.Query()
	if lead.Email != "" {
		q.Set("email", lead.Email)
	}
	if lead.Phone != "" {
		q.Set("phone", lead.Phone)
	}
	q.Set("context", lead.Context)
	q.Set("source", lead.Source)
	if lead.SessionID != "" {
		q.Set("sessionId", lead.SessionID)
	}
	q.Set("timestamp", lead.Timestamp.UTC().Format(webhookTimestampFmt))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
