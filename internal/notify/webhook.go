// Package notify decides when a state change is worth telling someone
// about and delivers it to a webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"applimon/internal/classify"
)

const (
	DefaultTimeout        = 10 * time.Second
	DefaultConnectTimeout = 5 * time.Second
)

// Event kinds.
const (
	KindStarted  = "started"
	KindRepeat   = "repeat"
	KindFinished = "finished"
)

// Event is one notification.
type Event struct {
	Kind    string
	Summary string
	Status  classify.Status
	Ratio   float64
	Count   int
	At      time.Time
}

// Sender delivers events.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Send(context.Context, Event) error { return nil }

// Webhook posts events as the three-value JSON object IFTTT maker
// webhooks accept.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Webhook{
		url: url,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: DefaultConnectTimeout,
				}).DialContext,
				TLSHandshakeTimeout: DefaultConnectTimeout,
			},
		},
	}
}

type payload struct {
	Value1 string `json:"value1"`
	Value2 string `json:"value2"`
	Value3 string `json:"value3"`
}

func (w *Webhook) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(payload{
		Value1: ev.Summary,
		Value2: ev.Status.String(),
		Value3: fmt.Sprintf("%.2f", ev.Ratio),
	})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
