package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"golang.org/x/time/rate"
)

type Mode string

const (
	// ModeFile uploads the body as a multipart "file" attachment.
	ModeFile Mode = "file"
	// ModeJSON posts {"content": body}.
	ModeJSON Mode = "json"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 512
)

// ErrNotConfigured is returned when no webhook URL was given.
var ErrNotConfigured = errors.New("webhook url not configured")

// DeliveryError describes a failed webhook call: either a non-2xx response
// or a transport fault.
type DeliveryError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook request failed: %v", e.Err)
	}
	return fmt.Sprintf("unexpected status code: %d body=%q", e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type Options struct {
	Mode    Mode
	Timeout time.Duration
	// RatePerSec limits outgoing calls; zero disables the limiter.
	RatePerSec float64
}

type WebhookClient struct {
	url     string
	mode    Mode
	client  *http.Client
	limiter *rate.Limiter
}

func NewWebhookClient(url string, opts Options) *WebhookClient {
	if opts.Mode == "" {
		opts.Mode = ModeFile
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	c := &WebhookClient{
		url:  url,
		mode: opts.Mode,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
	}
	if opts.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	return c
}

func (c *WebhookClient) Configured() bool { return c.url != "" }

func (c *WebhookClient) Mode() Mode { return c.mode }

// Deliver sends body to the webhook. It does not retry; the caller decides
// whether a failure should be redelivered.
func (c *WebhookClient) Deliver(ctx context.Context, body, filename string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &DeliveryError{Err: err}
		}
	}

	payload, contentType, err := c.encode(body, filename)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

func (c *WebhookClient) encode(body, filename string) (io.Reader, string, error) {
	if c.mode == ModeJSON {
		b, err := json.Marshal(contentRequest{Content: body})
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(b), "application/json", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", "text/plain; charset=utf-8")

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(part, body); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

type contentRequest struct {
	Content string `json:"content"`
}
