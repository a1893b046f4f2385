// Package mail delivers pass notifications through a Resend-style HTTP
// email API. It is one implementation of alert.Transport; the scheduler
// never depends on it directly.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/orbital/passwatch/internal/alert"
)

const defaultBaseURL = "https://api.resend.com"

// Config holds transport settings.
type Config struct {
	BaseURL string
	APIKey  string
	From    string        // e.g. "Passwatch <noreply@example.org>"
	AppURL  string        // base URL for unsubscribe links
	Timeout time.Duration // per-send bound (default 20s)
}

// Client sends notification emails.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a mail transport.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Compile-time interface check.
var _ alert.Transport = (*Client)(nil)

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send delivers one pass notification.
func (c *Client) Send(ctx context.Context, n alert.Notification) error {
	body, err := json.Marshal(sendRequest{
		From:    c.cfg.From,
		To:      []string{n.Subscriber.Email},
		Subject: "🛰️ Satellite passing overhead soon!",
		HTML:    renderBody(c.cfg.AppURL, n),
	})
	if err != nil {
		return fmt.Errorf("encoding send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification email: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("email API returned status %d", resp.StatusCode)
	}

	c.logger.Debug("notification email accepted", "to", n.Subscriber.Email, "satellite", n.Window.SatName)
	return nil
}

// renderBody produces the notification HTML with the pass details the
// subscriber needs to find the satellite: time, elevation, duration, and
// the rise/peak/set azimuths.
func renderBody(appURL string, n alert.Notification) string {
	w := n.Window
	location := n.Subscriber.LocationName
	if location == "" {
		location = "your saved location"
	}
	unsubscribeURL := fmt.Sprintf("%s/unsubscribe?token=%s", appURL, n.Subscriber.UnsubscribeToken)

	return fmt.Sprintf(`<div>
  <h1>Satellite Alert</h1>
  <p>Get ready to look up!</p>
  <p><strong>Satellite:</strong> %s</p>
  <p><strong>Pass Time:</strong> %s</p>
  <p><strong>Your Location:</strong> %s</p>
  <p><strong>Max Elevation:</strong> %.0f&deg;</p>
  <p><strong>Duration:</strong> %.0f seconds</p>
  <p><strong>Start:</strong> Azimuth %.0f&deg; (%s)</p>
  <p><strong>Maximum:</strong> Azimuth %.0f&deg; (%s)</p>
  <p><strong>End:</strong> Azimuth %.0f&deg; (%s)</p>
  <p><a href="%s">Unsubscribe</a></p>
</div>`,
		w.SatName,
		w.Start.UTC().Format(time.RFC1123),
		location,
		w.MaxElevation,
		w.Duration.Seconds(),
		w.StartAzimuth, w.StartCompass,
		w.MaxAzimuth, w.MaxCompass,
		w.EndAzimuth, w.EndCompass,
		unsubscribeURL,
	)
}
