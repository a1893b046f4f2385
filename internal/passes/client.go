package passes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/orbital/passwatch/internal/metrics"
)

// ErrorKind classifies provider failures so callers can switch on the kind
// instead of string-matching wrapped errors.
type ErrorKind string

const (
	KindTimeout ErrorKind = "timeout"
	KindStatus  ErrorKind = "status"
	KindDecode  ErrorKind = "decode"
)

// ProviderError is the single error type returned by the provider client.
type ProviderError struct {
	Kind   ErrorKind
	Status int // HTTP status for KindStatus, zero otherwise
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("pass provider: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("pass provider: %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ClientConfig holds provider client settings.
type ClientConfig struct {
	BaseURL           string        // e.g. https://api.n2yo.com/rest/v1/satellite
	APIKey            string
	Timeout           time.Duration // per-request bound (default 20s)
	RequestsPerSecond float64       // upstream rate limit (default 1)
	Burst             int           // limiter burst (default 3)
}

// Client queries the external visual-pass prediction provider. Requests are
// throttled through a token bucket because the upstream API enforces
// per-hour transaction limits.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a provider client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 3
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:     logger,
	}
}

// visualPassesResponse mirrors the provider's JSON payload.
type visualPassesResponse struct {
	Info struct {
		SatID   int    `json:"satid"`
		SatName string `json:"satname"`
	} `json:"info"`
	Passes []struct {
		StartAz        float64 `json:"startAz"`
		StartAzCompass string  `json:"startAzCompass"`
		StartUTC       int64   `json:"startUTC"`
		MaxAz          float64 `json:"maxAz"`
		MaxAzCompass   string  `json:"maxAzCompass"`
		MaxEl          float64 `json:"maxEl"`
		EndAz          float64 `json:"endAz"`
		EndAzCompass   string  `json:"endAzCompass"`
		EndUTC         int64   `json:"endUTC"`
		Duration       int     `json:"duration"`
	} `json:"passes"`
}

// VisualPasses fetches predicted visible passes for one satellite over an
// observer location. days is the prediction horizon, minVisibility the
// minimum number of seconds the pass must be visible to count.
func (c *Client) VisualPasses(ctx context.Context, noradID int, lat, lon, altKm float64, days, minVisibility int) (*Forecast, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ProviderError{Kind: KindTimeout, Err: err}
	}

	url := fmt.Sprintf("%s/visualpasses/%d/%f/%f/%f/%d/%d/&apiKey=%s",
		c.baseURL, noradID, lat, lon, altKm, days, minVisibility, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ProviderError{Kind: KindDecode, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncProviderRequests(string(KindTimeout))
		return nil, &ProviderError{Kind: KindTimeout, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.IncProviderRequests(string(KindStatus))
		return nil, &ProviderError{Kind: KindStatus, Status: resp.StatusCode}
	}

	var payload visualPassesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.IncProviderRequests(string(KindDecode))
		return nil, &ProviderError{Kind: KindDecode, Err: err}
	}

	metrics.IncProviderRequests("success")

	forecast := &Forecast{
		NORADID: payload.Info.SatID,
		SatName: payload.Info.SatName,
		Windows: make([]Window, 0, len(payload.Passes)),
	}
	for _, p := range payload.Passes {
		forecast.Windows = append(forecast.Windows, Window{
			NORADID:      payload.Info.SatID,
			SatName:      payload.Info.SatName,
			Start:        time.Unix(p.StartUTC, 0).UTC(),
			End:          time.Unix(p.EndUTC, 0).UTC(),
			Duration:     time.Duration(p.Duration) * time.Second,
			MaxElevation: p.MaxEl,
			StartAzimuth: p.StartAz,
			StartCompass: p.StartAzCompass,
			MaxAzimuth:   p.MaxAz,
			MaxCompass:   p.MaxAzCompass,
			EndAzimuth:   p.EndAz,
			EndCompass:   p.EndAzCompass,
		})
	}
	return forecast, nil
}

// KindOf extracts the provider error kind, or empty for non-provider errors.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
