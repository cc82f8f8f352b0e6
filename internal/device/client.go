package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/logging"
)

const (
	// DefaultPort is the HTTP port the scale firmware listens on
	DefaultPort = 80

	// DefaultTimeout bounds every request. The poll runs every second, so a
	// request that takes longer than a few polls is not worth waiting for.
	DefaultTimeout = 5 * time.Second

	// maxBodySize caps how much of a response body is read.
	maxBodySize = 64 << 10
)

// Device endpoints
const (
	PathStatus       = "/api/status"
	PathPush         = "/ws"
	PathTare         = "/api/tare"
	PathCalibration  = "/api/calibration"
	PathAPIKey       = "/api/apikey"
	PathAPIKeyDelete = "/apikeydelete"
	PathResetWiFi    = "/api/reset-wifi"
	PathFactoryReset = "/api/factory-reset"
	PathPushWeight   = "/api/push-weight"
)

// Client talks to the scale's local HTTP API. Every method performs exactly
// one request; nothing is retried.
type Client struct {
	// BaseURL is the base URL for the scale (e.g., "http://192.168.1.50:80")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client
}

// NewClient creates a client for a scale at host (IP or mDNS name) and port.
func NewClient(host string, port int) *Client {
	if port == 0 {
		port = DefaultPort
	}
	return NewClientWithURL("http://" + net.JoinHostPort(host, strconv.Itoa(port)))
}

// NewClientWithURL creates a client with a full base URL
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// Addr returns the host:port part of the base URL.
func (c *Client) Addr() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return c.BaseURL
	}
	return u.Host
}

// PushURL returns the WebSocket URL of the push channel.
func (c *Client) PushURL() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = PathPush
	return u.String()
}

// FetchStatus polls the full device state.
func (c *Client) FetchStatus(ctx context.Context) (Snapshot, error) {
	body, err := c.do(ctx, http.MethodGet, PathStatus, nil)
	if err != nil {
		return Snapshot{}, err
	}
	return DecodeSnapshot(body)
}

// Tare zeroes the scale. The device must answer with a parseable
// acknowledgement.
func (c *Client) Tare(ctx context.Context) error {
	body, err := c.do(ctx, http.MethodPost, PathTare, nil)
	if err != nil {
		return err
	}
	var a ack
	if err := json.Unmarshal(body, &a); err != nil {
		return NewParseError("failed to parse tare acknowledgement", err)
	}
	return nil
}

// SetCalibrationFactor persists a new calibration factor on the scale. As
// with Tare, a 2xx answer only counts once its acknowledgement parses.
func (c *Client) SetCalibrationFactor(ctx context.Context, factor float64) error {
	body, err := c.do(ctx, http.MethodPost, PathCalibration, map[string]float64{"value": factor})
	if err != nil {
		return err
	}
	var a ack
	if err := json.Unmarshal(body, &a); err != nil {
		return NewParseError("failed to parse calibration acknowledgement", err)
	}
	return nil
}

// SetAPIKey stores a TigerTag API key. The device validates it against the
// cloud and reports the outcome in the response.
func (c *Client) SetAPIKey(ctx context.Context, key string) (APIKeyResult, error) {
	body, err := c.do(ctx, http.MethodPost, PathAPIKey, map[string]string{"key": key})
	if err != nil {
		return APIKeyResult{}, err
	}
	var result APIKeyResult
	if err := json.Unmarshal(body, &result); err != nil {
		return APIKeyResult{}, NewParseError("failed to parse API key response", err)
	}
	return result, nil
}

// DeleteAPIKey clears the stored API key. It returns whether the device
// affirmed the deletion; older firmware answers "ok" in plain text, newer
// firmware answers {"success":true}.
func (c *Client) DeleteAPIKey(ctx context.Context) (bool, error) {
	body, err := c.do(ctx, http.MethodGet, PathAPIKeyDelete, nil)
	if err != nil {
		return false, err
	}

	text := strings.TrimSpace(string(body))
	if strings.EqualFold(text, "ok") {
		return true, nil
	}

	var a ack
	if err := json.Unmarshal(body, &a); err != nil {
		return false, nil
	}
	if a.Success != nil {
		return *a.Success, nil
	}
	return strings.EqualFold(a.Status, "ok"), nil
}

// ResetWiFi asks the scale to forget its WiFi credentials and restart into
// the configuration portal. The scale goes offline right after answering.
func (c *Client) ResetWiFi(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, PathResetWiFi, nil)
	return err
}

// FactoryReset erases every preference stored on the scale (API key,
// calibration factor, WiFi) and restarts it.
func (c *Client) FactoryReset(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, PathFactoryReset, nil)
	return err
}

// PushWeight asks the scale to send grams for the currently presented tag to
// the TigerTag cloud.
func (c *Client) PushWeight(ctx context.Context, grams int) error {
	_, err := c.do(ctx, http.MethodPost, PathPushWeight, map[string]int{"weight": grams})
	return err
}

// do performs one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, NewParseError("failed to encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("failed to create %s request", method), err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		logging.LogHTTPExchange(method, path, 0, time.Since(start))
		devErr := ClassifyNetworkError(err, c.Addr())
		devErr.Message = fmt.Sprintf("%s %s failed: %s", method, path, devErr.Message)
		return nil, devErr
	}
	defer func() { _ = resp.Body.Close() }()
	logging.LogHTTPExchange(method, path, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var a ack
		_ = json.Unmarshal(body, &a)
		logging.Debug("Device rejected request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("device_error", a.Error),
		)
		devErr := NewHTTPError(resp.StatusCode, fmt.Sprintf("%s %s returned status %d", method, path, resp.StatusCode), a.Error)
		devErr.DeviceAddr = c.Addr()
		return nil, devErr
	}

	return body, nil
}
