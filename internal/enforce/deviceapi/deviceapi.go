// Package deviceapi drives the native enforcement engine over its local
// HTTP bridge. Commands are not cancellable once dispatched, which is why
// the session controller always stops before it starts.
package deviceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"focuslock/internal/enforce"
)

const DriverName = "deviceapi"

// Config contains enforcement bridge API configuration
type Config struct {
	BaseURL string // bridge base URL
	APIKey  string // static API key for authentication
}

// Driver implements the enforce.Gateway interface against the HTTP bridge
type Driver struct {
	config     Config
	httpClient *http.Client
}

// NewDriver creates a new device API driver
func NewDriver(config Config) *Driver {
	return &Driver{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the driver name
func (d *Driver) Name() string {
	return DriverName
}

// StartBlocking begins enforcement for a user's device
func (d *Driver) StartBlocking(ctx context.Context, userID string, cfg enforce.StartConfig) error {
	url := fmt.Sprintf("%s/api/devices/%s/enforcement", d.config.BaseURL, userID)
	if err := d.do(ctx, http.MethodPost, url, cfg); err != nil {
		return fmt.Errorf("start blocking: %w", err)
	}
	return nil
}

// ForceUnlock unconditionally stops enforcement for a user's device
func (d *Driver) ForceUnlock(ctx context.Context, userID string) error {
	url := fmt.Sprintf("%s/api/devices/%s/enforcement", d.config.BaseURL, userID)
	if err := d.do(ctx, http.MethodDelete, url, nil); err != nil {
		return fmt.Errorf("force unlock: %w", err)
	}
	return nil
}

// GetSessionInfo reports the engine's live enforcement state
func (d *Driver) GetSessionInfo(ctx context.Context, userID string) (*enforce.SessionInfo, error) {
	url := fmt.Sprintf("%s/api/devices/%s/enforcement", d.config.BaseURL, userID)

	req, err := d.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil // engine has no live state to report
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get session info failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var payload struct {
		IsActive    bool  `json:"is_active"`
		RemainingMs int64 `json:"remaining_ms"`
		NoTimeLimit bool  `json:"no_time_limit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode session info: %w", err)
	}

	return &enforce.SessionInfo{
		IsActive:    payload.IsActive,
		Remaining:   time.Duration(payload.RemainingMs) * time.Millisecond,
		NoTimeLimit: payload.NoTimeLimit,
	}, nil
}

// ScheduleAlarm asks the device to self-trigger a scheduler tick at the
// given time even if the app process is not running
func (d *Driver) ScheduleAlarm(ctx context.Context, userID, presetID string, at time.Time) error {
	url := fmt.Sprintf("%s/api/devices/%s/alarms/%s", d.config.BaseURL, userID, presetID)

	body := map[string]int64{
		"firing_time_epoch_ms": at.UnixMilli(),
	}
	if err := d.do(ctx, http.MethodPut, url, body); err != nil {
		return fmt.Errorf("schedule alarm: %w", err)
	}
	return nil
}

// CancelAlarm removes a previously scheduled alarm
func (d *Driver) CancelAlarm(ctx context.Context, userID, presetID string) error {
	url := fmt.Sprintf("%s/api/devices/%s/alarms/%s", d.config.BaseURL, userID, presetID)
	if err := d.do(ctx, http.MethodDelete, url, nil); err != nil {
		return fmt.Errorf("cancel alarm: %w", err)
	}
	return nil
}

// do performs a request expecting a 2xx response with no interesting body
func (d *Driver) do(ctx context.Context, method, url string, body interface{}) error {
	req, err := d.newRequest(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}

// newRequest creates a new HTTP request with standard headers
func (d *Driver) newRequest(ctx context.Context, method, url string, body interface{}) (*http.Request, error) {
	var bodyReader io.Reader

	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("x-api-key", d.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}
