// Package backend is the HTTP client for the remote fleet backend. The
// backend decides which jobs are overdue and how many reminders have fired;
// this client only fetches snapshots and issues the two mutations the console
// exposes.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fleet-console/internal/models"
)

// Client talks to the fleet backend over JSON/HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client for the given base URL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// GetAlerts fetches the current overdue-alert snapshot.
func (c *Client) GetAlerts(ctx context.Context) (models.AlertSnapshot, error) {
	var snap models.AlertSnapshot
	if err := c.get(ctx, "GetAlerts", "/alerts", &snap); err != nil {
		return models.AlertSnapshot{}, err
	}
	return snap, nil
}

// GetAlertCount fetches the active/total counts used for badge display.
func (c *Client) GetAlertCount(ctx context.Context) (models.AlertCount, error) {
	var count models.AlertCount
	if err := c.get(ctx, "GetAlertCount", "/alerts/count", &count); err != nil {
		return models.AlertCount{}, err
	}
	return count, nil
}

// GetAlertSettings fetches the alert settings snapshot.
func (c *Client) GetAlertSettings(ctx context.Context) (models.Settings, error) {
	var s models.Settings
	if err := c.get(ctx, "GetAlertSettings", "/settings/alerts", &s); err != nil {
		return models.Settings{}, err
	}
	return s, nil
}

// AcknowledgeAlert marks an alert dismissed on the backend.
func (c *Client) AcknowledgeAlert(ctx context.Context, alertID int64) error {
	body := map[string]int64{"alert_id": alertID}
	var resp struct {
		Message string `json:"message"`
		AlertID int64  `json:"alert_id"`
	}
	return c.post(ctx, "AcknowledgeAlert", "/alerts/acknowledge", body, &resp)
}

// StartTrip transitions a job to on-the-way, clearing its overdue condition.
func (c *Client) StartTrip(ctx context.Context, jobID int64) error {
	var resp struct {
		Message   string `json:"message"`
		JobID     int64  `json:"job_id"`
		OldStatus string `json:"old_status"`
		NewStatus string `json:"new_status"`
	}
	path := fmt.Sprintf("/jobs/%d/status/otw", jobID)
	return c.post(ctx, "StartTrip", path, map[string]any{}, &resp)
}

func (c *Client) get(ctx context.Context, op, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	return c.do(op, req, out)
}

func (c *Client) post(ctx context.Context, op, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &BackendError{Op: op, Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &ValidationError{Op: op, Err: err}
		}
	}
	return nil
}

// errorMessage pulls a human-readable message out of an error body, falling
// back to the raw text for unstructured responses.
func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
