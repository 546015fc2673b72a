// Package clockify is a thin client for the Clockify REST API. It backs the
// reconciliation engine's entry store and supplies the free-text time
// entries consumed by work item matching.
package clockify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"commitclock/internal/model"
)

const pageSize = 100

// timeFormat is the timestamp format Clockify expects and returns.
const timeFormat = "2006-01-02T15:04:05Z"

// Client is an authenticated Clockify API client. The workspace and user
// are discovered from the API key on first use and cached.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	workspaceID string
	userID      string
	userName    string
	logger      *zap.Logger
}

// NewClient creates a Clockify client for the given API key.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// do sends one request and decodes the JSON response into out (when non-nil).
// A single synchronous attempt; retry policy is the caller's concern.
func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("clockify API request failed: %w", err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("clockify API error %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding clockify response: %w", err)
	}
	return nil
}

// currentUser is the /user response subset the client needs.
type currentUser struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ActiveWorkspace string `json:"activeWorkspace"`
}

// ensureWorkspace discovers and caches the workspace and user behind the
// API key.
func (c *Client) ensureWorkspace(ctx context.Context) error {
	if c.workspaceID != "" {
		return nil
	}
	var u currentUser
	if err := c.do(ctx, http.MethodGet, "/user", nil, &u); err != nil {
		return fmt.Errorf("resolving clockify user: %w", err)
	}
	if u.ActiveWorkspace == "" || u.ID == "" {
		return fmt.Errorf("clockify user response missing workspace or user id")
	}
	c.workspaceID = u.ActiveWorkspace
	c.userID = u.ID
	c.userName = u.Name
	return nil
}

// entryResponse is the time entry object subset the client needs.
type entryResponse struct {
	ID           string `json:"id"`
	Description  string `json:"description"`
	TimeInterval struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"timeInterval"`
}

// entryPayload is the create/update request body.
type entryPayload struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description"`
	ProjectID   string `json:"projectId,omitempty"`
}

// CreateEntry creates a time entry with an explicit time range and returns
// its id.
func (c *Client) CreateEntry(ctx context.Context, start, end time.Time, description, projectID string) (string, error) {
	if err := c.ensureWorkspace(ctx); err != nil {
		return "", err
	}
	payload := entryPayload{
		Start:       start.UTC().Format(timeFormat),
		End:         end.UTC().Format(timeFormat),
		Description: description,
		ProjectID:   projectID,
	}
	var entry entryResponse
	endpoint := fmt.Sprintf("/workspaces/%s/time-entries", c.workspaceID)
	if err := c.do(ctx, http.MethodPost, endpoint, payload, &entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// UpdateEntry replaces the time range and description of an existing entry
// and returns its id.
func (c *Client) UpdateEntry(ctx context.Context, id string, start, end time.Time, description string) (string, error) {
	if err := c.ensureWorkspace(ctx); err != nil {
		return "", err
	}
	payload := entryPayload{
		Start:       start.UTC().Format(timeFormat),
		End:         end.UTC().Format(timeFormat),
		Description: description,
	}
	var entry entryResponse
	endpoint := fmt.Sprintf("/workspaces/%s/time-entries/%s", c.workspaceID, url.PathEscape(id))
	if err := c.do(ctx, http.MethodPut, endpoint, payload, &entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// TimeEntries fetches the authenticated user's time entries within
// [from, to]. Entries without an end time (still running) are skipped.
func (c *Client) TimeEntries(ctx context.Context, from, to time.Time) ([]model.TimeEntry, error) {
	if err := c.ensureWorkspace(ctx); err != nil {
		return nil, err
	}

	var entries []model.TimeEntry
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("/workspaces/%s/user/%s/time-entries?start=%s&end=%s&page=%d&page-size=%d",
			c.workspaceID, c.userID,
			url.QueryEscape(from.UTC().Format(timeFormat)),
			url.QueryEscape(to.UTC().Format(timeFormat)),
			page, pageSize)

		var batch []entryResponse
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &batch); err != nil {
			return nil, err
		}
		for _, raw := range batch {
			if raw.TimeInterval.End == "" {
				continue
			}
			start, err := time.Parse(timeFormat, raw.TimeInterval.Start)
			if err != nil {
				c.logger.Warn("skipping entry with malformed start time",
					zap.String("entry_id", raw.ID), zap.Error(err))
				continue
			}
			end, err := time.Parse(timeFormat, raw.TimeInterval.End)
			if err != nil {
				c.logger.Warn("skipping entry with malformed end time",
					zap.String("entry_id", raw.ID), zap.Error(err))
				continue
			}
			entries = append(entries, model.TimeEntry{
				ID:          raw.ID,
				UserName:    c.userName,
				Description: raw.Description,
				Start:       start,
				End:         end,
			})
		}
		if len(batch) < pageSize {
			return entries, nil
		}
	}
}
