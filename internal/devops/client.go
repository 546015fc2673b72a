// Package devops fetches Azure DevOps work items, the candidate set for
// time entry matching.
package devops

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"commitclock/internal/model"
)

const apiVersion = "7.0"

// batchSize is the work items endpoint's maximum ids per request.
const batchSize = 200

// Client is an authenticated Azure DevOps API client scoped to one project.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	organization string
	project      string
	pat          string
}

// NewClient creates an Azure DevOps client.
func NewClient(baseURL, organization, project, pat string) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      baseURL,
		organization: organization,
		project:      project,
		pat:          pat,
	}
}

// do sends one request with PAT basic auth and decodes the JSON response.
func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	target := fmt.Sprintf("%s/%s/%s/_apis%s", c.baseURL, c.organization, c.project, endpoint)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization",
		"Basic "+base64.StdEncoding.EncodeToString([]byte(":"+c.pat)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("devops API request failed: %w", err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("devops API error %d: %s", resp.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding devops response: %w", err)
	}
	return nil
}

// workItemResponse is the work item object subset the client needs.
type workItemResponse struct {
	ID     int `json:"id"`
	Fields struct {
		Title string `json:"System.Title"`
		State string `json:"System.State"`
	} `json:"fields"`
}

// WorkItems fetches work items by id, batching large id sets. Unknown ids
// are silently absent from the result.
func (c *Client) WorkItems(ctx context.Context, ids []int) (map[int]model.WorkItem, error) {
	items := make(map[int]model.WorkItem, len(ids))
	for begin := 0; begin < len(ids); begin += batchSize {
		end := begin + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := make([]string, 0, end-begin)
		for _, id := range ids[begin:end] {
			chunk = append(chunk, strconv.Itoa(id))
		}

		endpoint := fmt.Sprintf("/wit/workitems?ids=%s&fields=System.Title,System.State&$errorPolicy=omit&api-version=%s",
			strings.Join(chunk, ","), apiVersion)
		var page struct {
			Value []workItemResponse `json:"value"`
		}
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		for _, raw := range page.Value {
			items[raw.ID] = model.WorkItem{
				ID:    raw.ID,
				Title: raw.Fields.Title,
				State: raw.Fields.State,
			}
		}
	}
	return items, nil
}

// OpenWorkItems queries the ids of all non-completed work items in the
// project and fetches them.
func (c *Client) OpenWorkItems(ctx context.Context) (map[int]model.WorkItem, error) {
	wiql := "SELECT [System.Id] FROM WorkItems " +
		"WHERE [System.TeamProject] = @project " +
		"AND [System.State] NOT IN ('Resolved', 'Closed', 'Done', 'Removed') " +
		"ORDER BY [System.ChangedDate] DESC"

	var result struct {
		WorkItems []struct {
			ID int `json:"id"`
		} `json:"workItems"`
	}
	endpoint := fmt.Sprintf("/wit/wiql?api-version=%s", apiVersion)
	if err := c.do(ctx, http.MethodPost, endpoint, map[string]string{"query": wiql}, &result); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(result.WorkItems))
	for _, wi := range result.WorkItems {
		ids = append(ids, wi.ID)
	}
	return c.WorkItems(ctx, ids)
}
