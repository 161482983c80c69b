// Package clickup imports the client roster from a ClickUp list view.
package clickup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.clickup.com/api/v2"

type Task struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	URL          string        `json:"url"`
	Status       TaskStatus    `json:"status"`
	CustomFields []CustomField `json:"custom_fields"`
}

type TaskStatus struct {
	Status string `json:"status"`
}

type CustomField struct {
	Name       string      `json:"name"`
	Value      any         `json:"value"`
	Type       string      `json:"type"`
	TypeConfig *TypeConfig `json:"type_config,omitempty"`
}

type TypeConfig struct {
	Options []FieldOption `json:"options"`
}

type FieldOption struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OrderIndex int    `json:"orderindex"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
	}
}

// NewClientWithBaseURL is used by tests to point at a stub server.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	client := NewClient(apiKey)
	client.baseURL = baseURL
	return client
}

// FetchViewTasks pages through the view's task endpoint until the API
// marks the last page, accumulating every task.
func (c *Client) FetchViewTasks(ctx context.Context, viewID string) ([]Task, error) {
	var all []Task
	for page := 0; ; page++ {
		url := fmt.Sprintf("%s/view/%s/task?page=%d", c.baseURL, viewID, page)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		var body struct {
			Tasks    []Task `json:"tasks"`
			LastPage bool   `json:"last_page"`
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch page %d: %s", page, resp.Status)
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("decode page %d: %w", page, err)
		}
		resp.Body.Close()

		all = append(all, body.Tasks...)
		if body.LastPage {
			return all, nil
		}
	}
}

// FieldValue returns the raw value of a named custom field, or nil when
// the field is absent or unset.
func (t Task) FieldValue(name string) any {
	for _, field := range t.CustomFields {
		if field.Name == name {
			return field.Value
		}
	}
	return nil
}

// FieldOptionName resolves a dropdown field's value (an option index) to
// the option's display name.
func (t Task) FieldOptionName(name string) string {
	for _, field := range t.CustomFields {
		if field.Name != name {
			continue
		}
		index, ok := fieldInt(field.Value)
		if !ok || field.TypeConfig == nil {
			return ""
		}
		for _, option := range field.TypeConfig.Options {
			if option.OrderIndex == index {
				return option.Name
			}
		}
		return ""
	}
	return ""
}

// fieldString renders a custom field value as text. ClickUp returns
// numbers for count fields, so both forms are accepted.
func fieldString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// fieldInt parses a custom field value as an integer index.
func fieldInt(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(v), true
	case string:
		var parsed int
		if _, err := fmt.Sscanf(v, "%d", &parsed); err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
