// Package tracker implements ports.TrackingClient against an
// OpenProject-compatible v3 HTTP API.
package tracker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"worklog-sync/internal/domain"
)

// Client talks to the remote tracking API. All requests carry API-key basic
// auth; mutating requests also carry a fresh idempotency key so an ambiguous
// retry cannot double-create.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
	log      *slog.Logger
}

func NewClient(baseURL, apiToken string, log *slog.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// collection is the HAL-style wrapper the API uses for list responses.
type collection struct {
	Embedded struct {
		Elements []json.RawMessage `json:"elements"`
	} `json:"_embedded"`
	Total int `json:"total"`
	Count int `json:"count"`
}

type link struct {
	Href  string `json:"href,omitempty"`
	Title string `json:"title,omitempty"`
}

type formatted struct {
	Format string `json:"format,omitempty"`
	Raw    string `json:"raw"`
}

type rawUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Login string `json:"login"`
}

type rawProject struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

type rawStatus struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
}

type rawWorkPackage struct {
	ID          int64      `json:"id"`
	Subject     string     `json:"subject"`
	Description *formatted `json:"description,omitempty"`
	Links       struct {
		Project link `json:"project"`
		Status  link `json:"status"`
		Type    link `json:"type"`
	} `json:"_links"`
}

type rawTimeEntry struct {
	ID        int64      `json:"id"`
	SpentOn   string     `json:"spentOn"`
	Hours     string     `json:"hours"` // ISO-8601 duration, PT<hours>H
	StartTime string     `json:"startTime,omitempty"`
	Comment   *formatted `json:"comment,omitempty"`
	Links     struct {
		WorkPackage link `json:"workPackage"`
		Activity    link `json:"activity"`
	} `json:"_links"`
}

// GetCurrentUser fetches the authenticated account; app wiring uses it to
// verify credentials before any processing.
func (c *Client) GetCurrentUser(ctx context.Context) (domain.User, error) {
	var raw rawUser
	if err := c.get(ctx, "/api/v3/users/me", nil, &raw); err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: raw.ID, Name: raw.Name, Login: raw.Login}, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var col collection
	if err := c.get(ctx, "/api/v3/projects", nil, &col); err != nil {
		return nil, err
	}
	out := make([]domain.Project, 0, len(col.Embedded.Elements))
	for _, el := range col.Embedded.Elements {
		var raw rawProject
		if err := json.Unmarshal(el, &raw); err != nil {
			return nil, fmt.Errorf("tracker: decode project: %w", err)
		}
		out = append(out, domain.Project{ID: raw.ID, Name: raw.Name, Identifier: raw.Identifier})
	}
	return out, nil
}

func (c *Client) ListStatuses(ctx context.Context) ([]domain.Status, error) {
	var col collection
	if err := c.get(ctx, "/api/v3/statuses", nil, &col); err != nil {
		return nil, err
	}
	out := make([]domain.Status, 0, len(col.Embedded.Elements))
	for _, el := range col.Embedded.Elements {
		var raw rawStatus
		if err := json.Unmarshal(el, &raw); err != nil {
			return nil, fmt.Errorf("tracker: decode status: %w", err)
		}
		out = append(out, domain.Status{ID: raw.ID, Name: raw.Name, IsDefault: raw.IsDefault})
	}
	return out, nil
}

// ListWorkItems fetches one page of a project's work packages. pageOffset is
// 1-based per the API's paging convention.
func (c *Client) ListWorkItems(ctx context.Context, projectID int64, pageOffset, pageSize int) ([]domain.WorkItem, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(pageOffset))
	q.Set("pageSize", strconv.Itoa(pageSize))

	var col collection
	path := fmt.Sprintf("/api/v3/projects/%d/work_packages", projectID)
	if err := c.get(ctx, path, q, &col); err != nil {
		return nil, err
	}
	out := make([]domain.WorkItem, 0, len(col.Embedded.Elements))
	for _, el := range col.Embedded.Elements {
		var raw rawWorkPackage
		if err := json.Unmarshal(el, &raw); err != nil {
			return nil, fmt.Errorf("tracker: decode work package: %w", err)
		}
		out = append(out, mapWorkPackage(raw))
	}
	return out, nil
}

func (c *Client) CreateWorkItem(ctx context.Context, projectID int64, subject, typeHint, description string, statusID *int64) (domain.WorkItem, error) {
	body := map[string]any{
		"subject": subject,
	}
	if description != "" {
		body["description"] = formatted{Format: "markdown", Raw: description}
	}
	links := map[string]link{}
	if typeHint != "" {
		links["type"] = link{Title: typeHint}
	}
	if statusID != nil {
		links["status"] = link{Href: fmt.Sprintf("/api/v3/statuses/%d", *statusID)}
	}
	if len(links) > 0 {
		body["_links"] = links
	}

	var raw rawWorkPackage
	path := fmt.Sprintf("/api/v3/projects/%d/work_packages", projectID)
	if err := c.send(ctx, http.MethodPost, path, body, &raw); err != nil {
		return domain.WorkItem{}, err
	}
	item := mapWorkPackage(raw)
	if item.ProjectID == 0 {
		item.ProjectID = projectID
	}
	return item, nil
}

func (c *Client) ListTimeEntries(ctx context.Context) ([]domain.TimeEntry, error) {
	var col collection
	if err := c.get(ctx, "/api/v3/time_entries", nil, &col); err != nil {
		return nil, err
	}
	out := make([]domain.TimeEntry, 0, len(col.Embedded.Elements))
	for _, el := range col.Embedded.Elements {
		var raw rawTimeEntry
		if err := json.Unmarshal(el, &raw); err != nil {
			return nil, fmt.Errorf("tracker: decode time entry: %w", err)
		}
		entry, err := mapTimeEntry(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func (c *Client) CreateTimeEntry(ctx context.Context, workItemID int64, date, startTime string, hours float64, activity, comment string) (domain.TimeEntry, error) {
	body := map[string]any{
		"spentOn": date,
		"hours":   encodeHours(hours),
		"_links": map[string]link{
			"workPackage": {Href: fmt.Sprintf("/api/v3/work_packages/%d", workItemID)},
			"activity":    {Title: activity},
		},
	}
	if startTime != "" {
		body["startTime"] = startTime
	}
	if comment != "" {
		body["comment"] = formatted{Format: "plain", Raw: comment}
	}

	var raw rawTimeEntry
	if err := c.send(ctx, http.MethodPost, "/api/v3/time_entries", body, &raw); err != nil {
		return domain.TimeEntry{}, err
	}
	return mapTimeEntry(raw)
}

func (c *Client) UpdateTimeEntry(ctx context.Context, id int64, hours float64, comment string) (domain.TimeEntry, error) {
	body := map[string]any{
		"hours": encodeHours(hours),
	}
	if comment != "" {
		body["comment"] = formatted{Format: "plain", Raw: comment}
	}

	var raw rawTimeEntry
	path := fmt.Sprintf("/api/v3/time_entries/%d", id)
	if err := c.send(ctx, http.MethodPatch, path, body, &raw); err != nil {
		return domain.TimeEntry{}, err
	}
	return mapTimeEntry(raw)
}

// get issues an authenticated GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u, err := c.buildURL(path, query)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// send issues an authenticated mutating request with a JSON body and an
// idempotency key.
func (c *Client) send(ctx context.Context, method, path string, body any, out any) error {
	u, err := c.buildURL(path, nil)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", uuid.NewString())
	return c.do(req, out)
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	if c.apiToken == "" {
		return "", errors.New("tracker: missing api token")
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

func (c *Client) do(req *http.Request, out any) error {
	auth := base64.StdEncoding.EncodeToString([]byte("apikey:" + c.apiToken))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("tracker: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func mapWorkPackage(raw rawWorkPackage) domain.WorkItem {
	item := domain.WorkItem{
		ID:      raw.ID,
		Subject: raw.Subject,
		Type:    raw.Links.Type.Title,
	}
	if raw.Description != nil {
		item.Description = raw.Description.Raw
	}
	if id, ok := idFromHref(raw.Links.Project.Href); ok {
		item.ProjectID = id
	}
	if id, ok := idFromHref(raw.Links.Status.Href); ok {
		item.StatusID = &id
	}
	return item
}

func mapTimeEntry(raw rawTimeEntry) (domain.TimeEntry, error) {
	hours, err := decodeHours(raw.Hours)
	if err != nil {
		return domain.TimeEntry{}, fmt.Errorf("tracker: time entry %d: %w", raw.ID, err)
	}
	entry := domain.TimeEntry{
		ID:       raw.ID,
		SpentOn:  raw.SpentOn,
		Hours:    hours,
		Activity: raw.Links.Activity.Title,
	}
	if raw.Comment != nil {
		entry.Comment = raw.Comment.Raw
	}
	if id, ok := idFromHref(raw.Links.WorkPackage.Href); ok {
		entry.WorkItemID = id
	}
	return entry, nil
}
