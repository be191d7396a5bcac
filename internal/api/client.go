// Package api is the remote access layer: it builds authenticated requests
// against the calendar backend, flattens the several response envelope
// shapes the backend produces, falls back to a direct HTTP call when the
// primary transport returns an empty GET result, and simulates every
// endpoint from fixtures in demo mode.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// Client holds the transports and credential source for one backend. It
// keeps no per-request state; every call is independent.
type Client struct {
	baseURL   string
	demo      bool
	demoDelay time.Duration
	tokens    oauth2.TokenSource
	primary   Transport
	direct    *http.Client
}

// Config configures a Client. Tokens is required outside demo mode;
// Primary defaults to plain HTTP against BaseURL; Direct defaults to
// http.DefaultClient.
type Config struct {
	BaseURL   string
	Demo      bool
	DemoDelay time.Duration
	Tokens    oauth2.TokenSource
	Primary   Transport
	Direct    *http.Client
}

// NewClient creates a backend API client.
func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:   cfg.BaseURL,
		demo:      cfg.Demo,
		demoDelay: cfg.DemoDelay,
		tokens:    cfg.Tokens,
		primary:   cfg.Primary,
		direct:    cfg.Direct,
	}
	if c.primary == nil {
		c.primary = &HTTPTransport{BaseURL: cfg.BaseURL, Client: cfg.Direct}
	}
	if c.direct == nil {
		c.direct = http.DefaultClient
	}
	return c
}

// token resolves the bearer credential for one request. Demo mode returns a
// fixed sentinel without contacting the identity provider.
func (c *Client) token() (string, error) {
	if c.demo {
		return "demo-token", nil
	}
	if c.tokens == nil {
		return "", fmt.Errorf("%w: no token source configured", ErrAuth)
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: no authentication token available", ErrAuth)
	}
	return tok.AccessToken, nil
}

func (c *Client) buildHeaders() (http.Header, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}
	return http.Header{
		"Authorization": {"Bearer " + tok},
		"Content-Type":  {"application/json"},
	}, nil
}

// Request performs one call against the backend and returns the flattened
// payload. GET requests whose primary result is empty (absent, or an object
// with zero keys) are retried once through the direct transport; mutating
// methods never fall back, to avoid duplicate side effects.
func (c *Client) Request(ctx context.Context, method, path string, body any) (map[string]any, error) {
	if c.demo {
		return c.demoRequest(ctx, method, path, body)
	}

	headers, err := c.buildHeaders()
	if err != nil {
		return nil, err
	}

	raw, err := c.primary.Do(ctx, method, path, headers, body)
	if err != nil {
		if method == http.MethodGet && c.baseURL != "" {
			slog.Warn("primary transport failed, falling back to direct request",
				"method", method, "path", path, "error", err)
			return c.requestDirect(ctx, method, path, body, headers)
		}
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}

	parsed := decodeEnvelope(raw)
	if len(parsed) == 0 && method == http.MethodGet && c.baseURL != "" {
		slog.Warn("primary transport returned empty result, falling back to direct request",
			"method", method, "path", path)
		return c.requestDirect(ctx, method, path, body, headers)
	}
	return parsed, nil
}

// requestDirect bypasses the primary transport and calls the backend URL
// directly with the already resolved headers.
func (c *Client) requestDirect(ctx context.Context, method, path string, body any, headers http.Header) (map[string]any, error) {
	raw, err := doHTTP(ctx, c.direct, c.baseURL, method, path, headers, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	return decodeEnvelope(raw), nil
}

// GetProjects lists projects for the current user, optionally narrowed to a
// single project id.
func (c *Client) GetProjects(ctx context.Context, projectID string) (map[string]any, error) {
	path := "/projects"
	if projectID != "" {
		path += "?" + url.Values{"projectId": {projectID}}.Encode()
	}
	return c.Request(ctx, http.MethodGet, path, nil)
}

// CreateProject creates a project.
func (c *Client) CreateProject(ctx context.Context, data map[string]any) (map[string]any, error) {
	return c.Request(ctx, http.MethodPost, "/projects", data)
}

// UpdateProject updates a project. The canonical convention here carries the
// id in the request body (PUT /projects), matching the newest backend
// routing.
func (c *Client) UpdateProject(ctx context.Context, projectID string, data map[string]any) (map[string]any, error) {
	withID := make(map[string]any, len(data)+1)
	for k, v := range data {
		withID[k] = v
	}
	withID["id"] = projectID
	return c.Request(ctx, http.MethodPut, "/projects", withID)
}

// DeleteProject deletes a project by id.
func (c *Client) DeleteProject(ctx context.Context, projectID string) (map[string]any, error) {
	return c.Request(ctx, http.MethodDelete, "/projects/"+url.PathEscape(projectID), nil)
}

// GetEvents lists events, optionally narrowed by event and/or project id.
func (c *Client) GetEvents(ctx context.Context, eventID, projectID string) (map[string]any, error) {
	params := url.Values{}
	if eventID != "" {
		params.Set("eventId", eventID)
	}
	if projectID != "" {
		params.Set("projectId", projectID)
	}
	path := "/events"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.Request(ctx, http.MethodGet, path, nil)
}

// CreateEvent creates an event.
func (c *Client) CreateEvent(ctx context.Context, data map[string]any) (map[string]any, error) {
	return c.Request(ctx, http.MethodPost, "/events", data)
}

// UpdateEvent updates an event, carrying the id in the request body.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, data map[string]any) (map[string]any, error) {
	withID := make(map[string]any, len(data)+1)
	for k, v := range data {
		withID[k] = v
	}
	withID["id"] = eventID
	return c.Request(ctx, http.MethodPut, "/events", withID)
}

// DeleteEvent deletes an event. Deletion is only routable under a project,
// so a missing projectID fails with ErrScope before any network call.
func (c *Client) DeleteEvent(ctx context.Context, eventID, projectID string) (map[string]any, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: deleting an event requires a project id", ErrScope)
	}
	path := "/projects/" + url.PathEscape(projectID) + "/events/" + url.PathEscape(eventID)
	return c.Request(ctx, http.MethodDelete, path, nil)
}

// AddProjectMember adds a member to a project.
func (c *Client) AddProjectMember(ctx context.Context, projectID string, member map[string]any) (map[string]any, error) {
	return c.Request(ctx, http.MethodPost, "/projects/"+url.PathEscape(projectID)+"/members", member)
}

// RemoveProjectMember removes a member from a project.
func (c *Client) RemoveProjectMember(ctx context.Context, projectID, userID string) (map[string]any, error) {
	path := "/projects/" + url.PathEscape(projectID) + "/members/" + url.PathEscape(userID)
	return c.Request(ctx, http.MethodDelete, path, nil)
}

// GetTasks lists tasks, optionally narrowed to a project.
func (c *Client) GetTasks(ctx context.Context, projectID string) (map[string]any, error) {
	path := "/tasks"
	if projectID != "" {
		path += "?" + url.Values{"projectId": {projectID}}.Encode()
	}
	return c.Request(ctx, http.MethodGet, path, nil)
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, data map[string]any) (map[string]any, error) {
	return c.Request(ctx, http.MethodPost, "/tasks", data)
}

// UpdateTask updates a task, carrying the id in the request body.
func (c *Client) UpdateTask(ctx context.Context, taskID string, data map[string]any) (map[string]any, error) {
	withID := make(map[string]any, len(data)+1)
	for k, v := range data {
		withID[k] = v
	}
	withID["id"] = taskID
	return c.Request(ctx, http.MethodPut, "/tasks", withID)
}

// DeleteTask deletes a task, carrying the id in the request body.
func (c *Client) DeleteTask(ctx context.Context, taskID string) (map[string]any, error) {
	return c.Request(ctx, http.MethodDelete, "/tasks", map[string]any{"taskId": taskID})
}

// GetUserProfile fetches a user profile.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (map[string]any, error) {
	return c.Request(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil)
}

// UpdateUserProfile updates a user profile.
func (c *Client) UpdateUserProfile(ctx context.Context, userID string, data map[string]any) (map[string]any, error) {
	return c.Request(ctx, http.MethodPut, "/users/"+url.PathEscape(userID), data)
}

// GetActivityLog fetches the activity log for an entity.
func (c *Client) GetActivityLog(ctx context.Context, entityType, entityID string) (map[string]any, error) {
	path := "/" + url.PathEscape(entityType) + "/" + url.PathEscape(entityID) + "/activities"
	return c.Request(ctx, http.MethodGet, path, nil)
}

// LogActivity records an activity entry.
func (c *Client) LogActivity(ctx context.Context, data map[string]any) (map[string]any, error) {
	return c.Request(ctx, http.MethodPost, "/activities", data)
}
