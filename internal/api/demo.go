package api

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// demoDelay preserves the asynchronous contract for callers and tests when
// no network is involved.
const demoDelay = 100 * time.Millisecond

// demoRequest resolves a request against fixed in-memory fixtures after a
// short synthetic delay, never touching the network.
func (c *Client) demoRequest(ctx context.Context, method, path string, body any) (map[string]any, error) {
	delay := c.demoDelay
	if delay == 0 {
		delay = demoDelay
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	switch method {
	case http.MethodGet:
		return demoData(path), nil
	case http.MethodPost, http.MethodPut:
		return map[string]any{"success": true, "data": body}, nil
	case http.MethodDelete:
		return map[string]any{"success": true}, nil
	default:
		return map[string]any{}, nil
	}
}

// demoData shapes the canned GET payload by request path.
func demoData(path string) map[string]any {
	if strings.Contains(path, "/projects") {
		return map[string]any{
			"Items": []any{
				map[string]any{
					"PK":          "PROJECT#demo-1",
					"SK":          "PROJECT#demo-1",
					"GSI1PK":      "USER#demo-user",
					"GSI1SK":      "PROJECT#demo-1",
					"name":        "Personal workspace",
					"description": "Day-to-day work and personal tasks",
					"ownerId":     "demo-user",
					"color":       "#FF9900",
					"createdAt":   time.Now().Add(-2 * 24 * time.Hour).Format(time.RFC3339),
					"updatedAt":   time.Now().Add(-2 * 24 * time.Hour).Format(time.RFC3339),
				},
				map[string]any{
					"PK":          "PROJECT#demo-2",
					"SK":          "PROJECT#demo-2",
					"GSI1PK":      "USER#demo-user",
					"GSI1SK":      "PROJECT#demo-2",
					"name":        "Team project",
					"description": "Collaborative project planning",
					"ownerId":     "demo-user",
					"color":       "#146EB4",
					"createdAt":   time.Now().Add(-24 * time.Hour).Format(time.RFC3339),
					"updatedAt":   time.Now().Add(-24 * time.Hour).Format(time.RFC3339),
				},
			},
		}
	}

	if strings.Contains(path, "/events") {
		return map[string]any{
			"success": true,
			"message": "Event created successfully",
		}
	}

	return map[string]any{"events": []any{}, "count": 0}
}
