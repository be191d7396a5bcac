package calapitest

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"teamcal/internal/api"
)

func testClient(s *Server) *api.Client {
	return api.NewClient(api.Config{
		BaseURL: s.URL,
		Tokens:  oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
	})
}

func TestMockServer_RequiresBearer(t *testing.T) {
	server := NewServer()
	defer server.Close()

	resp, err := http.Get(server.URL + "/projects")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without a bearer token", resp.StatusCode)
	}
}

func TestMockServer_CreateAndListProjects(t *testing.T) {
	server := NewServer()
	defer server.Close()
	client := testClient(server)
	ctx := context.Background()

	result, err := client.CreateProject(ctx, map[string]any{"name": "Roadmap", "color": "#FF9900"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	project, _ := result["project"].(map[string]any)
	if project == nil {
		t.Fatalf("expected created project echoed back, got %v", result)
	}
	if id, _ := project["id"].(string); id == "" {
		t.Error("expected generated project id")
	}

	listed, err := client.GetProjects(ctx, "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	items, _ := listed["projects"].([]any)
	if len(items) != 1 {
		t.Errorf("expected 1 project in list, got %d", len(items))
	}
}

func TestMockServer_CreateProjectRequiresName(t *testing.T) {
	server := NewServer()
	defer server.Close()
	client := testClient(server)

	result, err := client.CreateProject(context.Background(), map[string]any{"color": "#FF9900"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if msg, _ := result["error"].(string); msg == "" {
		t.Errorf("expected validation error for missing name, got %v", result)
	}
	if len(server.Projects()) != 0 {
		t.Error("invalid project must not be stored")
	}
}

func TestMockServer_AckOnlyCreates(t *testing.T) {
	server := NewServer()
	defer server.Close()
	server.AckOnlyCreates = true
	client := testClient(server)

	result, err := client.CreateProject(context.Background(), map[string]any{"name": "Roadmap"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, echoed := result["project"]; echoed {
		t.Error("ack-only mode must not echo the created project")
	}
	if ok, _ := result["success"].(bool); !ok {
		t.Errorf("expected success acknowledgment, got %v", result)
	}
	if len(server.Projects()) != 1 {
		t.Error("project must still be stored behind the acknowledgment")
	}
}

func TestMockServer_PropagationLag(t *testing.T) {
	server := NewServer()
	defer server.Close()
	server.PropagationLag = 80 * time.Millisecond
	client := testClient(server)
	ctx := context.Background()

	if _, err := client.CreateProject(ctx, map[string]any{"name": "Lagged"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	listed, err := client.GetProjects(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if items, _ := listed["projects"].([]any); len(items) != 0 {
		t.Errorf("fresh write must be hidden from lists during the lag window, got %d items", len(items))
	}

	time.Sleep(100 * time.Millisecond)

	listed, err = client.GetProjects(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if items, _ := listed["projects"].([]any); len(items) != 1 {
		t.Errorf("write must surface after the lag elapses, got %d items", len(items))
	}
}

func TestMockServer_LambdaEnvelope(t *testing.T) {
	server := NewServer()
	defer server.Close()
	server.LambdaEnvelope = true
	server.AddProject(map[string]any{"id": "p1", "name": "Wrapped"})

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/projects", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var envelope map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, ok := envelope["statusCode"].(float64); !ok {
		t.Fatalf("expected proxy envelope with statusCode, got %v", envelope)
	}
	inner, ok := envelope["body"].(string)
	if !ok {
		t.Fatalf("expected string-serialized body, got %T", envelope["body"])
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(inner), &payload); err != nil {
		t.Fatalf("inner body is not valid JSON: %v", err)
	}
	if items, _ := payload["projects"].([]any); len(items) != 1 {
		t.Errorf("expected 1 project inside the envelope, got %v", payload)
	}
}

func TestMockServer_DeleteProjectCascades(t *testing.T) {
	server := NewServer()
	defer server.Close()
	server.AddProject(map[string]any{"id": "p1", "name": "Doomed"})
	server.AddEvent(map[string]any{"eventId": "e1", "title": "Scoped", "projectId": "p1"})
	server.AddEvent(map[string]any{"eventId": "e2", "title": "Other", "projectId": "p2"})
	client := testClient(server)

	if _, err := client.DeleteProject(context.Background(), "p1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if len(server.Projects()) != 0 {
		t.Error("project must be removed")
	}
	events := server.Events()
	if len(events) != 1 {
		t.Fatalf("expected cascade to remove scoped events only, got %d", len(events))
	}
	if id, _ := events[0]["eventId"].(string); id != "e2" {
		t.Errorf("wrong surviving event: %v", events[0])
	}
}

func TestMockServer_EventQueryFilters(t *testing.T) {
	server := NewServer()
	defer server.Close()
	server.AddEvent(map[string]any{"eventId": "e1", "title": "One", "projectId": "p1"})
	server.AddEvent(map[string]any{"eventId": "e2", "title": "Two", "projectId": "p2"})
	client := testClient(server)
	ctx := context.Background()

	result, err := client.GetEvents(ctx, "", "p1")
	if err != nil {
		t.Fatal(err)
	}
	if items, _ := result["events"].([]any); len(items) != 1 {
		t.Errorf("projectId filter: got %d events, want 1", len(items))
	}

	result, err = client.GetEvents(ctx, "e2", "")
	if err != nil {
		t.Fatal(err)
	}
	items, _ := result["events"].([]any)
	if len(items) != 1 {
		t.Fatalf("eventId filter: got %d events, want 1", len(items))
	}
	event, _ := items[0].(map[string]any)
	if title, _ := event["title"].(string); title != "Two" {
		t.Errorf("eventId filter returned wrong event: %v", event)
	}
}

func TestMockServer_DeleteEventRequiresMatchingProject(t *testing.T) {
	server := NewServer()
	defer server.Close()
	server.AddEvent(map[string]any{"eventId": "e1", "title": "Scoped", "projectId": "p1"})
	client := testClient(server)
	ctx := context.Background()

	// Wrong project scope: the event stays.
	result, err := client.DeleteEvent(ctx, "e1", "p2")
	if err != nil {
		t.Fatal(err)
	}
	if msg, _ := result["error"].(string); msg == "" {
		t.Errorf("expected not-found for mismatched project scope, got %v", result)
	}
	if len(server.Events()) != 1 {
		t.Error("mismatched delete must not remove the event")
	}

	if _, err := client.DeleteEvent(ctx, "e1", "p1"); err != nil {
		t.Fatal(err)
	}
	if len(server.Events()) != 0 {
		t.Error("matching delete must remove the event")
	}
}

func TestMockServer_Members(t *testing.T) {
	server := NewServer()
	defer server.Close()
	server.AddProject(map[string]any{"id": "p1", "name": "Shared", "members": []any{
		map[string]any{"userId": "alice", "role": "OWNER"},
	}})
	client := testClient(server)
	ctx := context.Background()

	_, err := client.AddProjectMember(ctx, "p1", map[string]any{"userId": "bob", "role": "MEMBER"})
	if err != nil {
		t.Fatal(err)
	}
	members, _ := server.Projects()[0]["members"].([]any)
	if len(members) != 2 {
		t.Fatalf("expected 2 members after add, got %d", len(members))
	}

	if _, err := client.RemoveProjectMember(ctx, "p1", "alice"); err != nil {
		t.Fatal(err)
	}
	members, _ = server.Projects()[0]["members"].([]any)
	if len(members) != 1 {
		t.Fatalf("expected 1 member after remove, got %d", len(members))
	}
	m, _ := members[0].(map[string]any)
	if uid, _ := m["userId"].(string); uid != "bob" {
		t.Errorf("wrong surviving member: %v", m)
	}
}

func TestMockServer_Tasks(t *testing.T) {
	server := NewServer()
	defer server.Close()
	client := testClient(server)
	ctx := context.Background()

	result, err := client.CreateTask(ctx, map[string]any{"title": "Write docs", "projectId": "p1"})
	if err != nil {
		t.Fatal(err)
	}
	task, _ := result["task"].(map[string]any)
	id, _ := task["id"].(string)
	if id == "" {
		t.Fatalf("expected generated task id, got %v", result)
	}

	listed, err := client.GetTasks(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if items, _ := listed["tasks"].([]any); len(items) != 1 {
		t.Errorf("expected 1 task for p1, got %d", len(items))
	}

	result, err = client.UpdateTask(ctx, id, map[string]any{"title": "Write better docs"})
	if err != nil {
		t.Fatal(err)
	}
	task, _ = result["task"].(map[string]any)
	if title, _ := task["title"].(string); title != "Write better docs" {
		t.Errorf("update not applied: %v", task)
	}

	if _, err := client.DeleteTask(ctx, id); err != nil {
		t.Fatal(err)
	}
	listed, err = client.GetTasks(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if items, _ := listed["tasks"].([]any); len(items) != 0 {
		t.Errorf("expected no tasks after delete, got %d", len(items))
	}
}

func TestMockServer_UserProfiles(t *testing.T) {
	server := NewServer()
	defer server.Close()
	client := testClient(server)
	ctx := context.Background()

	result, err := client.GetUserProfile(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if msg, _ := result["error"].(string); msg == "" {
		t.Errorf("expected not-found for unknown profile, got %v", result)
	}

	// PUT upserts the profile.
	result, err = client.UpdateUserProfile(ctx, "alice", map[string]any{
		"displayName": "Alice",
		"timezone":    "America/Los_Angeles",
	})
	if err != nil {
		t.Fatal(err)
	}
	profile, _ := result["user"].(map[string]any)
	if name, _ := profile["displayName"].(string); name != "Alice" {
		t.Fatalf("unexpected upserted profile: %v", result)
	}

	result, err = client.GetUserProfile(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	profile, _ = result["user"].(map[string]any)
	if tz, _ := profile["timezone"].(string); tz != "America/Los_Angeles" {
		t.Errorf("stored profile missing fields: %v", profile)
	}

	// A second PUT merges into the existing profile.
	if _, err := client.UpdateUserProfile(ctx, "alice", map[string]any{"timezone": "UTC"}); err != nil {
		t.Fatal(err)
	}
	result, err = client.GetUserProfile(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	profile, _ = result["user"].(map[string]any)
	if tz, _ := profile["timezone"].(string); tz != "UTC" {
		t.Errorf("merge not applied: %v", profile)
	}
	if name, _ := profile["displayName"].(string); name != "Alice" {
		t.Errorf("merge must keep untouched fields: %v", profile)
	}
}

func TestMockServer_ActivityLog(t *testing.T) {
	server := NewServer()
	defer server.Close()
	client := testClient(server)
	ctx := context.Background()

	entries := []map[string]any{
		{"entityType": "projects", "entityId": "p1", "action": "created", "userId": "alice"},
		{"entityType": "projects", "entityId": "p1", "action": "renamed", "userId": "alice"},
		{"entityType": "projects", "entityId": "p2", "action": "created", "userId": "bob"},
	}
	for _, e := range entries {
		result, err := client.LogActivity(ctx, e)
		if err != nil {
			t.Fatal(err)
		}
		if ok, _ := result["success"].(bool); !ok {
			t.Fatalf("expected logged activity acknowledged, got %v", result)
		}
	}

	result, err := client.GetActivityLog(ctx, "projects", "p1")
	if err != nil {
		t.Fatal(err)
	}
	items, _ := result["activities"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 activities for p1, got %d", len(items))
	}
	first, _ := items[0].(map[string]any)
	if ts, _ := first["timestamp"].(string); ts == "" {
		t.Error("logged activity must carry a server-assigned timestamp")
	}

	result, err = client.GetActivityLog(ctx, "projects", "p3")
	if err != nil {
		t.Fatal(err)
	}
	if items, _ := result["activities"].([]any); len(items) != 0 {
		t.Errorf("expected no activities for unknown entity, got %d", len(items))
	}
}

func TestMockServer_Reset(t *testing.T) {
	server := NewServer()
	defer server.Close()
	server.AddProject(map[string]any{"id": "p1", "name": "Stale"})
	server.AddEvent(map[string]any{"eventId": "e1", "title": "Stale", "projectId": "p1"})

	server.Reset()

	if len(server.Projects()) != 0 || len(server.Events()) != 0 {
		t.Error("Reset must clear all stored data")
	}
}
