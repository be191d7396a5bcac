// Package calapitest provides a mock calendar backend API server for testing.
// It implements the projects/events/tasks REST surface consumed by the client.
package calapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// record wraps a stored item with its visibility window, used to simulate
// secondary-index propagation lag.
type record struct {
	data      map[string]any
	visibleAt time.Time
}

// Server is a mock calendar backend API server for testing.
type Server struct {
	*httptest.Server
	mu         sync.RWMutex
	projects   map[string]*record // projectID -> project
	events     map[string]*record // eventID -> event
	tasks      map[string]*record // taskID -> task
	users      map[string]*record // userID -> profile
	activities []map[string]any
	nextID     int

	// PropagationLag, when non-zero, hides newly written items from list
	// responses for the given duration, simulating an eventually consistent
	// store. Reads by id are always consistent.
	PropagationLag time.Duration

	// LambdaEnvelope, when true, wraps every response in a Lambda proxy
	// envelope {statusCode, body: "<json>"} instead of answering with the
	// bare object.
	LambdaEnvelope bool

	// AckOnlyCreates, when true, makes POST /projects answer with a bare
	// success acknowledgment instead of echoing the created project,
	// matching the older backend behavior.
	AckOnlyCreates bool
}

// NewServer creates a new mock backend API server.
func NewServer() *Server {
	s := &Server{
		projects: make(map[string]*record),
		events:   make(map[string]*record),
		tasks:    make(map[string]*record),
		users:    make(map[string]*record),
		nextID:   1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)

	s.Server = httptest.NewServer(mux)
	return s
}

// handleRequest routes all requests.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "Bearer ") {
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}

	path := strings.Trim(r.URL.Path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "projects":
		s.handleProjects(w, r)
	case len(parts) == 2 && parts[0] == "projects":
		s.handleProject(w, r, parts[1])
	case len(parts) == 4 && parts[0] == "projects" && parts[2] == "events":
		s.handleProjectEvent(w, r, parts[1], parts[3])
	case len(parts) >= 3 && parts[0] == "projects" && parts[2] == "members":
		s.handleMembers(w, r, parts[1:])
	case path == "events":
		s.handleEvents(w, r)
	case path == "tasks":
		s.handleTasks(w, r)
	case len(parts) == 2 && parts[0] == "users":
		s.handleUser(w, r, parts[1])
	case path == "activities":
		s.handleActivities(w, r)
	case len(parts) == 3 && parts[2] == "activities":
		s.handleActivityLog(w, r, parts[0], parts[1])
	default:
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "Not found"})
	}
}

// handleProjects handles GET/POST/PUT /projects.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		items := s.visible(s.projects)
		s.mu.RUnlock()
		s.writeJSON(w, http.StatusOK, map[string]any{"projects": items, "count": len(items)})

	case http.MethodPost:
		body := decodeJSONBody(r)
		name, _ := body["name"].(string)
		if name == "" {
			s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Project name is required"})
			return
		}

		s.mu.Lock()
		id, _ := body["id"].(string)
		if id == "" {
			id = s.generateID("project")
		}
		body["id"] = id
		now := time.Now().UTC().Format(time.RFC3339)
		body["createdAt"] = now
		body["updatedAt"] = now
		s.projects[id] = s.store(body)
		s.mu.Unlock()

		if s.AckOnlyCreates {
			s.writeJSON(w, http.StatusCreated, map[string]any{
				"success": true,
				"message": "Project created successfully",
			})
			return
		}
		s.writeJSON(w, http.StatusCreated, map[string]any{"project": body})

	case http.MethodPut:
		body := decodeJSONBody(r)
		id, _ := body["id"].(string)

		s.mu.Lock()
		rec, ok := s.projects[id]
		if ok {
			for k, v := range body {
				rec.data[k] = v
			}
			rec.data["updatedAt"] = time.Now().UTC().Format(time.RFC3339)
		}
		s.mu.Unlock()

		if !ok {
			s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "Project not found"})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"project": rec.data})

	default:
		s.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
	}
}

// handleProject handles DELETE/GET /projects/{id}.
func (s *Server) handleProject(w http.ResponseWriter, r *http.Request, projectID string) {
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		rec, ok := s.projects[projectID]
		s.mu.RUnlock()
		if !ok {
			s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "Project not found"})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"project": rec.data})

	case http.MethodDelete:
		s.mu.Lock()
		_, ok := s.projects[projectID]
		delete(s.projects, projectID)
		for id, rec := range s.events {
			if pid, _ := rec.data["projectId"].(string); pid == projectID {
				delete(s.events, id)
			}
		}
		s.mu.Unlock()

		if !ok {
			s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "Project not found"})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		s.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
	}
}

// handleEvents handles GET/POST/PUT /events with optional eventId/projectId
// query filtering.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		eventID := r.URL.Query().Get("eventId")
		projectID := r.URL.Query().Get("projectId")

		s.mu.RLock()
		var items []map[string]any
		if eventID != "" {
			if rec, ok := s.events[eventID]; ok {
				items = append(items, rec.data)
			}
		} else {
			for _, item := range s.visible(s.events) {
				if projectID != "" {
					if pid, _ := item["projectId"].(string); pid != projectID {
						continue
					}
				}
				items = append(items, item)
			}
		}
		s.mu.RUnlock()

		if items == nil {
			items = []map[string]any{}
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"events": items, "count": len(items)})

	case http.MethodPost, http.MethodPut:
		body := decodeJSONBody(r)

		s.mu.Lock()
		id, _ := body["eventId"].(string)
		if id == "" {
			id, _ = body["id"].(string)
		}
		if id == "" {
			id = s.generateID("event")
		}
		body["eventId"] = id
		s.events[id] = s.store(body)
		s.mu.Unlock()

		s.writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"message": "Event created successfully",
			"event":   body,
		})

	default:
		s.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
	}
}

// handleProjectEvent handles DELETE /projects/{projectId}/events/{eventId}.
func (s *Server) handleProjectEvent(w http.ResponseWriter, r *http.Request, projectID, eventID string) {
	if r.Method != http.MethodDelete {
		s.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
		return
	}

	s.mu.Lock()
	rec, ok := s.events[eventID]
	if ok {
		if pid, _ := rec.data["projectId"].(string); pid != projectID {
			ok = false
		}
	}
	if ok {
		delete(s.events, eventID)
	}
	s.mu.Unlock()

	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "Event not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Event deleted successfully"})
}

// handleMembers handles POST /projects/{id}/members and
// DELETE /projects/{id}/members/{userId}.
func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request, parts []string) {
	projectID := parts[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.projects[projectID]
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "Project not found"})
		return
	}

	members, _ := rec.data["members"].([]any)

	switch {
	case r.Method == http.MethodPost && len(parts) == 2:
		member := decodeJSONBody(r)
		rec.data["members"] = append(members, member)
		s.writeJSON(w, http.StatusOK, map[string]any{"success": true})

	case r.Method == http.MethodDelete && len(parts) == 3:
		userID := parts[2]
		kept := make([]any, 0, len(members))
		for _, m := range members {
			mm, _ := m.(map[string]any)
			if uid, _ := mm["userId"].(string); uid != userID {
				kept = append(kept, m)
			}
		}
		rec.data["members"] = kept
		s.writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		s.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
	}
}

// handleTasks handles GET/POST/PUT/DELETE /tasks.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		projectID := r.URL.Query().Get("projectId")

		s.mu.RLock()
		var items []map[string]any
		for _, item := range s.visible(s.tasks) {
			if projectID != "" {
				if pid, _ := item["projectId"].(string); pid != projectID {
					continue
				}
			}
			items = append(items, item)
		}
		s.mu.RUnlock()

		if items == nil {
			items = []map[string]any{}
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"tasks": items, "count": len(items)})

	case http.MethodPost, http.MethodPut:
		body := decodeJSONBody(r)

		s.mu.Lock()
		id, _ := body["id"].(string)
		if id == "" {
			id = s.generateID("task")
		}
		body["id"] = id
		s.tasks[id] = s.store(body)
		s.mu.Unlock()

		s.writeJSON(w, http.StatusCreated, map[string]any{"success": true, "task": body})

	case http.MethodDelete:
		body := decodeJSONBody(r)
		id, _ := body["taskId"].(string)

		s.mu.Lock()
		_, ok := s.tasks[id]
		delete(s.tasks, id)
		s.mu.Unlock()

		if !ok {
			s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "Task not found"})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		s.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
	}
}

// handleUser handles GET/PUT /users/{userId}. PUT upserts the profile.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		s.mu.RLock()
		rec, ok := s.users[userID]
		s.mu.RUnlock()
		if !ok {
			s.writeJSON(w, http.StatusNotFound, map[string]any{"error": "User not found"})
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"user": rec.data})

	case http.MethodPut:
		body := decodeJSONBody(r)

		s.mu.Lock()
		rec, ok := s.users[userID]
		if ok {
			for k, v := range body {
				rec.data[k] = v
			}
		} else {
			body["userId"] = userID
			rec = &record{data: body, visibleAt: time.Now()}
			s.users[userID] = rec
		}
		rec.data["updatedAt"] = time.Now().UTC().Format(time.RFC3339)
		s.mu.Unlock()

		s.writeJSON(w, http.StatusOK, map[string]any{"user": rec.data})

	default:
		s.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
	}
}

// handleActivities handles POST /activities.
func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
		return
	}

	body := decodeJSONBody(r)
	body["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	s.mu.Lock()
	s.activities = append(s.activities, body)
	s.mu.Unlock()

	s.writeJSON(w, http.StatusCreated, map[string]any{"success": true, "activity": body})
}

// handleActivityLog handles GET /{entityType}/{entityId}/activities.
func (s *Server) handleActivityLog(w http.ResponseWriter, r *http.Request, entityType, entityID string) {
	if r.Method != http.MethodGet {
		s.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
		return
	}

	s.mu.RLock()
	items := make([]map[string]any, 0, len(s.activities))
	for _, a := range s.activities {
		et, _ := a["entityType"].(string)
		eid, _ := a["entityId"].(string)
		if et == entityType && eid == entityID {
			items = append(items, a)
		}
	}
	s.mu.RUnlock()

	s.writeJSON(w, http.StatusOK, map[string]any{"activities": items, "count": len(items)})
}

// store wraps an item as a record whose list visibility starts after the
// configured propagation lag.
func (s *Server) store(data map[string]any) *record {
	return &record{data: data, visibleAt: time.Now().Add(s.PropagationLag)}
}

// visible returns the items whose propagation window has elapsed.
func (s *Server) visible(m map[string]*record) []map[string]any {
	now := time.Now()
	items := make([]map[string]any, 0, len(m))
	for _, rec := range m {
		if now.Before(rec.visibleAt) {
			continue
		}
		items = append(items, rec.data)
	}
	return items
}

func (s *Server) generateID(prefix string) string {
	id := fmt.Sprintf("%s-%d", prefix, s.nextID)
	s.nextID++
	return id
}

// writeJSON writes the payload, optionally wrapped in a Lambda proxy
// envelope.
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")

	if s.LambdaEnvelope {
		inner, _ := json.Marshal(payload)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"statusCode": status,
			"body":       string(inner),
		})
		return
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func decodeJSONBody(r *http.Request) map[string]any {
	body := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body
}

// AddProject pre-populates a project for test setup, bypassing propagation
// lag.
func (s *Server) AddProject(p map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := p["id"].(string)
	if id == "" {
		id = s.generateID("project")
		p["id"] = id
	}
	s.projects[id] = &record{data: p, visibleAt: time.Now()}
}

// AddEvent pre-populates an event for test setup, bypassing propagation lag.
func (s *Server) AddEvent(e map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := e["eventId"].(string)
	if id == "" {
		id = s.generateID("event")
		e["eventId"] = id
	}
	s.events[id] = &record{data: e, visibleAt: time.Now()}
}

// Projects returns all stored projects regardless of propagation lag.
func (s *Server) Projects() []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]map[string]any, 0, len(s.projects))
	for _, rec := range s.projects {
		items = append(items, rec.data)
	}
	return items
}

// Events returns all stored events regardless of propagation lag.
func (s *Server) Events() []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]map[string]any, 0, len(s.events))
	for _, rec := range s.events {
		items = append(items, rec.data)
	}
	return items
}

// Reset clears all stored data between tests.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = make(map[string]*record)
	s.events = make(map[string]*record)
	s.tasks = make(map[string]*record)
	s.users = make(map[string]*record)
	s.activities = nil
	s.nextID = 1
}
