// Package calapitest provides a mock calendar backend API server for testing.
//
// The mock server implements the REST surface the client consumes, allowing
// tests to run without credentials or network access.
//
// # Supported Operations
//
//   - List Projects: GET /projects
//   - Create Project: POST /projects
//   - Update Project: PUT /projects (id in body)
//   - Delete Project: DELETE /projects/{projectId}
//   - List Events: GET /events (eventId/projectId query filtering)
//   - Create Event: POST /events
//   - Delete Event: DELETE /projects/{projectId}/events/{eventId}
//   - Members: POST /projects/{projectId}/members,
//     DELETE /projects/{projectId}/members/{userId}
//   - Tasks: GET/POST/PUT/DELETE /tasks
//   - User profiles: GET/PUT /users/{userId} (PUT upserts)
//   - Activity log: POST /activities,
//     GET /{entityType}/{entityId}/activities
//
// All endpoints require a "Bearer" Authorization header; any non-empty
// token is accepted.
//
// # Basic Usage
//
//	server := calapitest.NewServer()
//	defer server.Close()
//
//	client := api.NewClient(api.Config{
//	    BaseURL: server.URL,
//	    Tokens:  oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test"}),
//	})
//	result, err := client.GetProjects(ctx, "")
//
// # Simulating Backend Quirks
//
// Three knobs reproduce observed production behavior:
//
//	server.PropagationLag = 150 * time.Millisecond // eventual consistency on lists
//	server.LambdaEnvelope = true                   // {statusCode, body: "<json>"} responses
//	server.AckOnlyCreates = true                   // POST /projects answers {success, message}
//
// PropagationLag hides newly written items from list responses for the given
// duration, which is what the client's consistency-recovery sequence (delay,
// re-fetch, delay, re-fetch) exists to tolerate.
//
// # Test Helpers
//
//	server.AddProject(map[string]any{"id": "p1", "name": "Existing"})
//	server.AddEvent(map[string]any{"eventId": "e1", "projectId": "p1"})
//	projects := server.Projects()
//	events := server.Events()
//	server.Reset()
package calapitest
