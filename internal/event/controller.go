// Package event owns the event collection for the currently selected
// project scope: optimistic creation, scope-checked deletion, and a
// sequence-guarded fetch that keeps stale in-flight responses from
// clobbering newer data.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"teamcal/internal/api"
	"teamcal/internal/format"
)

const defaultRecoveryDelay = 200 * time.Millisecond

// ScopeSource supplies the active project scope. The project controller
// satisfies it.
type ScopeSource interface {
	SelectedProject() *format.Project
}

// Input is the caller-supplied shape for a new event. Title, Start and End
// are required.
type Input struct {
	Title       string
	Start       string
	End         string
	AllDay      bool
	Description string
}

// Controller owns the event collection for the active scope.
type Controller struct {
	api           *api.Client
	demo          bool
	user          format.User
	scope         ScopeSource
	recoveryDelay time.Duration

	mu         sync.Mutex
	events     []format.Event
	loading    bool
	lastError  string
	submitting bool
	mutating   bool
	fetchSeq   uint64
}

// Config configures an event controller.
type Config struct {
	API           *api.Client
	Demo          bool
	User          format.User
	Scope         ScopeSource
	RecoveryDelay time.Duration
}

// NewController creates an event controller.
func NewController(cfg Config) *Controller {
	c := &Controller{
		api:           cfg.API,
		demo:          cfg.Demo,
		user:          cfg.User,
		scope:         cfg.Scope,
		recoveryDelay: cfg.RecoveryDelay,
	}
	if c.recoveryDelay == 0 {
		c.recoveryDelay = defaultRecoveryDelay
	}
	return c
}

// selectedProject resolves the current scope, tolerating a nil source.
func (c *Controller) selectedProject() *format.Project {
	if c.scope == nil {
		return nil
	}
	return c.scope.SelectedProject()
}

// FetchEvents loads events for the current (user, selected project) scope.
// Every fetch is tagged with a monotonically increasing sequence number and
// its response is applied only while it is still the newest issued fetch;
// older in-flight responses are dropped silently. Project-id filtering is
// applied client-side even when the backend already filtered. A failed fetch
// records a visible error message and leaves previously loaded data intact.
func (c *Controller) FetchEvents(ctx context.Context) error {
	c.mu.Lock()
	c.fetchSeq++
	seq := c.fetchSeq
	c.loading = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	selected := c.selectedProject()

	if c.demo {
		events := filterByProject(demoEvents(), selected)
		c.apply(seq, events)
		return nil
	}

	projectID := ""
	if selected != nil {
		projectID = selected.ID
	}

	result, err := c.api.GetEvents(ctx, "", projectID)
	if err != nil {
		c.mu.Lock()
		c.lastError = fmt.Sprintf("failed to load events: %v", err)
		c.mu.Unlock()
		return fmt.Errorf("fetch events: %w", err)
	}

	items, _ := result["events"].([]any)
	events := filterByProject(format.NormalizeEvents(items), selected)
	c.apply(seq, events)
	return nil
}

// apply installs a fetch result if its sequence number is still the latest
// issued. Completion order does not matter; only the newest fetch wins.
func (c *Controller) apply(seq uint64, events []format.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.fetchSeq {
		slog.Debug("dropping stale fetch response", "seq", seq, "latest", c.fetchSeq)
		return
	}
	c.events = events
	c.lastError = ""
}

func filterByProject(events []format.Event, selected *format.Project) []format.Event {
	if selected == nil {
		return events
	}
	filtered := make([]format.Event, 0, len(events))
	for _, e := range events {
		if e.ProjectID == selected.ID {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// CreateEvent creates an event in the active scope. Title, start and end are
// required and validated before any network call. While one creation is in
// flight further calls are rejected. Live mode inserts an optimistic
// placeholder immediately; the placeholder is superseded wholesale, never
// merged, by the consistency-recovery re-fetch.
func (c *Controller) CreateEvent(ctx context.Context, in Input) error {
	if in.Title == "" || in.Start == "" || in.End == "" {
		return fmt.Errorf("%w: event title, start and end are required", api.ErrValidation)
	}

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return fmt.Errorf("%w: an event creation is already in flight", api.ErrValidation)
	}
	c.submitting = true
	c.mutating = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mutating = false
		c.mu.Unlock()
	}()

	selected := c.selectedProject()

	if c.demo {
		created := demoEvent(in, selected)
		c.mu.Lock()
		c.events = append(c.events, created)
		c.mu.Unlock()
		return nil
	}

	optimistic := optimisticEvent(in, selected)
	c.mu.Lock()
	c.events = append(c.events, optimistic)
	c.mu.Unlock()

	body := map[string]any{
		"title":       in.Title,
		"startDate":   in.Start,
		"endDate":     in.End,
		"allDay":      in.AllDay,
		"description": in.Description,
	}
	if selected != nil {
		body["projectId"] = selected.ID
		body["projectName"] = selected.Name
		body["projectDescription"] = selected.Description
		owner := selected.OwnerID
		if owner == "" {
			owner = c.user.Username
		}
		body["ownerId"] = owner
	}

	if _, err := c.api.CreateEvent(ctx, body); err != nil {
		// Failed mutations must leave the visible collection as it was, so
		// the optimistic placeholder comes back out.
		c.removeLocally(optimistic.ID)
		c.mu.Lock()
		c.lastError = fmt.Sprintf("failed to create event: %v", err)
		c.mu.Unlock()
		return fmt.Errorf("create event: %w", err)
	}

	c.recover(ctx)
	return nil
}

// DeleteEvent removes the event by id. Demo mode removes it synchronously.
// Live deletion is only routable under a project scope: with no selected
// project it fails with api.ErrScope and the list is left unchanged.
func (c *Controller) DeleteEvent(ctx context.Context, eventID string) error {
	c.mu.Lock()
	c.mutating = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.mutating = false
		c.mu.Unlock()
	}()

	if c.demo {
		c.removeLocally(eventID)
		return nil
	}

	selected := c.selectedProject()
	if selected == nil {
		c.mu.Lock()
		c.lastError = "failed to delete event: no project selected"
		c.mu.Unlock()
		return fmt.Errorf("%w: deleting an event requires a selected project", api.ErrScope)
	}

	if _, err := c.api.DeleteEvent(ctx, eventID, selected.ID); err != nil {
		c.mu.Lock()
		c.lastError = fmt.Sprintf("failed to delete event: %v", err)
		c.mu.Unlock()
		return fmt.Errorf("delete event: %w", err)
	}

	c.removeLocally(eventID)
	c.recover(ctx)
	return nil
}

func (c *Controller) removeLocally(eventID string) {
	c.mu.Lock()
	kept := c.events[:0]
	for _, e := range c.events {
		if e.ID != eventID {
			kept = append(kept, e)
		}
	}
	c.events = kept
	c.mu.Unlock()
}

// Invalidate drops the current collection and reloads it for the new scope.
// Wired as the project controller's selection listener.
func (c *Controller) Invalidate(ctx context.Context) {
	if err := c.FetchEvents(ctx); err != nil {
		slog.Warn("refetch after scope change failed", "error", err)
	}
}

// Events returns a copy of the current collection.
func (c *Controller) Events() []format.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]format.Event, len(c.events))
	copy(out, c.events)
	return out
}

// LastError returns the visible error message from the most recent failed
// operation, or "" when the last operation succeeded.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// IsLoading reports whether a fetch cycle is in flight.
func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// IsSubmitting reports whether an event creation is in flight.
func (c *Controller) IsSubmitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// IsMutating reports whether any mutation is in flight. Advisory flag, not a
// lock.
func (c *Controller) IsMutating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutating
}

// recover runs the consistency-recovery sequence after a mutation: wait,
// re-fetch, wait, re-fetch. Failures are logged, not surfaced - the mutation
// itself already succeeded.
func (c *Controller) recover(ctx context.Context) {
	for i := 0; i < 2; i++ {
		select {
		case <-time.After(c.recoveryDelay):
		case <-ctx.Done():
			return
		}
		if err := c.FetchEvents(ctx); err != nil {
			slog.Warn("refetch after mutation failed", "error", err)
		}
	}
}

// optimisticEvent builds the locally tagged placeholder inserted before the
// create call resolves.
func optimisticEvent(in Input, selected *format.Project) format.Event {
	e := format.Event{
		ID:          format.OptimisticIDPrefix + uuid.NewString(),
		Title:       in.Title,
		Start:       in.Start,
		End:         in.End,
		AllDay:      in.AllDay,
		Color:       "#146EB4",
		Description: in.Description,
	}
	if selected != nil {
		e.ProjectID = selected.ID
		e.ProjectName = selected.Name
	}
	return e
}
