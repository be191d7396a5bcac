// Package project owns the project collection and the current project
// selection. All mutation of that state flows through the controller's
// operations; after every live mutation a consistency-recovery re-fetch
// reconciles local state with the eventually consistent backend.
package project

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

// Recovery delays compensate for secondary-index propagation lag on the
// backend. This is a probabilistic convergence aid, not a guarantee: a
// re-fetch can still race replication and miss a recent write.
const (
	defaultRecoveryDelay = 200 * time.Millisecond
	defaultUpdateDelay   = 150 * time.Millisecond
)

// Controller owns the project collection and selection pointer.
type Controller struct {
	api           *api.Client
	demo          bool
	user          format.User
	recoveryDelay time.Duration
	updateDelay   time.Duration

	mu          sync.Mutex
	projects    []format.Project
	selected    *format.Project
	loading     bool
	mutating    bool
	onSelection func(*format.Project)
}

// Config configures a project controller. RecoveryDelay and UpdateDelay
// default to the observed backend propagation windows and exist mainly so
// tests can shrink them.
type Config struct {
	API           *api.Client
	Demo          bool
	User          format.User
	RecoveryDelay time.Duration
	UpdateDelay   time.Duration
}

// NewController creates a project controller.
func NewController(cfg Config) *Controller {
	c := &Controller{
		api:           cfg.API,
		demo:          cfg.Demo,
		user:          cfg.User,
		recoveryDelay: cfg.RecoveryDelay,
		updateDelay:   cfg.UpdateDelay,
	}
	if c.recoveryDelay == 0 {
		c.recoveryDelay = defaultRecoveryDelay
	}
	if c.updateDelay == 0 {
		c.updateDelay = defaultUpdateDelay
	}
	return c
}

// SetSelectionListener registers a hook invoked whenever the selected
// project changes (including to nil). The event controller uses it to
// invalidate its scope.
func (c *Controller) SetSelectionListener(fn func(*format.Project)) {
	c.mu.Lock()
	c.onSelection = fn
	c.mu.Unlock()
}

// FetchProjects loads all projects scoped to the current user and replaces
// the local collection wholesale; partial merges never happen. Concurrent
// calls are not de-duplicated - the last completed call wins. A fetch
// failure leaves the previously loaded collection in place.
func (c *Controller) FetchProjects(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	if c.demo {
		projects := demoProjects()
		c.mu.Lock()
		c.projects = projects
		c.mu.Unlock()
		return nil
	}

	result, err := c.api.GetProjects(ctx, "")
	if err != nil {
		return fmt.Errorf("fetch projects: %w", err)
	}

	items, ok := result["projects"].([]any)
	if !ok {
		// Some routes answer in the raw storage shape.
		items, _ = result["Items"].([]any)
	}
	projects := format.NormalizeProjects(items, c.user)

	c.mu.Lock()
	c.projects = projects
	c.mu.Unlock()
	return nil
}

// CreateProject creates a project. The name is required; validation happens
// before any network call. Live mode delegates to the backend and then runs
// consistency recovery before the operation is considered complete. The
// returned record is the backend's created project when it sends one, or a
// locally assembled fallback when the backend only acknowledges success.
func (c *Controller) CreateProject(ctx context.Context, data map[string]any) (format.Project, error) {
	name, _ := data["name"].(string)
	if name == "" {
		return format.Project{}, fmt.Errorf("%w: project name is required", api.ErrValidation)
	}

	c.setMutating(true)
	defer c.setMutating(false)

	if c.demo {
		created := demoProject(data, c.user)
		c.mu.Lock()
		c.projects = append(c.projects, created)
		c.mu.Unlock()
		return created, nil
	}

	result, err := c.api.CreateProject(ctx, data)
	if err != nil {
		return format.Project{}, fmt.Errorf("create project: %w", err)
	}

	created, err := resolveCreated(result, data, c.user)
	if err != nil {
		return format.Project{}, err
	}

	c.recover(ctx)
	return created, nil
}

// resolveCreated handles the three response shapes the create endpoint has
// produced over time: a full project record, a bare success message, or a
// success flag. The latter two yield a locally assembled fallback record.
func resolveCreated(result map[string]any, data map[string]any, user format.User) (format.Project, error) {
	if praw, ok := result["project"].(map[string]any); ok {
		return format.NormalizeProject(format.Raw(praw), user), nil
	}
	_, hasMessage := result["message"]
	success, _ := result["success"].(bool)
	if hasMessage || success {
		return fallbackProject(data, user), nil
	}
	return format.Project{}, fmt.Errorf("unexpected create project response shape: %v", result)
}

// UpdateProject merges the patch into the record identified by id. A
// transport error surfaces to the caller and leaves local state unchanged.
func (c *Controller) UpdateProject(ctx context.Context, projectID string, patch map[string]any) error {
	c.setMutating(true)
	defer c.setMutating(false)

	if c.demo {
		c.mu.Lock()
		for i := range c.projects {
			if c.projects[i].ID == projectID {
				applyPatch(&c.projects[i], patch)
			}
		}
		c.mu.Unlock()
		return nil
	}

	if _, err := c.api.UpdateProject(ctx, projectID, patch); err != nil {
		return fmt.Errorf("update project: %w", err)
	}

	c.sleep(ctx, c.updateDelay)
	if err := c.FetchProjects(ctx); err != nil {
		slog.Warn("refetch after project update failed", "error", err)
	}
	return nil
}

// DeleteProject removes the project. If it was selected, the selection is
// cleared so no event scope keeps pointing at a dead project.
func (c *Controller) DeleteProject(ctx context.Context, projectID string) error {
	c.setMutating(true)
	defer c.setMutating(false)

	if c.demo {
		c.removeLocally(projectID)
		return nil
	}

	if _, err := c.api.DeleteProject(ctx, projectID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	c.removeLocally(projectID)
	c.recover(ctx)
	return nil
}

func (c *Controller) removeLocally(projectID string) {
	c.mu.Lock()
	kept := c.projects[:0]
	for _, p := range c.projects {
		if p.ID != projectID {
			kept = append(kept, p)
		}
	}
	c.projects = kept

	var notify func(*format.Project)
	if c.selected != nil && c.selected.ID == projectID {
		c.selected = nil
		notify = c.onSelection
	}
	c.mu.Unlock()

	if notify != nil {
		notify(nil)
	}
}

// AddMember adds a member to a project and refreshes the collection.
func (c *Controller) AddMember(ctx context.Context, projectID, userID string, role format.Role) error {
	c.setMutating(true)
	defer c.setMutating(false)

	if role == "" {
		role = format.RoleMember
	}
	member := map[string]any{
		"userId":   userID,
		"role":     string(role),
		"joinedAt": time.Now().UTC().Format(time.RFC3339),
	}

	if c.demo {
		c.mu.Lock()
		for i := range c.projects {
			if c.projects[i].ID == projectID {
				c.projects[i].Members = append(c.projects[i].Members,
					format.Member{ID: userID, Name: userID, Role: role})
			}
		}
		c.mu.Unlock()
		return nil
	}

	if _, err := c.api.AddProjectMember(ctx, projectID, member); err != nil {
		return fmt.Errorf("add project member: %w", err)
	}

	c.sleep(ctx, c.updateDelay)
	if err := c.FetchProjects(ctx); err != nil {
		slog.Warn("refetch after member add failed", "error", err)
	}
	return nil
}

// RemoveMember removes a member from a project and refreshes the collection.
func (c *Controller) RemoveMember(ctx context.Context, projectID, userID string) error {
	c.setMutating(true)
	defer c.setMutating(false)

	if c.demo {
		c.mu.Lock()
		for i := range c.projects {
			if c.projects[i].ID != projectID {
				continue
			}
			kept := c.projects[i].Members[:0]
			for _, m := range c.projects[i].Members {
				if m.ID != userID {
					kept = append(kept, m)
				}
			}
			c.projects[i].Members = kept
		}
		c.mu.Unlock()
		return nil
	}

	if _, err := c.api.RemoveProjectMember(ctx, projectID, userID); err != nil {
		return fmt.Errorf("remove project member: %w", err)
	}

	c.sleep(ctx, c.updateDelay)
	if err := c.FetchProjects(ctx); err != nil {
		slog.Warn("refetch after member removal failed", "error", err)
	}
	return nil
}

// SelectProject points the session at a project. Pure local mutation.
func (c *Controller) SelectProject(p format.Project) {
	c.mu.Lock()
	selected := p
	c.selected = &selected
	notify := c.onSelection
	c.mu.Unlock()

	if notify != nil {
		notify(&selected)
	}
}

// ClearSelectedProject clears the selection. Calling it when nothing is
// selected is a no-op.
func (c *Controller) ClearSelectedProject() {
	c.mu.Lock()
	already := c.selected == nil
	c.selected = nil
	notify := c.onSelection
	c.mu.Unlock()

	if !already && notify != nil {
		notify(nil)
	}
}

// SelectedProject returns a copy of the selected project, or nil.
func (c *Controller) SelectedProject() *format.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return nil
	}
	selected := *c.selected
	return &selected
}

// Projects returns a copy of the current collection.
func (c *Controller) Projects() []format.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]format.Project, len(c.projects))
	copy(out, c.projects)
	return out
}

// IsMutating reports whether a mutation is in flight. Advisory only: the
// presentation layer uses it to block redundant submissions, it is not a
// lock.
func (c *Controller) IsMutating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutating
}

// IsLoading reports whether a fetch is in flight.
func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Controller) setMutating(v bool) {
	c.mu.Lock()
	c.mutating = v
	c.mu.Unlock()
}

// recover runs the consistency-recovery sequence: wait, re-fetch, wait,
// re-fetch. Refetch failures are logged, not surfaced - the mutation itself
// already succeeded.
func (c *Controller) recover(ctx context.Context) {
	for i := 0; i < 2; i++ {
		c.sleep(ctx, c.recoveryDelay)
		if err := c.FetchProjects(ctx); err != nil {
			slog.Warn("refetch after mutation failed", "error", err)
		}
	}
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// applyPatch merges the supported patch keys into a project record.
func applyPatch(p *format.Project, patch map[string]any) {
	if v, ok := patch["name"].(string); ok {
		p.Name = v
	}
	if v, ok := patch["description"].(string); ok {
		p.Description = v
	}
	if v, ok := patch["color"].(string); ok {
		p.Color = v
	}
}

// fallbackProject assembles a plausible record when the backend acknowledged
// the create without echoing the stored project.
func fallbackProject(data map[string]any, user format.User) format.Project {
	now := time.Now().UTC().Format(time.RFC3339)
	p := format.Project{
		ID:          stringOr(data, "id", "project-"+uuid.NewString()),
		Name:        stringOr(data, "name", ""),
		Description: stringOr(data, "description", ""),
		Color:       stringOr(data, "color", "#FF9900"),
		OwnerID:     stringOr(data, "ownerId", user.Username),
		Members:     []format.Member{{ID: user.Username, Name: user.Username, Role: format.RoleOwner}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return p
}

func stringOr(data map[string]any, key, fallback string) string {
	if v, ok := data[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
