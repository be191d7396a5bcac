package project

import (
	"time"

	"github.com/google/uuid"

	"teamcal/internal/format"
)

// demoProjects is the fixed two-project fixture served in demo mode.
func demoProjects() []format.Project {
	return []format.Project{
		{
			ID:          "demo-1",
			Name:        "Personal workspace",
			Description: "Day-to-day work and personal tasks",
			EventCount:  12,
			UpdatedAt:   time.Now().Add(-2 * 24 * time.Hour).UTC().Format(time.RFC3339),
			Color:       "#FF9900",
			UpcomingEvents: []format.EventSummary{
				{Title: "Team meeting", Date: "2024-01-15", Time: "09:00"},
				{Title: "Project review", Date: "2024-01-16", Time: "14:00"},
			},
			Members: []format.Member{
				{ID: "user1", Name: "Alex Chen", Role: format.RoleOwner},
			},
		},
		{
			ID:          "demo-2",
			Name:        "Team project",
			Description: "Collaborative project planning",
			EventCount:  8,
			UpdatedAt:   time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339),
			Color:       "#146EB4",
			UpcomingEvents: []format.EventSummary{
				{Title: "Client meeting", Date: "2024-01-17", Time: "10:00"},
				{Title: "Progress report", Date: "2024-01-18", Time: "16:00"},
			},
			Members: []format.Member{
				{ID: "user1", Name: "Alex Chen", Role: format.RoleOwner},
				{ID: "user2", Name: "Jamie Liu", Role: format.RoleMember},
			},
		},
	}
}

// demoProject builds a locally created project for demo mode, assigning a
// client-generated id when the caller did not supply one.
func demoProject(data map[string]any, user format.User) format.Project {
	now := time.Now().UTC().Format(time.RFC3339)
	id := stringOr(data, "id", "demo-"+uuid.NewString())
	return format.Project{
		ID:          id,
		Name:        stringOr(data, "name", ""),
		Description: stringOr(data, "description", ""),
		Color:       stringOr(data, "color", format.RandomColor()),
		OwnerID:     user.Username,
		CreatedAt:   now,
		UpdatedAt:   now,
		Members: []format.Member{
			{ID: user.Username, Name: user.Username, Role: format.RoleOwner, JoinedAt: now},
		},
		UpcomingEvents: []format.EventSummary{},
		EventCount:     0,
	}
}
