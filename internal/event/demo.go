package event

import (
	"time"

	"github.com/google/uuid"

	"teamcal/internal/format"
)

// demoEvents is the fixed fixture served in demo mode: one event in each
// demo project, both on the current day.
func demoEvents() []format.Event {
	today := time.Now().Format("2006-01-02")
	return []format.Event{
		{
			ID:          "demo-1",
			Title:       "Demo: team standup",
			Start:       today + "T09:30:00",
			End:         today + "T10:00:00",
			AllDay:      false,
			Color:       "#FF9900",
			Description: "Daily 30 minute progress sync",
			ProjectID:   "demo-1",
			ProjectName: "Personal workspace",
		},
		{
			ID:          "demo-2",
			Title:       "Demo: client meeting",
			Start:       today + "T14:00:00",
			End:         today + "T15:00:00",
			AllDay:      false,
			Color:       "#232F3E",
			Description: "Project requirements discussion",
			ProjectID:   "demo-2",
			ProjectName: "Team project",
		},
	}
}

// demoEvent builds a locally created event for demo mode.
func demoEvent(in Input, selected *format.Project) format.Event {
	e := format.Event{
		ID:          "demo-" + uuid.NewString(),
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
	} else {
		e.ProjectID = "demo-1"
		e.ProjectName = "Personal workspace"
	}
	return e
}
