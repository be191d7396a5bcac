// Package format normalizes the heterogeneous record shapes returned by the
// backend into the single internal shape the controllers depend on. The
// backend has gone through several field-naming conventions (eventId vs id,
// startDate vs start), so every accessor here prefers the canonical name and
// falls back to the alternate without ever erroring on absence.
package format

import (
	"encoding/json"
	"math/rand"
	"strconv"
	"strings"
)

// palette is the fixed set of colors assigned to records that arrive without
// one. Picks are pseudo-random and need not be stable across calls, but are
// always drawn from this set.
var palette = []string{
	"#FF9900", "#146EB4", "#232F3E", "#37475A",
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
}

// RandomColor returns a pseudo-random member of the fixed palette.
func RandomColor() string {
	return palette[rand.Intn(len(palette))]
}

// Raw is an untyped backend record. Field access helpers tolerate missing
// keys and non-string values.
type Raw map[string]any

func (r Raw) str(keys ...string) string {
	for _, k := range keys {
		switch v := r[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			// Some backend records serialize numeric ids.
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func (r Raw) boolean(key string) bool {
	v, _ := r[key].(bool)
	return v
}

func (r Raw) integer(key string) int {
	switch v := r[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

// NormalizeProject maps a raw backend project record onto the internal
// Project shape. Missing optionals default: color to a palette pick, members
// to a single-element list holding the current user as OWNER.
func NormalizeProject(raw Raw, current User) Project {
	id := raw.str("id", "projectId")
	if id == "" {
		// Single-table records expose the id only through the partition key.
		id = strings.TrimPrefix(raw.str("PK"), "PROJECT#")
	}

	p := Project{
		ID:          id,
		Name:        raw.str("name"),
		Description: raw.str("description"),
		Color:       raw.str("color"),
		OwnerID:     raw.str("ownerId"),
		EventCount:  raw.integer("eventCount"),
		CreatedAt:   raw.str("createdAt"),
		UpdatedAt:   raw.str("updatedAt", "lastUpdated"),
	}

	if p.Color == "" {
		p.Color = RandomColor()
	}

	if members, ok := raw["members"].([]any); ok && len(members) > 0 {
		for _, m := range members {
			mr, ok := m.(map[string]any)
			if !ok {
				continue
			}
			member := Raw(mr)
			p.Members = append(p.Members, Member{
				ID:       member.str("id", "userId"),
				Name:     member.str("name"),
				Role:     Role(member.str("role")),
				JoinedAt: member.str("joinedAt"),
			})
		}
	}
	if len(p.Members) == 0 {
		p.Members = []Member{{ID: current.Username, Name: current.Username, Role: RoleOwner}}
	}

	if upcoming, ok := raw["upcomingEvents"].([]any); ok {
		for _, u := range upcoming {
			ur, ok := u.(map[string]any)
			if !ok {
				continue
			}
			summary := Raw(ur)
			p.UpcomingEvents = append(p.UpcomingEvents, EventSummary{
				Title: summary.str("title"),
				Date:  summary.str("date"),
				Time:  summary.str("time"),
			})
		}
	}

	return p
}

// NormalizeEvent maps a raw backend event record onto the internal Event
// shape, tolerating both historical field-name conventions.
func NormalizeEvent(raw Raw) Event {
	return Event{
		ID:          raw.str("eventId", "id"),
		Title:       raw.str("title"),
		Start:       raw.str("startDate", "start"),
		End:         raw.str("endDate", "end"),
		AllDay:      raw.boolean("allDay"),
		Color:       raw.str("color"),
		Description: raw.str("description"),
		ProjectID:   raw.str("projectId"),
		ProjectName: raw.str("projectName"),
	}
}

// NormalizeProjects maps a slice of raw records, skipping entries that are
// not objects.
func NormalizeProjects(items []any, current User) []Project {
	projects := make([]Project, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		projects = append(projects, NormalizeProject(Raw(m), current))
	}
	return projects
}

// NormalizeEvents maps a slice of raw records, skipping entries that are not
// objects.
func NormalizeEvents(items []any) []Event {
	events := make([]Event, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		events = append(events, NormalizeEvent(Raw(m)))
	}
	return events
}
