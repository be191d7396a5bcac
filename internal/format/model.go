package format

// Role is a project member's role. Roles are opaque to the client; the
// backend is responsible for enforcing what each role may do.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

// User identifies the signed-in user.
type User struct {
	Username string
	Email    string
}

// Member is a user's membership in a project.
type Member struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	JoinedAt string `json:"joinedAt,omitempty"`
}

// EventSummary is the compact upcoming-event form embedded in a project.
type EventSummary struct {
	Title string `json:"title"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

// Project is a named collaboration scope owning events and members.
type Project struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Color          string         `json:"color"`
	OwnerID        string         `json:"ownerId"`
	Members        []Member       `json:"members"`
	EventCount     int            `json:"eventCount"`
	UpcomingEvents []EventSummary `json:"upcomingEvents"`
	CreatedAt      string         `json:"createdAt"`
	UpdatedAt      string         `json:"updatedAt"`
}

// Event is a calendar entry belonging to exactly one project. Start and End
// are ISO 8601 datetimes as delivered by the backend.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	AllDay      bool   `json:"allDay"`
	Color       string `json:"color"`
	Description string `json:"description"`
	ProjectID   string `json:"projectId"`
	ProjectName string `json:"projectName"`
}

// OptimisticIDPrefix marks a locally created event that has not yet been
// confirmed durable by the backend. Records carrying it are fully replaced,
// never merged, once a re-fetch observes the durable record.
const OptimisticIDPrefix = "tmp-"

// IsOptimistic reports whether the event is a local placeholder awaiting
// backend confirmation.
func (e Event) IsOptimistic() bool {
	return len(e.ID) >= len(OptimisticIDPrefix) && e.ID[:len(OptimisticIDPrefix)] == OptimisticIDPrefix
}
