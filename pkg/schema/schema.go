// Package schema defines the entity records stored in the triji collections.
// Documents are schemaless on the wire; these types are the console's view
// of them, with every absent field default-filled rather than trusted to be
// present.
package schema

import (
	"time"

	"github.com/gauciv/triji-app-admin-dashboard/pkg/store"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "Pending"
	TaskInProgress TaskStatus = "In Progress"
	TaskCompleted  TaskStatus = "Completed"
)

// Task is an item of work with a user-chosen calendar deadline. CreatedBy is
// immutable after creation.
type Task struct {
	ID          string
	Title       string
	Description string
	Subject     string
	SubjectID   string // set when Subject references a subjects document
	Deadline    time.Time
	Status      TaskStatus
	CreatedBy   string
	CreatedAt   time.Time
	ImageURL    string
}

// TaskFromDocument decodes a task document.
func TaskFromDocument(d store.Document) Task {
	t := Task{
		ID:          d.ID,
		Title:       d.String("title"),
		Description: d.String("description"),
		Subject:     d.String("subject"),
		SubjectID:   d.String("subjectId"),
		Status:      TaskStatus(d.String("status")),
		CreatedBy:   d.String("createdBy"),
		ImageURL:    d.String("imageUrl"),
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	t.Deadline, _ = d.Time("deadline")
	t.CreatedAt, _ = d.Time("createdAt")
	return t
}

// Fields returns the writable fields of a task. Authorship and server
// timestamps are stamped by the gateway and the store, never here.
func (t Task) Fields() map[string]any {
	fields := map[string]any{
		"title":       t.Title,
		"description": t.Description,
		"subject":     t.Subject,
		"deadline":    t.Deadline,
		"status":      string(t.Status),
	}
	if t.SubjectID != "" {
		fields["subjectId"] = t.SubjectID
	}
	if t.ImageURL != "" {
		fields["imageUrl"] = t.ImageURL
	}
	return fields
}

// AnnouncementType categorizes an announcement.
type AnnouncementType string

const (
	AnnouncementGeneral  AnnouncementType = "General"
	AnnouncementReminder AnnouncementType = "Reminder"
	AnnouncementEvent    AnnouncementType = "Event"
	AnnouncementCritical AnnouncementType = "Critical"
)

// Announcement is an authored notice with an optional expiry.
type Announcement struct {
	ID         string
	Title      string
	Content    string
	Type       AnnouncementType
	AuthorID   string
	AuthorName string
	CreatedAt  time.Time
	ExpiresAt  time.Time // zero when the announcement never expires
}

// AnnouncementFromDocument decodes an announcement document.
func AnnouncementFromDocument(d store.Document) Announcement {
	a := Announcement{
		ID:         d.ID,
		Title:      d.String("title"),
		Content:    d.String("content"),
		Type:       AnnouncementType(d.String("type")),
		AuthorID:   d.String("authorId"),
		AuthorName: d.String("authorName"),
	}
	if a.Type == "" {
		a.Type = AnnouncementGeneral
	}
	a.CreatedAt, _ = d.Time("createdAt")
	a.ExpiresAt, _ = d.Time("expiresAt")
	return a
}

// Expired reports whether the announcement has an expiry that is not after
// now. An announcement with no expiry is always active.
func (a Announcement) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !a.ExpiresAt.After(now)
}

// Fields returns the writable fields of an announcement.
func (a Announcement) Fields() map[string]any {
	fields := map[string]any{
		"title":      a.Title,
		"content":    a.Content,
		"type":       string(a.Type),
		"authorId":   a.AuthorID,
		"authorName": a.AuthorName,
	}
	if !a.ExpiresAt.IsZero() {
		fields["expiresAt"] = a.ExpiresAt
	}
	return fields
}

// ReportStatus is the moderation state of a report. The console only offers
// forward transitions: Pending -> Reviewed -> Resolved.
type ReportStatus string

const (
	ReportPending  ReportStatus = "Pending"
	ReportReviewed ReportStatus = "Reviewed"
	ReportResolved ReportStatus = "Resolved"
)

// Next returns the next status in the forward direction and whether one
// exists.
func (s ReportStatus) Next() (ReportStatus, bool) {
	switch s {
	case ReportPending:
		return ReportReviewed, true
	case ReportReviewed:
		return ReportResolved, true
	default:
		return "", false
	}
}

// Report is a moderation report, possibly referencing a freedom wall post.
type Report struct {
	ID          string
	ReportType  string
	Description string
	Status      ReportStatus
	ReportedBy  string
	ReportedAt  time.Time
	PostID      string // non-owning back-reference, may be empty
}

// ReportFromDocument decodes a report document.
func ReportFromDocument(d store.Document) Report {
	r := Report{
		ID:          d.ID,
		ReportType:  d.String("reportType"),
		Description: d.String("description"),
		Status:      ReportStatus(d.String("status")),
		ReportedBy:  d.String("reportedBy"),
		PostID:      d.String("postId"),
	}
	if r.Status == "" {
		r.Status = ReportPending
	}
	r.ReportedAt, _ = d.Time("reportedAt")
	return r
}

// Role is a user's authorization level.
type Role string

const (
	RoleStudent Role = "student"
	RoleOfficer Role = "officer"
	RoleAdmin   Role = "admin"
)

// Elevated reports whether the role grants broader mutation rights.
func (r Role) Elevated() bool {
	return r == RoleOfficer || r == RoleAdmin
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleOfficer || r == RoleAdmin
}

// UserProfile is a registered user. Profiles are created externally and
// never deleted through the console; only the role is mutated, by admins.
type UserProfile struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// UserProfileFromDocument decodes a user document. A missing role means
// student.
func UserProfileFromDocument(d store.Document) UserProfile {
	u := UserProfile{
		ID:        d.ID,
		FirstName: d.String("firstName"),
		LastName:  d.String("lastName"),
		Email:     d.String("email"),
		Role:      Role(d.String("role")),
	}
	if u.Role == "" {
		u.Role = RoleStudent
	}
	u.CreatedAt, _ = d.Time("createdAt")
	return u
}

// FullName joins the name parts for display and search.
func (u UserProfile) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// AnonymousName is the literal shown in place of an anonymous author.
const AnonymousName = "Anonymous"

// MaxPostLength caps freedom wall post content.
const MaxPostLength = 500

// FreedomWallPost is a public message board post. When IsAnonymous is set,
// AuthorName holds the placeholder and must be the only name ever rendered;
// AuthorID is still stored for moderation but never displayed.
type FreedomWallPost struct {
	ID          string
	Content     string
	AuthorID    string
	AuthorName  string
	IsAnonymous bool
	CreatedAt   time.Time
}

// FreedomWallPostFromDocument decodes a post document.
func FreedomWallPostFromDocument(d store.Document) FreedomWallPost {
	p := FreedomWallPost{
		ID:          d.ID,
		Content:     d.String("content"),
		AuthorID:    d.String("authorId"),
		AuthorName:  d.String("authorName"),
		IsAnonymous: d.Bool("isAnonymous"),
	}
	p.CreatedAt, _ = d.Time("createdAt")
	return p
}

// DisplayName is the author name safe to render for any viewer.
func (p FreedomWallPost) DisplayName() string {
	if p.IsAnonymous {
		return AnonymousName
	}
	return p.AuthorName
}

// Subject is a course subject tasks can reference.
type Subject struct {
	ID          string
	Code        string
	Name        string
	Description string
	CreatedAt   time.Time
}

// SubjectFromDocument decodes a subject document.
func SubjectFromDocument(d store.Document) Subject {
	s := Subject{
		ID:          d.ID,
		Code:        d.String("code"),
		Name:        d.String("name"),
		Description: d.String("description"),
	}
	s.CreatedAt, _ = d.Time("createdAt")
	return s
}
