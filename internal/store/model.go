package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultVenue fills events persisted before the venue field existed.
	DefaultVenue = "TBD"
	// DefaultStartTime fills events persisted before the time field existed.
	DefaultStartTime = "12:00"

	// DateLayout is the calendar-date format carried by Event.Date.
	DateLayout = "2006-01-02"
)

// ErrInvalidStatus indicates an unknown registration status value.
var ErrInvalidStatus = errors.New("store: invalid registration status")

// RegistrationStatus enumerates the lifecycle of an event registration.
type RegistrationStatus string

const (
	// StatusRegistered marks an active signup.
	StatusRegistered RegistrationStatus = "registered"
	// StatusAttended marks a signup that checked in.
	StatusAttended RegistrationStatus = "attended"
	// StatusCancelled marks a withdrawn signup.
	StatusCancelled RegistrationStatus = "cancelled"
)

// ParseRegistrationStatus validates raw input and returns a RegistrationStatus.
func ParseRegistrationStatus(raw string) (RegistrationStatus, error) {
	switch RegistrationStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusRegistered:
		return StatusRegistered, nil
	case StatusAttended:
		return StatusAttended, nil
	case StatusCancelled:
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Event is one catalog entry. Date and Time are separate strings; comparisons
// against "today" parse Date alone.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Venue       string    `json:"venue"`
	Capacity    int       `json:"capacity"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"imageUrl"`
	CreatorID   string    `json:"creatorId"`
	Organizer   string    `json:"organizer"`
	Popularity  int       `json:"popularity"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StartDate parses the calendar date of the event.
func (e Event) StartDate() (time.Time, error) {
	return time.ParseInLocation(DateLayout, e.Date, time.UTC)
}

// withDefaults fills fields older persisted events may lack.
func (e Event) withDefaults() Event {
	if strings.TrimSpace(e.Venue) == "" {
		e.Venue = DefaultVenue
	}
	if strings.TrimSpace(e.Time) == "" {
		e.Time = DefaultStartTime
	}
	return e
}

// EventPatch carries a partial update; nil fields are left untouched.
type EventPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
	Time        *string `json:"time"`
	Venue       *string `json:"venue"`
	Capacity    *int    `json:"capacity"`
	Category    *string `json:"category"`
	ImageURL    *string `json:"imageUrl"`
	Organizer   *string `json:"organizer"`
	Popularity  *int    `json:"popularity"`
}

func (p EventPatch) apply(e Event) Event {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Time != nil {
		e.Time = *p.Time
	}
	if p.Venue != nil {
		e.Venue = *p.Venue
	}
	if p.Capacity != nil {
		e.Capacity = *p.Capacity
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.ImageURL != nil {
		e.ImageURL = *p.ImageURL
	}
	if p.Organizer != nil {
		e.Organizer = *p.Organizer
	}
	if p.Popularity != nil {
		e.Popularity = *p.Popularity
	}
	return e
}

// Registration links a user to an event. Uniqueness per (eventId, userId) is a
// caller responsibility, checked before insert.
type Registration struct {
	ID           string             `json:"id"`
	EventID      string             `json:"eventId"`
	UserID       string             `json:"userId"`
	Status       RegistrationStatus `json:"status"`
	RegisteredAt time.Time          `json:"registeredAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// RegistrationPatch carries a partial registration update.
type RegistrationPatch struct {
	Status *RegistrationStatus `json:"status"`
}

func (p RegistrationPatch) apply(r Registration) Registration {
	if p.Status != nil {
		r.Status = *p.Status
	}
	return r
}

// UserProfile is the per-user profile record, upserted by UserID.
type UserProfile struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Bio         string            `json:"bio"`
	Major       string            `json:"major"`
	Year        string            `json:"year"`
	Interests   []string          `json:"interests"`
	SocialLinks map[string]string `json:"socialLinks"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// ProfilePatch carries a partial profile update.
type ProfilePatch struct {
	Bio         *string            `json:"bio"`
	Major       *string            `json:"major"`
	Year        *string            `json:"year"`
	Interests   *[]string          `json:"interests"`
	SocialLinks *map[string]string `json:"socialLinks"`
}

func (p ProfilePatch) apply(profile UserProfile) UserProfile {
	if p.Bio != nil {
		profile.Bio = *p.Bio
	}
	if p.Major != nil {
		profile.Major = *p.Major
	}
	if p.Year != nil {
		profile.Year = *p.Year
	}
	if p.Interests != nil {
		profile.Interests = *p.Interests
	}
	if p.SocialLinks != nil {
		profile.SocialLinks = *p.SocialLinks
	}
	return profile
}

// Comment is an event comment. A non-empty ParentID marks a one-level-deep
// reply; replies never appear as thread roots.
type Comment struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	ParentID  string    `json:"parentId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsReply reports whether the comment is a reply to another comment.
func (c Comment) IsReply() bool {
	return c.ParentID != ""
}

// CommentPatch carries a partial comment update.
type CommentPatch struct {
	Content *string `json:"content"`
}

func (p CommentPatch) apply(c Comment) Comment {
	if p.Content != nil {
		c.Content = *p.Content
	}
	return c
}

// CommentThread pairs a root comment with its direct replies, derived by
// filtering, never stored inline.
type CommentThread struct {
	Root    Comment   `json:"root"`
	Replies []Comment `json:"replies"`
}

// CommentLike records one user liking one comment. At-most-one per
// (commentId, userId) is caller-enforced via check-then-insert.
type CommentLike struct {
	ID        string    `json:"id"`
	CommentID string    `json:"commentId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// PushToken is the single push delivery token kept per user, overwritten on
// every update.
type PushToken struct {
	UserID     string    `json:"userId"`
	PushToken  string    `json:"pushToken"`
	DeviceType string    `json:"deviceType"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// AuthRecord is the locally cached signed-in user.
type AuthRecord struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	AvatarURL string    `json:"avatarUrl"`
	UpdatedAt time.Time `json:"updatedAt"`
}
