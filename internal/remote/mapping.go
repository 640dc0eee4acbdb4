package remote

import (
	"errors"
	"strings"

	"github.com/CampusPulseLab/pulse/backend/internal/store"
)

// ErrMissingUserID indicates the backend returned a user without an id.
var ErrMissingUserID = errors.New("remote: user payload missing id")

// User is the canonical shape of a backend user, one spelling per concept.
type User struct {
	ID        string
	Email     string
	FullName  string
	AvatarURL string
}

// userPayload tolerates every spelling the backend has historically used for
// the same concepts. Alias handling stops at this boundary.
type userPayload struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	FullName     string       `json:"full_name"`
	FullNameAlt  string       `json:"fullName"`
	AvatarURL    string       `json:"avatar_url"`
	UserMetadata userMetadata `json:"user_metadata"`
}

type userMetadata struct {
	FullName    string `json:"full_name"`
	FullNameAlt string `json:"fullName"`
	AvatarURL   string `json:"avatar_url"`
	Picture     string `json:"picture"`
}

func (p userPayload) canonical() (User, error) {
	if strings.TrimSpace(p.ID) == "" {
		return User{}, ErrMissingUserID
	}
	return User{
		ID:        strings.TrimSpace(p.ID),
		Email:     strings.TrimSpace(p.Email),
		FullName:  firstNonEmpty(p.FullName, p.FullNameAlt, p.UserMetadata.FullName, p.UserMetadata.FullNameAlt),
		AvatarURL: firstNonEmpty(p.AvatarURL, p.UserMetadata.AvatarURL, p.UserMetadata.Picture),
	}, nil
}

// eventPayload tolerates the backend's historical aliases: title/name,
// location/venue, image_url/imageUrl.
type eventPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Venue       string `json:"venue"`
	Capacity    int    `json:"capacity"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url"`
	ImageURLAlt string `json:"imageUrl"`
	CreatorID   string `json:"creator_id"`
	Organizer   string `json:"organizer"`
	Popularity  int    `json:"popularity"`
}

func (p eventPayload) canonical() store.Event {
	return store.Event{
		ID:          strings.TrimSpace(p.ID),
		Title:       firstNonEmpty(p.Title, p.Name),
		Description: p.Description,
		Date:        strings.TrimSpace(p.Date),
		Time:        strings.TrimSpace(p.Time),
		Venue:       firstNonEmpty(p.Venue, p.Location),
		Capacity:    p.Capacity,
		Category:    strings.TrimSpace(p.Category),
		ImageURL:    firstNonEmpty(p.ImageURL, p.ImageURLAlt),
		CreatorID:   strings.TrimSpace(p.CreatorID),
		Organizer:   p.Organizer,
		Popularity:  p.Popularity,
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
