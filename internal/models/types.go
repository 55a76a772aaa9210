package models

import "errors"

// Game is an immutable catalog snapshot as returned by the remote service.
// A fresh fetch replaces a view's whole record set; records are never
// mutated client-side.
type Game struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Genres          []string `json:"genres,omitempty"`
	CoverURL        string   `json:"image_url,omitempty"`
	Description     string   `json:"description,omitempty"`
	PopularityScore *float64 `json:"popularity_score,omitempty"`
	AverageRating   *float64 `json:"average_rating,omitempty"`
	RatingCount     *int     `json:"rating_count,omitempty"`
}

// CatalogItem is one row of a view: a game plus, for the liked and
// all-ratings views, the person's own rating. UserRating is 0 for views
// that carry no rating.
type CatalogItem struct {
	Game       Game    `json:"game"`
	UserRating float64 `json:"user_rating,omitempty"`
}

// Liked reports whether the item counts as liked on the profile.
func (i CatalogItem) Liked() bool {
	return i.UserRating >= 3.0
}

// Session is the durable client identity. Identity is the opaque user id
// assigned by the remote service on sign-up; empty means signed out.
type Session struct {
	Identity           string
	OnboardingComplete bool
}

func (s Session) SignedIn() bool {
	return s.Identity != ""
}

var (
	ErrEmptyName      = errors.New("name must not be empty")
	ErrInvalidRating  = errors.New("rating must be between 1 and 5")
	ErrNotOnboarding  = errors.New("onboarding is not in progress")
	ErrOnboardingGate = errors.New("onboarding threshold not reached")
)
