// Package session owns the durable client identity and the state machine
// that gates navigation between sign-up, onboarding and the main app.
package session

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"nextplay/internal/constants"
	"nextplay/internal/models"
)

// Store persists the Session across reloads in two cookies, the identity
// and the onboarding flag. Callers always read and write the full Session;
// there are no partial-field writes.
type Store struct {
	MaxAge time.Duration
	Secure bool
}

func NewStore(maxAge time.Duration, secure bool) *Store {
	return &Store{MaxAge: maxAge, Secure: secure}
}

// Load reads the persisted Session. It never fails: missing or unreadable
// cookies yield an empty Session, which degrades to the sign-up screen.
// The onboarding flag is ignored without an identity, so the state where
// the flag is set but the identity is absent is unreachable.
func (s *Store) Load(c *gin.Context) models.Session {
	identity, err := c.Cookie(constants.UserCookieName)
	if err != nil || identity == "" {
		return models.Session{}
	}
	flag, _ := c.Cookie(constants.OnboardingCookieName)
	complete, _ := strconv.ParseBool(flag)
	return models.Session{Identity: identity, OnboardingComplete: complete}
}

// Save overwrites both fields. Saving an empty Session is equivalent to
// Clear.
func (s *Store) Save(c *gin.Context, sess models.Session) {
	if !sess.SignedIn() {
		s.Clear(c)
		return
	}
	maxAge := int(s.MaxAge.Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(constants.UserCookieName, sess.Identity, maxAge, "/", "", s.Secure, true)
	c.SetCookie(constants.OnboardingCookieName, strconv.FormatBool(sess.OnboardingComplete), maxAge, "/", "", s.Secure, true)
}

// Clear removes both fields.
func (s *Store) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(constants.UserCookieName, "", -1, "/", "", s.Secure, true)
	c.SetCookie(constants.OnboardingCookieName, "", -1, "/", "", s.Secure, true)
}
