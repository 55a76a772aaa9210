package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"nextplay/internal/models"
)

func testContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

// carryCookies builds a context whose request carries the cookies the
// previous response set, simulating a reload.
func carryCookies(w *httptest.ResponseRecorder) *gin.Context {
	c, _ := testContext()
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge >= 0 {
			c.Request.AddCookie(ck)
		}
	}
	return c
}

func TestLoadEmptyWithoutCookies(t *testing.T) {
	store := NewStore(time.Hour, false)
	c, _ := testContext()

	sess := store.Load(c)
	if sess.SignedIn() || sess.OnboardingComplete {
		t.Errorf("Expected empty session, got %+v", sess)
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	store := NewStore(time.Hour, false)
	c, w := testContext()

	store.Save(c, models.Session{Identity: "u42", OnboardingComplete: true})

	sess := store.Load(carryCookies(w))
	if sess.Identity != "u42" || !sess.OnboardingComplete {
		t.Errorf("Round trip lost fields: %+v", sess)
	}
}

func TestClearRemovesBothFields(t *testing.T) {
	store := NewStore(time.Hour, false)
	c, w := testContext()

	store.Clear(c)

	cookies := w.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("Expected both cookies cleared, got %d", len(cookies))
	}
	for _, ck := range cookies {
		if ck.MaxAge >= 0 || ck.Value != "" {
			t.Errorf("Expected expired empty cookie, got %s=%s with MaxAge %d", ck.Name, ck.Value, ck.MaxAge)
		}
	}

	// A reload after clear carries nothing and loads empty.
	sess := store.Load(carryCookies(w))
	if sess.SignedIn() {
		t.Errorf("Expected signed-out session after clear, got %+v", sess)
	}
}

func TestOnboardingFlagIgnoredWithoutIdentity(t *testing.T) {
	store := NewStore(time.Hour, false)
	c, _ := testContext()
	c.Request.AddCookie(&http.Cookie{Name: "nextplay_onboarded", Value: "true"})

	sess := store.Load(c)
	if sess.OnboardingComplete {
		t.Error("Onboarding flag must not survive without an identity")
	}
}

func TestSaveEmptySessionClears(t *testing.T) {
	store := NewStore(time.Hour, false)
	c, w := testContext()

	store.Save(c, models.Session{})
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge >= 0 && ck.Value != "" {
			t.Errorf("Expected expired cookie, got %s=%s with MaxAge %d", ck.Name, ck.Value, ck.MaxAge)
		}
	}
}
