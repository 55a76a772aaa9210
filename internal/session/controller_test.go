package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"nextplay/internal/catalog"
	"nextplay/internal/models"
	"nextplay/internal/rating"
	"nextplay/internal/viewcache"
)

// fakeService is a minimal stand-in for the remote catalog service.
type fakeService struct {
	srv          *httptest.Server
	likeCalls    atomic.Int32
	popularCalls atomic.Int32
	recommCalls  atomic.Int32
	failLikes    atomic.Bool
}

func newFakeService() *fakeService {
	f := &fakeService{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/signup":
			w.Write([]byte(`{"status": "success", "user_id": "u42"}`))
		case r.URL.Path == "/popular":
			f.popularCalls.Add(1)
			w.Write([]byte(`[{"id": "g9", "name": "Orbit", "popularity_score": 0.91}]`))
		case strings.HasPrefix(r.URL.Path, "/recommend/"):
			f.recommCalls.Add(1)
			w.Write([]byte(`[{"id": "g1", "name": "Alpha"}]`))
		case r.URL.Path == "/games":
			w.Write([]byte(`[{"id": "g1", "name": "Alpha"}, {"id": "g2", "name": "Beta"}]`))
		case strings.HasSuffix(r.URL.Path, "/like"):
			f.likeCalls.Add(1)
			if f.failLikes.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"status": "success"}`))
		default:
			w.Write([]byte(`[]`))
		}
	}))
	return f
}

func (f *fakeService) controller() *Controller {
	gateway := catalog.New(f.srv.URL, 2*time.Second)
	return NewController(gateway, models.Session{}, rating.DefaultAffects())
}

func signedUp(t *testing.T, f *fakeService) *Controller {
	t.Helper()
	ctl := f.controller()
	if _, err := ctl.SignUp(context.Background(), "Ava"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	return ctl
}

func onboarded(t *testing.T, f *fakeService) *Controller {
	t.Helper()
	ctl := signedUp(t, f)
	for i := 1; i <= 5; i++ {
		if _, _, err := ctl.LikeGame(context.Background(), fmt.Sprintf("g%d", i)); err != nil {
			t.Fatalf("LikeGame failed: %v", err)
		}
	}
	if _, err := ctl.CompleteOnboarding(); err != nil {
		t.Fatalf("CompleteOnboarding failed: %v", err)
	}
	return ctl
}

func TestSignUpEntersOnboarding(t *testing.T) {
	f := newFakeService()
	defer f.srv.Close()

	ctl := f.controller()
	if ctl.State() != StateSignedOut {
		t.Errorf("Expected signedOut before sign-up, got %v", ctl.State())
	}

	sess, err := ctl.SignUp(context.Background(), "Ava")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if sess.Identity != "u42" || sess.OnboardingComplete {
		t.Errorf("Unexpected session: %+v", sess)
	}
	if ctl.State() != StateOnboarding {
		t.Errorf("Expected onboarding after sign-up, got %v", ctl.State())
	}
}

func TestOnboardingGate(t *testing.T) {
	f := newFakeService()
	defer f.srv.Close()
	ctl := signedUp(t, f)

	for i := 1; i <= 4; i++ {
		count, complete, err := ctl.LikeGame(context.Background(), fmt.Sprintf("g%d", i))
		if err != nil {
			t.Fatalf("LikeGame failed: %v", err)
		}
		if complete {
			t.Errorf("Gate open at %d likes", count)
		}
	}

	// The threshold alone never triggers the transition; the confirm does.
	if _, err := ctl.CompleteOnboarding(); err != models.ErrOnboardingGate {
		t.Errorf("Expected ErrOnboardingGate at 4 likes, got %v", err)
	}

	// Re-liking an already liked game does not open the gate.
	if _, complete, _ := ctl.LikeGame(context.Background(), "g1"); complete {
		t.Error("Duplicate like opened the gate")
	}

	count, complete, err := ctl.LikeGame(context.Background(), "g5")
	if err != nil || count != 5 || !complete {
		t.Fatalf("Expected gate open at 5 distinct likes, got count=%d complete=%v err=%v", count, complete, err)
	}
	if ctl.State() != StateOnboarding {
		t.Error("Threshold alone must not leave onboarding")
	}

	sess, err := ctl.CompleteOnboarding()
	if err != nil {
		t.Fatalf("CompleteOnboarding failed: %v", err)
	}
	if !sess.OnboardingComplete || ctl.State() != StateActive {
		t.Errorf("Expected active state with persisted flag, got %+v, %v", sess, ctl.State())
	}

	// The flag flips exactly once.
	if _, err := ctl.CompleteOnboarding(); err != models.ErrNotOnboarding {
		t.Errorf("Expected ErrNotOnboarding on second confirm, got %v", err)
	}
}

func TestOnboardingLikeSubmitsDefaultRating(t *testing.T) {
	f := newFakeService()
	defer f.srv.Close()
	ctl := signedUp(t, f)

	if _, _, err := ctl.LikeGame(context.Background(), "g1"); err != nil {
		t.Fatalf("LikeGame failed: %v", err)
	}
	if got := f.likeCalls.Load(); got != 1 {
		t.Errorf("Expected 1 rating submission, got %d", got)
	}
}

func TestFailedLikeNotRecorded(t *testing.T) {
	f := newFakeService()
	defer f.srv.Close()
	ctl := signedUp(t, f)
	f.failLikes.Store(true)

	count, _, err := ctl.LikeGame(context.Background(), "g1")
	if err == nil {
		t.Fatal("Expected error from failing service")
	}
	if count != 0 {
		t.Errorf("Rejected like must not count, got %d", count)
	}
}

func TestViewFetchedOncePerActivation(t *testing.T) {
	f := newFakeService()
	defer f.srv.Close()
	ctl := onboarded(t, f)

	ctl.OpenView(viewcache.KeyPopular)
	ctl.WaitView(context.Background(), viewcache.KeyPopular)
	ctl.OpenView(viewcache.KeyPopular)
	ctl.OpenView(viewcache.KeyPopular)

	if got := f.popularCalls.Load(); got != 1 {
		t.Errorf("Expected a single popular fetch, got %d", got)
	}
	entry := ctl.View(viewcache.KeyPopular)
	if entry.Status != viewcache.StatusReady || len(entry.Data) != 1 || entry.Data[0].Game.ID != "g9" {
		t.Errorf("Unexpected popular entry: %+v", entry)
	}
}

func TestRatingInvalidatesDependentViews(t *testing.T) {
	f := newFakeService()
	defer f.srv.Close()
	ctl := onboarded(t, f)

	for _, k := range []viewcache.Key{viewcache.KeyRecommendations, viewcache.KeyPopular, viewcache.KeyLiked, viewcache.KeyAllRatings} {
		ctl.OpenView(k)
		ctl.WaitView(context.Background(), k)
	}

	if err := ctl.Rate(context.Background(), "g9", 5); err != nil {
		t.Fatalf("Rate failed: %v", err)
	}

	for _, k := range []viewcache.Key{viewcache.KeyRecommendations, viewcache.KeyLiked} {
		if got := ctl.View(k).Status; got != viewcache.StatusIdle {
			t.Errorf("Expected %s idle after rating, got %v", k, got)
		}
	}
	// allRatings was the active view when the rating landed, so its stale
	// data stays visible while idle.
	if got := ctl.View(viewcache.KeyAllRatings).Status; got != viewcache.StatusIdle {
		t.Errorf("Expected allRatings idle after rating, got %v", got)
	}
	if got := ctl.View(viewcache.KeyPopular).Status; got != viewcache.StatusReady {
		t.Errorf("Popular must be untouched by the default policy, got %v", got)
	}
}

func TestRateRejectsOutOfRange(t *testing.T) {
	f := newFakeService()
	defer f.srv.Close()
	ctl := onboarded(t, f)
	before := f.likeCalls.Load()

	for _, score := range []float64{0, 0.5, 5.5, -1} {
		if err := ctl.Rate(context.Background(), "g1", score); err != models.ErrInvalidRating {
			t.Errorf("Rate(%v) = %v, want ErrInvalidRating", score, err)
		}
	}
	if f.likeCalls.Load() != before {
		t.Error("Invalid ratings must not reach the service")
	}
}

func TestFailedRatingInvalidatesNothing(t *testing.T) {
	f := newFakeService()
	defer f.srv.Close()
	ctl := onboarded(t, f)

	ctl.OpenView(viewcache.KeyRecommendations)
	ctl.WaitView(context.Background(), viewcache.KeyRecommendations)
	f.failLikes.Store(true)

	if err := ctl.Rate(context.Background(), "g9", 5); err == nil {
		t.Fatal("Expected error from failing service")
	}
	if got := ctl.View(viewcache.KeyRecommendations).Status; got != viewcache.StatusReady {
		t.Errorf("Failed rating must leave caches untouched, got %v", got)
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	f := newFakeService()
	defer f.srv.Close()
	ctl := onboarded(t, f)

	ctl.OpenView(viewcache.KeyPopular)
	ctl.WaitView(context.Background(), viewcache.KeyPopular)

	ctl.Logout()

	if ctl.State() != StateSignedOut {
		t.Errorf("Expected signedOut after logout, got %v", ctl.State())
	}
	if sess := ctl.Session(); sess.SignedIn() || sess.OnboardingComplete {
		t.Errorf("Expected empty session, got %+v", sess)
	}
	if entry := ctl.View(viewcache.KeyPopular); entry.Status != viewcache.StatusIdle || entry.Data != nil {
		t.Errorf("Cache must be discarded on logout, got %+v", entry)
	}
	if ctl.Tracker().Count() != 0 {
		t.Error("Liked set must be discarded on logout")
	}
}
