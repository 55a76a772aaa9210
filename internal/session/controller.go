package session

import (
	"context"
	"sync"
	"time"

	"nextplay/internal/catalog"
	"nextplay/internal/constants"
	"nextplay/internal/models"
	"nextplay/internal/onboarding"
	"nextplay/internal/rating"
	"nextplay/internal/util"
	"nextplay/internal/viewcache"
)

type State string

const (
	StateSignedOut  State = "signedOut"
	StateOnboarding State = "onboarding"
	StateActive     State = "active"
)

// Controller composes the session, the onboarding tracker, the view cache
// and the rating pipeline for one identity. The three states partition the
// reachable (identity, onboardingComplete) configurations; the only
// transitions are SignedOut -> Onboarding (sign-up), Onboarding -> Active
// (explicit confirm past the like threshold) and any state -> SignedOut
// (logout).
type Controller struct {
	mu         sync.Mutex
	sess       models.Session
	gateway    *catalog.Client
	tracker    *onboarding.Tracker
	cache      *viewcache.Cache
	pipeline   *rating.Pipeline
	lastAccess time.Time
}

func NewController(gateway *catalog.Client, sess models.Session, affects []viewcache.Key) *Controller {
	cache := viewcache.New(sess.Identity)
	return &Controller{
		sess:       sess,
		gateway:    gateway,
		tracker:    onboarding.NewTracker(),
		cache:      cache,
		pipeline:   rating.NewPipeline(gateway, cache, affects),
		lastAccess: time.Now(),
	}
}

func (ctl *Controller) Session() models.Session {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.sess
}

// State derives the active screen from the session.
func (ctl *Controller) State() State {
	sess := ctl.Session()
	switch {
	case !sess.SignedIn():
		return StateSignedOut
	case !sess.OnboardingComplete:
		return StateOnboarding
	default:
		return StateActive
	}
}

// SignUp registers the name with the remote service and enters onboarding
// under the assigned identity. The caller persists the returned Session.
func (ctl *Controller) SignUp(ctx context.Context, name string) (models.Session, error) {
	identity, err := ctl.gateway.SignUp(ctx, name)
	if err != nil {
		return models.Session{}, err
	}

	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	ctl.sess = models.Session{Identity: identity}
	ctl.cache.Reset(identity)
	util.LogInfo("Signed up %q as %s, entering onboarding", name, identity)
	return ctl.sess, nil
}

// LikeGame records an onboarding like: a rating submission with the
// conventional default score, then an idempotent insert into the liked
// set. It returns the distinct like count and whether the gate is open.
func (ctl *Controller) LikeGame(ctx context.Context, gameID string) (int, bool, error) {
	tracker := ctl.Tracker()
	if ctl.State() != StateOnboarding {
		return tracker.Count(), tracker.IsComplete(), models.ErrNotOnboarding
	}
	if err := ctl.pipeline.Submit(ctx, ctl.Session().Identity, gameID, constants.OnboardingLikeScore); err != nil {
		return tracker.Count(), tracker.IsComplete(), err
	}
	tracker.RecordLike(gameID)
	return tracker.Count(), tracker.IsComplete(), nil
}

// CompleteOnboarding flips the onboarding flag, entering the main app. The
// gate requires both the threshold and this explicit call; reaching the
// threshold alone never triggers the transition. The caller persists the
// returned Session.
func (ctl *Controller) CompleteOnboarding() (models.Session, error) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()

	if !ctl.sess.SignedIn() || ctl.sess.OnboardingComplete {
		return ctl.sess, models.ErrNotOnboarding
	}
	if !ctl.tracker.IsComplete() {
		return ctl.sess, models.ErrOnboardingGate
	}
	ctl.sess.OnboardingComplete = true
	util.LogInfo("Onboarding complete for %s with %d likes", ctl.sess.Identity, ctl.tracker.Count())
	return ctl.sess, nil
}

// Rate submits a rating from one of the main views.
func (ctl *Controller) Rate(ctx context.Context, gameID string, score float64) error {
	sess := ctl.Session()
	if !sess.SignedIn() {
		return models.ErrNotOnboarding
	}
	return ctl.pipeline.Submit(ctx, sess.Identity, gameID, score)
}

// Logout discards the session, the liked set and every cached view, so a
// still-pending fetch from this identity can never surface for the next
// one.
func (ctl *Controller) Logout() {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()

	util.LogInfo("Logging out %s", ctl.sess.Identity)
	ctl.sess = models.Session{}
	ctl.tracker = onboarding.NewTracker()
	ctl.cache.Reset("")
}

// OpenView marks k as the visible view and activates its fetch. Fetches
// run on a background context so that the initiating request completing
// (or the person navigating away) does not cancel them; the gateway's
// client timeout bounds their lifetime.
func (ctl *Controller) OpenView(k viewcache.Key) {
	ctl.cache.SetActive(k)
	ctl.cache.Activate(context.Background(), k, ctl.fetcher(k))
}

// Preload activates a view's fetch without changing the visible view.
func (ctl *Controller) Preload(k viewcache.Key) {
	ctl.cache.Activate(context.Background(), k, ctl.fetcher(k))
}

// View returns the current cache entry for rendering.
func (ctl *Controller) View(k viewcache.Key) viewcache.Entry {
	return ctl.cache.Get(k)
}

// WaitView blocks until k is out of the loading state or ctx ends.
func (ctl *Controller) WaitView(ctx context.Context, k viewcache.Key) viewcache.Entry {
	return ctl.cache.Wait(ctx, k)
}

// Tracker exposes onboarding progress for rendering.
func (ctl *Controller) Tracker() *onboarding.Tracker {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.tracker
}

// Touch records activity for idle cleanup.
func (ctl *Controller) Touch() {
	ctl.mu.Lock()
	ctl.lastAccess = time.Now()
	ctl.mu.Unlock()
}

// IdleSince reports the last activity time.
func (ctl *Controller) IdleSince() time.Time {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.lastAccess
}

func (ctl *Controller) fetcher(k viewcache.Key) viewcache.FetchFunc {
	identity := ctl.Session().Identity
	switch k {
	case viewcache.KeyRecommendations:
		return func(ctx context.Context) ([]models.CatalogItem, error) {
			return ctl.gateway.FetchRecommendations(ctx, identity)
		}
	case viewcache.KeyPopular:
		return func(ctx context.Context) ([]models.CatalogItem, error) {
			return ctl.gateway.FetchPopular(ctx)
		}
	case viewcache.KeyBrowse:
		return func(ctx context.Context) ([]models.CatalogItem, error) {
			return ctl.gateway.FetchCatalog(ctx)
		}
	case viewcache.KeyLiked:
		return func(ctx context.Context) ([]models.CatalogItem, error) {
			return ctl.gateway.FetchLiked(ctx, identity)
		}
	case viewcache.KeyAllRatings:
		return func(ctx context.Context) ([]models.CatalogItem, error) {
			return ctl.gateway.FetchUserGames(ctx, identity)
		}
	default:
		return func(context.Context) ([]models.CatalogItem, error) {
			return nil, nil
		}
	}
}
