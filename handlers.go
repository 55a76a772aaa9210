package main

import (
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"nextplay/internal/constants"
	"nextplay/internal/models"
	"nextplay/internal/session"
	"nextplay/internal/util"
	"nextplay/internal/viewcache"
)

var dashboardTabs = map[string]viewcache.Key{
	"recommendations": viewcache.KeyRecommendations,
	"popular":         viewcache.KeyPopular,
	"browse":          viewcache.KeyBrowse,
}

var profileTabs = map[string]viewcache.Key{
	"liked": viewcache.KeyLiked,
	"rated": viewcache.KeyAllRatings,
}

func (app *App) homeHandler(c *gin.Context) {
	sess := app.Store.Load(c)
	if !sess.SignedIn() {
		app.renderSignUp(c, http.StatusOK, "")
		return
	}

	ctl := app.controllerFor(sess)
	switch ctl.State() {
	case session.StateOnboarding:
		app.renderOnboarding(c, ctl)
	case session.StateActive:
		c.Redirect(http.StatusSeeOther, constants.RouteDashboard)
	default:
		app.renderSignUp(c, http.StatusOK, "")
	}
}

func (app *App) renderSignUp(c *gin.Context, status int, errMsg string) {
	csrfToken, _ := c.Cookie(constants.CSRFCookieName)
	c.HTML(status, "signup.html", gin.H{
		"title":      "NextPlay - Discover your next favorite game",
		"error":      errMsg,
		"csrf_token": csrfToken,
	})
}

func (app *App) signUpHandler(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		app.renderSignUp(c, http.StatusBadRequest, "Please enter your name")
		return
	}

	ctl := session.NewController(app.Gateway, models.Session{}, app.RatingAffects)
	sess, err := ctl.SignUp(c.Request.Context(), name)
	if err != nil {
		util.LogWarn("Sign-up failed for %q: %v", name, err)
		app.renderSignUp(c, http.StatusBadGateway, "Failed to create account. Please try again.")
		return
	}

	app.registerController(sess.Identity, ctl)
	app.Store.Save(c, sess)
	c.Redirect(http.StatusSeeOther, constants.RouteHome)
}

func (app *App) renderOnboarding(c *gin.Context, ctl *session.Controller) {
	ctl.OpenView(viewcache.KeyBrowse)
	entry := ctl.WaitView(c.Request.Context(), viewcache.KeyBrowse)

	q := strings.TrimSpace(c.Query("q"))
	tracker := ctl.Tracker()
	csrfToken, _ := c.Cookie(constants.CSRFCookieName)
	c.HTML(http.StatusOK, "onboarding.html", gin.H{
		"title":      "Pick games you love",
		"entry":      entry,
		"items":      filterItems(entry.Data, q),
		"q":          q,
		"tracker":    tracker,
		"target":     constants.LikeTarget,
		"csrf_token": csrfToken,
	})
}

func (app *App) onboardingLikeHandler(c *gin.Context) {
	sess := app.Store.Load(c)
	if !sess.SignedIn() {
		c.Redirect(http.StatusSeeOther, constants.RouteHome)
		return
	}

	ctl := app.controllerFor(sess)
	gameID := c.PostForm("game_id")
	count, complete, err := ctl.LikeGame(c.Request.Context(), gameID)
	if err != nil {
		util.LogWarn("Onboarding like for game %s failed: %v", gameID, err)
	}

	if c.GetHeader("HX-Request") == "true" {
		status := http.StatusOK
		if err != nil {
			status = http.StatusBadGateway
		}
		csrfToken, _ := c.Cookie(constants.CSRFCookieName)
		c.HTML(status, "onboarding-progress", gin.H{
			"count":      count,
			"complete":   complete,
			"target":     constants.LikeTarget,
			"failed":     err != nil,
			"csrf_token": csrfToken,
		})
		return
	}
	c.Redirect(http.StatusSeeOther, constants.RouteHome)
}

func (app *App) onboardingCompleteHandler(c *gin.Context) {
	sess := app.Store.Load(c)
	if !sess.SignedIn() {
		c.Redirect(http.StatusSeeOther, constants.RouteHome)
		return
	}

	ctl := app.controllerFor(sess)
	updated, err := ctl.CompleteOnboarding()
	if err != nil {
		util.LogWarn("Onboarding completion rejected for %s: %v", sess.Identity, err)
		c.Redirect(http.StatusSeeOther, constants.RouteHome)
		return
	}

	app.Store.Save(c, updated)
	c.Redirect(http.StatusSeeOther, constants.RouteDashboard)
}

func (app *App) dashboardHandler(c *gin.Context) {
	ctl, ok := app.requireActive(c)
	if !ok {
		return
	}

	tab := c.DefaultQuery("tab", "recommendations")
	key, known := dashboardTabs[tab]
	if !known {
		tab, key = "recommendations", viewcache.KeyRecommendations
	}

	// Recommendations and popular load as soon as the dashboard is entered;
	// browse waits for its first visit.
	ctl.Preload(viewcache.KeyRecommendations)
	ctl.Preload(viewcache.KeyPopular)
	ctl.OpenView(key)
	entry := ctl.WaitView(c.Request.Context(), key)

	q := strings.TrimSpace(c.Query("q"))
	items := entry.Data
	if key == viewcache.KeyBrowse {
		items = filterItems(items, q)
	}

	csrfToken, _ := c.Cookie(constants.CSRFCookieName)
	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"title":      "NextPlay",
		"tab":        tab,
		"viewKey":    string(key),
		"entry":      entry,
		"items":      items,
		"q":          q,
		"csrf_token": csrfToken,
	})
}

func (app *App) profileHandler(c *gin.Context) {
	ctl, ok := app.requireActive(c)
	if !ok {
		return
	}

	tab := c.DefaultQuery("tab", "liked")
	key, known := profileTabs[tab]
	if !known {
		tab, key = "liked", viewcache.KeyLiked
	}

	// Liked games load as soon as the profile is entered; the full rating
	// history waits for its first visit.
	ctl.Preload(viewcache.KeyLiked)
	ctl.OpenView(key)
	entry := ctl.WaitView(c.Request.Context(), key)

	likedCount := len(ctl.View(viewcache.KeyLiked).Data)
	ratedCount := len(ctl.View(viewcache.KeyAllRatings).Data)

	csrfToken, _ := c.Cookie(constants.CSRFCookieName)
	c.HTML(http.StatusOK, "profile.html", gin.H{
		"title":      "Your Profile",
		"tab":        tab,
		"viewKey":    string(key),
		"entry":      entry,
		"items":      entry.Data,
		"likedCount": likedCount,
		"ratedCount": ratedCount,
		"csrf_token": csrfToken,
	})
}

// viewHandler serves one view's panel as a fragment. While the entry is
// loading the fragment schedules its own re-poll, so a slow gateway never
// blocks the rest of the page.
func (app *App) viewHandler(c *gin.Context) {
	sess := app.Store.Load(c)
	if !sess.SignedIn() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}

	key, known := viewcache.ParseKey(c.Param("key"))
	if !known {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": constants.ErrorCodeUnknownView})
		return
	}

	ctl := app.controllerFor(sess)
	ctl.OpenView(key)
	entry := ctl.View(key)

	q := strings.TrimSpace(c.Query("q"))
	items := entry.Data
	if key == viewcache.KeyBrowse {
		items = filterItems(items, q)
	}

	csrfToken, _ := c.Cookie(constants.CSRFCookieName)
	c.HTML(http.StatusOK, "view-panel", gin.H{
		"viewKey":    string(key),
		"entry":      entry,
		"items":      items,
		"q":          q,
		"csrf_token": csrfToken,
	})
}

func (app *App) rateHandler(c *gin.Context) {
	sess := app.Store.Load(c)
	if !sess.SignedIn() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}

	gameID := c.PostForm("game_id")
	score, err := strconv.ParseFloat(c.PostForm("rating"), 64)
	if gameID == "" || err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": constants.ErrorCodeInvalidRating})
		return
	}

	ctl := app.controllerFor(sess)
	if err := ctl.Rate(c.Request.Context(), gameID, score); err != nil {
		if errors.Is(err, models.ErrInvalidRating) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": constants.ErrorCodeInvalidRating})
			return
		}
		util.LogWarn("Rating for game %s failed: %v", gameID, err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": constants.ErrorCodeNetwork})
		return
	}

	app.Metrics.RecordRatingSubmitted()

	if c.GetHeader("HX-Request") == "true" {
		// The views that depend on rating state were just invalidated;
		// re-activating the one the person is looking at starts its fresh
		// fetch.
		if key, known := viewcache.ParseKey(c.PostForm("view")); known {
			ctl.OpenView(key)
			entry := ctl.View(key)
			csrfToken, _ := c.Cookie(constants.CSRFCookieName)
			c.Header("HX-Trigger", "rating-accepted")
			c.HTML(http.StatusOK, "view-panel", gin.H{
				"viewKey":    string(key),
				"entry":      entry,
				"items":      entry.Data,
				"csrf_token": csrfToken,
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (app *App) logoutHandler(c *gin.Context) {
	sess := app.Store.Load(c)
	if sess.SignedIn() {
		ctl := app.controllerFor(sess)
		ctl.Logout()
		app.dropController(sess.Identity)
	}
	app.Store.Clear(c)
	c.Redirect(http.StatusSeeOther, constants.RouteHome)
}

func (app *App) healthzHandler(c *gin.Context) {
	app.ControllerMutex.RLock()
	controllerCount := len(app.Controllers)
	app.ControllerMutex.RUnlock()

	app.LimiterMutex.RLock()
	limiterCount := len(app.LimiterMap)
	app.LimiterMutex.RUnlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := time.Since(app.StartTime)

	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"env":                map[bool]string{true: "production", false: "development"}[app.IsProduction],
		"active_controllers": controllerCount,
		"active_limiters":    limiterCount,
		"memory_alloc_mb":    m.Alloc / 1024 / 1024,
		"memory_sys_mb":      m.Sys / 1024 / 1024,
		"memory_gc_count":    m.NumGC,
		"uptime":             util.FormatUptime(uptime),
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
}

// requireActive loads the session and rejects anything but the Active
// state, redirecting to the screen the state machine says is current.
func (app *App) requireActive(c *gin.Context) (*session.Controller, bool) {
	sess := app.Store.Load(c)
	if !sess.SignedIn() {
		c.Redirect(http.StatusSeeOther, constants.RouteHome)
		return nil, false
	}
	ctl := app.controllerFor(sess)
	if ctl.State() != session.StateActive {
		c.Redirect(http.StatusSeeOther, constants.RouteHome)
		return nil, false
	}
	return ctl, true
}

// filterItems narrows a record set by a case-insensitive match on name or
// genre. Pure read over cached data; never triggers a refetch.
func filterItems(items []models.CatalogItem, q string) []models.CatalogItem {
	if q == "" {
		return items
	}
	needle := strings.ToLower(q)
	return lo.Filter(items, func(item models.CatalogItem, _ int) bool {
		if strings.Contains(strings.ToLower(item.Game.Name), needle) {
			return true
		}
		return lo.SomeBy(item.Game.Genres, func(genre string) bool {
			return strings.Contains(strings.ToLower(genre), needle)
		})
	})
}
