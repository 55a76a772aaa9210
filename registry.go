package main

import (
	"time"

	"nextplay/internal/models"
	"nextplay/internal/session"
	"nextplay/internal/util"
)

// controllerFor returns the in-memory controller for the identity in sess,
// creating one from the persisted session on first sight. The controller
// carries the per-identity view cache and onboarding progress between
// requests.
func (app *App) controllerFor(sess models.Session) *session.Controller {
	app.ControllerMutex.RLock()
	ctl, exists := app.Controllers[sess.Identity]
	app.ControllerMutex.RUnlock()
	if exists {
		ctl.Touch()
		return ctl
	}

	app.ControllerMutex.Lock()
	defer app.ControllerMutex.Unlock()
	if ctl, exists = app.Controllers[sess.Identity]; exists {
		ctl.Touch()
		return ctl
	}

	util.LogInfo("Creating controller for identity: %s", sess.Identity)
	ctl = session.NewController(app.Gateway, sess, app.RatingAffects)
	app.Controllers[sess.Identity] = ctl
	return ctl
}

// registerController installs a freshly signed-up controller.
func (app *App) registerController(identity string, ctl *session.Controller) {
	app.ControllerMutex.Lock()
	app.Controllers[identity] = ctl
	app.ControllerMutex.Unlock()
}

// dropController removes an identity's controller, discarding its cache.
func (app *App) dropController(identity string) {
	app.ControllerMutex.Lock()
	delete(app.Controllers, identity)
	app.ControllerMutex.Unlock()
	util.LogInfo("Dropped controller for identity: %s", identity)
}

func (app *App) cleanupIdleControllers() {
	app.ControllerMutex.Lock()
	defer app.ControllerMutex.Unlock()

	cutoffTime := time.Now().Add(-app.ControllerTTL)
	removedCount := 0

	for identity, ctl := range app.Controllers {
		if ctl.IdleSince().Before(cutoffTime) {
			delete(app.Controllers, identity)
			removedCount++
		}
	}

	if removedCount > 0 {
		util.LogInfo("Cleaned up %d idle controllers", removedCount)
	}
}

func (app *App) cleanupStaleRateLimiters() {
	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()

	cutoffTime := time.Now().Add(-app.RateLimiterTTL)
	removedCount := 0

	for key, limWithTime := range app.LimiterMap {
		if limWithTime.LastAccess.Before(cutoffTime) {
			delete(app.LimiterMap, key)
			removedCount++
		}
	}

	if removedCount > 0 {
		util.LogInfo("Cleaned up %d stale rate limiters", removedCount)
	}
}

func (app *App) startCleanupRoutines() {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			app.cleanupIdleControllers()
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			app.cleanupStaleRateLimiters()
		}
	}()

	util.LogInfo("Started cleanup routines for controllers and rate limiters")
}
