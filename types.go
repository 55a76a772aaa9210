package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"nextplay/internal/catalog"
	"nextplay/internal/metrics"
	"nextplay/internal/session"
	"nextplay/internal/viewcache"
)

type RateLimiterWithTime struct {
	Limiter    *rate.Limiter
	LastAccess time.Time
}

type App struct {
	Gateway         *catalog.Client
	Store           *session.Store
	Metrics         *metrics.Collector
	Controllers     map[string]*session.Controller
	ControllerMutex sync.RWMutex
	LimiterMap      map[string]*RateLimiterWithTime
	LimiterMutex    sync.RWMutex
	RatingAffects   []viewcache.Key
	IsProduction    bool
	StartTime       time.Time
	CookieMaxAge    time.Duration
	StaticCacheAge  time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
	RateLimiterTTL  time.Duration
	ControllerTTL   time.Duration
}
