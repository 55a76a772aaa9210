package main

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"

	ginGzip "github.com/gin-contrib/gzip"

	"github.com/gin-gonic/gin"

	"nextplay/internal/catalog"
	"nextplay/internal/constants"
	"nextplay/internal/metrics"
	"nextplay/internal/rating"
	"nextplay/internal/session"
	"nextplay/internal/util"
)

func main() {
	_ = godotenv.Load()

	isProduction := os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production"
	util.LogInfo("Starting NextPlay in %s mode", map[bool]string{true: "production", false: "development"}[isProduction])

	catalogURL := util.GetEnvString("CATALOG_URL", "http://localhost:8000")
	collector := metrics.NewCollector()
	gateway := catalog.New(catalogURL, util.GetEnvDuration("CATALOG_TIMEOUT", 10*time.Second))
	gateway.SetObserver(collector)
	util.LogInfo("Catalog gateway pointed at %s", catalogURL)

	affects := rating.DefaultAffects()
	if util.GetEnvBool("POPULAR_TRACKS_RATINGS", false) {
		affects = rating.AffectsWithPopular()
		util.LogInfo("Popularity view joins the rating dependency set")
	}

	app := &App{
		Gateway:        gateway,
		Metrics:        collector,
		Controllers:    make(map[string]*session.Controller),
		LimiterMap:     make(map[string]*RateLimiterWithTime),
		RatingAffects:  affects,
		IsProduction:   isProduction,
		StartTime:      time.Now(),
		CookieMaxAge:   util.GetEnvDuration("COOKIE_MAX_AGE", 30*24*time.Hour),
		StaticCacheAge: util.GetEnvDuration("STATIC_CACHE_AGE", 5*time.Minute),
		RateLimitRPS:   util.GetEnvInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst: util.GetEnvInt("RATE_LIMIT_BURST", 10),
		RateLimiterTTL: util.GetEnvDuration("RATE_LIMITER_TTL", 1*time.Hour),
		ControllerTTL:  util.GetEnvDuration("CONTROLLER_TTL", 3*time.Hour),
	}
	app.Store = session.NewStore(app.CookieMaxAge, isProduction)

	router := gin.Default()

	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(app.metricsMiddleware())

	router.Use(app.csrfMiddleware())
	router.Use(app.validateCSRFMiddleware())

	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif"}),
		ginGzip.WithExcludedPaths([]string{"/static/fonts"})))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		util.LogWarn("Failed to set trusted proxies: %v", err)
	}

	router.Use(func(c *gin.Context) {
		app.applyCacheHeaders(c, isProduction)
	})

	funcMap := template.FuncMap{
		"hasPrefix": strings.HasPrefix,
		"score": func(f *float64) string {
			if f == nil {
				return ""
			}
			return fmt.Sprintf("%.2f", *f)
		},
	}

	var baseTplDir string
	if isProduction && util.DirExists("dist") {
		util.LogInfo("Serving assets from dist/ directory")
		baseTplDir = filepath.ToSlash(filepath.Join("dist", "templates"))
		router.Static("/static", "./dist/static")
	} else {
		util.LogInfo("Serving development assets from source directories")
		baseTplDir = "templates"
		router.Static("/static", "./static")
	}

	rootPattern := filepath.ToSlash(filepath.Join(baseTplDir, "*.html"))
	partialsPattern := filepath.ToSlash(filepath.Join(baseTplDir, "partials", "*.html"))

	master := template.New("").Funcs(funcMap)
	if _, err := master.ParseGlob(rootPattern); err != nil {
		util.LogFatal("Failed to parse root templates: %v", err)
	}
	if _, err := master.ParseGlob(partialsPattern); err != nil {
		util.LogFatal("Failed to parse partial templates: %v", err)
	}
	router.SetHTMLTemplate(master)

	router.GET(constants.RouteHome, app.homeHandler)
	router.POST(constants.RouteSignUp, app.rateLimitMiddleware(), app.signUpHandler)
	router.POST(constants.RouteOnboardingLike, app.rateLimitMiddleware(), app.onboardingLikeHandler)
	router.POST(constants.RouteOnboardingComplete, app.rateLimitMiddleware(), app.onboardingCompleteHandler)
	router.GET(constants.RouteDashboard, app.dashboardHandler)
	router.GET(constants.RouteProfile, app.profileHandler)
	router.GET(constants.RouteView, app.viewHandler)
	router.POST(constants.RouteRate, app.rateLimitMiddleware(), app.rateHandler)
	router.POST(constants.RouteLogout, app.logoutHandler)
	router.GET("/healthz", app.healthzHandler)
	router.GET("/metrics", gin.WrapH(collector.Handler()))

	app.startCleanupRoutines()

	app.startServer(router)
}

func (app *App) startServer(router *gin.Engine) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		util.LogInfo("Shutdown signal received, shutting down server gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			util.LogWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	util.LogInfo("Server starting on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		util.LogFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	util.LogInfo("Server shutdown complete")
}

func (app *App) applyCacheHeaders(c *gin.Context, production bool) {
	if production {
		if strings.HasPrefix(c.Request.URL.Path, "/static/") {
			cachecontrol.New(cachecontrol.Config{
				Public: true,
				MaxAge: cachecontrol.Duration(app.StaticCacheAge),
			})(c)
			c.Header("Vary", "Accept-Encoding")
		} else {
			cachecontrol.New(cachecontrol.Config{
				NoStore:        true,
				NoCache:        true,
				MustRevalidate: true,
			})(c)
		}
	} else {
		cachecontrol.New(cachecontrol.Config{
			NoStore:        true,
			NoCache:        true,
			MustRevalidate: true,
		})(c)
	}
}
