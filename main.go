package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"

	"memorludo/internal/challenge"
	"memorludo/internal/constants"
	"memorludo/internal/deck"
	"memorludo/internal/handlers"
	"memorludo/internal/identity"
	"memorludo/internal/leaderboard"
	"memorludo/internal/ledger"
	"memorludo/internal/remote"
	"memorludo/internal/session"
	"memorludo/internal/store"
	"memorludo/internal/util"
)

func main() {
	_ = godotenv.Load()

	isProduction := os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production"
	util.LogInfo("Starting Memorludo in %s mode", map[bool]string{true: "production", false: "development"}[isProduction])

	catalog, err := deck.LoadCatalog(util.GetEnvString("CATALOG_PATH", "data/catalog.json"))
	if err != nil {
		util.LogFatal("Failed to load icon catalog: %v", err)
	}

	app := &App{
		IsProduction:   isProduction,
		StartTime:      time.Now(),
		CookieMaxAge:   util.GetEnvDuration("COOKIE_MAX_AGE", 30*24*time.Hour),
		RateLimitRPS:   util.GetEnvInt("RATE_LIMIT_RPS", 10),
		RateLimitBurst: util.GetEnvInt("RATE_LIMIT_BURST", 20),
		RateLimiterTTL: util.GetEnvDuration("RATE_LIMITER_TTL", 1*time.Hour),
		SessionTTL:     util.GetEnvDuration("SESSION_TTL", 3*time.Hour),
		LimiterMap:     make(map[string]*RateLimiterWithTime),
	}

	kv := store.OpenFileKV(util.GetEnvString("LOCAL_STORE_PATH", "data/local_store.json"))
	playerStore := store.NewPlayerStore(kv)
	board := leaderboard.New(playerStore)

	var remoteStore remote.Store
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       util.GetEnvInt("REDIS_DB", 0),
		})
		remoteStore = remote.NewRedisStore(client)
		util.LogInfo("Remote leaderboard store enabled at %s", addr)
	} else {
		util.LogInfo("No REDIS_ADDR configured, running with local storage only")
	}
	bestEffort := remote.NewBestEffort(remoteStore, util.GetEnvDuration("REMOTE_TIMEOUT", 3*time.Second))

	identitySecret := os.Getenv("IDENTITY_SECRET")
	if identitySecret == "" {
		identitySecret = "memorludo-dev-secret"
		util.LogWarn("IDENTITY_SECRET not set, using development secret")
	}

	rewardLedger := ledger.New(playerStore, board, bestEffort)
	orchestrator := challenge.New(playerStore, board, rewardLedger)
	sessions := session.NewManager(app.SessionTTL, app.CookieMaxAge, isProduction)

	app.Web = &handlers.App{
		Sessions:     sessions,
		Store:        playerStore,
		Board:        board,
		Ledger:       rewardLedger,
		Orch:         orchestrator,
		Remote:       bestEffort,
		Identity:     identity.NewProvider(identitySecret, app.CookieMaxAge, isProduction),
		Catalog:      catalog,
		ResolveDelay: util.GetEnvDuration("RESOLVE_DELAY", constants.ResolveDelayMS*time.Millisecond),
		UseTimers:    true,
		StartTime:    app.StartTime,
	}

	router := gin.Default()

	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(app.csrfMiddleware())
	router.Use(app.validateCSRFMiddleware())
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression))
	router.Use(cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	}))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		util.LogWarn("Failed to set trusted proxies: %v", err)
	}

	web := app.Web
	router.GET(constants.RouteHealthz, web.HealthzHandler)
	router.POST(constants.RouteRoundStart, app.rateLimitMiddleware(), web.StartRoundHandler)
	router.POST(constants.RouteRoundFlip, app.rateLimitMiddleware(), web.FlipHandler)
	router.POST(constants.RouteRoundPause, web.PauseHandler)
	router.POST(constants.RouteRoundResume, web.ResumeHandler)
	router.POST(constants.RouteRoundVisibility, web.VisibilityHandler)
	router.POST(constants.RouteRoundRestart, app.rateLimitMiddleware(), web.RestartHandler)
	router.GET(constants.RouteRoundState, web.StateHandler)
	router.GET(constants.RouteDaily, web.DailyHandler)
	router.POST(constants.RouteDailyStart, app.rateLimitMiddleware(), web.DailyStartHandler)
	router.GET(constants.RouteDuelOpponents, web.OpponentsHandler)
	router.POST(constants.RouteDuelStart, app.rateLimitMiddleware(), web.DuelStartHandler)
	router.GET(constants.RouteLeaderboard, web.LeaderboardHandler)
	router.GET(constants.RouteProfile, web.ProfileHandler)
	router.POST(constants.RouteDisplayName, app.rateLimitMiddleware(), web.DisplayNameHandler)
	router.POST(constants.RouteProfileReset, app.rateLimitMiddleware(), web.ResetStatsHandler)
	router.POST(constants.RouteSignOut, web.SignOutHandler)

	app.startCleanupRoutines(sessions)
	app.startServer(router)
}

func (app *App) startCleanupRoutines(sessions *session.Manager) {
	sessions.StartCleanup(10 * time.Minute)

	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			app.cleanupStaleRateLimiters()
		}
	}()

	util.LogInfo("Started cleanup routines for sessions and rate limiters")
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
