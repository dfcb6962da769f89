package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"memorludo/internal/handlers"
)

// RateLimiterWithTime pairs a limiter with its last use so stale entries
// can be swept.
type RateLimiterWithTime struct {
	Limiter    *rate.Limiter
	LastAccess time.Time
}

// App is the process-level state: the wired HTTP surface plus the bits the
// middleware needs.
type App struct {
	Web *handlers.App

	IsProduction   bool
	StartTime      time.Time
	CookieMaxAge   time.Duration
	RateLimitRPS   int
	RateLimitBurst int
	RateLimiterTTL time.Duration
	SessionTTL     time.Duration

	LimiterMap   map[string]*RateLimiterWithTime
	LimiterMutex sync.RWMutex
}
