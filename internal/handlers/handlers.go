package handlers

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"memorludo/internal/challenge"
	"memorludo/internal/constants"
	"memorludo/internal/deck"
	"memorludo/internal/engine"
	"memorludo/internal/identity"
	"memorludo/internal/leaderboard"
	"memorludo/internal/ledger"
	"memorludo/internal/models"
	"memorludo/internal/remote"
	"memorludo/internal/session"
	"memorludo/internal/store"
	"memorludo/internal/util"
)

// App bundles everything the HTTP surface needs.
type App struct {
	Sessions     *session.Manager
	Store        *store.PlayerStore
	Board        *leaderboard.Board
	Ledger       *ledger.Ledger
	Orch         *challenge.Orchestrator
	Remote       *remote.BestEffort
	Identity     *identity.Provider
	Catalog      []deck.IconEntry
	ResolveDelay time.Duration
	UseTimers    bool
	StartTime    time.Time
}

// player resolves who is making the request: the session cookie plus the
// stable player id (authenticated identity when present, anonymous cookie
// otherwise).
func (a *App) player(c *gin.Context) (sessionID, playerID, displayName string) {
	ident := a.Identity.Current(c)
	sessionID = a.Sessions.GetOrCreateSessionID(c)
	playerID = a.Sessions.GetOrCreatePlayerID(c, ident.IsLoggedIn, ident.UserID)

	displayName = ident.DisplayName
	if displayName == "" {
		displayName = a.Store.GetPlayer(playerID).DisplayName
	}
	if displayName == "" {
		displayName = "You"
	}
	return sessionID, playerID, displayName
}

func errorJSON(c *gin.Context, status int, code string) {
	c.JSON(status, gin.H{"error": code})
}

// teardownRound cancels whatever round the session still holds. Challenge
// abandonment is scored through the in-progress markers, so the old round is
// only ever cancelled, never finished. Must run before the orchestrator
// begins the next round, otherwise a late timer finish could settle the old
// round a second time after its marker was already scored as abandoned.
func (a *App) teardownRound(sessionID string) {
	if gs, ok := a.Sessions.Get(sessionID); ok && gs.Round != nil {
		gs.Round.Teardown()
	}
}

// startRound starts a fresh round from the given parameters.
func (a *App) startRound(c *gin.Context, sessionID, playerID, displayName string, kind models.ChallengeKind, cs models.ChallengeSession) {
	gs := &session.GameSession{Kind: kind, PlayerID: playerID, DisplayName: displayName}
	gs.Round = engine.New(engine.Config{
		ResolveDelay: a.ResolveDelay,
		UseTimers:    a.UseTimers,
		OnFinish: func(outcome models.RoundOutcome) {
			points, _, err := a.Orch.Resolve(playerID, displayName, kind, outcome)
			res := &session.RoundResult{Outcome: outcome, PointsAwarded: points}
			if err != nil {
				res.ErrorCode = constants.ErrorCodeUnknownOpponent
			}
			gs.SetResult(res)
		},
	})
	gs.Round.Start(cs.Difficulty, deck.Build(a.Catalog, cs.PairCount), cs.TimeLimit)
	a.Sessions.Put(sessionID, gs)

	util.LogInfo("Started %s round for session %s (player %s): %s, %d pairs, %ds",
		kindLabel(kind), sessionID, playerID, cs.Difficulty, cs.PairCount, cs.TimeLimit)
	a.roundJSON(c, gs)
}

func kindLabel(kind models.ChallengeKind) string {
	if kind == "" {
		return "free-play"
	}
	return string(kind)
}

func (a *App) roundJSON(c *gin.Context, gs *session.GameSession) {
	payload := gin.H{
		"round":        gs.Round.Snapshot(),
		"kind":         gs.Kind,
		"resolveDelay": constants.ResolveDelayMS,
		"restartDelay": constants.RestartDelayMS,
	}
	if res := gs.Result(); res != nil {
		payload["result"] = res
	}
	c.JSON(http.StatusOK, payload)
}

// activeSession fetches the caller's session or rejects with a 400.
func (a *App) activeSession(c *gin.Context, sessionID string) (*session.GameSession, bool) {
	gs, ok := a.Sessions.Get(sessionID)
	if !ok || gs.Round == nil {
		errorJSON(c, http.StatusBadRequest, constants.ErrorCodeNoActiveRound)
		return nil, false
	}
	return gs, true
}

// StartRoundHandler begins a free-play round at the requested difficulty.
func (a *App) StartRoundHandler(c *gin.Context) {
	sessionID, playerID, displayName := a.player(c)

	var req struct {
		Difficulty models.Difficulty `json:"difficulty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !req.Difficulty.Valid() {
		errorJSON(c, http.StatusBadRequest, constants.ErrorCodeInvalidDifficulty)
		return
	}

	a.teardownRound(sessionID)
	cs := a.Orch.BeginCasual(playerID, req.Difficulty)
	a.startRound(c, sessionID, playerID, displayName, "", cs)
}

// FlipHandler flips one card. Invalid flips are silent no-ops, so the
// response is always the current snapshot.
func (a *App) FlipHandler(c *gin.Context) {
	sessionID, _, _ := a.player(c)
	gs, ok := a.activeSession(c, sessionID)
	if !ok {
		return
	}

	var req struct {
		Index int `json:"index"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	gs.Round.Flip(req.Index)
	a.roundJSON(c, gs)
}

func (a *App) PauseHandler(c *gin.Context) {
	sessionID, _, _ := a.player(c)
	gs, ok := a.activeSession(c, sessionID)
	if !ok {
		return
	}
	gs.Round.Pause()
	a.roundJSON(c, gs)
}

func (a *App) ResumeHandler(c *gin.Context) {
	sessionID, _, _ := a.player(c)
	gs, ok := a.activeSession(c, sessionID)
	if !ok {
		return
	}
	gs.Round.Resume()
	a.roundJSON(c, gs)
}

// VisibilityHandler pauses on page hide. Becoming visible again does not
// resume; the player does that explicitly.
func (a *App) VisibilityHandler(c *gin.Context) {
	sessionID, _, _ := a.player(c)
	gs, ok := a.activeSession(c, sessionID)
	if !ok {
		return
	}

	var req struct {
		Hidden bool `json:"hidden"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	gs.Round.VisibilityChange(req.Hidden)
	a.roundJSON(c, gs)
}

// RestartHandler reshuffles a fresh free-play round at the same difficulty.
// Unfinished daily/duel rounds settle as abandonment losses through their
// markers when the new round begins.
func (a *App) RestartHandler(c *gin.Context) {
	sessionID, playerID, displayName := a.player(c)
	gs, ok := a.activeSession(c, sessionID)
	if !ok {
		return
	}

	difficulty := gs.Round.Snapshot().Difficulty
	a.teardownRound(sessionID)
	cs := a.Orch.BeginCasual(playerID, difficulty)
	a.startRound(c, sessionID, playerID, displayName, "", cs)
}

// StateHandler returns the current round snapshot.
func (a *App) StateHandler(c *gin.Context) {
	sessionID, _, _ := a.player(c)
	gs, ok := a.activeSession(c, sessionID)
	if !ok {
		return
	}
	a.roundJSON(c, gs)
}

// DailyHandler describes today's challenge and whether the player may
// attempt it. Availability is decided from local state only.
func (a *App) DailyHandler(c *gin.Context) {
	_, playerID, _ := a.player(c)
	rec := a.Store.GetPlayer(playerID)
	now := time.Now()

	c.JSON(http.StatusOK, gin.H{
		"params":        challenge.DailyParams(now),
		"available":     challenge.IsDailyAvailable(rec, now),
		"streak":        rec.DailyChallenge.Streak,
		"maxStreak":     rec.DailyChallenge.MaxStreak,
		"lastCompleted": rec.DailyChallenge.LastCompletedDate,
		"attemptsToday": rec.DailyChallenge.AttemptsToday,
	})
}

// DailyStartHandler begins today's challenge round.
func (a *App) DailyStartHandler(c *gin.Context) {
	sessionID, playerID, displayName := a.player(c)

	a.teardownRound(sessionID)
	cs, err := a.Orch.BeginDaily(playerID)
	if err != nil {
		errorJSON(c, http.StatusConflict, constants.ErrorCodeDailyLocked)
		return
	}
	a.startRound(c, sessionID, playerID, displayName, models.ChallengeDaily, cs)
}

// OpponentsHandler lists duel candidates from the leaderboard.
func (a *App) OpponentsHandler(c *gin.Context) {
	_, playerID, _ := a.player(c)
	c.JSON(http.StatusOK, gin.H{
		"opponents": a.Board.Opponents(playerID, constants.MaxOpponents),
		"points":    a.Store.GetTotalPoints(playerID),
		"minWager":  constants.MinDuelWager,
	})
}

// DuelStartHandler validates the stake and begins the duel round. The wager
// is not escrowed; it settles when the round resolves.
func (a *App) DuelStartHandler(c *gin.Context) {
	sessionID, playerID, displayName := a.player(c)

	var req struct {
		OpponentID string `json:"opponentId"`
		Wager      int    `json:"wager"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request")
		return
	}

	a.teardownRound(sessionID)
	cs, err := a.Orch.BeginDuel(playerID, req.OpponentID, req.Wager)
	switch err {
	case nil:
	case challenge.ErrUnknownOpponent:
		errorJSON(c, http.StatusBadRequest, constants.ErrorCodeUnknownOpponent)
		return
	default:
		errorJSON(c, http.StatusBadRequest, constants.ErrorCodeInvalidWager)
		return
	}
	a.startRound(c, sessionID, playerID, displayName, models.ChallengeDuel, cs)
}

// LeaderboardHandler serves the ranking. The remote store is preferred when
// it answers; the local snapshot is always the fallback.
func (a *App) LeaderboardHandler(c *gin.Context) {
	limit := 25
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	source := "local"
	entries := a.Remote.ListTopPlayers(limit)
	if len(entries) == 0 {
		entries = a.Board.Top(limit)
	} else {
		source = "remote"
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "source": source})
}

// ProfileHandler returns the player record and rank. For an authenticated
// player this is also the moment local stats sync to the remote mirror.
func (a *App) ProfileHandler(c *gin.Context) {
	_, playerID, displayName := a.player(c)
	ident := a.Identity.Current(c)

	rec := a.Store.GetPlayer(playerID)
	if rec.DisplayName == "" {
		rec.DisplayName = displayName
		a.Store.SavePlayer(rec)
	}

	if ident.IsLoggedIn {
		if rec.Email == "" && ident.Email != "" {
			rec.Email = ident.Email
			a.Store.SavePlayer(rec)
		}
		a.Remote.CreatePlayer(rec)
		a.Remote.SyncStats(rec)
	}

	rank, _ := a.Board.Rank(playerID)
	c.JSON(http.StatusOK, gin.H{
		"identity": ident,
		"record":   rec,
		"rank":     rank,
	})
}

// DisplayNameHandler renames the player everywhere the name is stored.
func (a *App) DisplayNameHandler(c *gin.Context) {
	_, playerID, _ := a.player(c)

	var req struct {
		DisplayName string `json:"displayName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, constants.ErrorCodeInvalidName)
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		errorJSON(c, http.StatusBadRequest, constants.ErrorCodeInvalidName)
		return
	}

	rec := a.Store.GetPlayer(playerID)
	rec.DisplayName = name
	a.Store.SavePlayer(rec)
	a.Board.Rename(playerID, name)

	c.JSON(http.StatusOK, gin.H{"displayName": name})
}

// ResetStatsHandler zeroes every counter for the player.
func (a *App) ResetStatsHandler(c *gin.Context) {
	_, playerID, _ := a.player(c)
	a.Store.ResetStats(playerID)
	util.LogInfo("Reset stats for player %s", playerID)
	c.JSON(http.StatusOK, gin.H{"record": a.Store.GetPlayer(playerID)})
}

// SignOutHandler clears the identity cookie. The anonymous player id stays.
func (a *App) SignOutHandler(c *gin.Context) {
	a.Identity.SignOut(c)
	c.JSON(http.StatusOK, gin.H{"signedOut": true})
}

// HealthzHandler reports process vitals.
func (a *App) HealthzHandler(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"icons_loaded":    len(a.Catalog),
		"active_sessions": a.Sessions.Count(),
		"remote_store":    a.Remote.Enabled(),
		"memory_alloc_mb": m.Alloc / 1024 / 1024,
		"memory_sys_mb":   m.Sys / 1024 / 1024,
		"memory_gc_count": m.NumGC,
		"uptime":          util.FormatUptime(time.Since(a.StartTime)),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}
