package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"memorludo/internal/constants"
	"memorludo/internal/engine"
	"memorludo/internal/models"
	"memorludo/internal/util"
)

// RoundResult captures what the last finished round settled to, so the
// client can show it after the fact.
type RoundResult struct {
	Outcome       models.RoundOutcome `json:"outcome"`
	PointsAwarded int                 `json:"pointsAwarded"`
	ErrorCode     string              `json:"errorCode,omitempty"`
}

// GameSession is the per-browser state: the active round plus who is
// playing it.
type GameSession struct {
	Round          *engine.Round
	Kind           models.ChallengeKind // empty for free play
	PlayerID       string
	DisplayName    string
	LastAccessTime time.Time

	resultMu   sync.Mutex
	lastResult *RoundResult
}

// SetResult records the settled outcome of the session's round. Called from
// the round's finish hook, possibly on a ticker goroutine.
func (gs *GameSession) SetResult(res *RoundResult) {
	gs.resultMu.Lock()
	gs.lastResult = res
	gs.resultMu.Unlock()
}

// Result returns the last settled outcome, or nil when the round has not
// finished.
func (gs *GameSession) Result() *RoundResult {
	gs.resultMu.Lock()
	defer gs.resultMu.Unlock()
	return gs.lastResult
}

// Manager keys sessions by a uuid cookie and expires idle ones, in the same
// shape the rest of the app expects for its cleanup routines.
type Manager struct {
	mu           sync.RWMutex
	sessions     map[string]*GameSession
	ttl          time.Duration
	cookieMaxAge time.Duration
	isProduction bool
}

func NewManager(ttl, cookieMaxAge time.Duration, isProduction bool) *Manager {
	return &Manager{
		sessions:     make(map[string]*GameSession),
		ttl:          ttl,
		cookieMaxAge: cookieMaxAge,
		isProduction: isProduction,
	}
}

// GetOrCreateSessionID returns the session cookie, minting one when absent.
func (m *Manager) GetOrCreateSessionID(c *gin.Context) string {
	sessionID, err := c.Cookie(constants.SessionCookieName)
	if err != nil || len(sessionID) < 10 {
		sessionID = uuid.NewString()
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(constants.SessionCookieName, sessionID, int(m.cookieMaxAge.Seconds()), "/", "", m.isProduction, true)
		util.LogInfo("Created new session: %s", sessionID)
	}
	return sessionID
}

// GetOrCreatePlayerID resolves the stable per-browser player id, preferring
// the authenticated identity when present.
func (m *Manager) GetOrCreatePlayerID(c *gin.Context, loggedIn bool, userID string) string {
	if loggedIn && userID != "" {
		return userID
	}
	playerID, err := c.Cookie(constants.PlayerCookieName)
	if err != nil || playerID == "" {
		playerID = "user-" + uuid.NewString()[:8]
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(constants.PlayerCookieName, playerID, int(m.cookieMaxAge.Seconds()), "/", "", m.isProduction, true)
		util.LogInfo("Created new anonymous player id: %s", playerID)
	}
	return playerID
}

// Get returns the session, refreshing its last-access time.
func (m *Manager) Get(sessionID string) (*GameSession, bool) {
	m.mu.RLock()
	gs, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		m.mu.Lock()
		gs.LastAccessTime = time.Now()
		m.mu.Unlock()
	}
	return gs, ok
}

// Put replaces the session state.
func (m *Manager) Put(sessionID string, gs *GameSession) {
	m.mu.Lock()
	gs.LastAccessTime = time.Now()
	m.sessions[sessionID] = gs
	m.mu.Unlock()
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupExpired drops idle sessions. Unfinished challenge rounds score
// their abandonment loss through the round's finish hook; free-play rounds
// are just torn down.
func (m *Manager) CleanupExpired() {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	expired := make(map[string]*GameSession)
	for id, gs := range m.sessions {
		if gs.LastAccessTime.Before(cutoff) {
			expired[id] = gs
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for id, gs := range expired {
		if gs.Round != nil {
			if gs.Kind != "" {
				gs.Round.Abandon()
			}
			gs.Round.Teardown()
		}
		util.LogInfo("Cleaned up expired session %s", id)
	}
	if len(expired) > 0 {
		util.LogInfo("Cleaned up %d expired sessions", len(expired))
	}
}

// StartCleanup launches the periodic sweep.
func (m *Manager) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for range ticker.C {
			m.CleanupExpired()
		}
	}()
	util.LogInfo("Started session cleanup goroutine")
}
