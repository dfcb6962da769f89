package constants

const (
	// MaxPairCount is the largest deck any mode may request. The icon
	// catalog must always hold at least this many entries.
	MaxPairCount = 12

	// ResolveDelayMS is the resolution window after the second flip during
	// which further flips are rejected while the outcome is shown.
	ResolveDelayMS = 800

	// RestartDelayMS is the pause before a restart reshuffles the deck.
	RestartDelayMS = 500

	// MinDuelWager is the smallest stake a duel accepts.
	MinDuelWager = 10

	// MaxOpponents caps the duel opponent list drawn from the leaderboard.
	MaxOpponents = 5

	// HistoryLimit bounds the per-player game history kept locally.
	HistoryLimit = 50
)

const (
	SessionCookieName  = "session_id"
	PlayerCookieName   = "player_id"
	IdentityCookieName = "identity_token"
)

const (
	RouteHome            = "/"
	RouteHealthz         = "/healthz"
	RouteRoundStart      = "/round/start"
	RouteRoundFlip       = "/round/flip"
	RouteRoundPause      = "/round/pause"
	RouteRoundResume     = "/round/resume"
	RouteRoundVisibility = "/round/visibility"
	RouteRoundRestart    = "/round/restart"
	RouteRoundState      = "/round/state"
	RouteDaily           = "/daily"
	RouteDailyStart      = "/daily/start"
	RouteDuelOpponents   = "/duel/opponents"
	RouteDuelStart       = "/duel/start"
	RouteLeaderboard     = "/leaderboard"
	RouteProfile         = "/profile"
	RouteDisplayName     = "/profile/display-name"
	RouteProfileReset    = "/profile/reset"
	RouteSignOut         = "/signout"
)

const (
	ErrorCodeInvalidDifficulty = "invalid_difficulty"
	ErrorCodeNoActiveRound     = "no_active_round"
	ErrorCodeDailyLocked       = "daily_locked"
	ErrorCodeInvalidWager      = "invalid_wager"
	ErrorCodeUnknownOpponent   = "unknown_opponent"
	ErrorCodeNotLoggedIn       = "not_logged_in"
	ErrorCodeInvalidName       = "invalid_display_name"
)

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
)
