package challenge

import (
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"memorludo/internal/constants"
	"memorludo/internal/leaderboard"
	"memorludo/internal/ledger"
	"memorludo/internal/models"
	"memorludo/internal/store"
	"memorludo/internal/util"
)

var (
	// ErrDailyLocked means today's challenge was already won.
	ErrDailyLocked = errors.New("daily challenge already completed today")
	// ErrInvalidWager covers wagers below the minimum or beyond the
	// player's balance.
	ErrInvalidWager = errors.New("wager out of range")
	// ErrUnknownOpponent means the chosen opponent is not on the leaderboard.
	ErrUnknownOpponent = errors.New("opponent not on leaderboard")
)

// Difficulty presets for free play.
var presets = map[models.Difficulty]models.ChallengeSession{
	models.DifficultyEasy:   {Difficulty: models.DifficultyEasy, PairCount: 6, TimeLimit: 60},
	models.DifficultyMedium: {Difficulty: models.DifficultyMedium, PairCount: 8, TimeLimit: 60},
	models.DifficultyHard:   {Difficulty: models.DifficultyHard, PairCount: 9, TimeLimit: 60},
}

// Preset returns the pair count and time limit of a free-play difficulty.
func Preset(d models.Difficulty) models.ChallengeSession {
	p, ok := presets[d]
	if !ok {
		return presets[models.DifficultyMedium]
	}
	return p
}

// Daily parameter option lists. Derivation is a pure function of the
// calendar date so every player sees the same challenge without any server
// coordination.
var (
	dailyPairOptions = []int{8, 9, 10, 12}
	dailyTimeOptions = []int{45, 60, 75, 90}
)

// DailyParams derives today's challenge from the date.
func DailyParams(date time.Time) models.ChallengeSession {
	h := fnv.New32a()
	h.Write([]byte(models.DateKey(date)))
	sum := h.Sum32()

	difficulty := models.Difficulties[sum%3]
	pairs := dailyPairOptions[(sum/3)%uint32(len(dailyPairOptions))]
	limit := dailyTimeOptions[(sum/7)%uint32(len(dailyTimeOptions))]

	return models.ChallengeSession{
		Kind:       models.ChallengeDaily,
		Difficulty: difficulty,
		PairCount:  pairs,
		TimeLimit:  limit,
	}
}

// DuelParams returns the fixed duel round shape.
func DuelParams(opponent models.PlayerRef, wager int) models.ChallengeSession {
	return models.ChallengeSession{
		Kind:       models.ChallengeDuel,
		Difficulty: models.DifficultyMedium,
		PairCount:  8,
		TimeLimit:  60,
		Wager:      wager,
		Opponent:   &opponent,
	}
}

// IsDailyAvailable reports whether the player may start today's challenge.
// Only a recorded win for today locks it; losses keep it retryable.
func IsDailyAvailable(rec models.PlayerRecord, date time.Time) bool {
	return rec.DailyChallenge.LastCompletedDate != models.DateKey(date)
}

// Orchestrator gates daily challenges and duels, and routes finished rounds
// to the reward ledger exactly once. Begin and Resolve calls for the same
// player are serialized, so the in-progress marker acts as a settlement
// token: whoever takes it settles the round, everyone else no-ops.
type Orchestrator struct {
	store  *store.PlayerStore
	board  *leaderboard.Board
	ledger *ledger.Ledger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(s *store.PlayerStore, board *leaderboard.Board, l *ledger.Ledger) *Orchestrator {
	return &Orchestrator{
		store:  s,
		board:  board,
		ledger: l,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (o *Orchestrator) playerLock(playerID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lk, ok := o.locks[playerID]
	if !ok {
		lk = &sync.Mutex{}
		o.locks[playerID] = lk
	}
	return lk
}

// NewWithClock is test-only for deterministic dates.
func NewWithClock(s *store.PlayerStore, board *leaderboard.Board, l *ledger.Ledger, now func() time.Time) *Orchestrator {
	o := New(s, board, l)
	o.now = now
	return o
}

// BeginCasual prepares a free-play round. Any challenge still marked in
// progress is scored as an abandonment loss first.
func (o *Orchestrator) BeginCasual(playerID string, difficulty models.Difficulty) models.ChallengeSession {
	lk := o.playerLock(playerID)
	lk.Lock()
	defer lk.Unlock()

	o.abandonMarked(playerID)
	return Preset(difficulty)
}

// BeginDaily gates and prepares today's challenge and counts the attempt.
func (o *Orchestrator) BeginDaily(playerID string) (models.ChallengeSession, error) {
	lk := o.playerLock(playerID)
	lk.Lock()
	defer lk.Unlock()

	o.abandonMarked(playerID)

	rec := o.store.GetPlayer(playerID)
	if !IsDailyAvailable(rec, o.now()) {
		return models.ChallengeSession{}, ErrDailyLocked
	}

	session := DailyParams(o.now())
	o.ledger.RecordAttempt(playerID)
	o.store.SetActiveChallenge(playerID, session)
	return session, nil
}

// BeginDuel validates the opponent and wager and prepares the duel round.
// The wager is not escrowed; settlement happens at resolution. Duel starts
// do not touch the attempt counter; it tracks the calendar-day challenge
// only.
func (o *Orchestrator) BeginDuel(playerID, opponentID string, wager int) (models.ChallengeSession, error) {
	lk := o.playerLock(playerID)
	lk.Lock()
	defer lk.Unlock()

	o.abandonMarked(playerID)

	if opponentID == "" || opponentID == playerID || !o.board.Contains(opponentID) {
		return models.ChallengeSession{}, ErrUnknownOpponent
	}
	if wager < constants.MinDuelWager || wager > o.store.GetTotalPoints(playerID) {
		return models.ChallengeSession{}, ErrInvalidWager
	}

	opponent := o.store.GetPlayer(opponentID)
	session := DuelParams(models.PlayerRef{ID: opponentID, DisplayName: opponent.DisplayName}, wager)
	o.store.SetActiveChallenge(playerID, session)
	return session, nil
}

// Resolve routes one finished round to the ledger. kind is the round's own
// type: a challenge round settles only by taking its in-progress marker, so
// a stale finish arriving after the marker was already scored (abandonment,
// session cleanup) is a no-op instead of a second settlement.
func (o *Orchestrator) Resolve(playerID, displayName string, kind models.ChallengeKind, outcome models.RoundOutcome) (int, models.PlayerRecord, error) {
	lk := o.playerLock(playerID)
	lk.Lock()
	defer lk.Unlock()
	return o.resolveLocked(playerID, displayName, kind, outcome)
}

func (o *Orchestrator) resolveLocked(playerID, displayName string, kind models.ChallengeKind, outcome models.RoundOutcome) (int, models.PlayerRecord, error) {
	if kind == "" {
		points := ledger.ScoreRound(outcome)
		rec := o.ledger.ApplyToPlayer(playerID, displayName, points, outcome)
		return points, rec, nil
	}

	session, active := o.store.GetActiveChallenge(playerID)
	if !active || session.Kind != kind {
		util.LogInfo("Ignoring stale %s finish for player %s, round already settled", kind, playerID)
		return 0, o.store.GetPlayer(playerID), nil
	}
	o.store.ClearActiveChallenge(playerID)

	switch kind {
	case models.ChallengeDuel:
		delta, rec, err := o.ledger.SettleDuel(playerID, session.Opponent.ID, session.Wager, outcome)
		if err != nil {
			util.LogWarn("Duel settlement aborted for player %s: %v", playerID, err)
			return 0, rec, err
		}
		return delta, rec, nil

	default:
		streak := o.ledger.RecordDailyCompletion(playerID, outcome.IsWin)
		outcome.IsDailyChallenge = true
		outcome.CurrentStreak = streak
		points := ledger.ScoreRound(outcome)
		rec := o.ledger.ApplyToPlayer(playerID, displayName, points, outcome)
		return points, rec, nil
	}
}

// abandonMarked scores a leftover in-progress challenge as a loss. Covers
// markers that outlived their round, e.g. across a server restart. Callers
// hold the player's lock.
func (o *Orchestrator) abandonMarked(playerID string) {
	session, active := o.store.GetActiveChallenge(playerID)
	if !active {
		return
	}
	util.LogInfo("Scoring abandoned %s challenge as loss for player %s", session.Kind, playerID)
	loss := models.RoundOutcome{
		IsWin:            false,
		Difficulty:       session.Difficulty,
		TimeSpentSeconds: session.TimeLimit,
	}
	if _, _, err := o.resolveLocked(playerID, "", session.Kind, loss); err != nil {
		util.LogWarn("Failed to settle abandoned challenge for player %s: %v", playerID, err)
	}
}
