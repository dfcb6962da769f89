package ledger

import (
	"errors"
	"time"

	"memorludo/internal/constants"
	"memorludo/internal/leaderboard"
	"memorludo/internal/models"
	"memorludo/internal/remote"
	"memorludo/internal/store"
	"memorludo/internal/util"
)

// Point rewards. These values are load-bearing: stored totals were earned
// under them, so they must never drift.
const (
	EasyWin         = 50
	MediumWin       = 100
	HardWin         = 150
	DailyMultiplier = 2
	StreakBonus     = 25
)

var (
	// ErrOpponentNotFound aborts a duel settlement when the opponent has no
	// leaderboard entry; nothing is mutated in that case.
	ErrOpponentNotFound = errors.New("duel opponent not found on leaderboard")
	// ErrPlayerNotFound aborts a duel settlement for an unknown player.
	ErrPlayerNotFound = errors.New("player not found")
)

// Ledger is the single place that turns round outcomes into persisted
// points and stats. Nothing else increments player counters.
type Ledger struct {
	store  *store.PlayerStore
	board  *leaderboard.Board
	remote *remote.BestEffort
	now    func() time.Time
}

func New(s *store.PlayerStore, board *leaderboard.Board, rem *remote.BestEffort) *Ledger {
	return &Ledger{store: s, board: board, remote: rem, now: time.Now}
}

// NewWithClock is test-only for deterministic timestamps.
func NewWithClock(s *store.PlayerStore, board *leaderboard.Board, rem *remote.BestEffort, now func() time.Time) *Ledger {
	l := New(s, board, rem)
	l.now = now
	return l
}

// ScoreRound computes the points a round outcome is worth. Losses score
// zero; daily challenges double the base; a streak past one day adds a flat
// bonus per prior day.
func ScoreRound(outcome models.RoundOutcome) int {
	if !outcome.IsWin {
		return 0
	}

	var points int
	switch outcome.Difficulty {
	case models.DifficultyEasy:
		points = EasyWin
	case models.DifficultyHard:
		points = HardWin
	default:
		points = MediumWin
	}

	if outcome.IsDailyChallenge {
		points *= DailyMultiplier
	}
	if outcome.CurrentStreak > 1 {
		points += (outcome.CurrentStreak - 1) * StreakBonus
	}
	return points
}

// recordOutcome mutates the record's counters, best times, win rates, total
// and bounded history for one resolved round.
func (l *Ledger) recordOutcome(rec *models.PlayerRecord, pointsDelta int, outcome models.RoundOutcome) {
	rec.GamesPlayed++
	if outcome.IsWin {
		rec.GamesWon++
	}
	if betterTime(outcome, rec.BestTime) {
		rec.BestTime = outcome.TimeSpentSeconds
	}
	rec.WinRate = winRate(rec.GamesWon, rec.GamesPlayed)

	bucket := rec.PerDifficulty[outcome.Difficulty]
	bucket.Games++
	if outcome.IsWin {
		bucket.Wins++
	}
	if betterTime(outcome, bucket.BestTime) {
		bucket.BestTime = outcome.TimeSpentSeconds
	}
	bucket.WinRate = winRate(bucket.Wins, bucket.Games)
	rec.PerDifficulty[outcome.Difficulty] = bucket

	rec.TotalPoints += pointsDelta

	result := "loss"
	if outcome.IsWin {
		result = "win"
	}
	rec.History = append(rec.History, models.GameRecord{
		Timestamp:    l.now(),
		PointsEarned: pointsDelta,
		Result:       result,
		Difficulty:   outcome.Difficulty,
		TimeSpent:    outcome.TimeSpentSeconds,
	})
	if len(rec.History) > constants.HistoryLimit {
		rec.History = rec.History[len(rec.History)-constants.HistoryLimit:]
	}
	rec.LastGamePlayed = l.now()
}

// ApplyToPlayer settles one resolved non-duel round against the player
// record, the leaderboard projection and the remote mirror, as one logical
// unit.
func (l *Ledger) ApplyToPlayer(playerID, displayName string, pointsAwarded int, outcome models.RoundOutcome) models.PlayerRecord {
	rec := l.store.GetPlayer(playerID)
	if rec.DisplayName == "" {
		rec.DisplayName = displayName
	}

	l.recordOutcome(&rec, pointsAwarded, outcome)

	l.store.SavePlayer(rec)
	l.board.Apply(rec.ID, rec.DisplayName, rec.TotalPoints)
	l.remote.UpdatePlayerPoints(rec.ID, pointsAwarded, outcome)

	util.LogInfo("Applied round for player %s: %s, +%d points (total %d)",
		playerID, rec.History[len(rec.History)-1].Result, pointsAwarded, rec.TotalPoints)
	return rec
}

// RecordDailyCompletion updates the daily-challenge bookkeeping after a
// daily round resolves. Only a win marks the day completed and moves the
// streak; a loss leaves everything retryable. Returns the streak the win
// scores with.
func (l *Ledger) RecordDailyCompletion(playerID string, won bool) int {
	rec := l.store.GetPlayer(playerID)
	today := models.DateKey(l.now())

	if !won {
		return rec.DailyChallenge.Streak
	}

	yesterday := models.DateKey(l.now().AddDate(0, 0, -1))
	if rec.DailyChallenge.LastCompletedDate == yesterday {
		rec.DailyChallenge.Streak++
	} else {
		rec.DailyChallenge.Streak = 1
	}
	if rec.DailyChallenge.Streak > rec.DailyChallenge.MaxStreak {
		rec.DailyChallenge.MaxStreak = rec.DailyChallenge.Streak
	}
	rec.DailyChallenge.LastCompletedDate = today

	l.store.SavePlayer(rec)
	util.LogInfo("Player %s completed daily challenge, streak now %d", playerID, rec.DailyChallenge.Streak)
	return rec.DailyChallenge.Streak
}

// RecordAttempt counts one daily/duel start. Attempt counters roll over
// with the calendar date; a session increments them exactly once, at start.
func (l *Ledger) RecordAttempt(playerID string) {
	rec := l.store.GetPlayer(playerID)
	today := models.DateKey(l.now())
	if rec.DailyChallenge.AttemptsDate != today {
		rec.DailyChallenge.AttemptsDate = today
		rec.DailyChallenge.AttemptsToday = 0
	}
	rec.DailyChallenge.AttemptsToday++
	l.store.SavePlayer(rec)
}

// SettleDuel settles a finished duel round as one logical unit: the playing
// player's game counters, the wager transfer (winner gains the wager, loser
// pays what they can, floored at zero) and both duel records. Returns the
// signed points delta applied to the playing player. A missing player or
// opponent aborts with nothing mutated.
func (l *Ledger) SettleDuel(playerID, opponentID string, wager int, outcome models.RoundOutcome) (int, models.PlayerRecord, error) {
	if !l.store.Exists(playerID) && !l.board.Contains(playerID) {
		return 0, models.PlayerRecord{}, ErrPlayerNotFound
	}
	if !l.store.Exists(opponentID) && !l.board.Contains(opponentID) {
		return 0, models.PlayerRecord{}, ErrOpponentNotFound
	}

	player := l.store.GetPlayer(playerID)
	opponent := l.store.GetPlayer(opponentID)

	winner, loser := &player, &opponent
	if !outcome.IsWin {
		winner, loser = &opponent, &player
	}

	lost := wager
	if loser.TotalPoints < wager {
		lost = loser.TotalPoints
	}

	// The playing player's counters move by their side of the transfer;
	// the wager itself is the stake, no formula applies.
	delta := wager
	if !outcome.IsWin {
		delta = -lost
	}
	l.recordOutcome(&player, delta, outcome)
	if !outcome.IsWin {
		// recordOutcome already debited the player.
		opponent.TotalPoints += wager
	} else {
		opponent.TotalPoints -= lost
	}

	winner.Duels.Wins++
	winner.Duels.PointsEarned += wager
	loser.Duels.Losses++
	loser.Duels.PointsLost += lost

	l.store.SavePlayer(player)
	l.store.SavePlayer(opponent)
	l.board.Apply(player.ID, player.DisplayName, player.TotalPoints)
	l.board.Apply(opponent.ID, opponent.DisplayName, opponent.TotalPoints)

	l.remote.UpdatePlayerPoints(player.ID, delta, outcome)
	if outcome.IsWin {
		l.remote.AdjustPoints(opponent.ID, -lost)
	} else {
		l.remote.AdjustPoints(opponent.ID, wager)
	}

	util.LogInfo("Duel settled: winner %s +%d, loser %s -%d", winner.ID, wager, loser.ID, lost)
	return delta, player, nil
}

func betterTime(outcome models.RoundOutcome, best int) bool {
	return outcome.IsWin && outcome.TimeSpentSeconds > 0 && (best == 0 || outcome.TimeSpentSeconds < best)
}

func winRate(wins, games int) int {
	if games == 0 {
		return 0
	}
	return int(float64(wins)/float64(games)*100 + 0.5)
}
