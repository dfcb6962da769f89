package models

import "time"

// Difficulty selects the deck size and time limit for a round.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Difficulties lists every supported difficulty in display order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// Valid reports whether d names a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// RoundStatus is the lifecycle state of a round.
type RoundStatus string

const (
	StatusIdle    RoundStatus = "idle"
	StatusRunning RoundStatus = "running"
	StatusPaused  RoundStatus = "paused"
	StatusWon     RoundStatus = "won"
	StatusLost    RoundStatus = "lost"
)

// Terminal reports whether the round can no longer change except by reset.
func (s RoundStatus) Terminal() bool {
	return s == StatusWon || s == StatusLost
}

// Card is one face-down token in a round. Exactly two cards in a deck share
// a PairKey.
type Card struct {
	ID        int    `json:"id"`
	PairKey   string `json:"pairKey"`
	IsFlipped bool   `json:"isFlipped"`
	IsMatched bool   `json:"isMatched"`
}

// RoundState is the renderable snapshot of a round.
type RoundState struct {
	Cards          []Card      `json:"cards"`
	FlippedIndices []int       `json:"flippedIndices"`
	MatchedIndices []int       `json:"matchedIndices"`
	TimeRemaining  int         `json:"timeRemainingSeconds"`
	Status         RoundStatus `json:"status"`
	Difficulty     Difficulty  `json:"difficulty"`
	PairCount      int         `json:"pairCount"`
	Resolving      bool        `json:"resolving"`
}

// ChallengeKind distinguishes special round types.
type ChallengeKind string

const (
	ChallengeDaily ChallengeKind = "daily"
	ChallengeDuel  ChallengeKind = "duel"
)

// PlayerRef identifies a duel opponent.
type PlayerRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// ChallengeSession carries the parameters of a daily challenge or duel.
// Wager and Opponent are set only for duels.
type ChallengeSession struct {
	Kind       ChallengeKind `json:"kind"`
	Difficulty Difficulty    `json:"difficulty"`
	TimeLimit  int           `json:"timeLimitSeconds"`
	PairCount  int           `json:"pairCount"`
	Wager      int           `json:"wager,omitempty"`
	Opponent   *PlayerRef    `json:"opponent,omitempty"`
}

// RoundOutcome is what a finished round reports to the reward ledger.
type RoundOutcome struct {
	IsWin            bool       `json:"isWin"`
	Difficulty       Difficulty `json:"difficulty"`
	TimeSpentSeconds int        `json:"timeSpentSeconds"`
	IsDailyChallenge bool       `json:"isDailyChallenge"`
	CurrentStreak    int        `json:"currentStreak"`
}

// DifficultyStats is one per-difficulty bucket of a player's record.
type DifficultyStats struct {
	Games    int `json:"games"`
	Wins     int `json:"wins"`
	WinRate  int `json:"winRate"`
	BestTime int `json:"bestTime"` // seconds, 0 means no win recorded yet
}

// DailyChallengeState tracks the once-per-day gate and streaks.
type DailyChallengeState struct {
	Streak            int    `json:"streak"`
	MaxStreak         int    `json:"maxStreak"`
	LastCompletedDate string `json:"lastCompletedDate"` // yyyy-mm-dd, empty if never
	AttemptsToday     int    `json:"attemptsToday"`
	AttemptsDate      string `json:"attemptsDate"` // date the attempt counter refers to
}

// DuelStats aggregates a player's duel record.
type DuelStats struct {
	Wins         int `json:"wins"`
	Losses       int `json:"losses"`
	PointsEarned int `json:"pointsEarned"`
	PointsLost   int `json:"pointsLost"`
}

// GameRecord is one entry of the bounded per-player game history.
type GameRecord struct {
	Timestamp    time.Time  `json:"timestamp"`
	PointsEarned int        `json:"pointsEarned"`
	Result       string     `json:"result"` // "win" or "loss"
	Difficulty   Difficulty `json:"difficulty"`
	TimeSpent    int        `json:"timeSpent"`
}

// PlayerRecord is the durable per-player state. It is persisted field by
// field in the local store and mirrored best-effort to the remote store.
type PlayerRecord struct {
	ID             string                         `json:"id"`
	DisplayName    string                         `json:"displayName"`
	Email          string                         `json:"email,omitempty"`
	TotalPoints    int                            `json:"totalPoints"`
	GamesPlayed    int                            `json:"gamesPlayed"`
	GamesWon       int                            `json:"gamesWon"`
	WinRate        int                            `json:"winRate"`
	BestTime       int                            `json:"bestTimeSeconds"` // 0 means none
	PerDifficulty  map[Difficulty]DifficultyStats `json:"perDifficultyStats"`
	DailyChallenge DailyChallengeState            `json:"dailyChallenge"`
	Duels          DuelStats                      `json:"duelStats"`
	History        []GameRecord                   `json:"gameHistory"`
	LastGamePlayed time.Time                      `json:"lastGamePlayed"`
}

// NewPlayerRecord returns a zeroed record for a first-play player.
func NewPlayerRecord(id, displayName string) PlayerRecord {
	return PlayerRecord{
		ID:            id,
		DisplayName:   displayName,
		PerDifficulty: make(map[Difficulty]DifficultyStats),
	}
}

// LeaderboardEntry is the read-mostly ranking projection of a player.
type LeaderboardEntry struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	TotalPoints int    `json:"totalPoints"`
}

// DateKey formats t as the calendar-day key used for daily-challenge gating.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
