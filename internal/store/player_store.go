package store

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"memorludo/internal/models"
	"memorludo/internal/util"
)

// PlayerStore exposes typed access to every persisted player field. It is
// the single entry point to the local key space; nothing else reads or
// writes player keys directly.
type PlayerStore struct {
	kv KV
}

func NewPlayerStore(kv KV) *PlayerStore {
	return &PlayerStore{kv: kv}
}

func playerKey(id, field string) string {
	return "player:" + id + ":" + field
}

func (s *PlayerStore) getInt(key string) int {
	raw, ok := s.kv.Get(key)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		util.LogWarn("Corrupt integer at %s: %v", key, err)
		return 0
	}
	return n
}

func (s *PlayerStore) setInt(key string, n int) {
	s.kv.Set(key, strconv.Itoa(n))
}

func (s *PlayerStore) getString(key string) string {
	raw, _ := s.kv.Get(key)
	return raw
}

// Exists reports whether a record was ever created for id.
func (s *PlayerStore) Exists(id string) bool {
	_, ok := s.kv.Get(playerKey(id, "displayName"))
	return ok
}

// GetPlayer assembles the record from its piecemeal keys, returning a fresh
// zeroed record when the player was never seen.
func (s *PlayerStore) GetPlayer(id string) models.PlayerRecord {
	rec := models.NewPlayerRecord(id, s.getString(playerKey(id, "displayName")))
	rec.Email = s.getString(playerKey(id, "email"))
	rec.TotalPoints = s.getInt(playerKey(id, "totalPoints"))
	rec.GamesPlayed = s.getInt(playerKey(id, "gamesPlayed"))
	rec.GamesWon = s.getInt(playerKey(id, "gamesWon"))
	rec.WinRate = s.getInt(playerKey(id, "winRate"))
	rec.BestTime = s.getInt(playerKey(id, "bestTime"))

	for _, d := range models.Difficulties {
		prefix := "stats:" + strings.ToLower(string(d)) + ":"
		stats := models.DifficultyStats{
			Games:    s.getInt(playerKey(id, prefix+"games")),
			Wins:     s.getInt(playerKey(id, prefix+"wins")),
			WinRate:  s.getInt(playerKey(id, prefix+"winRate")),
			BestTime: s.getInt(playerKey(id, prefix+"bestTime")),
		}
		if stats.Games > 0 {
			rec.PerDifficulty[d] = stats
		}
	}

	rec.DailyChallenge = models.DailyChallengeState{
		Streak:            s.getInt(playerKey(id, "daily:streak")),
		MaxStreak:         s.getInt(playerKey(id, "daily:maxStreak")),
		LastCompletedDate: s.getString(playerKey(id, "daily:lastCompleted")),
		AttemptsToday:     s.getInt(playerKey(id, "daily:attemptsToday")),
		AttemptsDate:      s.getString(playerKey(id, "daily:attemptsDate")),
	}
	rec.Duels = models.DuelStats{
		Wins:         s.getInt(playerKey(id, "duels:wins")),
		Losses:       s.getInt(playerKey(id, "duels:losses")),
		PointsEarned: s.getInt(playerKey(id, "duels:pointsEarned")),
		PointsLost:   s.getInt(playerKey(id, "duels:pointsLost")),
	}

	if raw, ok := s.kv.Get(playerKey(id, "history")); ok {
		if err := json.Unmarshal([]byte(raw), &rec.History); err != nil {
			util.LogWarn("Corrupt game history for player %s: %v", id, err)
			rec.History = nil
		}
	}
	if raw, ok := s.kv.Get(playerKey(id, "lastGamePlayed")); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			rec.LastGamePlayed = t
		}
	}
	return rec
}

// SavePlayer writes the record back field by field.
func (s *PlayerStore) SavePlayer(rec models.PlayerRecord) {
	id := rec.ID
	s.kv.Set(playerKey(id, "displayName"), rec.DisplayName)
	if rec.Email != "" {
		s.kv.Set(playerKey(id, "email"), rec.Email)
	}
	s.setInt(playerKey(id, "totalPoints"), rec.TotalPoints)
	s.setInt(playerKey(id, "gamesPlayed"), rec.GamesPlayed)
	s.setInt(playerKey(id, "gamesWon"), rec.GamesWon)
	s.setInt(playerKey(id, "winRate"), rec.WinRate)
	s.setInt(playerKey(id, "bestTime"), rec.BestTime)

	for d, stats := range rec.PerDifficulty {
		prefix := "stats:" + strings.ToLower(string(d)) + ":"
		s.setInt(playerKey(id, prefix+"games"), stats.Games)
		s.setInt(playerKey(id, prefix+"wins"), stats.Wins)
		s.setInt(playerKey(id, prefix+"winRate"), stats.WinRate)
		s.setInt(playerKey(id, prefix+"bestTime"), stats.BestTime)
	}

	s.setInt(playerKey(id, "daily:streak"), rec.DailyChallenge.Streak)
	s.setInt(playerKey(id, "daily:maxStreak"), rec.DailyChallenge.MaxStreak)
	s.kv.Set(playerKey(id, "daily:lastCompleted"), rec.DailyChallenge.LastCompletedDate)
	s.setInt(playerKey(id, "daily:attemptsToday"), rec.DailyChallenge.AttemptsToday)
	s.kv.Set(playerKey(id, "daily:attemptsDate"), rec.DailyChallenge.AttemptsDate)

	s.setInt(playerKey(id, "duels:wins"), rec.Duels.Wins)
	s.setInt(playerKey(id, "duels:losses"), rec.Duels.Losses)
	s.setInt(playerKey(id, "duels:pointsEarned"), rec.Duels.PointsEarned)
	s.setInt(playerKey(id, "duels:pointsLost"), rec.Duels.PointsLost)

	if raw, err := json.Marshal(rec.History); err == nil {
		s.kv.Set(playerKey(id, "history"), string(raw))
	}
	if !rec.LastGamePlayed.IsZero() {
		s.kv.Set(playerKey(id, "lastGamePlayed"), rec.LastGamePlayed.Format(time.RFC3339))
	}
}

// GetTotalPoints reads just the points balance.
func (s *PlayerStore) GetTotalPoints(id string) int {
	return s.getInt(playerKey(id, "totalPoints"))
}

// SetTotalPoints overwrites just the points balance.
func (s *PlayerStore) SetTotalPoints(id string, points int) {
	s.setInt(playerKey(id, "totalPoints"), points)
}

// GetLeaderboard reads the persisted leaderboard snapshot.
func (s *PlayerStore) GetLeaderboard() []models.LeaderboardEntry {
	raw, ok := s.kv.Get("leaderboard")
	if !ok {
		return nil
	}
	var entries []models.LeaderboardEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		util.LogWarn("Corrupt leaderboard snapshot: %v", err)
		return nil
	}
	return entries
}

// SetLeaderboard replaces the persisted leaderboard snapshot.
func (s *PlayerStore) SetLeaderboard(entries []models.LeaderboardEntry) {
	raw, err := json.Marshal(entries)
	if err != nil {
		util.LogWarn("Failed to marshal leaderboard: %v", err)
		return
	}
	s.kv.Set("leaderboard", string(raw))
}

// GetActiveChallenge returns the in-progress daily/duel marker for a player.
func (s *PlayerStore) GetActiveChallenge(id string) (models.ChallengeSession, bool) {
	raw, ok := s.kv.Get(playerKey(id, "activeChallenge"))
	if !ok {
		return models.ChallengeSession{}, false
	}
	var cs models.ChallengeSession
	if err := json.Unmarshal([]byte(raw), &cs); err != nil {
		util.LogWarn("Corrupt challenge marker for player %s: %v", id, err)
		return models.ChallengeSession{}, false
	}
	return cs, true
}

// SetActiveChallenge records that a daily/duel round is in progress.
func (s *PlayerStore) SetActiveChallenge(id string, cs models.ChallengeSession) {
	raw, err := json.Marshal(cs)
	if err != nil {
		util.LogWarn("Failed to marshal challenge marker: %v", err)
		return
	}
	s.kv.Set(playerKey(id, "activeChallenge"), string(raw))
}

// ClearActiveChallenge removes the in-progress marker.
func (s *PlayerStore) ClearActiveChallenge(id string) {
	s.kv.Delete(playerKey(id, "activeChallenge"))
}

// ResetStats zeroes every counter of the player while keeping identity
// fields, and drops the player from the leaderboard snapshot.
func (s *PlayerStore) ResetStats(id string) {
	rec := s.GetPlayer(id)
	fresh := models.NewPlayerRecord(rec.ID, rec.DisplayName)
	fresh.Email = rec.Email
	for _, d := range models.Difficulties {
		prefix := "stats:" + strings.ToLower(string(d)) + ":"
		s.kv.Delete(playerKey(id, prefix+"games"))
		s.kv.Delete(playerKey(id, prefix+"wins"))
		s.kv.Delete(playerKey(id, prefix+"winRate"))
		s.kv.Delete(playerKey(id, prefix+"bestTime"))
	}
	s.kv.Delete(playerKey(id, "history"))
	s.SavePlayer(fresh)

	entries := s.GetLeaderboard()
	kept := entries[:0]
	for _, e := range entries {
		if e.PlayerID != id {
			kept = append(kept, e)
		}
	}
	s.SetLeaderboard(kept)
}
