package leaderboard

import (
	"sort"

	"github.com/samber/lo"

	"memorludo/internal/models"
	"memorludo/internal/store"
)

// Board maintains the local ranking projection. It is rebuilt by re-sorting
// whenever any player's points change; ties keep their insertion order.
type Board struct {
	store *store.PlayerStore
}

func New(s *store.PlayerStore) *Board {
	return &Board{store: s}
}

// Apply upserts the player's entry with their new total and persists the
// re-sorted snapshot.
func (b *Board) Apply(playerID, displayName string, totalPoints int) []models.LeaderboardEntry {
	entries := b.store.GetLeaderboard()

	found := false
	for i := range entries {
		if entries[i].PlayerID == playerID {
			entries[i].TotalPoints = totalPoints
			if displayName != "" {
				entries[i].DisplayName = displayName
			}
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, models.LeaderboardEntry{
			PlayerID:    playerID,
			DisplayName: displayName,
			TotalPoints: totalPoints,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalPoints > entries[j].TotalPoints
	})

	b.store.SetLeaderboard(entries)
	return entries
}

// Rename updates the display name on the snapshot without resorting.
func (b *Board) Rename(playerID, displayName string) {
	entries := b.store.GetLeaderboard()
	for i := range entries {
		if entries[i].PlayerID == playerID {
			entries[i].DisplayName = displayName
			b.store.SetLeaderboard(entries)
			return
		}
	}
}

// Top returns the best limit entries.
func (b *Board) Top(limit int) []models.LeaderboardEntry {
	entries := b.store.GetLeaderboard()
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Rank returns the 1-based position and points of a player, or (0, 0) when
// the player has no entry yet.
func (b *Board) Rank(playerID string) (int, int) {
	for i, e := range b.store.GetLeaderboard() {
		if e.PlayerID == playerID {
			return i + 1, e.TotalPoints
		}
	}
	return 0, 0
}

// Opponents lists duel candidates from the top of the board, excluding the
// player themselves.
func (b *Board) Opponents(selfID string, limit int) []models.LeaderboardEntry {
	entries := lo.Filter(b.store.GetLeaderboard(), func(e models.LeaderboardEntry, _ int) bool {
		return e.PlayerID != selfID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Contains reports whether a player has an entry on the board.
func (b *Board) Contains(playerID string) bool {
	rank, _ := b.Rank(playerID)
	return rank > 0
}
