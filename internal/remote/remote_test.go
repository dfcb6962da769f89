package remote

import (
	"context"
	"errors"
	"testing"

	"memorludo/internal/models"
)

type failingStore struct{}

var errDown = errors.New("store down")

func (failingStore) GetPlayer(context.Context, string) (*models.PlayerRecord, error) {
	return nil, errDown
}
func (failingStore) CreatePlayer(context.Context, models.PlayerRecord) error { return errDown }
func (failingStore) UpdatePlayerPoints(context.Context, string, int, models.RoundOutcome) error {
	return errDown
}
func (failingStore) AdjustPoints(context.Context, string, int) error      { return errDown }
func (failingStore) SyncStats(context.Context, models.PlayerRecord) error { return errDown }
func (failingStore) ListTopPlayers(context.Context, int) ([]models.LeaderboardEntry, error) {
	return nil, errDown
}

func TestBestEffortOffline(t *testing.T) {
	b := NewBestEffort(nil, 0)

	if b.Enabled() {
		t.Error("Nil inner store must report disabled")
	}

	// Every call must be a safe no-op.
	b.CreatePlayer(models.NewPlayerRecord("p1", "Alice"))
	b.UpdatePlayerPoints("p1", 50, models.RoundOutcome{IsWin: true})
	b.AdjustPoints("p1", -10)
	b.SyncStats(models.NewPlayerRecord("p1", "Alice"))
	if got := b.ListTopPlayers(10); got != nil {
		t.Errorf("Offline leaderboard = %v, want nil", got)
	}
}

func TestBestEffortSwallowsFailures(t *testing.T) {
	b := NewBestEffort(failingStore{}, 0)

	if !b.Enabled() {
		t.Error("Configured store must report enabled")
	}
	// Reads are synchronous and must degrade to nil, never error out.
	if got := b.ListTopPlayers(10); got != nil {
		t.Errorf("Failing leaderboard read = %v, want nil", got)
	}
	// Writes go to the background; they must not panic or block the caller.
	b.UpdatePlayerPoints("p1", 50, models.RoundOutcome{IsWin: true})
	b.AdjustPoints("p1", -10)
}
