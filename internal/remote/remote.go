package remote

import (
	"context"
	"time"

	"memorludo/internal/models"
	"memorludo/internal/util"
)

// Store is the cross-device player/leaderboard store. Implementations are
// eventually consistent, last-write-wins; callers must treat every call as
// best-effort and never gate gameplay on it.
type Store interface {
	GetPlayer(ctx context.Context, id string) (*models.PlayerRecord, error)
	CreatePlayer(ctx context.Context, rec models.PlayerRecord) error
	UpdatePlayerPoints(ctx context.Context, id string, pointsDelta int, outcome models.RoundOutcome) error
	AdjustPoints(ctx context.Context, id string, pointsDelta int) error
	SyncStats(ctx context.Context, local models.PlayerRecord) error
	ListTopPlayers(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// BestEffort wraps a Store so writes happen in the background with a bounded
// timeout and every failure is swallowed into a log line. A nil inner store
// turns all calls into no-ops, which is how the game runs fully offline.
type BestEffort struct {
	inner   Store
	timeout time.Duration
}

func NewBestEffort(inner Store, timeout time.Duration) *BestEffort {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &BestEffort{inner: inner, timeout: timeout}
}

// Enabled reports whether a remote store is configured at all.
func (b *BestEffort) Enabled() bool {
	return b.inner != nil
}

func (b *BestEffort) async(op string, fn func(ctx context.Context) error) {
	if b.inner == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			util.LogWarn("Remote store %s failed: %v", op, err)
		}
	}()
}

// CreatePlayer mirrors a first-seen player without blocking the caller.
func (b *BestEffort) CreatePlayer(rec models.PlayerRecord) {
	b.async("create player", func(ctx context.Context) error {
		existing, err := b.inner.GetPlayer(ctx, rec.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
		return b.inner.CreatePlayer(ctx, rec)
	})
}

// UpdatePlayerPoints mirrors a round settlement without blocking the caller.
func (b *BestEffort) UpdatePlayerPoints(id string, pointsDelta int, outcome models.RoundOutcome) {
	b.async("points update", func(ctx context.Context) error {
		return b.inner.UpdatePlayerPoints(ctx, id, pointsDelta, outcome)
	})
}

// AdjustPoints mirrors a bare point transfer, such as the losing side of a
// wager, without touching game counters.
func (b *BestEffort) AdjustPoints(id string, pointsDelta int) {
	b.async("points adjustment", func(ctx context.Context) error {
		return b.inner.AdjustPoints(ctx, id, pointsDelta)
	})
}

// SyncStats pushes a merged view of local stats, taking the higher game and
// win counts and the faster best time.
func (b *BestEffort) SyncStats(local models.PlayerRecord) {
	b.async("stats sync", func(ctx context.Context) error {
		return b.inner.SyncStats(ctx, local)
	})
}

// ListTopPlayers fetches the remote ranking synchronously but tolerantly:
// any failure yields a nil slice and a log line, never an error.
func (b *BestEffort) ListTopPlayers(limit int) []models.LeaderboardEntry {
	if b.inner == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	entries, err := b.inner.ListTopPlayers(ctx, limit)
	if err != nil {
		util.LogWarn("Remote store leaderboard read failed: %v", err)
		return nil
	}
	return entries
}
