package remote

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"memorludo/internal/models"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestGetPlayerUnknownIsNil(t *testing.T) {
	s := newTestStore(t)
	rec, err := s.GetPlayer(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetPlayer failed: %v", err)
	}
	if rec != nil {
		t.Errorf("Unknown player = %+v, want nil", rec)
	}
}

func TestCreateAndGetPlayer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	local := models.NewPlayerRecord("p1", "Alice")
	local.Email = "alice@example.com"
	local.TotalPoints = 350
	local.GamesPlayed = 7
	local.GamesWon = 5
	local.BestTime = 18
	local.WinRate = 71

	if err := s.CreatePlayer(ctx, local); err != nil {
		t.Fatalf("CreatePlayer failed: %v", err)
	}

	got, err := s.GetPlayer(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPlayer failed: %v", err)
	}
	if got == nil {
		t.Fatal("Created player not found")
	}
	if got.DisplayName != "Alice" || got.Email != "alice@example.com" {
		t.Errorf("Identity fields %q / %q", got.DisplayName, got.Email)
	}
	if got.TotalPoints != 350 || got.GamesPlayed != 7 || got.GamesWon != 5 || got.BestTime != 18 {
		t.Errorf("Counters %+v", got)
	}
}

func TestUpdatePlayerPoints(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	local := models.NewPlayerRecord("p1", "Alice")
	local.TotalPoints = 100
	if err := s.CreatePlayer(ctx, local); err != nil {
		t.Fatal(err)
	}

	win := models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyEasy, TimeSpentSeconds: 25}
	if err := s.UpdatePlayerPoints(ctx, "p1", 50, win); err != nil {
		t.Fatalf("UpdatePlayerPoints failed: %v", err)
	}

	got, _ := s.GetPlayer(ctx, "p1")
	if got.TotalPoints != 150 || got.GamesPlayed != 1 || got.GamesWon != 1 {
		t.Errorf("After win: %+v", got)
	}
	if got.BestTime != 25 || got.WinRate != 100 {
		t.Errorf("bestTime=%d winRate=%d, want 25/100", got.BestTime, got.WinRate)
	}

	// A slower win must not regress the best time.
	if err := s.UpdatePlayerPoints(ctx, "p1", 50, models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyEasy, TimeSpentSeconds: 40}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetPlayer(ctx, "p1")
	if got.BestTime != 25 {
		t.Errorf("bestTime = %d after slower win, want 25", got.BestTime)
	}

	if err := s.UpdatePlayerPoints(ctx, "p1", 0, models.RoundOutcome{IsWin: false, Difficulty: models.DifficultyEasy, TimeSpentSeconds: 60}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetPlayer(ctx, "p1")
	if got.GamesPlayed != 3 || got.GamesWon != 2 || got.WinRate != 67 {
		t.Errorf("After loss: played=%d won=%d rate=%d, want 3/2/67", got.GamesPlayed, got.GamesWon, got.WinRate)
	}
}

func TestAdjustPointsLeavesCountersAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	local := models.NewPlayerRecord("p1", "Alice")
	local.TotalPoints = 100
	if err := s.CreatePlayer(ctx, local); err != nil {
		t.Fatal(err)
	}

	if err := s.AdjustPoints(ctx, "p1", -40); err != nil {
		t.Fatalf("AdjustPoints failed: %v", err)
	}
	got, _ := s.GetPlayer(ctx, "p1")
	if got.TotalPoints != 60 {
		t.Errorf("Points = %d, want 60", got.TotalPoints)
	}
	if got.GamesPlayed != 0 || got.GamesWon != 0 {
		t.Error("Bare point transfer must not touch game counters")
	}
}

func TestSyncStatsMergesTakingBest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	remote := models.NewPlayerRecord("p1", "Alice")
	remote.GamesPlayed = 10
	remote.GamesWon = 4
	remote.BestTime = 30
	if err := s.CreatePlayer(ctx, remote); err != nil {
		t.Fatal(err)
	}

	// Local has fewer games but a better time.
	local := models.NewPlayerRecord("p1", "Alice")
	local.GamesPlayed = 6
	local.GamesWon = 5
	local.BestTime = 20
	if err := s.SyncStats(ctx, local); err != nil {
		t.Fatalf("SyncStats failed: %v", err)
	}

	got, _ := s.GetPlayer(ctx, "p1")
	if got.GamesPlayed != 10 {
		t.Errorf("gamesPlayed = %d, want merged max 10", got.GamesPlayed)
	}
	if got.GamesWon != 5 {
		t.Errorf("gamesWon = %d, want merged max 5", got.GamesWon)
	}
	if got.BestTime != 20 {
		t.Errorf("bestTime = %d, want merged min 20", got.BestTime)
	}
	if got.WinRate != 50 {
		t.Errorf("winRate = %d, want 50 recomputed from merged counts", got.WinRate)
	}
}

func TestSyncStatsCreatesWhenAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	local := models.NewPlayerRecord("p1", "Alice")
	local.GamesPlayed = 3
	if err := s.SyncStats(ctx, local); err != nil {
		t.Fatalf("SyncStats failed: %v", err)
	}
	got, _ := s.GetPlayer(ctx, "p1")
	if got == nil || got.GamesPlayed != 3 {
		t.Errorf("SyncStats on a fresh id should create the player, got %+v", got)
	}
}

func TestListTopPlayersOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []struct {
		id     string
		name   string
		points int
	}{
		{"p1", "Alice", 100},
		{"p2", "Bob", 300},
		{"p3", "Carol", 200},
	} {
		rec := models.NewPlayerRecord(p.id, p.name)
		rec.TotalPoints = p.points
		if err := s.CreatePlayer(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.ListTopPlayers(ctx, 2)
	if err != nil {
		t.Fatalf("ListTopPlayers failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Got %d entries, want 2", len(entries))
	}
	if entries[0].PlayerID != "p2" || entries[0].DisplayName != "Bob" || entries[0].TotalPoints != 300 {
		t.Errorf("Top entry %+v", entries[0])
	}
	if entries[1].PlayerID != "p3" {
		t.Errorf("Second entry %+v, want p3", entries[1])
	}
}
