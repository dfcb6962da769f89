package ledger

import (
	"testing"
	"time"

	"memorludo/internal/leaderboard"
	"memorludo/internal/models"
	"memorludo/internal/remote"
	"memorludo/internal/store"
)

func newTestLedger(now func() time.Time) (*Ledger, *store.PlayerStore) {
	ps := store.NewPlayerStore(store.NewMemKV())
	board := leaderboard.New(ps)
	rem := remote.NewBestEffort(nil, 0)
	if now == nil {
		now = time.Now
	}
	return NewWithClock(ps, board, rem, now), ps
}

func seedPlayer(ps *store.PlayerStore, board *leaderboard.Board, id, name string, points int) {
	rec := models.NewPlayerRecord(id, name)
	rec.TotalPoints = points
	ps.SavePlayer(rec)
	board.Apply(id, name, points)
}

func TestScoreRound(t *testing.T) {
	tests := []struct {
		name    string
		outcome models.RoundOutcome
		want    int
	}{
		{"loss scores zero", models.RoundOutcome{IsWin: false, Difficulty: models.DifficultyHard, IsDailyChallenge: true, CurrentStreak: 5}, 0},
		{"easy win", models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyEasy}, 50},
		{"medium win", models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyMedium}, 100},
		{"hard win", models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyHard}, 150},
		{"unknown difficulty falls back to medium", models.RoundOutcome{IsWin: true, Difficulty: models.Difficulty("Nightmare")}, 100},
		{"daily doubles the base", models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyEasy, IsDailyChallenge: true}, 100},
		{"streak of one adds nothing", models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyMedium, CurrentStreak: 1}, 100},
		{"streak bonus stacks per prior day", models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyMedium, CurrentStreak: 4}, 175},
		{"hard daily with streak three", models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyHard, IsDailyChallenge: true, CurrentStreak: 3}, 350},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScoreRound(tt.outcome); got != tt.want {
				t.Errorf("ScoreRound(%+v) = %d, want %d", tt.outcome, got, tt.want)
			}
		})
	}
}

func TestApplyToPlayerCounters(t *testing.T) {
	l, ps := newTestLedger(nil)

	win := models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyEasy, TimeSpentSeconds: 20}
	rec := l.ApplyToPlayer("p1", "Alice", 50, win)
	if rec.GamesPlayed != 1 || rec.GamesWon != 1 || rec.TotalPoints != 50 {
		t.Errorf("After first win: played=%d won=%d points=%d", rec.GamesPlayed, rec.GamesWon, rec.TotalPoints)
	}
	if rec.WinRate != 100 {
		t.Errorf("Win rate after 1/1 = %d, want 100", rec.WinRate)
	}

	loss := models.RoundOutcome{IsWin: false, Difficulty: models.DifficultyEasy, TimeSpentSeconds: 60}
	rec = l.ApplyToPlayer("p1", "Alice", 0, loss)
	if rec.GamesPlayed != 2 || rec.GamesWon != 1 || rec.TotalPoints != 50 {
		t.Errorf("After loss: played=%d won=%d points=%d", rec.GamesPlayed, rec.GamesWon, rec.TotalPoints)
	}
	if rec.WinRate != 50 {
		t.Errorf("Win rate after 1/2 = %d, want 50", rec.WinRate)
	}

	stored := ps.GetPlayer("p1")
	if stored.TotalPoints != 50 || stored.GamesPlayed != 2 {
		t.Error("Counters not persisted through the store")
	}
	easy := stored.PerDifficulty[models.DifficultyEasy]
	if easy.Games != 2 || easy.Wins != 1 {
		t.Errorf("Easy bucket games=%d wins=%d, want 2/1", easy.Games, easy.Wins)
	}
	if len(stored.History) != 2 {
		t.Errorf("History length %d, want 2", len(stored.History))
	}
}

func TestBestTimeOnlyImproves(t *testing.T) {
	l, ps := newTestLedger(nil)

	l.ApplyToPlayer("p1", "Alice", 50, models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyEasy, TimeSpentSeconds: 20})
	l.ApplyToPlayer("p1", "Alice", 50, models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyEasy, TimeSpentSeconds: 25})

	rec := ps.GetPlayer("p1")
	if rec.BestTime != 20 {
		t.Errorf("Best time = %d, want 20 (a slower win must not regress it)", rec.BestTime)
	}

	l.ApplyToPlayer("p1", "Alice", 50, models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyEasy, TimeSpentSeconds: 15})
	if got := ps.GetPlayer("p1").BestTime; got != 15 {
		t.Errorf("Best time = %d, want 15 after a faster win", got)
	}

	// A fast loss never counts.
	l.ApplyToPlayer("p1", "Alice", 0, models.RoundOutcome{IsWin: false, Difficulty: models.DifficultyEasy, TimeSpentSeconds: 5})
	if got := ps.GetPlayer("p1").BestTime; got != 15 {
		t.Errorf("Best time = %d after a loss, want 15", got)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	l, ps := newTestLedger(nil)
	for i := 0; i < 60; i++ {
		l.ApplyToPlayer("p1", "Alice", 50, models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyEasy, TimeSpentSeconds: 30})
	}
	if got := len(ps.GetPlayer("p1").History); got != 50 {
		t.Errorf("History length %d, want capped at 50", got)
	}
}

func TestSettleDuelWin(t *testing.T) {
	l, ps := newTestLedger(nil)
	board := leaderboard.New(ps)
	seedPlayer(ps, board, "p1", "Alice", 100)
	seedPlayer(ps, board, "p2", "Bob", 30)

	delta, rec, err := l.SettleDuel("p1", "p2", 40, models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyMedium, TimeSpentSeconds: 42})
	if err != nil {
		t.Fatalf("SettleDuel failed: %v", err)
	}
	if delta != 40 {
		t.Errorf("Winner delta = %d, want +40", delta)
	}
	if rec.TotalPoints != 140 {
		t.Errorf("Winner points = %d, want 140", rec.TotalPoints)
	}
	if got := ps.GetPlayer("p2").TotalPoints; got != 0 {
		t.Errorf("Loser points = %d, want 0 (pays what they have, floored at zero)", got)
	}
	if rec.Duels.Wins != 1 || rec.Duels.PointsEarned != 40 {
		t.Errorf("Winner duel stats %+v", rec.Duels)
	}
	opp := ps.GetPlayer("p2")
	if opp.Duels.Losses != 1 || opp.Duels.PointsLost != 30 {
		t.Errorf("Loser duel stats %+v, want 1 loss / 30 lost", opp.Duels)
	}
	if opp.GamesPlayed != 0 {
		t.Error("Opponent did not play a round; game counters must not move")
	}
	if rec.GamesPlayed != 1 || rec.GamesWon != 1 {
		t.Errorf("Player game counters played=%d won=%d, want 1/1", rec.GamesPlayed, rec.GamesWon)
	}
}

func TestSettleDuelLoss(t *testing.T) {
	l, ps := newTestLedger(nil)
	board := leaderboard.New(ps)
	seedPlayer(ps, board, "p1", "Alice", 100)
	seedPlayer(ps, board, "p2", "Bob", 30)

	delta, rec, err := l.SettleDuel("p1", "p2", 40, models.RoundOutcome{IsWin: false, Difficulty: models.DifficultyMedium, TimeSpentSeconds: 60})
	if err != nil {
		t.Fatalf("SettleDuel failed: %v", err)
	}
	if delta != -40 {
		t.Errorf("Losing player delta = %d, want -40", delta)
	}
	if rec.TotalPoints != 60 {
		t.Errorf("Losing player points = %d, want 60", rec.TotalPoints)
	}
	if got := ps.GetPlayer("p2").TotalPoints; got != 70 {
		t.Errorf("Winning opponent points = %d, want 70", got)
	}
	if rec.Duels.Losses != 1 || rec.Duels.PointsLost != 40 {
		t.Errorf("Player duel stats %+v, want 1 loss / 40 lost", rec.Duels)
	}
	if opp := ps.GetPlayer("p2").Duels; opp.Wins != 1 || opp.PointsEarned != 40 {
		t.Errorf("Opponent duel stats %+v, want 1 win / 40 earned", opp)
	}
}

func TestSettleDuelLossCappedByBalance(t *testing.T) {
	l, ps := newTestLedger(nil)
	board := leaderboard.New(ps)
	seedPlayer(ps, board, "p1", "Alice", 15)
	seedPlayer(ps, board, "p2", "Bob", 200)

	delta, rec, err := l.SettleDuel("p1", "p2", 40, models.RoundOutcome{IsWin: false, Difficulty: models.DifficultyMedium})
	if err != nil {
		t.Fatalf("SettleDuel failed: %v", err)
	}
	if delta != -15 {
		t.Errorf("Losing player delta = %d, want -15 (capped at balance)", delta)
	}
	if rec.TotalPoints != 0 {
		t.Errorf("Losing player points = %d, want 0", rec.TotalPoints)
	}
	if got := ps.GetPlayer("p2").TotalPoints; got != 240 {
		t.Errorf("Winner points = %d, want 240 (full wager credited)", got)
	}
}

func TestSettleDuelUnknownOpponentAborts(t *testing.T) {
	l, ps := newTestLedger(nil)
	board := leaderboard.New(ps)
	seedPlayer(ps, board, "p1", "Alice", 100)

	_, _, err := l.SettleDuel("p1", "ghost", 40, models.RoundOutcome{IsWin: true, Difficulty: models.DifficultyMedium})
	if err != ErrOpponentNotFound {
		t.Fatalf("Expected ErrOpponentNotFound, got %v", err)
	}
	rec := ps.GetPlayer("p1")
	if rec.TotalPoints != 100 || rec.GamesPlayed != 0 {
		t.Error("Aborted settlement must leave the player untouched")
	}
}

func TestRecordDailyCompletionStreak(t *testing.T) {
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return day }
	l, ps := newTestLedger(func() time.Time { return now() })

	if streak := l.RecordDailyCompletion("p1", true); streak != 1 {
		t.Errorf("First completion streak = %d, want 1", streak)
	}

	day = day.AddDate(0, 0, 1)
	if streak := l.RecordDailyCompletion("p1", true); streak != 2 {
		t.Errorf("Consecutive-day streak = %d, want 2", streak)
	}

	day = day.AddDate(0, 0, 3)
	if streak := l.RecordDailyCompletion("p1", true); streak != 1 {
		t.Errorf("Streak after a gap = %d, want reset to 1", streak)
	}

	rec := ps.GetPlayer("p1")
	if rec.DailyChallenge.MaxStreak != 2 {
		t.Errorf("Max streak = %d, want 2", rec.DailyChallenge.MaxStreak)
	}
	if rec.DailyChallenge.LastCompletedDate != models.DateKey(day) {
		t.Errorf("Last completed = %q, want %q", rec.DailyChallenge.LastCompletedDate, models.DateKey(day))
	}
}

func TestRecordDailyCompletionLossChangesNothing(t *testing.T) {
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l, ps := newTestLedger(func() time.Time { return day })

	l.RecordDailyCompletion("p1", true)
	before := ps.GetPlayer("p1").DailyChallenge

	if streak := l.RecordDailyCompletion("p1", false); streak != before.Streak {
		t.Errorf("Loss returned streak %d, want unchanged %d", streak, before.Streak)
	}
	after := ps.GetPlayer("p1").DailyChallenge
	if after != before {
		t.Errorf("Loss mutated daily state: %+v -> %+v", before, after)
	}
}

func TestRecordAttemptRollsOverWithDate(t *testing.T) {
	day := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	now := func() time.Time { return day }
	l, ps := newTestLedger(func() time.Time { return now() })

	l.RecordAttempt("p1")
	l.RecordAttempt("p1")
	if got := ps.GetPlayer("p1").DailyChallenge.AttemptsToday; got != 2 {
		t.Errorf("Attempts today = %d, want 2", got)
	}

	day = day.AddDate(0, 0, 1)
	l.RecordAttempt("p1")
	dc := ps.GetPlayer("p1").DailyChallenge
	if dc.AttemptsToday != 1 {
		t.Errorf("Attempts after rollover = %d, want 1", dc.AttemptsToday)
	}
	if dc.AttemptsDate != models.DateKey(day) {
		t.Errorf("Attempts date = %q, want %q", dc.AttemptsDate, models.DateKey(day))
	}
}
