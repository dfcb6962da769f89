package remote

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"memorludo/internal/models"
)

// RedisStore keeps one hash per player plus a points-scored sorted set for
// the cross-device leaderboard.
//
//	HSET user:{id} displayName ... points ... gamesPlayed ...
//	ZADD leaderboard {points} {id}
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func userKey(id string) string {
	return "user:" + id
}

const leaderboardKey = "leaderboard"

func (s *RedisStore) GetPlayer(ctx context.Context, id string) (*models.PlayerRecord, error) {
	fields, err := s.client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	rec := models.NewPlayerRecord(id, fields["displayName"])
	rec.Email = fields["email"]
	rec.TotalPoints = atoi(fields["points"])
	rec.GamesPlayed = atoi(fields["gamesPlayed"])
	rec.GamesWon = atoi(fields["gamesWon"])
	rec.BestTime = atoi(fields["bestTime"])
	rec.WinRate = atoi(fields["winRate"])
	return &rec, nil
}

func (s *RedisStore) CreatePlayer(ctx context.Context, rec models.PlayerRecord) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, userKey(rec.ID),
		"id", rec.ID,
		"displayName", rec.DisplayName,
		"email", rec.Email,
		"points", rec.TotalPoints,
		"gamesPlayed", rec.GamesPlayed,
		"gamesWon", rec.GamesWon,
		"bestTime", rec.BestTime,
		"winRate", rec.WinRate,
		"createdAt", time.Now().UTC().Format(time.RFC3339),
	)
	pipe.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(rec.TotalPoints), Member: rec.ID})
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) UpdatePlayerPoints(ctx context.Context, id string, pointsDelta int, outcome models.RoundOutcome) error {
	key := userKey(id)

	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, key, "points", int64(pointsDelta))
	pipe.HIncrBy(ctx, key, "gamesPlayed", 1)
	if outcome.IsWin {
		pipe.HIncrBy(ctx, key, "gamesWon", 1)
	}
	pipe.HSet(ctx, key, "lastGamePlayed", time.Now().UTC().Format(time.RFC3339))
	pipe.ZIncrBy(ctx, leaderboardKey, float64(pointsDelta), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	// Best time and win rate need the current hash; last write wins on races.
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return err
	}
	updates := map[string]any{}
	if outcome.IsWin && outcome.TimeSpentSeconds > 0 {
		best := atoi(fields["bestTime"])
		if best == 0 || outcome.TimeSpentSeconds < best {
			updates["bestTime"] = outcome.TimeSpentSeconds
		}
	}
	games, wins := atoi(fields["gamesPlayed"]), atoi(fields["gamesWon"])
	updates["winRate"] = winRate(wins, games)
	return s.client.HSet(ctx, key, updates).Err()
}

func (s *RedisStore) AdjustPoints(ctx context.Context, id string, pointsDelta int) error {
	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, userKey(id), "points", int64(pointsDelta))
	pipe.ZIncrBy(ctx, leaderboardKey, float64(pointsDelta), id)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) SyncStats(ctx context.Context, local models.PlayerRecord) error {
	key := userKey(local.ID)
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return s.CreatePlayer(ctx, local)
	}

	games := max(local.GamesPlayed, atoi(fields["gamesPlayed"]))
	wins := max(local.GamesWon, atoi(fields["gamesWon"]))
	best := atoi(fields["bestTime"])
	if local.BestTime > 0 && (best == 0 || local.BestTime < best) {
		best = local.BestTime
	}
	return s.client.HSet(ctx, key, map[string]any{
		"gamesPlayed": games,
		"gamesWon":    wins,
		"bestTime":    best,
		"winRate":     winRate(wins, games),
	}).Err()
}

func (s *RedisStore) ListTopPlayers(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	ranked, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(ranked))
	for _, z := range ranked {
		id, _ := z.Member.(string)
		if id == "" {
			continue
		}
		name, err := s.client.HGet(ctx, userKey(id), "displayName").Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		entries = append(entries, models.LeaderboardEntry{
			PlayerID:    id,
			DisplayName: name,
			TotalPoints: int(z.Score),
		})
	}
	return entries, nil
}

func atoi(raw string) int {
	n, _ := strconv.Atoi(raw)
	return n
}

func winRate(wins, games int) int {
	if games == 0 {
		return 0
	}
	return int(float64(wins)/float64(games)*100 + 0.5)
}
