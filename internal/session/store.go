package session

import (
	"context"
	"strconv"
	"time"

	"github.com/eleven-am/voice-relay/internal/shared"
	"github.com/redis/go-redis/v9"
)

const (
	recordTTL = 24 * time.Hour
	statsTTL  = 30 * 24 * time.Hour
)

type Store struct {
	redis *redis.Client
	now   func() time.Time
}

func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient, now: time.Now}
}

func (s *Store) Start(ctx context.Context, rec *Record) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = s.now().UTC()
	}
	key := rec.RedisKey()
	statsKey := StatsRedisKey(rec.StartedAt.UTC().Format(dateLayout))

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"customer_id", rec.CustomerID,
		"employee_id", rec.EmployeeID,
		"customer_lang", rec.CustomerLang,
		"employee_lang", rec.EmployeeLang,
		"started_at", formatUnix(rec.StartedAt),
	)
	pipe.Expire(ctx, key, recordTTL)
	pipe.HIncrBy(ctx, statsKey, "pairings", 1)
	pipe.Expire(ctx, statsKey, statsTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// End stamps the record's end time and folds its duration into the daily
// counters of the day it started. Ending an unknown or already ended record
// returns ErrNotFound.
func (s *Store) End(ctx context.Context, customerID, employeeID string) (*Record, error) {
	rec, err := s.Get(ctx, customerID, employeeID)
	if err != nil {
		return nil, err
	}
	if !rec.EndedAt.IsZero() {
		return nil, shared.ErrNotFound
	}
	rec.EndedAt = s.now().UTC()

	duration := int64(rec.EndedAt.Sub(rec.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	statsKey := StatsRedisKey(rec.StartedAt.Format(dateLayout))

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, rec.RedisKey(), "ended_at", formatUnix(rec.EndedAt))
	pipe.Expire(ctx, rec.RedisKey(), recordTTL)
	pipe.HIncrBy(ctx, statsKey, "completed", 1)
	pipe.HIncrBy(ctx, statsKey, "duration_secs", duration)
	pipe.Expire(ctx, statsKey, statsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) Get(ctx context.Context, customerID, employeeID string) (*Record, error) {
	data, err := s.redis.HGetAll(ctx, RecordRedisKey(customerID, employeeID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, shared.ErrNotFound
	}
	return &Record{
		CustomerID:   data["customer_id"],
		EmployeeID:   data["employee_id"],
		CustomerLang: data["customer_lang"],
		EmployeeLang: data["employee_lang"],
		StartedAt:    parseUnix(data["started_at"]),
		EndedAt:      parseUnix(data["ended_at"]),
	}, nil
}

// DailyStats returns counters for the last days, newest first, skipping days
// with no pairings.
func (s *Store) DailyStats(ctx context.Context, days int) ([]*DailyStats, error) {
	now := s.now().UTC()
	var stats []*DailyStats

	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, -i).Format(dateLayout)
		data, err := s.redis.HGetAll(ctx, StatsRedisKey(date)).Result()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}

		d := &DailyStats{Date: date}
		d.Pairings, _ = strconv.ParseInt(data["pairings"], 10, 64)
		d.Completed, _ = strconv.ParseInt(data["completed"], 10, 64)
		total, _ := strconv.ParseInt(data["duration_secs"], 10, 64)
		if d.Completed > 0 {
			d.AvgDurationSecs = total / d.Completed
		}
		stats = append(stats, d)
	}

	return stats, nil
}
