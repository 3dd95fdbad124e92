package session

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/medkiosk/voice/internal/shared"
	"github.com/redis/go-redis/v9"
)

const (
	sessionTTL = 24 * time.Hour
	metricsTTL = 7 * 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = shared.NewID("sess_")
	}
	sess.Status = StatusActive
	sess.StartedAt = time.Now()
	sess.LastActiveAt = time.Now()

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, sess.RedisKey(), data, sessionTTL).Err()
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	data, err := s.redis.Get(ctx, "session:"+id).Bytes()
	if err == redis.Nil {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) Touch(ctx context.Context, id string) error {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	sess.LastActiveAt = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, sess.RedisKey(), data, sessionTTL).Err()
}

func (s *Store) EndSession(ctx context.Context, id string, status Status) error {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	sess.Status = status
	sess.LastActiveAt = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, sess.RedisKey(), data, sessionTTL).Err()
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.redis.Del(ctx, "session:"+id).Err()
}

// ActiveSessions lists live sessions, optionally scoped to one kiosk.
func (s *Store) ActiveSessions(ctx context.Context, kioskID string) ([]*Session, error) {
	keys, err := s.redis.Keys(ctx, "session:sess_*").Result()
	if err != nil {
		return nil, err
	}

	var sessions []*Session
	for _, key := range keys {
		data, err := s.redis.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		if sess.Status != StatusActive {
			continue
		}
		if kioskID != "" && sess.KioskID != kioskID {
			continue
		}
		sessions = append(sessions, &sess)
	}
	return sessions, nil
}

func (s *Store) IncrementMetric(ctx context.Context, kioskID, field string, value int64) error {
	now := time.Now().UTC()
	key := MetricsRedisKey(kioskID, now.Format("2006-01-02"), now.Hour())

	pipe := s.redis.Pipeline()
	pipe.HIncrBy(ctx, key, field, value)
	pipe.Expire(ctx, key, metricsTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) IncrementSessions(ctx context.Context, kioskID string) error {
	return s.IncrementMetric(ctx, kioskID, "sessions", 1)
}

func (s *Store) IncrementToolCalls(ctx context.Context, kioskID string) error {
	return s.IncrementMetric(ctx, kioskID, "tool_calls", 1)
}

func (s *Store) IncrementBookings(ctx context.Context, kioskID string) error {
	return s.IncrementMetric(ctx, kioskID, "bookings", 1)
}

func (s *Store) IncrementInterruptions(ctx context.Context, kioskID string) error {
	return s.IncrementMetric(ctx, kioskID, "interruptions", 1)
}

func (s *Store) IncrementErrors(ctx context.Context, kioskID string) error {
	return s.IncrementMetric(ctx, kioskID, "error_count", 1)
}

// GetMetrics walks the last n hourly buckets, newest first, skipping hours
// with no activity.
func (s *Store) GetMetrics(ctx context.Context, kioskID string, hours int) ([]*Metrics, error) {
	now := time.Now().UTC()
	var metrics []*Metrics

	for i := 0; i < hours; i++ {
		t := now.Add(-time.Duration(i) * time.Hour)
		key := MetricsRedisKey(kioskID, t.Format("2006-01-02"), t.Hour())

		data, err := s.redis.HGetAll(ctx, key).Result()
		if err != nil || len(data) == 0 {
			continue
		}

		m := &Metrics{
			KioskID: kioskID,
			Date:    t.Format("2006-01-02"),
			Hour:    t.Hour(),
		}
		if v, ok := data["sessions"]; ok {
			m.Sessions, _ = strconv.ParseInt(v, 10, 64)
		}
		if v, ok := data["tool_calls"]; ok {
			m.ToolCalls, _ = strconv.ParseInt(v, 10, 64)
		}
		if v, ok := data["bookings"]; ok {
			m.Bookings, _ = strconv.ParseInt(v, 10, 64)
		}
		if v, ok := data["interruptions"]; ok {
			m.Interruptions, _ = strconv.ParseInt(v, 10, 64)
		}
		if v, ok := data["error_count"]; ok {
			m.ErrorCount, _ = strconv.ParseInt(v, 10, 64)
		}

		metrics = append(metrics, m)
	}
	return metrics, nil
}
