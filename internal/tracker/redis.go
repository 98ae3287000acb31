package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Jisangain/find-my-br-train/internal/timetable"
)

// Redis key scheme, shared with the previous deployment; existing data and
// any sibling service instances depend on these exact keys.
const (
	activeTrainsKey = "active_trains"
	historyKey      = "all_trains_with_history"
)

func userKey(trainID, userID string) string { return "train:" + trainID + ":user:" + userID + ":last" }
func activeUsersKey(trainID string) string  { return "train:" + trainID + ":active_users" }
func boundsKey(trainID string) string       { return "train:" + trainID + ":bounds" }
func liveCacheKey(trainID string) string    { return "train:" + trainID + ":cached_live" }
func lastKnownKey(trainID string) string    { return "train:" + trainID + ":last_known" }

// ping is the stored per-user report payload.
type ping struct {
	Pos float64 `json:"pos"`
	TS  int64   `json:"ts"`
}

// liveCache is the eagerly materialized consensus payload.
type liveCache struct {
	Position    float64 `json:"position"`
	Timestamp   int64   `json:"timestamp"`
	ActiveUsers int     `json:"active_user"`
	CachedAt    int64   `json:"cached_at"`
}

// RedisStore is the shared-store Store backend. Multiple stateless service
// processes can point at one Redis; consensus is recomputed eagerly on every
// push so reads are a single cache fetch.
//
// The write path batches the report write and the set/expiry updates into one
// pipeline. The bound-check-then-write sequence for non-trusted reports is
// NOT atomic against concurrent pushes for the same train: two validations
// may both pass against a bound a concurrent trusted update is replacing.
// The effect is bounded (one wrongly accepted report, corrected by the next
// recomputation inside the short windows involved), so it is documented
// rather than fixed.
type RedisStore struct {
	rdb      *redis.Client
	schedule ScheduleSource
	now      func() time.Time
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client, schedule ScheduleSource) *RedisStore {
	return &RedisStore{rdb: rdb, schedule: schedule, now: time.Now}
}

// Push validates the report, stores it keyed by (train, user), refreshes the
// membership sets, and recomputes the cached consensus for the train.
func (s *RedisStore) Push(ctx context.Context, r Report) (bool, string, error) {
	r.Timestamp = timetable.NormalizeTimestamp(r.Timestamp)
	trusted := TrustedReporter(r.UserID)
	scheduled, scheduleKnown := s.schedule.Position(r.TrainID, r.Timestamp)

	if trusted {
		if err := s.updateBounds(ctx, r, scheduled, scheduleKnown); err != nil {
			return false, "", err
		}
	} else {
		b, err := s.Bounds(ctx, r.TrainID)
		if err != nil {
			return false, "", err
		}
		if ok, reason := b.Validate(r.Position, scheduled, scheduleKnown); !ok {
			return false, reason, nil
		}
	}

	payload, err := json.Marshal(ping{Pos: r.Position, TS: r.Timestamp})
	if err != nil {
		return false, "", fmt.Errorf("encode ping: %w", err)
	}
	userTTL := LiveWindow
	if trusted {
		userTTL = HistoryWindow
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, userKey(r.TrainID, r.UserID), payload, userTTL)
	pipe.SAdd(ctx, activeUsersKey(r.TrainID), r.UserID)
	pipe.Expire(ctx, activeUsersKey(r.TrainID), LiveWindow)
	pipe.SAdd(ctx, activeTrainsKey, r.TrainID)
	pipe.Expire(ctx, activeTrainsKey, LiveWindow)
	pipe.SAdd(ctx, historyKey, r.TrainID)
	pipe.Expire(ctx, historyKey, HistoryWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, "", fmt.Errorf("store report: %w", err)
	}

	if err := s.recomputeConsensus(ctx, r.TrainID); err != nil {
		return false, "", err
	}
	return true, "Position updated", nil
}

func (s *RedisStore) updateBounds(ctx context.Context, r Report, scheduled float64, scheduleKnown bool) error {
	b, err := s.Bounds(ctx, r.TrainID)
	if err != nil {
		return err
	}
	if b == nil {
		b = &Bounds{}
	}
	b.ApplyTrusted(r.Position, scheduled, scheduleKnown, r.Timestamp)

	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode bounds: %w", err)
	}
	if err := s.rdb.Set(ctx, boundsKey(r.TrainID), payload, HistoryWindow).Err(); err != nil {
		return fmt.Errorf("store bounds: %w", err)
	}
	return nil
}

// recomputeConsensus gathers the surviving per-user reports, prunes expired
// reporters from the active set, and refreshes both position caches with the
// median position and the freshest timestamp.
func (s *RedisStore) recomputeConsensus(ctx context.Context, trainID string) error {
	userIDs, err := s.rdb.SMembers(ctx, activeUsersKey(trainID)).Result()
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}
	if len(userIDs) == 0 {
		return nil
	}

	keys := make([]string, len(userIDs))
	for i, uid := range userIDs {
		keys[i] = userKey(trainID, uid)
	}
	raw, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("fetch pings: %w", err)
	}

	nowSec := s.now().Unix()
	var positions []float64
	var maxTS int64
	var expired []interface{}
	for i, item := range raw {
		str, ok := item.(string)
		if !ok {
			expired = append(expired, userIDs[i])
			continue
		}
		var p ping
		if err := json.Unmarshal([]byte(str), &p); err != nil {
			expired = append(expired, userIDs[i])
			continue
		}
		if nowSec-p.TS > int64(MaxValidAge/time.Second) {
			expired = append(expired, userIDs[i])
			continue
		}
		positions = append(positions, p.Pos)
		if p.TS > maxTS {
			maxTS = p.TS
		}
	}

	if len(expired) > 0 {
		if err := s.rdb.SRem(ctx, activeUsersKey(trainID), expired...).Err(); err != nil {
			return fmt.Errorf("prune active users: %w", err)
		}
	}
	if len(positions) == 0 {
		// Prior cached consensus stays untouched.
		return nil
	}

	median := Median(positions)
	livePayload, err := json.Marshal(liveCache{
		Position:    median,
		Timestamp:   maxTS,
		ActiveUsers: len(positions),
		CachedAt:    nowSec,
	})
	if err != nil {
		return fmt.Errorf("encode live cache: %w", err)
	}
	lastKnownPayload, err := json.Marshal(Sample{Position: median, Timestamp: maxTS})
	if err != nil {
		return fmt.Errorf("encode last known: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, liveCacheKey(trainID), livePayload, LiveWindow)
	pipe.Set(ctx, lastKnownKey(trainID), lastKnownPayload, HistoryWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store consensus: %w", err)
	}
	return nil
}

// Position serves from the live cache, falling back to the last-known cache,
// both capped by the max validity age.
func (s *RedisStore) Position(ctx context.Context, trainID string) (*Position, error) {
	nowSec := s.now().Unix()

	raw, err := s.rdb.Get(ctx, liveCacheKey(trainID)).Result()
	if err == nil {
		if pos := s.decodeLive(raw, nowSec); pos != nil {
			return pos, nil
		}
	} else if err != redis.Nil {
		return nil, fmt.Errorf("fetch live cache: %w", err)
	}

	raw, err = s.rdb.Get(ctx, lastKnownKey(trainID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch last known: %w", err)
	}
	return s.decodeLastKnown(raw, nowSec), nil
}

func (s *RedisStore) decodeLive(raw string, nowSec int64) *Position {
	var cached liveCache
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil
	}
	if nowSec-cached.Timestamp > int64(MaxValidAge/time.Second) {
		return nil
	}
	return &Position{
		Position:    cached.Position,
		Timestamp:   cached.Timestamp,
		ActiveUsers: cached.ActiveUsers,
		Live:        true,
		Unconfirmed: &Sample{Position: cached.Position, Timestamp: cached.Timestamp},
	}
}

func (s *RedisStore) decodeLastKnown(raw string, nowSec int64) *Position {
	var sample Sample
	if err := json.Unmarshal([]byte(raw), &sample); err != nil {
		return nil
	}
	if nowSec-sample.Timestamp > int64(MaxValidAge/time.Second) {
		return nil
	}
	return &Position{
		Position:    sample.Position,
		Timestamp:   sample.Timestamp,
		ActiveUsers: 0,
		Live:        false,
		Unconfirmed: &Sample{Position: sample.Position, Timestamp: sample.Timestamp},
	}
}

// Positions batch-fetches live caches for all trains in one round trip, then
// last-known caches for the remainder.
func (s *RedisStore) Positions(ctx context.Context, trainIDs []string) (map[string]*Position, error) {
	if len(trainIDs) == 0 {
		return map[string]*Position{}, nil
	}
	nowSec := s.now().Unix()
	out := make(map[string]*Position, len(trainIDs))

	liveKeys := make([]string, len(trainIDs))
	for i, id := range trainIDs {
		liveKeys[i] = liveCacheKey(id)
	}
	liveRaw, err := s.rdb.MGet(ctx, liveKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch live caches: %w", err)
	}

	var fallback []string
	for i, item := range liveRaw {
		if str, ok := item.(string); ok {
			if pos := s.decodeLive(str, nowSec); pos != nil {
				out[trainIDs[i]] = pos
				continue
			}
		}
		fallback = append(fallback, trainIDs[i])
	}

	if len(fallback) > 0 {
		keys := make([]string, len(fallback))
		for i, id := range fallback {
			keys[i] = lastKnownKey(id)
		}
		raw, err := s.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("fetch last known caches: %w", err)
		}
		for i, item := range raw {
			if str, ok := item.(string); ok {
				if pos := s.decodeLastKnown(str, nowSec); pos != nil {
					out[fallback[i]] = pos
				}
			}
		}
	}
	return out, nil
}

// Bounds fetches the stored bounds for a train, or nil when unset.
func (s *RedisStore) Bounds(ctx context.Context, trainID string) (*Bounds, error) {
	raw, err := s.rdb.Get(ctx, boundsKey(trainID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch bounds: %w", err)
	}
	var b Bounds
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("decode bounds: %w", err)
	}
	return &b, nil
}

// ActiveTrains lists trains with reports inside the live window.
func (s *RedisStore) ActiveTrains(ctx context.Context) ([]string, error) {
	trains, err := s.rdb.SMembers(ctx, activeTrainsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active trains: %w", err)
	}
	return trains, nil
}

// TrainsWithHistory lists trains with any report inside the history window.
func (s *RedisStore) TrainsWithHistory(ctx context.Context) ([]string, error) {
	trains, err := s.rdb.SMembers(ctx, historyKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list trains with history: %w", err)
	}
	return trains, nil
}

// Healthy pings the store.
func (s *RedisStore) Healthy(ctx context.Context) bool {
	return s.rdb.Ping(ctx).Err() == nil
}
