package redisstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/session"
)

var log = logging.Logger("authcore/redisstore")

// ErrRedisUnavailable wraps every Redis transport or command failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	minSlidingTTL  = time.Second
	maxSaveRetries = 3
)

const deleteSessionScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
  local count = tonumber(redis.call("GET", KEYS[3]) or "0")
  if count > 1 then
    redis.call("DECR", KEYS[3])
  elseif count == 1 then
    redis.call("DEL", KEYS[3])
  end
end
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Config controls key layout and expiration.
type Config struct {
	// Prefix namespaces every key written by the store.
	Prefix string
	// TTL is the idle lifetime of a session. Zero keeps records until the
	// absolute lifetime ends, or forever when that is zero too.
	TTL time.Duration
	// AbsoluteLifetime caps a session's age regardless of activity.
	AbsoluteLifetime time.Duration
	// Sliding extends the idle TTL on every load.
	Sliding       bool
	JitterEnabled bool
	JitterRange   time.Duration
}

// DefaultConfig returns the store defaults: a one day sliding idle TTL
// inside a seven day absolute lifetime.
func DefaultConfig() Config {
	return Config{
		Prefix:           "as",
		TTL:              24 * time.Hour,
		AbsoluteLifetime: 7 * 24 * time.Hour,
		Sliding:          true,
		JitterRange:      30 * time.Second,
	}
}

// Store is a Redis-backed session store with sliding expiration, an
// absolute lifetime cap and a per-user session index.
type Store[D any] struct {
	redis redis.UniversalClient
	cfg   Config
	codec Codec[D]
}

// New creates a store on rdb. A nil codec selects [JSONCodec].
func New[D any](rdb redis.UniversalClient, cfg Config, codec Codec[D]) *Store[D] {
	if codec == nil {
		codec = JSONCodec[D]{}
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultConfig().Prefix
	}
	return &Store[D]{redis: rdb, cfg: cfg, codec: codec}
}

func (s *Store[D]) key(sessionID string) string {
	return s.cfg.Prefix + ":s:" + sessionID
}

func (s *Store[D]) userKey(userID string) string {
	return s.cfg.Prefix + ":u:" + userID
}

func (s *Store[D]) countKey() string {
	return s.cfg.Prefix + ":count"
}

// Load returns the stored fields for id. Missing, idle-expired and
// absolute-expired sessions are reported as not found.
//
//	Performance: 1 GET plus 1 EXPIRE when sliding.
func (s *Store[D]) Load(ctx context.Context, id session.ID) (session.Fields[D], bool, error) {
	var fields session.Fields[D]
	sid := id.String()
	key := s.key(sid)

	raw, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fields, false, nil
		}
		return fields, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		return fields, false, err
	}

	now := time.Now()
	remaining, capped := s.remainingAbsoluteTTL(rec, now)
	if capped && remaining <= 0 {
		log.Debugw("evicting expired session", "session", sid)
		if err := s.deleteSessionAndIndex(ctx, rec.UserID, sid); err != nil {
			return fields, false, err
		}
		return fields, false, nil
	}

	if s.cfg.Sliding {
		nextTTL, err := s.nextSlidingTTL(remaining, capped)
		if err != nil {
			return fields, false, err
		}
		if nextTTL > 0 {
			if err := s.redis.Expire(ctx, key, nextTTL).Err(); err != nil {
				return fields, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
	}

	data, err := s.codec.Decode(rec.Payload)
	if err != nil {
		return fields, false, fmt.Errorf("%w: payload: %v", ErrCorruptRecord, err)
	}
	fields.UserID = rec.UserID
	fields.Data = data
	return fields, true, nil
}

// Save upserts the session. The creation time of an existing record is
// kept, and the per-user index follows the user id.
//
//	Performance: WATCH + GET + MULTI(SET, SREM?, SADD?, INCR?).
func (s *Store[D]) Save(ctx context.Context, id session.ID, userID string, data D) error {
	payload, err := s.codec.Encode(data)
	if err != nil {
		return fmt.Errorf("redisstore: encode payload: %w", err)
	}
	if len(userID) > 255 {
		return errors.New("redisstore: userID too long")
	}
	if len(payload) > maxPayloadLen {
		return errors.New("redisstore: session payload too large")
	}

	sid := id.String()
	key := s.key(sid)

	txf := func(tx *redis.Tx) error {
		prev, err := readRecord(ctx, tx, key)
		if err != nil {
			return err
		}

		now := time.Now()
		rec, ttl := s.nextRecord(prev, userID, payload, now)
		encoded, err := encodeRecord(rec)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, ttl)
			if prev != nil && prev.UserID != "" && prev.UserID != userID {
				pipe.SRem(ctx, s.userKey(prev.UserID), sid)
			}
			if userID != "" {
				pipe.SAdd(ctx, s.userKey(userID), sid)
			}
			if prev == nil {
				pipe.Incr(ctx, s.countKey())
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxSaveRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return fmt.Errorf("%w: save of %s lost %d optimistic retries", ErrRedisUnavailable, sid, maxSaveRetries)
}

func readRecord(ctx context.Context, tx *redis.Tx, key string) (*record, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		// Overwritten by the save.
		return nil, nil
	}
	return rec, nil
}

func (s *Store[D]) nextRecord(prev *record, userID string, payload []byte, now time.Time) (*record, time.Duration) {
	rec := &record{UserID: userID, CreatedAt: now.Unix(), Payload: payload}
	if prev != nil {
		rec.CreatedAt = prev.CreatedAt
		rec.ExpiresAt = prev.ExpiresAt
	}
	if prev == nil && s.cfg.AbsoluteLifetime > 0 {
		rec.ExpiresAt = now.Add(s.cfg.AbsoluteLifetime).Unix()
	}

	ttl := s.cfg.TTL
	remaining, capped := s.remainingAbsoluteTTL(rec, now)
	if capped && remaining <= 0 {
		rec.CreatedAt = now.Unix()
		rec.ExpiresAt = 0
		remaining, capped = s.cfg.AbsoluteLifetime, s.cfg.AbsoluteLifetime > 0
		if capped {
			rec.ExpiresAt = now.Add(s.cfg.AbsoluteLifetime).Unix()
		}
	}
	if capped && (ttl <= 0 || remaining < ttl) {
		ttl = remaining
	}
	return rec, ttl
}

// Delete removes a session and its index entry. Deleting a missing session
// is not an error.
func (s *Store[D]) Delete(ctx context.Context, id session.ID) error {
	sid := id.String()
	raw, err := s.redis.Get(ctx, s.key(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var userID string
	if rec, err := decodeRecord(raw); err == nil {
		userID = rec.UserID
	}
	return s.deleteSessionAndIndex(ctx, userID, sid)
}

// DeleteAllForUser removes every session indexed under userID except the
// listed ones, and returns how many stored sessions were removed.
//
// ATOMICITY NOTE: the index is read before the delete transaction runs, so a
// session saved in between survives until it expires or the next call.
func (s *Store[D]) DeleteAllForUser(ctx context.Context, userID string, except ...session.ID) (int, error) {
	userKey := s.userKey(userID)

	members, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keep := make(map[string]struct{}, len(except))
	for _, id := range except {
		keep[id.String()] = struct{}{}
	}

	targets := make([]string, 0, len(members))
	keys := make([]string, 0, len(members))
	for _, sid := range members {
		if _, ok := keep[sid]; ok {
			continue
		}
		targets = append(targets, sid)
		keys = append(keys, s.key(sid))
	}
	if len(targets) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	existsCmds := make([]*redis.IntCmd, len(keys))
	for i, k := range keys {
		existsCmds[i] = pipe.Exists(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	var existing int
	for _, cmd := range existsCmds {
		existing += int(cmd.Val())
	}

	currentCount, err := s.SessionCount(ctx)
	if err != nil {
		return 0, err
	}
	decrement := min(existing, currentCount)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		members := make([]any, len(targets))
		for i, sid := range targets {
			members[i] = sid
		}
		pipe.SRem(ctx, userKey, members...)
		if decrement > 0 {
			pipe.DecrBy(ctx, s.countKey(), int64(decrement))
		}
		if decrement == currentCount && currentCount > 0 {
			pipe.Del(ctx, s.countKey())
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	log.Debugw("revoked user sessions", "user", userID, "count", existing)
	return existing, nil
}

// ActiveSessionIDs returns the session ids indexed under userID. Entries
// that are not valid ids are skipped.
func (s *Store[D]) ActiveSessionIDs(ctx context.Context, userID string) ([]session.ID, error) {
	members, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []session.ID{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	ids := make([]session.ID, 0, len(members))
	for _, m := range members {
		id, err := session.ParseID(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SessionCount returns the tracked number of stored sessions.
func (s *Store[D]) SessionCount(ctx context.Context) (int, error) {
	count, err := s.redis.Get(ctx, s.countKey()).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store[D]) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

// remainingAbsoluteTTL returns the time left before the absolute cap and
// whether a cap applies at all.
func (s *Store[D]) remainingAbsoluteTTL(rec *record, now time.Time) (time.Duration, bool) {
	var (
		expiry time.Time
		capped bool
	)
	if rec.ExpiresAt > 0 {
		expiry = time.Unix(rec.ExpiresAt, 0)
		capped = true
	}
	if s.cfg.AbsoluteLifetime > 0 {
		configCap := time.Unix(rec.CreatedAt, 0).Add(s.cfg.AbsoluteLifetime)
		if !capped || configCap.Before(expiry) {
			expiry = configCap
			capped = true
		}
	}
	if !capped {
		return 0, false
	}
	return expiry.Sub(now), true
}

func (s *Store[D]) nextSlidingTTL(remaining time.Duration, capped bool) (time.Duration, error) {
	nextTTL := s.cfg.TTL
	if nextTTL <= 0 {
		if !capped {
			return 0, nil
		}
		nextTTL = remaining
	}

	if s.cfg.JitterEnabled && s.cfg.JitterRange > 0 {
		jitter, err := randomJitter(s.cfg.JitterRange)
		if err != nil {
			return 0, err
		}
		nextTTL += jitter
	}

	if capped && nextTTL > remaining {
		nextTTL = remaining
	}

	minTTL := minSlidingTTL
	if capped && remaining < minTTL {
		minTTL = remaining
	}
	if nextTTL < minTTL {
		nextTTL = minTTL
	}
	return nextTTL, nil
}

func randomJitter(jitterRange time.Duration) (time.Duration, error) {
	if jitterRange <= 0 {
		return 0, nil
	}

	max := jitterRange.Nanoseconds()
	if max > (math.MaxInt64-1)/2 {
		return 0, errors.New("jitter range too large")
	}
	span := max*2 + 1

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return 0, err
	}

	return time.Duration(n.Int64() - max), nil
}

func (s *Store[D]) deleteSessionAndIndex(ctx context.Context, userID, sessionID string) error {
	keys := []string{s.key(sessionID), s.userKey(userID), s.countKey()}
	if _, err := deleteSessionLua.Run(ctx, s.redis, keys, sessionID).Result(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
