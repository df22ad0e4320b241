package usage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the go-redis client used by RedisValidator.
// *redis.Client, *redis.ClusterClient and *redis.Ring satisfy it.
type RedisClient interface {
	redis.Scripter
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// trackScript writes the emission hash and its expiry in one step.
// ARGV: type, blocking, emitted_at (unix ms), ttl (ms, 0 for none).
var trackScript = redis.NewScript(`
	local key = KEYS[1]
	redis.call('HSET', key, 'type', ARGV[1], 'blocking', ARGV[2], 'checked', 'false', 'emitted_at', ARGV[3])
	local ttl = tonumber(ARGV[4])
	if ttl > 0 then
		redis.call('PEXPIRE', key, ttl)
	end
	return 1
`)

// markScript sets checked only on a live hash, keeping its expiry.
// Returns 0 when the hash does not exist.
var markScript = redis.NewScript(`
	local key = KEYS[1]
	if redis.call('EXISTS', key) == 0 then
		return 0
	end
	redis.call('HSET', key, 'checked', 'true')
	return 1
`)

// Hash fields of a tracked emission.
const (
	fieldType      = "type"
	fieldBlocking  = "blocking"
	fieldChecked   = "checked"
	fieldEmittedAt = "emitted_at"
)

// RedisValidator implements Validator on Redis so that several processes
// share one view of emitted events.
//
// Each emission is a hash at <prefix><eventID> with fields type, blocking,
// checked and emitted_at, expiring after the TTL.
type RedisValidator struct {
	client RedisClient
	ttl    time.Duration
	prefix string
}

// NewRedisValidator creates a Redis-backed validator.
// The default key prefix is "botevent:usage:".
func NewRedisValidator(client RedisClient, ttl time.Duration) *RedisValidator {
	return &RedisValidator{
		client: client,
		ttl:    ttl,
		prefix: "botevent:usage:",
	}
}

// WithPrefix sets the key prefix. Returns the validator for chaining.
func (v *RedisValidator) WithPrefix(prefix string) *RedisValidator {
	v.prefix = prefix
	return v
}

func (v *RedisValidator) key(eventID string) string {
	return v.prefix + eventID
}

// TrackEmission stores the emission hash and sets its expiry atomically.
func (v *RedisValidator) TrackEmission(ctx context.Context, eventType, eventID string, wasBlocking bool) error {
	err := trackScript.Run(ctx, v.client, []string{v.key(eventID)},
		eventType,
		strconv.FormatBool(wasBlocking),
		strconv.FormatInt(time.Now().UnixMilli(), 10),
		v.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis track: %w", err)
	}
	return nil
}

// MarkProgressionChecked sets the checked field of a live hash.
// Returns ErrNotTracked when the hash does not exist. An expired hash is
// never recreated.
func (v *RedisValidator) MarkProgressionChecked(ctx context.Context, eventID string) error {
	n, err := markScript.Run(ctx, v.client, []string{v.key(eventID)}).Int()
	if err != nil {
		return fmt.Errorf("redis mark checked: %w", err)
	}
	if n == 0 {
		return ErrNotTracked
	}
	return nil
}

// Emission loads the tracked state of an event.
func (v *RedisValidator) Emission(ctx context.Context, eventID string) (Emission, error) {
	fields, err := v.client.HGetAll(ctx, v.key(eventID)).Result()
	if err != nil {
		return Emission{}, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return Emission{}, ErrNotTracked
	}

	e := Emission{
		EventType: fields[fieldType],
		EventID:   eventID,
	}
	e.WasBlocking, _ = strconv.ParseBool(fields[fieldBlocking])
	e.Checked, _ = strconv.ParseBool(fields[fieldChecked])
	if ms, err := strconv.ParseInt(fields[fieldEmittedAt], 10, 64); err == nil {
		e.EmittedAt = time.UnixMilli(ms)
	}
	return e, nil
}

// Remove deletes the tracked state of an event.
func (v *RedisValidator) Remove(ctx context.Context, eventID string) error {
	return v.client.Del(ctx, v.key(eventID)).Err()
}

// Compile-time checks
var (
	_ Validator   = (*RedisValidator)(nil)
	_ RedisClient = (*redis.Client)(nil)
)
