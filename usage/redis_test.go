package usage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

// fakeRedis keeps hashes in memory and records expirations. Scripts run
// by hash, as if already loaded.
type fakeRedis struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	expires map[string]time.Duration
	evals   int
	err     error
}

var _ RedisClient = (*fakeRedis)(nil)

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		hashes:  make(map[string]map[string]string),
		expires: make(map[string]time.Duration),
	}
}

func (f *fakeRedis) EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	key := keys[0]
	switch sha1 {
	case trackScript.Hash():
		f.hashes[key] = map[string]string{
			fieldType:      fmt.Sprint(args[0]),
			fieldBlocking:  fmt.Sprint(args[1]),
			fieldChecked:   "false",
			fieldEmittedAt: fmt.Sprint(args[2]),
		}
		if ms := args[3].(int64); ms > 0 {
			f.expires[key] = time.Duration(ms) * time.Millisecond
		}
		cmd.SetVal(int64(1))
	case markScript.Hash():
		h, ok := f.hashes[key]
		if !ok {
			cmd.SetVal(int64(0))
			return cmd
		}
		h[fieldChecked] = "true"
		cmd.SetVal(int64(1))
	default:
		cmd.SetErr(fmt.Errorf("unexpected script %s", sha1))
	}
	return cmd
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.EvalSha(ctx, redis.NewScript(script).Hash(), keys, args...)
}

func (f *fakeRedis) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeRedis) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return f.EvalSha(ctx, sha1, keys, args...)
}

func (f *fakeRedis) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	cmd := redis.NewBoolSliceCmd(ctx)
	out := make([]bool, len(hashes))
	for i := range out {
		out[i] = true
	}
	cmd.SetVal(out)
	return cmd
}

func (f *fakeRedis) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal(redis.NewScript(script).Hash())
	return cmd
}

func (f *fakeRedis) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	cmd := redis.NewMapStringStringCmd(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	cmd.SetVal(out)
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.hashes[k]; ok {
			delete(f.hashes, k)
			delete(f.expires, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func TestRedisValidator(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	v := NewRedisValidator(client, time.Hour)

	if err := v.TrackEmission(ctx, "security/alert", "evt-1", true); err != nil {
		t.Fatalf("TrackEmission failed: %v", err)
	}

	t.Run("key layout", func(t *testing.T) {
		h, ok := client.hashes["botevent:usage:evt-1"]
		if !ok {
			t.Fatal("hash not stored under the default prefix")
		}
		if h["type"] != "security/alert" || h["blocking"] != "true" || h["checked"] != "false" {
			t.Errorf("unexpected hash %v", h)
		}
		if client.expires["botevent:usage:evt-1"] != time.Hour {
			t.Errorf("expected 1h expiry, got %v", client.expires["botevent:usage:evt-1"])
		}
	})

	t.Run("emission", func(t *testing.T) {
		e, err := v.Emission(ctx, "evt-1")
		if err != nil {
			t.Fatal(err)
		}
		if time.Since(e.EmittedAt) > time.Minute {
			t.Errorf("unexpected emitted_at %v", e.EmittedAt)
		}
		e.EmittedAt = time.Time{}
		want := Emission{EventType: "security/alert", EventID: "evt-1", WasBlocking: true}
		if diff := cmp.Diff(want, e); diff != "" {
			t.Errorf("emission mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("mark checked", func(t *testing.T) {
		if err := v.MarkProgressionChecked(ctx, "evt-1"); err != nil {
			t.Fatal(err)
		}
		e, err := v.Emission(ctx, "evt-1")
		if err != nil {
			t.Fatal(err)
		}
		if !e.Checked {
			t.Error("expected checked")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		if err := v.MarkProgressionChecked(ctx, "missing"); !errors.Is(err, ErrNotTracked) {
			t.Errorf("expected ErrNotTracked, got %v", err)
		}
		if _, err := v.Emission(ctx, "missing"); !errors.Is(err, ErrNotTracked) {
			t.Errorf("expected ErrNotTracked, got %v", err)
		}
	})

	t.Run("remove", func(t *testing.T) {
		if err := v.Remove(ctx, "evt-1"); err != nil {
			t.Fatal(err)
		}
		if _, err := v.Emission(ctx, "evt-1"); !errors.Is(err, ErrNotTracked) {
			t.Errorf("expected ErrNotTracked after remove, got %v", err)
		}
	})
}

func TestRedisValidatorPrefixAndNoTTL(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	v := NewRedisValidator(client, 0).WithPrefix("app:")

	if err := v.TrackEmission(ctx, "bot/message", "m1", false); err != nil {
		t.Fatal(err)
	}
	if _, ok := client.hashes["app:m1"]; !ok {
		t.Error("custom prefix not used")
	}
	if _, ok := client.expires["app:m1"]; ok {
		t.Error("zero ttl should not set an expiry")
	}
}

func TestRedisValidatorErrors(t *testing.T) {
	ctx := context.Background()
	errDown := errors.New("connection refused")
	client := newFakeRedis()
	client.err = errDown
	v := NewRedisValidator(client, time.Minute)

	if err := v.TrackEmission(ctx, "a/b", "x", true); !errors.Is(err, errDown) {
		t.Errorf("TrackEmission: expected wrapped error, got %v", err)
	}
	if err := v.MarkProgressionChecked(ctx, "x"); !errors.Is(err, errDown) {
		t.Errorf("MarkProgressionChecked: expected wrapped error, got %v", err)
	}
	if _, err := v.Emission(ctx, "x"); !errors.Is(err, errDown) {
		t.Errorf("Emission: expected wrapped error, got %v", err)
	}
}

func TestRedisValidatorExpiredBeforeCheck(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	v := NewRedisValidator(client, time.Minute)

	if err := v.TrackEmission(ctx, "bot/reply", "gone", true); err != nil {
		t.Fatal(err)
	}
	if client.evals != 1 {
		t.Errorf("expected tracking in a single round trip, got %d", client.evals)
	}

	// key expires between emit and the proceed check
	client.mu.Lock()
	delete(client.hashes, "botevent:usage:gone")
	delete(client.expires, "botevent:usage:gone")
	client.mu.Unlock()

	if err := v.MarkProgressionChecked(ctx, "gone"); !errors.Is(err, ErrNotTracked) {
		t.Errorf("expected ErrNotTracked, got %v", err)
	}
	if _, ok := client.hashes["botevent:usage:gone"]; ok {
		t.Error("marking an expired emission recreated its hash")
	}
	if client.evals != 2 {
		t.Errorf("expected the check in a single round trip, got %d evals", client.evals)
	}
}

func TestRedisValidatorCheckKeepsExpiry(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	v := NewRedisValidator(client, 90*time.Second)

	if err := v.TrackEmission(ctx, "bot/reply", "live", true); err != nil {
		t.Fatal(err)
	}
	if err := v.MarkProgressionChecked(ctx, "live"); err != nil {
		t.Fatal(err)
	}
	if got := client.expires["botevent:usage:live"]; got != 90*time.Second {
		t.Errorf("expected expiry kept at 90s, got %v", got)
	}
}
