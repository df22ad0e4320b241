package usage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"syreclabs.com/go/faker"
)

func TestMemoryValidator(t *testing.T) {
	ctx := context.Background()
	v := NewMemoryValidator(0)
	defer v.Close()

	eventType := faker.Lorem().Word() + "/" + faker.Lorem().Word()
	if err := v.TrackEmission(ctx, eventType, "a", true); err != nil {
		t.Fatal(err)
	}
	if err := v.TrackEmission(ctx, eventType, "b", false); err != nil {
		t.Fatal(err)
	}
	if err := v.TrackEmission(ctx, eventType, "c", true); err != nil {
		t.Fatal(err)
	}

	if v.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", v.Len())
	}

	unchecked := v.Unchecked()
	if len(unchecked) != 2 || unchecked[0].EventID != "a" || unchecked[1].EventID != "c" {
		t.Fatalf("unexpected unchecked list %+v", unchecked)
	}

	if err := v.MarkProgressionChecked(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	e, ok := v.Emission("a")
	if !ok || !e.Checked || e.EventType != eventType {
		t.Errorf("unexpected emission %+v", e)
	}
	if got := v.Unchecked(); len(got) != 1 || got[0].EventID != "c" {
		t.Errorf("unexpected unchecked list %+v", got)
	}

	if err := v.MarkProgressionChecked(ctx, "zzz"); !errors.Is(err, ErrNotTracked) {
		t.Errorf("expected ErrNotTracked, got %v", err)
	}

	v.Reset()
	if v.Len() != 0 {
		t.Errorf("expected empty after reset, got %d", v.Len())
	}
}

func TestMemoryValidatorRetrack(t *testing.T) {
	ctx := context.Background()
	v := NewMemoryValidator(0)
	defer v.Close()

	_ = v.TrackEmission(ctx, "a/b", "x", true)
	_ = v.MarkProgressionChecked(ctx, "x")
	_ = v.TrackEmission(ctx, "a/b", "x", true)

	if e, _ := v.Emission("x"); e.Checked {
		t.Error("tracking again should reset the checked flag")
	}
}

func TestMemoryValidatorExpiry(t *testing.T) {
	ctx := context.Background()
	v := NewMemoryValidator(20 * time.Millisecond)
	defer v.Close()

	_ = v.TrackEmission(ctx, "a/b", "x", true)
	if _, ok := v.Emission("x"); !ok {
		t.Fatal("expected emission before expiry")
	}

	time.Sleep(40 * time.Millisecond)

	if _, ok := v.Emission("x"); ok {
		t.Error("expected emission to expire")
	}
	if err := v.MarkProgressionChecked(ctx, "x"); !errors.Is(err, ErrNotTracked) {
		t.Errorf("expected ErrNotTracked after expiry, got %v", err)
	}
	if n := len(v.Unchecked()); n != 0 {
		t.Errorf("expired entries should not be reported, got %d", n)
	}
}

func TestMemoryValidatorReport(t *testing.T) {
	ctx := context.Background()
	v := NewMemoryValidator(0)
	defer v.Close()

	_ = v.TrackEmission(ctx, "security/alert", "s1", true)
	_ = v.TrackEmission(ctx, "bot/message", "m1", false)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	if n := v.Report(logger); n != 1 {
		t.Errorf("expected 1 reported emission, got %d", n)
	}
	if out := buf.String(); !strings.Contains(out, "event_id=s1") || strings.Contains(out, "m1") {
		t.Errorf("unexpected report output %q", out)
	}
}

func TestMemoryValidatorConcurrent(t *testing.T) {
	ctx := context.Background()
	v := NewMemoryValidator(time.Minute)
	defer v.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("evt-%d", i)
			_ = v.TrackEmission(ctx, "a/b", id, i%2 == 0)
			_ = v.MarkProgressionChecked(ctx, id)
			_, _ = v.Emission(id)
		}(i)
	}
	wg.Wait()

	if v.Len() != 50 {
		t.Errorf("expected 50 entries, got %d", v.Len())
	}
	if n := len(v.Unchecked()); n != 0 {
		t.Errorf("expected all checked, got %d unchecked", n)
	}
	v.Close()
}

func TestNop(t *testing.T) {
	var v Validator = Nop{}
	if err := v.TrackEmission(context.Background(), "a/b", "x", true); err != nil {
		t.Error(err)
	}
	if err := v.MarkProgressionChecked(context.Background(), "x"); err != nil {
		t.Error(err)
	}
}
