package fallback

import (
	"errors"
	"testing"
)

type stringCaller func() (string, error)

func TestCall_PrimarySuccess(t *testing.T) {
	pb := New[stringCaller](
		func() (string, error) { return "primary", nil },
		func() (string, error) { return "backup", nil },
		FallbackOnce,
	)
	got, err := Call(pb, false, func(fn stringCaller) (string, error) { return fn() })
	if err != nil || got != "primary" {
		t.Fatalf("got %q, %v", got, err)
	}
	if pb.Latched() {
		t.Fatal("should not latch on primary success")
	}
}

func TestCall_FallbackOnceDoesNotLatch(t *testing.T) {
	pb := New[stringCaller](
		func() (string, error) { return "", errors.New("boom") },
		func() (string, error) { return "backup", nil },
		FallbackOnce,
	)
	got, err := Call(pb, false, func(fn stringCaller) (string, error) { return fn() })
	if err != nil || got != "backup" {
		t.Fatalf("got %q, %v", got, err)
	}
	if pb.Latched() {
		t.Fatal("fallback_once must not latch")
	}
}

func TestCall_AlwaysFallbackLatches(t *testing.T) {
	pb := New[stringCaller](
		func() (string, error) { return "", errors.New("boom") },
		func() (string, error) { return "backup", nil },
		AlwaysFallback,
	)
	_, err := Call(pb, false, func(fn stringCaller) (string, error) { return fn() })
	if err != nil {
		t.Fatal(err)
	}
	if !pb.Latched() {
		t.Fatal("always_fallback should latch after first fallback use")
	}
}

func TestCall_EphemeralDoesNotLatchEvenUnderAlwaysFallback(t *testing.T) {
	pb := New[stringCaller](
		func() (string, error) { return "", errors.New("boom") },
		func() (string, error) { return "backup", nil },
		AlwaysFallback,
	)
	_, _ = Call(pb, true, func(fn stringCaller) (string, error) { return fn() })
	if pb.Latched() {
		t.Fatal("ephemeral calls must not latch")
	}
}

func TestCall_FailFastNeverFallsBack(t *testing.T) {
	pb := New[stringCaller](
		func() (string, error) { return "", errors.New("boom") },
		func() (string, error) { return "backup", nil },
		FailFast,
	)
	_, err := Call(pb, false, func(fn stringCaller) (string, error) { return fn() })
	if err == nil {
		t.Fatal("expected fail_fast to propagate the primary error")
	}
}

func TestForceLatch(t *testing.T) {
	pb := New[stringCaller](nil, nil, FallbackOnce)
	pb.ForceLatch()
	if !pb.Latched() {
		t.Fatal("expected ForceLatch to latch")
	}
	if !pb.Stats().UsingFallback {
		t.Fatal("expected stats to reflect UsingFallback")
	}
}
