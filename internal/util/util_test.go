package util

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		amount, rate, want string
	}{
		{"1000", "1.5", "15"},
		{"1000", "10", "100"},
		{"333.33", "2.1", "7"},
		{"0.05", "1.8", "0"},
		{"123.45", "4.1", "5.06"},
	}
	for _, tc := range tests {
		got := Percent(decimal.RequireFromString(tc.amount), decimal.RequireFromString(tc.rate))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("%s * %s%% got=%s want=%s", tc.amount, tc.rate, got, tc.want)
		}
	}
}

func TestSplitWithdrawal(t *testing.T) {
	roi, com, ok := SplitWithdrawal(MustMoney("50"), MustMoney("30"), MustMoney("40"))
	if !ok || !roi.Equal(MustMoney("30")) || !com.Equal(MustMoney("20")) {
		t.Fatalf("got roi=%s commission=%s ok=%v", roi, com, ok)
	}

	if _, _, ok := SplitWithdrawal(MustMoney("71"), MustMoney("30"), MustMoney("40")); ok {
		t.Fatal("expected split to fail when funds are short")
	}
}

func TestNextDaily(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if got := NextDaily(now, 13, 30); !got.Equal(time.Date(2026, 3, 10, 13, 30, 0, 0, time.UTC)) {
		t.Fatalf("same day: got %v", got)
	}
	if got := NextDaily(now, 12, 0); !got.Equal(time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("passed: got %v", got)
	}
}

func TestKeysAreDeterministic(t *testing.T) {
	day := time.Date(2026, 1, 2, 17, 45, 0, 0, time.UTC)
	if got := ROIKey("s1", day); got != "roi:s1:2026-01-02" {
		t.Fatalf("roi key = %s", got)
	}
	if got := CommissionKey("d1", 3); got != "commission:d1:3" {
		t.Fatalf("commission key = %s", got)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := Retry(context.Background(), RetryPolicy{Attempts: 5, BaseDelay: time.Millisecond},
		func(err error) bool { return !errors.Is(err, permanent) },
		func() error {
			calls++
			return permanent
		})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	transient := errors.New("transient")
	calls := 0
	err := Retry(context.Background(), RetryPolicy{Attempts: 4, BaseDelay: time.Millisecond},
		func(err error) bool { return errors.Is(err, transient) },
		func() error {
			calls++
			if calls < 3 {
				return transient
			}
			return nil
		})
	if err != nil || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRetryExhaustion(t *testing.T) {
	transient := errors.New("transient")
	calls := 0
	err := Retry(context.Background(), RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond},
		func(error) bool { return true },
		func() error {
			calls++
			return transient
		})
	if !errors.Is(err, transient) || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("user")
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter = %d", counter)
	}
	if km.Len() != 0 {
		t.Fatalf("locks leaked: %d", km.Len())
	}
}

func TestFormatMoney(t *testing.T) {
	if got := FormatMoney(MustMoney("12345.6")); got != "12,345.60" {
		t.Fatalf("got %s", got)
	}
}

func TestPlural(t *testing.T) {
	cases := map[int]string{0: "days", 1: "day", 2: "days", 365: "days"}
	for n, want := range cases {
		if got := SuffixDay(n); got != want {
			t.Errorf("SuffixDay(%d) = %q, want %q", n, got, want)
		}
	}
}
