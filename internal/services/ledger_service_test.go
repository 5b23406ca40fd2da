package services

import (
	"errors"
	"sync"
	"testing"

	"minex/internal/models"
	"minex/internal/repositories"
)

func TestLedgerCreditIsIdempotent(t *testing.T) {
	f := newFixture(t)
	u := f.user("alice", "")

	first, err := f.svc.Ledger.Credit(f.ctx, u.Id, models.BucketROI, money("12.50"), models.ReasonROI, "k")
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Ledger.Credit(f.ctx, u.Id, models.BucketROI, money("12.50"), models.ReasonROI, "k")
	if err != nil {
		t.Fatal(err)
	}
	if first.Id != second.Id {
		t.Fatalf("retry returned a new entry %s != %s", second.Id, first.Id)
	}
	assertMoney(t, "roi", f.balance(u.Id).ROI, "12.50")
}

func TestLedgerDebitInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	u := f.user("alice", "")
	f.credit(u.Id, models.BucketCash, "10", "seed")

	if _, err := f.svc.Ledger.Debit(f.ctx, u.Id, models.BucketCash, money("10.01"), models.ReasonAdjustment); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if _, err := f.svc.Ledger.Debit(f.ctx, u.Id, models.BucketROI, money("1"), models.ReasonAdjustment); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("other bucket err = %v, want ErrInsufficientFunds", err)
	}
	assertMoney(t, "cash", f.balance(u.Id).Cash, "10")

	entries, _ := f.svc.Ledger.Entries(f.ctx, u.Id)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
}

func TestLedgerRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	u := f.user("alice", "")

	tests := []struct {
		name   string
		bucket string
		amount string
		want   error
	}{
		{"zero", models.BucketCash, "0", models.ErrInvalidAmount},
		{"negative", models.BucketCash, "-5", models.ErrInvalidAmount},
		{"bucket", "savings", "5", models.ErrInvalidBucket},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Ledger.Credit(f.ctx, u.Id, tt.bucket, money(tt.amount), models.ReasonAdjustment, "bad-"+tt.name)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLedgerConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	u := f.user("alice", "")
	f.credit(u.Id, models.BucketCommission, "100", "seed")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Ledger.Debit(f.ctx, u.Id, models.BucketCommission, money("10"), models.ReasonWithdrawal)
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else if !errors.Is(err, models.ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 10 {
		t.Fatalf("successful debits = %d, want 10", ok)
	}
	b := f.balance(u.Id)
	if b.Negative() {
		t.Fatalf("negative balance %+v", b)
	}
	assertMoney(t, "commission", b.Commission, "0")
}

func TestLedgerRetriesTransientFailures(t *testing.T) {
	repos := repositories.NewMemoryRepositories()
	flaky := &flakyLedger{LedgerStore: repos.Ledger, fails: 2}
	repos.Ledger = flaky
	f := newFixtureWith(t, repos, Options{})
	u := f.user("alice", "")

	if _, err := f.svc.Ledger.Credit(f.ctx, u.Id, models.BucketCash, money("5"), models.ReasonDeposit, "k"); err != nil {
		t.Fatalf("credit after transient failures: %v", err)
	}
	if flaky.calls != 3 {
		t.Fatalf("commit calls = %d, want 3", flaky.calls)
	}

	flaky.fails = -1
	_, err := f.svc.Ledger.Credit(f.ctx, u.Id, models.BucketCash, money("5"), models.ReasonDeposit, "k2")
	if !errors.Is(err, models.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestLedgerReconcile(t *testing.T) {
	f := newFixture(t)
	u := f.user("alice", "")
	f.credit(u.Id, models.BucketCash, "100", "a")
	f.credit(u.Id, models.BucketROI, "3.33", "b")
	if _, err := f.svc.Ledger.Debit(f.ctx, u.Id, models.BucketCash, money("40"), models.ReasonAdjustment); err != nil {
		t.Fatal(err)
	}

	sum, drift, err := f.svc.Ledger.Reconcile(f.ctx, u.Id)
	if err != nil {
		t.Fatal(err)
	}
	if drift {
		t.Fatal("unexpected drift")
	}
	assertMoney(t, "cash", sum.Cash, "60")
	assertMoney(t, "roi", sum.ROI, "3.33")
}
