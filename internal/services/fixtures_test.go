package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"minex/internal/models"
	"minex/internal/repositories"
	"minex/internal/util"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

var admin = models.Actor{UserId: "admin", Role: models.RoleAdmin}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	repos *repositories.Repositories
	svc   *Services
	clock *testClock
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, repositories.NewMemoryRepositories(), Options{})
}

func newFixtureWith(t *testing.T, repos *repositories.Repositories, opts Options) *fixture {
	t.Helper()
	opts.Retry = util.RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	if opts.Workers == 0 {
		opts.Workers = 4
	}
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		repos: repos,
		svc:   New(repos, opts),
		clock: &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	now := f.clock.Now
	f.svc.Ledger.now = now
	f.svc.Packages.now = now
	f.svc.Commissions.now = now
	f.svc.Deposits.now = now
	f.svc.Withdrawals.now = now
	f.svc.ROI.now = now
	f.svc.Users.now = now
	return f
}

func money(s string) decimal.Decimal {
	return util.MustMoney(s)
}

func day(s string) time.Time {
	d, err := util.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// pkg stores a package for level with the given daily roi and depth rates. Rates beyond the
// ones given are zero.
func (f *fixture) pkg(level int, dailyROI string, duration int, rates ...string) *models.Package {
	f.t.Helper()
	p := &models.Package{
		Level:         level,
		Name:          "L" + string(rune('0'+level)),
		MinInvestment: money("1"),
		MaxInvestment: money("1000000"),
		DailyROI:      decimal.RequireFromString(dailyROI),
		DurationDays:  duration,
		LevelsEnabled: pq.Int64Array{},
		IsActive:      true,
	}
	for i, r := range rates {
		p.CommissionRates[i] = decimal.RequireFromString(r)
	}
	saved, err := f.svc.Packages.Create(f.ctx, admin, p)
	if err != nil {
		f.t.Fatalf("create package level %d: %v", level, err)
	}
	return saved
}

func (f *fixture) user(name, uplineId string) *models.User {
	f.t.Helper()
	u, err := f.svc.Users.Register(f.ctx, name, uplineId, models.RoleUser)
	if err != nil {
		f.t.Fatalf("register %s: %v", name, err)
	}
	return u
}

func (f *fixture) setLevel(userId string, level int) {
	f.t.Helper()
	u, err := f.repos.Users.FindById(f.ctx, userId)
	if err != nil {
		f.t.Fatal(err)
	}
	if _, err := f.repos.Users.UpdateLevel(f.ctx, userId, u.Level, level); err != nil {
		f.t.Fatal(err)
	}
}

// chain registers n users, each referred by the previous one, and returns them root first.
func (f *fixture) chain(n int) []*models.User {
	f.t.Helper()
	users := make([]*models.User, 0, n)
	upline := ""
	for i := 0; i < n; i++ {
		u := f.user("chain-"+string(rune('a'+i)), upline)
		users = append(users, u)
		upline = u.Id
	}
	return users
}

func (f *fixture) deposit(userId, amount string) (*models.Deposit, *models.CommissionSummary) {
	f.t.Helper()
	d, err := f.svc.Deposits.Submit(f.ctx, userId, money(amount), "manual", "")
	if err != nil {
		f.t.Fatalf("submit deposit: %v", err)
	}
	approved, summary, err := f.svc.Deposits.Approve(f.ctx, admin, d.Id)
	if err != nil {
		f.t.Fatalf("approve deposit: %v", err)
	}
	return approved, summary
}

func (f *fixture) credit(userId, bucket, amount, key string) {
	f.t.Helper()
	if _, err := f.svc.Ledger.Credit(f.ctx, userId, bucket, money(amount), models.ReasonAdjustment, key); err != nil {
		f.t.Fatalf("credit: %v", err)
	}
}

func (f *fixture) balance(userId string) models.Balance {
	f.t.Helper()
	b, err := f.svc.Ledger.Balance(f.ctx, userId)
	if err != nil {
		f.t.Fatal(err)
	}
	return b
}

func assertMoney(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s = %s, want %s", what, got, want)
	}
}

// flakyLedger fails the first n commits with a storage error, or every commit when n < 0.
type flakyLedger struct {
	repositories.LedgerStore
	mu    sync.Mutex
	fails int
	calls int
}

func (l *flakyLedger) Commit(ctx context.Context, p *models.Posting) (*models.PostingResult, error) {
	l.mu.Lock()
	l.calls++
	fail := l.fails != 0
	if l.fails > 0 {
		l.fails--
	}
	l.mu.Unlock()
	if fail {
		return nil, models.ErrStorageUnavailable
	}
	return l.LedgerStore.Commit(ctx, p)
}
