package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"minex/internal/models"

	"github.com/shopspring/decimal"
)

func newTestUser(t *testing.T, repos *Repositories, id string) {
	t.Helper()
	err := repos.Users.Save(context.Background(), &models.User{
		Id:        id,
		Username:  id,
		Role:      models.RoleUser,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("save user %s: %v", id, err)
	}
}

func credit(key, userId, bucket string, amount string) *models.Posting {
	return &models.Posting{
		Key:    key,
		UserId: userId,
		Reason: models.ReasonAdjustment,
		Legs:   []models.Leg{{Bucket: bucket, Amount: decimal.RequireFromString(amount)}},
	}
}

func TestMemoryLedgerCommitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	newTestUser(t, repos, "u1")

	first, err := repos.Ledger.Commit(ctx, credit("k1", "u1", models.BucketCash, "100"))
	if err != nil {
		t.Fatal(err)
	}
	if first.Duplicate || len(first.Entries) != 1 {
		t.Fatalf("unexpected first result %+v", first)
	}

	second, err := repos.Ledger.Commit(ctx, credit("k1", "u1", models.BucketCash, "100"))
	if err != nil {
		t.Fatal(err)
	}
	if !second.Duplicate {
		t.Fatal("expected duplicate")
	}
	if second.Entries[0].Id != first.Entries[0].Id {
		t.Fatal("duplicate must return the original entries")
	}

	bal, _ := repos.Ledger.Balance(ctx, "u1")
	if !bal.Cash.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("cash = %s, want 100", bal.Cash)
	}
}

func TestMemoryLedgerRejectsNegative(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	newTestUser(t, repos, "u1")

	if _, err := repos.Ledger.Commit(ctx, credit("k1", "u1", models.BucketROI, "10")); err != nil {
		t.Fatal(err)
	}
	_, err := repos.Ledger.Commit(ctx, credit("k2", "u1", models.BucketROI, "-10.01"))
	if !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	entries, _ := repos.Ledger.Entries(ctx, "u1")
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	// a rejected key is not burned
	if _, err := repos.Ledger.Commit(ctx, credit("k2", "u1", models.BucketROI, "-10")); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryLedgerCompanionFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	newTestUser(t, repos, "u1")

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	stake := &models.Stake{
		Id:        "s1",
		UserId:    "u1",
		Amount:    decimal.NewFromInt(100),
		DailyROI:  decimal.NewFromInt(1),
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 3),
		Status:    models.StakeActive,
	}
	p := credit("open", "u1", models.BucketCash, "0")
	p.Legs = nil
	p.Companions = []models.Companion{models.StakeOpen{Stake: stake}}
	if _, err := repos.Ledger.Commit(ctx, p); err != nil {
		t.Fatal(err)
	}

	// accrual is valid, close of an unknown stake is not: nothing may land
	p = credit("roi", "u1", models.BucketROI, "1")
	p.Companions = []models.Companion{
		models.StakeAccrual{StakeId: "s1", Day: start.AddDate(0, 0, 1), Earned: decimal.NewFromInt(1)},
		models.StakeClose{StakeId: "missing", At: start},
	}
	if _, err := repos.Ledger.Commit(ctx, p); !errors.Is(err, models.ErrStakeNotActive) {
		t.Fatalf("err = %v, want ErrStakeNotActive", err)
	}

	got, _ := repos.Stakes.FindById(ctx, "s1")
	if got.LastROIDate.Valid || !got.TotalEarned.IsZero() {
		t.Fatalf("stake changed after failed commit: %+v", got)
	}
	bal, _ := repos.Ledger.Balance(ctx, "u1")
	if !bal.ROI.IsZero() {
		t.Fatalf("roi = %s, want 0", bal.ROI)
	}
}

func TestMemoryStakeAccrualGuards(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	newTestUser(t, repos, "u1")

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	open := &models.Posting{
		Key:    "open",
		UserId: "u1",
		Companions: []models.Companion{models.StakeOpen{Stake: &models.Stake{
			Id: "s1", UserId: "u1", StartDate: start, EndDate: start.AddDate(0, 0, 2), Status: models.StakeActive,
		}}},
	}
	if _, err := repos.Ledger.Commit(ctx, open); err != nil {
		t.Fatal(err)
	}

	accrue := func(key string, day time.Time) error {
		p := credit(key, "u1", models.BucketROI, "1")
		p.Companions = []models.Companion{models.StakeAccrual{StakeId: "s1", Day: day, Earned: decimal.NewFromInt(1)}}
		_, err := repos.Ledger.Commit(ctx, p)
		return err
	}

	if err := accrue("d2", start.AddDate(0, 0, 2)); err != nil {
		t.Fatal(err)
	}
	if err := accrue("d1", start.AddDate(0, 0, 1)); !errors.Is(err, models.ErrStakeNotActive) {
		t.Fatalf("backwards accrual err = %v", err)
	}
	if err := accrue("d3", start.AddDate(0, 0, 3)); !errors.Is(err, models.ErrStakeNotActive) {
		t.Fatalf("accrual past end err = %v", err)
	}
}

func TestMemoryPackagesCurrentVersion(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()

	for v := 1; v <= 3; v++ {
		err := repos.Packages.Save(ctx, &models.Package{
			Id: string(rune('a' + v)), Level: 1, Version: v, IsActive: v != 3,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	cur, err := repos.Packages.FindCurrent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Version != 2 {
		t.Fatalf("current version = %d, want 2", cur.Version)
	}
	latest, _ := repos.Packages.LatestVersion(ctx, 1)
	if latest != 3 {
		t.Fatalf("latest version = %d, want 3", latest)
	}
	if err := repos.Packages.Save(ctx, &models.Package{Id: "x", Level: 1, Version: 2}); !errors.Is(err, models.ErrInvalidPackage) {
		t.Fatalf("duplicate version err = %v", err)
	}
	if _, err := repos.Packages.FindCurrent(ctx, 4); !errors.Is(err, models.ErrPackageNotFound) {
		t.Fatalf("missing level err = %v", err)
	}
}

func TestMemoryUsersUpdateLevelCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	newTestUser(t, repos, "u1")

	ok, err := repos.Users.UpdateLevel(ctx, "u1", 0, 1)
	if err != nil || !ok {
		t.Fatalf("first update ok=%v err=%v", ok, err)
	}
	ok, err = repos.Users.UpdateLevel(ctx, "u1", 0, 1)
	if err != nil || ok {
		t.Fatalf("stale update ok=%v err=%v", ok, err)
	}
	if err := repos.Users.Save(ctx, &models.User{Id: "u2", Username: "u1"}); !errors.Is(err, models.ErrUserExists) {
		t.Fatalf("duplicate username err = %v", err)
	}
}
