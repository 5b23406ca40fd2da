package services

import (
	"testing"

	"minex/internal/models"

	"github.com/shopspring/decimal"
)

// requirePkg stores a level whose promotion needs investment and direct referrals.
func (f *fixture) requirePkg(level int, investment string, direct, second int) {
	f.t.Helper()
	p := &models.Package{
		Level:         level,
		Name:          "tier",
		MinInvestment: money("1"),
		MaxInvestment: money("100000"),
		DailyROI:      decimal.NewFromInt(1),
		DurationDays:  30,
		IsActive:      true,
		Requirements: models.Requirements{
			RequiredInvestment: money(investment),
			DownlineRequired:   [models.MaxDepth]int{direct, second},
		},
	}
	if _, err := f.svc.Packages.Create(f.ctx, admin, p); err != nil {
		f.t.Fatal(err)
	}
}

func TestPromotionRequiresInvestedDownline(t *testing.T) {
	f := newFixture(t)
	f.requirePkg(1, "0", 0, 0)
	f.requirePkg(2, "100", 2, 0)

	leader := f.user("leader", "")
	a := f.user("a", leader.Id)
	f.user("b", leader.Id)
	f.deposit(leader.Id, "100")

	got, _ := f.svc.Users.GetById(f.ctx, leader.Id)
	if got.Level != 1 {
		t.Fatalf("promoted with uninvested referrals")
	}

	f.deposit(a.Id, "10")
	got, _ = f.svc.Users.GetById(f.ctx, leader.Id)
	if got.Level != 1 {
		t.Fatalf("promoted with one qualifying referral")
	}

	c := f.user("c", leader.Id)
	f.deposit(c.Id, "10")
	got, _ = f.svc.Users.GetById(f.ctx, leader.Id)
	if got.Level != 2 {
		t.Fatalf("level = %d, want 2", got.Level)
	}
}

func TestPromotionAdvancesOneLevelAtATime(t *testing.T) {
	f := newFixture(t)
	f.requirePkg(1, "0", 0, 0)
	f.requirePkg(2, "10", 0, 0)
	f.requirePkg(3, "10", 0, 0)

	u := f.user("u", "")
	f.deposit(u.Id, "50")

	got, _ := f.svc.Users.GetById(f.ctx, u.Id)
	if got.Level != 2 {
		t.Fatalf("level after deposit = %d, want 2", got.Level)
	}

	ok, level, err := f.svc.Promotions.Evaluate(f.ctx, u.Id)
	if err != nil || !ok || level != 3 {
		t.Fatalf("evaluate = %v %d %v", ok, level, err)
	}
	ok, level, err = f.svc.Promotions.Evaluate(f.ctx, u.Id)
	if err != nil || ok || level != 3 {
		t.Fatalf("evaluate at top = %v %d %v", ok, level, err)
	}
}

func TestPromotionSecondLevelRequirement(t *testing.T) {
	f := newFixture(t)
	f.requirePkg(2, "0", 1, 1)

	top := f.user("top", "")
	mid := f.user("mid", top.Id)
	f.deposit(mid.Id, "5")

	got, _ := f.svc.Users.GetById(f.ctx, top.Id)
	if got.Level != 1 {
		t.Fatalf("promoted without a depth 2 member")
	}

	bottom := f.user("bottom", mid.Id)
	f.deposit(bottom.Id, "5")

	got, _ = f.svc.Users.GetById(f.ctx, top.Id)
	if got.Level != 2 {
		t.Fatalf("level = %d, want 2", got.Level)
	}
}
