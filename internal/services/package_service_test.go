package services

import (
	"errors"
	"testing"

	"minex/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

func TestPackageCreateValidation(t *testing.T) {
	f := newFixture(t)

	base := func() *models.Package {
		return &models.Package{
			Level:         1,
			Name:          "Starter",
			MinInvestment: money("50"),
			MaxInvestment: money("500"),
			DailyROI:      decimal.RequireFromString("1.8"),
			DurationDays:  30,
			IsActive:      true,
		}
	}

	if _, err := f.svc.Packages.Create(f.ctx, models.Actor{UserId: "u", Role: models.RoleUser}, base()); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("non admin err = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *models.Package)
	}{
		{"roi above cap", func(p *models.Package) { p.DailyROI = decimal.RequireFromString("5.01") }},
		{"zero roi", func(p *models.Package) { p.DailyROI = decimal.Zero }},
		{"max below min", func(p *models.Package) { p.MaxInvestment = money("10") }},
		{"no duration", func(p *models.Package) { p.DurationDays = 0 }},
		{"bad depth", func(p *models.Package) { p.LevelsEnabled = pq.Int64Array{7} }},
		{"negative rate", func(p *models.Package) { p.CommissionRates[2] = decimal.NewFromInt(-1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(p)
			if _, err := f.svc.Packages.Create(f.ctx, admin, p); !errors.Is(err, models.ErrInvalidPackage) {
				t.Fatalf("err = %v, want ErrInvalidPackage", err)
			}
		})
	}

	if _, err := f.svc.Packages.Create(f.ctx, admin, base()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Packages.Create(f.ctx, admin, base()); !errors.Is(err, models.ErrInvalidPackage) {
		t.Fatalf("second create err = %v", err)
	}
}

func TestPackageUpdateIsVersioned(t *testing.T) {
	f := newFixture(t)
	v1 := f.pkg(1, "1.5", 30, "10")

	upd := *v1
	upd.DailyROI = decimal.RequireFromString("2")
	v2, err := f.svc.Packages.Update(f.ctx, admin, 1, &upd)
	if err != nil {
		t.Fatal(err)
	}
	if v2.Version != 2 || v2.Id == v1.Id {
		t.Fatalf("update produced %+v", v2)
	}

	cur, err := f.svc.Packages.Current(f.ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Id != v2.Id {
		t.Fatal("cache not invalidated after update")
	}
	old, err := f.svc.Packages.GetById(f.ctx, v1.Id)
	if err != nil {
		t.Fatal(err)
	}
	assertMoney(t, "old roi", old.DailyROI, "1.5")

	if _, err := f.svc.Packages.Update(f.ctx, admin, 9, &upd); !errors.Is(err, models.ErrPackageNotFound) {
		t.Fatalf("update of unknown level err = %v", err)
	}
}

func TestRateFor(t *testing.T) {
	f := newFixture(t)
	f.pkg(1, "1", 10, "10", "5", "2", "1", "1", "1")

	p := f.pkg(2, "1", 10, "12", "6", "3", "2", "2", "2")
	legacy := *p
	legacy.LevelsEnabled = pq.Int64Array{1, 2, 3}
	if _, err := f.svc.Packages.Update(f.ctx, admin, 2, &legacy); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		level, depth int
		want         string
	}{
		{1, 1, "10"},
		{1, 6, "1"},
		{1, 7, "0"},
		{1, 0, "0"},
		{2, 3, "3"},
		{2, 4, "0"}, // outside levels_enabled
	}
	for _, tt := range tests {
		got, err := f.svc.Packages.RateFor(f.ctx, tt.level, tt.depth)
		if err != nil {
			t.Fatal(err)
		}
		assertMoney(t, "rate", got, tt.want)
	}

	if _, err := f.svc.Packages.RateFor(f.ctx, 5, 1); !errors.Is(err, models.ErrPackageNotFound) {
		t.Fatalf("unknown level err = %v", err)
	}
}

func TestSeedDefaults(t *testing.T) {
	f := newFixture(t)

	added, err := f.svc.Packages.SeedDefaults(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	if added != 6 {
		t.Fatalf("added = %d, want 6", added)
	}
	again, err := f.svc.Packages.SeedDefaults(f.ctx)
	if err != nil || again != 0 {
		t.Fatalf("second seed added %d, err %v", again, err)
	}

	list, _ := f.svc.Packages.List(f.ctx)
	if len(list) != 6 {
		t.Fatalf("packages = %d, want 6", len(list))
	}
	req, err := f.svc.Packages.RequirementsFor(f.ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if req.DownlineRequired[0] != 3 || req.DownlineRequired[1] != 4 {
		t.Fatalf("level 2 requirements %+v", req.DownlineRequired)
	}
	rate, _ := f.svc.Packages.RateFor(f.ctx, 6, 4)
	if !rate.IsZero() {
		t.Fatalf("legacy scheme pays depth 4: %s", rate)
	}
}
