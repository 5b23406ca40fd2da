package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"minex/internal/models"
	"minex/internal/repositories"
	"minex/internal/util"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PackageService is the read-mostly catalog of investment tiers. Writes append a new version of
// a level; older versions stay readable by id for the stakes that reference them.
type PackageService struct {
	store       repositories.PackageStore
	maxDailyROI decimal.Decimal
	now         func() time.Time

	mu      sync.RWMutex
	current map[int]*models.Package
	byId    map[string]*models.Package
}

func NewPackageService(store repositories.PackageStore, maxDailyROI decimal.Decimal) *PackageService {
	return &PackageService{
		store:       store,
		maxDailyROI: maxDailyROI,
		now:         time.Now,
		current:     make(map[int]*models.Package),
		byId:        make(map[string]*models.Package),
	}
}

// Create adds the first version of a new level.
func (s *PackageService) Create(ctx context.Context, actor models.Actor, pkg *models.Package) (*models.Package, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	latest, err := s.store.LatestVersion(ctx, pkg.Level)
	if err != nil {
		return nil, err
	}
	if latest > 0 {
		return nil, fmt.Errorf("level %d already exists: %w", pkg.Level, models.ErrInvalidPackage)
	}
	return s.save(ctx, pkg, 1)
}

// Update writes a new version of level. Stakes opened on earlier versions keep their locked terms.
func (s *PackageService) Update(ctx context.Context, actor models.Actor, level int, pkg *models.Package) (*models.Package, error) {
	if !actor.IsAdmin() {
		return nil, models.ErrForbidden
	}
	latest, err := s.store.LatestVersion(ctx, level)
	if err != nil {
		return nil, err
	}
	if latest == 0 {
		return nil, fmt.Errorf("level %d: %w", level, models.ErrPackageNotFound)
	}
	pkg.Level = level
	return s.save(ctx, pkg, latest+1)
}

func (s *PackageService) save(ctx context.Context, pkg *models.Package, version int) (*models.Package, error) {
	p := *pkg
	p.Id = uuid.NewString()
	p.Version = version
	p.CreatedAt = s.now().UTC()
	p.MinInvestment = util.Money(p.MinInvestment)
	p.MaxInvestment = util.Money(p.MaxInvestment)
	p.Requirements.Level = p.Level
	if err := s.validate(&p); err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, &p); err != nil {
		return nil, err
	}
	s.invalidate()

	log.Infof("Package level %d version %d saved (%s)", p.Level, p.Version, p.Name)
	return &p, nil
}

func (s *PackageService) validate(p *models.Package) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), models.ErrInvalidPackage)
	}
	switch {
	case p.Level < 1:
		return invalid("level %d", p.Level)
	case p.Name == "":
		return invalid("name is required")
	case !p.MinInvestment.IsPositive():
		return invalid("min investment must be positive")
	case p.MaxInvestment.LessThan(p.MinInvestment):
		return invalid("max investment below min")
	case !p.DailyROI.IsPositive() || p.DailyROI.GreaterThan(s.maxDailyROI):
		return invalid("daily roi %s outside (0, %s]", p.DailyROI, s.maxDailyROI)
	case p.DurationDays < 1:
		return invalid("duration must be at least one day")
	case p.Requirements.RequiredInvestment.IsNegative():
		return invalid("required investment is negative")
	}
	for i, r := range p.CommissionRates {
		if r.IsNegative() || r.GreaterThan(decimal.NewFromInt(100)) {
			return invalid("commission rate for depth %d is %s", i+1, r)
		}
	}
	for _, d := range p.LevelsEnabled {
		if d < 1 || d > models.MaxDepth {
			return invalid("enabled depth %d", d)
		}
	}
	for i, n := range p.Requirements.DownlineRequired {
		if n < 0 {
			return invalid("downline requirement for depth %d is negative", i+1)
		}
	}
	return nil
}

func (s *PackageService) invalidate() {
	s.mu.Lock()
	s.current = make(map[int]*models.Package)
	s.mu.Unlock()
}

// Current returns the newest active version of level.
func (s *PackageService) Current(ctx context.Context, level int) (*models.Package, error) {
	s.mu.RLock()
	p, ok := s.current[level]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := s.store.FindCurrent(ctx, level)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.current[level] = p
	s.byId[p.Id] = p
	s.mu.Unlock()
	return p, nil
}

// GetById returns any version, including ones superseded since a stake was opened.
func (s *PackageService) GetById(ctx context.Context, id string) (*models.Package, error) {
	s.mu.RLock()
	p, ok := s.byId[id]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := s.store.FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.byId[id] = p
	s.mu.Unlock()
	return p, nil
}

func (s *PackageService) List(ctx context.Context) ([]models.Package, error) {
	return s.store.FindAllCurrent(ctx)
}

// RateFor returns the commission percentage a holder of level earns from a descendant at depth.
func (s *PackageService) RateFor(ctx context.Context, level, depth int) (decimal.Decimal, error) {
	if depth < 1 || depth > models.MaxDepth {
		return decimal.Zero, nil
	}
	p, err := s.Current(ctx, level)
	if err != nil {
		return decimal.Zero, err
	}
	if !p.DepthEnabled(depth) {
		return decimal.Zero, nil
	}
	return p.CommissionRates[depth-1], nil
}

func (s *PackageService) RequirementsFor(ctx context.Context, level int) (*models.Requirements, error) {
	p, err := s.Current(ctx, level)
	if err != nil {
		return nil, err
	}
	req := p.Requirements
	return &req, nil
}

// DefaultPackages is the stock six tier catalog. The legacy three depth rates occupy depths 1..3.
func DefaultPackages() []models.Package {
	tier := func(level int, name, min, max, roi string, direct, indirect int, a, b, c string) models.Package {
		return models.Package{
			Level:         level,
			Name:          name,
			MinInvestment: util.MustMoney(min),
			MaxInvestment: util.MustMoney(max),
			DailyROI:      decimal.RequireFromString(roi),
			DurationDays:  365,
			CommissionRates: [models.MaxDepth]decimal.Decimal{
				decimal.RequireFromString(a),
				decimal.RequireFromString(b),
				decimal.RequireFromString(c),
				decimal.Zero, decimal.Zero, decimal.Zero,
			},
			LevelsEnabled: pq.Int64Array{1, 2, 3},
			Requirements: models.Requirements{
				Level:              level,
				RequiredInvestment: util.MustMoney(min),
				DownlineRequired:   [models.MaxDepth]int{direct, indirect},
			},
			IsActive: true,
		}
	}
	return []models.Package{
		tier(1, "Starter", "50", "499.99", "1.8", 0, 0, "0", "0", "0"),
		tier(2, "Bronze", "500", "1999.99", "2.1", 3, 4, "12", "5", "2"),
		tier(3, "Silver", "2000", "4999.99", "2.5", 15, 30, "13", "6", "3"),
		tier(4, "Gold", "5000", "9999.99", "3.1", 30, 60, "15", "7", "5"),
		tier(5, "Platinum", "10000", "29999.99", "3.7", 50, 100, "16", "8", "7"),
		tier(6, "Diamond", "30000", "1000000", "4.1", 100, 200, "18", "9", "8"),
	}
}

// SeedDefaults stores every default tier whose level has no version yet and returns how many were added.
func (s *PackageService) SeedDefaults(ctx context.Context) (int, error) {
	added := 0
	for _, pkg := range DefaultPackages() {
		latest, err := s.store.LatestVersion(ctx, pkg.Level)
		if err != nil {
			return added, err
		}
		if latest > 0 {
			continue
		}
		if _, err := s.save(ctx, &pkg, 1); err != nil {
			if errors.Is(err, models.ErrInvalidPackage) {
				// lost a race with another seeder
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}
