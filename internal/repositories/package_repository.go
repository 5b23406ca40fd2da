package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"minex/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type PackageRepository struct {
	db *sqlx.DB
}

func NewPackageRepository(db *sqlx.DB) *PackageRepository {
	return &PackageRepository{
		db: db,
	}
}

// packageRow is the flat table layout of models.Package.
type packageRow struct {
	Id                 string          `db:"id"`
	Level              int             `db:"level"`
	Version            int             `db:"version"`
	Name               string          `db:"name"`
	MinInvestment      decimal.Decimal `db:"min_investment"`
	MaxInvestment      decimal.Decimal `db:"max_investment"`
	DailyROI           decimal.Decimal `db:"daily_roi"`
	DurationDays       int             `db:"duration_days"`
	Rate1              decimal.Decimal `db:"commission_level_1"`
	Rate2              decimal.Decimal `db:"commission_level_2"`
	Rate3              decimal.Decimal `db:"commission_level_3"`
	Rate4              decimal.Decimal `db:"commission_level_4"`
	Rate5              decimal.Decimal `db:"commission_level_5"`
	Rate6              decimal.Decimal `db:"commission_level_6"`
	LevelsEnabled      pq.Int64Array   `db:"levels_enabled"`
	RequiredInvestment decimal.Decimal `db:"required_investment"`
	DirectRequired     int             `db:"direct_required"`
	Level2Required     int             `db:"level_2_required"`
	Level3Required     int             `db:"level_3_required"`
	Level4Required     int             `db:"level_4_required"`
	Level5Required     int             `db:"level_5_required"`
	Level6Required     int             `db:"level_6_required"`
	IsActive           bool            `db:"is_active"`
	CreatedAt          time.Time       `db:"created_at"`
}

func toPackageRow(p *models.Package) packageRow {
	r := p.Requirements.DownlineRequired
	return packageRow{
		Id:                 p.Id,
		Level:              p.Level,
		Version:            p.Version,
		Name:               p.Name,
		MinInvestment:      p.MinInvestment,
		MaxInvestment:      p.MaxInvestment,
		DailyROI:           p.DailyROI,
		DurationDays:       p.DurationDays,
		Rate1:              p.CommissionRates[0],
		Rate2:              p.CommissionRates[1],
		Rate3:              p.CommissionRates[2],
		Rate4:              p.CommissionRates[3],
		Rate5:              p.CommissionRates[4],
		Rate6:              p.CommissionRates[5],
		LevelsEnabled:      p.LevelsEnabled,
		RequiredInvestment: p.Requirements.RequiredInvestment,
		DirectRequired:     r[0],
		Level2Required:     r[1],
		Level3Required:     r[2],
		Level4Required:     r[3],
		Level5Required:     r[4],
		Level6Required:     r[5],
		IsActive:           p.IsActive,
		CreatedAt:          p.CreatedAt,
	}
}

func (r packageRow) toModel() *models.Package {
	return &models.Package{
		Id:              r.Id,
		Level:           r.Level,
		Version:         r.Version,
		Name:            r.Name,
		MinInvestment:   r.MinInvestment,
		MaxInvestment:   r.MaxInvestment,
		DailyROI:        r.DailyROI,
		DurationDays:    r.DurationDays,
		CommissionRates: [models.MaxDepth]decimal.Decimal{r.Rate1, r.Rate2, r.Rate3, r.Rate4, r.Rate5, r.Rate6},
		LevelsEnabled:   r.LevelsEnabled,
		Requirements: models.Requirements{
			Level:              r.Level,
			RequiredInvestment: r.RequiredInvestment,
			DownlineRequired: [models.MaxDepth]int{
				r.DirectRequired, r.Level2Required, r.Level3Required,
				r.Level4Required, r.Level5Required, r.Level6Required,
			},
		},
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
	}
}

func (r *PackageRepository) Save(ctx context.Context, pkg *models.Package) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := toPackageRow(pkg)
	if _, err := r.db.NamedExecContext(
		ctx,
		`insert into package
(id, level, version, name, min_investment, max_investment, daily_roi, duration_days,
 commission_level_1, commission_level_2, commission_level_3, commission_level_4, commission_level_5, commission_level_6,
 levels_enabled, required_investment, direct_required, level_2_required, level_3_required, level_4_required,
 level_5_required, level_6_required, is_active, created_at)
values (:id, :level, :version, :name, :min_investment, :max_investment, :daily_roi, :duration_days,
 :commission_level_1, :commission_level_2, :commission_level_3, :commission_level_4, :commission_level_5, :commission_level_6,
 :levels_enabled, :required_investment, :direct_required, :level_2_required, :level_3_required, :level_4_required,
 :level_5_required, :level_6_required, :is_active, :created_at)`,
		row,
	); err != nil {
		log.Error("Error while saving package: ", err)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: level %d version %d exists", models.ErrInvalidPackage, pkg.Level, pkg.Version)
		}
		return storageErr("save package", err)
	}

	return nil
}

func (r *PackageRepository) FindById(ctx context.Context, id string) (*models.Package, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var row packageRow
	if err := r.db.GetContext(ctx, &row, "select * from package where id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrPackageNotFound
		}
		return nil, storageErr("find package", err)
	}
	return row.toModel(), nil
}

func (r *PackageRepository) FindCurrent(ctx context.Context, level int) (*models.Package, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var row packageRow
	if err := r.db.GetContext(
		ctx,
		&row,
		"select * from package where level = $1 and is_active order by version desc limit 1",
		level,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrPackageNotFound
		}
		return nil, storageErr("find current package", err)
	}
	return row.toModel(), nil
}

func (r *PackageRepository) FindAllCurrent(ctx context.Context) ([]models.Package, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows := make([]packageRow, 0)
	if err := r.db.SelectContext(
		ctx,
		&rows,
		`select distinct on (level) * from package where is_active order by level, version desc`,
	); err != nil {
		log.Error("Error while finding packages: ", err)
		return nil, storageErr("find packages", err)
	}

	res := make([]models.Package, 0, len(rows))
	for _, row := range rows {
		res = append(res, *row.toModel())
	}
	return res, nil
}

func (r *PackageRepository) LatestVersion(ctx context.Context, level int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var version int
	if err := r.db.QueryRowxContext(
		ctx,
		"select coalesce(max(version), 0) from package where level = $1",
		level,
	).Scan(&version); err != nil {
		return 0, storageErr("latest package version", err)
	}
	return version, nil
}
