package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"minex/internal/models"

	"github.com/jmoiron/sqlx"
)

// RunRepository keeps the log of ROI distribution runs.
type RunRepository struct {
	Db *sqlx.DB
}

func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{
		Db: db,
	}
}

func (r *RunRepository) Save(ctx context.Context, run *models.DistributionRun) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := r.Db.NamedExecContext(
		ctx,
		`insert into distribution_run(id, as_of, trigger, started_at, finished_at, stakes_processed, credits, total_roi, stakes_completed, failures, status)
values (:id, :as_of, :trigger, :started_at, :finished_at, :stakes_processed, :credits, :total_roi, :stakes_completed, :failures, :status)`,
		run,
	); err != nil {
		log.Error("Error saving distribution run: ", err)
		return storageErr("save run", err)
	}

	return nil
}

func (r *RunRepository) FindLast(ctx context.Context) (*models.DistributionRun, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var run models.DistributionRun
	if err := r.Db.GetContext(ctx, &run, "select * from distribution_run order by finished_at desc limit 1"); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("find last run", err)
	}
	return &run, nil
}
