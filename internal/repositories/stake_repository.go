package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"minex/internal/models"

	"github.com/jmoiron/sqlx"
)

type StakeRepository struct {
	db *sqlx.DB
}

func NewStakeRepository(db *sqlx.DB) *StakeRepository {
	return &StakeRepository{
		db: db,
	}
}

func (r *StakeRepository) FindById(ctx context.Context, id string) (*models.Stake, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var stake models.Stake
	if err := r.db.GetContext(ctx, &stake, "select * from stake where id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrStakeNotFound
		}
		log.Error("Failed to get stake: ", err)
		return nil, storageErr("find stake", err)
	}

	return &stake, nil
}

func (r *StakeRepository) FindByUser(ctx context.Context, userId string) ([]models.Stake, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	stakes := make([]models.Stake, 0)
	if err := r.db.SelectContext(
		ctx,
		&stakes,
		"select * from stake where user_id = $1 order by start_date desc, id",
		userId,
	); err != nil {
		log.Error("Failed to get user stakes: ", err)
		return nil, storageErr("find user stakes", err)
	}

	return stakes, nil
}

func (r *StakeRepository) FindActive(ctx context.Context, before time.Time) ([]models.Stake, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	stakes := make([]models.Stake, 0)
	if err := r.db.SelectContext(
		ctx,
		&stakes,
		"select * from stake where status = $1 and start_date < $2 order by user_id, start_date, id",
		models.StakeActive,
		before,
	); err != nil {
		log.Error("Failed to get active stakes: ", err)
		return nil, storageErr("find active stakes", err)
	}

	return stakes, nil
}

func openStakeTx(ctx context.Context, tx *sqlx.Tx, c models.StakeOpen) error {
	if _, err := tx.NamedExecContext(
		ctx,
		`insert into stake(id, user_id, package_id, amount, daily_roi, start_date, duration_days, end_date, status, last_roi_date, total_earned)
values (:id, :user_id, :package_id, :amount, :daily_roi, :start_date, :duration_days, :end_date, :status, :last_roi_date, :total_earned)`,
		c.Stake,
	); err != nil {
		return storageErr("open stake", err)
	}
	return nil
}

// accrueStakeTx advances last_roi_date by one credited day. The guard keeps a stake from
// moving backwards or being credited twice for a day.
func accrueStakeTx(ctx context.Context, tx *sqlx.Tx, c models.StakeAccrual) error {
	res, err := tx.ExecContext(
		ctx,
		`update stake set last_roi_date = $2, total_earned = total_earned + $3
where id = $1 and status = $4 and (last_roi_date is null or last_roi_date < $2) and $2 <= end_date`,
		c.StakeId,
		c.Day,
		c.Earned,
		models.StakeActive,
	)
	if err != nil {
		return storageErr("accrue stake", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("accrue stake %s: %w", c.StakeId, models.ErrStakeNotActive)
	}
	return nil
}

func closeStakeTx(ctx context.Context, tx *sqlx.Tx, c models.StakeClose) error {
	res, err := tx.ExecContext(
		ctx,
		"update stake set status = $2, completed_at = $3 where id = $1 and status = $4",
		c.StakeId,
		models.StakeCompleted,
		c.At,
		models.StakeActive,
	)
	if err != nil {
		return storageErr("close stake", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("close stake %s: %w", c.StakeId, models.ErrStakeNotActive)
	}
	return nil
}
