package repositories

import (
	"context"

	"minex/internal/models"

	"github.com/jmoiron/sqlx"
)

type CommissionRepository struct {
	db *sqlx.DB
}

func NewCommissionRepository(db *sqlx.DB) *CommissionRepository {
	return &CommissionRepository{
		db: db,
	}
}

func (r *CommissionRepository) FindByEarner(ctx context.Context, userId string) ([]models.CommissionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	records := make([]models.CommissionRecord, 0)
	if err := r.db.SelectContext(
		ctx,
		&records,
		"select * from commission where to_user_id = $1 order by created_at desc, depth",
		userId,
	); err != nil {
		log.Error("Error finding commissions: ", err)
		return nil, storageErr("find commissions", err)
	}
	return records, nil
}

func (r *CommissionRepository) FindBySource(ctx context.Context, sourceEventId string) ([]models.CommissionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	records := make([]models.CommissionRecord, 0)
	if err := r.db.SelectContext(
		ctx,
		&records,
		"select * from commission where source_event_id = $1 order by depth",
		sourceEventId,
	); err != nil {
		log.Error("Error finding commissions: ", err)
		return nil, storageErr("find commissions by source", err)
	}
	return records, nil
}

func insertCommissionTx(ctx context.Context, tx *sqlx.Tx, c models.CommissionGrant) error {
	if _, err := tx.NamedExecContext(
		ctx,
		`insert into commission(id, from_user_id, to_user_id, depth, percentage, amount, source_event_id, created_at)
values (:id, :from_user_id, :to_user_id, :depth, :percentage, :amount, :source_event_id, :created_at)`,
		c.Record,
	); err != nil {
		if isUniqueViolation(err) {
			return models.ErrDuplicateOperation
		}
		return storageErr("insert commission", err)
	}
	return nil
}
