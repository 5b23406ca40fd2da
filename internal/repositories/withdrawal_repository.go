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

type WithdrawalRepository struct {
	db *sqlx.DB
}

func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{
		db: db,
	}
}

func (r *WithdrawalRepository) FindById(ctx context.Context, id string) (*models.Withdrawal, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w models.Withdrawal
	if err := r.db.GetContext(ctx, &w, "select * from withdrawal where id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrWithdrawalNotFound
		}
		return nil, storageErr("find withdrawal", err)
	}
	return &w, nil
}

func (r *WithdrawalRepository) FindByUser(ctx context.Context, userId string) ([]models.Withdrawal, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ws := make([]models.Withdrawal, 0)
	if err := r.db.SelectContext(
		ctx,
		&ws,
		"select * from withdrawal where user_id = $1 order by created_at desc",
		userId,
	); err != nil {
		return nil, storageErr("find user withdrawals", err)
	}
	return ws, nil
}

func (r *WithdrawalRepository) CountPending(ctx context.Context, userId string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	if err := r.db.QueryRowxContext(
		ctx,
		"select count(*) from withdrawal where user_id = $1 and status = $2",
		userId,
		models.StatusPending,
	).Scan(&count); err != nil {
		return 0, storageErr("count pending withdrawals", err)
	}
	return count, nil
}

func (r *WithdrawalRepository) Approve(ctx context.Context, id, txHash, by string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(
		ctx,
		`update withdrawal set status = $2, tx_hash = $3, processed_by = $4, processed_at = $5
where id = $1 and status = $6`,
		id,
		models.StatusApproved,
		txHash,
		by,
		at,
		models.StatusPending,
	)
	if err != nil {
		log.Error("Error approving withdrawal: ", err)
		return storageErr("approve withdrawal", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.FindById(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("withdrawal %s: %w", id, models.ErrAlreadyProcessed)
	}
	return nil
}

func openWithdrawalTx(ctx context.Context, tx *sqlx.Tx, c models.WithdrawalOpen) error {
	if _, err := tx.NamedExecContext(
		ctx,
		`insert into withdrawal(id, user_id, amount, reserved_roi, reserved_commission, wallet_address, status, created_at)
values (:id, :user_id, :amount, :reserved_roi, :reserved_commission, :wallet_address, :status, :created_at)`,
		c.Withdrawal,
	); err != nil {
		return storageErr("open withdrawal", err)
	}
	return nil
}

func rejectWithdrawalTx(ctx context.Context, tx *sqlx.Tx, c models.WithdrawalReject) error {
	res, err := tx.ExecContext(
		ctx,
		`update withdrawal set status = $2, rejection_reason = $3, processed_by = $4, processed_at = $5
where id = $1 and status = $6`,
		c.WithdrawalId,
		models.StatusRejected,
		c.Reason,
		c.By,
		c.At,
		models.StatusPending,
	)
	if err != nil {
		return storageErr("reject withdrawal", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("withdrawal %s: %w", c.WithdrawalId, models.ErrAlreadyProcessed)
	}
	return nil
}
