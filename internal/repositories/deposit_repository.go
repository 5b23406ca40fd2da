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

type DepositRepository struct {
	db *sqlx.DB
}

func NewDepositRepository(db *sqlx.DB) *DepositRepository {
	return &DepositRepository{
		db: db,
	}
}

func (r *DepositRepository) Save(ctx context.Context, deposit *models.Deposit) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.db.NamedExecContext(
		ctx,
		`insert into deposit(id, user_id, amount, payment_method, tx_hash, status, created_at)
values (:id, :user_id, :amount, :payment_method, :tx_hash, :status, :created_at)`,
		deposit,
	); err != nil {
		log.Error("Error saving deposit: ", err)
		return storageErr("save deposit", err)
	}
	return nil
}

func (r *DepositRepository) FindById(ctx context.Context, id string) (*models.Deposit, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var deposit models.Deposit
	if err := r.db.GetContext(ctx, &deposit, "select * from deposit where id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrDepositNotFound
		}
		return nil, storageErr("find deposit", err)
	}
	return &deposit, nil
}

func (r *DepositRepository) FindByUser(ctx context.Context, userId string) ([]models.Deposit, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	deposits := make([]models.Deposit, 0)
	if err := r.db.SelectContext(
		ctx,
		&deposits,
		"select * from deposit where user_id = $1 order by created_at desc",
		userId,
	); err != nil {
		return nil, storageErr("find user deposits", err)
	}
	return deposits, nil
}

func (r *DepositRepository) FindByStatus(ctx context.Context, status string) ([]models.Deposit, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	deposits := make([]models.Deposit, 0)
	if err := r.db.SelectContext(
		ctx,
		&deposits,
		"select * from deposit where status = $1 order by created_at",
		status,
	); err != nil {
		return nil, storageErr("find deposits by status", err)
	}
	return deposits, nil
}

func (r *DepositRepository) Reject(ctx context.Context, id, reason, by string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(
		ctx,
		`update deposit set status = $2, rejection_reason = $3, processed_by = $4, processed_at = $5
where id = $1 and status = $6`,
		id,
		models.StatusRejected,
		reason,
		by,
		at,
		models.StatusPending,
	)
	if err != nil {
		log.Error("Error rejecting deposit: ", err)
		return storageErr("reject deposit", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.FindById(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("deposit %s: %w", id, models.ErrAlreadyProcessed)
	}
	return nil
}

func approveDepositTx(ctx context.Context, tx *sqlx.Tx, c models.DepositApproval) error {
	res, err := tx.ExecContext(
		ctx,
		`update deposit set status = $2, processed_by = $3, processed_at = $4
where id = $1 and status = $5 and user_id = $6 and amount = $7`,
		c.DepositId,
		models.StatusApproved,
		c.By,
		c.At,
		models.StatusPending,
		c.UserId,
		c.Amount,
	)
	if err != nil {
		return storageErr("approve deposit", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("deposit %s: %w", c.DepositId, models.ErrAlreadyProcessed)
	}
	return addInvestmentTx(ctx, tx, c)
}
