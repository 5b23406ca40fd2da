package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"minex/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type LedgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{
		db: db,
	}
}

// Commit writes the posting header, its entries, the new balance and every companion in one
// transaction. The balance row is locked for the duration so concurrent postings of the same
// user serialize in the database as well.
func (r *LedgerRepository) Commit(ctx context.Context, p *models.Posting) (*models.PostingResult, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin posting", err)
	}
	defer rollback(tx)

	res, err := tx.ExecContext(
		ctx,
		`insert into ledger_postings(key, user_id, reason, ref_id, created_at)
values ($1, $2, $3, $4, $5) on conflict (key) do nothing`,
		p.Key,
		p.UserId,
		p.Reason,
		p.RefId,
		p.CreatedAt,
	)
	if err != nil {
		return nil, storageErr("insert posting", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		rollback(tx)
		return r.duplicate(ctx, p)
	}

	var bal models.Balance
	if err := tx.GetContext(
		ctx,
		&bal,
		"select user_id, cash, roi, commission from balance where user_id = $1 for update",
		p.UserId,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, storageErr("lock balance", err)
	}

	entries := make([]models.LedgerEntry, 0, len(p.Legs))
	for _, leg := range p.Legs {
		bal = bal.Add(leg.Bucket, leg.Amount)
		entries = append(entries, models.LedgerEntry{
			Id:         uuid.NewString(),
			PostingKey: p.Key,
			UserId:     p.UserId,
			Bucket:     leg.Bucket,
			Amount:     leg.Amount,
			Reason:     p.Reason,
			RefId:      p.RefId,
			CreatedAt:  p.CreatedAt,
		})
	}
	if bal.Negative() {
		return nil, models.ErrInsufficientFunds
	}

	if len(entries) > 0 {
		if _, err := tx.NamedExecContext(
			ctx,
			`insert into ledger_entry(id, posting_key, user_id, bucket, amount, reason, ref_id, created_at)
values (:id, :posting_key, :user_id, :bucket, :amount, :reason, :ref_id, :created_at)`,
			entries,
		); err != nil {
			return nil, storageErr("insert entries", err)
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		"update balance set cash = $2, roi = $3, commission = $4 where user_id = $1",
		bal.UserId,
		bal.Cash,
		bal.ROI,
		bal.Commission,
	); err != nil {
		if isCheckViolation(err) {
			return nil, models.ErrInsufficientFunds
		}
		return nil, storageErr("update balance", err)
	}

	for _, c := range p.Companions {
		if err := applyCompanionTx(ctx, tx, c); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit posting", err)
	}

	return &models.PostingResult{
		Entries: entries,
		Balance: bal,
	}, nil
}

func applyCompanionTx(ctx context.Context, tx *sqlx.Tx, c models.Companion) error {
	switch c := c.(type) {
	case models.StakeOpen:
		return openStakeTx(ctx, tx, c)
	case models.StakeAccrual:
		return accrueStakeTx(ctx, tx, c)
	case models.StakeClose:
		return closeStakeTx(ctx, tx, c)
	case models.CommissionGrant:
		return insertCommissionTx(ctx, tx, c)
	case models.DepositApproval:
		return approveDepositTx(ctx, tx, c)
	case models.WithdrawalOpen:
		return openWithdrawalTx(ctx, tx, c)
	case models.WithdrawalReject:
		return rejectWithdrawalTx(ctx, tx, c)
	default:
		return fmt.Errorf("unknown companion %T", c)
	}
}

func (r *LedgerRepository) duplicate(ctx context.Context, p *models.Posting) (*models.PostingResult, error) {
	entries, err := r.EntriesByKey(ctx, p.Key)
	if err != nil {
		return nil, err
	}
	bal, err := r.Balance(ctx, p.UserId)
	if err != nil {
		return nil, err
	}
	return &models.PostingResult{
		Entries:   entries,
		Balance:   bal,
		Duplicate: true,
	}, nil
}

func (r *LedgerRepository) Balance(ctx context.Context, userId string) (models.Balance, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var bal models.Balance
	if err := r.db.GetContext(
		ctx,
		&bal,
		"select user_id, cash, roi, commission from balance where user_id = $1",
		userId,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Balance{}, models.ErrUserNotFound
		}
		return models.Balance{}, storageErr("find balance", err)
	}
	return bal, nil
}

func (r *LedgerRepository) Entries(ctx context.Context, userId string) ([]models.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	entries := make([]models.LedgerEntry, 0)
	if err := r.db.SelectContext(
		ctx,
		&entries,
		"select * from ledger_entry where user_id = $1 order by created_at, id",
		userId,
	); err != nil {
		log.Error("Error finding ledger entries: ", err)
		return nil, storageErr("find entries", err)
	}
	return entries, nil
}

func (r *LedgerRepository) EntriesByKey(ctx context.Context, key string) ([]models.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	entries := make([]models.LedgerEntry, 0)
	if err := r.db.SelectContext(
		ctx,
		&entries,
		"select * from ledger_entry where posting_key = $1 order by id",
		key,
	); err != nil {
		return nil, storageErr("find entries by key", err)
	}
	return entries, nil
}
