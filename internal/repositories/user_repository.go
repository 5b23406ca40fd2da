package repositories

import (
	"context"
	"database/sql"
	"errors"

	"minex/internal/models"

	"github.com/jmoiron/sqlx"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

func (u *UserRepository) Save(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		log.Error(err)
		return storageErr("begin save user", err)
	}
	defer rollback(tx)

	if _, err := tx.NamedExecContext(
		ctx,
		`insert into usr (id, username, role, upline_id, level, total_investment, created_at)
values (:id, :username, :role, :upline_id, :level, :total_investment, :created_at)`,
		user,
	); err != nil {
		log.Error("Failed save user ", err)
		if isUniqueViolation(err) {
			return models.ErrUserExists
		}
		return storageErr("save user", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		"insert into balance (user_id, cash, roi, commission) values ($1, 0, 0, 0)",
		user.Id,
	); err != nil {
		log.Error("Failed create balance ", err)
		return storageErr("save balance", err)
	}

	if err := tx.Commit(); err != nil {
		log.Error("Failed to commit transaction")
		return storageErr("commit save user", err)
	}

	return nil
}

func (u *UserRepository) FindById(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.User
	if err := u.db.GetContext(ctx, &user, "select * from usr where id=$1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, storageErr("find user", err)
	}

	return &user, nil
}

func (u *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.User
	if err := u.db.GetContext(ctx, &user, "select * from usr where username=$1", username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, storageErr("find user by username", err)
	}

	return &user, nil
}

func (u *UserRepository) FindByUpline(ctx context.Context, uplineId string) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	users := make([]models.User, 0)
	if err := u.db.SelectContext(
		ctx,
		&users,
		"select * from usr where upline_id = $1 order by created_at, id",
		uplineId,
	); err != nil {
		log.Error("Failed find user referrals ", err)
		return nil, storageErr("find referrals", err)
	}

	return users, nil
}

func (u *UserRepository) FindAll(ctx context.Context) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	users := make([]models.User, 0)
	if err := u.db.SelectContext(ctx, &users, "select * from usr order by created_at, id"); err != nil {
		log.Error("Failed find all users", err)
		return nil, storageErr("find users", err)
	}

	return users, nil
}

func (u *UserRepository) UpdateUpline(ctx context.Context, id, uplineId string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := u.db.ExecContext(ctx, "update usr set upline_id = $2 where id = $1", id, uplineId)
	if err != nil {
		log.Error("failed update upline: ", err)
		return storageErr("update upline", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}

	return nil
}

func (u *UserRepository) UpdateLevel(ctx context.Context, id string, from, to int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := u.db.ExecContext(
		ctx,
		"update usr set level = $3 where id = $1 and level = $2",
		id,
		from,
		to,
	)
	if err != nil {
		log.Error("failed update level: ", err)
		return false, storageErr("update level", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("update level", err)
	}

	return n == 1, nil
}

// addInvestmentTx adds amount to the cumulative investment of a user inside a ledger transaction.
func addInvestmentTx(ctx context.Context, tx *sqlx.Tx, c models.DepositApproval) error {
	res, err := tx.ExecContext(
		ctx,
		"update usr set total_investment = total_investment + $2 where id = $1",
		c.UserId,
		c.Amount,
	)
	if err != nil {
		return storageErr("add investment", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
