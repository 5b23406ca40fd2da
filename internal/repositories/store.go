package repositories

import (
	"context"
	"time"

	"minex/internal/config"
	"minex/internal/models"

	"github.com/jmoiron/sqlx"
)

var log = config.InitLogger()

const queryTimeout = 30 * time.Second

type UserStore interface {
	// Save inserts the user together with its zero balance row.
	Save(ctx context.Context, user *models.User) error
	FindById(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByUpline(ctx context.Context, uplineId string) ([]models.User, error)
	FindAll(ctx context.Context) ([]models.User, error)
	UpdateUpline(ctx context.Context, id, uplineId string) error
	// UpdateLevel moves the level from -> to and reports false if the stored level was not from.
	UpdateLevel(ctx context.Context, id string, from, to int) (bool, error)
}

type PackageStore interface {
	Save(ctx context.Context, pkg *models.Package) error
	FindById(ctx context.Context, id string) (*models.Package, error)
	// FindCurrent returns the newest active version of a level.
	FindCurrent(ctx context.Context, level int) (*models.Package, error)
	FindAllCurrent(ctx context.Context) ([]models.Package, error)
	LatestVersion(ctx context.Context, level int) (int, error)
}

type StakeStore interface {
	FindById(ctx context.Context, id string) (*models.Stake, error)
	FindByUser(ctx context.Context, userId string) ([]models.Stake, error)
	// FindActive returns active stakes that started before the given day.
	FindActive(ctx context.Context, before time.Time) ([]models.Stake, error)
}

type LedgerStore interface {
	// Commit applies a posting and its companions atomically. A posting whose key was already
	// committed is not applied again; the original entries are returned with Duplicate set.
	Commit(ctx context.Context, p *models.Posting) (*models.PostingResult, error)
	Balance(ctx context.Context, userId string) (models.Balance, error)
	Entries(ctx context.Context, userId string) ([]models.LedgerEntry, error)
	EntriesByKey(ctx context.Context, key string) ([]models.LedgerEntry, error)
}

type CommissionStore interface {
	FindByEarner(ctx context.Context, userId string) ([]models.CommissionRecord, error)
	FindBySource(ctx context.Context, sourceEventId string) ([]models.CommissionRecord, error)
}

type DepositStore interface {
	Save(ctx context.Context, deposit *models.Deposit) error
	FindById(ctx context.Context, id string) (*models.Deposit, error)
	FindByUser(ctx context.Context, userId string) ([]models.Deposit, error)
	FindByStatus(ctx context.Context, status string) ([]models.Deposit, error)
	Reject(ctx context.Context, id, reason, by string, at time.Time) error
}

type WithdrawalStore interface {
	FindById(ctx context.Context, id string) (*models.Withdrawal, error)
	FindByUser(ctx context.Context, userId string) ([]models.Withdrawal, error)
	CountPending(ctx context.Context, userId string) (int, error)
	Approve(ctx context.Context, id, txHash, by string, at time.Time) error
}

type RunStore interface {
	Save(ctx context.Context, run *models.DistributionRun) error
	FindLast(ctx context.Context) (*models.DistributionRun, error)
}

// Repositories bundles one implementation of every store.
type Repositories struct {
	Users       UserStore
	Packages    PackageStore
	Stakes      StakeStore
	Ledger      LedgerStore
	Commissions CommissionStore
	Deposits    DepositStore
	Withdrawals WithdrawalStore
	Runs        RunStore
}

func NewPostgresRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Users:       NewUserRepository(db),
		Packages:    NewPackageRepository(db),
		Stakes:      NewStakeRepository(db),
		Ledger:      NewLedgerRepository(db),
		Commissions: NewCommissionRepository(db),
		Deposits:    NewDepositRepository(db),
		Withdrawals: NewWithdrawalRepository(db),
		Runs:        NewRunRepository(db),
	}
}
