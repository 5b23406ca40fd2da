package services

import (
	"minex/internal/config"
	"minex/internal/models"
	"minex/internal/repositories"
	"minex/internal/util"

	"github.com/shopspring/decimal"
)

type Options struct {
	Retry          util.RetryPolicy
	MaxDailyROI    decimal.Decimal
	WithdrawalDays []int
	Workers        int
	// optional, receives stakes closed by ROI distribution
	ClosedStakes chan<- *models.NotificationStake
}

// OptionsFromConfig maps the environment configuration onto service options.
func OptionsFromConfig(cfg *config.Config, closed chan<- *models.NotificationStake) Options {
	retry := util.DefaultRetryPolicy()
	retry.Attempts = cfg.Retry.Attempts
	retry.BaseDelay = cfg.Retry.BaseDelay
	return Options{
		Retry:          retry,
		MaxDailyROI:    cfg.MaxDailyROI,
		WithdrawalDays: cfg.WithdrawalDays,
		Workers:        cfg.Scheduler.Workers,
		ClosedStakes:   closed,
	}
}

type Services struct {
	Ledger      *LedgerService
	Referrals   *ReferralService
	Packages    *PackageService
	Commissions *CommissionService
	Promotions  *PromotionService
	Stakes      *StakeService
	Deposits    *DepositService
	Withdrawals *WithdrawalService
	ROI         *ROIService
	Users       *UserService
}

func New(repos *repositories.Repositories, opts Options) *Services {
	if opts.MaxDailyROI.IsZero() {
		opts.MaxDailyROI = decimal.NewFromInt(5)
	}

	ledger := NewLedgerService(repos.Ledger, opts.Retry)
	referrals := NewReferralService(repos.Users)
	packages := NewPackageService(repos.Packages, opts.MaxDailyROI)
	commissions := NewCommissionService(ledger, referrals, packages, repos.Commissions)
	promotions := NewPromotionService(repos.Users, referrals, packages)

	return &Services{
		Ledger:      ledger,
		Referrals:   referrals,
		Packages:    packages,
		Commissions: commissions,
		Promotions:  promotions,
		Stakes:      NewStakeService(repos.Stakes, repos.Users, packages, ledger),
		Deposits:    NewDepositService(repos.Deposits, repos.Users, ledger, commissions, promotions),
		Withdrawals: NewWithdrawalService(repos.Withdrawals, ledger, opts.WithdrawalDays),
		ROI:         NewROIService(repos.Stakes, repos.Runs, ledger, opts.Workers, opts.ClosedStakes),
		Users:       NewUserService(repos.Users, repos.Withdrawals, ledger, referrals, packages, commissions, promotions),
	}
}
