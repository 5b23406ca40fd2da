package services

import (
	"context"
	"fmt"
	"time"

	"minex/internal/models"
	"minex/internal/repositories"
	"minex/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StakeService struct {
	stakes   repositories.StakeStore
	users    repositories.UserStore
	packages *PackageService
	ledger   *LedgerService
}

func NewStakeService(
	stakes repositories.StakeStore,
	users repositories.UserStore,
	packages *PackageService,
	ledger *LedgerService,
) *StakeService {
	return &StakeService{
		stakes:   stakes,
		users:    users,
		packages: packages,
		ledger:   ledger,
	}
}

// Open moves amount from the user's cash into a new stake on the current version of level.
// The stake keeps that version's daily ROI for its whole life.
func (s *StakeService) Open(
	ctx context.Context,
	userId string,
	level int,
	amount decimal.Decimal,
	startDate time.Time,
) (*models.Stake, error) {
	amount = util.Money(amount)
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}

	user, err := s.users.FindById(ctx, userId)
	if err != nil {
		return nil, err
	}
	if level > user.Level {
		return nil, fmt.Errorf("package level %d above user level %d: %w", level, user.Level, models.ErrForbidden)
	}

	pkg, err := s.packages.Current(ctx, level)
	if err != nil {
		return nil, err
	}
	if amount.LessThan(pkg.MinInvestment) || amount.GreaterThan(pkg.MaxInvestment) {
		return nil, fmt.Errorf("%s not in [%s, %s]: %w",
			amount, pkg.MinInvestment, pkg.MaxInvestment, models.ErrAmountOutOfRange)
	}

	start := util.Day(startDate)
	stake := &models.Stake{
		Id:           uuid.NewString(),
		UserId:       userId,
		PackageId:    pkg.Id,
		Amount:       amount,
		DailyROI:     pkg.DailyROI,
		StartDate:    start,
		DurationDays: pkg.DurationDays,
		EndDate:      util.AddDays(start, pkg.DurationDays),
		Status:       models.StakeActive,
		TotalEarned:  decimal.Zero,
	}

	if _, err := s.ledger.Post(ctx, &models.Posting{
		Key:        util.StakeOpenKey(stake.Id),
		UserId:     userId,
		Reason:     models.ReasonStakeOpen,
		RefId:      stake.Id,
		Legs:       []models.Leg{{Bucket: models.BucketCash, Amount: amount.Neg()}},
		Companions: []models.Companion{models.StakeOpen{Stake: stake}},
	}); err != nil {
		return nil, err
	}

	log.Infof("Stake %s opened for %s: %s at %s%% for %d %s", stake.Id, userId, amount, stake.DailyROI, stake.DurationDays, util.SuffixDay(stake.DurationDays))
	return stake, nil
}

func (s *StakeService) Get(ctx context.Context, id string) (*models.Stake, error) {
	return s.stakes.FindById(ctx, id)
}

func (s *StakeService) ListByUser(ctx context.Context, userId string) ([]models.Stake, error) {
	return s.stakes.FindByUser(ctx, userId)
}
