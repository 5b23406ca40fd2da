package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"minex/internal/models"
	"minex/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UserService struct {
	users       repositories.UserStore
	withdrawals repositories.WithdrawalStore
	ledger      *LedgerService
	referrals   *ReferralService
	packages    *PackageService
	commissions *CommissionService
	promotions  *PromotionService
	now         func() time.Time
}

func NewUserService(
	users repositories.UserStore,
	withdrawals repositories.WithdrawalStore,
	ledger *LedgerService,
	referrals *ReferralService,
	packages *PackageService,
	commissions *CommissionService,
	promotions *PromotionService,
) *UserService {
	return &UserService{
		users:       users,
		withdrawals: withdrawals,
		ledger:      ledger,
		referrals:   referrals,
		packages:    packages,
		commissions: commissions,
		promotions:  promotions,
		now:         time.Now,
	}
}

// Register creates a level 1 user below uplineId (empty for a root user).
func (s *UserService) Register(ctx context.Context, username, uplineId, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	user := &models.User{
		Id:              uuid.NewString(),
		Username:        username,
		Role:            role,
		Level:           1,
		TotalInvestment: decimal.Zero,
		CreatedAt:       s.now().UTC(),
	}
	if uplineId != "" {
		if _, err := s.users.FindById(ctx, uplineId); err != nil {
			if errors.Is(err, models.ErrUserNotFound) {
				return nil, fmt.Errorf("upline %s missing: %w", uplineId, models.ErrInvalidReferralGraph)
			}
			return nil, err
		}
		user.UplineId = sql.NullString{String: uplineId, Valid: true}
	}

	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	log.Infof("User %s registered (%s) upline=%q", user.Id, username, uplineId)

	if uplineId != "" {
		if _, err := s.promotions.EvaluateChain(ctx, uplineId); err != nil {
			log.Warn("Promotion chain after registration failed: ", err)
		}
	}
	return user, nil
}

// ChangeUpline moves a user under a new referrer and re-checks promotions along the new chain.
func (s *UserService) ChangeUpline(ctx context.Context, actor models.Actor, userId, uplineId string) error {
	if err := s.referrals.AssignUpline(ctx, actor, userId, uplineId); err != nil {
		return err
	}
	if _, err := s.promotions.EvaluateChain(ctx, uplineId); err != nil {
		log.Warn("Promotion chain after upline change failed: ", err)
	}
	return nil
}

func (s *UserService) GetById(ctx context.Context, id string) (*models.User, error) {
	return s.users.FindById(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.users.FindByUsername(ctx, username)
}

// Dashboard assembles the read-only projection shown to a user.
func (s *UserService) Dashboard(ctx context.Context, userId string) (*models.Dashboard, error) {
	user, err := s.users.FindById(ctx, userId)
	if err != nil {
		return nil, err
	}
	bal, err := s.ledger.Balance(ctx, userId)
	if err != nil {
		return nil, err
	}

	d := &models.Dashboard{
		UserId:             user.Id,
		Level:              user.Level,
		TotalInvestment:    user.TotalInvestment,
		Balance:            bal,
		DailyROIPercentage: decimal.Zero,
		TotalCommissions:   decimal.Zero,
	}

	pkg, err := s.packages.Current(ctx, user.Level)
	switch {
	case err == nil:
		d.DailyROIPercentage = pkg.DailyROI
	case !errors.Is(err, models.ErrPackageNotFound):
		return nil, err
	}

	team, err := s.referrals.Team(ctx, userId)
	if err != nil {
		return nil, err
	}
	for depth := 1; depth <= models.MaxDepth; depth++ {
		d.TeamCounts[depth-1] = len(team[depth])
	}

	history, err := s.commissions.History(ctx, userId)
	if err != nil {
		return nil, err
	}
	for _, c := range history {
		d.TotalCommissions = d.TotalCommissions.Add(c.Amount)
	}

	if d.PendingWithdrawals, err = s.withdrawals.CountPending(ctx, userId); err != nil {
		return nil, err
	}
	return d, nil
}
