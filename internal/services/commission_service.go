package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"minex/internal/models"
	"minex/internal/monitoring"
	"minex/internal/repositories"
	"minex/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultCommissionWorkers = 6

type CommissionService struct {
	ledger    *LedgerService
	referrals *ReferralService
	packages  *PackageService
	records   repositories.CommissionStore
	workers   int
	now       func() time.Time
}

func NewCommissionService(
	ledger *LedgerService,
	referrals *ReferralService,
	packages *PackageService,
	records repositories.CommissionStore,
) *CommissionService {
	return &CommissionService{
		ledger:    ledger,
		referrals: referrals,
		packages:  packages,
		records:   records,
		workers:   defaultCommissionWorkers,
		now:       time.Now,
	}
}

// OnDepositApproved pays every ancestor of payer up to six levels according to the ancestor's
// current package. The call is safe to repeat: depths already paid come back as duplicates.
func (s *CommissionService) OnDepositApproved(
	ctx context.Context,
	depositId, payerId string,
	amount decimal.Decimal,
) (*models.CommissionSummary, error) {
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}

	ancestors, err := s.referrals.Ancestors(ctx, payerId, models.MaxDepth)
	if err != nil {
		if !models.IsEntityError(err) {
			return nil, err
		}
		log.Warnf("Ancestor walk of %s incomplete: %v", payerId, err)
	}

	summary := &models.CommissionSummary{SourceEventId: depositId, Total: decimal.Zero}
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(s.workers)

	for _, a := range ancestors {
		g.Go(func() error {
			credited, dup, paid, err := s.payAncestor(ctx, depositId, payerId, amount, a)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && models.IsEntityError(err):
				log.WithFields(logrus.Fields{
					"deposit":  depositId,
					"ancestor": a.User.Id,
					"depth":    a.Depth,
				}).Warn("Commission skipped: ", err)
				summary.Skipped++
			case err != nil:
				errs = append(errs, fmt.Errorf("depth %d: %w", a.Depth, err))
			case dup:
				summary.Duplicates++
			case credited:
				summary.Credited++
				summary.Total = summary.Total.Add(paid)
			default:
				summary.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return summary, errors.Join(errs...)
	}

	log.WithFields(logrus.Fields{
		"deposit":    depositId,
		"credited":   summary.Credited,
		"duplicates": summary.Duplicates,
		"skipped":    summary.Skipped,
		"total":      summary.Total.StringFixed(util.MoneyPlaces),
	}).Info("Commissions processed")
	return summary, nil
}

func (s *CommissionService) payAncestor(
	ctx context.Context,
	depositId, payerId string,
	amount decimal.Decimal,
	a models.Ancestor,
) (credited, duplicate bool, paid decimal.Decimal, err error) {
	rate, err := s.packages.RateFor(ctx, a.User.Level, a.Depth)
	if err != nil {
		return false, false, decimal.Zero, err
	}
	if !rate.IsPositive() {
		return false, false, decimal.Zero, nil
	}
	paid = util.Percent(amount, rate)
	if !paid.IsPositive() {
		return false, false, decimal.Zero, nil
	}

	now := s.now().UTC()
	record := &models.CommissionRecord{
		Id:            uuid.NewString(),
		FromUserId:    payerId,
		ToUserId:      a.User.Id,
		Depth:         a.Depth,
		Percentage:    rate,
		Amount:        paid,
		SourceEventId: depositId,
		CreatedAt:     now,
	}
	res, err := s.ledger.Post(ctx, &models.Posting{
		Key:        util.CommissionKey(depositId, a.Depth),
		UserId:     a.User.Id,
		Reason:     models.ReasonCommission,
		RefId:      depositId,
		Legs:       []models.Leg{{Bucket: models.BucketCommission, Amount: paid}},
		Companions: []models.Companion{models.CommissionGrant{Record: record}},
		CreatedAt:  now,
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicateOperation) {
			return false, true, decimal.Zero, nil
		}
		return false, false, decimal.Zero, err
	}
	if res.Duplicate {
		return false, true, decimal.Zero, nil
	}

	monitoring.CommissionsTotal.WithLabelValues(strconv.Itoa(a.Depth)).Inc()
	return true, false, paid, nil
}

// History lists the commissions earned by userId, newest first.
func (s *CommissionService) History(ctx context.Context, userId string) ([]models.CommissionRecord, error) {
	return s.records.FindByEarner(ctx, userId)
}

func (s *CommissionService) BySource(ctx context.Context, depositId string) ([]models.CommissionRecord, error) {
	return s.records.FindBySource(ctx, depositId)
}
