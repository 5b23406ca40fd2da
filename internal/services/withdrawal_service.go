package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"minex/internal/models"
	"minex/internal/repositories"
	"minex/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WithdrawalService struct {
	withdrawals repositories.WithdrawalStore
	ledger      *LedgerService
	// days of month that accept new withdrawals, empty means every day
	allowedDays []int
	now         func() time.Time
}

func NewWithdrawalService(withdrawals repositories.WithdrawalStore, ledger *LedgerService, allowedDays []int) *WithdrawalService {
	return &WithdrawalService{
		withdrawals: withdrawals,
		ledger:      ledger,
		allowedDays: allowedDays,
		now:         time.Now,
	}
}

func (s *WithdrawalService) dayAllowed(t time.Time) bool {
	if len(s.allowedDays) == 0 {
		return true
	}
	day := t.UTC().Day()
	for _, d := range s.allowedDays {
		if d == day {
			return true
		}
	}
	return false
}

// Submit reserves amount from the roi bucket first and the commission bucket for the rest.
func (s *WithdrawalService) Submit(
	ctx context.Context,
	userId string,
	amount decimal.Decimal,
	walletAddress string,
) (*models.Withdrawal, error) {
	now := s.now().UTC()
	if !s.dayAllowed(now) {
		return nil, fmt.Errorf("day %d: %w", now.Day(), models.ErrWithdrawalDateNotAllowed)
	}
	amount = util.Money(amount)
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	walletAddress = strings.TrimSpace(walletAddress)
	if walletAddress == "" {
		return nil, errors.New("wallet address is required")
	}

	bal, err := s.ledger.Balance(ctx, userId)
	if err != nil {
		return nil, err
	}
	fromROI, fromCommission, ok := util.SplitWithdrawal(amount, bal.ROI, bal.Commission)
	if !ok {
		return nil, fmt.Errorf("withdrawable %s, requested %s: %w", bal.Withdrawable(), amount, models.ErrInsufficientFunds)
	}

	w := &models.Withdrawal{
		Id:                 uuid.NewString(),
		UserId:             userId,
		Amount:             amount,
		ReservedROI:        fromROI,
		ReservedCommission: fromCommission,
		WalletAddress:      walletAddress,
		Status:             models.StatusPending,
		CreatedAt:          now,
	}
	if _, err := s.ledger.Post(ctx, &models.Posting{
		Key:        util.WithdrawalKey(w.Id),
		UserId:     userId,
		Reason:     models.ReasonWithdrawal,
		RefId:      w.Id,
		Legs:       withdrawalLegs(fromROI.Neg(), fromCommission.Neg()),
		Companions: []models.Companion{models.WithdrawalOpen{Withdrawal: w}},
		CreatedAt:  now,
	}); err != nil {
		return nil, err
	}

	log.Infof("Withdrawal %s of %s submitted by %s", w.Id, amount, userId)
	return w, nil
}

func withdrawalLegs(roi, commission decimal.Decimal) []models.Leg {
	legs := make([]models.Leg, 0, 2)
	if !roi.IsZero() {
		legs = append(legs, models.Leg{Bucket: models.BucketROI, Amount: roi})
	}
	if !commission.IsZero() {
		legs = append(legs, models.Leg{Bucket: models.BucketCommission, Amount: commission})
	}
	return legs
}

// Approve marks a pending withdrawal as paid out. The funds left the balance on submit.
func (s *WithdrawalService) Approve(ctx context.Context, actor models.Actor, id, txHash string) error {
	if !actor.IsAdmin() {
		return models.ErrForbidden
	}
	if err := s.withdrawals.Approve(ctx, id, strings.TrimSpace(txHash), actor.UserId, s.now().UTC()); err != nil {
		return err
	}
	log.Infof("Withdrawal %s approved by %s", id, actor.UserId)
	return nil
}

// Reject returns exactly the reserved split of a pending withdrawal to its buckets.
func (s *WithdrawalService) Reject(ctx context.Context, actor models.Actor, id, reason string) error {
	if !actor.IsAdmin() {
		return models.ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.ErrReasonRequired
	}

	w, err := s.withdrawals.FindById(ctx, id)
	if err != nil {
		return err
	}
	if w.Status != models.StatusPending {
		return fmt.Errorf("withdrawal %s is %s: %w", id, w.Status, models.ErrAlreadyProcessed)
	}

	now := s.now().UTC()
	if _, err := s.ledger.Post(ctx, &models.Posting{
		Key:    util.WithdrawalRejectKey(w.Id),
		UserId: w.UserId,
		Reason: models.ReasonWithdrawalReturn,
		RefId:  w.Id,
		Legs:   withdrawalLegs(w.ReservedROI, w.ReservedCommission),
		Companions: []models.Companion{models.WithdrawalReject{
			WithdrawalId: w.Id,
			Reason:       reason,
			By:           actor.UserId,
			At:           now,
		}},
		CreatedAt: now,
	}); err != nil {
		return err
	}

	log.Infof("Withdrawal %s rejected by %s: %s", id, actor.UserId, reason)
	return nil
}

func (s *WithdrawalService) Get(ctx context.Context, id string) (*models.Withdrawal, error) {
	return s.withdrawals.FindById(ctx, id)
}

func (s *WithdrawalService) ListByUser(ctx context.Context, userId string) ([]models.Withdrawal, error) {
	return s.withdrawals.FindByUser(ctx, userId)
}
