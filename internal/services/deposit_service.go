package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"minex/internal/models"
	"minex/internal/repositories"
	"minex/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DepositService struct {
	deposits    repositories.DepositStore
	users       repositories.UserStore
	ledger      *LedgerService
	commissions *CommissionService
	promotions  *PromotionService
	now         func() time.Time
}

func NewDepositService(
	deposits repositories.DepositStore,
	users repositories.UserStore,
	ledger *LedgerService,
	commissions *CommissionService,
	promotions *PromotionService,
) *DepositService {
	return &DepositService{
		deposits:    deposits,
		users:       users,
		ledger:      ledger,
		commissions: commissions,
		promotions:  promotions,
		now:         time.Now,
	}
}

func (s *DepositService) Submit(
	ctx context.Context,
	userId string,
	amount decimal.Decimal,
	paymentMethod, txHash string,
) (*models.Deposit, error) {
	amount = util.Money(amount)
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if _, err := s.users.FindById(ctx, userId); err != nil {
		return nil, err
	}

	deposit := &models.Deposit{
		Id:            uuid.NewString(),
		UserId:        userId,
		Amount:        amount,
		PaymentMethod: paymentMethod,
		TxHash:        sql.NullString{String: txHash, Valid: txHash != ""},
		Status:        models.StatusPending,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.deposits.Save(ctx, deposit); err != nil {
		return nil, err
	}
	return deposit, nil
}

// Approve credits the deposit to cash, pays the upline commissions and re-checks promotions.
// Approving an already approved deposit resumes the commission walk, so a failed approval is
// retried by calling Approve again.
func (s *DepositService) Approve(
	ctx context.Context,
	actor models.Actor,
	id string,
) (*models.Deposit, *models.CommissionSummary, error) {
	if !actor.IsAdmin() {
		return nil, nil, models.ErrForbidden
	}

	deposit, err := s.deposits.FindById(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if deposit.Status == models.StatusRejected {
		return nil, nil, models.ErrAlreadyProcessed
	}

	if deposit.Status == models.StatusPending {
		now := s.now().UTC()
		if _, err := s.ledger.Post(ctx, &models.Posting{
			Key:    util.DepositKey(deposit.Id),
			UserId: deposit.UserId,
			Reason: models.ReasonDeposit,
			RefId:  deposit.Id,
			Legs:   []models.Leg{{Bucket: models.BucketCash, Amount: deposit.Amount}},
			Companions: []models.Companion{models.DepositApproval{
				DepositId: deposit.Id,
				UserId:    deposit.UserId,
				Amount:    deposit.Amount,
				By:        actor.UserId,
				At:        now,
			}},
			CreatedAt: now,
		}); err != nil {
			return nil, nil, err
		}
		log.Infof("Deposit %s of %s approved by %s", deposit.Id, deposit.Amount, actor.UserId)
	}

	summary, err := s.commissions.OnDepositApproved(ctx, deposit.Id, deposit.UserId, deposit.Amount)
	if err != nil {
		return nil, summary, err
	}
	if _, err := s.promotions.EvaluateChain(ctx, deposit.UserId); err != nil {
		return nil, summary, err
	}

	deposit, err = s.deposits.FindById(ctx, id)
	if err != nil {
		return nil, summary, err
	}
	return deposit, summary, nil
}

func (s *DepositService) Reject(ctx context.Context, actor models.Actor, id, reason string) error {
	if !actor.IsAdmin() {
		return models.ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.ErrReasonRequired
	}
	if err := s.deposits.Reject(ctx, id, reason, actor.UserId, s.now().UTC()); err != nil {
		return err
	}
	log.Infof("Deposit %s rejected by %s: %s", id, actor.UserId, reason)
	return nil
}

func (s *DepositService) Get(ctx context.Context, id string) (*models.Deposit, error) {
	return s.deposits.FindById(ctx, id)
}

func (s *DepositService) ListByUser(ctx context.Context, userId string) ([]models.Deposit, error) {
	return s.deposits.FindByUser(ctx, userId)
}

func (s *DepositService) Pending(ctx context.Context) ([]models.Deposit, error) {
	return s.deposits.FindByStatus(ctx, models.StatusPending)
}
