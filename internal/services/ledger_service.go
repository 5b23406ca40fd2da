package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"minex/internal/config"
	"minex/internal/models"
	"minex/internal/monitoring"
	"minex/internal/repositories"
	"minex/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = config.InitLogger()

// LedgerService is the only writer of balances. Postings of one user are serialized in
// process; the store serializes them again across processes.
type LedgerService struct {
	store repositories.LedgerStore
	locks *util.KeyedMutex
	retry util.RetryPolicy
	now   func() time.Time
}

func NewLedgerService(store repositories.LedgerStore, retry util.RetryPolicy) *LedgerService {
	return &LedgerService{
		store: store,
		locks: util.NewKeyedMutex(),
		retry: retry,
		now:   time.Now,
	}
}

// Credit adds amount to one bucket. Repeating a key returns the entry of the first call.
func (s *LedgerService) Credit(
	ctx context.Context,
	userId, bucket string,
	amount decimal.Decimal,
	reason, idempotencyKey string,
) (*models.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	res, err := s.Post(ctx, &models.Posting{
		Key:    idempotencyKey,
		UserId: userId,
		Reason: reason,
		Legs:   []models.Leg{{Bucket: bucket, Amount: amount}},
	})
	if err != nil {
		return nil, err
	}
	return firstEntry(res), nil
}

// Debit removes amount from one bucket, failing with ErrInsufficientFunds if it would go negative.
func (s *LedgerService) Debit(
	ctx context.Context,
	userId, bucket string,
	amount decimal.Decimal,
	reason string,
) (*models.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	res, err := s.Post(ctx, &models.Posting{
		Key:    "debit:" + uuid.NewString(),
		UserId: userId,
		Reason: reason,
		Legs:   []models.Leg{{Bucket: bucket, Amount: amount.Neg()}},
	})
	if err != nil {
		return nil, err
	}
	return firstEntry(res), nil
}

func firstEntry(res *models.PostingResult) *models.LedgerEntry {
	if len(res.Entries) == 0 {
		return nil
	}
	e := res.Entries[0]
	return &e
}

func (s *LedgerService) Balance(ctx context.Context, userId string) (models.Balance, error) {
	return s.store.Balance(ctx, userId)
}

func (s *LedgerService) Entries(ctx context.Context, userId string) ([]models.LedgerEntry, error) {
	return s.store.Entries(ctx, userId)
}

// Post commits a posting and its companions as one unit.
func (s *LedgerService) Post(ctx context.Context, p *models.Posting) (*models.PostingResult, error) {
	if p.Key == "" || p.UserId == "" {
		return nil, errors.New("posting requires key and user")
	}
	for i, leg := range p.Legs {
		if !models.ValidBucket(leg.Bucket) {
			return nil, fmt.Errorf("%q: %w", leg.Bucket, models.ErrInvalidBucket)
		}
		p.Legs[i].Amount = util.Money(leg.Amount)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}

	unlock := s.locks.Lock(p.UserId)
	defer unlock()

	var res *models.PostingResult
	err := util.Retry(ctx, s.retry, isStorageUnavailable, func() error {
		var err error
		res, err = s.store.Commit(ctx, p)
		return err
	})
	if err != nil {
		monitoring.LedgerPostingsTotal.WithLabelValues(p.Reason, "error").Inc()
		if isStorageUnavailable(err) {
			log.WithFields(logrus.Fields{"key": p.Key, "user": p.UserId}).Error("Ledger store unavailable: ", err)
		}
		return nil, err
	}

	if res.Duplicate {
		monitoring.LedgerPostingsTotal.WithLabelValues(p.Reason, "duplicate").Inc()
		log.WithField("key", p.Key).Debug("Posting already applied")
	} else {
		monitoring.LedgerPostingsTotal.WithLabelValues(p.Reason, "applied").Inc()
	}
	return res, nil
}

// Reconcile recomputes a balance from the entry log and reports whether the cached balance drifted.
func (s *LedgerService) Reconcile(ctx context.Context, userId string) (models.Balance, bool, error) {
	unlock := s.locks.Lock(userId)
	defer unlock()

	cached, err := s.store.Balance(ctx, userId)
	if err != nil {
		return models.Balance{}, false, err
	}
	entries, err := s.store.Entries(ctx, userId)
	if err != nil {
		return models.Balance{}, false, err
	}

	sum := models.Balance{UserId: userId}
	for _, e := range entries {
		sum = sum.Add(e.Bucket, e.Amount)
	}

	drift := !sum.Cash.Equal(cached.Cash) || !sum.ROI.Equal(cached.ROI) || !sum.Commission.Equal(cached.Commission)
	if drift {
		log.WithFields(logrus.Fields{
			"user":   userId,
			"cached": fmt.Sprintf("%s/%s/%s", cached.Cash, cached.ROI, cached.Commission),
			"ledger": fmt.Sprintf("%s/%s/%s", sum.Cash, sum.ROI, sum.Commission),
		}).Warn("Balance drift detected")
	}
	return sum, drift, nil
}

func isStorageUnavailable(err error) bool {
	return errors.Is(err, models.ErrStorageUnavailable)
}
