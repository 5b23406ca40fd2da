package services

import (
	"context"
	"fmt"
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

// ROIService credits daily ROI on active stakes and closes them at their end date.
type ROIService struct {
	stakes  repositories.StakeStore
	runs    repositories.RunStore
	ledger  *LedgerService
	workers int
	// receives completed stakes; sends never block the run
	closed chan<- *models.NotificationStake
	now    func() time.Time
}

// NewROIService builds the distribution service. Fewer than one worker means one.
func NewROIService(
	stakes repositories.StakeStore,
	runs repositories.RunStore,
	ledger *LedgerService,
	workers int,
	closed chan<- *models.NotificationStake,
) *ROIService {
	if workers < 1 {
		workers = 1
	}
	return &ROIService{
		stakes:  stakes,
		runs:    runs,
		ledger:  ledger,
		workers: workers,
		closed:  closed,
		now:     time.Now,
	}
}

type stakeOutcome struct {
	credits   int
	roi       decimal.Decimal
	completed bool
}

// DistributeDailyROI credits every active stake with at most one day, the one after its
// last_roi_date, if that day is not after asOf. Stakes whose final day is credited get their
// principal back. Running it again for the same day changes nothing. A day after today is
// rejected with ErrFutureRunDate. Stakes of one owner are processed in order; owners run in parallel.
func (s *ROIService) DistributeDailyROI(ctx context.Context, asOf time.Time, trigger string) (*models.DistributionResult, error) {
	day := util.Day(asOf)
	if today := util.Day(s.now()); day.After(today) {
		return nil, fmt.Errorf("%s after %s: %w", util.FormatDay(day), util.FormatDay(today), models.ErrFutureRunDate)
	}
	started := s.now().UTC()
	result := &models.DistributionResult{
		RunId:     uuid.NewString(),
		AsOf:      day,
		Trigger:   trigger,
		TotalROI:  decimal.Zero,
		StartedAt: started,
	}

	logger := log.WithFields(logrus.Fields{"run": result.RunId, "as_of": util.FormatDay(day), "trigger": trigger})
	logger.Info("ROI distribution started")

	stakes, err := s.stakes.FindActive(ctx, day)
	if err != nil {
		return s.finish(ctx, result, err)
	}

	owners := make([]string, 0)
	byOwner := make(map[string][]models.Stake)
	for _, st := range stakes {
		if _, ok := byOwner[st.UserId]; !ok {
			owners = append(owners, st.UserId)
		}
		byOwner[st.UserId] = append(byOwner[st.UserId], st)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, owner := range owners {
		g.Go(func() error {
			for i := range byOwner[owner] {
				st := &byOwner[owner][i]
				out, err := s.processStake(gctx, st, day)

				mu.Lock()
				result.StakesProcessed++
				result.Credits += out.credits
				result.TotalROI = result.TotalROI.Add(out.roi)
				if out.completed {
					result.StakesCompleted++
				}
				if err != nil && models.IsEntityError(err) {
					result.Failures++
				}
				mu.Unlock()

				if err != nil {
					if !models.IsEntityError(err) {
						return fmt.Errorf("stake %s: %w", st.Id, err)
					}
					logger.WithField("stake", st.Id).Error("Stake skipped: ", err)
				}
			}
			return nil
		})
	}

	return s.finish(ctx, result, g.Wait())
}

func (s *ROIService) finish(ctx context.Context, result *models.DistributionResult, runErr error) (*models.DistributionResult, error) {
	result.FinishedAt = s.now().UTC()
	status := models.RunSucceeded
	if runErr != nil {
		status = models.RunAborted
	}

	monitoring.DistributionRunsTotal.WithLabelValues(result.Trigger, status).Inc()
	monitoring.DistributionDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())

	fields := logrus.Fields{
		"run":       result.RunId,
		"processed": result.StakesProcessed,
		"credits":   result.Credits,
		"total_roi": result.TotalROI.StringFixed(util.MoneyPlaces),
		"completed": result.StakesCompleted,
		"failures":  result.Failures,
	}
	if runErr != nil {
		log.WithFields(fields).Error("ROI distribution aborted: ", runErr)
	} else {
		log.WithFields(fields).Info("ROI distribution finished")
	}

	if s.runs != nil {
		run := &models.DistributionRun{
			Id:              result.RunId,
			AsOf:            result.AsOf,
			Trigger:         result.Trigger,
			StartedAt:       result.StartedAt,
			FinishedAt:      result.FinishedAt,
			StakesProcessed: result.StakesProcessed,
			Credits:         result.Credits,
			TotalROI:        result.TotalROI,
			StakesCompleted: result.StakesCompleted,
			Failures:        result.Failures,
			Status:          status,
		}
		// the run log must be written even when the caller's context is gone
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.runs.Save(saveCtx, run); err != nil {
			log.Error("Failed to save distribution run: ", err)
		}
	}

	return result, runErr
}

// processStake advances one stake by a single day. The accrual posting moves last_roi_date together
// with the roi entry; days missed by earlier runs are picked up one per run.
func (s *ROIService) processStake(ctx context.Context, st *models.Stake, day time.Time) (stakeOutcome, error) {
	out := stakeOutcome{roi: decimal.Zero}
	if !st.IsActive() {
		return out, nil
	}

	end := util.Day(st.EndDate)
	last := util.Day(st.StartDate)
	if st.LastROIDate.Valid {
		last = util.Day(st.LastROIDate.Time)
	}
	until := day
	if end.Before(until) {
		until = end
	}

	if next := util.AddDays(last, 1); !next.After(until) {
		daily := util.Percent(st.Amount, st.DailyROI)
		var legs []models.Leg
		if daily.IsPositive() {
			legs = []models.Leg{{Bucket: models.BucketROI, Amount: daily}}
		}
		res, err := s.ledger.Post(ctx, &models.Posting{
			Key:        util.ROIKey(st.Id, next),
			UserId:     st.UserId,
			Reason:     models.ReasonROI,
			RefId:      st.Id,
			Legs:       legs,
			Companions: []models.Companion{models.StakeAccrual{StakeId: st.Id, Day: next, Earned: daily}},
		})
		if err != nil {
			return out, err
		}
		last = next
		if !res.Duplicate {
			out.credits++
			out.roi = daily
			st.TotalEarned = st.TotalEarned.Add(daily)
			monitoring.ROICreditsTotal.Inc()
		}
	}

	if last.Before(end) || day.Before(end) {
		return out, nil
	}

	now := s.now().UTC()
	res, err := s.ledger.Post(ctx, &models.Posting{
		Key:        util.PrincipalKey(st.Id),
		UserId:     st.UserId,
		Reason:     models.ReasonPrincipalReturn,
		RefId:      st.Id,
		Legs:       []models.Leg{{Bucket: models.BucketCash, Amount: st.Amount}},
		Companions: []models.Companion{models.StakeClose{StakeId: st.Id, At: now}},
		CreatedAt:  now,
	})
	if err != nil {
		return out, err
	}
	if res.Duplicate {
		return out, nil
	}

	out.completed = true
	st.Status = models.StakeCompleted
	st.CompletedAt.Time, st.CompletedAt.Valid = now, true
	monitoring.StakesCompletedTotal.Inc()
	s.notifyClosed(st)
	return out, nil
}

func (s *ROIService) notifyClosed(st *models.Stake) {
	if s.closed == nil {
		return
	}
	msg := fmt.Sprintf("Stake %s completed. Earned: %s. Principal returned: %s.",
		st.Id, util.FormatMoney(st.TotalEarned), util.FormatMoney(st.Amount))
	stake := *st
	select {
	case s.closed <- &models.NotificationStake{Stake: &stake, Msg: msg}:
	default:
		log.Warn("Stake notification dropped, channel full: ", st.Id)
	}
}

// LastRun returns the most recent persisted run, or nil if none ran yet.
func (s *ROIService) LastRun(ctx context.Context) (*models.DistributionRun, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.FindLast(ctx)
}
