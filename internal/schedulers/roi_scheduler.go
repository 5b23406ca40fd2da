package schedulers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"minex/internal/config"
	"minex/internal/models"
	"minex/internal/services"
	"minex/internal/util"

	"github.com/robfig/cron/v3"
)

var log = config.InitLogger()

// ROIScheduler fires the daily ROI distribution at a configurable UTC time and serves manual runs.
type ROIScheduler struct {
	roi  *services.ROIService
	lock RunLock
	// optional, receives the result of every finished run
	results chan<- *models.DistributionResult
	now     func() time.Time

	mu         sync.Mutex
	cron       *cron.Cron
	entry      cron.EntryID
	hour       int
	minute     int
	running    bool
	lastRun    *time.Time
	lastResult *models.DistributionResult

	runMu    sync.Mutex
	inFlight atomic.Bool
}

func NewROIScheduler(
	roi *services.ROIService,
	lock RunLock,
	hour, minute int,
	results chan<- *models.DistributionResult,
) (*ROIScheduler, error) {
	if lock == nil {
		lock = NewMemoryRunLock()
	}
	s := &ROIScheduler{
		roi:     roi,
		lock:    lock,
		results: results,
		now:     time.Now,
		cron:    cron.New(cron.WithLocation(time.UTC)),
	}
	if err := s.SetSchedule(hour, minute); err != nil {
		return nil, err
	}
	return s, nil
}

func validTime(hour, minute int) bool {
	return hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59
}

// SetSchedule moves the daily run to hour:minute UTC. It takes effect immediately.
func (s *ROIScheduler) SetSchedule(hour, minute int) error {
	if !validTime(hour, minute) {
		return fmt.Errorf("%02d:%02d: %w", hour, minute, models.ErrInvalidSchedule)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(fmt.Sprintf("%d %d * * *", minute, hour), s.tick)
	if err != nil {
		return fmt.Errorf("add cron entry: %w", err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	s.hour, s.minute = hour, minute

	log.Infof("ROI distribution scheduled at %02d:%02d UTC", hour, minute)
	return nil
}

func (s *ROIScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	log.Infoln("ROI scheduler started")
}

// Stop halts the timer and waits for a scheduled run in progress.
func (s *ROIScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done := s.cron.Stop()
	s.mu.Unlock()

	<-done.Done()
	log.Infoln("ROI scheduler stopped")
}

func (s *ROIScheduler) tick() {
	if _, err := s.run(context.Background(), s.now(), models.TriggerSchedule); err != nil {
		log.Error("Scheduled ROI distribution failed: ", err)
	}
}

// RunNow distributes ROI for today. It waits for a run already in progress.
func (s *ROIScheduler) RunNow(ctx context.Context) (*models.DistributionResult, error) {
	return s.run(ctx, s.now(), models.TriggerManual)
}

// RunFor distributes ROI as of the given day, used from the command line. Days after today are rejected.
func (s *ROIScheduler) RunFor(ctx context.Context, asOf time.Time, trigger string) (*models.DistributionResult, error) {
	return s.run(ctx, asOf, trigger)
}

func (s *ROIScheduler) run(ctx context.Context, asOf time.Time, trigger string) (*models.DistributionResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.inFlight.Store(true)
	defer s.inFlight.Store(false)

	release, err := s.lock.Acquire(ctx, util.RunLockKey(asOf))
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.roi.DistributeDailyROI(ctx, asOf, trigger)
	if res != nil {
		s.mu.Lock()
		finished := res.FinishedAt
		s.lastRun = &finished
		s.lastResult = res
		s.mu.Unlock()

		if s.results != nil {
			select {
			case s.results <- res:
			default:
				log.Warn("Run result notification dropped: ", res.RunId)
			}
		}
	}
	return res, err
}

// Status reports the timer state. Without a run in this process the last run comes from the run log.
func (s *ROIScheduler) Status(ctx context.Context) (*models.SchedulerStatus, error) {
	s.mu.Lock()
	status := &models.SchedulerStatus{
		IsRunning:  s.running,
		InFlight:   s.inFlight.Load(),
		Schedule:   fmt.Sprintf("%02d:%02d UTC", s.hour, s.minute),
		LastRun:    s.lastRun,
		LastResult: s.lastResult,
	}
	if s.running {
		next := util.NextDaily(s.now(), s.hour, s.minute)
		status.NextRun = &next
	}
	s.mu.Unlock()

	if status.LastRun == nil {
		run, err := s.roi.LastRun(ctx)
		if err != nil {
			return nil, err
		}
		if run != nil {
			finished := run.FinishedAt
			status.LastRun = &finished
		}
	}
	return status, nil
}
