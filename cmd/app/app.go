package main

import (
	"context"
	"errors"

	"minex/internal/config"
	"minex/internal/database"
	"minex/internal/models"
	"minex/internal/notify"
	"minex/internal/repositories"
	"minex/internal/schedulers"
	"minex/internal/services"

	"github.com/redis/go-redis/v9"
)

var log = config.InitLogger()

type app struct {
	cfg       *config.Config
	pg        *database.Postgres
	redis     *redis.Client
	svc       *services.Services
	scheduler *schedulers.ROIScheduler
	closed    chan *models.NotificationStake
	runs      chan *models.DistributionResult
}

// newApp wires storage, services and the scheduler from the environment. Without DB_NAME the
// in-memory store is used and the default packages are seeded.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		closed: make(chan *models.NotificationStake, 100),
		runs:   make(chan *models.DistributionResult, 10),
	}

	var repos *repositories.Repositories
	if cfg.Postgres.DBName != "" {
		a.pg, err = database.NewPostgres(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := a.pg.Ping(ctx); err != nil {
			a.Close()
			return nil, err
		}
		repos = repositories.NewPostgresRepositories(a.pg.Db)
		log.Infoln("Database initialized")
	} else {
		repos = repositories.NewMemoryRepositories()
		log.Warn("DB_NAME not set, using in-memory store")
	}

	a.svc = services.New(repos, services.OptionsFromConfig(cfg, a.closed))
	if a.pg == nil {
		if _, err := a.svc.Packages.SeedDefaults(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	var lock schedulers.RunLock = schedulers.NewMemoryRunLock()
	if cfg.RedisURL != "" {
		a.redis, err = database.InitRedisCli(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		lock = schedulers.NewRedisRunLock(a.redis, 0)
		log.Infoln("Redis run lock enabled")
	}

	a.scheduler, err = schedulers.NewROIScheduler(a.svc.ROI, lock, cfg.Scheduler.Hour, cfg.Scheduler.Minute, a.runs)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) requirePostgres() error {
	if a.pg == nil {
		return errors.New("DB_NAME is not set")
	}
	return nil
}

func (a *app) sender() notify.Sender {
	if a.cfg.Telegram.Token == "" {
		return notify.LogSender{}
	}
	s, err := notify.NewTelegramSender(a.cfg.Telegram.Token, a.cfg.Telegram.AdminChatId)
	if err != nil {
		log.Error("Telegram notifications disabled: ", err)
		return notify.LogSender{}
	}
	return s
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Error("Error closing redis: ", err)
		}
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
}
