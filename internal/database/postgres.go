package database

import (
	"context"
	"fmt"
	"time"

	"minex/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var log = config.InitLogger()

type Postgres struct {
	Db *sqlx.DB
}

func DSN(config *config.PostgresConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&client_encoding=%s",
		config.User,
		config.Password,
		config.Host,
		config.Port,
		config.DBName,
		"UTF8",
	)
}

func NewPostgres(config *config.PostgresConfig) (*Postgres, error) {
	return Open(DSN(config))
}

func Open(dsn string) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		log.Error("Failed to connect to database: ", err)
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Postgres{
		Db: db,
	}, nil
}

func (p *Postgres) Close() error {
	err := p.Db.Close()
	if err != nil {
		log.Error("Error closing database: ", err)
		return err
	}

	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.Db.PingContext(ctx)
}
