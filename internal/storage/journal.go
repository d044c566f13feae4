// Package storage keeps pending alerts in memory and, optionally, a journal of
// delivery outcomes in Postgres.
package storage

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Delivery is one journaled flush outcome for a batch.
type Delivery struct {
	ID           int64     `json:"id"`
	Key          string    `json:"key"`
	URL          string    `json:"url"`
	StrategyName string    `json:"strategy_name"`
	Events       int       `json:"events"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	DeliveredAt  time.Time `json:"delivered_at"`
}

type Journal interface {
	Record(ctx context.Context, d Delivery) error
	Recent(ctx context.Context, limit int) ([]Delivery, error)
	Close() error
}

type PostgresJournal struct {
	pool *pgxpool.Pool
}

func NewPostgresJournal(ctx context.Context, dsn string) (*PostgresJournal, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	if err := migrate(pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresJournal{pool: pool}, nil
}

func migrate(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Record(ctx context.Context, d Delivery) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO deliveries (grouping_key, url, strategy_name, events, status, error)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.Key, d.URL, d.StrategyName, d.Events, d.Status, d.Error,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (j *PostgresJournal) Recent(ctx context.Context, limit int) ([]Delivery, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT id, grouping_key, url, strategy_name, events, status, error, delivered_at
		 FROM deliveries ORDER BY delivered_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.Key, &d.URL, &d.StrategyName, &d.Events, &d.Status, &d.Error, &d.DeliveredAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (j *PostgresJournal) Close() error {
	j.pool.Close()
	return nil
}
