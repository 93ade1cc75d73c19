package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/repository"
)

// HistorySchema returns the DDL for the forecast history table.
func HistorySchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			id String,
			created_at DateTime64(3),
			source LowCardinality(String),
			model LowCardinality(String),
			choice LowCardinality(String),
			used_column String,
			steps UInt32,
			points UInt32,
			forecast Array(Float64),
			duration_ms UInt64,
			cached Bool
		) ENGINE = MergeTree ORDER BY (created_at, id)`, database, table),
	}
}

// ClickHouseHistoryStore implements HistoryStore for ClickHouse.
type ClickHouseHistoryStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseHistoryStore creates ClickHouse history storage. table is the
// fully qualified name, e.g. "forecasting.forecast_history".
func NewClickHouseHistoryStore(db *sql.DB, table string) repository.HistoryStore {
	return &ClickHouseHistoryStore{db: db, table: table}
}

const historyColumns = "id, created_at, source, model, choice, used_column, steps, points, forecast, duration_ms, cached"

func (s *ClickHouseHistoryStore) Save(ctx context.Context, r *models.ForecastRecord) error {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table, historyColumns)
	_, err := s.db.ExecContext(ctx, q,
		r.ID,
		r.CreatedAt,
		r.Source,
		r.Model,
		r.Choice,
		r.UsedColumn,
		uint32(r.Steps),
		uint32(r.Points),
		r.Forecast,
		uint64(r.DurationMs),
		r.Cached,
	)
	if err != nil {
		return fmt.Errorf("insert forecast history: %w", err)
	}
	return nil
}

func (s *ClickHouseHistoryStore) Recent(ctx context.Context, hq models.HistoryQuery) ([]*models.ForecastRecord, error) {
	q, args := buildRecentQuery(s.table, hq)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query forecast history: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ForecastRecord, 0, hq.Limit)
	for rows.Next() {
		var (
			r             models.ForecastRecord
			steps, points uint32
			duration      uint64
		)
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Source, &r.Model, &r.Choice, &r.UsedColumn,
			&steps, &points, &r.Forecast, &duration, &r.Cached); err != nil {
			return nil, fmt.Errorf("scan forecast history: %w", err)
		}
		r.Steps, r.Points, r.DurationMs = int(steps), int(points), int64(duration)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func buildRecentQuery(table string, hq models.HistoryQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	if hq.Model != "" {
		where = append(where, "(model = ? OR choice = ?)")
		args = append(args, hq.Model, hq.Model)
	}
	if !hq.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, hq.Since.UTC().Truncate(time.Millisecond))
	}

	q := fmt.Sprintf("SELECT %s FROM %s", historyColumns, table)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, hq.Limit)
	return q, args
}

func (s *ClickHouseHistoryStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseHistoryStore) Close() error {
	return nil // Managed by pkg
}
