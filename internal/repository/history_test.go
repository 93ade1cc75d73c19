package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
)

func TestMemoryHistoryStoreRing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore(3)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, choice := range []string{"arima", "rf", "xgboost", "rf"} {
		require.NoError(t, store.Save(ctx, &models.ForecastRecord{
			ID:        string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Choice:    choice,
			Forecast:  []float64{float64(i)},
		}))
	}

	all, err := store.Recent(ctx, models.HistoryQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"d", "c", "b"}, []string{all[0].ID, all[1].ID, all[2].ID})

	rf, err := store.Recent(ctx, models.HistoryQuery{Limit: 10, Model: "rf"})
	require.NoError(t, err)
	require.Len(t, rf, 2)
	assert.Equal(t, "d", rf[0].ID)

	recent, err := store.Recent(ctx, models.HistoryQuery{Limit: 10, Since: base.Add(150 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	one, err := store.Recent(ctx, models.HistoryQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, one, 1)
	assert.NoError(t, store.Health(ctx))
}

func TestMemoryHistoryStoreCopiesRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore(2)
	r := &models.ForecastRecord{ID: "x", Forecast: []float64{1}}
	require.NoError(t, store.Save(ctx, r))
	r.Forecast[0] = 99

	got, err := store.Recent(ctx, models.HistoryQuery{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, got[0].Forecast)
}

func TestBuildRecentQuery(t *testing.T) {
	q, args := buildRecentQuery("db.t", models.HistoryQuery{Limit: 5})
	assert.Equal(t, "SELECT "+historyColumns+" FROM db.t ORDER BY created_at DESC LIMIT ?", q)
	assert.Equal(t, []any{5}, args)

	since := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	q, args = buildRecentQuery("db.t", models.HistoryQuery{Limit: 5, Model: "rf", Since: since})
	assert.Contains(t, q, "WHERE (model = ? OR choice = ?) AND created_at >= ?")
	assert.Equal(t, []any{"rf", "rf", since, 5}, args)
}

func TestHistorySchema(t *testing.T) {
	stmts := HistorySchema("forecasting", "forecast_history")
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS forecasting", stmts[0])
	assert.Contains(t, stmts[1], "forecasting.forecast_history")
	assert.Contains(t, stmts[1], "forecast Array(Float64)")
}
