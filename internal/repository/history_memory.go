package repository

import (
	"context"
	"sync"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/repository"
)

// MemoryHistoryStore keeps the most recent forecasts in a fixed ring.
type MemoryHistoryStore struct {
	mu    sync.RWMutex
	buf   []*models.ForecastRecord
	next  int
	count int
}

func NewMemoryHistoryStore(size int) repository.HistoryStore {
	if size <= 0 {
		size = 500
	}
	return &MemoryHistoryStore{buf: make([]*models.ForecastRecord, size)}
}

func (s *MemoryHistoryStore) Save(_ context.Context, r *models.ForecastRecord) error {
	cp := *r
	cp.Forecast = append([]float64(nil), r.Forecast...)

	s.mu.Lock()
	s.buf[s.next] = &cp
	s.next = (s.next + 1) % len(s.buf)
	if s.count < len(s.buf) {
		s.count++
	}
	s.mu.Unlock()
	return nil
}

// Recent walks the ring newest first.
func (s *MemoryHistoryStore) Recent(_ context.Context, q models.HistoryQuery) ([]*models.ForecastRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.ForecastRecord, 0, min(q.Limit, s.count))
	for i := 0; i < s.count && len(out) < q.Limit; i++ {
		r := s.buf[(s.next-1-i+len(s.buf))%len(s.buf)]
		if q.Model != "" && r.Model != q.Model && r.Choice != q.Model {
			continue
		}
		if !q.Since.IsZero() && r.CreatedAt.Before(q.Since) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryHistoryStore) Health(context.Context) error { return nil }

func (s *MemoryHistoryStore) Close() error { return nil }
