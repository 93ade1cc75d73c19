package models

import "time"

// UnnamedSeries is the column name reported for direct values input.
const UnnamedSeries = "unnamed_series"

// Series is an ordered run of finite values plus the column it came from.
type Series struct {
	Column string
	Values []float64
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.Values) }

// Last returns the final observation. Callers must check Len first.
func (s Series) Last() float64 { return s.Values[len(s.Values)-1] }

// Pair is one lag-1 training example.
type Pair struct {
	Feature float64
	Label   float64
}

// ForecastResult is what a dispatch produces.
type ForecastResult struct {
	Model      string    `json:"model"`
	Choice     string    `json:"choice"`
	UsedColumn string    `json:"used_column"`
	Forecast   []float64 `json:"forecast"`
}

// ForecastRecord is a stored forecast.
type ForecastRecord struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Source     string    `json:"source"` // http, upload, kafka
	Model      string    `json:"model"`
	Choice     string    `json:"choice"`
	UsedColumn string    `json:"used_column"`
	Steps      int       `json:"steps"`
	Points     int       `json:"points"`
	Forecast   []float64 `json:"forecast"`
	DurationMs int64     `json:"duration_ms"`
	Cached     bool      `json:"cached"`
}

// ForecastEvent is published for every asynchronous or audited forecast.
type ForecastEvent struct {
	RequestID  string    `json:"request_id"`
	Status     string    `json:"status"` // ok or error
	Model      string    `json:"model,omitempty"`
	UsedColumn string    `json:"used_column,omitempty"`
	Forecast   []float64 `json:"forecast,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	EventStatusOK    = "ok"
	EventStatusError = "error"
)

// HistoryQuery filters stored forecasts, newest first.
type HistoryQuery struct {
	Limit int
	Model string
	Since time.Time
}

// ModelInfo describes one selectable strategy.
type ModelInfo struct {
	Choice  string `json:"choice"`
	Label   string `json:"label"`
	Default bool   `json:"default,omitempty"`
}
