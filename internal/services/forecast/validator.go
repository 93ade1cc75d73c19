package forecast

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
)

const (
	MinTabularPoints = 10
	MinValuesPoints  = 5
	DefaultSteps     = 1
)

// Validate turns a raw request into a numeric series. The tabular shape is
// used only when rows, columns and target_column are all present; otherwise
// values is used.
func Validate(req *models.ForecastRequest) (models.Series, error) {
	if req == nil {
		return models.Series{}, schemaErrorf("empty request")
	}
	switch {
	case req.Rows != nil && req.Columns != nil && req.TargetColumn != nil:
		return validateTabular(req.Rows, req.Columns, *req.TargetColumn)
	case req.Values != nil:
		return validateValues(req.Values)
	default:
		return models.Series{}, schemaErrorf("request must contain either rows, columns and target_column or values")
	}
}

func validateTabular(rows [][]any, columns []string, target string) (models.Series, error) {
	col := -1
	for i, name := range columns {
		if name != target {
			continue
		}
		if col >= 0 {
			return models.Series{}, schemaErrorf("target column %q appears more than once in columns", target)
		}
		col = i
	}
	if col < 0 {
		return models.Series{}, schemaErrorf("target column %q not found in columns", target)
	}

	values := make([]float64, 0, len(rows))
	for i, row := range rows {
		if len(row) > len(columns) {
			return models.Series{}, schemaErrorf("row %d has %d cells but only %d columns", i, len(row), len(columns))
		}
		if col >= len(row) {
			continue
		}
		if v, ok := coerce(row[col]); ok {
			values = append(values, v)
		}
	}
	if len(values) < MinTabularPoints {
		return models.Series{}, insufficientDataErrorf("target column %q has %d numeric values, need at least %d", target, len(values), MinTabularPoints)
	}
	return models.Series{Column: target, Values: values}, nil
}

func validateValues(raw []any) (models.Series, error) {
	values := make([]float64, 0, len(raw))
	for _, cell := range raw {
		if v, ok := coerce(cell); ok {
			values = append(values, v)
		}
	}
	if len(values) < MinValuesPoints {
		return models.Series{}, insufficientDataErrorf("values has %d numeric entries, need at least %d", len(values), MinValuesPoints)
	}
	return models.Series{Column: models.UnnamedSeries, Values: values}, nil
}

// coerce converts one cell to a finite float. Booleans, nulls and nested
// values are not numeric.
func coerce(cell any) (float64, bool) {
	var f float64
	switch v := cell.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(v)
		if s == "" || !plainNumber(s) {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// plainNumber rejects syntax strconv accepts but ordinary decimal text does
// not carry: digit separators and hex mantissas.
func plainNumber(s string) bool {
	if strings.ContainsRune(s, '_') {
		return false
	}
	unsigned := strings.TrimLeft(s, "+-")
	return !strings.HasPrefix(unsigned, "0x") && !strings.HasPrefix(unsigned, "0X")
}

// ParseSteps reads the forecast horizon. Absent means 1. Integral numbers and
// numeric strings are accepted; anything else, or a value below 1, is a
// schema error.
func ParseSteps(raw any) (int, error) {
	if raw == nil {
		return DefaultSteps, nil
	}
	f, ok := coerce(raw)
	if !ok || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, schemaErrorf("steps must be a positive integer, got %v", raw)
	}
	if f < 1 {
		return 0, schemaErrorf("steps must be at least 1, got %v", raw)
	}
	return int(f), nil
}
