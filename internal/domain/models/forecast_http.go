package models

// Requests for the forecast HTTP endpoints. Defined in domain for reuse by
// the Kafka consumer and the CLI.

// ForecastRequest accepts either the tabular shape (rows, columns,
// target_column) or the univariate shape (values). Cells are left untyped so
// mixed JSON scalars survive binding and are coerced later.
type ForecastRequest struct {
	Rows         [][]any  `json:"rows,omitempty"`
	Columns      []string `json:"columns,omitempty"`
	TargetColumn *string  `json:"target_column,omitempty"`
	Values       []any    `json:"values,omitempty"`
	Steps        any      `json:"steps,omitempty"`
	ModelChoice  string   `json:"model_choice" default:"auto" validate:"max=32"`
}

// ForecastResponse mirrors the original /forecast response body.
type ForecastResponse struct {
	Model      string    `json:"model"`
	UsedColumn string    `json:"used_column"`
	Forecast   []float64 `json:"forecast"`
}

// HistoryRequest binds the history query string.
type HistoryRequest struct {
	Limit int    `query:"limit" default:"50" validate:"gte=1,lte=1000"`
	Model string `query:"model" validate:"omitempty,max=64"`
	Since string `query:"since"`
}

// UploadForm binds the multipart fields sent next to an Excel workbook.
type UploadForm struct {
	TargetColumn string `form:"target_column"`
	Sheet        string `form:"sheet"`
	Steps        string `form:"steps"`
	ModelChoice  string `form:"model_choice" default:"auto" validate:"max=32"`
}
