package api

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/services/forecast"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/services/ingest"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/usecase"
	xhttp "github.com/TENTURAVITEJA/forecasting-AI/pkg/http"
	xlogger "github.com/TENTURAVITEJA/forecasting-AI/pkg/logger"
	"github.com/TENTURAVITEJA/forecasting-AI/pkg/util"
)

// ForecastEchoHandler serves the forecast API.
type ForecastEchoHandler struct {
	logger *xlogger.Logger
	uc     *usecase.ForecastUsecase
}

func NewForecastEchoHandler(logger *xlogger.Logger, uc *usecase.ForecastUsecase) *ForecastEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastEchoHandler{logger: logger, uc: uc}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/forecast", h.LegacyForecast)
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/forecast", h.Forecast)
	g.POST("/forecast/upload", h.Upload)
	g.GET("/forecast/history", h.History)
	g.GET("/models", h.Models)
}

// LegacyForecast keeps the original contract: the bare result object on
// success and {"error": msg} on failure.
func (h *ForecastEchoHandler) LegacyForecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		status := http.StatusBadRequest
		var appErr *xhttp.AppError
		if errors.As(verr, &appErr) {
			status = appErr.Status
		}
		return c.JSON(status, map[string]string{"error": verr.Error()})
	}

	res, err := h.run(c, req, usecase.SourceHTTP)
	if err != nil {
		status := http.StatusInternalServerError
		if forecast.IsClientError(err) {
			status = http.StatusBadRequest
		}
		return c.JSON(status, map[string]string{"error": errorMessage(err)})
	}
	if wantsCSV(c) {
		return writeCSV(c, res)
	}
	return c.JSON(http.StatusOK, models.ForecastResponse{
		Model:      res.Model,
		UsedColumn: res.UsedColumn,
		Forecast:   res.Forecast,
	})
}

// Forecast is the enveloped variant of LegacyForecast.
func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.RequestErrorResponse(c, verr)
	}

	res, err := h.run(c, req, usecase.SourceHTTP)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	if wantsCSV(c) {
		return writeCSV(c, res)
	}
	return xhttp.SuccessResponse(c, res)
}

// Upload forecasts a column of an uploaded Excel workbook.
func (h *ForecastEchoHandler) Upload(c echo.Context) error {
	form := &models.UploadForm{}
	if verr := xhttp.ReadAndValidateRequest(c, form); verr != nil {
		return xhttp.RequestErrorResponse(c, verr)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("file is required"))
	}
	f, err := fh.Open()
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("open upload: %v", err))
	}
	defer f.Close()

	tbl, err := ingest.ReadWorkbook(f, form.Sheet)
	if err != nil {
		h.logger.Warn("read workbook", xlogger.String("file", fh.Filename), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError(forecast.CodeSchema, "file", err.Error(), http.StatusBadRequest))
	}
	if tbl.Skipped > 0 {
		h.logger.Debug("workbook rows skipped",
			xlogger.String("file", fh.Filename),
			xlogger.Int("skipped", tbl.Skipped),
		)
	}

	var steps any
	if form.Steps != "" {
		steps = form.Steps
	}
	res, err := h.run(c, tbl.Request(form.TargetColumn, steps, form.ModelChoice), usecase.SourceUpload)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	if wantsCSV(c) {
		return writeCSV(c, res)
	}
	return xhttp.SuccessResponse(c, res)
}

// History lists recent forecasts.
func (h *ForecastEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.RequestErrorResponse(c, verr)
	}
	q := models.HistoryQuery{Limit: req.Limit, Model: req.Model}
	if req.Since != "" {
		since, ok := util.ParseSince(req.Since, time.Now())
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_BAD_REQUEST", "since", "since must be a timestamp, a date or a lookback like 24h or 7d", http.StatusBadRequest))
		}
		q.Since = since
	}

	recs, err := h.uc.History(c.Request().Context(), q)
	if err != nil {
		h.logger.Error("history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("history unavailable").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

func (h *ForecastEchoHandler) Models(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=300")
	return xhttp.SuccessResponse(c, h.uc.Models())
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	status, ok := h.uc.Health(c.Request().Context())
	if !ok {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *ForecastEchoHandler) run(c echo.Context, req *models.ForecastRequest, source string) (*models.ForecastResult, error) {
	id := c.Request().Header.Get(echo.HeaderXRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Response().Header().Set(echo.HeaderXRequestID, id)
	return h.uc.Run(c.Request().Context(), usecase.ForecastInput{
		Request:   req,
		Source:    source,
		RequestID: id,
	})
}

// toAppError maps forecast errors onto HTTP statuses: request problems are
// 400, everything else 500 with the error code kept.
func toAppError(err error) *xhttp.AppError {
	var fe *forecast.Error
	if !errors.As(err, &fe) {
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
	status := http.StatusInternalServerError
	if forecast.IsClientError(err) {
		status = http.StatusBadRequest
	}
	return xhttp.NewAppError(fe.Code, "", errorMessage(err), status)
}

func errorMessage(err error) string {
	var fe *forecast.Error
	if errors.As(err, &fe) {
		return fe.Error()
	}
	return "Something went wrong"
}

func wantsCSV(c echo.Context) bool {
	return c.QueryParam("format") == "csv"
}

// writeCSV renders the download format: one row with the forecast joined
// by semicolons.
func writeCSV(c echo.Context, res *models.ForecastResult) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="forecast.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	w := csv.NewWriter(c.Response())
	_ = w.Write([]string{"Model", "Column", "Steps", "Forecast"})
	_ = w.Write([]string{
		res.Model,
		res.UsedColumn,
		strconv.Itoa(len(res.Forecast)),
		util.JoinFloats(res.Forecast, ";"),
	})
	w.Flush()
	return w.Error()
}
