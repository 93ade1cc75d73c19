package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name  string `json:"name" validate:"required,max=8"`
	Steps int    `json:"steps" default:"3" validate:"gte=1,lte=10"`
}

func newContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestReadAndValidateRequestDefaults(t *testing.T) {
	c, _ := newContext(`{"name":"arima"}`)
	var req sampleRequest
	assert.Nil(t, ReadAndValidateRequest(c, &req))
	assert.Equal(t, 3, req.Steps)
}

func TestReadAndValidateRequestErrors(t *testing.T) {
	c, _ := newContext(`{"name":"much-too-long","steps":50}`)
	var req sampleRequest
	err := ReadAndValidateRequest(c, &req)
	errs, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_MAX", errs[0].Code)
	assert.Equal(t, "name", errs[0].Field)
	assert.Equal(t, "name must be at most 8 characters", errs[0].Message)
	assert.Equal(t, "ERR_LTE", errs[1].Code)
	assert.Equal(t, "steps", errs[1].Field)
	assert.Equal(t, "10", errs[1].Params["max"])
	assert.Equal(t, "name must be at most 8 characters (and more)", err.Error())

	c, _ = newContext(`{"name":`)
	errs, ok = ReadAndValidateRequest(c, &req).(ValidationErrors)
	require.True(t, ok)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}

func TestAppErrorResponse(t *testing.T) {
	c, rec := newContext("")
	require.NoError(t, AppErrorResponse(c, NewAppError("ERR_SCHEMA", "values", "bad series", http.StatusBadRequest)))

	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadRequest, body.Status)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_SCHEMA", body.Data[0].Code)
	assert.Equal(t, "values", body.Data[0].Field)

	c, rec = newContext("")
	require.NoError(t, AppErrorResponse(c, errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Something went wrong")
	assert.NotContains(t, rec.Body.String(), "plain")
}

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return SuccessResponse(c, "ok") })
	e.POST("/echo", func(c echo.Context) error {
		var req sampleRequest
		if err := ReadAndValidateRequest(c, &req); err != nil {
			return RequestErrorResponse(c, err)
		}
		return SuccessResponse(c, req)
	})
}

func TestServerRegistersRoutes(t *testing.T) {
	s := NewServer(pingHandler{}, WithPort(0), WithRateLimit(100, 100), WithBodyLimit(1024))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Equal(t, "0.0.0.0:0", s.Addr())
}

func TestServerErrorEnvelope(t *testing.T) {
	s := NewServer(pingHandler{}, WithPort(0))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeNotFound)
	assert.Contains(t, rec.Body.String(), `"status":404`)

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())

	req := httptest.NewRequest(http.MethodOptions, "/healthz", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost)
}

func TestServerBodyLimitWithoutContentLength(t *testing.T) {
	s := NewServer(pingHandler{}, WithPort(0), WithBodyLimit(64))
	body := `{"name":"arima","pad":"` + strings.Repeat("x", 400) + `"}`

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeBodyTooLarge)
	assert.Contains(t, rec.Body.String(), `"status":413`)
	assert.NotContains(t, rec.Body.String(), "ERR_BIND")

	req = httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"name":"arima"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.ContentLength = -1
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadAndValidateRequestBodyTooLarge(t *testing.T) {
	c, rec := newContext(`{"name":"arima-and-then-some"}`)
	c.Request().Body = http.MaxBytesReader(rec, c.Request().Body, 4)

	err := ReadAndValidateRequest(c, &sampleRequest{})
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, CodeBodyTooLarge, appErr.Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, appErr.Status)
}

func TestClientSendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") != "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"echo": in["values"],
			"ct":   r.Header.Get("Content-Type"),
			"ua":   r.Header.Get("User-Agent"),
			"path": r.URL.Path,
		})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL+"/"), WithHeader("User-Agent", "test"))
	var out struct {
		Echo []float64 `json:"echo"`
		CT   string    `json:"ct"`
		UA   string    `json:"ua"`
		Path string    `json:"path"`
	}
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method: MethodPost,
		URL:    "/api/forecast",
		Body:   map[string]any{"values": []float64{1, 2}},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, out.Echo)
	assert.Equal(t, "application/json", out.CT)
	assert.Equal(t, "test", out.UA)
	assert.Equal(t, "/api/forecast", out.Path)

	var body []byte
	err = c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL,
		QueryParams: map[string][]string{"fail": {"1"}},
	}, &body)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, string(se.Body), "nope")
}

func TestClientRetriesWithReplayedBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(b)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(2, time.Millisecond))
	var got []byte
	require.NoError(t, c.SendAndParse(context.Background(), &RequestOptions{
		Method: MethodPost,
		URL:    "/",
		Body:   strings.NewReader("payload"),
	}, &got))
	assert.Equal(t, "payload", string(got))
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	c = NewClient(WithBaseURL(srv.URL), WithRetry(1, time.Millisecond))
	err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: "/"}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}
