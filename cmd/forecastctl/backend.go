package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/services/ingest"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/usecase"
	xhttp "github.com/TENTURAVITEJA/forecasting-AI/pkg/http"
)

type backend interface {
	Forecast(ctx context.Context, req *models.ForecastRequest) (*models.ForecastResult, error)
	Upload(ctx context.Context, path string, form models.UploadForm) (*models.ForecastResult, error)
	Models(ctx context.Context) ([]models.ModelInfo, error)
}

type localBackend struct {
	uc *usecase.ForecastUsecase
}

func (b *localBackend) Forecast(ctx context.Context, req *models.ForecastRequest) (*models.ForecastResult, error) {
	return b.uc.Run(ctx, usecase.ForecastInput{
		Request:   req,
		Source:    usecase.SourceCLI,
		RequestID: uuid.NewString(),
	})
}

func (b *localBackend) Upload(ctx context.Context, path string, form models.UploadForm) (*models.ForecastResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tbl, err := ingest.ReadWorkbook(f, form.Sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var steps any
	if form.Steps != "" {
		steps = form.Steps
	}
	return b.Forecast(ctx, tbl.Request(form.TargetColumn, steps, form.ModelChoice))
}

func (b *localBackend) Models(context.Context) ([]models.ModelInfo, error) {
	return b.uc.Models(), nil
}

// remoteBackend talks to the enveloped /api routes of a running server.
type remoteBackend struct {
	client *xhttp.Client
}

type envelope[T any] struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func (b *remoteBackend) Forecast(ctx context.Context, req *models.ForecastRequest) (*models.ForecastResult, error) {
	var env envelope[*models.ForecastResult]
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    "/api/forecast",
		Body:   req,
	}, &env)
	if err != nil {
		return nil, remoteError(err)
	}
	return env.Data, nil
}

func (b *remoteBackend) Upload(ctx context.Context, path string, form models.UploadForm) (*models.ForecastResult, error) {
	body, contentType, err := multipartBody(path, form)
	if err != nil {
		return nil, err
	}
	var env envelope[*models.ForecastResult]
	err = b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     "/api/forecast/upload",
		Headers: map[string]string{"Content-Type": contentType},
		Body:    body,
	}, &env)
	if err != nil {
		return nil, remoteError(err)
	}
	return env.Data, nil
}

func (b *remoteBackend) Models(ctx context.Context) ([]models.ModelInfo, error) {
	var env envelope[[]models.ModelInfo]
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    "/api/models",
	}, &env)
	if err != nil {
		return nil, remoteError(err)
	}
	return env.Data, nil
}

func multipartBody(path string, form models.UploadForm) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", err
	}
	fields := map[string]string{
		"target_column": form.TargetColumn,
		"sheet":         form.Sheet,
		"steps":         form.Steps,
		"model_choice":  form.ModelChoice,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body, mw.FormDataContentType(), nil
}

// remoteError surfaces the first AppError of an error envelope.
func remoteError(err error) error {
	var se *xhttp.StatusError
	if !errors.As(err, &se) {
		return err
	}
	var env envelope[[]xhttp.AppError]
	if json.Unmarshal(se.Body, &env) == nil && len(env.Data) > 0 {
		e := env.Data[0]
		return fmt.Errorf("server returned %d: %s: %s", se.StatusCode, e.Code, e.Message)
	}
	return err
}
