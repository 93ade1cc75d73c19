package main

import (
	"context"
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
	"github.com/TENTURAVITEJA/forecasting-AI/pkg/util"
)

type runOptions struct {
	values string
	file   string
	sheet  string
	column string
	steps  int
	model  string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Forecast a list of values or a column of an Excel workbook.",
		Example: `  forecastctl run --values 112,118,132,129,121,135 --steps 3 --model rf
  forecastctl run --file sales.xlsx --column sales --steps 6
  forecastctl run --server http://localhost:5000 --values 1,2,3,4,5 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (opts.values == "") == (opts.file == "") {
				return errors.New("exactly one of --values or --file is required")
			}
			b, err := root.backendFor(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
			defer cancel()

			var res *models.ForecastResult
			if opts.file != "" {
				res, err = b.Upload(ctx, opts.file, models.UploadForm{
					TargetColumn: opts.column,
					Sheet:        opts.sheet,
					Steps:        strconv.Itoa(opts.steps),
					ModelChoice:  opts.model,
				})
			} else {
				res, err = b.Forecast(ctx, opts.request())
			}
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), root.output, res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.values, "values", "", "comma separated series, oldest first")
	f.StringVarP(&opts.file, "file", "f", "", "Excel workbook to read the series from")
	f.StringVar(&opts.sheet, "sheet", "", "workbook sheet (first sheet when empty)")
	f.StringVarP(&opts.column, "column", "c", "", "workbook column to forecast")
	f.IntVarP(&opts.steps, "steps", "s", 1, "number of future points")
	f.StringVarP(&opts.model, "model", "m", "auto", "model choice: arima, xgboost, rf or auto")
	return cmd
}

// request keeps the values as strings; the validator coerces them the same
// way it coerces JSON strings.
func (o *runOptions) request() *models.ForecastRequest {
	parts := util.SplitList(o.values)
	values := make([]any, len(parts))
	for i, p := range parts {
		values[i] = p
	}
	return &models.ForecastRequest{
		Values:      values,
		Steps:       o.steps,
		ModelChoice: o.model,
	}
}
