package main

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult renders one row per forecast step.
func printResult(w io.Writer, output string, res *models.ForecastResult) error {
	if output == outputJSON {
		return writeJSON(w, res)
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Step", "Forecast", "Model", "Column"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(res.Forecast))
	for i, v := range res.Forecast {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(v, 'f', 4, 64),
			res.Model,
			res.UsedColumn,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func printModels(w io.Writer, output string, ms []models.ModelInfo) error {
	if output == outputJSON {
		return writeJSON(w, ms)
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Choice", "Model", "Default"})
	data := make([][]string, 0, len(ms))
	for _, m := range ms {
		def := ""
		if m.Default {
			def = "yes"
		}
		data = append(data, []string{m.Choice, m.Label, def})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
