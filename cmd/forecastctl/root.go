package main

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/di"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/repository"
	"github.com/TENTURAVITEJA/forecasting-AI/pkg/config"
	xhttp "github.com/TENTURAVITEJA/forecasting-AI/pkg/http"
	applogger "github.com/TENTURAVITEJA/forecasting-AI/pkg/logger"
	"github.com/TENTURAVITEJA/forecasting-AI/pkg/metrics"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	server     string
	output     string
	timeout    time.Duration
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:                "forecastctl",
		Short:              "Forecast a numeric series locally or through a forecast server.",
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableSuggestions: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			switch opts.output {
			case outputTable, outputJSON:
				return nil
			default:
				return fmt.Errorf("unknown output %q, want %s or %s", opts.output, outputTable, outputJSON)
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file for local runs (defaults when empty)")
	pf.StringVar(&opts.server, "server", "", "base URL of a forecast server; runs locally when empty")
	pf.StringVarP(&opts.output, "output", "o", outputTable, "output format: table or json")
	pf.DurationVar(&opts.timeout, "timeout", time.Minute, "overall timeout")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log forecast pipeline events to stderr")

	root.AddCommand(newRunCmd(opts), newModelsCmd(opts))
	return root
}

// backendFor picks the remote backend when --server is set and builds the
// in-process pipeline otherwise.
func (o *rootOptions) backendFor(stderr io.Writer) (backend, error) {
	if o.server != "" {
		return &remoteBackend{
			client: xhttp.NewClient(
				xhttp.WithBaseURL(o.server),
				xhttp.WithTimeout(o.timeout),
				xhttp.WithHeader("User-Agent", "forecastctl"),
				xhttp.WithRetry(2, 250*time.Millisecond),
			),
		}, nil
	}

	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	log := applogger.Nop()
	if o.verbose {
		log = applogger.NewWriter(stderr, "debug")
	}

	uc := di.ProvideForecastUsecase(cfg, di.ProvideDispatcher(cfg), nil,
		repository.NewMemoryHistoryStore(1), nil,
		metrics.NewWithRegistry(prometheus.NewRegistry()), log)
	return &localBackend{uc: uc}, nil
}
