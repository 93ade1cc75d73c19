package forecast

import (
	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/service"
	"github.com/TENTURAVITEJA/forecasting-AI/pkg/ensemble"
)

const (
	ChoiceAuto    = "auto"
	ChoiceARIMA   = "arima"
	ChoiceXGBoost = "xgboost"
	ChoiceRF      = "rf"
)

// StrategyFactory builds a fresh strategy for one request.
type StrategyFactory func() service.Strategy

// Settings carries the model knobs exposed through configuration.
type Settings struct {
	ARIMAMaxIterations int

	ForestTrees          int
	ForestMaxDepth       int
	ForestMinSamplesLeaf int
	Seed                 uint64

	BoostRounds       int
	BoostLearningRate float64
	BoostMaxDepth     int
	BoostLambda       float64
}

func DefaultSettings() Settings {
	return Settings{
		ARIMAMaxIterations:   1000,
		ForestTrees:          100,
		ForestMinSamplesLeaf: 1,
		Seed:                 42,
		BoostRounds:          100,
		BoostLearningRate:    0.3,
		BoostMaxDepth:        6,
		BoostLambda:          1,
	}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithStrategy registers or replaces the factory for an exact choice.
func WithStrategy(choice string, f StrategyFactory) DispatcherOption {
	return func(d *Dispatcher) {
		if _, ok := d.table[choice]; !ok {
			d.order = append(d.order, choice)
		}
		d.table[choice] = f
	}
}

// Dispatcher maps a model choice to a strategy by exact match. Anything not
// in the table, "auto" included, falls back to ARIMA; "auto" performs no
// model selection.
type Dispatcher struct {
	table    map[string]StrategyFactory
	order    []string
	fallback string
}

func NewDispatcher(s Settings, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		table: map[string]StrategyFactory{
			ChoiceARIMA: func() service.Strategy {
				return NewARIMAStrategy(s.ARIMAMaxIterations)
			},
			ChoiceXGBoost: func() service.Strategy {
				return NewRecursiveStrategy(BoostingLabel, func() service.Regressor {
					return ensemble.NewGradientBoosting(
						ensemble.WithRounds(s.BoostRounds),
						ensemble.WithLearningRate(s.BoostLearningRate),
						ensemble.WithBoostDepth(s.BoostMaxDepth),
						ensemble.WithLambda(s.BoostLambda),
					)
				})
			},
			ChoiceRF: func() service.Strategy {
				return NewRecursiveStrategy(ForestLabel, func() service.Regressor {
					return ensemble.NewRandomForest(
						ensemble.WithTrees(s.ForestTrees),
						ensemble.WithForestDepth(s.ForestMaxDepth),
						ensemble.WithForestLeaf(2, s.ForestMinSamplesLeaf),
						ensemble.WithSeed(s.Seed),
					)
				})
			},
		},
		order:    []string{ChoiceARIMA, ChoiceXGBoost, ChoiceRF},
		fallback: ChoiceARIMA,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolve returns the table key that serves choice.
func (d *Dispatcher) Resolve(choice string) string {
	if _, ok := d.table[choice]; ok {
		return choice
	}
	return d.fallback
}

// Strategy builds a new strategy instance for choice.
func (d *Dispatcher) Strategy(choice string) service.Strategy {
	return d.table[d.Resolve(choice)]()
}

// Dispatch runs the strategy selected by choice on series.
func (d *Dispatcher) Dispatch(series models.Series, steps int, choice string) (*models.ForecastResult, error) {
	resolved := d.Resolve(choice)
	strategy := d.table[resolved]()
	out, err := strategy.Predict(series, steps)
	if err != nil {
		return nil, err
	}
	return &models.ForecastResult{
		Model:      strategy.Label(),
		Choice:     resolved,
		UsedColumn: series.Column,
		Forecast:   out,
	}, nil
}

// Forecast validates req and dispatches it.
func (d *Dispatcher) Forecast(req *models.ForecastRequest) (*models.ForecastResult, error) {
	series, err := Validate(req)
	if err != nil {
		return nil, err
	}
	steps, err := ParseSteps(req.Steps)
	if err != nil {
		return nil, err
	}
	return d.Dispatch(series, steps, req.ModelChoice)
}

// Models lists the selectable choices in registration order, followed by
// "auto".
func (d *Dispatcher) Models() []models.ModelInfo {
	out := make([]models.ModelInfo, 0, len(d.order)+1)
	for _, choice := range d.order {
		out = append(out, models.ModelInfo{Choice: choice, Label: d.table[choice]().Label()})
	}
	out = append(out, models.ModelInfo{
		Choice:  ChoiceAuto,
		Label:   d.table[d.fallback]().Label(),
		Default: true,
	})
	return out
}
