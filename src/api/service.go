package api

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stratlab/backtest-service/src/backtest"
	"github.com/stratlab/backtest-service/src/data"
	"github.com/stratlab/backtest-service/src/indicators"
	"github.com/stratlab/backtest-service/src/models"
	"github.com/stratlab/backtest-service/src/optimizer"
	"github.com/stratlab/backtest-service/src/store"
)

const defaultInitialCapital = 100000.0

// Service wires the simulation engine, indicator evaluator, optimizer and
// persistence together behind the HTTP handlers.
type Service struct {
	store     *store.FileStore
	provider  data.Provider
	engine    *backtest.Engine
	evaluator *indicators.Evaluator
	registry  *optimizer.Registry
}

func NewService(st *store.FileStore, provider data.Provider) *Service {
	return &Service{
		store:     st,
		provider:  provider,
		engine:    backtest.NewEngine(),
		evaluator: indicators.NewEvaluator(),
		registry:  optimizer.NewRegistry(),
	}
}

func (s *Service) CreateStrategy(spec *models.StrategySpec) (*models.StrategySpec, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if spec.ID == uuid.Nil {
		spec.ID = uuid.New()
	}

	now := time.Now().UTC()
	spec.CreatedAt = now
	spec.UpdatedAt = now

	if err := s.store.SaveStrategy(spec); err != nil {
		return nil, err
	}

	log.Infof("created strategy %s (%s)", spec.ID, spec.Name)
	return spec, nil
}

func (s *Service) GetStrategy(id uuid.UUID) (*models.StrategySpec, error) {
	return s.store.GetStrategy(id)
}

func (s *Service) ListStrategies() ([]*models.StrategySpec, error) {
	return s.store.ListStrategies()
}

func (s *Service) DeleteStrategy(id uuid.UUID) error {
	return s.store.DeleteStrategy(id)
}

// resolveSpec returns either the referenced saved strategy or the inline
// one, validated.
func (s *Service) resolveSpec(strategyID *uuid.UUID, inline *models.StrategySpec) (*models.StrategySpec, error) {
	if strategyID != nil {
		return s.store.GetStrategy(*strategyID)
	}

	if inline == nil {
		return nil, models.NewValidationError("either strategy_id or an inline strategy is required")
	}

	if err := inline.Validate(); err != nil {
		return nil, err
	}

	return inline, nil
}

func (s *Service) loadBars(ctx context.Context, spec *models.StrategySpec, start, end time.Time) ([]models.Bar, error) {
	bars, err := s.provider.GetBars(ctx, spec.Symbol, spec.Timeframe, start, end)
	if err != nil {
		return nil, err
	}

	return bars, nil
}

// RunBacktest executes one simulation over the requested range: fetch bars,
// compute the spec's indicators, run the engine.
func (s *Service) RunBacktest(ctx context.Context, strategyID *uuid.UUID, inline *models.StrategySpec, start, end time.Time, initialCapital float64) (*models.BacktestResult, error) {
	spec, err := s.resolveSpec(strategyID, inline)
	if err != nil {
		return nil, err
	}

	if initialCapital <= 0 {
		initialCapital = defaultInitialCapital
	}

	bars, err := s.loadBars(ctx, spec, start, end)
	if err != nil {
		return nil, err
	}

	augmented, err := s.evaluator.Evaluate(bars, spec.IndicatorSetups())
	if err != nil {
		return nil, err
	}

	return s.engine.Run(*spec, augmented, initialCapital)
}

// StartOptimization runs a baseline backtest, then launches the trial loop
// in the background and returns the job id immediately.
func (s *Service) StartOptimization(ctx context.Context, strategyID uuid.UUID, start, end time.Time, initialCapital float64, config optimizer.Config) (uuid.UUID, error) {
	spec, err := s.store.GetStrategy(strategyID)
	if err != nil {
		return uuid.Nil, err
	}

	if initialCapital <= 0 {
		initialCapital = defaultInitialCapital
	}

	bars, err := s.loadBars(ctx, spec, start, end)
	if err != nil {
		return uuid.Nil, err
	}

	augmented, err := s.evaluator.Evaluate(bars, spec.IndicatorSetups())
	if err != nil {
		return uuid.Nil, err
	}

	baseline, err := s.engine.Run(*spec, augmented, initialCapital)
	if err != nil {
		return uuid.Nil, err
	}

	driver := optimizer.NewDriver(s.engine, s.evaluator, s.registry, config)
	return driver.Start(*spec, bars, baseline)
}

func (s *Service) GetOptimization(id uuid.UUID) (models.OptimizationJob, error) {
	job, err := s.registry.Snapshot(id)
	if err == nil {
		return job, nil
	}

	// fall back to a persisted snapshot from a previous process
	saved, storeErr := s.store.GetOptimization(id)
	if storeErr != nil {
		return models.OptimizationJob{}, err
	}

	return *saved, nil
}

func (s *Service) ListOptimizations() []uuid.UUID {
	return s.registry.IDs()
}

// SaveOptimization persists the job snapshot and, when the job completed
// with a best candidate, materializes it into a new saved strategy.
func (s *Service) SaveOptimization(id uuid.UUID) (*models.StrategySpec, error) {
	job, err := s.GetOptimization(id)
	if err != nil {
		return nil, err
	}

	if job.Status != models.JobStatusCompleted {
		return nil, models.NewValidationError(fmt.Sprintf("optimization %s is %s, only completed jobs can be saved", id, job.Status))
	}

	if len(job.BestParams) == 0 {
		return nil, models.NewValidationError(fmt.Sprintf("optimization %s has no best parameters", id))
	}

	if err := s.store.SaveOptimization(&job); err != nil {
		return nil, err
	}

	spec, err := s.store.GetStrategy(job.StrategyID)
	if err != nil {
		return nil, err
	}

	optimized, err := optimizer.Materialize(*spec, job.Space, job.BestParams)
	if err != nil {
		return nil, err
	}

	optimized.ID = uuid.New()
	optimized.Name = spec.Name + " (optimized)"

	return s.CreateStrategy(&optimized)
}
