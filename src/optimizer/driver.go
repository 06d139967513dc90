package optimizer

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stratlab/backtest-service/src/backtest"
	"github.com/stratlab/backtest-service/src/indicators"
	"github.com/stratlab/backtest-service/src/models"
)

// Config controls one optimization run. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	Trials         int
	InitialSamples int
	CandidatePool  int
	Seed           int64
	Weights        ObjectiveWeights
}

func DefaultConfig() Config {
	return Config{
		Trials:         50,
		InitialSamples: 10,
		CandidatePool:  64,
		Seed:           42,
		Weights:        DefaultObjectiveWeights(),
	}
}

// Driver runs guided parameter searches as background jobs. Each Start call
// spawns one goroutine that exclusively owns its job's state; the registry
// serves snapshots to pollers.
type Driver struct {
	engine    *backtest.Engine
	evaluator *indicators.Evaluator
	registry  *Registry
	config    Config
}

func NewDriver(engine *backtest.Engine, evaluator *indicators.Evaluator, registry *Registry, config Config) *Driver {
	if config.Trials <= 0 {
		config.Trials = DefaultConfig().Trials
	}
	if config.InitialSamples <= 0 {
		config.InitialSamples = DefaultConfig().InitialSamples
	}
	if config.CandidatePool <= 0 {
		config.CandidatePool = DefaultConfig().CandidatePool
	}
	if config.Weights.IsZero() {
		config.Weights = DefaultObjectiveWeights()
	}

	return &Driver{
		engine:    engine,
		evaluator: evaluator,
		registry:  registry,
		config:    config,
	}
}

func (d *Driver) Registry() *Registry {
	return d.registry
}

// Start creates a job and launches its background search over raw
// (indicator-free) bars. It returns immediately with the job id. When the
// strategy has no tunable parameters, the job is created already Failed and
// the setup error is returned alongside the id.
func (d *Driver) Start(spec models.StrategySpec, bars []models.Bar, baseline *models.BacktestResult) (uuid.UUID, error) {
	jobID := d.registry.Create(spec.ID, baseline)

	space := BuildSpace(spec)
	if len(space) == 0 {
		setupErr := &models.OptimizationSetupError{Reason: "no tunable parameters found in the strategy"}
		d.failJob(jobID, setupErr.Error())
		return jobID, setupErr
	}

	if err := d.registry.WithJob(jobID, func(job *models.OptimizationJob) {
		job.Space = space
	}); err != nil {
		return jobID, err
	}

	go d.run(jobID, spec.Clone(), bars, space, baseline)

	return jobID, nil
}

func (d *Driver) run(jobID uuid.UUID, spec models.StrategySpec, bars []models.Bar, space []models.ParameterDescriptor, baseline *models.BacktestResult) {
	if err := d.registry.WithJob(jobID, func(job *models.OptimizationJob) {
		job.Status = models.JobStatusRunning
	}); err != nil {
		log.Errorf("optimization %s: %v", jobID, err)
		return
	}

	rng := rand.New(rand.NewSource(d.config.Seed))

	var (
		points     [][]float64
		objectives []float64
		bestParams map[string]float64
		best       = math.Inf(1)
	)

	for trial := 0; trial < d.config.Trials; trial++ {
		// the first trial evaluates the strategy as configured, anchoring
		// the search at its current parameters
		var point []float64
		if trial == 0 {
			point = CurrentUnitPoint(space)
		} else {
			point = d.nextPoint(rng, len(space), points, objectives, best)
		}

		values := ValuesFromUnitPoint(space, point)
		iteration := models.Iteration{
			Trial:  trial + 1,
			Params: values,
		}

		summary, err := d.runTrial(spec, space, values, bars, baseline.InitialCapital)
		if err != nil {
			// a failed trial is penalized, never fatal to the search
			log.Warnf("optimization %s trial %d failed: %v", jobID, trial+1, err)
			iteration.Objective = FailedTrialObjective
			iteration.Failed = true
		} else {
			iteration.Returns = summary.Returns
			iteration.WinRate = summary.WinRate
			iteration.MaxDrawdown = summary.MaxDrawdown
			iteration.SharpeRatio = summary.SharpeRatio
			iteration.Objective = d.config.Weights.Score(summary)

			if iteration.Objective < best {
				best = iteration.Objective
				bestParams = copyValues(values)
			}
		}

		points = append(points, point)
		objectives = append(objectives, iteration.Objective)

		progress := int(math.Ceil(float64(trial+1) / float64(d.config.Trials) * 100))
		bestObjective := best

		if err := d.registry.WithJob(jobID, func(job *models.OptimizationJob) {
			job.Iterations = append(job.Iterations, iteration)
			job.Progress = progress
			if bestParams != nil {
				job.BestParams = copyValues(bestParams)
				job.BestObjective = &bestObjective
			}
		}); err != nil {
			log.Errorf("optimization %s: %v", jobID, err)
			return
		}
	}

	if bestParams == nil {
		d.failJob(jobID, "every trial failed; no usable parameters found")
		return
	}

	d.finish(jobID, spec, space, bestParams, bars, baseline)
}

// nextPoint explores uniformly for the first few trials, then exploits the
// surrogate model via expected improvement.
func (d *Driver) nextPoint(rng *rand.Rand, dims int, points [][]float64, objectives []float64, best float64) []float64 {
	if len(points) < d.config.InitialSamples {
		return randomUnitPoint(rng, dims)
	}

	s, err := fitSurrogate(points, objectives)
	if err != nil {
		log.Warnf("surrogate fit failed, falling back to random sampling: %v", err)
		return randomUnitPoint(rng, dims)
	}

	return s.suggest(rng, dims, d.config.CandidatePool, best)
}

func (d *Driver) runTrial(spec models.StrategySpec, space []models.ParameterDescriptor, values map[string]float64, bars []models.Bar, initialCapital float64) (models.BacktestSummary, error) {
	trialSpec, err := Materialize(spec, space, values)
	if err != nil {
		return models.BacktestSummary{}, err
	}

	augmented, err := d.evaluator.Evaluate(bars, trialSpec.IndicatorSetups())
	if err != nil {
		return models.BacktestSummary{}, err
	}

	result, err := d.engine.Run(trialSpec, augmented, initialCapital)
	if err != nil {
		return models.BacktestSummary{}, err
	}

	return result.Summary(), nil
}

// finish re-runs the best parameters to produce the optimized result and
// the baseline comparison, then completes the job.
func (d *Driver) finish(jobID uuid.UUID, spec models.StrategySpec, space []models.ParameterDescriptor, bestParams map[string]float64, bars []models.Bar, baseline *models.BacktestResult) {
	bestSpec, err := Materialize(spec, space, bestParams)
	if err != nil {
		d.failJob(jobID, err.Error())
		return
	}

	augmented, err := d.evaluator.Evaluate(bars, bestSpec.IndicatorSetups())
	if err != nil {
		d.failJob(jobID, err.Error())
		return
	}

	optimized, err := d.engine.Run(bestSpec, augmented, baseline.InitialCapital)
	if err != nil {
		d.failJob(jobID, err.Error())
		return
	}

	baselineSummary := baseline.Summary()
	optimizedSummary := optimized.Summary()

	comparison := &models.ComparisonResult{
		Returns:     optimizedSummary.Returns - baselineSummary.Returns,
		WinRate:     optimizedSummary.WinRate - baselineSummary.WinRate,
		SharpeRatio: optimizedSummary.SharpeRatio - baselineSummary.SharpeRatio,
		// positive means the optimized strategy draws down less
		MaxDrawdown: baselineSummary.MaxDrawdown - optimizedSummary.MaxDrawdown,
	}

	now := time.Now().UTC()
	if err := d.registry.WithJob(jobID, func(job *models.OptimizationJob) {
		job.Status = models.JobStatusCompleted
		job.Optimized = optimized
		job.Comparison = comparison
		job.CompletedAt = &now
	}); err != nil {
		log.Errorf("optimization %s: %v", jobID, err)
		return
	}

	log.Infof("optimization %s completed: returns %+.2f%%, win rate %+.2f, sharpe %+.2f, drawdown improvement %+.2f",
		jobID, comparison.Returns, comparison.WinRate, comparison.SharpeRatio, comparison.MaxDrawdown)
}

func (d *Driver) failJob(jobID uuid.UUID, reason string) {
	now := time.Now().UTC()
	if err := d.registry.WithJob(jobID, func(job *models.OptimizationJob) {
		job.Status = models.JobStatusFailed
		job.Error = reason
		job.CompletedAt = &now
	}); err != nil {
		log.Errorf("optimization %s: %v", jobID, err)
		return
	}

	log.Errorf("optimization %s failed: %s", jobID, reason)
}

func copyValues(values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
