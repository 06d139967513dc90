package optimizer

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratlab/backtest-service/src/backtest"
	"github.com/stratlab/backtest-service/src/indicators"
	"github.com/stratlab/backtest-service/src/models"
)

func trendBars(n int) []models.Bar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100.0 + float64(i)
		bars[i] = models.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func breakoutSpec() models.StrategySpec {
	return models.StrategySpec{
		ID:        uuid.New(),
		Name:      "close breakout",
		Direction: models.DirectionLong,
		Symbol:    "NIFTY 50",
		Timeframe: "day",
		EntryConditions: models.ConditionList{
			models.Comparison{Variable: "close", Operator: models.OperatorGreaterThan, Threshold: 120},
		},
		TargetProfitPct: 5,
	}
}

func runOptimization(t *testing.T, spec models.StrategySpec, bars []models.Bar, config Config) (models.OptimizationJob, *Registry) {
	t.Helper()

	engine := backtest.NewEngine()
	evaluator := indicators.NewEvaluator()

	augmented, err := evaluator.Evaluate(bars, spec.IndicatorSetups())
	require.NoError(t, err)

	baseline, err := engine.Run(spec, augmented, 100000)
	require.NoError(t, err)

	driver := NewDriver(engine, evaluator, NewRegistry(), config)

	jobID, err := driver.Start(spec, bars, baseline)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, err := driver.Registry().Snapshot(jobID)
		return err == nil && job.Status.IsTerminal()
	}, 10*time.Second, 10*time.Millisecond)

	job, err := driver.Registry().Snapshot(jobID)
	require.NoError(t, err)
	return job, driver.Registry()
}

func TestDriver(t *testing.T) {
	config := Config{Trials: 15, InitialSamples: 5, CandidatePool: 16, Seed: 42}

	t.Run("completes with a best candidate and full history", func(t *testing.T) {
		job, _ := runOptimization(t, breakoutSpec(), trendBars(80), config)

		assert.Equal(t, models.JobStatusCompleted, job.Status)
		assert.Equal(t, 100, job.Progress)
		require.Len(t, job.Iterations, config.Trials)

		require.NotNil(t, job.BestObjective)
		require.NotEmpty(t, job.BestParams)
		require.NotNil(t, job.Optimized)
		require.NotNil(t, job.Comparison)
		require.NotNil(t, job.CompletedAt)

		// the reported best must be the minimum over successful trials
		bestSeen := job.Iterations[0].Objective
		for i, iter := range job.Iterations {
			assert.Equal(t, i+1, iter.Trial)
			if !iter.Failed && iter.Objective < bestSeen {
				bestSeen = iter.Objective
			}
		}
		assert.Equal(t, bestSeen, *job.BestObjective)
	})

	t.Run("best parameters reproduce the best trial metrics", func(t *testing.T) {
		spec := breakoutSpec()
		bars := trendBars(80)
		job, _ := runOptimization(t, spec, bars, config)

		var bestIter *models.Iteration
		for i := range job.Iterations {
			if job.Iterations[i].Objective == *job.BestObjective {
				bestIter = &job.Iterations[i]
				break
			}
		}
		require.NotNil(t, bestIter)

		assert.Equal(t, bestIter.Returns, job.Optimized.Returns)
		assert.Equal(t, bestIter.WinRate, job.Optimized.WinRate)
		assert.Equal(t, bestIter.MaxDrawdown, job.Optimized.MaxDrawdown)
		assert.Equal(t, bestIter.SharpeRatio, job.Optimized.SharpeRatio)
	})

	t.Run("comparison holds baseline deltas with drawdown sign flipped", func(t *testing.T) {
		job, _ := runOptimization(t, breakoutSpec(), trendBars(80), config)

		require.NotNil(t, job.Comparison)
		require.NotNil(t, job.Baseline)
		require.NotNil(t, job.Optimized)

		var expected models.ComparisonResult
		expected.Returns = job.Optimized.Returns - job.Baseline.Returns
		expected.WinRate = job.Optimized.WinRate - job.Baseline.WinRate
		expected.SharpeRatio = job.Optimized.SharpeRatio - job.Baseline.SharpeRatio
		expected.MaxDrawdown = job.Baseline.MaxDrawdown - job.Optimized.MaxDrawdown

		assert.Equal(t, expected, *job.Comparison)
	})

	t.Run("first trial evaluates the current configuration", func(t *testing.T) {
		spec := breakoutSpec()
		job, _ := runOptimization(t, spec, trendBars(80), config)

		space := BuildSpace(spec)

		require.NotEmpty(t, job.Iterations)
		first := job.Iterations[0]
		for _, d := range space {
			assert.InDelta(t, d.Clamp(d.Current), first.Params[d.Name], 1e-9, d.Name)
		}
	})

	t.Run("same seed produces the same search", func(t *testing.T) {
		first, _ := runOptimization(t, breakoutSpec(), trendBars(80), config)
		second, _ := runOptimization(t, breakoutSpec(), trendBars(80), config)

		require.Len(t, second.Iterations, len(first.Iterations))
		for i := range first.Iterations {
			assert.Equal(t, first.Iterations[i].Params, second.Iterations[i].Params)
			assert.Equal(t, first.Iterations[i].Objective, second.Iterations[i].Objective)
		}

		assert.Equal(t, first.BestParams, second.BestParams)
	})

	t.Run("stored params are already clamped", func(t *testing.T) {
		job, _ := runOptimization(t, breakoutSpec(), trendBars(80), config)

		for _, iter := range job.Iterations {
			for _, d := range job.Space {
				value := iter.Params[d.Name]
				assert.Equal(t, d.Clamp(value), value)
			}
		}
	})

	t.Run("strategy without tunables fails immediately", func(t *testing.T) {
		spec := breakoutSpec()
		spec.EntryConditions = models.ConditionList{
			models.Comparison{Variable: "close", Operator: models.OperatorGreaterThan, Threshold: 0},
		}
		spec.TargetProfitPct = 0

		bars := trendBars(80)
		engine := backtest.NewEngine()
		evaluator := indicators.NewEvaluator()

		baseline, err := engine.Run(spec, bars, 100000)
		require.NoError(t, err)

		registry := NewRegistry()
		driver := NewDriver(engine, evaluator, registry, config)

		jobID, err := driver.Start(spec, bars, baseline)
		require.Error(t, err)

		var setupErr *models.OptimizationSetupError
		assert.True(t, errors.As(err, &setupErr))

		job, err := registry.Snapshot(jobID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusFailed, job.Status)
		assert.NotEmpty(t, job.Error)
	})
}

func TestRegistry(t *testing.T) {
	t.Run("unknown id is a not found error", func(t *testing.T) {
		registry := NewRegistry()

		_, err := registry.Snapshot(uuid.New())
		require.Error(t, err)

		var notFoundErr *models.NotFoundError
		assert.True(t, errors.As(err, &notFoundErr))

		assert.Error(t, registry.WithJob(uuid.New(), func(job *models.OptimizationJob) {}))
	})

	t.Run("snapshots are isolated from later mutations", func(t *testing.T) {
		registry := NewRegistry()
		id := registry.Create(uuid.New(), nil)

		require.NoError(t, registry.WithJob(id, func(job *models.OptimizationJob) {
			job.Status = models.JobStatusRunning
			job.Iterations = append(job.Iterations, models.Iteration{Trial: 1, Params: map[string]float64{"x": 1}})
		}))

		snapshot, err := registry.Snapshot(id)
		require.NoError(t, err)

		// mutating the snapshot must not leak into the registry
		snapshot.Iterations[0].Params["x"] = 99
		snapshot.Iterations = append(snapshot.Iterations, models.Iteration{Trial: 2})

		fresh, err := registry.Snapshot(id)
		require.NoError(t, err)
		require.Len(t, fresh.Iterations, 1)
		assert.Equal(t, 1.0, fresh.Iterations[0].Params["x"])
	})

	t.Run("progress is pinned below 100 until completion", func(t *testing.T) {
		registry := NewRegistry()
		id := registry.Create(uuid.New(), nil)

		require.NoError(t, registry.WithJob(id, func(job *models.OptimizationJob) {
			job.Status = models.JobStatusRunning
			job.Progress = 150
		}))

		job, err := registry.Snapshot(id)
		require.NoError(t, err)
		assert.Equal(t, 99, job.Progress)

		require.NoError(t, registry.WithJob(id, func(job *models.OptimizationJob) {
			job.Status = models.JobStatusCompleted
		}))

		job, err = registry.Snapshot(id)
		require.NoError(t, err)
		assert.Equal(t, 100, job.Progress)
	})

	t.Run("lists every created job", func(t *testing.T) {
		registry := NewRegistry()
		first := registry.Create(uuid.New(), nil)
		second := registry.Create(uuid.New(), nil)

		ids := registry.IDs()
		assert.ElementsMatch(t, []uuid.UUID{first, second}, ids)
	})
}
