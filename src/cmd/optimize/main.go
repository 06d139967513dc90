package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stratlab/backtest-service/src/backtest"
	"github.com/stratlab/backtest-service/src/data"
	"github.com/stratlab/backtest-service/src/indicators"
	"github.com/stratlab/backtest-service/src/models"
	"github.com/stratlab/backtest-service/src/optimizer"
)

type RunArgs struct {
	StrategyFile   string
	DataFile       string
	InitialCapital float64
	Trials         int
}

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/optimize/main.go --strategy strategy.yaml --data NIFTY_50_day.csv --trials 50",
	Short: "Optimize a strategy's tunable parameters against an OHLCV CSV file",
	Run: func(cmd *cobra.Command, args []string) {
		strategyFile, err := cmd.Flags().GetString("strategy")
		if err != nil {
			log.Fatalf("error getting strategy: %v", err)
		}

		dataFile, err := cmd.Flags().GetString("data")
		if err != nil {
			log.Fatalf("error getting data: %v", err)
		}

		capital, err := cmd.Flags().GetFloat64("capital")
		if err != nil {
			log.Fatalf("error getting capital: %v", err)
		}

		trials, err := cmd.Flags().GetInt("trials")
		if err != nil {
			log.Fatalf("error getting trials: %v", err)
		}

		job, err := Run(RunArgs{
			StrategyFile:   strategyFile,
			DataFile:       dataFile,
			InitialCapital: capital,
			Trials:         trials,
		})

		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		printComparison(job)
		printBestParams(job)
	},
}

func Run(args RunArgs) (*models.OptimizationJob, error) {
	spec, err := loadStrategy(args.StrategyFile)
	if err != nil {
		return nil, err
	}

	bars, err := data.LoadCSVFile(args.DataFile)
	if err != nil {
		return nil, err
	}

	engine := backtest.NewEngine()
	evaluator := indicators.NewEvaluator()

	augmented, err := evaluator.Evaluate(bars, spec.IndicatorSetups())
	if err != nil {
		return nil, err
	}

	baseline, err := engine.Run(*spec, augmented, args.InitialCapital)
	if err != nil {
		return nil, err
	}

	config := optimizer.DefaultConfig()
	if args.Trials > 0 {
		config.Trials = args.Trials
	}

	driver := optimizer.NewDriver(engine, evaluator, optimizer.NewRegistry(), config)

	jobID, err := driver.Start(*spec, bars, baseline)
	if err != nil {
		return nil, err
	}

	// the driver runs trials in the background; poll until it finishes
	lastProgress := -1
	for {
		job, err := driver.Registry().Snapshot(jobID)
		if err != nil {
			return nil, err
		}

		if job.Progress != lastProgress {
			log.Infof("optimization %d%% complete (%d trials)", job.Progress, len(job.Iterations))
			lastProgress = job.Progress
		}

		if job.Status.IsTerminal() {
			if job.Status == models.JobStatusFailed {
				return nil, fmt.Errorf("optimization failed: %s", job.Error)
			}

			return &job, nil
		}

		time.Sleep(250 * time.Millisecond)
	}
}

func loadStrategy(path string) (*models.StrategySpec, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategy file %s: %w", path, err)
	}

	var spec models.StrategySpec
	if err := yaml.Unmarshal(payload, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse strategy file %s: %w", path, err)
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	return &spec, nil
}

func printComparison(job *models.OptimizationJob) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Baseline", "Optimized", "Delta"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	b := job.Baseline.Summary()
	o := job.Optimized.Summary()
	c := job.Comparison

	table.Append([]string{"Returns", fmt.Sprintf("%.2f%%", b.Returns), fmt.Sprintf("%.2f%%", o.Returns), fmt.Sprintf("%+.2f", c.Returns)})
	table.Append([]string{"Win Rate", fmt.Sprintf("%.2f%%", b.WinRate*100), fmt.Sprintf("%.2f%%", o.WinRate*100), fmt.Sprintf("%+.2f", c.WinRate)})
	table.Append([]string{"Max Drawdown", fmt.Sprintf("%.2f%%", b.MaxDrawdown), fmt.Sprintf("%.2f%%", o.MaxDrawdown), fmt.Sprintf("%+.2f", c.MaxDrawdown)})
	table.Append([]string{"Sharpe Ratio", fmt.Sprintf("%.2f", b.SharpeRatio), fmt.Sprintf("%.2f", o.SharpeRatio), fmt.Sprintf("%+.2f", c.SharpeRatio)})

	table.Render()
}

func printBestParams(job *models.OptimizationJob) {
	names := make([]string, 0, len(job.BestParams))
	for name := range job.BestParams {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Parameter", "Best Value"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, name := range names {
		table.Append([]string{name, fmt.Sprintf("%g", job.BestParams[name])})
	}

	table.Render()
}

func main() {
	runCmd.Flags().String("strategy", "", "Path to a strategy YAML file")
	runCmd.Flags().String("data", "", "Path to an OHLCV CSV file")
	runCmd.Flags().Float64("capital", 100000, "Initial capital")
	runCmd.Flags().Int("trials", 0, "Number of optimization trials (default 50)")

	runCmd.MarkFlagRequired("strategy")
	runCmd.MarkFlagRequired("data")

	runCmd.Execute()
}
