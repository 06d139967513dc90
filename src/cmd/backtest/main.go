package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stratlab/backtest-service/src/backtest"
	"github.com/stratlab/backtest-service/src/data"
	"github.com/stratlab/backtest-service/src/indicators"
	"github.com/stratlab/backtest-service/src/models"
)

type RunArgs struct {
	StrategyFile   string
	DataFile       string
	InitialCapital float64
	ShowTrades     bool
}

var runCmd = &cobra.Command{
	Use:   "go run src/cmd/backtest/main.go --strategy strategy.yaml --data NIFTY_50_day.csv",
	Short: "Run a single backtest from a strategy YAML file and an OHLCV CSV file",
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

		showTrades, err := cmd.Flags().GetBool("trades")
		if err != nil {
			log.Fatalf("error getting trades: %v", err)
		}

		result, err := Run(RunArgs{
			StrategyFile:   strategyFile,
			DataFile:       dataFile,
			InitialCapital: capital,
			ShowTrades:     showTrades,
		})

		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		printSummary(result)

		if showTrades {
			printTrades(result)
		}
	},
}

func Run(args RunArgs) (*models.BacktestResult, error) {
	spec, err := loadStrategy(args.StrategyFile)
	if err != nil {
		return nil, err
	}

	bars, err := data.LoadCSVFile(args.DataFile)
	if err != nil {
		return nil, err
	}

	augmented, err := indicators.NewEvaluator().Evaluate(bars, spec.IndicatorSetups())
	if err != nil {
		return nil, err
	}

	return backtest.NewEngine().Run(*spec, augmented, args.InitialCapital)
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

func printSummary(result *models.BacktestResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	table.Append([]string{"Returns", fmt.Sprintf("%.2f%%", result.Returns)})
	table.Append([]string{"Win Rate", fmt.Sprintf("%.2f%%", result.WinRate*100)})
	table.Append([]string{"Max Drawdown", fmt.Sprintf("%.2f%%", result.MaxDrawdown)})
	table.Append([]string{"Sharpe Ratio", fmt.Sprintf("%.2f", result.SharpeRatio)})
	table.Append([]string{"Trades", fmt.Sprintf("%d", result.TradeCount)})
	table.Append([]string{"Final Value", fmt.Sprintf("%.2f", result.FinalValue)})

	table.Render()
}

func printTrades(result *models.BacktestResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Entry", "Exit", "Entry Price", "Exit Price", "Profit %"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, trade := range result.Trades {
		table.Append([]string{
			trade.EntryDate.Format("2006-01-02"),
			trade.ExitDate.Format("2006-01-02"),
			fmt.Sprintf("%.2f", trade.EntryPrice),
			fmt.Sprintf("%.2f", trade.ExitPrice),
			fmt.Sprintf("%.2f", trade.ProfitPct),
		})
	}

	table.Render()
}

func main() {
	runCmd.Flags().String("strategy", "", "Path to a strategy YAML file")
	runCmd.Flags().String("data", "", "Path to an OHLCV CSV file")
	runCmd.Flags().Float64("capital", 100000, "Initial capital")
	runCmd.Flags().Bool("trades", false, "Print the individual trades")

	runCmd.MarkFlagRequired("strategy")
	runCmd.MarkFlagRequired("data")

	runCmd.Execute()
}
