package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"market-forecast-lab/internal/forecast"
	"market-forecast-lab/internal/marketdata"
	"market-forecast-lab/internal/orchestrator"
	"market-forecast-lab/internal/regressor"
)

func main() {
	// Parse flags
	assetID := flag.String("asset", "bitcoin", "Asset ID to forecast (CoinGecko coin id)")
	days := flag.Int("days", 30, "Days of price history to fetch")
	lookback := flag.Int("lookback", forecast.DefaultLookback, "Feature window length")
	steps := flag.Int("steps", 0, "Forecast steps (0 derives from history length)")
	trials := flag.Int("trials", 10, "Monte Carlo ensemble trials")
	seed := flag.Int64("seed", 0, "Deterministic model seed (0 = random initialization)")

	// Data source
	baseURL := flag.String("base-url", "", "Market data base URL override")
	apiKey := flag.String("api-key", os.Getenv("COINGECKO_API_KEY"), "Market data API key")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[forecast] ", log.LstdFlags)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Market data source
	var sourceOpts []marketdata.CoinGeckoOption
	if *baseURL != "" {
		sourceOpts = append(sourceOpts, marketdata.WithBaseURL(*baseURL))
	}
	if *apiKey != "" {
		sourceOpts = append(sourceOpts, marketdata.WithAPIKey(*apiKey))
	}
	source := marketdata.NewCoinGecko(sourceOpts...)

	factory := regressor.NewFactory()
	if *seed != 0 {
		factory = regressor.NewSeededFactory(*seed)
	}

	o := orchestrator.New(orchestrator.Options{
		Source:   source,
		Trainer:  forecast.NewTrainer(factory),
		Ensemble: forecast.NewEnsemble(factory),
		AssetID:  *assetID,
		Days:     *days,
		Lookback: *lookback,
		Steps:    *steps,
		Trials:   *trials,
		Logger:   logger,
	})

	logger.Printf("Running forecast: asset=%s days=%d trials=%d", *assetID, *days, *trials)

	result, err := o.RunCycle(ctx)
	if err != nil {
		logger.Fatalf("forecast failed: %v", err)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
	} else {
		printResult(result)
	}
}

// printResult outputs a human-readable forecast summary.
func printResult(r *orchestrator.CycleResult) {
	record := r.Record

	fmt.Println()
	fmt.Println("=== Forecast Result ===")
	fmt.Printf("Record ID:          %s\n", record.RecordID)
	fmt.Printf("Asset:              %s\n", record.AssetID)
	fmt.Printf("Last Price:         %.4f\n", record.LastPrice)
	fmt.Println()

	if r.Stats != nil {
		fmt.Println("Ensemble:")
		fmt.Printf("  Trials:           %d\n", r.Stats.Trials)
		fmt.Printf("  Mean:             %.4f\n", r.Stats.Mean)
		fmt.Printf("  Median:           %.4f\n", r.Stats.Median)
		fmt.Printf("  Std:              %.4f\n", r.Stats.Std)
		fmt.Printf("  Percent Up:       %.0f%%\n", r.Stats.PercentUp*100)
		fmt.Printf("  Avg Accuracy:     %.2f%%\n", r.Stats.AvgAccuracy)
		fmt.Printf("  Suggested:        %s\n", r.Stats.Suggested)
		fmt.Println()
	} else {
		fmt.Println("Ensemble:           unavailable (fallback forecast)")
		fmt.Println()
	}

	fmt.Println("Signal:")
	fmt.Printf("  Action:           %s\n", r.Signal.Action)
	fmt.Printf("  Score:            %.3f\n", r.Signal.Score)
	fmt.Printf("  Multiplier:       %.4f\n", r.Signal.Multiplier)
	if r.Signal.TP != nil {
		fmt.Printf("  Take Profit:      %.4f\n", *r.Signal.TP)
	}
	if r.Signal.SL != nil {
		fmt.Printf("  Stop Loss:        %.4f\n", *r.Signal.SL)
	}
	fmt.Println()

	fmt.Println("Estimate:")
	fmt.Printf("  Final Estimate:   %.4f\n", r.FinalEstimate)
	fmt.Printf("  Base Percent:     %d%%\n", record.BasePercent)
	fmt.Printf("  Adjusted Percent: %d%%\n", record.AdjustedPercent)
	if record.HistoricalMean != nil {
		fmt.Printf("  Historical Mean:  %.4f\n", *record.HistoricalMean)
	}
	if len(r.Forecasts) > 0 {
		fmt.Println()
		fmt.Println("Forecast samples:")
		for i, f := range r.Forecasts {
			fmt.Printf("  %2d: %.4f", i, f)
			if i < len(record.TrialOutcomes) {
				fmt.Printf("  (%s)", record.TrialOutcomes[i].Outcome)
			}
			fmt.Println()
		}
	}
}
