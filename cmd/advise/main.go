package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"market-forecast-lab/internal/advisor"
	pgstore "market-forecast-lab/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (required)")
	limit := flag.Int("limit", advisor.DefaultHistoryLimit, "Prediction records to consider")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	logger := log.New(os.Stderr, "[advise] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	a := advisor.New(advisor.Options{
		Records: pgstore.NewPredictionRecordStore(pool),
		Limit:   *limit,
		Logger:  logger,
	})

	advice, err := a.Advise(ctx)
	if err != nil {
		if errors.Is(err, advisor.ErrNoHistory) {
			logger.Fatal("no prediction history to advise from")
		}
		logger.Fatalf("advise failed: %v", err)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(advice, "", "  ")
		fmt.Println(string(output))
		return
	}

	fmt.Println()
	fmt.Println("=== Advice ===")
	if !advice.Granted {
		fmt.Println("Declined.")
		fmt.Printf("Reason:            %s\n", advice.Reason)
		return
	}
	fmt.Printf("Action:            %s\n", advice.Action)
	if advice.TP != nil {
		fmt.Printf("Take Profit:       %.4f\n", *advice.TP)
	}
	if advice.SL != nil {
		fmt.Printf("Stop Loss:         %.4f\n", *advice.SL)
	}
	fmt.Printf("Mean Accuracy:     %.2f%%\n", advice.MeanAccuracy)
	fmt.Printf("From Record:       %s\n", advice.RecordID)
}
