package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"market-forecast-lab/internal/domain"
	"market-forecast-lab/internal/storage"
	pgstore "market-forecast-lab/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string (required)")
	recordID := flag.String("record-id", "", "Show one record with its session events")
	limit := flag.Int("limit", 20, "Recent records to list")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	logger := log.New(os.Stderr, "[records] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	records := pgstore.NewPredictionRecordStore(pool)
	events := pgstore.NewSessionEventStore(pool)

	if *recordID != "" {
		showRecord(ctx, logger, records, events, *recordID, *outputJSON)
		return
	}

	recent, err := records.GetRecent(ctx, *limit)
	if err != nil {
		logger.Fatalf("fetch recent records: %v", err)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(recent, "", "  ")
		fmt.Println(string(output))
		return
	}

	fmt.Printf("%-12s  %-10s  %-20s  %-7s  %8s  %10s  %-8s\n",
		"RECORD", "ASSET", "TIME", "ACTION", "SCORE", "ESTIMATE", "RESULT")
	for _, r := range recent {
		result := "-"
		if r.Result != nil {
			result = *r.Result
		}
		fmt.Printf("%-12s  %-10s  %-20s  %-7s  %8.3f  %10.4f  %-8s\n",
			r.RecordID[:12], r.AssetID, r.Timestamp.Format(time.RFC3339),
			r.Action, r.Score, r.FinalEstimate, result)
	}
}

func showRecord(ctx context.Context, logger *log.Logger, records storage.PredictionRecordStore, events storage.SessionEventStore, recordID string, outputJSON bool) {
	record, err := records.GetByID(ctx, recordID)
	if err != nil {
		logger.Fatalf("fetch record: %v", err)
	}
	slotEvents, err := events.GetByRecordID(ctx, recordID)
	if err != nil {
		logger.Fatalf("fetch session events: %v", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(struct {
			Record *domain.PredictionRecord `json:"record"`
			Events []*domain.SlotEvent      `json:"events"`
		}{record, slotEvents}, "", "  ")
		fmt.Println(string(output))
		return
	}

	fmt.Println()
	fmt.Println("=== Prediction Record ===")
	fmt.Printf("Record ID:          %s\n", record.RecordID)
	fmt.Printf("Asset:              %s\n", record.AssetID)
	fmt.Printf("Time:               %s\n", record.Timestamp.Format(time.RFC3339))
	fmt.Printf("Params:             lookback=%d steps=%d trials=%d\n",
		record.Lookback, record.PredictSteps, record.Trials)
	fmt.Printf("Last Price:         %.4f\n", record.LastPrice)
	fmt.Printf("Action:             %s (score %.3f, multiplier %.4f)\n",
		record.Action, record.Score, record.Multiplier)
	if record.TP != nil {
		fmt.Printf("Take Profit:        %.4f\n", *record.TP)
	}
	if record.SL != nil {
		fmt.Printf("Stop Loss:          %.4f\n", *record.SL)
	}
	fmt.Printf("Ensemble:           mean=%.4f median=%.4f std=%.4f up=%.0f%% acc=%.2f%%\n",
		record.Mean, record.Median, record.Std, record.PercentUp*100, record.AvgAccuracy)
	fmt.Printf("Estimate:           %.4f (base %d%%, adjusted %d%%)\n",
		record.FinalEstimate, record.BasePercent, record.AdjustedPercent)
	if record.Result != nil {
		fmt.Printf("Outcome:            %s", *record.Result)
		if record.FinalPrice != nil {
			fmt.Printf(" at %.4f", *record.FinalPrice)
		}
		if record.DurationSec != nil {
			fmt.Printf(" after %ds", *record.DurationSec)
		}
		fmt.Println()
	}

	if len(slotEvents) > 0 {
		fmt.Println()
		fmt.Println("Session events:")
		for _, e := range slotEvents {
			switch e.Type {
			case domain.SlotEventResolved:
				fmt.Printf("  %s  slot %2d  %s at %.4f after %v\n",
					e.At.Format(time.RFC3339), e.Slot, e.Result, e.FinalPrice, e.Duration)
			case domain.SlotEventRefilled:
				fmt.Printf("  %s  slot %2d  armed at %.4f\n",
					e.At.Format(time.RFC3339), e.Slot, e.Predicted)
			}
		}
	}
}
