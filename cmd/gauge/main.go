// Command gauge runs one computation request through the engine offline and
// prints the result envelope. The request is either a JSON envelope as sent
// to the request topic, or a CSV field sheet of verticals that is reduced as
// a discharge request.
//
// Usage:
//
//	go run ./cmd/gauge -request internal/pipeline/testdata/rating_fit.json -db data/rating_curves.db
//	go run ./cmd/gauge -sheet cmd/gauge/testdata/field_sheet.csv -station Daejong -a 0.0012 -b 0.2534
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/streamflow-engine/internal/adapter/sqlite"
	"github.com/couchcryptid/streamflow-engine/internal/domain"
	"github.com/couchcryptid/streamflow-engine/internal/observability"
	"github.com/couchcryptid/streamflow-engine/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("gauge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	requestPath := fs.String("request", "", "path to a JSON request envelope")
	sheetPath := fs.String("sheet", "", "path to a CSV field sheet of verticals")
	station := fs.String("station", "", "station name for a field sheet")
	meterA := fs.Float64("a", domain.DefaultCalibration().A, "meter calibration intercept for a field sheet")
	meterB := fs.Float64("b", domain.DefaultCalibration().B, "meter calibration slope for a field sheet")
	dbPath := fs.String("db", "", "rating-curve registry path (optional)")
	at := fs.String("at", "", "fixed processed_at timestamp (RFC3339) for reproducible output")
	verbose := fs.Bool("v", false, "log debug output to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if (*requestPath == "") == (*sheetPath == "") {
		fs.Usage()
		return fmt.Errorf("exactly one of -request or -sheet is required")
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	raw, err := loadRequest(*requestPath, *sheetPath, *station, *meterA, *meterB)
	if err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	if *at != "" {
		ts, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
		clock = clockwork.NewFakeClockAt(ts)
	}

	var store pipeline.CurveStore
	if *dbPath != "" {
		registry, err := sqlite.Open(*dbPath, logger)
		if err != nil {
			return err
		}
		defer registry.Close()
		store = registry
	}

	tfm := pipeline.NewTransformer(store, pipeline.DefaultSettings(), clock, logger, observability.NewMetricsForTesting())
	out, err := tfm.Transform(context.Background(), raw)
	if err != nil {
		return err
	}

	return writeIndented(stdout, out.Value)
}

func loadRequest(requestPath, sheetPath, station string, a, b float64) (domain.RawEvent, error) {
	if requestPath != "" {
		data, err := os.ReadFile(requestPath)
		if err != nil {
			return domain.RawEvent{}, fmt.Errorf("read request: %w", err)
		}
		return domain.RawEvent{Value: data}, nil
	}

	f, err := os.Open(sheetPath)
	if err != nil {
		return domain.RawEvent{}, fmt.Errorf("open field sheet: %w", err)
	}
	defer f.Close()

	rows, err := readFieldSheet(f)
	if err != nil {
		return domain.RawEvent{}, fmt.Errorf("%s: %w", sheetPath, err)
	}
	return dischargeRequest(station, rows, a, b)
}

// dischargeRequest wraps field-sheet rows in a discharge request envelope.
func dischargeRequest(station string, rows []domain.VerticalRow, a, b float64) (domain.RawEvent, error) {
	payload, err := json.Marshal(domain.DischargePayload{
		Verticals:   rows,
		Calibration: &domain.CalibrationPayload{A: &a, B: &b},
	})
	if err != nil {
		return domain.RawEvent{}, err
	}
	value, err := json.Marshal(domain.Request{Kind: domain.KindDischarge, Station: station, Payload: payload})
	if err != nil {
		return domain.RawEvent{}, err
	}
	return domain.RawEvent{Value: value}, nil
}

func writeIndented(w io.Writer, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
