package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

const maxTransformWorkers = 64

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration
	TransformWorkers   int

	// Rating-curve registry. An empty path disables persistence.
	CurveDBPath    string
	CurveCacheSize int

	// Current-meter calibration applied when a request names none.
	DefaultMeterA           float64
	DefaultMeterB           float64
	DefaultMeterUncertainty float64

	BaseflowAlpha  float64
	BaseflowBFIMax float64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	workers, err := parseTransformWorkers()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseCurveCacheSize()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "gauging-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "gauging-results"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "streamflow-engine"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		TransformWorkers:   workers,
		CurveDBPath:        curveDBPath(),
		CurveCacheSize:     cacheSize,
	}

	floats := []struct {
		key   string
		def   float64
		dst   *float64
		valid func(float64) bool
		rule  string
	}{
		{"DEFAULT_METER_A", 0.0012, &cfg.DefaultMeterA, func(float64) bool { return true }, "a number"},
		{"DEFAULT_METER_B", 0.2534, &cfg.DefaultMeterB, positive, "positive"},
		{"DEFAULT_METER_UNCERTAINTY", 1.0, &cfg.DefaultMeterUncertainty, positive, "positive"},
		{"BASEFLOW_ALPHA", 0.925, &cfg.BaseflowAlpha, openUnit, "in (0, 1)"},
		{"BASEFLOW_BFI_MAX", 0.80, &cfg.BaseflowBFIMax, openUnit, "in (0, 1)"},
	}
	for _, f := range floats {
		v, err := parseFloat(f.key, f.def)
		if err != nil {
			return nil, err
		}
		if !f.valid(v) {
			return nil, fmt.Errorf("invalid %s: must be %s", f.key, f.rule)
		}
		*f.dst = v
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}

	return cfg, nil
}

func parseTransformWorkers() (int, error) {
	s := sharedcfg.EnvOrDefault("TRANSFORM_WORKERS", "4")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxTransformWorkers {
		return 0, fmt.Errorf("invalid TRANSFORM_WORKERS: must be between 1 and %d", maxTransformWorkers)
	}
	return n, nil
}

// curveDBPath distinguishes an unset CURVE_DB_PATH (default location) from
// one explicitly set to empty (registry disabled).
func curveDBPath() string {
	if v, ok := os.LookupEnv("CURVE_DB_PATH"); ok {
		return v
	}
	return "data/rating_curves.db"
}

func parseCurveCacheSize() (int, error) {
	s := sharedcfg.EnvOrDefault("CURVE_CACHE_SIZE", "256")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.New("invalid CURVE_CACHE_SIZE: must be a positive integer")
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func positive(v float64) bool { return v > 0 }

func openUnit(v float64) bool { return v > 0 && v < 1 }
