package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/streamflow-engine/internal/domain"
	"github.com/couchcryptid/streamflow-engine/internal/observability"
	"github.com/couchcryptid/streamflow-engine/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var processedAt = time.Date(2024, time.July, 2, 9, 30, 0, 0, time.UTC)

type memoryStore struct {
	mu      sync.Mutex
	saveErr error
	curves  []domain.RatingCurve
}

func (m *memoryStore) SaveCurve(_ context.Context, c domain.RatingCurve) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.curves = append(m.curves, c)
	return nil
}

func (m *memoryStore) ListCurves(_ context.Context, station string) ([]domain.RatingCurve, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RatingCurve
	for _, c := range m.curves {
		if c.Station == station {
			out = append(out, c)
		}
	}
	return out, nil
}

func newTestTransformer(store pipeline.CurveStore) *pipeline.StreamflowTransformer {
	return pipeline.NewTransformer(store, pipeline.DefaultSettings(),
		clockwork.NewFakeClockAt(processedAt), slog.Default(), observability.NewMetricsForTesting())
}

func fixture(t *testing.T, name string) domain.RawEvent {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name+".json"))
	require.NoError(t, err)
	return domain.RawEvent{Value: data}
}

// envelope decodes a serialized result with its payload left raw.
type envelope struct {
	ID          string          `json:"id"`
	Kind        domain.Kind     `json:"kind"`
	Station     string          `json:"station"`
	ProcessedAt time.Time       `json:"processed_at"`
	Result      json.RawMessage `json:"result"`
}

func transform(t *testing.T, tfm *pipeline.StreamflowTransformer, raw domain.RawEvent) (domain.OutputEvent, envelope) {
	t.Helper()
	out, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(out.Value, &env))
	return out, env
}

func TestStreamflowTransformer_Discharge(t *testing.T) {
	out, env := transform(t, newTestTransformer(nil), fixture(t, "discharge"))

	assert.Equal(t, []byte("gauging-2024-07-02"), out.Key)
	assert.Equal(t, "discharge", out.Headers["kind"])
	assert.Equal(t, "2024-07-02T09:30:00Z", out.Headers["processed_at"])
	assert.Equal(t, "Daejong", env.Station)
	assert.Equal(t, processedAt, env.ProcessedAt)

	var res domain.DischargeResult
	require.NoError(t, json.Unmarshal(env.Result, &res))
	assert.InDelta(t, 0.1816425, res.Discharge, 1e-12)
	assert.InDelta(t, 1.215, res.Area, 1e-12)
	assert.Len(t, res.Verticals, 3)
	assert.Equal(t, domain.GradePoor, res.Grade)
}

func TestStreamflowTransformer_RatingFitSavesCurve(t *testing.T) {
	store := &memoryStore{}
	_, env := transform(t, newTestTransformer(store), fixture(t, "rating_fit"))

	var res pipeline.RatingFitResult
	require.NoError(t, json.Unmarshal(env.Result, &res))
	assert.True(t, res.Saved)
	assert.InDelta(t, 2.0, res.Curve.A, 1e-3)
	assert.InDelta(t, 1.5, res.Curve.B, 1e-3)
	assert.InDelta(t, 0.1, res.Curve.H0, 1e-3)
	assert.Len(t, res.Samples, 50)

	require.Len(t, store.curves, 1)
	saved := store.curves[0]
	assert.Equal(t, "Daejong", saved.Station)
	assert.Equal(t, 2024, saved.Year)
	assert.Equal(t, domain.CurveOpen, saved.CurveType)
}

func TestStreamflowTransformer_RatingFitSaveFailureStillReturnsFit(t *testing.T) {
	store := &memoryStore{saveErr: errors.New("database is locked")}
	_, env := transform(t, newTestTransformer(store), fixture(t, "rating_fit"))

	var res pipeline.RatingFitResult
	require.NoError(t, json.Unmarshal(env.Result, &res))
	assert.False(t, res.Saved)
	assert.InDelta(t, 2.0, res.Curve.A, 1e-3)
}

func TestStreamflowTransformer_RatingApplyFromRegistry(t *testing.T) {
	store := &memoryStore{curves: []domain.RatingCurve{
		{Station: "Daejong", Year: 2023, CurveType: domain.CurveOpen, A: 9, B: 1.5, H0: 0.1, HMin: 0.2, HMax: 2.0},
		{Station: "Daejong", Year: 2024, CurveType: domain.CurveOpen, A: 2, B: 1.5, H0: 0.1, HMin: 0.2, HMax: 2.0},
	}}
	_, env := transform(t, newTestTransformer(store), fixture(t, "rating_apply"))

	var res domain.RatingApplyResult
	require.NoError(t, json.Unmarshal(env.Result, &res))
	assert.Equal(t, 2024, res.Curve.Year)
	require.Len(t, res.Points, 3)
	assert.InDelta(t, 2.0, res.Points[0].Discharge, 1e-12)
	assert.Equal(t, domain.QualityGood, res.Points[0].Quality)
	assert.Equal(t, domain.QualityExtrapolated, res.Points[1].Quality)
	assert.Equal(t, domain.QualitySuspect, res.Points[2].Quality)
	assert.Equal(t, 1, res.Extrapolated)
	assert.Equal(t, 1, res.Suspect)
}

func TestStreamflowTransformer_RatingApplyInlineCurve(t *testing.T) {
	raw := domain.RawEvent{Value: []byte(`{"id":"a1","kind":"rating_apply","payload":{
		"curve":{"a":2,"b":1.5,"h0":0.1,"h_min":0.2,"h_max":2.0},
		"points":[{"timestamp":"2024-05-01T00:00:00Z","stage":1.1}]}}`)}

	_, env := transform(t, newTestTransformer(nil), raw)

	var res domain.RatingApplyResult
	require.NoError(t, json.Unmarshal(env.Result, &res))
	assert.InDelta(t, 2.0, res.Points[0].Discharge, 1e-12)
	assert.Equal(t, "Q = 2.0000(h - 0.1000)^1.5000", res.Equation)
}

func TestStreamflowTransformer_RatingApplyCurveNotFound(t *testing.T) {
	t.Run("no registry", func(t *testing.T) {
		_, err := newTestTransformer(nil).Transform(context.Background(), fixture(t, "rating_apply"))
		require.ErrorIs(t, err, domain.ErrCurveNotFound)
	})

	t.Run("no curve for year", func(t *testing.T) {
		store := &memoryStore{curves: []domain.RatingCurve{{Station: "Daejong", Year: 2019, CurveType: domain.CurveOpen}}}
		_, err := newTestTransformer(store).Transform(context.Background(), fixture(t, "rating_apply"))
		require.ErrorIs(t, err, domain.ErrCurveNotFound)
		assert.Contains(t, err.Error(), "apply-2024-05")
	})
}

func TestStreamflowTransformer_Baseflow(t *testing.T) {
	_, env := transform(t, newTestTransformer(nil), fixture(t, "baseflow"))

	var res domain.BaseflowAnalysis
	require.NoError(t, json.Unmarshal(env.Result, &res))
	assert.Equal(t, domain.MethodEckhardt, res.Method)
	assert.Equal(t, 0.80, res.BFIMax)
	assert.Len(t, res.Days, 60)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), res.Start)
	assert.Greater(t, res.BFI, 0.0)
	assert.Less(t, res.BFI, 1.0)
}

func TestStreamflowTransformer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr error
	}{
		{"unknown kind", `{"id":"x","kind":"flood_frequency","payload":{}}`, domain.ErrUnknownKind},
		{"too few rating pairs", `{"id":"x","kind":"rating_fit","payload":{"h":[1,2],"q":[1,2]}}`, domain.ErrInsufficientData},
		{"short baseflow series", `{"id":"x","kind":"baseflow","payload":{"discharge":[1,2,3]}}`, domain.ErrInsufficientData},
		{"bad vertical method", `{"id":"x","kind":"discharge","payload":{"verticals":[{"method":"9"}]}}`, domain.ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestTransformer(nil).Transform(context.Background(), domain.RawEvent{Value: []byte(tt.value)})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStreamflowTransformer_ComputeIsIdempotent(t *testing.T) {
	tfm := newTestTransformer(nil)
	raw := fixture(t, "discharge")

	first, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)
	second, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStreamflowTransformer_DischargeUsesConfiguredMeterUncertainty(t *testing.T) {
	settings := pipeline.DefaultSettings()
	settings.Calibration.UncertaintyPercent = 4.0
	tfm := pipeline.NewTransformer(nil, settings,
		clockwork.NewFakeClockAt(processedAt), slog.Default(), observability.NewMetricsForTesting())

	_, env := transform(t, tfm, fixture(t, "discharge"))

	var res domain.DischargeResult
	require.NoError(t, json.Unmarshal(env.Result, &res))
	assert.InDelta(t, 4.0, res.Uncertainty.Xc, 1e-12)
}
