package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/streamflow-engine/internal/domain"
	"github.com/couchcryptid/streamflow-engine/internal/observability"
	"github.com/jonboulle/clockwork"
)

// CurveStore persists fitted rating curves and returns a station's curves
// for rating application.
type CurveStore interface {
	SaveCurve(ctx context.Context, c domain.RatingCurve) error
	ListCurves(ctx context.Context, station string) ([]domain.RatingCurve, error)
}

// Settings are the defaults applied where a request leaves a value unset.
type Settings struct {
	Calibration domain.MeterCalibration
	Policy      domain.UncertaintyPolicy
	Baseflow    domain.BaseflowParams
}

// DefaultSettings returns the historical meter calibration, uncertainty
// policy and baseflow filter parameters.
func DefaultSettings() Settings {
	return Settings{
		Calibration: domain.DefaultCalibration(),
		Policy:      domain.DefaultUncertaintyPolicy(),
		Baseflow:    domain.DefaultBaseflowParams(),
	}
}

// RatingFitResult is a fitted curve with whether it was stored in the registry.
type RatingFitResult struct {
	domain.RatingFit
	Saved bool `json:"saved"`
}

// StreamflowTransformer implements Transformer by dispatching each request
// to the hydrological engine.
type StreamflowTransformer struct {
	curves   CurveStore
	settings Settings
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates a StreamflowTransformer. Pass a nil store to run
// without a rating-curve registry; rating_apply requests must then carry
// their curve inline.
func NewTransformer(curves CurveStore, settings Settings, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *StreamflowTransformer {
	return &StreamflowTransformer{
		curves:   curves,
		settings: settings,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

func (t *StreamflowTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	req, err := domain.ParseRequest(raw)
	if err != nil {
		t.metrics.TransformErrors.WithLabelValues("unknown").Inc()
		return domain.OutputEvent{}, err
	}

	res, err := t.Compute(ctx, req)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	return domain.SerializeResult(res)
}

// Compute runs one parsed request and wraps its output in a result envelope.
func (t *StreamflowTransformer) Compute(ctx context.Context, req domain.Request) (domain.Result, error) {
	start := t.clock.Now()

	var (
		out any
		err error
	)
	switch req.Kind {
	case domain.KindDischarge:
		out, err = t.discharge(req)
	case domain.KindRatingFit:
		out, err = t.ratingFit(ctx, req)
	case domain.KindRatingApply:
		out, err = t.ratingApply(ctx, req)
	case domain.KindBaseflow:
		out, err = t.baseflow(req)
	default:
		err = fmt.Errorf("%w: %q", domain.ErrUnknownKind, req.Kind)
	}
	if err != nil {
		t.metrics.TransformErrors.WithLabelValues(string(req.Kind)).Inc()
		return domain.Result{}, fmt.Errorf("%s request %s: %w", req.Kind, req.ID, err)
	}

	now := t.clock.Now()
	t.metrics.Computations.WithLabelValues(string(req.Kind)).Inc()
	t.metrics.ComputationDuration.WithLabelValues(string(req.Kind)).Observe(now.Sub(start).Seconds())

	return domain.Result{
		ID:          req.ID,
		Kind:        req.Kind,
		Station:     req.Station,
		ProcessedAt: now.UTC(),
		Result:      out,
	}, nil
}

func (t *StreamflowTransformer) discharge(req domain.Request) (domain.DischargeResult, error) {
	var p domain.DischargePayload
	if err := domain.DecodePayload(req, &p); err != nil {
		return domain.DischargeResult{}, err
	}
	verticals, meters, err := p.Session(t.settings.Calibration)
	if err != nil {
		return domain.DischargeResult{}, err
	}

	res := domain.ReduceDischarge(verticals, meters, t.settings.Policy)
	t.metrics.DischargeGrades.WithLabelValues(string(res.Grade)).Inc()
	t.logger.Debug("gauging reduced",
		"request_id", req.ID,
		"station", req.Station,
		"discharge", res.Discharge,
		"active_verticals", res.ActiveVerticals,
		"grade", res.Grade,
	)
	return res, nil
}

func (t *StreamflowTransformer) ratingFit(ctx context.Context, req domain.Request) (RatingFitResult, error) {
	var p domain.RatingFitPayload
	if err := domain.DecodePayload(req, &p); err != nil {
		return RatingFitResult{}, err
	}
	curveType, err := domain.ParseCurveType(p.CurveType)
	if err != nil {
		return RatingFitResult{}, err
	}

	fit, err := domain.FitRatingCurve(p.H, p.Q, domain.FitOptions{H0: p.H0})
	if err != nil {
		return RatingFitResult{}, err
	}
	fit.Curve.Station = req.Station
	fit.Curve.Year = p.Year
	fit.Curve.CurveType = curveType

	res := RatingFitResult{RatingFit: fit}
	if t.curves != nil && req.Station != "" && p.Year != 0 {
		// The fit is still returned when it cannot be stored.
		if err := t.curves.SaveCurve(ctx, fit.Curve); err != nil {
			t.logger.Error("save rating curve failed", "request_id", req.ID, "station", req.Station, "error", err)
		} else {
			res.Saved = true
		}
	}

	t.logger.Debug("rating curve fitted",
		"request_id", req.ID,
		"station", req.Station,
		"equation", fit.Equation,
		"r_squared", fit.Curve.RSquared,
		"iterations", fit.Iterations,
	)
	return res, nil
}

func (t *StreamflowTransformer) ratingApply(ctx context.Context, req domain.Request) (domain.RatingApplyResult, error) {
	var p domain.RatingApplyPayload
	if err := domain.DecodePayload(req, &p); err != nil {
		return domain.RatingApplyResult{}, err
	}

	curve, err := t.resolveCurve(ctx, req.Station, p)
	if err != nil {
		return domain.RatingApplyResult{}, err
	}

	res := domain.SummarizeDischargeSeries(curve, domain.ApplyRatingCurve(curve, p.Points))
	good := len(res.Points) - res.Extrapolated - res.Suspect
	t.metrics.RatingPoints.WithLabelValues(string(domain.QualityGood)).Add(float64(good))
	t.metrics.RatingPoints.WithLabelValues(string(domain.QualityExtrapolated)).Add(float64(res.Extrapolated))
	t.metrics.RatingPoints.WithLabelValues(string(domain.QualitySuspect)).Add(float64(res.Suspect))
	return res, nil
}

// resolveCurve returns the inline curve of a request, or looks the station's
// curve up in the registry by year and curve type.
func (t *StreamflowTransformer) resolveCurve(ctx context.Context, station string, p domain.RatingApplyPayload) (domain.RatingCurve, error) {
	if p.Curve != nil {
		return *p.Curve, nil
	}
	if t.curves == nil {
		return domain.RatingCurve{}, fmt.Errorf("%w: no inline curve and no registry configured", domain.ErrCurveNotFound)
	}
	if station == "" {
		return domain.RatingCurve{}, fmt.Errorf("%w: registry lookup needs a station", domain.ErrInvalidParameter)
	}
	curveType, err := domain.ParseCurveType(p.CurveType)
	if err != nil {
		return domain.RatingCurve{}, err
	}

	curves, err := t.curves.ListCurves(ctx, station)
	if err != nil {
		return domain.RatingCurve{}, fmt.Errorf("list curves: %w", err)
	}
	curve, err := domain.SelectRatingCurve(curves, p.Year, curveType)
	if err != nil {
		return domain.RatingCurve{}, fmt.Errorf("station %s: %w", station, err)
	}
	return curve, nil
}

func (t *StreamflowTransformer) baseflow(req domain.Request) (domain.BaseflowAnalysis, error) {
	var p domain.BaseflowPayload
	if err := domain.DecodePayload(req, &p); err != nil {
		return domain.BaseflowAnalysis{}, err
	}
	return p.Separate(t.settings.Baseflow)
}
