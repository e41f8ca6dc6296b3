package sqlite

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/streamflow-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(":memory:", slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func curve(station string, year int, ct domain.CurveType, a float64) domain.RatingCurve {
	return domain.RatingCurve{
		Station: station, Year: year, CurveType: ct,
		A: a, B: 1.6, H0: -0.12, HMin: 0.3, HMax: 4.1, RSquared: 0.991, RMSE: 0.42,
	}
}

func TestRegistry_SaveAndList(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.SaveCurve(ctx, curve("Daejong", 2023, domain.CurveOpen, 10.1)))
	require.NoError(t, r.SaveCurve(ctx, curve("Daejong", 2024, domain.CurveOpen, 11.2)))
	require.NoError(t, r.SaveCurve(ctx, curve("Daejong", 2024, domain.CurveClose, 3.4)))
	require.NoError(t, r.SaveCurve(ctx, curve("Other", 2024, domain.CurveOpen, 99)))

	curves, err := r.ListCurves(ctx, "Daejong")
	require.NoError(t, err)
	require.Len(t, curves, 3)

	assert.Equal(t, 2024, curves[0].Year)
	assert.Equal(t, domain.CurveClose, curves[0].CurveType)
	assert.Equal(t, 2024, curves[1].Year)
	assert.Equal(t, domain.CurveOpen, curves[1].CurveType)
	assert.Equal(t, curve("Daejong", 2023, domain.CurveOpen, 10.1), curves[2])

	latest, err := domain.SelectRatingCurve(curves, 0, domain.CurveOpen)
	require.NoError(t, err)
	assert.Equal(t, 11.2, latest.A)
}

func TestRegistry_SaveReplacesSameKey(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.SaveCurve(ctx, curve("Daejong", 2024, domain.CurveOpen, 11.2)))
	require.NoError(t, r.SaveCurve(ctx, curve("Daejong", 2024, domain.CurveOpen, 12.5)))

	curves, err := r.ListCurves(ctx, "Daejong")
	require.NoError(t, err)
	require.Len(t, curves, 1)
	assert.Equal(t, 12.5, curves[0].A)
}

func TestRegistry_DefaultsCurveType(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	c := curve("Daejong", 2024, "", 5)
	require.NoError(t, r.SaveCurve(ctx, c))

	curves, err := r.ListCurves(ctx, "Daejong")
	require.NoError(t, err)
	require.Len(t, curves, 1)
	assert.Equal(t, domain.CurveOpen, curves[0].CurveType)
}

func TestRegistry_RejectsCurveWithoutStation(t *testing.T) {
	r := openTestRegistry(t)
	err := r.SaveCurve(context.Background(), curve("", 2024, domain.CurveOpen, 1))
	require.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestRegistry_UnknownStation(t *testing.T) {
	r := openTestRegistry(t)
	curves, err := r.ListCurves(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Empty(t, curves)
}

func TestRegistry_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "curves.db")
	ctx := context.Background()

	r, err := Open(path, slog.Default())
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	require.NoError(t, r.SaveCurve(ctx, curve("Daejong", 2024, domain.CurveOpen, 11.2)))
	require.NoError(t, r.CheckReadiness(ctx))
	require.NoError(t, r.Close())

	reopened, err := Open(path, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	curves, err := reopened.ListCurves(ctx, "Daejong")
	require.NoError(t, err)
	require.Len(t, curves, 1)
	assert.Equal(t, 11.2, curves[0].A)
}

func TestRegistry_CheckReadinessAfterClose(t *testing.T) {
	r, err := Open(":memory:", slog.Default())
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.Error(t, r.CheckReadiness(context.Background()))
}
