package optimizer_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/microgrid-sizing/backend/internal/augment"
	"github.com/microgrid-sizing/backend/internal/inputs"
	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/microgrid-sizing/backend/internal/optimizer"
	"github.com/microgrid-sizing/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prepared(t *testing.T, mode models.Mode) *inputs.Inputs {
	t.Helper()
	paths := testutil.WriteInputs(t, t.TempDir())
	aux := testutil.WriteAuxiliary(t, t.TempDir(), mode == models.ModeMultiyear)
	in, err := inputs.Read(paths, aux, mode)
	require.NoError(t, err)

	o := augment.Overrides{Years: 3, DemandCovered: 1, DiscountRate: 0.08, LPSPLimit: 5}
	require.NoError(t, augment.Apply(in, o, augment.AnnuityCostModel{}))
	if mode == models.ModeMultiyear {
		in.Demand, in.Forecast, err = inputs.ExpandMultiyear(in.Demand, in.Forecast, *in.Multiyear, o.Years)
		require.NoError(t, err)
	}
	return in
}

func TestReferenceEngine_SingleYear(t *testing.T) {
	ws := t.TempDir()
	in := prepared(t, models.ModeDeterministic)
	eng := optimizer.NewReferenceEngine(optimizer.ReferenceOptions{Seed: 7, Iterations: 5, Alpha: 0.3}, nil)

	res, err := eng.RunSingleYear(context.Background(), optimizer.NewRequest(in, ws))
	require.NoError(t, err)

	for name, tbl := range map[string]*models.Table{
		"percent": res.Percent, "energy": res.Energy, "renew": res.Renew, "total": res.Total, "brand": res.Brand,
	} {
		require.NotNil(t, tbl, name)
		assert.NotZero(t, tbl.Len(), name)
	}
	assert.Equal(t, len(testutil.DemandProfile), res.Energy.Len())
	assert.Equal(t, 4, res.Percent.Len())

	total := res.Total.Rows[0]
	assert.Equal(t, true, total[5], "solution should meet the LPSP limit")
	assert.LessOrEqual(t, total[2].(float64), 0.05)

	assert.Equal(t, []string{optimizer.DefaultReportFile, optimizer.DefaultPlotFile}, res.Manifest)
	assert.FileExists(t, filepath.Join(ws, optimizer.DefaultReportFile))
	assert.FileExists(t, filepath.Join(ws, optimizer.DefaultPlotFile))
}

func TestReferenceEngine_SameSeedSameResult(t *testing.T) {
	in := prepared(t, models.ModeDeterministic)
	opts := optimizer.ReferenceOptions{Seed: 42, Iterations: 3}

	a, err := optimizer.NewReferenceEngine(opts, nil).RunSingleYear(context.Background(), optimizer.NewRequest(in, t.TempDir()))
	require.NoError(t, err)
	b, err := optimizer.NewReferenceEngine(opts, nil).RunSingleYear(context.Background(), optimizer.NewRequest(in, t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, a.Brand, b.Brand)
	assert.Equal(t, a.Total, b.Total)
}

func TestReferenceEngine_MultiYear(t *testing.T) {
	ws := t.TempDir()
	in := prepared(t, models.ModeMultiyear)
	eng := optimizer.NewReferenceEngine(optimizer.ReferenceOptions{Seed: 1, Iterations: 2}, nil)

	res, err := optimizer.Run(context.Background(), eng, models.ModeMultiyear, optimizer.NewRequest(in, ws))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Renew.Len(), "one renewable row per year")
	assert.Contains(t, res.Energy.Columns, models.ColumnYear)
	assert.Equal(t, 3*len(testutil.DemandProfile), res.Energy.Len())
}

func TestReferenceEngine_Errors(t *testing.T) {
	in := prepared(t, models.ModeDeterministic)
	eng := optimizer.NewReferenceEngine(optimizer.ReferenceOptions{Seed: 1}, nil)

	t.Run("multiyear without table", func(t *testing.T) {
		_, err := eng.RunMultiYear(context.Background(), optimizer.NewRequest(in, t.TempDir()))
		assert.True(t, errors.Is(err, models.ErrOptimizerFailure))
	})

	t.Run("unknown operator", func(t *testing.T) {
		req := optimizer.NewRequest(in, t.TempDir())
		req.Construction = "ANNEALING"
		_, err := eng.RunSingleYear(context.Background(), req)
		assert.True(t, errors.Is(err, models.ErrOptimizerFailure))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := eng.RunSingleYear(ctx, optimizer.NewRequest(in, t.TempDir()))
		assert.True(t, errors.Is(err, models.ErrOptimizerFailure))
	})
}
