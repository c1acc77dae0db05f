package optimizer

import (
	"math"
	"testing"

	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(cols map[string][]float64, order ...string) *models.Series {
	s := models.NewSeries()
	for _, c := range order {
		s.Set(c, cols[c])
	}
	return s
}

func TestWindOutput(t *testing.T) {
	g := models.Generator{RatedPowerKW: 10, CutInSpeed: 3, RatedSpeed: 12, CutOutSpeed: 25}

	tests := []struct {
		v    float64
		want float64
	}{
		{0, 0},
		{2.9, 0},
		{3, 0},
		{12, 10},
		{20, 10},
		{25.1, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, windOutput(g, tt.v), 1e-9, "v=%v", tt.v)
	}

	mid := windOutput(g, 8)
	assert.Greater(t, mid, 0.0)
	assert.Less(t, mid, 10.0)
}

func TestSolarOutput(t *testing.T) {
	g := models.Generator{RatedPowerKW: 20}
	assert.Equal(t, 0.0, solarOutput(g, -5))
	assert.Equal(t, 10.0, solarOutput(g, 500))
	assert.Equal(t, 20.0, solarOutput(g, 1400))
}

func dieselOnlyRequest(demand ...float64) *Request {
	t := make([]float64, len(demand))
	for i := range t {
		t[i] = float64(i)
	}
	return &Request{
		Demand:   seriesOf(map[string][]float64{"t": t, "demand": demand}, "t", "demand"),
		Forecast: seriesOf(map[string][]float64{"t": t}, "t"),
		Generators: []models.Generator{{
			ID: "DG", Type: models.GeneratorDiesel, RatedPowerKW: 50, AreaM2: 5,
			Costs: models.UnitCosts{Annualized: 1000, OM: 100, Variable: 0.5},
		}},
		Config: &models.InstanceConfig{Years: 1, DiscountRate: 0, LPSPLimit: 0},
	}
}

func TestSimulate_DieselCoversDemand(t *testing.T) {
	p := newPlant(dieselOnlyRequest(40, 30), false)

	empty := p.simulate(solution{gen: []int{0}})
	assert.InDelta(t, 1.0, empty.lpsp, 1e-9)
	assert.False(t, empty.feasible)
	assert.True(t, math.IsInf(empty.lcoe, 1), "nothing served")

	one := p.simulate(solution{gen: []int{1}})
	assert.Equal(t, 0.0, one.lpsp)
	assert.True(t, one.feasible)
	assert.Equal(t, []float64{40, 30}, one.diesel)
	assert.Equal(t, 5.0, one.area)
	assert.Less(t, one.score, empty.score)
}

func TestSimulate_BatteryShiftsSurplus(t *testing.T) {
	req := &Request{
		Demand: seriesOf(map[string][]float64{"t": {0, 1}, "demand": {0, 10}}, "t", "demand"),
		Forecast: seriesOf(map[string][]float64{
			"t":  {0, 1},
			"gh": {1000, 0},
		}, "t", "gh"),
		Generators: []models.Generator{{ID: "PV", Type: models.GeneratorSolar, RatedPowerKW: 20}},
		Batteries:  []models.Battery{{ID: "B", CapacityKWh: 20, MaxPowerKW: 20, Efficiency: 1}},
		Config:     &models.InstanceConfig{Years: 1},
	}
	p := newPlant(req, false)

	// Battery starts full, so the first hour's output is surplus and the
	// second hour is served from storage.
	o := p.simulate(solution{gen: []int{1}, bat: []int{1}})
	assert.Equal(t, []float64{20, 0}, o.surplus)
	assert.Equal(t, []float64{0, 10}, o.battery)
	assert.Equal(t, 0.0, o.lpsp)
}

func TestSimulate_MultiyearUsesYearColumn(t *testing.T) {
	req := dieselOnlyRequest(10, 10, 10, 10)
	req.Demand.Set(models.ColumnYear, []float64{0, 0, 1, 1})
	req.Multiyear = &models.MultiyearData{FuelEscalation: 0.1}

	p := newPlant(req, true)
	require.Equal(t, 2, p.years)
	assert.Equal(t, []int{0, 0, 1, 1}, p.year)

	single := newPlant(dieselOnlyRequest(10, 10, 10, 10), false)
	assert.Equal(t, 1, single.years)

	// Fuel escalation makes the second year more expensive.
	o := p.simulate(solution{gen: []int{1}})
	flat := single.simulate(solution{gen: []int{1}})
	assert.Greater(t, o.lcoe, flat.lcoe)
}

func TestDestroy(t *testing.T) {
	s := &search{drop: DestructionWorst}
	sol := solution{gen: []int{6, 1}, bat: []int{0}}
	next := s.destroy(sol)
	assert.Equal(t, []int{4, 1}, next.gen)
	assert.Equal(t, []int{6, 1}, sol.gen, "input untouched")
	assert.Equal(t, 0, s.destroy(solution{gen: []int{0}}).units())
}
