package optimizer

import (
	"github.com/microgrid-sizing/backend/internal/models"
	"gonum.org/v1/gonum/floats"
)

func buildTables(p *plant, sol solution, o *outcome) *Result {
	res := &Result{
		Percent: models.NewTable("source", "energy_kwh", "percent"),
		Renew:   models.NewTable("year", "renewable_kwh", "demand_kwh", "renewable_percent"),
		Total:   models.NewTable("lcoe", "area", "lpsp", "annual_cost", "annual_energy_kwh", "feasible"),
		Brand:   models.NewTable("id", "type", "brand", "units", "capacity"),
	}

	served := floats.Sum(p.demand) - floats.Sum(o.unmet)
	for _, src := range []struct {
		name   string
		values []float64
	}{
		{"solar", o.solar},
		{"wind", o.wind},
		{"diesel", o.diesel},
		{"batteries", o.battery},
	} {
		e := floats.Sum(src.values)
		res.Percent.Append(src.name, e, percent(e, served))
	}

	cols := []string{models.ColumnTime, models.ColumnDemand, "solar", "wind", "diesel", "batteries", "surplus", "unmet"}
	if p.years > 1 {
		cols = append(cols, models.ColumnYear)
	}
	res.Energy = models.NewTable(cols...)
	for h := 0; h < p.hours; h++ {
		row := []any{h, p.demand[h], o.solar[h], o.wind[h], o.diesel[h], o.battery[h], o.surplus[h], o.unmet[h]}
		if p.years > 1 {
			row = append(row, p.year[h])
		}
		res.Energy.Append(row...)
	}

	renew := make([]float64, p.years)
	demand := make([]float64, p.years)
	for h := 0; h < p.hours; h++ {
		renew[p.year[h]] += o.solar[h] + o.wind[h]
		demand[p.year[h]] += p.demand[h]
	}
	for y := 0; y < p.years; y++ {
		res.Renew.Append(y, renew[y], demand[y], percent(renew[y], demand[y]))
	}

	res.Total.Append(o.lcoe, o.area, o.lpsp, o.annualCost, o.energy, o.feasible)

	for i, c := range sol.gen {
		if c == 0 {
			continue
		}
		g := p.req.Generators[i]
		res.Brand.Append(g.ID, string(g.Type), g.Brand, c, float64(c)*g.RatedPowerKW)
	}
	for i, c := range sol.bat {
		if c == 0 {
			continue
		}
		b := p.req.Batteries[i]
		res.Brand.Append(b.ID, "battery", b.Brand, c, float64(c)*b.CapacityKWh)
	}
	return res
}

// percent returns part/whole*100. A zero whole gives a non-finite value,
// which the serializer turns into 0.
func percent(part, whole float64) float64 {
	return part / whole * 100
}
