package optimizer

import (
	"math"

	"github.com/microgrid-sizing/backend/internal/models"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Forecast columns read by the reference engine.
const (
	ColumnIrradiance = "gh"
	ColumnWindSpeed  = "w"
)

const (
	standardIrradiance = 1000.0 // W/m2
	hoursPerYear       = 8760.0
	penalty            = 1e6
	lcoeCap            = 1e9
)

// plant is the precomputed part of a sizing problem: demand, per-unit
// renewable output and the cost horizon.
type plant struct {
	req *Request

	hours     int
	years     int
	year      []int
	demand    []float64
	annualize float64 // scales one sampled year to 8760 h

	renewables []int      // generator indexes with an output profile
	diesels    []int      // dispatchable generator indexes
	profiles   *mat.Dense // hours x renewables, kW per unit

	lpspTarget float64
	areaLimit  float64
	fuelEsc    float64
}

func newPlant(req *Request, multiyear bool) *plant {
	p := &plant{req: req}
	p.demand = req.Demand.Column(models.ColumnDemand)
	p.hours = len(p.demand)

	p.year = make([]int, p.hours)
	p.years = 1
	if yc := req.Demand.Column(models.ColumnYear); multiyear && len(yc) == p.hours {
		for h, y := range yc {
			p.year[h] = int(y)
			if int(y)+1 > p.years {
				p.years = int(y) + 1
			}
		}
	}
	p.annualize = hoursPerYear * float64(p.years) / float64(max(p.hours, 1))

	degradation := 0.0
	if multiyear && req.Multiyear != nil {
		degradation = req.Multiyear.Degradation
		p.fuelEsc = req.Multiyear.FuelEscalation
	}

	for i, g := range req.Generators {
		if g.Type.Renewable() {
			p.renewables = append(p.renewables, i)
		} else {
			p.diesels = append(p.diesels, i)
		}
	}

	gh := req.Forecast.Column(ColumnIrradiance)
	ws := req.Forecast.Column(ColumnWindSpeed)
	if len(p.renewables) > 0 && p.hours > 0 {
		p.profiles = mat.NewDense(p.hours, len(p.renewables), nil)
		for j, gi := range p.renewables {
			g := req.Generators[gi]
			for h := 0; h < p.hours; h++ {
				var out float64
				switch g.Type {
				case models.GeneratorSolar:
					out = solarOutput(g, at(gh, h))
				case models.GeneratorWind:
					out = windOutput(g, at(ws, h))
				}
				out *= math.Pow(1-degradation, float64(p.year[h]))
				p.profiles.Set(h, j, out)
			}
		}
	}

	if req.Config != nil {
		p.lpspTarget = float64(req.Config.LPSPLimit) / 100
		if amax, ok := req.Config.Float("amax"); ok && amax > 0 {
			p.areaLimit = amax
		}
	}
	return p
}

func at(col []float64, h int) float64 {
	if h < len(col) {
		return col[h]
	}
	return 0
}

func solarOutput(g models.Generator, irradiance float64) float64 {
	return g.RatedPowerKW * math.Min(math.Max(irradiance/standardIrradiance, 0), 1)
}

func windOutput(g models.Generator, v float64) float64 {
	switch {
	case v < g.CutInSpeed || (g.CutOutSpeed > 0 && v > g.CutOutSpeed):
		return 0
	case v >= g.RatedSpeed:
		return g.RatedPowerKW
	}
	ci3 := math.Pow(g.CutInSpeed, 3)
	span := math.Pow(g.RatedSpeed, 3) - ci3
	if span <= 0 {
		return g.RatedPowerKW
	}
	return g.RatedPowerKW * (math.Pow(v, 3) - ci3) / span
}

// solution counts the installed units per generator and battery index.
type solution struct {
	gen []int
	bat []int
}

func (s solution) clone() solution {
	return solution{gen: append([]int(nil), s.gen...), bat: append([]int(nil), s.bat...)}
}

func (s solution) units() int {
	n := 0
	for _, c := range s.gen {
		n += c
	}
	for _, c := range s.bat {
		n += c
	}
	return n
}

// outcome is the simulated hourly dispatch of a solution.
type outcome struct {
	solar, wind, diesel, battery, surplus, unmet []float64

	lcoe       float64
	area       float64
	lpsp       float64
	annualCost float64
	energy     float64 // served, per year
	feasible   bool
	score      float64
}

func (p *plant) simulate(s solution) *outcome {
	o := &outcome{
		solar:   make([]float64, p.hours),
		wind:    make([]float64, p.hours),
		diesel:  make([]float64, p.hours),
		battery: make([]float64, p.hours),
		surplus: make([]float64, p.hours),
		unmet:   make([]float64, p.hours),
	}

	ren := make([]float64, p.hours)
	solarShare := make([]float64, p.hours)
	if p.profiles != nil {
		counts := mat.NewVecDense(len(p.renewables), nil)
		solarCounts := mat.NewVecDense(len(p.renewables), nil)
		for j, gi := range p.renewables {
			c := float64(s.gen[gi])
			counts.SetVec(j, c)
			if p.req.Generators[gi].Type == models.GeneratorSolar {
				solarCounts.SetVec(j, c)
			}
		}
		var total, solar mat.VecDense
		total.MulVec(p.profiles, counts)
		solar.MulVec(p.profiles, solarCounts)
		for h := range ren {
			ren[h] = total.AtVec(h)
			if ren[h] > 0 {
				solarShare[h] = solar.AtVec(h) / ren[h]
			}
		}
	}

	var capKWh, powerKW, eff, socMin float64
	for i, c := range s.bat {
		b := p.req.Batteries[i]
		w := float64(c) * b.CapacityKWh
		capKWh += w
		powerKW += float64(c) * b.MaxPowerKW
		eff += w * b.Efficiency
		socMin += w * b.SOCMin
	}
	if capKWh > 0 {
		eff /= capKWh
		socMin /= capKWh
	}
	if eff <= 0 {
		eff = 1
	}

	var dieselKW, variable float64
	for _, gi := range p.diesels {
		c := float64(s.gen[gi])
		g := p.req.Generators[gi]
		dieselKW += c * g.RatedPowerKW
		variable += c * g.RatedPowerKW * g.Costs.Variable
	}
	if dieselKW > 0 {
		variable /= dieselKW
	}

	soc := capKWh
	floor := capKWh * socMin
	fuelByYear := make([]float64, p.years)
	servedByYear := make([]float64, p.years)

	for h, d := range p.demand {
		r := ren[h]
		served := math.Min(r, d)
		o.solar[h] = served * solarShare[h]
		o.wind[h] = served - o.solar[h]

		if r >= d {
			excess := r - d
			charge := math.Min(math.Min(excess, powerKW), (capKWh-soc)/eff)
			soc += charge * eff
			o.surplus[h] = excess - charge
		} else {
			deficit := d - r
			discharge := math.Min(math.Min(deficit, powerKW), math.Max(soc-floor, 0))
			soc -= discharge
			deficit -= discharge
			o.battery[h] = discharge
			o.diesel[h] = math.Min(deficit, dieselKW)
			o.unmet[h] = deficit - o.diesel[h]
		}

		y := p.year[h]
		fuelByYear[y] += o.diesel[h] * variable * math.Pow(1+p.fuelEsc, float64(y))
		servedByYear[y] += d - o.unmet[h]
	}

	var fixed float64
	for i, c := range s.gen {
		g := p.req.Generators[i]
		fixed += float64(c) * (g.Costs.Annualized + g.Costs.OM)
		o.area += float64(c) * g.AreaM2
	}
	for i, c := range s.bat {
		b := p.req.Batteries[i]
		fixed += float64(c) * (b.Costs.Annualized + b.Costs.OM)
	}

	scale := p.annualize
	var rate float64
	if p.req.Config != nil {
		rate = p.req.Config.DiscountRate
	}
	var npvCost, npvEnergy float64
	for y := 0; y < p.years; y++ {
		df := math.Pow(1+rate, -float64(y+1))
		npvCost += (fixed + fuelByYear[y]*scale) * df
		npvEnergy += servedByYear[y] * scale * df
	}
	o.annualCost = fixed + floats.Sum(fuelByYear)*scale/float64(p.years)
	o.energy = floats.Sum(servedByYear) * scale / float64(p.years)

	if npvEnergy > 0 {
		o.lcoe = npvCost / npvEnergy
	} else {
		o.lcoe = math.Inf(1)
	}
	if total := floats.Sum(p.demand); total > 0 {
		o.lpsp = floats.Sum(o.unmet) / total
	}

	lpspExcess := math.Max(0, o.lpsp-p.lpspTarget)
	areaExcess := 0.0
	if p.areaLimit > 0 {
		areaExcess = math.Max(0, o.area-p.areaLimit) / p.areaLimit
	}
	o.feasible = lpspExcess == 0 && areaExcess == 0
	o.score = math.Min(o.lcoe, lcoeCap) + penalty*(lpspExcess+areaExcess)
	return o
}
