package augment

import (
	"fmt"
	"math"

	"github.com/microgrid-sizing/backend/internal/inputs"
	"github.com/microgrid-sizing/backend/internal/models"
)

// BatteryCostKey is the cost table entry used for storage units.
const BatteryCostKey = "battery"

// AnnuityCostModel derives unit costs from the cost table. Capital cost is
// annualized with the capital recovery factor over the unit lifetime at the
// run's discount rate; O&M is a yearly fraction of the investment and the
// replacement cost is charged per replacement event.
type AnnuityCostModel struct{}

// CRF returns the capital recovery factor i(1+i)^n / ((1+i)^n - 1), or 1/n
// when i is zero.
func CRF(i float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	if i == 0 {
		return 1 / float64(n)
	}
	p := math.Pow(1+i, float64(n))
	return i * p / (p - 1)
}

func (AnnuityCostModel) Derive(in *inputs.Inputs) error {
	i := in.Config.DiscountRate

	for k := range in.Generators {
		g := &in.Generators[k]
		entry, ok := in.Cost.Equipment[string(g.Type)]
		if !ok {
			return fmt.Errorf("%w: cost table has no %q entry", models.ErrMissingAuxiliaryConfig, g.Type)
		}
		capex := pick(g.CapexPerKW, entry.CapexPerUnit)
		life := pickInt(g.LifetimeYears, entry.LifetimeYears)
		if life <= 0 {
			return fmt.Errorf("%w: generator %s has no lifetime", models.ErrConfig, g.ID)
		}

		g.Costs = unitCosts(capex*g.RatedPowerKW, entry, i, life)
		if g.Type == models.GeneratorDiesel {
			g.Costs.Variable = g.FuelRate * in.Cost.FuelCostPerLiter
		}
	}

	for k := range in.Batteries {
		b := &in.Batteries[k]
		entry, ok := in.Cost.Equipment[BatteryCostKey]
		if !ok {
			return fmt.Errorf("%w: cost table has no %q entry", models.ErrMissingAuxiliaryConfig, BatteryCostKey)
		}
		capex := pick(b.CapexPerKWh, entry.CapexPerUnit)
		life := pickInt(b.LifetimeYears, entry.LifetimeYears)
		if life <= 0 {
			return fmt.Errorf("%w: battery %s has no lifetime", models.ErrConfig, b.ID)
		}
		b.Costs = unitCosts(capex*b.CapacityKWh, entry, i, life)
	}
	return nil
}

func unitCosts(investment float64, entry models.CostEntry, i float64, life int) models.UnitCosts {
	return models.UnitCosts{
		Investment:  investment,
		Annualized:  investment * CRF(i, life),
		OM:          investment * entry.OMFraction,
		Replacement: investment * entry.ReplacementFraction,
	}
}

func pick(override, table float64) float64 {
	if override > 0 {
		return override
	}
	return table
}

func pickInt(override, table int) int {
	if override > 0 {
		return override
	}
	return table
}
