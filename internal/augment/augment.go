package augment

import (
	"fmt"

	"github.com/microgrid-sizing/backend/internal/inputs"
	"github.com/microgrid-sizing/backend/internal/models"
	"gonum.org/v1/gonum/floats"
)

// CostDeriver populates per-unit cost fields on the equipment of a run. It
// sees the finalized config and the already scaled demand.
type CostDeriver interface {
	Derive(in *inputs.Inputs) error
}

// CostDeriverFunc adapts a function to CostDeriver.
type CostDeriverFunc func(in *inputs.Inputs) error

func (f CostDeriverFunc) Derive(in *inputs.Inputs) error { return f(in) }

// Apply writes the overrides into the config record, scales demand by the
// covered fraction and then derives equipment costs, in that order.
func Apply(in *inputs.Inputs, o Overrides, costs CostDeriver) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if in.Config == nil {
		in.Config = &models.InstanceConfig{}
	}

	in.Config.Years = o.Years
	in.Config.DemandCovered = o.DemandCovered
	in.Config.DiscountRate = o.DiscountRate
	in.Config.LPSPLimit = o.LPSPLimit
	if err := in.Config.Validate(); err != nil {
		return err
	}

	if err := ScaleDemand(in.Demand, in.Config.DemandCovered); err != nil {
		return err
	}

	if costs == nil {
		return nil
	}
	if err := costs.Derive(in); err != nil {
		return fmt.Errorf("deriving equipment costs: %w", err)
	}
	return nil
}

// ScaleDemand multiplies the demand column by factor in place.
func ScaleDemand(s *models.Series, factor float64) error {
	col := s.Column(models.ColumnDemand)
	if col == nil {
		return fmt.Errorf("%w: series has no %q column", models.ErrInputFormat, models.ColumnDemand)
	}
	floats.Scale(factor, col)
	return nil
}
