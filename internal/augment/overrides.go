// Package augment merges request scalars into a run's configuration and
// derives per-unit equipment costs.
package augment

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/microgrid-sizing/backend/internal/models"
)

// Form field names of the scalar overrides.
const (
	FieldYears         = "years"
	FieldDemandCovered = "demand_covered"
	FieldDiscountRate  = "discount_rate"
	FieldLPSPLimit     = "lpsp_limit"
)

// Overrides are the caller-supplied scalars that replace the instance
// record's values.
type Overrides struct {
	Years         int     `json:"years"`
	DemandCovered float64 `json:"demand_covered"`
	DiscountRate  float64 `json:"discount_rate"`
	LPSPLimit     int     `json:"lpsp_limit"`
}

// DefaultOverrides are used for fields the request leaves out.
func DefaultOverrides() Overrides {
	return Overrides{Years: 20, DemandCovered: 0.6, DiscountRate: 0.08, LPSPLimit: 10}
}

// ParseOverrides coerces raw form values. Absent or blank fields take the
// value from defaults.
func ParseOverrides(raw map[string]string, defaults Overrides) (Overrides, error) {
	o := defaults
	var err error

	if v, ok := present(raw, FieldYears); ok {
		if o.Years, err = parseInt(FieldYears, v); err != nil {
			return o, err
		}
	}
	if v, ok := present(raw, FieldDemandCovered); ok {
		if o.DemandCovered, err = parseFloat(FieldDemandCovered, v); err != nil {
			return o, err
		}
	}
	if v, ok := present(raw, FieldDiscountRate); ok {
		if o.DiscountRate, err = parseFloat(FieldDiscountRate, v); err != nil {
			return o, err
		}
	}
	if v, ok := present(raw, FieldLPSPLimit); ok {
		if o.LPSPLimit, err = parseInt(FieldLPSPLimit, v); err != nil {
			return o, err
		}
	}
	return o, nil
}

// Validate checks the value ranges.
func (o Overrides) Validate() error {
	if o.Years < 1 {
		return fmt.Errorf("%w: %s must be >= 1, got %d", models.ErrConfig, FieldYears, o.Years)
	}
	if math.IsNaN(o.DemandCovered) || o.DemandCovered < 0 || o.DemandCovered > 1 {
		return fmt.Errorf("%w: %s must be in [0,1], got %v", models.ErrConfig, FieldDemandCovered, o.DemandCovered)
	}
	if math.IsNaN(o.DiscountRate) || math.IsInf(o.DiscountRate, 0) || o.DiscountRate <= -1 {
		return fmt.Errorf("%w: %s must be > -1, got %v", models.ErrConfig, FieldDiscountRate, o.DiscountRate)
	}
	if o.LPSPLimit < 0 {
		return fmt.Errorf("%w: %s must be >= 0, got %d", models.ErrConfig, FieldLPSPLimit, o.LPSPLimit)
	}
	return nil
}

func present(raw map[string]string, key string) (string, bool) {
	v, ok := raw[key]
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func parseInt(field, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", models.ErrConfig, field, v)
	}
	return n, nil
}

func parseFloat(field, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %q", models.ErrConfig, field, v)
	}
	return f, nil
}
