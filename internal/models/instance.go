package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Keys of the instance record that have typed fields. The discount rate and
// the LPSP limit keep the optimizer's own key names.
const (
	InstanceKeyYears         = "years"
	InstanceKeyDemandCovered = "demand_covered"
	InstanceKeyDiscountRate  = "i_f"
	InstanceKeyLPSPLimit     = "tlpsp"
)

// InstanceConfig is the optimizer configuration record. Fields without a
// typed counterpart are kept in Extra and round-trip unchanged.
type InstanceConfig struct {
	Years         int
	DemandCovered float64
	DiscountRate  float64
	LPSPLimit     int
	Extra         map[string]any
}

// Validate checks the typed fields.
func (c *InstanceConfig) Validate() error {
	if c.Years < 1 {
		return fmt.Errorf("%w: years must be >= 1, got %d", ErrConfig, c.Years)
	}
	if math.IsNaN(c.DemandCovered) || c.DemandCovered < 0 || c.DemandCovered > 1 {
		return fmt.Errorf("%w: demand_covered must be in [0,1], got %v", ErrConfig, c.DemandCovered)
	}
	if math.IsNaN(c.DiscountRate) || math.IsInf(c.DiscountRate, 0) || c.DiscountRate <= -1 {
		return fmt.Errorf("%w: discount_rate must be > -1, got %v", ErrConfig, c.DiscountRate)
	}
	if c.LPSPLimit < 0 {
		return fmt.Errorf("%w: lpsp_limit must be >= 0, got %d", ErrConfig, c.LPSPLimit)
	}
	return nil
}

// Float returns a numeric Extra field.
func (c *InstanceConfig) Float(key string) (float64, bool) {
	v, ok := c.Extra[key].(float64)
	return v, ok
}

// Clone returns a copy whose Extra map can be mutated independently.
func (c *InstanceConfig) Clone() *InstanceConfig {
	out := *c
	out.Extra = make(map[string]any, len(c.Extra))
	for k, v := range c.Extra {
		out.Extra[k] = v
	}
	return &out
}

// Map flattens the record into a single mapping, typed keys included.
func (c InstanceConfig) Map() map[string]any {
	m := make(map[string]any, len(c.Extra)+4)
	for k, v := range c.Extra {
		m[k] = v
	}
	m[InstanceKeyYears] = c.Years
	m[InstanceKeyDemandCovered] = c.DemandCovered
	m[InstanceKeyDiscountRate] = c.DiscountRate
	m[InstanceKeyLPSPLimit] = c.LPSPLimit
	return m
}

// MarshalJSON encodes the record as one flat object.
func (c InstanceConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

// UnmarshalJSON decodes a flat object, pulling the typed keys out of it.
// Typed keys may be absent; they are filled in later by the overrides.
func (c *InstanceConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Extra = make(map[string]any, len(raw))
	for k, v := range raw {
		var err error
		switch k {
		case InstanceKeyYears:
			c.Years, err = asInt(k, v)
		case InstanceKeyDemandCovered:
			c.DemandCovered, err = asFloat(k, v)
		case InstanceKeyDiscountRate:
			c.DiscountRate, err = asFloat(k, v)
		case InstanceKeyLPSPLimit:
			c.LPSPLimit, err = asInt(k, v)
		default:
			c.Extra[k] = v
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func asFloat(key string, v any) (float64, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrConfig, key, v)
	}
	return f, nil
}

func asInt(key string, v any) (int, error) {
	f, err := asFloat(key, v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrConfig, key, f)
	}
	return int(f), nil
}
