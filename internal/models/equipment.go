package models

// GeneratorType identifies the technology of a generation unit.
type GeneratorType string

const (
	GeneratorSolar  GeneratorType = "solar"
	GeneratorWind   GeneratorType = "wind"
	GeneratorDiesel GeneratorType = "diesel"
)

// Renewable reports whether the technology is non-dispatchable renewable.
func (t GeneratorType) Renewable() bool {
	return t == GeneratorSolar || t == GeneratorWind
}

// UnitCosts are the per-unit cost fields derived by the cost model.
type UnitCosts struct {
	Investment  float64 `json:"cost_up"`
	Annualized  float64 `json:"cost_annualized"`
	OM          float64 `json:"cost_om"`
	Replacement float64 `json:"cost_r"`
	Variable    float64 `json:"cost_variable"`
}

// Generator is a candidate generation unit read from the parameters file.
type Generator struct {
	ID           string        `json:"id"`
	Type         GeneratorType `json:"type"`
	Brand        string        `json:"brand"`
	RatedPowerKW float64       `json:"rated_power_kw"`
	AreaM2       float64       `json:"area_m2"`

	// Solar panel efficiency (fraction).
	Efficiency float64 `json:"efficiency,omitempty"`

	// Wind power curve, m/s.
	CutInSpeed  float64 `json:"cut_in_speed,omitempty"`
	RatedSpeed  float64 `json:"rated_speed,omitempty"`
	CutOutSpeed float64 `json:"cut_out_speed,omitempty"`

	// Diesel fuel consumption, litres per kWh.
	FuelRate float64 `json:"fuel_rate,omitempty"`

	// Optional overrides of the cost table.
	CapexPerKW    float64 `json:"capex_per_kw,omitempty"`
	LifetimeYears int     `json:"lifetime_years,omitempty"`

	Costs UnitCosts `json:"costs"`
}

// Battery is a candidate storage unit read from the parameters file.
type Battery struct {
	ID          string  `json:"id"`
	Brand       string  `json:"brand"`
	CapacityKWh float64 `json:"capacity_kwh"`
	MaxPowerKW  float64 `json:"max_power_kw"`
	Efficiency  float64 `json:"efficiency"`
	SOCMin      float64 `json:"soc_min"`

	CapexPerKWh   float64 `json:"capex_per_kwh,omitempty"`
	LifetimeYears int     `json:"lifetime_years,omitempty"`

	Costs UnitCosts `json:"costs"`
}
