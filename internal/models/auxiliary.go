package models

// FiscalData is the fiscal incentive table (fiscal_incentive.json).
type FiscalData struct {
	// Fraction of the investment deductible from income tax.
	IncomeTaxDeduction float64 `json:"income_tax_deduction"`
	// Years over which the deduction is spread.
	DeductionYears int `json:"deduction_years"`
	// Accelerated depreciation horizon, years.
	DepreciationYears int `json:"depreciation_years"`
	// VAT rate and whether renewable equipment is exempt.
	VAT          float64 `json:"vat"`
	VATExemption bool    `json:"vat_exemption"`
	// Import duty exemption for renewable equipment.
	TariffExemption bool `json:"tariff_exemption"`
}

// CostEntry holds the cost parameters for one equipment type.
type CostEntry struct {
	// Capital cost per kW (generators) or per kWh (batteries).
	CapexPerUnit        float64 `json:"capex_per_unit"`
	OMFraction          float64 `json:"om_fraction"`
	ReplacementFraction float64 `json:"replacement_fraction"`
	LifetimeYears       int     `json:"lifetime_years"`
}

// CostData is the cost parameter table (parameters_cost.json).
type CostData struct {
	Equipment        map[string]CostEntry `json:"equipment"`
	FuelCostPerLiter float64              `json:"fuel_cost_per_liter"`
}

// MultiyearData is the multiyear parameter table (multiyear.json).
type MultiyearData struct {
	// Yearly demand growth rate (fraction).
	DemandGrowth float64 `json:"demand_growth"`
	// Yearly fuel price escalation (fraction).
	FuelEscalation float64 `json:"fuel_escalation"`
	// Yearly renewable output degradation (fraction).
	Degradation float64 `json:"degradation"`
}
