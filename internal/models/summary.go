package models

// Summary keys extracted from optimizer reports.
const (
	KeyLCOE                    = "lcoe"
	KeyArea                    = "area"
	KeyLPSPMean                = "lpsp_mean"
	KeyMeanSurplus             = "mean_surplus"
	KeyMeanDieselGeneration    = "mean_diesel_generation"
	KeyMeanEolicGeneration     = "mean_eolic_generation"
	KeyMeanSolarGeneration     = "mean_solar_generation"
	KeyMeanBatteriesGeneration = "mean_batteries_generation"
)

// SummaryKeys lists every key a ReportSummary may contain.
var SummaryKeys = []string{
	KeyLCOE,
	KeyArea,
	KeyLPSPMean,
	KeyMeanSurplus,
	KeyMeanDieselGeneration,
	KeyMeanEolicGeneration,
	KeyMeanSolarGeneration,
	KeyMeanBatteriesGeneration,
}

// ReportSummary maps summary keys to the first numeric value found for them.
// Missing keys are absent, never defaulted.
type ReportSummary map[string]float64

// Has reports whether key has been set.
func (s ReportSummary) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// SetOnce stores v under key unless key is already present. It returns true
// when the value was stored.
func (s ReportSummary) SetOnce(key string, v float64) bool {
	if s.Has(key) {
		return false
	}
	s[key] = v
	return true
}
