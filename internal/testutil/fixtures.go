package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/microgrid-sizing/backend/internal/inputs"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Default artifact names used by the fixtures.
const (
	InstanceFile   = "instance.json"
	ParametersFile = "parameters.json"
	DemandFile     = "demand.csv"
	ForecastFile   = "forecast.csv"
)

// DemandProfile is the hourly demand written by WriteInputs, in kW.
var DemandProfile = []float64{
	40, 38, 36, 35, 36, 42, 55, 70, 80, 82, 85, 88,
	90, 88, 86, 84, 88, 95, 110, 115, 105, 90, 70, 50,
}

// InstanceJSON is the instance record written by WriteInputs.
const InstanceJSON = `{
  "years": 10,
  "demand_covered": 1,
  "i_f": 0.1,
  "tlpsp": 5,
  "amax": 6000,
  "fuel_cost": 1.1,
  "htime": 1,
  "location": "ZNI-test"
}`

// ParametersJSON is the equipment catalogue written by WriteInputs.
const ParametersJSON = `{
  "generators": [
    {"id": "PV1", "type": "solar", "brand": "SunA", "rated_power_kw": 25, "area_m2": 120, "efficiency": 0.2},
    {"id": "WT1", "type": "wind", "brand": "WindCo", "rated_power_kw": 30, "area_m2": 400,
     "cut_in_speed": 3, "rated_speed": 12, "cut_out_speed": 25},
    {"id": "DG1", "type": "diesel", "brand": "DieselX", "rated_power_kw": 60, "area_m2": 10, "fuel_rate": 0.3}
  ],
  "batteries": [
    {"id": "B1", "brand": "CellCo", "capacity_kwh": 100, "max_power_kw": 40, "efficiency": 0.9, "soc_min": 0.2}
  ]
}`

// FiscalJSON, CostJSON and MultiyearJSON are the auxiliary tables written by
// WriteAuxiliary.
const (
	FiscalJSON = `{"income_tax_deduction": 0.5, "deduction_years": 15, "depreciation_years": 5,
  "vat": 0.19, "vat_exemption": true, "tariff_exemption": true}`
	CostJSON = `{
  "fuel_cost_per_liter": 1.1,
  "equipment": {
    "solar":   {"capex_per_unit": 1000, "om_fraction": 0.01, "replacement_fraction": 0.0, "lifetime_years": 25},
    "wind":    {"capex_per_unit": 1500, "om_fraction": 0.02, "replacement_fraction": 0.0, "lifetime_years": 20},
    "diesel":  {"capex_per_unit": 400,  "om_fraction": 0.05, "replacement_fraction": 0.8, "lifetime_years": 10},
    "battery": {"capex_per_unit": 300,  "om_fraction": 0.02, "replacement_fraction": 0.9, "lifetime_years": 8}
  }
}`
	MultiyearJSON = `{"demand_growth": 0.05, "fuel_escalation": 0.03, "degradation": 0.005}`
)

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// DemandCSV renders a demand profile as a t,demand CSV.
func DemandCSV(values []float64) string {
	var b strings.Builder
	b.WriteString("t,demand\n")
	for i, v := range values {
		fmt.Fprintf(&b, "%d,%g\n", i, v)
	}
	return b.String()
}

// ForecastCSV renders n hours of irradiance, wind speed and temperature.
func ForecastCSV(n int) string {
	var b strings.Builder
	b.WriteString("t,gh,w,t_ambt\n")
	for i := 0; i < n; i++ {
		h := i % 24
		gh := 0.0
		if h >= 6 && h <= 18 {
			gh = 900 * (1 - float64((h-12)*(h-12))/36)
		}
		fmt.Fprintf(&b, "%d,%g,%g,%g\n", i, gh, 4+float64(h%7), 24+float64(h%5))
	}
	return b.String()
}

// WriteInputs writes the four run artifacts into dir.
func WriteInputs(t *testing.T, dir string) inputs.Paths {
	t.Helper()
	return inputs.Paths{
		Instance:   WriteFile(t, dir, InstanceFile, InstanceJSON),
		Parameters: WriteFile(t, dir, ParametersFile, ParametersJSON),
		Demand:     WriteFile(t, dir, DemandFile, DemandCSV(DemandProfile)),
		Forecast:   WriteFile(t, dir, ForecastFile, ForecastCSV(len(DemandProfile))),
	}
}

// WriteAuxiliary writes the fiscal and cost tables, and the multiyear table
// when multiyear is set, into dir.
func WriteAuxiliary(t *testing.T, dir string, multiyear bool) inputs.Auxiliary {
	t.Helper()
	aux := inputs.Auxiliary{
		Fiscal:    WriteFile(t, dir, "fiscal_incentive.json", FiscalJSON),
		Cost:      WriteFile(t, dir, "parameters_cost.json", CostJSON),
		Multiyear: filepath.Join(dir, "multiyear.json"),
	}
	if multiyear {
		WriteFile(t, dir, "multiyear.json", MultiyearJSON)
	}
	return aux
}

// Sheet is one worksheet of a fixture workbook.
type Sheet struct {
	Name string
	Rows [][]any
}

// WriteWorkbook writes an OOXML workbook with the given sheets, in order.
func WriteWorkbook(t *testing.T, path string, sheets ...Sheet) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

// WriteKPIWorkbook writes a single-sheet label/value workbook.
func WriteKPIWorkbook(t *testing.T, path string, rows ...[]any) {
	t.Helper()
	WriteWorkbook(t, path, Sheet{Rows: rows})
}

// MustJSON encodes v or fails the test.
func MustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
