// Package inputs reads the uploaded run artifacts and the server-side
// auxiliary tables into typed values the optimizer can consume.
package inputs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/microgrid-sizing/backend/internal/models"
)

// Paths locates the four uploaded artifacts of a run.
type Paths struct {
	Instance   string
	Parameters string
	Demand     string
	Forecast   string
}

// List returns the four paths in upload order.
func (p Paths) List() []string {
	return []string{p.Instance, p.Parameters, p.Demand, p.Forecast}
}

// Auxiliary locates the server-side tables. Multiyear is only required by the
// multiyear workflow.
type Auxiliary struct {
	Fiscal    string
	Cost      string
	Multiyear string
}

// Inputs is everything the optimizer needs for one run.
type Inputs struct {
	Demand     *models.Series
	Forecast   *models.Series
	Generators []models.Generator
	Batteries  []models.Battery
	Config     *models.InstanceConfig
	Fiscal     models.FiscalData
	Cost       models.CostData
	Multiyear  *models.MultiyearData
}

// Parameters is the equipment catalogue uploaded as parameters_file.
type Parameters struct {
	Generators []models.Generator `json:"generators"`
	Batteries  []models.Battery   `json:"batteries"`
}

// CheckAuxiliary returns ErrMissingAuxiliaryConfig naming every required
// table that does not exist. It reads nothing, so it can run before any
// uploaded data is parsed.
func CheckAuxiliary(aux Auxiliary, mode models.Mode) error {
	required := []string{aux.Fiscal, aux.Cost}
	if mode == models.ModeMultiyear {
		required = append(required, aux.Multiyear)
	}

	var missing []string
	for _, p := range required {
		if p == "" {
			missing = append(missing, "(unset)")
			continue
		}
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", models.ErrMissingAuxiliaryConfig, missing)
	}
	return nil
}

// Read loads a run's inputs. The multiyear table is read only for
// ModeMultiyear.
func Read(p Paths, aux Auxiliary, mode models.Mode) (*Inputs, error) {
	if err := CheckAuxiliary(aux, mode); err != nil {
		return nil, err
	}

	in := &Inputs{}
	var err error

	var fiscal models.FiscalData
	if err := readAuxJSON(aux.Fiscal, &fiscal); err != nil {
		return nil, err
	}
	in.Fiscal = fiscal

	var cost models.CostData
	if err := readAuxJSON(aux.Cost, &cost); err != nil {
		return nil, err
	}
	in.Cost = cost

	if mode == models.ModeMultiyear {
		var my models.MultiyearData
		if err := readAuxJSON(aux.Multiyear, &my); err != nil {
			return nil, err
		}
		in.Multiyear = &my
	}

	if in.Config, err = ReadInstance(p.Instance); err != nil {
		return nil, err
	}

	params, err := ReadParameters(p.Parameters)
	if err != nil {
		return nil, err
	}
	in.Generators = params.Generators
	in.Batteries = params.Batteries

	if in.Demand, err = ReadSeries(p.Demand); err != nil {
		return nil, err
	}
	if !in.Demand.Has(models.ColumnDemand) {
		return nil, fmt.Errorf("%w: %s has no %q column", models.ErrInputFormat, p.Demand, models.ColumnDemand)
	}
	if in.Forecast, err = ReadSeries(p.Forecast); err != nil {
		return nil, err
	}
	if in.Forecast.Len() < in.Demand.Len() {
		return nil, fmt.Errorf("%w: forecast has %d samples, demand has %d",
			models.ErrInputFormat, in.Forecast.Len(), in.Demand.Len())
	}

	return in, nil
}

// ReadInstance decodes the instance file into a config record.
func ReadInstance(path string) (*models.InstanceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading instance file: %w", err)
	}
	cfg := &models.InstanceConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		if errors.Is(err, models.ErrConfig) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: instance file: %v", models.ErrInputFormat, err)
	}
	return cfg, nil
}

// ReadParameters decodes the equipment catalogue.
func ReadParameters(path string) (*Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading parameters file: %w", err)
	}
	params := &Parameters{}
	if err := json.Unmarshal(data, params); err != nil {
		return nil, fmt.Errorf("%w: parameters file: %v", models.ErrInputFormat, err)
	}
	if len(params.Generators) == 0 && len(params.Batteries) == 0 {
		return nil, fmt.Errorf("%w: parameters file lists no equipment", models.ErrInputFormat)
	}
	for i, g := range params.Generators {
		switch g.Type {
		case models.GeneratorSolar, models.GeneratorWind, models.GeneratorDiesel:
		default:
			return nil, fmt.Errorf("%w: generator %d has unknown type %q", models.ErrInputFormat, i, g.Type)
		}
		if g.ID == "" {
			params.Generators[i].ID = fmt.Sprintf("%s-%d", g.Type, i+1)
		}
	}
	for i, b := range params.Batteries {
		if b.ID == "" {
			params.Batteries[i].ID = fmt.Sprintf("battery-%d", i+1)
		}
	}
	return params, nil
}

// A malformed auxiliary table is a deployment fault, not a client error.
func readAuxJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", models.ErrMissingAuxiliaryConfig, path)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
