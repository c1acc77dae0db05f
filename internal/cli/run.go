package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/microgrid-sizing/backend/internal/api"
	"github.com/microgrid-sizing/backend/internal/augment"
	"github.com/microgrid-sizing/backend/internal/ingest"
	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/microgrid-sizing/backend/internal/pipeline"
)

type runFlags struct {
	mode       string
	instance   string
	parameters string
	demand     string
	forecast   string
	format     string
	scalars    map[string]string
}

func newRunCommand(configPath *string) *cobra.Command {
	f := &runFlags{scalars: map[string]string{}}
	var (
		years         string
		demandCovered string
		discountRate  string
		lpspLimit     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the optimizer once against local input files",
		Example: `  microgrid run --instance instance.json --parameters parameters.json \
    --demand demand.csv --forecast forecast.csv --years 15 --demand-covered 0.8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for field, v := range map[string]string{
				augment.FieldYears:         years,
				augment.FieldDemandCovered: demandCovered,
				augment.FieldDiscountRate:  discountRate,
				augment.FieldLPSPLimit:     lpspLimit,
			} {
				if v != "" {
					f.scalars[field] = v
				}
			}

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()
			return runOnce(cmd, a.service, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.mode, "mode", "m", string(models.ModeDeterministic), "workflow: deterministic or multiyear")
	fl.StringVar(&f.instance, "instance", "", "instance JSON file")
	fl.StringVar(&f.parameters, "parameters", "", "equipment parameters JSON file")
	fl.StringVar(&f.demand, "demand", "", "demand CSV or XLSX file")
	fl.StringVar(&f.forecast, "forecast", "", "weather forecast CSV or XLSX file")
	fl.StringVar(&years, "years", "", "project lifetime in years (config default when empty)")
	fl.StringVar(&demandCovered, "demand-covered", "", "fraction of the demand to cover, 0 to 1")
	fl.StringVar(&discountRate, "discount-rate", "", "discount rate")
	fl.StringVar(&lpspLimit, "lpsp-limit", "", "loss of power supply probability limit")
	fl.StringVarP(&f.format, "output", "o", FormatTable, "output format: table, markdown or json")
	for _, name := range []string{"instance", "parameters", "demand", "forecast"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runOnce(cmd *cobra.Command, svc *pipeline.Service, f *runFlags) error {
	req := &pipeline.Request{Mode: models.Mode(f.mode), Scalars: f.scalars}

	targets := []struct {
		field string
		path  string
		dst   *ingest.Artifact
	}{
		{api.FieldInstance, f.instance, &req.Instance},
		{api.FieldParameters, f.parameters, &req.Parameters},
		{api.FieldDemand, f.demand, &req.Demand},
		{api.FieldForecast, f.forecast, &req.Forecast},
	}
	for _, t := range targets {
		file, err := os.Open(t.path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", t.field, err)
		}
		defer file.Close()
		*t.dst = ingest.Artifact{Field: t.field, Name: filepath.Base(t.path), Body: file}
	}

	resp, err := svc.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printResponse(cmd.OutOrStdout(), resp, f.format)
}

func printResponse(out io.Writer, resp *pipeline.Response, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case FormatTable, FormatMarkdown:
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	fmt.Fprintln(out, resp.Message)
	fmt.Fprintf(out, "Run: %s\n\n", resp.RunID)
	fmt.Fprintln(out, summaryTable(resp.Summary, format))
	fmt.Fprintln(out)
	fmt.Fprintln(out, configTable(resp.InstanceDataUsed, format))
	fmt.Fprintln(out)
	fmt.Fprintln(out, reportsTable(resp, format))
	return nil
}
