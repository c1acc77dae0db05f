// Package summary extracts the KPI summary from optimizer report workbooks.
package summary

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/microgrid-sizing/backend/internal/logger"
	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/microgrid-sizing/backend/internal/storage"
)

// Extractor builds a ReportSummary from the reports in a directory.
type Extractor interface {
	Extract(ctx context.Context, dir string) (models.ReportSummary, error)
}

// Labels maps normalized report labels to summary keys.
var Labels = map[string]string{
	"lcoe":                      models.KeyLCOE,
	"area":                      models.KeyArea,
	"lpsp mean":                 models.KeyLPSPMean,
	"mean surplus":              models.KeyMeanSurplus,
	"mean diesel generation":    models.KeyMeanDieselGeneration,
	"mean eolic generation":     models.KeyMeanEolicGeneration,
	"mean solar generation":     models.KeyMeanSolarGeneration,
	"mean batteries generation": models.KeyMeanBatteriesGeneration,
}

// SpreadsheetExtractor scans label/value rows of every spreadsheet in a
// directory. Files are read in name order and the first numeric value found
// for a key wins. Scanning stops after the first file that leaves both lcoe
// and area set. Unreadable files are logged and skipped.
type SpreadsheetExtractor struct {
	registry *Registry
	log      logger.Logger
}

// NewSpreadsheetExtractor creates an extractor with the default registry.
func NewSpreadsheetExtractor(log logger.Logger) *SpreadsheetExtractor {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &SpreadsheetExtractor{registry: NewRegistry(), log: log}
}

// Registry exposes the reader registry for extension.
func (e *SpreadsheetExtractor) Registry() *Registry {
	return e.registry
}

func (e *SpreadsheetExtractor) Extract(ctx context.Context, dir string) (models.ReportSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && !storage.IsStaging(entry.Name()) && e.registry.Handles(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := models.ReportSummary{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		path := filepath.Join(dir, name)
		reader, err := e.registry.Find(path)
		if err != nil {
			e.log.Warnf("skipping report %s: %v", name, err)
			continue
		}
		tables, err := reader.ReadTables(path)
		if err != nil {
			e.log.Warnf("skipping report %s: %v", name, err)
			continue
		}

		for _, rows := range tables {
			scanRows(rows, out)
		}
		if out.Has(models.KeyLCOE) && out.Has(models.KeyArea) {
			break
		}
	}
	return out, nil
}

func scanRows(rows [][]string, out models.ReportSummary) {
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		label := NormalizeLabel(row[0])
		if label == "" {
			continue
		}
		key, ok := Labels[label]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out.SetOnce(key, v)
	}
}

// NormalizeLabel trims, lower-cases and collapses inner whitespace.
func NormalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
