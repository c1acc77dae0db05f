package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/microgrid-sizing/backend/internal/pipeline"
)

// Output formats of the run command.
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

func newWriter() table.Writer {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	return w
}

func render(w table.Writer, format string) string {
	if format == FormatMarkdown {
		return w.RenderMarkdown()
	}
	return w.Render()
}

// summaryTable lists the KPIs in their canonical order. Keys missing from
// the summary are shown as "-".
func summaryTable(s models.ReportSummary, format string) string {
	w := newWriter()
	w.AppendHeader(table.Row{"KPI", "Value"})
	for _, key := range models.SummaryKeys {
		v, ok := s[key]
		if !ok {
			w.AppendRow(table.Row{key, "-"})
			continue
		}
		w.AppendRow(table.Row{key, strconv.FormatFloat(v, 'g', 6, 64)})
	}
	w.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	return render(w, format)
}

func reportsTable(resp *pipeline.Response, format string) string {
	w := newWriter()
	w.AppendHeader(table.Row{"#", "Report"})
	for i, name := range resp.Reports {
		w.AppendRow(table.Row{i + 1, name})
	}
	if len(resp.Reports) == 0 {
		w.AppendRow(table.Row{"", "(none)"})
	}
	return render(w, format)
}

func configTable(cfg map[string]any, format string) string {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := newWriter()
	w.AppendHeader(table.Row{"Parameter", "Value"})
	for _, k := range keys {
		w.AppendRow(table.Row{k, fmt.Sprint(cfg[k])})
	}
	w.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: 60}})
	return render(w, format)
}
