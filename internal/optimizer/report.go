package optimizer

import (
	"fmt"
	"html/template"
	"math"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/stat"
)

const (
	summarySheet  = "Summary"
	dispatchSheet = "Dispatch"
)

// writeReport writes the KPI workbook: a label/value Summary sheet and the
// hourly dispatch.
func writeReport(path string, p *plant, o *outcome) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	kpis := [][]any{
		{"LCOE", finite(o.lcoe)},
		{"Area", o.area},
		{"LPSP Mean", o.lpsp},
		{"Mean Surplus", stat.Mean(o.surplus, nil)},
		{"Mean Diesel Generation", stat.Mean(o.diesel, nil)},
		{"Mean Eolic Generation", stat.Mean(o.wind, nil)},
		{"Mean Solar Generation", stat.Mean(o.solar, nil)},
		{"Mean Batteries Generation", stat.Mean(o.battery, nil)},
		{"Annual Cost", o.annualCost},
		{"Feasible", o.feasible},
	}
	if err := setRows(f, summarySheet, kpis); err != nil {
		return err
	}

	if _, err := f.NewSheet(dispatchSheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(dispatchSheet)
	if err != nil {
		return err
	}
	header := []any{"t", "demand", "solar", "wind", "diesel", "batteries", "surplus", "unmet", "year"}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for h := 0; h < p.hours; h++ {
		cell, err := excelize.CoordinatesToCellName(1, h+2)
		if err != nil {
			return err
		}
		row := []any{h, p.demand[h], o.solar[h], o.wind[h], o.diesel[h], o.battery[h], o.surplus[h], o.unmet[h], p.year[h]}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// Spreadsheet cells cannot hold infinities.
func finite(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "n/a"
	}
	return v
}

type plotSeries struct {
	Name   string
	Color  string
	Points string
}

type plotData struct {
	Title  string
	Width  int
	Height int
	Series []plotSeries
	Max    string
}

var plotTemplate = template.Must(template.New("plot").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h3>{{.Title}}</h3>
<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}">
<rect width="100%" height="100%" fill="white" stroke="#ccc"/>
{{range .Series}}<polyline fill="none" stroke="{{.Color}}" stroke-width="1.5" points="{{.Points}}"><title>{{.Name}}</title></polyline>
{{end}}</svg>
<p>{{range .Series}}<span style="color:{{.Color}}">&#9632; {{.Name}}</span> {{end}} (max {{.Max}} kW)</p>
</body>
</html>
`))

// writePlot writes an HTML line chart of the hourly dispatch.
func writePlot(path string, p *plant, o *outcome) error {
	const width, height = 960, 360

	series := []struct {
		name, color string
		values      []float64
	}{
		{"demand", "black", p.demand},
		{"solar", "orange", o.solar},
		{"wind", "steelblue", o.wind},
		{"diesel", "brown", o.diesel},
		{"batteries", "green", o.battery},
	}

	peak := 0.0
	for _, s := range series {
		for _, v := range s.values {
			peak = math.Max(peak, v)
		}
	}
	if peak == 0 {
		peak = 1
	}

	data := plotData{
		Title:  "Microgrid dispatch",
		Width:  width,
		Height: height,
		Max:    fmt.Sprintf("%.1f", peak),
	}
	step := float64(width) / float64(max(p.hours-1, 1))
	for _, s := range series {
		var b strings.Builder
		for h, v := range s.values {
			fmt.Fprintf(&b, "%.1f,%.1f ", float64(h)*step, float64(height)*(1-v/peak))
		}
		data.Series = append(data.Series, plotSeries{Name: s.name, Color: s.color, Points: strings.TrimSpace(b.String())})
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := plotTemplate.Execute(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
