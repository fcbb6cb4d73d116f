package view

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"sync"
)

// Renderer projects a ViewModel to HTML. Output depends only on the model
// passed in, so rendering identical data twice yields identical markup.
type Renderer struct {
	tmpl   *template.Template
	width  int
	height int

	mu     sync.Mutex
	cached chartCache
}

type chartCache struct {
	seq    uint64
	valid  bool
	charts []chartView
}

type chartView struct {
	Name string
	SVG  template.HTML
	Note string
}

// NewRenderer parses the page templates. Charts are drawn at width x height pixels.
func NewRenderer(width, height int) *Renderer {
	r := &Renderer{width: width, height: height}
	r.tmpl = template.Must(template.New("page").Funcs(template.FuncMap{
		"demandCharts": r.demandCharts,
	}).Parse(pageTemplate))
	template.Must(r.tmpl.New("regions").Parse(regionTemplates))
	return r
}

// RenderPage writes the full dashboard document.
func (r *Renderer) RenderPage(w io.Writer, vm ViewModel) error {
	return r.tmpl.ExecuteTemplate(w, "page", vm)
}

// RenderRegion writes the inner HTML of one region.
func (r *Renderer) RenderRegion(w io.Writer, vm ViewModel, region Region) error {
	var data any
	switch region {
	case RegionNextStep:
		data = vm.NextStep
	case RegionSimTime:
		data = vm.SimTime
	case RegionAuctions:
		data = vm.Auctions
	case RegionBalances:
		data = vm.Balances
	case RegionDemand:
		data = vm.Demand
	default:
		return fmt.Errorf("unknown region %q", region)
	}
	return r.tmpl.ExecuteTemplate(w, string(region), data)
}

// RegionHTML is RenderRegion into a string.
func (r *Renderer) RegionHTML(vm ViewModel, region Region) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderRegion(&buf, vm, region); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// demandCharts renders the three demand columns, reusing the last drawing
// while the demand region has not moved to a new tick.
func (r *Renderer) demandCharts(p DemandPanel) []chartView {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached.valid && r.cached.seq == p.Status.Seq {
		return r.cached.charts
	}

	cols := p.Series.Columns()
	charts := make([]chartView, 0, len(cols))
	for _, col := range cols {
		cv := chartView{Name: col.Name}
		var buf bytes.Buffer
		err := RenderLineChart(&buf, col, r.width, r.height)
		switch {
		case errors.Is(err, ErrNotEnoughData):
			cv.Note = "Waiting for data"
		case err != nil:
			cv.Note = "Chart unavailable: " + err.Error()
		default:
			// go-chart output contains only numbers and our column names
			cv.SVG = template.HTML(buf.String())
		}
		charts = append(charts, cv)
	}

	r.cached = chartCache{seq: p.Status.Seq, valid: true, charts: charts}
	return charts
}
