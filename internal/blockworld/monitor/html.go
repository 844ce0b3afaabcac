package monitor

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/banshee-data/blockworld/internal/blockworld/l4navmap"
	"github.com/banshee-data/blockworld/internal/blockworld/l6world"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// HTMLRenderer keeps an interactive page of the latest snapshot at path,
// rewriting it every Every-th snapshot.
type HTMLRenderer struct {
	mu     sync.Mutex
	path   string
	every  int
	frame  int
	writes int
}

// NewHTMLRenderer writes to path. every below 1 rewrites on every
// snapshot.
func NewHTMLRenderer(path string, every int) *HTMLRenderer {
	if every < 1 {
		every = 1
	}
	return &HTMLRenderer{path: path, every: every}
}

// Draw implements l6world.Visualizer.
func (r *HTMLRenderer) Draw(s l6world.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frame := r.frame
	r.frame++
	if frame%r.every != 0 {
		return
	}
	var buf bytes.Buffer
	if err := RenderHTML(&buf, s); err != nil {
		opsf("render %s: %v", r.path, err)
		return
	}
	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			opsf("create %s: %v", dir, err)
			return
		}
	}
	if err := os.WriteFile(r.path, buf.Bytes(), 0644); err != nil {
		opsf("write %s: %v", r.path, err)
		return
	}
	r.writes++
	tracef("wrote %s for t=%d", r.path, s.Timestamp)
}

// Writes returns how many times the page was written.
func (r *HTMLRenderer) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// RenderHTML writes a go-echarts scatter of s to w: one series per map
// content type, one for object centres and one for the robot.
func RenderHTML(w io.Writer, s l6world.Snapshot) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "BlockWorld", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "BlockWorld", Subtitle: fmt.Sprintf("t=%d origin=%d objects=%d", s.Timestamp, s.Origin, len(s.Objects))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (mm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (mm)", NameLocation: "middle", NameGap: 30}),
	)

	layers := cellLayers(s)
	for t := l4navmap.ContentType(0); t < l4navmap.NumContentTypes; t++ {
		pts := layers[t]
		if len(pts) == 0 {
			continue
		}
		data := make([]opts.ScatterData, 0, len(pts))
		for _, p := range pts {
			data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
		}
		c := contentColors[t]
		scatter.AddSeries(t.String(), data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)}))
	}

	fps := footprints(s)
	objects := make([]opts.ScatterData, 0, len(fps))
	for _, fp := range fps {
		objects = append(objects, opts.ScatterData{Name: fp.Label, Value: []interface{}{fp.Centre.X, fp.Centre.Y}, Symbol: "rect"})
	}
	scatter.AddSeries("objects", objects, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))
	scatter.AddSeries("robot", []opts.ScatterData{{
		Name:   "robot",
		Value:  []interface{}{s.Robot.Trans.X, s.Robot.Trans.Y},
		Symbol: "triangle",
	}}, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 16}))

	return scatter.Render(w)
}
