package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"github.com/banshee-data/blockworld/internal/blockworld/l4navmap"
	"github.com/banshee-data/blockworld/internal/blockworld/l6world"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// PNGRenderer writes one top-down PNG of the memory map, object footprints
// and robot for every Every-th snapshot it is given.
type PNGRenderer struct {
	mu     sync.Mutex
	dir    string
	every  int
	size   vg.Length
	frame  int
	files  []string
	failed int
}

// NewPNGRenderer renders into dir, creating it on the first write. every
// below 1 draws every snapshot.
func NewPNGRenderer(dir string, every int) *PNGRenderer {
	if every < 1 {
		every = 1
	}
	return &PNGRenderer{dir: dir, every: every, size: 8 * vg.Inch}
}

// Draw implements l6world.Visualizer.
func (r *PNGRenderer) Draw(s l6world.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frame := r.frame
	r.frame++
	if frame%r.every != 0 {
		return
	}
	path := filepath.Join(r.dir, fmt.Sprintf("tick_%06d_t%d.png", frame, s.Timestamp))
	if err := r.write(s, path); err != nil {
		r.failed++
		opsf("render %s: %v", path, err)
		return
	}
	r.files = append(r.files, path)
	diagf("wrote %s", path)
}

// Files returns the PNGs written so far.
func (r *PNGRenderer) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files...)
}

// Failures returns how many snapshots could not be written.
func (r *PNGRenderer) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

func (r *PNGRenderer) write(s l6world.Snapshot, path string) error {
	p, err := PlotSnapshot(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", r.dir, err)
	}
	return p.Save(r.size, r.size, path)
}

// PlotSnapshot builds the top-down plot of s.
func PlotSnapshot(s l6world.Snapshot) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("BlockWorld t=%d origin=%d", s.Timestamp, s.Origin)
	p.X.Label.Text = "X (mm)"
	p.Y.Label.Text = "Y (mm)"
	p.Add(plotter.NewGrid())

	layers := cellLayers(s)
	for t := l4navmap.ContentType(0); t < l4navmap.NumContentTypes; t++ {
		pts := layers[t]
		if len(pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(xys(pts))
		if err != nil {
			return nil, fmt.Errorf("%s cells: %w", t, err)
		}
		sc.GlyphStyle.Color = contentColors[t]
		sc.GlyphStyle.Shape = draw.BoxGlyph{}
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add(t.String(), sc)
		tracef("t=%d %s: %d cells", s.Timestamp, t, len(pts))
	}

	for _, fp := range footprints(s) {
		l, err := plotter.NewLine(xys(fp.Outline))
		if err != nil {
			return nil, fmt.Errorf("footprint %s: %w", fp.Label, err)
		}
		l.Color = color.Black
		l.Width = vg.Points(1)
		p.Add(l)

		lbl, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    xys([]r2.Vec{fp.Centre}),
			Labels: []string{fp.Label},
		})
		if err != nil {
			return nil, fmt.Errorf("label %s: %w", fp.Label, err)
		}
		p.Add(lbl)
	}

	robot, err := plotter.NewScatter(plotter.XYs{{X: s.Robot.Trans.X, Y: s.Robot.Trans.Y}})
	if err != nil {
		return nil, fmt.Errorf("robot: %w", err)
	}
	robot.GlyphStyle.Color = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	robot.GlyphStyle.Shape = draw.TriangleGlyph{}
	robot.GlyphStyle.Radius = vg.Points(5)
	p.Add(robot)
	p.Legend.Add("robot", robot)
	p.Legend.Top = true
	return p, nil
}

func xys(pts []r2.Vec) plotter.XYs {
	out := make(plotter.XYs, len(pts))
	for i, v := range pts {
		out[i] = plotter.XY{X: v.X, Y: v.Y}
	}
	return out
}
