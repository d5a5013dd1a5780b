package report

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/veduta-gis/veduta/internal/raster"
)

// gridXYZ adapts a raster to plotter.GridXYZ. Rows are flipped so Y values
// ascend with the index, as the plotter expects; nodata cells are mapped to
// NaN so they render as gaps.
type gridXYZ struct {
	g *raster.Grid
}

func (w gridXYZ) Dims() (c, r int) { return w.g.Cols, w.g.Rows }

func (w gridXYZ) Z(c, r int) float64 {
	v := w.g.Z(w.g.Rows-1-r, c)
	if w.g.IsNoData(v) {
		return math.NaN()
	}
	return v
}

func (w gridXYZ) X(c int) float64 {
	x, _ := w.g.Transform.CellCenter(0, c)
	return x
}

func (w gridXYZ) Y(r int) float64 {
	_, y := w.g.Transform.CellCenter(w.g.Rows-1-r, 0)
	return y
}

// WriteHeatmap renders the visibility raster as a PNG heatmap. This is a
// static diagnostic artefact for quick inspection, not a cartographic
// product: axes are world coordinates, colours span the value range.
func WriteHeatmap(path, title string, g *raster.Grid) error {
	if err := g.Validate(); err != nil {
		return err
	}

	h := plotter.NewHeatMap(gridXYZ{g: g}, palette.Heat(12, 1))

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Add(h)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}
