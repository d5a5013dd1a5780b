package raster

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BBox is an axis-aligned bounding box in world coordinates.
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// ParseBBox parses "minx,miny,maxx,maxy".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox must be minx,miny,maxx,maxy, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bbox component %d: %w", i+1, err)
		}
		vals[i] = v
	}
	b := BBox{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}
	if err := b.Validate(); err != nil {
		return BBox{}, err
	}
	return b, nil
}

// Validate rejects empty or inverted boxes.
func (b BBox) Validate() error {
	if b.MinX >= b.MaxX || b.MinY >= b.MaxY {
		return fmt.Errorf("empty bbox: [%g,%g]x[%g,%g]", b.MinX, b.MaxX, b.MinY, b.MaxY)
	}
	return nil
}

// Contains reports whether the world point lies inside the box, edges
// included.
func (b BBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Bounds returns the grid's world extent.
func (g *Grid) Bounds() BBox {
	x0 := g.Transform.C
	x1 := g.Transform.C + float64(g.Cols)*g.Transform.A
	y0 := g.Transform.F
	y1 := g.Transform.F + float64(g.Rows)*g.Transform.E
	return BBox{
		MinX: math.Min(x0, x1), MinY: math.Min(y0, y1),
		MaxX: math.Max(x0, x1), MaxY: math.Max(y0, y1),
	}
}

// Window is a rectangular pixel region of a raster.
type Window struct {
	RowOff, ColOff int
	Rows, Cols     int
}

// Empty reports whether the window covers no pixels.
func (w Window) Empty() bool { return w.Rows <= 0 || w.Cols <= 0 }

// AlignedWindow returns the smallest pixel-aligned window of a rows x cols
// raster that covers bbox, clamped to the raster extent. The returned window
// may be empty when the box lies entirely outside the raster.
func AlignedWindow(t GeoTransform, rows, cols int, bbox BBox) Window {
	// Fractional column range covered by the box. A is positive for all
	// supported rasters but the min/max keeps this sign-robust.
	fc0 := (bbox.MinX - t.C) / t.A
	fc1 := (bbox.MaxX - t.C) / t.A
	fr0 := (bbox.MinY - t.F) / t.E
	fr1 := (bbox.MaxY - t.F) / t.E

	c0 := int(math.Floor(math.Min(fc0, fc1)))
	c1 := int(math.Ceil(math.Max(fc0, fc1)))
	r0 := int(math.Floor(math.Min(fr0, fr1)))
	r1 := int(math.Ceil(math.Max(fr0, fr1)))

	c0 = clamp(c0, 0, cols)
	c1 = clamp(c1, 0, cols)
	r0 = clamp(r0, 0, rows)
	r1 = clamp(r1, 0, rows)

	return Window{RowOff: r0, ColOff: c0, Rows: r1 - r0, Cols: c1 - c0}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Crop copies the window out of g into a standalone grid with a shifted
// transform.
func (g *Grid) Crop(w Window) *Grid {
	out := &Grid{
		Rows:      w.Rows,
		Cols:      w.Cols,
		Data:      make([]float64, w.Rows*w.Cols),
		Transform: g.Transform.Shift(w.RowOff, w.ColOff),
		CRS:       g.CRS,
		NoData:    g.NoData,
	}
	for r := 0; r < w.Rows; r++ {
		src := (w.RowOff+r)*g.Cols + w.ColOff
		copy(out.Data[r*w.Cols:(r+1)*w.Cols], g.Data[src:src+w.Cols])
	}
	return out
}
