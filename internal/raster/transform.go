package raster

import "math"

// GeoTransform holds the six affine coefficients mapping pixel space to world
// space, laid out the way GDAL-style libraries report them:
//
//	x = C + (col)*A + (row)*B
//	y = F + (col)*D + (row)*E
//
// For the usual north-up raster B and D are zero, A is the pixel width and E
// is the (negative) pixel height.
type GeoTransform struct {
	A float64 // pixel width (world units per column)
	B float64 // row rotation term
	C float64 // x origin (outer corner of pixel 0,0)
	D float64 // column rotation term
	E float64 // pixel height (negative for north-up)
	F float64 // y origin (outer corner of pixel 0,0)
}

// rotationEps bounds how much skew is tolerated before a transform is
// considered rotated. Matches the input validation threshold used when a DEM
// is loaded.
const rotationEps = 1e-9

// IsRotated reports whether the transform carries rotation or skew terms.
// Rotated transforms are rejected at load time; all other methods assume
// axis-aligned pixels.
func (t GeoTransform) IsRotated() bool {
	return math.Abs(t.B) > rotationEps || math.Abs(t.D) > rotationEps
}

// CellCenter returns the world coordinates of the centre of pixel (row, col).
func (t GeoTransform) CellCenter(row, col int) (x, y float64) {
	x = t.C + (float64(col)+0.5)*t.A
	y = t.F + (float64(row)+0.5)*t.E
	return x, y
}

// RowCol returns the pixel whose centre is nearest to the world point (x, y).
// The result may be outside the grid; callers bound-check against the grid
// they index into.
func (t GeoTransform) RowCol(x, y float64) (row, col int) {
	col = int(math.Round((x - (t.C + 0.5*t.A)) / t.A))
	row = int(math.Round((y - (t.F + 0.5*t.E)) / t.E))
	return row, col
}

// PixelSize returns the smaller of the two absolute pixel dimensions, the
// value used to floor metric sample steps.
func (t GeoTransform) PixelSize() float64 {
	return math.Min(math.Abs(t.A), math.Abs(t.E))
}

// Shift returns the transform of a sub-window whose top-left pixel sits at
// (rowOff, colOff) of the parent raster.
func (t GeoTransform) Shift(rowOff, colOff int) GeoTransform {
	out := t
	out.C = t.C + float64(colOff)*t.A
	out.F = t.F + float64(rowOff)*t.E
	return out
}
