package raster

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Store is the read/write boundary between the engines and raster storage.
// The engines only ever see in-memory grids; everything about on-disk layout
// (format, compression, sidecars) stays behind this interface.
type Store interface {
	Read(path string) (*Grid, error)
	Write(path string, g *Grid) error
}

// ASCStore reads and writes ESRI ASCII Grid rasters (.asc) with an optional
// .prj sidecar carrying the CRS as WKT.
type ASCStore struct{}

// Read loads an .asc raster. Header keys are case-insensitive; both
// xllcorner/yllcorner and xllcenter/yllcenter origins are accepted.
func (ASCStore) Read(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open raster: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<24)

	header := map[string]float64{}
	var dataTokens []float64
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 2 && len(header) < 6 && !isNumeric(fields[0]) {
			key := strings.ToLower(fields[0])
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("header %s: %w", key, err)
			}
			header[key] = v
			continue
		}
		for _, tok := range fields {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("bad sample %q: %w", tok, err)
			}
			dataTokens = append(dataTokens, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read raster: %w", err)
	}

	ncols, ok1 := header["ncols"]
	nrows, ok2 := header["nrows"]
	cell, ok3 := header["cellsize"]
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("missing ncols/nrows/cellsize header in %s", path)
	}
	rows, cols := int(nrows), int(ncols)
	if rows <= 0 || cols <= 0 || cell <= 0 {
		return nil, fmt.Errorf("invalid raster shape %dx%d cellsize %g", rows, cols, cell)
	}
	if len(dataTokens) != rows*cols {
		return nil, fmt.Errorf("expected %d samples, got %d", rows*cols, len(dataTokens))
	}

	xll, xok := header["xllcorner"]
	if !xok {
		if xc, ok := header["xllcenter"]; ok {
			xll, xok = xc-cell/2, true
		}
	}
	yll, yok := header["yllcorner"]
	if !yok {
		if yc, ok := header["yllcenter"]; ok {
			yll, yok = yc-cell/2, true
		}
	}
	if !xok || !yok {
		return nil, fmt.Errorf("missing raster origin in %s", path)
	}

	g := &Grid{
		Rows: rows,
		Cols: cols,
		Data: dataTokens,
		Transform: GeoTransform{
			A: cell,
			C: xll,
			E: -cell,
			F: yll + float64(rows)*cell,
		},
	}
	if nd, ok := header["nodata_value"]; ok {
		g.NoData = &nd
	}

	if wkt, err := readSidecarPRJ(path); err != nil {
		return nil, err
	} else {
		g.CRS = wkt
	}
	return g, nil
}

// Write stores g as an .asc raster. The transform must be square-pixel and
// axis-aligned, which holds for every grid produced from an .asc input. A
// .prj sidecar is written when the grid carries a CRS.
func (ASCStore) Write(path string, g *Grid) error {
	if err := g.Validate(); err != nil {
		return err
	}
	cell := g.Transform.A
	if math.Abs(cell-math.Abs(g.Transform.E)) > 1e-9 {
		return fmt.Errorf("ascii grid requires square pixels, got %g x %g", cell, g.Transform.E)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create raster: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	yll := g.Transform.F + float64(g.Rows)*g.Transform.E
	fmt.Fprintf(w, "ncols %d\n", g.Cols)
	fmt.Fprintf(w, "nrows %d\n", g.Rows)
	fmt.Fprintf(w, "xllcorner %s\n", formatSample(g.Transform.C))
	fmt.Fprintf(w, "yllcorner %s\n", formatSample(yll))
	fmt.Fprintf(w, "cellsize %s\n", formatSample(cell))
	if g.NoData != nil {
		fmt.Fprintf(w, "NODATA_value %s\n", formatSample(*g.NoData))
	}
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			if c > 0 {
				w.WriteByte(' ')
			}
			w.WriteString(formatSample(g.Z(r, c)))
		}
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write raster: %w", err)
	}

	if g.CRS != "" {
		if err := os.WriteFile(prjPath(path), []byte(g.CRS), 0o644); err != nil {
			return fmt.Errorf("write prj sidecar: %w", err)
		}
	}
	return nil
}

func formatSample(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func prjPath(rasterPath string) string {
	if i := strings.LastIndex(rasterPath, "."); i > strings.LastIndexByte(rasterPath, os.PathSeparator) {
		return rasterPath[:i] + ".prj"
	}
	return rasterPath + ".prj"
}

func readSidecarPRJ(rasterPath string) (string, error) {
	data, err := os.ReadFile(prjPath(rasterPath))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read prj sidecar: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// CheckProjectedCRS verifies the grid's CRS describes a projected (metric)
// system. The distance and angle math is Euclidean, so geographic
// (degree-based) rasters are a fatal input error, as is a raster with no CRS
// at all.
func CheckProjectedCRS(wkt string) error {
	up := strings.ToUpper(strings.TrimSpace(wkt))
	switch {
	case up == "":
		return fmt.Errorf("raster has no CRS: a projected metric CRS is required")
	case strings.HasPrefix(up, "PROJCS") || strings.HasPrefix(up, "PROJCRS"):
		return nil
	case strings.HasPrefix(up, "GEOGCS") || strings.HasPrefix(up, "GEOGCRS"):
		return fmt.Errorf("geographic CRS (degrees) is not supported: use a projected metric CRS")
	default:
		return fmt.Errorf("unrecognised CRS definition: a projected metric CRS is required")
	}
}

// ValidateAligned checks that every grid shares the first grid's CRS,
// transform and shape. Used by tooling that merges multiple visibility
// rasters cell by cell.
func ValidateAligned(grids []*Grid) error {
	if len(grids) == 0 {
		return fmt.Errorf("at least one raster is required")
	}
	first := grids[0]
	for i, g := range grids[1:] {
		if g.CRS != first.CRS {
			return fmt.Errorf("raster #%d CRS mismatch", i+2)
		}
		if g.Transform != first.Transform {
			return fmt.Errorf("raster #%d transform mismatch: rasters must be aligned", i+2)
		}
		if g.Rows != first.Rows || g.Cols != first.Cols {
			return fmt.Errorf("raster #%d shape mismatch: %dx%d != %dx%d", i+2, g.Rows, g.Cols, first.Rows, first.Cols)
		}
	}
	return nil
}
