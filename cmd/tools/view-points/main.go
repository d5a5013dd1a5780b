// Command view-points samples a set of aligned per-target visibility rasters
// on a regular point grid and exports one CSV row per point: the visible
// height toward each target plus the azimuth span of the targets that remain
// visible above a threshold.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/veduta-gis/veduta/internal/raster"
	"github.com/veduta-gis/veduta/internal/viewshed"
)

var (
	rasterList = flag.String("rasters", "", "comma-separated visibility rasters (.asc), one per target")
	targetsCSV = flag.String("targets", "", "target metadata CSV with id,x,y columns")
	outPath    = flag.String("out", "", "output points CSV")
	spacingM   = flag.Float64("spacing", 25.0, "point grid spacing in meters")
	visThresh  = flag.Float64("visibility-threshold", 0.0, "visible height above which a target counts as seen")
	extentOp   = flag.String("extent", "union", "extent over the raster bounds: union or intersection")
	bboxFlag   = flag.String("bbox", "", "custom extent minx,miny,maxx,maxy (overrides -extent)")
	maskMode   = flag.String("mask", "valid_pixels", "point filter: valid_pixels (all rasters valid) or any_valid")
)

// azimuthNull marks azimuth fields of points that see no target.
const azimuthNull = -9999.0

type target struct {
	ID   string
	X, Y float64
}

func main() {
	flag.Parse()
	if *rasterList == "" || *targetsCSV == "" || *outPath == "" {
		log.Fatalf("-rasters, -targets and -out are required")
	}

	store := raster.ASCStore{}
	var grids []*raster.Grid
	paths := strings.Split(*rasterList, ",")
	for _, p := range paths {
		g, err := store.Read(strings.TrimSpace(p))
		if err != nil {
			log.Fatalf("load raster: %v", err)
		}
		grids = append(grids, g)
	}
	if err := raster.ValidateAligned(grids); err != nil {
		log.Fatalf("rasters are not aligned: %v", err)
	}

	targets, err := loadTargets(*targetsCSV)
	if err != nil {
		log.Fatalf("load targets: %v", err)
	}
	if len(targets) != len(grids) {
		log.Fatalf("target count (%d) must equal raster count (%d)", len(targets), len(grids))
	}

	extent, err := resolveExtent(grids)
	if err != nil {
		log.Fatalf("extent: %v", err)
	}
	if *spacingM <= 0 {
		log.Fatalf("spacing must be > 0, got %g", *spacingM)
	}
	log.Printf("sampling extent [%.1f,%.1f]x[%.1f,%.1f] at %.1f m spacing, %d targets",
		extent.MinX, extent.MaxX, extent.MinY, extent.MaxY, *spacingM, len(targets))

	written, dropped, err := writePoints(grids, targets, extent)
	if err != nil {
		log.Fatalf("write points: %v", err)
	}
	log.Printf("wrote %d points to %s (%d dropped by %s mask)", written, *outPath, dropped, *maskMode)
}

// resolveExtent picks the sampling extent: an explicit bbox, or the
// union/intersection of the raster bounds.
func resolveExtent(grids []*raster.Grid) (raster.BBox, error) {
	if *bboxFlag != "" {
		return raster.ParseBBox(*bboxFlag)
	}
	extent := grids[0].Bounds()
	for _, g := range grids[1:] {
		b := g.Bounds()
		switch *extentOp {
		case "union":
			extent.MinX = min(extent.MinX, b.MinX)
			extent.MinY = min(extent.MinY, b.MinY)
			extent.MaxX = max(extent.MaxX, b.MaxX)
			extent.MaxY = max(extent.MaxY, b.MaxY)
		case "intersection":
			extent.MinX = max(extent.MinX, b.MinX)
			extent.MinY = max(extent.MinY, b.MinY)
			extent.MaxX = min(extent.MaxX, b.MaxX)
			extent.MaxY = min(extent.MaxY, b.MaxY)
		default:
			return raster.BBox{}, fmt.Errorf("unknown extent op %q: use union or intersection", *extentOp)
		}
	}
	if err := extent.Validate(); err != nil {
		return raster.BBox{}, fmt.Errorf("empty sampling extent: %w", err)
	}
	return extent, nil
}

// writePoints walks the point grid row by row and streams rows to the CSV.
func writePoints(grids []*raster.Grid, targets []target, extent raster.BBox) (written, dropped int, err error) {
	f, err := os.Create(*outPath)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"pt_id", "x", "y", "n_vis", "az_ctr", "az_min", "az_max", "fov_az"}
	for _, t := range targets {
		header = append(header, "h_"+sanitizeField(t.ID))
	}
	if err := w.Write(header); err != nil {
		return 0, 0, err
	}

	pointID := 1
	// Inclusive upper bounds, tolerant of float accumulation.
	for y := extent.MinY; y <= extent.MaxY+1e-9; y += *spacingM {
		for x := extent.MinX; x <= extent.MaxX+1e-9; x += *spacingM {
			row, keep, e := pointRow(grids, targets, pointID, x, y)
			if e != nil {
				return written, dropped, e
			}
			if !keep {
				dropped++
				continue
			}
			if e := w.Write(row); e != nil {
				return written, dropped, e
			}
			pointID++
			written++
		}
	}
	w.Flush()
	return written, dropped, w.Error()
}

// pointRow samples every raster at (x,y) and builds one CSV record. keep is
// false when the mask mode filters the point out.
func pointRow(grids []*raster.Grid, targets []target, pointID int, x, y float64) (row []string, keep bool, err error) {
	vals := make([]float64, len(grids))
	valid := make([]bool, len(grids))
	allValid, anyValid := true, false
	for i, g := range grids {
		r, c := g.Transform.RowCol(x, y)
		if g.InBounds(r, c) {
			if z := g.Z(r, c); !g.IsNoData(z) {
				vals[i] = z
				valid[i] = true
				anyValid = true
				continue
			}
		}
		allValid = false
	}

	switch *maskMode {
	case "valid_pixels":
		if !allValid {
			return nil, false, nil
		}
	case "any_valid":
		if !anyValid {
			return nil, false, nil
		}
	default:
		return nil, false, fmt.Errorf("unknown mask mode %q: use valid_pixels or any_valid", *maskMode)
	}

	var azimuths []float64
	var sumX, sumY float64
	for i, v := range vals {
		if valid[i] && v > *visThresh {
			azimuths = append(azimuths, viewshed.AzimuthDeg(x, y, targets[i].X, targets[i].Y))
			sumX += targets[i].X
			sumY += targets[i].Y
		}
	}

	azCtr, azMin, azMax, fov := azimuthNull, azimuthNull, azimuthNull, azimuthNull
	if n := len(azimuths); n > 0 {
		azMin, azMax, fov, err = viewshed.MinimalCoveringArc(azimuths)
		if err != nil {
			return nil, false, err
		}
		azCtr = viewshed.AzimuthDeg(x, y, sumX/float64(n), sumY/float64(n))
	}

	row = []string{
		strconv.Itoa(pointID),
		formatFloat(x), formatFloat(y),
		strconv.Itoa(len(azimuths)),
		formatFloat(azCtr), formatFloat(azMin), formatFloat(azMax), formatFloat(fov),
	}
	for _, v := range vals {
		row = append(row, formatFloat(v))
	}
	return row, true, nil
}

// loadTargets reads the target metadata CSV. The header must carry id (or
// turbine_id), x and y columns; extra columns are ignored.
func loadTargets(path string) ([]target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	idCol, xCol, yCol := -1, -1, -1
	for i, name := range records[0] {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))) {
		case "id", "turbine_id", "target_id":
			idCol = i
		case "x":
			xCol = i
		case "y":
			yCol = i
		}
	}
	if idCol < 0 || xCol < 0 || yCol < 0 {
		return nil, fmt.Errorf("header must carry id, x and y columns, got %v", records[0])
	}

	var targets []target
	for i, rec := range records[1:] {
		id := strings.TrimSpace(rec[idCol])
		if id == "" {
			return nil, fmt.Errorf("row %d: empty target id", i+2)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(rec[xCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: x: %w", i+2, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(rec[yCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: y: %w", i+2, err)
		}
		targets = append(targets, target{ID: id, X: x, Y: y})
	}
	return targets, nil
}

// sanitizeField maps a target id to a CSV-safe column suffix.
func sanitizeField(id string) string {
	var b strings.Builder
	for _, ch := range id {
		if ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
