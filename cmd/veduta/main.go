// Command veduta computes how many vertical meters of a mast or turbine
// remain visible from the terrain around it, given a DEM and the target's
// position and height. It supports the per-cell direct engine, the radial
// sweep engine, and an optional bounding-box refinement pass, and records
// completed runs in a local sqlite registry.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"github.com/veduta-gis/veduta/internal/config"
	"github.com/veduta-gis/veduta/internal/raster"
	"github.com/veduta-gis/veduta/internal/report"
	"github.com/veduta-gis/veduta/internal/runstore"
	"github.com/veduta-gis/veduta/internal/viewshed"
)

var (
	demPath    = flag.String("dem", "", "input DEM (.asc with optional .prj sidecar)")
	outPath    = flag.String("out", "", "output visibility raster (.asc)")
	mode       = flag.String("mode", "radial", "compute mode: direct or radial")
	configPath = flag.String("config", "", "optional JSON run configuration")

	targetX   = flag.Float64("x", math.NaN(), "target X (world units, grid CRS)")
	targetY   = flag.Float64("y", math.NaN(), "target Y (world units, grid CRS)")
	heightM   = flag.Float64("height", 0, "target height in meters (default 200)")
	obsHeight = flag.Float64("observer-height", 0, "observer eye height in meters (default 1.6)")
	strictND  = flag.Bool("strict-nodata", true, "abort a sight line at the first nodata sample")
	maxDist   = flag.Float64("max-distance", 0, "direct mode distance cutoff, 0 = unlimited (default 15000)")
	stepM     = flag.Float64("step", 0, "sample step in meters, floored at one pixel (default 25)")
	radiusM   = flag.Float64("radius", 0, "radial mode sweep radius in meters")
	rays      = flag.Int("rays", 0, "radial direction count, 0 = derive and snap to preset")
	workers   = flag.Int("workers", 0, "parallel workers, 0 = logical core count")

	fineBBox   = flag.String("bbox", "", "refinement bounding box: minx,miny,maxx,maxy")
	fineStep   = flag.Float64("fine-step", 0, "refinement sample step in meters")
	fineRays   = flag.Int("fine-rays", 0, "refinement direction count, 0 = auto")
	fineFull   = flag.Bool("fine-full-extent", false, "refinement output covers the full DEM extent")
	fineOut    = flag.String("fine-out", "", "refinement output raster (default: out stem + _fine.asc)")
	heatmapOut = flag.String("heatmap", "", "optional PNG heatmap of the primary output")

	runsDB   = flag.String("runs-db", "veduta_runs.db", "run registry sqlite file, empty to disable")
	listRuns = flag.Int("list-runs", 0, "print the N most recent registry runs and exit")
)

func main() {
	flag.Parse()

	if *listRuns > 0 {
		printRuns(*listRuns)
		return
	}
	if *demPath == "" || *outPath == "" {
		log.Fatalf("both -dem and -out are required")
	}

	cfg, err := mergedConfig()
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}
	if cfg.TargetX == nil || cfg.TargetY == nil {
		log.Fatalf("target position is required: set -x/-y or target_x/target_y in -config")
	}

	store := raster.ASCStore{}
	dem, err := store.Read(*demPath)
	if err != nil {
		log.Fatalf("load DEM: %v", err)
	}
	if err := dem.Validate(); err != nil {
		log.Fatalf("DEM %s: %v", *demPath, err)
	}
	if err := raster.CheckProjectedCRS(dem.CRS); err != nil {
		log.Fatalf("DEM %s: %v", *demPath, err)
	}
	log.Printf("loaded DEM %s: %dx%d, pixel %.2f m", *demPath, dem.Rows, dem.Cols, dem.Transform.PixelSize())

	target := viewshed.Target{X: *cfg.TargetX, Y: *cfg.TargetY, Height: cfg.GetHeightM()}
	opts := viewshed.Options{
		ObserverHeight: cfg.GetObserverHeightM(),
		StrictNoData:   cfg.GetStrictNoData(),
		Workers:        cfg.GetWorkers(),
	}

	start := time.Now()
	var out *raster.Grid
	switch *mode {
	case "direct":
		engine := &viewshed.DirectEngine{
			Grid:         dem,
			Target:       target,
			Opts:         opts,
			MaxDistanceM: cfg.GetMaxDistanceM(),
			SampleStepM:  cfg.GetSampleStepM(),
		}
		out, err = engine.Run()
	case "radial":
		if cfg.RadiusM == nil {
			log.Fatalf("radial mode requires -radius (or radius_m in -config)")
		}
		engine := &viewshed.RadialEngine{
			Grid:   dem,
			Target: target,
			Opts:   opts,
			Cfg: viewshed.RadialConfig{
				RadiusM: *cfg.RadiusM,
				StepM:   cfg.GetSampleStepM(),
				Rays:    cfg.GetRays(),
			},
		}
		out, err = engine.Run()
	default:
		log.Fatalf("unknown mode %q: use direct or radial", *mode)
	}
	if err != nil {
		log.Fatalf("%s pass failed: %v", *mode, err)
	}
	elapsed := time.Since(start)

	if err := store.Write(*outPath, out); err != nil {
		log.Fatalf("write output: %v", err)
	}
	log.Printf("wrote %s", *outPath)

	summary := report.Summarize(out)
	log.Printf("visible height: mean %.1f m, max %.1f m, visible fraction %.1f%% over %d cells",
		summary.VisibleMean, summary.VisibleMax, 100*summary.VisibleFraction, summary.ComputedCells)

	if *heatmapOut != "" {
		if err := report.WriteHeatmap(*heatmapOut, "Visible height (m)", out); err != nil {
			log.Fatalf("heatmap: %v", err)
		}
		log.Printf("wrote %s", *heatmapOut)
	}

	recordRun(cfg, *mode, *outPath, out, summary, elapsed)

	if cfg.FineBBox != nil && *cfg.FineBBox != "" {
		runRefinement(store, dem, target, opts, cfg)
	}
}

// runRefinement executes the bounding-box refinement pass and writes its
// raster next to the primary output.
func runRefinement(store raster.ASCStore, dem *raster.Grid, target viewshed.Target, opts viewshed.Options, cfg *config.RunConfig) {
	bbox, err := raster.ParseBBox(*cfg.FineBBox)
	if err != nil {
		log.Fatalf("refinement bbox: %v", err)
	}
	fineCfg := viewshed.FineConfig{
		BBox:       bbox,
		StepM:      cfg.GetSampleStepM(),
		FullExtent: cfg.GetFineFullExtent(),
	}
	if cfg.FineStepM != nil {
		fineCfg.StepM = *cfg.FineStepM
	}
	if cfg.FineRays != nil {
		fineCfg.Rays = *cfg.FineRays
	}

	start := time.Now()
	out, err := viewshed.Refine(dem, target, opts, fineCfg)
	if err != nil {
		log.Fatalf("refinement pass failed: %v", err)
	}
	elapsed := time.Since(start)

	path := *fineOut
	if path == "" {
		path = withSuffix(*outPath, "_fine")
	}
	if err := store.Write(path, out); err != nil {
		log.Fatalf("write refinement output: %v", err)
	}
	log.Printf("wrote %s (%dx%d)", path, out.Rows, out.Cols)

	recordRun(cfg, "refine", path, out, report.Summarize(out), elapsed)
}

// recordRun inserts a completed pass into the run registry unless disabled.
func recordRun(cfg *config.RunConfig, mode, outputPath string, out *raster.Grid, s report.Summary, elapsed time.Duration) {
	if *runsDB == "" {
		return
	}
	reg, err := runstore.Open(*runsDB)
	if err != nil {
		log.Fatalf("open run registry: %v", err)
	}
	defer reg.Close()

	params, err := cfg.MarshalParams()
	if err != nil {
		log.Fatalf("run registry: %v", err)
	}
	_, err = reg.Insert(&runstore.Run{
		Mode:            mode,
		DEMPath:         *demPath,
		OutputPath:      outputPath,
		GridRows:        out.Rows,
		GridCols:        out.Cols,
		ParamsJSON:      params,
		VisibleMean:     s.VisibleMean,
		VisibleStddev:   s.VisibleStddev,
		VisibleMax:      s.VisibleMax,
		VisibleFraction: s.VisibleFraction,
		ComputedCells:   s.ComputedCells,
		DurationMS:      elapsed.Milliseconds(),
	})
	if err != nil {
		log.Fatalf("run registry: %v", err)
	}
}

// printRuns lists the most recent registry entries.
func printRuns(n int) {
	reg, err := runstore.Open(*runsDB)
	if err != nil {
		log.Fatalf("open run registry: %v", err)
	}
	defer reg.Close()

	runs, err := reg.List(n)
	if err != nil {
		log.Fatalf("list runs: %v", err)
	}
	for _, r := range runs {
		created := time.Unix(0, r.CreatedAt).Format(time.RFC3339)
		fmt.Printf("%s  %-7s %s  %dx%d  mean %.1f m  max %.1f m  %dms  %s\n",
			r.RunID, r.Mode, created, r.GridRows, r.GridCols,
			r.VisibleMean, r.VisibleMax, r.DurationMS, r.OutputPath)
	}
}

// mergedConfig loads the optional config file and applies every CLI flag the
// user set explicitly on top of it.
func mergedConfig() (*config.RunConfig, error) {
	cfg := &config.RunConfig{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "x":
			cfg.TargetX = targetX
		case "y":
			cfg.TargetY = targetY
		case "height":
			cfg.HeightM = heightM
		case "observer-height":
			cfg.ObserverHeightM = obsHeight
		case "strict-nodata":
			cfg.StrictNoData = strictND
		case "max-distance":
			cfg.MaxDistanceM = maxDist
		case "step":
			cfg.SampleStepM = stepM
		case "radius":
			cfg.RadiusM = radiusM
		case "rays":
			cfg.Rays = rays
		case "workers":
			cfg.Workers = workers
		case "bbox":
			cfg.FineBBox = fineBBox
		case "fine-step":
			cfg.FineStepM = fineStep
		case "fine-rays":
			cfg.FineRays = fineRays
		case "fine-full-extent":
			cfg.FineFullExtent = fineFull
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withSuffix appends suffix to the file stem, keeping the extension.
func withSuffix(path, suffix string) string {
	if i := strings.LastIndex(path, "."); i > strings.LastIndexByte(path, os.PathSeparator) {
		return path[:i] + suffix + path[i:]
	}
	return path + suffix
}
