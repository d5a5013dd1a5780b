package viewshed

import "github.com/veduta-gis/veduta/internal/raster"

const testCRS = `PROJCS["ETRS89 / UTM zone 33N",GEOGCS["ETRS89",DATUM["European_Terrestrial_Reference_System_1989"]],UNIT["metre",1]]`

// flatGrid builds a north-up square-pixel test grid filled with z. The extent
// starts at the world origin, so cell (r,c) has its centre at
// (c*pixel + pixel/2, (rows-r)*pixel - pixel/2).
func flatGrid(rows, cols int, pixel, z float64) *raster.Grid {
	nd := -9999.0
	g := &raster.Grid{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
		Transform: raster.GeoTransform{
			A: pixel,
			E: -pixel,
			F: float64(rows) * pixel,
		},
		CRS:    testCRS,
		NoData: &nd,
	}
	for i := range g.Data {
		g.Data[i] = z
	}
	return g
}
