package projection

import (
	"math"

	"github.com/olablt/gio-geoview/geo"
	orbgeo "github.com/paulmach/orb/geo"
)

const (
	// EarthRadius is the WGS84 semi-major axis in meters.
	EarthRadius = 6378137.0
	// MaxLat is the latitude cut-off of the web mercator square.
	MaxLat = 85.0
)

// EPSG3857 is the spherical web mercator used by OSM, Bing and friends.
type EPSG3857 struct {
	originShift float64
	geoBoundary geo.Rect
	projBound   Rect
}

var _ Projection = (*EPSG3857)(nil)

func NewEPSG3857() *EPSG3857 {
	p := &EPSG3857{
		originShift: math.Pi * EarthRadius,
		geoBoundary: geo.RectFromLatLon(MaxLat, -180, -MaxLat, 180),
	}
	p.projBound = p.GeoRectToProj(p.geoBoundary)
	return p
}

func (p *EPSG3857) ID() string   { return "EPSG3857" }
func (p *EPSG3857) Name() string { return "WGS84 Web Mercator" }

func (p *EPSG3857) Description() string {
	return "Projection used in web mapping applications like Google/Bing/OpenStreetMap. Also known as EPSG:900913."
}

// GeoToProj projects pos. Latitudes beyond the boundary are clamped to it.
func (p *EPSG3857) GeoToProj(pos geo.Pos) Point {
	lat := math.Max(-MaxLat, math.Min(MaxLat, pos.Lat()))
	x := pos.Lon() * p.originShift / 180
	y := -math.Log(math.Tan((90+lat)*math.Pi/360)) * EarthRadius
	return Point{X: x, Y: y}
}

func (p *EPSG3857) ProjToGeo(pt Point) geo.Pos {
	lon := pt.X / p.originShift * 180
	lat := 180 / math.Pi * (2*math.Atan(math.Exp(-pt.Y/EarthRadius)) - math.Pi/2)
	return geo.NewPos(lat, lon)
}

func (p *EPSG3857) GeoRectToProj(r geo.Rect) Rect {
	return RectFromPoints(p.GeoToProj(r.TopLeft()), p.GeoToProj(r.BottomRight()))
}

func (p *EPSG3857) ProjRectToGeo(r Rect) geo.Rect {
	return geo.NewRect(p.ProjToGeo(r.Min), p.ProjToGeo(r.Max))
}

func (p *EPSG3857) BoundaryGeoRect() geo.Rect { return p.geoBoundary }
func (p *EPSG3857) BoundaryProjRect() Rect    { return p.projBound }

func (p *EPSG3857) GeodesicMeters(a, b Point) float64 {
	return orbgeo.DistanceHaversine(p.ProjToGeo(a).Point(), p.ProjToGeo(b).Point())
}
