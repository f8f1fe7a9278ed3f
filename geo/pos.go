package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

const lonEpsilon = 0.000001

// Pos represents a geographical point. The zero value is the empty position.
type Pos struct {
	lat, lon float64
	valid    bool
}

// NewPos creates a position, clamping latitude to [-90, 90] and wrapping
// longitude into (-180, 180] when it lies outside [-180, 180].
func NewPos(lat, lon float64) Pos {
	return Pos{
		lat:   ClampLat(lat),
		lon:   NormalizeLon(lon),
		valid: true,
	}
}

// PosFromPoint converts an orb point (lon, lat) to a position.
func PosFromPoint(p orb.Point) Pos {
	return NewPos(p.Lat(), p.Lon())
}

// IsEmpty reports whether the position was never set.
func (p Pos) IsEmpty() bool {
	return !p.valid
}

func (p Pos) Lat() float64 {
	return p.lat
}

func (p Pos) Lon() float64 {
	return p.lon
}

// Point returns the position as an orb point.
func (p Pos) Point() orb.Point {
	return orb.Point{p.lon, p.lat}
}

// Equal compares two positions exactly. Two empty positions are equal.
func (p Pos) Equal(o Pos) bool {
	if !p.valid || !o.valid {
		return p.valid == o.valid
	}
	return p.lat == o.lat && p.lon == o.lon
}

func (p Pos) String() string {
	if !p.valid {
		return "pos(empty)"
	}
	return fmt.Sprintf("pos(%.6f,%.6f)", p.lat, p.lon)
}

// ClampLat limits a latitude to [-90, 90].
func ClampLat(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}

// NormalizeLon wraps a longitude into (-180, 180]. Values already within
// [-180, 180] are returned unchanged.
func NormalizeLon(lon float64) float64 {
	if lon > 180+lonEpsilon {
		lon = math.Mod(lon+180, 360) - 180
		if lon <= -180 {
			lon += 360
		}
		return lon
	}
	if lon < -180-lonEpsilon {
		lon = 180 - math.Mod(180-lon, 360)
		if lon <= -180 {
			lon += 360
		}
		return lon
	}
	return lon
}

// FormatLon renders a longitude using the format tokens:
//
//	[+-] sign, [EW] hemisphere, d degrees, di integer degrees,
//	m minutes, mi integer minutes, s seconds, si integer seconds
func FormatLon(lon float64, format string) string {
	hemi := "E"
	if lon < 0 {
		hemi = "W"
	}
	return formatDegrees(lon, strings.ReplaceAll(format, "[EW]", hemi))
}

// FormatLat renders a latitude, see FormatLon. [NS] is the hemisphere token.
func FormatLat(lat float64, format string) string {
	hemi := "N"
	if lat < 0 {
		hemi = "S"
	}
	return formatDegrees(lat, strings.ReplaceAll(format, "[NS]", hemi))
}

func formatDegrees(v float64, format string) string {
	sign := ""
	if v < 0 {
		sign = "-"
	}
	deg := math.Abs(v)
	min := (deg - math.Trunc(deg)) * 60
	sec := (min - math.Trunc(min)) * 60

	// Integer tokens go first so "d" does not eat the "d" of "di".
	out := strings.ReplaceAll(format, "[+-]", sign)
	out = strings.ReplaceAll(out, "di", strconv.Itoa(int(deg)))
	out = strings.ReplaceAll(out, "d", strconv.FormatFloat(deg, 'f', 6, 64))
	out = strings.ReplaceAll(out, "mi", strconv.Itoa(int(min)))
	out = strings.ReplaceAll(out, "m", strconv.FormatFloat(min, 'f', 4, 64))
	out = strings.ReplaceAll(out, "si", strconv.Itoa(int(sec)))
	out = strings.ReplaceAll(out, "s", strconv.FormatFloat(sec, 'f', 3, 64))
	return out
}
