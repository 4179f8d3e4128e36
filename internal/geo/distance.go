// internal/geo/distance.go
package geo

import (
	"fmt"
	"math"
)

const (
	EarthRadiusKm = 6371.0
	// KmPerDegree is the flat-earth length of one degree of latitude.
	KmPerDegree = 111.32

	ModePrecise     = "precise"
	ModeApproximate = "approximate"
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lng) &&
		p.Lat >= -90 && p.Lat <= 90 &&
		p.Lng >= -180 && p.Lng <= 180
}

// Strategy computes distances in kilometres, either in Go or as a SQL
// expression evaluated by the database. One strategy is picked at startup.
type Strategy interface {
	Name() string
	Distance(a, b Point) float64
	// SQLExpr renders the distance between the columns and origin. The
	// returned args bind to the expression's placeholders in order.
	SQLExpr(latCol, lngCol string, origin Point) (string, []interface{})
}

// New returns the strategy registered under mode.
func New(mode string) (Strategy, error) {
	switch mode {
	case ModePrecise:
		return Precise{}, nil
	case ModeApproximate:
		return Approximate{}, nil
	default:
		return nil, fmt.Errorf("unknown geo distance mode %q", mode)
	}
}

// Precise is the spherical law of cosines on a 6371 km sphere. It needs
// SIN/COS/ACOS/RADIANS from the database.
type Precise struct{}

func (Precise) Name() string { return ModePrecise }

func (Precise) Distance(a, b Point) float64 {
	// sin²+cos² can land just under 1, which acos turns into a few metres.
	if a == b {
		return 0
	}
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLng := radians(b.Lng - a.Lng)
	arg := math.Sin(lat1)*math.Sin(lat2) + math.Cos(lat1)*math.Cos(lat2)*math.Cos(dLng)
	return EarthRadiusKm * math.Acos(clamp(arg, -1, 1))
}

// SQLExpr short-circuits the origin itself to 0 so rows agree with Distance.
func (Precise) SQLExpr(latCol, lngCol string, origin Point) (string, []interface{}) {
	expr := fmt.Sprintf(
		"(CASE WHEN %s = ? AND %s = ? THEN 0.0 ELSE "+
			"%f * ACOS(LEAST(1.0, GREATEST(-1.0, "+
			"COS(RADIANS(?)) * COS(RADIANS(%s)) * COS(RADIANS(%s - ?)) + "+
			"SIN(RADIANS(?)) * SIN(RADIANS(%s))))) END)",
		latCol, lngCol, EarthRadiusKm, latCol, lngCol, latCol,
	)
	return expr, []interface{}{origin.Lat, origin.Lng, origin.Lat, origin.Lng, origin.Lat}
}

// Approximate is a scaled Manhattan distance that only needs ABS. It is not
// a metric and over-estimates diagonals; use it for ranking at short radii.
type Approximate struct{}

func (Approximate) Name() string { return ModeApproximate }

func (Approximate) Distance(a, b Point) float64 {
	cosLat0 := math.Cos(radians(a.Lat))
	deg := math.Abs(b.Lat-a.Lat) + math.Abs((b.Lng-a.Lng)*cosLat0)
	return KmPerDegree * deg
}

func (Approximate) SQLExpr(latCol, lngCol string, origin Point) (string, []interface{}) {
	expr := fmt.Sprintf(
		"(%f * (ABS(%s - ?) + ABS((%s - ?) * ?)))",
		KmPerDegree, latCol, lngCol,
	)
	return expr, []interface{}{origin.Lat, origin.Lng, math.Cos(radians(origin.Lat))}
}

// Box is an axis-aligned lat/lng rectangle.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundingBox returns the flat-degree box around origin that contains every
// point within radiusKm. The cosine is floored at 0.1 so the box stays
// finite near the poles.
func BoundingBox(origin Point, radiusKm float64) Box {
	latDelta := radiusKm / KmPerDegree
	lngDelta := radiusKm / (KmPerDegree * math.Max(0.1, math.Cos(radians(origin.Lat))))
	return Box{
		MinLat: origin.Lat - latDelta,
		MaxLat: origin.Lat + latDelta,
		MinLng: origin.Lng - lngDelta,
		MaxLng: origin.Lng + lngDelta,
	}
}

func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
