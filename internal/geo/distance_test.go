package geo

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bengaluru = Point{Lat: 12.9716, Lng: 77.5946}
	mysuru    = Point{Lat: 12.2958, Lng: 76.6394}
)

func TestPreciseSamePointIsZero(t *testing.T) {
	points := []Point{
		bengaluru,
		{Lat: 0, Lng: 0},
		{Lat: 89.9999, Lng: 179.9999},
		{Lat: -45.123456789, Lng: 12.987654321},
	}
	for _, p := range points {
		assert.Equal(t, 0.0, Precise{}.Distance(p, p), "point %+v", p)
	}
}

func TestPreciseAntipodalDoesNotNaN(t *testing.T) {
	d := Precise{}.Distance(Point{Lat: 0, Lng: 0}, Point{Lat: 0, Lng: 180})
	require.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 1e-6)
}

func TestPreciseKnownDistance(t *testing.T) {
	// Bengaluru to Mysuru is roughly 128 km as the crow flies.
	d := Precise{}.Distance(bengaluru, mysuru)
	assert.InDelta(t, 128.0, d, 2.0)
	assert.InDelta(t, d, Precise{}.Distance(mysuru, bengaluru), 1e-9)
}

func TestApproximateFormula(t *testing.T) {
	origin := Point{Lat: 60, Lng: 10}
	p := Point{Lat: 60.1, Lng: 10.2}

	// cos(60°) = 0.5, so 0.1 + 0.2*0.5 = 0.2 degrees.
	assert.InDelta(t, 0.2*KmPerDegree, Approximate{}.Distance(origin, p), 1e-9)
	assert.Equal(t, 0.0, Approximate{}.Distance(origin, origin))
}

func TestApproximateRanksLikePreciseAtShortRange(t *testing.T) {
	near := Point{Lat: bengaluru.Lat + 0.01, Lng: bengaluru.Lng + 0.01}
	far := Point{Lat: bengaluru.Lat + 0.05, Lng: bengaluru.Lng - 0.03}

	assert.Less(t, Approximate{}.Distance(bengaluru, near), Approximate{}.Distance(bengaluru, far))
	assert.Less(t, Precise{}.Distance(bengaluru, near), Precise{}.Distance(bengaluru, far))
}

func TestApproximateOverestimatesDiagonal(t *testing.T) {
	p := Point{Lat: bengaluru.Lat + 0.05, Lng: bengaluru.Lng + 0.05}
	assert.Greater(t, Approximate{}.Distance(bengaluru, p), Precise{}.Distance(bengaluru, p))
}

func TestNew(t *testing.T) {
	s, err := New(ModePrecise)
	require.NoError(t, err)
	assert.Equal(t, ModePrecise, s.Name())

	s, err = New(ModeApproximate)
	require.NoError(t, err)
	assert.Equal(t, ModeApproximate, s.Name())

	_, err = New("euclid")
	assert.Error(t, err)
}

func TestSQLExprArgs(t *testing.T) {
	expr, args := Precise{}.SQLExpr("a.latitude", "a.longitude", bengaluru)
	assert.Contains(t, expr, "ACOS(LEAST(1.0, GREATEST(-1.0,")
	assert.Len(t, args, 5)

	expr, args = Approximate{}.SQLExpr("a.latitude", "a.longitude", bengaluru)
	assert.NotContains(t, expr, "COS(")
	require.Len(t, args, 3)
	assert.InDelta(t, math.Cos(bengaluru.Lat*math.Pi/180), args[2].(float64), 1e-12)
}

func TestPreciseSQLOriginIsZero(t *testing.T) {
	expr, args := Precise{}.SQLExpr("a.latitude", "a.longitude", bengaluru)
	assert.True(t, strings.HasPrefix(expr, "(CASE WHEN a.latitude = ? AND a.longitude = ? THEN 0.0 ELSE "), expr)
	assert.True(t, strings.HasSuffix(expr, " END)"), expr)
	assert.Equal(t, strings.Count(expr, "?"), len(args))
	assert.Equal(t, []interface{}{bengaluru.Lat, bengaluru.Lng}, args[:2])
}

func TestBoundingBox(t *testing.T) {
	box := BoundingBox(bengaluru, 10)
	assert.InDelta(t, 10/KmPerDegree, box.MaxLat-bengaluru.Lat, 1e-12)
	assert.Greater(t, box.MaxLng-bengaluru.Lng, box.MaxLat-bengaluru.Lat)
	assert.True(t, box.Contains(bengaluru))
	assert.False(t, box.Contains(mysuru))

	// Near the pole the longitude span is capped by the 0.1 floor.
	polar := BoundingBox(Point{Lat: 89.9, Lng: 0}, 10)
	assert.InDelta(t, 10/(KmPerDegree*0.1), polar.MaxLng, 1e-9)
}

func TestPointValid(t *testing.T) {
	assert.True(t, bengaluru.Valid())
	assert.False(t, Point{Lat: 91, Lng: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lng: -181}.Valid())
	assert.False(t, Point{Lat: math.NaN(), Lng: 0}.Valid())
}
