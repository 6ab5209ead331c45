package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var center = Position{Latitude: 48.0, Longitude: 11.0}

// metres to degree offsets near center
func north(m float64) Position {
	return Position{Latitude: center.Latitude + m/111200.0, Longitude: center.Longitude}
}

func east(m float64) Position {
	return Position{Latitude: center.Latitude, Longitude: center.Longitude + m/(111320.0*math.Cos(center.Latitude*math.Pi/180.0))}
}

func TestGeometricFunctionBorder(t *testing.T) {
	shapes := []Shape{Circle{Radius: 100}, Rectangle{A: 100, B: 40}, Ellipse{A: 100, B: 40}}
	for _, s := range shapes {
		a, _ := s.Dimensions()
		assert.Equal(t, 0.0, GeometricFunction(s, CartesianPosition{X: a}), "%T border", s)
		assert.Greater(t, GeometricFunction(s, CartesianPosition{X: a / 2}), 0.0, "%T inside", s)
		assert.Less(t, GeometricFunction(s, CartesianPosition{X: a * 1.5}), 0.0, "%T outside", s)
		assert.Equal(t, 1.0, GeometricFunction(s, CartesianPosition{}), "%T center", s)
	}
	// rectangle corner is on the border, ellipse "corner" is outside
	assert.Equal(t, 0.0, GeometricFunction(Rectangle{A: 100, B: 40}, CartesianPosition{X: 100, Y: 40}))
	assert.Less(t, GeometricFunction(Ellipse{A: 100, B: 40}, CartesianPosition{X: 100, Y: 40}), 0.0)
}

func TestInsideCircle(t *testing.T) {
	area, err := NewArea(Circle{Radius: 100}, center, 0)
	require.NoError(t, err)

	assert.True(t, InsideOrAtBorder(area, center))
	assert.True(t, InsideOrAtBorder(area, north(60)))
	assert.True(t, InsideOrAtBorder(area, east(-60)))
	assert.False(t, InsideOrAtBorder(area, north(140)))
	assert.False(t, InsideOrAtBorder(area, east(140)))
	assert.True(t, Outside(area, east(140)))
	assert.False(t, AtBorder(area, center))
	assert.False(t, AtBorder(area, east(140)))
}

func TestInsideRotatedRectangle(t *testing.T) {
	// long side pointing north
	area, err := NewArea(Rectangle{A: 500, B: 50}, center, 0)
	require.NoError(t, err)
	assert.True(t, InsideOrAtBorder(area, north(300)))
	assert.False(t, InsideOrAtBorder(area, east(300)))

	// long side pointing east
	area.Angle = 90
	assert.False(t, InsideOrAtBorder(area, north(300)))
	assert.True(t, InsideOrAtBorder(area, east(300)))
	assert.True(t, InsideOrAtBorder(area, east(-300)))
}

func TestInsideEllipse(t *testing.T) {
	area, err := NewArea(Ellipse{A: 400, B: 100}, center, 45)
	require.NoError(t, err)
	diag := Position{
		Latitude:  north(200).Latitude,
		Longitude: east(200).Longitude,
	}
	assert.True(t, InsideOrAtBorder(area, diag))
	assert.False(t, InsideOrAtBorder(area, north(200)))
}

func TestDegenerateShapes(t *testing.T) {
	for _, s := range []Shape{Circle{}, Rectangle{A: 10}, Ellipse{B: 3}, Circle{Radius: -1}, nil} {
		_, err := NewArea(s, center, 0)
		assert.ErrorIs(t, err, ErrDegenerateShape, "%#v", s)
	}
	assert.False(t, InsideOrAtBorder(Area{Shape: Circle{}, Position: center}, center))
}

func TestAreaSize(t *testing.T) {
	assert.InDelta(t, math.Pi*1e4, AreaSize(Area{Shape: Circle{Radius: 100}}), 1e-6)
	assert.InDelta(t, 4*100*40.0, AreaSize(Area{Shape: Rectangle{A: 100, B: 40}}), 1e-6)
	assert.InDelta(t, math.Pi*100*40, AreaSize(Area{Shape: Ellipse{A: 100, B: 40}}), 1e-6)
	assert.Equal(t, 0.0, AreaSize(Area{}))
}

func TestDistance(t *testing.T) {
	// one degree of longitude on the equator
	assert.InDelta(t, 111319.49, Distance(Position{0, 0}, Position{0, 1}), 0.5)
	assert.InDelta(t, 0.0, Distance(center, center), 1e-9)
	assert.InDelta(t, Distance(center, north(500)), Distance(north(500), center), 1e-6)
	assert.InDelta(t, 500, Distance(center, north(500)), 2)
}

func TestProjectionOrigin(t *testing.T) {
	p := NewLocalCartesian(center).Forward(center)
	assert.InDelta(t, 0, p.X, 1e-6)
	assert.InDelta(t, 0, p.Y, 1e-6)
	e := NewLocalCartesian(center).Forward(east(100))
	assert.InDelta(t, 100, e.X, 0.5)
	assert.InDelta(t, 0, e.Y, 0.5)
}
