package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateShape is returned when an area has a zero or negative radius or semi-axis.
// Such a shape would divide by zero inside the geometric function.
var ErrDegenerateShape = errors.New("area shape must have strictly positive dimensions")

// Position is a geodetic position on the WGS84 ellipsoid, in degrees.
type Position struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%.7f, %.7f)", p.Latitude, p.Longitude)
}

// Shape is one of Circle, Rectangle or Ellipse.
type Shape interface {
	// Dimensions returns the two distances carried on the wire (a, b), in metres.
	Dimensions() (a, b float64)
	geometric(p CartesianPosition) float64
	size() float64
}

// Circle is described by its radius in metres.
type Circle struct {
	Radius float64
}

// Rectangle is described by its half length A (along the long side) and half width B, in metres.
type Rectangle struct {
	A float64
	B float64
}

// Ellipse is described by its semi-major axis A and semi-minor axis B, in metres.
type Ellipse struct {
	A float64
	B float64
}

func (c Circle) Dimensions() (float64, float64)    { return c.Radius, 0 }
func (r Rectangle) Dimensions() (float64, float64) { return r.A, r.B }
func (e Ellipse) Dimensions() (float64, float64)   { return e.A, e.B }

func (c Circle) geometric(p CartesianPosition) float64 {
	x := p.X / c.Radius
	y := p.Y / c.Radius
	return 1.0 - x*x - y*y
}

func (r Rectangle) geometric(p CartesianPosition) float64 {
	x := p.X / r.A
	y := p.Y / r.B
	return math.Min(1.0-x*x, 1.0-y*y)
}

func (e Ellipse) geometric(p CartesianPosition) float64 {
	x := p.X / e.A
	y := p.Y / e.B
	return 1.0 - x*x - y*y
}

func (c Circle) size() float64    { return math.Pi * c.Radius * c.Radius }
func (r Rectangle) size() float64 { return 4.0 * r.A * r.B }
func (e Ellipse) size() float64   { return math.Pi * e.A * e.B }

// Area is a destination region: a shape centred at Position whose long side is rotated by
// Angle degrees clockwise from north.
type Area struct {
	Shape    Shape
	Position Position
	Angle    float64
}

// NewArea returns a validated area.
func NewArea(shape Shape, position Position, angle float64) (Area, error) {
	area := Area{Shape: shape, Position: position, Angle: angle}
	if err := area.Validate(); err != nil {
		return Area{}, err
	}
	return area, nil
}

// Validate checks that the shape can be used in geometric tests.
func (a Area) Validate() error {
	switch s := a.Shape.(type) {
	case Circle:
		if !(s.Radius > 0) {
			return fmt.Errorf("circle radius %v: %w", s.Radius, ErrDegenerateShape)
		}
	case Rectangle:
		if !(s.A > 0) || !(s.B > 0) {
			return fmt.Errorf("rectangle %vx%v: %w", s.A, s.B, ErrDegenerateShape)
		}
	case Ellipse:
		if !(s.A > 0) || !(s.B > 0) {
			return fmt.Errorf("ellipse %vx%v: %w", s.A, s.B, ErrDegenerateShape)
		}
	case nil:
		return fmt.Errorf("missing shape: %w", ErrDegenerateShape)
	default:
		return fmt.Errorf("unknown shape %T: %w", s, ErrDegenerateShape)
	}
	if math.IsNaN(a.Position.Latitude) || math.IsNaN(a.Position.Longitude) {
		return fmt.Errorf("area position %v is not a number", a.Position)
	}
	return nil
}

func (a Area) String() string {
	switch s := a.Shape.(type) {
	case Circle:
		return fmt.Sprintf("circle r=%.1fm at %v", s.Radius, a.Position)
	case Rectangle:
		return fmt.Sprintf("rectangle %.1fx%.1fm at %v, %.1f°", s.A, s.B, a.Position, a.Angle)
	case Ellipse:
		return fmt.Sprintf("ellipse %.1fx%.1fm at %v, %.1f°", s.A, s.B, a.Position, a.Angle)
	}
	return "invalid area"
}

// GeometricFunction evaluates F(x,y) of EN 302 931 for a point in the canonical frame of the shape:
// positive inside, zero at the border and negative outside.
func GeometricFunction(shape Shape, p CartesianPosition) float64 {
	return shape.geometric(p)
}

// AreaSize returns the surface of the area in square metres.
func AreaSize(area Area) float64 {
	if area.Shape == nil {
		return 0
	}
	return area.Shape.size()
}

// Canonicalize projects point into the local frame of area, with the x axis along the long side.
func Canonicalize(area Area, point Position) CartesianPosition {
	enu := NewLocalCartesian(area.Position).Forward(point)
	theta := area.Angle * math.Pi / 180.0
	sin, cos := math.Sincos(theta)
	return CartesianPosition{
		X: enu.X*sin + enu.Y*cos,
		Y: enu.X*cos - enu.Y*sin,
	}
}

const borderTolerance = 1e-9

func evaluate(area Area, point Position) (float64, bool) {
	if area.Validate() != nil {
		return 0, false
	}
	return GeometricFunction(area.Shape, Canonicalize(area, point)), true
}

// InsideOrAtBorder reports whether point lies inside area or on its border.
// An invalid area contains nothing.
func InsideOrAtBorder(area Area, point Position) bool {
	f, ok := evaluate(area, point)
	return ok && f >= 0
}

// AtBorder reports whether point lies on the border of area, within borderTolerance of F = 0.
func AtBorder(area Area, point Position) bool {
	f, ok := evaluate(area, point)
	return ok && math.Abs(f) <= borderTolerance
}

// Outside reports whether point lies strictly outside area.
func Outside(area Area, point Position) bool {
	f, ok := evaluate(area, point)
	return !ok || f < 0
}
