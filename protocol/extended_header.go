package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/encodeous/geonet/geo"
	"github.com/gopacket/gopacket"
)

const (
	BeaconHeaderLength = LongPositionVectorLength
	ShbHeaderLength    = LongPositionVectorLength + 4
	GbcHeaderLength    = 4 + LongPositionVectorLength + 16
)

// ExtendedHeader is the header type specific part following the common header.
type ExtendedHeader interface {
	Length() int
	SourcePosition() LongPositionVector
	SetSourcePosition(pv LongPositionVector)
	SerializeTo(b gopacket.SerializeBuffer) error
	DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error
	Clone() ExtendedHeader
}

func checkLength(name string, data []byte, want int, df gopacket.DecodeFeedback) error {
	if len(data) < want {
		df.SetTruncated()
		return fmt.Errorf("%s header needs %d bytes, got %d: %w", name, want, len(data), ErrTruncated)
	}
	return nil
}

// BeaconHeader only announces the position of its source.
type BeaconHeader struct {
	Source LongPositionVector
}

func (h *BeaconHeader) Length() int                             { return BeaconHeaderLength }
func (h *BeaconHeader) SourcePosition() LongPositionVector      { return h.Source }
func (h *BeaconHeader) SetSourcePosition(pv LongPositionVector) { h.Source = pv }
func (h *BeaconHeader) Clone() ExtendedHeader                   { c := *h; return &c }

func (h *BeaconHeader) SerializeTo(b gopacket.SerializeBuffer) error {
	buf, err := b.AppendBytes(BeaconHeaderLength)
	if err != nil {
		return err
	}
	h.Source.put(buf)
	return nil
}

func (h *BeaconHeader) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if err := checkLength("beacon", data, BeaconHeaderLength, df); err != nil {
		return err
	}
	h.Source = parseLongPositionVector(data)
	return nil
}

// ShbHeader is the single hop broadcast header. Reserved holds media dependent data.
type ShbHeader struct {
	Source   LongPositionVector
	Reserved uint32
}

func (h *ShbHeader) Length() int                             { return ShbHeaderLength }
func (h *ShbHeader) SourcePosition() LongPositionVector      { return h.Source }
func (h *ShbHeader) SetSourcePosition(pv LongPositionVector) { h.Source = pv }
func (h *ShbHeader) Clone() ExtendedHeader                   { c := *h; return &c }

func (h *ShbHeader) SerializeTo(b gopacket.SerializeBuffer) error {
	buf, err := b.AppendBytes(ShbHeaderLength)
	if err != nil {
		return err
	}
	h.Source.put(buf)
	binary.BigEndian.PutUint32(buf[24:28], h.Reserved)
	return nil
}

func (h *ShbHeader) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if err := checkLength("shb", data, ShbHeaderLength, df); err != nil {
		return err
	}
	h.Source = parseLongPositionVector(data)
	h.Reserved = binary.BigEndian.Uint32(data[24:28])
	return nil
}

// GbcHeader is shared by geo broadcast and geo anycast, the header type tells the shape.
type GbcHeader struct {
	SequenceNumber SequenceNumber
	Reserved1      uint16
	Source         LongPositionVector
	Latitude       GeoAngle
	Longitude      GeoAngle
	DistanceA      uint16
	DistanceB      uint16
	Angle          uint16
	Reserved2      uint16
}

func (h *GbcHeader) Length() int                             { return GbcHeaderLength }
func (h *GbcHeader) SourcePosition() LongPositionVector      { return h.Source }
func (h *GbcHeader) SetSourcePosition(pv LongPositionVector) { h.Source = pv }
func (h *GbcHeader) Clone() ExtendedHeader                   { c := *h; return &c }

func (h *GbcHeader) SerializeTo(b gopacket.SerializeBuffer) error {
	buf, err := b.AppendBytes(GbcHeaderLength)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(buf[0:2], uint16(h.SequenceNumber))
	binary.BigEndian.PutUint16(buf[2:4], h.Reserved1)
	h.Source.put(buf[4:28])
	binary.BigEndian.PutUint32(buf[28:32], uint32(h.Latitude))
	binary.BigEndian.PutUint32(buf[32:36], uint32(h.Longitude))
	binary.BigEndian.PutUint16(buf[36:38], h.DistanceA)
	binary.BigEndian.PutUint16(buf[38:40], h.DistanceB)
	binary.BigEndian.PutUint16(buf[40:42], h.Angle)
	binary.BigEndian.PutUint16(buf[42:44], h.Reserved2)
	return nil
}

func (h *GbcHeader) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if err := checkLength("gbc", data, GbcHeaderLength, df); err != nil {
		return err
	}
	h.SequenceNumber = SequenceNumber(binary.BigEndian.Uint16(data[0:2]))
	h.Reserved1 = binary.BigEndian.Uint16(data[2:4])
	h.Source = parseLongPositionVector(data[4:28])
	h.Latitude = GeoAngle(binary.BigEndian.Uint32(data[28:32]))
	h.Longitude = GeoAngle(binary.BigEndian.Uint32(data[32:36]))
	h.DistanceA = binary.BigEndian.Uint16(data[36:38])
	h.DistanceB = binary.BigEndian.Uint16(data[38:40])
	h.Angle = binary.BigEndian.Uint16(data[40:42])
	h.Reserved2 = binary.BigEndian.Uint16(data[42:44])
	return nil
}

func metres(v float64) uint16 {
	return uint16(max(min(math.Round(v), math.MaxUint16), 0))
}

// azimuth converts degrees clockwise from north to whole degrees in [0, 360).
func azimuth(deg float64) uint16 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return uint16(math.Round(deg)) % 360
}

// SetDestination writes area into the header and returns the geo broadcast header type for its shape.
func (h *GbcHeader) SetDestination(area geo.Area) HeaderType {
	a, b := area.Shape.Dimensions()
	h.Latitude = GeoAngleFromDegrees(area.Position.Latitude)
	h.Longitude = GeoAngleFromDegrees(area.Position.Longitude)
	h.DistanceA = metres(a)
	h.DistanceB = metres(b)
	h.Angle = azimuth(area.Angle)
	return GeoBroadcastHeaderType(area.Shape)
}

// Destination decodes the target area. The shape comes from the subtype of ht.
func (h *GbcHeader) Destination(ht HeaderType) (geo.Area, error) {
	var shape geo.Shape
	switch ht & 0x0f {
	case 0:
		shape = geo.Circle{Radius: float64(h.DistanceA)}
	case 1:
		shape = geo.Rectangle{A: float64(h.DistanceA), B: float64(h.DistanceB)}
	case 2:
		shape = geo.Ellipse{A: float64(h.DistanceA), B: float64(h.DistanceB)}
	default:
		return geo.Area{}, fmt.Errorf("area subtype of %v: %w", ht, ErrUnknownHeaderType)
	}
	pos := geo.Position{Latitude: h.Latitude.Degrees(), Longitude: h.Longitude.Degrees()}
	return geo.NewArea(shape, pos, float64(h.Angle))
}

func shapeSubtype(shape geo.Shape) HeaderType {
	switch shape.(type) {
	case geo.Rectangle:
		return 1
	case geo.Ellipse:
		return 2
	}
	return 0
}

func GeoBroadcastHeaderType(shape geo.Shape) HeaderType {
	return HeaderTypeGeoBcastCircle | shapeSubtype(shape)
}

func GeoAnycastHeaderType(shape geo.Shape) HeaderType {
	return HeaderTypeGeoAnycastCircle | shapeSubtype(shape)
}

// NewExtendedHeader returns an empty header matching ht.
func NewExtendedHeader(ht HeaderType) (ExtendedHeader, error) {
	switch {
	case ht == HeaderTypeBeacon:
		return &BeaconHeader{}, nil
	case ht == HeaderTypeTsbSingleHop:
		return &ShbHeader{}, nil
	case ht.IsGeoBroadcast(), ht.IsGeoAnycast():
		return &GbcHeader{}, nil
	}
	return nil, fmt.Errorf("header type %v: %w", ht, ErrUnknownHeaderType)
}

// DecodeExtended parses the extended header selected by ht.
func DecodeExtended(ht HeaderType, data []byte, df gopacket.DecodeFeedback) (ExtendedHeader, error) {
	h, err := NewExtendedHeader(ht)
	if err != nil {
		return nil, err
	}
	if err := h.DecodeFromBytes(data, df); err != nil {
		return nil, err
	}
	return h, nil
}
