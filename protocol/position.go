package protocol

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/encodeous/geonet/geo"
)

// ItsEpoch is the reference of GN timestamps and security generation times, 2004-01-01 00:00:00 UTC.
var ItsEpoch = time.Date(2004, time.January, 1, 0, 0, 0, 0, time.UTC)

// Timestamp counts milliseconds since the ITS epoch modulo 2^32.
type Timestamp uint32

func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp(uint32(t.Sub(ItsEpoch).Milliseconds()))
}

// After compares using serial number arithmetic, so it survives wrap-around.
func (t Timestamp) After(o Timestamp) bool {
	d := uint32(t) - uint32(o)
	return d != 0 && d < 1<<31
}

// GeoAngle is a latitude or longitude in tenths of a micro degree.
type GeoAngle int32

func GeoAngleFromDegrees(deg float64) GeoAngle {
	return GeoAngle(math.Round(deg * 1e7))
}

func (g GeoAngle) Degrees() float64 {
	return float64(g) / 1e7
}

const (
	LongPositionVectorLength  = 24
	ShortPositionVectorLength = 20

	maxSpeed = 1<<14 - 1
	minSpeed = -(1 << 14)
)

// SpeedFromMetresPerSecond converts to the 15 bit signed wire unit of 0.01 m/s, saturating.
func SpeedFromMetresPerSecond(v float64) int16 {
	s := math.Round(v * 100)
	return int16(max(min(s, maxSpeed), minSpeed))
}

// HeadingFromDegrees converts to the wire unit of 0.1 degree.
func HeadingFromDegrees(deg float64) uint16 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return uint16(math.Round(deg*10)) % 3600
}

// LongPositionVector is carried by the source of every GN packet.
type LongPositionVector struct {
	Address          Address
	Timestamp        Timestamp
	Latitude         GeoAngle
	Longitude        GeoAngle
	PositionAccuracy bool
	Speed            int16
	Heading          uint16
}

func (pv LongPositionVector) Position() geo.Position {
	return geo.Position{Latitude: pv.Latitude.Degrees(), Longitude: pv.Longitude.Degrees()}
}

func (pv LongPositionVector) SpeedMetresPerSecond() float64 {
	return float64(pv.Speed) / 100
}

func (pv LongPositionVector) HeadingDegrees() float64 {
	return float64(pv.Heading) / 10
}

func (pv LongPositionVector) Short() ShortPositionVector {
	return ShortPositionVector{
		Address:   pv.Address,
		Timestamp: pv.Timestamp,
		Latitude:  pv.Latitude,
		Longitude: pv.Longitude,
	}
}

func (pv LongPositionVector) put(b []byte) {
	pv.Address.put(b[0:8])
	binary.BigEndian.PutUint32(b[8:12], uint32(pv.Timestamp))
	binary.BigEndian.PutUint32(b[12:16], uint32(pv.Latitude))
	binary.BigEndian.PutUint32(b[16:20], uint32(pv.Longitude))
	word := uint16(pv.Speed) & 0x7fff
	if pv.PositionAccuracy {
		word |= 1 << 15
	}
	binary.BigEndian.PutUint16(b[20:22], word)
	binary.BigEndian.PutUint16(b[22:24], pv.Heading)
}

func parseLongPositionVector(b []byte) LongPositionVector {
	word := binary.BigEndian.Uint16(b[20:22])
	return LongPositionVector{
		Address:          parseAddress(b[0:8]),
		Timestamp:        Timestamp(binary.BigEndian.Uint32(b[8:12])),
		Latitude:         GeoAngle(binary.BigEndian.Uint32(b[12:16])),
		Longitude:        GeoAngle(binary.BigEndian.Uint32(b[16:20])),
		PositionAccuracy: word&(1<<15) != 0,
		// sign extend the 15 bit field
		Speed:   int16(word<<1) >> 1,
		Heading: binary.BigEndian.Uint16(b[22:24]),
	}
}

// ShortPositionVector is the truncated form without accuracy, speed and heading.
type ShortPositionVector struct {
	Address   Address
	Timestamp Timestamp
	Latitude  GeoAngle
	Longitude GeoAngle
}

func (pv ShortPositionVector) Position() geo.Position {
	return geo.Position{Latitude: pv.Latitude.Degrees(), Longitude: pv.Longitude.Degrees()}
}

func (pv ShortPositionVector) put(b []byte) {
	pv.Address.put(b[0:8])
	binary.BigEndian.PutUint32(b[8:12], uint32(pv.Timestamp))
	binary.BigEndian.PutUint32(b[12:16], uint32(pv.Latitude))
	binary.BigEndian.PutUint32(b[16:20], uint32(pv.Longitude))
}

func parseShortPositionVector(b []byte) ShortPositionVector {
	return ShortPositionVector{
		Address:   parseAddress(b[0:8]),
		Timestamp: Timestamp(binary.BigEndian.Uint32(b[8:12])),
		Latitude:  GeoAngle(binary.BigEndian.Uint32(b[12:16])),
		Longitude: GeoAngle(binary.BigEndian.Uint32(b[16:20])),
	}
}
