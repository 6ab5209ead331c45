package protocol

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

// MacAddress is the 48 bit link-layer address also used as GN address MID.
type MacAddress [6]byte

var BroadcastMac = MacAddress{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func ParseMac(s string) (MacAddress, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MacAddress{}, err
	}
	if len(hw) != 6 {
		return MacAddress{}, fmt.Errorf("%s is not a 48 bit MAC address", s)
	}
	return MacAddress(hw), nil
}

func (m MacAddress) String() string {
	return net.HardwareAddr(m[:]).String()
}

func (m MacAddress) IsBroadcast() bool {
	return m == BroadcastMac
}

func (m MacAddress) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MacAddress) UnmarshalText(text []byte) error {
	mac, err := ParseMac(string(text))
	if err != nil {
		return err
	}
	*m = mac
	return nil
}

// StationType of the ITS station, encoded in 5 bits.
type StationType uint8

const (
	StationUnknown        StationType = 0
	StationPedestrian     StationType = 1
	StationCyclist        StationType = 2
	StationMoped          StationType = 3
	StationMotorcycle     StationType = 4
	StationPassengerCar   StationType = 5
	StationBus            StationType = 6
	StationLightTruck     StationType = 7
	StationHeavyTruck     StationType = 8
	StationTrailer        StationType = 9
	StationSpecialVehicle StationType = 10
	StationTram           StationType = 11
	StationRoadSideUnit   StationType = 15
)

var stationTypeNames = map[StationType]string{
	StationUnknown:        "unknown",
	StationPedestrian:     "pedestrian",
	StationCyclist:        "cyclist",
	StationMoped:          "moped",
	StationMotorcycle:     "motorcycle",
	StationPassengerCar:   "passenger_car",
	StationBus:            "bus",
	StationLightTruck:     "light_truck",
	StationHeavyTruck:     "heavy_truck",
	StationTrailer:        "trailer",
	StationSpecialVehicle: "special_vehicle",
	StationTram:           "tram",
	StationRoadSideUnit:   "rsu",
}

func (s StationType) String() string {
	if n, ok := stationTypeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("station(%d)", uint8(s))
}

func (s StationType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StationType) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for k, v := range stationTypeNames {
		if v == name {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown station type %q", name)
}

const AddressLength = 8

// Address is the 64 bit GeoNetworking address.
type Address struct {
	Manual      bool        `yaml:"manual"`
	StationType StationType `yaml:"station_type"`
	// CountryCode uses the lower 10 bits only
	CountryCode uint16     `yaml:"country"`
	MID         MacAddress `yaml:"mid"`
}

func (a Address) String() string {
	m := "auto"
	if a.Manual {
		m = "manual"
	}
	return fmt.Sprintf("%s/%s/%d/%s", m, a.StationType, a.CountryCode, a.MID)
}

func (a Address) put(b []byte) {
	var word uint16
	if a.Manual {
		word = 1 << 15
	}
	word |= uint16(a.StationType&0x1f) << 10
	word |= a.CountryCode & 0x3ff
	binary.BigEndian.PutUint16(b, word)
	copy(b[2:8], a.MID[:])
}

func parseAddress(b []byte) Address {
	word := binary.BigEndian.Uint16(b)
	var a Address
	a.Manual = word&(1<<15) != 0
	a.StationType = StationType((word >> 10) & 0x1f)
	a.CountryCode = word & 0x3ff
	copy(a.MID[:], b[2:8])
	return a
}

// Less orders addresses by their wire representation.
func (a Address) Less(o Address) bool {
	var x, y [AddressLength]byte
	a.put(x[:])
	o.put(y[:])
	return string(x[:]) < string(y[:])
}
