package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/encodeous/geonet/geo"
	"github.com/encodeous/geonet/protocol"
)

type AreaForwardingAlgorithm uint8

const (
	AreaUnspecified AreaForwardingAlgorithm = iota
	AreaSimple
	AreaCbf
	AreaAdvanced
)

type NonAreaForwardingAlgorithm uint8

const (
	NonAreaUnspecified NonAreaForwardingAlgorithm = iota
	NonAreaGreedy
	NonAreaCbf
)

// DecapHandling selects what happens to packets whose decapsulation did not succeed.
type DecapHandling uint8

const (
	DecapStrict DecapHandling = iota
	DecapNonStrict
)

type AddressConfiguration uint8

const (
	AddressAuto AddressConfiguration = iota
	AddressManaged
	AddressAnonymous
)

type SecurityEntityKind uint8

const (
	SecurityNone SecurityEntityKind = iota
	SecurityNull
	SecurityNaive
)

// enumText maps text values of a configuration enum to its integer values.
type enumText[T ~uint8] []string

func (e enumText[T]) name(v T) string {
	if int(v) >= len(e) {
		return fmt.Sprintf("invalid(%d)", v)
	}
	return e[v]
}

func (e enumText[T]) marshal(v T) ([]byte, error) {
	if int(v) >= len(e) {
		return nil, fmt.Errorf("invalid value %d", v)
	}
	return []byte(e[v]), nil
}

func (e enumText[T]) unmarshal(text []byte, v *T) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for i, name := range e {
		if name == s {
			*v = T(i)
			return nil
		}
	}
	return fmt.Errorf("%q is not one of %v", s, []string(e))
}

var (
	areaAlgorithmNames    = enumText[AreaForwardingAlgorithm]{"unspecified", "simple", "cbf", "advanced"}
	nonAreaAlgorithmNames = enumText[NonAreaForwardingAlgorithm]{"unspecified", "greedy", "cbf"}
	decapHandlingNames    = enumText[DecapHandling]{"strict", "non-strict"}
	addressConfigNames    = enumText[AddressConfiguration]{"auto", "managed", "anonymous"}
	securityEntityNames   = enumText[SecurityEntityKind]{"none", "null", "naive"}
)

func (a AreaForwardingAlgorithm) MarshalText() ([]byte, error) { return areaAlgorithmNames.marshal(a) }
func (a *AreaForwardingAlgorithm) UnmarshalText(text []byte) error {
	return areaAlgorithmNames.unmarshal(text, a)
}
func (a AreaForwardingAlgorithm) String() string { return areaAlgorithmNames.name(a) }

func (a NonAreaForwardingAlgorithm) MarshalText() ([]byte, error) {
	return nonAreaAlgorithmNames.marshal(a)
}
func (a *NonAreaForwardingAlgorithm) UnmarshalText(text []byte) error {
	return nonAreaAlgorithmNames.unmarshal(text, a)
}
func (a NonAreaForwardingAlgorithm) String() string { return nonAreaAlgorithmNames.name(a) }

func (d DecapHandling) MarshalText() ([]byte, error) { return decapHandlingNames.marshal(d) }
func (d *DecapHandling) UnmarshalText(text []byte) error {
	return decapHandlingNames.unmarshal(text, d)
}
func (d DecapHandling) String() string { return decapHandlingNames.name(d) }

func (a AddressConfiguration) MarshalText() ([]byte, error) { return addressConfigNames.marshal(a) }
func (a *AddressConfiguration) UnmarshalText(text []byte) error {
	return addressConfigNames.unmarshal(text, a)
}
func (a AddressConfiguration) String() string { return addressConfigNames.name(a) }

func (k SecurityEntityKind) MarshalText() ([]byte, error) { return securityEntityNames.marshal(k) }
func (k *SecurityEntityKind) UnmarshalText(text []byte) error {
	return securityEntityNames.unmarshal(text, k)
}
func (k SecurityEntityKind) String() string { return securityEntityNames.name(k) }

// MIB holds the GeoNetworking management information base. Buffer sizes are in KiB,
// MaxGeoAreaSize in km², MaxPacketDataRate in kB/s.
type MIB struct {
	AddressConfiguration         AddressConfiguration       `yaml:"address_configuration"`
	IsMobile                     bool                       `yaml:"is_mobile"`
	MaxSduSize                   int                        `yaml:"max_sdu_size"`
	MaxPacketLifetime            time.Duration              `yaml:"max_packet_lifetime"`
	DefaultPacketLifetime        time.Duration              `yaml:"default_packet_lifetime"`
	MinPacketRepetitionInterval  time.Duration              `yaml:"min_packet_repetition_interval"`
	MaxGeoAreaSize               float64                    `yaml:"max_geo_area_size"`
	LifetimeLocTE                time.Duration              `yaml:"lifetime_loc_te"`
	DefaultHopLimit              uint8                      `yaml:"default_hop_limit"`
	BeaconServiceRetransmitTimer time.Duration              `yaml:"beacon_retransmit_timer"`
	BeaconServiceMaxJitter       time.Duration              `yaml:"beacon_max_jitter"`
	UcForwardingPacketBufferSize int                        `yaml:"uc_forwarding_buffer_size"`
	BcForwardingPacketBufferSize int                        `yaml:"bc_forwarding_buffer_size"`
	CbfPacketBufferSize          int                        `yaml:"cbf_buffer_size"`
	CbfMinTime                   time.Duration              `yaml:"cbf_min_time"`
	CbfMaxTime                   time.Duration              `yaml:"cbf_max_time"`
	DefaultMaxCommunicationRange float64                    `yaml:"max_communication_range"`
	BroadcastCbfDefSectorAngle   float64                    `yaml:"cbf_sector_angle"`
	CbfMaxCounter                int                        `yaml:"cbf_max_counter"`
	AreaForwardingAlgorithm      AreaForwardingAlgorithm    `yaml:"area_forwarding"`
	NonAreaForwardingAlgorithm   NonAreaForwardingAlgorithm `yaml:"non_area_forwarding"`
	MaxPacketDataRate            float64                    `yaml:"max_packet_data_rate"`
	MaxPacketDataRateEmaBeta     float64                    `yaml:"packet_data_rate_ema_beta"`
	DuplicatePacketListLength    int                        `yaml:"duplicate_packet_list_length"`
	SecurityEnabled              bool                       `yaml:"security"`
	DecapHandling                DecapHandling              `yaml:"decap_handling"`
}

// DefaultMIB returns the default values of EN 302 636-4-1 Annex H.
func DefaultMIB() MIB {
	return MIB{
		AddressConfiguration:         AddressAuto,
		IsMobile:                     true,
		MaxSduSize:                   1398,
		MaxPacketLifetime:            600 * time.Second,
		DefaultPacketLifetime:        60 * time.Second,
		MinPacketRepetitionInterval:  100 * time.Millisecond,
		MaxGeoAreaSize:               10,
		LifetimeLocTE:                20 * time.Second,
		DefaultHopLimit:              10,
		BeaconServiceRetransmitTimer: 3 * time.Second,
		BeaconServiceMaxJitter:       750 * time.Millisecond,
		UcForwardingPacketBufferSize: 256,
		BcForwardingPacketBufferSize: 1024,
		CbfPacketBufferSize:          256,
		CbfMinTime:                   time.Millisecond,
		CbfMaxTime:                   100 * time.Millisecond,
		DefaultMaxCommunicationRange: 1000,
		BroadcastCbfDefSectorAngle:   30,
		CbfMaxCounter:                3,
		AreaForwardingAlgorithm:      AreaCbf,
		NonAreaForwardingAlgorithm:   NonAreaGreedy,
		MaxPacketDataRate:            100,
		MaxPacketDataRateEmaBeta:     0.9,
		DuplicatePacketListLength:    8,
		SecurityEnabled:              false,
		DecapHandling:                DecapStrict,
	}
}

type LinkCfg struct {
	// Group is the IPv4 multicast group and port emulating the broadcast medium
	Group     string `yaml:"group"`
	Interface string `yaml:"interface,omitempty"`
	// Loopback delivers our own multicast frames back to this host, needed for several stations on one machine
	Loopback bool `yaml:"loopback,omitempty"`
}

type PositionCfg struct {
	geo.Position `yaml:",inline"`
	Speed        float64 `yaml:"speed,omitempty"`
	Heading      float64 `yaml:"heading,omitempty"`
	Accurate     bool    `yaml:"accurate"`
}

type SecurityCfg struct {
	Entity  SecurityEntityKind `yaml:"entity"`
	Key     PrivateKey         `yaml:"key,omitempty"`
	Trusted []PublicKey        `yaml:"trusted,omitempty"`
}

type AreaCfg struct {
	Shape     string  `yaml:"shape"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	A         float64 `yaml:"a"`
	B         float64 `yaml:"b,omitempty"`
	Angle     float64 `yaml:"angle,omitempty"`
}

func (a AreaCfg) Area() (geo.Area, error) {
	var shape geo.Shape
	switch strings.ToLower(a.Shape) {
	case "circle", "":
		shape = geo.Circle{Radius: a.A}
	case "rectangle", "rect":
		shape = geo.Rectangle{A: a.A, B: a.B}
	case "ellipse":
		shape = geo.Ellipse{A: a.A, B: a.B}
	default:
		return geo.Area{}, fmt.Errorf("unknown area shape %q", a.Shape)
	}
	return geo.NewArea(shape, geo.Position{Latitude: a.Latitude, Longitude: a.Longitude}, a.Angle)
}

// TrafficCfg describes a periodic test request issued by the node itself.
type TrafficCfg struct {
	Kind         string         `yaml:"kind"`
	Interval     time.Duration  `yaml:"interval"`
	Payload      string         `yaml:"payload"`
	Area         *AreaCfg       `yaml:"area,omitempty"`
	TrafficClass uint8          `yaml:"traffic_class,omitempty"`
	Lifetime     time.Duration  `yaml:"lifetime,omitempty"`
	Repetition   *RepetitionCfg `yaml:"repetition,omitempty"`
}

type RepetitionCfg struct {
	Interval time.Duration `yaml:"interval"`
	Maximum  time.Duration `yaml:"maximum"`
}

// NodeCfg represents local node-level configuration
type NodeCfg struct {
	Id       string           `yaml:"id"`
	Address  protocol.Address `yaml:"address"`
	Link     LinkCfg          `yaml:"link"`
	Position PositionCfg      `yaml:"position"`
	Security SecurityCfg      `yaml:"security,omitempty"`
	LogPath  string           `yaml:"log_path,omitempty"`
	Traffic  []TrafficCfg     `yaml:"traffic,omitempty"`
	MIB      MIB              `yaml:"mib"`
}

// DefaultNodeCfg returns a runnable configuration for a station with the given MID and position.
func DefaultNodeCfg(id string, mid protocol.MacAddress, pos geo.Position) NodeCfg {
	return NodeCfg{
		Id: id,
		Address: protocol.Address{
			StationType: protocol.StationPassengerCar,
			MID:         mid,
		},
		Link: LinkCfg{Group: DefaultGroup, Loopback: true},
		Position: PositionCfg{
			Position: pos,
			Accurate: true,
		},
		MIB: DefaultMIB(),
	}
}
