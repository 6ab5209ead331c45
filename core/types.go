package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/encodeous/geonet/geo"
	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/security"
	"github.com/encodeous/geonet/state"
)

var (
	ErrUnimplementedAlgorithm = state.ErrUnimplementedAlgorithm
	ErrMissingSecurityEntity  = errors.New("security is enabled but no security entity is configured")
)

type ResultCode uint8

const (
	Accepted ResultCode = iota
	RejectedMaxSduSize
	RejectedMaxLifetime
	RejectedMinRepetitionInterval
	RejectedUnsupportedTrafficClass
	RejectedMaxGeoAreaSize
	RejectedUnspecified
)

var resultNames = [...]string{
	Accepted:                        "accepted",
	RejectedMaxSduSize:              "rejected_max_sdu_size",
	RejectedMaxLifetime:             "rejected_max_lifetime",
	RejectedMinRepetitionInterval:   "rejected_min_repetition_interval",
	RejectedUnsupportedTrafficClass: "rejected_unsupported_traffic_class",
	RejectedMaxGeoAreaSize:          "rejected_max_geo_area_size",
	RejectedUnspecified:             "rejected_unspecified",
}

func (r ResultCode) String() string {
	if int(r) < len(resultNames) {
		return resultNames[r]
	}
	return fmt.Sprintf("invalid(%d)", uint8(r))
}

// DataConfirm is the answer to a request. The first rejection recorded wins.
type DataConfirm struct {
	Result ResultCode
}

func (c DataConfirm) Accepted() bool {
	return c.Result == Accepted
}

func (c *DataConfirm) reject(r ResultCode) {
	if c.Result == Accepted {
		c.Result = r
	}
}

// Repetition asks for the request to be sent again every Interval until Maximum has elapsed.
type Repetition struct {
	Interval time.Duration
	Maximum  time.Duration
}

type CommunicationProfile uint8

const (
	ProfileUnspecified CommunicationProfile = iota
	ProfileItsG5
)

// RequestBase holds the parameters shared by every data request.
type RequestBase struct {
	UpperProtocol protocol.UpperProtocol
	TrafficClass  protocol.TrafficClass
	Lifetime      time.Duration
	Repetition    *Repetition
	MaxHopLimit   uint8
	Profile       CommunicationProfile
	Aid           security.ItsAid
}

// NewRequestBase returns a base filled with the defaults of mib.
func NewRequestBase(mib state.MIB) RequestBase {
	return RequestBase{
		UpperProtocol: protocol.UpperProtocolBtpB,
		Lifetime:      mib.DefaultPacketLifetime,
		MaxHopLimit:   mib.DefaultHopLimit,
		Profile:       ProfileItsG5,
	}
}

// DataRequest is one of *ShbDataRequest, *GbcDataRequest, *GacDataRequest,
// *GucDataRequest or *TsbDataRequest.
type DataRequest interface {
	Base() *RequestBase
	clone() DataRequest
}

type ShbDataRequest struct {
	RequestBase
}

type GbcDataRequest struct {
	RequestBase
	Destination geo.Area
}

type GacDataRequest struct {
	RequestBase
	Destination geo.Area
}

type GucDataRequest struct {
	RequestBase
	Destination protocol.Address
}

type TsbDataRequest struct {
	RequestBase
}

func (r *ShbDataRequest) Base() *RequestBase { return &r.RequestBase }
func (r *GbcDataRequest) Base() *RequestBase { return &r.RequestBase }
func (r *GacDataRequest) Base() *RequestBase { return &r.RequestBase }
func (r *GucDataRequest) Base() *RequestBase { return &r.RequestBase }
func (r *TsbDataRequest) Base() *RequestBase { return &r.RequestBase }

func cloneBase(b RequestBase) RequestBase {
	if b.Repetition != nil {
		rep := *b.Repetition
		b.Repetition = &rep
	}
	return b
}

func (r *ShbDataRequest) clone() DataRequest {
	return &ShbDataRequest{RequestBase: cloneBase(r.RequestBase)}
}

func (r *GbcDataRequest) clone() DataRequest {
	return &GbcDataRequest{RequestBase: cloneBase(r.RequestBase), Destination: r.Destination}
}

func (r *GacDataRequest) clone() DataRequest {
	return &GacDataRequest{RequestBase: cloneBase(r.RequestBase), Destination: r.Destination}
}

func (r *GucDataRequest) clone() DataRequest {
	return &GucDataRequest{RequestBase: cloneBase(r.RequestBase), Destination: r.Destination}
}

func (r *TsbDataRequest) clone() DataRequest {
	return &TsbDataRequest{RequestBase: cloneBase(r.RequestBase)}
}

type TransportType uint8

const (
	TransportShb TransportType = iota
	TransportGbc
	TransportGac
	TransportGuc
	TransportTsb
)

func (t TransportType) String() string {
	switch t {
	case TransportShb:
		return "shb"
	case TransportGbc:
		return "gbc"
	case TransportGac:
		return "gac"
	case TransportGuc:
		return "guc"
	case TransportTsb:
		return "tsb"
	}
	return fmt.Sprintf("transport(%d)", uint8(t))
}

// DataIndication describes a packet delivered to an upper protocol.
type DataIndication struct {
	UpperProtocol     protocol.UpperProtocol
	Transport         TransportType
	Destination       *geo.Area
	Source            protocol.LongPositionVector
	Sender            protocol.MacAddress
	TrafficClass      protocol.TrafficClass
	RemainingLifetime time.Duration
	RemainingHopLimit uint8
	Secured           bool
	SecurityReport    security.DecapReport
	Aid               security.ItsAid
}

// TransportHandler receives the payloads of one upper protocol. The payload is owned by the handler.
type TransportHandler interface {
	Indicate(ind DataIndication, payload []byte)
}

type TransportFunc func(ind DataIndication, payload []byte)

func (f TransportFunc) Indicate(ind DataIndication, payload []byte) {
	f(ind, payload)
}

type PacketDropReason uint8

const (
	DropParseBasicHeader PacketDropReason = iota
	DropParseCommonHeader
	DropParseSecuredHeader
	DropParseExtendedHeader
	DropItsProtocolVersion
	DropDecapUnsuccessfulNonStrict
	DropDecapUnsuccessfulStrict
	DropHopLimit
	DropPayloadSize
	DropSecurityEntityMissing
	DropDuplicatePacket
)

var dropNames = [...]string{
	DropParseBasicHeader:           "parse_basic_header",
	DropParseCommonHeader:          "parse_common_header",
	DropParseSecuredHeader:         "parse_secured_header",
	DropParseExtendedHeader:        "parse_extended_header",
	DropItsProtocolVersion:         "its_protocol_version",
	DropDecapUnsuccessfulNonStrict: "decap_unsuccessful_non_strict",
	DropDecapUnsuccessfulStrict:    "decap_unsuccessful_strict",
	DropHopLimit:                   "hop_limit",
	DropPayloadSize:                "payload_size",
	DropSecurityEntityMissing:      "security_entity_missing",
	DropDuplicatePacket:            "duplicate_packet",
}

func (r PacketDropReason) String() string {
	if int(r) < len(dropNames) {
		return dropNames[r]
	}
	return fmt.Sprintf("invalid(%d)", uint8(r))
}

type ForwardingStopReason uint8

const (
	StopHopLimit ForwardingStopReason = iota
	StopSourcePdr
	StopSenderPdr
	StopOutsideDestinationArea
)

func (r ForwardingStopReason) String() string {
	switch r {
	case StopHopLimit:
		return "hop_limit"
	case StopSourcePdr:
		return "source_pdr"
	case StopSenderPdr:
		return "sender_pdr"
	case StopOutsideDestinationArea:
		return "outside_destination_area"
	}
	return fmt.Sprintf("invalid(%d)", uint8(r))
}
