package state

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/encodeous/geonet/protocol"
)

var (
	ErrInvalidConfig          = errors.New("invalid configuration")
	ErrUnimplementedAlgorithm = errors.New("forwarding algorithm is not implemented")
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

// GroupValidator accepts an IPv4 multicast group with a port.
func GroupValidator(s string) error {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return err
	}
	if !ap.Addr().Is4() || !ap.Addr().IsMulticast() {
		return fmt.Errorf("%s is not an IPv4 multicast group", ap.Addr())
	}
	if ap.Port() == 0 {
		return fmt.Errorf("group %s has no port", s)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidConfig)
}

// Validate rejects management values the router cannot operate with.
func (m *MIB) Validate() error {
	switch m.AreaForwardingAlgorithm {
	case AreaCbf, AreaAdvanced:
	default:
		return fmt.Errorf("area forwarding %s: %w", m.AreaForwardingAlgorithm, ErrUnimplementedAlgorithm)
	}
	if m.NonAreaForwardingAlgorithm > NonAreaCbf {
		return invalid("non-area forwarding %s", m.NonAreaForwardingAlgorithm)
	}
	if m.DecapHandling > DecapNonStrict {
		return invalid("decap handling %s", m.DecapHandling)
	}
	if m.AddressConfiguration > AddressAnonymous {
		return invalid("address configuration %s", m.AddressConfiguration)
	}
	if m.MaxSduSize <= 0 {
		return invalid("max_sdu_size must be positive")
	}
	if m.DefaultPacketLifetime <= 0 || m.DefaultPacketLifetime > m.MaxPacketLifetime {
		return invalid("default_packet_lifetime %v must be within (0, %v]", m.DefaultPacketLifetime, m.MaxPacketLifetime)
	}
	if m.MinPacketRepetitionInterval < 0 {
		return invalid("min_packet_repetition_interval is negative")
	}
	if m.MaxGeoAreaSize <= 0 {
		return invalid("max_geo_area_size must be positive")
	}
	if m.LifetimeLocTE <= 0 {
		return invalid("lifetime_loc_te must be positive")
	}
	if m.BeaconServiceRetransmitTimer <= 0 || m.BeaconServiceMaxJitter < 0 {
		return invalid("beacon timers must be positive")
	}
	if m.UcForwardingPacketBufferSize < 0 || m.BcForwardingPacketBufferSize < 0 || m.CbfPacketBufferSize < 0 {
		return invalid("buffer sizes must not be negative")
	}
	if m.CbfMinTime < 0 || m.CbfMaxTime < m.CbfMinTime {
		return invalid("cbf timers must satisfy 0 <= cbf_min_time (%v) <= cbf_max_time (%v)", m.CbfMinTime, m.CbfMaxTime)
	}
	if m.DefaultMaxCommunicationRange <= 0 {
		return invalid("max_communication_range must be positive")
	}
	if m.BroadcastCbfDefSectorAngle <= 0 || m.BroadcastCbfDefSectorAngle > 180 {
		return invalid("cbf_sector_angle %v must be within (0, 180]", m.BroadcastCbfDefSectorAngle)
	}
	if m.CbfMaxCounter < 1 {
		return invalid("cbf_max_counter must be at least 1")
	}
	if m.MaxPacketDataRateEmaBeta < 0 || m.MaxPacketDataRateEmaBeta >= 1 {
		return invalid("packet_data_rate_ema_beta must be within [0, 1)")
	}
	if m.DuplicatePacketListLength < 1 {
		return invalid("duplicate_packet_list_length must be at least 1")
	}
	return nil
}

func TrafficValidator(t *TrafficCfg) error {
	switch strings.ToLower(t.Kind) {
	case "shb":
	case "gbc":
		if t.Area == nil {
			return invalid("gbc traffic needs an area")
		}
		if _, err := t.Area.Area(); err != nil {
			return err
		}
	default:
		return invalid("unknown traffic kind %q", t.Kind)
	}
	if t.Interval <= 0 {
		return invalid("traffic interval must be positive")
	}
	return nil
}

func NodeConfigValidator(node *NodeCfg) error {
	err := NameValidator(node.Id)
	if err != nil {
		return err
	}
	err = GroupValidator(node.Link.Group)
	if err != nil {
		return err
	}
	if node.LogPath != "" {
		if err := PathValidator(node.LogPath); err != nil {
			return err
		}
	}
	if node.Address.MID == (protocol.MacAddress{}) {
		return invalid("address.mid must be set")
	}
	if node.Address.MID[0]&0x01 != 0 {
		return invalid("address.mid %s is a group address", node.Address.MID)
	}
	if node.MIB.SecurityEnabled && node.Security.Entity == SecurityNone {
		return invalid("mib.security is enabled but no security entity is configured")
	}
	if node.Security.Entity == SecurityNaive && node.Security.Key.IsZero() {
		return invalid("security.key is required by the naive entity")
	}
	for i := range node.Traffic {
		if err := TrafficValidator(&node.Traffic[i]); err != nil {
			return fmt.Errorf("traffic[%d]: %w", i, err)
		}
	}
	return node.MIB.Validate()
}
