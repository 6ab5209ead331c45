package core

import (
	"crypto/ed25519"
	"fmt"
	"strings"
	"time"

	"github.com/encodeous/geonet/link"
	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/security"
	"github.com/encodeous/geonet/state"
)

// GeoNet runs a router on the UDP link emulation. All router access happens on the main loop.
type GeoNet struct {
	Router *Router
	link   *link.UDPLink
}

func (g *GeoNet) Init(s *state.State) error {
	s.Log.Info("init geonet", "address", s.Address)
	r, err := NewRouter(s.Env, s.MIB, s.Log.With("module", "router"))
	if err != nil {
		return err
	}
	g.Router = r
	r.SetAddress(s.Address)
	g.updatePosition(s)

	entity, err := newSecurityEntity(s.Security)
	if err != nil {
		return err
	}
	if entity != nil {
		r.SetSecurityEntity(entity)
	}

	trace := Get[*Trace](s)
	r.SetDropHook(func(reason PacketDropReason) {
		trace.Publish(TraceEvent{Kind: TraceDrop, Time: time.Now(), Reason: reason.String()})
	})
	r.SetForwardingStopHook(func(reason ForwardingStopReason) {
		trace.Publish(TraceEvent{Kind: TraceStop, Time: time.Now(), Reason: reason.String()})
	})
	deliver := TransportFunc(func(ind DataIndication, payload []byte) {
		s.Log.Info("received", "transport", ind.Transport, "source", ind.Source.Address, "len", len(payload), "secured", ind.Secured)
		trace.Publish(TraceEvent{
			Kind:   TraceDeliver,
			Time:   time.Now(),
			Reason: ind.Transport.String(),
			Detail: fmt.Sprintf("%s %q", ind.Source.Address, payload),
		})
	})
	r.SetTransportHandler(protocol.UpperProtocolBtpA, deliver)
	r.SetTransportHandler(protocol.UpperProtocolBtpB, deliver)

	g.link, err = link.NewUDPLink(s.Address.MID, s.Link, s.Log.With("module", "link"))
	if err != nil {
		return err
	}
	r.SetLinkLayer(g.link)
	r.SetAddressHook(func(addr protocol.Address) {
		g.link.SetAddress(addr.MID)
	})
	go g.receive(s)

	s.RepeatTask(func(s *state.State) error {
		g.updatePosition(s)
		return nil
	}, state.PositionUpdateDelay)
	s.RepeatTask(func(s *state.State) error {
		g.Router.LocationTable().DropExpired()
		return nil
	}, state.LocationTableGcDelay)
	r.StartBeaconing()

	for i := range s.Traffic {
		if err := g.startTraffic(s, s.Traffic[i]); err != nil {
			return fmt.Errorf("traffic[%d]: %w", i, err)
		}
	}
	return nil
}

func (g *GeoNet) Cleanup(s *state.State) error {
	if g.Router != nil {
		g.Router.Stop()
	}
	if g.link != nil {
		return g.link.Close()
	}
	return nil
}

func (g *GeoNet) receive(s *state.State) {
	err := g.link.Run(s.Context, func(f link.Frame) {
		s.Dispatch(func(s *state.State) error {
			return g.Router.Indicate(f.Payload, f.Source, f.Destination)
		})
	})
	if err != nil && s.Context.Err() == nil {
		s.Cancel(fmt.Errorf("link: %w", err))
	}
}

// updatePosition refreshes our position vector from the static position in the config.
func (g *GeoNet) updatePosition(s *state.State) {
	p := s.Position
	g.Router.UpdatePosition(protocol.LongPositionVector{
		Timestamp:        protocol.TimestampFromTime(time.Now()),
		Latitude:         protocol.GeoAngleFromDegrees(p.Latitude),
		Longitude:        protocol.GeoAngleFromDegrees(p.Longitude),
		PositionAccuracy: p.Accurate,
		Speed:            protocol.SpeedFromMetresPerSecond(p.Speed),
		Heading:          protocol.HeadingFromDegrees(p.Heading),
	})
}

func (g *GeoNet) startTraffic(s *state.State, t state.TrafficCfg) error {
	req, err := trafficRequest(s.MIB, t)
	if err != nil {
		return err
	}
	payload := []byte(t.Payload)
	s.RepeatTask(func(s *state.State) error {
		conf, err := g.Router.Request(req.clone(), payload)
		if err != nil {
			return err
		}
		if !conf.Accepted() {
			s.Log.Warn("request rejected", "kind", t.Kind, "result", conf.Result)
		}
		return nil
	}, t.Interval)
	return nil
}

func trafficRequest(mib state.MIB, t state.TrafficCfg) (DataRequest, error) {
	base := NewRequestBase(mib)
	base.TrafficClass = protocol.TrafficClass(t.TrafficClass)
	if t.Lifetime > 0 {
		base.Lifetime = t.Lifetime
	}
	if t.Repetition != nil {
		base.Repetition = &Repetition{Interval: t.Repetition.Interval, Maximum: t.Repetition.Maximum}
	}
	switch strings.ToLower(t.Kind) {
	case "shb":
		return &ShbDataRequest{RequestBase: base}, nil
	case "gbc":
		if t.Area == nil {
			return nil, fmt.Errorf("gbc traffic needs an area: %w", state.ErrInvalidConfig)
		}
		area, err := t.Area.Area()
		if err != nil {
			return nil, err
		}
		return &GbcDataRequest{RequestBase: base, Destination: area}, nil
	}
	return nil, fmt.Errorf("unknown traffic kind %q: %w", t.Kind, state.ErrInvalidConfig)
}

func newSecurityEntity(cfg state.SecurityCfg) (security.Entity, error) {
	switch cfg.Entity {
	case state.SecurityNone:
		return nil, nil
	case state.SecurityNull:
		return security.NullEntity{Now: time.Now}, nil
	case state.SecurityNaive:
		// the zero seed is a valid but publicly known key
		if cfg.Key.IsZero() {
			return nil, security.ErrNoSigningKey
		}
		trusted := make([]ed25519.PublicKey, 0, len(cfg.Trusted))
		for _, k := range cfg.Trusted {
			trusted = append(trusted, ed25519.PublicKey(k[:]))
		}
		e, err := security.NewNaiveEntity(cfg.Key.Signer(), trusted, time.Now, state.SecurityFreshness, state.ReplayCacheTTL)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, fmt.Errorf("security entity %s: %w", cfg.Entity, state.ErrInvalidConfig)
}
