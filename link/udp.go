package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/encodeous/geonet/dcc"
	"github.com/encodeous/geonet/perf"
	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/state"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"golang.org/x/net/ipv4"
)

// UDPLink is a broadcast medium shared by every station that joined the same multicast
// group. Frames for other stations and our own looped-back frames are filtered out.
type UDPLink struct {
	macs  atomic.Pointer[ownMacs]
	group *net.UDPAddr
	conn  *net.UDPConn
	pconn *ipv4.PacketConn
	log   *slog.Logger
}

func NewUDPLink(mac protocol.MacAddress, cfg state.LinkCfg, log *slog.Logger) (*UDPLink, error) {
	group, err := net.ResolveUDPAddr("udp4", cfg.Group)
	if err != nil {
		return nil, fmt.Errorf("resolve group %s: %w", cfg.Group, err)
	}
	var ifi *net.Interface
	if cfg.Interface != "" {
		ifi, err = net.InterfaceByName(cfg.Interface)
		if err != nil {
			return nil, err
		}
	}
	conn, err := net.ListenMulticastUDP("udp4", ifi, group)
	if err != nil {
		return nil, err
	}
	pconn := ipv4.NewPacketConn(conn)
	if ifi != nil {
		if err := pconn.SetMulticastInterface(ifi); err != nil {
			conn.Close()
			return nil, err
		}
	}
	if err := pconn.SetMulticastLoopback(cfg.Loopback); err != nil {
		conn.Close()
		return nil, err
	}
	l := &UDPLink{
		group: group,
		conn:  conn,
		pconn: pconn,
		log:   log,
	}
	l.SetAddress(mac)
	return l, nil
}

// ownMacs is our current MAC and the one it replaced, whose frames may still be in flight.
type ownMacs struct {
	current, previous protocol.MacAddress
}

// SetAddress changes the MAC frames are filtered by. It is safe to call while Run is reading.
func (l *UDPLink) SetAddress(mac protocol.MacAddress) {
	next := &ownMacs{current: mac, previous: mac}
	if old := l.macs.Load(); old != nil {
		next.previous = old.current
	}
	l.macs.Store(next)
}

func (l *UDPLink) Address() protocol.MacAddress {
	return l.macs.Load().current
}

// Request sends packet in a frame addressed to req.Destination.
func (l *UDPLink) Request(req dcc.DataRequest, packet []byte) error {
	f := Frame{
		Destination: req.Destination,
		Source:      req.Source,
		EtherType:   layers.EthernetType(req.EtherType),
		Payload:     packet,
	}
	b, err := f.Bytes()
	if err != nil {
		return err
	}
	if _, err := l.pconn.WriteTo(b, nil, l.group); err != nil {
		return err
	}
	perf.SentPacketPerSecond.Add(1)
	perf.SentBytesPerSecond.Add(float64(len(b)))
	perf.FrameSize.Add(float64(len(b)))
	return nil
}

// accept reports whether a frame is meant for this station.
func (l *UDPLink) accept(f *Frame) bool {
	macs := l.macs.Load()
	if f.Source == macs.current || f.Source == macs.previous {
		return false
	}
	if f.EtherType != layers.EthernetType(state.EtherTypeGeoNet) {
		return false
	}
	return f.Destination.IsBroadcast() || f.Destination == macs.current
}

// Run reads frames until ctx is done and passes every frame meant for this station to
// fn. Frame payloads are not reused.
func (l *UDPLink) Run(ctx context.Context, fn func(Frame)) error {
	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()
	buf := make([]byte, state.MaxFrameSize)
	for {
		n, _, _, err := l.pconn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		perf.RecvPacketPerSecond.Add(1)
		perf.RecvBytesPerSecond.Add(float64(n))
		raw := make([]byte, n)
		copy(raw, buf[:n])
		var f Frame
		if err := f.DecodeFromBytes(raw, gopacket.NilDecodeFeedback); err != nil {
			l.log.Debug("dropped malformed frame", "error", err, "len", n)
			continue
		}
		if !l.accept(&f) {
			continue
		}
		fn(f)
	}
}

// Close releases the socket. Closing after Run returned is not an error.
func (l *UDPLink) Close() error {
	if err := l.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
