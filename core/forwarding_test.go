package core

import (
	"log/slog"
	"testing"
	"time"

	"github.com/encodeous/geonet/buffer"
	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGbcRequestInsideAreaBroadcasts(t *testing.T) {
	for _, algo := range []state.AreaForwardingAlgorithm{state.AreaCbf, state.AreaAdvanced} {
		t.Run(algo.String(), func(t *testing.T) {
			h := newHarness(t, func(mib *state.MIB) {
				mib.AreaForwardingAlgorithm = algo
			})
			// a neighbour with progress must not turn this into a greedy unicast
			h.neighbour(testAddress(2), move(home, 250, 0))

			conf, err := h.r.Request(gbcRequest(h.r.MIB(), circle(move(home, 300, 0), 500)), []byte("x"))
			require.NoError(t, err)
			require.True(t, conf.Accepted())

			sent := h.takeSent()
			require.Len(t, sent, 1)
			assert.Equal(t, protocol.BroadcastMac, sent[0].req.Destination)
			assert.Zero(t, h.r.cbf.Len())
		})
	}
}

func TestGreedyPicksMostProgress(t *testing.T) {
	h := newHarness(t, nil)
	h.neighbour(testAddress(4), move(home, 100, 0))
	h.neighbour(testAddress(3), move(home, 400, 0))
	h.neighbour(testAddress(2), move(home, 400, 0))
	h.neighbour(testAddress(5), move(home, -400, 0))

	_, err := h.r.Request(gbcRequest(h.r.MIB(), circle(move(home, 3000, 0), 500)), []byte("x"))
	require.NoError(t, err)

	sent := h.takeSent()
	require.Len(t, sent, 1)
	assert.Equal(t, testAddress(2).MID, sent[0].req.Destination, "ties go to the lowest address")
}

func TestGreedyWithoutProgressBroadcasts(t *testing.T) {
	h := newHarness(t, nil)
	h.neighbour(testAddress(2), move(home, -400, 0))

	_, err := h.r.Request(gbcRequest(h.r.MIB(), circle(move(home, 3000, 0), 500)), []byte("x"))
	require.NoError(t, err)

	sent := h.takeSent()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.BroadcastMac, sent[0].req.Destination)
}

func TestGreedyForwardsReceivedPacket(t *testing.T) {
	h := newHarness(t, nil)
	next := testAddress(3)
	h.neighbour(next, move(home, 400, 0))
	h.rt.Advance(time.Second)

	src := testAddress(2)
	far := move(home, 3000, 0)
	h.indicate(gbcPacket(t, h.pv(src, move(home, -500, 0)), 9, circle(far, 500), 5, []byte("relay")), src.MID)

	sent := h.takeSent()
	require.Len(t, sent, 1)
	f := sent[0]
	assert.Equal(t, next.MID, f.req.Destination)
	assert.Equal(t, uint8(4), f.pdu.Basic.HopLimit)
	assert.Equal(t, uint8(10), f.pdu.Common.MaxHopLimit)
	gbc := f.pdu.Extended.(*protocol.GbcHeader)
	assert.Equal(t, src, gbc.Source.Address, "forwarding keeps the source position vector")
	assert.Equal(t, protocol.SequenceNumber(9), gbc.SequenceNumber)
	assert.Equal(t, []byte("relay"), f.payload)
	assert.Empty(t, h.delivered)
}

func TestForwardingStopsWhenSenderIsInsideArea(t *testing.T) {
	h := newHarness(t, nil)
	h.neighbour(testAddress(3), move(home, 400, 0))
	h.rt.Advance(time.Second)

	src := testAddress(2)
	far := move(home, 3000, 0)
	h.indicate(gbcPacket(t, h.pv(src, far), 1, circle(far, 500), 5, nil), src.MID)

	assert.Equal(t, []ForwardingStopReason{StopOutsideDestinationArea}, h.stops)
	assert.Empty(t, h.takeSent())
}

func TestAreaCbfRelaysAfterTimeout(t *testing.T) {
	h := newHarness(t, nil)
	src := testAddress(2)
	raw := gbcPacket(t, h.pv(src, move(home, 400, 0)), 3, circle(home, 1000), 5, []byte("cbf"))
	h.indicate(raw, src.MID)
	// the buffered copy must not alias the received frame
	raw[len(raw)-1] = 'X'

	require.Len(t, h.delivered, 1)
	assert.Equal(t, 1, h.r.cbf.Len())

	// 400 m away: 100 ms - 99 ms × 0.4 ≈ 60 ms
	h.rt.Advance(55 * time.Millisecond)
	assert.Empty(t, h.sent)
	h.rt.Advance(15 * time.Millisecond)

	sent := h.takeSent()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.BroadcastMac, sent[0].req.Destination)
	assert.Equal(t, uint8(4), sent[0].pdu.Basic.HopLimit)
	assert.Equal(t, []byte("cbf"), sent[0].payload)
	assert.Zero(t, h.r.cbf.Len())
}

func TestAreaCbfSuppression(t *testing.T) {
	h := newHarness(t, nil)
	src := testAddress(2)
	pv := h.pv(src, move(home, 400, 0))
	area := circle(home, 1000)
	h.indicate(gbcPacket(t, pv, 3, area, 5, nil), src.MID)
	require.Equal(t, 1, h.r.cbf.Len())

	h.rt.Advance(10 * time.Millisecond)
	relay := testAddress(3)
	h.indicate(gbcPacket(t, pv, 3, area, 4, nil), relay.MID)
	assert.Zero(t, h.r.cbf.Len(), "hearing another relay cancels ours")
	assert.Empty(t, h.drops)

	h.rt.Advance(200 * time.Millisecond)
	assert.Empty(t, h.takeSent())

	h.indicate(gbcPacket(t, pv, 3, area, 3, nil), testAddress(4).MID)
	assert.Equal(t, []PacketDropReason{DropDuplicatePacket}, h.drops)
	assert.Len(t, h.delivered, 1)
}

func TestAreaCbfSuppressedByLastHopCopy(t *testing.T) {
	h := newHarness(t, nil)
	src := testAddress(2)
	pv := h.pv(src, move(home, 400, 0))
	area := circle(home, 1000)
	h.indicate(gbcPacket(t, pv, 3, area, 5, nil), src.MID)
	require.Equal(t, 1, h.r.cbf.Len())

	// the relayed copy cannot travel further, but another station already relayed it
	h.indicate(gbcPacket(t, pv, 3, area, 1, nil), testAddress(3).MID)
	assert.Equal(t, []ForwardingStopReason{StopHopLimit}, h.stops)
	assert.Zero(t, h.r.cbf.Len())

	h.rt.Advance(200 * time.Millisecond)
	assert.Empty(t, h.takeSent())
}

func TestAdvancedDropsAfterMaxCounter(t *testing.T) {
	h := newHarness(t, func(mib *state.MIB) {
		mib.AreaForwardingAlgorithm = state.AreaAdvanced
	})
	src := testAddress(2)
	pv := h.pv(src, move(home, 400, 0))
	area := circle(home, 1000)
	h.indicate(gbcPacket(t, pv, 1, area, 5, nil), src.MID)

	id := buffer.CbfId{Source: src, Sequence: 1}
	for i, relay := range []byte{7, 8} {
		h.indicate(gbcPacket(t, pv, 1, area, 4, nil), testAddress(relay).MID)
		e := h.r.cbf.Fetch(id)
		require.NotNil(t, e)
		assert.Equal(t, i+2, e.Counter)
	}
	h.indicate(gbcPacket(t, pv, 1, area, 4, nil), testAddress(9).MID)
	assert.Nil(t, h.r.cbf.Fetch(id))

	h.rt.Advance(time.Second)
	assert.Empty(t, h.takeSent())
}

func TestAdvancedSectorialSuppression(t *testing.T) {
	h := newHarness(t, func(mib *state.MIB) {
		mib.AreaForwardingAlgorithm = state.AreaAdvanced
	})
	forwarder := testAddress(3)
	h.neighbour(forwarder, move(home, 200, 0))

	src := testAddress(2)
	pv := h.pv(src, move(home, -300, 0))
	area := circle(home, 1000)
	h.indicate(gbcPacket(t, pv, 1, area, 5, nil), src.MID)
	require.Equal(t, 1, h.r.cbf.Len())

	// the forwarder sits beyond us on the line from the sender
	h.indicate(gbcPacket(t, pv, 1, area, 4, nil), forwarder.MID)
	assert.Zero(t, h.r.cbf.Len())

	h.rt.Advance(time.Second)
	assert.Empty(t, h.takeSent())
}

func TestAdvancedUnicastToUs(t *testing.T) {
	h := newHarness(t, func(mib *state.MIB) {
		mib.AreaForwardingAlgorithm = state.AreaAdvanced
	})
	next := testAddress(3)
	h.neighbour(next, move(home, 450, 0))
	h.rt.Advance(time.Second)

	src := testAddress(2)
	raw := gbcPacket(t, h.pv(src, move(home, -300, 0)), 1, circle(move(home, 500, 0), 1000), 5, []byte("uc"))
	require.NoError(t, h.r.Indicate(raw, src.MID, h.r.Address().MID))

	sent := h.takeSent()
	require.Len(t, sent, 1)
	assert.Equal(t, next.MID, sent[0].req.Destination)
	assert.Equal(t, 1, h.r.cbf.Len())

	h.rt.Advance(99 * time.Millisecond)
	assert.Empty(t, h.sent)
	h.rt.Advance(time.Millisecond)
	sent = h.takeSent()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.BroadcastMac, sent[0].req.Destination)
	assert.Equal(t, []byte("uc"), sent[0].payload)
}

func nonAreaCbfHarness(t *testing.T) *harness {
	return newHarness(t, func(mib *state.MIB) {
		mib.NonAreaForwardingAlgorithm = state.NonAreaCbf
	})
}

func TestNonAreaCbfTimeoutFollowsProgress(t *testing.T) {
	h := nonAreaCbfHarness(t)
	src := testAddress(2)
	far := move(home, 3000, 0)
	h.indicate(gbcPacket(t, h.pv(src, move(home, -200, 0)), 1, circle(far, 500), 5, nil), src.MID)
	require.Equal(t, 1, h.r.cbf.Len())

	// 200 m of progress: 100 ms - 99 ms × 0.2 ≈ 80 ms
	h.rt.Advance(75 * time.Millisecond)
	assert.Empty(t, h.sent)
	h.rt.Advance(10 * time.Millisecond)
	sent := h.takeSent()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.BroadcastMac, sent[0].req.Destination)
}

func TestNonAreaCbfDiscardsWithoutProgress(t *testing.T) {
	h := nonAreaCbfHarness(t)
	src := testAddress(2)
	far := move(home, 3000, 0)
	h.indicate(gbcPacket(t, h.pv(src, move(home, 200, 0)), 1, circle(far, 500), 5, nil), src.MID)

	assert.Zero(t, h.r.cbf.Len())
	h.rt.Advance(time.Second)
	assert.Empty(t, h.takeSent())
}

func TestNonAreaCbfUnknownSenderBroadcasts(t *testing.T) {
	h := nonAreaCbfHarness(t)
	src := testAddress(2)
	far := move(home, 3000, 0)
	h.indicate(gbcPacket(t, h.pv(src, move(home, -1500, 0)), 1, circle(far, 500), 5, nil), testAddress(6).MID)

	sent := h.takeSent()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.BroadcastMac, sent[0].req.Destination)
	assert.Zero(t, h.r.cbf.Len())
}

func TestNonAreaCbfSuppression(t *testing.T) {
	h := nonAreaCbfHarness(t)
	src := testAddress(2)
	far := move(home, 3000, 0)
	pv := h.pv(src, move(home, -200, 0))
	h.indicate(gbcPacket(t, pv, 1, circle(far, 500), 5, nil), src.MID)
	require.Equal(t, 1, h.r.cbf.Len())

	h.indicate(gbcPacket(t, pv, 1, circle(far, 500), 4, nil), testAddress(3).MID)
	assert.Zero(t, h.r.cbf.Len())
	h.rt.Advance(time.Second)
	assert.Empty(t, h.takeSent())
}

func TestTimeoutCbf(t *testing.T) {
	h := newHarness(t, nil)
	for _, tc := range []struct {
		dist float64
		want time.Duration
	}{
		{-5, 100 * time.Millisecond},
		{0, 100 * time.Millisecond},
		{500, 50500 * time.Microsecond},
		{1000, time.Millisecond},
		{2500, time.Millisecond},
	} {
		assert.Equal(t, tc.want, h.r.timeoutCbf(tc.dist), "distance %v", tc.dist)
	}
}

func TestNewRouterRejectsUnimplementedAlgorithms(t *testing.T) {
	for _, algo := range []state.AreaForwardingAlgorithm{state.AreaUnspecified, state.AreaSimple} {
		mib := state.DefaultMIB()
		mib.AreaForwardingAlgorithm = algo
		_, err := NewRouter(state.NewManualRuntime(testEpoch), mib, slog.New(slog.DiscardHandler))
		assert.ErrorIs(t, err, ErrUnimplementedAlgorithm, "algorithm %s", algo)
	}
}
