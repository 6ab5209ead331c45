package protocol

import "fmt"

// TrafficClass carries store-carry-forward, channel offload and a 6 bit DCC profile id.
type TrafficClass uint8

const (
	tcStoreCarryForward = 0x80
	tcChannelOffload    = 0x40
	tcIDMask            = 0x3f
)

func NewTrafficClass(scf, offload bool, id uint8) TrafficClass {
	tc := TrafficClass(id & tcIDMask)
	if scf {
		tc |= tcStoreCarryForward
	}
	if offload {
		tc |= tcChannelOffload
	}
	return tc
}

func (t TrafficClass) StoreCarryForward() bool { return t&tcStoreCarryForward != 0 }
func (t TrafficClass) ChannelOffload() bool    { return t&tcChannelOffload != 0 }
func (t TrafficClass) ID() uint8               { return uint8(t & tcIDMask) }

func (t TrafficClass) String() string {
	return fmt.Sprintf("tc{scf=%t offload=%t id=%d}", t.StoreCarryForward(), t.ChannelOffload(), t.ID())
}

// SequenceNumber is the 16 bit GN sequence number, wrapping on overflow.
type SequenceNumber uint16

func (s *SequenceNumber) Next() SequenceNumber {
	*s++
	return *s
}
