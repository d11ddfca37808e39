package pcap

import (
	"fmt"
	"math"
	"time"

	"github.com/google/gopacket"
)

// Frame a captured frame, owned or borrowed, as a Dumper or Matcher consumes it
type Frame interface {
	Header() PacketHeader
	BodyView() []byte
}

// Packet a captured frame that owns its bytes. len(body) always equals the
// header's CapturedLength.
type Packet struct {
	header PacketHeader
	body   []byte
}

// NewPacket copy CapturedLength bytes of data into a new Packet
func NewPacket(h PacketHeader, data []byte) (*Packet, error) {
	if uint64(len(data)) < uint64(h.CapturedLength) {
		return nil, fmt.Errorf("%w: captured length %d, got %d bytes", ErrShortBody, h.CapturedLength, len(data))
	}
	body := make([]byte, h.CapturedLength)
	copy(body, data)
	return &Packet{header: h, body: body}, nil
}

// ComposePacket a packet holding a copy of body, as if all of it were captured
// at the epoch. Use SetTime to give it a capture time.
func ComposePacket(body []byte) (*Packet, error) {
	if uint64(len(body)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: body of %d bytes", ErrInvalidArgument, len(body))
	}
	n := uint32(len(body))
	return NewPacket(PacketHeader{Length: n, CapturedLength: n}, body)
}

func (p *Packet) Header() PacketHeader {
	return p.header
}

// Body a copy of the captured bytes
func (p *Packet) Body() []byte {
	body := make([]byte, len(p.body))
	copy(body, p.body)
	return body
}

// BodyView the captured bytes themselves. Changes to them change the packet.
func (p *Packet) BodyView() []byte {
	return p.body
}

func (p *Packet) Length() uint32 {
	return p.header.Length
}

func (p *Packet) CapturedLength() uint32 {
	return p.header.CapturedLength
}

func (p *Packet) Time() time.Time {
	return p.header.Time()
}

// SetTime change the capture time, returning t
func (p *Packet) SetTime(t time.Time) time.Time {
	return p.header.Timestamp.Set(t)
}

// Copy a packet that shares nothing with p
func (p *Packet) Copy() *Packet {
	return &Packet{header: p.header, body: p.Body()}
}

// Decode decode the layers of the packet as gopacket does, for the given link type
func (p *Packet) Decode(lt LinkType) (gopacket.Packet, error) {
	layer, ok := lt.Layers()
	if !ok {
		return nil, &UnsupportedLinkTypeError{Input: lt.String()}
	}
	pkt := gopacket.NewPacket(p.body, layer, gopacket.Default)
	pkt.Metadata().CaptureInfo = p.header.CaptureInfo()
	return pkt, nil
}
