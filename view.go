package pcap

import (
	"fmt"
	"sync/atomic"
)

// Lease the window during which a capture buffer holds one frame. Views made
// under a lease stop yielding bytes once it expires.
type Lease struct {
	expired atomic.Bool
}

func NewLease() *Lease {
	return &Lease{}
}

// Expire end the lease, because the buffer is about to be reused
func (l *Lease) Expire() {
	l.expired.Store(true)
}

func (l *Lease) Expired() bool {
	return l.expired.Load()
}

// View borrow data for the duration of the lease, without copying it
func (l *Lease) View(h PacketHeader, data []byte) (PacketView, error) {
	if l.Expired() {
		return PacketView{}, ErrViewExpired
	}
	if uint64(len(data)) < uint64(h.CapturedLength) {
		return PacketView{}, fmt.Errorf("%w: captured length %d, got %d bytes", ErrShortBody, h.CapturedLength, len(data))
	}
	n := int(h.CapturedLength)
	return PacketView{header: h, data: data[:n:n], lease: l}, nil
}

// PacketView a captured frame whose bytes belong to the capture buffer. It is
// only good while its lease lasts; use Copy to keep the frame.
type PacketView struct {
	header PacketHeader
	data   []byte
	lease  *Lease
}

// Valid if the bytes can still be read
func (v PacketView) Valid() bool {
	return v.lease != nil && !v.lease.Expired()
}

func (v PacketView) Header() PacketHeader {
	return v.header
}

// BodyView the borrowed bytes, nil once the lease has expired
func (v PacketView) BodyView() []byte {
	if !v.Valid() {
		return nil
	}
	return v.data
}

// Body a copy of the borrowed bytes, nil once the lease has expired
func (v PacketView) Body() []byte {
	if !v.Valid() {
		return nil
	}
	body := make([]byte, len(v.data))
	copy(body, v.data)
	return body
}

// Copy an owned Packet with the same header and bytes
func (v PacketView) Copy() (*Packet, error) {
	if !v.Valid() {
		return nil, ErrViewExpired
	}
	return NewPacket(v.header, v.data)
}
