package pcap

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
)

// Reader reads frames back from a pcap file
type Reader struct {
	r        *pcapgo.Reader
	linkType LinkType
}

const (
	pcapMagicMicros uint32 = 0xa1b2c3d4
	pcapMagicNanos  uint32 = 0xa1b23c4d
	// the upper bits of the header link type field carry FCS information
	pcapLinkTypeMask uint32 = 0x03ffffff
)

// NewReader read the file header from r. The link type is taken from the
// header itself, since gopacket keeps only its low 8 bits.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	value, ok := headerLinkType(br)
	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read pcap file header")
	}
	if !ok {
		value = int32(pr.LinkType())
	}
	return &Reader{r: pr, linkType: newLinkType(value)}, nil
}

// headerLinkType the full link type of the file header at the start of br
func headerLinkType(br *bufio.Reader) (int32, bool) {
	hdr, err := br.Peek(24)
	if err != nil {
		return 0, false
	}
	var order binary.ByteOrder
	switch binary.LittleEndian.Uint32(hdr) {
	case pcapMagicMicros, pcapMagicNanos:
		order = binary.LittleEndian
	default:
		switch binary.BigEndian.Uint32(hdr) {
		case pcapMagicMicros, pcapMagicNanos:
			order = binary.BigEndian
		default:
			return 0, false
		}
	}
	return int32(order.Uint32(hdr[20:]) & pcapLinkTypeMask), true
}

func (r *Reader) LinkType() LinkType {
	return r.linkType
}

func (r *Reader) Snaplen() uint32 {
	return r.r.Snaplen()
}

// Next the next frame as an owned Packet, io.EOF at the end of the file
func (r *Reader) Next() (*Packet, error) {
	data, ci, err := r.r.ReadPacketData()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to read packet")
	}
	// ReadPacketData gives us a fresh slice of exactly the captured length
	return &Packet{header: HeaderFromCaptureInfo(ci), body: data}, nil
}

// Each call fn for every remaining frame, without copying. The view is only
// good until fn returns, since the next frame reuses the buffer. An error from
// fn stops the iteration and is returned.
func (r *Reader) Each(fn func(PacketView) error) error {
	for {
		data, ci, err := r.r.ZeroCopyReadPacketData()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "unable to read packet")
		}
		lease := NewLease()
		v, err := lease.View(HeaderFromCaptureInfo(ci), data)
		if err != nil {
			return err
		}
		err = fn(v)
		lease.Expire()
		if err != nil {
			return err
		}
	}
}
