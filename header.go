package pcap

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
)

// PacketHeader capture metadata of one packet, as struct pcap_pkthdr.
// CapturedLength is normally at most Length, but this is not enforced; see Validate.
type PacketHeader struct {
	Timestamp      Timestamp
	Length         uint32
	CapturedLength uint32
}

// Time the capture time
func (h PacketHeader) Time() time.Time {
	return h.Timestamp.Time()
}

// Validate check that no more bytes were captured than were on the wire
func (h PacketHeader) Validate() error {
	if h.CapturedLength > h.Length {
		return fmt.Errorf("%w: captured length %d greater than length %d", ErrInvalidArgument, h.CapturedLength, h.Length)
	}
	return nil
}

// CaptureInfo the header as gopacket capture metadata
func (h PacketHeader) CaptureInfo() gopacket.CaptureInfo {
	return gopacket.CaptureInfo{
		Timestamp:     h.Time(),
		Length:        int(h.Length),
		CaptureLength: int(h.CapturedLength),
	}
}

// HeaderFromCaptureInfo a header from gopacket capture metadata, truncating the time to microseconds
func HeaderFromCaptureInfo(ci gopacket.CaptureInfo) PacketHeader {
	return PacketHeader{
		Timestamp:      TimestampFromTime(ci.Timestamp),
		Length:         uint32(ci.Length),
		CapturedLength: uint32(ci.CaptureLength),
	}
}
