//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package pcap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// nativePkthdr struct pcap_pkthdr in host layout, as libpcap hands it to callbacks
type nativePkthdr struct {
	Ts     unix.Timeval
	Caplen uint32
	Len    uint32
}

// SizeofNativeHeader size of a host struct pcap_pkthdr
const SizeofNativeHeader = int(unsafe.Sizeof(nativePkthdr{}))

// HeaderFromNative decode a struct pcap_pkthdr in host layout. The fields are
// taken as they are, without checking them against each other.
func HeaderFromNative(b []byte) (PacketHeader, error) {
	if len(b) < SizeofNativeHeader {
		return PacketHeader{}, fmt.Errorf("%w: native header needs %d bytes, got %d", ErrInvalidArgument, SizeofNativeHeader, len(b))
	}
	var n nativePkthdr
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&n)), SizeofNativeHeader), b)
	return PacketHeader{
		Timestamp: Timestamp{
			Seconds:      int64(n.Ts.Sec),
			Microseconds: int64(n.Ts.Usec),
		},
		Length:         n.Len,
		CapturedLength: n.Caplen,
	}, nil
}

// AppendNative append the header in host struct pcap_pkthdr layout. Seconds
// that do not fit a 32-bit time_t are truncated there.
func (h PacketHeader) AppendNative(b []byte) []byte {
	sec, usec := h.Timestamp.Seconds, h.Timestamp.Microseconds
	sec += usec / 1e6
	usec %= 1e6
	if usec < 0 {
		sec--
		usec += 1e6
	}
	n := nativePkthdr{
		Caplen: h.CapturedLength,
		Len:    h.Length,
	}
	setTimevalField(&n.Ts.Sec, sec)
	setTimevalField(&n.Ts.Usec, usec)
	return append(b, unsafe.Slice((*byte)(unsafe.Pointer(&n)), SizeofNativeHeader)...)
}

// setTimevalField timeval fields are 32 or 64 bits depending on the platform
func setTimevalField[T ~int32 | ~int64](f *T, v int64) {
	*f = T(v)
}
