package pcap

import (
	"bytes"
	"path"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	tstMsg = "The quick brown fox jumps over the lazy dog!"
)

func enableLogs() {

	log.SetReportCaller(true)
	log.SetLevel(log.TraceLevel)
	log.SetFormatter(&log.TextFormatter{
		DisableTimestamp: true,
		PadLevelText:     true,
		QuoteEmptyFields: true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1] + "()"
			_, filename := path.Split(f.File)
			return funcName, filename + ":" + strconv.Itoa(f.Line)
		},
	})
}

// udpFrame an ethernet frame carrying tstMsg from 10.0.0.1 to 10.0.0.2 on dstPort
func udpFrame(t *testing.T, dstPort uint16) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    []byte{10, 0, 0, 1},
		DstIP:    []byte{10, 0, 0, 2},
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: layers.UDPPort(dstPort)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
		&layers.Ethernet{
			SrcMAC:       []byte{0, 1, 2, 3, 4, 5},
			DstMAC:       []byte{0, 1, 2, 3, 4, 6},
			EthernetType: layers.EthernetTypeIPv4,
		},
		ip, udp, gopacket.Payload(tstMsg),
	))
	return buf.Bytes()
}

func arpFrame(t *testing.T) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true},
		&layers.Ethernet{
			SrcMAC:       []byte{0, 1, 2, 3, 4, 5},
			DstMAC:       []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
			EthernetType: layers.EthernetTypeARP,
		},
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   []byte{0, 1, 2, 3, 4, 5},
			SourceProtAddress: []byte{10, 0, 0, 1},
			DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
			DstProtAddress:    []byte{10, 0, 0, 2},
		},
	))
	return buf.Bytes()
}

// capture a pcap file holding the frames, one millisecond apart
func capture(t *testing.T, frames ...[]byte) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	d, err := NewDumper(&out, ethernetType(t), DefaultSnapLength)
	require.NoError(t, err)
	start := time.Unix(1700000000, 0)
	for i, frame := range frames {
		p, err := ComposePacket(frame)
		require.NoError(t, err)
		p.SetTime(start.Add(time.Duration(i) * time.Millisecond))
		require.NoError(t, WriteFrame(d, p))
	}
	require.NoError(t, d.Close())
	return &out
}

func TestReplay(t *testing.T) {
	enableLogs()
	in := capture(t, udpFrame(t, 53), arpFrame(t), udpFrame(t, 5353), udpFrame(t, 53))

	p, err := Compile("udp and dst port 53", WithDatalink(LinkTypeName("EN10MB")))
	require.NoError(t, err)
	m, err := NewMatcher(p)
	require.NoError(t, err)
	// the matcher does not need the program any more
	require.NoError(t, p.Release())

	r, err := NewReader(in)
	require.NoError(t, err)
	var out bytes.Buffer
	d, err := NewDumper(&out, r.LinkType(), r.Snaplen())
	require.NoError(t, err)
	n, err := Replay(r, d, m)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, d.Close())

	r, err = NewReader(&out)
	require.NoError(t, err)
	var times []time.Time
	for {
		pkt, err := r.Next()
		if err != nil {
			break
		}
		decoded, err := pkt.Decode(r.LinkType())
		require.NoError(t, err)
		udp, ok := decoded.Layer(layers.LayerTypeUDP).(*layers.UDP)
		require.True(t, ok)
		require.Equal(t, layers.UDPPort(53), udp.DstPort)
		require.Equal(t, tstMsg, string(udp.Payload))
		times = append(times, pkt.Time())
	}
	require.Len(t, times, 2)
	require.True(t, times[0].Equal(time.Unix(1700000000, 0)))
	require.True(t, times[1].Equal(time.Unix(1700000000, 3*int64(time.Millisecond))))
}

func TestReplayAll(t *testing.T) {
	in := capture(t, udpFrame(t, 53), arpFrame(t))
	r, err := NewReader(in)
	require.NoError(t, err)
	var out bytes.Buffer
	d, err := NewDumper(&out, r.LinkType(), r.Snaplen())
	require.NoError(t, err)
	n, err := Replay(r, d, nil)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, d.Close())
	require.Equal(t, capture(t, udpFrame(t, 53), arpFrame(t)).Bytes(), out.Bytes())
}

func TestReplayDumperClosed(t *testing.T) {
	r, err := NewReader(capture(t, arpFrame(t)))
	require.NoError(t, err)
	d, err := NewDumper(&bytes.Buffer{}, r.LinkType(), r.Snaplen())
	require.NoError(t, err)
	require.NoError(t, d.Close())
	_, err = Replay(r, d, nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestReaderEachExpiresViews(t *testing.T) {
	r, err := NewReader(capture(t, udpFrame(t, 53), arpFrame(t)))
	require.NoError(t, err)
	var views []PacketView
	var kept []*Packet
	require.NoError(t, r.Each(func(v PacketView) error {
		require.True(t, v.Valid())
		p, err := v.Copy()
		require.NoError(t, err)
		kept = append(kept, p)
		views = append(views, v)
		return nil
	}))
	require.Len(t, views, 2)
	for _, v := range views {
		require.False(t, v.Valid())
		require.Nil(t, v.BodyView())
	}
	require.Equal(t, udpFrame(t, 53), kept[0].Body())
	require.Equal(t, arpFrame(t), kept[1].Body())
}
