package filter

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/bpf"
)

// Compile take a filter string compatible with tcpdump at
// https://www.tcpdump.org/manpages/pcap-filter.7.html and return
// bpf instructions

// Options control code generation
type Options struct {
	// LinkType of the frames the program will see, see pcap-linktype(7)
	LinkType uint32
	// SnapLength returned for matching frames, 0 means 65535
	SnapLength uint32
	// Optimize remove redundant loads and thread jumps over tests whose outcome is known
	Optimize bool
	// Netmask of the capture network, used by "ip broadcast"
	Netmask uint32
}

var (
	ip4MaskFull  = net.CIDRMask(32, 32)   //[]byte{0xff, 0xff, 0xff, 0xff}
	ip6MaskFull  = net.CIDRMask(128, 128) //[]byte{0xff, 0xff, 0xff, 0xff,0xff, 0xff, 0xff, 0xff,0xff, 0xff, 0xff, 0xff,0xff, 0xff, 0xff, 0xff}
	broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	returnDrop   = bpf.RetConstant{Val: 0}
)

// Compile parse the expression and generate a classic BPF program for it.
// An empty expression accepts everything.
func Compile(expr string, opts Options) ([]bpf.Instruction, error) {
	snapLength := opts.SnapLength
	if snapLength == 0 {
		snapLength = defaultSnapLength
	}
	returnKeep := bpf.RetConstant{Val: snapLength}
	g, err := newGenerator(opts.LinkType, opts.Netmask)
	if err != nil {
		return nil, err
	}
	e := NewExpression(expr)
	if e == nil {
		return []bpf.Instruction{returnKeep}, nil
	}
	f, err := e.Compile()
	if err != nil {
		return nil, err
	}
	accept, reject := g.newLabel(), g.newLabel()
	if err := f.generate(g, accept, reject); err != nil {
		return nil, err
	}
	g.mark(accept)
	g.emit(returnKeep)
	g.mark(reject)
	g.emit(returnDrop)

	nodes, err := g.resolve()
	if err != nil {
		return nil, err
	}
	if opts.Optimize {
		inst, err := assemble(optimize(nodes))
		if err == nil {
			return inst, nil
		}
		log.WithFields(log.Fields{
			"expression": expr,
		}).Debugf("optimized program not usable, keeping the unoptimized one: %v", err)
	}
	return assemble(nodes)
}

// CompileRaw like Compile, returning assembled instructions
func CompileRaw(expr string, opts Options) ([]bpf.RawInstruction, error) {
	inst, err := Compile(expr, opts)
	if err != nil {
		return nil, err
	}
	raw, err := bpf.Assemble(inst)
	if err != nil {
		return nil, fmt.Errorf("unable to assemble filter: %v", err)
	}
	return raw, nil
}

// ipProto test the transport protocol of IPv4 and/or IPv6 packets
func (g *generator) ipProto(proto uint32, v4, v6 bool, t, f label) {
	switch {
	case v4 && v6:
		mid := g.newLabel()
		g.ip4Proto(proto, t, mid)
		g.mark(mid)
		g.ip6Proto(proto, t, f)
	case v4:
		g.ip4Proto(proto, t, f)
	default:
		g.ip6Proto(proto, t, f)
	}
}

func (g *generator) ip4Proto(proto uint32, t, f label) {
	ok := g.newLabel()
	g.linkProto(etherTypeIPv4, ok, f)
	g.mark(ok)
	g.emit(bpf.LoadAbsolute{Off: g.link.netOffset + ip4ProtocolOffset, Size: lengthByte})
	g.jeq(proto, t, f)
}

// ip6Proto check the next header, and the one behind a fragment header
func (g *generator) ip6Proto(proto uint32, t, f label) {
	ok, fragment, continuation := g.newLabel(), g.newLabel(), g.newLabel()
	g.linkProto(etherTypeIPv6, ok, f)
	g.mark(ok)
	g.emit(bpf.LoadAbsolute{Off: g.link.netOffset + ip6NextHeaderOffset, Size: lengthByte})
	g.jeq(proto, t, fragment)
	g.mark(fragment)
	g.jeq(ip6ContinuationPacket, continuation, f)
	g.mark(continuation)
	g.emit(bpf.LoadAbsolute{Off: g.link.netOffset + ip6HeaderSize, Size: lengthByte})
	g.jeq(proto, t, f)
}

// network test an IPv4 or IPv6 address, masked to the network
func (g *generator) network(protocol filterProtocol, direction filterDirection, network *net.IPNet, t, f label) error {
	if ip4 := network.IP.To4(); ip4 != nil {
		var etherTypes []uint32
		switch protocol {
		case filterProtocolUnset:
			etherTypes = []uint32{etherTypeIPv4, etherTypeArp, etherTypeRarp}
		case filterProtocolIP:
			etherTypes = []uint32{etherTypeIPv4}
		case filterProtocolArp:
			etherTypes = []uint32{etherTypeArp}
		case filterProtocolRarp:
			etherTypes = []uint32{etherTypeRarp}
		default:
			return fmt.Errorf("%w: %s is not a %s address", ErrSyntax, network.IP, nameOf(protocols, protocol))
		}
		addr := binary.BigEndian.Uint32(ip4)
		mask := binary.BigEndian.Uint32(network.Mask[len(network.Mask)-4:])
		return g.anyOf(len(etherTypes), func(i int, t, f label) error {
			return g.ip4Address(etherTypes[i], direction, addr, mask, t, f)
		}, t, f)
	}
	if protocol != filterProtocolUnset && protocol != filterProtocolIP6 {
		return fmt.Errorf("%w: %s is not a %s address", ErrSyntax, network.IP, nameOf(protocols, protocol))
	}
	return g.ip6Address(direction, network, t, f)
}

// ip4Address check the addresses of an IPv4, ARP or RARP packet
func (g *generator) ip4Address(etherType uint32, direction filterDirection, addr, mask uint32, t, f label) error {
	srcOff, dstOff := ip4SourceAddressOffset, ip4DestinationAddressOff
	if etherType != etherTypeIPv4 {
		srcOff, dstOff = arpSenderAddressOffset, arpTargetAddressOffset
	}
	ok := g.newLabel()
	g.linkProto(etherType, ok, f)
	g.mark(ok)
	compare := func(off uint32) func(t, f label) error {
		return func(t, f label) error {
			g.emit(bpf.LoadAbsolute{Off: g.link.netOffset + off, Size: lengthWord})
			if mask != 0xffffffff {
				g.emit(bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: mask})
			}
			g.jeq(addr&mask, t, f)
			return nil
		}
	}
	return g.direction(direction, compare(srcOff), compare(dstOff), t, f)
}

// ip6Address check an IPv6 address one word at a time, up to the last word the mask covers
func (g *generator) ip6Address(direction filterDirection, network *net.IPNet, t, f label) error {
	ip, mask := network.IP.To16(), network.Mask
	if len(mask) != net.IPv6len {
		return fmt.Errorf("%w: invalid IPv6 mask for %s", ErrSyntax, network)
	}
	last := -1
	for i := 0; i < 4; i++ {
		if binary.BigEndian.Uint32(mask[i*4:]) != 0 {
			last = i
		}
	}
	ok := g.newLabel()
	g.linkProto(etherTypeIPv6, ok, f)
	g.mark(ok)
	compare := func(off uint32) func(t, f label) error {
		return func(t, f label) error {
			if last < 0 {
				g.jump(t)
				return nil
			}
			for i := 0; i <= last; i++ {
				m := binary.BigEndian.Uint32(mask[i*4:])
				a := binary.BigEndian.Uint32(ip[i*4:]) & m
				g.emit(bpf.LoadAbsolute{Off: g.link.netOffset + off + uint32(i*4), Size: lengthWord})
				if m != 0xffffffff {
					g.emit(bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: m})
				}
				if i == last {
					g.jeq(a, t, f)
					break
				}
				next := g.newLabel()
				g.jeq(a, next, f)
				g.mark(next)
			}
			return nil
		}
	}
	return g.direction(direction, compare(ip6SourceAddressOffset), compare(ip6DestinationAddressOff), t, f)
}

// transports check the transport protocol already loaded in A against each candidate
func (g *generator) transports(transports []uint32, t, f label) {
	_ = g.anyOf(len(transports), func(i int, t, f label) error {
		g.jeq(transports[i], t, f)
		return nil
	}, t, f)
}

// portMatch compare the port in A against a single port or an inclusive range
func (g *generator) portMatch(low, high uint32, t, f label) {
	if low == high {
		g.jeq(low, t, f)
		return
	}
	mid := g.newLabel()
	g.test(bpf.JumpGreaterOrEqual, low, mid, f)
	g.mark(mid)
	g.test(bpf.JumpGreaterThan, high, f, t)
}

// ip4Ports check transport ports of unfragmented IPv4 packets, using the header length from the packet
func (g *generator) ip4Ports(direction filterDirection, transports []uint32, low, high uint32, t, f label) error {
	ok, ports, header := g.newLabel(), g.newLabel(), g.newLabel()
	g.linkProto(etherTypeIPv4, ok, f)
	g.mark(ok)
	g.emit(bpf.LoadAbsolute{Off: g.link.netOffset + ip4ProtocolOffset, Size: lengthByte})
	g.transports(transports, ports, f)
	g.mark(ports)
	// flags+fragment offset, since only the first fragment has the L4 header
	g.emit(bpf.LoadAbsolute{Off: g.link.netOffset + ip4FlagsOffset, Size: lengthHalf})
	g.test(bpf.JumpBitsSet, jumpMask, f, header)
	g.mark(header)
	// calculate size of IP header (starting from link layer size)
	g.emit(bpf.LoadMemShift{Off: g.link.netOffset})
	compare := func(off uint32) func(t, f label) error {
		return func(t, f label) error {
			g.emit(bpf.LoadIndirect{Off: g.link.netOffset + off, Size: lengthHalf})
			g.portMatch(low, high, t, f)
			return nil
		}
	}
	return g.direction(direction, compare(portSourceOffset), compare(portDestinationOffset), t, f)
}

// ip6Ports check transport ports of IPv6 packets without extension headers
func (g *generator) ip6Ports(direction filterDirection, transports []uint32, low, high uint32, t, f label) error {
	ok, ports := g.newLabel(), g.newLabel()
	g.linkProto(etherTypeIPv6, ok, f)
	g.mark(ok)
	g.emit(bpf.LoadAbsolute{Off: g.link.netOffset + ip6NextHeaderOffset, Size: lengthByte})
	g.transports(transports, ports, f)
	g.mark(ports)
	compare := func(off uint32) func(t, f label) error {
		return func(t, f label) error {
			g.emit(bpf.LoadAbsolute{Off: g.link.netOffset + ip6HeaderSize + off, Size: lengthHalf})
			g.portMatch(low, high, t, f)
			return nil
		}
	}
	return g.direction(direction, compare(portSourceOffset), compare(portDestinationOffset), t, f)
}

// etherAddress check Ethernet addresses, last 4 bytes first and then the first 2
func (g *generator) etherAddress(direction filterDirection, hwAddr net.HardwareAddr, t, f label) error {
	if !g.link.mac {
		return fmt.Errorf("%w: ethernet addresses on link type %d", ErrUnsupported, g.link.linkType)
	}
	lastFour := binary.BigEndian.Uint32(hwAddr[2:6])
	firstTwo := uint32(binary.BigEndian.Uint16(hwAddr[0:2]))
	compare := func(off uint32) func(t, f label) error {
		return func(t, f label) error {
			mid := g.newLabel()
			g.emit(bpf.LoadAbsolute{Off: off + 2, Size: lengthWord})
			g.jeq(lastFour, mid, f)
			g.mark(mid)
			g.emit(bpf.LoadAbsolute{Off: off, Size: lengthHalf})
			g.jeq(firstTwo, t, f)
			return nil
		}
	}
	return g.direction(direction, compare(ethernetSourceOffset), compare(ethernetDestinationOffset), t, f)
}

func (g *generator) etherMulticast(t, f label) error {
	if !g.link.mac {
		return fmt.Errorf("%w: ethernet multicast on link type %d", ErrUnsupported, g.link.linkType)
	}
	g.emit(bpf.LoadAbsolute{Off: ethernetDestinationOffset, Size: lengthByte})
	g.test(bpf.JumpBitsSet, 0x01, t, f)
	return nil
}

// ip4Broadcast match an all-zeros or all-ones host part, using the netmask
func (g *generator) ip4Broadcast(t, f label) {
	ok, next := g.newLabel(), g.newLabel()
	hostmask := ^g.netmask
	g.linkProto(etherTypeIPv4, ok, f)
	g.mark(ok)
	g.emit(bpf.LoadAbsolute{Off: g.link.netOffset + ip4DestinationAddressOff, Size: lengthWord})
	if hostmask != 0xffffffff {
		g.emit(bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: hostmask})
	}
	g.jeq(0, t, next)
	g.mark(next)
	g.jeq(hostmask, t, f)
}

func (g *generator) ip4Multicast(t, f label) {
	ok := g.newLabel()
	g.linkProto(etherTypeIPv4, ok, f)
	g.mark(ok)
	g.emit(bpf.LoadAbsolute{Off: g.link.netOffset + ip4DestinationAddressOff, Size: lengthByte})
	g.test(bpf.JumpGreaterOrEqual, ip4MulticastFirstOctet, t, f)
}

func (g *generator) ip6Multicast(t, f label) {
	ok := g.newLabel()
	g.linkProto(etherTypeIPv6, ok, f)
	g.mark(ok)
	g.emit(bpf.LoadAbsolute{Off: g.link.netOffset + ip6DestinationAddressOff, Size: lengthByte})
	g.jeq(0xff, t, f)
}

// packetLength compare the length of the whole frame
func (g *generator) packetLength(less bool, size uint32, t, f label) {
	g.emit(bpf.LoadExtension{Num: bpf.ExtLen})
	if less {
		g.test(bpf.JumpGreaterThan, size, f, t)
		return
	}
	g.test(bpf.JumpGreaterOrEqual, size, t, f)
}

// getNetAndMask get the network for an address, a CIDR, an address with a
// separate netmask, or an abbreviated IPv4 network such as "10" or "192.168".
// A plain address gets the full mask.
func getNetAndMask(id, mask string) (*net.IPNet, error) {
	if mask != "" {
		ip, m := net.ParseIP(id).To4(), net.ParseIP(mask).To4()
		if ip == nil || m == nil {
			return nil, fmt.Errorf("%w: invalid net %s mask %s", ErrSyntax, id, mask)
		}
		return &net.IPNet{IP: ip.Mask(net.IPMask(m)), Mask: net.IPMask(m)}, nil
	}
	if strings.Contains(id, "/") {
		addr, network, err := net.ParseCIDR(id)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid net: %s", ErrSyntax, id)
		}
		if !addr.Equal(network.IP) {
			return nil, fmt.Errorf("%w: non-network bits set in %s", ErrSyntax, id)
		}
		if ip4 := network.IP.To4(); ip4 != nil {
			network.IP = ip4
		}
		return network, nil
	}
	if addr := net.ParseIP(id); addr != nil {
		if ip4 := addr.To4(); ip4 != nil {
			return &net.IPNet{IP: ip4, Mask: ip4MaskFull}, nil
		}
		return &net.IPNet{IP: addr, Mask: ip6MaskFull}, nil
	}
	parts := strings.Split(id, ".")
	if len(parts) > 3 {
		return nil, fmt.Errorf("%w: invalid net: %s", ErrSyntax, id)
	}
	ip := make(net.IP, net.IPv4len)
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid net: %s", ErrSyntax, id)
		}
		ip[i] = byte(v)
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(8*len(parts), 32)}, nil
}
