package filter

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// resolver used for host names in "host" primitives
var resolver net.Resolver

// primitive implements Filter for a single qualified id, e.g. "tcp dst port 80"
type primitive struct {
	kind        filterKind
	direction   filterDirection
	protocol    filterProtocol
	subProtocol filterSubProtocol
	id          string
	mask        string
}

func (p primitive) Equal(o Filter) bool {
	op, ok := o.(primitive)
	return ok && p == op
}

func (p primitive) String() string {
	var words []string
	if p.protocol != filterProtocolUnset {
		words = append(words, nameOf(protocols, p.protocol))
	}
	if p.subProtocol != filterSubProtocolUnset {
		words = append(words, nameOf(subProtocols, p.subProtocol))
	}
	if p.direction != filterDirectionUnset && p.direction != filterDirectionSrcOrDst {
		words = append(words, nameOf(directions, p.direction))
	}
	if p.kind != filterKindUnset {
		words = append(words, nameOf(kinds, p.kind))
	}
	if p.id != "" {
		words = append(words, p.id)
	}
	if p.mask != "" {
		words = append(words, "mask", p.mask)
	}
	return strings.Join(words, " ")
}

func nameOf[K comparable](m map[string]K, v K) string {
	for name, val := range m {
		if val == v {
			return name
		}
	}
	return "?"
}

func (p primitive) generate(g *generator, t, f label) error {
	switch p.protocol {
	case filterProtocolFddi, filterProtocolTr, filterProtocolWlan:
		return fmt.Errorf("%w: %q qualifier", ErrUnsupported, nameOf(protocols, p.protocol))
	}
	switch p.kind {
	case filterKindUnset:
		return p.generateProtocol(g, t, f)
	case filterKindHost:
		return p.generateHost(g, t, f)
	case filterKindNet:
		return p.generateNet(g, t, f)
	case filterKindPort, filterKindPortRange:
		return p.generatePort(g, t, f)
	case filterKindProto:
		return p.generateProto(g, t, f)
	case filterKindBroadcast:
		return p.generateBroadcast(g, t, f)
	case filterKindMulticast:
		return p.generateMulticast(g, t, f)
	case filterKindLess, filterKindGreater:
		return p.generateLength(g, t, f)
	}
	return fmt.Errorf("%w: %q", ErrUnsupported, p.String())
}

// generateProtocol a primitive with protocol qualifiers only, e.g. "ip6" or "tcp"
func (p primitive) generateProtocol(g *generator, t, f label) error {
	if p.subProtocol == filterSubProtocolUnset {
		switch p.protocol {
		case filterProtocolIP:
			g.linkProto(etherTypeIPv4, t, f)
		case filterProtocolIP6:
			g.linkProto(etherTypeIPv6, t, f)
		case filterProtocolArp:
			g.linkProto(etherTypeArp, t, f)
		case filterProtocolRarp:
			g.linkProto(etherTypeRarp, t, f)
		default:
			return fmt.Errorf("%w: %q needs a qualifier", ErrSyntax, p.String())
		}
		return nil
	}
	if etherType, ok := etherTypes[p.subProtocol]; ok {
		if p.protocol != filterProtocolUnset && p.protocol != filterProtocolEther {
			return fmt.Errorf("%w: %q", ErrSyntax, p.String())
		}
		g.linkProto(etherType, t, f)
		return nil
	}
	proto := ipProtocols[p.subProtocol]
	v4, v6, err := p.ipVersions(proto.ip4, proto.ip6)
	if err != nil {
		return err
	}
	g.ipProto(proto.number, v4, v6, t, f)
	return nil
}

// ipVersions narrow the IP versions a primitive applies to by its protocol qualifier
func (p primitive) ipVersions(v4, v6 bool) (bool, bool, error) {
	switch p.protocol {
	case filterProtocolUnset:
	case filterProtocolIP:
		v6 = false
	case filterProtocolIP6:
		v4 = false
	default:
		return false, false, fmt.Errorf("%w: %q qualifier not valid in %q", ErrSyntax, nameOf(protocols, p.protocol), p.String())
	}
	if !v4 && !v6 {
		return false, false, fmt.Errorf("%w: %q can never match", ErrSyntax, p.String())
	}
	return v4, v6, nil
}

func (p primitive) generateProto(g *generator, t, f label) error {
	if p.protocol == filterProtocolEther {
		etherType, ok := etherProtoNames[p.id]
		if !ok {
			if sub, found := subProtocols[p.id]; found {
				etherType, ok = etherTypes[sub]
			}
		}
		if !ok {
			v, err := strconv.ParseUint(p.id, 0, 16)
			if err != nil {
				return fmt.Errorf("%w: unknown ether proto %q", ErrSyntax, p.id)
			}
			etherType = uint32(v)
		}
		g.linkProto(etherType, t, f)
		return nil
	}
	var number uint32
	if sub, ok := subProtocols[p.id]; ok {
		proto, found := ipProtocols[sub]
		if !found {
			return fmt.Errorf("%w: %q is not an IP protocol", ErrSyntax, p.id)
		}
		number = proto.number
	} else {
		v, err := strconv.ParseUint(p.id, 0, 8)
		if err != nil {
			return fmt.Errorf("%w: unknown ip proto %q", ErrSyntax, p.id)
		}
		number = uint32(v)
	}
	v4, v6, err := p.ipVersions(true, true)
	if err != nil {
		return err
	}
	g.ipProto(number, v4, v6, t, f)
	return nil
}

// addresses the addresses a host primitive names, resolving host names
func (p primitive) addresses() ([]net.IP, error) {
	if ip := net.ParseIP(p.id); ip != nil {
		return []net.IP{ip}, nil
	}
	addrs, err := resolver.LookupIPAddr(context.Background(), p.id)
	if err != nil {
		return nil, fmt.Errorf("unknown host %q: %v", p.id, err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.IP)
	}
	return ips, nil
}

func (p primitive) generateHost(g *generator, t, f label) error {
	if p.subProtocol != filterSubProtocolUnset {
		return fmt.Errorf("%w: %q qualifier not valid for host", ErrSyntax, nameOf(subProtocols, p.subProtocol))
	}
	if p.protocol == filterProtocolEther {
		hwAddr, err := net.ParseMAC(p.id)
		if err != nil || len(hwAddr) != 6 {
			return fmt.Errorf("%w: invalid ethernet address %q", ErrSyntax, p.id)
		}
		return g.etherAddress(p.direction, hwAddr, t, f)
	}
	ips, err := p.addresses()
	if err != nil {
		return err
	}
	networks := make([]*net.IPNet, 0, len(ips))
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			if p.protocol == filterProtocolIP6 {
				continue
			}
			networks = append(networks, &net.IPNet{IP: ip4, Mask: ip4MaskFull})
			continue
		}
		if p.protocol == filterProtocolUnset || p.protocol == filterProtocolIP6 {
			networks = append(networks, &net.IPNet{IP: ip, Mask: ip6MaskFull})
		}
	}
	if len(networks) == 0 {
		return fmt.Errorf("%w: no %s address for host %q", ErrSyntax, nameOf(protocols, p.protocol), p.id)
	}
	return g.anyOf(len(networks), func(i int, t, f label) error {
		return g.network(p.protocol, p.direction, networks[i], t, f)
	}, t, f)
}

func (p primitive) generateNet(g *generator, t, f label) error {
	if p.subProtocol != filterSubProtocolUnset {
		return fmt.Errorf("%w: %q qualifier not valid for net", ErrSyntax, nameOf(subProtocols, p.subProtocol))
	}
	network, err := getNetAndMask(p.id, p.mask)
	if err != nil {
		return err
	}
	return g.network(p.protocol, p.direction, network, t, f)
}

// portRange the low and high port of a port or portrange primitive
func (p primitive) portRange() (uint32, uint32, error) {
	if p.kind == filterKindPort {
		port, err := lookupPort(p.id)
		return port, port, err
	}
	parts := strings.SplitN(p.id, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: invalid port range %q", ErrSyntax, p.id)
	}
	low, err := lookupPort(parts[0])
	if err != nil {
		return 0, 0, err
	}
	high, err := lookupPort(parts[1])
	if err != nil {
		return 0, 0, err
	}
	if low > high {
		low, high = high, low
	}
	return low, high, nil
}

func lookupPort(s string) (uint32, error) {
	if v, err := strconv.ParseUint(s, 10, 16); err == nil {
		return uint32(v), nil
	}
	for _, network := range []string{"tcp", "udp"} {
		if port, err := resolver.LookupPort(context.Background(), network, s); err == nil {
			return uint32(port), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown port %q", ErrSyntax, s)
}

func (p primitive) generatePort(g *generator, t, f label) error {
	low, high, err := p.portRange()
	if err != nil {
		return err
	}
	var transports []uint32
	switch p.subProtocol {
	case filterSubProtocolUnset:
		transports = []uint32{ipProtocolTCP, ipProtocolUDP, ipProtocolSctp}
	case filterSubProtocolTCP:
		transports = []uint32{ipProtocolTCP}
	case filterSubProtocolUDP:
		transports = []uint32{ipProtocolUDP}
	case filterSubProtocolSctp:
		transports = []uint32{ipProtocolSctp}
	default:
		return fmt.Errorf("%w: %q qualifier not valid for port", ErrSyntax, nameOf(subProtocols, p.subProtocol))
	}
	v4, v6, err := p.ipVersions(true, true)
	if err != nil {
		return err
	}
	if v4 && v6 {
		mid := g.newLabel()
		if err := g.ip4Ports(p.direction, transports, low, high, t, mid); err != nil {
			return err
		}
		g.mark(mid)
		return g.ip6Ports(p.direction, transports, low, high, t, f)
	}
	if v4 {
		return g.ip4Ports(p.direction, transports, low, high, t, f)
	}
	return g.ip6Ports(p.direction, transports, low, high, t, f)
}

func (p primitive) generateBroadcast(g *generator, t, f label) error {
	switch p.protocol {
	case filterProtocolUnset, filterProtocolEther:
		return g.etherAddress(filterDirectionDst, broadcastMAC, t, f)
	case filterProtocolIP:
		g.ip4Broadcast(t, f)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupported, p.String())
}

func (p primitive) generateMulticast(g *generator, t, f label) error {
	switch p.protocol {
	case filterProtocolUnset, filterProtocolEther:
		return g.etherMulticast(t, f)
	case filterProtocolIP:
		g.ip4Multicast(t, f)
		return nil
	case filterProtocolIP6:
		g.ip6Multicast(t, f)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupported, p.String())
}

func (p primitive) generateLength(g *generator, t, f label) error {
	size, err := strconv.ParseUint(p.id, 0, 32)
	if err != nil {
		return fmt.Errorf("%w: invalid length %q", ErrSyntax, p.id)
	}
	g.packetLength(p.kind == filterKindLess, uint32(size), t, f)
	return nil
}
