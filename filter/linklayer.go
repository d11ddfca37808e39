package filter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/net/bpf"
)

type linkHeader int

const (
	// a 16-bit ethertype at typeOffset
	linkHeaderEtherType linkHeader = iota
	// a 32-bit address family at offset 0
	linkHeaderFamily
	// no link header, the IP version nibble tells the protocol
	linkHeaderNone
	// no link header, and only one network protocol is possible
	linkHeaderFixed
)

// linkLayer describes where the network header starts for a link type and
// how the link header identifies the network protocol
type linkLayer struct {
	linkType   uint32
	header     linkHeader
	netOffset  uint32
	typeOffset uint32
	mac        bool
	// fixed the only ethertype carried, for linkHeaderFixed
	fixed uint32
	// order of the address family, for linkHeaderFamily
	order binary.ByteOrder
}

func newLinkLayer(linkType uint32) (linkLayer, error) {
	switch linkType {
	case LinkTypeEthernet:
		return linkLayer{linkType: linkType, header: linkHeaderEtherType, netOffset: 14, typeOffset: 12, mac: true}, nil
	case LinkTypeLinuxSLL:
		return linkLayer{linkType: linkType, header: linkHeaderEtherType, netOffset: 16, typeOffset: 14}, nil
	case LinkTypeLinuxSLL2:
		return linkLayer{linkType: linkType, header: linkHeaderEtherType, netOffset: 20, typeOffset: 0}, nil
	case LinkTypeNull:
		// BSD loopback carries the family in the byte order of the capturing host
		order, err := getEndianness()
		if err != nil {
			return linkLayer{}, err
		}
		return linkLayer{linkType: linkType, header: linkHeaderFamily, netOffset: 4, order: order}, nil
	case LinkTypeLoop:
		return linkLayer{linkType: linkType, header: linkHeaderFamily, netOffset: 4, order: binary.BigEndian}, nil
	case LinkTypeRaw:
		return linkLayer{linkType: linkType, header: linkHeaderNone}, nil
	case LinkTypeIPv4:
		return linkLayer{linkType: linkType, header: linkHeaderFixed, fixed: etherTypeIPv4}, nil
	case LinkTypeIPv6:
		return linkLayer{linkType: linkType, header: linkHeaderFixed, fixed: etherTypeIPv6}, nil
	}
	return linkLayer{}, fmt.Errorf("%w: link type %d", ErrUnsupported, linkType)
}

// families the address family values that mean the given ethertype
func (l linkLayer) families(etherType uint32) []uint32 {
	var afs []uint32
	switch etherType {
	case etherTypeIPv4:
		afs = []uint32{afInet}
	case etherTypeIPv6:
		afs = []uint32{afInet6BSD, afInet6FreeBSD, afInet6Darwin}
	}
	// the word is loaded big endian, so present the family as it would read that way
	for i, af := range afs {
		var buf [4]byte
		l.order.PutUint32(buf[:], af)
		afs[i] = binary.BigEndian.Uint32(buf[:])
	}
	return afs
}

// linkProto test that the frame carries the network protocol identified by the ethertype
func (g *generator) linkProto(etherType uint32, t, f label) {
	l := g.link
	switch l.header {
	case linkHeaderEtherType:
		g.emit(bpf.LoadAbsolute{Off: l.typeOffset, Size: lengthHalf})
		g.jeq(etherType, t, f)
	case linkHeaderFamily:
		afs := l.families(etherType)
		if len(afs) == 0 {
			g.jump(f)
			return
		}
		g.emit(bpf.LoadAbsolute{Off: 0, Size: lengthWord})
		_ = g.anyOf(len(afs), func(i int, t, f label) error {
			g.jeq(afs[i], t, f)
			return nil
		}, t, f)
	case linkHeaderNone:
		var version uint32
		switch etherType {
		case etherTypeIPv4:
			version = ipVersion4
		case etherTypeIPv6:
			version = ipVersion6
		default:
			g.jump(f)
			return
		}
		g.emit(bpf.LoadAbsolute{Off: 0, Size: lengthByte})
		g.emit(bpf.ALUOpConstant{Op: bpf.ALUOpAnd, Val: ipVersionMask})
		g.jeq(version, t, f)
	case linkHeaderFixed:
		if etherType == l.fixed {
			g.jump(t)
			return
		}
		g.jump(f)
	}
}

// getEndianness discover the endianness of our current system
func getEndianness() (binary.ByteOrder, error) {
	buf := [2]byte{}
	*(*uint16)(unsafe.Pointer(&buf[0])) = uint16(0xABCD)

	switch buf {
	case [2]byte{0xCD, 0xAB}:
		return binary.LittleEndian, nil
	case [2]byte{0xAB, 0xCD}:
		return binary.BigEndian, nil
	default:
		return nil, errors.New("could not determine native endianness")
	}
}
