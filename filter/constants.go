package filter

const (
	lengthByte                int    = 1
	lengthHalf                int    = 2
	lengthWord                int    = 4
	bitsPerWord               int    = 32
	etherTypeIPv4             uint32 = 0x0800
	etherTypeIPv6             uint32 = 0x86dd
	etherTypeArp              uint32 = 0x806
	etherTypeRarp             uint32 = 0x8035
	jumpMask                  uint32 = 0x1fff
	ipProtocolTCP             uint32 = 0x06
	ipProtocolUDP             uint32 = 0x11
	ipProtocolSctp            uint32 = 0x84
	ip6ContinuationPacket     uint32 = 0x2c
	ip4ProtocolOffset         uint32 = 9
	ip4FlagsOffset            uint32 = 6
	ip4SourceAddressOffset    uint32 = 12
	ip4DestinationAddressOff  uint32 = 16
	ip6NextHeaderOffset       uint32 = 6
	ip6SourceAddressOffset    uint32 = 8
	ip6DestinationAddressOff  uint32 = 24
	ip6HeaderSize             uint32 = 40
	arpSenderAddressOffset    uint32 = 14
	arpTargetAddressOffset    uint32 = 24
	portSourceOffset          uint32 = 0
	portDestinationOffset     uint32 = 2
	ethernetDestinationOffset uint32 = 0
	ethernetSourceOffset      uint32 = 6
	ip4MulticastFirstOctet    uint32 = 224
	ipVersionMask             uint32 = 0xf0
	ipVersion4                uint32 = 0x40
	ipVersion6                uint32 = 0x60
	defaultSnapLength         uint32 = 65535
	maxConditionalSkip               = 255
	maxOptimizePasses                = 16
)

// link types understood by the code generator, see pcap-linktype(7)
const (
	LinkTypeNull      uint32 = 0
	LinkTypeEthernet  uint32 = 1
	LinkTypeRaw       uint32 = 12
	LinkTypeLoop      uint32 = 108
	LinkTypeLinuxSLL  uint32 = 113
	LinkTypeIPv4      uint32 = 228
	LinkTypeIPv6      uint32 = 229
	LinkTypeLinuxSLL2 uint32 = 276
)

// address families used in the NULL and LOOP link headers
const (
	afInet         uint32 = 2
	afInet6BSD     uint32 = 24
	afInet6FreeBSD uint32 = 28
	afInet6Darwin  uint32 = 30
)

type filterKind int

const (
	filterKindUnset filterKind = iota
	filterKindHost
	filterKindNet
	filterKindPort
	filterKindPortRange
	filterKindProto
	filterKindBroadcast
	filterKindMulticast
	filterKindLess
	filterKindGreater
)

var kinds = map[string]filterKind{
	"host":      filterKindHost,
	"net":       filterKindNet,
	"port":      filterKindPort,
	"portrange": filterKindPortRange,
	"proto":     filterKindProto,
	"broadcast": filterKindBroadcast,
	"multicast": filterKindMulticast,
	"less":      filterKindLess,
	"greater":   filterKindGreater,
}

type filterDirection int

const (
	filterDirectionUnset filterDirection = iota
	filterDirectionSrcAndDst
	filterDirectionSrcOrDst
	filterDirectionSrc
	filterDirectionDst
	filterDirectionRa
	filterDirectionTa
	filterDirectionAddr1
	filterDirectionAddr2
	filterDirectionAddr3
	filterDirectionAddr4
)

var directions = map[string]filterDirection{
	"src":         filterDirectionSrc,
	"dst":         filterDirectionDst,
	"src and dst": filterDirectionSrcAndDst,
	"src or dst":  filterDirectionSrcOrDst,
	"ra":          filterDirectionRa,
	"ta":          filterDirectionTa,
	"addr1":       filterDirectionAddr1,
	"addr2":       filterDirectionAddr2,
	"addr3":       filterDirectionAddr3,
	"addr4":       filterDirectionAddr4,
}

type filterProtocol int

const (
	filterProtocolUnset filterProtocol = iota
	filterProtocolEther
	filterProtocolFddi
	filterProtocolTr
	filterProtocolWlan
	filterProtocolIP
	filterProtocolIP6
	filterProtocolArp
	filterProtocolRarp
)

var protocols = map[string]filterProtocol{
	"ether": filterProtocolEther,
	"fddi":  filterProtocolFddi,
	"tr":    filterProtocolTr,
	"wlan":  filterProtocolWlan,
	"ip":    filterProtocolIP,
	"ip6":   filterProtocolIP6,
	"arp":   filterProtocolArp,
	"rarp":  filterProtocolRarp,
}

type filterSubProtocol int

const (
	filterSubProtocolUnset filterSubProtocol = iota
	filterSubProtocolAtalk
	filterSubProtocolAarp
	filterSubProtocolDecnet
	filterSubProtocolSca
	filterSubProtocolLat
	filterSubProtocolMopdl
	filterSubProtocolMoprc
	filterSubProtocolIpx
	filterSubProtocolIcmp
	filterSubProtocolIcmp6
	filterSubProtocolIgmp
	filterSubProtocolIgrp
	filterSubProtocolPim
	filterSubProtocolAh
	filterSubProtocolEsp
	filterSubProtocolVrrp
	filterSubProtocolUDP
	filterSubProtocolTCP
	filterSubProtocolSctp
)

var subProtocols = map[string]filterSubProtocol{
	"atalk":  filterSubProtocolAtalk,
	"aarp":   filterSubProtocolAarp,
	"decnet": filterSubProtocolDecnet,
	"sca":    filterSubProtocolSca,
	"lat":    filterSubProtocolLat,
	"mopdl":  filterSubProtocolMopdl,
	"moprc":  filterSubProtocolMoprc,
	"ipx":    filterSubProtocolIpx,
	"icmp":   filterSubProtocolIcmp,
	"icmp6":  filterSubProtocolIcmp6,
	"igmp":   filterSubProtocolIgmp,
	"igrp":   filterSubProtocolIgrp,
	"pim":    filterSubProtocolPim,
	"ah":     filterSubProtocolAh,
	"esp":    filterSubProtocolEsp,
	"vrrp":   filterSubProtocolVrrp,
	"udp":    filterSubProtocolUDP,
	"tcp":    filterSubProtocolTCP,
	"sctp":   filterSubProtocolSctp,
}

// etherTypes link layer protocols reachable with "ether proto" or a bare name
var etherTypes = map[filterSubProtocol]uint32{
	filterSubProtocolAtalk:  0x809b,
	filterSubProtocolAarp:   0x80f3,
	filterSubProtocolDecnet: 0x6003,
	filterSubProtocolSca:    0x6007,
	filterSubProtocolLat:    0x6004,
	filterSubProtocolMopdl:  0x6001,
	filterSubProtocolMoprc:  0x6002,
	filterSubProtocolIpx:    0x8137,
}

// ipProtocols transport protocols, and which IP versions carry them
var ipProtocols = map[filterSubProtocol]struct {
	number   uint32
	ip4, ip6 bool
}{
	filterSubProtocolIcmp:  {1, true, false},
	filterSubProtocolIgmp:  {2, true, false},
	filterSubProtocolIgrp:  {9, true, false},
	filterSubProtocolTCP:   {ipProtocolTCP, true, true},
	filterSubProtocolUDP:   {ipProtocolUDP, true, true},
	filterSubProtocolEsp:   {50, true, true},
	filterSubProtocolAh:    {51, true, true},
	filterSubProtocolIcmp6: {58, false, true},
	filterSubProtocolPim:   {103, true, true},
	filterSubProtocolVrrp:  {112, true, false},
	filterSubProtocolSctp:  {ipProtocolSctp, true, true},
}

// etherProtoNames names accepted after "ether proto"
var etherProtoNames = map[string]uint32{
	"ip":   etherTypeIPv4,
	"ip6":  etherTypeIPv6,
	"arp":  etherTypeArp,
	"rarp": etherTypeRarp,
}
