/*
Package pcap provides memory-safe access to packet capture filtering and
packet representation.

Filters in pcap-filter(7) syntax compile into a FilterProgram, which owns the
memory holding its classic BPF instructions until Release is called:

	prog, err := pcap.Compile("tcp port 80", pcap.WithDatalink(pcap.LinkTypeName("EN10MB")))
	if err != nil {
		return err
	}
	defer prog.Release()
	err = prog.Attach(fd)

The program memory is an anonymous read-only mapping on unix, so that it can be
handed to the kernel as it is (SO_ATTACH_FILTER on Linux, BIOCSETF on BSD and
macOS). With the libpcap build tag and cgo, compilation goes through
pcap_compile_nopcap instead of the Go code generator in package filter.

Captured frames come in two kinds. A Packet owns its bytes and can be copied,
encoded and kept. A PacketView borrows the bytes of a capture buffer for the
duration of a Lease, and yields nothing once the lease expires; Copy it to keep it.
*/
package pcap
