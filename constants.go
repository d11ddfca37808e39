package pcap

// link type values, see pcap-linktype(7) and http://www.tcpdump.org/linktypes.html.
// Only the ones the filter compiler generates code for are listed; the
// registry knows many more.
const (
	DLTNull      int32 = 0
	DLTEN10MB    int32 = 1
	DLTRaw       int32 = 12
	DLTLoop      int32 = 108
	DLTLinuxSLL  int32 = 113
	DLTIPv4      int32 = 228
	DLTIPv6      int32 = 229
	DLTLinuxSLL2 int32 = 276
)

const (
	// DefaultSnapLength snap length used when none is given
	DefaultSnapLength uint32 = 65535
	// instructionSize size of one struct bpf_insn
	instructionSize = 8
)
