//go:build libpcap && cgo

package pcap

/*
#cgo LDFLAGS: -lpcap
#include <stdlib.h>
#include <pcap.h>
*/
import "C"

import (
	"unsafe"
)

var defaultCompiler compiler = libpcapCompiler{}

// libpcapCompiler compile with pcap_compile_nopcap. There is no pcap_t to
// carry an error message, so failures have no diagnostic.
type libpcapCompiler struct{}

func (libpcapCompiler) compile(expr string, linkType LinkType, snapLength uint32, optimize int, netmask uint32) (*FilterProgram, error) {
	cexpr := C.CString(expr)
	defer C.free(unsafe.Pointer(cexpr))

	b := &cBuffer{}
	if C.pcap_compile_nopcap(C.int(snapLength), C.int(linkType.Value()), &b.prog, cexpr, C.int(optimize), C.bpf_u_int32(netmask)) != 0 {
		return nil, &CompileError{Expr: expr}
	}
	return &FilterProgram{length: uint32(b.prog.bf_len), mem: b}, nil
}

// cBuffer a struct bpf_program filled in by libpcap
type cBuffer struct {
	prog C.struct_bpf_program
}

func (b *cBuffer) base() unsafe.Pointer {
	return unsafe.Pointer(b.prog.bf_insns)
}

func (b *cBuffer) release() error {
	C.pcap_freecode(&b.prog)
	return nil
}
