//go:build !(libpcap && cgo)

package pcap

import (
	"github.com/packetcap/pcapkit/filter"
)

var defaultCompiler compiler = goCompiler{}

// goCompiler compile with the pure Go code generator in package filter
type goCompiler struct{}

func (goCompiler) compile(expr string, linkType LinkType, snapLength uint32, optimize int, netmask uint32) (*FilterProgram, error) {
	if linkType.Value() < 0 {
		return nil, &CompileError{Expr: expr, Err: &UnsupportedLinkTypeError{Input: linkType.String()}}
	}
	raw, err := filter.CompileRaw(expr, filter.Options{
		LinkType:   uint32(linkType.Value()),
		SnapLength: snapLength,
		Optimize:   optimize != 0,
		Netmask:    netmask,
	})
	if err != nil {
		return nil, &CompileError{Expr: expr, Err: err}
	}
	return programFromRaw(raw)
}
