package pcap

import (
	log "github.com/sirupsen/logrus"
)

type compileOptions struct {
	datalink   LinkTypeRef
	linkType   *LinkType
	snapLength uint32
	optimize   bool
	netmask    uint32
}

// CompileOption changes how Compile builds a program
type CompileOption func(*compileOptions)

// WithDatalink link type of the frames the program will see, by name or number. Default NULL.
func WithDatalink(ref LinkTypeRef) CompileOption {
	return func(o *compileOptions) {
		o.datalink = ref
		o.linkType = nil
	}
}

// WithLinkType like WithDatalink, for an already resolved LinkType
func WithLinkType(lt LinkType) CompileOption {
	return func(o *compileOptions) {
		o.linkType = &lt
	}
}

// WithSnapLength bytes to keep from matching frames. Default 65535.
func WithSnapLength(n uint32) CompileOption {
	return func(o *compileOptions) {
		o.snapLength = n
	}
}

// WithOptimize run the optimizer over the generated code. Default on.
func WithOptimize(optimize bool) CompileOption {
	return func(o *compileOptions) {
		o.optimize = optimize
	}
}

// WithNetmask netmask of the capture network, needed for "ip broadcast". Default 0.
func WithNetmask(mask uint32) CompileOption {
	return func(o *compileOptions) {
		o.netmask = mask
	}
}

// compiler turns a filter expression into a program, without a capture session
type compiler interface {
	// compile optimize is 0 or 1, as the libpcap flag
	compile(expr string, linkType LinkType, snapLength uint32, optimize int, netmask uint32) (*FilterProgram, error)
}

// Compile compile a filter in pcap-filter(7) syntax into a program for the
// given link type. Failures are a *CompileError, or an
// *UnsupportedLinkTypeError when the datalink does not resolve. The caller
// owns the returned program and must Release it.
func Compile(expr string, opts ...CompileOption) (*FilterProgram, error) {
	o := compileOptions{
		datalink:   LinkTypeValue(DLTNull),
		snapLength: DefaultSnapLength,
		optimize:   true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	var (
		linkType LinkType
		err      error
	)
	if o.linkType != nil {
		linkType = *o.linkType
	} else if linkType, err = NewLinkType(o.datalink); err != nil {
		return nil, err
	}
	optimize := 0
	if o.optimize {
		optimize = 1
	}
	logger := log.WithFields(log.Fields{
		"expression": expr,
		"linktype":   linkType.String(),
		"snaplen":    o.snapLength,
		"optimize":   optimize,
		"netmask":    o.netmask,
	})
	logger.Debug("compiling filter")
	p, err := defaultCompiler.compile(expr, linkType, o.snapLength, optimize, o.netmask)
	if err != nil {
		logger.Debugf("compile failed: %v", err)
		return nil, err
	}
	logger.WithField("instructions", p.length).Trace("compiled filter")
	return p, nil
}
