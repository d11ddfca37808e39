//go:build !(libpcap && cgo)

package pcap

import (
	"errors"
	"testing"

	"github.com/packetcap/pcapkit/filter"
	"github.com/stretchr/testify/require"
)

func TestGoCompilerErrors(t *testing.T) {
	// a link type the code generator has no header layout for
	_, err := Compile("tcp", WithDatalink(LinkTypeName("FDDI")))
	require.ErrorIs(t, err, ErrCompile)
	require.ErrorIs(t, err, filter.ErrUnsupported)

	_, err = Compile("tcp and", WithDatalink(LinkTypeName("EN10MB")))
	require.ErrorIs(t, err, filter.ErrSyntax)
	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	require.NotNil(t, cerr.Err)

	_, err = Compile("tcp", WithLinkType(LinkType{value: -1}))
	require.ErrorIs(t, err, ErrCompile)
	require.ErrorIs(t, err, ErrUnsupportedLinkType)
}
