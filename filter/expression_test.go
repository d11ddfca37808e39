package filter

import (
	"errors"
	"reflect"
	"testing"
)

func TestExpressionEmpty(t *testing.T) {
	for _, s := range []string{"", "   ", "\t\n"} {
		if e := NewExpression(s); e != nil {
			t.Errorf("%q: expected nil for blank expression", s)
		}
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		expression string
		tokens     []string
	}{
		{"tcp", []string{"tcp"}},
		{"tcp and  udp", []string{"tcp", "and", "udp"}},
		{"!tcp", []string{"!", "tcp"}},
		{"(tcp||udp)&&ip6", []string{"(", "tcp", "||", "udp", ")", "&&", "ip6"}},
		{"not (host 10.0.0.1)", []string{"not", "(", "host", "10.0.0.1", ")"}},
		{"ether host 00:11:22:33:44:55", []string{"ether", "host", "00:11:22:33:44:55"}},
	}
	for _, tt := range tests {
		if tokens := tokenize(tt.expression); !reflect.DeepEqual(tokens, tt.tokens) {
			t.Errorf("%q: actual %q, expected %q", tt.expression, tokens, tt.tokens)
		}
	}
}

func TestExpressionHasNext(t *testing.T) {
	// single element
	e := NewExpression("a")
	if !e.HasNext() {
		t.Fatal("with one element remaining, should have HasNext()==true")
	}
	if _, err := e.Next(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.HasNext() {
		t.Fatal("with zero element remaining, should have HasNext()==false")
	}
}

// TestExpressionNextPrimitive tests Expression.Next(), before defaults are applied
func TestExpressionNextPrimitive(t *testing.T) {
	tests := []struct {
		expression string
		prim       primitive
	}{
		{"abc", primitive{id: "abc"}},
		{"host abc", primitive{kind: filterKindHost, id: "abc"}},
		{"src host abc", primitive{kind: filterKindHost, direction: filterDirectionSrc, id: "abc"}},
		{"dst host abc", primitive{kind: filterKindHost, direction: filterDirectionDst, id: "abc"}},
		{"src or dst host abc", primitive{kind: filterKindHost, direction: filterDirectionSrcOrDst, id: "abc"}},
		{"src and dst host abc", primitive{kind: filterKindHost, direction: filterDirectionSrcAndDst, id: "abc"}},
		{"port 22", primitive{kind: filterKindPort, id: "22"}},
		{"tcp src port 22", primitive{kind: filterKindPort, direction: filterDirectionSrc, subProtocol: filterSubProtocolTCP, id: "22"}},
		{"net 192.168.0.0/24", primitive{kind: filterKindNet, id: "192.168.0.0/24"}},
		{"net 10.0.0.0 mask 255.0.0.0", primitive{kind: filterKindNet, id: "10.0.0.0", mask: "255.0.0.0"}},
		{"ip proto tcp", primitive{kind: filterKindProto, protocol: filterProtocolIP, id: "tcp"}},
		{"ip proto \\tcp", primitive{kind: filterKindProto, protocol: filterProtocolIP, id: "tcp"}},
		{"ether proto ip", primitive{kind: filterKindProto, protocol: filterProtocolEther, id: "ip"}},
		{"ip6", primitive{protocol: filterProtocolIP6}},
		{"udp", primitive{subProtocol: filterSubProtocolUDP}},
		{"less 100", primitive{kind: filterKindLess, id: "100"}},
		{"ether broadcast", primitive{kind: filterKindBroadcast, protocol: filterProtocolEther}},
	}
	for _, tt := range tests {
		e := NewExpression(tt.expression)
		val, err := e.Next()
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.expression, err)
			continue
		}
		if !val.Equal(tt.prim) {
			t.Errorf("%s: mismatched value\nactual   %#v\nexpected %#v", tt.expression, *val, tt.prim)
		}
	}
}

func TestExpressionCompile(t *testing.T) {
	host := func(dir filterDirection, id string) primitive {
		return primitive{kind: filterKindHost, direction: dir, id: id}
	}
	tcpDstPort := func(id string) primitive {
		return primitive{kind: filterKindPort, direction: filterDirectionDst, subProtocol: filterSubProtocolTCP, id: id}
	}
	tests := []struct {
		expression string
		filter     Filter
	}{
		{"abc", host(filterDirectionSrcOrDst, "abc")},
		{"tcp", primitive{subProtocol: filterSubProtocolTCP}},
		{"not tcp", negation{filter: primitive{subProtocol: filterSubProtocolTCP}}},
		{"! tcp", negation{filter: primitive{subProtocol: filterSubProtocolTCP}}},
		{"host a and host b", composite{and: true, filters: []Filter{
			host(filterDirectionSrcOrDst, "a"), host(filterDirectionSrcOrDst, "b"),
		}}},
		{"host a and host b and host c", composite{and: true, filters: []Filter{
			host(filterDirectionSrcOrDst, "a"), host(filterDirectionSrcOrDst, "b"), host(filterDirectionSrcOrDst, "c"),
		}}},
		// same precedence, left to right
		{"host a or host b and host c", composite{and: true, filters: []Filter{
			composite{and: false, filters: []Filter{host(filterDirectionSrcOrDst, "a"), host(filterDirectionSrcOrDst, "b")}},
			host(filterDirectionSrcOrDst, "c"),
		}}},
		{"host a or (host b and host c)", composite{and: false, filters: []Filter{
			host(filterDirectionSrcOrDst, "a"),
			composite{and: true, filters: []Filter{host(filterDirectionSrcOrDst, "b"), host(filterDirectionSrcOrDst, "c")}},
		}}},
		// qualifiers carry over to bare ids
		{"tcp dst port ftp or ftp-data or domain", composite{and: false, filters: []Filter{
			tcpDstPort("ftp"), tcpDstPort("ftp-data"), tcpDstPort("domain"),
		}}},
		{"src host a || b", composite{and: false, filters: []Filter{
			host(filterDirectionSrc, "a"), host(filterDirectionSrc, "b"),
		}}},
		{"not (tcp or udp)", negation{filter: composite{and: false, filters: []Filter{
			primitive{subProtocol: filterSubProtocolTCP}, primitive{subProtocol: filterSubProtocolUDP},
		}}}},
	}
	for _, tt := range tests {
		f, err := NewExpression(tt.expression).Compile()
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.expression, err)
			continue
		}
		if !f.Equal(tt.filter) {
			t.Errorf("%s: mismatched value\nactual   %s\nexpected %s", tt.expression, f, tt.filter)
		}
	}
}

func TestExpressionCompileErrors(t *testing.T) {
	tests := []string{
		"(tcp",
		"tcp)",
		"tcp and",
		"and tcp",
		"tcp not udp",
		"host a b",
		"ip proto",
		"()",
	}
	for _, expression := range tests {
		_, err := NewExpression(expression).Compile()
		if !errors.Is(err, ErrSyntax) {
			t.Errorf("%q: expected syntax error, got %v", expression, err)
		}
	}
}
