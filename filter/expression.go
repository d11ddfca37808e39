package filter

import (
	"fmt"
	"strings"
	"unicode"
)

type Expression struct {
	raw     string
	split   []string
	current int
	last    *primitive
}

func NewExpression(s string) *Expression {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &Expression{
		raw:   s,
		split: tokenize(s),
	}
}

// tokenize split on whitespace, keeping parentheses, '!' and runs of '&' or '|'
// as tokens of their own
func tokenize(s string) []string {
	var (
		tokens []string
		word   strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			flush()
		case r == '(' || r == ')' || r == '!':
			flush()
			tokens = append(tokens, string(r))
		case r == '&' || r == '|':
			flush()
			j := i
			for j < len(runes) && runes[j] == r {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j - 1
		default:
			word.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// Compile parse the whole expression into a Filter. "and" and "or" have the
// same precedence and associate to the left, as in pcap-filter(7).
func (e *Expression) Compile() (Filter, error) {
	f, err := e.parseExpression()
	if err != nil {
		return nil, err
	}
	if e.HasNext() {
		return nil, e.errorf("unexpected %q", e.split[e.current])
	}
	return f, nil
}

// HasNext if there are any more tokens to consume
func (e *Expression) HasNext() bool {
	return len(e.split) > e.current
}

func (e *Expression) peek() string {
	if !e.HasNext() {
		return ""
	}
	return e.split[e.current]
}

func (e *Expression) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w in %q: %s", ErrSyntax, e.raw, fmt.Sprintf(format, args...))
}

func (e *Expression) parseExpression() (Filter, error) {
	left, err := e.parseTerm()
	if err != nil {
		return nil, err
	}
	for e.HasNext() {
		var and bool
		switch e.peek() {
		case "and", "&&":
			and = true
		case "or", "||":
			and = false
		default:
			return left, nil
		}
		e.current++
		right, err := e.parseTerm()
		if err != nil {
			return nil, err
		}
		left = join(left, right, and)
	}
	return left, nil
}

func (e *Expression) parseTerm() (Filter, error) {
	if !e.HasNext() {
		return nil, e.errorf("unexpected end of expression")
	}
	switch e.peek() {
	case "not", "!":
		e.current++
		f, err := e.parseTerm()
		if err != nil {
			return nil, err
		}
		return negation{filter: f}, nil
	case "(":
		e.current++
		f, err := e.parseExpression()
		if err != nil {
			return nil, err
		}
		if e.peek() != ")" {
			return nil, e.errorf("missing ')'")
		}
		e.current++
		return f, nil
	case ")", "and", "or", "&&", "||":
		return nil, e.errorf("unexpected %q", e.peek())
	}
	p, err := e.Next()
	if err != nil {
		return nil, err
	}
	setPrimitiveDefaults(p, e.last)
	last := *p
	e.last = &last
	return *p, nil
}

// Next get the next primitive, stopping at a joiner, a parenthesis or the end.
func (e *Expression) Next() (*primitive, error) {
	startCount := e.current
	p := &primitive{
		direction: filterDirectionUnset,
		kind:      filterKindUnset,
		protocol:  filterProtocolUnset,
	}

words:
	for e.HasNext() {
		word := e.split[e.current]
		switch word {
		case "and", "or", "&&", "||", "(", ")", "not", "!":
			break words
		case "proto":
			// the next word is the protocol, as a name or a number.
			// we will accept the protocol as "name" or "\name", because some get escaped
			if len(e.split) <= e.current+1 {
				return nil, e.errorf("missing protocol after \"proto\"")
			}
			p.kind = filterKindProto
			p.id = strings.TrimLeft(e.split[e.current+1], "\\")
			e.current += 2
			continue words
		case "mask":
			if len(e.split) <= e.current+1 {
				return nil, e.errorf("missing netmask after \"mask\"")
			}
			p.mask = e.split[e.current+1]
			e.current += 2
			continue words
		case "src":
			// handle the "src or dst"/"src and dst" case
			if len(e.split) > e.current+2 && (e.split[e.current+1] == "or" || e.split[e.current+1] == "and") && e.split[e.current+2] == "dst" {
				word = strings.Join(e.split[e.current:e.current+3], " ")
				e.current += 2
			}
		}
		// it must be a primitive word, so find it
		if kind, ok := kinds[word]; ok {
			p.kind = kind
		} else if direction, ok := directions[word]; ok {
			p.direction = direction
		} else if protocol, ok := protocols[word]; ok {
			p.protocol = protocol
		} else if subprotocol, ok := subProtocols[word]; ok {
			p.subProtocol = subprotocol
		} else {
			if p.id != "" {
				return nil, e.errorf("unexpected %q after %q", word, p.id)
			}
			p.id = strings.TrimLeft(word, "\\")
		}
		e.current++
	}
	if e.current == startCount {
		return nil, e.errorf("expected a primitive")
	}
	return p, nil
}

// setPrimitiveDefaults set defaults on expressions
func setPrimitiveDefaults(p, lastPrimitive *primitive) {
	// a bare id takes the qualifiers of the primitive before it
	if p.direction == filterDirectionUnset && p.protocol == filterProtocolUnset && p.kind == filterKindUnset && p.subProtocol == filterSubProtocolUnset {
		// we only copy over the previous ones if they qualify an id, per the manpage:
		/*
			To save typing, identical qualifier lists can be omitted. E.g., `tcp dst port ftp or ftp-data or domain' is exactly the same as `tcp dst port ftp or tcp dst port ftp-data or tcp dst port domain'
		*/
		if lastPrimitive != nil && lastPrimitive.id != "" && lastPrimitive.kind != filterKindProto {
			p.direction = lastPrimitive.direction
			p.kind = lastPrimitive.kind
			p.protocol = lastPrimitive.protocol
			p.subProtocol = lastPrimitive.subProtocol
		}
	}
	if p.kind == filterKindUnset && p.id != "" {
		p.kind = filterKindHost
	}
	if p.direction == filterDirectionUnset && p.kind != filterKindUnset {
		p.direction = filterDirectionSrcOrDst
	}
}
