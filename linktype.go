package pcap

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/gopacket/layers"
)

const dltPrefix = "DLT_"

// NameToValue translate a link type name, with or without the DLT_ prefix and
// in any case, to its numeric value
func NameToValue(name string) (int32, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, dltPrefix)
	if v, ok := linkTypesByName[n]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: link type name %q", ErrNotFound, name)
}

// ValueToName the canonical name of a link type value, without the DLT_ prefix
func ValueToName(v int32) (string, error) {
	if info, ok := linkTypesByValue[v]; ok {
		return info.name, nil
	}
	return "", fmt.Errorf("%w: link type %d", ErrNotFound, v)
}

// ValueToDescription a human readable description of a link type value
func ValueToDescription(v int32) (string, error) {
	if info, ok := linkTypesByValue[v]; ok {
		return info.description, nil
	}
	return "", fmt.Errorf("%w: link type %d", ErrNotFound, v)
}

type refKind uint8

const (
	refNone refKind = iota
	refName
	refValue
)

// LinkTypeRef names a link type either by name or by number. The zero value refers to nothing.
type LinkTypeRef struct {
	kind  refKind
	name  string
	value int32
}

// LinkTypeName a reference by name, e.g. "EN10MB" or "dlt_en10mb"
func LinkTypeName(name string) LinkTypeRef {
	return LinkTypeRef{kind: refName, name: name}
}

// LinkTypeValue a reference by numeric value
func LinkTypeValue(v int32) LinkTypeRef {
	return LinkTypeRef{kind: refValue, value: v}
}

// RefOf convert a name, an integer, a LinkType or a gopacket layers.LinkType
// into a LinkTypeRef. Anything else is ErrInvalidArgument.
func RefOf(v any) (LinkTypeRef, error) {
	var n int64
	switch v := v.(type) {
	case LinkTypeRef:
		return v, nil
	case LinkType:
		return LinkTypeValue(v.value), nil
	case layers.LinkType:
		return LinkTypeValue(int32(v)), nil
	case string:
		return LinkTypeName(v), nil
	case int:
		n = int64(v)
	case int8:
		n = int64(v)
	case int16:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint:
		if uint64(v) > math.MaxInt32 {
			return LinkTypeRef{}, fmt.Errorf("%w: link type %d out of range", ErrInvalidArgument, v)
		}
		n = int64(v)
	case uint8:
		n = int64(v)
	case uint16:
		n = int64(v)
	case uint32:
		n = int64(v)
	case uint64:
		if v > math.MaxInt32 {
			return LinkTypeRef{}, fmt.Errorf("%w: link type %d out of range", ErrInvalidArgument, v)
		}
		n = int64(v)
	default:
		return LinkTypeRef{}, fmt.Errorf("%w: link type must be a name or a number, got %T", ErrInvalidArgument, v)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return LinkTypeRef{}, fmt.Errorf("%w: link type %d out of range", ErrInvalidArgument, n)
	}
	return LinkTypeValue(int32(n)), nil
}

// IsZero if the reference names nothing
func (r LinkTypeRef) IsZero() bool {
	return r.kind == refNone
}

func (r LinkTypeRef) String() string {
	switch r.kind {
	case refName:
		return r.name
	case refValue:
		return fmt.Sprintf("%d", r.value)
	}
	return "<none>"
}

// resolve the numeric value the reference stands for
func (r LinkTypeRef) resolve() (int32, error) {
	switch r.kind {
	case refName:
		return NameToValue(r.name)
	case refValue:
		return r.value, nil
	}
	return 0, fmt.Errorf("%w: empty link type reference", ErrInvalidArgument)
}

// linkTypeMemo name and description of a value, resolved on first use
type linkTypeMemo struct {
	once        sync.Once
	name        string
	description string
	hasName     bool
	hasDesc     bool
}

// LinkType a link-layer header type, see pcap-linktype(7). A LinkType is a
// small value that may be copied freely; copies share the lazily resolved
// name and description.
type LinkType struct {
	value int32
	memo  *linkTypeMemo
}

// NewLinkType make a LinkType from a name or a number. A name must resolve,
// or the error is an *UnsupportedLinkTypeError. Any number is accepted, even
// one the registry has no name for.
func NewLinkType(ref LinkTypeRef) (LinkType, error) {
	switch ref.kind {
	case refName:
		v, err := NameToValue(ref.name)
		if err != nil {
			return LinkType{}, &UnsupportedLinkTypeError{Input: ref.name}
		}
		return newLinkType(v), nil
	case refValue:
		return newLinkType(ref.value), nil
	}
	return LinkType{}, &UnsupportedLinkTypeError{Input: ref.String()}
}

// LinkTypeOf NewLinkType for any input RefOf accepts. Input of any other kind
// is an *UnsupportedLinkTypeError, as is a name that does not resolve.
func LinkTypeOf(v any) (LinkType, error) {
	ref, err := RefOf(v)
	if err != nil {
		return LinkType{}, &UnsupportedLinkTypeError{Input: fmt.Sprint(v)}
	}
	return NewLinkType(ref)
}

func newLinkType(v int32) LinkType {
	return LinkType{value: v, memo: &linkTypeMemo{}}
}

func (l LinkType) resolved() *linkTypeMemo {
	m := l.memo
	if m == nil {
		// zero value, or built by hand: resolve without caching
		m = &linkTypeMemo{}
	}
	m.once.Do(func() {
		if info, ok := linkTypesByValue[l.value]; ok {
			m.name, m.hasName = info.name, true
			m.description, m.hasDesc = info.description, true
		}
	})
	return m
}

// Value the numeric DLT_ value
func (l LinkType) Value() int32 {
	return l.value
}

// Name the canonical name, false if the registry has none for the value
func (l LinkType) Name() (string, bool) {
	m := l.resolved()
	return m.name, m.hasName
}

// Description a human readable description, false if the registry has none for the value
func (l LinkType) Description() (string, bool) {
	m := l.resolved()
	return m.description, m.hasDesc
}

func (l LinkType) String() string {
	if name, ok := l.Name(); ok {
		return name
	}
	return fmt.Sprintf("LinkType(%d)", l.value)
}

// Equal two link types are equal when their values are
func (l LinkType) Equal(o LinkType) bool {
	return l.value == o.value
}

// Matches compare against a name or a number. A name that does not resolve matches nothing.
func (l LinkType) Matches(ref LinkTypeRef) bool {
	v, err := ref.resolve()
	return err == nil && v == l.value
}

// Compare order by value, returning -1, 0 or +1
func (l LinkType) Compare(o LinkType) int {
	switch {
	case l.value < o.value:
		return -1
	case l.value > o.value:
		return 1
	}
	return 0
}

// Layers the gopacket link type, for decoding. gopacket only carries 8-bit link types.
func (l LinkType) Layers() (layers.LinkType, bool) {
	if l.value < 0 || l.value > math.MaxUint8 {
		return 0, false
	}
	return layers.LinkType(l.value), true
}

// LookupResult what a best-effort Lookup found
type LookupResult struct {
	Value    int32
	Name     string
	HasValue bool
	HasName  bool
}

// Lookup resolve a reference without failing when the registry does not know
// it; an empty result is returned instead. Only a zero reference is an error.
func Lookup(ref LinkTypeRef) (LookupResult, error) {
	var res LookupResult
	switch ref.kind {
	case refName:
		v, err := NameToValue(ref.name)
		if err != nil {
			return res, nil
		}
		res.Value, res.HasValue = v, true
	case refValue:
		res.Value, res.HasValue = ref.value, true
	default:
		return res, fmt.Errorf("%w: lookup takes a name or a number", ErrInvalidArgument)
	}
	if name, err := ValueToName(res.Value); err == nil {
		res.Name, res.HasName = name, true
	}
	return res, nil
}

// Describe the description of the link type a reference names
func Describe(ref LinkTypeRef) (string, error) {
	v, err := ref.resolve()
	if err != nil {
		return "", err
	}
	return ValueToDescription(v)
}

// LinkTypes every link type the registry names, in value order
func LinkTypes() []LinkType {
	out := make([]LinkType, 0, len(linkTypeTable))
	for _, info := range linkTypeTable {
		out = append(out, newLinkType(info.value))
	}
	return out
}
