package filter

import (
	"strings"
)

// composite implements Filter for a run of filters joined by the same operator
type composite struct {
	filters []Filter
	and     bool
}

// join add right to left, flattening runs of the same operator
func join(left, right Filter, and bool) Filter {
	if c, ok := left.(composite); ok && c.and == and {
		filters := make([]Filter, 0, len(c.filters)+1)
		filters = append(filters, c.filters...)
		return composite{filters: append(filters, right), and: and}
	}
	return composite{filters: []Filter{left, right}, and: and}
}

func (c composite) generate(g *generator, t, f label) error {
	// - if 'and', then a failure of any one is straight to fail
	// - if 'or', then a success of any one is straight to success
	for i, fl := range c.filters {
		if i == len(c.filters)-1 {
			return fl.generate(g, t, f)
		}
		next := g.newLabel()
		var err error
		if c.and {
			err = fl.generate(g, next, f)
		} else {
			err = fl.generate(g, t, next)
		}
		if err != nil {
			return err
		}
		g.mark(next)
	}
	return nil
}

func (c composite) Equal(o Filter) bool {
	if o == nil {
		return false
	}
	oc, ok := o.(composite)
	if !ok || c.and != oc.and || len(c.filters) != len(oc.filters) {
		return false
	}
	for i, fl := range c.filters {
		if !fl.Equal(oc.filters[i]) {
			return false
		}
	}
	return true
}

func (c composite) String() string {
	joiner := " or "
	if c.and {
		joiner = " and "
	}
	parts := make([]string, 0, len(c.filters))
	for _, fl := range c.filters {
		parts = append(parts, fl.String())
	}
	return "(" + strings.Join(parts, joiner) + ")"
}

// negation implements Filter by swapping the outcome of the filter it wraps
type negation struct {
	filter Filter
}

func (n negation) generate(g *generator, t, f label) error {
	return n.filter.generate(g, f, t)
}

func (n negation) Equal(o Filter) bool {
	on, ok := o.(negation)
	return ok && n.filter.Equal(on.filter)
}

func (n negation) String() string {
	return "not " + n.filter.String()
}
