package diplomacy

import (
	"fmt"
	"strings"
)

// ParseError reports one order fragment that could not be parsed. The
// rest of the submission is unaffected.
type ParseError struct {
	Fragment string
	Reason   string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Fragment, e.Reason)
}

// ParseOrders splits a textual submission into orders and parses each
// one. A submission may carry many orders separated by newlines, commas
// or semicolons, or simply concatenated; new orders are detected at the
// keywords BUILD and DESTROY and at unit references (A or F followed by
// a province). Support and convoy orders contain embedded unit
// references, so the parser consumes greedily through each order's
// terminal token before looking for the next.
//
// The phase disambiguates the dash form (movement vs retreat). Legality
// against the game snapshot is checked separately by ValidateOrder;
// here only the map's province codes are consulted.
func (m *Map) ParseOrders(text string, power Power, phase PhaseKind) ([]Order, []ParseError) {
	toks := tokenizeOrders(text)
	var (
		orders []Order
		errs   []ParseError
	)
	c := &cursor{m: m, toks: toks}
	for !c.done() {
		if c.peek() == ";" {
			c.next()
			continue
		}
		start := c.i
		o, err := c.parseOrder(power, phase)
		if err != nil {
			c.skipToOrderStart(start)
			errs = append(errs, ParseError{
				Fragment: strings.Join(toks[start:c.i], " "),
				Reason:   err.Error(),
			})
			continue
		}
		orders = append(orders, o)
	}
	return orders, errs
}

// tokenizeOrders lowercases the input and splits it into tokens.
// Commas, semicolons and newlines become the hard separator ";".
// "->" collapses to "-" and "spa(sc)" is normalized to "spa/sc".
func tokenizeOrders(text string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '/':
			cur.WriteRune(r)
		case r == '(':
			cur.WriteByte('/')
		case r == '-':
			flush()
			toks = append(toks, "-")
		case r == ',' || r == ';' || r == '\n':
			flush()
			if n := len(toks); n == 0 || toks[n-1] != ";" {
				toks = append(toks, ";")
			}
		default:
			// spaces, ')', '>', '.', and any other punctuation
			flush()
		}
	}
	flush()
	return toks
}

type cursor struct {
	m    *Map
	toks []string
	i    int
}

func (c *cursor) done() bool { return c.i >= len(c.toks) }

func (c *cursor) peek() string {
	if c.done() {
		return ""
	}
	return c.toks[c.i]
}

func (c *cursor) next() string {
	t := c.peek()
	if !c.done() {
		c.i++
	}
	return t
}

// skipToOrderStart advances past a failed fragment. It guarantees
// progress beyond from, then stops at the next separator or token that
// can begin an order.
func (c *cursor) skipToOrderStart(from int) {
	if c.i <= from {
		c.i = from + 1
	}
	for !c.done() {
		if c.peek() == ";" || c.atOrderStart() {
			return
		}
		c.i++
	}
}

func (c *cursor) atOrderStart() bool {
	switch c.peek() {
	case "build", "destroy", "remove":
		return true
	}
	if _, ok := parseKind(c.peek()); !ok {
		return false
	}
	if c.i+1 >= len(c.toks) {
		return false
	}
	_, _, err := c.m.parseLocation(c.toks[c.i+1])
	return err == nil
}

func parseKind(tok string) (UnitKind, bool) {
	switch tok {
	case "a", "army":
		return Army, true
	case "f", "fleet":
		return Fleet, true
	}
	return Army, false
}

func (m *Map) parseLocation(tok string) (string, Coast, error) {
	code, suffix, split := strings.Cut(tok, "/")
	if m.Index(code) < 0 {
		return "", NoCoast, fmt.Errorf("unknown province %q", code)
	}
	if !split {
		return code, NoCoast, nil
	}
	var coast Coast
	switch suffix {
	case "nc":
		coast = NorthCoast
	case "sc":
		coast = SouthCoast
	case "ec":
		coast = EastCoast
	case "wc":
		coast = WestCoast
	default:
		return "", NoCoast, fmt.Errorf("unknown coast %q", suffix)
	}
	found := false
	for _, cc := range m.Coasts(code) {
		if cc == coast {
			found = true
		}
	}
	if !found {
		return "", NoCoast, fmt.Errorf("%s has no %s coast", code, coast)
	}
	return code, coast, nil
}

func (c *cursor) parseOrder(power Power, phase PhaseKind) (Order, error) {
	switch c.peek() {
	case "build":
		c.next()
		return c.parseBuild(power)
	case "destroy", "remove":
		c.next()
		return c.parseDestroy(power)
	}
	return c.parseUnitOrder(power, phase)
}

func (c *cursor) parseBuild(power Power) (Order, error) {
	kind, ok := parseKind(c.peek())
	if !ok {
		return Order{}, fmt.Errorf("expected A or F after BUILD, got %q", c.peek())
	}
	c.next()
	prov, coast, err := c.expectLocation("build location")
	if err != nil {
		return Order{}, err
	}
	if kind == Army {
		coast = NoCoast
	}
	return Order{Power: power, Kind: kind, Province: prov, Coast: coast, Action: Build}, nil
}

// parseDestroy accepts DESTROY with or without a unit kind; the kind is
// recovered from the board during validation when omitted.
func (c *cursor) parseDestroy(power Power) (Order, error) {
	kind := Army
	if k, ok := parseKind(c.peek()); ok {
		kind = k
		c.next()
	}
	prov, _, err := c.expectLocation("destroy location")
	if err != nil {
		return Order{}, err
	}
	return Order{Power: power, Kind: kind, Province: prov, Action: Disband}, nil
}

func (c *cursor) parseUnitOrder(power Power, phase PhaseKind) (Order, error) {
	kind, ok := parseKind(c.peek())
	if !ok {
		return Order{}, fmt.Errorf("expected order, got %q", c.peek())
	}
	c.next()
	prov, coast, err := c.expectLocation("unit location")
	if err != nil {
		return Order{}, err
	}
	if kind == Army {
		coast = NoCoast
	}
	o := Order{Power: power, Kind: kind, Province: prov, Coast: coast}

	switch c.peek() {
	case "", ";":
		// bare unit reference holds
		o.Action = Hold
		return o, nil
	case "h", "hold", "holds":
		c.next()
		o.Action = Hold
		return o, nil
	case "d", "disband", "disbands":
		c.next()
		o.Action = Disband
		return o, nil
	case "-":
		c.next()
		dest, destCoast, err := c.expectLocation("destination")
		if err != nil {
			return Order{}, err
		}
		if kind == Army {
			destCoast = NoCoast
		}
		o.Action = Move
		if phase == PhaseRetreat {
			o.Action = Retreat
		}
		o.Target = dest
		o.TargetCoast = destCoast
		return o, nil
	case "s", "support", "supports":
		c.next()
		return c.parseSupport(o)
	case "c", "convoy", "convoys":
		c.next()
		return c.parseConvoy(o)
	}
	if c.atOrderStart() {
		// next order begins; this unit holds
		o.Action = Hold
		return o, nil
	}
	return Order{}, fmt.Errorf("expected order for %s %s, got %q", o.Kind.Letter(), prov, c.peek())
}

func (c *cursor) parseSupport(o Order) (Order, error) {
	auxKind, ok := parseKind(c.peek())
	if !ok {
		return Order{}, fmt.Errorf("expected supported unit, got %q", c.peek())
	}
	c.next()
	auxProv, _, err := c.expectLocation("supported unit location")
	if err != nil {
		return Order{}, err
	}
	o.AuxKind = auxKind
	o.AuxProvince = auxProv

	switch c.peek() {
	case "h", "hold", "holds":
		c.next()
		o.Action = SupportHold
		return o, nil
	case "-":
		c.next()
		dest, _, err := c.expectLocation("supported destination")
		if err != nil {
			return Order{}, err
		}
		o.Action = SupportMove
		o.Target = dest
		return o, nil
	}
	o.Action = SupportHold
	return o, nil
}

func (c *cursor) parseConvoy(o Order) (Order, error) {
	if k, ok := parseKind(c.peek()); ok {
		if k != Army {
			return Order{}, fmt.Errorf("only armies are convoyed")
		}
		c.next()
	}
	auxProv, _, err := c.expectLocation("convoyed army location")
	if err != nil {
		return Order{}, err
	}
	if c.next() != "-" {
		return Order{}, fmt.Errorf("expected - after convoyed army")
	}
	dest, _, err := c.expectLocation("convoy destination")
	if err != nil {
		return Order{}, err
	}
	o.Action = ConvoyOrder
	o.AuxKind = Army
	o.AuxProvince = auxProv
	o.Target = dest
	return o, nil
}

func (c *cursor) expectLocation(what string) (string, Coast, error) {
	tok := c.peek()
	if tok == "" || tok == ";" || tok == "-" {
		return "", NoCoast, fmt.Errorf("expected %s", what)
	}
	prov, coast, err := c.m.parseLocation(tok)
	if err != nil {
		return "", NoCoast, err
	}
	c.next()
	return prov, coast, nil
}
