package diplomacy

import "sort"

// Adjudication works by guessing: an unresolved order is assumed to
// fail, its answer is computed from the others, and the computation is
// repeated with the opposite guess when it turns out to have consulted
// the guess itself. Every cell touched while a guess is live goes on a
// dependency stack, so nothing is committed against an unverified
// guess. A cycle that holds up under both guesses is a ring of moves
// and succeeds; a cycle through a convoying fleet falls to the Szykman
// rule and the convoyed moves fail. Orders live in one dense slab and
// reference each other through province indices, so the cyclic support
// and convoy dependencies never form pointer cycles.

type resolutionState uint8

const (
	rsUnresolved resolutionState = iota
	rsGuessing
	rsResolved
)

// cell tracks the resolution of a single order in the dependency slab.
type cell struct {
	order    Order
	state    resolutionState
	ok       bool // true = order succeeds
	void     bool // order had no effect (self-move, inert convoy)
	noConvoy bool // convoy cancelled by the Szykman rule
	prov     int16
	dest     int16 // move destination, -1 otherwise
	aux      int16 // supported or convoyed unit's province, -1 otherwise
	auxDest  int16 // supported or convoyed destination, -1 otherwise
}

// Result is the outcome of adjudicating one movement phase.
type Result struct {
	Orders    []ResolvedOrder
	Dislodged []Dislodgement
	Standoffs []string // provinces left vacant by a standoff
}

// ResolveOrders validates, defaults, and adjudicates movement orders in
// one shot. Invalid orders become holds and report void.
func ResolveOrders(m *Map, s *State, orders []Order) Result {
	complete, void := m.ValidateAndDefault(s, orders)
	rv := NewResolver(m, len(complete))
	res := rv.Resolve(s, complete)
	res.Orders = append(res.Orders, void...)
	return res
}

// ApplyResult advances the state past movement: successful movers are
// repositioned, dislodged units leave the board into s.Dislodged, and
// standoff provinces are recorded for retreat validation.
func ApplyResult(m *Map, s *State, res Result) {
	type unitKey struct {
		power    Power
		province string
	}

	moved := make(map[unitKey]Order)
	for _, ro := range res.Orders {
		if ro.Order.Action == Move && ro.Outcome == OutcomeSucceeded {
			moved[unitKey{ro.Order.Power, ro.Order.Province}] = ro.Order
		}
	}
	gone := make(map[unitKey]bool, len(res.Dislodged))
	for _, d := range res.Dislodged {
		gone[unitKey{d.Unit.Power, d.Unit.Province}] = true
	}

	remaining := s.Units[:0]
	for _, u := range s.Units {
		key := unitKey{u.Power, u.Province}
		if gone[key] {
			continue
		}
		if o, ok := moved[key]; ok {
			u.Province = o.Target
			u.Coast = o.TargetCoast
			if u.Kind == Fleet && u.Coast == NoCoast && m.SplitCoast(u.Province) {
				if coasts := m.CoastsReachable(o.Province, o.Coast, o.Target); len(coasts) > 0 {
					u.Coast = coasts[0]
				}
			}
			if !m.SplitCoast(u.Province) {
				u.Coast = NoCoast
			}
		}
		remaining = append(remaining, u)
	}
	s.Units = remaining
	s.Dislodged = append([]Dislodgement(nil), res.Dislodged...)
	s.Standoffs = append([]string(nil), res.Standoffs...)
}

// Resolver is a reusable adjudicator that recycles its slab between
// calls. The slices in the returned Result are owned by the Resolver
// and overwritten on the next Resolve.
type Resolver struct {
	m      *Map
	s      *State
	lookup [NumProvinces]int16
	cells  []cell
	deps   []int16 // cells resolved under a live guess, in consult order

	resBuf []ResolvedOrder
	disBuf []Dislodgement
	stoBuf []string
}

// NewResolver creates a resolver sized for the expected number of
// orders per phase (34 covers a full standard board).
func NewResolver(m *Map, capacity int) *Resolver {
	rv := &Resolver{
		m:      m,
		cells:  make([]cell, 0, capacity),
		deps:   make([]int16, 0, 8),
		resBuf: make([]ResolvedOrder, 0, capacity),
		disBuf: make([]Dislodgement, 0, 4),
		stoBuf: make([]string, 0, 2),
	}
	for i := range rv.lookup {
		rv.lookup[i] = -1
	}
	return rv
}

// Resolve adjudicates a complete set of movement orders. Every unit is
// expected to have exactly one order; use ValidateAndDefault first.
func (rv *Resolver) Resolve(s *State, orders []Order) Result {
	rv.reset(s, orders)
	for i := range rv.cells {
		rv.adjudicate(int16(i))
	}
	return rv.buildResult()
}

func (rv *Resolver) reset(s *State, orders []Order) {
	rv.s = s
	rv.deps = rv.deps[:0]
	if cap(rv.cells) >= len(orders) {
		rv.cells = rv.cells[:len(orders)]
	} else {
		rv.cells = make([]cell, len(orders))
	}
	for i := range rv.lookup {
		rv.lookup[i] = -1
	}
	for i, o := range orders {
		c := cell{
			order:   o,
			prov:    int16(rv.m.Index(o.Province)),
			dest:    -1,
			aux:     -1,
			auxDest: -1,
		}
		switch o.Action {
		case Move:
			c.dest = int16(rv.m.Index(o.Target))
			if c.dest == c.prov {
				// moves to the own province have no effect
				c.order.Action = Hold
				c.void = true
				c.dest = -1
			}
		case SupportHold:
			c.aux = int16(rv.m.Index(o.AuxProvince))
		case SupportMove, ConvoyOrder:
			c.aux = int16(rv.m.Index(o.AuxProvince))
			c.auxDest = int16(rv.m.Index(o.Target))
		}
		rv.cells[i] = c
		if c.prov >= 0 {
			rv.lookup[c.prov] = int16(i)
		}
	}
}

func (rv *Resolver) cellAt(prov int16) *cell {
	if prov < 0 {
		return nil
	}
	i := rv.lookup[prov]
	if i < 0 {
		return nil
	}
	return &rv.cells[i]
}

// adjudicate resolves the order at slab index i. A fresh cell guesses
// failure, computes the answer, and commits it when no live guess was
// consulted along the way. When the computation comes back around to
// the cell itself it roots a cycle: every dependent is unwound, the
// opposite guess is tried, and a cycle that gives two different
// answers is settled by breakCycle.
func (rv *Resolver) adjudicate(i int16) bool {
	c := &rv.cells[i]
	switch c.state {
	case rsResolved:
		return c.ok
	case rsGuessing:
		rv.deps = append(rv.deps, i)
		return c.ok
	}

	base := len(rv.deps)
	c.state = rsGuessing
	c.ok = false
	first := rv.resolveCell(i)

	if len(rv.deps) == base {
		// No guess consulted, so the answer is final. A nested cycle
		// may already have settled this cell by rule.
		if c.state != rsResolved {
			c.state = rsResolved
			c.ok = first
		}
		return first
	}

	if rv.deps[base] != i {
		// Caught in a cycle rooted further up the stack. Report the
		// computed answer and leave the commit to the root.
		rv.deps = append(rv.deps, i)
		c.ok = first
		return first
	}

	// This cell roots the cycle. Unwind the dependents and retry with
	// the opposite guess.
	rv.clearDeps(base)
	c.state = rsGuessing
	c.ok = true
	second := rv.resolveCell(i)

	if first == second {
		// The cycle settles on one answer regardless of the guess.
		rv.clearDeps(base)
		c.state = rsResolved
		c.ok = first
		return first
	}

	rv.breakCycle(base)
	return rv.adjudicate(i)
}

// clearDeps unwinds every cell resolved under a guess back to
// unresolved and truncates the dependency stack.
func (rv *Resolver) clearDeps(base int) {
	for _, d := range rv.deps[base:] {
		rv.cells[d].state = rsUnresolved
	}
	rv.deps = rv.deps[:base]
}

// breakCycle settles a dependency cycle that guessing alone cannot. A
// cycle with no convoying fleet in it is a ring of moves following one
// another and every move succeeds. A cycle through a convoying fleet
// is a convoy paradox: the convoyed moves fail and stop counting as
// seaborne attacks (the Szykman rule), after which the remaining
// orders resolve normally.
func (rv *Resolver) breakCycle(base int) {
	cycle := rv.deps[base:]
	paradox := false
	for _, d := range cycle {
		if rv.cells[d].order.Action == ConvoyOrder {
			paradox = true
			break
		}
	}

	settled := false
	for _, d := range cycle {
		c := &rv.cells[d]
		c.state = rsUnresolved
		switch {
		case !paradox && c.order.Action == Move:
			c.state = rsResolved
			c.ok = true
			settled = true
		case paradox && c.order.Action == ConvoyOrder:
			if mv := rv.cellAt(c.aux); mv != nil && mv.order.Action == Move && mv.dest == c.auxDest {
				mv.noConvoy = true
				mv.state = rsResolved
				mv.ok = false
				settled = true
			}
		case paradox && c.order.Action == Move && (rv.needsConvoy(c) || rv.hasConvoyOrders(c)):
			c.noConvoy = true
			c.state = rsResolved
			c.ok = false
			settled = true
		}
	}
	if !settled {
		// Refuse to spin on a cycle the rules do not name.
		head := &rv.cells[rv.deps[base]]
		head.state = rsResolved
		head.ok = false
	}
	rv.deps = rv.deps[:base]
}

func (rv *Resolver) resolveCell(i int16) bool {
	switch rv.cells[i].order.Action {
	case Hold:
		return true
	case Move:
		return rv.resolveMove(i)
	case SupportHold, SupportMove:
		return rv.resolveSupport(i)
	case ConvoyOrder:
		return rv.resolveConvoy(i)
	default:
		return false
	}
}

func (rv *Resolver) resolveMove(i int16) bool {
	c := &rv.cells[i]

	if rv.needsConvoy(c) && !rv.hasConvoyPath(c) {
		return false
	}

	attack := rv.attackStrength(i)
	if attack <= rv.holdStrength(c.dest) {
		return false
	}

	// Two units moving into each other fight head to head unless one of
	// them travels by convoy.
	if def := rv.cellAt(c.dest); def != nil && def.order.Action == Move && def.dest == c.prov {
		if !rv.movesByConvoy(i) && !rv.movesByConvoy(rv.lookup[c.dest]) {
			if attack <= rv.attackStrength(rv.lookup[c.dest]) {
				return false
			}
		}
	}

	// The attack must beat every rival move on the same destination.
	for j := range rv.cells {
		other := &rv.cells[j]
		if int16(j) == i || other.order.Action != Move || other.dest != c.dest {
			continue
		}
		if attack <= rv.preventStrength(int16(j)) {
			return false
		}
	}
	return true
}

func (rv *Resolver) resolveSupport(i int16) bool {
	c := &rv.cells[i]
	for j := range rv.cells {
		other := &rv.cells[j]
		if other.order.Action != Move || other.dest != c.prov {
			continue
		}
		// An attack out of the province the support is aimed at cuts
		// only by dislodging the supporter.
		if c.auxDest >= 0 && other.prov == c.auxDest {
			if rv.adjudicate(int16(j)) {
				return false
			}
			continue
		}
		// A power cannot cut its own support.
		if other.order.Power == c.order.Power {
			continue
		}
		// A convoyed attack cuts only if its convoy chain holds up.
		if rv.needsConvoy(other) && !rv.hasConvoyPath(other) {
			continue
		}
		return false
	}
	return true
}

// resolveConvoy reports whether the convoying fleet keeps its station,
// that is, no attack on it succeeds.
func (rv *Resolver) resolveConvoy(i int16) bool {
	c := &rv.cells[i]
	for j := range rv.cells {
		other := &rv.cells[j]
		if other.order.Action == Move && other.dest == c.prov {
			if rv.adjudicate(int16(j)) {
				return false
			}
		}
	}
	return true
}

// attackStrength is the strength of a move measured against its
// destination. Moves against a province still held by an own unit
// count zero, and no support helps an attack against a unit of the
// supporter's own power.
func (rv *Resolver) attackStrength(i int16) int {
	c := &rv.cells[i]
	if c.order.Action != Move {
		return 0
	}

	occupier := rv.s.UnitAt(c.order.Target)
	occupierStays := occupier != nil
	if occupier != nil {
		if oc := rv.cellAt(c.dest); oc != nil && oc.order.Action == Move {
			// A head-to-head defender counts as staying. A defender moving
			// back by convoy is an ordinary vacate, not a head-to-head.
			headToHead := oc.dest == c.prov &&
				!rv.movesByConvoy(i) && !rv.movesByConvoy(rv.lookup[c.dest])
			if !headToHead {
				occupierStays = !rv.adjudicate(rv.lookup[c.dest])
			}
		}
		if occupier.Power == c.order.Power && occupierStays {
			return 0
		}
	}

	strength := 1
	for j := range rv.cells {
		sup := &rv.cells[j]
		if sup.order.Action != SupportMove || sup.aux != c.prov || sup.auxDest != c.dest {
			continue
		}
		if occupierStays && occupier.Power == sup.order.Power {
			continue
		}
		if rv.adjudicate(int16(j)) {
			strength++
		}
	}
	return strength
}

// holdStrength is the strength with which a province is defended: zero
// when empty or vacated, one plus support-holds otherwise. A unit whose
// move failed defends with strength one and keeps no hold support.
func (rv *Resolver) holdStrength(prov int16) int {
	c := rv.cellAt(prov)
	if c == nil {
		if prov >= 0 && rv.s.UnitAt(rv.m.Code(int(prov))) != nil {
			return 1
		}
		return 0
	}

	if c.order.Action == Move {
		if rv.adjudicate(rv.lookup[prov]) {
			return 0
		}
		return 1
	}

	strength := 1
	for j := range rv.cells {
		sup := &rv.cells[j]
		if sup.order.Action != SupportHold || sup.aux != prov {
			continue
		}
		if rv.adjudicate(int16(j)) {
			strength++
		}
	}
	return strength
}

// preventStrength is the strength with which a move contests its
// destination against rival movers. A head-to-head loser prevents
// nothing.
func (rv *Resolver) preventStrength(i int16) int {
	c := &rv.cells[i]
	if c.order.Action != Move {
		return 0
	}

	if def := rv.cellAt(c.dest); def != nil && def.order.Action == Move && def.dest == c.prov {
		if !rv.movesByConvoy(i) && !rv.movesByConvoy(rv.lookup[c.dest]) {
			if !rv.adjudicate(i) {
				return 0
			}
		}
	}

	strength := 1
	for j := range rv.cells {
		sup := &rv.cells[j]
		if sup.order.Action != SupportMove || sup.aux != c.prov || sup.auxDest != c.dest {
			continue
		}
		if rv.adjudicate(int16(j)) {
			strength++
		}
	}
	return strength
}

// needsConvoy reports whether the move cannot go overland.
func (rv *Resolver) needsConvoy(c *cell) bool {
	if c.order.Action != Move || c.order.Kind != Army {
		return false
	}
	return !rv.m.CanTravel(Army, c.order.Province, NoCoast, c.order.Target, NoCoast)
}

// movesByConvoy reports whether the move actually travels by sea: either
// it has no overland route, or fleets are ordered to carry it and the
// chain holds.
func (rv *Resolver) movesByConvoy(i int16) bool {
	if i < 0 {
		return false
	}
	c := &rv.cells[i]
	if c.order.Action != Move || c.order.Kind != Army {
		return false
	}
	if !rv.needsConvoy(c) && !rv.hasConvoyOrders(c) {
		return false
	}
	return rv.hasConvoyPath(c)
}

func (rv *Resolver) hasConvoyOrders(c *cell) bool {
	for j := range rv.cells {
		cv := &rv.cells[j]
		if cv.order.Action == ConvoyOrder && cv.aux == c.prov && cv.auxDest == c.dest {
			return true
		}
	}
	return false
}

// hasConvoyPath searches for a chain of surviving convoy orders from the
// army's province to its destination.
func (rv *Resolver) hasConvoyPath(c *cell) bool {
	if c.noConvoy {
		return false
	}

	var visited [NumProvinces]bool
	var queue []int16

	admit := func(from string) {
		for j := range rv.cells {
			cv := &rv.cells[j]
			if cv.order.Action != ConvoyOrder || cv.aux != c.prov || cv.auxDest != c.dest {
				continue
			}
			if cv.prov < 0 || visited[cv.prov] {
				continue
			}
			if p, ok := rv.m.Provinces[cv.order.Province]; !ok || p.Kind != Sea {
				continue
			}
			if !rv.m.CanTravel(Fleet, from, NoCoast, cv.order.Province, NoCoast) {
				continue
			}
			if rv.adjudicate(int16(j)) {
				visited[cv.prov] = true
				queue = append(queue, int16(j))
			}
		}
	}

	admit(c.order.Province)
	for len(queue) > 0 {
		cur := &rv.cells[queue[0]]
		queue = queue[1:]
		if rv.m.CanTravel(Fleet, cur.order.Province, NoCoast, c.order.Target, NoCoast) {
			return true
		}
		admit(cur.order.Province)
	}
	return false
}

func (rv *Resolver) buildResult() Result {
	rv.resBuf = rv.resBuf[:0]
	rv.disBuf = rv.disBuf[:0]
	rv.stoBuf = rv.stoBuf[:0]

	// successful movers by destination, for dislodgement bookkeeping
	entered := make(map[int16]int16)
	for i := range rv.cells {
		c := &rv.cells[i]
		if c.order.Action == Move && c.ok {
			entered[c.dest] = int16(i)
		}
	}

	for i := range rv.cells {
		c := &rv.cells[i]
		o := c.order

		outcome := OutcomeSucceeded
		switch {
		case c.void:
			outcome = OutcomeVoid
		case !c.ok:
			outcome = OutcomeFailed
		}
		switch o.Action {
		case SupportHold, SupportMove:
			if !rv.supportMatchesOrder(c) {
				outcome = OutcomeVoid
			} else if o.Action == SupportMove && rv.supportAidsOwnPower(c) {
				outcome = OutcomeVoid
			}
		case ConvoyOrder:
			if !rv.convoyHasMatchingMove(c) {
				outcome = OutcomeVoid
			}
		}

		if attacker, ok := entered[c.prov]; ok {
			if o.Action != Move || !c.ok {
				outcome = OutcomeDislodged
				rv.disBuf = append(rv.disBuf, Dislodgement{
					Unit: Unit{
						Kind:     o.Kind,
						Power:    o.Power,
						Province: o.Province,
						Coast:    o.Coast,
					},
					AttackerOrigin: rv.cells[attacker].order.Province,
				})
			}
		}

		rv.resBuf = append(rv.resBuf, ResolvedOrder{Order: o, Outcome: outcome})
	}

	rv.collectStandoffs(entered)
	return Result{Orders: rv.resBuf, Dislodged: rv.disBuf, Standoffs: rv.stoBuf}
}

// supportMatchesOrder reports whether the supported unit actually gave
// the order the support names. Hold support on a unit ordered to move,
// and move support the unit never attempted, count for nothing.
func (rv *Resolver) supportMatchesOrder(c *cell) bool {
	aux := rv.cellAt(c.aux)
	if c.order.Action == SupportHold {
		return aux == nil || aux.order.Action != Move
	}
	return aux != nil && aux.order.Action == Move && aux.dest == c.auxDest
}

// supportAidsOwnPower reports whether the supported attack targets a
// province still held by a unit of the supporter's own power. Such
// support is never counted.
func (rv *Resolver) supportAidsOwnPower(c *cell) bool {
	occupier := rv.s.UnitAt(c.order.Target)
	if occupier == nil || occupier.Power != c.order.Power {
		return false
	}
	if oc := rv.cellAt(c.auxDest); oc != nil && oc.order.Action == Move && oc.ok {
		return false
	}
	return true
}

func (rv *Resolver) convoyHasMatchingMove(c *cell) bool {
	if mv := rv.cellAt(c.aux); mv != nil {
		return mv.order.Action == Move && mv.dest == c.auxDest
	}
	return false
}

// collectStandoffs records provinces that ended the phase empty after
// two or more movers stood each other off. Retreats may not target them.
func (rv *Resolver) collectStandoffs(entered map[int16]int16) {
	contested := make(map[int16]int)
	for i := range rv.cells {
		c := &rv.cells[i]
		if c.order.Action != Move || c.ok || c.dest < 0 {
			continue
		}
		if rv.needsConvoy(c) && !rv.hasConvoyPath(c) {
			continue // never reached the destination
		}
		contested[c.dest]++
	}

	for dest, movers := range contested {
		if movers < 2 {
			continue
		}
		if _, taken := entered[dest]; taken {
			continue
		}
		code := rv.m.Code(int(dest))
		if oc := rv.cellAt(dest); oc != nil {
			if oc.order.Action != Move || !oc.ok {
				continue // still occupied
			}
		} else if rv.s.UnitAt(code) != nil {
			continue
		}
		rv.stoBuf = append(rv.stoBuf, code)
	}
	sort.Strings(rv.stoBuf)
}

// HasDislodged reports whether the last Resolve produced dislodgements.
func (rv *Resolver) HasDislodged() bool {
	return len(rv.disBuf) > 0
}
