package diplomacy

import "fmt"

// RejectKind classifies why an order was rejected. API layers map these
// to user-facing responses; the engine never panics on bad orders.
type RejectKind int

const (
	RejectSyntax RejectKind = iota
	RejectUnknownProvince
	RejectNoSuchUnit
	RejectForeignUnit
	RejectWrongPhase
	RejectNotAdjacent
	RejectBadCoast
	RejectBadSupport
	RejectBadConvoy
	RejectBadBuild
	RejectBadDisband
	RejectBadRetreat
)

func (k RejectKind) String() string {
	switch k {
	case RejectSyntax:
		return "syntax"
	case RejectUnknownProvince:
		return "unknown_province"
	case RejectNoSuchUnit:
		return "no_such_unit"
	case RejectForeignUnit:
		return "foreign_unit"
	case RejectWrongPhase:
		return "wrong_phase"
	case RejectNotAdjacent:
		return "not_adjacent"
	case RejectBadCoast:
		return "bad_coast"
	case RejectBadSupport:
		return "bad_support"
	case RejectBadConvoy:
		return "bad_convoy"
	case RejectBadBuild:
		return "bad_build"
	case RejectBadDisband:
		return "bad_disband"
	case RejectBadRetreat:
		return "bad_retreat"
	default:
		return "unknown"
	}
}

// OrderError describes why an order is invalid.
type OrderError struct {
	Kind   RejectKind
	Order  Order
	Reason string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("invalid order %s: %s (%s)", e.Order.Text(), e.Reason, e.Kind)
}

func reject(kind RejectKind, o Order, format string, args ...any) error {
	return &OrderError{Kind: kind, Order: o, Reason: fmt.Sprintf(format, args...)}
}

// ValidateOrder checks whether an order is legal for the given phase and
// game state. Returns nil if valid, or an *OrderError.
//
// The order is normalized in place against the board: a unit's coast is
// taken from the board rather than the submission, and a disband written
// as DESTROY without a unit kind gets the kind of the unit found there.
func (m *Map) ValidateOrder(s *State, phase PhaseKind, o *Order) error {
	if !phaseAllows(phase, o.Action) {
		return reject(RejectWrongPhase, *o, "%s order not allowed in %s phase", o.Action, phase)
	}

	switch o.Action {
	case Build:
		return m.validateBuild(s, o)
	case Disband:
		if phase == PhaseRetreat {
			return m.validateRetreatPhaseUnit(s, o)
		}
		return m.validateDestroy(s, o)
	case Retreat:
		return m.validateRetreat(s, o)
	}

	unit := s.UnitAt(o.Province)
	if unit == nil {
		return reject(RejectNoSuchUnit, *o, "no unit at %s", o.Province)
	}
	if unit.Power != o.Power {
		return reject(RejectForeignUnit, *o, "unit at %s belongs to %s", o.Province, unit.Power)
	}
	if unit.Kind != o.Kind {
		return reject(RejectNoSuchUnit, *o, "unit at %s is a %s, not a %s", o.Province, unit.Kind, o.Kind)
	}
	o.Coast = unit.Coast

	switch o.Action {
	case Hold:
		return nil
	case Move:
		return m.validateMove(s, o)
	case SupportHold, SupportMove:
		return m.validateSupport(s, o)
	case ConvoyOrder:
		return m.validateConvoy(s, o)
	default:
		return reject(RejectSyntax, *o, "unknown action")
	}
}

func phaseAllows(phase PhaseKind, a Action) bool {
	switch phase {
	case PhaseMovement:
		return a == Hold || a == Move || a == SupportHold || a == SupportMove || a == ConvoyOrder
	case PhaseRetreat:
		return a == Retreat || a == Disband
	case PhaseAdjustment:
		return a == Build || a == Disband
	}
	return false
}

func (m *Map) validateMove(s *State, o *Order) error {
	target, ok := m.Provinces[o.Target]
	if !ok {
		return reject(RejectUnknownProvince, *o, "unknown province %s", o.Target)
	}
	if o.Target == o.Province {
		return reject(RejectNotAdjacent, *o, "cannot move to its own province")
	}
	if o.Kind == Fleet && target.Kind == Inland {
		return reject(RejectNotAdjacent, *o, "fleet cannot enter inland %s", o.Target)
	}
	if o.Kind == Army && target.Kind == Sea {
		return reject(RejectNotAdjacent, *o, "army cannot enter sea %s", o.Target)
	}

	if m.CanTravel(o.Kind, o.Province, o.Coast, o.Target, o.TargetCoast) {
		if o.Kind == Fleet && m.SplitCoast(o.Target) {
			return m.validateFleetCoast(o)
		}
		return nil
	}

	// An army may still reach a non-adjacent coastal province if fleets
	// are positioned to convoy it.
	if o.Kind == Army && m.convoyPlausible(s, o.Province, o.Target) {
		return nil
	}
	return reject(RejectNotAdjacent, *o, "cannot move from %s to %s", o.Province, o.Target)
}

// validateFleetCoast resolves coast choice for a fleet entering a
// split-coast province. An unspecified coast is accepted only when a
// single coast is reachable.
func (m *Map) validateFleetCoast(o *Order) error {
	coasts := m.CoastsReachable(o.Province, o.Coast, o.Target)
	if o.TargetCoast == NoCoast {
		switch len(coasts) {
		case 0:
			return reject(RejectBadCoast, *o, "fleet cannot reach any coast of %s", o.Target)
		case 1:
			o.TargetCoast = coasts[0]
			return nil
		default:
			return reject(RejectBadCoast, *o, "must specify a coast of %s", o.Target)
		}
	}
	for _, c := range coasts {
		if c == o.TargetCoast {
			return nil
		}
	}
	return reject(RejectBadCoast, *o, "fleet cannot reach %s/%s from %s", o.Target, o.TargetCoast, o.Province)
}

func (m *Map) validateSupport(s *State, o *Order) error {
	supported := s.UnitAt(o.AuxProvince)
	if supported == nil {
		return reject(RejectBadSupport, *o, "no unit at %s to support", o.AuxProvince)
	}
	o.AuxKind = supported.Kind

	if o.Action == SupportHold {
		if !m.CanTravel(o.Kind, o.Province, o.Coast, o.AuxProvince, NoCoast) {
			return reject(RejectBadSupport, *o, "cannot support hold at %s from %s", o.AuxProvince, o.Province)
		}
		return nil
	}

	// The supporter must itself be able to move to the destination; the
	// supported unit reaches it directly or by convoy.
	if !m.CanTravel(o.Kind, o.Province, o.Coast, o.Target, NoCoast) {
		return reject(RejectBadSupport, *o, "cannot support a move to %s from %s", o.Target, o.Province)
	}
	if m.CanTravel(supported.Kind, o.AuxProvince, supported.Coast, o.Target, NoCoast) {
		return nil
	}
	if supported.Kind == Army && m.convoyPlausible(s, o.AuxProvince, o.Target) {
		return nil
	}
	return reject(RejectBadSupport, *o, "supported unit at %s cannot reach %s", o.AuxProvince, o.Target)
}

func (m *Map) validateConvoy(s *State, o *Order) error {
	if o.Kind != Fleet {
		return reject(RejectBadConvoy, *o, "only fleets convoy")
	}
	if p, ok := m.Provinces[o.Province]; !ok || p.Kind != Sea {
		return reject(RejectBadConvoy, *o, "convoying fleet must be at sea")
	}
	convoyed := s.UnitAt(o.AuxProvince)
	if convoyed == nil {
		return reject(RejectBadConvoy, *o, "no unit at %s to convoy", o.AuxProvince)
	}
	if convoyed.Kind != Army {
		return reject(RejectBadConvoy, *o, "only armies are convoyed")
	}
	target, ok := m.Provinces[o.Target]
	if !ok {
		return reject(RejectUnknownProvince, *o, "unknown province %s", o.Target)
	}
	if target.Kind != Coastal {
		return reject(RejectBadConvoy, *o, "convoy destination %s is not coastal", o.Target)
	}
	return nil
}

func (m *Map) validateBuild(s *State, o *Order) error {
	p, ok := m.Provinces[o.Province]
	if !ok {
		return reject(RejectUnknownProvince, *o, "unknown province %s", o.Province)
	}
	if p.HomeOf != o.Power {
		return reject(RejectBadBuild, *o, "%s is not a home center of %s", o.Province, o.Power)
	}
	if s.SupplyCenters[o.Province] != o.Power {
		return reject(RejectBadBuild, *o, "%s does not control %s", o.Power, o.Province)
	}
	if s.UnitAt(o.Province) != nil {
		return reject(RejectBadBuild, *o, "%s is occupied", o.Province)
	}
	if s.CenterCount(o.Power)-s.UnitCount(o.Power) <= 0 {
		return reject(RejectBadBuild, *o, "%s has no builds available", o.Power)
	}
	if o.Kind == Fleet {
		if p.Kind == Inland {
			return reject(RejectBadBuild, *o, "cannot build a fleet inland at %s", o.Province)
		}
		if m.SplitCoast(o.Province) && o.Coast == NoCoast {
			return reject(RejectBadCoast, *o, "must specify a coast of %s", o.Province)
		}
	}
	return nil
}

func (m *Map) validateDestroy(s *State, o *Order) error {
	unit := s.UnitAt(o.Province)
	if unit == nil {
		return reject(RejectNoSuchUnit, *o, "no unit at %s", o.Province)
	}
	if unit.Power != o.Power {
		return reject(RejectForeignUnit, *o, "unit at %s belongs to %s", o.Province, unit.Power)
	}
	if s.CenterCount(o.Power)-s.UnitCount(o.Power) >= 0 {
		return reject(RejectBadDisband, *o, "%s has no disbands required", o.Power)
	}
	o.Kind = unit.Kind
	o.Coast = unit.Coast
	return nil
}

// validateRetreatPhaseUnit covers disbands during the retreat phase,
// which target the dislodged unit rather than the board occupant.
func (m *Map) validateRetreatPhaseUnit(s *State, o *Order) error {
	d := s.DislodgedAt(o.Province)
	if d == nil {
		return reject(RejectBadRetreat, *o, "no dislodged unit at %s", o.Province)
	}
	if d.Unit.Power != o.Power {
		return reject(RejectForeignUnit, *o, "dislodged unit at %s belongs to %s", o.Province, d.Unit.Power)
	}
	o.Kind = d.Unit.Kind
	o.Coast = d.Unit.Coast
	return nil
}

func (m *Map) validateRetreat(s *State, o *Order) error {
	d := s.DislodgedAt(o.Province)
	if d == nil {
		return reject(RejectBadRetreat, *o, "no dislodged unit at %s", o.Province)
	}
	if d.Unit.Power != o.Power {
		return reject(RejectForeignUnit, *o, "dislodged unit at %s belongs to %s", o.Province, d.Unit.Power)
	}
	o.Kind = d.Unit.Kind
	o.Coast = d.Unit.Coast

	target, ok := m.Provinces[o.Target]
	if !ok {
		return reject(RejectUnknownProvince, *o, "unknown province %s", o.Target)
	}
	if o.Kind == Fleet && target.Kind == Inland {
		return reject(RejectBadRetreat, *o, "fleet cannot retreat inland to %s", o.Target)
	}
	if o.Kind == Army && target.Kind == Sea {
		return reject(RejectBadRetreat, *o, "army cannot retreat to sea %s", o.Target)
	}
	if !m.CanTravel(o.Kind, o.Province, o.Coast, o.Target, o.TargetCoast) {
		return reject(RejectBadRetreat, *o, "cannot retreat from %s to %s", o.Province, o.Target)
	}
	if o.Kind == Fleet && m.SplitCoast(o.Target) && o.TargetCoast == NoCoast {
		return reject(RejectBadCoast, *o, "must specify a coast of %s", o.Target)
	}
	if o.Target == d.AttackerOrigin {
		return reject(RejectBadRetreat, *o, "cannot retreat to %s, the attack came from there", o.Target)
	}
	if s.IsStandoff(o.Target) {
		return reject(RejectBadRetreat, *o, "cannot retreat to %s, it was left vacant by a standoff", o.Target)
	}
	if s.UnitAt(o.Target) != nil {
		return reject(RejectBadRetreat, *o, "%s is occupied", o.Target)
	}
	return nil
}

// convoyPlausible reports whether fleets currently on the board form a
// sea path from src to dst. Whether those fleets are actually ordered to
// convoy is the adjudicator's concern; validation only rules out moves
// no convoy could ever carry.
func (m *Map) convoyPlausible(s *State, src, dst string) bool {
	sp, ok := m.Provinces[src]
	if !ok || sp.Kind != Coastal {
		return false
	}
	dp, ok := m.Provinces[dst]
	if !ok || dp.Kind != Coastal {
		return false
	}

	visited := make(map[string]bool)
	var queue []string
	seed := func(from string) {
		for _, e := range m.Edges[from] {
			if !e.FleetOK || visited[e.To] {
				continue
			}
			if m.Provinces[e.To].Kind != Sea {
				continue
			}
			if u := s.UnitAt(e.To); u != nil && u.Kind == Fleet {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	seed(src)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if m.CanTravel(Fleet, cur, NoCoast, dst, NoCoast) {
			return true
		}
		seed(cur)
	}
	return false
}

// ValidateAndDefault validates movement orders against the state,
// replacing invalid ones with holds, keeping only the last order per
// unit, and adding holds for unordered units. Replaced orders are
// returned as void outcomes.
func (m *Map) ValidateAndDefault(s *State, orders []Order) ([]Order, []ResolvedOrder) {
	latest := make(map[string]int, len(orders))
	for i, o := range orders {
		latest[o.Province] = i
	}

	var (
		valid []Order
		void  []ResolvedOrder
	)
	ordered := make(map[string]bool, len(orders))
	for i, o := range orders {
		if latest[o.Province] != i {
			continue
		}
		if err := m.ValidateOrder(s, PhaseMovement, &o); err != nil {
			unit := s.UnitAt(o.Province)
			if unit != nil && unit.Power == o.Power {
				valid = append(valid, Order{
					Power:    unit.Power,
					Kind:     unit.Kind,
					Province: unit.Province,
					Coast:    unit.Coast,
					Action:   Hold,
				})
				ordered[o.Province] = true
			}
			void = append(void, ResolvedOrder{Order: o, Outcome: OutcomeVoid})
			continue
		}
		valid = append(valid, o)
		ordered[o.Province] = true
	}

	for _, unit := range s.Units {
		if !ordered[unit.Province] {
			valid = append(valid, Order{
				Power:    unit.Power,
				Kind:     unit.Kind,
				Province: unit.Province,
				Coast:    unit.Coast,
				Action:   Hold,
			})
		}
	}
	return valid, void
}
