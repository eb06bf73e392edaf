package diplomacy

// ResolveRetreats decides the fate of every dislodged unit. Units with
// no order or an invalid one are disbanded, and retreats colliding on
// the same province all fail, destroying the units involved.
func ResolveRetreats(m *Map, s *State, orders []Order) []ResolvedOrder {
	latest := make(map[string]int, len(orders))
	for i, o := range orders {
		latest[o.Province] = i
	}

	var results []ResolvedOrder
	checked := make([]Order, 0, len(orders))
	invalid := make(map[string]bool)
	ordered := make(map[string]bool, len(orders))
	for i, o := range orders {
		if latest[o.Province] != i {
			continue
		}
		ordered[o.Province] = true
		if err := m.ValidateOrder(s, PhaseRetreat, &o); err != nil {
			invalid[o.Province] = true
			results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeVoid})
			continue
		}
		checked = append(checked, o)
	}

	// A dislodged unit without a usable order disbands.
	for _, d := range s.Dislodged {
		if ordered[d.Unit.Province] && !invalid[d.Unit.Province] {
			continue
		}
		results = append(results, ResolvedOrder{
			Order: Order{
				Power:    d.Unit.Power,
				Kind:     d.Unit.Kind,
				Province: d.Unit.Province,
				Coast:    d.Unit.Coast,
				Action:   Disband,
			},
			Outcome: OutcomeSucceeded,
		})
	}

	// Only valid retreats contest a destination.
	targets := make(map[string]int)
	for _, o := range checked {
		if o.Action == Retreat {
			targets[o.Target]++
		}
	}

	for _, o := range checked {
		if o.Action == Disband {
			results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeSucceeded})
			continue
		}
		if targets[o.Target] > 1 {
			results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeFailed})
			continue
		}
		results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeSucceeded})
	}
	return results
}

// ApplyRetreats places successfully retreated units back on the board
// and clears the dislodgement bookkeeping. Everything else is destroyed
// by omission.
func ApplyRetreats(m *Map, s *State, results []ResolvedOrder) {
	for _, r := range results {
		if r.Order.Action != Retreat || r.Outcome != OutcomeSucceeded {
			continue
		}
		coast := r.Order.TargetCoast
		if r.Order.Kind == Fleet && coast == NoCoast && m.SplitCoast(r.Order.Target) {
			if coasts := m.CoastsReachable(r.Order.Province, r.Order.Coast, r.Order.Target); len(coasts) == 1 {
				coast = coasts[0]
			}
		}
		if !m.SplitCoast(r.Order.Target) {
			coast = NoCoast
		}
		s.Units = append(s.Units, Unit{
			Kind:     r.Order.Kind,
			Power:    r.Order.Power,
			Province: r.Order.Target,
			Coast:    coast,
		})
	}
	s.Dislodged = nil
	s.Standoffs = nil
}
