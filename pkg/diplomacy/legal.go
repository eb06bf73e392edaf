package diplomacy

import "sort"

// LegalOrders enumerates every order the given power could submit for
// the province in the current phase, rendered in canonical text. The
// result is sorted and empty when nothing there can be ordered.
//
// Enumeration is generate-and-filter: candidates come from the
// adjacency lists and the board, and each one must pass ValidateOrder.
func (m *Map) LegalOrders(s *State, phase PhaseKind, power Power, province string) []string {
	var out []string
	add := func(o Order) {
		if err := m.ValidateOrder(s, phase, &o); err == nil {
			out = append(out, o.Text())
		}
	}

	switch phase {
	case PhaseMovement:
		m.legalMovement(s, power, province, add)
	case PhaseRetreat:
		m.legalRetreats(s, power, province, add)
	case PhaseAdjustment:
		m.legalAdjustments(s, power, province, add)
	}

	sort.Strings(out)
	return out
}

func (m *Map) legalMovement(s *State, power Power, province string, add func(Order)) {
	unit := s.UnitAt(province)
	if unit == nil || unit.Power != power {
		return
	}
	base := Order{Power: power, Kind: unit.Kind, Province: province, Coast: unit.Coast}

	hold := base
	hold.Action = Hold
	add(hold)

	dests := m.Neighbors(province, unit.Coast, unit.Kind)
	for _, dst := range dests {
		if unit.Kind == Fleet && m.SplitCoast(dst) {
			for _, c := range m.CoastsReachable(province, unit.Coast, dst) {
				mv := base
				mv.Action = Move
				mv.Target = dst
				mv.TargetCoast = c
				add(mv)
			}
			continue
		}
		mv := base
		mv.Action = Move
		mv.Target = dst
		add(mv)
	}

	// Convoyed destinations reachable through occupied seas. Landings
	// already adjacent overland would repeat the plain move.
	if unit.Kind == Army {
		direct := make(map[string]bool, len(dests))
		for _, d := range dests {
			direct[d] = true
		}
		for _, dst := range m.convoyLandings(s, province) {
			if direct[dst] {
				continue
			}
			mv := base
			mv.Action = Move
			mv.Target = dst
			add(mv)
		}
	}

	for _, other := range s.Units {
		if other.Province == province {
			continue
		}
		for _, dst := range dests {
			if dst != other.Province {
				continue
			}
			sh := base
			sh.Action = SupportHold
			sh.AuxKind = other.Kind
			sh.AuxProvince = other.Province
			add(sh)
		}
		for _, dst := range dests {
			if dst == other.Province {
				continue
			}
			reaches := m.CanTravel(other.Kind, other.Province, other.Coast, dst, NoCoast)
			if !reaches && other.Kind == Army {
				reaches = m.convoyPlausible(s, other.Province, dst)
			}
			if !reaches {
				continue
			}
			sm := base
			sm.Action = SupportMove
			sm.AuxKind = other.Kind
			sm.AuxProvince = other.Province
			sm.Target = dst
			add(sm)
		}
	}

	if unit.Kind == Fleet && m.Provinces[province].Kind == Sea {
		for _, army := range s.Units {
			if army.Kind != Army {
				continue
			}
			for _, dst := range m.convoyLandingsThrough(s, army.Province, province) {
				cv := base
				cv.Action = ConvoyOrder
				cv.AuxKind = Army
				cv.AuxProvince = army.Province
				cv.Target = dst
				add(cv)
			}
		}
	}
}

func (m *Map) legalRetreats(s *State, power Power, province string, add func(Order)) {
	d := s.DislodgedAt(province)
	if d == nil || d.Unit.Power != power {
		return
	}
	base := Order{Power: power, Kind: d.Unit.Kind, Province: province, Coast: d.Unit.Coast}

	for _, dst := range m.Neighbors(province, d.Unit.Coast, d.Unit.Kind) {
		if d.Unit.Kind == Fleet && m.SplitCoast(dst) {
			for _, c := range m.CoastsReachable(province, d.Unit.Coast, dst) {
				rt := base
				rt.Action = Retreat
				rt.Target = dst
				rt.TargetCoast = c
				add(rt)
			}
			continue
		}
		rt := base
		rt.Action = Retreat
		rt.Target = dst
		add(rt)
	}

	db := base
	db.Action = Disband
	add(db)
}

func (m *Map) legalAdjustments(s *State, power Power, province string, add func(Order)) {
	if unit := s.UnitAt(province); unit != nil {
		if unit.Power != power {
			return
		}
		db := Order{Power: power, Kind: unit.Kind, Province: province, Coast: unit.Coast, Action: Disband}
		add(db)
		return
	}

	build := Order{Power: power, Kind: Army, Province: province, Action: Build}
	add(build)
	if m.SplitCoast(province) {
		for _, c := range m.Coasts(province) {
			fb := Order{Power: power, Kind: Fleet, Province: province, Coast: c, Action: Build}
			add(fb)
		}
		return
	}
	fb := Order{Power: power, Kind: Fleet, Province: province, Action: Build}
	add(fb)
}

// convoyLandings lists coastal provinces an army could reach through
// chains of fleet-occupied seas starting next to it.
func (m *Map) convoyLandings(s *State, from string) []string {
	return m.landingsFromSeas(s, m.fleetSeasReachable(s, from), from)
}

// convoyLandingsThrough lists landings whose chain passes the given sea
// province, for enumerating a specific fleet's convoy orders.
func (m *Map) convoyLandingsThrough(s *State, from, sea string) []string {
	reach := m.fleetSeasReachable(s, from)
	if !reach[sea] {
		return nil
	}
	// only chains continuing from the named sea count
	onward := map[string]bool{sea: true}
	queue := []string{sea}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range m.Edges[cur] {
			if !e.FleetOK || onward[e.To] || !reach[e.To] {
				continue
			}
			onward[e.To] = true
			queue = append(queue, e.To)
		}
	}
	return m.landingsFromSeas(s, onward, from)
}

// fleetSeasReachable walks fleet-occupied sea provinces chained from
// the army's coastal province.
func (m *Map) fleetSeasReachable(s *State, from string) map[string]bool {
	reach := make(map[string]bool)
	var queue []string
	admit := func(at string) {
		for _, e := range m.Edges[at] {
			if !e.FleetOK || reach[e.To] {
				continue
			}
			if p, ok := m.Provinces[e.To]; !ok || p.Kind != Sea {
				continue
			}
			if u := s.UnitAt(e.To); u != nil && u.Kind == Fleet {
				reach[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	admit(from)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		admit(cur)
	}
	return reach
}

func (m *Map) landingsFromSeas(s *State, seas map[string]bool, from string) []string {
	seen := map[string]bool{from: true}
	var out []string
	for sea := range seas {
		for _, e := range m.Edges[sea] {
			if !e.FleetOK || seen[e.To] {
				continue
			}
			if p, ok := m.Provinces[e.To]; !ok || p.Kind != Coastal {
				continue
			}
			seen[e.To] = true
			out = append(out, e.To)
		}
	}
	sort.Strings(out)
	return out
}
