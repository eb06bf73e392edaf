package diplomacy

import "sort"

// ResolveAdjustments processes build and disband orders after Fall.
// Each power's budget is centers minus units: positive allows builds,
// negative requires disbands. Builds a power never submits are simply
// waived; missing disbands are forced by the civil disorder rule.
func ResolveAdjustments(m *Map, s *State, orders []Order) []ResolvedOrder {
	byPower := make(map[Power][]Order)
	for _, o := range orders {
		byPower[o.Power] = append(byPower[o.Power], o)
	}

	var results []ResolvedOrder
	for _, power := range AllPowers() {
		budget := s.CenterCount(power) - s.UnitCount(power)
		submitted := byPower[power]

		switch {
		case budget > 0:
			results = append(results, resolveBuilds(m, s, submitted, budget)...)
		case budget < 0:
			results = append(results, resolveDisbands(m, s, power, submitted, -budget)...)
		default:
			for _, o := range submitted {
				results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeVoid})
			}
		}
	}
	return results
}

func resolveBuilds(m *Map, s *State, submitted []Order, budget int) []ResolvedOrder {
	var results []ResolvedOrder
	built := 0
	taken := make(map[string]bool)
	for _, o := range submitted {
		if o.Action != Build {
			results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeVoid})
			continue
		}
		if taken[o.Province] {
			results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeVoid})
			continue
		}
		if built >= budget {
			results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeFailed})
			continue
		}
		if err := m.ValidateOrder(s, PhaseAdjustment, &o); err != nil {
			results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeVoid})
			continue
		}
		taken[o.Province] = true
		built++
		results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeSucceeded})
	}
	return results
}

func resolveDisbands(m *Map, s *State, power Power, submitted []Order, needed int) []ResolvedOrder {
	var results []ResolvedOrder
	gone := make(map[string]bool)
	disbanded := 0
	for _, o := range submitted {
		if o.Action != Disband {
			results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeVoid})
			continue
		}
		if err := m.ValidateOrder(s, PhaseAdjustment, &o); err != nil {
			results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeVoid})
			continue
		}
		if gone[o.Province] {
			results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeVoid})
			continue
		}
		if disbanded >= needed {
			results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeFailed})
			continue
		}
		gone[o.Province] = true
		disbanded++
		results = append(results, ResolvedOrder{Order: o, Outcome: OutcomeSucceeded})
	}

	if disbanded < needed {
		results = append(results, civilDisorder(m, s, power, needed-disbanded, gone)...)
	}
	return results
}

// civilDisorder forces disbands for a power that failed to submit
// enough. Units are destroyed farthest from home first; ties go to
// fleets before armies, then alphabetically by province.
func civilDisorder(m *Map, s *State, power Power, count int, gone map[string]bool) []ResolvedOrder {
	type candidate struct {
		unit Unit
		dist int
	}
	var cands []candidate
	homes := m.HomeCenters(power)
	for _, u := range s.UnitsOf(power) {
		if gone[u.Province] {
			continue
		}
		cands = append(cands, candidate{unit: u, dist: minHomeDistance(m, u.Province, homes)})
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.dist != b.dist {
			return a.dist > b.dist
		}
		if a.unit.Kind != b.unit.Kind {
			return a.unit.Kind == Fleet
		}
		return a.unit.Province < b.unit.Province
	})

	if count > len(cands) {
		count = len(cands)
	}
	results := make([]ResolvedOrder, 0, count)
	for _, c := range cands[:count] {
		results = append(results, ResolvedOrder{
			Order: Order{
				Power:    power,
				Kind:     c.unit.Kind,
				Province: c.unit.Province,
				Coast:    c.unit.Coast,
				Action:   Disband,
			},
			Outcome: OutcomeSucceeded,
		})
	}
	return results
}

// minHomeDistance is the BFS distance from a province to the nearest
// home center, walking every adjacency regardless of unit kind.
func minHomeDistance(m *Map, from string, homes []string) int {
	const unreachable = 999
	if len(homes) == 0 {
		return unreachable
	}
	homeSet := make(map[string]bool, len(homes))
	for _, h := range homes {
		homeSet[h] = true
	}
	if homeSet[from] {
		return 0
	}

	visited := map[string]bool{from: true}
	queue := []string{from}
	for dist := 1; len(queue) > 0; dist++ {
		var next []string
		for _, prov := range queue {
			for _, e := range m.Edges[prov] {
				if visited[e.To] {
					continue
				}
				if homeSet[e.To] {
					return dist
				}
				visited[e.To] = true
				next = append(next, e.To)
			}
		}
		queue = next
	}
	return unreachable
}

// ApplyAdjustments places built units and removes disbanded ones.
func ApplyAdjustments(s *State, results []ResolvedOrder) {
	for _, r := range results {
		if r.Outcome != OutcomeSucceeded {
			continue
		}
		switch r.Order.Action {
		case Build:
			s.Units = append(s.Units, Unit{
				Kind:     r.Order.Kind,
				Power:    r.Order.Power,
				Province: r.Order.Province,
				Coast:    r.Order.Coast,
			})
		case Disband:
			for i := range s.Units {
				if s.Units[i].Province == r.Order.Province && s.Units[i].Power == r.Order.Power {
					s.Units = append(s.Units[:i], s.Units[i+1:]...)
					break
				}
			}
		}
	}
}
