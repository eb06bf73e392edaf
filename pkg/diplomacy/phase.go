package diplomacy

// MaxYear is the last year a game may reach; beyond it the game ends in
// a draw among the surviving powers.
const MaxYear = 3000

// VictoryCenters is the supply center count that wins the game outright.
const VictoryCenters = 18

// Advance moves the state to the next phase. The caller applies every
// resolution first: the retreat phase is entered only when dislodged
// units remain, and supply center ownership is recomputed when Fall
// play concludes.
func Advance(s *State) {
	switch s.Phase {
	case PhaseMovement:
		if len(s.Dislodged) > 0 {
			s.Phase = PhaseRetreat
			return
		}
		afterMovement(s)
	case PhaseRetreat:
		afterMovement(s)
	case PhaseAdjustment:
		s.Year++
		s.Season = Spring
		s.Phase = PhaseMovement
	}
	s.Dislodged = nil
	s.Standoffs = nil
}

func afterMovement(s *State) {
	if s.Season == Spring {
		s.Season = Fall
		s.Phase = PhaseMovement
		return
	}
	s.RecomputeSupplyCenters()
	s.Phase = PhaseAdjustment
}

// RecomputeSupplyCenters transfers each supply center to the power
// occupying it; vacant centers keep their current owner.
func (s *State) RecomputeSupplyCenters() {
	for prov := range s.SupplyCenters {
		if unit := s.UnitAt(prov); unit != nil {
			s.SupplyCenters[prov] = unit.Power
		}
	}
}

// AdjustmentBudgets returns centers minus units for every power.
// Positive entries may build, negative ones must disband.
func (s *State) AdjustmentBudgets() map[Power]int {
	budgets := make(map[Power]int, len(AllPowers()))
	for _, p := range AllPowers() {
		budgets[p] = s.CenterCount(p) - s.UnitCount(p)
	}
	return budgets
}

// AdjustmentRequired reports whether any power has builds or disbands
// due. An adjustment phase with nothing due resolves as a no-op.
func (s *State) AdjustmentRequired() bool {
	for _, p := range AllPowers() {
		if s.CenterCount(p) != s.UnitCount(p) {
			return true
		}
	}
	return false
}

// Victor reports whether the game is decided: a power controlling 18
// supply centers wins outright, as does the last power with units on
// the board.
func Victor(s *State) (Power, bool) {
	for _, p := range AllPowers() {
		if s.CenterCount(p) >= VictoryCenters {
			return p, true
		}
	}
	var last Power
	alive := 0
	for _, p := range AllPowers() {
		if s.UnitCount(p) > 0 {
			last = p
			alive++
		}
	}
	if alive == 1 {
		return last, true
	}
	return Neutral, false
}

// YearLimitReached reports whether the game has run past MaxYear.
func YearLimitReached(s *State) bool {
	return s.Year > MaxYear
}
