package diplomacy

import (
	"fmt"
	"sort"
	"strings"
)

// Season is half of a game year.
type Season string

const (
	Spring Season = "spring"
	Fall   Season = "fall"
)

// PhaseKind is the adjudicable unit of game time.
type PhaseKind string

const (
	PhaseMovement   PhaseKind = "movement"
	PhaseRetreat    PhaseKind = "retreat"
	PhaseAdjustment PhaseKind = "adjustment"
)

// GameStatus is the lifecycle state of a game.
type GameStatus string

const (
	StatusForming   GameStatus = "forming"
	StatusActive    GameStatus = "active"
	StatusCompleted GameStatus = "completed"
)

// State is a complete snapshot of the board at a point in time.
type State struct {
	Year          int              `json:"year"`
	Season        Season           `json:"season"`
	Phase         PhaseKind        `json:"phase"`
	Units         []Unit           `json:"units"`
	SupplyCenters map[string]Power `json:"supply_centers"` // province code -> owning power
	Dislodged     []Dislodgement   `json:"dislodged,omitempty"`
	// Standoffs lists provinces vacated by a standoff this turn; they are
	// forbidden retreat destinations. Populated entering a retreat phase.
	Standoffs []string `json:"standoffs,omitempty"`
}

// NewStartingState returns the standard starting position, Spring 1901
// Movement.
func NewStartingState() *State {
	return &State{
		Year:          1901,
		Season:        Spring,
		Phase:         PhaseMovement,
		Units:         startingUnits(),
		SupplyCenters: startingSupplyCenters(),
	}
}

// UnitAt returns the non-dislodged unit in a province, or nil.
func (s *State) UnitAt(province string) *Unit {
	for i := range s.Units {
		if s.Units[i].Province == province {
			return &s.Units[i]
		}
	}
	return nil
}

// DislodgedAt returns the dislodged unit in a province, or nil.
func (s *State) DislodgedAt(province string) *Dislodgement {
	for i := range s.Dislodged {
		if s.Dislodged[i].Unit.Province == province {
			return &s.Dislodged[i]
		}
	}
	return nil
}

// CenterCount returns the number of supply centers a power controls.
func (s *State) CenterCount(p Power) int {
	n := 0
	for _, owner := range s.SupplyCenters {
		if owner == p {
			n++
		}
	}
	return n
}

// UnitCount returns the number of units a power owns.
func (s *State) UnitCount(p Power) int {
	n := 0
	for _, u := range s.Units {
		if u.Power == p {
			n++
		}
	}
	return n
}

// UnitsOf returns the units a power owns.
func (s *State) UnitsOf(p Power) []Unit {
	var units []Unit
	for _, u := range s.Units {
		if u.Power == p {
			units = append(units, u)
		}
	}
	return units
}

// Alive reports whether a power still holds a center or a unit.
func (s *State) Alive(p Power) bool {
	return s.CenterCount(p) > 0 || s.UnitCount(p) > 0
}

// IsStandoff reports whether a province was vacated by standoff this turn.
func (s *State) IsStandoff(province string) bool {
	for _, p := range s.Standoffs {
		if p == province {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Mutating the clone never affects the
// original.
func (s *State) Clone() *State {
	c := &State{
		Year:   s.Year,
		Season: s.Season,
		Phase:  s.Phase,
	}
	if s.Units != nil {
		c.Units = make([]Unit, len(s.Units))
		copy(c.Units, s.Units)
	}
	if s.SupplyCenters != nil {
		c.SupplyCenters = make(map[string]Power, len(s.SupplyCenters))
		for k, v := range s.SupplyCenters {
			c.SupplyCenters[k] = v
		}
	}
	if s.Dislodged != nil {
		c.Dislodged = make([]Dislodgement, len(s.Dislodged))
		copy(c.Dislodged, s.Dislodged)
	}
	if s.Standoffs != nil {
		c.Standoffs = make([]string, len(s.Standoffs))
		copy(c.Standoffs, s.Standoffs)
	}
	return c
}

// Board renders a deterministic one-line summary of the position, for
// logs and event payloads.
func (s *State) Board() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s %s", s.Year, s.Season, s.Phase)
	for _, p := range AllPowers() {
		units := s.UnitsOf(p)
		if len(units) == 0 {
			continue
		}
		parts := make([]string, 0, len(units))
		for _, u := range units {
			loc := u.Province
			if u.Coast != NoCoast {
				loc += "/" + string(u.Coast)
			}
			parts = append(parts, u.Kind.Letter()+" "+loc)
		}
		sort.Strings(parts)
		fmt.Fprintf(&b, " | %s: %s", p, strings.Join(parts, ", "))
	}
	return b.String()
}

func startingUnits() []Unit {
	return []Unit{
		// Austria
		{Army, Austria, "vie", NoCoast},
		{Army, Austria, "bud", NoCoast},
		{Fleet, Austria, "tri", NoCoast},
		// England
		{Fleet, England, "lon", NoCoast},
		{Fleet, England, "edi", NoCoast},
		{Army, England, "lvp", NoCoast},
		// France
		{Fleet, France, "bre", NoCoast},
		{Army, France, "par", NoCoast},
		{Army, France, "mar", NoCoast},
		// Germany
		{Fleet, Germany, "kie", NoCoast},
		{Army, Germany, "ber", NoCoast},
		{Army, Germany, "mun", NoCoast},
		// Italy
		{Fleet, Italy, "nap", NoCoast},
		{Army, Italy, "rom", NoCoast},
		{Army, Italy, "ven", NoCoast},
		// Russia
		{Fleet, Russia, "stp", SouthCoast},
		{Army, Russia, "mos", NoCoast},
		{Army, Russia, "war", NoCoast},
		{Fleet, Russia, "sev", NoCoast},
		// Turkey
		{Fleet, Turkey, "ank", NoCoast},
		{Army, Turkey, "con", NoCoast},
		{Army, Turkey, "smy", NoCoast},
	}
}

func startingSupplyCenters() map[string]Power {
	return map[string]Power{
		"vie": Austria, "bud": Austria, "tri": Austria,
		"lon": England, "edi": England, "lvp": England,
		"bre": France, "par": France, "mar": France,
		"kie": Germany, "ber": Germany, "mun": Germany,
		"nap": Italy, "rom": Italy, "ven": Italy,
		"stp": Russia, "mos": Russia, "war": Russia, "sev": Russia,
		"ank": Turkey, "con": Turkey, "smy": Turkey,
		// The twelve neutral centers.
		"nwy": Neutral, "swe": Neutral, "den": Neutral,
		"hol": Neutral, "bel": Neutral, "spa": Neutral,
		"por": Neutral, "tun": Neutral, "gre": Neutral,
		"ser": Neutral, "bul": Neutral, "rum": Neutral,
	}
}
