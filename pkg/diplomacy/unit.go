package diplomacy

// Power is one of the seven great powers.
type Power string

const (
	Austria Power = "austria"
	England Power = "england"
	France  Power = "france"
	Germany Power = "germany"
	Italy   Power = "italy"
	Russia  Power = "russia"
	Turkey  Power = "turkey"
	Neutral Power = ""
)

// AllPowers returns the seven great powers in standard order.
func AllPowers() []Power {
	return []Power{Austria, England, France, Germany, Italy, Russia, Turkey}
}

// ParsePower maps a power name to its Power value. Returns Neutral and
// false for anything that is not one of the seven.
func ParsePower(s string) (Power, bool) {
	for _, p := range AllPowers() {
		if string(p) == s {
			return p, true
		}
	}
	return Neutral, false
}

// UnitKind distinguishes armies from fleets.
type UnitKind int

const (
	Army UnitKind = iota
	Fleet
)

func (k UnitKind) String() string {
	if k == Army {
		return "army"
	}
	return "fleet"
}

// Letter returns the single-letter form used in order text.
func (k UnitKind) Letter() string {
	if k == Army {
		return "A"
	}
	return "F"
}

// Unit is a single military unit on the board.
type Unit struct {
	Kind     UnitKind
	Power    Power
	Province string
	Coast    Coast // only meaningful for fleets in split-coast provinces
}

// Dislodgement is a unit forced out of its province, together with the
// origin of the attack that dislodged it. The unit keeps its pre-dislodge
// province; AttackerOrigin is forbidden as a retreat destination.
type Dislodgement struct {
	Unit           Unit
	AttackerOrigin string
}
