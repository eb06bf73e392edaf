package diplomacy

// NumProvinces is the number of provinces on the standard map.
const NumProvinces = 75

// ProvinceKind classifies a province as inland, sea, or coastal.
type ProvinceKind int

const (
	Inland  ProvinceKind = iota // armies only
	Sea                         // fleets only
	Coastal                     // armies or fleets
)

// Coast names a specific coast of a split-coast province.
type Coast string

const (
	NoCoast    Coast = ""
	NorthCoast Coast = "nc"
	SouthCoast Coast = "sc"
	EastCoast  Coast = "ec"
	WestCoast  Coast = "wc"
)

// Province is a single province on the map.
type Province struct {
	Code         string
	Name         string
	Kind         ProvinceKind
	SupplyCenter bool
	HomeOf       Power   // power whose home center this is (Neutral if none)
	Coasts       []Coast // non-empty only for split-coast provinces
}

// Edge is a directed adjacency between two provinces. Split-coast
// provinces carry the specific coast on their end of the edge.
type Edge struct {
	From      string
	FromCoast Coast
	To        string
	ToCoast   Coast
	ArmyOK    bool
	FleetOK   bool
}

// Map is the full province and adjacency graph. It is immutable after
// construction and safe for concurrent use.
type Map struct {
	Provinces map[string]*Province
	Edges     map[string][]Edge // keyed by origin province code

	index map[string]int
	codes [NumProvinces]string

	// Precomputed neighbor lists, keyed by code (armies) or
	// code[:coast] (fleets). Callers must not mutate the slices.
	armyNeighbors  map[string][]string
	fleetNeighbors map[string][]string

	homes map[Power][]string
}

// Index returns the dense index (0..NumProvinces-1) for a province code,
// or -1 if the code is unknown.
func (m *Map) Index(code string) int {
	i, ok := m.index[code]
	if !ok {
		return -1
	}
	return i
}

// Code returns the province code for a dense index.
func (m *Map) Code(i int) string {
	return m.codes[i]
}

// CanTravel reports whether a unit of the given kind may move from one
// province to another, honoring the coast constraints on both ends.
func (m *Map) CanTravel(kind UnitKind, from string, fromCoast Coast, to string, toCoast Coast) bool {
	for _, e := range m.Edges[from] {
		if e.To != to {
			continue
		}
		if kind == Fleet && !e.FleetOK {
			continue
		}
		if kind == Army && !e.ArmyOK {
			continue
		}
		if fromCoast != NoCoast && e.FromCoast != NoCoast && e.FromCoast != fromCoast {
			continue
		}
		if toCoast != NoCoast && e.ToCoast != NoCoast && e.ToCoast != toCoast {
			continue
		}
		return true
	}
	return false
}

// CoastsReachable returns the coasts of dst that a fleet at src (on
// srcCoast, if split) can reach. For ordinary destinations the result is
// a single NoCoast entry.
func (m *Map) CoastsReachable(src string, srcCoast Coast, dst string) []Coast {
	var coasts []Coast
	for _, e := range m.Edges[src] {
		if e.To != dst || !e.FleetOK {
			continue
		}
		if srcCoast != NoCoast && e.FromCoast != NoCoast && e.FromCoast != srcCoast {
			continue
		}
		coasts = append(coasts, e.ToCoast)
	}
	return coasts
}

// Neighbors returns the provinces a unit of the given kind at code (on
// coast, if split) can reach in one move. The returned slice is shared;
// callers must not mutate it.
func (m *Map) Neighbors(code string, coast Coast, kind UnitKind) []string {
	if kind == Army {
		return m.armyNeighbors[code]
	}
	return m.fleetNeighbors[fleetKey(code, coast)]
}

// SplitCoast reports whether the province has distinct named coasts.
func (m *Map) SplitCoast(code string) bool {
	p, ok := m.Provinces[code]
	return ok && len(p.Coasts) > 0
}

// Coasts returns the named coasts of a province (nil for ordinary ones).
func (m *Map) Coasts(code string) []Coast {
	p, ok := m.Provinces[code]
	if !ok {
		return nil
	}
	return p.Coasts
}

// IsSupplyCenter reports whether the province is a supply center.
func (m *Map) IsSupplyCenter(code string) bool {
	p, ok := m.Provinces[code]
	return ok && p.SupplyCenter
}

// HomeCenters returns the home supply centers of a power, sorted by code.
// The returned slice is shared; callers must not mutate it.
func (m *Map) HomeCenters(p Power) []string {
	return m.homes[p]
}

func fleetKey(code string, coast Coast) string {
	if coast == NoCoast {
		return code
	}
	return code + ":" + string(coast)
}

// buildCaches fills the dense index, neighbor lists, and home-center
// table. Called once at the end of map construction.
func (m *Map) buildCaches(sortedCodes []string) {
	m.index = make(map[string]int, len(sortedCodes))
	for i, code := range sortedCodes {
		m.index[code] = i
		m.codes[i] = code
	}

	m.armyNeighbors = make(map[string][]string, len(sortedCodes))
	m.fleetNeighbors = make(map[string][]string, len(sortedCodes))
	for _, code := range sortedCodes {
		m.armyNeighbors[code] = m.collectNeighbors(code, NoCoast, Army)
		p := m.Provinces[code]
		if len(p.Coasts) == 0 {
			m.fleetNeighbors[code] = m.collectNeighbors(code, NoCoast, Fleet)
			continue
		}
		for _, c := range p.Coasts {
			m.fleetNeighbors[fleetKey(code, c)] = m.collectNeighbors(code, c, Fleet)
		}
		// A fleet in a split-coast province always has a coast; the
		// bare key covers callers probing without one.
		m.fleetNeighbors[code] = m.collectNeighbors(code, NoCoast, Fleet)
	}

	m.homes = make(map[Power][]string, 7)
	for _, code := range sortedCodes {
		p := m.Provinces[code]
		if p.HomeOf != Neutral {
			m.homes[p.HomeOf] = append(m.homes[p.HomeOf], code)
		}
	}
}

func (m *Map) collectNeighbors(code string, coast Coast, kind UnitKind) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range m.Edges[code] {
		if kind == Fleet && !e.FleetOK {
			continue
		}
		if kind == Army && !e.ArmyOK {
			continue
		}
		if coast != NoCoast && e.FromCoast != NoCoast && e.FromCoast != coast {
			continue
		}
		if !seen[e.To] {
			seen[e.To] = true
			out = append(out, e.To)
		}
	}
	return out
}
