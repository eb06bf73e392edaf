package diplomacy

import (
	"sort"
	"sync"
)

var (
	standardOnce sync.Once
	standardMap  *Map
)

// Standard returns the standard 75-province map. It is built once and
// cached; callers share the same immutable instance.
func Standard() *Map {
	standardOnce.Do(func() {
		standardMap = newStandardMap()
	})
	return standardMap
}

func newStandardMap() *Map {
	m := &Map{
		Provinces: make(map[string]*Province, NumProvinces),
		Edges:     make(map[string][]Edge, 150),
	}

	inland := func(code, name string, sc bool, home Power) {
		m.Provinces[code] = &Province{Code: code, Name: name, Kind: Inland, SupplyCenter: sc, HomeOf: home}
	}
	coastal := func(code, name string, sc bool, home Power, coasts ...Coast) {
		m.Provinces[code] = &Province{Code: code, Name: name, Kind: Coastal, SupplyCenter: sc, HomeOf: home, Coasts: coasts}
	}
	water := func(code, name string) {
		m.Provinces[code] = &Province{Code: code, Name: name, Kind: Sea}
	}

	edge := func(from string, fromCoast Coast, to string, toCoast Coast, armyOK, fleetOK bool) {
		m.Edges[from] = append(m.Edges[from], Edge{
			From: from, FromCoast: fromCoast,
			To: to, ToCoast: toCoast,
			ArmyOK: armyOK, FleetOK: fleetOK,
		})
	}
	// armies: bidirectional army-only edge (at least one inland end, or a
	// land border with no shared sea).
	armies := func(a, b string) {
		edge(a, NoCoast, b, NoCoast, true, false)
		edge(b, NoCoast, a, NoCoast, true, false)
	}
	// fleets: bidirectional fleet-only edge, coast-specific where an end
	// is a split-coast province.
	fleets := func(a string, ac Coast, b string, bc Coast) {
		edge(a, ac, b, bc, false, true)
		edge(b, bc, a, ac, false, true)
	}
	// shore: bidirectional edge open to both kinds (coastal pair sharing
	// both a land border and a sea border).
	shore := func(a, b string) {
		edge(a, NoCoast, b, NoCoast, true, true)
		edge(b, NoCoast, a, NoCoast, true, true)
	}

	// Provinces: 14 inland + 39 plain coastal + 3 split-coast + 19 sea.

	inland("boh", "Bohemia", false, Neutral)
	inland("bud", "Budapest", true, Austria)
	inland("bur", "Burgundy", false, Neutral)
	inland("gal", "Galicia", false, Neutral)
	inland("mos", "Moscow", true, Russia)
	inland("mun", "Munich", true, Germany)
	inland("par", "Paris", true, France)
	inland("ruh", "Ruhr", false, Neutral)
	inland("ser", "Serbia", true, Neutral)
	inland("sil", "Silesia", false, Neutral)
	inland("tyr", "Tyrolia", false, Neutral)
	inland("ukr", "Ukraine", false, Neutral)
	inland("vie", "Vienna", true, Austria)
	inland("war", "Warsaw", true, Russia)

	coastal("alb", "Albania", false, Neutral)
	coastal("ank", "Ankara", true, Turkey)
	coastal("apu", "Apulia", false, Neutral)
	coastal("arm", "Armenia", false, Neutral)
	coastal("bel", "Belgium", true, Neutral)
	coastal("ber", "Berlin", true, Germany)
	coastal("bre", "Brest", true, France)
	coastal("cly", "Clyde", false, Neutral)
	coastal("con", "Constantinople", true, Turkey)
	coastal("den", "Denmark", true, Neutral)
	coastal("edi", "Edinburgh", true, England)
	coastal("fin", "Finland", false, Neutral)
	coastal("gas", "Gascony", false, Neutral)
	coastal("gre", "Greece", true, Neutral)
	coastal("hol", "Holland", true, Neutral)
	coastal("kie", "Kiel", true, Germany)
	coastal("lon", "London", true, England)
	coastal("lvn", "Livonia", false, Neutral)
	coastal("lvp", "Liverpool", true, England)
	coastal("mar", "Marseilles", true, France)
	coastal("naf", "North Africa", false, Neutral)
	coastal("nap", "Naples", true, Italy)
	coastal("nwy", "Norway", true, Neutral)
	coastal("pic", "Picardy", false, Neutral)
	coastal("pie", "Piedmont", false, Neutral)
	coastal("por", "Portugal", true, Neutral)
	coastal("pru", "Prussia", false, Neutral)
	coastal("rom", "Rome", true, Italy)
	coastal("rum", "Rumania", true, Neutral)
	coastal("sev", "Sevastopol", true, Russia)
	coastal("smy", "Smyrna", true, Turkey)
	coastal("swe", "Sweden", true, Neutral)
	coastal("syr", "Syria", false, Neutral)
	coastal("tri", "Trieste", true, Austria)
	coastal("tun", "Tunisia", true, Neutral)
	coastal("tus", "Tuscany", false, Neutral)
	coastal("ven", "Venice", true, Italy)
	coastal("wal", "Wales", false, Neutral)
	coastal("yor", "Yorkshire", false, Neutral)

	coastal("bul", "Bulgaria", true, Neutral, EastCoast, SouthCoast)
	coastal("spa", "Spain", true, Neutral, NorthCoast, SouthCoast)
	coastal("stp", "St. Petersburg", true, Russia, NorthCoast, SouthCoast)

	water("adr", "Adriatic Sea")
	water("aeg", "Aegean Sea")
	water("bal", "Baltic Sea")
	water("bar", "Barents Sea")
	water("bla", "Black Sea")
	water("bot", "Gulf of Bothnia")
	water("eas", "Eastern Mediterranean")
	water("eng", "English Channel")
	water("gol", "Gulf of Lyon")
	water("hel", "Heligoland Bight")
	water("ion", "Ionian Sea")
	water("iri", "Irish Sea")
	water("mao", "Mid-Atlantic Ocean")
	water("nao", "North Atlantic Ocean")
	water("nrg", "Norwegian Sea")
	water("nth", "North Sea")
	water("ska", "Skagerrak")
	water("tys", "Tyrrhenian Sea")
	water("wes", "Western Mediterranean")

	// Adjacencies. Each undirected pair appears exactly once below; the
	// helpers insert both directions. Armies ignore coasts, so split-coast
	// army links use armies() while the fleet links name the coast.

	// Sea to sea.
	fleets("adr", NoCoast, "ion", NoCoast)
	fleets("aeg", NoCoast, "eas", NoCoast)
	fleets("aeg", NoCoast, "ion", NoCoast)
	fleets("bal", NoCoast, "bot", NoCoast)
	fleets("eng", NoCoast, "iri", NoCoast)
	fleets("eng", NoCoast, "mao", NoCoast)
	fleets("eng", NoCoast, "nth", NoCoast)
	fleets("gol", NoCoast, "tys", NoCoast)
	fleets("gol", NoCoast, "wes", NoCoast)
	fleets("hel", NoCoast, "nth", NoCoast)
	fleets("ion", NoCoast, "eas", NoCoast)
	fleets("ion", NoCoast, "tys", NoCoast)
	fleets("iri", NoCoast, "mao", NoCoast)
	fleets("iri", NoCoast, "nao", NoCoast)
	fleets("mao", NoCoast, "nao", NoCoast)
	fleets("mao", NoCoast, "wes", NoCoast)
	fleets("nao", NoCoast, "nrg", NoCoast)
	fleets("nth", NoCoast, "nrg", NoCoast)
	fleets("nth", NoCoast, "ska", NoCoast)
	fleets("nrg", NoCoast, "bar", NoCoast)
	fleets("tys", NoCoast, "wes", NoCoast)

	// Sea to coast.
	fleets("adr", NoCoast, "alb", NoCoast)
	fleets("adr", NoCoast, "apu", NoCoast)
	fleets("adr", NoCoast, "tri", NoCoast)
	fleets("adr", NoCoast, "ven", NoCoast)
	fleets("aeg", NoCoast, "bul", SouthCoast)
	fleets("aeg", NoCoast, "con", NoCoast)
	fleets("aeg", NoCoast, "gre", NoCoast)
	fleets("aeg", NoCoast, "smy", NoCoast)
	fleets("bal", NoCoast, "ber", NoCoast)
	fleets("bal", NoCoast, "den", NoCoast)
	fleets("bal", NoCoast, "kie", NoCoast)
	fleets("bal", NoCoast, "lvn", NoCoast)
	fleets("bal", NoCoast, "pru", NoCoast)
	fleets("bal", NoCoast, "swe", NoCoast)
	fleets("bar", NoCoast, "nwy", NoCoast)
	fleets("bar", NoCoast, "stp", NorthCoast)
	fleets("bla", NoCoast, "ank", NoCoast)
	fleets("bla", NoCoast, "arm", NoCoast)
	fleets("bla", NoCoast, "bul", EastCoast)
	fleets("bla", NoCoast, "con", NoCoast)
	fleets("bla", NoCoast, "rum", NoCoast)
	fleets("bla", NoCoast, "sev", NoCoast)
	fleets("bot", NoCoast, "fin", NoCoast)
	fleets("bot", NoCoast, "lvn", NoCoast)
	fleets("bot", NoCoast, "stp", SouthCoast)
	fleets("bot", NoCoast, "swe", NoCoast)
	fleets("eas", NoCoast, "smy", NoCoast)
	fleets("eas", NoCoast, "syr", NoCoast)
	fleets("eng", NoCoast, "bel", NoCoast)
	fleets("eng", NoCoast, "bre", NoCoast)
	fleets("eng", NoCoast, "lon", NoCoast)
	fleets("eng", NoCoast, "pic", NoCoast)
	fleets("eng", NoCoast, "wal", NoCoast)
	fleets("gol", NoCoast, "mar", NoCoast)
	fleets("gol", NoCoast, "pie", NoCoast)
	fleets("gol", NoCoast, "spa", SouthCoast)
	fleets("gol", NoCoast, "tus", NoCoast)
	fleets("hel", NoCoast, "den", NoCoast)
	fleets("hel", NoCoast, "hol", NoCoast)
	fleets("hel", NoCoast, "kie", NoCoast)
	fleets("ion", NoCoast, "alb", NoCoast)
	fleets("ion", NoCoast, "apu", NoCoast)
	fleets("ion", NoCoast, "gre", NoCoast)
	fleets("ion", NoCoast, "nap", NoCoast)
	fleets("ion", NoCoast, "tun", NoCoast)
	fleets("iri", NoCoast, "lvp", NoCoast)
	fleets("iri", NoCoast, "wal", NoCoast)
	fleets("mao", NoCoast, "bre", NoCoast)
	fleets("mao", NoCoast, "gas", NoCoast)
	fleets("mao", NoCoast, "naf", NoCoast)
	fleets("mao", NoCoast, "por", NoCoast)
	fleets("mao", NoCoast, "spa", NorthCoast)
	fleets("mao", NoCoast, "spa", SouthCoast)
	fleets("nao", NoCoast, "cly", NoCoast)
	fleets("nao", NoCoast, "lvp", NoCoast)
	fleets("nth", NoCoast, "bel", NoCoast)
	fleets("nth", NoCoast, "den", NoCoast)
	fleets("nth", NoCoast, "edi", NoCoast)
	fleets("nth", NoCoast, "hol", NoCoast)
	fleets("nth", NoCoast, "lon", NoCoast)
	fleets("nth", NoCoast, "nwy", NoCoast)
	fleets("nth", NoCoast, "yor", NoCoast)
	fleets("nrg", NoCoast, "cly", NoCoast)
	fleets("nrg", NoCoast, "edi", NoCoast)
	fleets("nrg", NoCoast, "nwy", NoCoast)
	fleets("ska", NoCoast, "den", NoCoast)
	fleets("ska", NoCoast, "nwy", NoCoast)
	fleets("ska", NoCoast, "swe", NoCoast)
	fleets("tys", NoCoast, "nap", NoCoast)
	fleets("tys", NoCoast, "rom", NoCoast)
	fleets("tys", NoCoast, "tun", NoCoast)
	fleets("tys", NoCoast, "tus", NoCoast)
	fleets("wes", NoCoast, "naf", NoCoast)
	fleets("wes", NoCoast, "spa", SouthCoast)
	fleets("wes", NoCoast, "tun", NoCoast)

	// Inland to inland.
	armies("boh", "gal")
	armies("boh", "mun")
	armies("boh", "sil")
	armies("boh", "tyr")
	armies("boh", "vie")
	armies("bud", "gal")
	armies("bud", "vie")
	armies("bur", "mun")
	armies("bur", "par")
	armies("bur", "ruh")
	armies("gal", "sil")
	armies("gal", "ukr")
	armies("gal", "vie")
	armies("gal", "war")
	armies("mos", "ukr")
	armies("mos", "war")
	armies("mun", "ruh")
	armies("mun", "sil")
	armies("mun", "tyr")
	armies("sil", "war")
	armies("tyr", "vie")
	armies("ukr", "war")

	// Inland to coast.
	armies("bud", "rum")
	armies("bud", "ser")
	armies("bud", "tri")
	armies("bur", "bel")
	armies("bur", "gas")
	armies("bur", "mar")
	armies("bur", "pic")
	armies("gal", "rum")
	armies("gas", "mar")
	armies("mos", "lvn")
	armies("mos", "sev")
	armies("mos", "stp")
	armies("mun", "ber")
	armies("mun", "kie")
	armies("par", "bre")
	armies("par", "gas")
	armies("par", "pic")
	armies("ruh", "bel")
	armies("ruh", "hol")
	armies("ruh", "kie")
	armies("ser", "alb")
	armies("ser", "bul")
	armies("ser", "gre")
	armies("ser", "rum")
	armies("ser", "tri")
	armies("sil", "ber")
	armies("sil", "pru")
	armies("tyr", "pie")
	armies("tyr", "tri")
	armies("tyr", "ven")
	armies("ukr", "rum")
	armies("ukr", "sev")
	armies("vie", "tri")
	armies("war", "lvn")
	armies("war", "pru")

	// Coastal pairs sharing both a land and a sea border.
	shore("alb", "gre")
	shore("alb", "tri")
	shore("ank", "arm")
	shore("ank", "con")
	shore("apu", "nap")
	shore("apu", "ven")
	shore("bel", "hol")
	shore("bel", "pic")
	shore("ber", "kie")
	shore("ber", "pru")
	shore("bre", "gas")
	shore("bre", "pic")
	shore("cly", "edi")
	shore("cly", "lvp")
	shore("con", "smy")
	shore("den", "kie")
	shore("den", "swe")
	shore("edi", "yor")
	shore("fin", "swe")
	shore("hol", "kie")
	shore("lon", "wal")
	shore("lon", "yor")
	shore("lvp", "wal")
	shore("mar", "pie")
	shore("naf", "tun")
	shore("nwy", "swe")
	shore("pie", "tus")
	shore("pru", "lvn")
	shore("rom", "nap")
	shore("rom", "tus")
	shore("sev", "arm")
	shore("sev", "rum")
	shore("smy", "syr")
	shore("tri", "ven")

	// Coastal pairs with a land border but facing different seas.
	armies("ank", "smy")
	armies("apu", "rom")
	armies("arm", "smy")
	armies("arm", "syr")
	armies("edi", "lvp")
	armies("fin", "nwy")
	armies("lvp", "yor")
	armies("pie", "ven")
	armies("rom", "ven")
	armies("tus", "ven")
	armies("wal", "yor")

	// Coastal pairs with a sea border but no usable land border, and the
	// coast-specific fleet links of the split-coast provinces.
	fleets("con", NoCoast, "bul", EastCoast)
	fleets("con", NoCoast, "bul", SouthCoast)
	fleets("gre", NoCoast, "bul", SouthCoast)
	fleets("rum", NoCoast, "bul", EastCoast)
	fleets("gas", NoCoast, "spa", NorthCoast)
	fleets("mar", NoCoast, "spa", SouthCoast)
	fleets("por", NoCoast, "spa", NorthCoast)
	fleets("por", NoCoast, "spa", SouthCoast)
	fleets("fin", NoCoast, "stp", SouthCoast)
	fleets("lvn", NoCoast, "stp", SouthCoast)
	fleets("nwy", NoCoast, "stp", NorthCoast)

	// Army links into the split-coast provinces.
	armies("con", "bul")
	armies("gre", "bul")
	armies("rum", "bul")
	armies("gas", "spa")
	armies("mar", "spa")
	armies("por", "spa")
	armies("fin", "stp")
	armies("lvn", "stp")
	armies("nwy", "stp")

	codes := make([]string, 0, len(m.Provinces))
	for code := range m.Provinces {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	m.buildCaches(codes)

	return m
}
