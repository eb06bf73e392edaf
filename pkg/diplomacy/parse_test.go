package diplomacy

import (
	"strings"
	"testing"
)

func parseOne(t *testing.T, m *Map, input string, phase PhaseKind) Order {
	t.Helper()
	orders, errs := m.ParseOrders(input, France, phase)
	if len(errs) > 0 {
		t.Fatalf("ParseOrders(%q) errors: %v", input, errs)
	}
	if len(orders) != 1 {
		t.Fatalf("ParseOrders(%q): expected 1 order, got %d", input, len(orders))
	}
	return orders[0]
}

// assertOrderEqual compares two orders field by field.
func assertOrderEqual(t *testing.T, want, got Order) {
	t.Helper()
	if want.Power != got.Power {
		t.Errorf("Power: want %v, got %v", want.Power, got.Power)
	}
	if want.Kind != got.Kind {
		t.Errorf("Kind: want %v, got %v", want.Kind, got.Kind)
	}
	if want.Province != got.Province {
		t.Errorf("Province: want %q, got %q", want.Province, got.Province)
	}
	if want.Coast != got.Coast {
		t.Errorf("Coast: want %q, got %q", want.Coast, got.Coast)
	}
	if want.Action != got.Action {
		t.Errorf("Action: want %v, got %v", want.Action, got.Action)
	}
	if want.Target != got.Target {
		t.Errorf("Target: want %q, got %q", want.Target, got.Target)
	}
	if want.TargetCoast != got.TargetCoast {
		t.Errorf("TargetCoast: want %q, got %q", want.TargetCoast, got.TargetCoast)
	}
	if want.AuxKind != got.AuxKind {
		t.Errorf("AuxKind: want %v, got %v", want.AuxKind, got.AuxKind)
	}
	if want.AuxProvince != got.AuxProvince {
		t.Errorf("AuxProvince: want %q, got %q", want.AuxProvince, got.AuxProvince)
	}
}

func TestParseOrders_MovementForms(t *testing.T) {
	m := Standard()
	tests := []struct {
		name  string
		input string
		want  Order
	}{
		{
			name:  "hold",
			input: "A vie H",
			want:  Order{Power: France, Kind: Army, Province: "vie", Action: Hold},
		},
		{
			name:  "hold spelled out",
			input: "A vie holds",
			want:  Order{Power: France, Kind: Army, Province: "vie", Action: Hold},
		},
		{
			name:  "bare unit reference holds",
			input: "A vie",
			want:  Order{Power: France, Kind: Army, Province: "vie", Action: Hold},
		},
		{
			name:  "move",
			input: "A bud - rum",
			want:  Order{Power: France, Kind: Army, Province: "bud", Action: Move, Target: "rum"},
		},
		{
			name:  "fleet move",
			input: "F tri - adr",
			want:  Order{Power: France, Kind: Fleet, Province: "tri", Action: Move, Target: "adr"},
		},
		{
			name:  "arrow move",
			input: "A bud -> rum",
			want:  Order{Power: France, Kind: Army, Province: "bud", Action: Move, Target: "rum"},
		},
		{
			name:  "move to split coast",
			input: "F nrg - stp/nc",
			want:  Order{Power: France, Kind: Fleet, Province: "nrg", Action: Move, Target: "stp", TargetCoast: NorthCoast},
		},
		{
			name:  "parenthesized coast",
			input: "F nrg - stp(nc)",
			want:  Order{Power: France, Kind: Fleet, Province: "nrg", Action: Move, Target: "stp", TargetCoast: NorthCoast},
		},
		{
			name:  "mixed case",
			input: "f TRI - Adr",
			want:  Order{Power: France, Kind: Fleet, Province: "tri", Action: Move, Target: "adr"},
		},
		{
			name:  "support hold",
			input: "A tyr S A vie H",
			want:  Order{Power: France, Kind: Army, Province: "tyr", Action: SupportHold, AuxKind: Army, AuxProvince: "vie"},
		},
		{
			name:  "support hold implicit",
			input: "A tyr S A vie",
			want:  Order{Power: France, Kind: Army, Province: "tyr", Action: SupportHold, AuxKind: Army, AuxProvince: "vie"},
		},
		{
			name:  "support fleet hold",
			input: "A tyr S F tri H",
			want:  Order{Power: France, Kind: Army, Province: "tyr", Action: SupportHold, AuxKind: Fleet, AuxProvince: "tri"},
		},
		{
			name:  "support move",
			input: "A gal S A bud - rum",
			want:  Order{Power: France, Kind: Army, Province: "gal", Action: SupportMove, AuxKind: Army, AuxProvince: "bud", Target: "rum"},
		},
		{
			name:  "support fleet move with coast",
			input: "A pie S F mar - spa/sc",
			want:  Order{Power: France, Kind: Army, Province: "pie", Action: SupportMove, AuxKind: Fleet, AuxProvince: "mar", Target: "spa"},
		},
		{
			name:  "convoy",
			input: "F mao C A bre - spa",
			want:  Order{Power: France, Kind: Fleet, Province: "mao", Action: ConvoyOrder, AuxKind: Army, AuxProvince: "bre", Target: "spa"},
		},
		{
			name:  "convoy without unit kind",
			input: "F mao C bre - spa",
			want:  Order{Power: France, Kind: Fleet, Province: "mao", Action: ConvoyOrder, AuxKind: Army, AuxProvince: "bre", Target: "spa"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseOne(t, m, tt.input, PhaseMovement)
			assertOrderEqual(t, tt.want, got)
		})
	}
}

func TestParseOrders_RetreatPhase(t *testing.T) {
	m := Standard()
	tests := []struct {
		name  string
		input string
		want  Order
	}{
		{
			name:  "dash means retreat",
			input: "A vie - boh",
			want:  Order{Power: France, Kind: Army, Province: "vie", Action: Retreat, Target: "boh"},
		},
		{
			name:  "fleet retreat to coast",
			input: "F bar - stp/nc",
			want:  Order{Power: France, Kind: Fleet, Province: "bar", Action: Retreat, Target: "stp", TargetCoast: NorthCoast},
		},
		{
			name:  "disband",
			input: "F tri D",
			want:  Order{Power: France, Kind: Fleet, Province: "tri", Action: Disband},
		},
		{
			name:  "disband spelled out",
			input: "A vie disbands",
			want:  Order{Power: France, Kind: Army, Province: "vie", Action: Disband},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseOne(t, m, tt.input, PhaseRetreat)
			assertOrderEqual(t, tt.want, got)
		})
	}
}

func TestParseOrders_AdjustmentForms(t *testing.T) {
	m := Standard()
	tests := []struct {
		name  string
		input string
		want  Order
	}{
		{
			name:  "build army",
			input: "BUILD A par",
			want:  Order{Power: France, Kind: Army, Province: "par", Action: Build},
		},
		{
			name:  "build fleet on coast",
			input: "BUILD F stp/nc",
			want:  Order{Power: France, Kind: Fleet, Province: "stp", Coast: NorthCoast, Action: Build},
		},
		{
			name:  "destroy with kind",
			input: "DESTROY F kie",
			want:  Order{Power: France, Kind: Fleet, Province: "kie", Action: Disband},
		},
		{
			name:  "destroy without kind",
			input: "DESTROY kie",
			want:  Order{Power: France, Kind: Army, Province: "kie", Action: Disband},
		},
		{
			name:  "remove alias",
			input: "REMOVE A war",
			want:  Order{Power: France, Kind: Army, Province: "war", Action: Disband},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseOne(t, m, tt.input, PhaseAdjustment)
			assertOrderEqual(t, tt.want, got)
		})
	}
}

func TestParseOrders_MultipleOrders(t *testing.T) {
	m := Standard()
	tests := []struct {
		name  string
		input string
		count int
	}{
		{"newlines", "A par - bur\nF bre - eng\nA mar H", 3},
		{"commas", "A par - bur, F bre - eng", 2},
		{"semicolons", "A par - bur; F bre - eng; A mar", 3},
		{"trailing separator", "A par - bur;", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, errs := m.ParseOrders(tt.input, France, PhaseMovement)
			if len(errs) > 0 {
				t.Fatalf("errors: %v", errs)
			}
			if len(orders) != tt.count {
				t.Fatalf("expected %d orders, got %d: %v", tt.count, len(orders), orders)
			}
		})
	}
}

func TestParseOrders_BoundaryDetection(t *testing.T) {
	m := Standard()

	// No separators at all: a new order begins at each unit reference.
	orders, errs := m.ParseOrders("A par - bur A mar - spa F bre - eng", France, PhaseMovement)
	if len(errs) > 0 {
		t.Fatalf("errors: %v", errs)
	}
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d: %v", len(orders), orders)
	}
	assertOrderEqual(t, Order{Power: France, Kind: Army, Province: "par", Action: Move, Target: "bur"}, orders[0])
	assertOrderEqual(t, Order{Power: France, Kind: Army, Province: "mar", Action: Move, Target: "spa"}, orders[1])
	assertOrderEqual(t, Order{Power: France, Kind: Fleet, Province: "bre", Action: Move, Target: "eng"}, orders[2])

	// A support carries an embedded unit reference that must not be
	// mistaken for a new order.
	orders, errs = m.ParseOrders("A mun S A ber - sil A boh H", France, PhaseMovement)
	if len(errs) > 0 {
		t.Fatalf("errors: %v", errs)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d: %v", len(orders), orders)
	}
	assertOrderEqual(t, Order{Power: France, Kind: Army, Province: "mun", Action: SupportMove, AuxKind: Army, AuxProvince: "ber", Target: "sil"}, orders[0])
	assertOrderEqual(t, Order{Power: France, Kind: Army, Province: "boh", Action: Hold}, orders[1])

	// Implicit support-hold ends where the next unit reference begins.
	orders, errs = m.ParseOrders("A tyr S A vie A bud - rum", France, PhaseMovement)
	if len(errs) > 0 {
		t.Fatalf("errors: %v", errs)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d: %v", len(orders), orders)
	}
	assertOrderEqual(t, Order{Power: France, Kind: Army, Province: "tyr", Action: SupportHold, AuxKind: Army, AuxProvince: "vie"}, orders[0])
	assertOrderEqual(t, Order{Power: France, Kind: Army, Province: "bud", Action: Move, Target: "rum"}, orders[1])

	// A bare hold before another order.
	orders, errs = m.ParseOrders("A par A mar - spa", France, PhaseMovement)
	if len(errs) > 0 {
		t.Fatalf("errors: %v", errs)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d: %v", len(orders), orders)
	}
	assertOrderEqual(t, Order{Power: France, Kind: Army, Province: "par", Action: Hold}, orders[0])
}

func TestParseOrders_Errors(t *testing.T) {
	m := Standard()
	tests := []struct {
		name  string
		input string
	}{
		{"unknown unit kind", "X vie H"},
		{"unknown province", "A xyz - bur"},
		{"missing destination", "A par -"},
		{"support too short", "A gal S"},
		{"unknown coast", "F gas - spa/xx"},
		{"coast on wrong province", "F bre - eng/nc"},
		{"convoyed fleet", "F mao C F bre - spa"},
		{"build missing kind", "BUILD par"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := m.ParseOrders(tt.input, France, PhaseMovement)
			if len(errs) == 0 {
				t.Error("expected a parse error, got none")
			}
		})
	}
}

func TestParseOrders_ErrorRecovery(t *testing.T) {
	m := Standard()
	orders, errs := m.ParseOrders("A xyz - bur; A par - bur", France, PhaseMovement)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0].Fragment, "xyz") {
		t.Errorf("error fragment should name the bad token, got %q", errs[0].Fragment)
	}
	if len(orders) != 1 {
		t.Fatalf("the good order should survive, got %d: %v", len(orders), orders)
	}
	assertOrderEqual(t, Order{Power: France, Kind: Army, Province: "par", Action: Move, Target: "bur"}, orders[0])

	// Recovery without separators: skip to the next recognizable start.
	orders, errs = m.ParseOrders("A par - bur A xyz H F bre - eng", France, PhaseMovement)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 surviving orders, got %d: %v", len(orders), orders)
	}
}

func TestParseOrders_EmptyInput(t *testing.T) {
	m := Standard()
	for _, input := range []string{"", "   ", ";;\n,"} {
		orders, errs := m.ParseOrders(input, France, PhaseMovement)
		if len(errs) != 0 {
			t.Errorf("ParseOrders(%q): unexpected errors %v", input, errs)
		}
		if len(orders) != 0 {
			t.Errorf("ParseOrders(%q): expected 0 orders, got %d", input, len(orders))
		}
	}
}

func TestParseOrders_StampsPower(t *testing.T) {
	m := Standard()
	orders, errs := m.ParseOrders("A lvp - yor, F edi - nth", England, PhaseMovement)
	if len(errs) > 0 {
		t.Fatalf("errors: %v", errs)
	}
	for _, o := range orders {
		if o.Power != England {
			t.Errorf("order %s: power %v, want England", o.Text(), o.Power)
		}
	}
}
