package diplomacy

import "strings"

// Action enumerates every kind of order a power can give. One tagged
// Order type covers all three phases; validation rejects actions that
// are illegal for the current phase.
type Action int

const (
	Hold Action = iota
	Move
	SupportHold
	SupportMove
	ConvoyOrder
	Retreat
	Disband
	Build
)

var actionNames = map[Action]string{
	Hold:        "hold",
	Move:        "move",
	SupportHold: "support_hold",
	SupportMove: "support_move",
	ConvoyOrder: "convoy",
	Retreat:     "retreat",
	Disband:     "disband",
	Build:       "build",
}

func (a Action) String() string {
	return actionNames[a]
}

// ParseAction maps a stored action name back to its Action.
func ParseAction(s string) (Action, bool) {
	for a, name := range actionNames {
		if name == s {
			return a, true
		}
	}
	return Hold, false
}

// Order is one parsed order. The Action tag determines which fields are
// meaningful:
//
//	Hold        unit only
//	Move        Target (+TargetCoast for fleets into split coasts)
//	SupportHold AuxKind/AuxProvince (the supported unit)
//	SupportMove AuxKind/AuxProvince plus Target (the supported destination)
//	ConvoyOrder AuxKind/AuxProvince (the army) plus Target
//	Retreat     Target (+TargetCoast)
//	Disband     unit only
//	Build       Kind/Province/Coast describe the unit to create
type Order struct {
	Power    Power
	Kind     UnitKind
	Province string
	Coast    Coast

	Action      Action
	Target      string
	TargetCoast Coast

	AuxKind     UnitKind
	AuxProvince string
}

// Text renders the order in its canonical textual form, the same form
// the parser accepts.
func (o Order) Text() string {
	var b strings.Builder
	b.Grow(24)

	if o.Action == Build {
		b.WriteString("BUILD ")
		b.WriteString(o.Kind.Letter())
		b.WriteByte(' ')
		writeLocation(&b, o.Province, o.Coast)
		return b.String()
	}

	b.WriteString(o.Kind.Letter())
	b.WriteByte(' ')
	writeLocation(&b, o.Province, o.Coast)

	switch o.Action {
	case Hold:
		b.WriteString(" H")
	case Move, Retreat:
		b.WriteString(" - ")
		writeLocation(&b, o.Target, o.TargetCoast)
	case SupportHold:
		b.WriteString(" S ")
		b.WriteString(o.AuxKind.Letter())
		b.WriteByte(' ')
		writeLocation(&b, o.AuxProvince, NoCoast)
	case SupportMove:
		b.WriteString(" S ")
		b.WriteString(o.AuxKind.Letter())
		b.WriteByte(' ')
		writeLocation(&b, o.AuxProvince, NoCoast)
		b.WriteString(" - ")
		writeLocation(&b, o.Target, NoCoast)
	case ConvoyOrder:
		b.WriteString(" C A ")
		writeLocation(&b, o.AuxProvince, NoCoast)
		b.WriteString(" - ")
		writeLocation(&b, o.Target, NoCoast)
	case Disband:
		b.WriteString(" D")
	}
	return b.String()
}

func (o Order) String() string { return o.Text() }

func writeLocation(b *strings.Builder, province string, coast Coast) {
	b.WriteString(province)
	if coast != NoCoast {
		b.WriteByte('/')
		b.WriteString(string(coast))
	}
}

// Outcome is the terminal status of an order after adjudication.
// Moves that bounce and supports that are cut both report failed;
// dislodged takes precedence for the unit that was driven out.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeDislodged
	OutcomeVoid
)

func (r Outcome) String() string {
	switch r {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeDislodged:
		return "dislodged"
	case OutcomeVoid:
		return "void"
	default:
		return "unknown"
	}
}

// ParseOutcome maps a stored outcome name back to its Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	switch s {
	case "succeeded":
		return OutcomeSucceeded, true
	case "failed":
		return OutcomeFailed, true
	case "dislodged":
		return OutcomeDislodged, true
	case "void":
		return OutcomeVoid, true
	default:
		return OutcomeFailed, false
	}
}

// ResolvedOrder pairs an order with its adjudication outcome.
type ResolvedOrder struct {
	Order   Order
	Outcome Outcome
}
