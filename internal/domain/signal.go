package domain

// Action is the blender's trade suggestion vocabulary.
type Action string

// Action constants.
const (
	ActionBuy     Action = "Buy"
	ActionSell    Action = "Sell"
	ActionNeutral Action = "Neutral"
)

// ActionForDirection maps the ensemble vocabulary onto the blender's.
// This is the single place the two vocabularies meet.
func ActionForDirection(d Direction) Action {
	switch d {
	case DirectionLong:
		return ActionBuy
	case DirectionShort:
		return ActionSell
	default:
		return ActionNeutral
	}
}

// DirectionForAction is the inverse mapping, used when a blended action
// drives direction-aware TP/SL comparisons.
func DirectionForAction(a Action) Direction {
	switch a {
	case ActionBuy:
		return DirectionLong
	case ActionSell:
		return DirectionShort
	default:
		return DirectionNeutral
	}
}

// PositionSignal is the blended trade signal for one forecast cycle.
// Immutable once computed.
type PositionSignal struct {
	Action Action

	// Score is nominally in [-1,1]; the fundamental multiplier can push it
	// slightly outside, so callers must not assume strict bounds.
	Score float64

	// Multiplier is the fundamentals-derived factor applied to the score,
	// clamped to [0.8, 1.2].
	Multiplier float64

	TP *float64 // nil for Neutral
	SL *float64 // nil for Neutral
}
