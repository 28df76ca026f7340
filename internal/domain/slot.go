package domain

import "time"

// Session and slot outcome codes.
const (
	OutcomeTP = "TP"
	OutcomeSL = "SL"
)

// BoxState is one of the parallel position slots tracked by the slot
// monitor. Owned exclusively by the monitor loop; nobody else mutates it.
type BoxState struct {
	ID        int
	Active    bool
	Predicted float64
	TP        *float64
	SL        *float64
	StartedAt time.Time
}

// SlotEvent kinds.
const (
	SlotEventResolved = "boxResult"
	SlotEventRefilled = "boxStart"
)

// SlotEvent is emitted by the slot monitor when a slot resolves or is
// refilled. Used for external recording only; the monitor never waits
// for acknowledgement.
type SlotEvent struct {
	RecordID string // owning prediction record, may be empty
	Type     string // SlotEvent* constant
	Slot     int

	// Resolution fields (Type == SlotEventResolved).
	Result     string // OutcomeTP or OutcomeSL
	FinalPrice float64
	Duration   time.Duration

	// Refill fields (Type == SlotEventRefilled).
	Predicted float64
	TP        *float64
	SL        *float64

	At time.Time
}

// SessionOutcome is the terminal result of a session monitor run,
// attached to its prediction record once the position resolves.
type SessionOutcome struct {
	Result     string // OutcomeTP or OutcomeSL
	FinalPrice float64
	Duration   time.Duration
	EndedAt    time.Time
}
