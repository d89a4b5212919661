package domain

// Status represents the lifecycle state of an auction.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusStopped Status = "stopped"
	StatusSettled Status = "settled"
	StatusFailed  Status = "failed"
	StatusSold    Status = "sold"
)

// StatusEvent is a lifecycle trigger. Activation resolves to two different
// targets depending on the start time, so it is split into two events; the
// aggregate picks the right one from the clock.
type StatusEvent string

const (
	EventActivate StatusEvent = "activate" // start time reached, go live
	EventSchedule StatusEvent = "schedule" // activation before start time
	EventStop     StatusEvent = "stop"
	EventSettle   StatusEvent = "settle"
	EventFail     StatusEvent = "fail"
	EventSell     StatusEvent = "sell"
)

// transitions is the full lifecycle table. Anything absent is rejected.
var transitions = map[Status]map[StatusEvent]Status{
	StatusDraft: {
		EventActivate: StatusActive,
		EventSchedule: StatusPending,
	},
	StatusPending: {
		EventActivate: StatusActive,
		EventSchedule: StatusPending,
	},
	StatusStopped: {
		EventActivate: StatusActive,
		EventSchedule: StatusPending,
	},
	StatusActive: {
		EventStop:   StatusStopped,
		EventSettle: StatusSettled,
		EventFail:   StatusFailed,
		EventSell:   StatusSold,
	},
}

// Transition is the pure lifecycle function: (current state, event) -> next
// state, or a ConflictError naming the offending state.
func Transition(from Status, ev StatusEvent) (Status, error) {
	if next, ok := transitions[from][ev]; ok {
		return next, nil
	}
	return from, &ConflictError{From: from, Event: ev}
}

// IsTerminal reports whether no further transitions are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusSettled || s == StatusFailed || s == StatusSold
}

// CanEditPricing reports whether price-affecting fields (startPrice,
// fairMarketValue, dates) may be edited in this state.
func (s Status) CanEditPricing() bool {
	return s == StatusDraft || s == StatusPending || s == StatusStopped
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusActive, StatusStopped, StatusSettled, StatusFailed, StatusSold:
		return true
	}
	return false
}

// ParseStatus validates a wire string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", ErrUnknownStatus
	}
	return s, nil
}
