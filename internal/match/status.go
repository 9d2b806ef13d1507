package match

import "strings"

// Status is a match lifecycle state. The graph is fixed and small:
// waiting -> active -> finished, with finished terminal.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// NormalizeStatus maps free-form input onto a known status ("" if unknown).
func NormalizeStatus(raw string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusWaiting:
		return StatusWaiting
	case StatusActive:
		return StatusActive
	case StatusFinished:
		return StatusFinished
	}
	return ""
}

var legalTransitions = map[Status]Status{
	StatusWaiting: StatusActive,
	StatusActive:  StatusFinished,
}

// TransitionFailure is the structured result of a rejected guard check.
// Code is machine-readable so handlers can map it onto a 409 without
// string parsing.
type TransitionFailure struct {
	Code     string `json:"code"`
	Message  string `json:"error"`
	From     Status `json:"fromStatus,omitempty"`
	To       Status `json:"toStatus,omitempty"`
	Required Status `json:"requiredStatus,omitempty"`
	Context  string `json:"-"`
}

// AssertRequiredStatus succeeds (returns nil) only when current == required.
// Used before actions that need a match in a specific state without
// changing it (draw offer, resign precondition).
func AssertRequiredStatus(current, required Status, context string) *TransitionFailure {
	if current == required {
		return nil
	}
	return &TransitionFailure{
		Code:     "wrong_status",
		Message:  "Oyun bu işlem için uygun durumda değil.",
		From:     current,
		Required: required,
		Context:  context,
	}
}

// AssertTransition succeeds (returns nil) only when (from, to) is a legal
// edge of the state graph. Self-transitions are rejected here; the
// orchestrator handles the idempotent re-finish case before consulting
// the guard.
func AssertTransition(from, to Status, context string) *TransitionFailure {
	if next, ok := legalTransitions[from]; ok && next == to {
		return nil
	}
	return &TransitionFailure{
		Code:    "invalid_transition",
		Message: "Geçersiz durum geçişi.",
		From:    from,
		To:      to,
		Context: context,
	}
}
