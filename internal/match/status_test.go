package match

import "testing"

func TestLegalTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusWaiting, StatusActive, true},
		{StatusActive, StatusFinished, true},
		{StatusWaiting, StatusFinished, false},
		{StatusFinished, StatusActive, false},
		{StatusFinished, StatusWaiting, false},
		{StatusActive, StatusWaiting, false},
		{StatusWaiting, StatusWaiting, false},
		{StatusActive, StatusActive, false},
		{StatusFinished, StatusFinished, false},
	}
	for _, tc := range cases {
		f := AssertTransition(tc.from, tc.to, "test")
		if tc.ok && f != nil {
			t.Errorf("AssertTransition(%s, %s) rejected a legal edge: %+v", tc.from, tc.to, f)
		}
		if !tc.ok && f == nil {
			t.Errorf("AssertTransition(%s, %s) allowed an illegal edge", tc.from, tc.to)
		}
	}
}

func TestTransitionFailureCarriesEdge(t *testing.T) {
	f := AssertTransition(StatusFinished, StatusActive, "join")
	if f == nil {
		t.Fatal("expected failure")
	}
	if f.Code != "invalid_transition" {
		t.Errorf("code = %q, want invalid_transition", f.Code)
	}
	if f.From != StatusFinished || f.To != StatusActive {
		t.Errorf("edge = %s -> %s, want finished -> active", f.From, f.To)
	}
}

func TestAssertRequiredStatus(t *testing.T) {
	if f := AssertRequiredStatus(StatusActive, StatusActive, "resign"); f != nil {
		t.Errorf("matching status rejected: %+v", f)
	}
	f := AssertRequiredStatus(StatusWaiting, StatusActive, "resign")
	if f == nil {
		t.Fatal("mismatched status accepted")
	}
	if f.Code != "wrong_status" {
		t.Errorf("code = %q, want wrong_status", f.Code)
	}
	if f.Required != StatusActive {
		t.Errorf("required = %s, want active", f.Required)
	}
}

func TestNormalizeStatus(t *testing.T) {
	if got := NormalizeStatus("  ACTIVE "); got != StatusActive {
		t.Errorf("NormalizeStatus(ACTIVE) = %q", got)
	}
	if got := NormalizeStatus("cancelled"); got != "" {
		t.Errorf("NormalizeStatus(cancelled) = %q, want empty", got)
	}
}

func TestErrTransitionMapsToConflictStatus(t *testing.T) {
	err := errTransition(AssertRequiredStatus(StatusFinished, StatusActive, "move"))
	if err.HTTPStatus() != 409 {
		t.Errorf("HTTPStatus = %d, want 409", err.HTTPStatus())
	}
	if err.To != StatusActive {
		t.Errorf("To = %s, want active (required status)", err.To)
	}
}
