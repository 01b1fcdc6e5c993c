package model

import "testing"

var allStates = []State{StateBacklog, StateReady, StateInProgress, StateBlocked, StateReview, StateDone}

func TestSameStateAlwaysAllowed(t *testing.T) {
	for _, s := range allStates {
		if got := CanTransition(s, s, false, false).Permission; got != Allowed {
			t.Errorf("same-state %s (unlocked): got %v, want Allowed", s, got)
		}
		if got := CanTransition(s, s, true, false).Permission; got != Allowed {
			t.Errorf("same-state %s (locked): got %v, want Allowed", s, got)
		}
	}
}

func TestAllUserTransitionsAllowedWhenNotLocked(t *testing.T) {
	for _, from := range allStates {
		for _, to := range allStates {
			if from == to || from == StateInProgress {
				continue
			}
			if got := CanTransition(from, to, false, false).Permission; got != Allowed {
				t.Errorf("user %s->%s unlocked: got %v, want Allowed", from, to, got)
			}
		}
	}
}

func TestInProgressRequiresUnlockWhenLocked(t *testing.T) {
	for _, to := range []State{StateReady, StateBlocked, StateDone} {
		r := CanTransition(StateInProgress, to, true, false)
		if r.Permission != RequiresUnlock {
			t.Errorf("InProgress->%s locked: got %v, want RequiresUnlock", to, r.Permission)
		}
	}
}

func TestInProgressAllowedWhenNotLocked(t *testing.T) {
	for _, to := range []State{StateReady, StateBlocked, StateDone, StateBacklog} {
		r := CanTransition(StateInProgress, to, false, false)
		if r.Permission != Allowed {
			t.Errorf("InProgress->%s unlocked: got %v, want Allowed", to, r.Permission)
		}
	}
}

func TestSystemTransitions(t *testing.T) {
	cases := []struct{ from, to State }{
		{StateReady, StateInProgress},
		{StateInProgress, StateReview},
		{StateInProgress, StateBlocked},
		{StateInProgress, StateReady},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to, false, true).Permission; got != Allowed {
			t.Errorf("system %s->%s: got %v, want Allowed", c.from, c.to, got)
		}
	}
}

func TestSystemTransitionDenied(t *testing.T) {
	r := CanTransition(StateBacklog, StateDone, false, true)
	if r.Permission != Denied {
		t.Fatalf("system Backlog->Done: got %v, want Denied", r.Permission)
	}
	if r.Reason() == "" {
		t.Error("expected a non-empty denial reason")
	}
}

func TestParseState(t *testing.T) {
	cases := map[string]State{
		"Backlog":      StateBacklog,
		"in progress":  StateInProgress,
		"IN_PROGRESS":  StateInProgress,
		"inprogress":   StateInProgress,
		"Review":       StateReview,
		"done":         StateDone,
	}
	for in, want := range cases {
		got, ok := ParseState(in)
		if !ok || got != want {
			t.Errorf("ParseState(%q) = %q, %v; want %q, true", in, got, ok, want)
		}
	}
	if _, ok := ParseState("nonsense"); ok {
		t.Error("expected ParseState(\"nonsense\") to fail")
	}
}
