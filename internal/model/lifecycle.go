package model

import (
	"fmt"
	"strings"
)

// Permission is the result of evaluating a proposed column transition.
type Permission int

const (
	// Allowed means the transition may proceed.
	Allowed Permission = iota
	// RequiresUnlock means the ticket must first be unlocked (lease
	// released or run cancelled) before this transition can proceed.
	RequiresUnlock
	// Denied means the transition is not permitted at all; Reason()
	// explains why.
	Denied
)

// TransitionResult carries a Permission plus, for Denied, the human-readable
// reason.
type TransitionResult struct {
	Permission Permission
	reason     string
}

// Reason returns the denial explanation, empty for Allowed/RequiresUnlock.
func (r TransitionResult) Reason() string { return r.reason }

func allowed() TransitionResult        { return TransitionResult{Permission: Allowed} }
func requiresUnlock() TransitionResult { return TransitionResult{Permission: RequiresUnlock} }
func denied(reason string) TransitionResult {
	return TransitionResult{Permission: Denied, reason: reason}
}

// systemTransitions is the fixed set of column moves the reservation manager
// and finalizer are allowed to make on a ticket's behalf.
var systemTransitions = map[[2]State]bool{
	{StateReady, StateInProgress}: true,
	{StateInProgress, StateReview}: true,
	{StateInProgress, StateBlocked}: true,
	{StateInProgress, StateReady}: true,
}

// CanTransition classifies a proposed move from `from` to `to`. isLocked
// reflects whether the ticket currently carries a live lease; isSystem
// distinguishes a move requested by the reservation manager/finalizer from
// one requested by a human through the board API.
func CanTransition(from, to State, isLocked, isSystem bool) TransitionResult {
	if from == to {
		return allowed()
	}
	if isSystem {
		return checkSystemTransition(from, to)
	}
	return checkUserTransition(from, isLocked)
}

func checkUserTransition(from State, isLocked bool) TransitionResult {
	if from == StateInProgress && isLocked {
		return requiresUnlock()
	}
	return allowed()
}

func checkSystemTransition(from, to State) TransitionResult {
	if systemTransitions[[2]State{from, to}] {
		return allowed()
	}
	return denied(fmt.Sprintf("system cannot transition from %s to %s", ColumnDisplayName(from), ColumnDisplayName(to)))
}

// ParseState normalizes a column name into a State. It accepts the
// canonical display names, their upper-snake form, and common loose
// spellings of "in progress" (case-insensitive, space/underscore
// agnostic).
func ParseState(raw string) (State, bool) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.ReplaceAll(norm, " ", "_")
	switch norm {
	case "BACKLOG":
		return StateBacklog, true
	case "READY":
		return StateReady, true
	case "IN_PROGRESS", "INPROGRESS":
		return StateInProgress, true
	case "BLOCKED":
		return StateBlocked, true
	case "REVIEW":
		return StateReview, true
	case "DONE":
		return StateDone, true
	default:
		return "", false
	}
}
