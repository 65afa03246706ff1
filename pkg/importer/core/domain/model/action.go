package model

import "fmt"

// FinalizeReason tells the finalizer why a batch chain ended.
type FinalizeReason string

const (
	ReasonNormal    FinalizeReason = "normal"
	ReasonTimedOut  FinalizeReason = "timed_out"
	ReasonStopped   FinalizeReason = "stopped"
	ReasonTaskError FinalizeReason = "task_error"
)

// ActionKind enumerates the outcomes of one batch step.
type ActionKind int

const (
	// ActionReschedule means another batch must run starting at Offset.
	ActionReschedule ActionKind = iota
	// ActionFinalize means the chain is over and the finalizer must run with Reason.
	ActionFinalize
	// ActionDone means the chain is over and its terminal status is already written.
	ActionDone
)

// NextAction is the result of the batch runner's transition function.
type NextAction struct {
	Kind   ActionKind
	Offset int
	Reason FinalizeReason
}

// Reschedule returns an action that continues the chain at offset.
func Reschedule(offset int) NextAction {
	return NextAction{Kind: ActionReschedule, Offset: offset}
}

// Finalize returns an action that ends the chain through the finalizer.
func Finalize(reason FinalizeReason) NextAction {
	return NextAction{Kind: ActionFinalize, Reason: reason}
}

// Done returns an action that ends the chain without finalizing.
func Done() NextAction {
	return NextAction{Kind: ActionDone}
}

func (a NextAction) String() string {
	switch a.Kind {
	case ActionReschedule:
		return fmt.Sprintf("reschedule(%d)", a.Offset)
	case ActionFinalize:
		return fmt.Sprintf("finalize(%s)", a.Reason)
	case ActionDone:
		return "done"
	}
	return "unknown"
}
