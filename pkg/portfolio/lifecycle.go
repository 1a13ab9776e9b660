package portfolio

import "fmt"

// State is the derived publication state of an item. It is never stored:
// an item with an image is published, one without is a draft.
type State string

const (
	StateDraft     State = "draft"
	StatePublished State = "published"
	StateDeleted   State = "deleted"
)

// StateOf derives the state of a stored item.
func StateOf(item *ItemRecord) State {
	if item == nil {
		return StateDeleted
	}
	if item.Image == "" {
		return StateDraft
	}
	return StatePublished
}

// Transition names an item mutation that changes its state.
type Transition string

const (
	TransitionReplaceImage Transition = "replace-image"
	TransitionRemoveImage  Transition = "remove-image"
	TransitionDelete       Transition = "delete"
)

type transitionRule struct {
	From []State
	To   State
}

var transitions = map[Transition]transitionRule{
	TransitionReplaceImage: {From: []State{StateDraft, StatePublished}, To: StatePublished},
	TransitionRemoveImage:  {From: []State{StateDraft, StatePublished}, To: StateDraft},
	TransitionDelete:       {From: []State{StateDraft, StatePublished}, To: StateDeleted},
}

// TransitionError is returned for a transition the current state does not
// allow.
type TransitionError struct {
	From       State
	Transition Transition
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s an item in state %s", e.Transition, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidArgument }

// NextState validates t from the given state and returns the resulting
// state. Deleted is terminal.
func NextState(from State, t Transition) (State, error) {
	rule, ok := transitions[t]
	if !ok {
		return from, &TransitionError{From: from, Transition: t}
	}
	for _, s := range rule.From {
		if s == from {
			return rule.To, nil
		}
	}
	return from, &TransitionError{From: from, Transition: t}
}
