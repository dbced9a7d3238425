package domain

import "fmt"

// Transition names an edge of a lifecycle state machine
type Transition string

const (
	TransitionCreate  Transition = "create"
	TransitionApprove Transition = "approve"
	TransitionCancel  Transition = "cancel"
	TransitionErr     Transition = "set_erred"
)

// StateMachine is a declarative (state, transition) -> target table.
// Transitions registered with PermitFromAny are valid from every state.
type StateMachine[S comparable] struct {
	edges  map[S]map[Transition]S
	global map[Transition]S
	entity string
}

func NewStateMachine[S comparable](entity string) *StateMachine[S] {
	return &StateMachine[S]{
		entity: entity,
		edges:  make(map[S]map[Transition]S),
		global: make(map[Transition]S),
	}
}

// Permit registers from --t--> to
func (m *StateMachine[S]) Permit(from S, t Transition, to S) *StateMachine[S] {
	if m.edges[from] == nil {
		m.edges[from] = make(map[Transition]S)
	}
	m.edges[from][t] = to
	return m
}

// PermitFromAny registers t as valid from every state
func (m *StateMachine[S]) PermitFromAny(t Transition, to S) *StateMachine[S] {
	m.global[t] = to
	return m
}

// Next resolves the target state or returns an INVALID_STATE_TRANSITION error
func (m *StateMachine[S]) Next(from S, t Transition) (S, error) {
	if to, ok := m.edges[from][t]; ok {
		return to, nil
	}
	if to, ok := m.global[t]; ok {
		return to, nil
	}
	var zero S
	return zero, NewDomainError(ErrorCodeInvalidStateTransition,
		fmt.Sprintf("%s cannot %s from state %v", m.entity, t, from)).
		WithDetail("entity", m.entity).
		WithDetail("state", fmt.Sprint(from)).
		WithDetail("transition", string(t))
}

func (m *StateMachine[S]) Can(from S, t Transition) bool {
	_, err := m.Next(from, t)
	return err == nil
}
