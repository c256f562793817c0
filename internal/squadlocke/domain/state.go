package domain

import (
	"encoding/json"
	"fmt"
)

// Phase identifies which stage of its lifecycle a session is in.
type Phase int

const (
	// PhaseUnspecified represents an invalid phase value.
	PhaseUnspecified Phase = iota
	// PhaseRegistration accepts new participants.
	PhaseRegistration
	// PhaseCheckpoint is active play; gameplay actions are gated on it.
	PhaseCheckpoint
	// PhaseFinalized is terminal; no further mutation is permitted.
	PhaseFinalized
)

func (p Phase) String() string {
	switch p {
	case PhaseRegistration:
		return "registration"
	case PhaseCheckpoint:
		return "checkpoint"
	case PhaseFinalized:
		return "finalized"
	default:
		return "unspecified"
	}
}

// MarshalJSON encodes the phase by name.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a phase from its name.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*p = ParsePhase(name)
	return nil
}

// ParsePhase maps a phase name to its value. Unknown names map to
// PhaseUnspecified.
func ParsePhase(name string) Phase {
	switch name {
	case "registration":
		return PhaseRegistration
	case "checkpoint":
		return PhaseCheckpoint
	case "finalized":
		return PhaseFinalized
	default:
		return PhaseUnspecified
	}
}

// State is the session lifecycle position, modeled as a closed tagged
// variant: Checkpoint carries the checkpoint index and is meaningful only
// while Phase is PhaseCheckpoint.
type State struct {
	Phase      Phase `json:"phase"`
	Checkpoint int   `json:"checkpoint,omitempty"`
}

// Registration returns the initial session state.
func Registration() State {
	return State{Phase: PhaseRegistration}
}

// Checkpoint returns the state for the given checkpoint index.
func Checkpoint(n int) State {
	return State{Phase: PhaseCheckpoint, Checkpoint: n}
}

// Finalized returns the terminal session state.
func Finalized() State {
	return State{Phase: PhaseFinalized}
}

func (s State) String() string {
	if s.Phase == PhaseCheckpoint {
		return fmt.Sprintf("checkpoint(%d)", s.Checkpoint)
	}
	return s.Phase.String()
}
