package domain

import "time"

type SaveState string

const (
	StateIdle   SaveState = "idle"
	StateSaving SaveState = "saving"
	StateSaved  SaveState = "saved"
	StateError  SaveState = "error"
)

// SaveStatus is the UI-facing projection of the save lifecycle. It is a
// closed variant: SavedAt is meaningful only in StateSaved, Message and
// Retryable only in StateError. Consumers switch on State exhaustively.
type SaveStatus struct {
	State     SaveState `json:"state"`
	SavedAt   time.Time `json:"saved_at,omitzero"`
	Message   string    `json:"message,omitempty"`
	Retryable bool      `json:"retryable,omitempty"`
}

func Idle() SaveStatus {
	return SaveStatus{State: StateIdle}
}

func Saving() SaveStatus {
	return SaveStatus{State: StateSaving}
}

func Saved(at time.Time) SaveStatus {
	return SaveStatus{State: StateSaved, SavedAt: at}
}

// SaveError builds an error status. Retryable means an explicit retry can
// still succeed (transient exhaustion), as opposed to a version conflict or
// rejected payload, which require reloading server state first.
func SaveError(message string, retryable bool) SaveStatus {
	return SaveStatus{State: StateError, Message: message, Retryable: retryable}
}

func (s SaveStatus) Terminal() bool {
	return s.State == StateError
}
