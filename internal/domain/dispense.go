package domain

import "time"

// Outcome is how a single actuation or a whole dispense ended.
type Outcome int

const (
	Completed Outcome = iota
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Superseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Target is one channel actuation derived from a recipe step or a pour.
type Target struct {
	Channel    int     `json:"channel"`
	Ingredient string  `json:"ingredient"`
	Volume     float64 `json:"volume"`
}

// DispenseKind names the request a record belongs to.
type DispenseKind string

const (
	KindMix   DispenseKind = "mix"
	KindPour  DispenseKind = "pour"
	KindFlush DispenseKind = "flush"
)

// DispenseRecord is the journal entry written for every finished actuation.
type DispenseRecord struct {
	DispenseID string        `json:"dispense_id"`
	Kind       DispenseKind  `json:"kind"`
	Name       string        `json:"name"`
	Channel    int           `json:"channel"`
	Ingredient string        `json:"ingredient,omitempty"`
	Volume     float64       `json:"volume"`
	Planned    time.Duration `json:"planned"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Outcome    string        `json:"outcome"`
	Fault      string        `json:"fault,omitempty"`
}
