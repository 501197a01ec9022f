package models

import (
	"time"

	"github.com/example/fare-finder/internal/form"
)

// Outcome is the record of one resolved prediction attempt.
type Outcome struct {
	ID         string      `json:"id"`
	SessionID  string      `json:"session_id"`
	Request    form.Fields `json:"request"`
	Phase      string      `json:"phase"` // succeeded, failed
	Fare       *float64    `json:"fare,omitempty"`
	Message    string      `json:"message"`
	DurationMs int64       `json:"duration_ms"`
	CreatedAt  time.Time   `json:"created_at"`
}
