package domain

import "time"

// Belief is a discrete fact held by an agent. The graph engine reads beliefs but never mutates them.
type Belief struct {
	ID         string    `json:"id"`
	AgentID    string    `json:"agent_id"`
	Statement  string    `json:"statement"`
	Confidence float64   `json:"confidence"`
	Active     bool      `json:"active"`
	Category   string    `json:"category,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
