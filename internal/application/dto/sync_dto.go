package dto

import (
	"encoding/json"
	"time"
)

// DeadLetterResponse mutación descartada tras agotar reintentos.
type DeadLetterResponse struct {
	EntryID    string          `json:"entry_id"`
	Collection string          `json:"collection"`
	EntityID   string          `json:"entity_id"`
	Op         string          `json:"op"`
	Payload    json.RawMessage `json:"payload,omitempty" swaggertype:"object"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
	Reason     string          `json:"reason"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	DeadAt     time.Time       `json:"dead_at"`
}

// DeadLetterListResponse dead letters de una unidad.
type DeadLetterListResponse struct {
	Items []DeadLetterResponse `json:"items"`
}
