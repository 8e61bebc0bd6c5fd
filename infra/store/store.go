package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gridwise/energysim/core/model"
)

// Kind discriminates persisted record types.
type Kind string

const (
	KindForecast  Kind = "forecast"
	KindOrder     Kind = "order"
	KindTrade     Kind = "trade"
	KindGridState Kind = "grid_state"
	KindClearing  Kind = "clearing"
)

// Record is one persisted simulation event, keyed by (tick, agent_id,
// kind). At-least-once delivery can write the same key twice; queries
// deduplicate, keeping the first copy.
type Record struct {
	Tick    model.Tick      `json:"tick"`
	AgentID string          `json:"agent_id"`
	Kind    Kind            `json:"kind"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

// Query defines filters for retrieving records. Zero values match all.
type Query struct {
	FromTick model.Tick
	ToTick   model.Tick
	AgentID  string
	Kind     Kind
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
